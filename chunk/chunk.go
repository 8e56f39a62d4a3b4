// Package chunk turns raw layout elements into indexable chunks with
// provenance metadata.
//
// The builder is deterministic: running it twice over identical input yields
// chunks with identical ids and content. That determinism is the idempotence
// key for the whole ingestion path, since the index treats a re-upsert of an
// unchanged chunk as a no-op.
package chunk

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/google/uuid"

	"github.com/brainos/retrieval/model"
)

// idNamespace is the UUIDv5 namespace for chunk ids. Fixed forever; changing
// it would re-key every previously ingested chunk.
var idNamespace = uuid.MustParse("36b8f84d-df4e-4d49-b662-bcde71a8d170")

// Builder normalizes layout elements into chunks: it drops fragments below
// the minimum length, prefixes table content with the table marker, merges
// adjacent text on the same page up to the maximum chunk length, and assigns
// deterministic ids.
type Builder struct {
	opts options
}

// New creates a Builder with the given options.
func New(optFns ...Option) *Builder {
	return &Builder{opts: applyOptions(optFns)}
}

// Build converts one source document's ordered elements into chunks with
// vectors unset. Malformed elements (page below 1, page regression) are
// skipped and logged, never fatal. Page numbers in the output are monotonic
// non-decreasing.
func (b *Builder) Build(source string, elements []model.Element) ([]model.Chunk, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errors.New("chunk: source is empty")
	}

	chunks := make([]model.Chunk, 0, len(elements))
	lastPage := 0

	for _, el := range elements {
		if el.PageNumber < 1 || el.PageNumber < lastPage {
			b.opts.logger.Warn("skipping malformed element",
				"source", source, "page", el.PageNumber, "kind", el.Kind)
			continue
		}

		text := strings.TrimSpace(el.Text)
		if len(text) < b.opts.minChars {
			b.opts.logger.Debug("dropping short element",
				"source", source, "page", el.PageNumber, "chars", len(text))
			continue
		}

		elemType := model.ParseElementType(el.Kind)
		if elemType == model.ElementTable {
			text = model.TableMarker + text
		}

		lastPage = el.PageNumber

		// Merge runs of text on the same page to reduce fragmentation.
		// Merging never crosses a page or an element-type boundary.
		if elemType == model.ElementText && len(chunks) > 0 {
			last := &chunks[len(chunks)-1]
			if last.ElementType == model.ElementText &&
				last.PageNumber == el.PageNumber &&
				len(last.Text)+2+len(text) <= b.opts.maxChars {
				last.Text += "\n\n" + text
				continue
			}
		}

		chunks = append(chunks, model.Chunk{
			Text:        text,
			Source:      source,
			PageNumber:  el.PageNumber,
			ElementType: elemType,
		})
	}

	// Ids are assigned after merging so the ordinal reflects the final
	// chunk sequence.
	for i := range chunks {
		chunks[i].ID = ChunkID(source, chunks[i].PageNumber, i, chunks[i].Text)
	}

	return chunks, nil
}

// ChunkID derives the deterministic id for a chunk from its provenance and
// content: UUIDv5 over "source|page|ordinal|fnv64a(text)".
func ChunkID(source string, page, ordinal int, text string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	name := fmt.Sprintf("%s|%d|%d|%016x", source, page, ordinal, h.Sum64())
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}
