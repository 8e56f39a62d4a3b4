// Package cite turns fused query results into provenance-tagged citations
// and the context blocks handed to synthesis. It is a pure transformation:
// rank order is preserved and nothing is re-scored.
package cite

import (
	"fmt"
	"strings"

	"github.com/brainos/retrieval/model"
	"github.com/brainos/retrieval/query"
)

// Assembly is the citation view of one ranked result list. Citations and
// Context are parallel: Context[i] is the rendered block for Citations[i].
type Assembly struct {
	Citations []model.Citation
	Context   []string
}

// Assembler builds assemblies from query results.
type Assembler struct{}

// New creates an Assembler.
func New() *Assembler {
	return &Assembler{}
}

type dedupeKey struct {
	source string
	page   int
	text   string
}

// Assemble maps results to citations in rank order. Results carrying an
// identical (source, page, text) triple collapse onto the first occurrence
// even when their chunk ids differ, so re-ingested duplicates never cite
// twice.
func (a *Assembler) Assemble(results []query.Result) Assembly {
	asm := Assembly{
		Citations: make([]model.Citation, 0, len(results)),
		Context:   make([]string, 0, len(results)),
	}
	seen := make(map[dedupeKey]struct{}, len(results))

	for _, r := range results {
		key := dedupeKey{
			source: r.Chunk.Source,
			page:   r.Chunk.PageNumber,
			text:   r.Chunk.Text,
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		citation := model.Citation{
			Source:      r.Chunk.Source,
			PageNumber:  r.Chunk.PageNumber,
			Text:        r.Chunk.Text,
			ElementType: r.Chunk.ElementType,
			Score:       r.Score,
		}
		asm.Citations = append(asm.Citations, citation)
		asm.Context = append(asm.Context, ContextBlock(citation))
	}
	return asm
}

// ContextText joins the context blocks with blank lines, one source per
// paragraph.
func (a Assembly) ContextText() string {
	return strings.Join(a.Context, "\n\n")
}

// ContextBlock renders one citation in the shape the synthesis prompt
// expects.
func ContextBlock(c model.Citation) string {
	return fmt.Sprintf("SOURCE: %s | PAGE: %d\nCONTENT: %s", c.Source, c.PageNumber, c.Text)
}
