package layout

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/brainos/retrieval/model"
)

// PlainText is a deterministic Parser for plain text with lightweight
// markup. Pages are separated by form feeds, blocks by blank lines. A block
// whose first line starts with '#' is a Title, with '|' a Table, with a
// bullet a run of ListItems; everything else is NarrativeText.
type PlainText struct{}

// NewPlainText creates a plain-text parser.
func NewPlainText() *PlainText {
	return &PlainText{}
}

// Parse reads the whole document and returns its elements in reading order.
// Page numbers are 1-based and increase with each form feed.
func (*PlainText) Parse(ctx context.Context, name string, r io.Reader) ([]model.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("layout: read %s: %w", name, err)
	}

	var elements []model.Element
	for pageIdx, page := range strings.Split(string(data), "\f") {
		pageNo := pageIdx + 1
		for _, block := range splitBlocks(page) {
			elements = append(elements, blockElements(block, pageNo)...)
		}
	}
	return elements, nil
}

var _ Parser = (*PlainText)(nil)

// splitBlocks cuts a page into blocks on blank lines. Blocks keep their
// internal line breaks but lose surrounding whitespace.
func splitBlocks(page string) []string {
	var blocks []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = current[:0]
		}
	}

	for _, line := range strings.Split(page, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, strings.TrimRight(line, " \t\r"))
	}
	flush()

	return blocks
}

// blockElements classifies one block and returns its elements. A bullet
// block yields one ListItem per bullet, matching how layout engines emit
// list content item by item.
func blockElements(block string, page int) []model.Element {
	lines := strings.Split(block, "\n")
	first := strings.TrimSpace(lines[0])

	switch {
	case strings.HasPrefix(first, "#"):
		return []model.Element{{
			Text:       strings.TrimSpace(strings.TrimLeft(block, "#")),
			PageNumber: page,
			Kind:       "Title",
		}}
	case strings.HasPrefix(first, "|"):
		return []model.Element{{
			Text:       flattenTable(lines),
			PageNumber: page,
			Kind:       "Table",
		}}
	case isBullet(first):
		return listItems(lines, page)
	default:
		return []model.Element{{
			Text:       strings.TrimSpace(block),
			PageNumber: page,
			Kind:       "NarrativeText",
		}}
	}
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ")
}

// listItems emits one ListItem per bullet. Continuation lines without a
// bullet are folded into the preceding item.
func listItems(lines []string, page int) []model.Element {
	var items []model.Element
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isBullet(trimmed) {
			items = append(items, model.Element{
				Text:       strings.TrimSpace(trimmed[2:]),
				PageNumber: page,
				Kind:       "ListItem",
			})
		} else if len(items) > 0 {
			items[len(items)-1].Text += " " + trimmed
		}
	}
	return items
}

// flattenTable turns pipe-delimited rows into plain cell text, one row per
// line, dropping markdown separator rows.
func flattenTable(lines []string) string {
	var rows []string
	for _, line := range lines {
		trimmed := strings.Trim(strings.TrimSpace(line), "|")
		if trimmed == "" || isTableRule(trimmed) {
			continue
		}
		var cells []string
		for _, cell := range strings.Split(trimmed, "|") {
			if cell = strings.TrimSpace(cell); cell != "" {
				cells = append(cells, cell)
			}
		}
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " "))
		}
	}
	return strings.Join(rows, "\n")
}

// isTableRule reports whether a row is a markdown alignment rule like
// "---|:--:|---".
func isTableRule(row string) bool {
	for _, r := range row {
		switch r {
		case '-', ':', '|', ' ':
		default:
			return false
		}
	}
	return true
}
