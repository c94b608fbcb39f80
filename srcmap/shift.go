package srcmap

import (
	"cmp"
	"slices"
)

// Edit describes in-line replacement of generated text. Line is 1-based,
// Column is 0-based, columns and lengths are in UTF-16 code units as
// required by source maps.
type Edit struct {
	Line   int
	Column int
	OldLen int
	NewLen int
}

// Shift moves generated columns of mappings so map stays valid after edits
// were applied to generated text. Mappings pointing inside replaced text are
// moved to its start.
func (m *Map) Shift(edits []Edit) error {
	if len(edits) == 0 {
		return nil
	}
	lines, err := DecodeMappings(m.Mappings)
	if err != nil {
		return &ParseError{Err: err}
	}

	// right to left, so earlier edits on the same line stay valid
	sorted := slices.Clone(edits)
	slices.SortFunc(sorted, func(a, b Edit) int {
		if c := cmp.Compare(a.Line, b.Line); c != 0 {
			return c
		}
		return cmp.Compare(b.Column, a.Column)
	})

	for _, e := range sorted {
		idx := e.Line - 1
		if idx < 0 || idx >= len(lines) {
			continue
		}
		delta := e.NewLen - e.OldLen
		end := e.Column + e.OldLen
		for i := range lines[idx] {
			seg := &lines[idx][i]
			switch {
			case seg.GenColumn >= end:
				seg.GenColumn += delta
			case seg.GenColumn > e.Column:
				seg.GenColumn = e.Column
			}
		}
	}
	m.Mappings = EncodeMappings(lines)
	return nil
}
