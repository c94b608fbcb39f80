package srcmap

import (
	"github.com/go-sourcemap/sourcemap"
)

// Position in original source. Line is 1-based, Column is 0-based.
type Position struct {
	Source string
	Line   int
	Column int
}

// Locator answers generated to original position queries. It works on a
// snapshot of the map made when it was created.
type Locator struct {
	c *sourcemap.Consumer
}

// Locator prepares map for lookups. Map without mappings yields locator
// which never finds anything.
func (m *Map) Locator() (*Locator, error) {
	if len(m.Mappings) == 0 {
		return &Locator{}, nil
	}
	data, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	c, err := sourcemap.Parse("", data)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return &Locator{c: c}, nil
}

// Source returns original position for generated line (1-based) and column
// (0-based, UTF-16). When there is no exact mapping closest preceding one is
// used.
func (l *Locator) Source(line, column int) (Position, bool) {
	if l == nil || l.c == nil {
		return Position{}, false
	}
	src, _, ol, oc, ok := l.c.Source(line, column)
	if !ok || len(src) == 0 {
		return Position{}, false
	}
	return Position{Source: src, Line: ol, Column: oc}, true
}
