package css

import "errors"

// Position in stylesheet text. Line is 1-based, Column is 0-based and counted
// in UTF-16 code units the way source maps count them.
type Position struct {
	Line   int
	Column int
}

// Span is byte range [Start, End) of stylesheet text.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int {
	return s.End - s.Start
}

// Node is either *Rule or *Declaration.
type Node interface {
	node()
}

// Declaration is "property: value" pair.
type Declaration struct {
	Property string
	Value    string
	// Start of the declaration (its property name)
	Start Position
	// Location of Value in stylesheet text
	ValueSpan Span
}

// Rule is qualified rule (selector with block) or at-rule. At-rules without
// block (@import, @charset) have no children.
type Rule struct {
	// "@media", "@font-face"..., empty for qualified rules
	AtKeyword string
	Prelude   string
	Start     Position
	Children  []Node
}

func (*Declaration) node() {}
func (*Rule) node()        {}

// Stylesheet is parsed compiled stylesheet, text it was parsed from is kept
// so that declaration values may be spliced.
type Stylesheet struct {
	Text  string
	Nodes []Node

	pos positioner
}

// Position converts byte offset in Text into line and column.
func (s *Stylesheet) Position(off int) Position {
	return s.pos.at(off)
}

// SkipChildren may be returned by Walk visitor for a rule to skip its
// content.
var SkipChildren = errors.New("skip children")

// Walk visits nodes in document order, depth first. Visitor error other than
// SkipChildren stops the walk and is returned.
func (s *Stylesheet) Walk(visit func(Node) error) error {
	return walk(s.Nodes, visit)
}

func walk(nodes []Node, visit func(Node) error) error {
	for _, n := range nodes {
		err := visit(n)
		switch {
		case errors.Is(err, SkipChildren):
			continue
		case err != nil:
			return err
		}
		if r, ok := n.(*Rule); ok {
			if err := walk(r.Children, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// Declarations returns all declarations in document order.
func (s *Stylesheet) Declarations() []*Declaration {
	var out []*Declaration
	_ = s.Walk(func(n Node) error {
		if d, ok := n.(*Declaration); ok {
			out = append(out, d)
		}
		return nil
	})
	return out
}
