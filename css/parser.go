// Package css builds lightweight syntax tree of compiled stylesheets keeping
// exact location of every declaration so values could be rewritten in place.
package css

import (
	"errors"
	"io"
	"slices"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser splits stylesheet into rules and declarations. It does not try to
// understand selectors or values, compiler has already validated them.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

type token struct {
	tt  css.TokenType
	off int
	end int
}

func (t token) blank() bool {
	return t.tt == css.WhitespaceToken || t.tt == css.CommentToken
}

// Parse parses stylesheet text. Malformed input never fails, unbalanced
// blocks are closed at the end of text.
func (p *Parser) Parse(text string) *Stylesheet {
	sheet := &Stylesheet{Text: text, pos: newPositioner(text)}

	b := &builder{sheet: sheet, log: p.log, stack: []*[]Node{&sheet.Nodes}}
	lex := css.NewLexer(parse.NewInputBytes([]byte(text)))

	var (
		stmt  []token
		depth int
		off   int
	)
	for {
		tt, data := lex.Next()
		if tt == css.ErrorToken {
			break
		}
		tok := token{tt: tt, off: off, end: off + len(data)}
		off = tok.end

		if depth == 0 {
			switch tt {
			case css.LeftBraceToken:
				b.open(stmt)
				stmt = stmt[:0]
				continue
			case css.SemicolonToken:
				b.statement(stmt)
				stmt = stmt[:0]
				continue
			case css.RightBraceToken:
				b.statement(stmt)
				b.close()
				stmt = stmt[:0]
				continue
			}
		}

		if len(stmt) == 0 && (tok.blank() || tt == css.CDOToken || tt == css.CDCToken) {
			continue
		}
		stmt = append(stmt, tok)

		switch tt {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			if depth > 0 {
				depth--
			}
		}
	}
	if err := lex.Err(); err != nil && !errors.Is(err, io.EOF) {
		p.log.Debug("CSS lexer error", zap.Error(err))
	}
	b.statement(stmt)
	if len(b.stack) > 1 {
		p.log.Debug("Unbalanced blocks in stylesheet", zap.Int("open", len(b.stack)-1))
	}
	return sheet
}

type builder struct {
	sheet *Stylesheet
	log   *zap.Logger
	stack []*[]Node
}

func (b *builder) add(n Node) {
	cur := b.stack[len(b.stack)-1]
	*cur = append(*cur, n)
}

// trimmed drops trailing whitespace and comments.
func trimmed(stmt []token) []token {
	for len(stmt) > 0 && stmt[len(stmt)-1].blank() {
		stmt = stmt[:len(stmt)-1]
	}
	return stmt
}

func (b *builder) text(from, to int) string {
	return b.sheet.Text[from:to]
}

func (b *builder) rule(stmt []token) *Rule {
	stmt = trimmed(stmt)
	if len(stmt) == 0 {
		return &Rule{}
	}
	r := &Rule{Start: b.sheet.Position(stmt[0].off)}
	end := stmt[len(stmt)-1].end
	if stmt[0].tt == css.AtKeywordToken {
		r.AtKeyword = strings.ToLower(b.text(stmt[0].off, stmt[0].end))
		r.Prelude = strings.TrimSpace(b.text(stmt[0].end, end))
		return r
	}
	r.Prelude = b.text(stmt[0].off, end)
	return r
}

func (b *builder) open(stmt []token) {
	r := b.rule(stmt)
	b.add(r)
	b.stack = append(b.stack, &r.Children)
}

func (b *builder) close() {
	if len(b.stack) > 1 {
		b.stack = b.stack[:len(b.stack)-1]
	}
}

func (b *builder) statement(stmt []token) {
	stmt = trimmed(stmt)
	if len(stmt) == 0 {
		return
	}
	if stmt[0].tt == css.AtKeywordToken {
		b.add(b.rule(stmt))
		return
	}

	colon := -1
	depth := 0
	for i, t := range stmt {
		switch t.tt {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			depth--
		case css.ColonToken:
			if depth == 0 {
				colon = i
			}
		}
		if colon >= 0 {
			break
		}
	}
	if colon <= 0 || len(b.stack) == 1 {
		b.log.Debug("Skipping unexpected statement", zap.String("text", b.text(stmt[0].off, stmt[len(stmt)-1].end)))
		return
	}

	prop := trimmed(stmt[:colon])
	d := &Declaration{
		Property: b.text(stmt[0].off, prop[len(prop)-1].end),
		Start:    b.sheet.Position(stmt[0].off),
	}

	value := stmt[colon+1:]
	for len(value) > 0 && value[0].blank() {
		value = value[1:]
	}
	if len(value) == 0 {
		end := stmt[colon].end
		d.ValueSpan = Span{Start: end, End: end}
	} else {
		d.ValueSpan = Span{Start: value[0].off, End: value[len(value)-1].end}
		d.Value = b.text(d.ValueSpan.Start, d.ValueSpan.End)
	}
	b.add(d)
}

// positioner maps byte offsets to line and UTF-16 column.
type positioner struct {
	text  string
	lines []int
}

func newPositioner(text string) positioner {
	p := positioner{text: text, lines: []int{0}}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			p.lines = append(p.lines, i+1)
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				continue
			}
			p.lines = append(p.lines, i+1)
		}
	}
	return p
}

func (p positioner) at(off int) Position {
	off = max(0, min(off, len(p.text)))
	line, found := slices.BinarySearch(p.lines, off)
	if !found {
		line--
	}
	return Position{Line: line + 1, Column: UTF16Len(p.text[p.lines[line]:off])}
}

// UTF16Len returns length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
