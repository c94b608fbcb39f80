// Package inline replaces local file references in compiled stylesheets with
// data URIs, locating files relative to the original authoring sources.
package inline

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"stylepipe/css"
	"stylepipe/srcmap"
)

// Resolver turns reference found in stylesheet into data URI.
type Resolver interface {
	Resolve(startDir, ref, exclude string) (string, bool)
}

// Rewriter walks declarations of compiled stylesheet and inlines url()
// references it is able to resolve.
type Rewriter struct {
	resolver Resolver
	parser   *css.Parser
	log      *zap.Logger
}

func New(resolver Resolver, log *zap.Logger) *Rewriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Rewriter{
		resolver: resolver,
		parser:   css.NewParser(log),
		log:      log.Named("inline"),
	}
}

// splice is replacement of a single url() token.
type splice struct {
	start, end int
	text       string
}

// Rewrite inlines references in compiled text. Map must describe text and
// have absolute sources, if m is nil map embedded into text is used.
// Returned stylesheet has sourceMappingURL comment removed, returned map is
// a copy of the input one adjusted to the rewritten text.
func (r *Rewriter) Rewrite(text string, m *srcmap.Map) (string, *srcmap.Map, error) {
	var err error
	if m == nil {
		if m, err = srcmap.Extract(text); err != nil {
			return "", nil, fmt.Errorf("unable to read inline source map: %w", err)
		}
	} else if text, err = srcmap.Embed(text, m); err != nil {
		return "", nil, fmt.Errorf("unable to embed source map: %w", err)
	}

	loc, err := m.Locator()
	if err != nil {
		return "", nil, err
	}

	sheet := r.parser.Parse(text)

	var splices []splice
	for _, d := range sheet.Declarations() {
		if !css.HasURL(d.Value) {
			continue
		}
		orig, ok := loc.Source(d.Start.Line, d.Start.Column)
		if !ok {
			r.log.Debug("No original position for declaration",
				zap.String("property", d.Property), zap.Int("line", d.Start.Line), zap.Int("column", d.Start.Column))
			continue
		}
		dir := filepath.Dir(filepath.FromSlash(orig.Source))
		splices = append(splices, r.declaration(dir, d)...)
	}
	if len(splices) == 0 {
		return srcmap.StripComment(text), m.Clone(), nil
	}

	out := m.Clone()
	edits := make([]srcmap.Edit, 0, len(splices))
	var sb strings.Builder
	prev := 0
	for _, s := range splices {
		sb.WriteString(text[prev:s.start])
		sb.WriteString(s.text)
		prev = s.end

		old := text[s.start:s.end]
		if strings.ContainsAny(old, "\r\n") {
			r.log.Debug("Multiline url() replaced, map columns not adjusted", zap.String("url", old))
			continue
		}
		pos := sheet.Position(s.start)
		edits = append(edits, srcmap.Edit{
			Line:   pos.Line,
			Column: pos.Column,
			OldLen: css.UTF16Len(old),
			NewLen: css.UTF16Len(s.text),
		})
	}
	sb.WriteString(text[prev:])

	if err := out.Shift(edits); err != nil {
		return "", nil, err
	}
	r.log.Debug("Inlined references", zap.Int("count", len(splices)))
	return srcmap.StripComment(sb.String()), out, nil
}

// declaration resolves every url() token of the declaration value. Tokens are
// resolved concurrently, result is in token order.
func (r *Rewriter) declaration(dir string, d *css.Declaration) []splice {
	parts := css.SplitURLs(d.Value)
	found := make([]string, len(parts))

	var wg sync.WaitGroup
	for i, p := range parts {
		if !p.URL {
			continue
		}
		wg.Go(func() {
			if uri, ok := r.resolver.Resolve(dir, p.Path, ""); ok {
				found[i] = uri
			}
		})
	}
	wg.Wait()

	var out []splice
	for i, p := range parts {
		if len(found[i]) == 0 {
			continue
		}
		start := d.ValueSpan.Start + p.Offset
		out = append(out, splice{start: start, end: start + len(p.Text), text: found[i]})
	}
	return out
}
