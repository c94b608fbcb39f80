package srcmap

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	parentRefs   = regexp.MustCompile(`\.\./`)
	extraSlashes = regexp.MustCompile(`/{2,}`)
)

// Normalizer removes build machine artifacts from map sources: compiler
// working directory, "../" hops and file URL schemes. Every source becomes
// absolute path under Root.
type Normalizer struct {
	// working directory of the compiler
	Cwd string
	// directory sources are re-rooted to
	Root string
}

// Normalize parses map text and normalizes its sources.
func (n Normalizer) Normalize(data []byte) (*Map, error) {
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	n.Apply(m)
	return m, nil
}

// Apply normalizes map sources in place. Applying it to already normalized
// map changes nothing.
func (n Normalizer) Apply(m *Map) {
	strip := n.pattern()
	for i, src := range m.Sources {
		m.Sources[i] = n.source(strip, joinRoot(m.SourceRoot, src))
	}
	m.SourceRoot = ""
}

// pattern matches project root and working directory as whole path
// components anywhere in the path, separators are matched loosely since
// compilers mix them on Windows. Root is preferred when both match.
func (n Normalizer) pattern() *regexp.Regexp {
	var alts []string
	for _, dir := range []string{n.Root, n.Cwd} {
		dir = strings.TrimRight(filepath.ToSlash(dir), "/")
		if len(dir) == 0 {
			continue
		}
		segs := strings.Split(dir, "/")
		for i := range segs {
			segs[i] = regexp.QuoteMeta(segs[i])
		}
		alts = append(alts, strings.Join(segs, `[\\/]`))
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?:` + strings.Join(alts, "|") + `)(?:[\\/]|$)`)
}

func (n Normalizer) source(strip *regexp.Regexp, src string) string {
	src = fromFileURL(src)
	src = strings.ReplaceAll(src, `\`, "/")
	if strip != nil {
		src = strip.ReplaceAllString(src, "/")
	}
	src = parentRefs.ReplaceAllString(src, "")
	src = extraSlashes.ReplaceAllString(src, "/")
	src = strings.TrimPrefix(src, "/")
	return filepath.Join(n.Root, filepath.FromSlash(src))
}

// fromFileURL turns "file:///a/b%20c" into "/a/b c", anything else is
// returned as is.
func fromFileURL(src string) string {
	if !strings.HasPrefix(strings.ToLower(src), "file:") {
		return src
	}
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	p := u.Path
	if len(p) == 0 {
		p = u.Opaque
	}
	// "/C:/dir" on Windows
	if len(p) > 2 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return p
}

func joinRoot(root, src string) string {
	if len(root) == 0 || strings.HasPrefix(src, "/") || strings.Contains(src, ":") {
		return src
	}
	return strings.TrimRight(root, "/") + "/" + src
}

// Finalize prepares normalized map for publishing: sources become rooted
// project relative paths ("/" + path relative to root, forward slashes),
// generated file name and embedded sources are dropped.
func (m *Map) Finalize(root string) {
	for i, src := range m.Sources {
		if rel, err := filepath.Rel(root, src); err == nil {
			src = rel
		}
		m.Sources[i] = "/" + strings.TrimPrefix(filepath.ToSlash(src), "/")
	}
	m.File = ""
	m.SourcesContent = nil
}
