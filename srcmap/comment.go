package srcmap

import (
	"encoding/base64"
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrNoMap is returned by Extract when stylesheet carries no inline map.
var ErrNoMap = errors.New("no inline source map")

var mappingURLComment = regexp.MustCompile(`/\*[#@]\s*sourceMappingURL=([^\s*]*)\s*\*/`)

const inlinePrefix = "data:application/json;base64,"

// Comment returns "/*# sourceMappingURL=<ref> */".
func Comment(ref string) string {
	return "/*# sourceMappingURL=" + ref + " */"
}

// Embed replaces sourceMappingURL comment of the stylesheet with one
// carrying the whole map as base64 data URI. If stylesheet has no such
// comment it is appended on a new line.
func Embed(css string, m *Map) (string, error) {
	data, err := m.Marshal()
	if err != nil {
		return "", err
	}
	comment := Comment(inlinePrefix + base64.StdEncoding.EncodeToString(data))
	if mappingURLComment.MatchString(css) {
		// literal replacement, comment text must not be expanded
		return mappingURLComment.ReplaceAllLiteralString(css, comment), nil
	}
	if len(css) > 0 && !strings.HasSuffix(css, "\n") {
		css += "\n"
	}
	return css + comment, nil
}

// URL returns reference from the last sourceMappingURL comment.
func URL(css string) (string, bool) {
	all := mappingURLComment.FindAllStringSubmatch(css, -1)
	if len(all) == 0 {
		return "", false
	}
	return all[len(all)-1][1], true
}

// Extract reads map embedded into the stylesheet as data URI. Both base64
// and percent-encoded payloads are understood.
func Extract(css string) (*Map, error) {
	ref, ok := URL(css)
	if !ok || !strings.HasPrefix(ref, "data:") {
		return nil, ErrNoMap
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, &ParseError{Err: errors.New("malformed data URI")}
	}

	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(meta, ";base64") {
		data, err = base64.StdEncoding.DecodeString(payload)
	} else {
		var s string
		s, err = url.PathUnescape(payload)
		data = []byte(s)
	}
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return Parse(data)
}

// StripComment removes sourceMappingURL comments together with whitespace
// preceding them.
func StripComment(css string) string {
	locs := mappingURLComment.FindAllStringIndex(css, -1)
	if len(locs) == 0 {
		return css
	}
	var sb strings.Builder
	prev := 0
	for _, loc := range locs {
		sb.WriteString(strings.TrimRight(css[prev:loc[0]], " \t\r\n"))
		prev = loc[1]
	}
	sb.WriteString(css[prev:])
	return sb.String()
}
