package css

import "regexp"

// urlPattern captures path portion of url() token: quotes, query and
// fragment are left outside of the group.
var urlPattern = regexp.MustCompile(`url\s*\(\s*['"]?([^'"?#)]*)[^)]*\)`)

// Part is piece of declaration value: either literal text or complete
// url(...) token.
type Part struct {
	Text string
	// byte offset of Text within value
	Offset int
	URL    bool
	// url path without quotes, query and fragment
	Path string
}

// HasURL reports whether value references anything via url().
func HasURL(value string) bool {
	return urlPattern.MatchString(value)
}

// SplitURLs splits value into alternating literal and url parts. Joining
// Text of all parts gives back the value. Empty literal parts are omitted.
func SplitURLs(value string) []Part {
	var (
		parts []Part
		prev  int
	)
	for _, m := range urlPattern.FindAllStringSubmatchIndex(value, -1) {
		if m[0] > prev {
			parts = append(parts, Part{Text: value[prev:m[0]], Offset: prev})
		}
		parts = append(parts, Part{Text: value[m[0]:m[1]], Offset: m[0], URL: true, Path: value[m[2]:m[3]]})
		prev = m[1]
	}
	if prev < len(value) {
		parts = append(parts, Part{Text: value[prev:], Offset: prev})
	}
	return parts
}
