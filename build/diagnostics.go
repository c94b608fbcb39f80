package build

import (
	"io"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
)

const unparsedMarker = "unparsed compiler diagnostic"

var diagnosticPattern = regexp.MustCompile(`(.*):(\d+):\s*error:\s*(.*)`)

// FormatDiagnostic turns "<file>:<line>: error: <message>" into
// "<absolute file>:<line>:0: <message>". Relative file names are resolved
// against cwd. Text in any other shape is kept after unparsed marker.
func FormatDiagnostic(text, cwd string) string {
	m := diagnosticPattern.FindStringSubmatch(text)
	if m == nil {
		return unparsedMarker + "\n" + strings.TrimRight(text, "\r\n")
	}
	file := filepath.FromSlash(m[1])
	if !filepath.IsAbs(file) {
		file = filepath.Join(cwd, file)
	}
	return file + ":" + m[2] + ":0: " + strings.TrimSpace(m[3])
}

// Diagnostics collects messages of the whole run, identical messages are
// kept once. Safe for concurrent use.
type Diagnostics struct {
	mu    sync.Mutex
	items []string
}

// Add records message and reports whether it was new.
func (d *Diagnostics) Add(msg string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if slices.Contains(d.items, msg) {
		return false
	}
	d.items = append(d.items, msg)
	return true
}

func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Items returns messages in order of arrival.
func (d *Diagnostics) Items() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.items)
}

// Flush writes all messages between banner rules of the given width, no
// rules are drawn when width is 0. Nothing is written when there are no
// messages. Collected messages are dropped.
func (d *Diagnostics) Flush(w io.Writer, width int) error {
	d.mu.Lock()
	items := d.items
	d.items = nil
	d.mu.Unlock()

	if len(items) == 0 {
		return nil
	}

	var sb strings.Builder
	if width > 0 {
		sb.WriteString(strings.Repeat("▼", width))
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	for i, item := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(item)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	if width > 0 {
		sb.WriteString(strings.Repeat("▲", width))
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
