package asset

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

const defaultMIME = "application/octet-stream"

// types commonly referenced from stylesheets, registries disagree on some of
// them (fonts especially) so these take precedence
var knownTypes = map[string]string{
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".avif":  "image/avif",
	".bmp":   "image/bmp",
	".ico":   "image/x-icon",
	".cur":   "image/x-icon",
	".svg":   "image/svg+xml",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",
}

// DetectMIME returns MIME type for a file, extension wins over content.
func DetectMIME(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := knownTypes[ext]; ok {
		return t
	}
	if len(ext) > 1 {
		if t := filetype.GetType(ext[1:]); t != filetype.Unknown && len(t.MIME.Value) > 0 {
			return t.MIME.Value
		}
		if t := mime.TypeByExtension(ext); len(t) > 0 {
			// drop parameters, data URI must stay compact
			t, _, _ = strings.Cut(t, ";")
			return t
		}
	}
	if t, err := filetype.Match(data); err == nil && t != filetype.Unknown {
		return t.MIME.Value
	}
	return defaultMIME
}

// validate performs sanity check of font files which are most likely to be
// misnamed.
func validate(mimeType string, data []byte) bool {
	switch mimeType {
	case "font/woff":
		return filetype.Is(data, "woff")
	case "font/woff2":
		return filetype.Is(data, "woff2")
	case "font/ttf":
		return filetype.Is(data, "ttf")
	case "font/otf":
		return filetype.Is(data, "otf")
	}
	return true
}
