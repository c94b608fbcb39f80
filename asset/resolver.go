// Package asset locates files referenced from stylesheets and turns them into
// base64 data URIs.
package asset

import (
	"encoding/base64"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Resolver searches for referenced files starting from the directory of the
// original source and wandering through the neighbouring directories until
// the root is reached. Safe for concurrent use.
type Resolver struct {
	root     string
	maxDepth int
	maxSize  int64
	log      *zap.Logger

	mu    sync.Mutex
	cache map[cacheKey]cacheValue
}

type cacheKey struct {
	start, ref, exclude string
}

type cacheValue struct {
	uri string
	ok  bool
}

type Option func(*Resolver)

// WithMaxDepth limits how many directory hops search may make from the
// starting directory, 0 means no limit.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		r.maxDepth = depth
	}
}

// WithMaxSize prevents inlining of files larger than size bytes, 0 means no
// limit.
func WithMaxSize(size int64) Option {
	return func(r *Resolver) {
		r.maxSize = size
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log.Named("asset")
		}
	}
}

// New creates resolver bounded by root directory. Relative root is resolved
// against current working directory.
func New(root string, opts ...Option) *Resolver {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	r := &Resolver{
		root:  filepath.Clean(root),
		log:   zap.NewNop(),
		cache: make(map[cacheKey]cacheValue),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Root() string {
	return r.root
}

// Resolve looks for ref relative to startDir and returns
// "url(data:<mime>;base64,<data>)" when file is found. Query and fragment
// parts of ref are ignored. When ref is not directly under startDir every
// subdirectory of startDir and its parent (except exclude, the directory
// search came from) are searched in turn, first match wins. Search never
// ascends to the root itself and never descends into symbolic links. Search
// started at the root only descends.
func (r *Resolver) Resolve(startDir, ref, exclude string) (string, bool) {
	ref = Path(ref)
	if len(ref) == 0 || IsExternal(ref) {
		return "", false
	}

	key := cacheKey{start: filepath.Clean(startDir), ref: ref, exclude: exclude}
	r.mu.Lock()
	v, found := r.cache[key]
	r.mu.Unlock()
	if found {
		return v.uri, v.ok
	}

	v.uri, v.ok = r.search(key.start, filepath.FromSlash(ref), exclude, 0)
	if !v.ok {
		r.log.Debug("Unable to resolve asset", zap.String("ref", ref), zap.String("start", key.start))
	}

	r.mu.Lock()
	r.cache[key] = v
	r.mu.Unlock()
	return v.uri, v.ok
}

func (r *Resolver) search(start, ref, exclude string, depth int) (string, bool) {
	fi, err := os.Stat(start)
	if err != nil || !fi.IsDir() {
		return "", false
	}

	if uri, ok := r.encode(filepath.Join(start, ref)); ok {
		return uri, true
	}

	if r.maxDepth > 0 && depth >= r.maxDepth {
		return "", false
	}
	var next []string
	switch parent := filepath.Dir(start); {
	case start == r.root:
		next = subdirs(start)
	case !r.inside(start) || parent == r.root || parent == start:
		return "", false
	default:
		next = append(subdirs(start), parent)
	}

	for _, dir := range next {
		if dir == exclude {
			continue
		}
		if uri, ok := r.search(dir, ref, start, depth+1); ok {
			return uri, true
		}
	}
	return "", false
}

// inside reports whether dir is strictly below the root.
func (r *Resolver) inside(dir string) bool {
	rel, err := filepath.Rel(r.root, dir)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// subdirs returns immediate subdirectories in lexical order, symbolic links
// are skipped.
func subdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type()&fs.ModeSymlink != 0 || !e.IsDir() {
			continue
		}
		dirs = append(dirs, filepath.Join(dir, e.Name()))
	}
	slices.Sort(dirs)
	return dirs
}

func (r *Resolver) encode(name string) (string, bool) {
	fi, err := os.Stat(name)
	if err != nil || !fi.Mode().IsRegular() {
		return "", false
	}
	if r.maxSize > 0 && fi.Size() > r.maxSize {
		r.log.Debug("Asset is too large to inline", zap.String("path", name), zap.Int64("size", fi.Size()), zap.Int64("limit", r.maxSize))
		return "", false
	}

	data, err := os.ReadFile(name)
	if err != nil {
		r.log.Warn("Unable to read asset", zap.String("path", name), zap.Error(err))
		return "", false
	}

	mimeType := DetectMIME(name, data)
	if !validate(mimeType, data) {
		r.log.Warn("Asset content does not match its extension", zap.String("path", name), zap.String("mime", mimeType))
	}
	r.log.Debug("Inlining asset", zap.String("path", name), zap.String("mime", mimeType), zap.Int("bytes", len(data)))
	return DataURI(mimeType, data), true
}

// DataURI wraps data into css url() token.
func DataURI(mimeType string, data []byte) string {
	var sb strings.Builder
	sb.Grow(len(mimeType) + base64.StdEncoding.EncodedLen(len(data)) + 19)
	sb.WriteString("url(data:")
	sb.WriteString(mimeType)
	sb.WriteString(";base64,")
	sb.WriteString(base64.StdEncoding.EncodeToString(data))
	sb.WriteString(")")
	return sb.String()
}

// Path removes query and fragment from url reference.
func Path(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return strings.TrimSpace(ref)
}

// IsExternal reports references which could never be local files: data URIs,
// anything with a scheme and protocol relative URLs.
func IsExternal(ref string) bool {
	if strings.HasPrefix(ref, "//") {
		return true
	}
	scheme, _, found := strings.Cut(ref, ":")
	if !found || len(scheme) < 2 {
		// "c:" is a drive letter rather than scheme
		return false
	}
	for i, c := range scheme {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}
