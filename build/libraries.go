package build

import (
	"os"
	"path/filepath"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Libraries is ordered set of include directories passed to compiler.
// Order of addition is kept as it defines import precedence.
type Libraries struct {
	log *zap.Logger

	mu    sync.RWMutex
	paths []string
}

func NewLibraries(log *zap.Logger, paths ...string) *Libraries {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Libraries{log: log.Named("libraries")}
	l.Add(paths...)
	return l
}

// Add appends directories which are not in the set yet. Directories are
// not required to exist.
func (l *Libraries) Add(paths ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range paths {
		if len(p) == 0 {
			continue
		}
		p = filepath.Clean(p)
		if slices.Contains(l.paths, p) {
			continue
		}
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			l.log.Debug("Library path is not a directory", zap.String("path", p))
		}
		l.paths = append(l.paths, p)
	}
}

// Paths returns snapshot of the set.
func (l *Libraries) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.paths)
}
