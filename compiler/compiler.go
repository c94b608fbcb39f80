// Package compiler drives external Sass compiler. Two backends are
// available: Dart Sass embedded protocol and Dart Sass command line.
package compiler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"stylepipe/common"
	"stylepipe/config"
)

// Request describes single compilation.
type Request struct {
	// absolute path of the stylesheet
	File         string
	IncludePaths []string
	Style        common.OutputStyle
	SourceMap    bool
}

// Result of successful compilation. Map is empty unless it was requested,
// CSS never carries inline source map.
type Result struct {
	CSS string
	Map string
}

// Compiler compiles stylesheets. Implementations must be safe for concurrent
// use.
type Compiler interface {
	Compile(ctx context.Context, req Request) (Result, error)
	Close() error
}

// Error is compiler rejection of the input. Text is "<file>:<line>: error:
// <message>" when location is known and raw compiler output otherwise.
type Error struct {
	Text string
}

func (e *Error) Error() string {
	return e.Text
}

func newError(file string, line int, msg string) *Error {
	return &Error{Text: fmt.Sprintf("%s:%d: error: %s", file, line, strings.TrimSpace(msg))}
}

// New creates compiler backend selected by configuration.
func New(cfg *config.CompilerConfig, log *zap.Logger) (Compiler, error) {
	switch cfg.Kind {
	case common.CompilerKindEmbedded:
		return NewEmbedded(cfg, log)
	case common.CompilerKindCli:
		return NewCLI(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported compiler kind '%s'", cfg.Kind)
	}
}

// syntax selects source syntax by file extension.
func syntax(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".sass":
		return "INDENTED"
	case ".css":
		return "CSS"
	default:
		return "SCSS"
	}
}

// includePaths puts directory of the stylesheet in front of requested paths,
// duplicates are dropped.
func includePaths(req Request) []string {
	seen := make(map[string]struct{}, len(req.IncludePaths)+1)
	out := make([]string, 0, len(req.IncludePaths)+1)
	for _, p := range append([]string{filepath.Dir(req.File)}, req.IncludePaths...) {
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
