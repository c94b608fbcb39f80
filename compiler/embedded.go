package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bep/godartsass/v2"
	parse "github.com/tdewolff/parse/v2"
	"go.uber.org/zap"

	"stylepipe/config"
)

// Embedded talks to long running Dart Sass process using embedded protocol.
type Embedded struct {
	t   *godartsass.Transpiler
	log *zap.Logger
}

// NewEmbedded starts Dart Sass. Binary from configuration is used, "sass"
// from PATH otherwise.
func NewEmbedded(cfg *config.CompilerConfig, log *zap.Logger) (*Embedded, error) {
	log = log.Named("dart-sass")
	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: cfg.Binary,
		Timeout:                  cfg.Timeout,
		LogEventHandler: func(ev godartsass.LogEvent) {
			switch ev.Type {
			case godartsass.LogEventTypeDebug:
				log.Debug("Sass debug", zap.String("message", ev.Message))
			case godartsass.LogEventTypeDeprecated:
				log.Debug("Sass deprecation", zap.String("type", ev.DeprecationType), zap.String("message", ev.Message))
			default:
				log.Warn("Sass warning", zap.String("message", ev.Message))
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to start dart sass: %w", err)
	}
	return &Embedded{t: t, log: log}, nil
}

func (e *Embedded) Compile(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	source, err := os.ReadFile(req.File)
	if err != nil {
		return Result{}, fmt.Errorf("unable to read stylesheet: %w", err)
	}

	style := godartsass.OutputStyleExpanded
	if req.Style.Compressed() {
		style = godartsass.OutputStyleCompressed
	}
	res, err := e.t.Execute(godartsass.Args{
		Source:          string(source),
		URL:             fileURL(req.File),
		SourceSyntax:    godartsass.SourceSyntax(syntax(req.File)),
		OutputStyle:     style,
		EnableSourceMap: req.SourceMap,
		IncludePaths:    includePaths(req),
	})
	if err != nil {
		var serr godartsass.SassError
		if errors.As(err, &serr) {
			return Result{}, sassError(serr, req.File, source)
		}
		return Result{}, fmt.Errorf("dart sass failed: %w", err)
	}
	return Result{CSS: res.CSS, Map: res.SourceMap}, nil
}

func (e *Embedded) Close() error {
	if err := e.t.Close(); err != nil && !errors.Is(err, godartsass.ErrShutdown) {
		return err
	}
	return nil
}

// sassError converts span offset of the failure into line number. Failures
// in imported files are located by reading them.
func sassError(serr godartsass.SassError, file string, source []byte) *Error {
	name := file
	if u := serr.Span.Url; len(u) > 0 {
		name = filePath(u)
	}
	if name != file {
		data, err := os.ReadFile(name)
		if err != nil {
			// location is useless without content, keep whatever we have
			return &Error{Text: serr.Error()}
		}
		source = data
	}
	line, _, _ := parse.Position(bytes.NewReader(source), serr.Span.Start.Offset)
	return newError(name, line, serr.Message)
}

func fileURL(name string) string {
	name = filepath.ToSlash(name)
	if !strings.HasPrefix(name, "/") {
		// windows drive letter
		name = "/" + name
	}
	return (&url.URL{Scheme: "file", Path: name}).String()
}

func filePath(u string) string {
	p, err := url.Parse(u)
	if err != nil || p.Scheme != "file" {
		return u
	}
	name := p.Path
	if len(name) > 2 && name[0] == '/' && name[2] == ':' {
		name = name[1:]
	}
	return filepath.FromSlash(name)
}
