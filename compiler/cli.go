package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"stylepipe/config"
	"stylepipe/srcmap"
)

const defaultBinary = "sass"

// CLI runs Dart Sass executable for every compilation.
type CLI struct {
	binary  string
	timeout time.Duration
	log     *zap.Logger
}

func NewCLI(cfg *config.CompilerConfig, log *zap.Logger) (*CLI, error) {
	binary := cfg.Binary
	if len(binary) == 0 {
		binary = defaultBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("unable to find sass executable '%s': %w", binary, err)
	}
	return &CLI{binary: path, timeout: cfg.Timeout, log: log.Named("sass-cli")}, nil
}

// args builds command line. Output goes to stdout, so the only way to get
// source map back is to embed it.
func (c *CLI) args(req Request) []string {
	args := []string{"--no-color", "--no-unicode"}
	if req.Style.Compressed() {
		args = append(args, "--style=compressed")
	} else {
		args = append(args, "--style=expanded")
	}
	if req.SourceMap {
		args = append(args, "--embed-source-map", "--source-map-urls=absolute")
	} else {
		args = append(args, "--no-source-map")
	}
	if syntax(req.File) == "INDENTED" {
		args = append(args, "--indented")
	}
	for _, p := range includePaths(req) {
		args = append(args, "--load-path="+p)
	}
	return append(args, req.File)
}

func (c *CLI) Compile(ctx context.Context, req Request) (Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := c.args(req)
	c.log.Debug("Running sass", zap.String("binary", c.binary), zap.Strings("args", args))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("sass did not finish: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("unable to run sass: %w", err)
		}
		return Result{}, parseStderr(stderr.String())
	}
	if stderr.Len() > 0 {
		c.log.Debug("Sass messages", zap.String("stderr", strings.TrimSpace(stderr.String())))
	}

	res := Result{CSS: strings.TrimRight(stdout.String(), "\r\n")}
	if !req.SourceMap {
		return res, nil
	}
	m, err := srcmap.Extract(res.CSS)
	if err != nil {
		return Result{}, fmt.Errorf("unable to get source map from sass output: %w", err)
	}
	data, err := m.Marshal()
	if err != nil {
		return Result{}, err
	}
	res.CSS, res.Map = srcmap.StripComment(res.CSS), string(data)
	return res, nil
}

func (c *CLI) Close() error {
	return nil
}

var (
	// "  src/app.scss 12:3  root stylesheet"
	traceLine = regexp.MustCompile(`^\s+(\S.*?)\s+(\d+):(\d+)\s+\S`)
	// source excerpt: "12 | a {", "   |    ^", "  ,", "  '"
	excerptLine = regexp.MustCompile(`^\s*\d*\s*[|,'╷│╵]`)
)

// parseStderr looks for the message and its innermost location in Dart Sass
// error report. Unrecognized output is returned as is.
func parseStderr(stderr string) *Error {
	stderr = strings.TrimSpace(stderr)

	var msg string
	for line := range strings.Lines(stderr) {
		line = strings.TrimRight(line, "\r\n")
		if len(msg) == 0 {
			if m, ok := strings.CutPrefix(line, "Error: "); ok {
				msg = m
			}
			continue
		}
		if excerptLine.MatchString(line) {
			continue
		}
		if m := traceLine.FindStringSubmatch(line); m != nil {
			return &Error{Text: fmt.Sprintf("%s:%s: error: %s", m[1], m[2], msg)}
		}
	}
	return &Error{Text: stderr}
}
