// Package build compiles stylesheets into CSS with source maps and inlined
// assets.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stylepipe/asset"
	"stylepipe/compiler"
	"stylepipe/config"
	"stylepipe/inline"
	"stylepipe/srcmap"
)

// UnitError is returned for unit which failed to compile. Its diagnostic is
// already recorded.
type UnitError struct {
	Path       string
	Diagnostic string
	Err        error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unable to compile '%s': %v", e.Path, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// Orchestrator drives compile units through validation, mapping and
// rewriting.
type Orchestrator struct {
	compiler compiler.Compiler
	libs     *Libraries
	diags    *Diagnostics
	resolver inline.Resolver
	rewriter *inline.Rewriter
	root     string
	workers  int
	rpt      *config.Report
	log      *zap.Logger
}

type Option func(*Orchestrator)

func WithLibraries(libs *Libraries) Option {
	return func(o *Orchestrator) {
		o.libs = libs
	}
}

func WithDiagnostics(d *Diagnostics) Option {
	return func(o *Orchestrator) {
		o.diags = d
	}
}

// WithResolver replaces default asset resolver bounded by root.
func WithResolver(r inline.Resolver) Option {
	return func(o *Orchestrator) {
		o.resolver = r
	}
}

// WithRoot sets project root: source map paths are made relative to it and
// asset search does not leave it. Defaults to working directory.
func WithRoot(root string) Option {
	return func(o *Orchestrator) {
		o.root = root
	}
}

// WithWorkers sets number of units compiled simultaneously, 0 means number
// of CPUs.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		o.workers = n
	}
}

// WithReport stores intermediate source maps in debug report.
func WithReport(rpt *config.Report) Option {
	return func(o *Orchestrator) {
		o.rpt = rpt
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

func New(c compiler.Compiler, opts ...Option) *Orchestrator {
	o := &Orchestrator{compiler: c, workers: 1, log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.root) == 0 {
		o.root, _ = os.Getwd()
	}
	if abs, err := filepath.Abs(o.root); err == nil {
		o.root = abs
	}
	if o.libs == nil {
		o.libs = NewLibraries(o.log)
	}
	if o.workers <= 0 {
		o.workers = runtime.NumCPU()
	}
	if o.diags == nil {
		o.diags = &Diagnostics{}
	}
	if o.resolver == nil {
		o.resolver = asset.New(o.root, asset.WithLogger(o.log))
	}
	o.rewriter = inline.New(o.resolver, o.log)
	o.log = o.log.Named("build")
	return o
}

func (o *Orchestrator) Diagnostics() *Diagnostics {
	return o.diags
}

func (o *Orchestrator) Libraries() *Libraries {
	return o.libs
}

// RegisterLibraries adds explicit include directories.
func (o *Orchestrator) RegisterLibraries(paths ...string) {
	o.libs.Add(paths...)
}

// Run compiles all units. Units bases are registered as libraries before
// the first compilation. Failed units are recorded as diagnostics and do not
// stop the run, emit errors and cancellation do. Outputs are emitted and
// diagnostics recorded in units order regardless of number of workers.
func (o *Orchestrator) Run(ctx context.Context, units []*Unit, emit func(File) error) error {
	for _, u := range units {
		o.libs.Add(u.Base)
	}

	if o.workers <= 1 {
		for _, u := range units {
			files, err := o.compile(ctx, u)
			if err := o.deliver(files, err, emit); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]unitResult, len(units))
	for i := range results {
		results[i].done = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, u := range units {
			g.Go(func() error {
				defer close(results[i].done)
				if err := gctx.Err(); err != nil {
					results[i].err = err
					return err
				}
				results[i].files, results[i].err = o.compile(gctx, u)
				var uerr *UnitError
				if results[i].err != nil && !errors.As(results[i].err, &uerr) {
					return results[i].err
				}
				return nil
			})
		}
	}()

	// results are consumed in units order as soon as they are ready
	var err error
	for i := range units {
		<-results[i].done
		if err = o.deliver(results[i].files, results[i].err, emit); err != nil {
			break
		}
	}
	cancel()
	<-launched
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

type unitResult struct {
	files []File
	err   error
	done  chan struct{}
}

// deliver records diagnostic of failed unit or hands its outputs to emit.
func (o *Orchestrator) deliver(files []File, err error, emit func(File) error) error {
	if err != nil {
		var uerr *UnitError
		if errors.As(err, &uerr) {
			o.record(uerr)
			return nil
		}
		return err
	}
	for _, f := range files {
		if err := emit(f); err != nil {
			return fmt.Errorf("unable to emit '%s': %w", f.Path, err)
		}
	}
	return nil
}

func (o *Orchestrator) setState(u *Unit, s State) {
	o.log.Debug("Unit state", zap.String("path", u.Path), zap.Stringer("from", u.state), zap.Stringer("to", s))
	u.state = s
}

func (o *Orchestrator) fail(u *Unit, text string, err error) error {
	o.setState(u, StateFailed)
	return &UnitError{Path: u.Path, Diagnostic: text, Err: err}
}

func (o *Orchestrator) record(uerr *UnitError) {
	o.log.Debug("Unit failed", zap.String("path", uerr.Path), zap.Error(uerr.Err))
	if !o.diags.Add(uerr.Diagnostic) {
		o.log.Debug("Duplicate diagnostic dropped", zap.String("text", uerr.Diagnostic))
	}
}

func (o *Orchestrator) compileFailed(u *Unit, err error) error {
	text := err.Error()
	var cerr *compiler.Error
	if errors.As(err, &cerr) {
		text = cerr.Text
	}
	return o.fail(u, FormatDiagnostic(text, u.Cwd), err)
}

func (o *Orchestrator) mapFailed(u *Unit, err error) error {
	return o.fail(u, fmt.Sprintf("%s:0:0: source map: %v", u.Path, err), err)
}

// Compile processes single unit and returns compiled stylesheet followed by
// its source map. Base of the unit is registered as library. Failure is
// recorded as diagnostic and reported as *UnitError, context errors are
// returned as is.
func (o *Orchestrator) Compile(ctx context.Context, u *Unit) ([]File, error) {
	files, err := o.compile(ctx, u)
	var uerr *UnitError
	if errors.As(err, &uerr) {
		o.record(uerr)
	}
	return files, err
}

func (o *Orchestrator) compile(ctx context.Context, u *Unit) ([]File, error) {
	o.libs.Add(u.Base)

	req := compiler.Request{File: u.Path, IncludePaths: o.libs.Paths(), Style: u.Style}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.setState(u, StateValidating)
	if _, err := o.compiler.Compile(ctx, req); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, o.compileFailed(u, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.setState(u, StateMapping)
	req.SourceMap = true
	res, err := o.compiler.Compile(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, o.compileFailed(u, err)
	}

	name := u.name()
	o.rpt.StoreData("maps/"+name+".raw.map", []byte(res.Map))

	n := srcmap.Normalizer{Cwd: u.Cwd, Root: o.root}
	m, err := n.Normalize([]byte(res.Map))
	if err != nil {
		return nil, o.mapFailed(u, err)
	}
	if data, err := m.MarshalIndent(); err == nil {
		o.rpt.StoreData("maps/"+name+".normalized.map", data)
	}

	o.setState(u, StateRewriting)
	css, m, err := o.rewriter.Rewrite(res.CSS, m)
	if err != nil {
		return nil, o.mapFailed(u, err)
	}
	m.Finalize(o.root)
	data, err := m.MarshalIndent()
	if err != nil {
		return nil, o.mapFailed(u, err)
	}

	cssName := name + ".css"
	dir := filepath.Dir(u.Path)
	files := []File{
		{
			Path:     filepath.Join(dir, cssName),
			Base:     u.Base,
			Cwd:      u.Cwd,
			Contents: []byte(css + "\n" + srcmap.Comment(cssName+".map")),
		},
		{
			Path:     filepath.Join(dir, cssName+".map"),
			Base:     u.Base,
			Cwd:      u.Cwd,
			Contents: data,
		},
	}
	o.setState(u, StateEmitted)
	return files, nil
}
