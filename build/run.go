package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"stylepipe/asset"
	"stylepipe/common"
	"stylepipe/compiler"
	"stylepipe/config"
	"stylepipe/state"
)

// sources picked up when directory is given instead of file or pattern
const dirPattern = "**/*.{scss,sass}"

// Run is "build" command action.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("build")

	args := cmd.Args().Slice()
	if len(args) == 0 {
		return errors.New("no input source has been specified")
	}
	dst := env.Cwd
	if len(args) > 1 {
		dst, args = args[len(args)-1], args[:len(args)-1]
	}
	if !filepath.IsAbs(dst) {
		dst = filepath.Join(env.Cwd, dst)
	}
	env.Overwrite = cmd.Bool("overwrite")

	cfg := &env.Cfg.Compile
	if err := applyFlags(cfg, cmd, log); err != nil {
		return err
	}

	units, err := Collect(env.Cwd, args, cmd.String("base"), log)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		log.Warn("Nothing to compile", zap.Strings("sources", args))
		return nil
	}
	for _, u := range units {
		u.Style = cfg.OutputStyle
	}

	c, err := compiler.New(&cfg.Compiler, log)
	if err != nil {
		return fmt.Errorf("unable to prepare compiler: %w", err)
	}
	defer func() {
		if e := c.Close(); e != nil {
			err = multierr.Append(err, fmt.Errorf("unable to stop compiler: %w", e))
		}
	}()

	root := cfg.Root
	if len(root) == 0 {
		root = env.Cwd
	} else if !filepath.IsAbs(root) {
		root = filepath.Join(env.Cwd, root)
	}
	libs := make([]string, 0, len(cfg.Libraries))
	for _, l := range cfg.Libraries {
		if !filepath.IsAbs(l) {
			l = filepath.Join(env.Cwd, l)
		}
		libs = append(libs, l)
	}

	o := New(c,
		WithRoot(root),
		WithWorkers(cfg.Workers),
		WithReport(env.Rpt),
		WithLogger(env.Log),
		WithLibraries(NewLibraries(env.Log, libs...)),
		WithResolver(asset.New(root,
			asset.WithMaxDepth(cfg.MaxSearchDepth),
			asset.WithMaxSize(cfg.MaxInlineSize),
			asset.WithLogger(env.Log))),
	)

	log.Info("Processing starting", zap.Int("sources", len(units)), zap.String("destination", dst), zap.Stringer("style", cfg.OutputStyle))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	written := 0
	if err := o.Run(ctx, units, func(f File) error {
		if err := WriteFile(dst, f, env.Overwrite); err != nil {
			return err
		}
		written++
		return nil
	}); err != nil {
		return err
	}

	failed := o.Diagnostics().Len()
	if err := o.Diagnostics().Flush(cmd.Root().Writer, cfg.BannerWidth); err != nil {
		return fmt.Errorf("unable to print diagnostics: %w", err)
	}
	log.Debug("Build results", zap.Int("files", written), zap.Int("diagnostics", failed))
	if failed > 0 {
		return fmt.Errorf("compilation produced %d diagnostic(s)", failed)
	}
	return nil
}

// applyFlags puts command line values on top of configuration.
func applyFlags(cfg *config.CompileConfig, cmd *cli.Command, log *zap.Logger) error {
	if cmd.IsSet("style") {
		style, err := common.ParseOutputStyle(cmd.String("style"))
		if err != nil {
			return fmt.Errorf("unknown output style requested: %w", err)
		}
		cfg.OutputStyle = style
	}
	if !cfg.OutputStyle.Compressed() && cfg.OutputStyle != common.OutputStyleExpanded {
		log.Debug("Output style is not supported by Dart Sass, using expanded", zap.Stringer("style", cfg.OutputStyle))
	}
	if cmd.IsSet("lib") {
		cfg.Libraries = append(cfg.Libraries, cmd.StringSlice("lib")...)
	}
	if cmd.IsSet("banner-width") {
		if w := cmd.Int("banner-width"); w >= 0 {
			cfg.BannerWidth = w
		}
	}
	if cmd.IsSet("workers") {
		if n := cmd.Int("workers"); n >= 0 {
			cfg.Workers = n
		}
	}
	return nil
}

// Collect turns command line sources into compile units. Source may be a
// file, a directory (all stylesheets under it) or a doublestar pattern.
// Unless base is given, units are based at the directory or at the static
// part of the pattern. Partials (names starting with "_") are skipped when
// searching, duplicates are dropped.
func Collect(cwd string, sources []string, base string, log *zap.Logger) ([]*Unit, error) {
	var (
		units []*Unit
		seen  = make(map[string]struct{})
	)
	add := func(path, unitBase string) {
		if len(base) > 0 {
			unitBase = base
		}
		u := NewUnit(path, cwd, unitBase)
		if _, ok := seen[u.Path]; ok {
			return
		}
		seen[u.Path] = struct{}{}
		units = append(units, u)
	}

	for _, src := range sources {
		if !filepath.IsAbs(src) {
			src = filepath.Join(cwd, src)
		}

		fi, err := os.Stat(src)
		switch {
		case err == nil && fi.Mode().IsRegular():
			add(src, filepath.Dir(src))
			continue
		case err == nil && fi.IsDir():
			src = filepath.Join(src, filepath.FromSlash(dirPattern))
		case !strings.ContainsAny(filepath.ToSlash(src), "*?[{"):
			return nil, fmt.Errorf("input source was not found (%s)", src)
		}

		prefix, _ := doublestar.SplitPattern(filepath.ToSlash(src))
		matches, err := doublestar.FilepathGlob(src, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
		if err != nil {
			return nil, fmt.Errorf("bad source pattern (%s): %w", src, err)
		}
		slices.Sort(matches)
		count := 0
		for _, m := range matches {
			if strings.HasPrefix(filepath.Base(m), "_") {
				log.Debug("Skipping partial", zap.String("file", m))
				continue
			}
			add(m, filepath.FromSlash(prefix))
			count++
		}
		if count == 0 {
			log.Debug("Nothing matched", zap.String("source", src))
		}
	}
	return units, nil
}

// WriteFile stores output under dst keeping its path relative to base.
func WriteFile(dst string, f File, overwrite bool) error {
	name := filepath.Join(dst, f.Relative())
	if _, err := os.Stat(name); err == nil && !overwrite {
		return fmt.Errorf("output file already exists: %s", name)
	}
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	if err := os.WriteFile(name, f.Contents, 0644); err != nil {
		return fmt.Errorf("unable to write output file: %w", err)
	}
	return nil
}
