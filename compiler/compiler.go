// Package compiler runs a complete generation pass: it discovers and loads
// the schema files, resolves the options, plans and renders every package
// and writes the artifacts that changed.
//
//	res, err := compiler.Generate(ctx, &compiler.Config{
//		Roots:    []string{"schemas"},
//		Target:   "gen",
//		CacheDir: ".cppgen",
//	})
//	if err != nil {
//		return err
//	}
//	os.Exit(res.ExitCode())
package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/syssam/cppgen"
	"github.com/syssam/cppgen/compiler/build"
	"github.com/syssam/cppgen/compiler/gen"
	"github.com/syssam/cppgen/compiler/load"
	"github.com/syssam/cppgen/compiler/options"
	"github.com/syssam/cppgen/schema"
)

// settingsFile records the generator settings in the cache directory.
// Artifacts depend on it, so changing a setting regenerates them.
const settingsFile = "settings"

// Config is the configuration of one generation pass.
type Config struct {
	// Roots are the schema files and directories to generate.
	Roots []string
	// Extensions of the schema files. The default is load.DefaultExtensions.
	Extensions []string
	// Target is the output directory.
	Target string
	// CacheDir holds the schema blobs and the modification-time snapshot.
	// An empty CacheDir disables both.
	CacheDir string
	// CacheBackend selects the snapshot store, see build.OpenStore. It
	// overrides the backend of the options file.
	CacheBackend string
	// OptionsFile is the TOML or YAML option file. Generated artifacts
	// depend on it.
	OptionsFile string
	// Options is used instead of reading OptionsFile when set.
	Options *options.Config
	// Features override the feature toggles of the options.
	Features map[string]bool
	// Header replaces the header comment of generated files.
	Header string
	// Workers bounds concurrent rendering. Zero uses the options file, and
	// then one worker.
	Workers int
	// StopOnError cancels the remaining artifacts after a failure.
	StopOnError bool
	// Parser replaces the YAML schema parser.
	Parser load.Parser
	Logger zerolog.Logger
}

// Result is the outcome of a generation pass.
type Result struct {
	// Summary has one outcome per artifact rule.
	Summary *build.Summary
	// Errors are the load, configuration and planning errors.
	Errors   []error
	Warnings []cppgen.Warning
	// Packages counts the schema packages loaded.
	Packages int
	// Removed are the artifacts, relative to the target, deleted because
	// their schema file is gone.
	Removed []string
}

// Err joins the errors of the pass and of the failed artifacts.
func (r *Result) Err() error {
	errs := slices.Clone(r.Errors)
	if r.Summary != nil {
		errs = append(errs, r.Summary.Err())
	}
	return errors.Join(errs...)
}

// ExitCode returns the process exit status: build.ExitFailed on any error,
// build.ExitWritten if an artifact was written or removed and
// build.ExitClean otherwise.
func (r *Result) ExitCode() int {
	if len(r.Errors) > 0 {
		return build.ExitFailed
	}
	code := build.ExitClean
	if r.Summary != nil {
		code = r.Summary.ExitCode()
	}
	if code == build.ExitClean && len(r.Removed) > 0 {
		return build.ExitWritten
	}
	return code
}

// Generate runs one pass. The returned error is fatal for the whole pass,
// e.g. an unreadable options file; errors local to schema elements or
// artifacts are collected in the Result.
func Generate(ctx context.Context, cfg *Config) (res *Result, err error) {
	log := cfg.Logger
	opts := cfg.Options
	if opts == nil {
		opts = &options.Config{}
		if cfg.OptionsFile != "" {
			if opts, err = options.Load(cfg.OptionsFile); err != nil {
				return nil, err
			}
		}
	}
	gcfg, err := generatorConfig(cfg, opts)
	if err != nil {
		return nil, err
	}
	paths, err := load.Discover(cfg.Roots, cfg.Extensions...)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("files", len(paths)).Msg("discovered schemas")

	var cache *build.Cache
	if cfg.CacheDir != "" {
		backend := cfg.CacheBackend
		if backend == "" {
			backend = opts.CacheBackend
		}
		store, err := build.OpenStore(ctx, cfg.CacheDir, backend)
		if err != nil {
			return nil, err
		}
		if cache, err = build.OpenCache(ctx, store, log); err != nil {
			store.Close()
			return nil, err
		}
		defer func() {
			if cerr := cache.Close(context.WithoutCancel(ctx)); cerr != nil {
				log.Warn().Err(cerr).Msg("save cache")
			}
		}()
		log = log.With().Str("run", cache.RunID().String()).Logger()
	}

	res = &Result{}
	lopts := []load.Option{load.WithLogger(log)}
	if cfg.CacheDir != "" {
		lopts = append(lopts, load.WithCache(cfg.CacheDir, cache))
	}
	if cfg.Parser != nil {
		lopts = append(lopts, load.WithParser(cfg.Parser))
	}
	loader := load.NewLoader(lopts...)
	pkgs, err := loader.LoadAll(ctx, paths)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res.Errors = append(res.Errors, err)
	}
	res.Packages = len(pkgs)
	set, err := schema.NewSet(pkgs...)
	if err != nil {
		return nil, err
	}
	if err := set.Resolve(); err != nil {
		res.Errors = append(res.Errors, err)
	}

	resolver, err := options.NewResolver(opts, options.WithLogger(log))
	if err != nil {
		return nil, err
	}
	rep := resolver.Resolve(set)
	res.Errors = append(res.Errors, rep.Errors...)
	res.Warnings = append(res.Warnings, rep.Warnings...)

	if err := gcfg.Cleanup(); err != nil {
		return nil, err
	}
	g, err := gen.New(gcfg, set, rep)
	if err != nil {
		return nil, err
	}
	if err := g.Err(); err != nil {
		res.Errors = append(res.Errors, err)
	}
	res.Warnings = append(res.Warnings, g.Warnings()...)

	var extra []build.Dep
	if cfg.OptionsFile != "" && cfg.Options == nil {
		extra = append(extra, build.FileDep(cfg.OptionsFile))
	}
	if cfg.CacheDir != "" {
		stamp, err := writeSettings(cfg.CacheDir, gcfg)
		if err != nil {
			return nil, err
		}
		extra = append(extra, build.FileDep(stamp))
	}
	mpath, removed, err := updateManifest(cfg, g, set, paths, cache, log)
	res.Removed = removed
	if err != nil {
		return nil, err
	}
	var rules []*build.Rule
	for _, a := range g.Artifacts() {
		deps := extra
		if a.Package == "" {
			deps = append(slices.Clip(extra), build.FileDep(mpath))
		}
		rules = append(rules, artifactRule(gcfg.Target, a, loader, cache, deps))
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = opts.Workers
	}
	m := build.NewManager(
		build.WithWorkers(workers),
		build.WithStopOnError(cfg.StopOnError || opts.StopOnError),
		build.WithManagerLogger(log),
	)
	res.Summary = m.Run(ctx, rules)
	for _, w := range res.Warnings {
		log.Warn().Str("file", w.File).Int("line", w.Line).Str("element", w.Element).Msg(w.Message)
	}
	log.Info().
		Int("packages", res.Packages).
		Int("written", res.Summary.Count(build.Written)).
		Int("unchanged", res.Summary.Count(build.Unchanged)).
		Int("fresh", res.Summary.Count(build.Fresh)).
		Int("removed", len(res.Removed)).
		Int("failed", len(res.Summary.Failed())).
		Int("errors", len(res.Errors)).
		Msg("generate")
	return res, nil
}

// generatorConfig builds the generator config from cfg and the options.
func generatorConfig(cfg *Config, opts *options.Config) (*gen.Config, error) {
	toggles := make(map[string]bool, len(opts.Features)+len(cfg.Features))
	for name, on := range opts.Features {
		toggles[name] = on
	}
	for name, on := range cfg.Features {
		toggles[name] = on
	}
	gopts := []gen.Option{
		gen.WithTarget(cfg.Target),
		gen.WithFeatureToggles(toggles),
		gen.WithLogger(cfg.Logger),
	}
	if cfg.Header != "" {
		gopts = append(gopts, gen.WithHeader(cfg.Header))
	}
	gcfg := gen.DefaultConfig()
	if err := gcfg.ApplyAll(gopts...); err != nil {
		return nil, err
	}
	return gcfg, nil
}

// artifactRule returns the rule of an artifact. Schema dependencies go
// through the rules of their schema blobs when the loader caches.
func artifactRule(target string, a gen.Artifact, loader *load.Loader, cache *build.Cache, extra []build.Dep) *build.Rule {
	deps := make([]build.Dep, 0, len(a.Deps)+len(extra))
	for _, path := range a.Deps {
		if r := loader.Rule(path); r != nil {
			deps = append(deps, build.RuleDep{Rule: r})
		} else {
			deps = append(deps, build.FileDep(path))
		}
	}
	return &build.Rule{
		Target: filepath.Join(target, filepath.FromSlash(a.Path)),
		Deps:   append(deps, extra...),
		Render: a.Render,
		Cache:  cache,
	}
}

// writeSettings writes the settings stamp when its content changed and
// returns its path.
func writeSettings(cacheDir string, cfg *gen.Config) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "header=%q\n", cfg.Header)
	names := make([]string, len(cfg.Features))
	for i, f := range cfg.Features {
		names[i] = f.Name
	}
	slices.Sort(names)
	fmt.Fprintf(&b, "features=%s\n", strings.Join(names, ","))
	path := filepath.Join(cacheDir, settingsFile)
	if old, err := os.ReadFile(path); err == nil && string(old) == b.String() {
		return path, nil
	}
	if err := build.WriteFile(path, []byte(b.String())); err != nil {
		return "", fmt.Errorf("write settings: %w", err)
	}
	return path, nil
}

// Clean removes the cache directory.
func Clean(cacheDir string) error {
	if cacheDir == "" {
		return nil
	}
	if err := os.RemoveAll(cacheDir); err != nil {
		return fmt.Errorf("clean cache: %w", err)
	}
	return nil
}
