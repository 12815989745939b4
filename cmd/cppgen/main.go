// Command cppgen generates C++ value classes and reflection tables from
// schema files.
//
//	cppgen generate --out gen schemas/
//	cppgen clean
//
// The exit status of generate is 0 when nothing was regenerated, 1 on any
// error and 2 when at least one file was written.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/syssam/cppgen/compiler"
	"github.com/syssam/cppgen/compiler/build"
	"github.com/syssam/cppgen/compiler/gen"
	"github.com/syssam/cppgen/compiler/load"
	"github.com/syssam/cppgen/internal/logging"
)

var (
	configFile      string
	outDir          string
	cacheDir        string
	cacheBackend    string
	extensions      []string
	workers         int
	stopOnError     bool
	separateInlines bool
	noReflection    bool
	watch           bool

	// exitCode is the status of the last generate run.
	exitCode int
	logger   = logging.New(logging.ProfileRuntime, os.Stderr)
)

var rootCmd = &cobra.Command{
	Use:           "cppgen",
	Short:         "Generate C++ value classes from schema files",
	Long:          `cppgen reads schema descriptions of messages, enums and services and generates C++ headers, implementation files and reflection descriptors. Only files whose content changed are written.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var generateCmd = &cobra.Command{
	Use:   "generate [roots...]",
	Short: "Generate the C++ files of the schemas below roots",
	Long:  `Generate discovers the schema files below the given roots (default: the current directory) and regenerates the artifacts that are out of date.`,
	RunE:  runGenerate,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the cache directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return compiler.Clean(cacheDir)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", ".cppgen", "Directory of the schema and modification-time caches (empty disables caching)")

	f := generateCmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "Option file (TOML, or YAML with a .yaml extension)")
	f.StringVarP(&outDir, "out", "o", "gen", "Output directory")
	f.StringVar(&cacheBackend, "cache-backend", "", "Modification-time store: file or sqlite (default: from the option file, then file)")
	f.StringSliceVar(&extensions, "ext", load.DefaultExtensions, "Schema file extensions")
	f.IntVarP(&workers, "workers", "j", 0, "Number of files rendered concurrently (default: from the option file, then 1)")
	f.BoolVar(&stopOnError, "stop-on-error", false, "Stop at the first failing file")
	f.BoolVar(&separateInlines, "separate-inlines", false, "Define accessors after all classes instead of in the class bodies")
	f.BoolVar(&noReflection, "no-reflection", false, "Do not generate descriptors, the descriptor set and service tables")
	f.BoolVarP(&watch, "watch", "w", false, "Regenerate whenever a schema file changes")

	rootCmd.AddCommand(generateCmd, cleanCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roots := args
	if len(roots) == 0 {
		roots = []string{"."}
	}
	exts := make([]string, len(extensions))
	for i, ext := range extensions {
		exts[i] = "." + strings.TrimPrefix(strings.TrimSpace(ext), ".")
	}
	features := make(map[string]bool)
	if cmd.Flags().Changed("separate-inlines") {
		features[gen.FeatureSeparateInlines.Name] = separateInlines
	}
	if noReflection {
		features[gen.FeatureReflection.Name] = false
		features[gen.FeatureServices.Name] = false
	}
	cfg := &compiler.Config{
		Roots:        roots,
		Extensions:   exts,
		Target:       outDir,
		CacheDir:     cacheDir,
		CacheBackend: cacheBackend,
		OptionsFile:  configFile,
		Features:     features,
		Workers:      workers,
		StopOnError:  stopOnError,
		Logger:       logger,
	}
	if err := generate(ctx, cmd, cfg); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	w, err := build.NewWatcher(watchRoots(roots, configFile),
		build.WithMatch(func(path string) bool {
			return slices.Contains(exts, strings.ToLower(filepath.Ext(path))) || path == configFile
		}),
		build.WithWatchLogger(logger),
	)
	if err != nil {
		return err
	}
	defer w.Close()
	logger.Info().Strs("roots", roots).Msg("watching for changes")
	if err := w.Run(ctx, func(ctx context.Context) error { return generate(ctx, cmd, cfg) }); err != nil {
		return err
	}
	exitCode = build.ExitClean
	return nil
}

// generate runs one pass and reports its errors.
func generate(ctx context.Context, cmd *cobra.Command, cfg *compiler.Config) error {
	res, err := compiler.Generate(ctx, cfg)
	if err != nil {
		return err
	}
	for _, err := range res.Errors {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
	}
	for _, o := range res.Summary.Failed() {
		fmt.Fprintln(cmd.ErrOrStderr(), o.Err)
	}
	exitCode = res.ExitCode()
	return nil
}

// watchRoots returns the directories to watch: the directory roots and
// the directory of the option file.
func watchRoots(roots []string, configFile string) []string {
	var dirs []string
	for _, root := range roots {
		if info, err := os.Stat(root); err == nil && !info.IsDir() {
			root = filepath.Dir(root)
		}
		dirs = append(dirs, root)
	}
	if configFile != "" {
		dirs = append(dirs, filepath.Dir(configFile))
	}
	slices.Sort(dirs)
	return slices.Compact(dirs)
}

func execute(ctx context.Context, args []string) int {
	exitCode = build.ExitClean
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("cppgen")
		return build.ExitFailed
	}
	return exitCode
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:]))
}
