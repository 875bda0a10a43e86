// jsharness builds browser test harnesses for JavaScript and HTML test files.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phobologic/jsharness/internal/config"
	"github.com/phobologic/jsharness/internal/discover"
	"github.com/phobologic/jsharness/internal/framework"
	"github.com/phobologic/jsharness/internal/fsys"
	"github.com/phobologic/jsharness/internal/logging"
	"github.com/phobologic/jsharness/internal/model"
	"github.com/phobologic/jsharness/internal/probe"
	"github.com/phobologic/jsharness/internal/testcontext"
	"github.com/phobologic/jsharness/internal/toon"
	"github.com/phobologic/jsharness/internal/watch"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// options holds the persistent flags shared by every command.
type options struct {
	configPath string
	framework  string
	runtimeDir string
	tempDir    string
	workers    int
	logLevel   string
	logFormat  string

	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{stderr: stderr}

	root := &cobra.Command{
		Use:   "jsharness [test files...]",
		Short: "Build browser test harnesses for JavaScript and HTML tests",
		Long: `jsharness resolves the reference directives of each test file, stages
every dependency into a per-test build directory and renders an HTML harness
that loads them in dependency order. A summary of each build is printed in
TOON format.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runBuild(cmd, opts, args, stdout)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "config file")
	flags.StringVarP(&opts.framework, "framework", "f", "", "force a framework ("+strings.Join(framework.Default.Names(), ", ")+")")
	flags.StringVar(&opts.runtimeDir, "runtime-dir", "", "directory holding <framework>/<runtime file>")
	flags.StringVar(&opts.tempDir, "temp-dir", "", "parent of build directories (default: OS temp dir)")
	flags.IntVarP(&opts.workers, "workers", "j", 0, "concurrent builds (default: GOMAXPROCS)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: console, json")

	root.AddCommand(newListCmd(opts, stdout))
	root.AddCommand(newWatchCmd(opts, stdout))
	root.AddCommand(newInitCmd(stdout, stderr))
	return root
}

// env is everything a command needs once flags and config are merged.
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	builder *testcontext.Builder
	cwd     string
}

func setup(cmd *cobra.Command, opts *options) (*env, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("framework") {
		cfg.Framework = opts.framework
	}
	if flags.Changed("runtime-dir") {
		cfg.RuntimeDir = opts.runtimeDir
	}
	if flags.Changed("temp-dir") {
		cfg.TempDir = opts.tempDir
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}
	if err := cfg.Validate(framework.Default.Names()); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, opts.stderr)
	if err != nil {
		return nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	builder := testcontext.New(probe.Probe{}, fsys.OS{TempRoot: cfg.TempDir}, framework.Default, testcontext.Options{
		Framework:  cfg.Framework,
		RuntimeDir: cfg.RuntimeDir,
		Log:        log,
	})
	return &env{cfg: cfg, log: log, builder: builder, cwd: cwd}, nil
}

func absPaths(paths []string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		out[i] = abs
	}
	return out, nil
}

// buildAndReport builds paths and prints a TOON summary of every harness built.
func buildAndReport(ctx context.Context, e *env, paths []string, stdout io.Writer) ([]*model.TestContext, error) {
	results, err := e.builder.BuildAll(ctx, paths, e.cfg.Workers)
	if err != nil {
		return nil, err
	}

	built := 0
	for i, tc := range results {
		if tc == nil {
			e.log.Warn("no test framework detected, skipping", zap.String("path", paths[i]))
			continue
		}
		built++
	}
	if built == 0 {
		return results, fmt.Errorf("no test files built")
	}

	_, _ = fmt.Fprintln(stdout, toon.EncodeAll(results, e.cwd))
	return results, nil
}

func runBuild(cmd *cobra.Command, opts *options, args []string, stdout io.Writer) error {
	e, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	paths, err := absPaths(args)
	if err != nil {
		return err
	}
	_, err = buildAndReport(cmd.Context(), e, paths, stdout)
	return err
}

func newListCmd(opts *options, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list [dir]",
		Short: "List the test files under a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			tests, err := findTests(cmd.Context(), e, dir)
			if err != nil {
				return err
			}
			for _, path := range tests {
				rel, err := filepath.Rel(e.cwd, path)
				if err != nil {
					rel = path
				}
				_, _ = fmt.Fprintln(stdout, filepath.ToSlash(rel))
			}
			return nil
		},
	}
}

// findTests returns the absolute paths of the test files under dir.
func findTests(ctx context.Context, e *env, dir string) ([]string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", root)
	}

	files, err := discover.Files(ctx, root, discover.Options{Accept: e.builder.IsTestFile})
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no test files found under %s", root)
	}

	tests := make([]string, len(files))
	for i, f := range files {
		tests[i] = filepath.Join(root, f.Path)
	}
	return tests, nil
}

func newWatchCmd(opts *options, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [test files...]",
		Short: "Build test files and rebuild them when they or their references change",
		Long: `watch builds the given test files (or every test file under the current
directory) and rebuilds a harness whenever a local file it loads changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			paths := args
			if len(paths) == 0 {
				if paths, err = findTests(ctx, e, "."); err != nil {
					return err
				}
			}
			if paths, err = absPaths(paths); err != nil {
				return err
			}

			results, err := buildAndReport(ctx, e, paths, stdout)
			if err != nil {
				return err
			}

			w, err := watch.New(e.log, 0)
			if err != nil {
				return err
			}
			defer w.Close()
			for _, tc := range results {
				if tc == nil {
					continue
				}
				if err := w.Track(tc); err != nil {
					return err
				}
			}

			e.log.Info("watching for changes", zap.Int("tests", len(results)))
			return w.Run(ctx, func(roots []string) {
				rebuild(e, w, roots, stdout)
			})
		},
	}
}

// rebuild rebuilds roots after a change. Failures are logged, not fatal, so a
// half-saved file does not stop the watcher.
func rebuild(e *env, w *watch.Watcher, roots []string, stdout io.Writer) {
	for _, root := range roots {
		tc, ok, err := e.builder.BuildContext(root)
		if err != nil {
			e.log.Error("rebuild failed", zap.String("path", root), zap.Error(err))
			continue
		}
		if !ok {
			e.log.Warn("no longer a test file", zap.String("path", root))
			continue
		}
		if err := w.Track(tc); err != nil {
			e.log.Error("tracking failed", zap.String("path", root), zap.Error(err))
		}
		_, _ = fmt.Fprintln(stdout, toon.Encode(tc, e.cwd))
	}
}
