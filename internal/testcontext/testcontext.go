// Package testcontext builds the test context for a file: it resolves the
// file's dependencies, stages them into a build directory and renders the
// harness that loads them.
package testcontext

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/jsharness/internal/framework"
	"github.com/phobologic/jsharness/internal/fsys"
	"github.com/phobologic/jsharness/internal/graph"
	"github.com/phobologic/jsharness/internal/harness"
	"github.com/phobologic/jsharness/internal/model"
	"github.com/phobologic/jsharness/internal/probe"
	"github.com/phobologic/jsharness/internal/stage"
)

var (
	// ErrInvalidInput reports a path that cannot be built.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFileType reports a path that is neither JavaScript nor HTML.
	ErrUnsupportedFileType = fmt.Errorf("%w: unsupported file type", ErrInvalidInput)
	// ErrNotFound reports a path with no regular file behind it.
	ErrNotFound = errors.New("file not found")
)

// PathProbe classifies paths.
type PathProbe interface {
	GetPathInfo(path string) model.PathInfo
	Classify(baseDir, raw string) probe.Resolution
}

// FileSystem is the file access a build performs.
type FileSystem interface {
	ReadText(path string) (string, error)
	CopyFile(src, dst string) error
	SetNormal(path string) error
	Exists(path string) bool
	TempFolder(key string) (string, error)
	Save(path, content string) error
}

// Options tunes a Builder.
type Options struct {
	// Framework forces a framework by name instead of detecting one per file.
	Framework string
	// RuntimeDir holds framework runtime files as <RuntimeDir>/<framework>/<name>.
	// Empty means runtime files are not copied.
	RuntimeDir string
	Log        *zap.Logger
}

// Builder assembles test contexts. It holds no per-build state and is safe
// for concurrent use.
type Builder struct {
	probe      PathProbe
	fs         FileSystem
	frameworks framework.Registry
	opts       Options
	log        *zap.Logger
	newToken   func() string
}

// New returns a Builder. An empty registry means framework.Default.
func New(p PathProbe, fs FileSystem, frameworks framework.Registry, opts Options) *Builder {
	if len(frameworks) == 0 {
		frameworks = framework.Default
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		probe:      p,
		fs:         fs,
		frameworks: frameworks,
		opts:       opts,
		log:        log,
		newToken:   stage.NewToken,
	}
}

// locate validates path and returns its full path and kind.
func (b *Builder) locate(path string) (model.PathInfo, error) {
	if path == "" {
		return model.PathInfo{}, fmt.Errorf("%w: empty path", ErrInvalidInput)
	}
	info := b.probe.GetPathInfo(path)
	if info.Kind != model.JavaScript && info.Kind != model.HTML {
		return model.PathInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, path)
	}
	if info.FullPath == "" {
		return model.PathInfo{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return info, nil
}

// detect returns the framework content is written for, or nil.
func (b *Builder) detect(content string, kind model.PathKind) (framework.Definition, error) {
	if b.opts.Framework == "" {
		return b.frameworks.Detect(content, kind), nil
	}
	d := b.frameworks.Lookup(b.opts.Framework)
	if d == nil {
		return nil, fmt.Errorf("%w: unknown framework %q", ErrInvalidInput, b.opts.Framework)
	}
	if !d.Matches(content, kind) {
		return nil, nil
	}
	return d, nil
}

// IsTestFile reports whether path is a supported, existing file that some
// framework claims. It stages nothing.
func (b *Builder) IsTestFile(path string) bool {
	info, err := b.locate(path)
	if err != nil {
		return false
	}
	content, err := b.fs.ReadText(info.FullPath)
	if err != nil {
		return false
	}
	d, err := b.detect(content, info.Kind)
	return err == nil && d != nil
}

// BuildContext builds the harness for path. It returns false with no error
// when no framework claims the file.
func (b *Builder) BuildContext(path string) (*model.TestContext, bool, error) {
	info, err := b.locate(path)
	if err != nil {
		return nil, false, err
	}
	root := info.FullPath

	content, err := b.fs.ReadText(root)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", root, err)
	}
	fw, err := b.detect(content, info.Kind)
	if err != nil {
		return nil, false, err
	}
	if fw == nil {
		b.log.Debug("no framework claims file", zap.String("path", root))
		return nil, false, nil
	}

	buildDir, err := b.fs.TempFolder(fsys.Key(root))
	if err != nil {
		return nil, false, err
	}
	log := b.log.With(zap.String("test", root), zap.String("framework", fw.Name()))

	runtime := fw.RuntimeFiles()
	files, err := graph.NewResolver(b.probe, b.fs, runtime, log).Resolve(root)
	if err != nil {
		return nil, false, err
	}

	reservedNames := append([]string{harness.FileName}, runtime...)
	stager := stage.New(b.fs, buildDir, b.newToken(), log, reservedNames...)
	if err := stager.StageAll(files); err != nil {
		return nil, false, err
	}
	if err := b.stageRuntime(fw, buildDir, log); err != nil {
		return nil, false, err
	}

	for _, f := range files {
		if !f.IsFileUnderTest {
			fw.Process(f)
		}
	}

	harnessPath := filepath.Join(buildDir, harness.FileName)
	doc := harness.Render(fw.Template(), files, fw.FixtureContent(content, info.Kind), buildDir)
	if err := b.fs.Save(harnessPath, doc); err != nil {
		return nil, false, fmt.Errorf("writing harness: %w", err)
	}
	log.Info("built harness", zap.String("harness", harnessPath), zap.Int("files", len(files)))

	return &model.TestContext{
		InputTestFile:   root,
		TestHarnessPath: harnessPath,
		BuildDir:        buildDir,
		Framework:       fw.Name(),
		ReferencedFiles: files,
	}, true, nil
}

// stageRuntime copies the framework's runtime files next to the harness.
func (b *Builder) stageRuntime(fw framework.Definition, buildDir string, log *zap.Logger) error {
	if b.opts.RuntimeDir == "" {
		return nil
	}
	for _, name := range fw.RuntimeFiles() {
		src := filepath.Join(b.opts.RuntimeDir, fw.Name(), name)
		if !b.fs.Exists(src) {
			log.Warn("runtime file missing", zap.String("path", src))
			continue
		}
		dst := filepath.Join(buildDir, name)
		if err := b.fs.CopyFile(src, dst); err != nil {
			return fmt.Errorf("copying runtime file %s: %w", name, err)
		}
		if err := b.fs.SetNormal(dst); err != nil {
			return fmt.Errorf("copying runtime file %s: %w", name, err)
		}
	}
	return nil
}

// BuildAll builds every path with at most workers builds in flight. Results
// follow the order of paths; an entry is nil when no framework claims that
// path. Paths naming the same file are built once and share a result. The
// first error cancels the remaining builds.
func (b *Builder) BuildAll(ctx context.Context, paths []string, workers int) ([]*model.TestContext, error) {
	results := make([]*model.TestContext, len(paths))

	// first maps each path to the index of the first path naming the same file.
	first := make([]int, len(paths))
	seen := make(map[string]int, len(paths))
	for i, path := range paths {
		id := fsys.Canonical(path)
		if j, ok := seen[id]; ok {
			first[i] = j
			continue
		}
		seen[id] = i
		first[i] = i
	}

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, path := range paths {
		i, path := i, path
		if first[i] != i {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tc, ok, err := b.BuildContext(path)
			if err != nil {
				return err
			}
			if ok {
				results[i] = tc
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, j := range first {
		results[i] = results[j]
	}
	return results, nil
}
