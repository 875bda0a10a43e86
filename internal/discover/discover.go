// Package discover walks a source tree for candidate test files.
package discover

import (
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/jsharness/internal/lang"
	"github.com/phobologic/jsharness/internal/model"
)

// gitTimeout bounds the git ls-files call.
const gitTimeout = 10 * time.Second

// FileEntry is a file the walk kept.
type FileEntry struct {
	Path string // Relative to root
	Kind model.PathKind
}

// Options narrows a walk.
type Options struct {
	// Kinds limits results to these kinds. Empty means JavaScript and HTML.
	Kinds []model.PathKind
	// Accept, when set, receives the absolute path of every file that passes
	// the kind and ignore checks. Files it rejects are left out.
	Accept func(path string) bool
}

// vendorDirs hold third-party or generated code and are never walked.
var vendorDirs = map[string]bool{
	"node_modules":     true,
	"bower_components": true,
	"jspm_packages":    true,
	"build":            true,
	"dist":             true,
	"coverage":         true,
	"bin":              true,
	"obj":              true,
}

// Files returns the files under root that opts keeps, sorted by path. Dot
// files, symlinks, vendor directories and anything git ignores are skipped.
func Files(ctx context.Context, root string, opts Options) ([]FileEntry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	w := &walker{
		ctx:     ctx,
		root:    root,
		ignored: loadIgnoreSet(ctx, root),
		kinds:   opts.Kinds,
		accept:  opts.Accept,
	}
	if len(w.kinds) == 0 {
		w.kinds = []model.PathKind{model.JavaScript, model.HTML}
	}
	if err := filepath.WalkDir(root, w.visit); err != nil {
		return nil, err
	}
	slices.SortFunc(w.found, func(a, b FileEntry) int {
		return strings.Compare(a.Path, b.Path)
	})
	return w.found, nil
}

type walker struct {
	ctx     context.Context
	root    string
	ignored ignoreSet
	kinds   []model.PathKind
	accept  func(string) bool
	found   []FileEntry
}

func (w *walker) visit(abs string, d fs.DirEntry, err error) error {
	if cerr := w.ctx.Err(); cerr != nil {
		return cerr
	}
	// Unreadable entries drop out of the listing.
	if err != nil || abs == w.root {
		return nil
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return nil
	}

	if d.IsDir() {
		if w.ignored.dir(rel) {
			return fs.SkipDir
		}
		return nil
	}
	if d.Type()&fs.ModeSymlink != 0 || w.ignored.file(rel) {
		return nil
	}

	kind := lang.KindOf(abs)
	if !slices.Contains(w.kinds, kind) {
		return nil
	}
	if w.accept != nil && !w.accept(abs) {
		return nil
	}
	w.found = append(w.found, FileEntry{Path: rel, Kind: kind})
	return nil
}

// ignoreSet decides which walked paths are left out. Inside a git work tree
// it holds git's own listing; elsewhere it falls back to root/.gitignore.
type ignoreSet struct {
	tracked     map[string]bool // slash-separated; nil outside a work tree
	trackedDirs map[string]bool
	rules       *ignore.GitIgnore
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (s ignoreSet) dir(rel string) bool {
	name := filepath.Base(rel)
	if hidden(name) || vendorDirs[name] {
		return true
	}
	if s.tracked != nil {
		return !s.trackedDirs[filepath.ToSlash(rel)]
	}
	return s.rules != nil && s.rules.MatchesPath(rel)
}

func (s ignoreSet) file(rel string) bool {
	if hidden(filepath.Base(rel)) {
		return true
	}
	if s.tracked != nil {
		return !s.tracked[filepath.ToSlash(rel)]
	}
	return s.rules != nil && s.rules.MatchesPath(rel)
}

func loadIgnoreSet(ctx context.Context, root string) ignoreSet {
	if files, dirs, ok := gitListing(ctx, root); ok {
		return ignoreSet{tracked: files, trackedDirs: dirs}
	}
	rules, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return ignoreSet{}
	}
	return ignoreSet{rules: rules}
}

// gitListing returns the files git counts as part of the work tree at root,
// tracked or untracked but not ignored, along with every directory that
// holds one. ok is false when root is not a work tree or git fails.
func gitListing(ctx context.Context, root string) (files, dirs map[string]bool, ok bool) {
	// .git is a directory in a plain clone and a file in a linked worktree.
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return nil, nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "-z", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, nil, false
	}

	files = make(map[string]bool)
	dirs = make(map[string]bool)
	for _, name := range strings.Split(string(out), "\x00") {
		if name == "" {
			continue
		}
		files[name] = true
		for d := path.Dir(name); d != "." && !dirs[d]; d = path.Dir(d) {
			dirs[d] = true
		}
	}
	return files, dirs, true
}
