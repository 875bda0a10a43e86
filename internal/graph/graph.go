// Package graph resolves the transitive, ordered dependency set of a test file.
package graph

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/phobologic/jsharness/internal/fsys"
	"github.com/phobologic/jsharness/internal/lang"
	"github.com/phobologic/jsharness/internal/model"
	"github.com/phobologic/jsharness/internal/probe"
	"github.com/phobologic/jsharness/internal/scan"
)

// Classifier resolves a raw reference relative to the directory of the file containing it.
type Classifier interface {
	Classify(baseDir, raw string) probe.Resolution
}

// Reader reads file text.
type Reader interface {
	ReadText(path string) (string, error)
}

// Resolver expands a root file into its flattened dependency order.
// A Resolver holds no per-build state and is safe for concurrent use.
type Resolver struct {
	probe   Classifier
	reader  Reader
	runtime map[string]struct{}
	log     *zap.Logger
}

// NewResolver returns a Resolver. Local references whose base name matches one
// of runtimeFiles are treated as the framework's own files: recorded, but
// never expanded or staged.
func NewResolver(p Classifier, r Reader, runtimeFiles []string, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	runtime := make(map[string]struct{}, len(runtimeFiles))
	for _, name := range runtimeFiles {
		runtime[strings.ToLower(name)] = struct{}{}
	}
	return &Resolver{probe: p, reader: r, runtime: runtime, log: log}
}

// walk is the state of one Resolve call.
type walk struct {
	*Resolver
	scanner *scan.Scanner
	visited map[string]struct{}
	remote  map[string]struct{}
	order   []*model.ReferencedFile
}

// Resolve returns every file root depends on, dependencies before dependents,
// with root itself last and marked as the file under test. root must be an
// absolute path to an existing file.
func (r *Resolver) Resolve(root string) ([]*model.ReferencedFile, error) {
	w := &walk{
		Resolver: r,
		scanner:  scan.New(),
		visited:  map[string]struct{}{fsys.Canonical(root): {}},
		remote:   make(map[string]struct{}),
	}
	defer w.scanner.Close()

	rootNode := &model.ReferencedFile{
		Path:            root,
		Kind:            lang.KindOf(root),
		IsLocal:         true,
		IsFileUnderTest: true,
	}
	if err := w.expand(rootNode); err != nil {
		return nil, err
	}
	w.order = append(w.order, rootNode)
	return w.order, nil
}

func (w *walk) expand(node *model.ReferencedFile) error {
	if l := lang.ForKind(node.Kind); l == nil || !l.HasDirectives() {
		return nil
	}

	text, err := w.reader.ReadText(node.Path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", node.Path, err)
	}
	refs, err := w.scanner.Scan(node.Kind, []byte(text))
	if err != nil {
		return fmt.Errorf("scanning %s: %w", node.Path, err)
	}

	baseDir := filepath.Dir(node.Path)
	for _, ref := range refs {
		node.Positions = append(node.Positions, ref.Position)

		res := w.probe.Classify(baseDir, ref.Path)
		if res.Kind != probe.Local {
			w.external(node, ref, res)
			continue
		}

		id := fsys.Canonical(res.Path)
		if _, seen := w.visited[id]; seen {
			continue
		}
		w.visited[id] = struct{}{}

		child := &model.ReferencedFile{
			Path:    res.Path,
			Kind:    kindOf(res.Path, ref.Kind),
			IsLocal: true,
		}
		node.ReferencedFiles = append(node.ReferencedFiles, child)

		if _, ok := w.runtime[strings.ToLower(filepath.Base(res.Path))]; ok {
			child.Embedded = true
			w.order = append(w.order, child)
			continue
		}

		if err := w.expand(child); err != nil {
			return err
		}
		w.order = append(w.order, child)
	}
	return nil
}

func (w *walk) external(node *model.ReferencedFile, ref model.Reference, res probe.Resolution) {
	if res.Kind == probe.Unresolved {
		w.log.Warn("reference not found, emitting as-is",
			zap.String("file", node.Path),
			zap.String("reference", ref.Path),
			zap.Int("line", ref.Position.Line))
	}
	if _, seen := w.remote[res.Path]; seen {
		return
	}
	w.remote[res.Path] = struct{}{}

	child := &model.ReferencedFile{
		Path: res.Path,
		Kind: kindOf(stripQuery(res.Path), ref.Kind),
	}
	node.ReferencedFiles = append(node.ReferencedFiles, child)
	w.order = append(w.order, child)
}

// kindOf classifies path by extension, falling back to what the directive
// loads when the extension names no kind (a CDN path like lodash@4).
func kindOf(path string, directive model.PathKind) model.PathKind {
	if k := lang.KindOf(path); k != model.Other {
		return k
	}
	if directive != "" {
		return directive
	}
	return model.Other
}

// stripQuery drops a URI query or fragment so the extension can be read.
func stripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
