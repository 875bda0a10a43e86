// Package lang classifies files by extension and holds the tree-sitter
// grammar and directive query for each kind that can reference other files.
package lang

import (
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/jsharness/internal/model"
)

//go:embed queries/*.scm
var queryFS embed.FS

// Language describes one file kind. A Language without a grammar is a leaf:
// its files are staged but never scanned.
type Language struct {
	Name       string
	Kind       model.PathKind
	Extensions []string
	grammar    *sitter.Language

	directives struct {
		once  sync.Once
		query *sitter.Query
		err   error
	}
}

// HasDirectives reports whether files of this language can reference other files.
func (l *Language) HasDirectives() bool {
	return l.grammar != nil
}

// NewParser returns a parser for this language. Parsers are not safe for
// concurrent use; each goroutine needs its own.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.grammar)
	return p
}

// DirectiveQuery compiles queries/<name>.scm on first use. The query may be
// shared across goroutines.
func (l *Language) DirectiveQuery() (*sitter.Query, error) {
	d := &l.directives
	d.once.Do(func() {
		if l.grammar == nil {
			d.err = fmt.Errorf("%s: no grammar", l.Name)
			return
		}
		src, err := queryFS.ReadFile("queries/" + l.Name + ".scm")
		if err != nil {
			d.err = fmt.Errorf("%s: reading directive query: %w", l.Name, err)
			return
		}
		if d.query, err = sitter.NewQuery(src, l.grammar); err != nil {
			d.err = fmt.Errorf("%s: compiling directive query: %w", l.Name, err)
		}
	})
	return d.query, d.err
}

var (
	byKind = map[model.PathKind]*Language{}
	byExt  = map[string]*Language{}
)

// register adds l to the registry. It runs from init, so the maps are
// read-only once main starts.
func register(l *Language) {
	if _, dup := byKind[l.Kind]; dup {
		panic("lang: kind registered twice: " + string(l.Kind))
	}
	byKind[l.Kind] = l
	for _, ext := range l.Extensions {
		byExt[ext] = l
	}
}

// ForExtension returns the language for a file extension such as ".js",
// matched case-insensitively, or nil.
func ForExtension(ext string) *Language {
	return byExt[strings.ToLower(ext)]
}

// ForKind returns the language registered for kind, or nil.
func ForKind(kind model.PathKind) *Language {
	return byKind[kind]
}

// KindOf classifies a path by its extension.
func KindOf(path string) model.PathKind {
	if l := ForExtension(filepath.Ext(path)); l != nil {
		return l.Kind
	}
	return model.Other
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
