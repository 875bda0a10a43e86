// Package scan extracts reference directives from source files using tree-sitter.
package scan

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/jsharness/internal/lang"
	"github.com/phobologic/jsharness/internal/model"
)

// referenceRe matches a triple-slash directive: /// <reference path="lib.js" />
var referenceRe = regexp.MustCompile(`(?i)^///\s*<\s*reference\s+path\s*=\s*["']([^"']+)["']`)

// htmlRefs lists which attribute of which tag names a dependency, and what it loads.
var htmlRefs = map[string]struct {
	attr string
	kind model.PathKind
}{
	"script": {"src", model.JavaScript},
	"link":   {"href", model.CSS},
}

// ExtractReferences parses source and returns its directives in document order.
// The parser and query must belong to l.
func ExtractReferences(l *lang.Language, parser *sitter.Parser, query *sitter.Query, source []byte) []model.Reference {
	if len(source) == 0 {
		return nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var refs []model.Reference

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}

		switch l.Kind {
		case model.JavaScript:
			for _, c := range match.Captures {
				if ref, ok := commentReference(c.Node, source); ok {
					refs = append(refs, ref)
				}
			}
		case model.HTML:
			if ref, ok := attributeReference(query, match, source); ok {
				refs = append(refs, ref)
			}
		}
	}

	// Matches on one tag are not guaranteed to arrive in attribute order.
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Position.Offset < refs[j].Position.Offset
	})

	return refs
}

func commentReference(node *sitter.Node, source []byte) (model.Reference, bool) {
	text := lang.NodeText(node, source)
	loc := referenceRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return model.Reference{}, false
	}
	path := strings.TrimSpace(text[loc[2]:loc[3]])
	if path == "" {
		return model.Reference{}, false
	}
	start := node.StartPoint()
	return model.Reference{
		Path: path,
		Kind: model.JavaScript,
		Position: model.Position{
			Path:   path,
			Line:   int(start.Row) + 1,
			Column: int(start.Column) + 1 + loc[2],
			Offset: int(node.StartByte()) + loc[2],
		},
	}, true
}

func attributeReference(query *sitter.Query, match *sitter.QueryMatch, source []byte) (model.Reference, bool) {
	var tag, attr string
	var valueNode *sitter.Node

	for _, c := range match.Captures {
		switch query.CaptureNameForId(c.Index) {
		case "tag":
			tag = strings.ToLower(lang.NodeText(c.Node, source))
		case "attr":
			attr = strings.ToLower(lang.NodeText(c.Node, source))
		case "value":
			valueNode = c.Node
		}
	}

	want, ok := htmlRefs[tag]
	if !ok || valueNode == nil || want.attr != attr {
		return model.Reference{}, false
	}
	path := strings.TrimSpace(lang.NodeText(valueNode, source))
	if path == "" {
		return model.Reference{}, false
	}
	start := valueNode.StartPoint()
	return model.Reference{
		Path: path,
		Kind: want.kind,
		Position: model.Position{
			Path:   path,
			Line:   int(start.Row) + 1,
			Column: int(start.Column) + 1,
			Offset: int(valueNode.StartByte()),
		},
	}, true
}

// Scanner caches one parser per language. It is owned by a single build
// and must not be shared between goroutines.
type Scanner struct {
	parsers map[string]*parserPair
}

type parserPair struct {
	lang   *lang.Language
	parser *sitter.Parser
	query  *sitter.Query
}

// New returns an empty Scanner.
func New() *Scanner {
	return &Scanner{parsers: make(map[string]*parserPair)}
}

// Scan returns the directives in source, which has the given kind.
// Kinds without a grammar have no directives.
func (s *Scanner) Scan(kind model.PathKind, source []byte) ([]model.Reference, error) {
	l := lang.ForKind(kind)
	if l == nil || !l.HasDirectives() {
		return nil, nil
	}

	pp, ok := s.parsers[l.Name]
	if !ok {
		q, err := l.DirectiveQuery()
		if err != nil {
			return nil, fmt.Errorf("query for %s: %w", l.Name, err)
		}
		pp = &parserPair{lang: l, parser: l.NewParser(), query: q}
		s.parsers[l.Name] = pp
	}

	return ExtractReferences(pp.lang, pp.parser, pp.query, source), nil
}

// Close releases the cached parsers.
func (s *Scanner) Close() {
	for name, pp := range s.parsers {
		pp.parser.Close()
		delete(s.parsers, name)
	}
}
