// Package model defines core data structures for jsharness.
package model

// PathKind classifies a file by the role it can play in a harness.
type PathKind string

const (
	JavaScript PathKind = "javascript"
	HTML       PathKind = "html"
	CSS        PathKind = "css"
	Other      PathKind = "other"
)

// PathInfo is the classification of a raw path.
// FullPath is empty when no regular file exists at the path.
type PathInfo struct {
	Kind     PathKind
	FullPath string
}

// Position locates one reference directive inside a file.
type Position struct {
	Path   string // raw directive text
	Line   int    // 1-based
	Column int    // 1-based
	Offset int    // byte offset of the path value
}

// Reference is a directive found by the scanner, before resolution.
type Reference struct {
	Path string
	// Kind is what the directive loads: JavaScript for a reference comment
	// or script tag, CSS for a link tag. It stands in when the path's
	// extension does not name a kind.
	Kind     PathKind
	Position Position
}

// ReferencedFile is one node of the resolved dependency graph.
type ReferencedFile struct {
	// Path is the resolved absolute path, or the raw reference when not local.
	Path string
	// StagedPath is the copy inside the build directory; empty when not staged.
	StagedPath      string
	Kind            PathKind
	IsLocal         bool
	IsFileUnderTest bool
	// Embedded marks files the harness template already loads itself.
	// They are neither staged nor emitted.
	Embedded bool
	// Positions holds the directives found inside this file.
	Positions []Position
	// ReferencedFiles holds direct dependencies, for introspection only.
	// The flattened order on TestContext is authoritative.
	ReferencedFiles []*ReferencedFile
}

// TestContext is the result of building one test file.
type TestContext struct {
	InputTestFile   string
	TestHarnessPath string
	BuildDir        string
	Framework       string
	// ReferencedFiles is the build order, dependencies first, file under test last.
	ReferencedFiles []*ReferencedFile
}

// FileUnderTest returns the root node, or nil.
func (c *TestContext) FileUnderTest() *ReferencedFile {
	for _, f := range c.ReferencedFiles {
		if f.IsFileUnderTest {
			return f
		}
	}
	return nil
}
