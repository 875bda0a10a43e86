// Package framework defines the test frameworks a harness can be built for.
package framework

import (
	"embed"
	"path"
	"regexp"
	"strings"

	"github.com/phobologic/jsharness/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Definition is everything the build needs to know about one test framework.
type Definition interface {
	// Name is the registry key, e.g. "qunit".
	Name() string
	// Matches reports whether content, a file of the given kind, is written for this framework.
	Matches(content string, kind model.PathKind) bool
	// RuntimeFiles lists the files the harness template loads itself, in load order.
	RuntimeFiles() []string
	// FixtureContent returns markup to place in the harness fixture area.
	FixtureContent(content string, kind model.PathKind) string
	// Process is called once per resolved dependency after staging.
	Process(f *model.ReferencedFile)
	// Template returns the harness document with placeholder tokens.
	Template() string
}

// definition is the table-driven Definition shared by all built-in frameworks.
type definition struct {
	name      string
	runtime   []string
	testRe    *regexp.Regexp
	fixtureID string
	template  string
}

func newDefinition(name string, runtime []string, testRe *regexp.Regexp, fixtureID string) *definition {
	data, err := templateFS.ReadFile("templates/" + name + ".html")
	if err != nil {
		panic("framework: missing template for " + name)
	}
	return &definition{
		name:      name,
		runtime:   runtime,
		testRe:    testRe,
		fixtureID: fixtureID,
		template:  string(data),
	}
}

func (d *definition) Name() string           { return d.name }
func (d *definition) RuntimeFiles() []string { return append([]string(nil), d.runtime...) }
func (d *definition) Template() string       { return d.template }

func (d *definition) Matches(content string, kind model.PathKind) bool {
	switch kind {
	case model.JavaScript:
		return d.referencesRuntime(content) || d.testRe.MatchString(content)
	case model.HTML:
		return d.referencesRuntime(content)
	default:
		return false
	}
}

// referencesRuntime reports whether content names the framework's main script.
func (d *definition) referencesRuntime(content string) bool {
	return strings.Contains(strings.ToLower(content), d.runtime[0])
}

func (d *definition) FixtureContent(content string, kind model.PathKind) string {
	if kind != model.HTML || d.fixtureID == "" {
		return ""
	}
	return extractFixture([]byte(content), d.fixtureID)
}

// Process marks remote copies of the framework's own files (a CDN qunit.js,
// say) as embedded so the harness does not load the framework twice.
func (d *definition) Process(f *model.ReferencedFile) {
	if f.IsLocal || f.Embedded {
		return
	}
	base := strings.ToLower(path.Base(stripQuery(f.Path)))
	for _, name := range d.runtime {
		if base == name {
			f.Embedded = true
			return
		}
	}
}

func stripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}

// Registry is an ordered set of definitions; the first match wins.
type Registry []Definition

// Default holds the built-in frameworks in detection order.
var Default = Registry{QUnit, Jasmine}

// Detect returns the first definition matching content, or nil.
func (r Registry) Detect(content string, kind model.PathKind) Definition {
	for _, d := range r {
		if d.Matches(content, kind) {
			return d
		}
	}
	return nil
}

// Lookup returns the definition named name, or nil.
func (r Registry) Lookup(name string) Definition {
	for _, d := range r {
		if strings.EqualFold(d.Name(), name) {
			return d
		}
	}
	return nil
}

// Names lists the registered framework names.
func (r Registry) Names() []string {
	names := make([]string, len(r))
	for i, d := range r {
		names[i] = d.Name()
	}
	return names
}
