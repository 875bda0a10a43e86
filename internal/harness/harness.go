// Package harness renders test harness documents from templates.
package harness

import (
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/phobologic/jsharness/internal/model"
)

// Placeholder tokens recognized in harness templates.
const (
	ScriptsToken = "@@ReferencedJSFiles@@"
	StylesToken  = "@@ReferencedCSSFiles@@"
	FixtureToken = "@@FixtureContent@@"
)

// FileName is the name of the rendered harness inside a build directory.
const FileName = "test.html"

// ScriptStatement returns the markup that loads the script at src.
func ScriptStatement(src string) string {
	return fmt.Sprintf(`<script type="text/javascript" src="%s"></script>`, html.EscapeString(src))
}

// StyleStatement returns the markup that loads the stylesheet at href.
func StyleStatement(href string) string {
	return fmt.Sprintf(`<link rel="stylesheet" href="%s" type="text/css"/>`, html.EscapeString(href))
}

// Render substitutes the placeholders in tmpl. Files are emitted in the
// order given; local files are referenced relative to harnessDir.
func Render(tmpl string, files []*model.ReferencedFile, fixture, harnessDir string) string {
	var scripts, styles []string
	for _, f := range files {
		src, ok := source(f, harnessDir)
		if !ok {
			continue
		}
		switch f.Kind {
		case model.JavaScript:
			scripts = append(scripts, ScriptStatement(src))
		case model.CSS:
			styles = append(styles, StyleStatement(src))
		}
	}

	r := strings.NewReplacer(
		ScriptsToken, stripTokens(strings.Join(scripts, "\n")),
		StylesToken, stripTokens(strings.Join(styles, "\n")),
		FixtureToken, stripTokens(fixture),
	)
	return r.Replace(tmpl)
}

var tokenStripper = strings.NewReplacer(ScriptsToken, "", StylesToken, "", FixtureToken, "")

// stripTokens removes placeholder tokens from substituted text until none
// remain; removing one token can join the halves of another.
func stripTokens(s string) string {
	for {
		out := tokenStripper.Replace(s)
		if out == s {
			return out
		}
		s = out
	}
}

// source returns what a harness should reference for f, if anything.
func source(f *model.ReferencedFile, harnessDir string) (string, bool) {
	if f.Embedded {
		return "", false
	}
	if !f.IsLocal {
		return f.Path, true
	}
	if f.StagedPath == "" {
		return "", false
	}
	rel, err := filepath.Rel(harnessDir, f.StagedPath)
	if err != nil {
		return filepath.ToSlash(f.StagedPath), true
	}
	return filepath.ToSlash(rel), true
}
