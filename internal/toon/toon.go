// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/jsharness/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a TestContext into TOON format. Local paths are shown
// relative to base when they lie beneath it.
func Encode(tc *model.TestContext, base string) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("test: %s", encodeValue(relative(base, tc.InputTestFile))))
	parts = append(parts, fmt.Sprintf("harness: %s", encodeValue(tc.TestHarnessPath)))
	parts = append(parts, fmt.Sprintf("framework: %s", encodeValue(tc.Framework)))

	var fileRows [][]any
	for _, f := range tc.ReferencedFiles {
		path := f.Path
		if f.IsLocal {
			path = relative(base, path)
		}
		staged := ""
		if f.StagedPath != "" {
			staged = filepath.Base(f.StagedPath)
		}
		fileRows = append(fileRows, []any{
			path,
			string(f.Kind),
			staged,
			f.IsLocal,
			f.IsFileUnderTest,
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "kind", "staged", "local", "under_test"}, fileRows))

	return strings.Join(parts, "\n")
}

// EncodeAll encodes each non-nil context, separated by blank lines.
func EncodeAll(tcs []*model.TestContext, base string) string {
	var docs []string
	for _, tc := range tcs {
		if tc != nil {
			docs = append(docs, Encode(tc, base))
		}
	}
	return strings.Join(docs, "\n\n")
}

func relative(base, path string) string {
	if base == "" {
		return path
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func formatTabular(name string, columns []string, rows [][]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeCell(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

// encodeCell writes booleans as TOON literals and everything else as a string value.
func encodeCell(cell any) string {
	switch v := cell.(type) {
	case bool:
		return strconv.FormatBool(v)
	case string:
		return encodeValue(v)
	default:
		return encodeValue(fmt.Sprint(v))
	}
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
