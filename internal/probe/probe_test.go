package probe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/phobologic/jsharness/internal/model"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIsRemote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want bool
	}{
		{"http://a.com/lib.js", true},
		{"https://cdn.example.org/qunit.js", true},
		{"//cdn.example.org/qunit.js", true},
		{"file:///tmp/x.js", true},
		{"data:text/javascript,1", true},
		{"lib.js", false},
		{"../../js/common.js", false},
		{"/abs/lib.js", false},
		{`C:\js\lib.js`, false},
	}
	for _, tt := range tests {
		if got := IsRemote(tt.raw); got != tt.want {
			t.Errorf("IsRemote(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lib := writeFile(t, dir, "tests/lib.js", "")
	common := writeFile(t, dir, "js/common.js", "")
	base := filepath.Join(dir, "tests")

	tests := []struct {
		name string
		raw  string
		want Resolution
	}{
		{"sibling", "lib.js", Resolution{Local, lib}},
		{"parent", "../js/common.js", Resolution{Local, common}},
		{"absolute", common, Resolution{Local, common}},
		{"remote", "http://a.com/lib.js", Resolution{Remote, "http://a.com/lib.js"}},
		{"missing", "nope.js", Resolution{Unresolved, "nope.js"}},
		{"directory", "../js", Resolution{Unresolved, "../js"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Probe{}.Classify(base, tt.raw)
			if got != tt.want {
				t.Errorf("Classify(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolveRelative(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lib := writeFile(t, dir, "lib.js", "")

	got, ok := Probe{}.ResolveRelative(dir, "lib.js")
	if !ok || got != lib {
		t.Errorf("ResolveRelative = %q, %v; want %q, true", got, ok, lib)
	}
	if _, ok := (Probe{}).ResolveRelative(dir, "http://a.com/lib.js"); ok {
		t.Error("remote reference should not resolve")
	}
}

func TestGetPathInfo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	js := writeFile(t, dir, "test.js", "")

	info := Probe{}.GetPathInfo(js)
	if info.Kind != model.JavaScript || info.FullPath != js {
		t.Errorf("GetPathInfo(js) = %+v", info)
	}

	info = Probe{}.GetPathInfo(filepath.Join(dir, "missing.html"))
	if info.Kind != model.HTML || info.FullPath != "" {
		t.Errorf("GetPathInfo(missing) = %+v", info)
	}

	info = Probe{}.GetPathInfo("test.blah")
	if info.Kind != model.Other {
		t.Errorf("GetPathInfo(blah) kind = %q", info.Kind)
	}
}
