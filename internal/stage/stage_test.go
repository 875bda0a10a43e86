package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/phobologic/jsharness/internal/fsys"
	"github.com/phobologic/jsharness/internal/model"
)

type copyCall struct{ src, dst string }

// recorder captures copy and attribute calls without touching the disk.
type recorder struct {
	copies []copyCall
	normal []string
}

func (r *recorder) CopyFile(src, dst string) error {
	r.copies = append(r.copies, copyCall{src, dst})
	return nil
}

func (r *recorder) SetNormal(path string) error {
	r.normal = append(r.normal, path)
	return nil
}

func local(path string) *model.ReferencedFile {
	return &model.ReferencedFile{Path: path, IsLocal: true, Kind: model.JavaScript}
}

func TestDestinationCollision(t *testing.T) {
	t.Parallel()

	s := New(&recorder{}, "/build", "unique", nil)

	tests := []struct {
		src  string
		want string
	}{
		{"/src/common.js", "/build/common.js"},
		{"/src/child/common.js", "/build/unique_common.js"},
		{"/src/other/common.js", "/build/unique2_common.js"},
		{"/src/common.js", "/build/common.js"},
		{"/src/lib.js", "/build/lib.js"},
	}
	for _, tt := range tests {
		if got := s.Destination(tt.src); got != filepath.FromSlash(tt.want) {
			t.Errorf("Destination(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestDestinationReserved(t *testing.T) {
	t.Parallel()

	s := New(&recorder{}, "/build", "tok", nil, "test.html", "qunit.js")
	if got := s.Destination("/src/test.html"); got != filepath.FromSlash("/build/tok_test.html") {
		t.Errorf("reserved name handed out: %q", got)
	}
	if got := s.Destination("/src/QUnit.js"); got != filepath.FromSlash("/build/tok_QUnit.js") {
		t.Errorf("reserved name matched case-sensitively: %q", got)
	}
}

func TestStageAllRootClaimsFirst(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New(rec, "/build", "unique", nil)

	child := local("/path/child/common.js")
	lib := local("/path/lib.js")
	root := local("/path/common.js")
	root.IsFileUnderTest = true

	if err := s.StageAll([]*model.ReferencedFile{lib, child, root}); err != nil {
		t.Fatalf("StageAll: %v", err)
	}

	want := []copyCall{
		{"/path/common.js", filepath.FromSlash("/build/common.js")},
		{"/path/lib.js", filepath.FromSlash("/build/lib.js")},
		{"/path/child/common.js", filepath.FromSlash("/build/unique_common.js")},
	}
	if diff := cmp.Diff(want, rec.copies, cmp.AllowUnexported(copyCall{})); diff != "" {
		t.Errorf("copies mismatch (-want +got):\n%s", diff)
	}
	if len(rec.normal) != 3 {
		t.Errorf("SetNormal called %d times, want 3", len(rec.normal))
	}
	if child.StagedPath != filepath.FromSlash("/build/unique_common.js") {
		t.Errorf("child staged at %q", child.StagedPath)
	}
}

func TestStageSkipsRemoteAndEmbedded(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New(rec, "/build", "tok", nil)

	remote := &model.ReferencedFile{Path: "http://a.com/lib.js", Kind: model.JavaScript}
	embedded := local("/src/qunit.js")
	embedded.Embedded = true
	htmlRoot := &model.ReferencedFile{Path: "/src/test.html", Kind: model.HTML, IsLocal: true, IsFileUnderTest: true}

	if err := s.StageAll([]*model.ReferencedFile{remote, embedded, htmlRoot}); err != nil {
		t.Fatalf("StageAll: %v", err)
	}
	if len(rec.copies) != 0 {
		t.Errorf("expected no copies, got %+v", rec.copies)
	}
	if remote.StagedPath != "" || embedded.StagedPath != "" || htmlRoot.StagedPath != "" {
		t.Error("skipped files should have no staged path")
	}
}

func TestStageOnDisk(t *testing.T) {
	t.Parallel()

	srcDir := t.TempDir()
	buildDir := t.TempDir()
	src := filepath.Join(srcDir, "lib.js")
	if err := os.WriteFile(src, []byte("var lib;"), 0o444); err != nil {
		t.Fatal(err)
	}

	f := local(src)
	for i := 0; i < 2; i++ {
		s := New(fsys.OS{}, buildDir, NewToken(), nil)
		if err := s.Stage(f); err != nil {
			t.Fatalf("run %d: Stage: %v", i, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(buildDir, "lib.js"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "var lib;" {
		t.Errorf("staged content = %q", data)
	}
}

func TestNewToken(t *testing.T) {
	t.Parallel()

	a, b := NewToken(), NewToken()
	if len(a) != 8 {
		t.Errorf("len(token) = %d, want 8", len(a))
	}
	if a == b {
		t.Error("tokens should differ between builds")
	}
}
