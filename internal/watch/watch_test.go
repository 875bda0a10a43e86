package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/phobologic/jsharness/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testContext(root string, deps ...string) *model.TestContext {
	tc := &model.TestContext{InputTestFile: root}
	for _, d := range deps {
		tc.ReferencedFiles = append(tc.ReferencedFiles, &model.ReferencedFile{Path: d, IsLocal: true})
	}
	tc.ReferencedFiles = append(tc.ReferencedFiles,
		&model.ReferencedFile{Path: "http://a.com/lib.js"},
		&model.ReferencedFile{Path: root, IsLocal: true, IsFileUnderTest: true})
	return tc
}

func TestRunReportsDependentRoots(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	shared := filepath.Join(dir, "common.js")
	a := filepath.Join(dir, "a.test.js")
	b := filepath.Join(dir, "b.test.js")
	for _, p := range []string{shared, a, b} {
		writeFile(t, p, "// v1\n")
	}

	w, err := New(nil, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := w.Track(testContext(a, shared)); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if err := w.Track(testContext(b, shared)); err != nil {
		t.Fatalf("Track: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(roots []string) { changes <- roots })
	}()

	writeFile(t, shared, "// v2\n")

	select {
	case roots := <-changes:
		if len(roots) != 2 || roots[0] != a || roots[1] != b {
			t.Errorf("roots = %v, want [%s %s]", roots, a, b)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestTrackReplacesFileSet(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	old := filepath.Join(dir, "old.js")
	root := filepath.Join(dir, "test.js")

	w, err := New(nil, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := w.Track(testContext(root, old)); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if got := w.rootsFor(old); len(got) != 1 {
		t.Fatalf("rootsFor(old) = %v", got)
	}

	if err := w.Track(testContext(root)); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if got := w.rootsFor(old); len(got) != 0 {
		t.Errorf("old dependency still tracked: %v", got)
	}
	if got := w.rootsFor(root); len(got) != 1 || got[0] != root {
		t.Errorf("rootsFor(root) = %v", got)
	}
	if got := w.rootsFor("http://a.com/lib.js"); len(got) != 0 {
		t.Errorf("remote files are not tracked: %v", got)
	}
}

func TestRunStopsWhenClosed(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := New(nil, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- w.Run(context.Background(), func([]string) {})
	}()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
