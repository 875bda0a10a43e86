package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewFiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New("warn", "console", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("hidden")
	log.Warn("reference not found", zap.String("reference", "missing.js"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "missing.js") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New("debug", "json", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("staged", zap.String("dest", "lib.js"))
	if !strings.Contains(buf.String(), `"dest":"lib.js"`) {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := New("loud", "console", &bytes.Buffer{}); err == nil {
		t.Error("expected error for bad level")
	}
	if _, err := New("info", "xml", &bytes.Buffer{}); err == nil {
		t.Error("expected error for bad format")
	}
}
