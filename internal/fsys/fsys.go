// Package fsys wraps the file operations a build performs and derives
// build directory identities.
package fsys

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	dirName  = "jsharness"
	keyLen   = 16
	fileMode = 0o644
)

// Canonical returns the identity of path: absolute, cleaned, and lower-cased
// where the file system is case-insensitive.
func Canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if caseInsensitive() {
		abs = strings.ToLower(abs)
	}
	return abs
}

func caseInsensitive() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

// Key returns the build directory key for a root file. It is a pure function
// of the canonical path.
func Key(path string) string {
	sum := sha256.Sum256([]byte(Canonical(path)))
	return hex.EncodeToString(sum[:])[:keyLen]
}

// OS performs file operations on the real file system.
type OS struct {
	// TempRoot is the parent of all build directories. Empty means os.TempDir().
	TempRoot string
}

// ReadText returns the contents of path.
func (OS) ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CopyFile copies src to dst, overwriting dst even if it is read-only.
func (OS) CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileMode)
	if errors.Is(err, fs.ErrPermission) {
		if chErr := os.Chmod(dst, fileMode); chErr == nil {
			out, err = os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileMode)
		}
	}
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// SetNormal clears read-only and special mode bits so later builds can overwrite path.
func (OS) SetNormal(path string) error {
	return os.Chmod(path, fileMode)
}

// Exists reports whether a regular file exists at path.
func (OS) Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// TempFolder returns the build directory for key, created if needed and
// emptied of anything an earlier build staged there.
func (o OS) TempFolder(key string) (string, error) {
	root := o.TempRoot
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, dirName, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating build directory: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading build directory: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return "", fmt.Errorf("clearing build directory: %w", err)
		}
	}
	return dir, nil
}

// Save writes content to path, replacing any previous file.
func (OS) Save(path, content string) error {
	if err := os.WriteFile(path, []byte(content), fileMode); err != nil {
		return err
	}
	return os.Chmod(path, fileMode)
}
