// Package probe classifies and resolves the paths named by reference directives.
package probe

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/phobologic/jsharness/internal/lang"
	"github.com/phobologic/jsharness/internal/model"
)

// ResolutionKind says how a raw reference resolved.
type ResolutionKind int

const (
	// Local is a regular file on disk.
	Local ResolutionKind = iota
	// Remote carries a URI scheme or is protocol-relative.
	Remote
	// Unresolved looks local but names a missing file or a directory.
	Unresolved
)

func (k ResolutionKind) String() string {
	switch k {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return "unresolved"
	}
}

// Resolution is the outcome of classifying one raw reference.
// Path is absolute for Local and the raw reference otherwise.
type Resolution struct {
	Kind ResolutionKind
	Path string
}

// schemeRe matches an RFC 3986 scheme. Single letters are excluded so
// windows drive letters stay local.
var schemeRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]+:`)

// IsRemote reports whether raw names something other than a local file path.
func IsRemote(raw string) bool {
	return strings.HasPrefix(raw, "//") || schemeRe.MatchString(raw)
}

// Probe answers path questions against the real file system. It is stateless.
type Probe struct{}

// GetPathInfo classifies path by extension and locates it.
func (Probe) GetPathInfo(path string) model.PathInfo {
	info := model.PathInfo{Kind: lang.KindOf(path)}
	if path == "" || IsRemote(path) {
		return info
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return info
	}
	if isFile(abs) {
		info.FullPath = abs
	}
	return info
}

// Classify resolves raw relative to baseDir.
func (Probe) Classify(baseDir, raw string) Resolution {
	if IsRemote(raw) {
		return Resolution{Kind: Remote, Path: raw}
	}
	path := filepath.FromSlash(raw)
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil || !isFile(abs) {
		return Resolution{Kind: Unresolved, Path: raw}
	}
	return Resolution{Kind: Local, Path: abs}
}

// ResolveRelative returns the absolute path raw names relative to baseDir,
// or false when it is not a local file.
func (p Probe) ResolveRelative(baseDir, raw string) (string, bool) {
	r := p.Classify(baseDir, raw)
	if r.Kind != Local {
		return "", false
	}
	return r.Path, true
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
