// Package stage copies resolved files into a build directory under
// collision-free names.
package stage

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phobologic/jsharness/internal/fsys"
	"github.com/phobologic/jsharness/internal/model"
)

// Copier is the file access the Stager needs.
type Copier interface {
	CopyFile(src, dst string) error
	SetNormal(path string) error
}

// reserved marks names claimed by the build itself rather than a source file.
const reserved = "\x00reserved"

// Stager places files in one build directory. It is scoped to a single build
// and must not be shared between goroutines.
type Stager struct {
	fs    Copier
	dir   string
	token string
	log   *zap.Logger
	// claimed maps a lower-cased destination name to the canonical source that owns it.
	claimed map[string]string
}

// NewToken returns a short opaque token for uniqueness prefixes.
func NewToken() string {
	return uuid.New().String()[:8]
}

// New returns a Stager writing into dir. Names in reservedNames (the harness
// document, framework runtime files) are never given to a source file.
func New(fs Copier, dir, token string, log *zap.Logger, reservedNames ...string) *Stager {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Stager{
		fs:      fs,
		dir:     dir,
		token:   token,
		log:     log,
		claimed: make(map[string]string),
	}
	for _, name := range reservedNames {
		s.claimed[strings.ToLower(name)] = reserved
	}
	return s
}

// Destination returns the staged path for src, claiming a name if needed.
// The first source to want a base name gets it unchanged; later distinct
// sources get a token prefix.
func (s *Stager) Destination(src string) string {
	id := fsys.Canonical(src)
	base := filepath.Base(src)

	name := base
	for i := 1; ; i++ {
		owner, taken := s.claimed[strings.ToLower(name)]
		if !taken {
			s.claimed[strings.ToLower(name)] = id
			break
		}
		if owner == id {
			break
		}
		prefix := s.token
		if i > 1 {
			prefix += strconv.Itoa(i)
		}
		name = prefix + "_" + base
	}
	return filepath.Join(s.dir, name)
}

// Stage copies f into the build directory and records its staged path.
// Remote and embedded files are left alone.
func (s *Stager) Stage(f *model.ReferencedFile) error {
	if !f.IsLocal || f.Embedded {
		return nil
	}
	dst := s.Destination(f.Path)
	if err := s.fs.CopyFile(f.Path, dst); err != nil {
		return fmt.Errorf("staging %s: %w", f.Path, err)
	}
	if err := s.fs.SetNormal(dst); err != nil {
		return fmt.Errorf("staging %s: %w", f.Path, err)
	}
	f.StagedPath = dst
	s.log.Debug("staged", zap.String("source", f.Path), zap.String("dest", dst))
	return nil
}

// StageAll stages files, the file under test first so it keeps its own name.
// An HTML file under test is not staged: the harness replaces it.
func (s *Stager) StageAll(files []*model.ReferencedFile) error {
	for _, f := range files {
		if f.IsFileUnderTest && f.Kind == model.JavaScript {
			if err := s.Stage(f); err != nil {
				return err
			}
		}
	}
	for _, f := range files {
		if f.IsFileUnderTest {
			continue
		}
		if err := s.Stage(f); err != nil {
			return err
		}
	}
	return nil
}
