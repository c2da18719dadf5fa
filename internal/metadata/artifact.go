// file: internal/metadata/artifact.go
// version: 1.1.0
// guid: f3f77073-0267-4979-9088-7b018a93872a

package metadata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jdfalk/music-catalog/internal/metrics"
)

const (
	downloadPattern = "extract-*.audio"
	coverPattern    = "cover-*"
)

// Artifact is a temporary file owned by a single extraction call.
type Artifact struct {
	Path string
	Size int64

	once sync.Once
	err  error
}

// createArtifact opens a new temp file in dir (OS default when empty).
// The caller must Close the file and eventually Remove the artifact.
func createArtifact(dir, pattern string) (*os.File, *Artifact, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	metrics.IncTransientArtifacts()
	return f, &Artifact{Path: f.Name()}, nil
}

// Remove deletes the file. It is safe to call more than once and on nil.
func (a *Artifact) Remove() error {
	if a == nil {
		return nil
	}
	a.once.Do(func() {
		metrics.DecTransientArtifacts()
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.err = err
		}
	})
	return a.err
}

// StaleArtifacts lists artifacts in dir (OS default when empty) last modified
// before cutoff. Calls that exit normally never leave any behind; these come
// from processes that were killed mid-extraction.
func StaleArtifacts(dir string, cutoff time.Time) ([]string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	var stale []string
	for _, pattern := range []string{downloadPattern, coverPattern} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		for _, path := range matches {
			info, err := os.Lstat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if info.ModTime().Before(cutoff) {
				stale = append(stale, path)
			}
		}
	}
	return stale, nil
}
