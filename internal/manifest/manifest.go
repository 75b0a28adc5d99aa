// Package manifest models the set of files installed next to a produced
// binary: an ordered mapping from destination path to content plus an
// executable flag. Enumeration is path-lexicographic so that repeated
// packaging of identical inputs is byte-identical.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FileContent is the payload installed at a manifest path.
type FileContent struct {
	Data       []byte
	Executable bool
}

// Entry pairs a destination path with its content.
type Entry struct {
	Path    string
	Content FileContent
}

// ConflictError reports two different contents registered for one path.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting content for manifest path %q", e.Path)
}

// FileManifest maps destination paths (slash-separated, relative) to file
// content.
type FileManifest struct {
	files map[string]FileContent
}

// New returns an empty manifest.
func New() *FileManifest {
	return &FileManifest{files: make(map[string]FileContent)}
}

// Len returns the number of registered files.
func (m *FileManifest) Len() int {
	return len(m.files)
}

// AddFile registers content at path. Re-adding identical content is a
// no-op; differing content fails with ConflictError.
func (m *FileManifest) AddFile(path string, content FileContent) error {
	if existing, ok := m.files[path]; ok {
		if existing.Executable != content.Executable || !bytes.Equal(existing.Data, content.Data) {
			return &ConflictError{Path: path}
		}
		return nil
	}
	m.files[path] = content
	return nil
}

// AddManifest merges every entry of other into m, erroring on conflicting
// content for the same path.
func (m *FileManifest) AddManifest(other *FileManifest) error {
	if other == nil {
		return nil
	}
	for _, path := range other.Paths() {
		if err := m.AddFile(path, other.files[path]); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the content registered at path.
func (m *FileManifest) Get(path string) (FileContent, bool) {
	c, ok := m.files[path]
	return c, ok
}

// Paths returns all destination paths in lexicographic order.
func (m *FileManifest) Paths() []string {
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entries returns all files in path-lexicographic order.
func (m *FileManifest) Entries() []Entry {
	entries := make([]Entry, 0, len(m.files))
	for _, p := range m.Paths() {
		entries = append(entries, Entry{Path: p, Content: m.files[p]})
	}
	return entries
}

// WriteToDir materializes the manifest under root, creating parent
// directories as needed.
func (m *FileManifest) WriteToDir(root string) error {
	for _, entry := range m.Entries() {
		dest := filepath.Join(root, filepath.FromSlash(entry.Path))
		if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
			return fmt.Errorf("failed to create dir for %q: %w", entry.Path, err)
		}
		mode := os.FileMode(0o600)
		if entry.Content.Executable {
			// #nosec G302 -- installed binaries must be executable by the current user
			mode = 0o700
		}
		if err := os.WriteFile(dest, entry.Content.Data, mode); err != nil {
			return fmt.Errorf("failed to write %q: %w", entry.Path, err)
		}
	}
	return nil
}
