package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ArchiveFile describes one file of a test archive on disk.
type ArchiveFile struct {
	Path    string // slash-separated, relative to the root
	Content string
	ModTime time.Time // zero keeps the creation time
}

// WriteArchive creates files below root, making directories as needed.
func WriteArchive(t *testing.T, root string, files ...ArchiveFile) {
	t.Helper()
	for _, f := range files {
		WriteFile(t, root, f.Path, f.Content, f.ModTime)
	}
}

// WriteFile writes one file below root and optionally sets its mtime.
func WriteFile(t *testing.T, root, relPath, content string, modTime time.Time) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("creating directory for %s: %v", relPath, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", relPath, err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(p, modTime, modTime); err != nil {
			t.Fatalf("setting times on %s: %v", relPath, err)
		}
	}
	return p
}

// ReadFile returns the content of a file below root, failing the test if it is missing.
func ReadFile(t *testing.T, root, relPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		t.Fatalf("reading %s: %v", relPath, err)
	}
	return string(data)
}

// Exists reports whether a path below root exists.
func Exists(t *testing.T, root, relPath string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(relPath)))
	return err == nil
}
