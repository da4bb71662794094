package archive

import (
	"io"
	"io/fs"
)

// WalkFunc is called for every entry below the walked root. relPath is
// slash-separated and relative to the root. It follows fs.WalkDirFunc
// conventions: returning fs.SkipDir on a directory skips it.
type WalkFunc func(relPath string, d fs.DirEntry, err error) error

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access so tests can inject failures without touching
// the real filesystem in unexpected ways. All paths are absolute OS paths.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path for an existing directory.
	// This is the only fatal precondition of a scan or sync.
	Resolve(rawPath string) (*Path, error)

	// Walk visits the tree rooted at root in lexical order.
	Walk(root string, fn WalkFunc) error

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Stat returns fresh file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string) error

	// Move relocates src to dst, preserving modification time and mode.
	// dst must not exist.
	Move(src, dst string) error

	// Remove deletes a single file.
	Remove(path string) error
}

// PathMatcher reports whether a relative path should be skipped by a scan.
type PathMatcher interface {
	Match(relativePath string) bool
}
