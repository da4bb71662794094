package archive

import (
	"io/fs"
	"path/filepath"
)

// Path represents a validated archive root with cached metadata.
// Path objects are created by FilesystemManager.Resolve(), which checks the
// path exists, is a directory, and resolves it to an absolute path.
type Path struct {
	absPath string
	info    fs.FileInfo
}

// NewPath creates a Path from its components.
// This is primarily for use by FilesystemManager implementations.
func NewPath(absPath string, info fs.FileInfo) *Path {
	return &Path{
		absPath: absPath,
		info:    info,
	}
}

// String returns the absolute path as a string.
func (p *Path) String() string {
	return p.absPath
}

// Info returns the cached file info from when the path was resolved.
func (p *Path) Info() fs.FileInfo {
	return p.info
}

// Join returns the absolute OS path of a slash-separated path relative to p.
func (p *Path) Join(relPath string) string {
	return filepath.Join(p.absPath, filepath.FromSlash(relPath))
}
