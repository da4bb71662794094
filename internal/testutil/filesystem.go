package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"taxarchive/internal/archive"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Directories exist implicitly above every file. Individual operations can
// be made to fail per path to exercise error handling.
type MockFilesystemManager struct {
	files map[string]*MockFile

	failOpen   map[string]error
	failStat   map[string]error
	failMove   map[string]error
	failRemove map[string]error
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:      make(map[string]*MockFile),
		failOpen:   make(map[string]error),
		failStat:   make(map[string]error),
		failMove:   make(map[string]error),
		failRemove: make(map[string]error),
	}
}

// AddFile adds a file with a fixed modification time.
func (m *MockFilesystemManager) AddFile(path string, content []byte, modTime time.Time) {
	m.files[filepath.Clean(path)] = &MockFile{
		Content:     content,
		Permissions: 0o644,
		ModTime:     modTime,
	}
}

// AddDirectory adds an empty directory.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.files[filepath.Clean(path)] = &MockFile{
		Permissions: 0o755,
		ModTime:     time.Now(),
		IsDirectory: true,
	}
}

// File returns the file stored at path, or nil.
func (m *MockFilesystemManager) File(path string) *MockFile {
	f, ok := m.files[filepath.Clean(path)]
	if !ok || f.IsDirectory {
		return nil
	}
	return f
}

// FailOpen makes Open of path return err.
func (m *MockFilesystemManager) FailOpen(path string, err error) {
	m.failOpen[filepath.Clean(path)] = err
}

// FailStat makes Stat of path return err.
func (m *MockFilesystemManager) FailStat(path string, err error) {
	m.failStat[filepath.Clean(path)] = err
}

// FailMove makes any Move from src return err.
func (m *MockFilesystemManager) FailMove(src string, err error) {
	m.failMove[filepath.Clean(src)] = err
}

// FailRemove makes Remove of path return err.
func (m *MockFilesystemManager) FailRemove(path string, err error) {
	m.failRemove[filepath.Clean(path)] = err
}

func (m *MockFilesystemManager) isDir(path string) bool {
	if f, ok := m.files[path]; ok {
		return f.IsDirectory
	}
	prefix := path + string(filepath.Separator)
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (m *MockFilesystemManager) info(path string) (fs.FileInfo, error) {
	if f, ok := m.files[path]; ok {
		return &mockFileInfo{name: filepath.Base(path), file: f}, nil
	}
	if m.isDir(path) {
		return &mockFileInfo{name: filepath.Base(path), file: &MockFile{Permissions: 0o755, IsDirectory: true}}, nil
	}
	return nil, fmt.Errorf("stat %s: %w", path, fs.ErrNotExist)
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*archive.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}
	info, err := m.info(absPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absPath)
	}
	return archive.NewPath(absPath, info), nil
}

// Walk visits entries below root depth-first in lexical order, like fs.WalkDir.
func (m *MockFilesystemManager) Walk(root string, fn archive.WalkFunc) error {
	root = filepath.Clean(root)
	info, err := m.info(root)
	if err != nil {
		return fn(".", nil, err)
	}
	if err := fn(".", fs.FileInfoToDirEntry(info), nil); err != nil {
		if errors.Is(err, fs.SkipDir) {
			return nil
		}
		return err
	}
	err = m.walkDir(root, "", fn)
	if errors.Is(err, fs.SkipDir) || errors.Is(err, fs.SkipAll) {
		return nil
	}
	return err
}

func (m *MockFilesystemManager) walkDir(root, rel string, fn archive.WalkFunc) error {
	dir := root
	if rel != "" {
		dir = filepath.Join(root, filepath.FromSlash(rel))
	}
	prefix := dir + string(filepath.Separator)

	children := make(map[string]bool)
	for p := range m.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimPrefix(p, prefix), string(filepath.Separator))
		children[name] = true
	}
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		childPath := filepath.Join(dir, name)
		info, _ := m.info(childPath)
		err := fn(childRel, &mockDirEntry{info: info, infoErr: m.failStat[childPath]}, nil)
		if info.IsDir() {
			if errors.Is(err, fs.SkipDir) {
				continue
			}
			if err != nil {
				return err
			}
			if err := m.walkDir(root, childRel, fn); err != nil {
				return err
			}
			continue
		}
		if errors.Is(err, fs.SkipDir) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	path = filepath.Clean(path)
	if err := m.failOpen[path]; err != nil {
		return nil, err
	}
	file, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path)
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	path = filepath.Clean(path)
	if err := m.failStat[path]; err != nil {
		return nil, err
	}
	return m.info(path)
}

func (m *MockFilesystemManager) MkdirAll(path string) error {
	path = filepath.Clean(path)
	if f, ok := m.files[path]; ok && !f.IsDirectory {
		return fmt.Errorf("mkdir %s: not a directory", path)
	}
	if !m.isDir(path) {
		m.AddDirectory(path)
	}
	return nil
}

func (m *MockFilesystemManager) Move(src, dst string) error {
	src, dst = filepath.Clean(src), filepath.Clean(dst)
	if err := m.failMove[src]; err != nil {
		return err
	}
	file, ok := m.files[src]
	if !ok || file.IsDirectory {
		return fmt.Errorf("move %s: %w", src, fs.ErrNotExist)
	}
	if _, exists := m.files[dst]; exists {
		return fmt.Errorf("move %s: %w", dst, fs.ErrExist)
	}
	delete(m.files, src)
	m.files[dst] = file
	return nil
}

func (m *MockFilesystemManager) Remove(path string) error {
	path = filepath.Clean(path)
	if err := m.failRemove[path]; err != nil {
		return err
	}
	if _, ok := m.files[path]; !ok {
		return fmt.Errorf("remove %s: %w", path, fs.ErrNotExist)
	}
	delete(m.files, path)
	return nil
}

// mockDirEntry implements fs.DirEntry. Info fails when a stat failure is injected.
type mockDirEntry struct {
	info    fs.FileInfo
	infoErr error
}

func (e *mockDirEntry) Name() string      { return e.info.Name() }
func (e *mockDirEntry) IsDir() bool       { return e.info.IsDir() }
func (e *mockDirEntry) Type() fs.FileMode { return e.info.Mode().Type() }

func (e *mockDirEntry) Info() (fs.FileInfo, error) {
	if e.infoErr != nil {
		return nil, e.infoErr
	}
	return e.info, nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name string
	file *MockFile
}

func (i *mockFileInfo) Name() string       { return i.name }
func (i *mockFileInfo) Size() int64        { return int64(len(i.file.Content)) }
func (i *mockFileInfo) ModTime() time.Time { return i.file.ModTime }
func (i *mockFileInfo) IsDir() bool        { return i.file.IsDirectory }
func (i *mockFileInfo) Sys() any           { return i.file }

func (i *mockFileInfo) Mode() fs.FileMode {
	if i.file.IsDirectory {
		return fs.ModeDir | i.file.Permissions
	}
	return i.file.Permissions
}

// Compile-time check
var _ archive.FilesystemManager = (*MockFilesystemManager)(nil)
