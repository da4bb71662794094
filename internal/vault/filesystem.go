package vault

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"taxarchive/internal/archive"
)

// FileSystemVault stores stashes and snapshots in a local directory,
// typically on a second disk or a mounted share:
//
//	<root>/
//	  content/
//	    <aa>/<checksum>        (stashed files, sharded by checksum prefix)
//	  metadata/
//	    <archiveID>/<name>     (database snapshots)
//	    <archiveID>/<name>.version
type FileSystemVault struct {
	name        string
	root        string
	contentDir  string
	metadataDir string
}

// NewFileSystemVault creates the vault layout under root if needed.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	v := &FileSystemVault{
		name:        name,
		root:        root,
		contentDir:  filepath.Join(root, "content"),
		metadataDir: filepath.Join(root, "metadata"),
	}
	for _, dir := range []string{v.contentDir, v.metadataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating vault directory %s: %w", dir, err)
		}
	}
	return v, nil
}

// Name returns the configured vault name.
func (v *FileSystemVault) Name() string {
	return v.name
}

func (v *FileSystemVault) contentPath(checksum string) (string, error) {
	if err := checkKey(checksum); err != nil {
		return "", err
	}
	shard := checksum
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(v.contentDir, shard, checksum), nil
}

func (v *FileSystemVault) metadataPath(archiveID, name string) (string, error) {
	if err := checkKey(archiveID); err != nil {
		return "", err
	}
	if err := checkKey(name); err != nil {
		return "", err
	}
	return filepath.Join(v.metadataDir, archiveID, name), nil
}

// PutContent is idempotent: existing content is left in place and the reader drained.
func (v *FileSystemVault) PutContent(checksum string, r io.Reader, size int64) error {
	dest, err := v.contentPath(checksum)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("reading content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}
	return writeAtomic(dest, r, size)
}

func (v *FileSystemVault) GetContent(checksum string, w io.Writer) error {
	src, err := v.contentPath(checksum)
	if err != nil {
		return err
	}
	if err := readInto(src, w); err != nil {
		return fmt.Errorf("content %s: %w", checksum, err)
	}
	return nil
}

// PutMetadata writes the item first and the version marker second, so a
// crash never leaves a version pointing at missing data.
func (v *FileSystemVault) PutMetadata(archiveID string, name string, r io.Reader, size int64, version int64) error {
	dest, err := v.metadataPath(archiveID, name)
	if err != nil {
		return err
	}
	if err := writeAtomic(dest, r, size); err != nil {
		return fmt.Errorf("storing metadata %s: %w", name, err)
	}
	data := strconv.FormatInt(version, 10)
	if err := writeAtomic(dest+".version", strings.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("storing metadata version: %w", err)
	}
	return nil
}

func (v *FileSystemVault) GetMetadata(archiveID string, name string, w io.Writer) error {
	src, err := v.metadataPath(archiveID, name)
	if err != nil {
		return err
	}
	if err := readInto(src, w); err != nil {
		return fmt.Errorf("metadata %s for %s: %w", name, archiveID, err)
	}
	return nil
}

// GetMetadataVersion returns 0 when no version has been written.
func (v *FileSystemVault) GetMetadataVersion(archiveID string, name string) (int64, error) {
	p, err := v.metadataPath(archiveID, name)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(p + ".version")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}
	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the vault directories exist.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.contentDir, v.metadataDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// checkKey rejects names that would escape the vault directory.
func checkKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid vault key %q", key)
	}
	return nil
}

// writeAtomic writes r to dest via a temp file and rename.
func writeAtomic(dest string, r io.Reader, expectedSize int64) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("writing data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true
	return nil
}

func readInto(src string, w io.Writer) error {
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	return nil
}

var _ archive.Vault = (*FileSystemVault)(nil)
