package archive

import "io"

// Vault provides an interface for off-archive storage backends.
// Displaced files are stored by checksum; database snapshots are stored as
// named metadata per archive. All operations stream through io.Reader and
// io.Writer so large scans never sit in memory.
type Vault interface {
	// PutContent stores content identified by its checksum.
	// The operation is idempotent: storing the same checksum twice is safe.
	// size is the number of bytes that will be read from r.
	PutContent(checksum string, r io.Reader, size int64) error

	// GetContent retrieves content by checksum and writes it to w.
	GetContent(checksum string, w io.Writer) error

	// PutMetadata stores a named metadata item for an archive.
	// version is stored alongside for consistency checks.
	PutMetadata(archiveID string, name string, r io.Reader, size int64, version int64) error

	// GetMetadata retrieves a named metadata item and writes it to w.
	GetMetadata(archiveID string, name string, w io.Writer) error

	// GetMetadataVersion returns the stored version of a metadata item.
	// Returns 0 if nothing has been stored for this archive/name.
	GetMetadataVersion(archiveID string, name string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
