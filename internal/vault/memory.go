package vault

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"taxarchive/internal/archive"
)

// ErrNotFound is returned when a checksum or metadata item is absent from a vault.
var ErrNotFound = errors.New("not found in vault")

// MemoryVault keeps stashed content and database snapshots in memory.
// It is safe for concurrent use and is used by tests and the "memory" vault type.
type MemoryVault struct {
	name     string
	mu       sync.RWMutex
	content  map[string][]byte // checksum -> content
	metadata map[string]memoryItem
}

type memoryItem struct {
	data    []byte
	version int64
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		content:  make(map[string][]byte),
		metadata: make(map[string]memoryItem),
	}
}

func metadataKey(archiveID, name string) string {
	return archiveID + "/" + name
}

// Name returns the configured vault name.
func (m *MemoryVault) Name() string {
	return m.name
}

func (m *MemoryVault) PutContent(checksum string, r io.Reader, size int64) error {
	data, err := readExactly(r, size)
	if err != nil {
		return fmt.Errorf("storing content %s: %w", checksum, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[checksum] = data
	return nil
}

func (m *MemoryVault) GetContent(checksum string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.content[checksum]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("content %s: %w", checksum, ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing content %s: %w", checksum, err)
	}
	return nil
}

func (m *MemoryVault) PutMetadata(archiveID string, name string, r io.Reader, size int64, version int64) error {
	data, err := readExactly(r, size)
	if err != nil {
		return fmt.Errorf("storing metadata %s for %s: %w", name, archiveID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[metadataKey(archiveID, name)] = memoryItem{data: data, version: version}
	return nil
}

func (m *MemoryVault) GetMetadata(archiveID string, name string, w io.Writer) error {
	m.mu.RLock()
	item, ok := m.metadata[metadataKey(archiveID, name)]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("metadata %s for %s: %w", name, archiveID, ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(item.data)); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

func (m *MemoryVault) GetMetadataVersion(archiveID string, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metadata[metadataKey(archiveID, name)].version, nil
}

// ValidateSetup always succeeds for a memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Has reports whether content with the given checksum is stored.
func (m *MemoryVault) Has(checksum string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.content[checksum]
	return ok
}

// ContentCount returns the number of distinct content items stored.
func (m *MemoryVault) ContentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.content)
}

// readExactly reads all of r and checks it produced size bytes.
func readExactly(r io.Reader, size int64) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading: %w", err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}
	return data, nil
}

var _ archive.Vault = (*MemoryVault)(nil)
