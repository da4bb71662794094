package archive

import (
	"database/sql"
	"time"
)

// Scan describes one persisted scan run. The manifest entries of the scan
// are the FileRecords it produced.
type Scan struct {
	ID         string
	Root       string
	StartedAt  time.Time
	TotalFiles int
}

// Stash records a file displaced from the archive into the vault, either
// because an update replaced it or because it was deleted as a duplicate.
type Stash struct {
	Checksum     string // hex SHA-256 of the plaintext
	ContentID    string // vault key; the ciphertext hash when encrypted
	OriginalPath string
	Reason       string // "replaced" or "deleted"
	Size         int64
	Encrypted    bool
	StashedAt    time.Time
}

// Operation tracks one CLI operation that mutated the archive or the store.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// Store provides an interface for the metadata database: the manifest and
// hash index of the latest scans, the stash ledger and the operation log.
// Lookups that find nothing return nil with no error.
type Store interface {
	// SaveScan persists a scan and its records as the newest manifest.
	SaveScan(scan *Scan, records []FileRecord) error

	// LatestScan returns the newest scan and its records.
	LatestScan() (*Scan, []FileRecord, error)

	// FindRecordsByHash returns the records of the latest scan with the given content hash.
	FindRecordsByHash(hash string) ([]FileRecord, error)

	// RecordStash appends to the stash ledger.
	RecordStash(stash *Stash) error

	// FindStash returns the most recent stash with the given checksum.
	FindStash(checksum string) (*Stash, error)

	// ListStashes returns the most recent stashes, newest first.
	ListStashes(limit int) ([]*Stash, error)

	// CreateOperation starts an operation record and assigns its ID.
	CreateOperation(operation string, parameters string) (*Operation, error)

	// FinishOperation stamps the finish time and final status.
	FinishOperation(id int64, status string) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*Operation, error)

	// MaxOperationID returns the highest operation ID, 0 if there are none.
	MaxOperationID() (int64, error)

	// Close closes the database connection.
	Close() error
}
