package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taxarchive/internal/archive"
	"taxarchive/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements archive.Store using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path and applies pending migrations.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	d := NewSQLiteDatabaseFromDB(db)
	d.path = path
	return d, nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite connection.
// The pool is limited to one connection so ":memory:" databases are shared
// by every query.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Scan operations

func (s *SQLiteDatabase) SaveScan(scan *archive.Scan, records []archive.FileRecord) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scans (id, root, started_at, total_files) VALUES (?, ?, ?, ?)`,
		scan.ID, scan.Root, scan.StartedAt, scan.TotalFiles); err != nil {
		return fmt.Errorf("inserting scan: %w", err)
	}

	// Only the newest manifest is kept; older scans remain as history rows.
	if _, err := tx.ExecContext(ctx, `DELETE FROM manifest_entries WHERE scan_id != ?`, scan.ID); err != nil {
		return fmt.Errorf("pruning old manifest entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO manifest_entries (scan_id, path, year, category, size_bytes, content_hash, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing manifest insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, scan.ID, r.Path, r.Year, r.Category, r.SizeBytes, r.ContentHash, r.ModTime); err != nil {
			return fmt.Errorf("inserting manifest entry %s: %w", r.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing scan: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) LatestScan() (*archive.Scan, []archive.FileRecord, error) {
	var scan archive.Scan
	err := s.db.QueryRow(
		`SELECT id, root, started_at, total_files FROM scans ORDER BY rowid DESC LIMIT 1`,
	).Scan(&scan.ID, &scan.Root, &scan.StartedAt, &scan.TotalFiles)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("finding latest scan: %w", err)
	}

	records, err := s.queryRecords(
		`SELECT path, year, category, size_bytes, content_hash, modified_at
		 FROM manifest_entries WHERE scan_id = ? ORDER BY path`, scan.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading manifest entries: %w", err)
	}
	return &scan, records, nil
}

func (s *SQLiteDatabase) FindRecordsByHash(hash string) ([]archive.FileRecord, error) {
	records, err := s.queryRecords(
		`SELECT path, year, category, size_bytes, content_hash, modified_at
		 FROM manifest_entries
		 WHERE content_hash = ? AND scan_id = (SELECT id FROM scans ORDER BY rowid DESC LIMIT 1)
		 ORDER BY path`, hash)
	if err != nil {
		return nil, fmt.Errorf("finding records by hash: %w", err)
	}
	return records, nil
}

func (s *SQLiteDatabase) queryRecords(query string, args ...any) ([]archive.FileRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []archive.FileRecord
	for rows.Next() {
		var r archive.FileRecord
		if err := rows.Scan(&r.Path, &r.Year, &r.Category, &r.SizeBytes, &r.ContentHash, &r.ModTime); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Stash operations

func (s *SQLiteDatabase) RecordStash(stash *archive.Stash) error {
	_, err := s.db.Exec(
		`INSERT INTO stashes (checksum, content_id, original_path, reason, size_bytes, encrypted, stashed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stash.Checksum, stash.ContentID, stash.OriginalPath, stash.Reason, stash.Size, stash.Encrypted, stash.StashedAt)
	if err != nil {
		return fmt.Errorf("recording stash: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindStash(checksum string) (*archive.Stash, error) {
	stashes, err := s.queryStashes(
		`SELECT checksum, content_id, original_path, reason, size_bytes, encrypted, stashed_at
		 FROM stashes WHERE checksum = ? ORDER BY id DESC LIMIT 1`, checksum)
	if err != nil {
		return nil, fmt.Errorf("finding stash: %w", err)
	}
	if len(stashes) == 0 {
		return nil, nil // Not found
	}
	return stashes[0], nil
}

func (s *SQLiteDatabase) ListStashes(limit int) ([]*archive.Stash, error) {
	stashes, err := s.queryStashes(
		`SELECT checksum, content_id, original_path, reason, size_bytes, encrypted, stashed_at
		 FROM stashes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stashes: %w", err)
	}
	return stashes, nil
}

func (s *SQLiteDatabase) queryStashes(query string, args ...any) ([]*archive.Stash, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stashes []*archive.Stash
	for rows.Next() {
		var st archive.Stash
		if err := rows.Scan(&st.Checksum, &st.ContentID, &st.OriginalPath, &st.Reason, &st.Size, &st.Encrypted, &st.StashedAt); err != nil {
			return nil, err
		}
		stashes = append(stashes, &st)
	}
	return stashes, rows.Err()
}

// Operation tracking

func (s *SQLiteDatabase) CreateOperation(operation string, parameters string) (*archive.Operation, error) {
	op := &archive.Operation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
		StartedAt:  time.Now(),
	}
	res, err := s.db.Exec(
		`INSERT INTO sync_operations (started_at, operation, parameters, status) VALUES (?, ?, ?, ?)`,
		op.StartedAt, op.Operation, op.Parameters, op.Status)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	op.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation ID: %w", err)
	}
	return op, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	_, err := s.db.Exec(
		`UPDATE sync_operations SET finished_at = ?, status = ? WHERE id = ?`,
		time.Now(), status, id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*archive.Operation, error) {
	rows, err := s.db.Query(
		`SELECT id, operation, parameters, status, started_at, finished_at
		 FROM sync_operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*archive.Operation
	for rows.Next() {
		var op archive.Operation
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Status, &op.StartedAt, &op.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

func (s *SQLiteDatabase) MaxOperationID() (int64, error) {
	var id int64
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM sync_operations`).Scan(&id); err != nil {
		return 0, fmt.Errorf("getting max operation ID: %w", err)
	}
	return id, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements archive.Store
var _ archive.Store = (*SQLiteDatabase)(nil)
