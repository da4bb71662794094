package archive

import (
	"database/sql"
	"path"
	"strconv"
	"strings"
	"time"
)

const (
	// MinYear and MaxYear bound a plausible tax year.
	MinYear = 1900
	MaxYear = 2100
)

// FileRecord is one physical file observed during a scan.
// Records are values: a changed file produces a new record on the next scan.
type FileRecord struct {
	Path        string         // slash-separated, relative to the archive root
	Year        sql.NullInt32  // inferred tax year, null for personal or unknown
	Category    sql.NullString // inferred category folder
	SizeBytes   int64
	ContentHash sql.NullString // hex SHA-256, null if unreadable or empty
	ModTime     time.Time
}

// Base returns the file name of the record.
func (r FileRecord) Base() string {
	return path.Base(r.Path)
}

// Dir returns the slash-separated parent directory, "." at the root.
func (r FileRecord) Dir() string {
	return path.Dir(r.Path)
}

// TopSegment returns the first path segment below the root.
func (r FileRecord) TopSegment() string {
	top, _, _ := strings.Cut(r.Path, "/")
	return top
}

// IsPlaceholder reports whether the record is a zero-byte file with no hash.
func (r FileRecord) IsPlaceholder() bool {
	return r.SizeBytes == 0 && !r.ContentHash.Valid
}

// IsBackup reports whether the record is a backup kept by an update whose
// stash failed.
func (r FileRecord) IsBackup() bool {
	return strings.HasSuffix(r.Path, BackupSuffix)
}

// CanonicalPath returns the one correct location for a classified document.
func CanonicalPath(year int32, category, base string) string {
	return path.Join(strconv.Itoa(int(year)), category, base)
}

// Canonical returns the record's canonical path, or false if the record
// lacks a year or a category.
func (r FileRecord) Canonical() (string, bool) {
	if !r.Year.Valid || !r.Category.Valid {
		return "", false
	}
	return CanonicalPath(r.Year.Int32, r.Category.String, r.Base()), true
}

// IsCanonical reports whether the record already sits at its canonical path.
func (r FileRecord) IsCanonical() bool {
	p, ok := r.Canonical()
	return ok && p == r.Path
}

// ValidYear reports whether y is within the accepted tax year range.
func ValidYear(y int) bool {
	return y >= MinYear && y <= MaxYear
}
