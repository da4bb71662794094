package archive_test

import (
	"database/sql"
	"time"

	"taxarchive/internal/archive"
)

var (
	t0    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	infer = archive.NewInference(archive.DefaultCategories)
)

// rec builds a record the way a scan would, inferring year and category
// from the directories of path.
func rec(path, hash string, modTime time.Time) archive.FileRecord {
	r := archive.FileRecord{
		Path:      path,
		Year:      infer.Year(path),
		Category:  infer.Category(path),
		SizeBytes: 10,
		ModTime:   modTime,
	}
	if hash != "" {
		r.ContentHash = sql.NullString{String: hash, Valid: true}
	}
	return r
}

func paths(records []archive.FileRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Path
	}
	return out
}

type matchFunc func(string) bool

func (f matchFunc) Match(p string) bool { return f(p) }
