package archive

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	hashChunkSize    = 64 * 1024
	defaultCacheSize = 4096
)

// DefaultExcludeDirs are top-level directories never scanned. The quarantine
// folder is scanned so quarantined copies stay visible to validation and to
// the planner's collision checks.
var DefaultExcludeDirs = []string{
	".git",
	".svn",
	"__pycache__",
	".cache",
	".Trash",
	"_meta",
	".taxarchive",
}

// ScannerOptions configures a Scanner.
type ScannerOptions struct {
	// ExcludeDirs names top-level directories to skip. Nested directories
	// with the same name are still scanned.
	ExcludeDirs []string

	// Categories is the known category set used for inference.
	// Nil means DefaultCategories.
	Categories []string

	// Ignore skips matching files. May be nil.
	Ignore PathMatcher

	// CacheSize bounds the hash cache. Zero means the default; negative disables it.
	CacheSize int
}

// cachedHash is a hash stamped with the file state it was computed from.
type cachedHash struct {
	size    int64
	modTime time.Time
	hash    string
}

// Scanner walks an archive root and produces one FileRecord per file.
// The only state it keeps between scans is the hash cache.
type Scanner struct {
	fsmgr   FilesystemManager
	logger  Logger
	infer   *Inference
	exclude map[string]bool
	ignore  PathMatcher
	cache   *lru.Cache[string, cachedHash]
}

// NewScanner creates a Scanner.
func NewScanner(fsmgr FilesystemManager, logger Logger, opts ScannerOptions) (*Scanner, error) {
	categories := opts.Categories
	if categories == nil {
		categories = DefaultCategories
	}

	exclude := make(map[string]bool, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		exclude[d] = true
	}

	s := &Scanner{
		fsmgr:   fsmgr,
		logger:  logger,
		infer:   NewInference(categories),
		exclude: exclude,
		ignore:  opts.Ignore,
	}

	size := opts.CacheSize
	if size == 0 {
		size = defaultCacheSize
	}
	if size > 0 {
		cache, err := lru.New[string, cachedHash](size)
		if err != nil {
			return nil, fmt.Errorf("creating hash cache: %w", err)
		}
		s.cache = cache
	}

	return s, nil
}

// Scan walks root and returns its records sorted by path.
// A missing or non-directory root is the only error; per-file failures are
// recorded as a zero size or a null hash.
func (s *Scanner) Scan(root *Path) ([]FileRecord, error) {
	var records []FileRecord

	err := s.fsmgr.Walk(root.String(), func(relPath string, d fs.DirEntry, err error) error {
		if err != nil {
			if relPath == "." {
				return err
			}
			s.logger.Warn("skipping unreadable entry", "path", relPath, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if !strings.Contains(relPath, "/") && s.exclude[relPath] {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if s.ignore != nil && s.ignore.Match(relPath) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			info = nil
		}
		records = append(records, s.record(root, relPath, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking archive root: %w", err)
	}

	slices.SortFunc(records, func(a, b FileRecord) int {
		return strings.Compare(a.Path, b.Path)
	})

	s.logger.Debug("scan complete", "root", root.String(), "files", len(records))
	return records, nil
}

// Record builds a fresh record for a single file below root.
func (s *Scanner) Record(root *Path, relPath string) FileRecord {
	return s.record(root, relPath, nil)
}

// Invalidate drops the cached hash of the file at relPath below root.
func (s *Scanner) Invalidate(root *Path, relPath string) {
	if s.cache != nil {
		s.cache.Remove(root.Join(relPath))
	}
}

// Purge empties the hash cache.
func (s *Scanner) Purge() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *Scanner) record(root *Path, relPath string, info fs.FileInfo) FileRecord {
	rec := FileRecord{
		Path:     relPath,
		Year:     s.infer.Year(relPath),
		Category: s.infer.Category(relPath),
	}

	absPath := root.Join(relPath)
	if info == nil {
		var err error
		info, err = s.fsmgr.Stat(absPath)
		if err != nil {
			s.logger.Warn("stat failed", "path", relPath, "error", err)
			return rec
		}
	}

	rec.SizeBytes = info.Size()
	rec.ModTime = info.ModTime()
	if rec.SizeBytes > 0 {
		rec.ContentHash = s.hash(absPath, rec.SizeBytes, rec.ModTime)
	}
	return rec
}

// hash returns the SHA-256 of the file, or null if it cannot be read.
func (s *Scanner) hash(absPath string, size int64, modTime time.Time) sql.NullString {
	if s.cache != nil {
		if c, ok := s.cache.Get(absPath); ok && c.size == size && c.modTime.Equal(modTime) {
			return sql.NullString{String: c.hash, Valid: true}
		}
	}

	sum, err := s.hashFile(absPath)
	if err != nil {
		s.logger.Warn("hashing failed", "path", absPath, "error", err)
		return sql.NullString{}
	}

	if s.cache != nil {
		s.cache.Add(absPath, cachedHash{size: size, modTime: modTime, hash: sum})
	}
	return sql.NullString{String: sum, Valid: true}
}

func (s *Scanner) hashFile(absPath string) (string, error) {
	f, err := s.fsmgr.Open(absPath)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
