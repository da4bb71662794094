package fs

import (
	"bufio"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"taxarchive/internal/archive"
)

// IgnoreFileName is the per-archive ignore file read from the archive root.
const IgnoreFileName = ".taxignore"

// Files that never belong in the manifest: the ignore file itself and
// desktop clutter. Update backups are scanned so validate can report them.
var defaultIgnorePatterns = []string{
	IgnoreFileName,
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
}

type ignoreRule struct {
	glob string
	// anchored globs contain a '/' and are matched against the relative
	// path from the root; the rest match a single name at any depth.
	anchored bool
	// dirOnly rules end in '/' and match directories, so every file below
	// a matching directory is ignored.
	dirOnly bool
}

func (r ignoreRule) matches(p string) bool {
	target := p
	if !r.anchored {
		target = path.Base(p)
	}
	ok, err := path.Match(r.glob, target)
	return err == nil && ok
}

// IgnoreMatcher decides which archive files a scan skips. Patterns use
// path.Match syntax:
//
//	*.tmp          any file named *.tmp
//	2019/scans/*   files directly inside 2019/scans
//	drafts/        every file below any directory named drafts
//	2019/scans/    every file below 2019/scans
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher parses patterns. Blank lines and '#' comments are dropped.
func NewIgnoreMatcher(patterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		rule := ignoreRule{}
		if strings.HasSuffix(raw, "/") {
			rule.dirOnly = true
			raw = strings.TrimRight(raw, "/")
			if raw == "" {
				continue
			}
		}
		rule.glob = strings.TrimPrefix(raw, "/")
		rule.anchored = strings.Contains(rule.glob, "/") || strings.HasPrefix(raw, "/")
		m.rules = append(m.rules, rule)
	}
	return m
}

// LoadIgnoreMatcher combines the built-in patterns, the configured ones and
// the root's ignore file, in that order.
func LoadIgnoreMatcher(root string, configured []string) (*IgnoreMatcher, error) {
	fromFile, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	patterns := append(append(append([]string{}, defaultIgnorePatterns...), configured...), fromFile...)
	return NewIgnoreMatcher(patterns), nil
}

// Match reports whether the file at relativePath is ignored.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if relativePath == "" {
		return false
	}
	p := filepath.ToSlash(relativePath)

	for _, r := range m.rules {
		if !r.dirOnly {
			if r.matches(p) {
				return true
			}
			continue
		}
		for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
			if r.matches(dir) {
				return true
			}
		}
	}
	return false
}

// Len returns the number of active rules.
func (m *IgnoreMatcher) Len() int {
	return len(m.rules)
}

// ParseIgnoreFile returns the raw lines of an ignore file, or nil when
// the file does not exist.
func ParseIgnoreFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}

var _ archive.PathMatcher = (*IgnoreMatcher)(nil)
