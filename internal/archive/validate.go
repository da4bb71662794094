package archive

import (
	"fmt"
	"slices"
	"strings"
)

// IssueLevel is the severity of a validation issue.
type IssueLevel string

const (
	LevelError   IssueLevel = "error"
	LevelWarning IssueLevel = "warning"
)

// DefaultOrphanExceptions are top-level names allowed to hold unclassified files.
var DefaultOrphanExceptions = []string{"Personal", "README.md"}

// ValidationIssue is one finding against one path.
type ValidationIssue struct {
	Level   IssueLevel
	Message string
	Path    string
}

// ValidationReport is the outcome of validating one scan.
type ValidationReport struct {
	Issues     []ValidationIssue
	TotalFiles int
	Valid      bool
}

// Count returns the number of issues at the given level.
func (r *ValidationReport) Count(level IssueLevel) int {
	n := 0
	for _, i := range r.Issues {
		if i.Level == level {
			n++
		}
	}
	return n
}

// Validator applies structural and duplicate rules to scanned records.
type Validator struct {
	allowed    map[string]bool
	exceptions []string
}

// NewValidator creates a Validator. Nil arguments select the defaults.
func NewValidator(allowedCategories, orphanExceptions []string) *Validator {
	if allowedCategories == nil {
		allowedCategories = DefaultCategories
	}
	if orphanExceptions == nil {
		orphanExceptions = DefaultOrphanExceptions
	}
	allowed := make(map[string]bool, len(allowedCategories))
	for _, c := range allowedCategories {
		allowed[strings.ToLower(c)] = true
	}
	return &Validator{allowed: allowed, exceptions: orphanExceptions}
}

// Validate checks every record and the cross-record indexes. Per-record
// issues come first in path order, then hash duplicates, then name duplicates.
// Only error-level issues make the report invalid.
func (v *Validator) Validate(records []FileRecord) ValidationReport {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b FileRecord) int { return strings.Compare(a.Path, b.Path) })

	var issues []ValidationIssue
	byHash := make(map[string][]string)
	byName := make(map[string][]string)

	for _, r := range sorted {
		issues = append(issues, v.checkRecord(r)...)
		if r.ContentHash.Valid && !r.IsBackup() {
			byHash[r.ContentHash.String] = append(byHash[r.ContentHash.String], r.Path)
		}
		byName[r.Base()] = append(byName[r.Base()], r.Path)
	}

	issues = append(issues, hashDuplicates(byHash)...)
	issues = append(issues, nameDuplicates(byName)...)

	report := ValidationReport{
		Issues:     issues,
		TotalFiles: len(records),
	}
	report.Valid = report.Count(LevelError) == 0
	return report
}

func (v *Validator) checkRecord(r FileRecord) []ValidationIssue {
	var issues []ValidationIssue
	add := func(level IssueLevel, format string, args ...any) {
		issues = append(issues, ValidationIssue{Level: level, Message: fmt.Sprintf(format, args...), Path: r.Path})
	}

	if r.IsBackup() {
		add(LevelWarning, "update backup left behind: the replaced file was not stashed")
		return issues
	}

	if r.IsPlaceholder() {
		add(LevelWarning, "zero-byte placeholder")
	}

	if !r.Year.Valid && !r.Category.Valid && !v.isException(r.TopSegment()) {
		add(LevelError, "orphan: no year or category could be determined")
	}

	if r.Year.Valid && !ValidYear(int(r.Year.Int32)) {
		add(LevelError, "invalid year %d", r.Year.Int32)
	}

	if r.Category.Valid && !v.allowed[strings.ToLower(r.Category.String)] {
		add(LevelWarning, "unknown category %q", r.Category.String)
	}

	base := r.Base()
	if y, ok := YearInName(base); ok && r.Year.Valid && int32(y) != r.Year.Int32 {
		add(LevelWarning, "filename year %d disagrees with folder year %d", y, r.Year.Int32)
	}

	lower := strings.ToLower(base)
	category := r.Category.String
	switch {
	case strings.Contains(lower, "receipt") && category != CategoryReceipts:
		add(LevelWarning, "filename suggests %s but category is %s", CategoryReceipts, categoryLabel(r))
	case strings.Contains(lower, "bank") && strings.Contains(lower, "statement") && category != CategoryBankStatements:
		add(LevelWarning, "filename suggests %s but category is %s", CategoryBankStatements, categoryLabel(r))
	case strings.Contains(lower, "invoice") && category != CategoryInvoices:
		add(LevelWarning, "filename suggests %s but category is %s", CategoryInvoices, categoryLabel(r))
	}

	return issues
}

func (v *Validator) isException(top string) bool {
	for _, e := range v.exceptions {
		if strings.EqualFold(e, top) {
			return true
		}
	}
	return false
}

func categoryLabel(r FileRecord) string {
	if !r.Category.Valid {
		return "unset"
	}
	return r.Category.String
}

func hashDuplicates(byHash map[string][]string) []ValidationIssue {
	var issues []ValidationIssue
	for hash, paths := range byHash {
		if len(paths) < 2 {
			continue
		}
		issues = append(issues, ValidationIssue{
			Level:   LevelWarning,
			Message: fmt.Sprintf("duplicate content %s in %d files: %s", shortHash(hash), len(paths), strings.Join(paths, ", ")),
			Path:    paths[0],
		})
	}
	sortIssues(issues)
	return issues
}

func nameDuplicates(byName map[string][]string) []ValidationIssue {
	var issues []ValidationIssue
	for name, paths := range byName {
		dirs := make(map[string]bool)
		for _, p := range paths {
			dirs[FileRecord{Path: p}.Dir()] = true
		}
		if len(dirs) < 2 {
			continue
		}
		issues = append(issues, ValidationIssue{
			Level:   LevelWarning,
			Message: fmt.Sprintf("filename %s appears in %d directories: %s", name, len(dirs), strings.Join(paths, ", ")),
			Path:    paths[0],
		})
	}
	sortIssues(issues)
	return issues
}

func sortIssues(issues []ValidationIssue) {
	slices.SortFunc(issues, func(a, b ValidationIssue) int { return strings.Compare(a.Path, b.Path) })
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
