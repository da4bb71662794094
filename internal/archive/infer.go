package archive

import (
	"database/sql"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Category folder names with special meaning to the heuristics.
const (
	CategoryReceipts       = "receipts"
	CategoryBankStatements = "bank_statements"
	CategoryStatements     = "statements"
	CategoryInvoices       = "invoices"
)

// DefaultCategories is the known set of category folder names.
var DefaultCategories = []string{
	CategoryReceipts,
	CategoryBankStatements,
	CategoryStatements,
	CategoryInvoices,
	"tax_returns",
	"w2",
	"1099",
	"income",
	"expenses",
	"healthcare",
	"charitable",
	"investments",
	"property",
	"insurance",
	"business",
	"childcare",
	"education",
}

var (
	bareYear   = regexp.MustCompile(`^\d{4}$`)
	yearInName = regexp.MustCompile(`(?:^|\D)(\d{4})(?:\D|$)`)
)

// Inference derives year and category from a record's directory segments.
// The file name itself never contributes, so misplacement checks can compare
// what the name says against where the file sits.
type Inference struct {
	categories map[string]bool
}

// NewInference creates an Inference over the given known categories.
// Category names are matched case-insensitively.
func NewInference(categories []string) *Inference {
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[strings.ToLower(c)] = true
	}
	return &Inference{categories: set}
}

// Year scans directory segments in order. The first bare 4-digit segment in
// [MinYear,MaxYear] yields that year; a "personal" segment yields null.
func (i *Inference) Year(relPath string) sql.NullInt32 {
	for _, seg := range dirSegments(relPath) {
		if strings.EqualFold(seg, "personal") {
			return sql.NullInt32{}
		}
		if !bareYear.MatchString(seg) {
			continue
		}
		y, _ := strconv.Atoi(seg)
		if ValidYear(y) {
			return sql.NullInt32{Int32: int32(y), Valid: true}
		}
	}
	return sql.NullInt32{}
}

// Category returns the first directory segment naming a known category.
// Without an exact match it falls back to keyword rules on each segment.
func (i *Inference) Category(relPath string) sql.NullString {
	segs := dirSegments(relPath)
	for _, seg := range segs {
		lower := strings.ToLower(seg)
		if i.categories[lower] {
			return sql.NullString{String: lower, Valid: true}
		}
	}
	for _, seg := range segs {
		if c := KeywordCategory(seg); c != "" {
			return sql.NullString{String: c, Valid: true}
		}
	}
	return sql.NullString{}
}

// Known reports whether category is in the known set.
func (i *Inference) Known(category string) bool {
	return i.categories[strings.ToLower(category)]
}

// KeywordCategory applies the substring fallback rules to one name and
// returns "" when none match.
func KeywordCategory(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "receipt"):
		return CategoryReceipts
	case strings.Contains(lower, "statement") && strings.Contains(lower, "bank"):
		return CategoryBankStatements
	case strings.Contains(lower, "statement"):
		return CategoryStatements
	case strings.Contains(lower, "invoice"):
		return CategoryInvoices
	default:
		return ""
	}
}

// YearInName returns the first 4-digit token in name that is a valid tax year.
// Tokens must not be part of a longer digit run.
func YearInName(name string) (int, bool) {
	for _, m := range yearInName.FindAllStringSubmatch(name, -1) {
		y, err := strconv.Atoi(m[1])
		if err == nil && ValidYear(y) {
			return y, true
		}
	}
	return 0, false
}

// dirSegments returns the directory components of a slash-separated path.
func dirSegments(relPath string) []string {
	dir := path.Dir(relPath)
	if dir == "." || dir == "/" {
		return nil
	}
	return strings.Split(dir, "/")
}
