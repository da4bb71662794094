// Package filename encodes and decodes the canonical tax-document filename:
//
//	YYYY-MM-DD__OWNER__INTENT__CATEGORY__SOURCE[__AMOUNT]__DESCRIPTION[__STATUS].EXT
//
// Free-form tokens are uppercase, limited to [A-Z0-9_], with runs of '_'
// collapsed. The encoding must stay bit-compatible with existing archives.
package filename

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// separator delimits segments within the filename stem.
	separator = "__"

	// DateLayout is the layout of the leading date segment.
	DateLayout = "2006-01-02"

	// unknownToken replaces tokens that sanitize to nothing.
	unknownToken = "UNKNOWN"

	// minSegments is date, owner, intent, category, source, description.
	minSegments = 6
)

var amountPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// Parts is the decoded identity of one archived document.
type Parts struct {
	Date        time.Time
	Owner       Owner
	Intent      Intent
	Category    string
	Source      string
	Description string
	Ext         string // without leading dot

	// Amount is rendered with exactly two fractional digits. Amounts are
	// non-negative by convention; a negative amount would not parse back.
	Amount decimal.NullDecimal
	Status Status
}

// Equal reports whether two Parts describe the same document.
// Amounts are compared numerically.
func (p Parts) Equal(o Parts) bool {
	if !p.Date.Equal(o.Date) || p.Owner != o.Owner || p.Intent != o.Intent {
		return false
	}
	if p.Category != o.Category || p.Source != o.Source || p.Description != o.Description {
		return false
	}
	if p.Ext != o.Ext || p.Status != o.Status {
		return false
	}
	if p.Amount.Valid != o.Amount.Valid {
		return false
	}
	return !p.Amount.Valid || p.Amount.Decimal.Equal(o.Amount.Decimal)
}

// Build renders parts as a canonical filename. It never fails: free-form
// tokens are sanitized and owner/intent are written as given.
func Build(p Parts) string {
	segments := []string{
		p.Date.Format(DateLayout),
		string(p.Owner),
		string(p.Intent),
		SanitizeToken(p.Category),
		SanitizeToken(p.Source),
	}
	if p.Amount.Valid {
		segments = append(segments, p.Amount.Decimal.StringFixed(2))
	}
	segments = append(segments, SanitizeToken(p.Description))
	if p.Status != StatusNone {
		segments = append(segments, string(p.Status))
	}

	name := strings.Join(segments, separator)
	ext := strings.TrimPrefix(p.Ext, ".")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// Parse decodes a filename built by Build. It returns false for names that do
// not follow the schema; that is an expected outcome, not an error.
//
// Trailing segments are consumed greedily: a final status keyword is taken as
// the status, and a numeric segment right after SOURCE is taken as the amount.
// A description that is exactly "OK", "REVIEW" or a bare number is therefore
// read as a marker and the name is rejected for lacking a description.
func Parse(name string) (Parts, bool) {
	stem, ext := splitExt(filepath.Base(name))

	segments := strings.Split(stem, separator)
	if len(segments) < minSegments {
		return Parts{}, false
	}

	date, err := time.Parse(DateLayout, segments[0])
	if err != nil {
		return Parts{}, false
	}
	owner, ok := ParseOwner(segments[1])
	if !ok {
		return Parts{}, false
	}
	intent, ok := ParseIntent(segments[2])
	if !ok {
		return Parts{}, false
	}

	p := Parts{
		Date:     date,
		Owner:    owner,
		Intent:   intent,
		Category: segments[3],
		Source:   segments[4],
		Ext:      ext,
	}

	rest := segments[5:]
	if status, ok := ParseStatus(rest[len(rest)-1]); ok {
		p.Status = status
		rest = rest[:len(rest)-1]
	}
	if len(rest) > 0 && amountPattern.MatchString(rest[0]) {
		amount, err := decimal.NewFromString(rest[0])
		if err == nil {
			p.Amount = decimal.NewNullDecimal(amount)
			rest = rest[1:]
		}
	}
	if len(rest) == 0 {
		return Parts{}, false
	}
	p.Description = strings.Join(rest, "_")

	return p, true
}

// splitExt separates the extension from base. A dot inside a segment (for
// example an amount in a name without extension) does not start an extension.
func splitExt(base string) (stem, ext string) {
	i := strings.LastIndex(base, ".")
	if i < 0 || strings.Contains(base[i+1:], separator) {
		return base, ""
	}
	return base[:i], base[i+1:]
}

// SanitizeToken uppercases s, replaces every character outside [A-Z0-9]
// with '_', collapses runs of '_' and trims them from both ends.
// An empty result becomes "UNKNOWN".
func SanitizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	token := strings.Trim(b.String(), "_")
	if token == "" {
		return unknownToken
	}
	return token
}
