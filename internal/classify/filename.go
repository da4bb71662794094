// Package classify provides the built-in archive.Classifier, which reads tax
// metadata out of file names.
package classify

import (
	"database/sql"
	"fmt"
	"path"
	"strings"

	"taxarchive/internal/archive"
	"taxarchive/internal/filename"
)

// Confidence levels assigned by FilenameClassifier.
const (
	ConfidenceSchemaDate = 0.9
	ConfidenceYearToken  = 0.6
	ConfidenceKeyword    = 0.5
)

// FilenameClassifier classifies a file from its basename alone.
type FilenameClassifier struct {
	inference *archive.Inference
}

// NewFilenameClassifier creates a classifier that maps schema categories onto
// the given known categories. nil selects archive.DefaultCategories.
func NewFilenameClassifier(categories []string) *FilenameClassifier {
	if categories == nil {
		categories = archive.DefaultCategories
	}
	return &FilenameClassifier{inference: archive.NewInference(categories)}
}

// Classify never fails. The strongest evidence wins the year; the category
// comes from the schema CATEGORY segment when it names a known category and
// from keywords otherwise.
func (c *FilenameClassifier) Classify(relPath string) archive.Classification {
	base := path.Base(relPath)
	var out archive.Classification

	if parts, ok := filename.Parse(base); ok {
		if y := parts.Date.Year(); archive.ValidYear(y) {
			out.Year = sql.NullInt32{Int32: int32(y), Valid: true}
			out.Confidence = ConfidenceSchemaDate
			out.Evidence = append(out.Evidence, fmt.Sprintf("schema date %s", parts.Date.Format("2006-01-02")))
		}
		if cat := strings.ToLower(parts.Category); c.inference.Known(cat) {
			out.Category = sql.NullString{String: cat, Valid: true}
			out.Evidence = append(out.Evidence, fmt.Sprintf("schema category %s", parts.Category))
		}
	}

	if !out.Year.Valid {
		if y, ok := archive.YearInName(base); ok {
			out.Year = sql.NullInt32{Int32: int32(y), Valid: true}
			out.Confidence = ConfidenceYearToken
			out.Evidence = append(out.Evidence, fmt.Sprintf("year token %d", y))
		}
	}

	if !out.Category.Valid {
		if cat := archive.KeywordCategory(base); cat != "" {
			out.Category = sql.NullString{String: cat, Valid: true}
			out.Evidence = append(out.Evidence, fmt.Sprintf("keyword %s", cat))
			if out.Confidence == 0 {
				out.Confidence = ConfidenceKeyword
			}
		}
	}
	return out
}

var _ archive.Classifier = (*FilenameClassifier)(nil)
