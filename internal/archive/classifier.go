package archive

import "database/sql"

// Classification is a classifier's best guess for one file.
// Confidence is in [0,1]; 0 with no evidence means "could not determine".
type Classification struct {
	Year       sql.NullInt32
	Category   sql.NullString
	Confidence float64
	Evidence   []string
}

// Classifier infers tax metadata for a file. Implementations never fail;
// an undeterminable file yields a zero Classification.
type Classifier interface {
	Classify(relPath string) Classification
}
