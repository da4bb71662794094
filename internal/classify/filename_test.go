package classify

import (
	"testing"
)

func TestFilenameClassifier_Classify(t *testing.T) {
	c := NewFilenameClassifier(nil)

	tests := []struct {
		name         string
		path         string
		wantYear     int32
		wantCategory string
		wantConf     float64
		wantEvidence int
	}{
		{
			name:         "schema name",
			path:         "inbox/2024-03-15__JOINT__BIZ__RECEIPTS__HOMEDEPOT__42.10__LUMBER.pdf",
			wantYear:     2024,
			wantCategory: "receipts",
			wantConf:     ConfidenceSchemaDate,
			wantEvidence: 2,
		},
		{
			name:         "schema name with unknown category falls back to keywords",
			path:         "2023-01-02__ASHLEIGH__PERSONAL__MISC__BANK__MONTHLY_STATEMENT.pdf",
			wantYear:     2023,
			wantCategory: "bank_statements",
			wantConf:     ConfidenceSchemaDate,
			wantEvidence: 2,
		},
		{
			name:         "bare year token",
			path:         "scans/donation_2022.pdf",
			wantYear:     2022,
			wantConf:     ConfidenceYearToken,
			wantEvidence: 1,
		},
		{
			name:         "year token and keyword",
			path:         "inbox/receipt 2021 costco.jpg",
			wantYear:     2021,
			wantCategory: "receipts",
			wantConf:     ConfidenceYearToken,
			wantEvidence: 2,
		},
		{
			name:         "keyword only",
			path:         "inbox/Bank Statement March.pdf",
			wantCategory: "bank_statements",
			wantConf:     ConfidenceKeyword,
			wantEvidence: 1,
		},
		{
			name:         "year out of range is ignored",
			path:         "inbox/scan_1850.pdf",
			wantConf:     0,
			wantEvidence: 0,
		},
		{
			name: "nothing to go on",
			path: "inbox/IMG_0001.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.path)

			if tt.wantYear == 0 {
				if got.Year.Valid {
					t.Errorf("Classify(%q).Year = %d, want null", tt.path, got.Year.Int32)
				}
			} else if !got.Year.Valid || got.Year.Int32 != tt.wantYear {
				t.Errorf("Classify(%q).Year = %v, want %d", tt.path, got.Year, tt.wantYear)
			}
			if got.Category.String != tt.wantCategory || got.Category.Valid != (tt.wantCategory != "") {
				t.Errorf("Classify(%q).Category = %v, want %q", tt.path, got.Category, tt.wantCategory)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("Classify(%q).Confidence = %v, want %v", tt.path, got.Confidence, tt.wantConf)
			}
			if len(got.Evidence) != tt.wantEvidence {
				t.Errorf("Classify(%q).Evidence = %v, want %d entries", tt.path, got.Evidence, tt.wantEvidence)
			}
		})
	}
}

func TestFilenameClassifier_CustomCategories(t *testing.T) {
	c := NewFilenameClassifier([]string{"misc"})

	got := c.Classify("2023-01-02__STEVE__MIXED__MISC__SHOP__THING.pdf")
	if !got.Category.Valid || got.Category.String != "misc" {
		t.Errorf("Classify().Category = %v, want misc", got.Category)
	}
}
