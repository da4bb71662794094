package archive_test

import (
	"database/sql"
	"reflect"
	"slices"
	"testing"
	"time"

	"taxarchive/internal/archive"
)

type stubClassifier struct {
	year       int32
	confidence float64
	calls      int
}

func (c *stubClassifier) Classify(string) archive.Classification {
	c.calls++
	return archive.Classification{
		Year:       sql.NullInt32{Int32: c.year, Valid: c.year != 0},
		Confidence: c.confidence,
	}
}

func targets(actions []archive.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.Record.Path + " -> " + a.Target
	}
	return out
}

func TestPlanner_CanonicalRecordsAreLeftAlone(t *testing.T) {
	records := []archive.FileRecord{
		rec("2024/receipts/a.pdf", "h1", t0),
		rec("2023/invoices/b.pdf", "h2", t0),
	}

	plan := archive.NewPlanner(nil, archive.DefaultPlannerOptions()).Plan(records)
	if !plan.Empty() {
		t.Errorf("Plan() = %+v, want empty plan", plan)
	}
}

func TestPlanner_Copy(t *testing.T) {
	records := []archive.FileRecord{
		rec("inbox/2024/receipts/a.pdf", "h1", t0),
		rec("2023/invoices/old/b.pdf", "h2", t0),
		rec("inbox/orphan.pdf", "h3", t0),
		rec("2024/loose.pdf", "h4", t0),
	}

	plan := archive.NewPlanner(nil, archive.DefaultPlannerOptions()).Plan(records)

	want := []string{
		"2023/invoices/old/b.pdf -> 2023/invoices/b.pdf",
		"inbox/2024/receipts/a.pdf -> 2024/receipts/a.pdf",
	}
	if got := targets(plan.ToCopy); !slices.Equal(got, want) {
		t.Errorf("ToCopy = %v, want %v", got, want)
	}
	if plan.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (orphans and year-only files are excluded)", plan.Len())
	}
}

func TestPlanner_ConflictWithExistingFile(t *testing.T) {
	existing := rec("2024/receipts/a.pdf", "h1", t0)

	t.Run("newer candidate updates", func(t *testing.T) {
		plan := archive.NewPlanner(nil, archive.DefaultPlannerOptions()).Plan([]archive.FileRecord{
			existing,
			rec("2024/receipts/scans/a.pdf", "h2", t0.Add(time.Hour)),
		})
		if got := targets(plan.ToUpdate); !slices.Equal(got, []string{"2024/receipts/scans/a.pdf -> 2024/receipts/a.pdf"}) {
			t.Errorf("ToUpdate = %v", got)
		}
		if len(plan.ToCopy) != 0 {
			t.Errorf("ToCopy = %v, want none", targets(plan.ToCopy))
		}
	})

	t.Run("older candidate loses and stays put", func(t *testing.T) {
		plan := archive.NewPlanner(nil, archive.DefaultPlannerOptions()).Plan([]archive.FileRecord{
			existing,
			rec("2024/receipts/scans/a.pdf", "h2", t0.Add(-time.Hour)),
		})
		if !plan.Empty() {
			t.Errorf("Plan() = %+v, want empty plan without quarantine", plan)
		}
	})

	t.Run("older candidate is quarantined", func(t *testing.T) {
		opts := archive.DefaultPlannerOptions()
		opts.QuarantineDuplicates = true
		plan := archive.NewPlanner(nil, opts).Plan([]archive.FileRecord{
			existing,
			rec("2024/receipts/scans/a.pdf", "h2", t0.Add(-time.Hour)),
		})
		want := []string{"2024/receipts/scans/a.pdf -> _duplicates/2024/receipts/a.pdf"}
		if got := targets(plan.DuplicateMoves); !slices.Equal(got, want) {
			t.Errorf("DuplicateMoves = %v, want %v", got, want)
		}
	})
}

func TestPlanner_WinnerTakesOverPendingCopy(t *testing.T) {
	opts := archive.DefaultPlannerOptions()
	opts.QuarantineDuplicates = true
	opts.QuarantineDir = "review"

	plan := archive.NewPlanner(nil, opts).Plan([]archive.FileRecord{
		rec("inbox/x/2024/receipts/a.pdf", "h1", t0),
		rec("inbox/y/2024/receipts/a.pdf", "h2", t0.Add(time.Hour)),
		rec("inbox/z/2024/receipts/a.pdf", "h3", t0.Add(-time.Hour)),
	})

	if got := targets(plan.ToCopy); !slices.Equal(got, []string{"inbox/y/2024/receipts/a.pdf -> 2024/receipts/a.pdf"}) {
		t.Errorf("ToCopy = %v, want the newest file", got)
	}
	if len(plan.ToUpdate) != 0 {
		t.Errorf("ToUpdate = %v, want none: the destination does not exist yet", targets(plan.ToUpdate))
	}
	want := []string{
		"inbox/x/2024/receipts/a.pdf -> review/2024/receipts/a.pdf",
		"inbox/z/2024/receipts/a.pdf -> review/2024/receipts/a~1.pdf",
	}
	if got := targets(plan.DuplicateMoves); !slices.Equal(got, want) {
		t.Errorf("DuplicateMoves = %v, want %v", got, want)
	}
}

func TestPlanner_QuarantineAvoidsExistingFiles(t *testing.T) {
	opts := archive.DefaultPlannerOptions()
	opts.QuarantineDuplicates = true

	plan := archive.NewPlanner(nil, opts).Plan([]archive.FileRecord{
		rec("2024/receipts/a.pdf", "h1", t0),
		rec("2024/receipts/old/a.pdf", "h2", t0.Add(-time.Hour)),
		rec("_duplicates/2024/receipts/a.pdf", "h3", t0.Add(-2*time.Hour)),
	})

	want := []string{"2024/receipts/old/a.pdf -> _duplicates/2024/receipts/a~1.pdf"}
	if got := targets(plan.DuplicateMoves); !slices.Equal(got, want) {
		t.Errorf("DuplicateMoves = %v, want %v", got, want)
	}
	if len(plan.ToCopy)+len(plan.ToUpdate) != 0 {
		t.Errorf("files already in quarantine must not be planned: %+v", plan)
	}
}

func TestPlanner_ClassifierFillsMissingYear(t *testing.T) {
	record := rec("receipts/lunch_2023.pdf", "h1", t0)
	if record.Year.Valid {
		t.Fatalf("precondition: %s should have no folder year", record.Path)
	}

	tests := []struct {
		name       string
		classifier *stubClassifier
		want       []string
	}{
		{"confident year is used", &stubClassifier{year: 2023, confidence: 0.6}, []string{"receipts/lunch_2023.pdf -> 2023/receipts/lunch_2023.pdf"}},
		{"low confidence is ignored", &stubClassifier{year: 2023, confidence: 0.4}, []string{}},
		{"invalid year is ignored", &stubClassifier{year: 1700, confidence: 0.9}, []string{}},
		{"no year", &stubClassifier{confidence: 0}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := archive.NewPlanner(tt.classifier, archive.DefaultPlannerOptions()).Plan([]archive.FileRecord{record})
			if got := targets(plan.ToCopy); !slices.Equal(got, tt.want) {
				t.Errorf("ToCopy = %v, want %v", got, tt.want)
			}
			if tt.classifier.calls != 1 {
				t.Errorf("Classify() calls = %d, want 1", tt.classifier.calls)
			}
		})
	}

	t.Run("records without a category are not classified", func(t *testing.T) {
		c := &stubClassifier{year: 2023, confidence: 1}
		archive.NewPlanner(c, archive.DefaultPlannerOptions()).Plan([]archive.FileRecord{rec("inbox/lunch_2023.pdf", "h1", t0)})
		if c.calls != 0 {
			t.Errorf("Classify() calls = %d, want 0", c.calls)
		}
	})
}

func TestPlanner_DeleteDuplicates(t *testing.T) {
	records := []archive.FileRecord{
		rec("2024/receipts/a.pdf", "h1", t0),
		rec("2024/receipts/b.pdf", "h1", t0.Add(time.Hour)),
		rec("2023/receipts/c.pdf", "h1", t0.Add(-time.Hour)),
		rec("2024/invoices/d.pdf", "h2", t0),
	}

	t.Run("disabled by default", func(t *testing.T) {
		plan := archive.NewPlanner(nil, archive.DefaultPlannerOptions()).Plan(records)
		if len(plan.ToDelete) != 0 {
			t.Errorf("ToDelete = %v, want none", plan.ToDelete)
		}
	})

	t.Run("keeps the winner", func(t *testing.T) {
		opts := archive.DefaultPlannerOptions()
		opts.DeleteDuplicates = true
		plan := archive.NewPlanner(nil, opts).Plan(records)

		want := []string{"2023/receipts/c.pdf", "2024/receipts/a.pdf"}
		if !slices.Equal(plan.ToDelete, want) {
			t.Errorf("ToDelete = %v, want %v", plan.ToDelete, want)
		}
	})

	t.Run("never deletes a copy source", func(t *testing.T) {
		opts := archive.DefaultPlannerOptions()
		opts.DeleteDuplicates = true
		plan := archive.NewPlanner(nil, opts).Plan([]archive.FileRecord{
			rec("inbox/2024/receipts/e.pdf", "h9", t0),
			rec("2023/invoices/f.pdf", "h9", t0.Add(time.Hour)),
		})

		if len(plan.ToDelete) != 0 {
			t.Errorf("ToDelete = %v, want the copy source protected", plan.ToDelete)
		}
		if len(plan.ToCopy) != 1 {
			t.Errorf("ToCopy = %v, want 1", targets(plan.ToCopy))
		}
	})
}

func TestPlanner_LeavesUpdateBackupsAlone(t *testing.T) {
	opts := archive.DefaultPlannerOptions()
	opts.DeleteDuplicates = true
	opts.QuarantineDuplicates = true
	plan := archive.NewPlanner(nil, opts).Plan([]archive.FileRecord{
		rec("2024/receipts/a.pdf", "h1", t0.Add(time.Hour)),
		rec("2024/receipts/a.pdf"+archive.BackupSuffix, "h1", t0),
		rec("inbox/2024/receipts/b.pdf"+archive.BackupSuffix, "h2", t0),
	})

	if !plan.Empty() {
		t.Errorf("Plan() = %+v, want backups neither moved nor deleted", plan)
	}
}

// An inbox copy without year or category is an orphan and is never planned.
func TestPlanner_InboxDuplicateOrphan(t *testing.T) {
	plan := archive.NewPlanner(nil, archive.DefaultPlannerOptions()).Plan([]archive.FileRecord{
		rec("2024/receipts/a.pdf", "H1", t0),
		rec("inbox/a_copy.pdf", "H1", t0),
	})
	if !plan.Empty() {
		t.Errorf("Plan() = %+v, want empty", plan)
	}
}

func TestPlanner_Deterministic(t *testing.T) {
	opts := archive.DefaultPlannerOptions()
	opts.QuarantineDuplicates = true
	opts.DeleteDuplicates = true

	records := []archive.FileRecord{
		rec("inbox/x/2024/receipts/a.pdf", "h1", t0),
		rec("inbox/y/2024/receipts/a.pdf", "h2", t0),
		rec("2024/receipts/b.pdf", "h3", t0),
		rec("2024/receipts/old/b.pdf", "h3", t0.Add(time.Hour)),
		rec("2023/invoices/c.pdf", "h4", t0),
		rec("2022/invoices/c.pdf", "h4", t0),
	}
	reversed := slices.Clone(records)
	slices.Reverse(reversed)

	p := archive.NewPlanner(nil, opts)
	a, b := p.Plan(records), p.Plan(reversed)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Plan() depends on input order:\n%+v\n%+v", a, b)
	}
	if len(a.ToCopy) != 1 || len(a.ToUpdate) != 1 || len(a.DuplicateMoves) != 1 {
		t.Errorf("Plan() = %+v", a)
	}
}
