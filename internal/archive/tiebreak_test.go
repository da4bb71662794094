package archive_test

import (
	"testing"
	"time"

	"taxarchive/internal/archive"
)

func TestPrefer(t *testing.T) {
	base := rec("2024/receipts/b.pdf", "h1", t0)

	withHash := func(r archive.FileRecord, hash string) archive.FileRecord {
		r.ContentHash.String, r.ContentHash.Valid = hash, hash != ""
		return r
	}
	withSize := func(r archive.FileRecord, size int64) archive.FileRecord {
		r.SizeBytes = size
		return r
	}

	tests := []struct {
		name string
		a, b archive.FileRecord
		want bool
	}{
		{"hash beats no hash", base, withHash(rec("2024/receipts/a.pdf", "", t0.Add(time.Hour)), ""), true},
		{"no hash loses even when newer", withHash(rec("a.pdf", "", t0.Add(time.Hour)), ""), base, false},
		{"newer wins", rec("z.pdf", "h2", t0.Add(time.Minute)), base, true},
		{"older loses", rec("a.pdf", "h2", t0.Add(-time.Minute)), base, false},
		{"larger wins on equal mtime", withSize(rec("z.pdf", "h2", t0), 20), base, true},
		{"smaller loses on equal mtime", withSize(rec("a.pdf", "h2", t0), 5), base, false},
		{"smaller path wins when all else ties", rec("2024/receipts/a.pdf", "h1", t0), base, true},
		{"larger path loses when all else ties", rec("2024/receipts/c.pdf", "h1", t0), base, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := archive.Prefer(tt.a, tt.b); got != tt.want {
				t.Errorf("Prefer(%s, %s) = %v, want %v", tt.a.Path, tt.b.Path, got, tt.want)
			}
			if tt.a.Path != tt.b.Path {
				if rev := archive.Prefer(tt.b, tt.a); rev == tt.want {
					t.Errorf("Prefer is not antisymmetric for %s and %s", tt.a.Path, tt.b.Path)
				}
			}
		})
	}
}

func TestWinner(t *testing.T) {
	group := []archive.FileRecord{
		rec("2024/receipts/a.pdf", "h1", t0),
		rec("inbox/a.pdf", "h1", t0.Add(time.Hour)),
		rec("old/a.pdf", "h1", t0.Add(-time.Hour)),
	}

	got, idx := archive.Winner(group)
	if got.Path != "inbox/a.pdf" || idx != 1 {
		t.Errorf("Winner() = %s, %d, want inbox/a.pdf, 1", got.Path, idx)
	}

	// Order of the group does not matter.
	reversed := []archive.FileRecord{group[2], group[1], group[0]}
	if got, _ := archive.Winner(reversed); got.Path != "inbox/a.pdf" {
		t.Errorf("Winner(reversed) = %s, want inbox/a.pdf", got.Path)
	}
}
