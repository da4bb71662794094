package archive_test

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"taxarchive/internal/archive"
	osfs "taxarchive/internal/fs"
	"taxarchive/internal/testutil"
)

func newOSScanner(t *testing.T, opts archive.ScannerOptions) (*archive.Scanner, *osfs.OSFilesystemManager) {
	t.Helper()
	fsmgr := osfs.NewOSFilesystemManager()
	s, err := archive.NewScanner(fsmgr, archive.NewNopLogger(), opts)
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	return s, fsmgr
}

func resolve(t *testing.T, fsmgr archive.FilesystemManager, root string) *archive.Path {
	t.Helper()
	p, err := fsmgr.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve(%s) error = %v", root, err)
	}
	return p
}

func TestScanner_Scan(t *testing.T) {
	root := t.TempDir()
	testutil.WriteArchive(t, root,
		testutil.ArchiveFile{Path: "2024/receipts/a.pdf", Content: "aaa", ModTime: t0},
		testutil.ArchiveFile{Path: "inbox/b.pdf", Content: ""},
		testutil.ArchiveFile{Path: ".git/config", Content: "x"},
		testutil.ArchiveFile{Path: "_meta/index.json", Content: "{}"},
		testutil.ArchiveFile{Path: "nested/.git/keep", Content: "k"},
		testutil.ArchiveFile{Path: "Personal/notes.txt", Content: "n"},
		testutil.ArchiveFile{Path: "scratch.tmp", Content: "t"},
	)

	s, fsmgr := newOSScanner(t, archive.ScannerOptions{
		ExcludeDirs: archive.DefaultExcludeDirs,
		Ignore:      matchFunc(func(p string) bool { return strings.HasSuffix(p, ".tmp") }),
	})
	records, err := s.Scan(resolve(t, fsmgr, root))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []string{"2024/receipts/a.pdf", "Personal/notes.txt", "inbox/b.pdf", "nested/.git/keep"}
	if got := paths(records); !slices.Equal(got, want) {
		t.Fatalf("Scan() paths = %v, want %v", got, want)
	}

	a := records[0]
	if !a.Year.Valid || a.Year.Int32 != 2024 || a.Category.String != "receipts" {
		t.Errorf("a.pdf year/category = %v/%v, want 2024/receipts", a.Year, a.Category)
	}
	if a.SizeBytes != 3 || a.ContentHash.String != testutil.SHA256Hex([]byte("aaa")) {
		t.Errorf("a.pdf size/hash = %d/%q", a.SizeBytes, a.ContentHash.String)
	}
	if !a.ModTime.Equal(t0) {
		t.Errorf("a.pdf ModTime = %v, want %v", a.ModTime, t0)
	}

	b := records[2]
	if !b.IsPlaceholder() {
		t.Errorf("inbox/b.pdf IsPlaceholder() = false, record %+v", b)
	}
}

func TestScanner_Scan_MissingRoot(t *testing.T) {
	s, _ := newOSScanner(t, archive.ScannerOptions{})
	missing := archive.NewPath(filepath.Join(t.TempDir(), "gone"), nil)

	if _, err := s.Scan(missing); err == nil {
		t.Error("Scan() of missing root error = nil, want error")
	}
}

func TestScanner_Scan_UnreadableFiles(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/archive/2024/receipts/locked.pdf", []byte("secret"), t0)
	fsmgr.AddFile("/archive/2024/receipts/gone.pdf", []byte("vanished"), t0)
	fsmgr.AddFile("/archive/2024/receipts/ok.pdf", []byte("fine"), t0)
	fsmgr.FailOpen("/archive/2024/receipts/locked.pdf", errors.New("permission denied"))
	fsmgr.FailStat("/archive/2024/receipts/gone.pdf", errors.New("stale handle"))

	s, err := archive.NewScanner(fsmgr, archive.NewNopLogger(), archive.ScannerOptions{})
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	records, err := s.Scan(resolve(t, fsmgr, "/archive"))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Scan() returned %d records, want 3", len(records))
	}

	gone, locked, ok := records[0], records[1], records[2]
	if gone.SizeBytes != 0 || gone.ContentHash.Valid {
		t.Errorf("gone.pdf = %+v, want size 0 and null hash", gone)
	}
	if gone.Year.Int32 != 2024 || gone.Category.String != "receipts" {
		t.Errorf("gone.pdf year/category = %v/%v, want inference to still apply", gone.Year, gone.Category)
	}
	if locked.SizeBytes != 6 || locked.ContentHash.Valid {
		t.Errorf("locked.pdf = %+v, want size 6 and null hash", locked)
	}
	if ok.ContentHash.String != testutil.SHA256Hex([]byte("fine")) {
		t.Errorf("ok.pdf hash = %q", ok.ContentHash.String)
	}
}

func TestScanner_HashCache(t *testing.T) {
	const rel = "2024/receipts/a.pdf"
	first, second := []byte("aaaa"), []byte("bbbb")

	t.Run("reuses hash while size and mtime match", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/archive/"+rel, first, t0)
		s, _ := archive.NewScanner(fsmgr, archive.NewNopLogger(), archive.ScannerOptions{})
		root := resolve(t, fsmgr, "/archive")

		if got := s.Record(root, rel).ContentHash.String; got != testutil.SHA256Hex(first) {
			t.Fatalf("first hash = %q", got)
		}

		fsmgr.AddFile("/archive/"+rel, second, t0)
		if got := s.Record(root, rel).ContentHash.String; got != testutil.SHA256Hex(first) {
			t.Errorf("hash with unchanged stamp = %q, want cached value", got)
		}

		s.Invalidate(root, rel)
		if got := s.Record(root, rel).ContentHash.String; got != testutil.SHA256Hex(second) {
			t.Errorf("hash after Invalidate = %q, want fresh value", got)
		}
	})

	t.Run("changed mtime rehashes", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/archive/"+rel, first, t0)
		s, _ := archive.NewScanner(fsmgr, archive.NewNopLogger(), archive.ScannerOptions{})
		root := resolve(t, fsmgr, "/archive")
		s.Record(root, rel)

		fsmgr.AddFile("/archive/"+rel, second, t0.Add(time.Second))
		if got := s.Record(root, rel).ContentHash.String; got != testutil.SHA256Hex(second) {
			t.Errorf("hash after mtime change = %q, want fresh value", got)
		}
	})

	t.Run("purge empties the cache", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/archive/"+rel, first, t0)
		s, _ := archive.NewScanner(fsmgr, archive.NewNopLogger(), archive.ScannerOptions{})
		root := resolve(t, fsmgr, "/archive")
		s.Record(root, rel)

		fsmgr.AddFile("/archive/"+rel, second, t0)
		s.Purge()
		if got := s.Record(root, rel).ContentHash.String; got != testutil.SHA256Hex(second) {
			t.Errorf("hash after Purge = %q, want fresh value", got)
		}
	})

	t.Run("negative size disables the cache", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/archive/"+rel, first, t0)
		s, _ := archive.NewScanner(fsmgr, archive.NewNopLogger(), archive.ScannerOptions{CacheSize: -1})
		root := resolve(t, fsmgr, "/archive")
		s.Record(root, rel)

		fsmgr.AddFile("/archive/"+rel, second, t0)
		if got := s.Record(root, rel).ContentHash.String; got != testutil.SHA256Hex(second) {
			t.Errorf("hash without cache = %q, want fresh value", got)
		}
	})
}

func TestScanner_CustomCategories(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/archive/2024/medical/bill.pdf", []byte("x"), t0)

	s, _ := archive.NewScanner(fsmgr, archive.NewNopLogger(), archive.ScannerOptions{Categories: []string{"medical"}})
	records, err := s.Scan(resolve(t, fsmgr, "/archive"))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(records) != 1 || records[0].Category.String != "medical" {
		t.Errorf("Scan() = %+v, want category medical", records)
	}
}
