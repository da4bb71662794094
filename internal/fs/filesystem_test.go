package fs

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestOSFilesystemManager_Resolve(t *testing.T) {
	m := NewOSFilesystemManager()

	t.Run("directory", func(t *testing.T) {
		dir := t.TempDir()
		p, err := m.Resolve(dir)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !filepath.IsAbs(p.String()) {
			t.Errorf("Resolve() = %q, want absolute path", p.String())
		}
		if !p.Info().IsDir() {
			t.Error("Info().IsDir() = false, want true")
		}
	})

	t.Run("missing path", func(t *testing.T) {
		if _, err := m.Resolve(filepath.Join(t.TempDir(), "missing")); err == nil {
			t.Error("Resolve() expected error for missing path, got nil")
		}
	})

	t.Run("regular file", func(t *testing.T) {
		f := filepath.Join(t.TempDir(), "a.pdf")
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := m.Resolve(f); err == nil {
			t.Error("Resolve() expected error for a file, got nil")
		}
	})
}

func TestOSFilesystemManager_Walk(t *testing.T) {
	m := NewOSFilesystemManager()
	root := t.TempDir()
	for _, rel := range []string{"2024/receipts/a.pdf", "2024/invoices/b.pdf", "top.txt"} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(rel), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var files []string
	err := m.Walk(root, func(rel string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if rel == "2024/invoices" {
			return fs.SkipDir
		}
		if !d.IsDir() {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	want := []string{"2024/receipts/a.pdf", "top.txt"}
	if !slices.Equal(files, want) {
		t.Errorf("Walk() files = %v, want %v", files, want)
	}
}

func TestOSFilesystemManager_Move(t *testing.T) {
	m := NewOSFilesystemManager()

	t.Run("preserves content and mtime", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src.pdf")
		dst := filepath.Join(dir, "dst.pdf")
		mtime := time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC)
		if err := os.WriteFile(src, []byte("content"), 0o640); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(src, mtime, mtime); err != nil {
			t.Fatal(err)
		}

		if err := m.Move(src, dst); err != nil {
			t.Fatalf("Move() error = %v", err)
		}

		if _, err := os.Stat(src); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("source still exists after Move(): %v", err)
		}
		info, err := os.Stat(dst)
		if err != nil {
			t.Fatalf("stat destination: %v", err)
		}
		if !info.ModTime().Equal(mtime) {
			t.Errorf("ModTime() = %v, want %v", info.ModTime(), mtime)
		}
		data, _ := os.ReadFile(dst)
		if string(data) != "content" {
			t.Errorf("content = %q, want %q", data, "content")
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src.pdf")
		dst := filepath.Join(dir, "dst.pdf")
		os.WriteFile(src, []byte("new"), 0o644)
		os.WriteFile(dst, []byte("old"), 0o644)

		err := m.Move(src, dst)
		if !errors.Is(err, fs.ErrExist) {
			t.Fatalf("Move() error = %v, want ErrExist", err)
		}
		data, _ := os.ReadFile(dst)
		if string(data) != "old" {
			t.Errorf("destination overwritten: %q", data)
		}
	})
}

func TestCopyAcross(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pdf")
	dst := filepath.Join(dir, "dst.pdf")
	mtime := time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := os.WriteFile(src, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	if err := copyAcross(src, dst); err != nil {
		t.Fatalf("copyAcross() error = %v", err)
	}

	if _, err := os.Stat(src); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("source still exists: %v", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat destination: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Mode() = %v, want 0600", info.Mode().Perm())
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("ModTime() = %v, want %v", info.ModTime(), mtime)
	}
}

func TestOSFilesystemManager_OpenRemove(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "a.txt")

	if err := m.MkdirAll(filepath.Dir(p)); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	rc, err := m.Open(p)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Errorf("read %q, want %q", data, "hello")
	}

	if err := m.Remove(p); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := m.Stat(p); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat() after Remove() error = %v, want ErrNotExist", err)
	}
}
