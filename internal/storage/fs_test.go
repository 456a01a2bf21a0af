package storage

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func tempArchive(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(filepath.Join(t.TempDir(), "reports"))
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempArchive(t)
	content := []byte(`{"state":"succeeded"}`)
	if err := s.Write("a.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempArchive(t)
	_ = s.Write("del.json", []byte("{}"))
	if err := s.Delete("del.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.json"); err == nil {
		t.Error("expected error reading deleted document")
	}
}

func TestList(t *testing.T) {
	s := tempArchive(t)
	_ = s.Write("b.json", []byte("{}"))
	_ = s.Write("a.json", []byte("{}"))
	_ = os.WriteFile(filepath.Join(s.Root(), "notes.txt"), []byte("x"), 0o644)
	_ = os.Mkdir(filepath.Join(s.Root(), "sub.json"), 0o755)

	names, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(names, []string{"a.json", "b.json"}) {
		t.Errorf("names = %v", names)
	}
}

func TestInvalidNames(t *testing.T) {
	s := tempArchive(t)

	cases := []string{
		"../../etc/passwd.json",
		"sub/a.json",
		"/etc/shadow.json",
		".hidden.json",
		"report.txt",
		"",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for read of %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempArchive(t)
	_ = s.Write("atomic.json", []byte(`{"v":1}`))
	if err := s.Write("atomic.json", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.json")
	if string(got) != `{"v":2}` {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".pathgraph-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if _, err := NewFS(dir); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("dir not created: %v", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "pathgraph-test-*")
	_ = f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
