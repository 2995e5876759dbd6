package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSystemArchive(t *testing.T) {
	a, err := NewFileSystemArchive("test", filepath.Join(t.TempDir(), "archive"))
	if err != nil {
		t.Fatalf("NewFileSystemArchive() error = %v", err)
	}
	testStoreContract(t, a)
}

func TestFileSystemArchive_Layout(t *testing.T) {
	root := t.TempDir()
	a, err := NewFileSystemArchive("test", root)
	if err != nil {
		t.Fatal(err)
	}

	data := "line\n"
	if err := a.Put(context.Background(), "audit/seg.jsonl", strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(root, "audit", "seg.jsonl"))
	if err != nil {
		t.Fatalf("object not stored under its key path: %v", err)
	}
	if string(got) != data {
		t.Errorf("file content = %q, want %q", got, data)
	}

	// A failed write leaves no file behind.
	if err := a.Put(context.Background(), "audit/bad.jsonl", strings.NewReader("x"), 5); err == nil {
		t.Fatal("Put() expected size mismatch error")
	}
	entries, _ := os.ReadDir(filepath.Join(root, "audit"))
	if len(entries) != 1 {
		t.Errorf("audit dir has %d entries, want 1", len(entries))
	}
}

func TestFileSystemArchive_ListSkipsTempFiles(t *testing.T) {
	root := t.TempDir()
	a, _ := NewFileSystemArchive("test", root)
	if err := os.WriteFile(filepath.Join(root, ".tmp-123"), []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}
	keys, err := a.List(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("List() = %v, want temp files hidden", keys)
	}
}
