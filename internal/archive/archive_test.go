package archive

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"audit/20240101T000000Z-run.jsonl", false},
		{"db/snapshot.db", false},
		{"", true},
		{"/etc/passwd", true},
		{"../escape", true},
		{"audit/../../escape", true},
		{"audit//double", true},
		{"audit/./dot", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := validateKey(tt.key); (err != nil) != tt.wantErr {
				t.Errorf("validateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

// testStoreContract exercises behavior every Store must share.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	put := func(key, data string) {
		t.Helper()
		if err := s.Put(ctx, key, strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
	}
	put("audit/b.jsonl", `{"id":2}`+"\n")
	put("audit/a.jsonl", `{"id":1}`+"\n")
	put("db/snap.db", "SQLite format 3")

	t.Run("get returns stored bytes", func(t *testing.T) {
		var buf bytes.Buffer
		if err := s.Get(ctx, "db/snap.db", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.String() != "SQLite format 3" {
			t.Errorf("Get() = %q", buf.String())
		}
	})

	t.Run("list filters by prefix in order", func(t *testing.T) {
		keys, err := s.List(ctx, "audit/")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(keys) != 2 || keys[0] != "audit/a.jsonl" || keys[1] != "audit/b.jsonl" {
			t.Errorf("List(audit/) = %v", keys)
		}
		all, _ := s.List(ctx, "")
		if len(all) != 3 {
			t.Errorf("List() = %v, want 3 keys", all)
		}
	})

	t.Run("put replaces", func(t *testing.T) {
		put("audit/a.jsonl", "replaced")
		var buf bytes.Buffer
		if err := s.Get(ctx, "audit/a.jsonl", &buf); err != nil {
			t.Fatal(err)
		}
		if buf.String() != "replaced" {
			t.Errorf("Get() after replace = %q", buf.String())
		}
	})

	t.Run("missing key", func(t *testing.T) {
		err := s.Get(ctx, "audit/missing.jsonl", &bytes.Buffer{})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		if err := s.Put(ctx, "audit/short.jsonl", strings.NewReader("abc"), 10); err == nil {
			t.Error("Put() expected size mismatch error")
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		if err := s.Put(ctx, "../x", strings.NewReader(""), 0); err == nil {
			t.Error("Put() expected error for escaping key")
		}
	})

	t.Run("validate setup", func(t *testing.T) {
		if err := s.ValidateSetup(ctx); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})
}

func TestMemoryArchive(t *testing.T) {
	testStoreContract(t, NewMemoryArchive("test"))
}
