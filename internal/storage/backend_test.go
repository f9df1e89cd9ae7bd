package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	b, err := Open("", filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	if _, ok := b.(*FileBackend); !ok {
		t.Fatalf("expected file backend by default, got %T", b)
	}

	b, err = Open("SQLite", filepath.Join(dir, "h.sqlite"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer b.Close()
	if _, ok := b.(*SQLiteBackend); !ok {
		t.Fatalf("expected sqlite backend, got %T", b)
	}

	if _, err := Open("redis", dir); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestFileBackendWritesOneFilePerKey(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("new file backend: %v", err)
	}
	ctx := context.Background()

	if _, err := b.Get(ctx, "history"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := b.Put(ctx, "history", []byte(`[]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "history.json")); err != nil {
		t.Fatalf("expected history.json: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the value file, temp files leaked: %v", entries)
	}

	if err := b.Delete(ctx, "history"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := b.Delete(ctx, "history"); err != nil {
		t.Fatalf("delete of missing key should be a no-op: %v", err)
	}
}

func TestFileBackendRejectsPathKeys(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("new file backend: %v", err)
	}
	for _, key := range []string{"", ".", "..", "a/b", `a\b`, "nul\x00key", "a:b", "with space", "हिंदी"} {
		if err := b.Put(context.Background(), key, []byte("x")); err == nil || !strings.Contains(err.Error(), "invalid key") {
			t.Fatalf("expected key %q to be rejected up front, got %v", key, err)
		}
		if _, err := b.Get(context.Background(), key); errors.Is(err, ErrNotFound) {
			t.Fatalf("expected key %q to be rejected by get", key)
		}
	}
	for _, key := range []string{DefaultKey, "history-2.v1"} {
		if err := b.Put(context.Background(), key, []byte("x")); err != nil {
			t.Fatalf("expected key %q to be accepted: %v", key, err)
		}
	}
}

func TestSQLiteBackendPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "h.sqlite")
	b, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := b.Put(context.Background(), "k", []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := b.Put(context.Background(), "k", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	_ = b.Close()

	b, err = NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	got, err := b.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("expected v2, got %q", got)
	}
}
