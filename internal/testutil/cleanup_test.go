package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pithecene-io/bucketfile/bucketfile"
)

func TestRemoveAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "x")
	if err := os.MkdirAll(filepath.Join(dir, "y"), 0o755); err != nil {
		t.Fatal(err)
	}
	RemoveAll(dir)
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected %s removed, stat err = %v", dir, err)
	}
	RemoveAll(dir) // missing path is not an error
}

func TestSeed(t *testing.T) {
	mem := bucketfile.NewMemory()
	err := Seed(t.Context(), mem, "b", map[string]string{"a.txt": "1", "d/b.txt": "2"})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if mem.PutCalls != 2 {
		t.Errorf("PutCalls = %d, want 2", mem.PutCalls)
	}
	data, err := mem.GetObject(t.Context(), "b", "d/b.txt")
	if err != nil || string(data) != "2" {
		t.Errorf("GetObject = %q, %v", data, err)
	}

	if err := Seed(t.Context(), bucketfile.NewMemory(), "", map[string]string{"k": "v"}); err == nil {
		t.Error("expected error for empty bucket")
	}
}
