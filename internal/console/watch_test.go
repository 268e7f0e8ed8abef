package console

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.mia")
	if err := os.WriteFile(path, []byte("mkdisk"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Watch(path, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	// Other files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-w.Changes():
		t.Fatal("change reported for another file")
	case <-time.After(150 * time.Millisecond):
	}

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("rmdisk"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case <-w.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatch_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.mia")
	w, err := Watch(path, 0)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if w.Path() != path {
		t.Errorf("Path() = %q, want %q", w.Path(), path)
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	select {
	case _, ok := <-w.Changes():
		if ok {
			t.Error("Changes() delivered after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Changes() not closed")
	}
}

func TestWatch_MissingDir(t *testing.T) {
	if _, err := Watch(filepath.Join(t.TempDir(), "nope", "s.mia"), 0); err == nil {
		t.Error("Watch() on a missing directory succeeded")
	}
}
