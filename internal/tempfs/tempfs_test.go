package tempfs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWorkspace_Lifecycle(t *testing.T) {
	parent := t.TempDir()

	ws, err := New(parent, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(ws.Root()), "isbnscan-") {
		t.Errorf("unexpected root name %q", ws.Root())
	}
	if ws.ID() == "" {
		t.Error("empty workspace id")
	}

	dir, releaseDir, err := ws.Dir("archive-*")
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	file, releaseFile, err := ws.File("text-*.txt")
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if !strings.HasSuffix(file, ".txt") {
		t.Errorf("file %q lost its suffix", file)
	}

	releaseDir()
	releaseDir() // idempotent
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("dir not released")
	}

	releaseFile()
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Error("file not released")
	}

	if err := ws.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(ws.Root()); !os.IsNotExist(err) {
		t.Error("workspace root not removed")
	}
}

func TestWorkspace_Independent(t *testing.T) {
	parent := t.TempDir()
	a, err := New(parent, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := New(parent, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if a.Root() == b.Root() || a.ID() == b.ID() {
		t.Error("workspaces share a namespace")
	}
}

func TestSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "a"), make([]byte, 10), 0o644)
	os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 32), 0o644)

	n, err := Size(dir)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if n != 42 {
		t.Errorf("Size = %d, want 42", n)
	}
}

func TestRemove_Missing(t *testing.T) {
	if err := Remove(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Errorf("Remove of missing path: %v", err)
	}
}
