package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/isbnscan/internal/batch"
	"github.com/jackzampolin/isbnscan/internal/discovery"
	"github.com/jackzampolin/isbnscan/internal/testutil"
)

type tagFinder struct {
	tag   string
	calls atomic.Int64
}

func (f *tagFinder) Find(ctx context.Context, path string) (*discovery.Result, error) {
	f.calls.Add(1)
	return &discovery.Result{Path: path, ISBNs: []string{"9780306406157"}, Tactic: f.tag}, nil
}

// start runs w in the background and returns the channel of handled items.
func start(t *testing.T, w *Watcher) <-chan batch.Item {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	items := make(chan batch.Item, 16)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(it batch.Item) { items <- it })
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not ready")
	}
	return items
}

// drop writes a file outside dir and renames it in, so it appears complete.
func drop(t *testing.T, dir, name, content string) string {
	t.Helper()
	src := testutil.WriteFile(t, t.TempDir(), name, content)
	dst := filepath.Join(dir, name)
	if err := os.Rename(src, dst); err != nil {
		t.Fatal(err)
	}
	return dst
}

func next(t *testing.T, items <-chan batch.Item) batch.Item {
	t.Helper()
	select {
	case it := <-items:
		return it
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a scanned file")
		return batch.Item{}
	}
}

func TestWatcher_NewFile(t *testing.T) {
	dir := t.TempDir()
	f := &tagFinder{tag: "first"}
	w := New(f, Config{Dirs: []string{dir}, Settle: 10 * time.Millisecond}, testutil.Logger(t))
	items := start(t, w)

	path := drop(t, dir, "book.txt", "ISBN 978-0-306-40615-7")
	it := next(t, items)
	if it.Path != path {
		t.Errorf("path = %q, want %q", it.Path, path)
	}
	if it.Result == nil || it.Result.Tactic != "first" {
		t.Errorf("result = %+v", it.Result)
	}
}

func TestWatcher_NewDirectory(t *testing.T) {
	dir := t.TempDir()
	w := New(&tagFinder{}, Config{Dirs: []string{dir}, Settle: 10 * time.Millisecond}, testutil.Logger(t))
	items := start(t, w)

	// A directory moved in with content already inside.
	staging := t.TempDir()
	testutil.WriteFile(t, staging, "inner.pdf", "%PDF")
	sub := filepath.Join(dir, "incoming")
	if err := os.Rename(staging, sub); err != nil {
		t.Fatal(err)
	}

	it := next(t, items)
	if want := filepath.Join(sub, "inner.pdf"); it.Path != want {
		t.Errorf("path = %q, want %q", it.Path, want)
	}
}

func TestWatcher_HiddenIgnored(t *testing.T) {
	dir := t.TempDir()
	f := &tagFinder{}
	w := New(f, Config{Dirs: []string{dir}, Settle: 10 * time.Millisecond}, testutil.Logger(t))
	items := start(t, w)

	drop(t, dir, ".partial", "x")
	path := drop(t, dir, "visible.txt", "x")

	it := next(t, items)
	if it.Path != path {
		t.Errorf("path = %q, want %q", it.Path, path)
	}
	if n := f.calls.Load(); n != 1 {
		t.Errorf("finder calls = %d, want 1", n)
	}
}

func TestWatcher_SetFinder(t *testing.T) {
	dir := t.TempDir()
	w := New(&tagFinder{tag: "old"}, Config{Dirs: []string{dir}, Settle: 10 * time.Millisecond}, testutil.Logger(t))
	items := start(t, w)

	drop(t, dir, "a.txt", "x")
	if it := next(t, items); it.Result.Tactic != "old" {
		t.Errorf("tactic = %q, want old", it.Result.Tactic)
	}

	w.SetFinder(&tagFinder{tag: "new"})
	drop(t, dir, "b.txt", "x")
	if it := next(t, items); it.Result.Tactic != "new" {
		t.Errorf("tactic = %q, want new", it.Result.Tactic)
	}
}

func TestWaitSettled(t *testing.T) {
	w := New(&tagFinder{}, Config{Settle: time.Millisecond, SettleAttempts: 5}, nil)

	t.Run("stable file", func(t *testing.T) {
		path := testutil.WriteFile(t, t.TempDir(), "a.txt", "abc")
		if err := w.waitSettled(context.Background(), path); err != nil {
			t.Errorf("waitSettled: %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		err := w.waitSettled(context.Background(), filepath.Join(t.TempDir(), "gone"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("err = %v, want ErrNotExist", err)
		}
	})

	t.Run("directory", func(t *testing.T) {
		if err := w.waitSettled(context.Background(), t.TempDir()); err == nil {
			t.Error("expected error for a directory")
		}
	})
}
