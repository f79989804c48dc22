// Package tempfs gives each discovery invocation its own temporary
// namespace and scoped temp paths that are always released.
package tempfs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

// Release frees a temporary path. It is safe to call more than once.
type Release func()

// Workspace is a private temp directory owned by one invocation.
type Workspace struct {
	id     string
	root   string
	logger *slog.Logger
}

// New creates a workspace under parent (os.TempDir() when empty).
func New(parent string, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if parent == "" {
		parent = os.TempDir()
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp parent: %w", err)
	}

	id := uuid.New().String()
	root, err := os.MkdirTemp(parent, "isbnscan-"+id[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return &Workspace{
		id:     id,
		root:   root,
		logger: logger.With("workspace", id),
	}, nil
}

// ID returns the workspace identifier.
func (w *Workspace) ID() string { return w.id }

// Root returns the workspace directory.
func (w *Workspace) Root() string { return w.root }

// Dir creates a temporary directory inside the workspace.
func (w *Workspace) Dir(pattern string) (string, Release, error) {
	dir, err := os.MkdirTemp(w.root, pattern)
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return dir, w.releaser(dir), nil
}

// File creates an empty temporary file inside the workspace and returns its path.
func (w *Workspace) File(pattern string) (string, Release, error) {
	f, err := os.CreateTemp(w.root, pattern)
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to create temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		w.releaser(name)()
		return "", func() {}, fmt.Errorf("failed to close temp file: %w", err)
	}
	return name, w.releaser(name), nil
}

// Close removes the workspace and anything left in it.
func (w *Workspace) Close() error {
	return Remove(w.root)
}

func (w *Workspace) releaser(path string) Release {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		if err := Remove(path); err != nil {
			w.logger.Warn("failed to remove temp path", "path", path, "error", err)
		}
	}
}

// Remove deletes path recursively, retrying briefly for filesystems that
// report transient busy errors. A missing path is not an error.
func Remove(path string) error {
	return retry.Do(
		func() error {
			return os.RemoveAll(path)
		},
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

// Size returns the total size of regular files under dir.
func Size(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}
