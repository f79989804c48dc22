package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the isbnscan home directory.
	DefaultDirName = ".isbnscan"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// ScratchDirName holds scan workspaces when temp_dir is not configured.
	ScratchDirName = "scratch"
)

// Dir is the isbnscan home: the default config file and the scratch
// directory scan workspaces are created under.
type Dir struct {
	path string
}

// New returns the home at path, or ~/.isbnscan when path is empty.
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}
	return &Dir{path: filepath.Clean(path)}, nil
}

func (d *Dir) Path() string {
	return d.path
}

func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

func (d *Dir) ScratchPath() string {
	return filepath.Join(d.path, ScratchDirName)
}

// TempDir picks the parent for scan workspaces: the configured temp_dir
// when set, the scratch directory otherwise.
func (d *Dir) TempDir(configured string) string {
	if configured != "" {
		return configured
	}
	return d.ScratchPath()
}

// EnsureExists creates the home and its scratch directory.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.ScratchPath(), 0o700); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}
	return nil
}

// ConfigExists reports whether the home holds a config file.
func (d *Dir) ConfigExists() bool {
	fi, err := os.Stat(d.ConfigPath())
	return err == nil && fi.Mode().IsRegular()
}
