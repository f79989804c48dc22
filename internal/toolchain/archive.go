package toolchain

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

var zipMagic = []byte("PK\x03\x04")

// Archiver tests and extracts archives with 7-Zip. Without 7z, ZIP-based
// containers (zip, epub, cbz, docx, odt) are still handled natively.
type Archiver struct {
	runner  *Runner
	program string
}

// NewArchiver creates an Archiver running program (usually "7z").
func NewArchiver(runner *Runner, program string) *Archiver {
	return &Archiver{runner: runner, program: program}
}

// Test checks archive integrity.
func (a *Archiver) Test(ctx context.Context, path string) error {
	_, err := a.runner.Run(ctx, nil, a.program, "t", path)
	if errors.Is(err, ErrToolMissing) && isZip(path) {
		r, zerr := openZip(path)
		if zerr != nil {
			return fmt.Errorf("%w: %v", ErrToolFailed, zerr)
		}
		defer r.Close()
		for _, f := range r.File {
			if !f.Mode().IsRegular() {
				continue
			}
			if err := checkZipEntry(f); err != nil {
				return fmt.Errorf("%w: %v", ErrToolFailed, err)
			}
		}
		return nil
	}
	return err
}

// Extract unpacks path into dest, which must exist. A file 7z cannot open
// yields ErrNotArchive.
func (a *Archiver) Extract(ctx context.Context, path, dest string) error {
	return a.ExtractLimit(ctx, path, dest, 0)
}

// ExtractLimit is Extract with a byte budget. A ZIP whose central directory
// declares more than maxBytes is refused with ErrExtractLimit before
// anything is written, and native extraction stops once maxBytes have been
// copied. A maxBytes of zero or less means no limit.
func (a *Archiver) ExtractLimit(ctx context.Context, path, dest string, maxBytes int64) error {
	if maxBytes > 0 && isZip(path) {
		if declared, err := zipDeclaredSize(path); err == nil && declared > maxBytes {
			return fmt.Errorf("%w: %d bytes declared, %d allowed", ErrExtractLimit, declared, maxBytes)
		}
	}

	_, err := a.runner.Run(ctx, nil, a.program, "x", "-y", "-o"+dest, path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrToolMissing):
		if !isZip(path) {
			return err
		}
		zerr := extractZip(path, dest, maxBytes)
		switch {
		case zerr == nil:
			return nil
		case errors.Is(zerr, ErrExtractLimit):
			return zerr
		default:
			return fmt.Errorf("%w: %v", ErrNotArchive, zerr)
		}
	case errors.Is(err, ErrToolFailed):
		return fmt.Errorf("%w: %v", ErrNotArchive, err)
	default:
		return err
	}
}

func isZip(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, zipMagic)
}

// openZip opens a ZIP, tolerating non-local entry names; callers skip those
// entries themselves.
func openZip(path string) (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(path)
	if errors.Is(err, zip.ErrInsecurePath) && r != nil {
		return r, nil
	}
	return r, err
}

// zipDeclaredSize sums the uncompressed sizes recorded for regular entries.
func zipDeclaredSize(path string) (int64, error) {
	r, err := openZip(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	var total uint64
	for _, f := range r.File {
		if f.Mode().IsRegular() {
			total += f.UncompressedSize64
		}
	}
	if total > math.MaxInt64 {
		return math.MaxInt64, nil
	}
	return int64(total), nil
}

func checkZipEntry(f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}

// extractZip writes regular files and directories of a ZIP under dest.
// Entries escaping dest and symlinks are skipped. With maxBytes > 0 it
// stops with ErrExtractLimit once more than maxBytes would be written,
// whatever the headers claim.
func extractZip(path, dest string, maxBytes int64) error {
	r, err := openZip(path)
	if err != nil {
		return err
	}
	defer r.Close()

	var written int64

	for _, f := range r.File {
		if !filepath.IsLocal(f.Name) {
			continue
		}
		target := filepath.Join(dest, f.Name)
		mode := f.Mode()

		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case mode.IsRegular():
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			budget := int64(-1)
			if maxBytes > 0 {
				budget = maxBytes - written
			}
			n, err := writeZipEntry(f, target, budget)
			written += n
			if err != nil {
				return fmt.Errorf("extract %s: %w", f.Name, err)
			}
		}
	}
	return nil
}

// writeZipEntry copies one entry to target. A non-negative budget caps the
// bytes written; exceeding it yields ErrExtractLimit.
func writeZipEntry(f *zip.File, target string, budget int64) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	var src io.Reader = rc
	if budget >= 0 {
		src = io.LimitReader(rc, budget+1)
	}
	n, err := io.Copy(out, src)
	if err != nil {
		out.Close()
		return n, err
	}
	if budget >= 0 && n > budget {
		out.Close()
		return n, fmt.Errorf("%w: more than %d bytes", ErrExtractLimit, budget)
	}
	return n, out.Close()
}
