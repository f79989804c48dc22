// Package integrity detects files that are empty, truncated or otherwise
// unreadable before they are handed to discovery.
package integrity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jackzampolin/isbnscan/internal/toolchain"
)

// DefaultArchiveExtensions matches extensions that are tested with the
// archiver.
const DefaultArchiveExtensions = `^(7z|bz2|chm|arj|cab|gz|tgz|gzip|zip|rar|xz|tar|epub|docx|odt|ods|cbr|cbz|maff|iso)$`

// Problems reported by Check.
const (
	ReasonEmpty         = "the file is empty or contains only zeros"
	ReasonMIMEMismatch  = "the file has a document extension but an octet-stream MIME type"
	ReasonPDFUnreadable = "the PDF file could not be read"
	ReasonPDFNoPages    = "the PDF file has no pages"
	ReasonArchiveBroken = "looks like an archive, but testing it failed"
)

// Classifier reports the MIME type of a file.
type Classifier interface {
	Detect(ctx context.Context, path string) (string, error)
}

// Tester verifies an archive.
type Tester interface {
	Test(ctx context.Context, path string) error
}

// Report is the outcome of checking one file. An empty Reason means the
// file looks intact.
type Report struct {
	Path   string `json:"path" yaml:"path"`
	MIME   string `json:"mime,omitempty" yaml:"mime,omitempty"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// OK reports whether no problem was found.
func (r *Report) OK() bool { return r.Reason == "" }

// Checker runs the integrity checks.
type Checker struct {
	mime       Classifier
	archiver   Tester
	archiveExt *regexp.Regexp
	logger     *slog.Logger
}

// New creates a Checker. An empty pattern uses DefaultArchiveExtensions.
func New(mime Classifier, archiver Tester, archivePattern string, logger *slog.Logger) (*Checker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if archivePattern == "" {
		archivePattern = DefaultArchiveExtensions
	}
	re, err := regexp.Compile("(?i)" + archivePattern)
	if err != nil {
		return nil, fmt.Errorf("archive extension pattern: %w", err)
	}
	return &Checker{mime: mime, archiver: archiver, archiveExt: re, logger: logger}, nil
}

// Check inspects path. Problems with the file are reported in the Report;
// the error is reserved for files that cannot be opened at all.
func (c *Checker) Check(ctx context.Context, path string) (*Report, error) {
	report := &Report{Path: path}

	empty, err := isEmpty(path)
	if err != nil {
		return nil, err
	}
	if empty {
		report.Reason = ReasonEmpty
		return report, nil
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	mimeType, err := c.mime.Detect(ctx, path)
	if err != nil {
		c.logger.Debug("mime detection failed", "path", path, "error", err)
	}
	report.MIME = mimeType

	switch {
	case mimeType == "application/octet-stream" && (ext == "pdf" || ext == "djv" || ext == "djvu"):
		report.Reason = ReasonMIMEMismatch
		report.Detail = fmt.Sprintf("extension .%s, MIME %s", ext, mimeType)
		return report, nil
	case mimeType == "application/pdf":
		if reason, detail := checkPDF(path); reason != "" {
			report.Reason, report.Detail = reason, detail
			return report, nil
		}
	}

	if c.archiveExt.MatchString(ext) {
		c.logger.Debug("testing archive", "path", path, "ext", ext)
		err := c.archiver.Test(ctx, path)
		switch {
		case err == nil:
		case errors.Is(err, toolchain.ErrToolMissing):
			c.logger.Warn("cannot test archive, tool not installed", "path", path, "error", err)
		default:
			report.Reason = ReasonArchiveBroken
			report.Detail = err.Error()
		}
	}
	return report, nil
}

func checkPDF(path string) (string, string) {
	f, err := os.Open(path)
	if err != nil {
		return ReasonPDFUnreadable, err.Error()
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(f, conf); err != nil {
		return ReasonPDFUnreadable, err.Error()
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return ReasonPDFUnreadable, err.Error()
	}
	n, err := api.PageCount(f, conf)
	if err != nil {
		return ReasonPDFUnreadable, err.Error()
	}
	if n == 0 {
		return ReasonPDFNoPages, ""
	}
	return "", ""
}

// isEmpty reports whether path has no bytes other than NUL.
func isEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		if n > 0 && len(bytes.Trim(buf[:n], "\x00")) > 0 {
			return false, nil
		}
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, err
		}
	}
}
