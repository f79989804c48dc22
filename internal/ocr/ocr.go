// Package ocr decides which pages of a document to recognize and
// aggregates the recognized text in page order.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackzampolin/isbnscan/internal/tempfs"
)

// ErrNoPages is returned when a document reports no pages.
var ErrNoPages = errors.New("document has no pages")

// Engine is the OCR collaborator.
type Engine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
	Rasterize(ctx context.Context, docPath string, page int, mimeType, destDir string) (string, error)
	PageCount(ctx context.Context, docPath, mimeType string) (int, error)
}

// Options selects pages. With OnlyFirstLast set, only the first FirstPages
// and last LastPages pages are processed.
type Options struct {
	OnlyFirstLast bool
	FirstPages    int
	LastPages     int
}

// DefaultOptions returns first/last mode with 4 leading and 3 trailing pages.
func DefaultOptions() Options {
	return Options{OnlyFirstLast: true, FirstPages: 4, LastPages: 3}
}

// SelectPages returns the 1-indexed pages to process for a document of n
// pages, ascending and without duplicates.
func (o Options) SelectPages(n int) []int {
	if n <= 0 {
		return nil
	}
	if !o.OnlyFirstLast {
		pages := make([]int, n)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	head := min(max(o.FirstPages, 0), n)
	tailStart := max(n-max(o.LastPages, 0)+1, head+1)

	pages := make([]int, 0, head+n-tailStart+1)
	for p := 1; p <= head; p++ {
		pages = append(pages, p)
	}
	for p := tailStart; p <= n; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Recognizer runs OCR over documents and images.
type Recognizer struct {
	engine Engine
	ws     *tempfs.Workspace
	opts   Options
	logger *slog.Logger
}

// NewRecognizer creates a Recognizer storing page images in ws.
func NewRecognizer(engine Engine, ws *tempfs.Workspace, opts Options, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{engine: engine, ws: ws, opts: opts, logger: logger}
}

// Run recognizes path and writes the aggregated text to outPath. PDF and
// DjVu documents are rasterized page by page; other images are recognized
// directly. A page that fails contributes no text; an error is returned
// only if no page could be recognized.
func (r *Recognizer) Run(ctx context.Context, path, mimeType, outPath string) error {
	var text string
	switch {
	case mimeType == "application/pdf" || strings.HasPrefix(mimeType, "image/vnd.djvu"):
		t, err := r.document(ctx, path, mimeType)
		if err != nil {
			return err
		}
		text = t
	case strings.HasPrefix(mimeType, "image/"):
		r.logger.Debug("running OCR on image", "path", path, "mime", mimeType)
		t, err := r.engine.Recognize(ctx, path)
		if err != nil {
			return err
		}
		text = t
	default:
		return fmt.Errorf("ocr: unsupported mime type %s", mimeType)
	}

	return os.WriteFile(outPath, []byte(text), 0o644)
}

func (r *Recognizer) document(ctx context.Context, path, mimeType string) (string, error) {
	n, err := r.engine.PageCount(ctx, path, mimeType)
	if err != nil {
		return "", fmt.Errorf("page count: %w", err)
	}
	if n <= 0 {
		return "", ErrNoPages
	}

	pages := r.opts.SelectPages(n)
	r.logger.Debug("running OCR on document",
		"path", path,
		"mime", mimeType,
		"pages", n,
		"selected", len(pages))

	var (
		sb   strings.Builder
		errs []error
	)
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := r.page(ctx, path, page, mimeType)
		if err != nil {
			r.logger.Debug("page OCR failed", "path", path, "page", page, "error", err)
			errs = append(errs, fmt.Errorf("page %d: %w", page, err))
			continue
		}
		sb.WriteString(text)
	}
	// Every page failing usually means a missing or broken tool.
	if len(errs) == len(pages) {
		return "", errors.Join(errs...)
	}
	return sb.String(), nil
}

// page rasterizes and recognizes one page inside a scoped temp dir.
func (r *Recognizer) page(ctx context.Context, path string, page int, mimeType string) (string, error) {
	dir, release, err := r.ws.Dir(fmt.Sprintf("page-%04d-*", page))
	if err != nil {
		return "", err
	}
	defer release()

	img, err := r.engine.Rasterize(ctx, path, page, mimeType, dir)
	if err != nil {
		return "", fmt.Errorf("rasterize: %w", err)
	}
	return r.engine.Recognize(ctx, img)
}
