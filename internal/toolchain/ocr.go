package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// OCROptions tunes rasterization and recognition.
type OCROptions struct {
	Language string
	PSM      int
	DPI      int
}

// OCREngine rasterizes document pages and runs tesseract over images.
type OCREngine struct {
	runner   *Runner
	programs Programs
	opts     OCROptions
}

// NewOCREngine creates an OCREngine.
func NewOCREngine(runner *Runner, programs Programs, opts OCROptions) *OCREngine {
	if opts.Language == "" {
		opts.Language = "eng"
	}
	if opts.PSM <= 0 {
		opts.PSM = 12
	}
	if opts.DPI <= 0 {
		opts.DPI = 300
	}
	return &OCREngine{runner: runner, programs: programs.withDefaults(), opts: opts}
}

// Recognize returns the text tesseract reads from imagePath.
func (e *OCREngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	res, err := e.runner.Run(ctx, nil, e.programs.Tesseract,
		imagePath, "stdout",
		"--psm", strconv.Itoa(e.opts.PSM),
		"-l", e.opts.Language,
	)
	if err != nil {
		return "", err
	}
	return string(res.Stdout), nil
}

// PageCount returns the number of pages of a PDF or DjVu document.
func (e *OCREngine) PageCount(ctx context.Context, path, mimeType string) (int, error) {
	switch {
	case mimeType == "application/pdf":
		f, err := os.Open(path)
		if err != nil {
			return 0, fmt.Errorf("failed to open PDF: %w", err)
		}
		defer f.Close()
		n, err := api.PageCount(f, nil)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to get page count: %v", ErrToolFailed, err)
		}
		return n, nil

	case strings.HasPrefix(mimeType, "image/vnd.djvu"):
		res, err := e.runner.Run(ctx, nil, e.programs.DjVuSed, "-e", "n", path)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(string(res.Stdout)))
		if err != nil {
			return 0, fmt.Errorf("%w: djvused page count %q", ErrToolFailed, res.Stdout)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: no page count for %s", ErrUnsupported, mimeType)
}

// Rasterize renders one page (1-indexed) of a document into destDir and
// returns the image path.
func (e *OCREngine) Rasterize(ctx context.Context, path string, page int, mimeType, destDir string) (string, error) {
	pageStr := strconv.Itoa(page)

	switch {
	case mimeType == "application/pdf":
		// -singlefile writes <prefix>.png without a page suffix
		prefix := filepath.Join(destDir, "page")
		_, err := e.runner.Run(ctx, nil, e.programs.PDFToPPM,
			"-png",
			"-f", pageStr,
			"-l", pageStr,
			"-r", strconv.Itoa(e.opts.DPI),
			"-singlefile",
			path,
			prefix,
		)
		if err != nil {
			return "", err
		}
		out := prefix + ".png"
		if _, err := os.Stat(out); err != nil {
			return "", fmt.Errorf("%w: pdftoppm did not create expected output: %v", ErrToolFailed, err)
		}
		return out, nil

	case strings.HasPrefix(mimeType, "image/vnd.djvu"):
		out := filepath.Join(destDir, "page.tif")
		_, err := e.runner.Run(ctx, nil, e.programs.DDjVu,
			"-page="+pageStr,
			"-format=tiff",
			path,
			out,
		)
		if err != nil {
			return "", err
		}
		return out, nil
	}
	return "", fmt.Errorf("%w: cannot rasterize %s", ErrUnsupported, mimeType)
}
