package toolchain

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextConverter turns ebooks into plain text, preferring a format-specific
// tool and falling back to calibre's ebook-convert.
type TextConverter struct {
	runner   *Runner
	programs Programs
}

// NewTextConverter creates a TextConverter.
func NewTextConverter(runner *Runner, programs Programs) *TextConverter {
	return &TextConverter{runner: runner, programs: programs.withDefaults()}
}

// Convert writes the text of path to outPath, which should end in ".txt".
func (c *TextConverter) Convert(ctx context.Context, path, mimeType, outPath string) error {
	p := c.programs
	switch {
	case mimeType == "application/pdf":
		if c.runner.Available(p.PDFToText) {
			_, err := c.runner.Run(ctx, nil, p.PDFToText, path, outPath)
			return err
		}
		return convertPDFNative(path, outPath)

	case mimeType == "application/msword" && c.runner.Available(p.CatDoc):
		return c.runToFile(ctx, outPath, p.CatDoc, path)

	case strings.HasPrefix(mimeType, "image/vnd.djvu") && c.runner.Available(p.DjVuTxt):
		_, err := c.runner.Run(ctx, nil, p.DjVuTxt, path, outPath)
		return err

	case strings.HasPrefix(mimeType, "image/") && !strings.HasPrefix(mimeType, "image/vnd.djvu"):
		return fmt.Errorf("%w: %s is a plain image", ErrUnsupported, mimeType)
	}

	_, err := c.runner.Run(ctx, nil, p.EbookConvert, path, outPath)
	return err
}

func (c *TextConverter) runToFile(ctx context.Context, outPath, program string, args ...string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if _, err := c.runner.Run(ctx, out, program, args...); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// convertPDFNative extracts PDF text in-process, page by page. Pages that
// fail to decode are skipped.
func convertPDFNative(path, outPath string) error {
	f, r, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("%w: read pdf: %v", ErrToolFailed, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return os.WriteFile(outPath, []byte(sb.String()), 0o644)
}
