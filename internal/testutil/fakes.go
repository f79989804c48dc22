package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackzampolin/isbnscan/internal/toolchain"
)

// Fakes for the discovery collaborators. Each one is keyed by the base
// name of the file it is asked about and counts its calls.

// Classifier is a fake MIME detector.
type Classifier struct {
	Types   map[string]string
	Default string
	Missing bool

	calls atomic.Int64
}

// Detect returns the configured type for path.
func (c *Classifier) Detect(_ context.Context, path string) (string, error) {
	c.calls.Add(1)
	if c.Missing {
		return "", &toolchain.MissingToolError{Tool: "file"}
	}
	if t, ok := c.Types[filepath.Base(path)]; ok {
		return t, nil
	}
	if c.Default != "" {
		return c.Default, nil
	}
	return "application/octet-stream", nil
}

// Calls returns how many times Detect ran.
func (c *Classifier) Calls() int64 { return c.calls.Load() }

// Archiver is a fake extractor. Members maps an archive's base name to
// relative member paths and their contents.
type Archiver struct {
	Members map[string]map[string]string
	Missing bool

	tests    atomic.Int64
	extracts atomic.Int64
	refused  atomic.Int64
}

// Test succeeds for known archives.
func (a *Archiver) Test(_ context.Context, path string) error {
	a.tests.Add(1)
	if a.Missing {
		return &toolchain.MissingToolError{Tool: "7z"}
	}
	if _, ok := a.Members[filepath.Base(path)]; !ok {
		return fmt.Errorf("%w: %s", toolchain.ErrNotArchive, path)
	}
	return nil
}

// Extract writes the members of a known archive into dest.
func (a *Archiver) Extract(_ context.Context, path, dest string) error {
	a.extracts.Add(1)
	if a.Missing {
		return &toolchain.MissingToolError{Tool: "7z"}
	}
	members, ok := a.Members[filepath.Base(path)]
	if !ok {
		return fmt.Errorf("%w: %s", toolchain.ErrNotArchive, path)
	}
	for name, content := range members {
		target := filepath.Join(dest, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// ExtractLimit refuses, before writing anything, an archive whose members
// add up to more than maxBytes. maxBytes <= 0 means no limit.
func (a *Archiver) ExtractLimit(ctx context.Context, path, dest string, maxBytes int64) error {
	if maxBytes > 0 {
		var total int64
		for _, content := range a.Members[filepath.Base(path)] {
			total += int64(len(content))
		}
		if total > maxBytes {
			a.refused.Add(1)
			return fmt.Errorf("%w: %s", toolchain.ErrExtractLimit, path)
		}
	}
	return a.Extract(ctx, path, dest)
}

// Tests returns how many times Test ran.
func (a *Archiver) Tests() int64 { return a.tests.Load() }

// Extracts returns how many times Extract ran.
func (a *Archiver) Extracts() int64 { return a.extracts.Load() }

// Refused returns how many extractions ExtractLimit turned down.
func (a *Archiver) Refused() int64 { return a.refused.Load() }

// Converter is a fake text converter. Files without an entry in Texts fail.
type Converter struct {
	Texts   map[string]string
	Missing bool

	calls atomic.Int64
}

// Convert writes the configured text to outPath.
func (c *Converter) Convert(_ context.Context, path, _ string, outPath string) error {
	c.calls.Add(1)
	if c.Missing {
		return &toolchain.MissingToolError{Tool: "ebook-convert"}
	}
	text, ok := c.Texts[filepath.Base(path)]
	if !ok {
		return fmt.Errorf("%w: convert %s", toolchain.ErrToolFailed, path)
	}
	return os.WriteFile(outPath, []byte(text), 0o644)
}

// Calls returns how many times Convert ran.
func (c *Converter) Calls() int64 { return c.calls.Load() }

// Metadata is a fake metadata reader.
type Metadata struct {
	Texts   map[string]string
	Missing bool

	calls atomic.Int64
}

// Read returns the configured metadata text, empty when there is none.
func (m *Metadata) Read(_ context.Context, path string) (string, error) {
	m.calls.Add(1)
	if m.Missing {
		return "", &toolchain.MissingToolError{Tool: "ebook-meta"}
	}
	return m.Texts[filepath.Base(path)], nil
}

// Calls returns how many times Read ran.
func (m *Metadata) Calls() int64 { return m.calls.Load() }

// OCR is a fake OCR engine. Documents have Pages pages; rasterizing page N
// writes an image whose recognized text is PageText[N]. Images named in
// ImageText are recognized directly.
type OCR struct {
	Pages     int
	PageText  map[int]string
	FailPages map[int]bool
	ImageText map[string]string
	Missing   bool

	mu         sync.Mutex
	rasterized []int
	dirs       []string

	recognized atomic.Int64
}

// PageCount returns Pages.
func (o *OCR) PageCount(_ context.Context, _, _ string) (int, error) {
	return o.Pages, nil
}

// Rasterize writes a placeholder image for page into destDir.
func (o *OCR) Rasterize(_ context.Context, _ string, page int, _, destDir string) (string, error) {
	o.mu.Lock()
	o.rasterized = append(o.rasterized, page)
	o.dirs = append(o.dirs, destDir)
	o.mu.Unlock()

	if o.FailPages[page] {
		return "", fmt.Errorf("%w: rasterize page %d", toolchain.ErrToolFailed, page)
	}
	img := filepath.Join(destDir, fmt.Sprintf("page-%d.png", page))
	if err := os.WriteFile(img, []byte(o.PageText[page]), 0o644); err != nil {
		return "", err
	}
	return img, nil
}

// Recognize returns the text stored for an image.
func (o *OCR) Recognize(_ context.Context, imagePath string) (string, error) {
	o.recognized.Add(1)
	if o.Missing {
		return "", &toolchain.MissingToolError{Tool: "tesseract"}
	}
	if text, ok := o.ImageText[filepath.Base(imagePath)]; ok {
		return text, nil
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Rasterized returns the pages rasterized so far, in call order.
func (o *OCR) Rasterized() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.rasterized...)
}

// PageDirs returns the temp directories pages were rasterized into.
func (o *OCR) PageDirs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.dirs...)
}

// Recognized returns how many times Recognize ran.
func (o *OCR) Recognized() int64 { return o.recognized.Load() }

// WriteFile creates dir/name with content and returns its path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// Entries lists everything left under dir, relative to it.
func Entries(dir string) []string {
	var out []string
	filepath.WalkDir(dir, func(p string, _ os.DirEntry, err error) error {
		if err != nil || p == dir {
			return nil
		}
		rel, _ := filepath.Rel(dir, p)
		out = append(out, strings.ReplaceAll(rel, string(filepath.Separator), "/"))
		return nil
	})
	return out
}
