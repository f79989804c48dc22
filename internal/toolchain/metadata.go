package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/simp-lee/epub"
)

// MetadataReader extracts local bibliographic metadata as "Field : value"
// lines. It uses calibre's ebook-meta and, when that is not installed, reads
// EPUB and PDF metadata natively.
type MetadataReader struct {
	runner  *Runner
	program string
}

// NewMetadataReader creates a MetadataReader running program (usually "ebook-meta").
func NewMetadataReader(runner *Runner, program string) *MetadataReader {
	return &MetadataReader{runner: runner, program: program}
}

// Read returns the metadata of path. An unsupported format yields an empty
// string and a nil error.
func (m *MetadataReader) Read(ctx context.Context, path string) (string, error) {
	res, err := m.runner.Run(ctx, nil, m.program, path)
	if err == nil {
		return string(res.Stdout), nil
	}
	if !errors.Is(err, ErrToolMissing) {
		return "", err
	}

	switch {
	case strings.EqualFold(filepath.Ext(path), ".epub") || isZip(path):
		text, eerr := epubMetadata(path)
		if eerr != nil {
			// Not every zip is an epub.
			return "", nil
		}
		return text, nil
	case isPDF(path):
		return pdfMetadata(path)
	}
	return "", err
}

func epubMetadata(path string) (string, error) {
	book, err := epub.Open(path)
	if err != nil {
		return "", err
	}
	defer book.Close()

	md := book.Metadata()
	var lines fieldLines
	lines.add("Title", strings.Join(md.Titles, "; "))
	authors := make([]string, 0, len(md.Authors))
	for _, a := range md.Authors {
		authors = append(authors, a.Name)
	}
	lines.add("Author(s)", strings.Join(authors, " & "))
	lines.add("Publisher", md.Publisher)
	lines.add("Published", md.Date)
	ids := make([]string, 0, len(md.Identifiers))
	for _, id := range md.Identifiers {
		scheme := strings.ToLower(id.Scheme)
		if scheme == "" {
			scheme = "id"
		}
		ids = append(ids, scheme+":"+id.Value)
	}
	lines.add("Identifiers", strings.Join(ids, ", "))
	lines.add("Rights", md.Rights)
	lines.add("Source", md.Source)
	return lines.String(), nil
}

func pdfMetadata(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return "", fmt.Errorf("%w: pdfcpu read: %v", ErrToolFailed, err)
	}

	var lines fieldLines
	lines.add("Title", ctx.Title)
	lines.add("Author(s)", ctx.Author)
	lines.add("Subject", ctx.Subject)
	lines.add("Tags", ctx.Keywords)
	lines.add("Creator", ctx.Creator)
	lines.add("Producer", ctx.Producer)
	return lines.String(), nil
}

func isPDF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 5)
	n, _ := f.Read(head)
	return string(head[:n]) == "%PDF-"
}

// fieldLines renders name/value pairs the way ebook-meta prints them.
type fieldLines []string

func (l *fieldLines) add(name, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	*l = append(*l, fmt.Sprintf("%-20s: %s", name, value))
}

func (l fieldLines) String() string {
	if len(l) == 0 {
		return ""
	}
	return strings.Join(l, "\n") + "\n"
}
