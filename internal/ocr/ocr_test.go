package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/jackzampolin/isbnscan/internal/tempfs"
	"github.com/jackzampolin/isbnscan/internal/testutil"
	"github.com/jackzampolin/isbnscan/internal/toolchain"
)

func TestSelectPages(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		n    int
		want []int
	}{
		{"long document", DefaultOptions(), 20, []int{1, 2, 3, 4, 18, 19, 20}},
		{"exactly first plus last", DefaultOptions(), 7, []int{1, 2, 3, 4, 5, 6, 7}},
		{"short document no duplicates", DefaultOptions(), 5, []int{1, 2, 3, 4, 5}},
		{"shorter than head", DefaultOptions(), 2, []int{1, 2}},
		{"single page", DefaultOptions(), 1, []int{1}},
		{"empty", DefaultOptions(), 0, nil},
		{"all pages", Options{OnlyFirstLast: false}, 4, []int{1, 2, 3, 4}},
		{"no tail", Options{OnlyFirstLast: true, FirstPages: 2}, 10, []int{1, 2}},
		{"no head", Options{OnlyFirstLast: true, LastPages: 2}, 10, []int{9, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.opts.SelectPages(tt.n)
			if !slices.Equal(got, tt.want) {
				t.Errorf("SelectPages(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func newWorkspace(t *testing.T) *tempfs.Workspace {
	t.Helper()
	ws, err := tempfs.New(t.TempDir(), testutil.Logger(t))
	if err != nil {
		t.Fatalf("tempfs.New: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestRecognizer_Document(t *testing.T) {
	ws := newWorkspace(t)
	engine := &testutil.OCR{
		Pages: 10,
		PageText: map[int]string{
			1:  "Title page\n",
			2:  "ISBN 978-0-306-40615-7\n",
			9:  "index\n",
			10: "back cover\n",
		},
		FailPages: map[int]bool{3: true},
	}

	r := NewRecognizer(engine, ws, DefaultOptions(), testutil.Logger(t))
	out := filepath.Join(t.TempDir(), "out.txt")
	if err := r.Run(context.Background(), "book.pdf", "application/pdf", out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got, want := engine.Rasterized(), []int{1, 2, 3, 4, 8, 9, 10}; !slices.Equal(got, want) {
		t.Errorf("rasterized pages = %v, want %v", got, want)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "Title page\nISBN 978-0-306-40615-7\nindex\nback cover\n"
	if string(data) != want {
		t.Errorf("aggregate = %q, want %q", data, want)
	}

	for _, dir := range engine.PageDirs() {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("page dir %s was not released", dir)
		}
	}
}

func TestRecognizer_Image(t *testing.T) {
	ws := newWorkspace(t)
	engine := &testutil.OCR{ImageText: map[string]string{"cover.png": "ISBN 0-306-40615-2"}}

	r := NewRecognizer(engine, ws, DefaultOptions(), nil)
	out := filepath.Join(t.TempDir(), "out.txt")
	if err := r.Run(context.Background(), "/books/cover.png", "image/png", out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(engine.Rasterized()) != 0 {
		t.Error("single image should not be rasterized")
	}
	if engine.Recognized() != 1 {
		t.Errorf("Recognize calls = %d, want 1", engine.Recognized())
	}
	data, _ := os.ReadFile(out)
	if string(data) != "ISBN 0-306-40615-2" {
		t.Errorf("text = %q", data)
	}
}

func TestRecognizer_AllPagesFail(t *testing.T) {
	ws := newWorkspace(t)
	engine := &testutil.OCR{Pages: 2, Missing: true}

	r := NewRecognizer(engine, ws, DefaultOptions(), nil)
	err := r.Run(context.Background(), "scan.djvu", "image/vnd.djvu", filepath.Join(t.TempDir(), "out.txt"))
	if !errors.Is(err, toolchain.ErrToolMissing) {
		t.Fatalf("err = %v, want ErrToolMissing", err)
	}
	if tool, ok := toolchain.MissingTool(err); !ok || tool != "tesseract" {
		t.Errorf("MissingTool = %q, %v", tool, ok)
	}
}

func TestRecognizer_NoPages(t *testing.T) {
	r := NewRecognizer(&testutil.OCR{}, newWorkspace(t), DefaultOptions(), nil)
	err := r.Run(context.Background(), "empty.pdf", "application/pdf", filepath.Join(t.TempDir(), "out.txt"))
	if !errors.Is(err, ErrNoPages) {
		t.Errorf("err = %v, want ErrNoPages", err)
	}
}

func TestRecognizer_Unsupported(t *testing.T) {
	r := NewRecognizer(&testutil.OCR{}, newWorkspace(t), DefaultOptions(), nil)
	if err := r.Run(context.Background(), "a.zip", "application/zip", filepath.Join(t.TempDir(), "out.txt")); err == nil {
		t.Error("expected error for non-image type")
	}
}
