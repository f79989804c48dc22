package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/jackzampolin/isbnscan/internal/testutil"
)

const (
	isbnA = "9780306406157"
	isbnB = "0306406152"
	isbnC = "9780131103627"
)

type fakes struct {
	classifier *testutil.Classifier
	archiver   *testutil.Archiver
	converter  *testutil.Converter
	metadata   *testutil.Metadata
	ocr        *testutil.OCR
}

func newFakes() *fakes {
	return &fakes{
		classifier: &testutil.Classifier{},
		archiver:   &testutil.Archiver{},
		converter:  &testutil.Converter{},
		metadata:   &testutil.Metadata{},
		ocr:        &testutil.OCR{},
	}
}

func (f *fakes) collaborators() Collaborators {
	return Collaborators{
		Classifier: f.classifier,
		Archiver:   f.archiver,
		Converter:  f.converter,
		Metadata:   f.metadata,
		OCR:        f.ocr,
	}
}

func newEngine(t *testing.T, f *fakes, mutate func(*Options)) (*Engine, string) {
	t.Helper()
	tmp := t.TempDir()
	opts := DefaultOptions()
	opts.TempDir = tmp
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(opts, f.collaborators(), testutil.Logger(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, tmp
}

func assertNoTempLeft(t *testing.T, tmp string) {
	t.Helper()
	if left := testutil.Entries(tmp); len(left) != 0 {
		t.Errorf("temp storage not reclaimed: %v", left)
	}
}

func TestFind_FilenameShortCircuit(t *testing.T) {
	f := newFakes()
	e, tmp := newEngine(t, f, nil)
	path := testutil.WriteFile(t, t.TempDir(), "Some Book - 978-0-306-40615-7.pdf", "%PDF")

	res, err := e.Find(context.Background(), path)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !slices.Equal(res.ISBNs, []string{isbnA}) {
		t.Errorf("ISBNs = %v", res.ISBNs)
	}
	if res.Tactic != TacticFilename {
		t.Errorf("Tactic = %q", res.Tactic)
	}
	if f.classifier.Calls() != 0 || f.metadata.Calls() != 0 || f.archiver.Extracts() != 0 || f.converter.Calls() != 0 {
		t.Error("collaborators called after a filename match")
	}
	assertNoTempLeft(t, tmp)
}

func TestFind_IgnoredMIMEHalts(t *testing.T) {
	f := newFakes()
	f.classifier.Types = map[string]string{"song.mp3": "audio/mpeg"}
	f.metadata.Texts = map[string]string{"song.mp3": "ISBN " + isbnA}
	e, _ := newEngine(t, f, nil)
	path := testutil.WriteFile(t, t.TempDir(), "song.mp3", "ID3")

	res, err := e.Find(context.Background(), path)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(res.ISBNs) != 0 {
		t.Errorf("ISBNs = %v, want none", res.ISBNs)
	}
	if res.Tactic != TacticMIME {
		t.Errorf("Tactic = %q", res.Tactic)
	}
	if f.metadata.Calls() != 0 {
		t.Error("metadata read for an ignored file")
	}
}

func TestFind_DirectText(t *testing.T) {
	f := newFakes()
	f.classifier.Types = map[string]string{"notes.txt": "text/plain"}
	e, _ := newEngine(t, f, nil)

	t.Run("match", func(t *testing.T) {
		path := testutil.WriteFile(t, t.TempDir(), "notes.txt", "copyright\nISBN: 978–0–306–40615–7\n")
		res, err := e.Find(context.Background(), path)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if !slices.Equal(res.ISBNs, []string{isbnA}) {
			t.Errorf("ISBNs = %v", res.ISBNs)
		}
	})

	t.Run("no match halts", func(t *testing.T) {
		dir := t.TempDir()
		path := testutil.WriteFile(t, dir, "notes.txt", "nothing here\n")
		before := f.metadata.Calls()
		res, err := e.Find(context.Background(), path)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if len(res.ISBNs) != 0 || res.Tactic != TacticMIME {
			t.Errorf("result = %+v", res)
		}
		if f.metadata.Calls() != before {
			t.Error("cascade continued past direct text")
		}
	})

	t.Run("utf-16", func(t *testing.T) {
		text := "ISBN 0-306-40615-2"
		data := []byte{0xFF, 0xFE}
		for _, r := range text {
			data = append(data, byte(r), 0)
		}
		path := filepath.Join(t.TempDir(), "notes.txt")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
		res, err := e.Find(context.Background(), path)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if !slices.Equal(res.ISBNs, []string{isbnB}) {
			t.Errorf("ISBNs = %v", res.ISBNs)
		}
	})
}

func TestFind_Metadata(t *testing.T) {
	f := newFakes()
	f.classifier.Default = "application/epub+zip"
	f.metadata.Texts = map[string]string{"book.epub": "Title               : Book\nIdentifiers         : isbn:" + isbnC}
	e, _ := newEngine(t, f, nil)

	res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "book.epub", "PK"))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !slices.Equal(res.ISBNs, []string{isbnC}) || res.Tactic != TacticMetadata {
		t.Errorf("result = %+v", res)
	}
	if f.archiver.Extracts() != 0 {
		t.Error("archive extracted after metadata match")
	}
}

func TestFind_ArchiveRecursion(t *testing.T) {
	f := newFakes()
	f.archiver.Members = map[string]map[string]string{
		"bundle.zip": {
			"one/first-9780306406157.txt":       "x",
			"two/deep/second-9780131103627.pdf": "y",
			"dup-978-0-306-40615-7.txt":         "z",
		},
	}
	e, tmp := newEngine(t, f, nil)

	res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "bundle.zip", "PK"))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	got := slices.Clone(res.ISBNs)
	slices.Sort(got)
	want := []string{isbnA, isbnC}
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("ISBNs = %v, want each of %v once", res.ISBNs, want)
	}
	if res.Tactic != TacticArchive {
		t.Errorf("Tactic = %q", res.Tactic)
	}
	if res.Limited {
		t.Error("unexpected Limited")
	}
	assertNoTempLeft(t, tmp)
}

func TestFind_ArchiveWithoutISBNFallsThrough(t *testing.T) {
	f := newFakes()
	f.archiver.Members = map[string]map[string]string{"book.epub": {"chapter.xhtml": "<p>hi</p>"}}
	f.converter.Texts = map[string]string{"book.epub": "Printed in 2001. ISBN " + isbnB}
	e, tmp := newEngine(t, f, nil)

	res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "book.epub", "PK"))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !slices.Equal(res.ISBNs, []string{isbnB}) || res.Tactic != TacticConvert {
		t.Errorf("result = %+v", res)
	}
	assertNoTempLeft(t, tmp)
}

func TestFind_NestedArchiveDepthLimit(t *testing.T) {
	f := newFakes()
	f.archiver.Members = map[string]map[string]string{
		"outer.zip": {"inner.zip": "PK"},
		"inner.zip": {"leaf-" + isbnA + ".txt": "x"},
	}

	t.Run("within limit", func(t *testing.T) {
		e, _ := newEngine(t, f, nil)
		res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "outer.zip", "PK"))
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if !slices.Equal(res.ISBNs, []string{isbnA}) || res.Limited {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("limited", func(t *testing.T) {
		e, tmp := newEngine(t, f, func(o *Options) { o.MaxArchiveDepth = 1 })
		res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "outer.zip", "PK"))
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if len(res.ISBNs) != 0 || !res.Limited {
			t.Errorf("result = %+v, want empty and limited", res)
		}
		assertNoTempLeft(t, tmp)
	})
}

// unboundedArchiver hides ExtractLimit so only the post-extraction size
// check applies.
type unboundedArchiver struct{ a *testutil.Archiver }

func (u unboundedArchiver) Test(ctx context.Context, path string) error {
	return u.a.Test(ctx, path)
}

func (u unboundedArchiver) Extract(ctx context.Context, path, dest string) error {
	return u.a.Extract(ctx, path, dest)
}

func TestFind_ExtractedBytesLimit(t *testing.T) {
	members := map[string]map[string]string{
		"big.zip": {"leaf-" + isbnA + ".txt": "0123456789"},
	}

	t.Run("refused before extraction", func(t *testing.T) {
		f := newFakes()
		f.archiver.Members = members
		e, tmp := newEngine(t, f, func(o *Options) { o.MaxExtractedBytes = 5 })

		res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "big.zip", "PK"))
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if len(res.ISBNs) != 0 || !res.Limited || res.Tactic != TacticArchive {
			t.Errorf("result = %+v", res)
		}
		if f.archiver.Refused() != 1 || f.archiver.Extracts() != 0 {
			t.Errorf("refused = %d, extracts = %d, want 1 and 0", f.archiver.Refused(), f.archiver.Extracts())
		}
		assertNoTempLeft(t, tmp)
	})

	t.Run("measured after extraction", func(t *testing.T) {
		f := newFakes()
		f.archiver.Members = members
		collab := f.collaborators()
		collab.Archiver = unboundedArchiver{f.archiver}

		tmp := t.TempDir()
		opts := DefaultOptions()
		opts.TempDir = tmp
		opts.MaxExtractedBytes = 5
		e, err := New(opts, collab, testutil.Logger(t))
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "big.zip", "PK"))
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if len(res.ISBNs) != 0 || !res.Limited || res.Tactic != TacticArchive {
			t.Errorf("result = %+v", res)
		}
		if f.archiver.Extracts() != 1 {
			t.Errorf("extracts = %d, want 1", f.archiver.Extracts())
		}
		assertNoTempLeft(t, tmp)
	})
}

func TestFind_SpentBudgetSkipsOnlyArchives(t *testing.T) {
	f := newFakes()
	f.archiver.Members = map[string]map[string]string{
		"outer.zip":   {"a-inner.zip": "PK", "b-book.pdf": "%PDF"},
		"a-inner.zip": {"leaf-" + isbnA + ".txt": strings.Repeat("x", 100)},
	}
	f.classifier.Types = map[string]string{"b-book.pdf": "application/pdf"}
	f.converter.Texts = map[string]string{"b-book.pdf": "Copyright 1988. ISBN " + isbnC}
	// outer.zip extracts to 6 bytes; a-inner.zip would need 100 more.
	e, tmp := newEngine(t, f, func(o *Options) { o.MaxExtractedBytes = 10 })

	res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "outer.zip", "PK"))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !slices.Equal(res.ISBNs, []string{isbnC}) {
		t.Errorf("ISBNs = %v, want [%s]", res.ISBNs, isbnC)
	}
	if !res.Limited || res.Tactic != TacticArchive {
		t.Errorf("result = %+v, want limited archive result", res)
	}
	if f.converter.Calls() == 0 {
		t.Error("converter never ran on the sibling document")
	}
	if f.archiver.Refused() != 1 {
		t.Errorf("refused = %d, want 1", f.archiver.Refused())
	}
	assertNoTempLeft(t, tmp)
}

func TestFind_ArchiveBottomUpOrder(t *testing.T) {
	f := newFakes()
	f.archiver.Members = map[string]map[string]string{
		"bundle.zip": {
			"a " + isbnB + ".txt":     "x",
			"sub/b " + isbnA + ".txt": "y",
		},
	}
	e, tmp := newEngine(t, f, nil)

	res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "bundle.zip", "PK"))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	// Subdirectories are finished before the files beside them.
	want := []string{isbnA, isbnB}
	if !slices.Equal(res.ISBNs, want) {
		t.Errorf("ISBNs = %v, want %v", res.ISBNs, want)
	}
	assertNoTempLeft(t, tmp)
}

func TestFind_ConvertGarbage(t *testing.T) {
	f := newFakes()
	f.classifier.Default = "application/pdf"
	f.converter.Texts = map[string]string{"scan.pdf": " \n\f \n"}
	f.ocr.Pages = 3
	f.ocr.PageText = map[int]string{1: "ISBN " + isbnA}

	t.Run("ocr off", func(t *testing.T) {
		e, _ := newEngine(t, f, nil)
		res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "scan.pdf", "%PDF"))
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if len(res.ISBNs) != 0 || res.Tactic != "" {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("ocr on", func(t *testing.T) {
		e, tmp := newEngine(t, f, func(o *Options) { o.OCRMode = OCROn })
		res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "scan.pdf", "%PDF"))
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if !slices.Equal(res.ISBNs, []string{isbnA}) || res.Tactic != TacticOCR {
			t.Errorf("result = %+v", res)
		}
		assertNoTempLeft(t, tmp)
	})
}

func TestFind_OCRModeAfterCleanText(t *testing.T) {
	f := newFakes()
	f.classifier.Default = "application/pdf"
	f.converter.Texts = map[string]string{"book.pdf": "plenty of text but no number"}
	f.ocr.Pages = 1
	f.ocr.PageText = map[int]string{1: "ISBN " + isbnC}

	tests := []struct {
		mode OCRMode
		want []string
	}{
		{OCROn, []string{}},
		{OCRAlways, []string{isbnC}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			e, _ := newEngine(t, f, func(o *Options) { o.OCRMode = tt.mode })
			res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "book.pdf", "%PDF"))
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			if !slices.Equal(res.ISBNs, tt.want) {
				t.Errorf("ISBNs = %v, want %v", res.ISBNs, tt.want)
			}
		})
	}
}

func TestFind_MissingTools(t *testing.T) {
	f := newFakes()
	f.classifier.Default = "application/x-mobipocket-ebook"
	f.metadata.Missing = true
	f.archiver.Missing = true
	f.converter.Missing = true
	e, _ := newEngine(t, f, nil)

	res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "book.mobi", "BOOKMOBI"))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(res.ISBNs) != 0 {
		t.Errorf("ISBNs = %v", res.ISBNs)
	}
	want := []string{"7z", "ebook-convert", "ebook-meta"}
	if !slices.Equal(res.MissingTools, want) {
		t.Errorf("MissingTools = %v, want %v", res.MissingTools, want)
	}
}

func TestFind_MIMELookedUpOnce(t *testing.T) {
	f := newFakes()
	f.classifier.Default = "application/pdf"
	f.ocr.Pages = 1
	e, _ := newEngine(t, f, func(o *Options) { o.OCRMode = OCRAlways })

	if _, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), "x.pdf", "%PDF")); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if f.classifier.Calls() != 1 {
		t.Errorf("Detect calls = %d, want 1", f.classifier.Calls())
	}
}

func TestFind_TacticOrder(t *testing.T) {
	f := newFakes()
	name := "a-" + isbnA + ".bin"
	f.metadata.Texts = map[string]string{name: "ISBN " + isbnB}
	e, _ := newEngine(t, f, func(o *Options) { o.Tactics = []string{TacticMetadata} })

	if got := e.Tactics(); !slices.Equal(got, []string{TacticMetadata}) {
		t.Errorf("Tactics = %v", got)
	}
	res, err := e.Find(context.Background(), testutil.WriteFile(t, t.TempDir(), name, ""))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !slices.Equal(res.ISBNs, []string{isbnB}) {
		t.Errorf("ISBNs = %v, want only the metadata match", res.ISBNs)
	}
}

func TestFind_Errors(t *testing.T) {
	e, _ := newEngine(t, newFakes(), nil)

	if _, err := e.Find(context.Background(), t.TempDir()); !errors.Is(err, ErrNotRegularFile) {
		t.Errorf("directory: err = %v", err)
	}
	if _, err := e.Find(context.Background(), filepath.Join(t.TempDir(), "missing")); !os.IsNotExist(err) {
		t.Errorf("missing: err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Find(ctx, testutil.WriteFile(t, t.TempDir(), "x.bin", "")); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: err = %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	f := newFakes()

	if _, err := New(Options{Tactics: []string{"telepathy"}}, f.collaborators(), nil); !errors.Is(err, ErrTacticNotFound) {
		t.Errorf("unknown tactic: err = %v", err)
	}
	if _, err := New(Options{Tactics: []string{TacticOCR, TacticOCR}}, f.collaborators(), nil); !errors.Is(err, ErrTacticAlreadyRegistered) {
		t.Errorf("duplicate tactic: err = %v", err)
	}
	if _, err := New(Options{IgnoredMIME: "("}, f.collaborators(), nil); err == nil {
		t.Error("bad regex accepted")
	}
	if _, err := New(DefaultOptions(), Collaborators{}, nil); err == nil {
		t.Error("missing collaborators accepted")
	}
}

func TestParseOCRMode(t *testing.T) {
	tests := map[string]OCRMode{
		"":       OCROff,
		"off":    OCROff,
		"false":  OCROff,
		"on":     OCROn,
		"TRUE":   OCROn,
		"always": OCRAlways,
	}
	for in, want := range tests {
		got, err := ParseOCRMode(in)
		if err != nil || got != want {
			t.Errorf("ParseOCRMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOCRMode("sometimes"); err == nil {
		t.Error("expected error")
	}
}

func TestClassify(t *testing.T) {
	c, err := newClassifier("", "")
	if err != nil {
		t.Fatal(err)
	}
	tests := map[string]MimeClass{
		"text/plain":               ClassDirectText,
		"TEXT/HTML":                ClassDirectText,
		"application/xml":          ClassDirectText,
		"audio/mpeg":               ClassIgnored,
		"image/gif":                ClassIgnored,
		"application/x-dosexec":    ClassIgnored,
		"application/pdf":          ClassPDF,
		"image/vnd.djvu":           ClassDjVu,
		"image/vnd.djvu+multipage": ClassDjVu,
		"image/png":                ClassImage,
		"application/epub+zip":     ClassOther,
	}
	for in, want := range tests {
		if got := c.classify(in); got != want {
			t.Errorf("classify(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestResult_Joined(t *testing.T) {
	r := &Result{ISBNs: []string{isbnA, isbnB}}
	if got := r.Joined(","); got != isbnA+","+isbnB {
		t.Errorf("Joined = %q", got)
	}
}
