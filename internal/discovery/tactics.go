package discovery

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// alnum is the converted-text sanity check: output without a single letter
// or digit is treated as a failed conversion.
var alnum = regexp.MustCompile(`[\p{L}\p{N}]`)

// filenameTactic matches the base name of the file.
type filenameTactic struct{}

func (t *filenameTactic) Name() string { return TacticFilename }

func (t *filenameTactic) Attempt(_ context.Context, s *Scan) Outcome {
	return found(s.engine.extract(filepath.Base(s.path)))
}

// mimeTactic halts on ignored types and greps direct-text types in full.
type mimeTactic struct{ e *Engine }

func (t *mimeTactic) Name() string { return TacticMIME }

func (t *mimeTactic) Attempt(ctx context.Context, s *Scan) Outcome {
	switch s.Class(ctx) {
	case ClassIgnored:
		s.logger.Debug("ignoring file by mime type", "mime", s.mimeType)
		return halt(nil)
	case ClassDirectText:
		text, err := readText(s.path, s.mimeType)
		if err != nil {
			s.logger.Debug("failed to read text file", "error", err)
			return halt(nil)
		}
		return halt(t.e.extract(t.e.opts.Reorder.Text(text)))
	default:
		return Outcome{Kind: Continue}
	}
}

// readText reads a text file and decodes it to UTF-8 using its BOM, any
// declared HTML charset, or a legacy fallback for invalid UTF-8.
func readText(path, mimeType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if utf8.Valid(data) && !hasBOM(data) {
		return string(data), nil
	}
	enc, name, _ := charset.DetermineEncoding(data, mimeType)
	if name == "utf-8" {
		return string(data), nil
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(data), nil
	}
	return string(decoded), nil
}

func hasBOM(data []byte) bool {
	return len(data) >= 2 && ((data[0] == 0xFE && data[1] == 0xFF) || (data[0] == 0xFF && data[1] == 0xFE))
}

// metadataTactic matches embedded document metadata.
type metadataTactic struct{ e *Engine }

func (t *metadataTactic) Name() string { return TacticMetadata }

func (t *metadataTactic) Attempt(ctx context.Context, s *Scan) Outcome {
	text, err := t.e.collab.Metadata.Read(ctx, s.path)
	if err != nil {
		s.inv.note(err)
		s.logger.Debug("metadata extraction failed", "error", err)
		return Outcome{Kind: Continue}
	}
	return found(t.e.extract(text))
}

// convertTactic converts the file to text and matches it.
type convertTactic struct{ e *Engine }

func (t *convertTactic) Name() string { return TacticConvert }

func (t *convertTactic) Attempt(ctx context.Context, s *Scan) Outcome {
	mimeType, err := s.MIMEType(ctx)
	if err != nil {
		s.conversion = conversionFailed
		return Outcome{Kind: Continue}
	}
	out, err := s.textFile()
	if err != nil {
		s.logger.Warn("failed to allocate text file", "error", err)
		s.conversion = conversionFailed
		return Outcome{Kind: Continue}
	}

	if err := t.e.collab.Converter.Convert(ctx, s.path, mimeType, out); err != nil {
		s.inv.note(err)
		s.logger.Debug("conversion failed", "mime", mimeType, "error", err)
		s.conversion = conversionFailed
		return Outcome{Kind: Continue}
	}

	data, err := os.ReadFile(out)
	if err != nil || !alnum.Match(data) {
		s.logger.Debug("conversion produced no usable text", "mime", mimeType)
		s.conversion = conversionFailed
		return Outcome{Kind: Continue}
	}

	isbns := t.e.extract(t.e.opts.Reorder.Text(string(data)))
	if len(isbns) == 0 {
		s.conversion = conversionNoISBN
	}
	return found(isbns)
}

// ocrTactic recognizes the file as images when conversion did not help.
type ocrTactic struct{ e *Engine }

func (t *ocrTactic) Name() string { return TacticOCR }

func (t *ocrTactic) Attempt(ctx context.Context, s *Scan) Outcome {
	switch t.e.opts.OCRMode {
	case OCROn:
		if s.conversion == conversionNoISBN {
			return Outcome{Kind: Continue}
		}
	case OCRAlways:
	default:
		return Outcome{Kind: Continue}
	}

	mimeType, err := s.MIMEType(ctx)
	if err != nil {
		return Outcome{Kind: Continue}
	}
	switch s.engine.classes.classify(mimeType) {
	case ClassPDF, ClassDjVu, ClassImage:
	default:
		s.logger.Debug("skipping OCR for mime type", "mime", mimeType)
		return Outcome{Kind: Continue}
	}

	out, err := s.textFile()
	if err != nil {
		s.logger.Warn("failed to allocate text file", "error", err)
		return Outcome{Kind: Continue}
	}
	if err := s.inv.recognizer.Run(ctx, s.path, mimeType, out); err != nil {
		s.inv.note(err)
		s.logger.Debug("OCR failed", "error", err)
		return Outcome{Kind: Continue}
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return Outcome{Kind: Continue}
	}
	return found(t.e.extract(t.e.opts.Reorder.Text(string(data))))
}
