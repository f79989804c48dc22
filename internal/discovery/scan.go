package discovery

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/isbnscan/internal/tempfs"
)

// conversion tracks what the convert tactic learned about a file, which
// decides whether OCR is worth running.
type conversion int

const (
	conversionNotAttempted conversion = iota
	// conversionFailed covers converter errors and garbage output.
	conversionFailed
	// conversionNoISBN means clean text was produced but held no ISBN.
	conversionNoISBN
)

// Scan is the per-file state handed to tactics. The MIME type is looked up
// at most once and only when a tactic asks for it.
type Scan struct {
	path   string
	depth  int
	engine *Engine
	inv    *invocation
	logger *slog.Logger

	mimeDone bool
	mimeType string
	mimeErr  error

	conversion  conversion
	textPath    string
	textRelease tempfs.Release
}

func newScan(e *Engine, inv *invocation, path string, depth int) *Scan {
	return &Scan{
		path:   path,
		depth:  depth,
		engine: e,
		inv:    inv,
		logger: inv.logger.With("path", path, "depth", depth),
	}
}

// MIMEType classifies the file on first use and memoizes the answer.
func (s *Scan) MIMEType(ctx context.Context) (string, error) {
	if !s.mimeDone {
		s.mimeDone = true
		s.mimeType, s.mimeErr = s.engine.collab.Classifier.Detect(ctx, s.path)
		if s.mimeErr != nil {
			s.inv.note(s.mimeErr)
			s.logger.Debug("mime detection failed", "error", s.mimeErr)
		} else {
			s.logger.Debug("mime detected", "mime", s.mimeType)
		}
	}
	return s.mimeType, s.mimeErr
}

// Class returns the coarse class of the file's MIME type. Files whose type
// cannot be determined are ClassOther.
func (s *Scan) Class(ctx context.Context) MimeClass {
	mimeType, err := s.MIMEType(ctx)
	if err != nil {
		return ClassOther
	}
	return s.engine.classes.classify(mimeType)
}

// textFile returns the scan's scratch text path, creating it on first use.
func (s *Scan) textFile() (string, error) {
	if s.textPath != "" {
		return s.textPath, nil
	}
	path, release, err := s.inv.ws.File("text-*.txt")
	if err != nil {
		return "", err
	}
	s.textPath, s.textRelease = path, release
	return path, nil
}

func (s *Scan) release() {
	if s.textRelease != nil {
		s.textRelease()
		s.textRelease = nil
	}
}
