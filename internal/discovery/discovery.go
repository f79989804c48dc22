// Package discovery finds ISBNs in a file by running a cascade of
// progressively more expensive tactics, stopping at the first one that
// produces a result.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jackzampolin/isbnscan/internal/isbn"
	"github.com/jackzampolin/isbnscan/internal/ocr"
	"github.com/jackzampolin/isbnscan/internal/reorder"
	"github.com/jackzampolin/isbnscan/internal/tempfs"
	"github.com/jackzampolin/isbnscan/internal/toolchain"
)

// Default resource ceilings for archive recursion.
const (
	DefaultMaxArchiveDepth   = 8
	DefaultMaxExtractedBytes = int64(2 << 30)
)

// ErrNotRegularFile is returned when the input is a directory or device.
var ErrNotRegularFile = errors.New("not a regular file")

// OCRMode controls when OCR runs.
type OCRMode string

const (
	// OCROff never runs OCR.
	OCROff OCRMode = "off"
	// OCROn runs OCR only when text conversion failed or produced garbage.
	OCROn OCRMode = "on"
	// OCRAlways also runs OCR when converted text had no ISBN.
	OCRAlways OCRMode = "always"
)

// ParseOCRMode parses an OCR mode name. Booleans are accepted for
// configuration files that use true/false.
func ParseOCRMode(s string) (OCRMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "false", "no":
		return OCROff, nil
	case "on", "true", "yes":
		return OCROn, nil
	case "always":
		return OCRAlways, nil
	default:
		return "", fmt.Errorf("invalid OCR mode %q (want off, on or always)", s)
	}
}

// Classifier reports the MIME type of a file.
type Classifier interface {
	Detect(ctx context.Context, path string) (string, error)
}

// Archiver tests and extracts archives.
type Archiver interface {
	Test(ctx context.Context, path string) error
	Extract(ctx context.Context, path, dest string) error
}

// BoundedArchiver is implemented by archivers that can refuse or stop an
// extraction once maxBytes would be exceeded, failing with
// toolchain.ErrExtractLimit.
type BoundedArchiver interface {
	ExtractLimit(ctx context.Context, path, dest string, maxBytes int64) error
}

// Converter converts a document to plain text at outPath.
type Converter interface {
	Convert(ctx context.Context, path, mimeType, outPath string) error
}

// MetadataReader returns a document's embedded metadata as text.
type MetadataReader interface {
	Read(ctx context.Context, path string) (string, error)
}

// Collaborators are the external capabilities the cascade relies on.
type Collaborators struct {
	Classifier Classifier
	Archiver   Archiver
	Converter  Converter
	Metadata   MetadataReader
	OCR        ocr.Engine

	// Observer is optional.
	Observer Observer
}

// Observer is notified after every tactic attempt, including attempts on
// archive members.
type Observer interface {
	ObserveAttempt(tactic string, outcome OutcomeKind, depth int, elapsed time.Duration)
}

func (c Collaborators) validate() error {
	switch {
	case c.Classifier == nil:
		return errors.New("classifier is required")
	case c.Archiver == nil:
		return errors.New("archiver is required")
	case c.Converter == nil:
		return errors.New("converter is required")
	case c.Metadata == nil:
		return errors.New("metadata reader is required")
	case c.OCR == nil:
		return errors.New("OCR engine is required")
	}
	return nil
}

// Options configures the engine.
type Options struct {
	// Tactics lists tactic names in execution order. Empty means DefaultTactics.
	Tactics []string

	DirectGrepMIME string
	IgnoredMIME    string

	Reorder reorder.Options

	OCRMode OCRMode
	OCR     ocr.Options

	MaxArchiveDepth   int
	MaxExtractedBytes int64

	// NormalizeUnicode applies NFKC and dash folding before matching.
	NormalizeUnicode bool

	// TempDir is the parent of per-invocation workspaces.
	TempDir string
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		Tactics:           DefaultTactics(),
		DirectGrepMIME:    DefaultDirectGrepMIME,
		IgnoredMIME:       DefaultIgnoredMIME,
		Reorder:           reorder.DefaultOptions(),
		OCRMode:           OCROff,
		OCR:               ocr.DefaultOptions(),
		MaxArchiveDepth:   DefaultMaxArchiveDepth,
		MaxExtractedBytes: DefaultMaxExtractedBytes,
		NormalizeUnicode:  true,
	}
}

// Result is the outcome of discovery on one file.
type Result struct {
	Path  string   `json:"path" yaml:"path"`
	ISBNs []string `json:"isbns" yaml:"isbns"`
	// Tactic is the tactic that ended the cascade, empty when every tactic
	// fell through.
	Tactic string `json:"tactic,omitempty" yaml:"tactic,omitempty"`
	// MissingTools lists external programs that were needed but not installed.
	MissingTools []string `json:"missing_tools,omitempty" yaml:"missing_tools,omitempty"`
	// Limited is set when archive recursion hit a depth or size ceiling.
	Limited bool `json:"limited,omitempty" yaml:"limited,omitempty"`
}

// Joined returns the ISBNs joined by sep.
func (r *Result) Joined(sep string) string {
	return isbn.Join(r.ISBNs, sep)
}

// Engine runs the discovery cascade. It is safe for concurrent use; each
// Find call gets its own temp workspace.
type Engine struct {
	opts    Options
	collab  Collaborators
	classes *classifier
	tactics []Tactic
	logger  *slog.Logger
}

// New creates an engine with the built-in tactics registered.
func New(opts Options, collab Collaborators, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := collab.validate(); err != nil {
		return nil, err
	}
	if opts.MaxArchiveDepth <= 0 {
		opts.MaxArchiveDepth = DefaultMaxArchiveDepth
	}
	if opts.MaxExtractedBytes <= 0 {
		opts.MaxExtractedBytes = DefaultMaxExtractedBytes
	}
	if opts.OCRMode == "" {
		opts.OCRMode = OCROff
	}
	if len(opts.Tactics) == 0 {
		opts.Tactics = DefaultTactics()
	}

	classes, err := newClassifier(opts.DirectGrepMIME, opts.IgnoredMIME)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts:    opts,
		collab:  collab,
		classes: classes,
		logger:  logger,
	}

	registry := NewRegistry()
	for _, t := range []Tactic{
		&filenameTactic{},
		&mimeTactic{e: e},
		&metadataTactic{e: e},
		&archiveTactic{e: e},
		&convertTactic{e: e},
		&ocrTactic{e: e},
	} {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	e.tactics, err = registry.Select(opts.Tactics)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Tactics returns the configured tactic order.
func (e *Engine) Tactics() []string {
	names := make([]string, len(e.tactics))
	for i, t := range e.tactics {
		names[i] = t.Name()
	}
	return names
}

// Find runs the cascade on path. Tool failures are not errors: they make a
// tactic fall through, and missing programs are reported in the result.
// An error is returned only for unusable input, workspace failures, or a
// cancelled context.
func (e *Engine) Find(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}

	ws, err := tempfs.New(e.opts.TempDir, e.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Close(); err != nil {
			e.logger.Warn("failed to remove workspace", "root", ws.Root(), "error", err)
		}
	}()

	inv := &invocation{
		ws:      ws,
		missing: make(map[string]struct{}),
		logger:  e.logger.With("scan", ws.ID()),
	}
	inv.recognizer = ocr.NewRecognizer(e.collab.OCR, ws, e.opts.OCR, inv.logger)

	isbns, tactic := e.scan(ctx, inv, path, 0)

	result := &Result{
		Path:         path,
		ISBNs:        isbns,
		Tactic:       tactic,
		MissingTools: inv.missingTools(),
		Limited:      inv.limited,
	}
	if result.ISBNs == nil {
		result.ISBNs = []string{}
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	inv.logger.Debug("discovery finished",
		"path", path,
		"isbns", len(result.ISBNs),
		"tactic", tactic,
		"limited", result.Limited)
	return result, nil
}

// scan runs the tactic cascade on one file and returns its ISBNs and the
// tactic that ended the cascade.
func (e *Engine) scan(ctx context.Context, inv *invocation, path string, depth int) ([]string, string) {
	s := newScan(e, inv, path, depth)
	defer s.release()

	for _, t := range e.tactics {
		if ctx.Err() != nil {
			return nil, ""
		}
		start := time.Now()
		out := t.Attempt(ctx, s)
		elapsed := time.Since(start)
		s.logger.Debug("tactic attempted", "tactic", t.Name(), "outcome", out.Kind, "isbns", len(out.ISBNs), "elapsed", elapsed)
		if e.collab.Observer != nil {
			e.collab.Observer.ObserveAttempt(t.Name(), out.Kind, depth, elapsed)
		}
		switch out.Kind {
		case Found, Halt:
			return out.ISBNs, t.Name()
		}
	}
	return nil, ""
}

// extract runs the matcher on text, normalizing it first when configured.
func (e *Engine) extract(text string) []string {
	if e.opts.NormalizeUnicode {
		text = isbn.PrepareText(text)
	}
	return isbn.Find(text)
}

// invocation is state shared by one top-level Find and its archive recursion.
type invocation struct {
	ws         *tempfs.Workspace
	recognizer *ocr.Recognizer
	missing    map[string]struct{}
	extracted  int64
	limited    bool
	// exhausted is set once the extracted-bytes budget is spent; no
	// further archive is opened in this invocation.
	exhausted bool
	logger    *slog.Logger
}

// note records err when it reports a missing external program.
func (inv *invocation) note(err error) {
	if tool, ok := toolchain.MissingTool(err); ok {
		if _, seen := inv.missing[tool]; !seen {
			inv.logger.Warn("external tool not installed", "tool", tool)
		}
		inv.missing[tool] = struct{}{}
	}
}

func (inv *invocation) missingTools() []string {
	if len(inv.missing) == 0 {
		return nil
	}
	tools := make([]string, 0, len(inv.missing))
	for tool := range inv.missing {
		tools = append(tools, tool)
	}
	slices.Sort(tools)
	return tools
}
