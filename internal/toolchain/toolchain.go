package toolchain

import (
	"log/slog"
	"time"
)

// Config selects programs and limits for all collaborators.
type Config struct {
	Timeout  time.Duration
	Programs Programs
	OCR      OCROptions
}

// Set bundles the collaborators built from one Config. They share a Runner
// so PATH lookups are resolved once.
type Set struct {
	Runner    *Runner
	MIME      *MIMEDetector
	Archiver  *Archiver
	Converter *TextConverter
	Metadata  *MetadataReader
	OCR       *OCREngine
}

// New builds every collaborator from cfg.
func New(cfg Config, logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	programs := cfg.Programs.withDefaults()
	runner := NewRunner(cfg.Timeout, logger.With("component", "toolchain"))

	return &Set{
		Runner:    runner,
		MIME:      NewMIMEDetector(runner, programs.File),
		Archiver:  NewArchiver(runner, programs.SevenZip),
		Converter: NewTextConverter(runner, programs),
		Metadata:  NewMetadataReader(runner, programs.EbookMeta),
		OCR:       NewOCREngine(runner, programs, cfg.OCR),
	}
}
