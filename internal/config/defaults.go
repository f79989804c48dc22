package config

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry is one documented configuration key.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns every configuration key with its default value.
// The manager registers each of them with viper, which is what makes the
// matching ISBNSCAN_* environment variables visible to Unmarshal.
func DefaultEntries() []Entry {
	d := DefaultConfig()
	p := d.Tools.Programs

	entries := []Entry{
		// ===================
		// Discovery
		// ===================
		{
			Key:         "discovery.tactics",
			Value:       d.Discovery.Tactics,
			Description: "Tactics to run, in order",
		},
		{
			Key:         "discovery.direct_grep_mime",
			Value:       d.Discovery.DirectGrepMIME,
			Description: "MIME types whose content is searched directly (case-insensitive regex)",
		},
		{
			Key:         "discovery.ignored_mime",
			Value:       d.Discovery.IgnoredMIME,
			Description: "MIME types that are never scanned (case-insensitive regex)",
		},
		{
			Key:         "discovery.reorder.enabled",
			Value:       d.Discovery.Reorder.Enabled,
			Description: "Move the end of extracted text next to the beginning before matching",
		},
		{
			Key:         "discovery.reorder.scan_first",
			Value:       d.Discovery.Reorder.ScanFirst,
			Description: "Leading lines kept in front",
		},
		{
			Key:         "discovery.reorder.reverse_last",
			Value:       d.Discovery.Reorder.ReverseLast,
			Description: "Trailing lines moved after the leading lines, last line first",
		},
		{
			Key:         "discovery.max_archive_depth",
			Value:       d.Discovery.MaxArchiveDepth,
			Description: "Deepest archive nesting that is extracted",
		},
		{
			Key:         "discovery.max_extracted_bytes",
			Value:       d.Discovery.MaxExtractedBytes,
			Description: "Total bytes one scan may extract from archives",
		},
		{
			Key:         "discovery.normalize_unicode",
			Value:       d.Discovery.NormalizeUnicode,
			Description: "Apply NFKC and fold Unicode dashes before matching",
		},

		// ===================
		// OCR
		// ===================
		{
			Key:         "ocr.mode",
			Value:       d.OCR.Mode,
			Description: "off, on (when conversion fails) or always (also when text had no ISBN)",
		},
		{
			Key:         "ocr.only_first_last",
			Value:       d.OCR.OnlyFirstLast,
			Description: "Only OCR the first and last pages of documents",
		},
		{
			Key:         "ocr.first_pages",
			Value:       d.OCR.FirstPages,
			Description: "Leading pages to OCR",
		},
		{
			Key:         "ocr.last_pages",
			Value:       d.OCR.LastPages,
			Description: "Trailing pages to OCR",
		},
		{
			Key:         "ocr.language",
			Value:       d.OCR.Language,
			Description: "Tesseract language",
		},
		{
			Key:         "ocr.psm",
			Value:       d.OCR.PSM,
			Description: "Tesseract page segmentation mode",
		},
		{
			Key:         "ocr.dpi",
			Value:       d.OCR.DPI,
			Description: "Page rasterization resolution",
		},

		// ===================
		// Tools
		// ===================
		{
			Key:         "tools.timeout",
			Value:       d.Tools.Timeout,
			Description: "Time limit for each external program invocation",
		},
	}

	for _, prog := range []struct{ key, value string }{
		{"file", p.File},
		{"sevenzip", p.SevenZip},
		{"pdftotext", p.PDFToText},
		{"djvutxt", p.DjVuTxt},
		{"catdoc", p.CatDoc},
		{"ebook_convert", p.EbookConvert},
		{"ebook_meta", p.EbookMeta},
		{"pdftoppm", p.PDFToPPM},
		{"ddjvu", p.DDjVu},
		{"djvused", p.DjVuSed},
		{"tesseract", p.Tesseract},
	} {
		entries = append(entries, Entry{
			Key:         "tools.programs." + prog.key,
			Value:       prog.value,
			Description: fmt.Sprintf("Path or name of %s (supports ${ENV_VAR} syntax)", prog.value),
		})
	}

	return append(entries,
		// ===================
		// Everything else
		// ===================
		Entry{
			Key:         "integrity.archive_extensions",
			Value:       d.Integrity.ArchiveExtensions,
			Description: "Extensions tested with the archiver by the check command (regex)",
		},
		Entry{
			Key:         "batch.workers",
			Value:       d.Batch.Workers,
			Description: "Files processed concurrently",
		},
		Entry{
			Key:         "output.separator",
			Value:       d.Output.Separator,
			Description: "Separator between ISBNs in text output",
		},
		Entry{
			Key:         "log.level",
			Value:       d.Log.Level,
			Description: "Log level: debug, info, warn or error",
		},
		Entry{
			Key:         "temp_dir",
			Value:       d.TempDir,
			Description: "Parent directory for scan workspaces (empty = scratch dir under the isbnscan home)",
		},
	)
}

// GetDefault returns the default entry for a config key.
// Returns ErrNoDefault if no default exists for the key.
func GetDefault(key string) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("%w for key %q", ErrNoDefault, key)
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	// Don't allow keys starting or ending with dots
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}
