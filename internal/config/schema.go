package config

import (
	"fmt"
	"time"

	"github.com/jackzampolin/isbnscan/internal/discovery"
	"github.com/jackzampolin/isbnscan/internal/integrity"
	"github.com/jackzampolin/isbnscan/internal/isbn"
	"github.com/jackzampolin/isbnscan/internal/ocr"
	"github.com/jackzampolin/isbnscan/internal/reorder"
	"github.com/jackzampolin/isbnscan/internal/toolchain"
)

// Config holds isbnscan configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Discovery DiscoveryCfg `mapstructure:"discovery" yaml:"discovery"`
	OCR       OCRCfg       `mapstructure:"ocr" yaml:"ocr"`
	Tools     ToolsCfg     `mapstructure:"tools" yaml:"tools"`
	Integrity IntegrityCfg `mapstructure:"integrity" yaml:"integrity"`
	Batch     BatchCfg     `mapstructure:"batch" yaml:"batch"`
	Output    OutputCfg    `mapstructure:"output" yaml:"output"`
	Log       LogCfg       `mapstructure:"log" yaml:"log"`
	// TempDir is the parent of scan workspaces (supports ${ENV_VAR} syntax, empty = scratch dir under the isbnscan home)
	TempDir string `mapstructure:"temp_dir" yaml:"temp_dir"`
}

// DiscoveryCfg configures the tactic cascade.
type DiscoveryCfg struct {
	Tactics           []string   `mapstructure:"tactics" yaml:"tactics"`                     // Ordered tactic names
	DirectGrepMIME    string     `mapstructure:"direct_grep_mime" yaml:"direct_grep_mime"`   // Types grepped directly
	IgnoredMIME       string     `mapstructure:"ignored_mime" yaml:"ignored_mime"`           // Types never scanned
	Reorder           ReorderCfg `mapstructure:"reorder" yaml:"reorder"`                     // Line reordering
	MaxArchiveDepth   int        `mapstructure:"max_archive_depth" yaml:"max_archive_depth"` // Archive nesting limit
	MaxExtractedBytes int64      `mapstructure:"max_extracted_bytes" yaml:"max_extracted_bytes"`
	NormalizeUnicode  bool       `mapstructure:"normalize_unicode" yaml:"normalize_unicode"`
}

// ReorderCfg configures the line reordering applied before matching.
type ReorderCfg struct {
	Enabled     bool `mapstructure:"enabled" yaml:"enabled"`
	ScanFirst   int  `mapstructure:"scan_first" yaml:"scan_first"`
	ReverseLast int  `mapstructure:"reverse_last" yaml:"reverse_last"`
}

// OCRCfg configures OCR.
type OCRCfg struct {
	Mode          string `mapstructure:"mode" yaml:"mode"` // off, on or always
	OnlyFirstLast bool   `mapstructure:"only_first_last" yaml:"only_first_last"`
	FirstPages    int    `mapstructure:"first_pages" yaml:"first_pages"`
	LastPages     int    `mapstructure:"last_pages" yaml:"last_pages"`
	Language      string `mapstructure:"language" yaml:"language"` // tesseract -l
	PSM           int    `mapstructure:"psm" yaml:"psm"`           // tesseract --psm
	DPI           int    `mapstructure:"dpi" yaml:"dpi"`           // Rasterization resolution
}

// ToolsCfg configures external programs.
type ToolsCfg struct {
	Timeout  string             `mapstructure:"timeout" yaml:"timeout"` // Per-invocation limit, e.g. "5m"
	Programs toolchain.Programs `mapstructure:"programs" yaml:"programs"`
}

// IntegrityCfg configures the corruption check.
type IntegrityCfg struct {
	ArchiveExtensions string `mapstructure:"archive_extensions" yaml:"archive_extensions"`
}

// BatchCfg configures multi-file runs.
type BatchCfg struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// OutputCfg configures result formatting.
type OutputCfg struct {
	Separator string `mapstructure:"separator" yaml:"separator"`
}

// LogCfg configures logging.
type LogCfg struct {
	Level string `mapstructure:"level" yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	ropts := reorder.DefaultOptions()
	oopts := ocr.DefaultOptions()
	return &Config{
		Discovery: DiscoveryCfg{
			Tactics:        discovery.DefaultTactics(),
			DirectGrepMIME: discovery.DefaultDirectGrepMIME,
			IgnoredMIME:    discovery.DefaultIgnoredMIME,
			Reorder: ReorderCfg{
				Enabled:     ropts.Enabled,
				ScanFirst:   ropts.ScanFirst,
				ReverseLast: ropts.ReverseLast,
			},
			MaxArchiveDepth:   discovery.DefaultMaxArchiveDepth,
			MaxExtractedBytes: discovery.DefaultMaxExtractedBytes,
			NormalizeUnicode:  true,
		},
		OCR: OCRCfg{
			Mode:          string(discovery.OCROff),
			OnlyFirstLast: oopts.OnlyFirstLast,
			FirstPages:    oopts.FirstPages,
			LastPages:     oopts.LastPages,
			Language:      "eng",
			PSM:           12,
			DPI:           300,
		},
		Tools: ToolsCfg{
			Timeout:  toolchain.DefaultTimeout.String(),
			Programs: toolchain.DefaultPrograms(),
		},
		Integrity: IntegrityCfg{
			ArchiveExtensions: integrity.DefaultArchiveExtensions,
		},
		Batch:  BatchCfg{Workers: 1},
		Output: OutputCfg{Separator: isbn.DefaultSeparator},
		Log:    LogCfg{Level: "info"},
	}
}

// ToolTimeout parses the per-invocation tool timeout.
func (c *Config) ToolTimeout() (time.Duration, error) {
	if c.Tools.Timeout == "" {
		return toolchain.DefaultTimeout, nil
	}
	d, err := time.ParseDuration(c.Tools.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid tools.timeout %q: %w", c.Tools.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid tools.timeout %q: must be positive", c.Tools.Timeout)
	}
	return d, nil
}

// ToToolchainConfig converts the config for toolchain.New.
// It resolves ${ENV_VAR} references in program paths.
func (c *Config) ToToolchainConfig() (toolchain.Config, error) {
	timeout, err := c.ToolTimeout()
	if err != nil {
		return toolchain.Config{}, err
	}
	p := c.Tools.Programs
	for _, v := range []*string{
		&p.File, &p.SevenZip, &p.PDFToText, &p.DjVuTxt, &p.CatDoc, &p.EbookConvert,
		&p.EbookMeta, &p.PDFToPPM, &p.DDjVu, &p.DjVuSed, &p.Tesseract,
	} {
		*v = ResolveEnvVars(*v)
	}
	return toolchain.Config{
		Timeout:  timeout,
		Programs: p,
		OCR: toolchain.OCROptions{
			Language: c.OCR.Language,
			PSM:      c.OCR.PSM,
			DPI:      c.OCR.DPI,
		},
	}, nil
}

// ToDiscoveryOptions converts the config for discovery.New.
func (c *Config) ToDiscoveryOptions() (discovery.Options, error) {
	mode, err := discovery.ParseOCRMode(c.OCR.Mode)
	if err != nil {
		return discovery.Options{}, err
	}
	return discovery.Options{
		Tactics:        c.Discovery.Tactics,
		DirectGrepMIME: c.Discovery.DirectGrepMIME,
		IgnoredMIME:    c.Discovery.IgnoredMIME,
		Reorder: reorder.Options{
			Enabled:     c.Discovery.Reorder.Enabled,
			ScanFirst:   c.Discovery.Reorder.ScanFirst,
			ReverseLast: c.Discovery.Reorder.ReverseLast,
		},
		OCRMode: mode,
		OCR: ocr.Options{
			OnlyFirstLast: c.OCR.OnlyFirstLast,
			FirstPages:    c.OCR.FirstPages,
			LastPages:     c.OCR.LastPages,
		},
		MaxArchiveDepth:   c.Discovery.MaxArchiveDepth,
		MaxExtractedBytes: c.Discovery.MaxExtractedBytes,
		NormalizeUnicode:  c.Discovery.NormalizeUnicode,
		TempDir:           ResolveEnvVars(c.TempDir),
	}, nil
}
