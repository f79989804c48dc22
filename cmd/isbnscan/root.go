package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/isbnscan/internal/config"
	"github.com/jackzampolin/isbnscan/internal/home"
	"github.com/jackzampolin/isbnscan/internal/output"
	"github.com/jackzampolin/isbnscan/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "isbnscan",
	Short: "Find ISBNs in ebooks, documents and archives",
	Long: `isbnscan finds ISBN-10 and ISBN-13 identifiers in files.

For every file it tries, in order:
  - the file name
  - the content of plain-text files
  - embedded metadata (ebook-meta, EPUB and PDF readers)
  - the members of archives, recursively
  - a plain-text conversion of the document
  - OCR of the first and last pages (when enabled)

The first step that yields valid ISBNs wins. External programs
(7z, pdftotext, djvutxt, catdoc, ebook-convert, tesseract, ...) are used
when installed; missing programs are reported, not fatal.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.isbnscan/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "isbnscan home directory (default: ~/.isbnscan)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", string(output.DefaultFormat), "output format: text, yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "log debug messages to stderr",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return output.SetFormat(outputFormat)
	}

	rootCmd.AddCommand(findCmd, validateCmd, watchCmd, checkCmd, configCmd, versionCmd)
}

// app is the state shared by commands that need configuration.
type app struct {
	home   *home.Dir
	cfg    *config.Manager
	level  *slog.LevelVar
	logger *slog.Logger
}

// setup resolves the home directory, loads configuration and builds the
// stderr logger. The log level follows log.level unless --verbose is set.
func setup() (*app, error) {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	cm, err := config.NewManager(cfgFile, logger, h.Path())
	if err != nil {
		return nil, err
	}

	a := &app{home: h, cfg: cm, level: level, logger: logger}
	a.applyLevel(cm.Get())
	cm.OnChange(a.applyLevel)

	if f := cm.ConfigFile(); f != "" {
		logger.Debug("loaded config", "file", f)
	} else if !h.ConfigExists() {
		logger.Debug("no config file, using defaults", "create_with", "isbnscan config init")
	}
	return a, nil
}

func (a *app) applyLevel(cfg *config.Config) {
	if verbose {
		a.level.Set(slog.LevelDebug)
		return
	}
	// Validated on load.
	lvl, _ := config.ParseLogLevel(cfg.Log.Level)
	a.level.Set(lvl)
}
