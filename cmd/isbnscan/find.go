package main

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/isbnscan/internal/batch"
	"github.com/jackzampolin/isbnscan/internal/discovery"
	"github.com/jackzampolin/isbnscan/internal/metrics"
	"github.com/jackzampolin/isbnscan/internal/output"
)

var (
	findOCR       string
	findWorkers   int
	findSeparator string
	findTactics   []string
	findStats     bool
)

// findReport is the output of the find command.
type findReport struct {
	Items     []batch.Item   `json:"items" yaml:"items"`
	Summary   batch.Summary  `json:"summary" yaml:"summary"`
	Tactics   metrics.Report `json:"tactics,omitempty" yaml:"tactics,omitempty"`
	separator string
	bare      bool // omit paths in text output
}

// WriteText prints one line per file: the path, a tab and the joined
// ISBNs.
func (r findReport) WriteText(w io.Writer) error {
	for _, it := range r.Items {
		if it.Result == nil {
			continue
		}
		joined := it.Result.Joined(r.separator)
		var err error
		if r.bare {
			_, err = fmt.Fprintln(w, joined)
		} else {
			_, err = fmt.Fprintf(w, "%s\t%s\n", it.Path, joined)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

var findCmd = &cobra.Command{
	Use:   "find PATH...",
	Short: "Find ISBNs in files",
	Long: `Find ISBNs in the given files. Directories are walked recursively,
skipping hidden entries.

Examples:
  isbnscan find book.epub
  isbnscan find --ocr on scans/
  isbnscan find -o json --workers 4 library/
  isbnscan find --tactics filename,metadata *.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		cfg := *a.cfg.Get()
		if cmd.Flags().Changed("ocr") {
			cfg.OCR.Mode = findOCR
		}
		if cmd.Flags().Changed("workers") {
			cfg.Batch.Workers = findWorkers
		}
		if cmd.Flags().Changed("separator") {
			cfg.Output.Separator = findSeparator
		}
		if cmd.Flags().Changed("tactics") {
			cfg.Discovery.Tactics = findTactics
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var recorder *metrics.Recorder
		var obs discovery.Observer
		if findStats {
			recorder = metrics.NewRecorder()
			obs = recorder
		}
		engine, err := a.newEngine(&cfg, obs)
		if err != nil {
			return err
		}

		paths, err := batch.Expand(args)
		if err != nil {
			return err
		}
		a.logger.Debug("scanning", "files", len(paths), "workers", cfg.Batch.Workers, "tactics", engine.Tactics())

		items, runErr := batch.Run(cmd.Context(), engine, paths, cfg.Batch.Workers, a.logger)
		report := findReport{
			Items:     items,
			Summary:   batch.Summarize(items),
			separator: cfg.Output.Separator,
			bare:      len(paths) == 1 && len(args) == 1 && paths[0] == args[0],
		}

		if recorder != nil {
			report.Tactics = metrics.Summarize(recorder.List())
			if !output.IsStructured() {
				if err := report.Tactics.WriteTable(os.Stderr, engine.Tactics()); err != nil {
					return err
				}
			}
		}

		var missing []string
		for _, it := range items {
			if it.Result == nil {
				continue
			}
			for _, tool := range it.Result.MissingTools {
				if !slices.Contains(missing, tool) {
					missing = append(missing, tool)
				}
			}
			if it.Result.Limited {
				a.logger.Warn("archive limits reached, result may be incomplete", "path", it.Path)
			}
		}
		if len(missing) > 0 {
			slices.Sort(missing)
			a.logger.Warn("some programs are not installed, results may be incomplete", "missing", missing)
		}

		if err := output.Print(report); err != nil {
			return err
		}
		if runErr != nil {
			return runErr
		}
		if report.Summary.Failed > 0 {
			return fmt.Errorf("%d of %d files could not be scanned", report.Summary.Failed, report.Summary.Files)
		}
		return nil
	},
}

func init() {
	findCmd.Flags().StringVar(&findOCR, "ocr", "", "OCR mode: off, on or always (default from config)")
	findCmd.Flags().IntVar(&findWorkers, "workers", 0, "files scanned concurrently (default from config)")
	findCmd.Flags().StringVar(&findSeparator, "separator", "", "separator between ISBNs in text output (default from config)")
	findCmd.Flags().BoolVar(&findStats, "stats", false, "report per-tactic timing and outcomes")
	findCmd.Flags().StringSliceVar(&findTactics, "tactics", nil, "tactics to run, in order (default from config)")
}
