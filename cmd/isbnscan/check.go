package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/isbnscan/internal/batch"
	"github.com/jackzampolin/isbnscan/internal/integrity"
	"github.com/jackzampolin/isbnscan/internal/output"
)

type checkReport []*integrity.Report

// WriteText prints the problem files only, one per line.
func (r checkReport) WriteText(w io.Writer) error {
	for _, rep := range r {
		if rep.OK() {
			continue
		}
		line := rep.Path + "\t" + rep.Reason
		if rep.Detail != "" {
			line += " (" + rep.Detail + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

var checkCmd = &cobra.Command{
	Use:   "check PATH...",
	Short: "Detect empty, truncated or broken files",
	Long: `Check files for corruption before scanning them: empty or zero-filled
files, documents whose content does not match the extension, PDFs that
cannot be parsed, and archives that fail testing. Exits with status 1 if
any file has a problem.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		cfg := a.cfg.Get()

		tools, err := newTools(cfg, a.logger)
		if err != nil {
			return err
		}
		checker, err := integrity.New(tools.MIME, tools.Archiver, cfg.Integrity.ArchiveExtensions, a.logger)
		if err != nil {
			return err
		}

		paths, err := batch.Expand(args)
		if err != nil {
			return err
		}

		var (
			reports checkReport
			broken  int
		)
		for _, p := range paths {
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			rep, err := checker.Check(cmd.Context(), p)
			if err != nil {
				a.logger.Warn("check failed", "path", p, "error", err)
				rep = &integrity.Report{Path: p, Reason: "the file could not be opened", Detail: err.Error()}
			}
			if !rep.OK() {
				broken++
			}
			reports = append(reports, rep)
		}

		if err := output.Print(reports); err != nil {
			return err
		}
		if broken > 0 {
			return fmt.Errorf("%d of %d files have problems", broken, len(reports))
		}
		return nil
	},
}
