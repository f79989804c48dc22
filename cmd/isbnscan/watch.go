package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/isbnscan/internal/batch"
	"github.com/jackzampolin/isbnscan/internal/config"
	"github.com/jackzampolin/isbnscan/internal/output"
	"github.com/jackzampolin/isbnscan/internal/watch"
)

var watchSettle time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch DIR...",
	Short: "Scan files as they are added to directories",
	Long: `Watch directories and scan every file created or modified in them,
including new subdirectories. A file is scanned once its size stops
changing. Edits to the config file apply to files scanned afterwards.

Runs until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		cfg := a.cfg.Get()

		engine, err := a.newEngine(cfg, nil)
		if err != nil {
			return err
		}

		w := watch.New(engine, watch.Config{
			Dirs:    args,
			Settle:  watchSettle,
			Workers: cfg.Batch.Workers,
		}, a.logger)

		a.cfg.OnChange(func(cfg *config.Config) {
			engine, err := a.newEngine(cfg, nil)
			if err != nil {
				a.logger.Warn("keeping previous engine", "error", err)
				return
			}
			w.SetFinder(engine)
			a.logger.Info("engine rebuilt", "tactics", engine.Tactics(), "ocr", cfg.OCR.Mode)
		})
		a.cfg.WatchConfig()

		a.logger.Info("watching", "dirs", args)
		return w.Run(cmd.Context(), func(it batch.Item) {
			if it.Err != nil {
				return
			}
			report := findReport{
				Items:     []batch.Item{it},
				Summary:   batch.Summarize([]batch.Item{it}),
				separator: a.cfg.Get().Output.Separator,
			}
			if err := output.Print(report); err != nil {
				a.logger.Warn("cannot print result", "error", err)
			}
		})
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", watch.DefaultSettle, "interval between size checks of new files")
}
