// Package batch runs discovery over many files with bounded concurrency.
package batch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/isbnscan/internal/discovery"
)

// Finder runs discovery on one file.
type Finder interface {
	Find(ctx context.Context, path string) (*discovery.Result, error)
}

// Item is the outcome for one input file.
type Item struct {
	Path     string            `json:"path" yaml:"path"`
	Result   *discovery.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Err      error             `json:"-" yaml:"-"`
	Error    string            `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration     `json:"duration" yaml:"duration"`
}

// Summary counts outcomes across a batch.
type Summary struct {
	Files   int `json:"files" yaml:"files"`
	Matched int `json:"matched" yaml:"matched"`
	Failed  int `json:"failed" yaml:"failed"`
	Limited int `json:"limited" yaml:"limited"`
}

// Summarize counts matched, failed and limited items.
func Summarize(items []Item) Summary {
	s := Summary{Files: len(items)}
	for _, it := range items {
		switch {
		case it.Err != nil:
			s.Failed++
		case it.Result != nil && len(it.Result.ISBNs) > 0:
			s.Matched++
		}
		if it.Result != nil && it.Result.Limited {
			s.Limited++
		}
	}
	return s
}

// Run calls f.Find on every path with at most workers calls in flight.
// Items come back in input order. A failing file is recorded in its item
// and never stops the batch; only context cancellation does.
func Run(ctx context.Context, f Finder, paths []string, workers int, logger *slog.Logger) ([]Item, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}

	items := make([]Item, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			res, err := f.Find(gctx, path)
			items[i] = Item{Path: path, Result: res, Err: err, Duration: time.Since(start)}
			if err != nil {
				items[i].Error = err.Error()
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				logger.Warn("discovery failed", "path", path, "error", err)
				return nil
			}
			logger.Debug("file processed", "path", path, "isbns", len(res.ISBNs), "duration", items[i].Duration)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	for i := range items {
		if items[i].Path == "" {
			items[i].Path = paths[i]
		}
	}
	return items, err
}

// Expand turns the arguments into a list of regular files, walking
// directories recursively in lexical order. Hidden directories are skipped.
func Expand(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != arg && len(d.Name()) > 1 && d.Name()[0] == '.' {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
