package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/jackzampolin/isbnscan/internal/tempfs"
	"github.com/jackzampolin/isbnscan/internal/toolchain"
)

// archiveTactic extracts the file and runs the full cascade on every
// member, merging the results.
type archiveTactic struct{ e *Engine }

func (t *archiveTactic) Name() string { return TacticArchive }

func (t *archiveTactic) Attempt(ctx context.Context, s *Scan) Outcome {
	switch {
	case s.inv.exhausted, s.inv.extracted >= t.e.opts.MaxExtractedBytes:
		if !t.isArchive(ctx, s) {
			return Outcome{Kind: Continue}
		}
		s.logger.Warn("skipping archive, extraction budget spent", "max_bytes", t.e.opts.MaxExtractedBytes)
		s.inv.limited = true
		s.inv.exhausted = true
		return halt(nil)
	case s.depth >= t.e.opts.MaxArchiveDepth:
		if !t.isArchive(ctx, s) {
			return Outcome{Kind: Continue}
		}
		s.logger.Warn("archive nesting limit reached", "max_depth", t.e.opts.MaxArchiveDepth)
		s.inv.limited = true
		return halt(nil)
	}

	dir, release, err := s.inv.ws.Dir("archive-*")
	if err != nil {
		s.logger.Warn("failed to create extraction dir", "error", err)
		return Outcome{Kind: Continue}
	}
	defer release()

	remaining := t.e.opts.MaxExtractedBytes - s.inv.extracted
	if err := t.extract(ctx, s.path, dir, remaining); err != nil {
		if errors.Is(err, toolchain.ErrExtractLimit) {
			t.exhaust(s, err)
			return halt(nil)
		}
		s.inv.note(err)
		s.logger.Debug("not an archive", "error", err)
		return Outcome{Kind: Continue}
	}

	size, err := tempfs.Size(dir)
	if err != nil {
		s.logger.Warn("failed to measure extracted files", "error", err)
		return Outcome{Kind: Continue}
	}
	s.inv.extracted += size
	if s.inv.extracted > t.e.opts.MaxExtractedBytes {
		t.exhaust(s, nil)
		return halt(nil)
	}

	s.logger.Debug("archive extracted", "bytes", size)

	var set isbnSet
	t.walk(ctx, s, dir, &set)

	// A member that spent the budget leaves this archive's result incomplete.
	if s.inv.exhausted {
		return halt(set.list)
	}
	return found(set.list)
}

func (t *archiveTactic) extract(ctx context.Context, path, dest string, maxBytes int64) error {
	if b, ok := t.e.collab.Archiver.(BoundedArchiver); ok {
		return b.ExtractLimit(ctx, path, dest, maxBytes)
	}
	return t.e.collab.Archiver.Extract(ctx, path, dest)
}

// isArchive asks the archiver whether the file is a readable archive.
func (t *archiveTactic) isArchive(ctx context.Context, s *Scan) bool {
	if err := t.e.collab.Archiver.Test(ctx, s.path); err != nil {
		s.inv.note(err)
		return false
	}
	return true
}

func (t *archiveTactic) exhaust(s *Scan, err error) {
	s.logger.Warn("extracted size limit reached",
		"extracted", s.inv.extracted,
		"max_bytes", t.e.opts.MaxExtractedBytes,
		"error", err)
	s.inv.limited = true
	s.inv.exhausted = true
}

// walk scans dir bottom-up: subdirectories are finished before the files
// next to them. Every member is deleted once processed so the extraction
// tree shrinks as it goes.
func (t *archiveTactic) walk(ctx context.Context, s *Scan, dir string, set *isbnSet) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("failed to read extraction dir", "dir", dir, "error", err)
		return
	}

	var files []os.DirEntry
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if !entry.IsDir() {
			files = append(files, entry)
			continue
		}
		p := filepath.Join(dir, entry.Name())
		t.walk(ctx, s, p, set)
		t.remove(s, p)
	}

	for _, entry := range files {
		if ctx.Err() != nil {
			return
		}
		p := filepath.Join(dir, entry.Name())
		if entry.Type().IsRegular() {
			isbns, _ := t.e.scan(ctx, s.inv, p, s.depth+1)
			set.add(isbns...)
		} else {
			s.logger.Debug("skipping archive member", "member", p, "mode", entry.Type().String())
		}
		t.remove(s, p)
	}
}

func (t *archiveTactic) remove(s *Scan, path string) {
	if err := tempfs.Remove(path); err != nil {
		s.logger.Warn("failed to remove archive member", "member", path, "error", err)
	}
}

// isbnSet keeps accepted ISBNs in discovery order without duplicates.
type isbnSet struct {
	seen map[string]struct{}
	list []string
}

func (s *isbnSet) add(isbns ...string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	for _, v := range isbns {
		if _, ok := s.seen[v]; ok {
			continue
		}
		s.seen[v] = struct{}{}
		s.list = append(s.list, v)
	}
}
