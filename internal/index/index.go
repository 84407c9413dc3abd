// Package index builds the project cache: it discovers files, analyzes
// them on a worker pool and merges the results into a cache.Cache.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/phobologic/acp/internal/annotate"
	"github.com/phobologic/acp/internal/cache"
	"github.com/phobologic/acp/internal/discover"
	"github.com/phobologic/acp/internal/gitmeta"
	"github.com/phobologic/acp/internal/heuristics"
	"github.com/phobologic/acp/internal/pool"
	"github.com/phobologic/acp/internal/vars"
	"github.com/phobologic/acp/internal/vocab"
)

// ErrNoFiles is returned when discovery finds nothing to index.
var ErrNoFiles = errors.New("no indexable files found")

// Options configure an indexing run.
type Options struct {
	Project  cache.Project
	Discover discover.Options
	// MaxFileSize skips larger files; 0 disables the check.
	MaxFileSize int64
	Workers     int
	// Git attaches blame and history when root is inside a repository.
	Git          bool
	HistoryLimit int
	Hotpaths     int
	// Domains maps path components to domains ahead of the built-in table
	// when inferring a file's domain.
	Domains map[string]string
	// Previous is the cache being replaced; its debug sessions are kept.
	Previous *cache.Cache
	Now      func() time.Time
	Logger   *slog.Logger
}

// Run indexes root and returns the assembled cache.
func Run(ctx context.Context, root string, opts Options) (*cache.Cache, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if opts.Project.Name == "" {
		opts.Project.Name = filepath.Base(abs)
	}
	if opts.Project.Root == "" {
		opts.Project.Root = filepath.Base(abs)
	}

	dopts := opts.Discover
	dopts.IncludeUnknown = true
	files, err := discover.Files(ctx, abs, dopts)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	files = slices.DeleteFunc(files, func(f discover.FileEntry) bool { return IsGenerated(f.Path) })
	files = FilterBySize(abs, files, opts.MaxFileSize, log)
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	results, err := pool.Map(ctx, files, opts.Workers,
		func() *annotate.Analyzer { return annotate.NewAnalyzer(vocab.Full, nil) },
		(*annotate.Analyzer).Close,
		func(ctx context.Context, a *annotate.Analyzer, f discover.FileEntry) (*annotate.AnalysisResult, bool) {
			res, err := a.AnalyzeFile(ctx, abs, f.Path)
			if err != nil {
				log.Warn("skipping file", "path", f.Path, "error", err)
				return nil, false
			}
			return res, true
		})
	if err != nil {
		return nil, err
	}

	bopts := cache.Options{
		Project:      opts.Project,
		Now:          opts.Now,
		HistoryLimit: opts.HistoryLimit,
		HotpathCount: opts.Hotpaths,
		Paths:        heuristics.NewPathHeuristics(opts.Domains),
		Logger:       log,
	}
	if opts.Previous != nil && opts.Previous.Constraints != nil {
		bopts.DebugSessions = opts.Previous.Constraints.DebugSessions
	}
	if opts.Git {
		repo, err := gitmeta.Open(abs)
		switch {
		case err == nil:
			bopts.Git = repo
		case errors.Is(err, gitmeta.ErrNotGitRepo):
			log.Debug("not a git repository; skipping git metadata", "root", abs)
		default:
			log.Warn("git metadata unavailable", "error", err)
		}
	}

	b := cache.NewBuilder(bopts)
	for _, res := range results {
		b.AddFile(res)
	}
	c := b.Finish()
	log.Info("indexed", "files", c.Stats.Files, "symbols", c.Stats.Symbols, "coverage", c.Stats.AnnotationCoverage)
	return c, nil
}

// IsGenerated reports whether rel is one of the files acp itself writes.
func IsGenerated(rel string) bool {
	switch path.Base(rel) {
	case cache.DefaultFileName, vars.DefaultFileName:
		return true
	}
	return false
}

// FilterBySize drops files larger than maxSize bytes. Files that cannot be
// stat'ed are kept so the read reports the error. maxSize <= 0 keeps all.
func FilterBySize(root string, files []discover.FileEntry, maxSize int64, log *slog.Logger) []discover.FileEntry {
	if maxSize <= 0 {
		return files
	}
	if log == nil {
		log = slog.Default()
	}
	var kept []discover.FileEntry
	for _, f := range files {
		fi, err := os.Stat(filepath.Join(root, filepath.FromSlash(f.Path)))
		if err != nil {
			kept = append(kept, f)
			continue
		}
		if fi.Size() > maxSize {
			log.Warn("skipped large file", "path", f.Path, "bytes", fi.Size(), "limit", maxSize)
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
