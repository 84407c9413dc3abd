package annotate

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/phobologic/acp/internal/discover"
	"github.com/phobologic/acp/internal/parse"
	"github.com/phobologic/acp/internal/pool"
	"github.com/phobologic/acp/internal/vocab"
)

// Options configures a pipeline run.
type Options struct {
	Level vocab.Level
	// Apply writes changes to disk; otherwise a diff preview is produced.
	Apply bool
	// CustomDomains maps path components to domains ahead of the built-in table.
	CustomDomains map[string]string
	// Workers bounds parallelism; 0 means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// FileOutcome is the pipeline result for one file.
type FileOutcome struct {
	Path        string             `json:"path"`
	Gaps        int                `json:"gaps"`
	Suggestions []vocab.Suggestion `json:"suggestions,omitempty"`
	Changes     []FileChange       `json:"changes,omitempty"`
	Diff        string             `json:"diff,omitempty"`
	Written     bool               `json:"written,omitempty"`
	Err         error              `json:"-"`
}

// Run analyzes, suggests and plans (and optionally writes) every file.
// Files are processed in parallel; each worker owns its parsers. Distinct
// files never share a writer target.
func Run(ctx context.Context, root string, files []discover.FileEntry, opts Options) ([]FileOutcome, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := opts.Level
	if level == "" {
		level = vocab.Standard
	}
	suggester := NewSuggester(level, opts.CustomDomains)
	writer := NewWriter()

	return pool.Map(ctx, files, opts.Workers,
		parse.NewParsers,
		(*parse.Parsers).Close,
		func(ctx context.Context, parsers *parse.Parsers, f discover.FileEntry) (FileOutcome, bool) {
			out := FileOutcome{Path: f.Path}
			analyzer := NewAnalyzer(level, parsers)
			res, err := analyzer.AnalyzeFile(ctx, root, f.Path)
			if err != nil {
				logger.Warn("analyze failed", "path", f.Path, "error", err)
				out.Err = err
				return out, true
			}
			out.Gaps = len(res.Gaps)
			out.Suggestions = suggester.Suggest(res)
			out.Changes = writer.Plan(res, out.Suggestions)
			if len(out.Changes) == 0 {
				return out, true
			}
			if opts.Apply {
				out.Written, err = writer.Apply(filepath.Join(root, filepath.FromSlash(f.Path)), res, out.Changes)
			} else {
				out.Diff, err = writer.Preview(res, out.Changes)
			}
			if err != nil {
				logger.Warn("write failed", "path", f.Path, "error", err)
				out.Err = err
			}
			logger.Debug("annotated", "path", f.Path, "changes", len(out.Changes), "written", out.Written)
			return out, true
		})
}
