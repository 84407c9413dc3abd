package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/acp/internal/annotate"
	"github.com/phobologic/acp/internal/discover"
	"github.com/phobologic/acp/internal/index"
	"github.com/phobologic/acp/internal/vocab"
)

func (a *app) annotateCmd() *cobra.Command {
	var (
		level string
		apply bool
		langs string
	)
	cmd := &cobra.Command{
		Use:   "annotate [path...]",
		Short: "Suggest missing @acp annotations",
		Long: `Analyze source files for symbols missing @acp annotations and propose values
converted from existing doc comments, path and naming heuristics.

Without --apply a unified diff is printed and no file is modified. Paths
restrict the run to files at or below them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.root()
			if err != nil {
				return err
			}
			cfg, err := a.config(root)
			if err != nil {
				return err
			}
			lvl := cfg.Level()
			if level != "" {
				if lvl, err = vocab.ParseLevel(level); err != nil {
					return err
				}
			}
			langFilter, err := parseLangs(langs)
			if err != nil {
				return err
			}

			files, err := discover.Files(cmd.Context(), root, discover.Options{
				Include:   cfg.Include,
				Exclude:   cfg.Exclude,
				Languages: langFilter,
			})
			if err != nil {
				return fmt.Errorf("discovering files: %w", err)
			}
			files = underPaths(files, args)
			files = index.FilterBySize(root, files, cfg.Limits.MaxFileSize, a.log)
			if len(files) == 0 {
				return index.ErrNoFiles
			}

			outcomes, err := annotate.Run(cmd.Context(), root, files, annotate.Options{
				Level:         lvl,
				Apply:         apply,
				CustomDomains: cfg.Domains,
				Workers:       cfg.Limits.Workers,
				Logger:        a.log,
			})
			if err != nil {
				return err
			}

			var changed, suggestions, failed int
			for _, o := range outcomes {
				if o.Err != nil {
					failed++
					continue
				}
				suggestions += len(o.Suggestions)
				if len(o.Changes) == 0 {
					continue
				}
				changed++
				if apply {
					if o.Written {
						_, _ = fmt.Fprintf(a.stdout, "wrote %s (%d changes)\n", o.Path, len(o.Changes))
					}
				} else {
					_, _ = fmt.Fprint(a.stdout, o.Diff)
				}
			}
			a.log.Info("annotate finished", "level", lvl, "files", len(outcomes), "changed", changed, "suggestions", suggestions)
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "annotation level: minimal, standard or full (default from config)")
	cmd.Flags().BoolVar(&apply, "apply", false, "write annotations into the files")
	cmd.Flags().StringVarP(&langs, "langs", "l", "", "comma-separated languages to include")
	return cmd
}

// underPaths keeps files equal to or below one of paths. No paths keeps all.
func underPaths(files []discover.FileEntry, paths []string) []discover.FileEntry {
	if len(paths) == 0 {
		return files
	}
	var out []discover.FileEntry
	for _, f := range files {
		for _, p := range paths {
			p = strings.TrimSuffix(strings.TrimPrefix(filepath.ToSlash(p), "./"), "/")
			if p == "" || p == "." || f.Path == p || strings.HasPrefix(f.Path, p+"/") {
				out = append(out, f)
				break
			}
		}
	}
	return out
}
