// acp indexes a codebase's @acp annotations into a cache that AI coding
// assistants read for structure, intent and modification constraints.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/acp/internal/cache"
	"github.com/phobologic/acp/internal/config"
	"github.com/phobologic/acp/internal/discover"
	"github.com/phobologic/acp/internal/index"
	"github.com/phobologic/acp/internal/lang"
	"github.com/phobologic/acp/internal/ranking"
	"github.com/phobologic/acp/internal/toon"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// app carries the persistent flags shared by every subcommand.
type app struct {
	stdout, stderr io.Writer

	dir        string
	cachePath  string
	userConfig string
	verbose    bool

	log *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "acp",
		Short: "Annotation-aware code knowledge base for AI assistants",
		Long: `acp scans source files for @acp annotations, extracts symbols, imports and
calls with tree-sitter, and writes acp.cache.json: a knowledge base of files,
symbols, the call graph, domains, layers and modification constraints.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.log = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("acp {{.Version}}\n")
	root.Flags().BoolP("version", "V", false, "show version and exit")

	pf := root.PersistentFlags()
	pf.StringVarP(&a.dir, "dir", "C", ".", "project root")
	pf.StringVar(&a.cachePath, "cache", "", "cache file path (default <root>/"+cache.DefaultFileName+")")
	pf.StringVar(&a.userConfig, "user-config", "", `user config file ("-" to ignore)`)
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log debug detail to stderr")

	root.AddCommand(
		a.indexCmd(),
		a.mapCmd(),
		a.annotateCmd(),
		a.varsCmd(),
		a.expandCmd(),
		a.checkCmd(),
		a.hacksCmd(),
		a.debugCmd(),
		a.checkCacheCmd(),
		a.initCmd(),
	)
	return root
}

// root resolves and validates the project directory.
func (a *app) root() (string, error) {
	root, err := filepath.Abs(a.dir)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: not a directory", root)
	}
	return root, nil
}

func (a *app) config(root string) (*config.Config, error) {
	l := config.NewLoader(a.log)
	if a.userConfig != "" {
		l.UserPath = a.userConfig
	}
	return l.Load(root)
}

func (a *app) cacheFile(root string) string {
	if a.cachePath != "" {
		return a.cachePath
	}
	return filepath.Join(root, cache.DefaultFileName)
}

func (a *app) loadCache(root string) (*cache.Cache, error) {
	path := a.cacheFile(root)
	c, err := cache.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no cache at %s; run `acp index` first", path)
	}
	return c, err
}

// build indexes root with cfg and writes the cache. Debug sessions recorded
// in the existing cache survive the rebuild.
func (a *app) build(ctx context.Context, root string, cfg *config.Config, langs []string, git bool) (*cache.Cache, error) {
	path := a.cacheFile(root)
	prev, err := cache.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		a.log.Warn("ignoring unreadable cache", "path", path, "error", err)
	}

	c, err := index.Run(ctx, root, index.Options{
		Project:      cache.Project{Name: cfg.Project.Name, Description: cfg.Project.Description},
		Discover:     discover.Options{Include: cfg.Include, Exclude: cfg.Exclude, Languages: langs},
		MaxFileSize:  cfg.Limits.MaxFileSize,
		Workers:      cfg.Limits.Workers,
		Git:          git && cfg.GitEnabled(),
		HistoryLimit: cfg.Git.HistoryLimit,
		Hotpaths:     cfg.Limits.Hotpaths,
		Domains:      cfg.Domains,
		Previous:     prev,
		Logger:       a.log,
	})
	if err != nil {
		return nil, err
	}
	if err := cache.Save(path, c); err != nil {
		return nil, err
	}
	return c, nil
}

func parseLangs(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if _, ok := lang.Languages[name]; !ok {
			return nil, fmt.Errorf("unsupported language %q", name)
		}
		out = append(out, name)
	}
	return out, nil
}

func (a *app) indexCmd() *cobra.Command {
	var (
		langs string
		noGit bool
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build " + cache.DefaultFileName + " from the project sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := a.root()
			if err != nil {
				return err
			}
			cfg, err := a.config(root)
			if err != nil {
				return err
			}
			langFilter, err := parseLangs(langs)
			if err != nil {
				return err
			}
			c, err := a.build(cmd.Context(), root, cfg, langFilter, !noGit)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.stdout, "indexed %d files, %d symbols (%.2f%% annotated) -> %s\n",
				c.Stats.Files, c.Stats.Symbols, c.Stats.AnnotationCoverage, a.cacheFile(root))
			return nil
		},
	}
	cmd.Flags().StringVarP(&langs, "langs", "l", "", "comma-separated languages to include")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "skip git blame and history")
	return cmd
}

func (a *app) mapCmd() *cobra.Command {
	var (
		maxFiles int
		symbol   string
		file     string
		refresh  bool
	)
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Print a ranked TOON map of the cache",
		Long: `Print files, symbols, calls, hotpaths and constraints in TOON format.

The cache is rebuilt first when it is missing or older than any source file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := a.root()
			if err != nil {
				return err
			}
			cfg, err := a.config(root)
			if err != nil {
				return err
			}

			var c *cache.Cache
			if !refresh {
				c, err = a.freshCache(cmd.Context(), root, cfg)
				if err != nil {
					return err
				}
			}
			if c == nil {
				if c, err = a.build(cmd.Context(), root, cfg, nil, true); err != nil {
					return err
				}
			}

			m := ranking.Build(c)
			if symbol != "" {
				m = ranking.FilterBySymbol(m, symbol)
			}
			if file != "" {
				m = ranking.FilterByFile(m, file)
			}
			m = ranking.SelectFiles(m, maxFiles)

			_, _ = fmt.Fprintln(a.stdout, toon.Encode(m))
			return nil
		},
	}
	cmd.Flags().IntVarP(&maxFiles, "max-files", "n", 0, "maximum number of files to include")
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "only symbols matching this substring, with callers and callees")
	cmd.Flags().StringVarP(&file, "file", "f", "", "only files whose path contains this substring")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "rebuild the cache even when it is fresh")
	return cmd
}

// freshCache returns the on-disk cache when it is newer than every source
// file, or nil when it must be rebuilt.
func (a *app) freshCache(ctx context.Context, root string, cfg *config.Config) (*cache.Cache, error) {
	files, err := discover.Files(ctx, root, discover.Options{Include: cfg.Include, Exclude: cfg.Exclude, IncludeUnknown: true})
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	path := a.cacheFile(root)
	if !cacheIsFresh(path, root, files) {
		return nil, nil
	}
	c, err := cache.Load(path)
	if err != nil {
		a.log.Debug("rebuilding unreadable cache", "path", path, "error", err)
		return nil, nil
	}
	return c, nil
}

func cacheIsFresh(cachePath, root string, files []discover.FileEntry) bool {
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	cacheMtime := cacheInfo.ModTime()

	for _, f := range files {
		if index.IsGenerated(f.Path) {
			continue
		}
		fi, err := os.Stat(filepath.Join(root, filepath.FromSlash(f.Path)))
		if err != nil {
			return false
		}
		if !fi.ModTime().Before(cacheMtime) {
			return false
		}
	}
	return true
}
