package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phobologic/acp/internal/vars"
)

func (a *app) varsFile(root, override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(root, vars.DefaultFileName)
}

func (a *app) varsCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "vars",
		Short: "Generate " + vars.DefaultFileName + " from the cache",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			root, err := a.root()
			if err != nil {
				return err
			}
			c, err := a.loadCache(root)
			if err != nil {
				return err
			}
			f := vars.FromCache(c, time.Now())
			path := a.varsFile(root, out)
			if err := vars.Save(path, f); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.stdout, "wrote %d variables -> %s\n", f.Stats.Vars, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default <root>/"+vars.DefaultFileName+")")
	return cmd
}

func (a *app) expandCmd() *cobra.Command {
	var (
		mode     string
		depth    int
		varsPath string
		chain    string
	)
	cmd := &cobra.Command{
		Use:   "expand [text...]",
		Short: "Expand $VARIABLE references in text",
		Long: `Expand $NAME and $NAME.modifier references using the variables file.

Text is read from the arguments, or from stdin when none are given. Modes are
none, summary, inline, annotated, block and interactive. With --chain the
variables NAME refers to, directly or transitively, are listed instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.root()
			if err != nil {
				return err
			}
			cfg, err := a.config(root)
			if err != nil {
				return err
			}
			m, err := vars.ParseMode(mode)
			if err != nil {
				return err
			}
			f, err := a.loadVars(root, varsPath)
			if err != nil {
				return err
			}
			if depth <= 0 {
				depth = cfg.Vars.ExpandDepth
			}
			r := vars.NewResolver(f.Vars, depth)

			if chain != "" {
				names, err := r.InheritanceChain(strings.TrimPrefix(chain, "$"))
				if err != nil {
					return err
				}
				for _, n := range names {
					_, _ = fmt.Fprintln(a.stdout, n)
				}
				return nil
			}

			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = strings.TrimSuffix(string(data), "\n")
			}
			if unknown := r.Unknown(text); len(unknown) > 0 {
				a.log.Warn("unknown variables left unexpanded", "names", unknown)
			}
			_, _ = fmt.Fprintln(a.stdout, r.Expand(text, m))
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "inline", "expansion mode")
	cmd.Flags().IntVar(&depth, "depth", 0, "maximum inline nesting (default from config)")
	cmd.Flags().StringVar(&varsPath, "vars", "", "variables file (default <root>/"+vars.DefaultFileName+")")
	cmd.Flags().StringVar(&chain, "chain", "", "list the variables NAME refers to")
	return cmd
}

// loadVars reads the variables file, generating it in memory from the cache
// when it does not exist yet.
func (a *app) loadVars(root, override string) (*vars.File, error) {
	path := a.varsFile(root, override)
	f, err := vars.Load(path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	a.log.Debug("no variables file; generating from cache", "path", path)
	c, err := a.loadCache(root)
	if err != nil {
		return nil, err
	}
	return vars.FromCache(c, time.Now()), nil
}
