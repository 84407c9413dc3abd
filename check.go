package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phobologic/acp/internal/cache"
	"github.com/phobologic/acp/internal/constraints"
)

// relPath turns a user-supplied path into the slash-separated key used by
// the cache.
func relPath(root, p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return "", fmt.Errorf("%s: %w", p, err)
		}
		p = rel
	}
	p = filepath.ToSlash(filepath.Clean(p))
	if strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%s is outside the project root", p)
	}
	return p, nil
}

func (a *app) checkCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check FILE OPERATION",
		Short: "Report whether an operation may modify a file",
		Long: `Merge the project constraint defaults with the file's own constraints and
decide whether OPERATION (for example edit, delete or refactor) is allowed,
requires approval or is denied. Expired hack markers in the file are listed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			root, err := a.root()
			if err != nil {
				return err
			}
			cfg, err := a.config(root)
			if err != nil {
				return err
			}
			c, err := a.loadCache(root)
			if err != nil {
				return err
			}
			path, err := relPath(root, args[0])
			if err != nil {
				return err
			}

			defaults := cfg.ConstraintDefaults()
			perm := c.Constraints.CanModify(path, args[1], defaults)
			effective := c.Effective(path, defaults)

			var expired []constraints.HackMarker
			if c.Constraints != nil {
				for _, h := range c.Constraints.ExpiredHacks(time.Now()) {
					if h.File == path {
						expired = append(expired, h)
					}
				}
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					File         string                   `json:"file"`
					Operation    string                   `json:"operation"`
					Permission   constraints.Permission   `json:"permission"`
					Lock         constraints.LockLevel    `json:"lock"`
					Directive    string                   `json:"directive,omitempty"`
					ExpiredHacks []constraints.HackMarker `json:"expired_hacks,omitempty"`
				}{path, args[1], perm, effective.Level(), effective.Directive, expired})
			}

			line := string(perm.Decision)
			if perm.Reason != "" {
				line += ": " + perm.Reason
			}
			_, _ = fmt.Fprintln(a.stdout, line)
			if effective.Directive != "" {
				_, _ = fmt.Fprintf(a.stdout, "directive: %s\n", effective.Directive)
			}
			for _, h := range expired {
				_, _ = fmt.Fprintf(a.stdout, "expired hack: %s\n", describeHack(h))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the decision as JSON")
	return cmd
}

func describeHack(h constraints.HackMarker) string {
	s := fmt.Sprintf("%s:%d", h.File, h.Line)
	if h.Reason != "" {
		s += " " + h.Reason
	}
	var extra []string
	if h.Ticket != "" {
		extra = append(extra, "ticket "+h.Ticket)
	}
	if h.Expires != nil {
		extra = append(extra, "expires "+h.Expires.Format("2006-01-02"))
	}
	if len(extra) > 0 {
		s += " (" + strings.Join(extra, ", ") + ")"
	}
	return s
}

func (a *app) hacksCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "hacks",
		Short: "List expired @acp:hack markers",
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
			if c.Constraints == nil {
				return nil
			}
			hacks := c.Constraints.HackMarkers
			if !all {
				hacks = c.Constraints.ExpiredHacks(time.Now())
			}
			for _, h := range hacks {
				_, _ = fmt.Fprintln(a.stdout, describeHack(h))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every marker, not only expired ones")
	return cmd
}

func (a *app) debugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Track debugging sessions in the cache",
	}

	var files []string
	start := &cobra.Command{
		Use:   "start PROBLEM...",
		Short: "Start a debug session and print its id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.updateCache(func(root string, c *cache.Cache) error {
				rels := make([]string, 0, len(files))
				for _, f := range files {
					rel, err := relPath(root, f)
					if err != nil {
						return err
					}
					rels = append(rels, rel)
				}
				s := c.Constraints.StartDebugSession(strings.Join(args, " "), rels, time.Now())
				_, _ = fmt.Fprintln(a.stdout, s.ID)
				return nil
			})
		},
	}
	start.Flags().StringSliceVarP(&files, "file", "f", nil, "file involved in the investigation (repeatable)")

	resolve := &cobra.Command{
		Use:   "resolve ID RESOLUTION...",
		Short: "Close a debug session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.updateCache(func(_ string, c *cache.Cache) error {
				if err := c.Constraints.ResolveDebugSession(args[0], strings.Join(args[1:], " "), time.Now()); err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				_, _ = fmt.Fprintf(a.stdout, "resolved %s\n", args[0])
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List open debug sessions",
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
			if c.Constraints == nil {
				return nil
			}
			for _, s := range c.Constraints.ActiveDebugSessions() {
				_, _ = fmt.Fprintf(a.stdout, "%s\t%s\t%s\t%s\n",
					s.ID, s.StartedAt.Format(time.RFC3339), s.Problem, strings.Join(s.Files, ","))
			}
			return nil
		},
	}

	cmd.AddCommand(start, resolve, list)
	return cmd
}

// updateCache loads the cache, applies fn and saves it back.
func (a *app) updateCache(fn func(root string, c *cache.Cache) error) error {
	root, err := a.root()
	if err != nil {
		return err
	}
	c, err := a.loadCache(root)
	if err != nil {
		return err
	}
	if c.Constraints == nil {
		c.Constraints = constraints.NewIndex()
	}
	if err := fn(root, c); err != nil {
		return err
	}
	return cache.Save(a.cacheFile(root), c)
}

func (a *app) checkCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-cache",
		Short: "Verify the internal consistency of the cache",
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
			if err := verifyCache(c); err != nil {
				return err
			}
			edges := 0
			if c.Graph != nil {
				edges = c.Graph.Edges()
			}
			_, _ = fmt.Fprintf(a.stdout, "ok: %d files, %d symbols, %d call edges\n", len(c.Files), len(c.Symbols), edges)
			return nil
		},
	}
}

// verifyCache checks that file and symbol entries point at each other and
// that the call graph's two directions agree.
func verifyCache(c *cache.Cache) error {
	for path, fe := range c.Files {
		for _, key := range fe.Symbols {
			s, ok := c.Symbols[key]
			if !ok {
				return fmt.Errorf("%s lists unknown symbol %q", path, key)
			}
			if s.File != path {
				return fmt.Errorf("symbol %q belongs to %s, listed under %s", key, s.File, path)
			}
		}
	}
	for key, s := range c.Symbols {
		if _, ok := c.Files[s.File]; !ok {
			return fmt.Errorf("symbol %q points at unknown file %s", key, s.File)
		}
	}
	if c.Graph != nil {
		if err := c.Graph.Symmetric(); err != nil {
			return fmt.Errorf("call graph: %w", err)
		}
	}
	return nil
}
