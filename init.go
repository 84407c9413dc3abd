package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/acp/internal/config"
)

const (
	sentinelStart = "<!-- acp:start -->"
	sentinelEnd   = "<!-- acp:end -->"
)

// initCmd implements `acp init`, which writes (or updates) an acp usage
// section in a CLAUDE.md file and optionally a starter project config.
func (a *app) initCmd() *cobra.Command {
	var (
		dryRun      bool
		writeConfig bool
	)
	cmd := &cobra.Command{
		Use:   "init [path-to-CLAUDE.md]",
		Short: "Write an acp usage section to CLAUDE.md",
		Long: `Write an acp usage section to a CLAUDE.md file. The section is wrapped in
sentinel comments so it can be updated in place on subsequent runs without
touching surrounding content. Creates the file if it does not exist.

path-to-CLAUDE.md defaults to ./CLAUDE.md. With --config a default
.acp.config.yaml is also written to the project root unless one exists.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			section := generateSection()

			if writeConfig && !dryRun {
				if err := a.writeDefaultConfig(); err != nil {
					return err
				}
			}

			// --dry-run with no path: just print the section itself.
			if dryRun && len(args) == 0 {
				_, _ = fmt.Fprintln(a.stdout, section)
				return nil
			}

			path := "CLAUDE.md"
			if len(args) > 0 {
				path = args[0]
			}

			existing, _ := os.ReadFile(path)
			updated := applySection(string(existing), section)

			if dryRun {
				_, _ = fmt.Fprint(a.stdout, updated)
				return nil
			}

			if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			a.log.Info("wrote acp section", "path", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	cmd.Flags().BoolVar(&writeConfig, "config", false, "also write a default "+config.ProjectConfigFiles[0])
	return cmd
}

// writeDefaultConfig saves DefaultConfig to the project root unless a
// project config already exists.
func (a *app) writeDefaultConfig() error {
	root, err := a.root()
	if err != nil {
		return err
	}
	if existing := config.FindProjectConfig(root); existing != "" {
		a.log.Info("project config exists; leaving it", "path", existing)
		return nil
	}
	cfg := config.DefaultConfig()
	cfg.Project.Name = filepath.Base(root)
	path := filepath.Join(root, config.ProjectConfigFiles[0])
	if err := cfg.SaveToFile(path); err != nil {
		return err
	}
	a.log.Info("wrote project config", "path", path)
	return nil
}

// generateSection returns the full sentinel-wrapped acp documentation block.
func generateSection() string {
	body := `## acp: annotated codebase knowledge

This project is indexed by ` + "`acp`" + `. ` + "`acp.cache.json`" + ` holds every file and
symbol with its summary, domain, layer, lock level and call graph, built from
` + "`@acp:`" + ` annotations in the source.

**Availability:** Check with ` + "`acp --version`" + ` first; skip gracefully if
not found.

**Run it:**
` + "```" + `bash
acp index                          # rebuild acp.cache.json
acp map -n 20                      # ranked TOON map, top 20 files
acp map --symbol Login             # one symbol with its callers and callees
acp map --file billing/            # files under a path
acp check src/auth/session.go edit # may I modify this file?
acp vars && acp expand '$SYM_LOGIN' # generate and expand variables
acp annotate --level standard      # preview missing annotations as a diff
` + "```" + `

**All commands and flags:** ` + "`acp --help`" + `

**How to use the output, follow these rules:**

1. **Run ` + "`acp check FILE OPERATION`" + ` before editing a file.** A ` + "`denied`" + `
   decision means do not touch it; ` + "`requires_approval`" + ` means ask first.
   Follow any printed directive.

2. **Read files in ranked order.** The ` + "`files`" + ` table of ` + "`acp map`" + ` is
   sorted by call-graph rank. Read from the top down.

3. **Use ` + "`symbols`" + ` and ` + "`calls`" + ` instead of Grep to find definitions and
   trace call chains.** Summaries come from ` + "`@acp:summary`" + ` annotations.

4. **Keep annotations current.** When you add a public function or class,
   add ` + "`@acp:summary`" + ` (and ` + "`@acp:domain`" + ` or ` + "`@acp:lock`" + ` where they
   apply) in its doc comment, then re-run ` + "`acp index`" + `.`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
