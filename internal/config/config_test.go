package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/acp/internal/constraints"
	"github.com/phobologic/acp/internal/vocab"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	c := DefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, vocab.Standard, c.Level())
	assert.True(t, c.GitEnabled())
	assert.Equal(t, int64(DefaultMaxFileSize), c.Limits.MaxFileSize)
	assert.Equal(t, constraints.Normal, c.ConstraintDefaults().Level())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"full level", func(c *Config) { c.Annotate.Level = "full" }, false},
		{"bad level", func(c *Config) { c.Annotate.Level = "verbose" }, true},
		{"review lock alias", func(c *Config) { c.Constraints.Defaults.Lock = "review-required" }, false},
		{"bad lock", func(c *Config) { c.Constraints.Defaults.Lock = "sealed" }, true},
		{"negative size", func(c *Config) { c.Limits.MaxFileSize = -1 }, true},
		{"negative depth", func(c *Config) { c.Vars.ExpandDepth = -2 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			if tt.wantErr {
				assert.Error(t, c.Validate())
			} else {
				assert.NoError(t, c.Validate())
			}
		})
	}
}

func TestLoaderLayers(t *testing.T) {
	t.Parallel()

	userDir := t.TempDir()
	userPath := filepath.Join(userDir, "config.yaml")
	require.NoError(t, os.WriteFile(userPath, []byte(`
annotate:
  level: full
domains:
  ledger: billing
git:
  history_limit: 3
`), 0o644))

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".acp.config.yaml"), []byte(`
project:
  name: shop
exclude: ["vendor/**"]
domains:
  cart: checkout
git:
  enabled: false
constraints:
  defaults:
    lock: approval-required
    directive: ask first
`), 0o644))

	l := NewLoader(nil)
	l.UserPath = userPath
	c, err := l.Load(root)
	require.NoError(t, err)

	assert.Equal(t, "shop", c.Project.Name)
	assert.Equal(t, vocab.Full, c.Level(), "user layer applies")
	assert.Equal(t, map[string]string{"ledger": "billing", "cart": "checkout"}, c.Domains)
	assert.Equal(t, []string{"vendor/**"}, c.Exclude)
	assert.False(t, c.GitEnabled(), "project layer can disable git")
	assert.Equal(t, 3, c.Git.HistoryLimit)
	assert.Equal(t, 3, c.Vars.ExpandDepth, "defaults survive")

	d := c.ConstraintDefaults()
	assert.Equal(t, constraints.ApprovalRequired, d.Level())
	assert.Equal(t, "ask first", d.Directive)
}

func TestLoaderJSONAndFallbackName(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".acp.config.json"), []byte(`{"annotate": {"level": "minimal"}}`), 0o644))

	l := NewLoader(nil)
	l.UserPath = "-"
	c, err := l.Load(root)
	require.NoError(t, err)
	assert.Equal(t, vocab.Minimal, c.Level())
	assert.Equal(t, filepath.Base(root), c.Project.Name)
}

func TestLoaderRejectsInvalidProjectConfig(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "acp.config.yaml"), []byte("annotate:\n  level: loud\n"), 0o644))
	l := NewLoader(nil)
	l.UserPath = "-"
	_, err := l.Load(root)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "acp.config.yaml"), []byte("annotate: [\n"), 0o644))
	_, err = l.Load(root)
	assert.Error(t, err)
}

func TestSaveToFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", ".acp.config.yaml")
	c := DefaultConfig()
	c.Project.Name = "demo"
	c.Include = []string{"src/**"}
	require.NoError(t, c.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}
