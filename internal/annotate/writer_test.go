package annotate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/acp/internal/discover"
	"github.com/phobologic/acp/internal/parse"
	"github.com/phobologic/acp/internal/vocab"
)

// annotateOnce runs one analyze/suggest/plan/render pass over src.
func annotateOnce(t *testing.T, level vocab.Level, path, src string) (string, []FileChange) {
	t.Helper()
	res := analyze(t, level, path, src)
	changes := NewWriter().Plan(res, NewSuggester(level, nil).Suggest(res))
	out, _ := NewWriter().Render(res, changes)
	return out, changes
}

// requireStable checks that annotating already-annotated output is a no-op.
func requireStable(t *testing.T, level vocab.Level, path, src string) {
	t.Helper()
	out, changes := annotateOnce(t, level, path, src)
	assert.Empty(t, changes, "second pass planned changes:\n%s", src)
	assert.Equal(t, src, out)
}

func TestWriterGo(t *testing.T) {
	t.Parallel()

	src := `package billing

// Charge bills a customer.
func Charge(amount int) error { return nil }

type Invoice struct{}
`
	out, changes := annotateOnce(t, vocab.Standard, "billing/charge.go", src)
	require.NotEmpty(t, changes)
	for i := 1; i < len(changes); i++ {
		assert.GreaterOrEqual(t, changes[i-1].Line, changes[i].Line, "changes apply bottom-up")
	}

	assert.Contains(t, out, "// Charge bills a customer.\n// @acp:summary \"Charge bills a customer.\"\n// @acp:lock normal\nfunc Charge")
	assert.Contains(t, out, "// @acp:summary \"Invoice\"\n// @acp:lock normal\ntype Invoice struct{}")
	assert.True(t, strings.HasPrefix(out, "// @acp:domain billing\n\npackage billing\n"), out)

	requireStable(t, vocab.Standard, "billing/charge.go", out)
}

func TestWriterPython(t *testing.T) {
	t.Parallel()

	src := `#!/usr/bin/env python
import os


class Account:
    """Holds a balance."""

    def fetch_user(self, user_id):
        return user_id
`
	out, _ := annotateOnce(t, vocab.Minimal, "app/accounts.py", src)

	assert.Contains(t, out, "class Account:\n    \"\"\"Holds a balance.\n    @acp:summary \"Holds a balance.\"\n    \"\"\"\n")
	assert.Contains(t, out, "    def fetch_user(self, user_id):\n        \"\"\"\n        @acp:summary \"Fetches user\"\n        \"\"\"\n        return user_id")
	assert.True(t, strings.HasPrefix(out, "#!/usr/bin/env python\nimport os"), "no module doc means no module suggestion")

	requireStable(t, vocab.Minimal, "app/accounts.py", out)
}

func TestWriterTypeScriptExpandsOneLineBlock(t *testing.T) {
	t.Parallel()

	src := `/** Adds numbers. */
export function add(a: number, b: number): number { return a + b; }
`
	out, _ := annotateOnce(t, vocab.Minimal, "math/add.ts", src)
	assert.Equal(t, `/**
 * @acp:summary "Adds numbers."
 * Adds numbers.
 */
export function add(a: number, b: number): number { return a + b; }
`, out)

	requireStable(t, vocab.Minimal, "math/add.ts", out)
}

func TestWriterRust(t *testing.T) {
	t.Parallel()

	src := `//! Config loading.

#[derive(Debug)]
pub struct Config;

pub fn parse_config() {}
`
	out, _ := annotateOnce(t, vocab.Minimal, "src/config.rs", src)
	assert.True(t, strings.HasPrefix(out, "//! @acp:module \"Config loading\"\n//! Config loading.\n"), out)
	assert.Contains(t, out, "#[derive(Debug)]\n/// @acp:summary \"Config\"\npub struct Config;")
	assert.Contains(t, out, "/// @acp:summary \"Parses config\"\npub fn parse_config() {}")

	requireStable(t, vocab.Minimal, "src/config.rs", out)
}

func TestWriterJava(t *testing.T) {
	t.Parallel()

	src := `package com.acme;

public class Ledger {
    /**
     * Posts an entry.
     */
    public void post(int amount) {}
}
`
	out, _ := annotateOnce(t, vocab.Minimal, "Ledger.java", src)
	assert.Contains(t, out, "    /**\n     * @acp:summary \"Posts an entry.\"\n     * Posts an entry.\n     */")
	assert.Contains(t, out, "/**\n * @acp:summary \"Ledger\"\n */\npublic class Ledger {")

	requireStable(t, vocab.Minimal, "Ledger.java", out)
}

func TestWriterKeepsSyntaxValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		path  string
		src   string
		level vocab.Level
		want  string // pattern for the declaration and the comment above it
	}{
		{
			name:  "line comment above ts function",
			path:  "ui/button.ts",
			src:   "// helper for buttons\nexport function foo() {}\n",
			level: vocab.Minimal,
			want:  `// helper for buttons\n// @acp:summary "[^"]+"\nexport function foo\(\) \{\}`,
		},
		{
			name:  "line comment above js function",
			path:  "jobs/run.js",
			src:   "// note\nexport function run() {}\n",
			level: vocab.Minimal,
			want:  `// note\n// @acp:summary "[^"]+"\nexport function run\(\) \{\}`,
		},
		{
			name:  "line comment above java class",
			path:  "Ledger.java",
			src:   "// plain comment\npublic class Ledger {}\n",
			level: vocab.Minimal,
			want:  `// plain comment\n// @acp:summary "[^"]+"\npublic class Ledger \{\}`,
		},
		{
			name:  "trailing block comment on previous code line",
			path:  "ui/flags.ts",
			src:   "const x = 1; /* t */\nexport function foo() {}\n",
			level: vocab.Minimal,
			want:  `const x = 1; /\* t \*/\n/\*\*\n \* @acp:summary "[^"]+"\n \*/\nexport function foo\(\) \{\}`,
		},
		{
			name:  "one-line ts class with method",
			path:  "ui/bar.ts",
			src:   "export class Bar { baz() {} }\n",
			level: vocab.Minimal,
			want:  `/\*\*\n \* @acp:summary "[^"]+"\n \*/\nexport class Bar \{ baz\(\) \{\} \}`,
		},
		{
			name:  "one-line go interface",
			path:  "store/store.go",
			src:   "package store\n\ntype Store interface{ Get() }\n",
			level: vocab.Full,
			want:  `// @acp:summary "[^"]+"\n(// @acp:[^\n]*\n)*type Store interface\{ Get\(\) \}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, changes := annotateOnce(t, tt.level, tt.path, tt.src)
			require.NotEmpty(t, changes)
			assert.Equal(t, 1, strings.Count(out, "@acp:summary"), out)
			assert.Regexp(t, tt.want, out)

			fr, err := parse.File(context.Background(), nil, tt.path, []byte(out))
			require.NoError(t, err)
			assert.False(t, fr.HasErrors, "output no longer parses:\n%s", out)

			if tt.level != vocab.Full {
				requireStable(t, tt.level, tt.path, out)
			}
		})
	}
}

func TestWriterPreservesCRLF(t *testing.T) {
	t.Parallel()

	src := "package p\r\n\r\nfunc Run() {}\r\n"
	out, _ := annotateOnce(t, vocab.Minimal, "p.go", src)
	assert.Contains(t, out, "// @acp:summary \"Run function\"\r\nfunc Run() {}\r\n")
	assert.NotContains(t, strings.ReplaceAll(out, "\r\n", ""), "\n")
}

func TestPreview(t *testing.T) {
	t.Parallel()

	res := analyze(t, vocab.Minimal, "svc/p.go", "package p\n\nfunc Run() {}\n")
	w := NewWriter()
	changes := w.Plan(res, NewSuggester(vocab.Minimal, nil).Suggest(res))
	require.Len(t, changes, 1)

	diff, err := w.Preview(res, changes)
	require.NoError(t, err)
	assert.Contains(t, diff, "--- a/svc/p.go\n+++ b/svc/p.go\n")
	assert.Contains(t, diff, "+// @acp:summary \"Run function\"\n")

	none, err := w.Preview(res, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestApplyWritesOnce(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "p.go")
	require.NoError(t, os.WriteFile(path, []byte("package p\n\nfunc Run() {}\n"), 0o600))

	files := []discover.FileEntry{{Path: "p.go", Language: "go"}}
	outcomes, err := Run(context.Background(), root, files, Options{Level: vocab.Minimal, Apply: true})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.True(t, outcomes[0].Written)

	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(first), "// @acp:summary \"Run function\"")
	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	outcomes, err = Run(context.Background(), root, files, Options{Level: vocab.Minimal, Apply: true})
	require.NoError(t, err)
	assert.False(t, outcomes[0].Written)
	assert.Empty(t, outcomes[0].Changes)

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunPreviewDoesNotWrite(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := []byte("package p\n\nfunc Run() {}\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "p.go"), src, 0o644))

	outcomes, err := Run(context.Background(), root, []discover.FileEntry{{Path: "p.go"}, {Path: "missing.go"}}, Options{Level: vocab.Minimal})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.NotEmpty(t, outcomes[0].Diff)
	assert.Error(t, outcomes[1].Err)

	got, err := os.ReadFile(filepath.Join(root, "p.go"))
	require.NoError(t, err)
	assert.Equal(t, src, got)
}
