package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/acp/internal/symbols"
	"github.com/phobologic/acp/internal/vocab"
)

func TestScanAnnotations(t *testing.T) {
	t.Parallel()

	src := `// @acp:module "Billing core"
// @acp:bogus nothing
/** @acp:summary "Says \"hi\"" */
# @acp:lock restricted
""" @acp:deprecated """
<!-- @acp:domain billing -->
`
	anns := ScanAnnotations("a.ts", []byte(src))
	require.Len(t, anns, 5)

	assert.Equal(t, ExistingAnnotation{Target: "a.ts", Type: vocab.Module, Value: "Billing core", Line: 1}, anns[0])
	assert.Equal(t, vocab.Summary, anns[1].Type)
	assert.Equal(t, `Says "hi"`, anns[1].Value)
	assert.Equal(t, 3, anns[1].Line)
	assert.Equal(t, "restricted", anns[2].Value)
	assert.Equal(t, vocab.Deprecated, anns[3].Type)
	assert.Empty(t, anns[3].Value)
	assert.Equal(t, "billing", anns[4].Value)
}

func TestScanAnnotationsCRLF(t *testing.T) {
	t.Parallel()

	anns := ScanAnnotations("a.go", []byte("// @acp:layer service\r\npackage a\r\n"))
	require.Len(t, anns, 1)
	assert.Equal(t, "service", anns[0].Value)
}

func TestRebind(t *testing.T) {
	t.Parallel()

	syms := []symbols.Symbol{
		{Name: "Later", QualifiedName: "Later", Kind: symbols.Class, StartLine: 60},
		{Name: "Cart", QualifiedName: "Cart", Kind: symbols.Class, StartLine: 30},
	}
	anns := []ExistingAnnotation{
		{Target: "cart.ts", Type: vocab.Module, Value: "Cart", Line: 1},
		{Target: "cart.ts", Type: vocab.Summary, Value: "A cart", Line: 28},
		{Target: "cart.ts", Type: vocab.Lock, Value: "strict", Line: 30},
	}
	got := Rebind(anns, syms, DefaultBindingWindow)

	assert.Equal(t, "cart.ts", got[0].Target, "no symbol within the window")
	assert.Equal(t, "Cart", got[1].Target)
	assert.Equal(t, "cart.ts", got[2].Target, "a symbol on the same line does not own it")
	assert.Equal(t, "cart.ts", anns[1].Target, "input is not mutated")
}

func TestDocCommentRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		src   []string
		start int
		want  DocRange
		ok    bool
	}{
		{
			name:  "javadoc above annotation",
			src:   []string{"/**", " * Doc.", " */", "@Override", "public void x() {}"},
			start: 5,
			want:  DocRange{Start: 1, End: 3},
			ok:    true,
		},
		{
			name:  "line comments",
			src:   []string{"package p", "// A does.", "// More.", "func A() {}"},
			start: 4,
			want:  DocRange{Start: 2, End: 3},
			ok:    true,
		},
		{
			name:  "rust attribute",
			src:   []string{"/// Thing.", "#[derive(Debug)]", "pub struct Thing;"},
			start: 3,
			want:  DocRange{Start: 1, End: 1},
			ok:    true,
		},
		{
			name:  "blank line detaches",
			src:   []string{"// header", "", "func A() {}"},
			start: 3,
		},
		{
			name:  "first line",
			src:   []string{"func A() {}"},
			start: 1,
		},
		{
			name:  "block comment after code",
			src:   []string{"const x = 1; /* t */", "export function foo() {}"},
			start: 2,
		},
		{
			name:  "block opened after code",
			src:   []string{"let y = 2; /* starts", "   ends */", "export function foo() {}"},
			start: 3,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := DocCommentRange(tt.src, tt.start)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestPythonRanges(t *testing.T) {
	t.Parallel()

	lines := []string{
		"@decorator(\"a:b\")",
		"def f(",
		"    x,  # comment: here",
		") -> int:",
		`    """Doc.`,
		"",
		`    More."""`,
		"    return x",
		"def g(): return 1",
	}
	end, ok := PythonHeaderEnd(lines, 1)
	require.True(t, ok)
	assert.Equal(t, 4, end)

	r, ok := PythonDocstringRange(lines, 1)
	require.True(t, ok)
	assert.Equal(t, DocRange{Start: 5, End: 7}, r)

	_, ok = PythonHeaderEnd(lines, 9)
	assert.False(t, ok, "one-liner has no body block")
}

func TestHeaderEnd(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 4, headerEnd([]string{"#!/usr/bin/env python", "# @acp:module \"x\"", "", "# more", "import os"}, "python"))
	assert.Equal(t, 3, headerEnd([]string{"/*", " * License", " */", "package a"}, "go"))
	assert.Equal(t, 0, headerEnd([]string{"#[derive(Debug)]", "struct A;"}, "rust"))
	assert.Equal(t, 5, headerEnd([]string{`"""Invoices.`, "", "@acp:domain billing", `"""`, "", "def f(): pass"}, "python"))
	assert.Equal(t, 2, headerEnd([]string{"# c", `r"""One line."""`, `"""not a module doc"""`}, "python"))
	assert.Equal(t, 0, headerEnd([]string{`"""text"""`}, "go"))
}
