package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/acp/internal/vocab"
)

func TestAccumulatorPrecedence(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	get := func() vocab.Suggestion {
		s, ok := acc.Get("F", vocab.Summary)
		require.True(t, ok)
		return s
	}

	acc.Offer(vocab.New("F", 1, vocab.Summary, "heuristic", vocab.Heuristic, 0.9))
	acc.Offer(vocab.New("F", 1, vocab.Summary, "converted", vocab.Converted, 0.4))
	assert.Equal(t, "converted", get().Value, "higher-precedence source wins regardless of confidence")

	acc.Offer(vocab.New("F", 1, vocab.Summary, "louder heuristic", vocab.Heuristic, 0.99))
	assert.Equal(t, "converted", get().Value)

	acc.Offer(vocab.New("F", 1, vocab.Summary, "better converted", vocab.Converted, 0.8))
	assert.Equal(t, "better converted", get().Value, "same source, higher confidence")

	acc.Offer(vocab.New("F", 1, vocab.Summary, "tie", vocab.Converted, 0.8))
	assert.Equal(t, "better converted", get().Value, "ties keep the first")

	acc.Offer(vocab.New("F", 1, vocab.Summary, "explicit", vocab.Explicit, 0.1))
	assert.Equal(t, "explicit", get().Value)

	acc.Offer(vocab.New("F", 1, vocab.Domain, "  ", vocab.Explicit, 1))
	_, ok := acc.Get("F", vocab.Domain)
	assert.False(t, ok, "empty values are dropped")

	assert.Len(t, acc.Suggestions(), 1)
}

func TestSuggestMinimalOneSummaryPerSymbol(t *testing.T) {
	t.Parallel()

	res := analyze(t, vocab.Minimal, "store/repo.go", `package store

// Open opens the store.
func Open() error { return nil }

func CloseAll() {}

type Repo struct{}

func (r *Repo) Get(id string) string { return id }

func internal() {}
`)
	sugs := NewSuggester(vocab.Minimal, nil).Suggest(res)

	counts := make(map[string]int)
	for _, s := range sugs {
		assert.True(t, vocab.Minimal.Includes(s.Type), "%s not in minimal level", s.Type)
		assert.NotEqual(t, vocab.Explicit, s.Source)
		if s.Type == vocab.Summary {
			counts[s.Target]++
		}
	}
	assert.Equal(t, map[string]int{"Open": 1, "CloseAll": 1, "Repo": 1, "Repo.Get": 1}, counts)

	for _, s := range sugs {
		if s.Target == "Open" {
			assert.Equal(t, "Open opens the store.", s.Value)
			assert.Equal(t, vocab.Converted, s.Source)
		}
	}
}

func TestSuggestFileGapUsesPathAndModuleDoc(t *testing.T) {
	t.Parallel()

	res := analyze(t, vocab.Standard, "internal/auth/handlers/session.go", `// Package handlers serves session endpoints.
package handlers
`)
	sugs := NewSuggester(vocab.Standard, nil).Suggest(res)

	byType := make(map[vocab.AnnotationType]vocab.Suggestion)
	for _, s := range sugs {
		assert.Equal(t, "internal/auth/handlers/session.go", s.Target)
		byType[s.Type] = s
	}
	assert.Equal(t, "Package handlers serves session endpoints", byType[vocab.Module].Value)
	assert.Equal(t, vocab.Converted, byType[vocab.Module].Source)
	assert.Equal(t, "authentication", byType[vocab.Domain].Value)
	assert.Equal(t, vocab.Heuristic, byType[vocab.Domain].Source)
	assert.Equal(t, "handler", byType[vocab.Layer].Value)
	_, hasSummary := byType[vocab.Summary]
	assert.False(t, hasSummary, "file gaps take module, not summary")
}

func TestSuggestNamingAndVisibility(t *testing.T) {
	t.Parallel()

	res := analyze(t, vocab.Full, "core/tokens.ts", `export function validateToken(token: string): boolean { return true; }
`)
	sugs := NewSuggester(vocab.Full, nil).Suggest(res)

	byType := make(map[vocab.AnnotationType]vocab.Suggestion)
	for _, s := range sugs {
		if s.Target == "validateToken" {
			byType[s.Type] = s
		}
	}
	assert.Equal(t, "restricted", byType[vocab.Lock].Value, "security naming beats the visibility default")
	assert.Equal(t, "security", byType[vocab.Domain].Value)
	require.Contains(t, byType, vocab.Summary)
	assert.Equal(t, vocab.Heuristic, byType[vocab.Summary].Source)
}
