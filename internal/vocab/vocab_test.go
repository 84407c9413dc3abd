package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnnotationType(t *testing.T) {
	t.Parallel()

	for _, typ := range AllTypes {
		got, ok := ParseAnnotationType(typ.Namespace())
		require.True(t, ok, typ)
		assert.Equal(t, typ, got)
	}
	_, ok := ParseAnnotationType("owner")
	assert.False(t, ok)
}

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ   AnnotationType
		value string
		want  string
	}{
		{Summary, "Loads config", `@acp:summary "Loads config"`},
		{Summary, `Says "hi"`, `@acp:summary "Says \"hi\""`},
		{Domain, "billing", "@acp:domain billing"},
		{Lock, "restricted", "@acp:lock restricted"},
		{Stability, "stable", "@acp:stability stable"},
		{AiHint, "readonly", `@acp:ai-hint "readonly"`},
		{Hack, `reason="x" ticket="T-1"`, `@acp:hack reason="x" ticket="T-1"`},
		{Deprecated, "", "@acp:deprecated"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.Format(tt.value))
	}
}

func TestSourcePrecedence(t *testing.T) {
	t.Parallel()

	assert.True(t, Explicit.Precedes(Converted))
	assert.True(t, Converted.Precedes(Heuristic))
	assert.False(t, Heuristic.Precedes(Explicit))
	assert.False(t, Converted.Precedes(Converted))
	assert.Equal(t, "converted", Converted.String())
}

func TestNewClampsConfidence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, New("f", 1, Summary, "x", Explicit, 1.7).Confidence)
	assert.Equal(t, 0.0, New("f", 1, Summary, "x", Explicit, -1).Confidence)
}

func TestLevels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []AnnotationType{Module, Summary}, Minimal.Types())
	assert.True(t, Standard.Includes(Lock))
	assert.False(t, Standard.Includes(AiHint))
	assert.True(t, Full.Includes(LockReason))
	assert.Len(t, Full.Types(), len(AllTypes))

	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, Standard, l)
	l, err = ParseLevel(" FULL ")
	require.NoError(t, err)
	assert.Equal(t, Full, l)
	_, err = ParseLevel("max")
	assert.Error(t, err)
}
