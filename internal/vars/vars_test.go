package vars

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/acp/internal/cache"
	"github.com/phobologic/acp/internal/graph"
	"github.com/phobologic/acp/internal/symbols"
)

var now = time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)

func sampleCache() *cache.Cache {
	g := graph.New()
	g.Add("<module>", "Login")
	g.Add("Login", "verify")
	g.Add("verify", "Login")
	return &cache.Cache{
		Project: cache.Project{Name: "demo"},
		Files: map[string]*cache.FileEntry{
			"auth/session.go": {
				Path:     "auth/session.go",
				Language: "go",
				Lines:    18,
				Module:   "Session handlers",
				Domains:  []string{"authentication"},
				Symbols:  []string{"Login", "verify", "MaxRetries"},
			},
		},
		Symbols: map[string]*cache.SymbolEntry{
			"Login": {
				Name: "Login", QualifiedName: "Login", Kind: symbols.Function, File: "auth/session.go",
				StartLine: 10, EndLine: 12, Summary: "Logs a user in", Domain: "authentication",
			},
			"verify": {
				Name: "verify", QualifiedName: "verify", Kind: symbols.Function, File: "auth/session.go",
				StartLine: 14, EndLine: 16,
			},
			"MaxRetries": {
				Name: "MaxRetries", QualifiedName: "MaxRetries", Kind: symbols.Constant, File: "auth/session.go",
				StartLine: 20, EndLine: 20,
			},
		},
		Graph: g,
		Domains: map[string]*cache.Group{
			"authentication": {Name: "authentication", Files: []string{"auth/session.go"}, Symbols: []string{"Login"}},
		},
	}
}

func TestVarName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SYM_REPO_GET", varName("SYM_", "Repo.Get"))
	assert.Equal(t, "FILE_AUTH_SESSION_GO", varName("FILE_", "auth/session.go"))
	assert.Equal(t, "SYM_CONFIG_LOAD", varName("SYM_", "config::load"))
	assert.Equal(t, "SYM_INIT_2", varName("SYM_", "__init__#2"))
}

func TestFromCache(t *testing.T) {
	t.Parallel()

	f := FromCache(sampleCache(), now)
	assert.Equal(t, []string{"DOM_AUTHENTICATION", "FILE_AUTH_SESSION_GO", "SYM_LOGIN", "SYM_VERIFY"}, f.Names())
	assert.Equal(t, now, f.GeneratedAt)

	login := f.Vars["SYM_LOGIN"]
	assert.Equal(t, Symbol, login.Category)
	assert.Equal(t, "Logs a user in", login.Summary)
	assert.Equal(t, "kind:function|file:auth/session.go|lines:10-12|domain:authentication", login.Value)
	assert.Equal(t, []string{"SYM_VERIFY"}, login.Refs)
	assert.Equal(t, "auth/session.go:10", login.Source)

	assert.Equal(t, "function verify", f.Vars["SYM_VERIFY"].Summary)
	assert.Equal(t, []string{"SYM_LOGIN"}, f.Vars["SYM_VERIFY"].Refs)

	file := f.Vars["FILE_AUTH_SESSION_GO"]
	assert.Equal(t, "Session handlers", file.Summary)
	assert.Equal(t, []string{"SYM_LOGIN", "SYM_VERIFY"}, file.Refs)

	dom := f.Vars["DOM_AUTHENTICATION"]
	assert.Equal(t, []string{"FILE_AUTH_SESSION_GO", "SYM_LOGIN"}, dom.Refs)

	assert.Equal(t, 4, f.Stats.Vars)
	assert.Equal(t, 2, f.Stats.ByCategory[Symbol])
	require.NotNil(t, f.Index)
	assert.Equal(t, []string{"SYM_LOGIN", "SYM_VERIFY"}, f.Index.ByCategory[Symbol])
	assert.Equal(t, []string{"DOM_AUTHENTICATION", "FILE_AUTH_SESSION_GO", "SYM_VERIFY"}, f.Index.Inheritance["SYM_LOGIN"])
	assert.Equal(t, []string{"FILE_AUTH_SESSION_GO", "SYM_LOGIN"}, f.Index.ByTag["authentication"])
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultFileName)
	f := FromCache(sampleCache(), now)
	require.NoError(t, Save(path, f))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f.Names(), loaded.Names())
	assert.Equal(t, f.Vars["SYM_LOGIN"], loaded.Vars["SYM_LOGIN"])
	assert.Equal(t, f.Index, loaded.Index)
}

func TestExpandCycle(t *testing.T) {
	t.Parallel()

	r := NewResolver(map[string]*Entry{
		"A": {Category: Custom, Value: "$B"},
		"B": {Category: Custom, Value: "$A"},
	}, 0)
	assert.Equal(t, "see [CYCLE:$A]", r.Expand("see $A", ModeInline))
	assert.Equal(t, "[CYCLE:$B] and [CYCLE:$A]", r.Expand("$B and $A", ModeInline))
}

func TestExpandInlineDepth(t *testing.T) {
	t.Parallel()

	vars := map[string]*Entry{
		"L1": {Value: "one $L2"},
		"L2": {Value: "two $L3"},
		"L3": {Value: "three $L4"},
		"L4": {Value: "four"},
	}
	assert.Equal(t, "one two three $L4", NewResolver(vars, 0).Expand("$L1", ModeInline))
	assert.Equal(t, "one two three four", NewResolver(vars, 4).Expand("$L1", ModeInline))
	assert.Equal(t, "one $L2", NewResolver(vars, 1).Expand("$L1", ModeInline))
}

func TestExpandModes(t *testing.T) {
	t.Parallel()

	r := NewResolver(FromCache(sampleCache(), now).Vars, 0)
	text := "Call $SYM_LOGIN first."

	tests := []struct {
		mode Mode
		want string
	}{
		{ModeNone, text},
		{ModeSummary, "Call Logs a user in first."},
		{ModeInline, "Call kind:function|file:auth/session.go|lines:10-12|domain:authentication first."},
		{ModeAnnotated, "Call **$SYM_LOGIN** → Kind: function | File: auth/session.go | Lines: 10-12 | Domain: authentication first."},
		{ModeBlock, "Call **$SYM_LOGIN**: Logs a user in\n- Kind: function\n- File: auth/session.go\n- Lines: 10-12\n- Domain: authentication\n_Source: auth/session.go:10_ first."},
		{ModeInteractive, `Call <acp-var name="SYM_LOGIN" summary="Logs a user in">$SYM_LOGIN</acp-var> first.`},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, r.Expand(text, tt.mode))
			assert.Equal(t, tt.want, r.Expand(text, tt.mode), "memoized result")
		})
	}
}

func TestExpandModifiersAndUnknown(t *testing.T) {
	t.Parallel()

	r := NewResolver(FromCache(sampleCache(), now).Vars, 0)
	assert.Equal(t, "Logs a user in", r.Expand("$SYM_LOGIN.summary", ModeInline))
	assert.Equal(t, "auth/session.go:10", r.Expand("$SYM_LOGIN.source", ModeSummary))
	assert.Equal(t, "SYM_VERIFY", r.Expand("$SYM_LOGIN.refs", ModeSummary))
	assert.Equal(t, "Logs a user in.Then", r.Expand("$SYM_LOGIN.Then", ModeSummary))
	assert.Equal(t, "$NOPE stays", r.Expand("$NOPE stays", ModeSummary))
	assert.Equal(t, "$lower stays", r.Expand("$lower stays", ModeSummary))
	assert.Equal(t, []string{"NOPE"}, r.Unknown("$NOPE and $NOPE and $SYM_LOGIN"))

	_, err := r.Resolve("$NOPE")
	assert.ErrorIs(t, err, ErrUnknownVariable)
}

func TestParse(t *testing.T) {
	t.Parallel()

	refs := Parse("use $A_1.summary with $B")
	require.Len(t, refs, 2)
	assert.Equal(t, Reference{Name: "A_1", Modifier: "summary", Start: 4, End: 16}, refs[0])
	assert.Equal(t, "B", refs[1].Name)
	assert.Empty(t, Parse("$a $1 $"))
}

func TestInheritanceChain(t *testing.T) {
	t.Parallel()

	r := NewResolver(FromCache(sampleCache(), now).Vars, 0)
	chain, err := r.InheritanceChain("DOM_AUTHENTICATION")
	require.NoError(t, err)
	assert.Equal(t, []string{"FILE_AUTH_SESSION_GO", "SYM_LOGIN", "SYM_VERIFY"}, chain)

	cyclic := NewResolver(map[string]*Entry{
		"A": {Refs: []string{"B"}},
		"B": {Refs: []string{"A", "C", "MISSING"}},
		"C": {Refs: []string{"B"}},
	}, 0)
	chain, err = cyclic.InheritanceChain("$A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, chain)

	_, err = cyclic.InheritanceChain("Z")
	assert.ErrorIs(t, err, ErrUnknownVariable)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := ParseMode("Block")
	require.NoError(t, err)
	assert.Equal(t, ModeBlock, m)
	_, err = ParseMode("loud")
	assert.Error(t, err)
}
