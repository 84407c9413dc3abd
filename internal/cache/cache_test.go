package cache

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/acp/internal/annotate"
	"github.com/phobologic/acp/internal/constraints"
	"github.com/phobologic/acp/internal/gitmeta"
	"github.com/phobologic/acp/internal/heuristics"
	"github.com/phobologic/acp/internal/symbols"
	"github.com/phobologic/acp/internal/vocab"
)

const sessionGo = `// @acp:module "Session handlers"
// @acp:domain authentication
// @acp:lock restricted
// @acp:lock-reason "security review"
package auth

// Login checks credentials.
// @acp:summary "Logs a user in"
// @acp:hack reason="skip mfa" expires=2024-01-01
func Login(user string) error {
	return verify(user)
}

func verify(user string) error {
	return check(user)
}

func check(user string) error { return nil }
`

const utilPy = `def check(x):
    return helper(x)

check(1)
`

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

func analyze(t *testing.T, path, src string) *annotate.AnalysisResult {
	t.Helper()
	a := annotate.NewAnalyzer(vocab.Full, nil)
	t.Cleanup(a.Close)
	res, err := a.AnalyzeSource(context.Background(), path, []byte(src))
	require.NoError(t, err)
	return res
}

func build(t *testing.T, opts Options, files map[string]string, order ...string) *Cache {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	b := NewBuilder(opts)
	for _, path := range order {
		b.AddFile(analyze(t, path, files[path]))
	}
	return b.Finish()
}

func sample(t *testing.T, opts Options) *Cache {
	files := map[string]string{
		"auth/session.go": sessionGo,
		"pkg/util.py":     utilPy,
		"README.md":       "# readme\n",
		"notes.txt":       "@acp:domain billing\n",
	}
	return build(t, opts, files, "auth/session.go", "pkg/util.py", "README.md", "notes.txt")
}

func TestBuilderFilesAndSymbols(t *testing.T) {
	t.Parallel()

	c := sample(t, Options{Project: Project{Name: "demo"}})

	assert.Equal(t, Version, c.Version)
	assert.Equal(t, fixedNow, c.GeneratedAt)
	assert.Equal(t, 3, c.Stats.Files, "unannotated unknown-language files are skipped")
	assert.Nil(t, c.File("README.md"))

	fe := c.File("auth/session.go")
	require.NotNil(t, fe)
	assert.Equal(t, "go", fe.Language)
	assert.Equal(t, 18, fe.Lines)
	assert.Equal(t, "Session handlers", fe.Module)
	assert.Equal(t, []string{"authentication"}, fe.Domains)
	assert.Equal(t, "restricted", fe.Lock)
	assert.Equal(t, "security review", fe.LockReason)
	assert.Equal(t, []string{"Login", "verify", "check"}, fe.Symbols)

	login := c.Symbols["Login"]
	require.NotNil(t, login)
	assert.Equal(t, "Logs a user in", login.Summary)
	assert.Empty(t, login.Domain, "header annotations stay with the file")

	_, dup := c.Symbols["pkg/util.py:check"]
	assert.True(t, dup, "colliding qualified names are keyed by path")
	assert.Equal(t, "auth/session.go", c.Symbols["check"].File)

	syms := c.SymbolsInFile("auth/session.go")
	require.Len(t, syms, 3)
	assert.Equal(t, "Login", syms[0].Name)

	assert.Equal(t, []string{"notes.txt"}, c.Domains["billing"].Files)
	assert.Equal(t, []string{"auth/session.go"}, c.Domains["authentication"].Files)
	require.NotNil(t, c.Security)
	assert.Equal(t, []string{"auth/session.go"}, c.Security.Files)
}

func TestBuilderStats(t *testing.T) {
	t.Parallel()

	c := sample(t, Options{})
	assert.Equal(t, 4, c.Stats.Symbols)
	assert.Equal(t, 18+4+1, c.Stats.Lines)
	assert.Equal(t, map[string]int{"go": 1, "python": 1, "unknown": 1}, c.Stats.Languages)
	assert.InDelta(t, 25.0, c.Stats.AnnotationCoverage, 0.001)
	assert.Equal(t, 0.0, coverage(0, 0))
	assert.Equal(t, 33.33, coverage(1, 3))
}

func TestBuilderInfersPathDomainAndLayer(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"auth/session.go":         sessionGo,
		"billing/handlers/pay.go": "package handlers\n\nfunc Pay() {}\n",
	}
	c := build(t, Options{Paths: heuristics.NewPathHeuristics(nil)}, files, "auth/session.go", "billing/handlers/pay.go")

	pay := c.File("billing/handlers/pay.go")
	require.NotNil(t, pay)
	assert.Equal(t, []string{"billing"}, pay.Domains)
	assert.Equal(t, "handler", pay.Layer)
	assert.Equal(t, []string{"billing/handlers/pay.go"}, c.Domains["billing"].Files)
	assert.Equal(t, []string{"billing/handlers/pay.go"}, c.Layers["handler"].Files)

	session := c.File("auth/session.go")
	require.NotNil(t, session)
	assert.Equal(t, []string{"authentication"}, session.Domains, "declared domains are kept")

	plain := sample(t, Options{})
	assert.Empty(t, plain.File("pkg/util.py").Domains)
	assert.Empty(t, plain.File("pkg/util.py").Layer)
}

func TestBuilderSignatureFallback(t *testing.T) {
	t.Parallel()

	b := NewBuilder(Options{Now: func() time.Time { return fixedNow }})
	b.AddFile(&annotate.AnalysisResult{
		Path:     "lib/math.go",
		Language: "go",
		Content:  []byte("x\n"),
		Symbols: []symbols.Symbol{
			{
				Name: "sum", QualifiedName: "sum", Kind: symbols.Function, StartLine: 1, EndLine: 1,
				Parameters: []symbols.Parameter{{Name: "a", Type: "int"}, {Name: "rest", IsRest: true}},
				ReturnType: "int",
			},
			{Name: "Point", QualifiedName: "Point", Kind: symbols.Struct, StartLine: 1, EndLine: 1},
			{Name: "run", QualifiedName: "run", Kind: symbols.Function, StartLine: 1, EndLine: 1, Signature: "run()"},
		},
	})
	c := b.Finish()

	assert.Equal(t, "sum(a: int, ...rest): int", c.Symbols["sum"].Signature)
	assert.Empty(t, c.Symbols["Point"].Signature)
	assert.Equal(t, "run()", c.Symbols["run"].Signature)
}

func TestBuilderCallGraph(t *testing.T) {
	t.Parallel()

	c := sample(t, Options{})
	require.NoError(t, c.Graph.Symmetric())
	assert.Equal(t, []string{"verify"}, c.Callees("Login"))
	assert.Equal(t, []string{"verify", "<module>"}, c.Callers("check"), "file order then source order")
	assert.Equal(t, []string{"check"}, c.Callers("helper"))

	require.NotEmpty(t, c.Hotpaths)
	assert.Equal(t, "check", c.Hotpaths[0])
	assert.NotContains(t, c.Hotpaths, "<module>")
	assert.NotContains(t, c.Hotpaths, "helper", "undefined callees are not hotpaths")
}

func TestBuilderConstraints(t *testing.T) {
	t.Parallel()

	prior := constraints.NewDebugSession("slow login", nil, fixedNow)
	c := sample(t, Options{DebugSessions: []constraints.DebugSession{prior}})

	require.NotNil(t, c.Constraints)
	eff := c.Effective("auth/session.go", constraints.Constraints{})
	assert.Equal(t, constraints.Restricted, eff.Level())
	assert.Equal(t, "security review", eff.Mutation.Reason)
	assert.Equal(t, constraints.Denied, eff.CanModify("delete").Decision)
	assert.Equal(t, map[string][]string{"restricted": {"auth/session.go"}}, c.Constraints.ByLockLevel)

	require.Len(t, c.Constraints.HackMarkers, 1)
	h := c.Constraints.HackMarkers[0]
	assert.Equal(t, "Login", h.Target)
	assert.Equal(t, "skip mfa", h.Reason)
	assert.Len(t, c.Constraints.ExpiredHacks(fixedNow), 1)

	require.Len(t, c.Constraints.DebugSessions, 1)
	assert.Equal(t, prior.ID, c.Constraints.DebugSessions[0].ID)
}

type fakeGit struct{}

func (fakeGit) Blame(path string) (map[int]gitmeta.BlameLine, error) {
	if path != "auth/session.go" {
		return nil, errors.New("untracked")
	}
	out := make(map[int]gitmeta.BlameLine)
	for l := 1; l <= 18; l++ {
		out[l] = gitmeta.BlameLine{Commit: "c1", Author: "alice", Timestamp: fixedNow.Add(-time.Hour)}
	}
	out[15] = gitmeta.BlameLine{Commit: "c2", Author: "bob", Timestamp: fixedNow}
	return out, nil
}

func (fakeGit) FileHistory(path string, limit int) ([]gitmeta.HistoryEntry, error) {
	if path != "auth/session.go" {
		return nil, errors.New("untracked")
	}
	return []gitmeta.HistoryEntry{
		{Commit: "c2", Author: "bob", Timestamp: fixedNow, LinesAdded: 1, LinesRemoved: 1},
		{Commit: "c1", Author: "alice", Timestamp: fixedNow.Add(-time.Hour), LinesAdded: 18},
	}, nil
}

func TestBuilderGit(t *testing.T) {
	t.Parallel()

	c := sample(t, Options{Git: fakeGit{}})

	fe := c.File("auth/session.go")
	require.NotNil(t, fe.Git)
	assert.Equal(t, "bob", fe.Git.LastAuthor)
	assert.Equal(t, 2, fe.Git.Commits)
	assert.Equal(t, 19, fe.Git.LinesAdded)

	assert.Equal(t, "alice", c.Symbols["Login"].Git.LastAuthor)
	assert.Equal(t, "bob", c.Symbols["verify"].Git.LastAuthor)
	assert.Nil(t, c.File("pkg/util.py").Git)
}

func TestRoundTripIsByteIdentical(t *testing.T) {
	t.Parallel()

	c := sample(t, Options{Project: Project{Name: "demo", Description: "fixture"}, Git: fakeGit{}})

	var first bytes.Buffer
	require.NoError(t, Encode(&first, c))
	decoded, err := Decode(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)
	var second bytes.Buffer
	require.NoError(t, Encode(&second, decoded))
	assert.Equal(t, first.String(), second.String())
	require.NoError(t, decoded.Graph.Symmetric())

	assert.NotContains(t, first.String(), `"is_test"`, "defaults are elided")
	for _, key := range []string{`"version"`, `"generated_at": "2025-03-04T05:06:07Z"`, `"forward"`, `"reverse"`, `"hotpaths"`, `"constraints"`} {
		assert.Contains(t, first.String(), key)
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultFileName)
	c := sample(t, Options{})
	require.NoError(t, Save(path, c))
	require.NoError(t, Save(path, c), "overwrite")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c.Stats, loaded.Stats)
	assert.Equal(t, c.Hotpaths, loaded.Hotpaths)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDecodeRejectsOtherMajorVersion(t *testing.T) {
	t.Parallel()

	_, err := Decode(strings.NewReader(`{"version":"2.0.0"}`))
	assert.ErrorIs(t, err, ErrCacheVersion)

	c, err := Decode(strings.NewReader(`{"version":"1.4.0","project":{"name":"x"}}`))
	require.NoError(t, err)
	assert.Nil(t, c.Callers("anything"), "absent graph reads as empty")
}

func TestLookup(t *testing.T) {
	t.Parallel()

	c := sample(t, Options{})
	key, s, ok := c.Lookup("Login")
	require.True(t, ok)
	assert.Equal(t, "Login", key)
	assert.Equal(t, "auth/session.go", s.File)

	key, _, ok = c.Lookup("pkg/util.py:check")
	assert.True(t, ok)
	assert.Equal(t, "pkg/util.py:check", key)

	_, _, ok = c.Lookup("nothing")
	assert.False(t, ok)
}
