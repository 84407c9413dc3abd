package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/acp/internal/cache"
	"github.com/phobologic/acp/internal/discover"
	"github.com/phobologic/acp/internal/graph"
	"github.com/phobologic/acp/internal/vars"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const mainPy = `from models import User


def greet(user):
    """Greet a user.

    @acp:summary "Greets a user"
    """
    return describe(user)


def describe(user):
    return user.name
`

func createSampleRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "models.py", `"""User models.

@acp:module "Models"
@acp:domain identity
"""


class User:
    def __init__(self, name):
        self.name = name
`)
	writeTestFile(t, dir, "main.py", mainPy)
	writeTestFile(t, dir, "billing/locked.go", `// @acp:lock frozen
// @acp:lock-reason "Payment contract"
package billing

// @acp:hack reason="temp fix" expires=2020-01-01
func Charge() {}
`)
	return dir
}

// acp runs the CLI against dir with the user config layer disabled.
func acp(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"-C", dir, "--user-config", "-"}, args...)
	err := run(full, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func mustAcp(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, stderr, err := acp(t, dir, args...)
	if err != nil {
		t.Fatalf("acp %v: %v\nstderr: %s", args, err, stderr)
	}
	return out
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-V"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := stdout.String(); got != "acp dev\n" {
		t.Errorf("version output: %q", got)
	}
}

func TestRunIndex(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := mustAcp(t, dir, "index")
	if !strings.Contains(out, "indexed 3 files") {
		t.Errorf("unexpected output: %q", out)
	}

	c, err := cache.Load(filepath.Join(dir, cache.DefaultFileName))
	if err != nil {
		t.Fatalf("loading cache: %v", err)
	}
	if c.Project.Name != filepath.Base(dir) {
		t.Errorf("project name = %q", c.Project.Name)
	}
	if got := c.File("models.py"); got == nil || got.Module != "Models" {
		t.Errorf("models.py entry = %+v", got)
	}
	if got := c.Callers("describe"); len(got) != 1 || got[0] != "greet" {
		t.Errorf("callers of describe = %v", got)
	}

	// Re-indexing does not pick up the cache file itself.
	out = mustAcp(t, dir, "index")
	if !strings.Contains(out, "indexed 3 files") {
		t.Errorf("second index: %q", out)
	}
}

func TestRunIndexCustomCachePath(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	cachePath := filepath.Join(t.TempDir(), "out.json")

	mustAcp(t, dir, "--cache", cachePath, "index", "--no-git")
	if _, err := os.Stat(cachePath); err != nil {
		t.Fatalf("cache not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, cache.DefaultFileName)); err == nil {
		t.Error("default cache path should not be written")
	}
}

func TestRunNoFiles(t *testing.T) {
	t.Parallel()

	_, _, err := acp(t, t.TempDir(), "index")
	if err == nil {
		t.Fatal("expected error for an empty project")
	}
	if !strings.Contains(err.Error(), "no indexable files") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunNotADirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "file.py", "x = 1\n")

	_, _, err := acp(t, filepath.Join(dir, "file.py"), "index")
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("expected not a directory error, got %v", err)
	}
}

func TestRunUnsupportedLanguage(t *testing.T) {
	t.Parallel()

	_, _, err := acp(t, createSampleRepo(t), "index", "-l", "cobol")
	if err == nil || !strings.Contains(err.Error(), "unsupported language") {
		t.Errorf("expected unsupported language error, got %v", err)
	}
}

func TestRunMap(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := mustAcp(t, dir, "map")
	for _, want := range []string{
		"project: ",
		"files[3]{path,language,rank,domains,layer,summary}:",
		"main.py,python",
		"models.py,python",
		"greet,function",
		"calls[",
		"  greet,describe",
		"constraints[1]{file,lock,reason}:",
		"  billing/locked.go,frozen,Payment contract",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("map output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, cache.DefaultFileName)); err != nil {
		t.Errorf("map should write the cache: %v", err)
	}

	again := mustAcp(t, dir, "map")
	if again != out {
		t.Errorf("second map differs:\nfirst:\n%s\nsecond:\n%s", out, again)
	}
}

func TestRunMapMaxFiles(t *testing.T) {
	t.Parallel()

	out := mustAcp(t, createSampleRepo(t), "map", "-n", "1")
	if !strings.Contains(out, "files[1]") {
		t.Errorf("expected 1 file, got:\n%s", out)
	}
}

func TestRunMapSymbolFilter(t *testing.T) {
	t.Parallel()

	out := mustAcp(t, createSampleRepo(t), "map", "--symbol", "DESCRIBE")
	if !strings.Contains(out, "files[1]") || !strings.Contains(out, "main.py") {
		t.Errorf("expected only main.py, got:\n%s", out)
	}
	if !strings.Contains(out, "greet,function") {
		t.Errorf("caller greet should be included:\n%s", out)
	}
	if strings.Contains(out, "Charge") {
		t.Errorf("unrelated symbol leaked:\n%s", out)
	}
}

func TestRunMapFileFilter(t *testing.T) {
	t.Parallel()

	out := mustAcp(t, createSampleRepo(t), "map", "--file", "billing/")
	if !strings.Contains(out, "files[1]") || !strings.Contains(out, "billing/locked.go") {
		t.Errorf("expected only billing/locked.go, got:\n%s", out)
	}
}

func TestRunCheck(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	mustAcp(t, dir, "index")

	out := mustAcp(t, dir, "check", "billing/locked.go", "edit")
	if !strings.HasPrefix(out, "denied: Payment contract\n") {
		t.Errorf("locked file: %q", out)
	}
	if !strings.Contains(out, "expired hack: billing/locked.go:5 temp fix (expires 2020-01-01)") {
		t.Errorf("expired hack not reported: %q", out)
	}

	out = mustAcp(t, dir, "check", filepath.Join(dir, "main.py"), "edit")
	if out != "allowed\n" {
		t.Errorf("unlocked file: %q", out)
	}
}

func TestRunCheckJSON(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	mustAcp(t, dir, "index")

	out := mustAcp(t, dir, "check", "--json", "billing/locked.go", "delete")
	var got struct {
		File       string `json:"file"`
		Lock       string `json:"lock"`
		Permission struct {
			Decision string `json:"decision"`
		} `json:"permission"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if got.File != "billing/locked.go" || got.Lock != "frozen" || got.Permission.Decision != "denied" {
		t.Errorf("unexpected decision: %+v", got)
	}
}

func TestRunCheckWithoutCache(t *testing.T) {
	t.Parallel()

	_, _, err := acp(t, createSampleRepo(t), "check", "main.py", "edit")
	if err == nil || !strings.Contains(err.Error(), "acp index") {
		t.Errorf("expected a hint to run acp index, got %v", err)
	}
}

func TestRunHacks(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	mustAcp(t, dir, "index")

	out := mustAcp(t, dir, "hacks")
	if out != "billing/locked.go:5 temp fix (expires 2020-01-01)\n" {
		t.Errorf("hacks: %q", out)
	}
}

func TestRunVarsAndExpand(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	mustAcp(t, dir, "index")

	out := mustAcp(t, dir, "vars")
	if !strings.Contains(out, "wrote ") {
		t.Errorf("vars output: %q", out)
	}
	f, err := vars.Load(filepath.Join(dir, vars.DefaultFileName))
	if err != nil {
		t.Fatalf("loading vars: %v", err)
	}
	if _, ok := f.Vars["SYM_GREET"]; !ok {
		t.Fatalf("SYM_GREET missing from %v", f.Names())
	}

	out = mustAcp(t, dir, "expand", "--mode", "summary", "call $SYM_GREET and $NOPE")
	if out != "call Greets a user and $NOPE\n" {
		t.Errorf("expand: %q", out)
	}

	out = mustAcp(t, dir, "expand", "--chain", "SYM_GREET")
	if !strings.Contains(out, "SYM_DESCRIBE") {
		t.Errorf("chain should follow the call to describe: %q", out)
	}

	if _, _, err := acp(t, dir, "expand", "--mode", "loud", "$SYM_GREET"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestRunExpandWithoutVarsFile(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	mustAcp(t, dir, "index")

	out := mustAcp(t, dir, "expand", "--mode", "summary", "$SYM_GREET")
	if out != "Greets a user\n" {
		t.Errorf("expand: %q", out)
	}
}

func TestRunDebugSession(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	mustAcp(t, dir, "index")

	id := strings.TrimSpace(mustAcp(t, dir, "debug", "start", "--file", "main.py", "flaky", "greeting"))
	if id == "" {
		t.Fatal("no session id printed")
	}

	out := mustAcp(t, dir, "debug", "list")
	if !strings.Contains(out, id) || !strings.Contains(out, "flaky greeting") || !strings.Contains(out, "main.py") {
		t.Errorf("list: %q", out)
	}

	// Sessions survive re-indexing.
	mustAcp(t, dir, "index")
	if out := mustAcp(t, dir, "debug", "list"); !strings.Contains(out, id) {
		t.Errorf("session lost after index: %q", out)
	}

	mustAcp(t, dir, "debug", "resolve", id, "fixed", "it")
	if out := mustAcp(t, dir, "debug", "list"); out != "" {
		t.Errorf("resolved session still listed: %q", out)
	}

	if _, _, err := acp(t, dir, "debug", "resolve", "nope", "x"); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestRunCheckCache(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	mustAcp(t, dir, "index")

	out := mustAcp(t, dir, "check-cache")
	if !strings.HasPrefix(out, "ok: 3 files") {
		t.Errorf("check-cache: %q", out)
	}
}

func TestRunAnnotatePreview(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := mustAcp(t, dir, "annotate", "main.py")
	if !strings.Contains(out, "main.py") || !strings.Contains(out, "+") || !strings.Contains(out, "@acp:summary") {
		t.Errorf("expected a diff adding a summary, got:\n%s", out)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "main.py"))
	if string(data) != mainPy {
		t.Error("preview must not modify the file")
	}
}

func TestRunAnnotateApply(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := mustAcp(t, dir, "annotate", "--apply", "main.py")
	if !strings.Contains(out, "wrote main.py") {
		t.Errorf("apply output: %q", out)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "main.py"))
	if strings.Count(string(data), "@acp:") <= strings.Count(mainPy, "@acp:") {
		t.Errorf("no annotations written:\n%s", data)
	}

	if _, _, err := acp(t, dir, "annotate", "--level", "verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestUnderPaths(t *testing.T) {
	t.Parallel()

	files := []discover.FileEntry{{Path: "a.go"}, {Path: "pkg/b.go"}, {Path: "pkg2/c.go"}}
	tests := []struct {
		paths []string
		want  int
	}{
		{nil, 3},
		{[]string{"."}, 3},
		{[]string{"pkg"}, 1},
		{[]string{"./pkg/"}, 1},
		{[]string{"a.go", "pkg2"}, 2},
		{[]string{"missing"}, 0},
	}
	for _, tt := range tests {
		if got := underPaths(files, tt.paths); len(got) != tt.want {
			t.Errorf("underPaths(%v) = %v, want %d files", tt.paths, got, tt.want)
		}
	}
}

func TestRelPath(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"main.py", "main.py", false},
		{"./pkg/../main.py", "main.py", false},
		{filepath.Join(root, "pkg", "a.go"), "pkg/a.go", false},
		{"../outside.go", "", true},
	}
	for _, tt := range tests {
		got, err := relPath(root, tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("relPath(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("relPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVerifyCache(t *testing.T) {
	t.Parallel()

	c := &cache.Cache{
		Files:   map[string]*cache.FileEntry{"a.go": {Path: "a.go", Symbols: []string{"A"}}},
		Symbols: map[string]*cache.SymbolEntry{"A": {Name: "A", File: "a.go"}},
		Graph:   graph.New(),
	}
	c.Graph.Add("A", "B")
	if err := verifyCache(c); err != nil {
		t.Errorf("consistent cache rejected: %v", err)
	}

	c.Files["a.go"].Symbols = append(c.Files["a.go"].Symbols, "Ghost")
	if err := verifyCache(c); err == nil {
		t.Error("dangling symbol key not reported")
	}

	c.Files["a.go"].Symbols = []string{"A"}
	c.Graph.Reverse["B"] = nil
	if err := verifyCache(c); err == nil {
		t.Error("asymmetric graph not reported")
	}
}

func TestCacheIsFresh(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "a.py", "x = 1\n")
	files := []discover.FileEntry{{Path: "a.py"}, {Path: cache.DefaultFileName}}

	cachePath := filepath.Join(dir, cache.DefaultFileName)
	if cacheIsFresh(cachePath, dir, files) {
		t.Error("missing cache reported fresh")
	}

	writeTestFile(t, dir, cache.DefaultFileName, "{}")
	old := mustStat(t, cachePath).ModTime().Add(-1e9)
	if err := os.Chtimes(filepath.Join(dir, "a.py"), old, old); err != nil {
		t.Fatal(err)
	}
	if !cacheIsFresh(cachePath, dir, files) {
		t.Error("cache newer than sources should be fresh")
	}

	newer := mustStat(t, cachePath).ModTime().Add(1e9)
	if err := os.Chtimes(filepath.Join(dir, "a.py"), newer, newer); err != nil {
		t.Fatal(err)
	}
	if cacheIsFresh(cachePath, dir, files) {
		t.Error("modified source should make the cache stale")
	}
}

func mustStat(t *testing.T, path string) os.FileInfo {
	t.Helper()
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return fi
}
