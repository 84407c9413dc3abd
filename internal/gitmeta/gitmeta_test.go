package gitmeta

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commitFile writes content to rel inside dir and commits it.
func commitFile(t *testing.T, w *gogit.Worktree, dir, rel, content, msg, author string, when time.Time) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	_, err := w.Add(rel)
	require.NoError(t, err)
	_, err = w.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{Name: author, Email: author + "@example.com", When: when},
	})
	require.NoError(t, err)
}

func testRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	w, err := repo.Worktree()
	require.NoError(t, err)

	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	commitFile(t, w, dir, "svc/main.go", "package main\n\nfunc main() {}\n", "Add main\n\nbody", "alice", t0)
	commitFile(t, w, dir, "svc/main.go", "package main\n\nfunc main() {}\n\nfunc helper() {}\n", "Add helper", "bob", t0.Add(time.Hour))
	return dir
}

func TestOpenNotRepo(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, ErrNotGitRepo)
}

func TestFileHistory(t *testing.T) {
	t.Parallel()

	dir := testRepo(t)
	r, err := Open(dir)
	require.NoError(t, err)

	hist, err := r.FileHistory("svc/main.go", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "bob", hist[0].Author)
	assert.Equal(t, "Add helper", hist[0].Summary)
	assert.Equal(t, 2, hist[0].LinesAdded)
	assert.Equal(t, 0, hist[0].LinesRemoved)
	assert.Equal(t, "alice", hist[1].Author)
	assert.Equal(t, "Add main", hist[1].Summary)
	assert.Equal(t, 3, hist[1].LinesAdded)

	limited, err := r.FileHistory("svc/main.go", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestBlame(t *testing.T) {
	t.Parallel()

	dir := testRepo(t)
	r, err := Open(dir)
	require.NoError(t, err)

	blame, err := r.Blame("svc/main.go")
	require.NoError(t, err)
	require.Len(t, blame, 5)
	assert.Equal(t, "alice", blame[1].Author)
	assert.Equal(t, "alice@example.com", blame[1].Email)
	assert.Equal(t, "Add main", blame[1].Summary)
	assert.Equal(t, "bob", blame[5].Author)

	latest, ok := Latest(blame, 1, 5)
	require.True(t, ok)
	assert.Equal(t, "bob", latest.Author)
	_, ok = Latest(blame, 10, 12)
	assert.False(t, ok)
}

func TestOpenFromSubdirectory(t *testing.T) {
	t.Parallel()

	dir := testRepo(t)
	r, err := Open(filepath.Join(dir, "svc"))
	require.NoError(t, err)

	hist, err := r.FileHistory("main.go", 0)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}
