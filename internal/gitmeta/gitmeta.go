// Package gitmeta reads blame and history information for indexed files
// from the enclosing git repository.
package gitmeta

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	// ErrNotGitRepo is returned when the root is not inside a repository.
	ErrNotGitRepo = errors.New("not a git repository")
	// ErrNoHead is returned for repositories without commits.
	ErrNoHead = errors.New("repository has no HEAD")
)

// BlameLine is the last commit that touched one line.
type BlameLine struct {
	Commit    string    `json:"commit"`
	Author    string    `json:"author"`
	Email     string    `json:"email,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Summary   string    `json:"summary,omitempty"`
}

// HistoryEntry is one commit in a file's history.
type HistoryEntry struct {
	Commit       string    `json:"commit"`
	Author       string    `json:"author"`
	Email        string    `json:"email,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Summary      string    `json:"summary,omitempty"`
	LinesAdded   int       `json:"lines_added"`
	LinesRemoved int       `json:"lines_removed"`
}

// Repo is a read-only view of the repository containing a project root.
// A Repo is not safe for concurrent use.
type Repo struct {
	repo *gogit.Repository
	// prefix is the project root relative to the worktree root, slash-separated.
	prefix   string
	subjects map[plumbing.Hash]string
}

// Open finds the repository enclosing root.
func Open(root string) (*Repo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	repo, err := gogit.PlainOpenWithOptions(abs, &gogit.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, ErrNotGitRepo
	}
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", root, err)
	}
	r := &Repo{repo: repo, subjects: make(map[plumbing.Hash]string)}
	if wt, err := repo.Worktree(); err == nil {
		top := wt.Filesystem.Root()
		if resolved, err := filepath.EvalSymlinks(top); err == nil {
			top = resolved
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		if rel, err := filepath.Rel(top, abs); err == nil && rel != "." {
			r.prefix = filepath.ToSlash(rel)
		}
	}
	return r, nil
}

func (r *Repo) repoPath(path string) string {
	p := filepath.ToSlash(path)
	if r.prefix == "" {
		return p
	}
	return r.prefix + "/" + p
}

func (r *Repo) head() (*object.Commit, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return nil, ErrNoHead
	}
	return r.repo.CommitObject(ref.Hash())
}

func (r *Repo) subject(h plumbing.Hash) string {
	if s, ok := r.subjects[h]; ok {
		return s
	}
	s := ""
	if c, err := r.repo.CommitObject(h); err == nil {
		s = subjectOf(c.Message)
	}
	r.subjects[h] = s
	return s
}

func subjectOf(message string) string {
	first, _, _ := strings.Cut(message, "\n")
	return strings.TrimSpace(first)
}

// Blame returns the last commit per 1-indexed line of path at HEAD.
func (r *Repo) Blame(path string) (map[int]BlameLine, error) {
	head, err := r.head()
	if err != nil {
		return nil, err
	}
	res, err := gogit.Blame(head, r.repoPath(path))
	if err != nil {
		return nil, fmt.Errorf("blaming %s: %w", path, err)
	}
	out := make(map[int]BlameLine, len(res.Lines))
	for i, l := range res.Lines {
		out[i+1] = BlameLine{
			Commit:    l.Hash.String(),
			Author:    l.AuthorName,
			Email:     l.Author,
			Timestamp: l.Date.UTC(),
			Summary:   r.subject(l.Hash),
		}
	}
	return out, nil
}

// FileHistory returns up to limit commits touching path, newest first.
// A limit of 0 means no limit.
func (r *Repo) FileHistory(path string, limit int) ([]HistoryEntry, error) {
	head, err := r.head()
	if err != nil {
		return nil, err
	}
	name := r.repoPath(path)
	iter, err := r.repo.Log(&gogit.LogOptions{From: head.Hash, FileName: &name})
	if err != nil {
		return nil, fmt.Errorf("reading history of %s: %w", path, err)
	}
	defer iter.Close()

	var out []HistoryEntry
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(out) >= limit {
			return io.EOF
		}
		e := HistoryEntry{
			Commit:    c.Hash.String(),
			Author:    c.Author.Name,
			Email:     c.Author.Email,
			Timestamp: c.Author.When.UTC(),
			Summary:   subjectOf(c.Message),
		}
		if stats, err := c.Stats(); err == nil {
			for _, s := range stats {
				if s.Name == name {
					e.LinesAdded += s.Addition
					e.LinesRemoved += s.Deletion
				}
			}
		}
		out = append(out, e)
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading history of %s: %w", path, err)
	}
	return out, nil
}

// Latest returns the most recent commit among lines start..end of a blame.
func Latest(blame map[int]BlameLine, start, end int) (BlameLine, bool) {
	var best BlameLine
	found := false
	for l := start; l <= end; l++ {
		b, ok := blame[l]
		if !ok {
			continue
		}
		if !found || b.Timestamp.After(best.Timestamp) {
			best = b
			found = true
		}
	}
	return best, found
}
