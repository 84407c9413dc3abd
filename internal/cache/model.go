// Package cache holds the persisted knowledge base built from a project:
// files, symbols, the call graph, domain and layer groupings and the
// constraint index.
package cache

import (
	"sort"
	"time"

	"github.com/phobologic/acp/internal/constraints"
	"github.com/phobologic/acp/internal/graph"
	"github.com/phobologic/acp/internal/symbols"
)

// Version is the cache format version written by this package.
const Version = "1.0.0"

// DefaultFileName is the canonical cache file name.
const DefaultFileName = "acp.cache.json"

// Cache is the top-level persisted record.
type Cache struct {
	Version     string                  `json:"version"`
	GeneratedAt time.Time               `json:"generated_at"`
	Project     Project                 `json:"project"`
	Stats       Stats                   `json:"stats"`
	Files       map[string]*FileEntry   `json:"files,omitempty"`
	Symbols     map[string]*SymbolEntry `json:"symbols,omitempty"`
	Graph       *graph.Graph            `json:"graph,omitempty"`
	Domains     map[string]*Group       `json:"domains,omitempty"`
	Layers      map[string]*Group       `json:"layers,omitempty"`
	Security    *Security               `json:"security,omitempty"`
	Hotpaths    []string                `json:"hotpaths,omitempty"`
	Stability   map[string][]string     `json:"stability,omitempty"`
	Constraints *constraints.Index      `json:"constraints,omitempty"`
}

// Project identifies the indexed project.
type Project struct {
	Name        string `json:"name"`
	Root        string `json:"root,omitempty"`
	Description string `json:"description,omitempty"`
}

// Stats are aggregate counts over the cache.
type Stats struct {
	Files              int            `json:"files"`
	Symbols            int            `json:"symbols"`
	Lines              int            `json:"lines"`
	AnnotationCoverage float64        `json:"annotation_coverage"`
	Annotations        int            `json:"annotations,omitempty"`
	Languages          map[string]int `json:"languages,omitempty"`
}

// GitInfo is the most recent change to a file or symbol.
type GitInfo struct {
	LastCommit   string     `json:"last_commit,omitempty"`
	LastAuthor   string     `json:"last_author,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	Commits      int        `json:"commits,omitempty"`
	LinesAdded   int        `json:"lines_added,omitempty"`
	LinesRemoved int        `json:"lines_removed,omitempty"`
}

// FileEntry describes one indexed file.
type FileEntry struct {
	Path       string   `json:"path"`
	Language   string   `json:"language"`
	Lines      int      `json:"lines"`
	Module     string   `json:"module,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Domains    []string `json:"domains,omitempty"`
	Layer      string   `json:"layer,omitempty"`
	Stability  string   `json:"stability,omitempty"`
	Lock       string   `json:"lock,omitempty"`
	LockReason string   `json:"lock_reason,omitempty"`
	Deprecated string   `json:"deprecated,omitempty"`
	Symbols    []string `json:"symbols,omitempty"`
	Imports    []string `json:"imports,omitempty"`
	AiHints    []string `json:"ai_hints,omitempty"`
	Refs       []string `json:"refs,omitempty"`
	IsTest     bool     `json:"is_test,omitempty"`
	HasErrors  bool     `json:"has_errors,omitempty"`
	Git        *GitInfo `json:"git,omitempty"`
}

// SymbolEntry describes one symbol. Its key in Cache.Symbols is the
// qualified name, or "path:qualified_name" when another file already
// claimed the qualified name.
type SymbolEntry struct {
	Name          string             `json:"name"`
	QualifiedName string             `json:"qualified_name"`
	Kind          symbols.Kind       `json:"kind"`
	File          string             `json:"file"`
	StartLine     int                `json:"start_line"`
	EndLine       int                `json:"end_line"`
	Signature     string             `json:"signature,omitempty"`
	Visibility    symbols.Visibility `json:"visibility,omitempty"`
	Exported      bool               `json:"exported,omitempty"`
	Parent        string             `json:"parent,omitempty"`
	Summary       string             `json:"summary,omitempty"`
	Domain        string             `json:"domain,omitempty"`
	Layer         string             `json:"layer,omitempty"`
	Lock          string             `json:"lock,omitempty"`
	LockReason    string             `json:"lock_reason,omitempty"`
	Stability     string             `json:"stability,omitempty"`
	Deprecated    string             `json:"deprecated,omitempty"`
	AiHints       []string           `json:"ai_hints,omitempty"`
	Refs          []string           `json:"refs,omitempty"`
	Git           *GitInfo           `json:"git,omitempty"`
}

// Group collects the files and symbols sharing a domain or layer.
type Group struct {
	Name    string   `json:"name"`
	Files   []string `json:"files,omitempty"`
	Symbols []string `json:"symbols,omitempty"`
}

// Security lists files and symbols locked restricted or stricter.
type Security struct {
	Files   []string `json:"files,omitempty"`
	Symbols []string `json:"symbols,omitempty"`
}

// File returns the entry for path, or nil.
func (c *Cache) File(path string) *FileEntry { return c.Files[path] }

// Lookup returns the symbol stored under key. Failing that, it returns the
// symbol whose qualified or short name is key when exactly one matches.
func (c *Cache) Lookup(key string) (string, *SymbolEntry, bool) {
	if s, ok := c.Symbols[key]; ok {
		return key, s, true
	}
	var (
		foundKey string
		found    *SymbolEntry
		n        int
	)
	for k, s := range c.Symbols {
		if s.QualifiedName == key || s.Name == key {
			foundKey, found = k, s
			n++
		}
	}
	return foundKey, found, n == 1
}

// Callers returns the callers of name in call order.
func (c *Cache) Callers(name string) []string {
	if c.Graph == nil {
		return nil
	}
	return c.Graph.Callers(name)
}

// Callees returns the callees of name in call order.
func (c *Cache) Callees(name string) []string {
	if c.Graph == nil {
		return nil
	}
	return c.Graph.Callees(name)
}

// SymbolsInFile returns the symbols of path ordered by start line.
func (c *Cache) SymbolsInFile(path string) []*SymbolEntry {
	fe := c.Files[path]
	if fe == nil {
		return nil
	}
	out := make([]*SymbolEntry, 0, len(fe.Symbols))
	for _, key := range fe.Symbols {
		if s := c.Symbols[key]; s != nil {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartLine < out[j].StartLine })
	return out
}

// SortedFiles returns the file paths in lexical order.
func (c *Cache) SortedFiles() []string {
	paths := make([]string, 0, len(c.Files))
	for p := range c.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Effective returns the merged constraints for path.
func (c *Cache) Effective(path string, defaults constraints.Constraints) constraints.Constraints {
	return c.Constraints.Effective(path, defaults)
}
