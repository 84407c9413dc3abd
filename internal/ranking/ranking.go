// Package ranking orders the files of a cache by call-graph importance and
// narrows the view to a file budget, a symbol or a path.
package ranking

import (
	"sort"
	"strings"

	"github.com/phobologic/acp/internal/cache"
	"github.com/phobologic/acp/internal/graph"
)

// Edge is one caller to callee relationship.
type Edge struct {
	Caller string
	Callee string
}

// Map is a ranked, possibly filtered view of a cache.
type Map struct {
	Cache *cache.Cache
	// Files are ordered by rank, highest first.
	Files []string
	Rank  map[string]float64
	// Symbols are cache symbol keys, ordered by file then start line.
	Symbols []string
	Calls   []Edge
}

// Build ranks every file of c. A file's rank is the summed PageRank of the
// symbols it defines.
func Build(c *cache.Cache) *Map {
	g := c.Graph
	if g == nil {
		g = graph.New()
	}
	nodeRank := graph.Rank(g)

	rank := make(map[string]float64, len(c.Files))
	for _, path := range c.SortedFiles() {
		var sum float64
		for _, s := range c.SymbolsInFile(path) {
			sum += nodeRank[s.QualifiedName]
			if s.Name != s.QualifiedName {
				sum += nodeRank[s.Name]
			}
		}
		rank[path] = sum
	}

	files := c.SortedFiles()
	sort.SliceStable(files, func(i, j int) bool { return rank[files[i]] > rank[files[j]] })

	m := &Map{Cache: c, Files: files, Rank: rank}
	m.Symbols = symbolsOf(c, files, nil)
	m.Calls = edgesOf(g)
	return m
}

// SelectFiles keeps the maxFiles highest-ranked files, their symbols and the
// calls made from those symbols. If maxFiles is <= 0 or >= len(files), m is
// returned unchanged.
func SelectFiles(m *Map, maxFiles int) *Map {
	if maxFiles <= 0 || maxFiles >= len(m.Files) {
		return m
	}
	files := m.Files[:maxFiles]
	syms := symbolsOf(m.Cache, files, nil)
	names := nameSet(m.Cache, syms)

	var calls []Edge
	for _, e := range m.Calls {
		if _, ok := names[e.Caller]; ok {
			calls = append(calls, e)
		}
	}
	return &Map{Cache: m.Cache, Files: files, Rank: m.Rank, Symbols: syms, Calls: calls}
}

// FilterBySymbol keeps symbols whose name contains substr
// (case-insensitive), their direct callers and callees, the files defining
// any of them and the calls touching a matched symbol.
func FilterBySymbol(m *Map, substr string) *Map {
	lower := strings.ToLower(substr)

	matched := make(map[string]struct{})
	for _, key := range m.Symbols {
		s := m.Cache.Symbols[key]
		if strings.Contains(strings.ToLower(s.QualifiedName), lower) {
			matched[s.QualifiedName] = struct{}{}
			matched[s.Name] = struct{}{}
		}
	}

	related := make(map[string]struct{})
	var calls []Edge
	for _, e := range m.Calls {
		_, callerOK := matched[e.Caller]
		_, calleeOK := matched[e.Callee]
		if callerOK {
			related[e.Callee] = struct{}{}
		}
		if calleeOK {
			related[e.Caller] = struct{}{}
		}
		if callerOK || calleeOK {
			calls = append(calls, e)
		}
	}

	keep := func(s *cache.SymbolEntry) bool {
		for _, n := range []string{s.QualifiedName, s.Name} {
			if _, ok := matched[n]; ok {
				return true
			}
			if _, ok := related[n]; ok {
				return true
			}
		}
		return false
	}
	syms := symbolsOf(m.Cache, m.Files, keep)

	fileSet := make(map[string]struct{})
	for _, key := range syms {
		fileSet[m.Cache.Symbols[key].File] = struct{}{}
	}
	var files []string
	for _, f := range m.Files {
		if _, ok := fileSet[f]; ok {
			files = append(files, f)
		}
	}
	return &Map{Cache: m.Cache, Files: files, Rank: m.Rank, Symbols: syms, Calls: calls}
}

// FilterByFile keeps files whose path contains substr (case-insensitive),
// their symbols and the calls made from those symbols.
func FilterByFile(m *Map, substr string) *Map {
	lower := strings.ToLower(substr)

	var files []string
	for _, f := range m.Files {
		if strings.Contains(strings.ToLower(f), lower) {
			files = append(files, f)
		}
	}
	syms := symbolsOf(m.Cache, files, nil)
	names := nameSet(m.Cache, syms)

	var calls []Edge
	for _, e := range m.Calls {
		if _, ok := names[e.Caller]; ok {
			calls = append(calls, e)
		}
	}
	return &Map{Cache: m.Cache, Files: files, Rank: m.Rank, Symbols: syms, Calls: calls}
}

// symbolsOf lists the symbol keys of files in order, filtered by keep.
func symbolsOf(c *cache.Cache, files []string, keep func(*cache.SymbolEntry) bool) []string {
	keyOf := make(map[*cache.SymbolEntry]string, len(c.Symbols))
	for k, s := range c.Symbols {
		keyOf[s] = k
	}
	var out []string
	for _, f := range files {
		for _, s := range c.SymbolsInFile(f) {
			if keep == nil || keep(s) {
				out = append(out, keyOf[s])
			}
		}
	}
	return out
}

// nameSet holds the qualified name of each symbol.
func nameSet(c *cache.Cache, keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[c.Symbols[k].QualifiedName] = struct{}{}
	}
	return out
}

// edgesOf lists every edge of g ordered by caller.
func edgesOf(g *graph.Graph) []Edge {
	callers := make([]string, 0, len(g.Forward))
	for caller := range g.Forward {
		callers = append(callers, caller)
	}
	sort.Strings(callers)

	var out []Edge
	for _, caller := range callers {
		for _, callee := range g.Forward[caller] {
			out = append(out, Edge{Caller: caller, Callee: callee})
		}
	}
	return out
}
