// Package graph holds the bidirectional call graph and computes PageRank
// over it.
package graph

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/phobologic/acp/internal/symbols"
)

// Graph is a call graph as two parallel adjacency maps keyed by name:
// Forward maps a caller to its callees and Reverse a callee to its callers.
// Adjacency lists keep insertion order. A callee that is never defined is a
// valid key in Reverse.
type Graph struct {
	Forward map[string][]string `json:"forward,omitempty"`
	Reverse map[string][]string `json:"reverse,omitempty"`

	seen map[edge]struct{}
}

type edge struct{ caller, callee string }

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		Forward: make(map[string][]string),
		Reverse: make(map[string][]string),
	}
}

func (g *Graph) index() {
	if g.seen != nil {
		return
	}
	if g.Forward == nil {
		g.Forward = make(map[string][]string)
	}
	if g.Reverse == nil {
		g.Reverse = make(map[string][]string)
	}
	g.seen = make(map[edge]struct{})
	for caller, callees := range g.Forward {
		for _, callee := range callees {
			g.seen[edge{caller, callee}] = struct{}{}
		}
	}
}

// Add records caller → callee once. It reports whether the edge was new.
func (g *Graph) Add(caller, callee string) bool {
	if caller == "" || callee == "" {
		return false
	}
	g.index()
	e := edge{caller, callee}
	if _, dup := g.seen[e]; dup {
		return false
	}
	g.seen[e] = struct{}{}
	g.Forward[caller] = append(g.Forward[caller], callee)
	g.Reverse[callee] = append(g.Reverse[callee], caller)
	return true
}

// AddCalls records every call site in order.
func (g *Graph) AddCalls(calls []symbols.FunctionCall) {
	for _, c := range calls {
		g.Add(c.Caller, c.Callee)
	}
}

// Callees returns the names called by caller.
func (g *Graph) Callees(caller string) []string { return g.Forward[caller] }

// Callers returns the names calling callee.
func (g *Graph) Callers(callee string) []string { return g.Reverse[callee] }

// Edges returns the number of distinct edges.
func (g *Graph) Edges() int {
	n := 0
	for _, callees := range g.Forward {
		n += len(callees)
	}
	return n
}

// Nodes returns every caller and callee name, sorted.
func (g *Graph) Nodes() []string {
	set := make(map[string]struct{})
	for caller, callees := range g.Forward {
		set[caller] = struct{}{}
		for _, c := range callees {
			set[c] = struct{}{}
		}
	}
	for callee := range g.Reverse {
		set[callee] = struct{}{}
	}
	return sortedKeys(set)
}

// Symmetric checks that callee ∈ Forward[caller] iff caller ∈ Reverse[callee].
func (g *Graph) Symmetric() error {
	for caller, callees := range g.Forward {
		for _, callee := range callees {
			if !contains(g.Reverse[callee], caller) {
				return fmt.Errorf("forward edge %s -> %s has no reverse entry", caller, callee)
			}
		}
	}
	for callee, callers := range g.Reverse {
		for _, caller := range callers {
			if !contains(g.Forward[caller], callee) {
				return fmt.Errorf("reverse edge %s <- %s has no forward entry", callee, caller)
			}
		}
	}
	return nil
}

// IsSentinel reports the placeholder callers used for top-level calls.
func IsSentinel(name string) bool {
	return strings.HasPrefix(name, "<") && strings.HasSuffix(name, ">")
}

// Rank applies PageRank to the call graph. Rank flows from callers to
// callees, so heavily called names rank highest.
func Rank(g *Graph) map[string]float64 {
	nodes := make(map[string]struct{})
	for _, n := range g.Nodes() {
		nodes[n] = struct{}{}
	}
	if len(nodes) == 0 {
		return nil
	}
	outDegree := make(map[string]int, len(g.Forward))
	for caller, callees := range g.Forward {
		outDegree[caller] = len(callees)
	}
	return pageRank(nodes, g.Forward, outDegree, 0.85, 100, 1e-6)
}

// Hotpaths returns up to n names ordered by rank descending, then name.
// Sentinels and names rejected by keep are skipped. n <= 0 means all.
func Hotpaths(g *Graph, n int, keep func(string) bool) []string {
	ranks := Rank(g)
	names := make([]string, 0, len(ranks))
	for name := range ranks {
		if IsSentinel(name) || (keep != nil && !keep(name)) {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := ranks[names[i]], ranks[names[j]]
		if ri != rj {
			return ri > rj
		}
		return names[i] < names[j]
	})
	if n > 0 && len(names) > n {
		names = names[:n]
	}
	return names
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Nodes without outgoing edges spread their rank uniformly.
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		for src, targets := range outEdges {
			deg := float64(outDegree[src])
			if deg == 0 {
				continue
			}
			contrib := alpha * rank[src] / deg
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		var diff float64
		for node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
