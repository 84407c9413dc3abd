package cache

import (
	"bytes"
	"log/slog"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/phobologic/acp/internal/annotate"
	"github.com/phobologic/acp/internal/constraints"
	"github.com/phobologic/acp/internal/discover"
	"github.com/phobologic/acp/internal/gitmeta"
	"github.com/phobologic/acp/internal/graph"
	"github.com/phobologic/acp/internal/heuristics"
	"github.com/phobologic/acp/internal/lang"
	"github.com/phobologic/acp/internal/symbols"
	"github.com/phobologic/acp/internal/vocab"
)

// DefaultHotpaths is the number of hotpaths kept when Options leaves it unset.
const DefaultHotpaths = 20

// GitSource supplies change metadata for indexed files. *gitmeta.Repo
// satisfies it.
type GitSource interface {
	Blame(path string) (map[int]gitmeta.BlameLine, error)
	FileHistory(path string, limit int) ([]gitmeta.HistoryEntry, error)
}

// Options configure a Builder.
type Options struct {
	Project Project
	// Now stamps GeneratedAt. Defaults to time.Now.
	Now func() time.Time
	// Git attaches blame and history when non-nil.
	Git          GitSource
	HistoryLimit int
	HotpathCount int
	// DebugSessions are carried into the new constraint index.
	DebugSessions []constraints.DebugSession
	// Paths infers domain and layer for files that do not declare them.
	// Nil disables inference.
	Paths  *heuristics.PathHeuristics
	Logger *slog.Logger
}

// Builder assembles a Cache from per-file analysis results. A Builder is
// not safe for concurrent use; feed it results sequentially.
type Builder struct {
	opts        Options
	log         *slog.Logger
	cache       *Cache
	index       *constraints.Index
	names       map[string]bool
	annotatable int
	annotated   int
}

// NewBuilder returns an empty builder.
func NewBuilder(opts Options) *Builder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HotpathCount == 0 {
		opts.HotpathCount = DefaultHotpaths
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	idx := constraints.NewIndex()
	idx.DebugSessions = slices.Clone(opts.DebugSessions)
	return &Builder{
		opts: opts,
		log:  log,
		cache: &Cache{
			Version: Version,
			Project: opts.Project,
			Files:   make(map[string]*FileEntry),
			Symbols: make(map[string]*SymbolEntry),
			Graph:   graph.New(),
			Domains: make(map[string]*Group),
			Layers:  make(map[string]*Group),
		},
		index: idx,
		names: make(map[string]bool),
	}
}

// AddFile merges one analyzed file into the cache. Files of an unknown
// language are kept only when they carry annotations.
func (b *Builder) AddFile(res *annotate.AnalysisResult) {
	if res == nil {
		return
	}
	if res.Language == lang.Unknown && len(res.Annotations) == 0 {
		return
	}
	c := b.cache
	fe := &FileEntry{
		Path:      res.Path,
		Language:  res.Language,
		Lines:     lineCount(res.Content),
		IsTest:    discover.IsTestFile(res.Path),
		HasErrors: res.HasErrors,
	}
	for _, imp := range res.Imports {
		if !slices.Contains(fe.Imports, imp.Source) {
			fe.Imports = append(fe.Imports, imp.Source)
		}
	}
	for _, a := range res.FileAnnotations() {
		b.applyFile(fe, a)
	}
	if b.opts.Paths != nil {
		if len(fe.Domains) == 0 {
			if d := b.opts.Paths.DomainFor(res.Path); d != "" {
				fe.Domains = []string{d}
			}
		}
		if fe.Layer == "" {
			fe.Layer = b.opts.Paths.LayerFor(res.Path)
		}
	}
	c.Stats.Annotations += len(res.Annotations)

	for _, a := range res.Annotations {
		if a.Type != vocab.Hack {
			continue
		}
		h := constraints.ParseHack(res.Path, a.Line, a.Value)
		if a.Target != res.Path {
			h.Target = a.Target
		}
		b.index.AddHack(h)
	}

	var blame map[int]gitmeta.BlameLine
	if b.opts.Git != nil {
		fe.Git = b.fileGit(res.Path)
		if len(res.Symbols) > 0 {
			var err error
			if blame, err = b.opts.Git.Blame(res.Path); err != nil {
				b.log.Debug("blame unavailable", "path", res.Path, "error", err)
			}
		}
	}

	for i := range res.Symbols {
		sym := &res.Symbols[i]
		key := sym.QualifiedName
		if _, taken := c.Symbols[key]; taken {
			key = res.Path + ":" + sym.QualifiedName
		}
		se := &SymbolEntry{
			Name:          sym.Name,
			QualifiedName: sym.QualifiedName,
			Kind:          sym.Kind,
			File:          res.Path,
			StartLine:     sym.StartLine,
			EndLine:       sym.EndLine,
			Signature:     signature(sym),
			Visibility:    sym.Visibility,
			Exported:      sym.Exported,
			Parent:        sym.Parent,
		}
		for _, a := range res.SymbolAnnotations(sym.QualifiedName) {
			applySymbol(se, a)
		}
		if blame != nil {
			if bl, ok := gitmeta.Latest(blame, sym.StartLine, sym.EndLine); ok {
				when := bl.Timestamp
				se.Git = &GitInfo{LastCommit: bl.Commit, LastAuthor: bl.Author, LastModified: &when, Summary: bl.Summary}
			}
		}
		if sym.IsAnnotatable() {
			b.annotatable++
			if se.Summary != "" {
				b.annotated++
			}
		}
		c.Symbols[key] = se
		fe.Symbols = append(fe.Symbols, key)
		b.names[sym.Name] = true
		b.names[sym.QualifiedName] = true

		if se.Domain != "" {
			group(c.Domains, se.Domain).Symbols = append(group(c.Domains, se.Domain).Symbols, key)
		}
		if se.Layer != "" {
			group(c.Layers, se.Layer).Symbols = append(group(c.Layers, se.Layer).Symbols, key)
		}
		if se.Stability != "" {
			b.addStability(se.Stability, key)
		}
		if isSensitive(se.Lock) {
			b.security().Symbols = append(b.security().Symbols, key)
		}
	}

	c.Graph.AddCalls(res.Calls)

	for _, d := range fe.Domains {
		group(c.Domains, d).Files = append(group(c.Domains, d).Files, fe.Path)
	}
	if fe.Layer != "" {
		group(c.Layers, fe.Layer).Files = append(group(c.Layers, fe.Layer).Files, fe.Path)
	}
	if fe.Stability != "" {
		b.addStability(fe.Stability, fe.Path)
	}
	if isSensitive(fe.Lock) {
		b.security().Files = append(b.security().Files, fe.Path)
	}
	c.Files[fe.Path] = fe
}

func (b *Builder) applyFile(fe *FileEntry, a annotate.ExistingAnnotation) {
	switch a.Type {
	case vocab.Module:
		fe.Module = a.Value
	case vocab.Summary:
		fe.Summary = a.Value
	case vocab.Domain:
		if a.Value != "" && !slices.Contains(fe.Domains, a.Value) {
			fe.Domains = append(fe.Domains, a.Value)
		}
	case vocab.Layer:
		fe.Layer = a.Value
	case vocab.Stability:
		fe.Stability = a.Value
	case vocab.Lock:
		level := constraints.ParseLockLevel(a.Value)
		b.index.SetLock(fe.Path, level, fe.LockReason)
		fe.Lock = string(b.index.ByFile[fe.Path].Level())
	case vocab.LockReason:
		fe.LockReason = a.Value
		b.index.SetReason(fe.Path, a.Value)
	case vocab.Deprecated:
		fe.Deprecated = nonEmpty(a.Value)
	case vocab.AiHint:
		fe.AiHints = append(fe.AiHints, a.Value)
	case vocab.Ref:
		fe.Refs = append(fe.Refs, a.Value)
	}
}

func applySymbol(se *SymbolEntry, a annotate.ExistingAnnotation) {
	switch a.Type {
	case vocab.Summary:
		se.Summary = a.Value
	case vocab.Domain:
		se.Domain = a.Value
	case vocab.Layer:
		se.Layer = a.Value
	case vocab.Lock:
		se.Lock = string(constraints.ParseLockLevel(a.Value))
	case vocab.LockReason:
		se.LockReason = a.Value
	case vocab.Stability:
		se.Stability = a.Value
	case vocab.Deprecated:
		se.Deprecated = nonEmpty(a.Value)
	case vocab.AiHint:
		se.AiHints = append(se.AiHints, a.Value)
	case vocab.Ref:
		se.Refs = append(se.Refs, a.Value)
	}
}

// signature falls back to name(params) for callables whose extractor
// recorded no header text.
func signature(sym *symbols.Symbol) string {
	if sym.Signature != "" || (sym.Kind != symbols.Function && sym.Kind != symbols.Method) {
		return sym.Signature
	}
	sig := sym.Name + symbols.FormatParameters(sym.Parameters)
	if sym.ReturnType != "" {
		sig += ": " + sym.ReturnType
	}
	return sig
}

// nonEmpty keeps a bare @acp:deprecated visible after elision.
func nonEmpty(v string) string {
	if v == "" {
		return "true"
	}
	return v
}

func (b *Builder) fileGit(path string) *GitInfo {
	hist, err := b.opts.Git.FileHistory(path, b.opts.HistoryLimit)
	if err != nil {
		b.log.Debug("history unavailable", "path", path, "error", err)
		return nil
	}
	if len(hist) == 0 {
		return nil
	}
	last := hist[0]
	when := last.Timestamp
	info := &GitInfo{
		LastCommit:   last.Commit,
		LastAuthor:   last.Author,
		LastModified: &when,
		Summary:      last.Summary,
		Commits:      len(hist),
	}
	for _, h := range hist {
		info.LinesAdded += h.LinesAdded
		info.LinesRemoved += h.LinesRemoved
	}
	return info
}

func (b *Builder) addStability(value, key string) {
	if b.cache.Stability == nil {
		b.cache.Stability = make(map[string][]string)
	}
	b.cache.Stability[value] = append(b.cache.Stability[value], key)
}

func (b *Builder) security() *Security {
	if b.cache.Security == nil {
		b.cache.Security = &Security{}
	}
	return b.cache.Security
}

func group(m map[string]*Group, name string) *Group {
	g := m[name]
	if g == nil {
		g = &Group{Name: name}
		m[name] = g
	}
	return g
}

// isSensitive reports locks at restricted or stricter.
func isSensitive(lock string) bool {
	if lock == "" {
		return false
	}
	level := constraints.ParseLockLevel(lock)
	return level == constraints.Restricted || level == constraints.Frozen
}

func lineCount(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte("\n"))
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

// Finish computes stats and hotpaths and returns the cache. The builder
// must not be used afterwards.
func (b *Builder) Finish() *Cache {
	c := b.cache
	c.GeneratedAt = b.opts.Now().UTC().Truncate(time.Second)

	c.Stats.Files = len(c.Files)
	c.Stats.Symbols = len(c.Symbols)
	c.Stats.Lines = 0
	for _, fe := range c.Files {
		c.Stats.Lines += fe.Lines
		if c.Stats.Languages == nil {
			c.Stats.Languages = make(map[string]int)
		}
		c.Stats.Languages[fe.Language]++
	}
	c.Stats.AnnotationCoverage = coverage(b.annotated, b.annotatable)

	for _, g := range c.Domains {
		sort.Strings(g.Files)
		sort.Strings(g.Symbols)
	}
	for _, g := range c.Layers {
		sort.Strings(g.Files)
		sort.Strings(g.Symbols)
	}
	for _, keys := range c.Stability {
		sort.Strings(keys)
	}
	if c.Security != nil {
		sort.Strings(c.Security.Files)
		sort.Strings(c.Security.Symbols)
	}

	c.Hotpaths = graph.Hotpaths(c.Graph, b.opts.HotpathCount, func(name string) bool { return b.names[name] })

	if !b.index.IsEmpty() {
		sort.SliceStable(b.index.HackMarkers, func(i, j int) bool {
			hi, hj := b.index.HackMarkers[i], b.index.HackMarkers[j]
			if hi.File != hj.File {
				return hi.File < hj.File
			}
			return hi.Line < hj.Line
		})
		for _, paths := range b.index.ByLockLevel {
			sort.Strings(paths)
		}
		c.Constraints = b.index
	}
	return c
}

// coverage is annotated/total as a percentage rounded to two decimals.
func coverage(annotated, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(annotated)/float64(total)*10000) / 100
}
