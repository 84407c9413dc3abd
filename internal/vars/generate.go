package vars

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/phobologic/acp/internal/cache"
	"github.com/phobologic/acp/internal/graph"
)

type generator struct {
	cache  *cache.Cache
	file   *File
	symVar map[string]string   // symbol key -> variable
	byName map[string][]string // qualified or short name -> variables
}

// FromCache generates SYM_, FILE_, DOM_ and LAYER_ variables from c.
// Symbol variables reference the variables of the symbols they call,
// files reference their symbols and groups reference their members.
func FromCache(c *cache.Cache, now time.Time) *File {
	g := &generator{
		cache: c,
		file: &File{
			Version:     Version,
			GeneratedAt: now.UTC().Truncate(time.Second),
			Project:     c.Project,
			Vars:        make(map[string]*Entry),
		},
		symVar: make(map[string]string),
		byName: make(map[string][]string),
	}
	g.symbols()
	g.callRefs()
	g.files()
	g.groups("DOM_", Domain, c.Domains)
	g.groups("LAYER_", Layer, c.Layers)
	g.file.Refresh()
	return g.file
}

// claim returns name, or name with a numeric suffix when taken.
func (g *generator) claim(name string) string {
	if _, taken := g.file.Vars[name]; !taken {
		return name
	}
	for i := 2; ; i++ {
		n := name + "_" + strconv.Itoa(i)
		if _, taken := g.file.Vars[n]; !taken {
			return n
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (g *generator) symbols() {
	for _, key := range sortedKeys(g.cache.Symbols) {
		s := g.cache.Symbols[key]
		if !s.Kind.IsAnnotatable() {
			continue
		}
		name := g.claim(varName("SYM_", s.QualifiedName))
		summary := s.Summary
		if summary == "" {
			summary = fmt.Sprintf("%s %s", s.Kind, s.QualifiedName)
		}
		fields := []string{
			"kind:" + string(s.Kind),
			"file:" + s.File,
			fmt.Sprintf("lines:%d-%d", s.StartLine, s.EndLine),
		}
		tags := []string{string(s.Kind)}
		if s.Domain != "" {
			fields = append(fields, "domain:"+s.Domain)
			tags = append(tags, s.Domain)
		}
		if s.Layer != "" {
			fields = append(fields, "layer:"+s.Layer)
			tags = append(tags, s.Layer)
		}
		if s.Lock != "" {
			fields = append(fields, "lock:"+s.Lock)
		}
		g.file.Vars[name] = &Entry{
			Category: Symbol,
			Summary:  summary,
			Value:    strings.Join(fields, "|"),
			Tags:     tags,
			Source:   fmt.Sprintf("%s:%d", s.File, s.StartLine),
		}
		g.symVar[key] = name
		g.byName[s.QualifiedName] = append(g.byName[s.QualifiedName], name)
		if s.Name != s.QualifiedName {
			g.byName[s.Name] = append(g.byName[s.Name], name)
		}
	}
}

// callRefs links symbol variables along calls whose callee resolves to
// exactly one symbol variable.
func (g *generator) callRefs() {
	for key, name := range g.symVar {
		s := g.cache.Symbols[key]
		e := g.file.Vars[name]
		for _, callee := range g.cache.Callees(s.QualifiedName) {
			if graph.IsSentinel(callee) {
				continue
			}
			targets := g.byName[callee]
			if len(targets) != 1 || targets[0] == name || slices.Contains(e.Refs, targets[0]) {
				continue
			}
			e.Refs = append(e.Refs, targets[0])
		}
	}
}

func (g *generator) files() {
	for _, path := range g.cache.SortedFiles() {
		fe := g.cache.Files[path]
		name := g.claim(varName("FILE_", path))
		summary := fe.Summary
		if summary == "" {
			summary = fe.Module
		}
		if summary == "" {
			summary = fmt.Sprintf("%s file %s", fe.Language, path)
		}
		fields := []string{
			"language:" + fe.Language,
			fmt.Sprintf("lines:%d", fe.Lines),
			fmt.Sprintf("symbols:%d", len(fe.Symbols)),
		}
		tags := []string{fe.Language}
		if fe.Layer != "" {
			fields = append(fields, "layer:"+fe.Layer)
			tags = append(tags, fe.Layer)
		}
		if fe.Lock != "" {
			fields = append(fields, "lock:"+fe.Lock)
		}
		tags = append(tags, fe.Domains...)
		e := &Entry{
			Category: FileVar,
			Summary:  summary,
			Value:    strings.Join(fields, "|"),
			Tags:     tags,
			Source:   path,
		}
		for _, key := range fe.Symbols {
			if v, ok := g.symVar[key]; ok {
				e.Refs = append(e.Refs, v)
			}
		}
		g.file.Vars[name] = e
	}
}

func (g *generator) groups(prefix string, cat Category, groups map[string]*cache.Group) {
	fileVar := make(map[string]string)
	for name, e := range g.file.Vars {
		if e.Category == FileVar {
			fileVar[e.Source] = name
		}
	}
	for _, key := range sortedKeys(groups) {
		grp := groups[key]
		name := g.claim(varName(prefix, key))
		e := &Entry{
			Category: cat,
			Summary:  fmt.Sprintf("%s %s: %d files, %d symbols", cat, key, len(grp.Files), len(grp.Symbols)),
			Value:    fmt.Sprintf("name:%s|files:%d|symbols:%d", key, len(grp.Files), len(grp.Symbols)),
		}
		for _, p := range grp.Files {
			if v, ok := fileVar[p]; ok {
				e.Refs = append(e.Refs, v)
			}
		}
		for _, s := range grp.Symbols {
			if v, ok := g.symVar[s]; ok {
				e.Refs = append(e.Refs, v)
			}
		}
		g.file.Vars[name] = e
	}
}
