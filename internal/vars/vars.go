// Package vars manages the project variable file: named references to
// symbols, files, domains and layers that prompts and documents can cite
// as $NAME and expand on demand.
package vars

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/phobologic/acp/internal/cache"
)

// Version is the vars file format version.
const Version = "1.0.0"

// DefaultFileName is the canonical vars file name.
const DefaultFileName = "acp.vars.json"

// Category classifies a variable.
type Category string

const (
	Symbol    Category = "symbol"
	FileVar   Category = "file"
	Domain    Category = "domain"
	Layer     Category = "layer"
	Arch      Category = "arch"
	Pattern   Category = "pattern"
	Procedure Category = "procedure"
	Query     Category = "query"
	Context   Category = "context"
	Config    Category = "config"
	Custom    Category = "custom"
)

// Entry is one variable. Value is a string or a structured JSON object.
type Entry struct {
	Category Category `json:"category"`
	Summary  string   `json:"summary,omitempty"`
	Value    any      `json:"value"`
	Tags     []string `json:"tags,omitempty"`
	Refs     []string `json:"refs,omitempty"`
	Source   string   `json:"source,omitempty"`
}

// Stats counts variables.
type Stats struct {
	Vars       int              `json:"vars"`
	ByCategory map[Category]int `json:"by_category,omitempty"`
}

// File is the persisted vars document.
type File struct {
	Version     string            `json:"version"`
	GeneratedAt time.Time         `json:"generated_at"`
	Project     cache.Project     `json:"project"`
	Stats       Stats             `json:"stats"`
	Vars        map[string]*Entry `json:"vars"`
	Index       *Index            `json:"index,omitempty"`
}

// Index is derived from the variables and never edited directly.
type Index struct {
	ByCategory  map[Category][]string `json:"by_category,omitempty"`
	ByTag       map[string][]string   `json:"by_tag,omitempty"`
	Inheritance map[string][]string   `json:"inheritance,omitempty"`
}

// BuildIndex groups variables by category and tag and records which
// variables reference each variable. Lists are sorted.
func BuildIndex(vars map[string]*Entry) *Index {
	idx := &Index{
		ByCategory:  make(map[Category][]string),
		ByTag:       make(map[string][]string),
		Inheritance: make(map[string][]string),
	}
	for name, e := range vars {
		idx.ByCategory[e.Category] = append(idx.ByCategory[e.Category], name)
		for _, tag := range e.Tags {
			idx.ByTag[tag] = append(idx.ByTag[tag], name)
		}
		for _, ref := range e.Refs {
			if !slices.Contains(idx.Inheritance[ref], name) {
				idx.Inheritance[ref] = append(idx.Inheritance[ref], name)
			}
		}
	}
	for _, m := range []map[string][]string{idx.ByTag, idx.Inheritance} {
		for _, names := range m {
			sort.Strings(names)
		}
	}
	for _, names := range idx.ByCategory {
		sort.Strings(names)
	}
	return idx
}

// Refresh recomputes stats and the index.
func (f *File) Refresh() {
	f.Stats = Stats{Vars: len(f.Vars), ByCategory: make(map[Category]int)}
	for _, e := range f.Vars {
		f.Stats.ByCategory[e.Category]++
	}
	f.Index = BuildIndex(f.Vars)
}

// Names returns the variable names in lexical order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Vars))
	for n := range f.Vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Save writes f to path atomically.
func Save(path string, f *File) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encoding vars: %w", err)
	}
	return cache.WriteFile(path, buf.Bytes())
}

// Load reads the vars file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vars: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if f.Vars == nil {
		f.Vars = make(map[string]*Entry)
	}
	return &f, nil
}

// varName turns text into an upper snake-case variable name with prefix.
func varName(prefix, text string) string {
	var b strings.Builder
	b.WriteString(prefix)
	lastUnderscore := true
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
			lastUnderscore = false
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}
