package vars

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"slices"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrUnknownVariable is returned for a name not in the vars file.
var ErrUnknownVariable = errors.New("unknown variable")

// DefaultDepth bounds Inline expansion.
const DefaultDepth = 3

const memoSize = 256

// Mode selects how a variable reference is rendered.
type Mode int

const (
	ModeNone Mode = iota
	ModeSummary
	ModeInline
	ModeAnnotated
	ModeBlock
	ModeInteractive
)

var modeNames = map[Mode]string{
	ModeNone:        "none",
	ModeSummary:     "summary",
	ModeInline:      "inline",
	ModeAnnotated:   "annotated",
	ModeBlock:       "block",
	ModeInteractive: "interactive",
}

func (m Mode) String() string { return modeNames[m] }

// ParseMode maps a mode name to its Mode.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return ModeNone, fmt.Errorf("unknown expansion mode %q", s)
}

// Single-letter names are accepted.
var refRe = regexp.MustCompile(`\$([A-Z][A-Z0-9_]*)(?:\.(\w+))?`)

// Reference is one $NAME or $NAME.modifier occurrence in text.
type Reference struct {
	Name     string
	Modifier string
	Start    int
	End      int
}

// Parse returns the variable references in text in order.
func Parse(text string) []Reference {
	var out []Reference
	for _, m := range refRe.FindAllStringSubmatchIndex(text, -1) {
		r := Reference{Name: text[m[2]:m[3]], Start: m[0], End: m[1]}
		if m[4] >= 0 {
			r.Modifier = text[m[4]:m[5]]
		}
		out = append(out, r)
	}
	return out
}

// Resolver expands variable references against a fixed set of variables.
// A Resolver is safe for concurrent use.
type Resolver struct {
	vars  map[string]*Entry
	depth int
	memo  *lru.Cache[string, string]
}

// NewResolver returns a resolver over vars. depth <= 0 selects DefaultDepth.
func NewResolver(vars map[string]*Entry, depth int) *Resolver {
	if depth <= 0 {
		depth = DefaultDepth
	}
	memo, _ := lru.New[string, string](memoSize)
	return &Resolver{vars: vars, depth: depth, memo: memo}
}

// Resolve returns the entry for name.
func (r *Resolver) Resolve(name string) (*Entry, error) {
	e, ok := r.vars[strings.TrimPrefix(name, "$")]
	if !ok {
		return nil, fmt.Errorf("%w: $%s", ErrUnknownVariable, strings.TrimPrefix(name, "$"))
	}
	return e, nil
}

// Unknown returns the referenced names in text that have no variable.
func (r *Resolver) Unknown(text string) []string {
	var out []string
	for _, ref := range Parse(text) {
		if _, ok := r.vars[ref.Name]; !ok && !slices.Contains(out, ref.Name) {
			out = append(out, ref.Name)
		}
	}
	return out
}

// Expand renders every known reference in text according to mode.
// Unknown references are left verbatim.
func (r *Resolver) Expand(text string, mode Mode) string {
	key := fmt.Sprintf("%d\x00%s", mode, text)
	if out, ok := r.memo.Get(key); ok {
		return out
	}
	out := r.expand(text, mode, r.depth, make(map[string]bool))
	r.memo.Add(key, out)
	return out
}

func (r *Resolver) expand(text string, mode Mode, depth int, visiting map[string]bool) string {
	if mode == ModeNone {
		return text
	}
	refs := Parse(text)
	if len(refs) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, ref := range refs {
		b.WriteString(text[last:ref.Start])
		last = ref.End
		e, ok := r.vars[ref.Name]
		if !ok {
			b.WriteString(text[ref.Start:ref.End])
			continue
		}
		if v, ok := modifierValue(e, ref.Modifier); ok {
			b.WriteString(v)
			continue
		}
		b.WriteString(r.render(ref.Name, e, mode, depth, visiting))
		if ref.Modifier != "" {
			b.WriteString("." + ref.Modifier)
		}
	}
	b.WriteString(text[last:])
	return b.String()
}

func modifierValue(e *Entry, modifier string) (string, bool) {
	switch modifier {
	case "summary":
		return e.Summary, true
	case "value":
		return valueString(e.Value), true
	case "refs":
		return strings.Join(e.Refs, ", "), true
	case "tags":
		return strings.Join(e.Tags, ", "), true
	case "category":
		return string(e.Category), true
	case "source":
		return e.Source, true
	}
	return "", false
}

func (r *Resolver) render(name string, e *Entry, mode Mode, depth int, visiting map[string]bool) string {
	switch mode {
	case ModeSummary:
		if e.Summary != "" {
			return e.Summary
		}
		return valueString(e.Value)
	case ModeInline:
		if visiting[name] {
			return "[CYCLE:$" + name + "]"
		}
		if depth == 0 {
			return "$" + name
		}
		visiting[name] = true
		out := r.expand(valueString(e.Value), ModeInline, depth-1, visiting)
		delete(visiting, name)
		return out
	case ModeAnnotated:
		return fmt.Sprintf("**$%s** → %s", name, humanize(e.Value))
	case ModeBlock:
		return block(name, e)
	case ModeInteractive:
		return fmt.Sprintf(`<acp-var name="%s" summary="%s">$%s</acp-var>`,
			html.EscapeString(name), html.EscapeString(e.Summary), name)
	}
	return "$" + name
}

func block(name string, e *Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**$%s**", name)
	if e.Summary != "" {
		fmt.Fprintf(&b, ": %s", e.Summary)
	}
	for _, kv := range pairs(e.Value) {
		fmt.Fprintf(&b, "\n- %s: %s", kv[0], kv[1])
	}
	if e.Source != "" {
		fmt.Fprintf(&b, "\n_Source: %s_", e.Source)
	}
	return b.String()
}

// InheritanceChain returns every variable reachable from name through refs,
// depth first in ref order. Each name appears once and name itself is
// excluded; unknown refs are skipped.
func (r *Resolver) InheritanceChain(name string) ([]string, error) {
	root, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	name = strings.TrimPrefix(name, "$")
	visited := map[string]bool{name: true}
	var out []string
	var walk func(e *Entry)
	walk = func(e *Entry) {
		for _, ref := range e.Refs {
			next, ok := r.vars[ref]
			if !ok || visited[ref] {
				continue
			}
			visited[ref] = true
			out = append(out, ref)
			walk(next)
		}
	}
	walk(root)
	return out, nil
}

func valueString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// pairs splits a "k:v|k:v" string or a JSON object into key/value pairs
// with capitalized keys.
func pairs(v any) [][2]string {
	var out [][2]string
	switch v := v.(type) {
	case string:
		if v == "" {
			return nil
		}
		for _, part := range strings.Split(v, "|") {
			k, val, ok := strings.Cut(part, ":")
			if !ok {
				out = append(out, [2]string{"Value", strings.TrimSpace(part)})
				continue
			}
			out = append(out, [2]string{capitalize(strings.TrimSpace(k)), strings.TrimSpace(val)})
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, [2]string{capitalize(k), valueString(v[k])})
		}
	default:
		if s := valueString(v); s != "" {
			out = append(out, [2]string{"Value", s})
		}
	}
	return out
}

// humanize renders "k:v|k:v" as "K: v | K: v". Strings without a key
// are returned unchanged.
func humanize(v any) string {
	if s, ok := v.(string); ok && !strings.Contains(s, ":") {
		return s
	}
	ps := pairs(v)
	parts := make([]string, len(ps))
	for i, kv := range ps {
		parts[i] = kv[0] + ": " + kv[1]
	}
	return strings.Join(parts, " | ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
