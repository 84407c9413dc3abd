// Package docstd parses language-native documentation comments (JSDoc/TSDoc,
// Python docstrings, Godoc, Javadoc, Rustdoc) into one normalized model and
// renders that model as @acp suggestions.
package docstd

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/phobologic/acp/internal/vocab"
)

// MaxSummaryLen is the summary length, in characters, above which summaries
// are truncated.
const MaxSummaryLen = 100

// Confidence assigned to converted suggestions.
const (
	summaryConfidence    = 0.9
	deprecatedConfidence = 0.95
	defaultConfidence    = 0.8
)

// Param is one documented parameter.
type Param struct {
	Name        string
	Type        string
	Description string
}

// Returns documents a return value.
type Returns struct {
	Type        string
	Description string
}

// Throw documents an exception or error.
type Throw struct {
	Type        string
	Description string
}

// Tag is a dialect-specific (key, value) pair. Keys use the conventional
// prefixes attr:, method:, meta:, ivar:, cvar:, var: for named items.
type Tag struct {
	Key   string
	Value string
}

// ParsedDocumentation is the dialect-independent doc model.
type ParsedDocumentation struct {
	Summary      string
	Description  string
	Params       []Param
	Returns      *Returns
	Throws       []Throw
	IsDeprecated bool
	Deprecated   string
	Author       string
	Since        string
	SeeRefs      []string
	Todos        []string
	Notes        []string
	Examples     []string
	CustomTags   []Tag
}

// AddTag appends a custom tag.
func (d *ParsedDocumentation) AddTag(key, value string) {
	d.CustomTags = append(d.CustomTags, Tag{Key: key, Value: value})
}

// Tag returns the value of the first custom tag with key.
func (d *ParsedDocumentation) Tag(key string) (string, bool) {
	for _, t := range d.CustomTags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// HasTag reports whether a custom tag with key is present.
func (d *ParsedDocumentation) HasTag(key string) bool {
	_, ok := d.Tag(key)
	return ok
}

// TagsWithPrefix returns the custom tags whose key starts with prefix.
func (d *ParsedDocumentation) TagsWithPrefix(prefix string) []Tag {
	var out []Tag
	for _, t := range d.CustomTags {
		if strings.HasPrefix(t.Key, prefix) {
			out = append(out, t)
		}
	}
	return out
}

// AddSeeRef appends a reference once.
func (d *ParsedDocumentation) AddSeeRef(ref string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return
	}
	for _, r := range d.SeeRefs {
		if r == ref {
			return
		}
	}
	d.SeeRefs = append(d.SeeRefs, ref)
}

// SetDeprecated marks the doc deprecated with an optional message.
func (d *ParsedDocumentation) SetDeprecated(msg string) {
	d.IsDeprecated = true
	msg = strings.TrimSpace(msg)
	if msg != "" {
		if d.Deprecated != "" {
			d.Deprecated += " " + msg
		} else {
			d.Deprecated = msg
		}
	}
}

// Param returns the documented parameter with name, or nil.
func (d *ParsedDocumentation) Param(name string) *Param {
	for i := range d.Params {
		if d.Params[i].Name == name {
			return &d.Params[i]
		}
	}
	return nil
}

// IsEmpty reports a doc with no recognizable content.
func (d *ParsedDocumentation) IsEmpty() bool {
	return d.Summary == "" && d.Description == "" && len(d.Params) == 0 && d.Returns == nil &&
		len(d.Throws) == 0 && !d.IsDeprecated && len(d.SeeRefs) == 0 && len(d.Todos) == 0 &&
		len(d.Notes) == 0 && len(d.Examples) == 0 && len(d.CustomTags) == 0
}

// Converter parses one documentation dialect.
type Converter interface {
	Parse(raw string) *ParsedDocumentation
	ToSuggestions(doc *ParsedDocumentation, target string, line int) []vocab.Suggestion
}

// ForLanguage returns the converter for a source language, or nil.
// declaredName is the symbol name used for Go's doc conventions.
func ForLanguage(language, declaredName string) Converter {
	switch language {
	case "typescript", "javascript":
		return NewJSDoc()
	case "python":
		return NewPython()
	case "go":
		return NewGodoc(declaredName)
	case "java":
		return NewJavadoc()
	case "rust":
		return NewRustdoc()
	}
	return nil
}

// TruncateSummary shortens s to MaxSummaryLen characters, cutting at the
// last space and appending an ellipsis.
func TruncateSummary(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxSummaryLen {
		return s
	}
	runes := []rune(s)[:MaxSummaryLen]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ") + "…"
}

var sentenceEndRe = regexp.MustCompile(`[.!?](\s|$)`)

// FirstSentence returns text up to and including the first sentence
// terminator followed by whitespace or end of text.
func FirstSentence(text string) string {
	text = collapse(text)
	if loc := sentenceEndRe.FindStringIndex(text); loc != nil {
		return text[:loc[0]+1]
	}
	return text
}

var spaceRe = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// emitter accumulates suggestions for one target, dropping empty values.
type emitter struct {
	target string
	line   int
	out    []vocab.Suggestion
}

func (e *emitter) add(typ vocab.AnnotationType, value string, confidence float64) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	e.out = append(e.out, vocab.New(e.target, e.line, typ, value, vocab.Converted, confidence))
}

// common renders the dialect-independent parts of a doc. throwVerb is the
// dialect's word for exceptions ("throws", "raises").
func (e *emitter) common(doc *ParsedDocumentation, throwVerb string) {
	e.add(vocab.Summary, TruncateSummary(doc.Summary), summaryConfidence)
	if doc.IsDeprecated {
		msg := doc.Deprecated
		if msg == "" {
			msg = "Deprecated"
		}
		e.add(vocab.Deprecated, msg, deprecatedConfidence)
	}
	for _, ref := range doc.SeeRefs {
		e.add(vocab.Ref, ref, defaultConfidence)
	}
	for _, todo := range doc.Todos {
		e.add(vocab.Hack, `reason="`+strings.ReplaceAll(todo, `"`, `'`)+`"`, defaultConfidence)
	}
	if len(doc.Params) > 0 {
		names := make([]string, 0, len(doc.Params))
		for _, p := range doc.Params {
			names = append(names, p.Name)
		}
		e.add(vocab.AiHint, "params: "+strings.Join(names, ", "), defaultConfidence)
	}
	if len(doc.Throws) > 0 {
		types := make([]string, 0, len(doc.Throws))
		for _, t := range doc.Throws {
			types = append(types, t.Type)
		}
		e.add(vocab.AiHint, throwVerb+" "+strings.Join(types, ", "), defaultConfidence)
	}
	for _, note := range doc.Notes {
		e.add(vocab.AiHint, TruncateSummary(note), defaultConfidence)
	}
	if len(doc.Examples) > 0 {
		e.add(vocab.AiHint, "has examples", defaultConfidence)
	}
}

// stripBlock removes a /** ... */ or /* ... */ frame and per-line leading '*'.
func stripBlock(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "/**")
	raw = strings.TrimPrefix(raw, "/*")
	raw = strings.TrimSuffix(raw, "*/")
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimRight(l, " \t\r")
		trimmed := strings.TrimLeft(l, " \t")
		if strings.HasPrefix(trimmed, "*") {
			trimmed = strings.TrimPrefix(trimmed, "*")
			trimmed = strings.TrimPrefix(trimmed, " ")
			l = trimmed
		} else {
			l = trimmed
		}
		out = append(out, l)
	}
	return trimBlankEdges(out)
}

// stripLinePrefix removes a line-comment prefix (and one following space)
// from every line.
func stripLinePrefix(raw string, prefixes ...string) []string {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimLeft(strings.TrimRight(l, " \t\r"), " \t")
		for _, p := range prefixes {
			if strings.HasPrefix(l, p) {
				l = strings.TrimPrefix(l, p)
				l = strings.TrimPrefix(l, " ")
				break
			}
		}
		out = append(out, l)
	}
	return trimBlankEdges(out)
}

func trimBlankEdges(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// dedent strips the minimum common leading whitespace of non-blank lines.
func dedent(lines []string) []string {
	minIndent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if minIndent < 0 || n < minIndent {
			minIndent = n
		}
	}
	if minIndent <= 0 {
		return lines
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if len(l) >= minIndent {
			out[i] = l[minIndent:]
		} else {
			out[i] = strings.TrimLeft(l, " \t")
		}
	}
	return out
}

// paragraphs splits lines at blank lines, joining each paragraph's lines.
func paragraphs(lines []string) []string {
	var out []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			flush()
			continue
		}
		cur = append(cur, strings.TrimSpace(l))
	}
	flush()
	return out
}

var inlineLinkRe = regexp.MustCompile(`\{@link(?:code|plain)?\s+([^}\s|]+)[^}]*\}`)

// extractInlineLinks adds {@link X} targets to the doc and returns text
// with each tag replaced by its target.
func extractInlineLinks(doc *ParsedDocumentation, text string) string {
	for _, m := range inlineLinkRe.FindAllStringSubmatch(text, -1) {
		doc.AddSeeRef(m[1])
	}
	return inlineLinkRe.ReplaceAllString(text, "$1")
}
