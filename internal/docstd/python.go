package docstd

import (
	"regexp"
	"strings"

	"github.com/phobologic/acp/internal/vocab"
)

// PythonStyle is a docstring convention.
type PythonStyle string

const (
	StylePlain  PythonStyle = "plain"
	StyleGoogle PythonStyle = "google"
	StyleNumPy  PythonStyle = "numpy"
	StyleSphinx PythonStyle = "sphinx"
)

// Python parses docstrings in Google, NumPy, Sphinx or plain style.
type Python struct{}

// NewPython returns a docstring converter.
func NewPython() *Python { return &Python{} }

var (
	sphinxFieldRe  = regexp.MustCompile(`^:(param|parameter|arg|argument|key|keyword|type|returns?|rtype|raises?|except|exception|yields?|ytype|ivar|cvar|var|meta|deprecated|version|versionadded|since|note|warning|see|seealso|todo)\b([^:]*):\s*(.*)$`)
	googleHeaderRe = regexp.MustCompile(`^(Args|Arguments|Parameters|Params|Returns|Return|Yields|Yield|Receives|Raises|Exceptions|Warns|Note|Notes|Warning|Warnings|Example|Examples|See Also|References|Todo|Todos|Deprecated|Attributes|Class Attributes|Methods|Version|Since|Keyword Args|Keyword Arguments|Other Parameters):\s*$`)
	underlineRe    = regexp.MustCompile(`^-{3,}$`)

	googleEntryRe = regexp.MustCompile(`^(\*{0,2}[\w.]+)\s*(?:\(([^)]*)\))?:\s*(.*)$`)
	numpyEntryRe  = regexp.MustCompile(`^(\*{0,2}[\w.]+)\s+:\s*(.*)$`)
	typedPrefixRe = regexp.MustCompile(`^([\w.\[\], |]+?):\s+(.*)$`)
)

// DetectStyle classifies a docstring by its markers, in priority order
// Sphinx, Google, NumPy, plain.
func DetectStyle(raw string) PythonStyle {
	lines := docstringLines(raw)
	for _, l := range lines {
		if sphinxFieldRe.MatchString(strings.TrimSpace(l)) {
			return StyleSphinx
		}
	}
	for _, l := range lines {
		if googleHeaderRe.MatchString(strings.TrimSpace(l)) {
			return StyleGoogle
		}
	}
	for i := 0; i+1 < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" && underlineRe.MatchString(strings.TrimSpace(lines[i+1])) {
			return StyleNumPy
		}
	}
	return StylePlain
}

// docstringLines strips quotes and normalizes indentation the way Python's
// inspect.cleandoc does: the first line is trimmed, the rest dedented.
func docstringLines(raw string) []string {
	raw = strings.TrimSpace(raw)
	for _, q := range []string{`"""`, `'''`} {
		if strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) && len(raw) >= 2*len(q) {
			raw = raw[len(q) : len(raw)-len(q)]
			break
		}
	}
	lines := strings.Split(raw, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t\r")
	}
	if len(lines) == 0 {
		return nil
	}
	first := strings.TrimSpace(lines[0])
	rest := dedent(lines[1:])
	return trimBlankEdges(append([]string{first}, rest...))
}

// Parse implements Converter.
func (p *Python) Parse(raw string) *ParsedDocumentation {
	lines := docstringLines(raw)
	doc := &ParsedDocumentation{}
	switch DetectStyle(raw) {
	case StyleSphinx:
		parseSphinx(doc, lines)
	case StyleGoogle:
		parseSections(doc, lines, googleSections(lines), false)
	case StyleNumPy:
		parseSections(doc, lines, numpySections(lines), true)
	default:
		parsePlain(doc, lines)
	}
	return doc
}

func parsePlain(doc *ParsedDocumentation, lines []string) {
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		doc.Summary = strings.TrimSpace(l)
		doc.Description = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		return
	}
}

// setPreamble fills summary and description from the text before the first
// section or field.
func setPreamble(doc *ParsedDocumentation, lines []string) {
	paras := paragraphs(lines)
	if len(paras) == 0 {
		return
	}
	doc.Summary = FirstSentence(paras[0])
	if len(paras) > 1 {
		doc.Description = strings.Join(paras[1:], "\n\n")
	}
}

type section struct {
	name  string
	start int // first content line
	end   int // exclusive
}

func googleSections(lines []string) []section {
	var out []section
	for i, l := range lines {
		if m := googleHeaderRe.FindStringSubmatch(strings.TrimSpace(l)); m != nil {
			if n := len(out); n > 0 {
				out[n-1].end = i
			}
			out = append(out, section{name: m[1], start: i + 1, end: len(lines)})
		}
	}
	return out
}

func numpySections(lines []string) []section {
	var out []section
	for i := 0; i+1 < len(lines); i++ {
		name := strings.TrimSpace(lines[i])
		if name == "" || !underlineRe.MatchString(strings.TrimSpace(lines[i+1])) {
			continue
		}
		if n := len(out); n > 0 {
			out[n-1].end = i
		}
		out = append(out, section{name: name, start: i + 2, end: len(lines)})
		i++
	}
	return out
}

func parseSections(doc *ParsedDocumentation, lines []string, sections []section, numpy bool) {
	preambleEnd := len(lines)
	if len(sections) > 0 {
		preambleEnd = sections[0].start - 1
		if numpy {
			preambleEnd--
		}
	}
	setPreamble(doc, lines[:preambleEnd])
	for _, s := range sections {
		content := trimBlankEdges(dedent(append([]string(nil), lines[s.start:s.end]...)))
		applySection(doc, s.name, content, numpy)
	}
}

// entry is one item of a definition-list section: an unindented head line
// and its indented continuation.
type entry struct {
	head string
	body string
}

func entries(lines []string) []entry {
	var out []entry
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if !strings.HasPrefix(l, " ") && !strings.HasPrefix(l, "\t") || len(out) == 0 {
			out = append(out, entry{head: strings.TrimSpace(l)})
			continue
		}
		last := &out[len(out)-1]
		last.body = strings.TrimSpace(last.body + " " + strings.TrimSpace(l))
	}
	return out
}

// param parses "name (type): desc" or "name : type, optional".
func (en entry) param(numpy bool) Param {
	if numpy {
		if m := numpyEntryRe.FindStringSubmatch(en.head); m != nil {
			return Param{Name: m[1], Type: strings.TrimSuffix(strings.TrimSpace(m[2]), ", optional"), Description: en.body}
		}
		return Param{Name: en.head, Description: en.body}
	}
	if m := googleEntryRe.FindStringSubmatch(en.head); m != nil {
		return Param{Name: m[1], Type: strings.TrimSpace(m[2]), Description: joinText(m[3], en.body)}
	}
	return Param{Name: en.head, Description: en.body}
}

// trimBullet drops a leading "*" or "-" list marker.
func trimBullet(s string) string {
	for _, marker := range []string{"*", "-"} {
		if rest, ok := strings.CutPrefix(s, marker); ok && (rest == "" || rest[0] == ' ' || rest[0] == '\t') {
			return strings.TrimSpace(rest)
		}
	}
	return s
}

func joinText(a, b string) string {
	return strings.TrimSpace(strings.TrimSpace(a) + " " + strings.TrimSpace(b))
}

func applySection(doc *ParsedDocumentation, name string, content []string, numpy bool) {
	text := collapse(strings.Join(content, "\n"))
	switch name {
	case "Args", "Arguments", "Parameters", "Params":
		for _, en := range entries(content) {
			if p := en.param(numpy); p.Name != "" {
				doc.Params = append(doc.Params, p)
			}
		}
	case "Returns", "Return":
		doc.Returns = returnsFrom(content, numpy)
	case "Yields", "Yield":
		doc.Returns = returnsFrom(content, numpy)
		doc.AddTag("generator", "true")
	case "Receives":
		doc.AddTag("async_generator", "true")
	case "Raises", "Exceptions":
		for _, en := range entries(content) {
			t := Throw{Type: en.head, Description: en.body}
			if typ, desc, ok := strings.Cut(en.head, ":"); ok {
				t = Throw{Type: strings.TrimSpace(typ), Description: joinText(desc, en.body)}
			}
			if t.Type != "" {
				doc.Throws = append(doc.Throws, t)
			}
		}
	case "Warns":
		if text != "" {
			doc.Notes = append(doc.Notes, "May warn: "+text)
		}
	case "Note", "Notes":
		doc.Notes = append(doc.Notes, paragraphs(content)...)
	case "Warning", "Warnings":
		for _, p := range paragraphs(content) {
			doc.Notes = append(doc.Notes, "Warning: "+p)
		}
	case "Example", "Examples":
		if ex := strings.Join(content, "\n"); strings.TrimSpace(ex) != "" {
			doc.Examples = append(doc.Examples, ex)
		}
	case "See Also", "References":
		for _, en := range entries(content) {
			refs, _, _ := strings.Cut(en.head, ":")
			for _, r := range strings.Split(refs, ",") {
				doc.AddSeeRef(r)
			}
		}
	case "Todo", "Todos":
		for _, en := range entries(content) {
			if todo := joinText(trimBullet(en.head), en.body); todo != "" {
				doc.Todos = append(doc.Todos, todo)
			}
		}
	case "Deprecated":
		doc.SetDeprecated(text)
	case "Attributes", "Class Attributes":
		namedTags(doc, "attr:", content, numpy)
	case "Methods":
		namedTags(doc, "method:", content, numpy)
	case "Version":
		doc.AddTag("version", text)
	case "Since":
		doc.Since = text
	case "Keyword Args", "Keyword Arguments":
		namedTags(doc, "kwarg:", content, numpy)
	case "Other Parameters":
		namedTags(doc, "other_param:", content, numpy)
	default:
		if text != "" {
			doc.Description = strings.TrimSpace(doc.Description + "\n\n" + name + ": " + text)
		}
	}
}

func namedTags(doc *ParsedDocumentation, prefix string, content []string, numpy bool) {
	for _, en := range entries(content) {
		p := en.param(numpy)
		if p.Name == "" {
			continue
		}
		name := strings.TrimSuffix(p.Name, "()")
		doc.AddTag(prefix+name, p.Description)
	}
}

func returnsFrom(content []string, numpy bool) *Returns {
	ens := entries(content)
	if len(ens) == 0 {
		return nil
	}
	en := ens[0]
	if numpy {
		typ := en.head
		if m := numpyEntryRe.FindStringSubmatch(en.head); m != nil {
			typ = strings.TrimSpace(m[2])
		}
		return &Returns{Type: typ, Description: en.body}
	}
	if m := typedPrefixRe.FindStringSubmatch(en.head); m != nil {
		return &Returns{Type: strings.TrimSpace(m[1]), Description: joinText(m[2], en.body)}
	}
	return &Returns{Description: collapse(strings.Join(content, " "))}
}

func parseSphinx(doc *ParsedDocumentation, lines []string) {
	var pre []string
	type field struct{ tag, arg, text string }
	var fields []field
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if m := sphinxFieldRe.FindStringSubmatch(trimmed); m != nil {
			fields = append(fields, field{tag: m[1], arg: strings.TrimSpace(m[2]), text: strings.TrimSpace(m[3])})
			continue
		}
		if len(fields) == 0 {
			pre = append(pre, l)
			continue
		}
		if trimmed != "" {
			f := &fields[len(fields)-1]
			f.text = joinText(f.text, trimmed)
		}
	}
	setPreamble(doc, pre)

	for _, f := range fields {
		switch f.tag {
		case "param", "parameter", "arg", "argument", "key", "keyword":
			name, typ := f.arg, ""
			if i := strings.LastIndex(f.arg, " "); i >= 0 {
				typ, name = strings.TrimSpace(f.arg[:i]), f.arg[i+1:]
			}
			if existing := doc.Param(name); existing != nil {
				existing.Description = f.text
				if typ != "" {
					existing.Type = typ
				}
				continue
			}
			doc.Params = append(doc.Params, Param{Name: name, Type: typ, Description: f.text})
		case "type":
			if existing := doc.Param(f.arg); existing != nil {
				existing.Type = f.text
			} else if f.arg != "" {
				doc.Params = append(doc.Params, Param{Name: f.arg, Type: f.text})
			}
		case "returns", "return":
			if doc.Returns == nil {
				doc.Returns = &Returns{}
			}
			doc.Returns.Description = f.text
		case "rtype":
			if doc.Returns == nil {
				doc.Returns = &Returns{}
			}
			doc.Returns.Type = f.text
		case "yields", "yield":
			if doc.Returns == nil {
				doc.Returns = &Returns{}
			}
			doc.Returns.Description = f.text
			doc.AddTag("generator", "true")
		case "ytype":
			if doc.Returns == nil {
				doc.Returns = &Returns{}
			}
			doc.Returns.Type = f.text
		case "raises", "raise", "except", "exception":
			if f.arg != "" {
				doc.Throws = append(doc.Throws, Throw{Type: f.arg, Description: f.text})
			}
		case "ivar", "cvar", "var":
			doc.AddTag(f.tag+":"+f.arg, f.text)
		case "meta":
			doc.AddTag("meta:"+f.arg, f.text)
		case "deprecated":
			doc.SetDeprecated(f.text)
		case "version", "versionadded":
			doc.AddTag("version", f.text)
		case "since":
			doc.Since = f.text
		case "note":
			doc.Notes = append(doc.Notes, f.text)
		case "warning":
			doc.Notes = append(doc.Notes, "Warning: "+f.text)
		case "see", "seealso":
			for _, r := range strings.Split(joinText(f.arg, f.text), ",") {
				doc.AddSeeRef(r)
			}
		case "todo":
			doc.Todos = append(doc.Todos, f.text)
		}
	}
}

// ToSuggestions implements Converter.
func (p *Python) ToSuggestions(doc *ParsedDocumentation, target string, line int) []vocab.Suggestion {
	e := &emitter{target: target, line: line}
	e.common(doc, "raises")
	if doc.HasTag("generator") {
		e.add(vocab.AiHint, "generator", defaultConfidence)
	}
	if doc.HasTag("async_generator") {
		e.add(vocab.AiHint, "async generator", defaultConfidence)
	}
	return e.out
}
