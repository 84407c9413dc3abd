package docstd

import (
	"regexp"
	"strings"

	"github.com/phobologic/acp/internal/vocab"
)

// Godoc parses Go doc comments.
type Godoc struct {
	// DeclaredName, when set, is checked against the summary's first word.
	DeclaredName string
}

// NewGodoc returns a Godoc converter for a declaration named declaredName
// (empty to skip the naming check).
func NewGodoc(declaredName string) *Godoc { return &Godoc{DeclaredName: declaredName} }

var (
	goBugRe     = regexp.MustCompile(`^BUG\(([^)]*)\):\s*(.*)$`)
	goTodoRe    = regexp.MustCompile(`^(?:TODO|FIXME|XXX)(?:\([^)]*\))?:?\s*(.*)$`)
	goSeeRe     = regexp.MustCompile(`^See(?: also)?:\s*(.+)$`)
	goDocLinkRe = regexp.MustCompile(`\[(\*?[A-Za-z_][\w]*(?:\.[A-Za-z_]\w*)*)\]`)
)

type goLine struct {
	text string
	code bool
}

func godocLines(raw string) []goLine {
	raw = strings.TrimSpace(raw)
	var out []goLine
	if strings.HasPrefix(raw, "/*") {
		body := strings.TrimSuffix(strings.TrimPrefix(raw, "/*"), "*/")
		for _, l := range strings.Split(body, "\n") {
			l = strings.TrimRight(l, " \t\r")
			code := strings.HasPrefix(l, "\t") || strings.HasPrefix(l, "    ")
			out = append(out, goLine{text: strings.TrimSpace(l), code: code && strings.TrimSpace(l) != ""})
		}
		return trimBlankGoLines(out)
	}
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimLeft(strings.TrimRight(l, " \t\r"), " \t")
		l = strings.TrimPrefix(l, "//")
		code := strings.HasPrefix(l, "\t") || strings.HasPrefix(l, "    ")
		if code {
			out = append(out, goLine{text: strings.TrimLeft(l, " \t"), code: true})
			continue
		}
		out = append(out, goLine{text: strings.TrimSpace(l)})
	}
	return trimBlankGoLines(out)
}

func trimBlankGoLines(lines []goLine) []goLine {
	for len(lines) > 0 && lines[0].text == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1].text == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Parse implements Converter.
func (g *Godoc) Parse(raw string) *ParsedDocumentation {
	doc := &ParsedDocumentation{}
	var (
		paras      []string
		cur        []string
		example    []string
		deprecated bool
		paraStart  = true
	)
	flushPara := func() {
		if len(cur) > 0 {
			paras = append(paras, strings.Join(cur, " "))
			cur = nil
		}
	}
	flushExample := func() {
		if len(example) > 0 {
			doc.Examples = append(doc.Examples, strings.Join(example, "\n"))
			example = nil
		}
	}

	for _, l := range godocLines(raw) {
		if l.code {
			flushPara()
			example = append(example, l.text)
			continue
		}
		flushExample()
		if l.text == "" {
			flushPara()
			deprecated = false
			paraStart = true
			continue
		}
		text := l.text
		switch {
		case paraStart && strings.HasPrefix(text, "Deprecated:"):
			flushPara()
			deprecated = true
			doc.SetDeprecated(strings.TrimPrefix(text, "Deprecated:"))
		case deprecated:
			doc.SetDeprecated(text)
		case goBugRe.MatchString(text):
			m := goBugRe.FindStringSubmatch(text)
			doc.Notes = append(doc.Notes, "BUG("+m[1]+"): "+m[2])
			if !doc.HasTag("has_bugs") {
				doc.AddTag("has_bugs", "true")
			}
		case goTodoRe.MatchString(text) && isTodoMarker(text):
			doc.Todos = append(doc.Todos, goTodoRe.FindStringSubmatch(text)[1])
		case goSeeRe.MatchString(text):
			for _, r := range strings.Split(goSeeRe.FindStringSubmatch(text)[1], ",") {
				doc.AddSeeRef(strings.TrimSuffix(strings.TrimSpace(r), "."))
			}
		default:
			for _, m := range goDocLinkRe.FindAllStringSubmatch(text, -1) {
				doc.AddSeeRef(strings.TrimPrefix(m[1], "*"))
			}
			cur = append(cur, text)
		}
		paraStart = false
	}
	flushPara()
	flushExample()

	if len(paras) > 0 {
		doc.Summary = FirstSentence(paras[0])
		doc.Description = strings.Join(paras, "\n\n")
	}
	if g.DeclaredName != "" && doc.Summary != "" && !startsWithName(doc.Summary, g.DeclaredName) {
		doc.AddTag("unconventional_doc", "true")
	}
	return doc
}

func isTodoMarker(text string) bool {
	for _, p := range []string{"TODO", "FIXME", "XXX"} {
		if strings.HasPrefix(text, p) {
			rest := text[len(p):]
			return rest == "" || rest[0] == '(' || rest[0] == ':' || rest[0] == ' '
		}
	}
	return false
}

// startsWithName accepts "Name ...", "A Name ...", "An Name ..." and
// "The Name ...".
func startsWithName(summary, name string) bool {
	for _, article := range []string{"", "A ", "An ", "The "} {
		rest, ok := strings.CutPrefix(summary, article)
		if !ok {
			continue
		}
		if rest == name || strings.HasPrefix(rest, name+" ") || strings.HasPrefix(rest, name+",") ||
			strings.HasPrefix(rest, name+".") || strings.HasPrefix(rest, name+"'") {
			return true
		}
	}
	return false
}

// ToSuggestions implements Converter.
func (g *Godoc) ToSuggestions(doc *ParsedDocumentation, target string, line int) []vocab.Suggestion {
	e := &emitter{target: target, line: line}
	e.common(doc, "returns")
	return e.out
}
