package docstd

import (
	"regexp"
	"strings"

	"github.com/phobologic/acp/internal/vocab"
)

// JSDoc parses JSDoc and TSDoc block comments.
type JSDoc struct{}

// NewJSDoc returns a JSDoc/TSDoc converter.
func NewJSDoc() *JSDoc { return &JSDoc{} }

var (
	jsTagRe       = regexp.MustCompile(`^@(\w+)\s*(?:\{([^}]*)\})?\s*(.*)$`)
	jsParamNameRe = regexp.MustCompile(`^(\[[^\]]+\]|[\w$.]+)\s*(?:-\s*)?(.*)$`)
	inheritDocRe  = regexp.MustCompile(`\{@inheritDoc\s*([^}]*)\}`)
)

// jsMultiline tags keep collecting continuation lines verbatim.
var jsMultiline = map[string]bool{"remarks": true, "example": true, "privateRemarks": true}

type jsState struct {
	doc        *ParsedDocumentation
	desc       []string
	tag        string
	buf        []string
	hasSummary bool
	// continuation target for single-line tags
	cont *string
}

// Parse implements Converter.
func (j *JSDoc) Parse(raw string) *ParsedDocumentation {
	st := &jsState{doc: &ParsedDocumentation{}}
	for _, line := range stripBlock(raw) {
		trimmed := strings.TrimSpace(line)
		if m := jsTagRe.FindStringSubmatch(trimmed); m != nil {
			st.flush()
			st.dispatch(m[1], strings.TrimSpace(m[2]), strings.TrimSpace(m[3]))
			continue
		}
		switch {
		case st.tag != "" && jsMultiline[st.tag]:
			st.buf = append(st.buf, line)
		case st.tag != "":
			if trimmed != "" && st.cont != nil {
				*st.cont = strings.TrimSpace(*st.cont + " " + trimmed)
			}
		case trimmed != "":
			st.desc = append(st.desc, trimmed)
		}
	}
	st.flush()

	doc := st.doc
	if len(st.desc) > 0 {
		doc.Description = strings.Join(st.desc, "\n")
		if !st.hasSummary {
			doc.Summary = st.desc[0]
		}
	}
	doc.Summary = extractInlineLinks(doc, doc.Summary)
	doc.Description = extractInlineLinks(doc, doc.Description)
	if m := inheritDocRe.FindStringSubmatch(raw); m != nil {
		target := strings.TrimSpace(m[1])
		if target == "" {
			target = "true"
		}
		doc.AddTag("inheritDoc", target)
	}
	for i := range doc.Params {
		doc.Params[i].Description = extractInlineLinks(doc, doc.Params[i].Description)
	}
	for i := range doc.Notes {
		doc.Notes[i] = extractInlineLinks(doc, doc.Notes[i])
	}
	return doc
}

// flush closes a pending multiline tag.
func (st *jsState) flush() {
	if st.tag == "" {
		return
	}
	if jsMultiline[st.tag] {
		text := strings.Join(trimBlankEdges(st.buf), "\n")
		switch st.tag {
		case "example":
			if strings.TrimSpace(text) != "" {
				st.doc.Examples = append(st.doc.Examples, text)
			}
		case "remarks":
			if t := collapse(text); t != "" {
				st.doc.Notes = append(st.doc.Notes, t)
			}
		case "privateRemarks":
			st.doc.AddTag("privateRemarks", collapse(text))
		}
	}
	st.tag, st.buf, st.cont = "", nil, nil
}

func (st *jsState) dispatch(tag, typ, rest string) {
	doc := st.doc
	st.tag = tag
	switch tag {
	case "description", "desc":
		st.desc = append(st.desc, rest)
	case "summary":
		doc.Summary = rest
		st.hasSummary = true
		st.cont = &doc.Summary
	case "deprecated":
		doc.SetDeprecated(rest)
		st.cont = &doc.Deprecated
	case "see", "link":
		doc.AddSeeRef(strings.TrimSuffix(strings.TrimPrefix(extractInlineLinks(doc, rest), "{"), "}"))
	case "todo", "fixme":
		doc.Todos = append(doc.Todos, rest)
		st.cont = &doc.Todos[len(doc.Todos)-1]
	case "param", "arg", "argument":
		p := Param{Type: typ}
		if m := jsParamNameRe.FindStringSubmatch(rest); m != nil {
			name := m[1]
			if strings.HasPrefix(name, "[") {
				name = strings.Trim(name, "[]")
				if i := strings.Index(name, "="); i >= 0 {
					name = name[:i]
				}
			}
			p.Name = name
			p.Description = strings.TrimSpace(m[2])
		}
		if p.Name == "" {
			return
		}
		doc.Params = append(doc.Params, p)
		st.cont = &doc.Params[len(doc.Params)-1].Description
	case "returns", "return":
		doc.Returns = &Returns{Type: typ, Description: strings.TrimPrefix(rest, "- ")}
		st.cont = &doc.Returns.Description
	case "throws", "exception", "raise":
		t := Throw{Type: typ, Description: rest}
		if t.Type == "" {
			t.Type, t.Description, _ = strings.Cut(rest, " ")
		}
		t.Description = strings.TrimPrefix(strings.TrimSpace(t.Description), "- ")
		if t.Type == "" {
			return
		}
		doc.Throws = append(doc.Throws, t)
		st.cont = &doc.Throws[len(doc.Throws)-1].Description
	case "example", "remarks", "privateRemarks":
		if rest != "" {
			st.buf = append(st.buf, rest)
		}
	case "module", "fileoverview", "file":
		doc.AddTag("module", rest)
	case "packageDocumentation":
		doc.AddTag("packageDocumentation", "true")
	case "category", "group":
		doc.AddTag("category", rest)
	case "private", "internal", "protected", "public":
		doc.AddTag("visibility", tag)
	case "readonly":
		doc.AddTag("readonly", "true")
	case "since":
		doc.Since = rest
	case "author":
		doc.Author = rest
	case "note", "remark":
		doc.Notes = append(doc.Notes, rest)
		st.cont = &doc.Notes[len(doc.Notes)-1]
	case "warning", "warn":
		doc.Notes = append(doc.Notes, "Warning: "+rest)
		st.cont = &doc.Notes[len(doc.Notes)-1]
	case "alpha", "beta", "experimental":
		doc.AddTag("stability", tag)
	case "defaultValue", "default":
		doc.AddTag("defaultValue", rest)
	case "typeParam", "template":
		name, desc, _ := strings.Cut(rest, " ")
		doc.AddTag("typeParam:"+name, strings.TrimPrefix(strings.TrimSpace(desc), "- "))
	case "override", "virtual", "sealed", "eventProperty":
		doc.AddTag(tag, "true")
	}
}

// ToSuggestions implements Converter.
func (j *JSDoc) ToSuggestions(doc *ParsedDocumentation, target string, line int) []vocab.Suggestion {
	e := &emitter{target: target, line: line}
	e.common(doc, "throws")
	if v, ok := doc.Tag("visibility"); ok && (v == "private" || v == "internal") {
		e.add(vocab.Lock, "restricted", defaultConfidence)
	}
	if v, ok := doc.Tag("module"); ok {
		e.add(vocab.Module, v, summaryConfidence)
	}
	if v, ok := doc.Tag("category"); ok {
		e.add(vocab.Domain, strings.ToLower(v), defaultConfidence)
	}
	if v, ok := doc.Tag("stability"); ok {
		e.add(vocab.Stability, jsStability(v), defaultConfidence)
	}
	if doc.HasTag("sealed") {
		e.add(vocab.Lock, "strict", defaultConfidence)
	}
	if v, ok := doc.Tag("defaultValue"); ok {
		e.add(vocab.AiHint, "default: "+v, defaultConfidence)
	}
	if doc.HasTag("readonly") {
		e.add(vocab.AiHint, "readonly", defaultConfidence)
	}
	return e.out
}

// jsStability maps TSDoc release tags onto the stability vocabulary.
func jsStability(tag string) string {
	switch tag {
	case "alpha":
		return "volatile"
	case "beta":
		return "active"
	}
	return "experimental"
}
