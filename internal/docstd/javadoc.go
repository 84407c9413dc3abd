package docstd

import (
	"html"
	"regexp"
	"strings"

	"github.com/phobologic/acp/internal/vocab"
)

// Javadoc parses Javadoc comments.
type Javadoc struct {
	presetTag string
}

// NewJavadoc returns a Javadoc converter for member docs.
func NewJavadoc() *Javadoc { return &Javadoc{} }

// ForPackage returns a converter for package-info.java docs.
func (j *Javadoc) ForPackage() *Javadoc { return &Javadoc{presetTag: "package_doc"} }

// ForType returns a converter for class and interface docs.
func (j *Javadoc) ForType() *Javadoc { return &Javadoc{presetTag: "type_doc"} }

var (
	javaTagRe     = regexp.MustCompile(`^@(\w+)\s*(.*)$`)
	javaInheritRe = regexp.MustCompile(`\{@inheritDoc\}`)
	javaPreRe     = regexp.MustCompile(`(?is)<pre(?:\s[^>]*)?>(.*?)</pre>`)
	javaCodeTagRe = regexp.MustCompile(`(?i)</?code[^>]*>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]+>`)
)

// Parse implements Converter.
func (j *Javadoc) Parse(raw string) *ParsedDocumentation {
	doc := &ParsedDocumentation{}
	if j.presetTag != "" {
		doc.AddTag(j.presetTag, "true")
	}
	lines := stripBlock(raw)

	var desc []string
	type tagLine struct{ name, text string }
	var tags []tagLine
	inPre := false
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		lower := strings.ToLower(trimmed)
		if inPre || strings.Contains(lower, "<pre") {
			// Annotations such as @Override inside an example are code.
			open, closing := strings.LastIndex(lower, "<pre"), strings.LastIndex(lower, "</pre>")
			switch {
			case open > closing:
				inPre = true
			case closing >= 0:
				inPre = false
			}
			desc = append(desc, l)
			continue
		}
		if m := javaTagRe.FindStringSubmatch(trimmed); m != nil {
			tags = append(tags, tagLine{name: m[1], text: strings.TrimSpace(m[2])})
			continue
		}
		if len(tags) == 0 {
			desc = append(desc, l)
			continue
		}
		if trimmed != "" {
			t := &tags[len(tags)-1]
			t.text = joinText(t.text, trimmed)
		}
	}

	body := strings.Join(desc, "\n")
	if javaInheritRe.MatchString(raw) {
		doc.AddTag("inherits_doc", "true")
		body = javaInheritRe.ReplaceAllString(body, "")
	}
	for _, m := range javaPreRe.FindAllStringSubmatch(body, -1) {
		ex := unwrapCode(javaCodeTagRe.ReplaceAllString(m[1], ""), func(code string) string { return code })
		if ex = strings.TrimSpace(html.UnescapeString(ex)); ex != "" {
			doc.Examples = append(doc.Examples, ex)
		}
	}
	body = javaPreRe.ReplaceAllString(body, "")
	text := j.inline(doc, body)
	text = collapse(html.UnescapeString(htmlTagRe.ReplaceAllString(text, "")))
	doc.Summary = FirstSentence(text)
	doc.Description = text

	for _, t := range tags {
		val := collapse(j.inline(doc, t.text))
		switch t.name {
		case "param":
			name, d, _ := strings.Cut(val, " ")
			if name != "" {
				doc.Params = append(doc.Params, Param{Name: name, Description: strings.TrimSpace(d)})
			}
		case "return", "returns":
			doc.Returns = &Returns{Description: val}
		case "throws", "exception":
			typ, d, _ := strings.Cut(val, " ")
			if typ != "" {
				doc.Throws = append(doc.Throws, Throw{Type: typ, Description: strings.TrimSpace(d)})
			}
		case "author":
			doc.Author = val
		case "since":
			doc.Since = val
		case "version":
			doc.AddTag("version", val)
		case "see":
			doc.AddSeeRef(strings.Trim(htmlTagRe.ReplaceAllString(val, ""), `"`))
		case "deprecated":
			doc.SetDeprecated(val)
		}
	}
	return doc
}

// inline resolves {@link}, {@code} and {@inheritDoc} inline tags.
func (j *Javadoc) inline(doc *ParsedDocumentation, text string) string {
	text = extractInlineLinks(doc, text)
	text = unwrapCode(text, func(code string) string { return "`" + strings.TrimSpace(code) + "`" })
	return javaInheritRe.ReplaceAllString(text, "")
}

// unwrapCode replaces each {@code ...} and {@literal ...} with wrap applied
// to its body. Braces inside the body nest; an unclosed tag runs to the end.
func unwrapCode(text string, wrap func(string) string) string {
	var b strings.Builder
	for {
		start, bodyStart := -1, -1
		for _, tag := range []string{"{@code", "{@literal"} {
			if i := strings.Index(text, tag); i >= 0 && (start < 0 || i < start) {
				start, bodyStart = i, i+len(tag)
			}
		}
		if start < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:start])
		rest := text[bodyStart:]
		if rest != "" && (rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n') {
			rest = rest[1:]
		}
		depth, end := 1, len(rest)
		for i := 0; i < len(rest); i++ {
			if rest[i] == '{' {
				depth++
			} else if rest[i] == '}' {
				if depth--; depth == 0 {
					end = i
					break
				}
			}
		}
		b.WriteString(wrap(rest[:end]))
		if end < len(rest) {
			end++
		}
		text = rest[end:]
	}
}

// ToSuggestions implements Converter.
func (j *Javadoc) ToSuggestions(doc *ParsedDocumentation, target string, line int) []vocab.Suggestion {
	e := &emitter{target: target, line: line}
	e.common(doc, "throws")
	if doc.HasTag("package_doc") {
		e.add(vocab.Module, TruncateSummary(strings.TrimSuffix(doc.Summary, ".")), summaryConfidence)
	}
	if doc.HasTag("inherits_doc") {
		e.add(vocab.AiHint, "inherits documentation", defaultConfidence)
	}
	return e.out
}
