package docstd

import (
	"regexp"
	"strings"

	"github.com/phobologic/acp/internal/vocab"
)

// Rustdoc parses /// and //! Markdown doc comments.
type Rustdoc struct{}

// NewRustdoc returns a Rustdoc converter.
func NewRustdoc() *Rustdoc { return &Rustdoc{} }

var (
	rustSectionRe = regexp.MustCompile(`^#{1,3}\s+(Examples?|Arguments|Parameters|Returns|Panics|Errors|Safety|Type Parameters|See Also|Notes?|Warnings?)\s*$`)
	rustLinkRe    = regexp.MustCompile("\\[`?([A-Za-z_][\\w:]*(?:\\(\\))?)`?\\](?:\\(([^)]*)\\))?")
	rustItemRe    = regexp.MustCompile("^[*-]\\s+`?([\\w]+)`?\\s*(?:[-:]\\s*)?(.*)$")
)

var rustLinkIgnored = map[string]bool{"self": true, "Self": true, "crate": true, "super": true}

// Parse implements Converter.
func (r *Rustdoc) Parse(raw string) *ParsedDocumentation {
	doc := &ParsedDocumentation{}
	var lines []string
	trimmedRaw := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(trimmedRaw, "/*"):
		lines = stripBlock(trimmedRaw)
		if strings.HasPrefix(trimmedRaw, "/*!") {
			doc.AddTag("is_module_doc", "true")
		}
	default:
		if strings.HasPrefix(trimmedRaw, "//!") {
			doc.AddTag("is_module_doc", "true")
		}
		lines = stripLinePrefix(raw, "///", "//!")
	}

	var (
		section  string
		inCode   bool
		code     []string
		preamble []string
		content  = map[string][]string{}
		order    []string
	)
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "```") {
			if inCode {
				if section == "Examples" || section == "Example" || section == "" {
					if ex := strings.Join(code, "\n"); strings.TrimSpace(ex) != "" {
						doc.Examples = append(doc.Examples, ex)
					}
				}
				code = nil
			}
			inCode = !inCode
			continue
		}
		if inCode {
			code = append(code, l)
			continue
		}
		if m := rustSectionRe.FindStringSubmatch(trimmed); m != nil {
			section = m[1]
			if _, seen := content[section]; !seen {
				order = append(order, section)
				content[section] = nil
			}
			continue
		}
		for _, m := range rustLinkRe.FindAllStringSubmatch(l, -1) {
			if target := strings.TrimSuffix(m[1], "()"); !rustLinkIgnored[target] {
				doc.AddSeeRef(target)
			}
		}
		if section == "" {
			preamble = append(preamble, l)
		} else {
			content[section] = append(content[section], l)
		}
	}

	paras := paragraphs(preamble)
	if len(paras) > 0 {
		doc.Summary = paras[0]
		doc.Description = strings.Join(paras, "\n\n")
	}

	for _, name := range order {
		body := content[name]
		text := collapse(strings.Join(body, " "))
		switch name {
		case "Arguments", "Parameters":
			for _, l := range body {
				if m := rustItemRe.FindStringSubmatch(strings.TrimSpace(l)); m != nil {
					doc.Params = append(doc.Params, Param{Name: m[1], Description: strings.TrimSpace(m[2])})
				}
			}
		case "Returns":
			if text != "" {
				doc.Returns = &Returns{Description: text}
			}
		case "Panics":
			doc.AddTag("has_panics", "true")
			doc.AddTag("panics", text)
		case "Errors":
			doc.AddTag("returns_result", "true")
			doc.AddTag("errors", text)
		case "Safety":
			doc.AddTag("has_safety", "true")
			doc.AddTag("unsafe", "true")
			doc.AddTag("safety", text)
		case "Type Parameters":
			for _, l := range body {
				if m := rustItemRe.FindStringSubmatch(strings.TrimSpace(l)); m != nil {
					doc.AddTag("typeParam:"+m[1], strings.TrimSpace(m[2]))
				}
			}
		case "Notes", "Note":
			doc.Notes = append(doc.Notes, paragraphs(body)...)
		case "Warnings", "Warning":
			for _, p := range paragraphs(body) {
				doc.Notes = append(doc.Notes, "Warning: "+p)
			}
		case "Examples", "Example", "See Also":
			// fenced code and links were collected during the scan
		}
	}
	return doc
}

// ToSuggestions implements Converter.
func (r *Rustdoc) ToSuggestions(doc *ParsedDocumentation, target string, line int) []vocab.Suggestion {
	e := &emitter{target: target, line: line}
	e.common(doc, "errors")
	if doc.HasTag("is_module_doc") {
		e.add(vocab.Module, TruncateSummary(strings.TrimSuffix(FirstSentence(doc.Summary), ".")), summaryConfidence)
	}
	if doc.HasTag("has_panics") {
		v, _ := doc.Tag("panics")
		e.add(vocab.AiHint, TruncateSummary(joinText("panics:", v)), defaultConfidence)
	}
	if doc.HasTag("returns_result") {
		v, _ := doc.Tag("errors")
		e.add(vocab.AiHint, TruncateSummary(joinText("errors:", v)), defaultConfidence)
	}
	if doc.HasTag("has_safety") {
		v, _ := doc.Tag("safety")
		e.add(vocab.AiHint, TruncateSummary(joinText("unsafe; safety:", v)), defaultConfidence)
	}
	return e.out
}
