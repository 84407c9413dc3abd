// Package annotate finds @acp annotations in source, computes which
// annotations symbols are missing, proposes values for them and writes them
// back into files.
package annotate

import (
	"regexp"
	"sort"
	"strings"

	"github.com/phobologic/acp/internal/symbols"
	"github.com/phobologic/acp/internal/vocab"
)

// DefaultBindingWindow is how many lines below an annotation a symbol may
// start and still own it.
const DefaultBindingWindow = 20

// ExistingAnnotation is an @acp directive found in source.
type ExistingAnnotation struct {
	Target string               `json:"target"`
	Type   vocab.AnnotationType `json:"type"`
	Value  string               `json:"value"`
	Line   int                  `json:"line"`
}

var annotationRe = regexp.MustCompile(`@acp:([a-z][a-z0-9-]*)(?:\s+(.*))?$`)

// ScanAnnotations returns every @acp directive in content, bound to path.
// Unknown namespaces are discarded.
func ScanAnnotations(path string, content []byte) []ExistingAnnotation {
	var out []ExistingAnnotation
	for i, line := range splitLines(string(content)) {
		if !strings.Contains(line, "@acp:") {
			continue
		}
		m := annotationRe.FindStringSubmatch(strings.TrimRight(line, " \t\r"))
		if m == nil {
			continue
		}
		typ, ok := vocab.ParseAnnotationType(m[1])
		if !ok {
			continue
		}
		out = append(out, ExistingAnnotation{
			Target: path,
			Type:   typ,
			Value:  cleanValue(m[2]),
			Line:   i + 1,
		})
	}
	return out
}

// cleanValue strips comment closers and surrounding quotes from a raw value.
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	for _, closer := range []string{"*/", "-->", `"""`, "'''"} {
		v = strings.TrimSpace(strings.TrimSuffix(v, closer))
	}
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' && !strings.Contains(v[1:len(v)-1], `" `) {
		v = strings.ReplaceAll(v[1:len(v)-1], `\"`, `"`)
	}
	return v
}

// splitLines splits on '\n' without dropping a trailing empty line, so that
// strings.Join(splitLines(s), "\n") == s.
func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

// Rebind re-targets each annotation to the first symbol starting within
// (line, line+window]. Annotations with no such symbol keep their target.
func Rebind(anns []ExistingAnnotation, syms []symbols.Symbol, window int) []ExistingAnnotation {
	if window <= 0 {
		window = DefaultBindingWindow
	}
	ordered := make([]*symbols.Symbol, len(syms))
	for i := range syms {
		ordered[i] = &syms[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StartLine < ordered[j].StartLine })

	out := make([]ExistingAnnotation, len(anns))
	for i, a := range anns {
		out[i] = a
		idx := sort.Search(len(ordered), func(k int) bool { return ordered[k].StartLine > a.Line })
		if idx < len(ordered) && ordered[idx].StartLine <= a.Line+window {
			out[i].Target = ordered[idx].QualifiedName
		}
	}
	return out
}

// DocRange is an inclusive 1-indexed line range of a doc comment.
type DocRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether line lies within the range.
func (r *DocRange) Contains(line int) bool {
	return r != nil && line >= r.Start && line <= r.End
}

func isLineDoc(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//")
}

func isAttribute(trimmed string) bool {
	return strings.HasPrefix(trimmed, "@") || strings.HasPrefix(trimmed, "#[")
}

// DocCommentRange finds the doc comment above the declaration starting at
// startLine. Decorator and attribute lines between the comment and the
// declaration are skipped. A blank line ends the search.
func DocCommentRange(lines []string, startLine int) (DocRange, bool) {
	i := startLine - 2 // 0-indexed line above the declaration
	for i >= 0 && isAttribute(strings.TrimSpace(lines[i])) {
		i--
	}
	if i < 0 {
		return DocRange{}, false
	}
	trimmed := strings.TrimSpace(lines[i])
	switch {
	case strings.HasSuffix(trimmed, "*/"):
		// The block must open its own line; code followed by /* ... */
		// is not a doc comment.
		end := i
		for ; i >= 0; i-- {
			t := strings.TrimSpace(lines[i])
			if strings.Contains(t, "/*") {
				if !strings.HasPrefix(t, "/*") {
					return DocRange{}, false
				}
				return DocRange{Start: i + 1, End: end + 1}, true
			}
		}
		return DocRange{}, false
	case isLineDoc(trimmed):
		end := i
		for i >= 0 && isLineDoc(strings.TrimSpace(lines[i])) {
			i--
		}
		return DocRange{Start: i + 2, End: end + 1}, true
	}
	return DocRange{}, false
}

// PythonHeaderEnd returns the 1-indexed line ending a def or class header
// that starts at startLine, and whether the body starts on a later line.
func PythonHeaderEnd(lines []string, startLine int) (int, bool) {
	depth := 0
	for i := startLine - 1; i < len(lines); i++ {
		code := stripPythonComment(lines[i])
		for _, r := range code {
			switch r {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
			}
		}
		trimmed := strings.TrimSpace(code)
		if depth > 0 {
			continue
		}
		if strings.HasSuffix(trimmed, ":") {
			return i + 1, true
		}
		if strings.Contains(trimmed, ":") && !strings.HasPrefix(trimmed, "@") {
			return i + 1, false
		}
	}
	return 0, false
}

func stripPythonComment(line string) string {
	inStr := rune(0)
	for i, r := range line {
		switch {
		case inStr != 0:
			if r == inStr {
				inStr = 0
			}
		case r == '"' || r == '\'':
			inStr = r
		case r == '#':
			return line[:i]
		}
	}
	return line
}

// PythonDocstringRange finds the docstring of the def or class at startLine.
func PythonDocstringRange(lines []string, startLine int) (DocRange, bool) {
	header, multiline := PythonHeaderEnd(lines, startLine)
	if !multiline {
		return DocRange{}, false
	}
	i := header // 0-indexed first body line
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i >= len(lines) {
		return DocRange{}, false
	}
	first := strings.TrimLeft(strings.TrimSpace(lines[i]), "rRuU")
	var quote string
	for _, q := range []string{`"""`, `'''`} {
		if strings.HasPrefix(first, q) {
			quote = q
		}
	}
	if quote == "" {
		return DocRange{}, false
	}
	if rest := first[len(quote):]; strings.Contains(rest, quote) {
		return DocRange{Start: i + 1, End: i + 1}, true
	}
	for j := i + 1; j < len(lines); j++ {
		if strings.Contains(lines[j], quote) {
			return DocRange{Start: i + 1, End: j + 1}, true
		}
	}
	return DocRange{}, false
}

// headerEnd returns the last line of the leading comment block of a file.
// For Python a leading module docstring is part of the header.
func headerEnd(lines []string, language string) int {
	end := 0
	inBlock := false
	docstring := language == "python"
	for i := 0; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		switch {
		case inBlock:
			if strings.Contains(t, "*/") {
				inBlock = false
			}
		case t == "":
		case strings.HasPrefix(t, "/*"):
			inBlock = !strings.Contains(t[2:], "*/")
		case strings.HasPrefix(t, "//"), strings.HasPrefix(t, "#") && !strings.HasPrefix(t, "#["):
		case docstring && docstringQuote(t) != "":
			docstring = false
			q := docstringQuote(t)
			rest := t[strings.Index(t, q)+3:]
			for !strings.Contains(rest, q) && i+1 < len(lines) {
				i++
				rest = lines[i]
			}
		default:
			return end
		}
		end = i + 1
	}
	return end
}

// docstringQuote returns the triple quote opening t, allowing string
// prefixes such as r or u, or "".
func docstringQuote(t string) string {
	t = strings.TrimLeft(t, "rRuUbB")
	for _, q := range []string{`"""`, `'''`} {
		if strings.HasPrefix(t, q) {
			return q
		}
	}
	return ""
}
