package annotate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/phobologic/acp/internal/symbols"
	"github.com/phobologic/acp/internal/vocab"
)

// FileChange is one insertion of annotations for a single target.
type FileChange struct {
	Target      string             `json:"target"`
	Symbol      string             `json:"symbol,omitempty"`
	Kind        symbols.Kind       `json:"kind,omitempty"`
	Line        int                `json:"line"`
	Suggestions []vocab.Suggestion `json:"suggestions"`
	DocRange    *DocRange          `json:"doc_range,omitempty"`
}

// CommentStyle describes how a language writes a doc block.
type CommentStyle struct {
	Open  string // opening line, "" for line-comment styles
	Line  string // prefix of each interior line
	Close string // closing line, "" for line-comment styles
}

var (
	blockStyle     = CommentStyle{Open: "/**", Line: " * ", Close: " */"}
	goStyle        = CommentStyle{Line: "// "}
	rustStyle      = CommentStyle{Line: "/// "}
	rustModStyle   = CommentStyle{Line: "//! "}
	pythonDocStyle = CommentStyle{Open: `"""`, Close: `"""`}
	hashStyle      = CommentStyle{Line: "# "}
)

// StyleFor returns the comment style for a language and target kind.
func StyleFor(language string, fileLevel bool) (CommentStyle, bool) {
	switch language {
	case "typescript", "javascript", "java":
		return blockStyle, true
	case "go":
		return goStyle, true
	case "rust":
		if fileLevel {
			return rustModStyle, true
		}
		return rustStyle, true
	case "python":
		if fileLevel {
			return hashStyle, true
		}
		return pythonDocStyle, true
	}
	return CommentStyle{}, false
}

// Writer turns suggestions into source edits.
type Writer struct{}

// NewWriter returns a writer.
func NewWriter() *Writer { return &Writer{} }

// Plan groups suggestions by target into changes sorted by line descending.
// Targets without a gap and types already present are dropped, so a fully
// annotated file plans no changes.
func (w *Writer) Plan(res *AnalysisResult, sugs []vocab.Suggestion) []FileChange {
	byTarget := make(map[string]*FileChange)
	var order []string
	for _, s := range sugs {
		g := res.Gap(s.Target)
		if g == nil || !g.IsMissing(s.Type) {
			continue
		}
		fc, ok := byTarget[s.Target]
		if !ok {
			fc = &FileChange{Target: s.Target, Kind: g.Kind, Line: g.Line, DocRange: g.DocRange}
			if !g.IsFile() {
				fc.Symbol = g.Name
			}
			byTarget[s.Target] = fc
			order = append(order, s.Target)
		}
		if hasType(fc.Suggestions, s.Type) {
			continue
		}
		fc.Suggestions = append(fc.Suggestions, s)
	}

	changes := make([]FileChange, 0, len(order))
	for _, t := range order {
		fc := byTarget[t]
		sort.SliceStable(fc.Suggestions, func(i, j int) bool {
			return typeRank(fc.Suggestions[i].Type) < typeRank(fc.Suggestions[j].Type)
		})
		changes = append(changes, *fc)
	}
	// Bottom-up so earlier line numbers stay valid; on a tie the file header
	// goes last so it ends up above the symbol's block.
	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].Line != changes[j].Line {
			return changes[i].Line > changes[j].Line
		}
		return changes[i].Symbol != "" && changes[j].Symbol == ""
	})
	return changes
}

func hasType(sugs []vocab.Suggestion, t vocab.AnnotationType) bool {
	for _, s := range sugs {
		if s.Type == t {
			return true
		}
	}
	return false
}

func typeRank(t vocab.AnnotationType) int {
	for i, at := range vocab.AllTypes {
		if at == t {
			return i
		}
	}
	return len(vocab.AllTypes)
}

// Render applies changes to the analyzed content and returns the new content
// and the number of changes applied. Changes that cannot be placed are
// skipped.
func (w *Writer) Render(res *AnalysisResult, changes []FileChange) (string, int) {
	lines := append([]string(nil), res.Lines...)
	eol := ""
	if strings.Contains(string(res.Content), "\r\n") {
		eol = "\r"
	}
	applied := 0
	for _, fc := range changes {
		fileLevel := fc.Symbol == "" && fc.Kind == ""
		style, ok := StyleFor(res.Language, fileLevel)
		if !ok || fc.Line < 1 || fc.Line > len(lines) {
			continue
		}
		var next []string
		if fc.DocRange != nil {
			next, ok = insertIntoDoc(lines, fc, style, eol)
		} else {
			next, ok = insertNewDoc(lines, fc, style, eol, res.Language, fileLevel)
		}
		if ok {
			lines = next
			applied++
		}
	}
	return strings.Join(lines, "\n"), applied
}

// Apply writes the changes to path. It reports whether the file changed.
func (w *Writer) Apply(path string, res *AnalysisResult, changes []FileChange) (bool, error) {
	out, n := w.Render(res, changes)
	if n == 0 || out == string(res.Content) {
		return false, nil
	}
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := os.WriteFile(path, []byte(out), mode); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}

// Preview returns a unified diff of the changes with three lines of context.
func (w *Writer) Preview(res *AnalysisResult, changes []FileChange) (string, error) {
	out, n := w.Render(res, changes)
	if n == 0 {
		return "", nil
	}
	name := filepath.ToSlash(res.Path)
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(res.Content)),
		B:        difflib.SplitLines(out),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func directives(sugs []vocab.Suggestion) []string {
	out := make([]string, len(sugs))
	for i, s := range sugs {
		out[i] = s.Directive()
	}
	return out
}

// presentInRange returns the @acp types already written inside r.
func presentInRange(lines []string, r DocRange) map[vocab.AnnotationType]bool {
	present := make(map[vocab.AnnotationType]bool)
	for i := r.Start - 1; i < r.End && i < len(lines); i++ {
		if m := annotationRe.FindStringSubmatch(strings.TrimRight(lines[i], " \t\r")); m != nil {
			if t, ok := vocab.ParseAnnotationType(m[1]); ok {
				present[t] = true
			}
		}
	}
	return present
}

func insertLines(lines []string, at int, add []string) []string {
	out := make([]string, 0, len(lines)+len(add))
	out = append(out, lines[:at]...)
	out = append(out, add...)
	return append(out, lines[at:]...)
}

// insertIntoDoc adds directives inside an existing doc comment, right after
// its first line.
func insertIntoDoc(lines []string, fc FileChange, style CommentStyle, eol string) ([]string, bool) {
	r := *fc.DocRange
	if r.Start < 1 || r.End > len(lines) {
		return nil, false
	}
	present := presentInRange(lines, r)
	var sugs []vocab.Suggestion
	for _, s := range fc.Suggestions {
		if !present[s.Type] {
			sugs = append(sugs, s)
		}
	}
	if len(sugs) == 0 {
		return nil, false
	}

	first := strings.TrimRight(lines[r.Start-1], "\r")
	indent := indentOf(first)
	trimmed := strings.TrimSpace(first)

	switch {
	case style == pythonDocStyle:
		if r.Start == r.End {
			// Split a one-line docstring so directives can sit inside it.
			quote := `"""`
			if strings.Contains(trimmed, `'''`) {
				quote = `'''`
			}
			body := strings.TrimSuffix(trimmed, quote)
			split := []string{indent + body + eol}
			for _, d := range directives(sugs) {
				split = append(split, indent+d+eol)
			}
			split = append(split, indent+quote+eol)
			replaceRange(&lines, r.Start-1, r.Start, split)
			return lines, true
		}
		add := make([]string, 0, len(sugs))
		for _, d := range directives(sugs) {
			add = append(add, indent+d+eol)
		}
		return insertLines(lines, r.Start, add), true

	case style.Open != "" && strings.HasPrefix(trimmed, "/*"):
		if r.Start == r.End && strings.HasPrefix(trimmed, "/*") && strings.HasSuffix(trimmed, "*/") {
			// Expand /** text */ into a multi-line block.
			body := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(trimmed, "/**"), "/*"), "*/"))
			block := []string{indent + style.Open + eol}
			for _, d := range directives(sugs) {
				block = append(block, indent+style.Line+d+eol)
			}
			if body != "" {
				block = append(block, indent+style.Line+body+eol)
			}
			block = append(block, indent+style.Close+eol)
			replaceRange(&lines, r.Start-1, r.Start, block)
			return lines, true
		}
		add := make([]string, 0, len(sugs))
		for _, d := range directives(sugs) {
			add = append(add, indent+style.Line+d+eol)
		}
		return insertLines(lines, r.Start, add), true

	default:
		prefix := strings.TrimRight(style.Line, " ")
		if strings.HasPrefix(trimmed, "//!") {
			prefix = "//!"
		} else if strings.HasPrefix(trimmed, "///") {
			prefix = "///"
		} else if strings.HasPrefix(trimmed, "//") {
			prefix = "//"
		}
		add := make([]string, 0, len(sugs))
		for _, d := range directives(sugs) {
			add = append(add, indent+prefix+" "+d+eol)
		}
		return insertLines(lines, r.Start, add), true
	}
}

// replaceRange replaces lines[from:to] with repl.
func replaceRange(lines *[]string, from, to int, repl []string) {
	out := make([]string, 0, len(*lines)-(to-from)+len(repl))
	out = append(out, (*lines)[:from]...)
	out = append(out, repl...)
	out = append(out, (*lines)[to:]...)
	*lines = out
}

// insertNewDoc renders a fresh comment block above the target, or for Python
// definitions a docstring below the header.
func insertNewDoc(lines []string, fc FileChange, style CommentStyle, eol, language string, fileLevel bool) ([]string, bool) {
	ds := directives(fc.Suggestions)
	if len(ds) == 0 {
		return nil, false
	}

	if style == pythonDocStyle {
		header, ok := PythonHeaderEnd(lines, fc.Line)
		if !ok {
			return nil, false
		}
		indent := indentOf(lines[fc.Line-1]) + "    "
		for i := header; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) != "" {
				if ind := indentOf(lines[i]); len(ind) > len(indentOf(lines[fc.Line-1])) {
					indent = ind
				}
				break
			}
		}
		block := []string{indent + style.Open + eol}
		for _, d := range ds {
			block = append(block, indent+d+eol)
		}
		block = append(block, indent+style.Close+eol)
		return insertLines(lines, header, block), true
	}

	at := fc.Line - 1
	if fileLevel {
		at = fileHeaderInsertion(lines, language)
	}
	indent := ""
	if !fileLevel {
		indent = indentOf(lines[at])
	}

	var block []string
	if style.Open != "" {
		block = append(block, indent+style.Open+eol)
	}
	for _, d := range ds {
		block = append(block, indent+style.Line+d+eol)
	}
	if style.Close != "" {
		block = append(block, indent+style.Close+eol)
	}
	if fileLevel && at < len(lines) && separateHeader(style, lines[at]) {
		block = append(block, eol)
	}
	return insertLines(lines, at, block), true
}

// separateHeader reports whether a blank line must follow a file-level block
// inserted above next. Rust inner docs merge with existing //! lines.
func separateHeader(style CommentStyle, next string) bool {
	t := strings.TrimSpace(next)
	if t == "" {
		return false
	}
	return !(style == rustModStyle && strings.HasPrefix(t, "//!"))
}

// fileHeaderInsertion returns the 0-indexed line where a file-level block
// goes: after a shebang and, for Python, an encoding declaration.
func fileHeaderInsertion(lines []string, language string) int {
	at := 0
	if at < len(lines) && strings.HasPrefix(lines[at], "#!") {
		at++
	}
	if language == "python" && at < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[at]), "#") &&
		strings.Contains(lines[at], "coding") {
		at++
	}
	return at
}
