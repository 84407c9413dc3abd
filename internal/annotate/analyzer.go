package annotate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phobologic/acp/internal/lang"
	"github.com/phobologic/acp/internal/parse"
	"github.com/phobologic/acp/internal/symbols"
	"github.com/phobologic/acp/internal/vocab"
)

// fileLevelTypes are the annotation types a file header may carry.
var fileLevelTypes = map[vocab.AnnotationType]bool{
	vocab.Module: true, vocab.Domain: true, vocab.Layer: true, vocab.Lock: true, vocab.Stability: true,
}

// Gap is a target missing annotation types the level requires.
type Gap struct {
	Target     string                 `json:"target"`
	Line       int                    `json:"line"`
	Name       string                 `json:"name,omitempty"`
	Kind       symbols.Kind           `json:"kind,omitempty"`
	Visibility symbols.Visibility     `json:"visibility,omitempty"`
	Exported   bool                   `json:"exported"`
	Missing    []vocab.AnnotationType `json:"missing"`
	DocComment string                 `json:"doc_comment,omitempty"`
	DocRange   *DocRange              `json:"doc_range,omitempty"`
}

// IsFile reports a file-level gap.
func (g *Gap) IsFile() bool { return g.Kind == "" }

// IsMissing reports whether t is among the gap's missing types.
func (g *Gap) IsMissing(t vocab.AnnotationType) bool {
	for _, m := range g.Missing {
		if m == t {
			return true
		}
	}
	return false
}

// AnalysisResult is the per-file output of the analyzer.
type AnalysisResult struct {
	Path        string
	Language    string
	Content     []byte
	Lines       []string
	Symbols     []symbols.Symbol
	Imports     []symbols.Import
	Calls       []symbols.FunctionCall
	Annotations []ExistingAnnotation
	Gaps        []Gap
	ModuleDoc   string
	HasErrors   bool

	ranges map[string]*DocRange
	header int
}

// Gap returns the gap for target, or nil.
func (r *AnalysisResult) Gap(target string) *Gap {
	for i := range r.Gaps {
		if r.Gaps[i].Target == target {
			return &r.Gaps[i]
		}
	}
	return nil
}

// Analyzer computes annotation gaps for files.
// An Analyzer holds a parser cache and is not safe for concurrent use.
type Analyzer struct {
	Level   vocab.Level
	Window  int
	parsers *parse.Parsers
}

// NewAnalyzer returns an analyzer for level using parsers (nil for a private cache).
func NewAnalyzer(level vocab.Level, parsers *parse.Parsers) *Analyzer {
	if parsers == nil {
		parsers = parse.NewParsers()
	}
	return &Analyzer{Level: level, Window: DefaultBindingWindow, parsers: parsers}
}

// Close releases the analyzer's parsers.
func (a *Analyzer) Close() { a.parsers.Close() }

// AnalyzeFile reads root/rel and analyzes it. rel is recorded as the path.
func (a *Analyzer) AnalyzeFile(ctx context.Context, root, rel string) (*AnalysisResult, error) {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return a.AnalyzeSource(ctx, rel, content)
}

// AnalyzeSource analyzes in-memory content. Files of unknown languages are
// scanned for annotations but produce no gaps.
func (a *Analyzer) AnalyzeSource(ctx context.Context, path string, content []byte) (*AnalysisResult, error) {
	res := &AnalysisResult{
		Path:     path,
		Language: lang.ForExtension(filepath.Ext(path)),
		Content:  content,
		Lines:    splitLines(string(content)),
	}
	anns := ScanAnnotations(path, content)

	fr, err := parse.File(ctx, a.parsers, path, content)
	if errors.Is(err, parse.ErrUnsupportedLanguage) {
		res.Annotations = anns
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	res.Symbols = fr.Symbols
	res.Imports = fr.Imports
	res.Calls = fr.Calls
	res.ModuleDoc = fr.ModuleDoc
	res.HasErrors = fr.HasErrors
	res.Annotations = Rebind(anns, fr.Symbols, a.Window)
	res.header = headerEnd(res.Lines, res.Language)

	res.ranges = make(map[string]*DocRange)
	for i := range res.Symbols {
		s := &res.Symbols[i]
		if r, ok := a.docRange(res, s); ok {
			res.ranges[s.QualifiedName] = &r
		}
	}

	if g := a.fileGap(res); g != nil {
		res.Gaps = append(res.Gaps, *g)
	}
	starts := make(map[string]int, len(res.Symbols))
	for _, s := range res.Symbols {
		starts[s.QualifiedName] = s.StartLine
	}
	for i := range res.Symbols {
		s := &res.Symbols[i]
		if !s.IsAnnotatable() || !s.Exported {
			continue
		}
		// A member declared on its parent's line has nowhere of its own to
		// hold a comment.
		if line, ok := starts[s.Parent]; ok && s.Parent != "" && line == s.StartLine {
			continue
		}
		present := typesOf(res.SymbolAnnotations(s.QualifiedName))
		var missing []vocab.AnnotationType
		for _, t := range a.Level.Types() {
			if t == vocab.Module {
				continue
			}
			if !present[t] {
				missing = append(missing, t)
			}
		}
		if len(missing) == 0 {
			continue
		}
		res.Gaps = append(res.Gaps, Gap{
			Target:     s.QualifiedName,
			Line:       s.StartLine,
			Name:       s.Name,
			Kind:       s.Kind,
			Visibility: s.Visibility,
			Exported:   s.Exported,
			Missing:    missing,
			DocComment: s.DocComment,
			DocRange:   res.ranges[s.QualifiedName],
		})
	}
	return res, nil
}

func (a *Analyzer) docRange(res *AnalysisResult, s *symbols.Symbol) (DocRange, bool) {
	if res.Language == "python" && (s.Kind == symbols.Function || s.Kind == symbols.Method || s.Kind == symbols.Class) {
		return PythonDocstringRange(res.Lines, s.StartLine)
	}
	return DocCommentRange(res.Lines, s.StartLine)
}

// SymbolAnnotations returns the annotations owned by target: those inside
// its doc range plus those bound to it that sit below the file header and in
// no other symbol's doc range.
func (r *AnalysisResult) SymbolAnnotations(target string) []ExistingAnnotation {
	var out []ExistingAnnotation
	own := r.ranges[target]
	for _, a := range r.Annotations {
		if own.Contains(a.Line) || (a.Target == target && a.Line > r.header && !r.inOtherRange(a.Line, target)) {
			out = append(out, a)
		}
	}
	return out
}

// FileAnnotations returns the annotations owned by the file itself: those
// still bound to the path and those in the leading comment block, unless a
// symbol's doc range claims them.
func (r *AnalysisResult) FileAnnotations() []ExistingAnnotation {
	var out []ExistingAnnotation
	for _, a := range r.Annotations {
		if r.inOtherRange(a.Line, r.Path) {
			continue
		}
		if a.Target == r.Path || a.Line <= r.header {
			out = append(out, a)
		}
	}
	return out
}

// DocRange returns the doc comment range of target, or nil.
func (r *AnalysisResult) DocRange(target string) *DocRange { return r.ranges[target] }

func (r *AnalysisResult) inOtherRange(line int, target string) bool {
	for qn, dr := range r.ranges {
		if qn != target && dr.Contains(line) {
			return true
		}
	}
	return false
}

func typesOf(anns []ExistingAnnotation) map[vocab.AnnotationType]bool {
	present := make(map[vocab.AnnotationType]bool, len(anns))
	for _, a := range anns {
		present[a.Type] = true
	}
	return present
}

func (a *Analyzer) fileGap(res *AnalysisResult) *Gap {
	present := typesOf(res.FileAnnotations())
	var missing []vocab.AnnotationType
	for _, t := range a.Level.Types() {
		if fileLevelTypes[t] && !present[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &Gap{Target: res.Path, Line: 1, Exported: true, Missing: missing, DocComment: res.ModuleDoc}
}
