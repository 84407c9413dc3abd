package annotate

import (
	"strings"

	"github.com/phobologic/acp/internal/docstd"
	"github.com/phobologic/acp/internal/heuristics"
	"github.com/phobologic/acp/internal/symbols"
	"github.com/phobologic/acp/internal/vocab"
)

// Confidence of suggestions derived without any source text.
const (
	identifierSummaryConfidence = 0.5
	visibilityLockConfidence    = 0.5
)

type accKey struct {
	target string
	typ    vocab.AnnotationType
}

// Accumulator merges suggestions per (target, type). A new suggestion
// replaces the held one only if its source takes precedence, or the sources
// are equal and its confidence is higher.
type Accumulator struct {
	entries map[accKey]vocab.Suggestion
	order   []accKey
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{entries: make(map[accKey]vocab.Suggestion)}
}

// Offer merges s into the accumulator.
func (a *Accumulator) Offer(s vocab.Suggestion) {
	if strings.TrimSpace(s.Value) == "" && s.Type != vocab.Deprecated {
		return
	}
	k := accKey{s.Target, s.Type}
	cur, ok := a.entries[k]
	if !ok {
		a.entries[k] = s
		a.order = append(a.order, k)
		return
	}
	if s.Source.Precedes(cur.Source) || (s.Source == cur.Source && s.Confidence > cur.Confidence) {
		a.entries[k] = s
	}
}

// OfferAll merges each suggestion in order.
func (a *Accumulator) OfferAll(sugs []vocab.Suggestion) {
	for _, s := range sugs {
		a.Offer(s)
	}
}

// Get returns the held suggestion for (target, typ).
func (a *Accumulator) Get(target string, typ vocab.AnnotationType) (vocab.Suggestion, bool) {
	s, ok := a.entries[accKey{target, typ}]
	return s, ok
}

// Suggestions returns the merged set in first-offer order.
func (a *Accumulator) Suggestions() []vocab.Suggestion {
	out := make([]vocab.Suggestion, 0, len(a.order))
	for _, k := range a.order {
		out = append(out, a.entries[k])
	}
	return out
}

// Suggester proposes values for analysis gaps.
type Suggester struct {
	Level  vocab.Level
	Paths  *heuristics.PathHeuristics
	Naming heuristics.NamingHeuristics
}

// NewSuggester returns a suggester for level with a custom domain map.
func NewSuggester(level vocab.Level, customDomains map[string]string) *Suggester {
	return &Suggester{Level: level, Paths: heuristics.NewPathHeuristics(customDomains)}
}

// Suggest returns merged suggestions for every gap in res, restricted to
// each gap's missing types and the suggester's level.
func (s *Suggester) Suggest(res *AnalysisResult) []vocab.Suggestion {
	var out []vocab.Suggestion
	for i := range res.Gaps {
		g := &res.Gaps[i]
		acc := NewAccumulator()
		s.offerExplicit(acc, res, g)
		s.offerConverted(acc, res, g)
		if g.IsFile() {
			acc.OfferAll(s.Paths.Suggest(g.Target, g.Line, res.Path))
		} else {
			acc.OfferAll(s.Naming.Suggest(g.Target, g.Line, g.Name))
			if summary, ok := heuristics.SummaryFromIdentifier(g.Name, g.Kind); ok {
				acc.Offer(vocab.New(g.Target, g.Line, vocab.Summary, summary, vocab.Heuristic, identifierSummaryConfidence))
			}
			if g.Exported && g.Visibility == symbols.Public {
				acc.Offer(vocab.New(g.Target, g.Line, vocab.Lock, "normal", vocab.Heuristic, visibilityLockConfidence))
			}
		}
		for _, sug := range acc.Suggestions() {
			if sug.Source == vocab.Explicit || !g.IsMissing(sug.Type) || !s.Level.Includes(sug.Type) {
				continue
			}
			out = append(out, sug)
		}
	}
	return out
}

// offerExplicit seeds the accumulator with annotations already in source so
// that nothing weaker can displace them.
func (s *Suggester) offerExplicit(acc *Accumulator, res *AnalysisResult, g *Gap) {
	for _, a := range res.Annotations {
		if a.Target == g.Target || g.DocRange.Contains(a.Line) {
			acc.Offer(vocab.New(g.Target, g.Line, a.Type, a.Value, vocab.Explicit, 1))
		}
	}
}

func (s *Suggester) offerConverted(acc *Accumulator, res *AnalysisResult, g *Gap) {
	if strings.TrimSpace(g.DocComment) == "" {
		return
	}
	conv := converterFor(res, g)
	if conv == nil {
		return
	}
	sugs := conv.ToSuggestions(conv.Parse(g.DocComment), g.Target, g.Line)
	if g.IsFile() {
		// A module doc's summary names the file.
		for _, sug := range sugs {
			if sug.Type == vocab.Summary {
				name := strings.TrimSuffix(docstd.FirstSentence(sug.Value), ".")
				acc.Offer(vocab.New(g.Target, g.Line, vocab.Module, name, vocab.Converted, sug.Confidence))
			}
		}
	}
	acc.OfferAll(sugs)
}

func converterFor(res *AnalysisResult, g *Gap) docstd.Converter {
	if res.Language == "java" {
		switch {
		case g.IsFile():
			return docstd.NewJavadoc().ForPackage()
		case g.Kind == symbols.Class || g.Kind == symbols.Interface || g.Kind == symbols.Enum:
			return docstd.NewJavadoc().ForType()
		}
	}
	name := g.Name
	if g.IsFile() {
		name = ""
	}
	return docstd.ForLanguage(res.Language, name)
}
