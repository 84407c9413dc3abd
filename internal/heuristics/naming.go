package heuristics

import (
	"strings"

	"github.com/phobologic/acp/internal/vocab"
)

var (
	securityPhrases = []string{
		"auth", "token", "password", "passwd", "secret", "credential", "crypt",
		"hash", "signature", "permission", "oauth", "jwt", "apikey", "api_key", "private_key",
	}
	dataPhrases         = []string{"repository", "repo", "store", "db", "database", "dao", "persist", "query"}
	testPhrases         = []string{"test", "spec", "mock", "fixture", "stub", "fake"}
	experimentalPhrases = []string{"experimental", "wip", "temp", "tmp", "prototype", "draft"}
	handlerPhrases      = []string{"handler", "controller"}
	servicePhrases      = []string{"service"}
	middlewarePhrases   = []string{"middleware"}
)

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// NamingHeuristics infers annotations from an identifier by substring match
// against curated phrase sets.
type NamingHeuristics struct{}

// Suggest returns heuristic suggestions for a symbol name, keeping the most
// confident value per annotation type.
func (NamingHeuristics) Suggest(target string, line int, name string) []vocab.Suggestion {
	lower := strings.ToLower(name)
	var out []vocab.Suggestion
	add := func(typ vocab.AnnotationType, value string, conf float64) {
		for i := range out {
			if out[i].Type == typ {
				if conf > out[i].Confidence {
					out[i] = vocab.New(target, line, typ, value, vocab.Heuristic, conf)
				}
				return
			}
		}
		out = append(out, vocab.New(target, line, typ, value, vocab.Heuristic, conf))
	}

	if containsAny(lower, securityPhrases) {
		add(vocab.Lock, "restricted", 0.8)
		add(vocab.AiHint, "security-sensitive", 0.8)
		add(vocab.Domain, "security", 0.7)
	}
	if containsAny(lower, dataPhrases) {
		add(vocab.Domain, "data", 0.7)
		add(vocab.Layer, "repository", 0.6)
	}
	if containsAny(lower, testPhrases) {
		add(vocab.Domain, "tests", 0.9)
	}
	if containsAny(lower, experimentalPhrases) {
		add(vocab.Stability, "experimental", 0.8)
	}
	if containsAny(lower, handlerPhrases) {
		add(vocab.Layer, "handler", 0.7)
	}
	if containsAny(lower, servicePhrases) {
		add(vocab.Layer, "service", 0.7)
	}
	if containsAny(lower, middlewarePhrases) {
		add(vocab.Layer, "middleware", 0.7)
	}
	return out
}
