// Package heuristics infers domain, layer, lock, stability and summary
// annotations from file paths and identifier names.
package heuristics

import (
	"path"
	"strings"

	"github.com/phobologic/acp/internal/vocab"
)

const (
	customConfidence = 0.8
	domainConfidence = 0.7
	layerConfidence  = 0.6
)

// domainByComponent maps a lowercased path component to a domain.
var domainByComponent = map[string]string{
	"auth":           "authentication",
	"authentication": "authentication",
	"login":          "authentication",
	"oauth":          "authentication",
	"session":        "authentication",
	"sessions":       "authentication",
	"billing":        "billing",
	"payment":        "billing",
	"payments":       "billing",
	"invoice":        "billing",
	"invoices":       "billing",
	"checkout":       "billing",
	"user":           "users",
	"users":          "users",
	"account":        "users",
	"accounts":       "users",
	"profile":        "users",
	"api":            "api",
	"graphql":        "api",
	"grpc":           "api",
	"rest":           "api",
	"handlers":       "handlers",
	"routes":         "routing",
	"router":         "routing",
	"db":             "database",
	"database":       "database",
	"models":         "database",
	"migrations":     "database",
	"schema":         "database",
	"__tests__":      "testing",
	"test":           "testing",
	"tests":          "testing",
	"spec":           "testing",
	"specs":          "testing",
	"fixtures":       "testing",
	"mocks":          "testing",
	"config":         "configuration",
	"configs":        "configuration",
	"settings":       "configuration",
	"util":           "utilities",
	"utils":          "utilities",
	"helpers":        "utilities",
	"common":         "utilities",
	"shared":         "utilities",
	"ui":             "ui",
	"components":     "ui",
	"views":          "ui",
	"pages":          "ui",
	"widgets":        "ui",
	"cli":            "cli",
	"cmd":            "cli",
	"http":           "networking",
	"net":            "networking",
	"network":        "networking",
	"cache":          "caching",
	"logging":        "logging",
	"metrics":        "observability",
	"monitoring":     "observability",
	"telemetry":      "observability",
	"security":       "security",
	"crypto":         "security",
	"storage":        "storage",
	"jobs":           "jobs",
	"workers":        "jobs",
	"queue":          "jobs",
	"notifications":  "notifications",
	"email":          "notifications",
	"search":         "search",
	"analytics":      "analytics",
	"admin":          "admin",
	"i18n":           "localization",
	"locales":        "localization",
}

// layerByComponent maps a lowercased path component to an architectural layer.
var layerByComponent = map[string]string{
	"handler":      "handler",
	"handlers":     "handler",
	"controller":   "handler",
	"controllers":  "handler",
	"routes":       "handler",
	"api":          "handler",
	"service":      "service",
	"services":     "service",
	"usecases":     "service",
	"model":        "model",
	"models":       "model",
	"entities":     "model",
	"entity":       "model",
	"repository":   "repository",
	"repositories": "repository",
	"repo":         "repository",
	"dao":          "repository",
	"store":        "repository",
	"stores":       "repository",
	"db":           "repository",
	"middleware":   "middleware",
	"middlewares":  "middleware",
	"util":         "utility",
	"utils":        "utility",
	"helpers":      "utility",
	"config":       "config",
	"views":        "presentation",
	"components":   "presentation",
	"cmd":          "cli",
	"cli":          "cli",
}

// PathHeuristics infers domain and layer from path components.
type PathHeuristics struct {
	// Custom maps a path component to a domain and is consulted first.
	Custom map[string]string
}

// NewPathHeuristics returns path heuristics with a user domain map.
func NewPathHeuristics(custom map[string]string) *PathHeuristics {
	lowered := make(map[string]string, len(custom))
	for k, v := range custom {
		lowered[strings.ToLower(k)] = v
	}
	return &PathHeuristics{Custom: lowered}
}

// Components splits a slash path into lowercased directory names followed by
// the words of the file stem.
func Components(p string) []string {
	p = strings.Trim(path.Clean(strings.ReplaceAll(p, "\\", "/")), "/")
	if p == "" || p == "." {
		return nil
	}
	parts := strings.Split(strings.ToLower(p), "/")
	dirs, file := parts[:len(parts)-1], parts[len(parts)-1]
	out := append([]string(nil), dirs...)
	stem := strings.TrimSuffix(file, path.Ext(file))
	out = append(out, stem)
	for _, w := range strings.FieldsFunc(stem, func(r rune) bool { return r == '_' || r == '-' || r == '.' }) {
		if w != stem {
			out = append(out, w)
		}
	}
	return out
}

// Suggest returns at most one domain and one layer suggestion for path.
func (h *PathHeuristics) Suggest(target string, line int, p string) []vocab.Suggestion {
	comps := Components(p)
	var out []vocab.Suggestion
	domain := func() (string, float64) {
		for _, c := range comps {
			if d, ok := h.Custom[c]; ok {
				return d, customConfidence
			}
		}
		for _, c := range comps {
			if d, ok := domainByComponent[c]; ok {
				return d, domainConfidence
			}
		}
		return "", 0
	}
	if d, conf := domain(); d != "" {
		out = append(out, vocab.New(target, line, vocab.Domain, d, vocab.Heuristic, conf))
	}
	for _, c := range comps {
		if l, ok := layerByComponent[c]; ok {
			out = append(out, vocab.New(target, line, vocab.Layer, l, vocab.Heuristic, layerConfidence))
			break
		}
	}
	return out
}

// DomainFor returns the inferred domain of a path, or "".
func (h *PathHeuristics) DomainFor(p string) string {
	for _, s := range h.Suggest("", 0, p) {
		if s.Type == vocab.Domain {
			return s.Value
		}
	}
	return ""
}

// LayerFor returns the inferred layer of a path, or "".
func (h *PathHeuristics) LayerFor(p string) string {
	for _, s := range h.Suggest("", 0, p) {
		if s.Type == vocab.Layer {
			return s.Value
		}
	}
	return ""
}
