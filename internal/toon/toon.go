// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/acp/internal/constraints"
	"github.com/phobologic/acp/internal/ranking"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a ranked map into TOON format. Hotpaths keep their
// cache-wide rank but only those in view are listed. Constraint, hack and
// debug session tables are only emitted when they have rows.
func Encode(m *ranking.Map) string {
	c := m.Cache
	var parts []string

	parts = append(parts, fmt.Sprintf("project: %s", encodeValue(c.Project.Name)))
	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(c.Project.Root)))
	parts = append(parts, fmt.Sprintf("coverage: %s", strconv.FormatFloat(c.Stats.AnnotationCoverage, 'f', -1, 64)))

	kept := make(map[string]struct{}, len(m.Files))
	var fileRows [][]string
	for _, path := range m.Files {
		kept[path] = struct{}{}
		fe := c.Files[path]
		fileRows = append(fileRows, []string{
			fe.Path,
			fe.Language,
			fmt.Sprintf("%.4f", m.Rank[path]),
			strings.Join(fe.Domains, " "),
			fe.Layer,
			firstNonEmpty(fe.Summary, fe.Module),
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "language", "rank", "domains", "layer", "summary"}, fileRows))

	names := make(map[string]struct{}, 2*len(m.Symbols))
	var symbolRows [][]string
	for _, key := range m.Symbols {
		s := c.Symbols[key]
		names[s.QualifiedName] = struct{}{}
		names[s.Name] = struct{}{}
		symbolRows = append(symbolRows, []string{
			s.File,
			s.QualifiedName,
			string(s.Kind),
			strconv.Itoa(s.StartLine),
			s.Signature,
			s.Summary,
		})
	}
	parts = append(parts, formatTabular("symbols", []string{"file", "name", "kind", "line", "signature", "summary"}, symbolRows))

	var callRows [][]string
	for _, e := range m.Calls {
		callRows = append(callRows, []string{e.Caller, e.Callee})
	}
	parts = append(parts, formatTabular("calls", []string{"caller", "callee"}, callRows))

	var hotRows [][]string
	for i, name := range c.Hotpaths {
		if _, ok := names[name]; ok {
			hotRows = append(hotRows, []string{strconv.Itoa(i + 1), name})
		}
	}
	parts = append(parts, formatTabular("hotpaths", []string{"rank", "symbol"}, hotRows))

	if x := c.Constraints; x != nil {
		var lockRows [][]string
		for _, path := range m.Files {
			fc := x.ByFile[path]
			if fc == nil || fc.Mutation == nil {
				continue
			}
			lockRows = append(lockRows, []string{path, string(fc.Mutation.Level), fc.Mutation.Reason})
		}
		if len(lockRows) > 0 {
			parts = append(parts, formatTabular("constraints", []string{"file", "lock", "reason"}, lockRows))
		}

		var hackRows [][]string
		for _, h := range x.HackMarkers {
			if _, ok := kept[h.File]; !ok {
				continue
			}
			hackRows = append(hackRows, []string{h.File, strconv.Itoa(h.Line), h.Reason, h.Ticket, expiry(h)})
		}
		if len(hackRows) > 0 {
			parts = append(parts, formatTabular("hacks", []string{"file", "line", "reason", "ticket", "expires"}, hackRows))
		}

		var sessionRows [][]string
		for _, s := range x.ActiveDebugSessions() {
			sessionRows = append(sessionRows, []string{s.ID, s.Problem, strings.Join(s.Files, " ")})
		}
		if len(sessionRows) > 0 {
			parts = append(parts, formatTabular("debug_sessions", []string{"id", "problem", "files"}, sessionRows))
		}
	}

	return strings.Join(parts, "\n")
}

func expiry(h constraints.HackMarker) string {
	if h.Expires == nil {
		return ""
	}
	return h.Expires.Format("2006-01-02")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
