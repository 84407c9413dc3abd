package constraints

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var hackFieldRe = regexp.MustCompile(`([A-Za-z_][\w-]*)=(?:"((?:[^"\\]|\\.)*)"|(\S+))`)

// HackMarker is a temporary workaround recorded with @acp:hack.
type HackMarker struct {
	File    string     `json:"file"`
	Line    int        `json:"line"`
	Target  string     `json:"target,omitempty"`
	Reason  string     `json:"reason,omitempty"`
	Ticket  string     `json:"ticket,omitempty"`
	Expires *time.Time `json:"expires,omitempty"`
}

// ParseHack reads reason=, ticket= and expires= fields from a hack value.
// A bare value with no fields becomes the reason. Unparseable dates leave
// Expires nil.
func ParseHack(file string, line int, value string) HackMarker {
	h := HackMarker{File: file, Line: line}
	matches := hackFieldRe.FindAllStringSubmatch(value, -1)
	if len(matches) == 0 {
		h.Reason = strings.Trim(strings.TrimSpace(value), `"`)
		return h
	}
	for _, m := range matches {
		v := m[3]
		if m[3] == "" {
			v = strings.ReplaceAll(m[2], `\"`, `"`)
		}
		switch strings.ToLower(m[1]) {
		case "reason":
			h.Reason = v
		case "ticket":
			h.Ticket = v
		case "expires":
			if t, ok := parseDate(v); ok {
				h.Expires = &t
			}
		}
	}
	return h
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// IsExpired reports whether the marker's expiry lies before now.
func (h HackMarker) IsExpired(now time.Time) bool {
	return h.Expires != nil && now.After(*h.Expires)
}

// DebugSession tracks an investigation across files.
type DebugSession struct {
	ID         string     `json:"id"`
	Problem    string     `json:"problem"`
	Files      []string   `json:"files,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
}

// NewDebugSession starts a session with a fresh identifier.
func NewDebugSession(problem string, files []string, now time.Time) DebugSession {
	return DebugSession{
		ID:        uuid.NewString(),
		Problem:   problem,
		Files:     files,
		StartedAt: now.UTC(),
	}
}

// Active reports whether the session is unresolved.
func (d DebugSession) Active() bool { return d.ResolvedAt == nil }
