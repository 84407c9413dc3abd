// Package vocab defines the closed @acp annotation vocabulary shared by the
// scanner, converters, suggester and writer.
package vocab

import (
	"fmt"
	"strings"
)

// AnnotationType is one namespace of the @acp vocabulary.
type AnnotationType string

const (
	Module     AnnotationType = "module"
	Summary    AnnotationType = "summary"
	Domain     AnnotationType = "domain"
	Layer      AnnotationType = "layer"
	Lock       AnnotationType = "lock"
	Stability  AnnotationType = "stability"
	Deprecated AnnotationType = "deprecated"
	AiHint     AnnotationType = "ai-hint"
	Ref        AnnotationType = "ref"
	Hack       AnnotationType = "hack"
	LockReason AnnotationType = "lock-reason"
)

// AllTypes lists every annotation type in canonical order.
var AllTypes = []AnnotationType{
	Module, Summary, Domain, Layer, Lock, Stability, Deprecated, AiHint, Ref, Hack, LockReason,
}

// ParseAnnotationType maps a namespace string to its type.
func ParseAnnotationType(namespace string) (AnnotationType, bool) {
	for _, t := range AllTypes {
		if string(t) == namespace {
			return t, true
		}
	}
	return "", false
}

// Namespace returns the canonical @acp namespace.
func (t AnnotationType) Namespace() string { return string(t) }

// Quoted reports whether values of this type are written as double-quoted
// strings. Enumerated types (domain, layer, lock, stability) are barewords
// and hack carries key=value pairs.
func (t AnnotationType) Quoted() bool {
	switch t {
	case Domain, Layer, Lock, Stability, Hack:
		return false
	}
	return true
}

// FormatValue renders a value the way it appears after the namespace.
func (t AnnotationType) FormatValue(value string) string {
	if !t.Quoted() {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}

// Format renders the full directive: @acp:summary "Loads config".
func (t AnnotationType) Format(value string) string {
	if value == "" {
		return "@acp:" + t.Namespace()
	}
	return "@acp:" + t.Namespace() + " " + t.FormatValue(value)
}

// Source is where a suggestion came from. Lower values take precedence.
type Source int

const (
	Explicit Source = iota
	Converted
	Heuristic
)

func (s Source) String() string {
	switch s {
	case Explicit:
		return "explicit"
	case Converted:
		return "converted"
	case Heuristic:
		return "heuristic"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// Precedes reports whether s wins over other when both target the same
// (target, type) pair.
func (s Source) Precedes(other Source) bool { return s < other }

// Suggestion is a proposed annotation.
type Suggestion struct {
	Target     string         `json:"target"`
	Line       int            `json:"line"`
	Type       AnnotationType `json:"type"`
	Value      string         `json:"value"`
	Source     Source         `json:"source"`
	Confidence float64        `json:"confidence"`
}

// New returns a suggestion, clamping confidence to [0, 1].
func New(target string, line int, typ AnnotationType, value string, src Source, confidence float64) Suggestion {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Suggestion{Target: target, Line: line, Type: typ, Value: value, Source: src, Confidence: confidence}
}

// Directive renders the suggestion as it is written into source.
func (s Suggestion) Directive() string { return s.Type.Format(s.Value) }

// Level selects which annotation types the annotate pipeline produces.
type Level string

const (
	Minimal  Level = "minimal"
	Standard Level = "standard"
	Full     Level = "full"
)

var levelTypes = map[Level][]AnnotationType{
	Minimal:  {Module, Summary},
	Standard: {Module, Summary, Domain, Lock, Layer, Deprecated},
	Full:     {Module, Summary, Domain, Lock, Layer, Deprecated, Stability, AiHint, Ref, Hack, LockReason},
}

// ParseLevel parses a level name; empty means Standard.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return Standard, nil
	case Minimal, Standard, Full:
		return l, nil
	}
	return "", fmt.Errorf("unknown annotate level %q (want minimal, standard or full)", s)
}

// Types returns the annotation types the level requires, in canonical order.
func (l Level) Types() []AnnotationType {
	return levelTypes[l]
}

// Includes reports whether the level covers t.
func (l Level) Includes(t AnnotationType) bool {
	for _, lt := range levelTypes[l] {
		if lt == t {
			return true
		}
	}
	return false
}

// Lock values accepted in source.
var LockValues = []string{
	"frozen", "restricted", "approval-required", "tests-required",
	"docs-required", "review-required", "normal", "experimental",
}

// Stability values accepted in source.
var StabilityValues = []string{"frozen", "stable", "active", "volatile", "experimental"}
