// Package constraints models the modification rules attached to files: lock
// levels, effective-constraint merging, hack markers and debug sessions.
package constraints

import (
	"slices"
	"strings"
)

// LockLevel is how strictly a file is guarded against modification.
type LockLevel string

const (
	Frozen           LockLevel = "frozen"
	Restricted       LockLevel = "restricted"
	ApprovalRequired LockLevel = "approval-required"
	TestsRequired    LockLevel = "tests-required"
	DocsRequired     LockLevel = "docs-required"
	Normal           LockLevel = "normal"
	Experimental     LockLevel = "experimental"
)

// lockOrder lists levels from strictest to loosest.
var lockOrder = []LockLevel{Frozen, Restricted, ApprovalRequired, TestsRequired, DocsRequired, Normal, Experimental}

// ParseLockLevel maps a source value to a level. "review-required" is an
// alias of approval-required; anything unrecognized is Normal.
func ParseLockLevel(s string) LockLevel {
	v := LockLevel(strings.ToLower(strings.TrimSpace(s)))
	if v == "review-required" {
		return ApprovalRequired
	}
	if slices.Contains(lockOrder, v) {
		return v
	}
	return Normal
}

// IsLockLevel reports whether s names a level (aliases included).
func IsLockLevel(s string) bool {
	v := LockLevel(strings.ToLower(strings.TrimSpace(s)))
	return v == "review-required" || slices.Contains(lockOrder, v)
}

// Stricter reports whether l guards more than other.
func (l LockLevel) Stricter(other LockLevel) bool {
	return slices.Index(lockOrder, l) < slices.Index(lockOrder, other)
}

// MutationConstraint governs whether and how a file may change.
type MutationConstraint struct {
	Level             LockLevel `json:"level" yaml:"level"`
	Reason            string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	AllowedOperations []string  `json:"allowed_operations,omitempty" yaml:"allowed_operations,omitempty"`
}

// StyleConstraint names the conventions edits must follow.
type StyleConstraint struct {
	Guide string   `json:"guide,omitempty" yaml:"guide,omitempty"`
	Rules []string `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// BehaviorConstraint describes how an assistant should approach a file.
type BehaviorConstraint struct {
	Approach    string `json:"approach,omitempty" yaml:"approach,omitempty"`
	SideEffects bool   `json:"side_effects,omitempty" yaml:"side_effects,omitempty"`
}

// QualityConstraint lists the gates a change must pass.
type QualityConstraint struct {
	RequireTests bool `json:"require_tests,omitempty" yaml:"require_tests,omitempty"`
	RequireDocs  bool `json:"require_docs,omitempty" yaml:"require_docs,omitempty"`
}

// Reference points at supporting material.
type Reference struct {
	Target      string `json:"target" yaml:"target"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Constraints is the full rule set for one file. Nil structured fields mean
// "not specified".
type Constraints struct {
	Mutation   *MutationConstraint `json:"mutation,omitempty" yaml:"mutation,omitempty"`
	Style      *StyleConstraint    `json:"style,omitempty" yaml:"style,omitempty"`
	Behavior   *BehaviorConstraint `json:"behavior,omitempty" yaml:"behavior,omitempty"`
	Quality    *QualityConstraint  `json:"quality,omitempty" yaml:"quality,omitempty"`
	References []Reference         `json:"references,omitempty" yaml:"references,omitempty"`
	Directive  string              `json:"directive,omitempty" yaml:"directive,omitempty"`
}

// Merge returns c overridden by other: each structured field of other wins
// when set, references are concatenated and the directive is overridden when
// other has one. Merge is associative; neither input is modified.
func (c Constraints) Merge(other Constraints) Constraints {
	out := c
	if other.Mutation != nil {
		out.Mutation = other.Mutation
	}
	if other.Style != nil {
		out.Style = other.Style
	}
	if other.Behavior != nil {
		out.Behavior = other.Behavior
	}
	if other.Quality != nil {
		out.Quality = other.Quality
	}
	if len(other.References) > 0 {
		out.References = append(slices.Clone(c.References), other.References...)
	}
	if other.Directive != "" {
		out.Directive = other.Directive
	}
	return out
}

// Level returns the effective lock level, Normal when unset.
func (c Constraints) Level() LockLevel {
	if c.Mutation == nil || c.Mutation.Level == "" {
		return Normal
	}
	return c.Mutation.Level
}

// Decision is the outcome of a modification check.
type Decision string

const (
	Allowed          Decision = "allowed"
	RequiresApproval Decision = "requires_approval"
	Denied           Decision = "denied"
)

// Permission is a decision with a human-readable reason.
type Permission struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason,omitempty"`
}

// CanModify decides whether operation may be performed under c.
func (c Constraints) CanModify(operation string) Permission {
	reason := ""
	if c.Mutation != nil {
		reason = c.Mutation.Reason
	}
	switch c.Level() {
	case Frozen:
		return Permission{Decision: Denied, Reason: orDefault(reason, "file is frozen")}
	case Restricted:
		if c.Mutation == nil || !slices.Contains(c.Mutation.AllowedOperations, operation) {
			return Permission{Decision: Denied, Reason: orDefault(reason, "operation "+operation+" is not allowed on a restricted file")}
		}
		return Permission{Decision: RequiresApproval, Reason: orDefault(reason, "restricted file")}
	case ApprovalRequired:
		return Permission{Decision: RequiresApproval, Reason: orDefault(reason, "changes require approval")}
	}
	return Permission{Decision: Allowed, Reason: reason}
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}
