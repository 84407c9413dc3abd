package constraints

import (
	"errors"
	"slices"
	"sort"
	"time"
)

// ErrUnknownSession is returned when a debug session id is not in the index.
var ErrUnknownSession = errors.New("unknown debug session")

// Index aggregates the constraints of a project.
type Index struct {
	ByFile        map[string]*Constraints `json:"by_file,omitempty"`
	HackMarkers   []HackMarker            `json:"hack_markers,omitempty"`
	DebugSessions []DebugSession          `json:"debug_sessions,omitempty"`
	ByLockLevel   map[string][]string     `json:"by_lock_level,omitempty"`
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		ByFile:      make(map[string]*Constraints),
		ByLockLevel: make(map[string][]string),
	}
}

// IsEmpty reports whether the index holds nothing worth persisting.
func (x *Index) IsEmpty() bool {
	return x == nil || (len(x.ByFile) == 0 && len(x.HackMarkers) == 0 && len(x.DebugSessions) == 0)
}

// SetLock records a file's declared lock level. When a file declares several,
// the strictest one is kept.
func (x *Index) SetLock(path string, level LockLevel, reason string) {
	if x.ByFile == nil {
		x.ByFile = make(map[string]*Constraints)
	}
	if x.ByLockLevel == nil {
		x.ByLockLevel = make(map[string][]string)
	}
	c := x.ByFile[path]
	if c == nil {
		c = &Constraints{}
		x.ByFile[path] = c
	}
	if c.Mutation != nil {
		if !level.Stricter(c.Mutation.Level) {
			if c.Mutation.Reason == "" {
				c.Mutation.Reason = reason
			}
			return
		}
		x.removeFromLevel(c.Mutation.Level, path)
	}
	c.Mutation = &MutationConstraint{Level: level, Reason: reason}
	key := string(level)
	if !slices.Contains(x.ByLockLevel[key], path) {
		x.ByLockLevel[key] = append(x.ByLockLevel[key], path)
	}
}

// SetReason attaches a lock reason to a file already carrying a lock.
func (x *Index) SetReason(path, reason string) {
	if c := x.ByFile[path]; c != nil && c.Mutation != nil && c.Mutation.Reason == "" {
		c.Mutation.Reason = reason
	}
}

func (x *Index) removeFromLevel(level LockLevel, path string) {
	key := string(level)
	x.ByLockLevel[key] = slices.DeleteFunc(x.ByLockLevel[key], func(p string) bool { return p == path })
	if len(x.ByLockLevel[key]) == 0 {
		delete(x.ByLockLevel, key)
	}
}

// AddHack records a hack marker.
func (x *Index) AddHack(h HackMarker) {
	x.HackMarkers = append(x.HackMarkers, h)
}

// Effective returns defaults merged with the file's own constraints.
func (x *Index) Effective(path string, defaults Constraints) Constraints {
	if x == nil {
		return defaults
	}
	if c := x.ByFile[path]; c != nil {
		return defaults.Merge(*c)
	}
	return defaults
}

// CanModify decides operation on path under the effective constraints.
func (x *Index) CanModify(path, operation string, defaults Constraints) Permission {
	return x.Effective(path, defaults).CanModify(operation)
}

// ExpiredHacks returns the markers expired at now, oldest expiry first.
func (x *Index) ExpiredHacks(now time.Time) []HackMarker {
	var out []HackMarker
	for _, h := range x.HackMarkers {
		if h.IsExpired(now) {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Expires.Before(*out[j].Expires) })
	return out
}

// StartDebugSession records a new session and returns it.
func (x *Index) StartDebugSession(problem string, files []string, now time.Time) DebugSession {
	s := NewDebugSession(problem, files, now)
	x.DebugSessions = append(x.DebugSessions, s)
	return s
}

// ResolveDebugSession closes the session with id.
func (x *Index) ResolveDebugSession(id, resolution string, now time.Time) error {
	for i := range x.DebugSessions {
		if x.DebugSessions[i].ID == id {
			t := now.UTC()
			x.DebugSessions[i].ResolvedAt = &t
			x.DebugSessions[i].Resolution = resolution
			return nil
		}
	}
	return ErrUnknownSession
}

// ActiveDebugSessions returns unresolved sessions.
func (x *Index) ActiveDebugSessions() []DebugSession {
	var out []DebugSession
	for _, s := range x.DebugSessions {
		if s.Active() {
			out = append(out, s)
		}
	}
	return out
}
