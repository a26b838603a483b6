package resolver

import (
	"go.uber.org/atomic"
)

// Status is the lifecycle stage of the current resolution.
type Status int

// Resolution statuses.
const (
	Unresolved Status = iota
	Resolving
	Resolved
	Failed
)

func (s Status) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the resolution state. Zone and Label are
// only meaningful when Status is Resolved.
type Snapshot struct {
	// Cause records why a fallback zone was used, or why resolution failed.
	Cause    error
	Zone     string
	Label    string
	Seq      uint64
	Status   Status
	Fallback bool
}

// State is a single-writer cell holding the current Snapshot. Writers replace
// the whole value at once; readers take a copy.
type State struct {
	cur *atomic.Pointer[Snapshot]
}

// NewState returns a State holding an Unresolved snapshot.
func NewState() *State {
	return &State{cur: atomic.NewPointer(&Snapshot{Status: Unresolved})}
}

// Snapshot returns a copy of the current value.
func (s *State) Snapshot() Snapshot {
	return *s.cur.Load()
}

// Replace unconditionally stores next.
func (s *State) Replace(next Snapshot) {
	s.cur.Store(&next)
}

// ReplaceIfNewer stores next unless the stored snapshot carries a higher
// sequence number. It reports whether next was stored.
func (s *State) ReplaceIfNewer(next Snapshot) bool {
	for {
		cur := s.cur.Load()
		if cur.Seq > next.Seq {
			return false
		}
		if s.cur.CompareAndSwap(cur, &next) {
			return true
		}
	}
}
