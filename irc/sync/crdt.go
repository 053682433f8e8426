// Package sync implements the CRDT layer and TS6-like spanning-tree S2S
// protocol of spec.md §4.6: LWWRegister for single-valued state (topic,
// modes), AWSet for collection state (bans, akick lists), and the peer
// handshake/burst state machine.
package sync

import (
	"sort"

	"github.com/emberd/emberd/irc/ids"
)

// HybridTS is the hybrid timestamp CRDT operations order by: wall-clock
// seconds with the origin SID as tiebreak, per spec.md §3.
type HybridTS struct {
	Seconds int64
	Origin  ids.SID
}

// Less implements the lexicographic (ts, sid) ordering spec.md §4.6 requires.
func (a HybridTS) Less(b HybridTS) bool {
	if a.Seconds != b.Seconds {
		return a.Seconds < b.Seconds
	}
	return a.Origin < b.Origin
}

// After reports whether a strictly follows b in the (ts, sid) order.
func (a HybridTS) After(b HybridTS) bool { return b.Less(a) }

// LWWRegister is a last-writer-wins register over T, used for topic and
// per-mode channel/user state. Applying the same operation twice is a
// no-op (spec §3 invariant), and operation order is immaterial: any two
// replicas converge to the same value (spec §8's LWW convergence property).
type LWWRegister[T comparable] struct {
	value T
	ts    HybridTS
	set   bool
}

// NewLWWRegister returns a zero-valued, never-written register.
func NewLWWRegister[T comparable]() LWWRegister[T] {
	return LWWRegister[T]{}
}

// Value returns the register's current value and whether it has ever been set.
func (r LWWRegister[T]) Value() (T, bool) { return r.value, r.set }

// Timestamp returns the timestamp of the currently-applied write.
func (r LWWRegister[T]) Timestamp() HybridTS { return r.ts }

// Apply applies a write iff (ts, sid) strictly exceeds the register's
// current stamp, or the register has never been written. Returns the
// possibly-updated register and whether the write took effect.
func (r LWWRegister[T]) Apply(value T, ts HybridTS) (LWWRegister[T], bool) {
	if r.set && !ts.After(r.ts) {
		return r, false
	}
	return LWWRegister[T]{value: value, ts: ts, set: true}, true
}

// AWSetElement pairs a value with the unique add-id that introduced it.
type AWSetElement[T comparable] struct {
	Value T
	AddID HybridTS
}

// AWSet is an add-wins set: an element is present iff it has an add-id not
// shadowed by a same-or-later-timestamp remove-id, per spec.md §4.6. Used
// for ban lists and akick lists.
type AWSet[T comparable] struct {
	adds    map[T][]HybridTS
	removes map[T][]HybridTS
}

// NewAWSet returns an empty add-wins set.
func NewAWSet[T comparable]() *AWSet[T] {
	return &AWSet[T]{adds: map[T][]HybridTS{}, removes: map[T][]HybridTS{}}
}

// Add records an add-operation for value at ts. Applying the same (value,
// ts) pair twice is a no-op because we dedupe identical stamps on insert.
func (s *AWSet[T]) Add(value T, ts HybridTS) {
	for _, existing := range s.adds[value] {
		if existing == ts {
			return
		}
	}
	s.adds[value] = append(s.adds[value], ts)
}

// Remove records a remove-operation for value at ts.
func (s *AWSet[T]) Remove(value T, ts HybridTS) {
	for _, existing := range s.removes[value] {
		if existing == ts {
			return
		}
	}
	s.removes[value] = append(s.removes[value], ts)
}

// Contains reports whether value is currently a member: it has some add-id
// that is not dominated by a remove-id of the same or later timestamp.
func (s *AWSet[T]) Contains(value T) bool {
	adds := s.adds[value]
	if len(adds) == 0 {
		return false
	}
	removes := s.removes[value]
	for _, addTS := range adds {
		shadowed := false
		for _, rmTS := range removes {
			if !addTS.After(rmTS) { // rmTS >= addTS shadows this add
				shadowed = true
				break
			}
		}
		if !shadowed {
			return true
		}
	}
	return false
}

// Members returns every currently-present value, sorted for determinism.
func (s *AWSet[T]) Members(less func(a, b T) bool) []T {
	var out []T
	for v := range s.adds {
		if s.Contains(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Merge folds other's adds/removes into s; idempotent and commutative,
// which is what makes AWSet convergent under arbitrary delivery order.
func (s *AWSet[T]) Merge(other *AWSet[T]) {
	for v, stamps := range other.adds {
		for _, ts := range stamps {
			s.Add(v, ts)
		}
	}
	for v, stamps := range other.removes {
		for _, ts := range stamps {
			s.Remove(v, ts)
		}
	}
}

// Op is a wire-level CRDT operation, carrying the seen-SID set used for
// loop detection when rebroadcasting across the spanning tree.
type Op struct {
	Target   string // channel or user the op applies to
	Field    string // e.g. "topic", "mode:+m", "ban"
	Kind     OpKind
	Value    string
	Timestamp HybridTS
	SeenSIDs  map[ids.SID]bool
}

// OpKind distinguishes register-writes from set-adds/removes.
type OpKind int

const (
	OpLWWWrite OpKind = iota
	OpSetAdd
	OpSetRemove
)

// MarkSeen records that sid has observed this op, used to avoid
// rebroadcasting back across a link that already forwarded it.
func (o *Op) MarkSeen(sid ids.SID) {
	if o.SeenSIDs == nil {
		o.SeenSIDs = map[ids.SID]bool{}
	}
	o.SeenSIDs[sid] = true
}

// Seen reports whether sid has already observed this op.
func (o Op) Seen(sid ids.SID) bool { return o.SeenSIDs[sid] }
