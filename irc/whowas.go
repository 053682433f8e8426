package irc

import (
	"sync"
	"time"

	"github.com/emberd/emberd/irc/ids"
)

// WhoWasEntry is one snapshot of a now-disconnected session, per SPEC_FULL's
// WHOWAS supplement, grounded on the jesopo fork file's server.whoWas field.
type WhoWasEntry struct {
	Nick     string
	User     string
	Host     string
	RealName string
	Account  string
	QuitAt   time.Time
}

// WhoWasRing is a bounded, most-recent-first ring of quit snapshots. No
// entry outlives the process (spec's explicit non-goal: no persistence
// beyond process lifetime).
type WhoWasRing struct {
	mu       sync.Mutex
	capacity int
	entries  []WhoWasEntry
}

// NewWhoWasRing returns an empty ring holding up to capacity entries.
func NewWhoWasRing(capacity int) *WhoWasRing {
	return &WhoWasRing{capacity: capacity}
}

// Record pushes e to the front, evicting the oldest entry past capacity.
func (r *WhoWasRing) Record(e WhoWasEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append([]WhoWasEntry{e}, r.entries...)
	if len(r.entries) > r.capacity {
		r.entries = r.entries[:r.capacity]
	}
}

// Lookup returns up to limit entries (0 means all) matching nickFold,
// most-recent first.
func (r *WhoWasRing) Lookup(nickFold string, limit int) []WhoWasEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []WhoWasEntry
	for _, e := range r.entries {
		if ids.CasefoldNick(e.Nick) != nickFold {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
