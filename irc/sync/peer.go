package sync

import (
	"fmt"
	"sync"
	"time"

	"github.com/emberd/emberd/irc/ids"
)

// LinkState is the peer handshake state machine from spec.md §4.6:
// PASS -> CAPAB -> SERVER -> SVINFO -> Burst -> Active, plus Splitting for
// the SQUIT teardown path.
type LinkState int

const (
	Connecting LinkState = iota
	Authenticating
	Bursting
	Active
	Splitting
)

func (s LinkState) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Authenticating:
		return "Authenticating"
	case Bursting:
		return "Bursting"
	case Active:
		return "Active"
	case Splitting:
		return "Splitting"
	default:
		return "Unknown"
	}
}

// FrameSink is the outbound sink a peer's writer task drains; kept as an
// interface so sync has no dependency on the transport/gateway package.
type FrameSink interface {
	Send(line string) error
}

// LinkStats tracks the STATS L byte counters spec.md's Open Questions
// section requires wiring through peer writers.
type LinkStats struct {
	mu         sync.Mutex
	BytesIn    uint64
	BytesOut   uint64
	LinkedAt   time.Time
}

func (s *LinkStats) AddIn(n int) {
	s.mu.Lock()
	s.BytesIn += uint64(n)
	s.mu.Unlock()
}

func (s *LinkStats) AddOut(n int) {
	s.mu.Lock()
	s.BytesOut += uint64(n)
	s.mu.Unlock()
}

func (s *LinkStats) Snapshot() (in, out uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.BytesIn, s.BytesOut
}

// Peer is one remote server's link state, shared by the gateway (which owns
// the socket) and the sync manager (which owns routing); per spec.md §3 its
// lifetime ends when both release it.
type Peer struct {
	mu sync.RWMutex

	SID      ids.SID
	Name     string
	state    LinkState
	sink     FrameSink
	seenSIDs map[ids.SID]bool // loop detection
	distance int              // topology distance, hops from local server
	stats    LinkStats
}

// NewPeer constructs a Peer in the Connecting state.
func NewPeer(sid ids.SID, name string, sink FrameSink) *Peer {
	return &Peer{
		SID:      sid,
		Name:     name,
		state:    Connecting,
		sink:     sink,
		seenSIDs: map[ids.SID]bool{},
	}
}

// State returns the current link state.
func (p *Peer) State() LinkState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// transitions enumerates the only legal forward moves in the handshake.
var transitions = map[LinkState][]LinkState{
	Connecting:     {Authenticating, Splitting},
	Authenticating: {Bursting, Splitting},
	Bursting:       {Active, Splitting},
	Active:         {Splitting},
	Splitting:      {},
}

// Transition moves the peer to next, rejecting any move not in the table.
func (p *Peer) Transition(next LinkState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, allowed := range transitions[p.state] {
		if allowed == next {
			p.state = next
			if next == Active {
				p.stats.LinkedAt = time.Now()
			}
			return nil
		}
	}
	return fmt.Errorf("sync: illegal peer transition %s -> %s", p.state, next)
}

// MarkSeen records that this peer already observed sid's traffic, for loop
// detection on rebroadcast.
func (p *Peer) MarkSeen(sid ids.SID) {
	p.mu.Lock()
	p.seenSIDs[sid] = true
	p.mu.Unlock()
}

// HasSeen reports whether sid is already known to this peer.
func (p *Peer) HasSeen(sid ids.SID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.seenSIDs[sid]
}

// Send writes line to the peer's outbound sink and updates byte counters;
// the sink is single-writer per spec.md §5, fed by an MPSC from callers.
func (p *Peer) Send(line string) error {
	p.mu.RLock()
	sink := p.sink
	p.mu.RUnlock()
	if sink == nil {
		return fmt.Errorf("sync: peer %s has no outbound sink", p.Name)
	}
	if err := sink.Send(line); err != nil {
		return err
	}
	p.stats.AddOut(len(line))
	return nil
}

// Stats returns the link's byte counters for STATS L.
func (p *Peer) Stats() *LinkStats { return &p.stats }

// Manager owns the mesh of peer links and the netsplit grace window, and
// routes CRDT ops across the spanning tree while avoiding loops via each
// op's seen-set.
type Manager struct {
	localSID ids.SID

	mu        sync.RWMutex
	peers     map[ids.SID]*Peer
	graceWindow time.Duration
	splitGrace  map[ids.SID]time.Time // sid -> when its grace period ends
}

// NewManager builds a sync Manager for the local server identified by sid.
func NewManager(sid ids.SID, graceWindow time.Duration) *Manager {
	if graceWindow <= 0 {
		graceWindow = 15 * time.Minute
	}
	return &Manager{
		localSID:    sid,
		peers:       map[ids.SID]*Peer{},
		graceWindow: graceWindow,
		splitGrace:  map[ids.SID]time.Time{},
	}
}

// AddPeer registers a new peer link.
func (m *Manager) AddPeer(p *Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[p.SID] = p
}

// Peer returns the peer for sid, if linked.
func (m *Manager) Peer(sid ids.SID) (*Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[sid]
	return p, ok
}

// ActivePeers returns every peer currently in the Active state.
func (m *Manager) ActivePeers() []*Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Peer
	for _, p := range m.peers {
		if p.State() == Active {
			out = append(out, p)
		}
	}
	return out
}

// SQUIT removes sid's peer link and opens its netsplit grace window: state
// attributed to the split subtree is retained for graceWindow to accept
// post-rejoin synchronization without duplicate-kill storms (spec §4.6).
func (m *Manager) SQUIT(sid ids.SID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.peers[sid]; ok {
		_ = p.Transition(Splitting)
	}
	delete(m.peers, sid)
	m.splitGrace[sid] = time.Now().Add(m.graceWindow)
}

// InGraceWindow reports whether sid's split grace window is still open.
func (m *Manager) InGraceWindow(sid ids.SID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	until, ok := m.splitGrace[sid]
	return ok && time.Now().Before(until)
}

// Broadcast propagates op to every active peer except those already in its
// seen-set, marking the local SID seen first so loops die at the first
// redundant hop (spanning-tree rule from spec §4.6).
func (m *Manager) Broadcast(op Op, encode func(Op) string) {
	op.MarkSeen(m.localSID)
	line := encode(op)
	for _, p := range m.ActivePeers() {
		if op.Seen(p.SID) {
			continue
		}
		p.MarkSeen(m.localSID)
		_ = p.Send(line)
	}
}
