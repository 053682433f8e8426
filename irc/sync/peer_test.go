package sync

import (
	"testing"
	"time"

	"github.com/emberd/emberd/irc/ids"
)

type fakeSink struct{ lines []string }

func (f *fakeSink) Send(line string) error {
	f.lines = append(f.lines, line)
	return nil
}

func TestPeerTransitionsFollowHandshake(t *testing.T) {
	p := NewPeer(ids.SID("1AA"), "peer.example", &fakeSink{})
	steps := []LinkState{Authenticating, Bursting, Active}
	for _, s := range steps {
		if err := p.Transition(s); err != nil {
			t.Fatalf("transition to %v: %v", s, err)
		}
	}
	if err := p.Transition(Connecting); err == nil {
		t.Fatal("expected illegal transition back to Connecting to fail")
	}
}

func TestManagerBroadcastSkipsSeenPeers(t *testing.T) {
	m := NewManager(ids.SID("0LO"), time.Minute)
	sinkA := &fakeSink{}
	peerA := NewPeer(ids.SID("1AA"), "a", sinkA)
	_ = peerA.Transition(Authenticating)
	_ = peerA.Transition(Bursting)
	_ = peerA.Transition(Active)
	m.AddPeer(peerA)

	op := Op{Target: "#c", Field: "topic", Value: "x"}
	op.MarkSeen(ids.SID("1AA"))

	m.Broadcast(op, EncodeOp)
	if len(sinkA.lines) != 0 {
		t.Fatalf("expected peer already in seen-set to be skipped, got %d sends", len(sinkA.lines))
	}

	op2 := Op{Target: "#c", Field: "topic", Value: "y"}
	m.Broadcast(op2, EncodeOp)
	if len(sinkA.lines) != 1 {
		t.Fatalf("expected broadcast to unseen peer, got %d sends", len(sinkA.lines))
	}
}

func TestSQUITOpensGraceWindow(t *testing.T) {
	m := NewManager(ids.SID("0LO"), 10*time.Millisecond)
	p := NewPeer(ids.SID("1AA"), "a", &fakeSink{})
	m.AddPeer(p)
	m.SQUIT(ids.SID("1AA"))
	if !m.InGraceWindow(ids.SID("1AA")) {
		t.Fatal("expected grace window open immediately after SQUIT")
	}
	if _, ok := m.Peer(ids.SID("1AA")); ok {
		t.Fatal("peer should be removed from active set after SQUIT")
	}
	time.Sleep(20 * time.Millisecond)
	if m.InGraceWindow(ids.SID("1AA")) {
		t.Fatal("expected grace window to expire")
	}
}
