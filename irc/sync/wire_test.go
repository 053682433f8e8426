package sync

import (
	"testing"

	"github.com/emberd/emberd/irc/ids"
)

func TestEncodeDecodeOpRoundTrip(t *testing.T) {
	op := Op{
		Target:    "#chan",
		Field:     "topic",
		Kind:      OpLWWWrite,
		Value:     "new topic",
		Timestamp: HybridTS{Seconds: 12345, Origin: ids.SID("1AA")},
	}
	op.MarkSeen(ids.SID("1AA"))
	op.MarkSeen(ids.SID("2BB"))

	line := EncodeOp(op)
	payload := extractPayload(t, line)

	decoded, err := DecodeOp(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Target != op.Target || decoded.Field != op.Field || decoded.Value != op.Value {
		t.Fatalf("decoded op mismatch: %+v vs %+v", decoded, op)
	}
	if decoded.Timestamp != op.Timestamp {
		t.Fatalf("timestamp mismatch: %+v vs %+v", decoded.Timestamp, op.Timestamp)
	}
	if !decoded.Seen(ids.SID("1AA")) || !decoded.Seen(ids.SID("2BB")) {
		t.Fatalf("expected both seen SIDs preserved")
	}
}

func extractPayload(t *testing.T, line string) string {
	t.Helper()
	// "ENCAP * CRDT :<payload>" - the payload is everything after the
	// trailing-colon marker.
	idx := indexTrailing(line)
	if idx < 0 {
		t.Fatalf("no trailing payload in line %q", line)
	}
	return line[idx+1:]
}

func indexTrailing(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' && (i == 0 || s[i-1] == ' ') {
			return i
		}
	}
	return -1
}

func TestBurstSequencerOrder(t *testing.T) {
	want := []BurstPhase{BurstUsers, BurstChannels, BurstXLines, BurstTopics, BurstCRDT}
	b := NewBurstSequencer()
	for i, phase := range want {
		if b.Phase() != phase {
			t.Fatalf("step %d: phase = %v, want %v", i, b.Phase(), phase)
		}
		done := b.Advance()
		if i == len(want)-1 && !done {
			t.Fatal("expected burst to be done after final phase")
		}
		if i < len(want)-1 && done {
			t.Fatalf("burst reported done too early at step %d", i)
		}
	}
}

func TestResolveChannelTS(t *testing.T) {
	if ResolveChannelTS(100, 150) != LocalWins {
		t.Fatal("lower local TS should win")
	}
	if ResolveChannelTS(150, 100) != RemoteWins {
		t.Fatal("lower remote TS should win")
	}
	if ResolveChannelTS(100, 100) != Merge {
		t.Fatal("equal TS should merge")
	}
}
