package sync

import (
	"testing"

	"github.com/emberd/emberd/irc/ids"
)

func ts(sec int64, sid string) HybridTS { return HybridTS{Seconds: sec, Origin: ids.SID(sid)} }

func TestLWWIdempotence(t *testing.T) {
	r := NewLWWRegister[string]()
	r, _ = r.Apply("hello", ts(100, "1AA"))
	once := r
	r, applied := r.Apply("hello", ts(100, "1AA"))
	if applied {
		t.Fatal("re-applying the same (value, ts) should not count as a new write")
	}
	if r != once {
		t.Fatal("re-applying identical op must be a no-op")
	}
}

func TestLWWConvergenceAnyOrder(t *testing.T) {
	ops := []struct {
		val string
		ts  HybridTS
	}{
		{"a", ts(100, "1AA")},
		{"b", ts(150, "2BB")},
		{"c", ts(150, "1AA")}, // same second as b, but lower SID: loses
	}

	// Replica 1: apply in given order.
	r1 := NewLWWRegister[string]()
	for _, op := range ops {
		r1, _ = r1.Apply(op.val, op.ts)
	}

	// Replica 2: apply in reverse order.
	r2 := NewLWWRegister[string]()
	for i := len(ops) - 1; i >= 0; i-- {
		r2, _ = r2.Apply(ops[i].val, ops[i].ts)
	}

	v1, _ := r1.Value()
	v2, _ := r2.Value()
	if v1 != v2 {
		t.Fatalf("replicas diverged: %q vs %q", v1, v2)
	}
	if v1 != "b" {
		t.Fatalf("expected highest (ts,sid) value 'b' to win, got %q", v1)
	}
}

func TestAWSetAddWins(t *testing.T) {
	s := NewAWSet[string]()
	addTS := ts(100, "1AA")
	rmTS := ts(50, "1AA") // earlier than the add: must not shadow it
	s.Add("ban1", addTS)
	s.Remove("ban1", rmTS)
	if !s.Contains("ban1") {
		t.Fatal("add-wins: a later add must survive an earlier remove")
	}
}

func TestAWSetRemoveShadowsEarlierAdd(t *testing.T) {
	s := NewAWSet[string]()
	s.Add("ban1", ts(50, "1AA"))
	s.Remove("ban1", ts(100, "1AA"))
	if s.Contains("ban1") {
		t.Fatal("remove with later timestamp should shadow the add")
	}
}

func TestAWSetMergeConvergence(t *testing.T) {
	s1 := NewAWSet[string]()
	s1.Add("x", ts(10, "1AA"))
	s2 := NewAWSet[string]()
	s2.Remove("x", ts(20, "2BB"))

	merged1 := NewAWSet[string]()
	merged1.Merge(s1)
	merged1.Merge(s2)

	merged2 := NewAWSet[string]()
	merged2.Merge(s2)
	merged2.Merge(s1)

	if merged1.Contains("x") != merged2.Contains("x") {
		t.Fatal("merge order must not affect convergence")
	}
	if merged1.Contains("x") {
		t.Fatal("later remove should shadow earlier add")
	}
}

func TestOpMarkSeenRecordsSID(t *testing.T) {
	op := Op{Target: "#chan", Field: "topic", Kind: OpLWWWrite, Value: "hi", Timestamp: ts(1, "1AA")}
	op.MarkSeen(ids.SID("1AA"))
	if !op.Seen(ids.SID("1AA")) {
		t.Fatal("expected seen sid recorded")
	}
	if op.Seen(ids.SID("2BB")) {
		t.Fatal("unexpected seen sid")
	}
}
