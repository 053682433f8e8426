package irc

import (
	"testing"
	"time"
)

func TestWhoWasRingLookupMostRecentFirst(t *testing.T) {
	r := NewWhoWasRing(10)
	r.Record(WhoWasEntry{Nick: "Alice", User: "a", Host: "h1", QuitAt: time.Unix(1, 0)})
	r.Record(WhoWasEntry{Nick: "Alice", User: "a", Host: "h2", QuitAt: time.Unix(2, 0)})

	got := r.Lookup("alice", 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Host != "h2" {
		t.Fatalf("expected most recent quit first, got host %s", got[0].Host)
	}
}

func TestWhoWasRingEvictsOldestPastCapacity(t *testing.T) {
	r := NewWhoWasRing(1)
	r.Record(WhoWasEntry{Nick: "Bob", Host: "old"})
	r.Record(WhoWasEntry{Nick: "Bob", Host: "new"})

	got := r.Lookup("bob", 0)
	if len(got) != 1 || got[0].Host != "new" {
		t.Fatalf("expected only the newest entry to survive, got %v", got)
	}
}

func TestWhoWasRingLookupRespectsLimit(t *testing.T) {
	r := NewWhoWasRing(10)
	for i := 0; i < 5; i++ {
		r.Record(WhoWasEntry{Nick: "Carl"})
	}
	got := r.Lookup("carl", 2)
	if len(got) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(got))
	}
}
