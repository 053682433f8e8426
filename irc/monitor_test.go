package irc

import (
	"testing"

	"github.com/emberd/emberd/irc/ids"
)

func TestMonitorSetAddRemoveList(t *testing.T) {
	s := NewMonitorSet()
	uid := ids.UID("1AAAAAAAA")

	if !s.Add(uid, "alice") {
		t.Fatal("expected first watch to succeed")
	}
	s.Add(uid, "bob")

	got := s.List(uid)
	if len(got) != 2 {
		t.Fatalf("expected 2 watched nicks, got %d", len(got))
	}

	s.Remove(uid, "alice")
	got = s.List(uid)
	if len(got) != 1 || got[0] != "bob" {
		t.Fatalf("expected only bob watched after remove, got %v", got)
	}

	s.Clear(uid)
	if len(s.List(uid)) != 0 {
		t.Fatal("expected Clear to remove every watched nick")
	}
}

func TestMonitorSetEnforcesLimit(t *testing.T) {
	s := NewMonitorSet()
	uid := ids.UID("1AAAAAAAA")
	for i := 0; i < maxMonitorEntries; i++ {
		if !s.Add(uid, string(rune('a'+i%26))+string(rune('0'+i/26))) {
			t.Fatalf("watch %d unexpectedly rejected", i)
		}
	}
	if s.Add(uid, "onemore") {
		t.Fatal("expected watch beyond maxMonitorEntries to be rejected")
	}
}
