package historystore

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", 0, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndLatest(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1700000000, 0)

	for i := 0; i < 3; i++ {
		err := s.Append(Entry{
			MsgID: string(rune('a' + i)), Target: "#lounge", Nick: "alice",
			Kind: "PRIVMSG", Text: "hi", At: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := s.Latest("#lounge", 2)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].MsgID != "c" {
		t.Fatalf("expected most recent entry first, got %s", got[0].MsgID)
	}
}

func TestBeforeAndAfter(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		_ = s.Append(Entry{
			MsgID: string(rune('a' + i)), Target: "#lounge",
			Kind: "PRIVMSG", At: base.Add(time.Duration(i) * time.Minute),
		})
	}

	before, err := s.Before("#lounge", base.Add(2*time.Minute), 0)
	if err != nil {
		t.Fatalf("Before: %v", err)
	}
	if len(before) != 2 {
		t.Fatalf("expected 2 entries before pivot, got %d", len(before))
	}

	after, err := s.After("#lounge", base.Add(2*time.Minute), 0)
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("expected 2 entries after pivot, got %d", len(after))
	}
}

func TestBetweenIsInclusiveOfRange(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		_ = s.Append(Entry{
			MsgID: string(rune('a' + i)), Target: "#lounge",
			Kind: "PRIVMSG", At: base.Add(time.Duration(i) * time.Minute),
		})
	}

	got, err := s.Between("#lounge", base.Add(1*time.Minute), base.Add(3*time.Minute), 0)
	if err != nil {
		t.Fatalf("Between: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries in range, got %d", len(got))
	}
}

func TestAppendTrimsOldestBeyondMaxPerKey(t *testing.T) {
	s, err := Open("", 0, 2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	base := time.Unix(1700000000, 0)
	for i := 0; i < 4; i++ {
		_ = s.Append(Entry{
			MsgID: string(rune('a' + i)), Target: "#lounge",
			Kind: "PRIVMSG", At: base.Add(time.Duration(i) * time.Minute),
		})
	}

	got, err := s.Latest("#lounge", 0)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected trim to cap target at 2 entries, got %d", len(got))
	}
}

func TestTargetsFiltersByAccountAndWindow(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1700000000, 0)
	_ = s.Append(Entry{MsgID: "a", Target: "#lounge", Account: "alice", At: base})
	_ = s.Append(Entry{MsgID: "b", Target: "#help", Account: "alice", At: base.Add(time.Minute)})
	_ = s.Append(Entry{MsgID: "c", Target: "#lounge", Account: "bob", At: base})

	got, err := s.Targets("alice", base.Add(-time.Hour), base.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("Targets: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 distinct targets for alice, got %v", got)
	}
}
