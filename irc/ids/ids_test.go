package ids

import "testing"

func TestAllocatorSequential(t *testing.T) {
	a := NewAllocator(SID("1AB"))
	seen := make(map[UID]bool)
	for i := 0; i < 1000; i++ {
		uid := a.Next()
		if !uid.Valid() {
			t.Fatalf("generated invalid uid %q", uid)
		}
		if seen[uid] {
			t.Fatalf("duplicate uid %q at iteration %d", uid, i)
		}
		seen[uid] = true
		if uid.ServerID() != SID("1AB") {
			t.Fatalf("uid %q has wrong server id", uid)
		}
	}
}

func TestCasefoldNick(t *testing.T) {
	cases := map[string]string{
		"Alice":    "alice",
		"BOB[away]": "bob{away}",
		"A\\B~C":   "a|b^c",
	}
	for in, want := range cases {
		if got := CasefoldNick(in); got != want {
			t.Errorf("CasefoldNick(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSIDValid(t *testing.T) {
	valid := []SID{"1AB", "9ZZ", "0AA"}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q valid", s)
		}
	}
	invalid := []SID{"", "AB", "ABCD", "AAA"}
	for _, s := range invalid {
		if s.Valid() {
			t.Errorf("expected %q invalid", s)
		}
	}
}
