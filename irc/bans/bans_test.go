package bans

import (
	"testing"
	"time"
)

func TestHostmaskMatchIsTotal(t *testing.T) {
	tbl := NewTable(KLine)
	if err := tbl.Add(Entry{Kind: KLine, Pattern: "*!*@bad.example", Reason: "spam"}); err != nil {
		t.Fatal(err)
	}

	subjects := []MatchSubject{
		{Nick: "alice", User: "a", Host: "bad.example"},
		{Nick: "bob", User: "b", Host: "good.example"},
	}
	want := []bool{true, false}
	for i, s := range subjects {
		_, got := tbl.Match(s, time.Now())
		if got != want[i] {
			t.Errorf("subject %d: got match=%v, want %v", i, got, want[i])
		}
	}
}

func TestExpiredBanDoesNotMatch(t *testing.T) {
	tbl := NewTable(GLine)
	past := time.Now().Add(-time.Hour)
	_ = tbl.Add(Entry{Kind: GLine, Pattern: "*!*@expired.example", ExpiresAt: past})
	_, matched := tbl.Match(MatchSubject{Nick: "n", User: "u", Host: "expired.example"}, time.Now())
	if matched {
		t.Fatal("expired ban should not match")
	}
}

func TestReadersDoNotBlockOnConcurrentWrite(t *testing.T) {
	tbl := NewTable(KLine)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			_ = tbl.Add(Entry{Kind: KLine, Pattern: "*!*@host" + string(rune('a'+i%26))})
		}
		close(done)
	}()
	for i := 0; i < 200; i++ {
		tbl.Match(MatchSubject{Nick: "x", User: "y", Host: "z"}, time.Now())
	}
	<-done
}

func TestExtendedBanAccount(t *testing.T) {
	kind, arg, ok := ParseExtBan("$a:baduser")
	if !ok || kind != ExtAccount || arg != "baduser" {
		t.Fatalf("parse: kind=%v arg=%v ok=%v", kind, arg, ok)
	}
	if !MatchExtBan(kind, arg, MatchSubject{Account: "baduser"}) {
		t.Fatal("expected match on account")
	}
	if MatchExtBan(kind, arg, MatchSubject{Account: "otheruser"}) {
		t.Fatal("expected no match on different account")
	}
}

func TestDLineCIDR(t *testing.T) {
	tbl := NewTable(DLine)
	_ = tbl.Add(Entry{Kind: DLine, Pattern: "10.0.0.0/8"})
	_, matched := tbl.Match(MatchSubject{IP: "10.1.2.3"}, time.Now())
	if !matched {
		t.Fatal("expected CIDR match")
	}
	_, matched = tbl.Match(MatchSubject{IP: "192.168.1.1"}, time.Now())
	if matched {
		t.Fatal("expected no match outside CIDR")
	}
}
