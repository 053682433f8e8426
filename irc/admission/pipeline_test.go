package admission

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/emberd/emberd/irc/bans"
)

func TestPipelineShortCircuitsOnIPDeny(t *testing.T) {
	ipDeny := NewIPDenyBitmap()
	ip := net.ParseIP("203.0.113.5")
	ipDeny.Deny(ip, bans.Entry{Kind: bans.DLine, Reason: "test"})

	limiter := NewRateLimiterSet(10, 1, 3, 1)
	rbl := NewRBLChecker(nil, "")
	banCache := &BanCache{KLines: bans.NewTable(bans.KLine), GLines: bans.NewTable(bans.GLine), RLines: bans.NewTable(bans.RLine), Shuns: bans.NewTable(bans.Shun)}
	spam := NewSpamDetector(time.Minute, 5, 3)

	p := New(ipDeny, limiter, rbl, banCache, spam)
	res := p.Evaluate(context.Background(), Request{IP: ip, Command: "NICK"})
	if res.Verdict != Disconnect {
		t.Fatalf("expected Disconnect, got %v (%s)", res.Verdict, res.Reason)
	}
	if res.Stage != "ip-deny" {
		t.Fatalf("expected short circuit at ip-deny, got stage %q", res.Stage)
	}
}

func TestRateLimiterDropsOverflow(t *testing.T) {
	limiter := NewRateLimiterSet(100, 100, 2, 0)
	var allowed, dropped int
	for i := 0; i < 5; i++ {
		res := limiter.Evaluate(context.Background(), Request{ConnID: "conn1", Command: "JOIN"})
		if res.Verdict == Ok {
			allowed++
		} else {
			dropped++
		}
	}
	if allowed != 2 {
		t.Fatalf("expected 2 allowed JOINs (bucket size), got %d", allowed)
	}
	if dropped != 3 {
		t.Fatalf("expected 3 dropped JOINs, got %d", dropped)
	}
}

func TestSpamDetectorRepeatThreshold(t *testing.T) {
	d := NewSpamDetector(time.Minute, 3, 10)
	now := time.Now()
	var lastVerdict Verdict
	for i := 0; i < 4; i++ {
		res := d.Observe("conn1", "same message", now.Add(time.Duration(i)*time.Millisecond))
		lastVerdict = res.Verdict
	}
	if lastVerdict != Drop {
		t.Fatalf("expected repeated message to be dropped, got %v", lastVerdict)
	}
}
