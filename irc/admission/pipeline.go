// Package admission implements the layered pipeline of spec.md §4.4: IP
// deny bitmap, rate limiter, RBL, ban cache, and spam detector, evaluated
// in that fixed order with short-circuit on first match. This is the only
// path by which a client command reaches privileged state mutation;
// handlers assume their input already cleared every stage.
package admission

import (
	"context"
	"net"
	"time"

	"github.com/emberd/emberd/irc/bans"
)

// Verdict is the pipeline's outcome for one incoming command.
type Verdict int

const (
	// Ok means the command may proceed to handler dispatch.
	Ok Verdict = iota
	// Drop means the command is silently discarded (with a metric bump).
	Drop
	// Disconnect means the connection itself must be torn down.
	Disconnect
)

// Result carries a Verdict plus the human-readable reason behind it.
type Result struct {
	Verdict Verdict
	Reason  string
	Stage   string
}

func ok() Result { return Result{Verdict: Ok} }

// Request is everything the pipeline needs to evaluate one command.
type Request struct {
	ConnID   string
	IP       net.IP
	Command  string
	Account  string
	Nick     string
	User     string
	Host     string
	RealName string
	CertFP   string
}

// Stage is one pipeline step.
type Stage interface {
	Name() string
	Evaluate(ctx context.Context, req Request) Result
}

// Pipeline runs the five stages in fixed order.
type Pipeline struct {
	stages []Stage
}

// New builds the standard five-stage pipeline from spec.md §4.4, in order:
// IP deny bitmap, rate limiter, RBL, ban cache, spam detector.
func New(ipDeny *IPDenyBitmap, limiter *RateLimiterSet, rbl *RBLChecker, banCache *BanCache, spam *SpamDetector) *Pipeline {
	return &Pipeline{stages: []Stage{ipDeny, limiter, rbl, banCache, spam}}
}

// Evaluate runs req through every stage, short-circuiting on the first
// non-Ok result.
func (p *Pipeline) Evaluate(ctx context.Context, req Request) Result {
	for _, s := range p.stages {
		res := s.Evaluate(ctx, req)
		if res.Verdict != Ok {
			res.Stage = s.Name()
			return res
		}
	}
	return ok()
}

// BanCache wraps the four ban tables (K/G/R-line, shun) checked at stage 4
// against the caller. It does not evaluate per-channel extended bans.
type BanCache struct {
	KLines *bans.Table
	GLines *bans.Table
	RLines *bans.Table
	Shuns  *bans.Table
}

func (b *BanCache) Name() string { return "ban-cache" }

func (b *BanCache) Evaluate(_ context.Context, req Request) Result {
	subj := bans.MatchSubject{
		Nick: req.Nick, User: req.User, Host: req.Host,
		Account: req.Account, RealName: req.RealName, CertFP: req.CertFP,
	}
	now := time.Now()
	for _, tbl := range []*bans.Table{b.KLines, b.GLines} {
		if tbl == nil {
			continue
		}
		if e, matched := tbl.Match(subj, now); matched {
			return Result{Verdict: Disconnect, Reason: e.BanMessage("You are banned (%s)")}
		}
	}
	if b.RLines != nil {
		if e, matched := b.RLines.Match(subj, now); matched {
			return Result{Verdict: Disconnect, Reason: e.BanMessage("Realname banned (%s)")}
		}
	}
	if b.Shuns != nil {
		if _, matched := b.Shuns.Match(subj, now); matched {
			return Result{Verdict: Drop, Reason: "shunned"}
		}
	}
	return ok()
}
