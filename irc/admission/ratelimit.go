package admission

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterSet is stage 2 of the pipeline: a per-connection token bucket,
// with stricter buckets for JOIN/NICK per spec.md §4.4.2. Grounded on
// golang.org/x/time/rate, the dependency hhirtz-senpai's go.mod pulls in
// for exactly this purpose.
type RateLimiterSet struct {
	mu       sync.Mutex
	buckets  map[string]*connectionBuckets
	defaultR rate.Limit
	defaultB int
	strictR  rate.Limit
	strictB  int
}

type connectionBuckets struct {
	general *rate.Limiter
	strict  *rate.Limiter // JOIN/NICK
}

// NewRateLimiterSet builds a set with the given default and strict-command
// bucket parameters (tokens, refill-per-second).
func NewRateLimiterSet(defaultTokens int, defaultRefillPerSec float64, strictTokens int, strictRefillPerSec float64) *RateLimiterSet {
	return &RateLimiterSet{
		buckets:  make(map[string]*connectionBuckets),
		defaultR: rate.Limit(defaultRefillPerSec),
		defaultB: defaultTokens,
		strictR:  rate.Limit(strictRefillPerSec),
		strictB:  strictTokens,
	}
}

func (r *RateLimiterSet) Name() string { return "rate-limiter" }

// bucketsFor returns (creating if needed) the bucket pair for connID.
func (r *RateLimiterSet) bucketsFor(connID string) *connectionBuckets {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[connID]
	if !ok {
		b = &connectionBuckets{
			general: rate.NewLimiter(r.defaultR, r.defaultB),
			strict:  rate.NewLimiter(r.strictR, r.strictB),
		}
		r.buckets[connID] = b
	}
	return b
}

// Release drops per-connection bucket state; callers invoke this from the
// cancellation path (spec §5) to bound memory.
func (r *RateLimiterSet) Release(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buckets, connID)
}

var strictCommands = map[string]bool{"JOIN": true, "NICK": true}

func (r *RateLimiterSet) Evaluate(_ context.Context, req Request) Result {
	b := r.bucketsFor(req.connID())
	limiter := b.general
	if strictCommands[req.Command] {
		limiter = b.strict
	}
	if !limiter.Allow() {
		return Result{Verdict: Drop, Reason: "RATE_LIMITED"}
	}
	return ok()
}

// connID derives a stable per-connection key. In production this would be
// the session's connection handle; Request carries enough identity
// (nick/host) to stand in for tests and for callers that have not yet
// assigned a session id.
func (req Request) connID() string {
	if req.ConnID != "" {
		return req.ConnID
	}
	if req.Nick != "" {
		return req.Nick
	}
	if req.IP != nil {
		return req.IP.String()
	}
	return req.Host
}
