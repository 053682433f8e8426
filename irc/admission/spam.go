package admission

import (
	"context"
	"regexp"
	"sync"
	"time"
)

// SpamDetector is stage 5 of the pipeline: sliding-window repetition and
// URL-density heuristics per spec.md §4.4.5.
type SpamDetector struct {
	mu          sync.Mutex
	history     map[string][]spamSample
	window      time.Duration
	repeatLimit int
	urlLimit    int
}

type spamSample struct {
	text string
	at   time.Time
}

var urlPattern = regexp.MustCompile(`(?i)https?://\S+`)

// NewSpamDetector builds a detector with the given sliding window,
// identical-message repeat threshold, and per-message URL-count threshold.
func NewSpamDetector(window time.Duration, repeatLimit, urlLimit int) *SpamDetector {
	return &SpamDetector{
		history:     make(map[string][]spamSample),
		window:      window,
		repeatLimit: repeatLimit,
		urlLimit:    urlLimit,
	}
}

func (s *SpamDetector) Name() string { return "spam-detector" }

// Observe records text from connID for repetition tracking; handlers call
// this for PRIVMSG/NOTICE/TAGMSG bodies specifically, since Evaluate's
// Request shape doesn't carry message text for every command.
func (s *SpamDetector) Observe(connID, text string, at time.Time) Result {
	if s.tooManyURLs(text) {
		return Result{Verdict: Drop, Reason: "excessive URL density"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	samples := s.history[connID]
	cutoff := at.Add(-s.window)
	kept := samples[:0]
	repeats := 0
	for _, sm := range samples {
		if sm.at.Before(cutoff) {
			continue
		}
		kept = append(kept, sm)
		if sm.text == text {
			repeats++
		}
	}
	kept = append(kept, spamSample{text: text, at: at})
	s.history[connID] = kept

	if repeats >= s.repeatLimit {
		return Result{Verdict: Drop, Reason: "repeated message"}
	}
	return ok()
}

func (s *SpamDetector) tooManyURLs(text string) bool {
	if s.urlLimit <= 0 {
		return false
	}
	return len(urlPattern.FindAllString(text, -1)) > s.urlLimit
}

// Evaluate satisfies the Stage interface; the fixed five-stage command
// pipeline (which carries no message body) always passes this stage, since
// URL/repetition checks require the message text supplied separately via
// Observe once a handler has the full PRIVMSG/NOTICE/TAGMSG body in hand.
func (s *SpamDetector) Evaluate(_ context.Context, _ Request) Result { return ok() }

// Release drops per-connection history; called from the cancellation path.
func (s *SpamDetector) Release(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, connID)
}
