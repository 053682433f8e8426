package irc

import "fmt"

// ErrorKind enumerates the closed set of error kinds from spec.md §7.
type ErrorKind int

const (
	KindProtocol ErrorKind = iota
	KindAuth
	KindState
	KindPermission
	KindRateLimited
	KindBanned
	KindSync
	KindPersistence
	KindInternal
)

// CoreError is the error type every layer of the core returns; it always
// carries the offending verb, a stable code string, and a human-readable
// reason, per spec.md §7's "user-visible failures" requirement.
type CoreError struct {
	Kind   ErrorKind
	Verb   string
	Code   string
	Reason string

	// Transient is only meaningful for KindPersistence: true means retry
	// with backoff, false means fatal.
	Transient bool
}

func (e *CoreError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Verb, e.Code, e.Reason)
}

// NewProtocolError builds a ProtocolError (malformed line, invalid UTF-8,
// too-many-args).
func NewProtocolError(verb, code, reason string) *CoreError {
	return &CoreError{Kind: KindProtocol, Verb: verb, Code: code, Reason: reason}
}

// NewStateError builds a StateError (nick-in-use, no-such-channel, etc.).
func NewStateError(verb, code, reason string) *CoreError {
	return &CoreError{Kind: KindState, Verb: verb, Code: code, Reason: reason}
}

// NewPermissionError builds a PermissionError (not-operator, etc.).
func NewPermissionError(verb, code, reason string) *CoreError {
	return &CoreError{Kind: KindPermission, Verb: verb, Code: code, Reason: reason}
}

// NewPersistenceError builds a PersistenceError, transient or fatal.
func NewPersistenceError(verb, reason string, transient bool) *CoreError {
	return &CoreError{Kind: KindPersistence, Verb: verb, Code: "PERSISTENCE", Reason: reason, Transient: transient}
}

// Numeric maps an error kind+code to the IRC numeric reply the dispatcher
// sends, per spec.md §7's propagation policy: ProtocolError/StateError/
// PermissionError/RateLimited/Banned/AuthError convert to numerics and the
// connection continues.
func (e *CoreError) Numeric() int {
	switch {
	case e.Kind == KindState && e.Code == "NICK_IN_USE":
		return 433
	case e.Kind == KindState && e.Code == "NO_SUCH_CHANNEL":
		return 403
	case e.Kind == KindState && e.Code == "NOT_ON_CHANNEL":
		return 442
	case e.Kind == KindState && e.Code == "CANNOT_SEND":
		return 404
	case e.Kind == KindPermission && e.Code == "NOT_OPERATOR":
		return 481
	case e.Kind == KindPermission && e.Code == "CHANOP_REQUIRED":
		return 482
	case e.Kind == KindRateLimited:
		return 0 // RATE_LIMITED is dropped silently or via FAIL, per §4.4.2
	case e.Kind == KindBanned:
		return 465
	case e.Kind == KindAuth:
		return 464
	case e.Kind == KindProtocol && e.Code == "UNKNOWN_COMMAND":
		return 421
	default:
		return 400
	}
}
