// Package authz implements the capability-token pattern from spec.md
// §3/§4.5: an unforgeable, single-use proof that a privilege check just
// succeeded, required as an argument to any privileged operation so that
// "has an oper user reference lying around" can never substitute for a
// fresh check.
package authz

import "fmt"

// Authority mints tokens after verifying a caller's privilege. It is the
// only thing that can construct a valid Cap; a Cap's zero value is
// deliberately useless (Cap.Consume on it panics), which is what makes the
// pattern hard to bypass by accident.
type Authority struct {
	checker PrivilegeChecker
}

// PrivilegeChecker answers whether a given UID currently holds a named
// privilege (operator, admin, service). It is implemented by the Matrix's
// user directory; kept as an interface here so authz has no dependency on
// the rest of the core.
type PrivilegeChecker interface {
	HasPrivilege(uid string, privilege string) bool
}

// NewAuthority builds an Authority backed by checker.
func NewAuthority(checker PrivilegeChecker) *Authority {
	return &Authority{checker: checker}
}

// Cap is a privileged-operation-scoped, single-use capability token. The
// type parameter names which operation family the token is good for, so a
// KILL token and a KLINE token are not interchangeable even though both
// wrap the same underlying check.
type Cap[T any] struct {
	valid bool
	uid   string
}

// sentinelKind distinguishes operation families at the type level without
// requiring callers to implement any methods; see the exported marker
// types below.
type sentinelKind struct{ name string }

// Marker types for each privileged operation family named in spec §4.5.
type (
	// Kill marks tokens authorizing KILL.
	Kill struct{ sentinelKind }
	// KLine marks tokens authorizing KLINE/DLINE/GLINE/ZLINE/RLINE/SHUN mutations.
	KLine struct{ sentinelKind }
	// AcceptBurst marks tokens authorizing S2S burst acceptance.
	AcceptBurst struct{ sentinelKind }
	// ServiceEffect marks tokens authorizing application of a service effect.
	ServiceEffect struct{ sentinelKind }
	// Rehash marks tokens authorizing configuration rehash.
	Rehash struct{ sentinelKind }
)

// privilegeFor maps an operation family to the privilege name the
// Authority must confirm before minting a token for it.
func privilegeFor[T any]() string {
	switch any(*new(T)).(type) {
	case Kill:
		return "oper:kill"
	case KLine:
		return "oper:kline"
	case AcceptBurst:
		return "server:peer"
	case ServiceEffect:
		return "service:apply"
	case Rehash:
		return "oper:rehash"
	default:
		return "unknown"
	}
}

// Check performs a fresh privilege check for uid and, on success, mints a
// Cap[T] good for exactly one Consume call.
func Check[T any](a *Authority, uid string) (Cap[T], error) {
	priv := privilegeFor[T]()
	if !a.checker.HasPrivilege(uid, priv) {
		return Cap[T]{}, fmt.Errorf("authz: uid %s lacks privilege %s", uid, priv)
	}
	return Cap[T]{valid: true, uid: uid}, nil
}

// Consume returns the authorized uid and marks the token spent; a second
// Consume call, or calling Consume on a zero-value Cap, panics. This makes
// "reuse an old token" and "construct a Cap without Check" both immediate,
// loud failures instead of silent privilege bypass.
func (c *Cap[T]) Consume() string {
	if !c.valid {
		panic("authz: Cap consumed twice or constructed without Check")
	}
	c.valid = false
	return c.uid
}

// Valid reports whether the token has not yet been consumed, without
// consuming it — used by call sites that want to short-circuit before
// doing the (possibly expensive) privileged work.
func (c Cap[T]) Valid() bool { return c.valid }
