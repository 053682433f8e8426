package irc

import (
	"sync"
	"time"

	"github.com/emberd/emberd/irc/caps"
	"github.com/emberd/emberd/irc/ids"
	"github.com/emberd/emberd/irc/modes"
)

// LifecycleState is the typestate of spec.md §4.2: three one-way states a
// session moves through.
type LifecycleState int

const (
	PreRegistered LifecycleState = iota
	Registered
	ServerPeerState
	Closed
)

// preRegScratch holds everything accumulated before registration
// completes, per spec.md §4.2.
type preRegScratch struct {
	requestedNick string
	userPart      string
	realName      string
	capState      caps.NegotiationState
	negotiated    caps.Set
	saslAccount   string
	certFP        string
}

// User is the directory's record for one connected client: identity,
// attributes, and the set of joined channels by name (not by channel
// handle, per spec.md §9's cyclic-ownership fix).
type User struct {
	mu sync.RWMutex

	UID      ids.UID
	nick     string
	nickFold string

	userPart string
	host     string
	realName string
	account  string // "" if not logged in
	certFP   string

	modes    modes.MemberFlags // user-level operator/etc flags reused here
	away     string            // "" if not away

	sink OutboundSink

	joined map[string]bool // casefolded channel name -> member

	state LifecycleState
	scratch *preRegScratch

	caps       caps.Set
	connectedAt time.Time
}

// NewPreRegisteredUser constructs a User in the PreRegistered state.
func NewPreRegisteredUser(uid ids.UID, sink OutboundSink) *User {
	return &User{
		UID:         uid,
		sink:        sink,
		joined:      map[string]bool{},
		state:       PreRegistered,
		scratch:     &preRegScratch{},
		connectedAt: time.Now(),
	}
}

// State returns the current lifecycle state.
func (u *User) State() LifecycleState {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state
}

// Nick returns the current display nick.
func (u *User) Nick() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.nick
}

// NickFold returns the casefolded nick used as the directory key.
func (u *User) NickFold() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.nickFold
}

// ReadyToRegister reports whether nick+user are both set and, if CAP
// negotiation was started, CAP END has been received — the completion
// condition from spec.md §4.2.
func (u *User) ReadyToRegister() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.state != PreRegistered {
		return false
	}
	s := u.scratch
	if s.requestedNick == "" || s.userPart == "" || s.realName == "" {
		return false
	}
	return s.capState != caps.Negotiating
}

// CompleteRegistration transitions PreRegistered -> Registered, copying
// scratch fields into permanent ones. It is one-way: calling it twice is a
// no-op returning false the second time.
func (u *User) CompleteRegistration(host string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != PreRegistered {
		return false
	}
	u.nick = u.scratch.requestedNick
	u.nickFold = ids.CasefoldNick(u.nick)
	u.userPart = u.scratch.userPart
	u.realName = u.scratch.realName
	u.account = u.scratch.saslAccount
	u.certFP = u.scratch.certFP
	u.caps = u.scratch.negotiated
	u.host = host
	u.state = Registered
	u.scratch = nil
	return true
}

// Close transitions to Closed from any state; one-way, idempotent.
func (u *User) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.state = Closed
}

// SetScratchNick records a candidate nick during pre-registration.
func (u *User) SetScratchNick(nick string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.scratch != nil {
		u.scratch.requestedNick = nick
	}
}

// SetScratchUser records USER-command fields during pre-registration.
func (u *User) SetScratchUser(userPart, realName string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.scratch != nil {
		u.scratch.userPart = userPart
		u.scratch.realName = realName
	}
}

// BeginCapNegotiation marks CAP as started; CAP END is now required before
// ReadyToRegister can succeed.
func (u *User) BeginCapNegotiation() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.scratch != nil {
		u.scratch.capState = caps.Negotiating
	}
}

// RequestedNick returns the nick set via NICK during pre-registration, or
// "" once registration has completed (scratch is discarded at that point).
func (u *User) RequestedNick() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.scratch == nil {
		return ""
	}
	return u.scratch.requestedNick
}

// EndCapNegotiation marks CAP END.
func (u *User) EndCapNegotiation() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.scratch != nil {
		u.scratch.capState = caps.Ended
	}
}

// NegotiateCap adds c to the scratch capability set (pre-registration) or
// the live set (post-registration, e.g. a later CAP REQ is not legal per
// the handler table but kept generic here).
func (u *User) NegotiateCap(c caps.Capability) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.scratch != nil {
		u.scratch.negotiated.Add(c)
	} else {
		u.caps.Add(c)
	}
}

// HasCap reports whether the user has negotiated c.
func (u *User) HasCap(c caps.Capability) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.caps.Has(c)
}

// SetCertFP records a TLS client certificate fingerprint during pre-reg.
func (u *User) SetCertFP(fp string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.scratch != nil {
		u.scratch.certFP = fp
	} else {
		u.certFP = fp
	}
}

// SetSASLAccount records the account established via SASL, consumed at
// CompleteRegistration.
func (u *User) SetSASLAccount(account string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.scratch != nil {
		u.scratch.saslAccount = account
	} else {
		u.account = account
	}
}

// Account returns the logged-in account, or "" if none.
func (u *User) Account() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.account
}

// UserPart returns the ident/username field from USER.
func (u *User) UserPart() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.userPart
}

// Host returns the display hostname recorded at registration.
func (u *User) Host() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.host
}

// RealName returns the GECOS field from USER, or the value most recently
// set by SETNAME.
func (u *User) RealName() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.realName
}

// SetRealName updates the GECOS field (SETNAME command).
func (u *User) SetRealName(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.realName = name
}

// CertFP returns the TLS client certificate fingerprint, if any.
func (u *User) CertFP() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.certFP
}

// ConnectedAt returns when the session was constructed.
func (u *User) ConnectedAt() time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.connectedAt
}

// Rename updates the user's nick in place (NICK after registration); the
// directory-level atomic claim happens in UserManager, this just updates
// the User's own record once the claim has succeeded.
func (u *User) Rename(nick string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.nick = nick
	u.nickFold = ids.CasefoldNick(nick)
}

// JoinedChannels returns the casefolded names of every channel this user
// is currently a member of.
func (u *User) JoinedChannels() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]string, 0, len(u.joined))
	for name := range u.joined {
		out = append(out, name)
	}
	return out
}

// MarkJoined/MarkParted record channel membership for JoinedChannels.
func (u *User) MarkJoined(casefold string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.joined[casefold] = true
}

func (u *User) MarkParted(casefold string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.joined, casefold)
}

// Sink returns the outbound frame sink for this session.
func (u *User) Sink() OutboundSink {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.sink
}

// SetAway records an away message, or clears it if msg is "".
func (u *User) SetAway(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.away = msg
}

// Away returns the current away message and whether the user is away.
func (u *User) Away() (string, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.away, u.away != ""
}

// HasPrivilege implements authz.PrivilegeChecker for the single user.
// UserManager.HasPrivilege looks the user up by UID and delegates here.
func (u *User) HasPrivilege(privilege string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	switch privilege {
	case "oper:kill", "oper:kline", "oper:rehash":
		return u.modes.Has(modes.Operator)
	default:
		return false
	}
}

// GrantOperator sets the operator flag (OPER command success path).
func (u *User) GrantOperator() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.modes.Set(modes.Operator)
}
