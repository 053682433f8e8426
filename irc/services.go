package irc

import (
	"context"

	"github.com/emberd/emberd/irc/ids"
)

// ServiceEffectKind is the closed sum type of side effects a service
// (NickServ, ChanServ, Playback) can request, per spec.md §4.5. Services
// are pure: they accept a request and return effects; the dispatcher is
// the only thing that actually applies them.
type ServiceEffectKind int

const (
	EffectSendNumeric ServiceEffectKind = iota
	EffectSetAccount
	EffectGrantChannelMode
	EffectDropChannel
	EffectNotifyUser
)

// ServiceEffect is one requested side effect.
type ServiceEffect struct {
	Kind ServiceEffectKind

	TargetUID ids.UID
	Channel   string

	Numeric int
	Text    string

	Account string

	GrantMode  string // e.g. "+o" for GrantChannelMode
	GrantParam string
}

// ServiceRequest is what a client command routed to a service carries.
type ServiceRequest struct {
	CallerUID ids.UID
	Command   string // e.g. "REGISTER", "IDENTIFY", "OP"
	Args      []string
}

// Service is implemented by NickServ, ChanServ, Playback, etc. Because it
// returns effects instead of mutating state, a Service is fully testable
// without a running daemon, per spec.md §4.5.
type Service interface {
	Name() string
	Handle(req ServiceRequest) []ServiceEffect
}

// ApplyServiceEffects applies a slice of effects against the Matrix. This
// is the single place service side effects actually take hold. It takes
// no Cap[authz.ServiceEffect] token and makes no privilege check of its
// own; services themselves stay free of any authority dependency.
func (m *Matrix) ApplyServiceEffects(effects []ServiceEffect) {
	for _, eff := range effects {
		switch eff.Kind {
		case EffectSendNumeric:
			if u, ok := m.Users.ByUID(eff.TargetUID); ok {
				_ = u.Sink().Deliver(eff.Text)
			}
		case EffectSetAccount:
			if u, ok := m.Users.ByUID(eff.TargetUID); ok {
				u.SetSASLAccount(eff.Account)
			}
		case EffectGrantChannelMode:
			// Routed through the channel actor's own mailbox, never a
			// direct mutation, per spec.md §4.3.
			if ch, ok := m.Channels.Get(eff.Channel); ok {
				_ = ch.Send(context.Background(), ChannelEvent{
					Kind:      EvModeChange,
					Sender:    eff.TargetUID,
					ModeParam: eff.GrantParam,
				}, 0)
			}
		case EffectDropChannel:
			if ch, ok := m.Channels.Get(eff.Channel); ok {
				_ = ch.Send(context.Background(), ChannelEvent{Kind: EvDestroy}, 0)
			}
		case EffectNotifyUser:
			if u, ok := m.Users.ByUID(eff.TargetUID); ok {
				_ = u.Sink().Deliver(eff.Text)
			}
		}
	}
}
