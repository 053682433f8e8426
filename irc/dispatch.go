package irc

import (
	"github.com/emberd/emberd/irc/ids"
	"github.com/emberd/emberd/irc/protocol"
)

// Context is what every handler receives: the session's outbound sink, a
// read handle on the Matrix, the parsed message, and the caller's UID.
// Handlers never reach into global state any other way (spec.md §4.5).
type Context struct {
	Matrix *Matrix
	Msg    protocol.MessageRef
	Caller ids.UID
	User   *User
	Sink   OutboundSink
}

// Reply writes a single line back to the caller's own session.
func (c *Context) Reply(line string) {
	if c.Sink != nil {
		_ = c.Sink.Deliver(line)
	}
}

// HandlerFunc is one command verb's implementation for a given lifecycle
// state. It returns an error so the dispatcher can convert it to a
// numeric; handlers never write error numerics themselves (spec.md §7).
type HandlerFunc func(ctx *Context) error

// HandlerTable maps an upper-cased verb to its handler for one lifecycle
// state. NewDispatcher builds the three tables once per Matrix and every
// session shares them, per spec.md §9's dynamic dispatch design note —
// constructing a fresh table per message would defeat the point of
// typestating dispatch on the session.
type HandlerTable map[string]HandlerFunc

// Dispatcher owns the three per-state tables and routes an incoming
// message to the right one based on the caller's current LifecycleState.
type Dispatcher struct {
	preRegistered HandlerTable
	registered    HandlerTable
	serverPeer    HandlerTable
}

// NewDispatcher builds the three static tables. There is exactly one
// Dispatcher per Matrix; it holds no per-connection state.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		preRegistered: preRegisteredHandlers(),
		registered:    registeredHandlers(),
		serverPeer:    serverPeerHandlers(),
	}
}

// Dispatch looks up the handler for msg.Command under state and runs it.
// An unrecognized verb is a ProtocolError carrying numeric 421, never a
// panic (spec.md §9).
func (d *Dispatcher) Dispatch(state LifecycleState, ctx *Context) error {
	var table HandlerTable
	switch state {
	case PreRegistered:
		table = d.preRegistered
	case Registered:
		table = d.registered
	case ServerPeerState:
		table = d.serverPeer
	default:
		return NewStateError(ctx.Msg.Command.String(), "CLOSED", "session is closed")
	}
	verb := ctx.Msg.Command.String()
	h, ok := table[verb]
	if !ok {
		return NewProtocolError(verb, "UNKNOWN_COMMAND", "unknown command")
	}
	return h(ctx)
}
