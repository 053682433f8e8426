package irc

import (
	"testing"

	"github.com/emberd/emberd/irc/ids"
	"github.com/emberd/emberd/irc/protocol"
)

func mustParse(t *testing.T, line string) protocol.MessageRef {
	t.Helper()
	m, err := protocol.Parse([]byte(line))
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	return m
}

func TestDispatchUnknownVerbReturns421(t *testing.T) {
	d := NewDispatcher()
	u := NewPreRegisteredUser(ids.UID("1AAAAAAAA"), testSink{})
	ctx := &Context{Msg: mustParse(t, "BOGUSVERB foo"), User: u, Sink: testSink{}}
	err := d.Dispatch(PreRegistered, ctx)
	ce, ok := err.(*CoreError)
	if !ok {
		t.Fatalf("expected *CoreError, got %T (%v)", err, err)
	}
	if ce.Numeric() != 421 {
		t.Fatalf("expected numeric 421, got %d", ce.Numeric())
	}
}

func TestPreRegisteredFlowCompletesRegistration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SID = "1AA"
	cfg.ServerName = "irc.example.test"
	cfg.NetworkName = "ExampleNet"
	m := NewMatrix(cfg)

	u := NewPreRegisteredUser(ids.UID("1AAAAAAAA"), testSink{})
	m.Users.Register(u) // register by UID up front, as the gateway would

	nickCtx := &Context{Matrix: m, Msg: mustParse(t, "NICK dana"), User: u, Sink: testSink{}}
	if err := m.Dispatcher.Dispatch(PreRegistered, nickCtx); err != nil {
		t.Fatalf("NICK: %v", err)
	}

	userCtx := &Context{Matrix: m, Msg: mustParse(t, "USER dana 0 * :Dana Example"), User: u, Sink: testSink{}}
	if err := m.Dispatcher.Dispatch(PreRegistered, userCtx); err != nil {
		t.Fatalf("USER: %v", err)
	}

	if u.State() != Registered {
		t.Fatalf("expected registration to complete once NICK+USER land, got state %v", u.State())
	}
	if got, ok := m.Users.ByNick("dana"); !ok || got.UID != u.UID {
		t.Fatal("expected the claimed nick to resolve back to this user")
	}
}

func TestRegisteredJoinAndPrivmsgRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SID = "1AA"
	m := NewMatrix(cfg)

	alice := NewPreRegisteredUser(ids.UID("1AAAAAAAA"), &recordingSink{})
	alice.SetScratchNick("alice")
	alice.SetScratchUser("alice", "Alice")
	alice.EndCapNegotiation()
	alice.CompleteRegistration("host")
	m.Users.ClaimNick("alice", alice.UID)
	m.Users.Register(alice)

	joinCtx := &Context{Matrix: m, Msg: mustParse(t, "JOIN #general"), Caller: alice.UID, User: alice, Sink: alice.Sink()}
	if err := m.Dispatcher.Dispatch(Registered, joinCtx); err != nil {
		t.Fatalf("JOIN: %v", err)
	}

	if _, ok := m.Channels.Get("#general"); !ok {
		t.Fatal("expected JOIN to create the channel")
	}

	msgCtx := &Context{Matrix: m, Msg: mustParse(t, "PRIVMSG #general :hello"), Caller: alice.UID, User: alice, Sink: alice.Sink()}
	if err := m.Dispatcher.Dispatch(Registered, msgCtx); err != nil {
		t.Fatalf("PRIVMSG: %v", err)
	}
}

type recordingSink struct{ lines []string }

func (r *recordingSink) Deliver(line string) error {
	r.lines = append(r.lines, line)
	return nil
}
