package irc

import (
	"testing"

	"github.com/emberd/emberd/irc/ids"
)

func TestServerPeerSIDThenUID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SID = "1AA"
	m := NewMatrix(cfg)

	sidCtx := &Context{Matrix: m, Msg: mustParse(t, "SID remote.example 1 2BB")}
	if err := m.Dispatcher.Dispatch(ServerPeerState, sidCtx); err != nil {
		t.Fatalf("SID: %v", err)
	}
	if _, ok := m.Sync.Peer(ids.SID("2BB")); !ok {
		t.Fatal("expected SID to register a peer")
	}

	uidCtx := &Context{Matrix: m, Msg: mustParse(t, "UID eve 1 1700000000 +i eve host.example 1.2.3.4 2BBAAAAAA :Eve Example")}
	if err := m.Dispatcher.Dispatch(ServerPeerState, uidCtx); err != nil {
		t.Fatalf("UID: %v", err)
	}
	u, ok := m.Users.ByNick("eve")
	if !ok || u.UID != ids.UID("2BBAAAAAA") {
		t.Fatal("expected UID burst to register the remote user under its nick")
	}
}
