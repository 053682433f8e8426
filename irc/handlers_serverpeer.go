package irc

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/emberd/emberd/irc/ids"
	"github.com/emberd/emberd/irc/modes"
	"github.com/emberd/emberd/irc/sync"
)

// serverPeerHandlers builds the handler table for sessions that have
// completed the PASS/CAPAB/SERVER/SVINFO handshake and are relaying S2S
// traffic, per spec.md §6's TS6-like spanning tree.
func serverPeerHandlers() HandlerTable {
	return HandlerTable{
		"PING":   handlePeerPing,
		"SQUIT":  handlePeerSquit,
		"ENCAP":  handlePeerEncap,
		"UID":    handlePeerUID,
		"SID":    handlePeerSID,
		"SERVER": handlePeerServerIntro,
		"SVINFO": handlePeerSVINFO,
		"SJOIN":  handlePeerSJOIN,
		"TMODE":  handlePeerTMODE,
		"TB":     handlePeerTB,
		"BMASK":  handlePeerBMASK,
	}
}

func peerForCaller(ctx *Context) (*sync.Peer, bool) {
	return ctx.Matrix.Sync.Peer(ids.SID(ctx.Caller.ServerID()))
}

func handlePeerPing(ctx *Context) error {
	p, ok := peerForCaller(ctx)
	if !ok {
		return NewStateError("PING", "NO_SUCH_PEER", "unknown peer")
	}
	return p.Send("PONG " + ctx.Matrix.Config().ServerName)
}

func handlePeerSquit(ctx *Context) error {
	sid := ids.SID(ctx.Msg.Param(0))
	ctx.Matrix.Sync.SQUIT(sid)
	return nil
}

// handlePeerEncap applies an inbound ENCAP * CRDT payload: decode, resolve
// against local state, and forward along the spanning tree to every other
// active peer that has not already seen this op (spec.md §6 loop
// avoidance via per-peer seen-SID sets).
func handlePeerEncap(ctx *Context) error {
	if ctx.Msg.Param(1) != sync.EncapCRDTSubcommand {
		return nil
	}
	op, err := sync.DecodeOp(ctx.Msg.Param(2))
	if err != nil {
		return NewStateError("ENCAP", "SYNC_ERROR", err.Error())
	}

	if targetIsChannel(op.Target) {
		casefold := ids.CasefoldChannel(op.Target)
		if ch, ok := ctx.Matrix.Channels.Get(casefold); ok {
			_ = ch.Send(context.Background(), ChannelEvent{
				Kind: EvSync, SyncField: op.Field, SyncValue: op.Value,
				SyncTS: op.Timestamp.Seconds, SyncOrigin: op.Timestamp.Origin,
			}, 0)
		}
	}

	ctx.Matrix.Sync.Broadcast(op, sync.EncodeOp)
	return nil
}

// handlePeerUID introduces a remote user into the local directory so
// PRIVMSG/WHOIS/etc. can resolve it, per spec.md §6's burst handling.
func handlePeerUID(ctx *Context) error {
	params := ctx.Msg.Params()
	if len(params) < 9 {
		return NewProtocolError("UID", "NEED_MORE_PARAMS", "malformed UID burst line")
	}
	uid := ids.UID(params[7])
	if !uid.Valid() {
		return NewProtocolError("UID", "BAD_UID", "malformed uid")
	}
	remote := NewPreRegisteredUser(uid, noopSink{})
	remote.SetScratchNick(params[0])
	remote.SetScratchUser(params[4], params[8])
	remote.CompleteRegistration(params[5])
	if err := ctx.Matrix.Users.ClaimNick(remote.NickFold(), uid); err != nil {
		return NewStateError("UID", "NICK_IN_USE", "remote nick collides locally")
	}
	ctx.Matrix.Users.Register(remote)
	return nil
}

func handlePeerSID(ctx *Context) error {
	params := ctx.Msg.Params()
	if len(params) < 3 {
		return NewProtocolError("SID", "NEED_MORE_PARAMS", "malformed SID line")
	}
	hops, _ := strconv.Atoi(params[1])
	_ = hops
	sid := ids.SID(params[2])
	if !sid.Valid() {
		return NewProtocolError("SID", "BAD_SID", "malformed sid")
	}
	p := sync.NewPeer(sid, params[0], nil)
	ctx.Matrix.Sync.AddPeer(p)
	return nil
}

// noopSink discards traffic for remote users whose actual delivery happens
// over the peer link that introduced them, not a local socket.
type noopSink struct{}

func (noopSink) Deliver(string) error { return nil }

// handlePeerServerIntro answers the legacy "SERVER <name> <hopcount>
// :<description>" banner with SVINFO, per spec.md §6's handshake order
// (PASS -> CAPAB -> SERVER -> SVINFO -> Burst). The peer itself is already
// known by SID at this point; SERVER only carries the human-readable name.
func handlePeerServerIntro(ctx *Context) error {
	if len(ctx.Msg.Params()) < 1 {
		return NewProtocolError("SERVER", "NEED_MORE_PARAMS", "missing server name")
	}
	ctx.Reply("SVINFO 6 6 0 :" + strconv.FormatInt(time.Now().Unix(), 10))
	return nil
}

// handlePeerSVINFO acknowledges the peer's protocol-version banner; emberd
// speaks one wire version, so there is nothing to negotiate beyond parsing
// it without error.
func handlePeerSVINFO(ctx *Context) error {
	if len(ctx.Msg.Params()) < 1 {
		return NewProtocolError("SVINFO", "NEED_MORE_PARAMS", "malformed SVINFO")
	}
	return nil
}

// handlePeerSJOIN bursts a remote channel's membership in, per spec.md
// §4.6: "SJOIN <ts> <channel> <modestring> [<modeargs>...] :<members>".
// Members are space-separated UIDs with a leading rank-prefix run (the
// same qaohv set irc/modes advertises internally).
//
// TODO: full TS-collision mode wipe (RemoteWins stripping local ops) is not
// yet applied at the actor level; channelState has no stored creation TS to
// compare against today, so bursts currently merge rather than resolve.
func handlePeerSJOIN(ctx *Context) error {
	params := ctx.Msg.Params()
	if len(params) < 4 {
		return NewProtocolError("SJOIN", "NEED_MORE_PARAMS", "malformed SJOIN")
	}
	ts, err := strconv.ParseInt(params[0], 10, 64)
	if err != nil {
		return NewProtocolError("SJOIN", "BAD_TS", "malformed timestamp")
	}
	name := params[1]
	casefold := ids.CasefoldChannel(name)
	ch := ctx.Matrix.Channels.TakeOrCreate(name, casefold, func(deregister func(string, *Channel) bool) *Channel {
		return NewChannel(name, casefold, deregister)
	})
	_ = sync.ResolveChannelTS(ch.CreatedAt.Unix(), ts)

	memberList := params[len(params)-1]
	for _, tok := range strings.Fields(memberList) {
		uid, flags := parseSJOINMember(tok)
		u, ok := ctx.Matrix.Users.ByUID(uid)
		if !ok {
			continue
		}
		member := Member{UID: uid, Nick: u.Nick(), Flags: flags, Sink: u.Sink()}
		_ = ch.Send(context.Background(), ChannelEvent{
			Kind: EvJoin, Sender: uid, SenderNick: u.Nick(), Member: member,
		}, 0)
		u.MarkJoined(casefold)
	}
	return nil
}

// parseSJOINMember splits a burst member token into its UID and the
// member-rank flags encoded by its leading prefix-symbol run.
func parseSJOINMember(tok string) (ids.UID, modes.MemberFlags) {
	var flags modes.MemberFlags
	i := 0
	for i < len(tok) {
		m, ok := modes.ModeForPrefix(tok[i])
		if !ok {
			break
		}
		flags.Set(m)
		i++
	}
	return ids.UID(tok[i:]), flags
}

// handlePeerTMODE applies a remote channel-mode change, per spec.md §6's
// "TMODE <ts> <channel> <modestring> [<args>...]".
func handlePeerTMODE(ctx *Context) error {
	params := ctx.Msg.Params()
	if len(params) < 3 {
		return NewProtocolError("TMODE", "NEED_MORE_PARAMS", "malformed TMODE")
	}
	casefold := ids.CasefoldChannel(params[1])
	ch, ok := ctx.Matrix.Channels.Get(casefold)
	if !ok {
		return NewStateError("TMODE", "NO_SUCH_CHANNEL", "no such channel")
	}
	adds, removes, param := parseModeString(params[2], paramOrEmpty(params, 3))
	return ch.Send(context.Background(), ChannelEvent{
		Kind: EvModeChange, ModeAdds: adds, ModeRemoves: removes, ModeParam: param,
	}, 0)
}

// handlePeerTB bursts a channel's topic with its setter, per spec.md §6's
// "TB <channel> <topic-ts> [<setter>] :<topic>".
func handlePeerTB(ctx *Context) error {
	params := ctx.Msg.Params()
	if len(params) < 3 {
		return NewProtocolError("TB", "NEED_MORE_PARAMS", "malformed TB")
	}
	casefold := ids.CasefoldChannel(params[0])
	ch, ok := ctx.Matrix.Channels.Get(casefold)
	if !ok {
		return nil
	}
	setter := ""
	if len(params) >= 4 {
		setter = params[2]
	}
	return ch.Send(context.Background(), ChannelEvent{
		Kind: EvTopic, SenderNick: setter, Topic: params[len(params)-1],
	}, 0)
}

// handlePeerBMASK bursts a channel's ban/except/invex masks, per spec.md
// §6's "BMASK <ts> <channel> <b|e|I> :<mask> [<mask>...]".
func handlePeerBMASK(ctx *Context) error {
	params := ctx.Msg.Params()
	if len(params) < 4 {
		return NewProtocolError("BMASK", "NEED_MORE_PARAMS", "malformed BMASK")
	}
	casefold := ids.CasefoldChannel(params[1])
	ch, ok := ctx.Matrix.Channels.Get(casefold)
	if !ok {
		return nil
	}
	if len(params[2]) != 1 {
		return NewProtocolError("BMASK", "BAD_KIND", "malformed mask kind")
	}
	kind := BanBurstKind(params[2][0])
	masks := strings.Fields(params[len(params)-1])
	return ch.Send(context.Background(), ChannelEvent{
		Kind: EvBanBurst, BurstKind: kind, Masks: masks,
	}, 0)
}
