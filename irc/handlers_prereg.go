package irc

import (
	"context"
	"strings"
	"time"

	"github.com/emberd/emberd/irc/caps"
	"github.com/emberd/emberd/irc/ids"
)

// preRegisteredHandlers builds the handler table for sessions still in
// PreRegistered state: only the commands spec.md §4.2 allows before
// registration completes.
func preRegisteredHandlers() HandlerTable {
	return HandlerTable{
		"NICK":         handlePreNick,
		"USER":         handlePreUser,
		"CAP":          handleCap,
		"AUTHENTICATE": handleAuthenticate,
		"PASS":         handlePass,
		"PING":         handlePing,
		"QUIT":         handleQuit,
	}
}

func handlePreNick(ctx *Context) error {
	nick := ctx.Msg.Param(0)
	if nick == "" {
		return NewProtocolError("NICK", "NEED_MORE_PARAMS", "missing nickname")
	}
	ctx.User.SetScratchNick(nick)
	maybeCompleteRegistration(ctx)
	return nil
}

func handlePreUser(ctx *Context) error {
	params := ctx.Msg.Params()
	if len(params) < 4 {
		return NewProtocolError("USER", "NEED_MORE_PARAMS", "missing parameters")
	}
	ctx.User.SetScratchUser(params[0], params[3])
	maybeCompleteRegistration(ctx)
	return nil
}

func handleCap(ctx *Context) error {
	sub := strings.ToUpper(ctx.Msg.Param(0))
	switch sub {
	case "LS":
		ctx.User.BeginCapNegotiation()
		var names []string
		for _, c := range caps.All() {
			names = append(names, c.String())
		}
		ctx.Reply(":" + ctx.Matrix.Config().ServerName + " CAP * LS :" + strings.Join(names, " "))
	case "REQ":
		ctx.User.BeginCapNegotiation()
		requested := strings.Fields(ctx.Msg.Param(1))
		for _, tok := range requested {
			if c, ok := caps.Lookup(tok); ok {
				ctx.User.NegotiateCap(c)
			}
		}
		ctx.Reply(":" + ctx.Matrix.Config().ServerName + " CAP * ACK :" + strings.Join(requested, " "))
	case "END":
		ctx.User.EndCapNegotiation()
		maybeCompleteRegistration(ctx)
	}
	return nil
}

func handleAuthenticate(ctx *Context) error {
	// The SASL sub-state machine lives on the session (spec.md §9's
	// "coroutine control flow" note); wiring it through Context requires
	// the gateway's session struct, built in the transport layer.
	return nil
}

func handlePass(ctx *Context) error {
	return nil
}

func handlePing(ctx *Context) error {
	ctx.Reply("PONG :" + ctx.Msg.Param(0))
	return nil
}

// handleQuit tears a session down: leaves every joined channel, records a
// WHOWAS snapshot, releases the directory entry, and transitions the
// session to Closed. Shared by both the pre-registered and registered
// handler tables since QUIT is legal in either state.
func handleQuit(ctx *Context) error {
	if ctx.User.State() == Registered {
		reason := ctx.Msg.Param(0)
		for _, casefold := range ctx.User.JoinedChannels() {
			if ch, ok := ctx.Matrix.Channels.Get(casefold); ok {
				_ = ch.Send(context.Background(), ChannelEvent{
					Kind: EvPart, Member: Member{UID: ctx.Caller}, SenderNick: ctx.User.Nick(), Reason: reason,
				}, 0)
			}
		}
		ctx.Matrix.WhoWas.Record(WhoWasEntry{
			Nick: ctx.User.Nick(), User: ctx.User.UserPart(), Host: ctx.User.Host(),
			RealName: ctx.User.RealName(), Account: ctx.User.Account(), QuitAt: time.Now(),
		})
		ctx.Matrix.Users.Unregister(ctx.User)
	}
	ctx.User.Close()
	return nil
}

// maybeCompleteRegistration finishes registration once NICK/USER/CAP END
// have all landed, per spec.md §4.2, and claims the nick in the directory.
func maybeCompleteRegistration(ctx *Context) {
	if !ctx.User.ReadyToRegister() {
		return
	}
	nick := ctx.User.RequestedNick()
	nickFold := ids.CasefoldNick(nick)
	if err := ctx.Matrix.Users.ClaimNick(nickFold, ctx.User.UID); err != nil {
		ctx.Reply(":" + ctx.Matrix.Config().ServerName + " 433 * " + nick + " :Nickname is already in use")
		return
	}
	if !ctx.User.CompleteRegistration(ctx.Matrix.Config().ServerName) {
		return
	}
	ctx.Matrix.Users.Register(ctx.User)
	ctx.Reply(":" + ctx.Matrix.Config().ServerName + " 001 " + ctx.User.Nick() + " :Welcome to " + ctx.Matrix.Config().NetworkName)
}
