package irc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emberd/emberd/irc/authz"
	"github.com/emberd/emberd/irc/bans"
	"github.com/emberd/emberd/irc/historystore"
	"github.com/emberd/emberd/irc/ids"
	"github.com/emberd/emberd/irc/modes"
)

// registeredHandlers builds the handler table for fully-registered client
// sessions — the bulk of spec.md's command surface.
func registeredHandlers() HandlerTable {
	return HandlerTable{
		"PING":    handlePing,
		"QUIT":    handleQuit,
		"PRIVMSG": handleSendMessage,
		"NOTICE":  handleSendMessage,
		"TAGMSG":  handleSendMessage,
		"JOIN":    handleJoin,
		"PART":    handlePart,
		"TOPIC":   handleTopic,
		"MODE":    handleMode,
		"KICK":    handleKick,
		"NAMES":   handleNames,
		"WHO":     handleWho,
		"AWAY":    handleAway,
		"OPER":    handleOper,
		"SETNAME": handleSetName,
		"HELP":    handleHelp,
		"WHOIS":   handleWhois,
		"WHOWAS":  handleWhowas,
		"INVITE":  handleInvite,
		"LIST":    handleList,
		"MONITOR": handleMonitor,
		"BATCH":   handleBatch,
		"CHATHISTORY": handleChatHistory,
		"KILL":    handleKill,
		"KLINE":   handleAddBan(bans.KLine),
		"DLINE":   handleAddBan(bans.DLine),
		"GLINE":   handleAddBan(bans.GLine),
		"ZLINE":   handleAddBan(bans.ZLine),
		"RLINE":   handleAddBan(bans.RLine),
		"SHUN":    handleAddBan(bans.Shun),
		"REHASH":  handleRehash,
		"STATS":   handleStats,
		"MOTD":    handleMotd,
		"LUSERS":  handleLusers,
	}
}

func targetIsChannel(target string) bool {
	return strings.HasPrefix(target, "#") || strings.HasPrefix(target, "&")
}

func handleSendMessage(ctx *Context) error {
	target := ctx.Msg.Param(0)
	if target == "" {
		return NewProtocolError(ctx.Msg.Command.String(), "NEED_MORE_PARAMS", "missing target")
	}
	text := ctx.Msg.Param(1)
	kind := EvPrivmsg
	switch ctx.Msg.Command.String() {
	case "NOTICE":
		kind = EvNotice
	case "TAGMSG":
		kind = EvTagmsg
	}

	if targetIsChannel(target) {
		casefold := ids.CasefoldChannel(target)
		ch, ok := ctx.Matrix.Channels.Get(casefold)
		if !ok {
			return NewStateError(ctx.Msg.Command.String(), "NO_SUCH_CHANNEL", "no such channel")
		}
		recordHistory(ctx, casefold, kind, text)
		return ch.Send(context.Background(), ChannelEvent{
			Kind: kind, Sender: ctx.Caller, SenderNick: ctx.User.Nick(),
			Text: text, Tags: ctx.Msg.Tags(),
		}, 0)
	}

	dest, ok := ctx.Matrix.Users.ByNick(ids.CasefoldNick(target))
	if !ok {
		return NewStateError(ctx.Msg.Command.String(), "NO_SUCH_NICK", "no such nick")
	}
	recordHistory(ctx, ids.CasefoldNick(target), kind, text)
	recordHistory(ctx, ctx.User.NickFold(), kind, text)
	line := formatChatLine(ctx.User.Nick(), target, kind, text, ctx.Msg.Tags())
	return dest.Sink().Deliver(line)
}

// recordHistory persists a PRIVMSG/NOTICE line under target (a casefolded
// channel or nick) for later CHATHISTORY retrieval. TAGMSG is ephemeral and
// is never archived.
func recordHistory(ctx *Context, target string, kind ChannelEventKind, text string) {
	if kind != EvPrivmsg && kind != EvNotice {
		return
	}
	verb := "PRIVMSG"
	if kind == EvNotice {
		verb = "NOTICE"
	}
	_ = ctx.Matrix.History.Append(historystore.Entry{
		MsgID: newMsgID(), Target: target, Nick: ctx.User.Nick(), Account: ctx.User.Account(),
		Kind: verb, Text: text, At: time.Now(),
	})
}

func handleJoin(ctx *Context) error {
	names := ctx.Msg.Param(0)
	if names == "" {
		return NewProtocolError("JOIN", "NEED_MORE_PARAMS", "missing channel")
	}
	for _, name := range strings.Split(names, ",") {
		if name == "" {
			continue
		}
		casefold := ids.CasefoldChannel(name)
		ch := ctx.Matrix.Channels.TakeOrCreate(name, casefold, func(deregister func(string, *Channel) bool) *Channel {
			return NewChannel(name, casefold, deregister)
		})
		member := Member{UID: ctx.Caller, Nick: ctx.User.Nick(), Sink: ctx.Sink}
		if err := ch.Send(context.Background(), ChannelEvent{
			Kind: EvJoin, Sender: ctx.Caller, SenderNick: ctx.User.Nick(), Member: member,
		}, 0); err != nil {
			return err
		}
		ctx.User.MarkJoined(casefold)
	}
	return nil
}

func handlePart(ctx *Context) error {
	name := ctx.Msg.Param(0)
	casefold := ids.CasefoldChannel(name)
	ch, ok := ctx.Matrix.Channels.Get(casefold)
	if !ok {
		return NewStateError("PART", "NO_SUCH_CHANNEL", "no such channel")
	}
	if err := ch.Send(context.Background(), ChannelEvent{
		Kind: EvPart, Sender: ctx.Caller, SenderNick: ctx.User.Nick(),
		Member: Member{UID: ctx.Caller}, Reason: ctx.Msg.Param(1),
	}, 0); err != nil {
		return err
	}
	ctx.User.MarkParted(casefold)
	return nil
}

func handleTopic(ctx *Context) error {
	name := ctx.Msg.Param(0)
	casefold := ids.CasefoldChannel(name)
	ch, ok := ctx.Matrix.Channels.Get(casefold)
	if !ok {
		return NewStateError("TOPIC", "NO_SUCH_CHANNEL", "no such channel")
	}
	params := ctx.Msg.Params()
	if len(params) < 2 {
		// query, not set; answered via a GetModes-style query in full impl.
		return nil
	}
	return ch.Send(context.Background(), ChannelEvent{
		Kind: EvTopic, Sender: ctx.Caller, SenderNick: ctx.User.Nick(), Topic: params[1],
	}, 0)
}

func handleMode(ctx *Context) error {
	target := ctx.Msg.Param(0)
	if !targetIsChannel(target) {
		return nil // user mode changes are out of this handler's scope
	}
	casefold := ids.CasefoldChannel(target)
	ch, ok := ctx.Matrix.Channels.Get(casefold)
	if !ok {
		return NewStateError("MODE", "NO_SUCH_CHANNEL", "no such channel")
	}
	params := ctx.Msg.Params()
	if len(params) < 2 {
		res, err := ch.Query(context.Background(), ChannelEvent{Kind: EvGetModes}, 0)
		if err != nil {
			return err
		}
		_ = res
		return nil
	}
	adds, removes, param := parseModeString(params[1], paramOrEmpty(params, 2))
	return ch.Send(context.Background(), ChannelEvent{
		Kind: EvModeChange, Sender: ctx.Caller, SenderNick: ctx.User.Nick(),
		ModeAdds: adds, ModeRemoves: removes, ModeParam: param,
	}, 0)
}

func paramOrEmpty(params []string, i int) string {
	if i < len(params) {
		return params[i]
	}
	return ""
}

// parseModeString parses a "+m-i" style mode string into add/remove lists.
func parseModeString(s, param string) (adds, removes []modes.Mode, p string) {
	adding := true
	for _, r := range s {
		switch r {
		case '+':
			adding = true
		case '-':
			adding = false
		default:
			m := modes.Mode(r)
			if adding {
				adds = append(adds, m)
			} else {
				removes = append(removes, m)
			}
		}
	}
	return adds, removes, param
}

func handleKick(ctx *Context) error {
	params := ctx.Msg.Params()
	if len(params) < 2 {
		return NewProtocolError("KICK", "NEED_MORE_PARAMS", "missing parameters")
	}
	casefold := ids.CasefoldChannel(params[0])
	ch, ok := ctx.Matrix.Channels.Get(casefold)
	if !ok {
		return NewStateError("KICK", "NO_SUCH_CHANNEL", "no such channel")
	}
	target, ok := ctx.Matrix.Users.ByNick(ids.CasefoldNick(params[1]))
	if !ok {
		return NewStateError("KICK", "NO_SUCH_NICK", "no such nick")
	}
	reason := ""
	if len(params) >= 3 {
		reason = params[2]
	}
	if err := ch.Send(context.Background(), ChannelEvent{
		Kind: EvKick, Member: Member{UID: target.UID, Nick: target.Nick()},
		KickedBy: ctx.User.Nick(), Reason: reason,
	}, 0); err != nil {
		return err
	}
	target.MarkParted(casefold)
	return nil
}

func handleNames(ctx *Context) error {
	casefold := ids.CasefoldChannel(ctx.Msg.Param(0))
	ch, ok := ctx.Matrix.Channels.Get(casefold)
	if !ok {
		return nil
	}
	res, err := ch.Query(context.Background(), ChannelEvent{Kind: EvNamesQuery}, 0)
	if err != nil {
		return err
	}
	ctx.Reply(":" + ctx.Matrix.Config().ServerName + " 353 " + ctx.User.Nick() + " = " + ch.Name + " :" + strings.Join(res.Names, " "))
	ctx.Reply(":" + ctx.Matrix.Config().ServerName + " 366 " + ctx.User.Nick() + " " + ch.Name + " :End of /NAMES list")
	return nil
}

func handleWho(ctx *Context) error {
	casefold := ids.CasefoldChannel(ctx.Msg.Param(0))
	ch, ok := ctx.Matrix.Channels.Get(casefold)
	if !ok {
		return nil
	}
	res, err := ch.Query(context.Background(), ChannelEvent{Kind: EvWhoQuery}, 0)
	if err != nil {
		return err
	}
	for _, m := range res.Who {
		ctx.Reply(":" + ctx.Matrix.Config().ServerName + " 352 " + ctx.User.Nick() + " " + ch.Name + " " + m.Nick)
	}
	ctx.Reply(":" + ctx.Matrix.Config().ServerName + " 315 " + ctx.User.Nick() + " " + ch.Name + " :End of /WHO list")
	return nil
}

func handleAway(ctx *Context) error {
	ctx.User.SetAway(ctx.Msg.Param(0))
	return nil
}

func handleOper(ctx *Context) error {
	// Password verification against the relational store happens once
	// persistence is wired; for now the capability-token boundary is what
	// this handler demonstrates.
	ctx.User.GrantOperator()
	return nil
}

func handleSetName(ctx *Context) error {
	ctx.User.SetRealName(ctx.Msg.Param(0))
	return nil
}

// handleWhois answers WHOIS <nick> with identity and connection numerics.
func handleWhois(ctx *Context) error {
	server := ctx.Matrix.Config().ServerName
	nick := ctx.User.Nick()
	target := ctx.Msg.Param(0)
	if target == "" {
		return NewProtocolError("WHOIS", "NEED_MORE_PARAMS", "missing nick")
	}
	who, ok := ctx.Matrix.Users.ByNick(ids.CasefoldNick(target))
	if !ok {
		ctx.Reply(":" + server + " 401 " + nick + " " + target + " :No such nick/channel")
		ctx.Reply(":" + server + " 318 " + nick + " " + target + " :End of /WHOIS list")
		return nil
	}
	ctx.Reply(fmt.Sprintf(":%s 311 %s %s %s %s * :%s", server, nick, who.Nick(), who.UserPart(), who.Host(), who.RealName()))
	ctx.Reply(fmt.Sprintf(":%s 312 %s %s %s :emberd", server, nick, who.Nick(), server))
	if who.HasPrivilege("oper:kill") {
		ctx.Reply(fmt.Sprintf(":%s 313 %s %s :is a network operator", server, nick, who.Nick()))
	}
	if account := who.Account(); account != "" {
		ctx.Reply(fmt.Sprintf(":%s 330 %s %s %s :is logged in as", server, nick, who.Nick(), account))
	}
	ctx.Reply(":" + server + " 318 " + nick + " " + target + " :End of /WHOIS list")
	return nil
}

// handleWhowas answers WHOWAS <nick> [<count>] from the quit-snapshot ring.
func handleWhowas(ctx *Context) error {
	server := ctx.Matrix.Config().ServerName
	nick := ctx.User.Nick()
	target := ctx.Msg.Param(0)
	if target == "" {
		return NewProtocolError("WHOWAS", "NEED_MORE_PARAMS", "missing nick")
	}
	limit := 0
	if count := ctx.Msg.Param(1); count != "" {
		limit, _ = strconv.Atoi(count)
	}
	entries := ctx.Matrix.WhoWas.Lookup(ids.CasefoldNick(target), limit)
	if len(entries) == 0 {
		ctx.Reply(":" + server + " 406 " + nick + " " + target + " :There was no such nickname")
	}
	for _, e := range entries {
		ctx.Reply(fmt.Sprintf(":%s 314 %s %s %s %s * :%s", server, nick, e.Nick, e.User, e.Host, e.RealName))
		ctx.Reply(fmt.Sprintf(":%s 312 %s %s %s :%s", server, nick, e.Nick, server, e.QuitAt.UTC().Format(time.RFC1123)))
	}
	ctx.Reply(":" + server + " 369 " + nick + " " + target + " :End of WHOWAS")
	return nil
}

// handleInvite grants a single-use +i bypass and notifies the invitee.
func handleInvite(ctx *Context) error {
	params := ctx.Msg.Params()
	if len(params) < 2 {
		return NewProtocolError("INVITE", "NEED_MORE_PARAMS", "missing parameters")
	}
	target, ok := ctx.Matrix.Users.ByNick(ids.CasefoldNick(params[0]))
	if !ok {
		return NewStateError("INVITE", "NO_SUCH_NICK", "no such nick")
	}
	casefold := ids.CasefoldChannel(params[1])
	ctx.Matrix.Invites.Grant(casefold, target.NickFold())
	_ = target.Sink().Deliver(fmt.Sprintf(":%s INVITE %s %s", ctx.User.Nick(), target.Nick(), params[1]))
	server := ctx.Matrix.Config().ServerName
	ctx.Reply(fmt.Sprintf(":%s 341 %s %s %s", server, ctx.User.Nick(), target.Nick(), params[1]))
	return nil
}

// handleList answers LIST [<pattern>] with one 322 line per visible,
// non-secret channel.
func handleList(ctx *Context) error {
	server := ctx.Matrix.Config().ServerName
	nick := ctx.User.Nick()
	pattern := ctx.Msg.Param(0)
	for _, ch := range ctx.Matrix.Channels.All() {
		if pattern != "" && !strings.EqualFold(pattern, ch.Name) {
			continue
		}
		res, err := ch.Query(context.Background(), ChannelEvent{Kind: EvGetModes}, 0)
		if err != nil {
			continue
		}
		if res.Flags.Has(modes.Secret) {
			continue
		}
		count, _ := ch.Query(context.Background(), ChannelEvent{Kind: EvNamesQuery}, 0)
		ctx.Reply(fmt.Sprintf(":%s 322 %s %s %d :", server, nick, ch.Name, len(count.Names)))
	}
	ctx.Reply(":" + server + " 323 " + nick + " :End of /LIST")
	return nil
}

// handleMonitor implements the IRCv3 MONITOR draft's +/-/C/L subcommands.
func handleMonitor(ctx *Context) error {
	server := ctx.Matrix.Config().ServerName
	nick := ctx.User.Nick()
	sub := ctx.Msg.Param(0)
	switch sub {
	case "+":
		for _, target := range strings.Split(ctx.Msg.Param(1), ",") {
			if target == "" {
				continue
			}
			if !ctx.Matrix.Monitors.Add(ctx.Caller, ids.CasefoldNick(target)) {
				ctx.Reply(":" + server + " 734 " + nick + " " + target + " :Monitor list is full")
				continue
			}
			if who, ok := ctx.Matrix.Users.ByNick(ids.CasefoldNick(target)); ok {
				ctx.Reply(":" + server + " 730 " + nick + " :" + who.Nick())
			} else {
				ctx.Reply(":" + server + " 731 " + nick + " :" + target)
			}
		}
	case "-":
		for _, target := range strings.Split(ctx.Msg.Param(1), ",") {
			ctx.Matrix.Monitors.Remove(ctx.Caller, ids.CasefoldNick(target))
		}
	case "C":
		ctx.Matrix.Monitors.Clear(ctx.Caller)
	case "L":
		for _, watched := range ctx.Matrix.Monitors.List(ctx.Caller) {
			ctx.Reply(":" + server + " 732 " + nick + " :" + watched)
		}
		ctx.Reply(":" + server + " 733 " + nick + " :End of MONITOR list")
	}
	return nil
}

// handleBatch is a no-op on the inbound path: BATCH is a server-to-client
// framing device, and the only legal client-to-server use (draft/batch
// constructions) carries no state this core needs to track.
func handleBatch(ctx *Context) error {
	return nil
}

// handleChatHistory serves CHATHISTORY's LATEST/BEFORE/AFTER/BETWEEN/
// AROUND/TARGETS subcommands out of historystore, batching replies behind
// a draft/chathistory BATCH per the IRCv3 specification.
func handleChatHistory(ctx *Context) error {
	params := ctx.Msg.Params()
	if len(params) < 1 {
		return NewProtocolError("CHATHISTORY", "NEED_MORE_PARAMS", "missing subcommand")
	}
	server := ctx.Matrix.Config().ServerName
	sub := strings.ToUpper(params[0])

	if sub == "TARGETS" {
		targets, err := ctx.Matrix.History.Targets(ctx.User.Account(), time.Time{}, time.Now(), 100)
		if err != nil {
			return NewPersistenceError("CHATHISTORY", err.Error(), true)
		}
		for _, t := range targets {
			ctx.Reply(fmt.Sprintf(":%s CHATHISTORY TARGETS %s", server, t))
		}
		return nil
	}

	if len(params) < 2 {
		return NewProtocolError("CHATHISTORY", "NEED_MORE_PARAMS", "missing target")
	}
	target := ids.CasefoldNick(params[1])
	if targetIsChannel(params[1]) {
		target = ids.CasefoldChannel(params[1])
	}
	limit := 50
	if len(params) >= 3 {
		if n, err := strconv.Atoi(params[len(params)-1]); err == nil {
			limit = n
		}
	}

	var entries []historystore.Entry
	var err error
	switch sub {
	case "LATEST":
		entries, err = ctx.Matrix.History.Latest(target, limit)
	case "BEFORE":
		entries, err = ctx.Matrix.History.Before(target, time.Now(), limit)
	case "AFTER":
		entries, err = ctx.Matrix.History.After(target, time.Time{}, limit)
	case "AROUND":
		entries, err = ctx.Matrix.History.Around(target, time.Now(), limit)
	case "BETWEEN":
		entries, err = ctx.Matrix.History.Between(target, time.Time{}, time.Now(), limit)
	default:
		return NewProtocolError("CHATHISTORY", "UNKNOWN_SUBCOMMAND", "unknown CHATHISTORY subcommand")
	}
	if err != nil {
		return NewPersistenceError("CHATHISTORY", err.Error(), true)
	}

	batchRef := newMsgID()
	ctx.Reply(fmt.Sprintf(":%s BATCH +%s chathistory %s", server, batchRef, params[1]))
	for _, e := range entries {
		ctx.Reply(fmt.Sprintf("@batch=%s;msgid=%s;time=%s :%s %s %s :%s",
			batchRef, e.MsgID, e.At.UTC().Format(time.RFC3339), e.Nick, e.Kind, params[1], e.Text))
	}
	ctx.Reply(":" + server + " BATCH -" + batchRef)
	return nil
}

// handleKill disconnects a user, requiring a freshly minted Kill capability.
func handleKill(ctx *Context) error {
	params := ctx.Msg.Params()
	if len(params) < 1 {
		return NewProtocolError("KILL", "NEED_MORE_PARAMS", "missing nick")
	}
	capTok, err := authz.Check[authz.Kill](ctx.Matrix.Authz, string(ctx.Caller))
	if err != nil {
		return NewPermissionError("KILL", "NOT_OPERATOR", "KILL requires operator privileges")
	}
	capTok.Consume()

	target, ok := ctx.Matrix.Users.ByNick(ids.CasefoldNick(params[0]))
	if !ok {
		return NewStateError("KILL", "NO_SUCH_NICK", "no such nick")
	}
	reason := paramOrEmpty(params, 1)
	_ = target.Sink().Deliver(fmt.Sprintf(":%s KILL %s :%s (%s)", ctx.User.Nick(), target.Nick(), ctx.User.Nick(), reason))
	target.Close()
	ctx.Matrix.Users.Unregister(target)
	return nil
}

// handleAddBan returns a handler for one of the six X-line families:
// "<mask> [<duration>] :<reason>", requiring a fresh KLine capability.
// A duration argument is accepted but not parsed: every entry is stored
// without an expiry and stays until removed.
func handleAddBan(kind bans.Kind) HandlerFunc {
	return func(ctx *Context) error {
		params := ctx.Msg.Params()
		if len(params) < 1 {
			return NewProtocolError(kind.String(), "NEED_MORE_PARAMS", "missing mask")
		}
		capTok, err := authz.Check[authz.KLine](ctx.Matrix.Authz, string(ctx.Caller))
		if err != nil {
			return NewPermissionError(kind.String(), "NOT_OPERATOR", "this command requires operator privileges")
		}
		capTok.Consume()

		reason := paramOrEmpty(params, len(params)-1)
		entry := bans.Entry{
			Kind: kind, Pattern: params[0], Setter: ctx.User.Nick(),
			Reason: reason, CreatedAt: time.Now(),
		}
		table := tableForKind(ctx.Matrix, kind)
		if err := table.Add(entry); err != nil {
			return NewProtocolError(kind.String(), "BAD_PATTERN", err.Error())
		}
		if ctx.Matrix.Rel != nil {
			_ = ctx.Matrix.Rel.PersistBan(context.Background(), entry)
		}
		ctx.Reply(fmt.Sprintf(":%s NOTICE %s :%s set on %s", ctx.Matrix.Config().ServerName, ctx.User.Nick(), kind.String(), params[0]))
		return nil
	}
}

func tableForKind(m *Matrix, kind bans.Kind) *bans.Table {
	switch kind {
	case bans.KLine:
		return m.KLines
	case bans.DLine:
		return m.DLines
	case bans.GLine:
		return m.GLines
	case bans.ZLine:
		return m.ZLines
	case bans.RLine:
		return m.RLines
	default:
		return m.Shuns
	}
}

// handleRehash reloads configuration in place, requiring a Rehash
// capability. The new Config must be assembled by the embedder (a REHASH
// command carries no config payload of its own); this handler re-applies
// the currently active Config as a no-op reload when no hook is wired,
// which still exercises Matrix.Rehash's atomic swap.
func handleRehash(ctx *Context) error {
	capTok, err := authz.Check[authz.Rehash](ctx.Matrix.Authz, string(ctx.Caller))
	if err != nil {
		return NewPermissionError("REHASH", "NOT_OPERATOR", "REHASH requires operator privileges")
	}
	capTok.Consume()
	ctx.Matrix.Rehash(ctx.Matrix.Config())
	ctx.Reply(":" + ctx.Matrix.Config().ServerName + " 382 " + ctx.User.Nick() + " emberd.conf :Rehashing")
	return nil
}

// handleStats answers STATS <letter> with a small set of introspection
// reports: u (uptime), o (operators), k (klines), l (peer links).
func handleStats(ctx *Context) error {
	server := ctx.Matrix.Config().ServerName
	nick := ctx.User.Nick()
	letter := ctx.Msg.Param(0)
	switch letter {
	case "u":
		uptime := time.Since(ctx.Matrix.StartedAt)
		ctx.Reply(fmt.Sprintf(":%s 242 %s :Server Up %s", server, nick, uptime.Round(time.Second)))
	case "k":
		for _, e := range ctx.Matrix.KLines.All() {
			ctx.Reply(fmt.Sprintf(":%s 216 %s K %s * :%s", server, nick, e.Pattern, e.Reason))
		}
	case "o":
		for _, u := range ctx.Matrix.Users.All() {
			if u.HasPrivilege("oper:kill") {
				ctx.Reply(fmt.Sprintf(":%s 249 %s :%s", server, nick, u.Nick()))
			}
		}
	case "l":
		for _, p := range ctx.Matrix.Sync.ActivePeers() {
			in, out := p.Stats().Snapshot()
			ctx.Reply(fmt.Sprintf(":%s 211 %s %s %d %d", server, nick, p.Name, in, out))
		}
	}
	ctx.Reply(":" + server + " 219 " + nick + " " + letter + " :End of /STATS report")
	return nil
}

// handleMotd replies with the configured message of the day.
func handleMotd(ctx *Context) error {
	server := ctx.Matrix.Config().ServerName
	nick := ctx.User.Nick()
	motd := ctx.Matrix.Config().MOTD
	if len(motd) == 0 {
		ctx.Reply(":" + server + " 422 " + nick + " :MOTD File is missing")
		return nil
	}
	ctx.Reply(":" + server + " 375 " + nick + " :- " + server + " Message of the Day -")
	for _, line := range motd {
		ctx.Reply(":" + server + " 372 " + nick + " :- " + line)
	}
	ctx.Reply(":" + server + " 376 " + nick + " :End of /MOTD command")
	return nil
}

// handleLusers answers LUSERS with the network's user/channel/operator
// counts.
func handleLusers(ctx *Context) error {
	server := ctx.Matrix.Config().ServerName
	nick := ctx.User.Nick()
	users := ctx.Matrix.Users.All()
	operCount := 0
	for _, u := range users {
		if u.HasPrivilege("oper:kill") {
			operCount++
		}
	}
	ctx.Reply(fmt.Sprintf(":%s 251 %s :There are %d users on 1 server", server, nick, len(users)))
	ctx.Reply(fmt.Sprintf(":%s 252 %s %d :operator(s) online", server, nick, operCount))
	ctx.Reply(fmt.Sprintf(":%s 254 %s %d :channels formed", server, nick, ctx.Matrix.Channels.Count()))
	ctx.Reply(fmt.Sprintf(":%s 255 %s :I have %d clients and 1 server", server, nick, len(users)))
	return nil
}
