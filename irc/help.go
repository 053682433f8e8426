// Copyright (c) 2026 emberd authors
// released under the MIT license

package irc

import (
	"sort"
	"strings"

	"github.com/goshuirc/irc-go/ircfmt"

	"github.com/emberd/emberd/irc/modes"
)

// helpEntry is one topic in the HELP index: either a command or a mode
// table, rendered as a short block of text. operOnly entries are withheld
// from non-operators, per spec.md §4.5's privilege-gated introspection.
type helpEntry struct {
	text     []string
	operOnly bool
}

// cmodeHelpText documents every channel mode irc/modes defines, keyed by
// the mode letter so HELP CMODE <letter> can answer directly.
var cmodeHelpText = map[modes.Mode]string{
	modes.BanMask:         "$b+b <mask>$b bans a nick!user@host mask from the channel",
	modes.BanException:    "$b+e <mask>$b exempts a mask from +b",
	modes.InviteException: "$b+I <mask>$b exempts a mask from +i",
	modes.Key:             "$b+k <key>$b requires a key to join",
	modes.Limit:           "$b+l <limit>$b caps the channel at <limit> members",
	modes.Forward:         "$b+f <channel>$b forwards users who can't join here to <channel>",
	modes.Moderated:       "$b+m$b silences users without voice or higher",
	modes.InviteOnly:      "$b+i$b requires an invite to join",
	modes.NoExternal:      "$b+n$b blocks messages from outside the channel",
	modes.Secret:          "$b+s$b hides the channel from LIST/WHOIS",
	modes.TopicLock:       "$b+t$b restricts TOPIC to channel operators",
	modes.RegisteredOnly:  "$b+r$b requires a logged-in account to join",
	modes.Persistent:      "$b+P$b keeps the channel alive with no members",
}

// umodeHelpText documents the user-mode letters advertised in RPL_MYINFO.
var umodeHelpText = map[byte]string{
	'i': "marks the user invisible in WHO/WHOIS to non-shared-channel users",
	'o': "marks the user a network operator",
	'r': "marks the user as authenticated to an account",
	's': "subscribes the user to server notices",
	'w': "subscribes the user to wallops",
}

// helpIndex is the command/topic help table. Command entries describe
// syntax and purpose; CMODES/UMODES are rendered from the hand-maintained
// mode help tables above.
var helpIndex = map[string]helpEntry{
	"NICK":    {text: []string{"NICK <nickname>", "Change your nickname."}},
	"USER":    {text: []string{"USER <username> 0 * <realname>", "Registers a connection; sent once, before the welcome."}},
	"JOIN":    {text: []string{"JOIN <channel>[,<channel>...]", "Joins one or more channels, creating them if they don't exist."}},
	"PART":    {text: []string{"PART <channel> [:<reason>]", "Leaves a channel."}},
	"PRIVMSG": {text: []string{"PRIVMSG <target> :<text>", "Sends a message to a nick or channel."}},
	"NOTICE":  {text: []string{"NOTICE <target> :<text>", "Like PRIVMSG, but must never trigger an automated reply."}},
	"TOPIC":   {text: []string{"TOPIC <channel> [:<topic>]", "Views or, with +t set, sets the channel topic (operators only)."}},
	"MODE":    {text: []string{"MODE <target> [<modes> [<args>...]]", "Views or changes channel or user modes. See HELP CMODES."}},
	"KICK":    {text: []string{"KICK <channel> <nick> [:<reason>]", "Removes a member from a channel; requires +o or higher."}},
	"WHO":     {text: []string{"WHO <channel>", "Lists the members of a channel."}},
	"WHOIS":   {text: []string{"WHOIS <nick>", "Shows identity and connection details for a nick."}},
	"WHOWAS":  {text: []string{"WHOWAS <nick> [<count>]", "Shows the most recent connections matching a now-unused nick."}},
	"LIST":    {text: []string{"LIST [<pattern>]", "Lists channels; with <pattern>, only the channel whose name equals it (case-insensitive)."}},
	"INVITE":  {text: []string{"INVITE <nick> <channel>", "Invites a nick to a channel, bypassing +i."}},
	"AWAY":    {text: []string{"AWAY [:<message>]", "Sets or clears your away status."}},
	"MONITOR": {text: []string{"MONITOR + <nick>[,<nick>...]", "Reports whether each listed nick is online when it is added; later changes are not announced."}},
	"BATCH":   {text: []string{"BATCH +<ref> <type> [<params>...]", "Wraps a group of related lines for atomic client-side handling."}},
	"CHATHISTORY": {text: []string{"CHATHISTORY <subcommand> <target> ...", "Requests stored history: LATEST, BEFORE, AFTER, BETWEEN, AROUND, or TARGETS."}},
	"OPER":   {text: []string{"OPER <name> <password>", "Authenticates as a network operator."}},
	"KILL":   {text: []string{"KILL <nick> :<reason>", "Disconnects a user from the network. Operator only."}, operOnly: true},
	"KLINE":  {text: []string{"KLINE <mask> :<reason>", "Bans a nick!user@host mask locally. Operator only."}, operOnly: true},
	"REHASH": {text: []string{"REHASH", "Reloads the server configuration without restarting. Operator only."}, operOnly: true},
	"STATS":  {text: []string{"STATS <letter>", "Reports server introspection data: u (uptime), o (operators), k (klines), l (peer links)."}},
	"MOTD":   {text: []string{"MOTD", "Displays the message of the day."}},
	"LUSERS": {text: []string{"LUSERS", "Reports user/channel/operator counts for the network."}},
	"CMODES": {text: cmodeLines()},
	"UMODES": {text: umodeLines()},
}

// cmodeLines renders cmodeHelpText as a sorted, formatted block, so the
// output is deterministic.
func cmodeLines() []string {
	keys := make([]modes.Mode, 0, len(cmodeHelpText))
	for m := range cmodeHelpText {
		keys = append(keys, m)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]string, 0, len(keys))
	for _, m := range keys {
		out = append(out, ircfmt.Unescape(cmodeHelpText[m]))
	}
	return out
}

// umodeLines renders umodeHelpText the same way.
func umodeLines() []string {
	keys := make([]byte, 0, len(umodeHelpText))
	for k := range umodeHelpText {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, ircfmt.Unescape("$b"+string(k)+"$b "+umodeHelpText[k]))
	}
	return out
}

// handleHelp answers HELP [<topic>] with RPL_HELPSTART/RPL_HELPTXT/
// RPL_ENDOFHELP (704/705/706), withholding operator-only topics from
// non-operators per spec.md §4.5.
func handleHelp(ctx *Context) error {
	topic := strings.ToUpper(ctx.Msg.Param(0))
	server := ctx.Matrix.Config().ServerName
	nick := ctx.User.Nick()

	if topic == "" {
		topic = "HELP"
		ctx.Reply(":" + server + " 704 " + nick + " " + topic + " :Topics: NICK JOIN PART PRIVMSG MODE CMODES UMODES WHOIS CHATHISTORY OPER KLINE REHASH STATS")
		ctx.Reply(":" + server + " 706 " + nick + " " + topic + " :End of HELP")
		return nil
	}

	entry, ok := helpIndex[topic]
	if !ok || (entry.operOnly && !ctx.User.HasPrivilege("oper:kline") && !ctx.User.HasPrivilege("oper:kill")) {
		ctx.Reply(":" + server + " 524 " + nick + " " + topic + " :No help available on this topic")
		return nil
	}

	ctx.Reply(":" + server + " 704 " + nick + " " + topic + " :" + entry.text[0])
	for _, line := range entry.text[1:] {
		ctx.Reply(":" + server + " 705 " + nick + " " + topic + " :" + line)
	}
	ctx.Reply(":" + server + " 706 " + nick + " " + topic + " :End of HELP")
	return nil
}
