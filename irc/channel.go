package irc

import (
	"context"
	"time"

	"github.com/emberd/emberd/irc/bans"
	"github.com/emberd/emberd/irc/ids"
	"github.com/emberd/emberd/irc/modes"
)

// mailboxCapacity is the bounded mailbox size from spec.md §4.3.
const mailboxCapacity = 1024

// defaultSendTimeout is the bounded-send-timeout backpressure signal a
// caller observes on mailbox overflow, per spec.md §4.3.
const defaultSendTimeout = 50 * time.Millisecond

// ChannelEventKind is the closed sum type of channel mailbox events.
type ChannelEventKind int

const (
	EvJoin ChannelEventKind = iota
	EvPart
	EvKick
	EvPrivmsg
	EvNotice
	EvTagmsg
	EvTopic
	EvModeChange
	EvNamesQuery
	EvWhoQuery
	EvGetModes // spec's Open Question #1: included, for WHO/MODE symmetry
	EvKickAll
	EvSync     // inbound CRDT op from S2S
	EvBanBurst // inbound BMASK burst from S2S
	EvDestroy
)

// BanBurstKind identifies which of the three mask tables a BMASK burst
// targets, per spec.md §6's S2S burst verbs.
type BanBurstKind byte

const (
	BurstBan BanBurstKind = 'b'
	BurstExcept BanBurstKind = 'e'
	BurstInvex BanBurstKind = 'I'
)

// Member is the channel's view of one joined user: just enough to route
// and render without holding a User reference (spec.md §9 cyclic-ownership
// fix: cross-references are IDs resolved on demand).
type Member struct {
	UID   ids.UID
	Nick  string
	Flags modes.MemberFlags
	Sink  OutboundSink
	Caps  SubscribedCaps
}

// SubscribedCaps is the subset of a member's negotiated capabilities the
// channel actor needs to know about when filtering broadcast delivery.
type SubscribedCaps struct {
	EchoMessage  bool
	AwayNotify   bool
	AccountTag   bool
	MessageTags  bool
	ServerTime   bool
}

// OutboundSink is the per-session frame sink a channel writes delivered
// messages to; implemented by the gateway's connection writer.
type OutboundSink interface {
	Deliver(line string) error
}

// ChannelEvent is the mailbox's closed event type. Events carry a reply
// channel only when the caller needs a result (queries); broadcasts are
// fire-and-forget, matching spec.md §4.3.
type ChannelEvent struct {
	Kind ChannelEventKind

	Sender   ids.UID
	SenderNick string

	// Join/Part/Kick
	Member Member
	Reason string
	KickedBy string

	// Privmsg/Notice/Tagmsg
	Text string
	Tags map[string]string

	// Topic
	Topic     string
	TopicTime time.Time

	// ModeChange
	ModeAdds   []modes.Mode
	ModeRemoves []modes.Mode
	ModeParam  string

	// Sync (inbound CRDT op)
	SyncField string
	SyncValue string
	SyncTS    int64
	SyncOrigin ids.SID

	// BanBurst (inbound BMASK)
	BurstKind BanBurstKind
	Masks     []string

	// Query reply channel, set only for *Query / GetModes events.
	Reply chan ChannelQueryResult
}

// ChannelQueryResult answers a NamesQuery/WhoQuery/GetModes event.
type ChannelQueryResult struct {
	Names []string // prefix + nick
	Who   []Member
	Flags modes.ChannelFlags
}

// BanChecker is the subset of the ban system a channel needs to filter
// PRIVMSG delivery (quiet masks) without importing the full admission
// pipeline.
type BanChecker interface {
	Matches(subject bans.MatchSubject) bool
}

// Channel is the per-channel actor: one goroutine owns all mutable state
// here, and every mutation flows through mailbox events (spec.md §4.3's
// "no external code writes channel state directly" invariant).
type Channel struct {
	Name      string
	Casefold  string
	CreatedAt time.Time

	mailbox chan ChannelEvent

	// deregister is called by the actor's own goroutine exactly once, when
	// member count hits zero without +P, to remove itself from the
	// directory atomically with respect to concurrent take-or-create.
	deregister func(casefold string, ch *Channel) bool

	destroyed chan struct{}

	overflowCount *int64
}

// channelState is the actor-private state, touched only from run().
type channelState struct {
	members map[ids.UID]*Member
	flags   modes.ChannelFlags
	key     string
	limit   int
	forward string

	topic     string
	topicSetter string
	topicAt   time.Time

	bans    *bans.Table
	excepts *bans.Table
	invites *bans.Table
}

// NewChannel constructs a Channel and starts its actor goroutine. deregister
// is invoked from inside the actor's own goroutine when the channel empties
// out; it must perform an atomic take-or-create-safe removal.
func NewChannel(name string, casefold string, deregister func(string, *Channel) bool) *Channel {
	c := &Channel{
		Name:          name,
		Casefold:      casefold,
		CreatedAt:     time.Now(),
		mailbox:       make(chan ChannelEvent, mailboxCapacity),
		deregister:    deregister,
		destroyed:     make(chan struct{}),
		overflowCount: new(int64),
	}
	go c.run()
	return c
}

// Send delivers ev to the mailbox, blocking up to timeout before the
// caller observes backpressure. A zero timeout uses defaultSendTimeout.
// Per spec.md §4.3, mailbox overflow drops the newest event (this send)
// rather than blocking indefinitely.
func (c *Channel) Send(ctx context.Context, ev ChannelEvent, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case c.mailbox <- ev:
		return nil
	case <-t.C:
		*c.overflowCount++
		return errServerBusy
	case <-ctx.Done():
		return ctx.Err()
	case <-c.destroyed:
		return errChannelGone
	}
}

// Query sends ev (which must have Reply set) and awaits the actor's answer.
func (c *Channel) Query(ctx context.Context, ev ChannelEvent, timeout time.Duration) (ChannelQueryResult, error) {
	ev.Reply = make(chan ChannelQueryResult, 1)
	if err := c.Send(ctx, ev, timeout); err != nil {
		return ChannelQueryResult{}, err
	}
	select {
	case res := <-ev.Reply:
		return res, nil
	case <-ctx.Done():
		return ChannelQueryResult{}, ctx.Err()
	case <-c.destroyed:
		return ChannelQueryResult{}, errChannelGone
	}
}

// OverflowCount returns the number of dropped-on-overflow events, for metrics.
func (c *Channel) OverflowCount() int64 { return *c.overflowCount }

// run is the actor loop: the only goroutine that ever touches state. Events
// from the same sender arrive in send order (Go channels are FIFO), giving
// the per-channel ordering guarantee spec.md §4.3/§5 requires. There is no
// cross-channel ordering guarantee because each channel has its own
// independent mailbox and goroutine.
func (c *Channel) run() {
	st := &channelState{
		members: map[ids.UID]*Member{},
		bans:    bans.NewTable(bans.KLine), // reused as a generic mask table for +b
		excepts: bans.NewTable(bans.KLine),
		invites: bans.NewTable(bans.KLine),
	}

	for ev := range c.mailbox {
		switch ev.Kind {
		case EvJoin:
			c.handleJoin(st, ev)
		case EvPart:
			if c.handlePartOrKick(st, ev.Member.UID, ev.SenderNick, ev.Reason, "") {
				close(c.destroyed)
				return
			}
		case EvKick:
			if c.handlePartOrKick(st, ev.Member.UID, ev.KickedBy, ev.Reason, ev.Member.Nick) {
				close(c.destroyed)
				return
			}
		case EvPrivmsg, EvNotice, EvTagmsg:
			c.broadcastMessage(st, ev)
		case EvTopic:
			st.topic = ev.Topic
			st.topicSetter = ev.SenderNick
			st.topicAt = ev.TopicTime
			c.broadcastRaw(st, ev.Sender, formatTopicLine(ev.SenderNick, c.Name, ev.Topic))
		case EvModeChange:
			c.applyModeChange(st, ev)
		case EvNamesQuery, EvGetModes:
			c.answerQuery(st, ev)
		case EvWhoQuery:
			c.answerQuery(st, ev)
		case EvKickAll:
			c.broadcastRaw(st, ev.Sender, ev.Text)
			st.members = map[ids.UID]*Member{}
		case EvSync:
			c.applySync(st, ev)
		case EvBanBurst:
			c.applyBanBurst(st, ev)
		case EvDestroy:
			close(c.destroyed)
			return
		}

		if len(st.members) == 0 && !st.flags.Has(modes.Persistent) {
			if c.deregister(c.Casefold, c) {
				close(c.destroyed)
				return
			}
			// a concurrent JOIN raced us and the directory kept this
			// channel alive; keep running.
		}
	}
}

func (c *Channel) handleJoin(st *channelState, ev ChannelEvent) {
	m := ev.Member
	st.members[m.UID] = &m
	c.broadcastRaw(st, ev.Sender, formatJoinLine(ev.SenderNick, c.Name))
}

// handlePartOrKick removes a member and broadcasts the departure. Returns
// true if the channel is now empty of members and non-persistent, meaning
// the caller (run's main loop already checks this too, redundantly for
// the immediate-exit fast path used by callers awaiting Send).
func (c *Channel) handlePartOrKick(st *channelState, uid ids.UID, actor, reason, kicked string) bool {
	delete(st.members, uid)
	if kicked != "" {
		c.broadcastRaw(st, uid, formatKickLine(actor, c.Name, kicked, reason))
	} else {
		c.broadcastRaw(st, uid, formatPartLine(actor, c.Name, reason))
	}
	return len(st.members) == 0 && !st.flags.Has(modes.Persistent)
}

// broadcastMessage writes the frame to every member's outbound sink; the
// only member skipped is the sender, when it has not negotiated
// echo-message. Ban/quiet masks and other capabilities are not consulted.
// A send failure to one member must not abort delivery to others
// (spec.md §4.3).
func (c *Channel) broadcastMessage(st *channelState, ev ChannelEvent) {
	line := formatChatLine(ev.SenderNick, c.Name, ev.Kind, ev.Text, ev.Tags)
	for uid, m := range st.members {
		if uid == ev.Sender && !m.Caps.EchoMessage {
			continue
		}
		_ = m.Sink.Deliver(line) // per-member failure isolated; no abort
	}
}

func (c *Channel) broadcastRaw(st *channelState, exclude ids.UID, line string) {
	for uid, m := range st.members {
		if uid == exclude {
			continue
		}
		_ = m.Sink.Deliver(line)
	}
}

func (c *Channel) applyModeChange(st *channelState, ev ChannelEvent) {
	for _, m := range ev.ModeAdds {
		switch m {
		case modes.Key:
			st.key = ev.ModeParam
		case modes.Forward:
			st.forward = ev.ModeParam
		default:
			st.flags.Set(m)
		}
	}
	for _, m := range ev.ModeRemoves {
		switch m {
		case modes.Key:
			st.key = ""
		case modes.Forward:
			st.forward = ""
		default:
			st.flags.Clear(m)
		}
	}
	c.broadcastRaw(st, ev.Sender, formatModeLine(ev.SenderNick, c.Name, ev.ModeAdds, ev.ModeRemoves, ev.ModeParam))
}

func (c *Channel) answerQuery(st *channelState, ev ChannelEvent) {
	if ev.Reply == nil {
		return
	}
	var res ChannelQueryResult
	res.Flags = st.flags
	for _, m := range st.members {
		prefix := m.Flags.HighestPrefix()
		name := m.Nick
		if prefix != 0 {
			name = string(prefix) + name
		}
		res.Names = append(res.Names, name)
		res.Who = append(res.Who, *m)
	}
	ev.Reply <- res
}

// applySync applies an inbound CRDT op (e.g. topic LWW-write arriving from
// a peer) to the channel's local view. TS comparison is delegated to the
// sync package by the caller before this event is ever sent; by the time
// it reaches the actor, the op has already won locally.
func (c *Channel) applySync(st *channelState, ev ChannelEvent) {
	switch ev.SyncField {
	case "topic":
		st.topic = ev.SyncValue
		st.topicAt = time.Unix(ev.SyncTS, 0)
	}
}

// applyBanBurst loads a burst of masks into the matching extended-mask
// table, per spec.md §6's BMASK verb: b -> bans, e -> exceptions, I ->
// invite exceptions.
func (c *Channel) applyBanBurst(st *channelState, ev ChannelEvent) {
	var tbl *bans.Table
	switch ev.BurstKind {
	case BurstBan:
		tbl = st.bans
	case BurstExcept:
		tbl = st.excepts
	case BurstInvex:
		tbl = st.invites
	default:
		return
	}
	for _, mask := range ev.Masks {
		_ = tbl.Add(bans.Entry{Kind: bans.KLine, Pattern: mask, Setter: ev.SenderNick, CreatedAt: time.Now()})
	}
}

var (
	errServerBusy  = channelError("server-busy: channel mailbox is full")
	errChannelGone = channelError("channel actor has exited")
)

type channelError string

func (e channelError) Error() string { return string(e) }

func formatJoinLine(nick, channel string) string {
	return ":" + nick + " JOIN " + channel
}

func formatPartLine(nick, channel, reason string) string {
	return ":" + nick + " PART " + channel + " :" + reason
}

func formatKickLine(actor, channel, target, reason string) string {
	return ":" + actor + " KICK " + channel + " " + target + " :" + reason
}

func formatTopicLine(nick, channel, topic string) string {
	return ":" + nick + " TOPIC " + channel + " :" + topic
}

func formatChatLine(nick, channel string, kind ChannelEventKind, text string, tags map[string]string) string {
	verb := "PRIVMSG"
	switch kind {
	case EvNotice:
		verb = "NOTICE"
	case EvTagmsg:
		verb = "TAGMSG"
	}
	prefix := ""
	for k, v := range tags {
		if prefix == "" {
			prefix = "@"
		} else {
			prefix += ";"
		}
		prefix += k + "=" + v
	}
	if prefix != "" {
		prefix += " "
	}
	if kind == EvTagmsg {
		return prefix + ":" + nick + " " + verb + " " + channel
	}
	return prefix + ":" + nick + " " + verb + " " + channel + " :" + text
}

func formatModeLine(nick, channel string, adds, removes []modes.Mode, param string) string {
	line := ":" + nick + " MODE " + channel + " "
	if len(adds) > 0 {
		line += "+"
		for _, m := range adds {
			line += string(m)
		}
	}
	if len(removes) > 0 {
		line += "-"
		for _, m := range removes {
			line += string(m)
		}
	}
	if param != "" {
		line += " " + param
	}
	return line
}
