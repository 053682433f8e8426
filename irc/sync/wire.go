package sync

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emberd/emberd/irc/ids"
	"github.com/emberd/emberd/irc/protocol"
)

// Required S2S verbs per spec.md §6.
const (
	VerbPASS   = "PASS"
	VerbCAPAB  = "CAPAB"
	VerbSERVER = "SERVER"
	VerbSVINFO = "SVINFO"
	VerbUID    = "UID"
	VerbSID    = "SID"
	VerbSJOIN  = "SJOIN"
	VerbTMODE  = "TMODE"
	VerbTB     = "TB"
	VerbKICK   = "KICK"
	VerbKILL   = "KILL"
	VerbSQUIT  = "SQUIT"
	VerbENCAP  = "ENCAP"
	VerbPING   = "PING"
	VerbPONG   = "PONG"
	VerbBMASK  = "BMASK"
)

// EncapCRDTSubcommand is the ENCAP extension spec.md §6 names for
// propagating CRDT operations: "ENCAP * CRDT <payload>".
const EncapCRDTSubcommand = "CRDT"

// EncodeOp renders a CRDT Op as an ENCAP * CRDT line. The payload packs
// target, field, kind, value, timestamp, and the seen-SID set so a
// receiving peer can both apply the op and continue the spanning-tree
// broadcast without re-deriving any of that state.
func EncodeOp(op Op) string {
	seen := make([]string, 0, len(op.SeenSIDs))
	for sid := range op.SeenSIDs {
		seen = append(seen, string(sid))
	}
	payload := fmt.Sprintf("%s %s %d %s %d:%s %s",
		op.Target, op.Field, int(op.Kind), op.Value,
		op.Timestamp.Seconds, op.Timestamp.Origin, strings.Join(seen, ","))
	m, _ := protocol.Build(nil, "", VerbENCAP, "*", EncapCRDTSubcommand, payload)
	line, _ := protocol.Serialize(m)
	return line
}

// DecodeOp parses an ENCAP * CRDT payload back into an Op. The value may
// contain spaces, so the timestamp and seen-set are taken from the end.
func DecodeOp(payload string) (Op, error) {
	fields := strings.SplitN(payload, " ", 4)
	if len(fields) < 4 {
		return Op{}, fmt.Errorf("sync: malformed CRDT op payload: %q", payload)
	}
	i := strings.LastIndexByte(fields[3], ' ')
	j := -1
	if i >= 0 {
		j = strings.LastIndexByte(fields[3][:i], ' ')
	}
	if j < 0 {
		return Op{}, fmt.Errorf("sync: malformed CRDT op payload: %q", payload)
	}
	value, tsField, seenField := fields[3][:j], fields[3][j+1:i], fields[3][i+1:]
	kind, err := strconv.Atoi(fields[2])
	if err != nil {
		return Op{}, fmt.Errorf("sync: bad op kind: %w", err)
	}
	tsParts := strings.SplitN(tsField, ":", 2)
	if len(tsParts) != 2 {
		return Op{}, fmt.Errorf("sync: bad timestamp field: %q", tsField)
	}
	secs, err := strconv.ParseInt(tsParts[0], 10, 64)
	if err != nil {
		return Op{}, fmt.Errorf("sync: bad timestamp seconds: %w", err)
	}

	op := Op{
		Target:    fields[0],
		Field:     fields[1],
		Kind:      OpKind(kind),
		Value:     value,
		Timestamp: HybridTS{Seconds: secs, Origin: ids.SID(tsParts[1])},
	}
	if seenField != "" {
		for _, sid := range strings.Split(seenField, ",") {
			op.MarkSeen(ids.SID(sid))
		}
	}
	return op, nil
}

// BurstPhase enumerates the ordered burst stages from spec.md §4.6: local
// users, then local channels, then X-lines, then topics, then CRDT state.
type BurstPhase int

const (
	BurstUsers BurstPhase = iota
	BurstChannels
	BurstXLines
	BurstTopics
	BurstCRDT
	burstDone
)

func (p BurstPhase) String() string {
	switch p {
	case BurstUsers:
		return "users"
	case BurstChannels:
		return "channels"
	case BurstXLines:
		return "xlines"
	case BurstTopics:
		return "topics"
	case BurstCRDT:
		return "crdt"
	default:
		return "done"
	}
}

// Next returns the phase following p, and whether the burst is complete.
func (p BurstPhase) Next() (BurstPhase, bool) {
	if p+1 >= burstDone {
		return burstDone, true
	}
	return p + 1, false
}

// BurstSequencer drives one peer's burst forward by ordinary event-driven
// dispatch rather than a suspended coroutine, per spec.md §9's "coroutine
// control flow" design note: each call to Advance processes the current
// phase synchronously and moves to the next.
type BurstSequencer struct {
	phase BurstPhase
}

// NewBurstSequencer starts at the first phase.
func NewBurstSequencer() *BurstSequencer { return &BurstSequencer{phase: BurstUsers} }

// Phase returns the current phase.
func (b *BurstSequencer) Phase() BurstPhase { return b.phase }

// Advance moves to the next phase and reports whether the burst is now done.
func (b *BurstSequencer) Advance() (done bool) {
	next, done := b.phase.Next()
	b.phase = next
	return done
}

// TSResolution is the outcome of comparing two servers' view of the same
// channel on link, per spec.md §4.6's TS resolution rule.
type TSResolution int

const (
	// LocalWins means the local TS is lower: local modes/ops are kept.
	LocalWins TSResolution = iota
	// RemoteWins means the remote TS is lower: remote modes/ops are kept,
	// local ops are stripped (members remain, without op).
	RemoteWins
	// Merge means the timestamps are equal: modes merge additively.
	Merge
)

// ResolveChannelTS implements the channel-collision rule from spec.md
// §4.6: lower TS wins modes and ops; equal TS merges additively.
func ResolveChannelTS(localTS, remoteTS int64) TSResolution {
	switch {
	case localTS < remoteTS:
		return LocalWins
	case remoteTS < localTS:
		return RemoteWins
	default:
		return Merge
	}
}
