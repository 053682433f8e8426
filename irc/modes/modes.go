// Package modes defines the channel and user mode tables, matching the
// set documented by the teacher's own help text (irc/help.go's
// cmodeHelpText/umodeHelpText) and expanded per SPEC_FULL.md's supplement
// to include +P (persistent) and +f (forward).
package modes

// Mode is a single-character mode flag.
type Mode byte

// Channel list-modes: accumulate a list of masks rather than a single value.
const (
	BanMask      Mode = 'b'
	BanException Mode = 'e'
	InviteException Mode = 'I'
)

// Channel param-modes: take a parameter when set, some also when unset.
const (
	Key     Mode = 'k'
	Limit   Mode = 'l'
	Forward Mode = 'f'
)

// Channel flag-modes: simple on/off.
const (
	Moderated      Mode = 'm'
	InviteOnly     Mode = 'i'
	NoExternal     Mode = 'n'
	Secret         Mode = 's'
	TopicLock      Mode = 't'
	RegisteredOnly Mode = 'r'
	Persistent     Mode = 'P'
)

// Member prefix-modes, highest privilege first.
const (
	Founder   Mode = 'q'
	Admin     Mode = 'a'
	Operator  Mode = 'o'
	Halfop    Mode = 'h'
	Voice     Mode = 'v'
)

// PrefixSymbol maps a member mode to its display prefix, per spec.md §6's
// ISUPPORT PREFIX=(ohv)@%+ (the three externally-advertised ranks).
var PrefixSymbol = map[Mode]byte{
	Operator: '@',
	Halfop:   '%',
	Voice:    '+',
}

// internalRank orders every member mode (including the founder/admin ranks
// this core tracks internally even though ISUPPORT only advertises ohv)
// from highest to lowest privilege.
var internalRank = []Mode{Founder, Admin, Operator, Halfop, Voice}

// fullPrefixSymbol maps every internal member mode (not just the three
// ISUPPORT advertises) to its display prefix, for parsing S2S SJOIN member
// tokens, which carry the full qaohv rank set.
var fullPrefixSymbol = map[Mode]byte{
	Founder:  '~',
	Admin:    '&',
	Operator: '@',
	Halfop:   '%',
	Voice:    '+',
}

// ModeForPrefix reverses fullPrefixSymbol, used when parsing a SJOIN member
// token's leading rank-symbol run.
func ModeForPrefix(symbol byte) (Mode, bool) {
	for m, s := range fullPrefixSymbol {
		if s == symbol {
			return m, true
		}
	}
	return 0, false
}

// RankIndex returns m's position in internalRank (0 = highest), or -1 if m
// is not a member prefix mode.
func RankIndex(m Mode) int {
	for i, r := range internalRank {
		if r == m {
			return i
		}
	}
	return -1
}

// AtLeast reports whether held is at least as privileged as required.
func AtLeast(held, required Mode) bool {
	hi, ri := RankIndex(held), RankIndex(required)
	if hi < 0 || ri < 0 {
		return false
	}
	return hi <= ri
}

// MemberFlags is the per-member mode bitset a Channel tracks for each UID.
type MemberFlags struct {
	bits uint8
}

var memberBit = map[Mode]uint8{
	Founder:  1 << 0,
	Admin:    1 << 1,
	Operator: 1 << 2,
	Halfop:   1 << 3,
	Voice:    1 << 4,
}

// Set enables mode m.
func (f *MemberFlags) Set(m Mode) { f.bits |= memberBit[m] }

// Clear disables mode m.
func (f *MemberFlags) Clear(m Mode) { f.bits &^= memberBit[m] }

// Has reports whether mode m is enabled.
func (f MemberFlags) Has(m Mode) bool { return f.bits&memberBit[m] != 0 }

// HighestPrefix returns the display-prefix byte for the member's highest
// advertised rank, or 0 if they hold none of the advertised ranks.
func (f MemberFlags) HighestPrefix() byte {
	for _, m := range internalRank {
		if f.Has(m) {
			if sym, ok := PrefixSymbol[m]; ok {
				return sym
			}
		}
	}
	return 0
}

// AllPrefixes returns every advertised prefix the member currently holds,
// highest rank first — used for multi-prefix NAMES replies.
func (f MemberFlags) AllPrefixes() []byte {
	var out []byte
	for _, m := range internalRank {
		if f.Has(m) {
			if sym, ok := PrefixSymbol[m]; ok {
				out = append(out, sym)
			}
		}
	}
	return out
}

// ChannelFlags is the set of flag-modes enabled on a channel.
type ChannelFlags struct {
	bits uint16
}

var channelBit = map[Mode]uint16{
	Moderated:      1 << 0,
	InviteOnly:     1 << 1,
	NoExternal:     1 << 2,
	Secret:         1 << 3,
	TopicLock:      1 << 4,
	RegisteredOnly: 1 << 5,
	Persistent:     1 << 6,
}

func (f *ChannelFlags) Set(m Mode)      { f.bits |= channelBit[m] }
func (f *ChannelFlags) Clear(m Mode)    { f.bits &^= channelBit[m] }
func (f ChannelFlags) Has(m Mode) bool  { return f.bits&channelBit[m] != 0 }

// RplMyInfo returns the three mode-letter strings advertised in 004
// RPL_MYINFO: user modes, channel modes, and channel modes taking a
// parameter, built against spec.md's own mode list (no teacher file in
// the retrieval pack enumerates this table).
func RplMyInfo() (userModes, chanModes, chanModesWithParam string) {
	return "iorsw", "beIimnstPr", "klf"
}

// ISupportChanModes renders the CHANMODES=A,B,C,D ISUPPORT token per
// spec.md §6: A=list-modes, B=always-param, C=param-on-set-only, D=flags.
func ISupportChanModes() string {
	return "beI,kf,l,imnstPr"
}
