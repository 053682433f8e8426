package irc

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// newMsgID mints an IRCv3 msgid tag value: a timestamp prefix for rough
// chronological sort plus a random suffix for uniqueness within the same
// nanosecond, matching the shape historystore.Entry keys sort by.
func newMsgID() string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("%x%s", time.Now().UnixNano(), hex.EncodeToString(buf[:]))
}
