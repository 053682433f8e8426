// Package historystore persists channel and direct-message history for the
// CHATHISTORY family of subcommands (spec.md §4.7), backed by buntdb's
// embedded, range-scannable key/value store.
package historystore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/buntdb"
)

// Entry is one stored line of history.
type Entry struct {
	MsgID   string    `json:"msgid"`
	Target  string    `json:"target"` // casefolded channel name or nick
	Nick    string    `json:"nick"`
	Account string    `json:"account,omitempty"`
	Kind    string    `json:"kind"` // PRIVMSG, NOTICE
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Store wraps a buntdb database keyed by target/timestamp/msgid, so a
// target's lines sort chronologically under the database's default
// byte-ordered index without any secondary index.
type Store struct {
	db        *buntdb.DB
	retention time.Duration
	maxPerKey int
}

// Open opens (creating if absent) the buntdb file at path. An empty path
// opens an in-memory database, the default for tests and embeddings that
// never set Config.HistoryPath.
func Open(path string, retention time.Duration, maxPerKey int) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("historystore: open %s: %w", path, err)
	}
	return &Store{db: db, retention: retention, maxPerKey: maxPerKey}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func key(target string, at time.Time, msgid string) string {
	return fmt.Sprintf("%s/%020d/%s", target, at.UnixNano(), msgid)
}

// targetPrefix is the byte range every key for target falls within.
func targetPrefix(target string) string { return target + "/" }

// Append stores e, expiring it after the configured retention duration (0
// means entries never expire on their own).
func (s *Store) Append(e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	var opts *buntdb.SetOptions
	if s.retention > 0 {
		opts = &buntdb.SetOptions{Expires: true, TTL: s.retention}
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key(e.Target, e.At, e.MsgID), string(payload), opts)
		if err != nil {
			return err
		}
		if s.maxPerKey > 0 {
			trimOldest(tx, e.Target, s.maxPerKey)
		}
		return nil
	})
}

// trimOldest deletes the oldest entries for target beyond maxPerKey,
// called under the same write transaction as the triggering Append.
func trimOldest(tx *buntdb.Tx, target string, maxPerKey int) {
	prefix := targetPrefix(target)
	var keys []string
	_ = tx.AscendGreaterOrEqual("", prefix, func(k, v string) bool {
		if !strings.HasPrefix(k, prefix) {
			return false
		}
		keys = append(keys, k)
		return true
	})
	if len(keys) <= maxPerKey {
		return
	}
	for _, k := range keys[:len(keys)-maxPerKey] {
		_, _ = tx.Delete(k)
	}
}

func (s *Store) scan(target string, pivot string, limit int, ascend bool) ([]Entry, error) {
	prefix := targetPrefix(target)
	var out []Entry
	err := s.db.View(func(tx *buntdb.Tx) error {
		iter := func(k, v string) bool {
			if !strings.HasPrefix(k, prefix) {
				return false
			}
			var e Entry
			if err := json.Unmarshal([]byte(v), &e); err == nil {
				out = append(out, e)
			}
			return limit <= 0 || len(out) < limit
		}
		if ascend {
			return tx.AscendGreaterOrEqual("", pivot, iter)
		}
		return tx.DescendLessOrEqual("", pivot, iter)
	})
	return out, err
}

// Latest returns up to limit of the most recent entries for target.
func (s *Store) Latest(target string, limit int) ([]Entry, error) {
	pivot := targetPrefix(target) + strings.Repeat("\xff", 1)
	return s.scan(target, pivot, limit, false)
}

// Before returns up to limit entries older than at.
func (s *Store) Before(target string, at time.Time, limit int) ([]Entry, error) {
	pivot := key(target, at, "")
	return s.scan(target, pivot, limit, false)
}

// After returns up to limit entries newer than at.
func (s *Store) After(target string, at time.Time, limit int) ([]Entry, error) {
	pivot := key(target, at, strings.Repeat("\xff", 1))
	return s.scan(target, pivot, limit, true)
}

// Between returns up to limit entries in [start, end].
func (s *Store) Between(target string, start, end time.Time, limit int) ([]Entry, error) {
	all, err := s.scan(target, key(target, start, ""), 0, true)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.At.After(end) {
			break
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Around returns up to limit entries centered on at: half before, half
// after, per the CHATHISTORY AROUND subcommand.
func (s *Store) Around(target string, at time.Time, limit int) ([]Entry, error) {
	half := limit / 2
	before, err := s.Before(target, at, half)
	if err != nil {
		return nil, err
	}
	after, err := s.After(target, at, limit-len(before))
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(before)+len(after))
	for i := len(before) - 1; i >= 0; i-- {
		out = append(out, before[i])
	}
	return append(out, after...), nil
}

// Targets lists every distinct target this account has history in between
// after and before, for the CHATHISTORY TARGETS subcommand. It is a full
// scan: the per-account conversation list is not expected to be large
// enough to warrant a secondary index.
func (s *Store) Targets(account string, after, before time.Time, limit int) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(k, v string) bool {
			var e Entry
			if err := json.Unmarshal([]byte(v), &e); err != nil {
				return true
			}
			if e.Account != account || e.At.Before(after) || e.At.After(before) {
				return true
			}
			if !seen[e.Target] {
				seen[e.Target] = true
				out = append(out, e.Target)
			}
			return limit <= 0 || len(out) < limit
		})
	})
	return out, err
}
