package irc

import (
	"hash/fnv"
	"sync"
)

// channelShardCount follows the teacher's sharded-concurrent-map approach
// for the directories spec.md §5 calls out ("user directory and channel
// directory are concurrent maps (sharded); reads are lock-free, writes
// shard-local").
const channelShardCount = 16

type channelShard struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

// ChannelManager is the Matrix's channel directory: the only place a
// Channel actor is created or removed, with atomic take-or-create so a
// JOIN racing a concurrent deregistration always resolves correctly
// (spec.md §4.3's invariant).
type ChannelManager struct {
	shards [channelShardCount]*channelShard
}

// NewChannelManager returns an empty directory.
func NewChannelManager() *ChannelManager {
	cm := &ChannelManager{}
	for i := range cm.shards {
		cm.shards[i] = &channelShard{channels: map[string]*Channel{}}
	}
	return cm
}

func (cm *ChannelManager) shardFor(casefold string) *channelShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(casefold))
	return cm.shards[h.Sum32()%channelShardCount]
}

// Get returns the channel for casefold, if it currently exists.
func (cm *ChannelManager) Get(casefold string) (*Channel, bool) {
	sh := cm.shardFor(casefold)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	c, ok := sh.channels[casefold]
	return c, ok
}

// TakeOrCreate returns the existing channel for casefold, or atomically
// creates and registers a new one via newFn. This is the single operation
// spec.md §4.3 requires to be atomic: a JOIN that arrives exactly as a
// previous instance is deregistering must create a fresh actor rather than
// handing back a dying one.
func (cm *ChannelManager) TakeOrCreate(name, casefold string, newFn func(deregister func(string, *Channel) bool) *Channel) *Channel {
	sh := cm.shardFor(casefold)

	sh.mu.Lock()
	if existing, ok := sh.channels[casefold]; ok {
		sh.mu.Unlock()
		return existing
	}
	// Build the channel while still holding the shard lock so no other
	// TakeOrCreate or deregister can interleave.
	var created *Channel
	created = newFn(cm.deregisterFn())
	sh.channels[casefold] = created
	sh.mu.Unlock()
	return created
}

// deregisterFn returns the callback a Channel actor calls on itself
// reaching zero members; it only removes the map entry if it still points
// at the calling instance, so a channel that was already replaced by a
// racing TakeOrCreate is left alone.
func (cm *ChannelManager) deregisterFn() func(casefold string, ch *Channel) bool {
	return func(casefold string, ch *Channel) bool {
		sh := cm.shardFor(casefold)
		sh.mu.Lock()
		defer sh.mu.Unlock()
		if current, ok := sh.channels[casefold]; ok && current == ch {
			delete(sh.channels, casefold)
			return true
		}
		return false
	}
}

// All returns a point-in-time snapshot of every channel, for LIST/STATS.
func (cm *ChannelManager) All() []*Channel {
	var out []*Channel
	for _, sh := range cm.shards {
		sh.mu.RLock()
		for _, c := range sh.channels {
			out = append(out, c)
		}
		sh.mu.RUnlock()
	}
	return out
}

// Count returns the number of live channels.
func (cm *ChannelManager) Count() int {
	n := 0
	for _, sh := range cm.shards {
		sh.mu.RLock()
		n += len(sh.channels)
		sh.mu.RUnlock()
	}
	return n
}
