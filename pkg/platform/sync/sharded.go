package sync

import (
	"sync"
)

const defaultShards = 32

// ShardedMutex provides fine-grained locking using sharded mutexes.
// Operations are distributed across shards based on a hash of the key, so
// unrelated keys rarely contend while equal keys always serialize.
type ShardedMutex struct {
	shards []sync.Mutex
}

// NewShardedMutex creates a ShardedMutex with the given number of shards.
// A non-positive count uses 32 shards.
func NewShardedMutex(shards int) *ShardedMutex {
	if shards <= 0 {
		shards = defaultShards
	}
	return &ShardedMutex{shards: make([]sync.Mutex, shards)}
}

// Lock acquires the lock for the given key's shard.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the lock for the given key's shard.
func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

// Do runs fn while holding the key's shard lock.
func (m *ShardedMutex) Do(key string, fn func()) {
	m.Lock(key)
	defer m.Unlock(key)
	fn()
}

func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	return int(hashString(key) % uint32(len(m.shards)))
}

// hashString is a djb2-style hash for shard selection.
func hashString(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return h
}
