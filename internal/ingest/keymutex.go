package ingest

import (
	"hash/fnv"
	"sync"
)

// keyMutexShards is a power of two so shard selection is a cheap mask.
const keyMutexShards = 64

// KeyMutex provides mutual exclusion keyed by event id. Concurrent mutations
// of the same event id serialize; different ids proceed independently
// (modulo shard collisions, which only cost throughput, never correctness).
// Both the ingestion path and the HTTP candidate endpoints take this lock
// around their load-merge-save cycle.
type KeyMutex struct {
	shards [keyMutexShards]sync.Mutex
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{}
}

// Lock acquires the shard lock for the given key and returns the unlock
// function.
func (m *KeyMutex) Lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	shard := &m.shards[h.Sum32()&(keyMutexShards-1)]
	shard.Lock()
	return shard.Unlock
}
