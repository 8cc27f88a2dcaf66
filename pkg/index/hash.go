package index

import (
	"bytes"
	"fmt"
	"sync"
)

// DefaultHashBuckets is the default bucket count (spec §6).
const DefaultHashBuckets = 1024

type hashEntry struct {
	key   []byte
	value uint64
}

// HashIndex is an in-memory chained hash table keyed by byte strings,
// grounded on original_source/storage/indexes/hash.cpp: a fixed
// bucket array, no rehashing, and the same polynomial hash function
// as BloomFilter (h = h*31 + b[i], mod bucket count).
type HashIndex struct {
	mu      sync.RWMutex
	buckets [][]hashEntry
}

// NewHashIndex creates a hash index with the given bucket count,
// defaulting to DefaultHashBuckets when numBuckets <= 0.
func NewHashIndex(numBuckets int) *HashIndex {
	if numBuckets <= 0 {
		numBuckets = DefaultHashBuckets
	}
	return &HashIndex{buckets: make([][]hashEntry, numBuckets)}
}

func (h *HashIndex) bucketFor(key []byte) int {
	var acc uint64
	for _, b := range key {
		acc = acc*31 + uint64(b)
	}
	return int(acc % uint64(len(h.buckets)))
}

// Insert upserts key to value.
func (h *HashIndex) Insert(key []byte, value uint64) error {
	if len(key) == 0 {
		return ErrInvalidArgument
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	idx := h.bucketFor(key)
	bucket := h.buckets[idx]
	for i := range bucket {
		if bytes.Equal(bucket[i].key, key) {
			bucket[i].value = value
			return nil
		}
	}
	h.buckets[idx] = append(bucket, hashEntry{key: append([]byte(nil), key...), value: value})
	return nil
}

// Search returns key's value and whether it was found.
func (h *HashIndex) Search(key []byte) (uint64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	bucket := h.buckets[h.bucketFor(key)]
	for _, e := range bucket {
		if bytes.Equal(e.key, key) {
			return e.value, true
		}
	}
	return 0, false
}

// Delete removes key's entry. Returns ErrKeyNotFound if absent.
func (h *HashIndex) Delete(key []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := h.bucketFor(key)
	bucket := h.buckets[idx]
	for i := range bucket {
		if bytes.Equal(bucket[i].key, key) {
			h.buckets[idx] = append(bucket[:i], bucket[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("hash: %x: %w", key, ErrKeyNotFound)
}

// Stats returns bucket-occupancy diagnostics.
func (h *HashIndex) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	maxChain := 0
	for _, b := range h.buckets {
		count += len(b)
		if len(b) > maxChain {
			maxChain = len(b)
		}
	}
	return map[string]any{
		"buckets":   len(h.buckets),
		"entries":   count,
		"max_chain": maxChain,
	}
}
