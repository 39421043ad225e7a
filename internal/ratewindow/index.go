// Package ratewindow implements the sliding-window attempt counters behind
// the rate-limit rule (spec.md §4.E): an ordered multiset of recent
// timestamps per key, pruned lazily on access and eagerly by maintenance.
//
// One Index instance tracks one projection (by user or by source address);
// the rate-limit rule owns two instances.
package ratewindow

import "sync"

// bucket is the ordered multiset of timestamps for one key. Timestamps are
// always appended in non-decreasing arrival order in practice (events are
// processed in queue order), so a slice with a prune-from-front strategy is
// used. Timestamps are not re-sorted: an out-of-order timestamp that sits
// behind a newer one is only evicted once every entry before it has aged out.
type bucket struct {
	timestamps []int64
}

// prune removes every timestamp t with t <= cutoff, preserving order.
func (b *bucket) prune(cutoff int64) {
	i := 0
	for i < len(b.timestamps) && b.timestamps[i] <= cutoff {
		i++
	}
	if i > 0 {
		b.timestamps = append(b.timestamps[:0], b.timestamps[i:]...)
	}
}

// count returns the number of timestamps greater than cutoff, without
// mutating the bucket (used for the pre-increment read).
func (b *bucket) count(cutoff int64) int {
	n := 0
	for _, t := range b.timestamps {
		if t > cutoff {
			n++
		}
	}
	return n
}

// Index is a sliding-window counter keyed by an arbitrary string (a
// principal or a source address string).
type Index struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewIndex builds an empty Index.
func NewIndex() *Index {
	return &Index{buckets: make(map[string]*bucket)}
}

// PreCount prunes stale entries (t <= ts-window) and returns the count of
// remaining entries, without inserting ts. This is the pre-increment count
// used for threshold comparison (spec.md §4.E step 1) and the window
// eviction testable invariant.
func (idx *Index) PreCount(key string, ts, window int64) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	b := idx.bucketFor(key)
	b.prune(ts - window)
	return b.count(ts - window)
}

// Insert appends ts to key's window, evicting anything at or before
// ts-window, and returns the post-eviction, post-insert count (spec.md
// §4.E step 2-3).
func (idx *Index) Insert(key string, ts, window int64) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	b := idx.bucketFor(key)
	b.prune(ts - window)
	b.timestamps = append(b.timestamps, ts)
	return len(b.timestamps)
}

func (idx *Index) bucketFor(key string) *bucket {
	b, ok := idx.buckets[key]
	if !ok {
		b = &bucket{}
		idx.buckets[key] = b
	}
	return b
}

// PruneBefore evicts every timestamp at or before cutoff across all keys,
// dropping keys that become empty, and returns the number of surviving
// keys. Called by the maintenance ticker (spec.md §4.I, invariant 2).
func (idx *Index) PruneBefore(cutoff int64) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for key, b := range idx.buckets {
		b.prune(cutoff)
		if len(b.timestamps) == 0 {
			delete(idx.buckets, key)
		}
	}
	return len(idx.buckets)
}

// Len reports how many distinct keys are currently tracked.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.buckets)
}
