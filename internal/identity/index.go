// Package identity implements IdentityIndex (spec.md §4.C): the
// trust-on-first-use mapping from principal to last observed source
// address that backs the Sudden IP Switch rule.
package identity

import (
	"context"
	"sync"
)

type entry struct {
	address   string
	timestamp int64
}

// Backing is the slice of StateStore the IdentityIndex needs.
type Backing interface {
	GetLastIP(ctx context.Context, user string) (addr string, ts int64, ok bool, err error)
	SetLastIP(ctx context.Context, user, addr string, ts int64) error
}

// Index maps principal -> (address, last-seen timestamp).
type Index struct {
	mu      sync.Mutex
	entries map[string]entry
	backing Backing
}

// NewIndex builds an IdentityIndex. backing may be nil for a pure in-memory
// daemon.
func NewIndex(backing Backing) *Index {
	return &Index{entries: make(map[string]entry), backing: backing}
}

// Lookup returns the last observed address for user, falling through to the
// backing store on a cache miss and populating the cache on a hit
// (spec.md §3 invariant 3).
func (idx *Index) Lookup(ctx context.Context, user string) (addr string, ts int64, ok bool) {
	idx.mu.Lock()
	e, found := idx.entries[user]
	idx.mu.Unlock()
	if found {
		return e.address, e.timestamp, true
	}
	if idx.backing == nil {
		return "", 0, false
	}
	storeAddr, storeTS, storeOK, err := idx.backing.GetLastIP(ctx, user)
	if err != nil || !storeOK {
		return "", 0, false
	}
	idx.mu.Lock()
	idx.entries[user] = entry{address: storeAddr, timestamp: storeTS}
	idx.mu.Unlock()
	return storeAddr, storeTS, true
}

// Update upserts the current event's address as the last observed address
// for user.
func (idx *Index) Update(ctx context.Context, user, addr string, ts int64) error {
	idx.mu.Lock()
	idx.entries[user] = entry{address: addr, timestamp: ts}
	idx.mu.Unlock()
	if idx.backing == nil {
		return nil
	}
	return idx.backing.SetLastIP(ctx, user, addr, ts)
}
