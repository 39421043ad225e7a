package geo

import (
	"context"
	"sync"
)

// entry is the in-memory cached form of a principal's last located login.
type entry struct {
	timestamp int64
	location  Location
}

// Backing is the slice of StateStore the GeoVelocityIndex needs. Declared
// locally (rather than imported from internal/store) so this package has no
// dependency on the store package's concrete types.
type Backing interface {
	GetLastLocation(ctx context.Context, user string) (ts int64, loc Location, ok bool, err error)
	AppendLocation(ctx context.Context, user string, ts int64, loc Location, addr string) error
}

// Index maps principal -> (timestamp, coordinate) of the last located
// login (spec.md §3 LastLocation). It is a cache of a superset of durable
// state when a Backing store is present.
type Index struct {
	mu      sync.Mutex
	entries map[string]entry
	backing Backing
}

// NewIndex builds a GeoVelocityIndex. backing may be nil, in which case the
// index operates purely in memory.
func NewIndex(backing Backing) *Index {
	return &Index{entries: make(map[string]entry), backing: backing}
}

// Lookup returns the prior (timestamp, location) for user, falling through
// to the backing store on a cache miss and populating the cache on a hit
// (spec.md §3 invariant 3).
func (idx *Index) Lookup(ctx context.Context, user string) (ts int64, loc Location, ok bool) {
	idx.mu.Lock()
	e, found := idx.entries[user]
	idx.mu.Unlock()
	if found {
		return e.timestamp, e.location, true
	}
	if idx.backing == nil {
		return 0, Location{}, false
	}
	storeTS, storeLoc, storeOK, err := idx.backing.GetLastLocation(ctx, user)
	if err != nil || !storeOK {
		return 0, Location{}, false
	}
	idx.mu.Lock()
	idx.entries[user] = entry{timestamp: storeTS, location: storeLoc}
	idx.mu.Unlock()
	return storeTS, storeLoc, true
}

// Update records the current event's location as the new last-located-login
// for user, and persists it if a backing store is present. The caller
// supplies addr for the durable row's informational address column.
func (idx *Index) Update(ctx context.Context, user, addr string, ts int64, loc Location) error {
	idx.mu.Lock()
	idx.entries[user] = entry{timestamp: ts, location: loc}
	idx.mu.Unlock()
	if idx.backing == nil {
		return nil
	}
	return idx.backing.AppendLocation(ctx, user, ts, loc, addr)
}
