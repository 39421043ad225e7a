package store

import (
	"context"

	"github.com/skywalker-88/nightwatch/internal/geo"
	"github.com/skywalker-88/nightwatch/internal/identity"
)

// identityBacking adapts a Store to identity.Backing's flattened return
// shape. Declared here rather than in internal/identity so that package
// stays free of any dependency on the store package's concrete types.
type identityBacking struct{ s Store }

// AsIdentityBacking wraps s for use as an identity.Index's backing store.
func AsIdentityBacking(s Store) identity.Backing { return identityBacking{s: s} }

func (b identityBacking) GetLastIP(ctx context.Context, user string) (string, int64, bool, error) {
	rec, ok, err := b.s.GetLastIP(ctx, user)
	if err != nil || !ok {
		return "", 0, false, err
	}
	return rec.Address, rec.Timestamp, true, nil
}

func (b identityBacking) SetLastIP(ctx context.Context, user, addr string, ts int64) error {
	return b.s.SetLastIP(ctx, user, addr, ts)
}

// geoBacking adapts a Store to geo.Backing's flattened return shape.
type geoBacking struct{ s Store }

// AsGeoBacking wraps s for use as a geo.Index's backing store.
func AsGeoBacking(s Store) geo.Backing { return geoBacking{s: s} }

func (b geoBacking) GetLastLocation(ctx context.Context, user string) (int64, geo.Location, bool, error) {
	rec, ok, err := b.s.GetLastLocation(ctx, user)
	if err != nil || !ok {
		return 0, geo.Location{}, false, err
	}
	return rec.Timestamp, rec.Location, true, nil
}

func (b geoBacking) AppendLocation(ctx context.Context, user string, ts int64, loc geo.Location, addr string) error {
	return b.s.AppendLocation(ctx, user, ts, loc, addr)
}
