// Package store defines the durability contract for the detection core
// (spec.md §4.F) and the backends that satisfy it: an embedded bbolt store
// (default), an optional Redis-backed store, and a non-durable in-memory
// store used when persistence is disabled entirely.
package store

import (
	"context"
	"time"

	"github.com/skywalker-88/nightwatch/internal/geo"
	"github.com/skywalker-88/nightwatch/internal/report"
)

// LastIP is the durable form of IdentityIndex's last-observed-address entry.
type LastIP struct {
	Address   string
	Timestamp int64
}

// LastLocation is the durable form of GeoVelocityIndex's last-located-login
// entry.
type LastLocation struct {
	Timestamp int64
	Location  geo.Location
}

// Store is the capability set the detection core needs from durable
// storage. All operations are serializable; a single-writer discipline is
// an acceptable implementation (spec.md §4.F). Implementations must be safe
// for concurrent use by multiple goroutines even though the dispatcher is
// the only caller on the hot path, because maintenance and the admin HTTP
// surface also read through it.
type Store interface {
	GetLastIP(ctx context.Context, user string) (LastIP, bool, error)
	SetLastIP(ctx context.Context, user, addr string, ts int64) error

	GetLastLocation(ctx context.Context, user string) (LastLocation, bool, error)
	AppendLocation(ctx context.Context, user string, ts int64, loc geo.Location, addr string) error

	AppendAttempt(ctx context.Context, user, addr string, ts int64) error
	CountUserAttempts(ctx context.Context, user string, windowStart int64) (int, error)
	CountAddressAttempts(ctx context.Context, addr string, windowStart int64) (int, error)

	AppendReport(ctx context.Context, r report.Report) error
	RecentReports(ctx context.Context, limit int) ([]report.Report, error)

	// PruneBefore removes login attempts with ts < cutoff and anomaly
	// reports with ts < cutoff-ReportRetention (30 days). It returns the
	// number of attempts and reports deleted, each attempt counted once.
	// Last-location and last-IP entries are not pruned. RedisStore trims
	// its attempt sets when they are counted, so its PruneBefore removes
	// reports only.
	PruneBefore(ctx context.Context, cutoff int64) (int, error)

	ClearAll(ctx context.Context) error

	Close() error
}

// ReportRetention is the extra retention anomaly reports get over window
// state, per spec.md §3 Lifecycle and §4.F.
const ReportRetention = 30 * 24 * time.Hour
