package store

import (
	"context"
	"sync"

	"github.com/skywalker-88/nightwatch/internal/geo"
	"github.com/skywalker-88/nightwatch/internal/report"
)

// MemStore is a non-durable Store used when persistence is disabled
// entirely (spec.md §4.F "Store may be a pure in-memory implementation").
// It exists so the detection core has a StateStore to talk to even when an
// operator runs nightwatch with no durable backend configured; restarting
// the process loses everything it holds.
type MemStore struct {
	mu        sync.Mutex
	lastIP    map[string]LastIP
	lastLoc   map[string]LastLocation
	userAtt   map[string][]int64
	addrAtt   map[string][]int64
	reports   []report.Report
}

// NewMem builds an empty MemStore.
func NewMem() *MemStore {
	return &MemStore{
		lastIP:  make(map[string]LastIP),
		lastLoc: make(map[string]LastLocation),
		userAtt: make(map[string][]int64),
		addrAtt: make(map[string][]int64),
	}
}

func (s *MemStore) GetLastIP(_ context.Context, user string) (LastIP, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.lastIP[user]
	return v, ok, nil
}

func (s *MemStore) SetLastIP(_ context.Context, user, addr string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIP[user] = LastIP{Address: addr, Timestamp: ts}
	return nil
}

func (s *MemStore) GetLastLocation(_ context.Context, user string) (LastLocation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.lastLoc[user]
	return v, ok, nil
}

func (s *MemStore) AppendLocation(_ context.Context, user string, ts int64, loc geo.Location, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLoc[user] = LastLocation{Timestamp: ts, Location: loc}
	return nil
}

func (s *MemStore) AppendAttempt(_ context.Context, user, addr string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userAtt[user] = append(s.userAtt[user], ts)
	s.addrAtt[addr] = append(s.addrAtt[addr], ts)
	return nil
}

func countAfter(ts []int64, windowStart int64) int {
	n := 0
	for _, t := range ts {
		if t > windowStart {
			n++
		}
	}
	return n
}

func (s *MemStore) CountUserAttempts(_ context.Context, user string, windowStart int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countAfter(s.userAtt[user], windowStart), nil
}

func (s *MemStore) CountAddressAttempts(_ context.Context, addr string, windowStart int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countAfter(s.addrAtt[addr], windowStart), nil
}

func (s *MemStore) AppendReport(_ context.Context, r report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

func (s *MemStore) RecentReports(_ context.Context, limit int) ([]report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	n := len(s.reports)
	start := n - limit
	if start < 0 {
		start = 0
	}
	out := make([]report.Report, n-start)
	// reverse to newest-first, matching BoltStore.RecentReports ordering
	for i, r := range s.reports[start:] {
		out[len(out)-1-i] = r
	}
	return out, nil
}

// pruneSlice retains entries at or after cutoff, matching spec.md's
// prune_before(cutoff): drop ts < cutoff, keep ts >= cutoff.
func pruneSlice(ts []int64, cutoff int64) []int64 {
	out := ts[:0]
	for _, t := range ts {
		if t >= cutoff {
			out = append(out, t)
		}
	}
	return out
}

func (s *MemStore) PruneBefore(_ context.Context, cutoff int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for k, ts := range s.userAtt {
		before := len(ts)
		s.userAtt[k] = pruneSlice(ts, cutoff)
		deleted += before - len(s.userAtt[k])
		if len(s.userAtt[k]) == 0 {
			delete(s.userAtt, k)
		}
	}
	// Address entries mirror the user entries of the same attempts, so they
	// are pruned but not counted a second time.
	for k, ts := range s.addrAtt {
		s.addrAtt[k] = pruneSlice(ts, cutoff)
		if len(s.addrAtt[k]) == 0 {
			delete(s.addrAtt, k)
		}
	}

	reportCutoff := cutoff - int64(ReportRetention.Seconds())
	kept := s.reports[:0]
	for _, r := range s.reports {
		if r.Timestamp >= reportCutoff {
			kept = append(kept, r)
		} else {
			deleted++
		}
	}
	s.reports = kept
	return deleted, nil
}

func (s *MemStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIP = make(map[string]LastIP)
	s.lastLoc = make(map[string]LastLocation)
	s.userAtt = make(map[string][]int64)
	s.addrAtt = make(map[string][]int64)
	s.reports = nil
	return nil
}

func (s *MemStore) Close() error { return nil }
