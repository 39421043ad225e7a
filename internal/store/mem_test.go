package store

import (
	"context"
	"testing"

	"github.com/skywalker-88/nightwatch/internal/geo"
	"github.com/skywalker-88/nightwatch/internal/report"
)

func TestMemStore_LastIPRoundTrip(t *testing.T) {
	s := NewMem()
	ctx := context.Background()
	if _, ok, _ := s.GetLastIP(ctx, "alice"); ok {
		t.Fatal("want miss before any SetLastIP")
	}
	if err := s.SetLastIP(ctx, "alice", "1.1.1.1", 100); err != nil {
		t.Fatal(err)
	}
	rec, ok, err := s.GetLastIP(ctx, "alice")
	if err != nil || !ok || rec.Address != "1.1.1.1" || rec.Timestamp != 100 {
		t.Fatalf("got (%+v, %v, %v)", rec, ok, err)
	}
}

func TestMemStore_LastLocationRoundTrip(t *testing.T) {
	s := NewMem()
	ctx := context.Background()
	loc := geo.Location{Latitude: 1, Longitude: 2}
	if err := s.AppendLocation(ctx, "alice", 50, loc, "1.1.1.1"); err != nil {
		t.Fatal(err)
	}
	rec, ok, err := s.GetLastLocation(ctx, "alice")
	if err != nil || !ok || rec.Timestamp != 50 || rec.Location != loc {
		t.Fatalf("got (%+v, %v, %v)", rec, ok, err)
	}
}

func TestMemStore_AttemptCountingRespectsWindow(t *testing.T) {
	s := NewMem()
	ctx := context.Background()
	for _, ts := range []int64{10, 20, 30} {
		if err := s.AppendAttempt(ctx, "alice", "1.1.1.1", ts); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.CountUserAttempts(ctx, "alice", 15)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("want 2 attempts after ts=15, got %d", n)
	}
	n, err = s.CountAddressAttempts(ctx, "1.1.1.1", 15)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("want 2 address attempts after ts=15, got %d", n)
	}
}

func TestMemStore_RecentReportsNewestFirst(t *testing.T) {
	s := NewMem()
	ctx := context.Background()
	s.AppendReport(ctx, report.Report{Timestamp: 1, RuleName: "a"})
	s.AppendReport(ctx, report.Report{Timestamp: 2, RuleName: "b"})
	s.AppendReport(ctx, report.Report{Timestamp: 3, RuleName: "c"})

	out, err := s.RecentReports(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].RuleName != "c" || out[1].RuleName != "b" {
		t.Fatalf("got %+v", out)
	}
}

func TestMemStore_PruneBeforeEvictsAttemptsAndOldReports(t *testing.T) {
	s := NewMem()
	ctx := context.Background()
	s.AppendAttempt(ctx, "alice", "1.1.1.1", 10)
	s.AppendAttempt(ctx, "alice", "1.1.1.1", 1000)
	s.AppendReport(ctx, report.Report{Timestamp: 10, RuleName: "old"})
	s.AppendReport(ctx, report.Report{Timestamp: 1000, RuleName: "new"})

	deleted, err := s.PruneBefore(ctx, 500)
	if err != nil {
		t.Fatal(err)
	}
	// One attempt pruned; the report retention window is far larger than
	// `cutoff`, so neither report is old enough to prune yet.
	if deleted != 1 {
		t.Fatalf("want 1 deleted, got %d", deleted)
	}
	n, _ := s.CountUserAttempts(ctx, "alice", 0)
	if n != 1 {
		t.Fatalf("want 1 surviving attempt, got %d", n)
	}
}

func TestMemStore_ClearAll(t *testing.T) {
	s := NewMem()
	ctx := context.Background()
	s.SetLastIP(ctx, "alice", "1.1.1.1", 1)
	s.AppendReport(ctx, report.Report{Timestamp: 1})
	if err := s.ClearAll(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetLastIP(ctx, "alice"); ok {
		t.Fatal("want state cleared")
	}
	out, _ := s.RecentReports(ctx, 10)
	if len(out) != 0 {
		t.Fatalf("want no reports after clear, got %d", len(out))
	}
}
