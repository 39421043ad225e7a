package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeWindow struct {
	cutoff int64
	remain int
}

func (f *fakeWindow) PruneBefore(cutoff int64) int {
	f.cutoff = cutoff
	return f.remain
}

type fakeStore struct {
	cutoff int64
	pruned int
	err    error
	calls  int
}

func (f *fakeStore) PruneBefore(_ context.Context, cutoff int64) (int, error) {
	f.calls++
	f.cutoff = cutoff
	return f.pruned, f.err
}

func TestNew_DefaultsIntervalAndWindow(t *testing.T) {
	tk := New(0, 0, nil, nil)
	if tk.interval != DefaultInterval {
		t.Fatalf("want default interval, got %v", tk.interval)
	}
	if tk.windowSecs != 3600 {
		t.Fatalf("want default window of 3600s, got %d", tk.windowSecs)
	}
}

func TestSweep_PrunesWindowsAtCutoff(t *testing.T) {
	w := &fakeWindow{remain: 3}
	tk := New(time.Second, 300, []WindowPruner{w}, nil)
	tk.now = func() time.Time { return time.Unix(1000, 0) }

	tk.sweep(context.Background())

	if w.cutoff != 700 {
		t.Fatalf("want cutoff = now(1000) - windowSecs(300) = 700, got %d", w.cutoff)
	}
}

func TestSweep_PrunesStoreAtSameCutoff(t *testing.T) {
	s := &fakeStore{pruned: 5}
	tk := New(time.Second, 300, nil, s)
	tk.now = func() time.Time { return time.Unix(1000, 0) }

	tk.sweep(context.Background())

	if s.calls != 1 || s.cutoff != 700 {
		t.Fatalf("want store pruned once at cutoff 700, got calls=%d cutoff=%d", s.calls, s.cutoff)
	}
}

func TestSweep_ToleratesStoreError(t *testing.T) {
	s := &fakeStore{err: errors.New("boom")}
	tk := New(time.Second, 300, nil, s)
	tk.now = func() time.Time { return time.Unix(1000, 0) }

	tk.sweep(context.Background())
}

func TestSweep_ToleratesNilStore(t *testing.T) {
	tk := New(time.Second, 300, nil, nil)
	tk.now = func() time.Time { return time.Unix(1000, 0) }
	tk.sweep(context.Background())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	tk := New(5*time.Millisecond, 300, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tk.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("want Run to return promptly after cancellation")
	}
}
