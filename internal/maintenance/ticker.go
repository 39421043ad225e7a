// Package maintenance runs the periodic housekeeping task that keeps the
// in-memory rate-window indexes and the durable store from growing without
// bound (spec.md §4.I, §5).
package maintenance

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// WindowPruner is the slice of ratewindow.Index the ticker needs.
type WindowPruner interface {
	PruneBefore(cutoff int64) int
}

// StorePruner is the slice of store.Store the ticker needs.
type StorePruner interface {
	PruneBefore(ctx context.Context, cutoff int64) (int, error)
}

// DefaultInterval is how often the ticker runs when none is configured
// (spec.md §4.I).
const DefaultInterval = 60 * time.Second

// Ticker periodically evicts rate-window entries older than the configured
// window and durable rows older than their retention. Report retention is
// not a Ticker concern: StorePruner implementations (internal/store) apply
// their own ReportRetention on top of the window cutoff the ticker passes
// them.
type Ticker struct {
	interval   time.Duration
	windowSecs int64
	windows    []WindowPruner
	store      StorePruner // may be nil
	now        func() time.Time
}

// New builds a Ticker. interval and windowSecs default to DefaultInterval
// and 3600 respectively when <= 0. store may be nil if persistence is
// disabled.
func New(interval time.Duration, windowSecs int64, windows []WindowPruner, store StorePruner) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if windowSecs <= 0 {
		windowSecs = 3600
	}
	return &Ticker{
		interval:   interval,
		windowSecs: windowSecs,
		windows:    windows,
		store:      store,
		now:        time.Now,
	}
}

// Run blocks, firing the sweep on every tick, until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep(ctx)
		}
	}
}

func (t *Ticker) sweep(ctx context.Context) {
	now := t.now().Unix()
	windowCutoff := now - t.windowSecs

	survivors := 0
	for _, w := range t.windows {
		survivors += w.PruneBefore(windowCutoff)
	}

	if t.store != nil {
		n, err := t.store.PruneBefore(ctx, windowCutoff)
		if err != nil {
			log.Warn().Err(err).Msg("maintenance: store prune failed")
		} else if n > 0 {
			log.Debug().Int("rows_pruned", n).Msg("maintenance: store swept")
		}
	}
	log.Debug().Int("rate_window_keys_remaining", survivors).Msg("maintenance: sweep complete")
}
