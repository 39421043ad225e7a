// Package detect implements the three detection rules and the dispatcher
// that composes them (spec.md §4.B-E): Sudden IP Switch, Impossible Travel
// Velocity / Simultaneous Multi-Location Login, and the per-user/per-address
// sliding-window rate limit.
package detect

import (
	"context"

	"github.com/skywalker-88/nightwatch/internal/event"
	"github.com/skywalker-88/nightwatch/internal/report"
)

// Rule is the uniform capability every detection rule exposes to the
// dispatcher (spec.md §9: "independent evaluator objects behind a uniform
// (event) -> Vec<Report> capability").
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, ev event.LogEvent) ([]report.Report, error)
}
