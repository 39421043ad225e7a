package alert

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/skywalker-88/nightwatch/internal/report"
	"github.com/skywalker-88/nightwatch/pkg/metrics"
)

// Dispatcher is the single consumer task draining the AlertQueue and
// fanning qualifying reports out to every configured channel (spec.md
// §4.H). There is no retry: a failed send is logged and the dispatcher
// moves on to the next channel, then the next report.
type Dispatcher struct {
	queue       *Queue
	notifiers   []Notifier
	minSeverity int
}

// NewDispatcher builds a Dispatcher. Reports with severity below
// minSeverity are dropped without being sent to any channel.
func NewDispatcher(queue *Queue, notifiers []Notifier, minSeverity int) *Dispatcher {
	return &Dispatcher{queue: queue, notifiers: notifiers, minSeverity: minSeverity}
}

// Run blocks, dequeuing reports and fanning each out sequentially, until
// ctx is cancelled. Intended to run on its own goroutine (spec.md §5).
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		r, ok := d.queue.Dequeue(ctx)
		if !ok {
			return
		}
		d.fanOut(ctx, r)
	}
}

func (d *Dispatcher) fanOut(ctx context.Context, r report.Report) {
	if r.Severity < d.minSeverity {
		return
	}
	for _, n := range d.notifiers {
		if err := n.Send(ctx, r); err != nil {
			metrics.WebhookFailures.WithLabelValues(n.Name()).Inc()
			log.Warn().Err(err).Str("channel", n.Name()).Str("rule", r.RuleName).Str("user", r.User).Msg("alert delivery failed")
		}
	}
}
