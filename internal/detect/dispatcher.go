package detect

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skywalker-88/nightwatch/internal/event"
	"github.com/skywalker-88/nightwatch/internal/report"
	"github.com/skywalker-88/nightwatch/pkg/metrics"
)

// Sink is the output side a report is written to (internal/output.Writer
// satisfies this).
type Sink interface {
	Write(r report.Report) error
}

// ReportStore persists a report to durable storage.
type ReportStore interface {
	AppendReport(ctx context.Context, r report.Report) error
}

// AlertQueue is a non-blocking fan-out target (internal/alert.Queue
// satisfies this).
type AlertQueue interface {
	TryEnqueue(r report.Report) bool
}

// Dispatcher is the sole mutator of the three detection indexes (spec.md
// §4.B, §5): it pulls events off the queue in arrival order and, for each
// one, runs every enabled rule sequentially on the same goroutine.
type Dispatcher struct {
	rules []Rule
	sink  Sink
	store ReportStore
	alert AlertQueue
}

// NewDispatcher builds a Dispatcher over the given rules in evaluation
// order. sink, store, and alert may individually be nil (a nil sink/store/
// alert is treated as "configured out", not an error).
func NewDispatcher(rules []Rule, sink Sink, store ReportStore, alert AlertQueue) *Dispatcher {
	return &Dispatcher{rules: rules, sink: sink, store: store, alert: alert}
}

// Dispatch evaluates ev against every rule in order and fans the resulting
// reports out to the sink, the store, and the alert queue. A failure in any
// single downstream is logged and does not abort processing of this event
// or any other (spec.md §4.B, §7).
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.LogEvent) []report.Report {
	start := time.Now()
	var all []report.Report
	for _, rule := range d.rules {
		reports, err := rule.Evaluate(ctx, ev)
		if err != nil {
			log.Warn().Err(err).Str("rule", rule.Name()).Str("user", ev.User).Msg("rule evaluation error; continuing")
		}
		all = append(all, reports...)
	}
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	for _, r := range all {
		metrics.ReportsTotal.WithLabelValues(r.RuleName).Inc()
		d.emit(ctx, r)
	}
	return all
}

func (d *Dispatcher) emit(ctx context.Context, r report.Report) {
	if d.sink != nil {
		if err := d.sink.Write(r); err != nil {
			log.Error().Err(err).Str("rule", r.RuleName).Msg("output sink write failed")
		}
	}
	if d.store != nil {
		if err := d.store.AppendReport(ctx, r); err != nil {
			metrics.StoreErrors.WithLabelValues("append_report").Inc()
			log.Warn().Err(err).Str("rule", r.RuleName).Msg("report persistence failed")
		}
	}
	if d.alert != nil {
		if !d.alert.TryEnqueue(r) {
			log.Warn().Str("rule", r.RuleName).Str("user", r.User).Msg("alert queue full; report dropped")
		}
	}
}

// Run drains the event queue until ctx is cancelled, dispatching each event
// as it arrives. Suitable for use as the sole dispatcher goroutine (spec.md
// §5).
func (d *Dispatcher) Run(ctx context.Context, queue *event.Queue) {
	for {
		ev, err := queue.Pop(ctx)
		if err != nil {
			return
		}
		d.Dispatch(ctx, ev)
	}
}
