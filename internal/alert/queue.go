// Package alert implements AlertQueue and the webhook fan-out dispatcher
// (spec.md §4.H): a bounded, non-blocking queue and a single consumer that
// fans qualifying reports out to configured notification channels.
package alert

import (
	"context"

	"github.com/skywalker-88/nightwatch/internal/report"
	"github.com/skywalker-88/nightwatch/pkg/metrics"
)

// DefaultCapacity is the queue capacity used when none is configured
// (spec.md §4.H).
const DefaultCapacity = 100

// Queue is a bounded FIFO of reports awaiting webhook delivery. Producers
// never block on it: a full queue drops the report with a warning rather
// than applying back-pressure to the detection path (spec.md §5, §7).
type Queue struct {
	ch chan report.Report
}

// NewQueue builds a queue with the given capacity (DefaultCapacity if <= 0).
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan report.Report, capacity)}
}

// TryEnqueue attempts to add r to the queue without blocking. It returns
// false if the queue is full.
func (q *Queue) TryEnqueue(r report.Report) bool {
	select {
	case q.ch <- r:
		metrics.AlertQueueDepth.Set(float64(len(q.ch)))
		return true
	default:
		metrics.AlertDropped.Inc()
		return false
	}
}

// Dequeue blocks until a report is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (report.Report, bool) {
	select {
	case r := <-q.ch:
		metrics.AlertQueueDepth.Set(float64(len(q.ch)))
		return r, true
	case <-ctx.Done():
		return report.Report{}, false
	}
}

// Drain removes and discards up to max buffered reports without blocking,
// for the shutdown grace window (spec.md §5).
func (q *Queue) Drain(max int) int {
	n := 0
	for n < max {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
	return n
}

// Len returns the number of reports currently buffered.
func (q *Queue) Len() int { return len(q.ch) }
