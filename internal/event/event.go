// Package event defines the inbound record the detection core consumes and
// the bounded queue that hands events from input adapters to the dispatcher.
package event

import (
	"context"
	"errors"
	"net"

	"github.com/google/uuid"

	"github.com/skywalker-88/nightwatch/pkg/metrics"
)

// ErrInvalidEvent is returned by NewLogEvent when a required field is missing
// or malformed.
var ErrInvalidEvent = errors.New("event: invalid log event")

// LogEvent is an immutable input record describing one authentication
// attempt observed by an input adapter.
type LogEvent struct {
	ID int64 // derived from a random UUID by NewLogEvent, for log correlation only; not copied into reports

	Timestamp      int64  // seconds since epoch, not guaranteed monotonic across events
	User           string // non-empty principal, case-sensitive
	SourceAddress  net.IP
	SourceAddrText string // canonical string form, precomputed once
	EventType      string // e.g. "login-success", "login-failure", "unknown"
}

// NewLogEvent validates and constructs a LogEvent. addr must parse as an IPv4
// or IPv6 address.
func NewLogEvent(timestamp int64, user, addr, eventType string) (LogEvent, error) {
	if user == "" {
		return LogEvent{}, ErrInvalidEvent
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return LogEvent{}, ErrInvalidEvent
	}
	if eventType == "" {
		eventType = "unknown"
	}
	return LogEvent{
		ID:             int64(uuid.New().ID()),
		Timestamp:      timestamp,
		User:           user,
		SourceAddress:  ip,
		SourceAddrText: ip.String(),
		EventType:      eventType,
	}, nil
}

// Queue is a bounded FIFO handoff from producer adapters to the dispatcher.
// Push blocks when full: this is the correct back-pressure for log ingest
// (spec: event queue never drops).
type Queue struct {
	ch chan LogEvent
}

// NewQueue builds a queue with the given capacity (default 1000 if <= 0).
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Queue{ch: make(chan LogEvent, capacity)}
}

// Push enqueues an event, blocking until space is available or ctx is done.
func (q *Queue) Push(ctx context.Context, ev LogEvent) error {
	select {
	case q.ch <- ev:
		metrics.EventQueueDepth.Set(float64(len(q.ch)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop dequeues the next event in arrival order, blocking until one is
// available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (LogEvent, error) {
	select {
	case ev := <-q.ch:
		metrics.EventQueueDepth.Set(float64(len(q.ch)))
		return ev, nil
	case <-ctx.Done():
		return LogEvent{}, ctx.Err()
	}
}

// Len returns the number of events currently buffered.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue's configured capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// Drain removes and discards up to max buffered events without blocking.
// Used during shutdown's best-effort drain window.
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
