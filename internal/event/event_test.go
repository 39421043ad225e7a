package event

import (
	"context"
	"testing"
	"time"
)

func TestNewLogEvent_RejectsEmptyUser(t *testing.T) {
	if _, err := NewLogEvent(1, "", "1.1.1.1", "login-success"); err != ErrInvalidEvent {
		t.Fatalf("want ErrInvalidEvent, got %v", err)
	}
}

func TestNewLogEvent_RejectsBadAddress(t *testing.T) {
	if _, err := NewLogEvent(1, "alice", "not-an-ip", "login-success"); err != ErrInvalidEvent {
		t.Fatalf("want ErrInvalidEvent, got %v", err)
	}
}

func TestNewLogEvent_DefaultsEventType(t *testing.T) {
	ev, err := NewLogEvent(1, "alice", "1.1.1.1", "")
	if err != nil {
		t.Fatal(err)
	}
	if ev.EventType != "unknown" {
		t.Fatalf("want default event type 'unknown', got %q", ev.EventType)
	}
}

func TestNewLogEvent_AssignsDistinctIDs(t *testing.T) {
	a, _ := NewLogEvent(1, "alice", "1.1.1.1", "login-success")
	b, _ := NewLogEvent(1, "alice", "1.1.1.1", "login-success")
	if a.ID == b.ID {
		t.Fatal("want distinct correlation IDs across events")
	}
}

func TestQueue_PushPop(t *testing.T) {
	q := NewQueue(1)
	ev, _ := NewLogEvent(1, "alice", "1.1.1.1", "login-success")
	if err := q.Push(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	got, err := q.Pop(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.User != "alice" {
		t.Fatalf("got %+v", got)
	}
}

func TestQueue_PushBlocksWhenFull(t *testing.T) {
	q := NewQueue(1)
	ev, _ := NewLogEvent(1, "alice", "1.1.1.1", "login-success")
	if err := q.Push(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Push(ctx, ev); err == nil {
		t.Fatal("want Push to block (and time out) on a full queue")
	}
}

func TestQueue_Drain(t *testing.T) {
	q := NewQueue(5)
	ev, _ := NewLogEvent(1, "alice", "1.1.1.1", "login-success")
	q.Push(context.Background(), ev)
	q.Push(context.Background(), ev)
	if n := q.Drain(10); n != 2 {
		t.Fatalf("want 2 drained, got %d", n)
	}
	if q.Len() != 0 {
		t.Fatalf("want empty queue after drain, got len=%d", q.Len())
	}
}
