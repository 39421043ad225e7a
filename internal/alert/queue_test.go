package alert

import (
	"context"
	"testing"
	"time"

	"github.com/skywalker-88/nightwatch/internal/report"
)

func TestQueue_TryEnqueueDropsWhenFull(t *testing.T) {
	q := NewQueue(1)
	if ok := q.TryEnqueue(report.Report{RuleName: "a"}); !ok {
		t.Fatal("want first enqueue to succeed")
	}
	if ok := q.TryEnqueue(report.Report{RuleName: "b"}); ok {
		t.Fatal("want second enqueue to be dropped on a full queue")
	}
}

func TestQueue_DequeueReturnsInOrder(t *testing.T) {
	q := NewQueue(2)
	q.TryEnqueue(report.Report{RuleName: "a"})
	q.TryEnqueue(report.Report{RuleName: "b"})

	r, ok := q.Dequeue(context.Background())
	if !ok || r.RuleName != "a" {
		t.Fatalf("got %+v, %v", r, ok)
	}
}

func TestQueue_DequeueRespectsContextCancel(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok := q.Dequeue(ctx); ok {
		t.Fatal("want false on an empty queue with a cancelled context")
	}
}

func TestQueue_Drain(t *testing.T) {
	q := NewQueue(5)
	q.TryEnqueue(report.Report{RuleName: "a"})
	q.TryEnqueue(report.Report{RuleName: "b"})
	if n := q.Drain(10); n != 2 {
		t.Fatalf("want 2, got %d", n)
	}
	if q.Len() != 0 {
		t.Fatalf("want empty queue, got len=%d", q.Len())
	}
}

func TestNewQueue_DefaultsCapacity(t *testing.T) {
	q := NewQueue(0)
	if cap(q.ch) != DefaultCapacity {
		t.Fatalf("want default capacity %d, got %d", DefaultCapacity, cap(q.ch))
	}
}
