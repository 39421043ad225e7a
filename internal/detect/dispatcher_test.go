package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/skywalker-88/nightwatch/internal/event"
	"github.com/skywalker-88/nightwatch/internal/report"
)

type stubRule struct {
	name    string
	reports []report.Report
	err     error
}

func (s *stubRule) Name() string { return s.name }
func (s *stubRule) Evaluate(_ context.Context, _ event.LogEvent) ([]report.Report, error) {
	return s.reports, s.err
}

type stubSink struct{ written []report.Report }

func (s *stubSink) Write(r report.Report) error {
	s.written = append(s.written, r)
	return nil
}

type stubStore struct{ appended []report.Report }

func (s *stubStore) AppendReport(_ context.Context, r report.Report) error {
	s.appended = append(s.appended, r)
	return nil
}

type stubAlertQueue struct{ enqueued []report.Report }

func (s *stubAlertQueue) TryEnqueue(r report.Report) bool {
	s.enqueued = append(s.enqueued, r)
	return true
}

func TestDispatcher_FansOutToAllSinks(t *testing.T) {
	r1 := &stubRule{name: "rule-one", reports: []report.Report{{RuleName: "rule-one", Severity: 5}}}
	r2 := &stubRule{name: "rule-two"}
	sink := &stubSink{}
	st := &stubStore{}
	aq := &stubAlertQueue{}

	d := NewDispatcher([]Rule{r1, r2}, sink, st, aq)
	out := d.Dispatch(context.Background(), event.LogEvent{User: "alice"})

	if len(out) != 1 {
		t.Fatalf("want 1 report, got %d", len(out))
	}
	if len(sink.written) != 1 || len(st.appended) != 1 || len(aq.enqueued) != 1 {
		t.Fatalf("want every downstream to receive the report: sink=%d store=%d alert=%d",
			len(sink.written), len(st.appended), len(aq.enqueued))
	}
}

func TestDispatcher_RuleErrorDoesNotAbortOthers(t *testing.T) {
	failing := &stubRule{name: "failing", err: errors.New("boom")}
	ok := &stubRule{name: "ok", reports: []report.Report{{RuleName: "ok", Severity: 3}}}

	d := NewDispatcher([]Rule{failing, ok}, nil, nil, nil)
	out := d.Dispatch(context.Background(), event.LogEvent{User: "alice"})

	if len(out) != 1 || out[0].RuleName != "ok" {
		t.Fatalf("want the surviving rule's report, got %+v", out)
	}
}

func TestDispatcher_NilSinksAreToleratedNotSpecialCased(t *testing.T) {
	r := &stubRule{name: "r", reports: []report.Report{{RuleName: "r", Severity: 1}}}
	d := NewDispatcher([]Rule{r}, nil, nil, nil)
	if out := d.Dispatch(context.Background(), event.LogEvent{User: "alice"}); len(out) != 1 {
		t.Fatalf("want 1 report even with no sinks configured, got %d", len(out))
	}
}

func TestDispatcher_Run_StopsOnContextCancel(t *testing.T) {
	queue := event.NewQueue(1)
	d := NewDispatcher(nil, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, queue)
		close(done)
	}()
	cancel()
	<-done
}
