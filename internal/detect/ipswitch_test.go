package detect

import (
	"context"
	"testing"

	"github.com/skywalker-88/nightwatch/internal/event"
	"github.com/skywalker-88/nightwatch/internal/identity"
	"github.com/skywalker-88/nightwatch/internal/report"
)

func mustEvent(t *testing.T, ts int64, user, addr, eventType string) event.LogEvent {
	t.Helper()
	ev, err := event.NewLogEvent(ts, user, addr, eventType)
	if err != nil {
		t.Fatalf("NewLogEvent: %v", err)
	}
	return ev
}

func TestIPSwitchRule_FirstEventIsLearningOnly(t *testing.T) {
	rule := NewIPSwitchRule(identity.NewIndex(nil))
	ev := mustEvent(t, 100, "alice", "1.1.1.1", "login-success")

	reports, err := rule.Evaluate(context.Background(), ev)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 0 {
		t.Fatalf("want no report on first-ever event, got %+v", reports)
	}
}

func TestIPSwitchRule_SameAddressIsSilent(t *testing.T) {
	rule := NewIPSwitchRule(identity.NewIndex(nil))
	ctx := context.Background()
	rule.Evaluate(ctx, mustEvent(t, 100, "alice", "1.1.1.1", "login-success"))

	reports, err := rule.Evaluate(ctx, mustEvent(t, 200, "alice", "1.1.1.1", "login-success"))
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 0 {
		t.Fatalf("want no report for repeated address, got %+v", reports)
	}
}

func TestIPSwitchRule_DifferentAddressFires(t *testing.T) {
	rule := NewIPSwitchRule(identity.NewIndex(nil))
	ctx := context.Background()
	rule.Evaluate(ctx, mustEvent(t, 100, "alice", "1.1.1.1", "login-success"))

	reports, err := rule.Evaluate(ctx, mustEvent(t, 200, "alice", "2.2.2.2", "login-success"))
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 {
		t.Fatalf("want 1 report, got %d", len(reports))
	}
	r := reports[0]
	if r.RuleName != report.RuleSuddenIPSwitch || r.TrustedIP != "1.1.1.1" || r.DetectedIP != "2.2.2.2" {
		t.Fatalf("unexpected report: %+v", r)
	}
}

func TestIPSwitchRule_DifferentUsersAreIndependent(t *testing.T) {
	rule := NewIPSwitchRule(identity.NewIndex(nil))
	ctx := context.Background()
	rule.Evaluate(ctx, mustEvent(t, 100, "alice", "1.1.1.1", "login-success"))

	reports, err := rule.Evaluate(ctx, mustEvent(t, 100, "bob", "9.9.9.9", "login-success"))
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 0 {
		t.Fatalf("want no report for a different user's first event, got %+v", reports)
	}
}
