package detect

import (
	"context"
	"testing"

	"github.com/skywalker-88/nightwatch/internal/report"
)

func TestRateLimitRule_NoBackingUsesInMemoryWindow(t *testing.T) {
	rule := NewRateLimitRule(RateLimitConfig{WindowSeconds: 60, MaxUserAttempts: 2, MaxAddressAttempts: 100}, nil)
	ctx := context.Background()

	for i, ts := range []int64{0, 10, 20} {
		reports, err := rule.Evaluate(ctx, mustEvent(t, ts, "alice", "1.1.1.1", "login-failure"))
		if err != nil {
			t.Fatal(err)
		}
		if i < 2 {
			if len(reports) != 0 {
				t.Fatalf("attempt %d: want no report yet, got %+v", i+1, reports)
			}
		} else {
			if len(reports) != 1 || reports[0].RuleName != report.RuleUserRateExceeded {
				t.Fatalf("attempt %d: want user-rate report, got %+v", i+1, reports)
			}
		}
	}
}

func TestRateLimitRule_AddressLimitIndependentOfUser(t *testing.T) {
	rule := NewRateLimitRule(RateLimitConfig{WindowSeconds: 60, MaxUserAttempts: 100, MaxAddressAttempts: 1}, nil)
	ctx := context.Background()

	rule.Evaluate(ctx, mustEvent(t, 0, "alice", "1.1.1.1", "login-failure"))
	reports, err := rule.Evaluate(ctx, mustEvent(t, 1, "bob", "1.1.1.1", "login-failure"))
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].RuleName != report.RuleAddressRateExceeded {
		t.Fatalf("want address-rate report triggered by a different user sharing the address, got %+v", reports)
	}
}

func TestRateLimitRule_WindowEvictsOldAttempts(t *testing.T) {
	rule := NewRateLimitRule(RateLimitConfig{WindowSeconds: 10, MaxUserAttempts: 1, MaxAddressAttempts: 100}, nil)
	ctx := context.Background()

	rule.Evaluate(ctx, mustEvent(t, 0, "alice", "1.1.1.1", "login-failure"))
	// far outside the 10s window: should not trip despite being attempt #2 overall
	reports, err := rule.Evaluate(ctx, mustEvent(t, 1000, "alice", "1.1.1.1", "login-failure"))
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 0 {
		t.Fatalf("want no report once prior attempt has aged out, got %+v", reports)
	}
}

func TestRateLimitRule_ZeroThresholdDisablesProjection(t *testing.T) {
	rule := NewRateLimitRule(RateLimitConfig{WindowSeconds: 60, MaxUserAttempts: 0, MaxAddressAttempts: 0}, nil)
	reports, err := rule.Evaluate(context.Background(), mustEvent(t, 0, "alice", "1.1.1.1", "login-failure"))
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 0 {
		t.Fatalf("want no report with thresholds disabled, got %+v", reports)
	}
}
