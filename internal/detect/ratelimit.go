package detect

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/skywalker-88/nightwatch/internal/event"
	"github.com/skywalker-88/nightwatch/internal/ratewindow"
	"github.com/skywalker-88/nightwatch/internal/report"
)

// RateLimitBacking is the slice of StateStore the rate-limit rule needs.
// When present, the persisted attempt list is the authoritative count
// source; the in-memory ratewindow.Index instances are cache accelerators
// (spec.md §4.E "Durability interaction").
type RateLimitBacking interface {
	AppendAttempt(ctx context.Context, user, addr string, ts int64) error
	CountUserAttempts(ctx context.Context, user string, windowStart int64) (int, error)
	CountAddressAttempts(ctx context.Context, addr string, windowStart int64) (int, error)
}

// RateLimitConfig carries the tunable thresholds (spec.md §4.E).
type RateLimitConfig struct {
	WindowSeconds      int64
	MaxUserAttempts    int
	MaxAddressAttempts int
}

// RateLimitRule enforces sliding-window attempt limits per principal and
// per source address (spec.md §4.E).
type RateLimitRule struct {
	cfg     RateLimitConfig
	byUser  *ratewindow.Index
	byAddr  *ratewindow.Index
	backing RateLimitBacking
}

// NewRateLimitRule builds the rule over two independent projections.
func NewRateLimitRule(cfg RateLimitConfig, backing RateLimitBacking) *RateLimitRule {
	return &RateLimitRule{
		cfg:     cfg,
		byUser:  ratewindow.NewIndex(),
		byAddr:  ratewindow.NewIndex(),
		backing: backing,
	}
}

func (r *RateLimitRule) Name() string { return "Rate Limit" }

// Evaluate implements spec.md §4.E. It may return zero, one, or two
// reports: the user-rule report (if any) always precedes the address-rule
// report.
func (r *RateLimitRule) Evaluate(ctx context.Context, ev event.LogEvent) ([]report.Report, error) {
	W := r.cfg.WindowSeconds
	addr := ev.SourceAddrText

	var userCount, addrCount int
	var storeErr error

	if r.backing != nil {
		storeErr = r.backing.AppendAttempt(ctx, ev.User, addr, ev.Timestamp)
		if storeErr == nil {
			windowStart := ev.Timestamp - W
			var cErr error
			userCount, cErr = r.backing.CountUserAttempts(ctx, ev.User, windowStart)
			if cErr != nil {
				storeErr = cErr
			}
			if storeErr == nil {
				addrCount, cErr = r.backing.CountAddressAttempts(ctx, addr, windowStart)
				if cErr != nil {
					storeErr = cErr
				}
			}
		}
		if storeErr != nil {
			log.Warn().Err(storeErr).Str("user", ev.User).Msg("rate limit store lookup failed; falling back to in-memory window")
		}
		// Keep the in-memory cache warm regardless of store outcome.
		memUser := r.byUser.Insert(ev.User, ev.Timestamp, W)
		memAddr := r.byAddr.Insert(addr, ev.Timestamp, W)
		if storeErr != nil {
			userCount, addrCount = memUser, memAddr
		}
	} else {
		userCount = r.byUser.Insert(ev.User, ev.Timestamp, W)
		addrCount = r.byAddr.Insert(addr, ev.Timestamp, W)
	}

	var out []report.Report
	if r.cfg.MaxUserAttempts > 0 && userCount > r.cfg.MaxUserAttempts {
		ratio := float64(userCount) / float64(r.cfg.MaxUserAttempts)
		out = append(out, report.Report{
			Severity:    severityForRateLimitRatio(ratio),
			RuleName:    report.RuleUserRateExceeded,
			User:        ev.User,
			DetectedIP:  addr,
			Timestamp:   ev.Timestamp,
			Description: "principal exceeded the sliding-window login attempt threshold",
		})
	}
	if r.cfg.MaxAddressAttempts > 0 && addrCount > r.cfg.MaxAddressAttempts {
		ratio := float64(addrCount) / float64(r.cfg.MaxAddressAttempts)
		out = append(out, report.Report{
			Severity:    severityForRateLimitRatio(ratio),
			RuleName:    report.RuleAddressRateExceeded,
			User:        ev.User,
			DetectedIP:  addr,
			Timestamp:   ev.Timestamp,
			Description: "source address exceeded the sliding-window login attempt threshold",
		})
	}
	return out, nil
}

// UserPreCount returns the pre-increment count for the user projection at
// ts, without inserting ts (stale entries are pruned). Exposes the window-eviction invariant
// (spec.md §8) for direct inspection.
func (r *RateLimitRule) UserPreCount(user string, ts int64) int {
	return r.byUser.PreCount(user, ts, r.cfg.WindowSeconds)
}

// Windows returns the two in-memory window projections, for the
// maintenance ticker to prune on its own schedule rather than only
// lazily on access.
func (r *RateLimitRule) Windows() []*ratewindow.Index {
	return []*ratewindow.Index{r.byUser, r.byAddr}
}
