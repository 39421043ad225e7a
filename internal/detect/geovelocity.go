package detect

import (
	"context"

	"github.com/skywalker-88/nightwatch/internal/event"
	"github.com/skywalker-88/nightwatch/internal/geo"
	"github.com/skywalker-88/nightwatch/internal/report"
)

// simultaneousThresholdHours is the Δt below which two logins for the same
// user are treated as simultaneous regardless of distance (spec.md §4.D
// step 3: < 0.001h, i.e. < 3.6 seconds).
const simultaneousThresholdHours = 0.001

// GeoVelocityRule detects impossible travel and simultaneous multi-location
// logins (spec.md §4.D).
type GeoVelocityRule struct {
	index       *geo.Index
	provider    geo.Provider
	maxVelocity float64 // km/h, default 900
}

// NewGeoVelocityRule builds the rule. maxVelocityKmh <= 0 defaults to 900.
func NewGeoVelocityRule(index *geo.Index, provider geo.Provider, maxVelocityKmh float64) *GeoVelocityRule {
	if maxVelocityKmh <= 0 {
		maxVelocityKmh = 900
	}
	return &GeoVelocityRule{index: index, provider: provider, maxVelocity: maxVelocityKmh}
}

func (r *GeoVelocityRule) Name() string { return report.RuleImpossibleTravel }

// Evaluate implements spec.md §4.D. Edge cases: a missing geolocation for
// the current event skips the rule entirely (no index update); negative or
// near-zero Δt is treated as simultaneous.
func (r *GeoVelocityRule) Evaluate(ctx context.Context, ev event.LogEvent) ([]report.Report, error) {
	if r.provider == nil {
		return nil, nil
	}
	current, ok := r.provider.Locate(ev.SourceAddrText)
	if !ok {
		return nil, nil
	}

	prevTS, prevLoc, had := r.index.Lookup(ctx, ev.User)

	if err := r.index.Update(ctx, ev.User, ev.SourceAddrText, ev.Timestamp, current); err != nil {
		return nil, err
	}
	if !had {
		return nil, nil
	}

	deltaHours := float64(ev.Timestamp-prevTS) / 3600.0
	if deltaHours < simultaneousThresholdHours {
		return []report.Report{{
			Severity:    severitySimultaneousLogin,
			RuleName:    report.RuleSimultaneousLogin,
			User:        ev.User,
			DetectedIP:  ev.SourceAddrText,
			Timestamp:   ev.Timestamp,
			Description: "same principal logged in from two locations within seconds",
		}}, nil
	}

	distanceKm := geo.Haversine(prevLoc, current)
	if distanceKm == 0 {
		return nil, nil
	}

	velocity := distanceKm / deltaHours
	if velocity <= r.maxVelocity {
		return nil, nil
	}

	ratio := velocity / r.maxVelocity
	return []report.Report{{
		Severity:    severityForVelocityRatio(ratio),
		RuleName:    report.RuleImpossibleTravel,
		User:        ev.User,
		DetectedIP:  ev.SourceAddrText,
		Timestamp:   ev.Timestamp,
		Description: "principal traveled faster than physically possible between logins",
	}}, nil
}
