package detect

import (
	"context"

	"github.com/skywalker-88/nightwatch/internal/event"
	"github.com/skywalker-88/nightwatch/internal/identity"
	"github.com/skywalker-88/nightwatch/internal/report"
)

// IPSwitchRule is the trust-on-first-use anchor for a principal's source
// address (spec.md §4.C). It fires at most once per switch.
type IPSwitchRule struct {
	index *identity.Index
}

// NewIPSwitchRule builds the rule over the given IdentityIndex.
func NewIPSwitchRule(index *identity.Index) *IPSwitchRule {
	return &IPSwitchRule{index: index}
}

func (r *IPSwitchRule) Name() string { return report.RuleSuddenIPSwitch }

// Evaluate implements spec.md §4.C steps 1-5.
func (r *IPSwitchRule) Evaluate(ctx context.Context, ev event.LogEvent) ([]report.Report, error) {
	prior, _, had := r.index.Lookup(ctx, ev.User)

	var out []report.Report
	switch {
	case !had:
		// Learning observation: first-ever event for this user.
	case prior == ev.SourceAddrText:
		// Same address: no alert, just refresh the timestamp below.
	default:
		out = append(out, report.Report{
			Severity:    severityIPSwitch,
			RuleName:    report.RuleSuddenIPSwitch,
			User:        ev.User,
			DetectedIP:  ev.SourceAddrText,
			TrustedIP:   prior,
			Timestamp:   ev.Timestamp,
			Description: "principal observed from a new source address",
		})
	}

	if err := r.index.Update(ctx, ev.User, ev.SourceAddrText, ev.Timestamp); err != nil {
		return out, err
	}
	return out, nil
}
