// Package report defines the immutable anomaly report emitted by detection
// rules and consumed by output sinks, the state store, and the alert queue.
package report

import "github.com/goccy/go-json"

// Report is the immutable structured value representing one detected
// anomaly. JSON field names match the wire contract in spec.md §6.
type Report struct {
	Severity    int    `json:"severity"`     // 1 (lowest) .. 10 (most urgent)
	RuleName    string `json:"rule_name"`    // stable human-readable identifier
	User        string `json:"user"`
	DetectedIP  string `json:"detected_ip"`
	TrustedIP   string `json:"trusted_ip"` // possibly empty
	Timestamp   int64  `json:"timestamp"`  // equals the triggering event's timestamp
	Description string `json:"description"`
}

// Rule name constants, kept as named constants so callers and tests never
// retype the exact strings from spec.md §4.
const (
	RuleSuddenIPSwitch      = "Sudden IP Switch"
	RuleSimultaneousLogin   = "Simultaneous Multi-Location Login"
	RuleImpossibleTravel    = "Impossible Travel Velocity"
	RuleUserRateExceeded    = "User Rate Limit Exceeded"
	RuleAddressRateExceeded = "Source Address Rate Limit Exceeded"
)

// MarshalJSONLine encodes the report followed by a trailing newline, for
// line-delimited JSON sinks.
func (r Report) MarshalJSONLine() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Valid reports whether the severity respects the [1,10] band (spec.md §8
// "Severity band totality") and RuleName and User are both non-empty.
func (r Report) Valid() bool {
	return r.Severity >= 1 && r.Severity <= 10 && r.RuleName != "" && r.User != ""
}
