package rl

import (
	"strings"

	cfg "github.com/skywalker-88/nightwatch/pkg/config"
)

// EffectiveLimit returns the configured limit for the admin HTTP surface,
// falling back to the package default when the operator hasn't overridden
// it (spec.md's ambient-stack admin endpoints reuse this self-protection).
func EffectiveLimit(c *cfg.Config) cfg.Limit {
	if c == nil || (c.Admin.Limit.RPS <= 0 && c.Admin.Limit.Burst <= 0) {
		return cfg.Limit{RPS: 5, Burst: 10, Cost: 1}
	}
	return c.Admin.Limit
}

// IsAllowlisted reports whether clientID bypasses admin rate limiting.
// Supported patterns: exact match, "*" (all), and "prefix-*".
func IsAllowlisted(c *cfg.Config, clientID string) bool {
	if c == nil {
		return false
	}
	for _, pat := range c.Admin.Allowlist {
		switch {
		case pat == clientID:
			return true
		case pat == "*":
			return true
		case strings.HasSuffix(pat, "*") && strings.HasPrefix(clientID, strings.TrimSuffix(pat, "*")):
			return true
		}
	}
	return false
}
