// Package config loads nightwatch's configuration file with koanf, mirroring
// the teacher gateway's YAML-plus-env-override approach.
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Server controls the admin HTTP surface (spec.md's supplemental
// operability endpoints: /health, /metrics, /reports).
type Server struct {
	Addr string `yaml:"addr"`
}

// Identity selects how a caller is keyed for the admin surface's
// self-protecting rate limiter.
type Identity struct {
	// "header:X-API-Key" or "ip"
	Source string `yaml:"source"`
}

// Redis configures the optional RedisStore / shared admin rate limiter
// backend.
type Redis struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}

// Limit is a token-bucket policy: rps tokens/second, up to burst, cost
// tokens consumed per request.
type Limit struct {
	RPS   float64 `yaml:"rps"`
	Burst int64   `yaml:"burst"`
	Cost  int64   `yaml:"cost"`
}

// Admin configures rate limiting of the admin HTTP surface itself.
type Admin struct {
	Identity  Identity `yaml:"identity"`
	Limit     Limit    `yaml:"limit"`
	Allowlist []string `yaml:"allowlist"`
}

// Store selects and configures the durability backend (spec.md §4.F).
type Store struct {
	// "bolt" (default), "redis", or "memory"
	Backend string `yaml:"backend"`
	// BoltPath is the database file path when Backend == "bolt".
	BoltPath string `yaml:"bolt_path"`
}

// EventQueue sizes the bounded handoff between input adapters and the
// dispatcher (spec.md §4.H queue-sizing conventions carried over to the
// event side).
type EventQueue struct {
	Capacity int `yaml:"capacity"`
}

// AlertQueue sizes and severity-filters the webhook fan-out path
// (spec.md §4.H).
type AlertQueue struct {
	Capacity    int `yaml:"capacity"`
	MinSeverity int `yaml:"min_severity"`
}

// Detection carries every tunable threshold for the three stateful rules
// (spec.md §4.C, §4.D, §4.E), plus per-rule enable switches so an operator
// can turn off a rule without removing its threshold tuning.
type Detection struct {
	EnableIPSwitch   *bool             `yaml:"enable_ip_switch"`
	EnableGeoVelocity *bool            `yaml:"enable_geo_velocity"`
	EnableRateLimit  *bool             `yaml:"enable_rate_limit"`
	GeoVelocity      GeoVelocityConfig `yaml:"geo_velocity"`
	RateLimit        RateLimitConfig   `yaml:"rate_limit"`
}

// ruleEnabled treats an unset switch as enabled, matching the original
// detector's all-rules-on-by-default posture.
func ruleEnabled(b *bool) bool { return b == nil || *b }

func (d Detection) IPSwitchEnabled() bool   { return ruleEnabled(d.EnableIPSwitch) }
func (d Detection) GeoVelocityEnabled() bool { return ruleEnabled(d.EnableGeoVelocity) }
func (d Detection) RateLimitEnabled() bool  { return ruleEnabled(d.EnableRateLimit) }

// GeoVelocityConfig tunes the impossible-travel rule.
type GeoVelocityConfig struct {
	// MaxVelocityKmh is the plausibility ceiling for human travel
	// (spec.md §4.D default 900 km/h, commercial aviation cruise speed).
	MaxVelocityKmh float64 `yaml:"max_velocity_kmh"`
}

// RateLimitConfig tunes the sliding-window login attempt rule.
type RateLimitConfig struct {
	WindowSeconds      int64 `yaml:"window_seconds"`
	MaxUserAttempts    int   `yaml:"max_user_attempts"`
	MaxAddressAttempts int   `yaml:"max_address_attempts"`
}

// Output selects how emitted reports are rendered to the primary sink
// (spec.md §6).
type Output struct {
	// "line-json", "pretty-json", or "console"
	Format string `yaml:"format"`
}

// Webhook is one configured alert delivery channel (spec.md §6).
type Webhook struct {
	Kind string `yaml:"kind"` // "slack", "discord", or "generic"
	URL  string `yaml:"url"`

	// Slack-specific Channel; Username is used by Slack and Discord.
	Channel  string `yaml:"channel"`
	Username string `yaml:"username"`

	// Generic-specific.
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
}

// Ingest selects the input adapter (spec.md's external event source,
// supplemented here so the daemon has a way to actually receive events).
type Ingest struct {
	// "stdin", "file", or "syslog"
	Mode             string `yaml:"mode"`
	FilePath         string `yaml:"file_path"`
	PollIntervalSecs int    `yaml:"poll_interval_seconds"`
	SyslogAddr       string `yaml:"syslog_addr"`
}

// Maintenance tunes the periodic sweep (spec.md §4.I).
type Maintenance struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

// Config is the root configuration document.
type Config struct {
	Server      Server      `yaml:"server"`
	Admin       Admin       `yaml:"admin"`
	Redis       Redis       `yaml:"redis"`
	Store       Store       `yaml:"store"`
	EventQueue  EventQueue  `yaml:"event_queue"`
	AlertQueue  AlertQueue  `yaml:"alert_queue"`
	Detection   Detection   `yaml:"detection"`
	Output      Output      `yaml:"output"`
	Webhooks    []Webhook   `yaml:"webhooks"`
	Ingest      Ingest      `yaml:"ingest"`
	Maintenance Maintenance `yaml:"maintenance"`
}

// Load reads path (or $NIGHTWATCH_CONFIG, or "configs/nightwatch.yaml" if
// both are empty) and unmarshals it into a Config.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("NIGHTWATCH_CONFIG")
	}
	if path == "" {
		path = "configs/nightwatch.yaml"
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "yaml",
	}); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in zero-valued fields with the distillation source's
// defaults, so a minimal config file (or one written before a new field
// existed) still produces sane thresholds.
func applyDefaults(cfg *Config) {
	if cfg.Detection.RateLimit.WindowSeconds == 0 {
		cfg.Detection.RateLimit.WindowSeconds = 300
	}
	if cfg.Detection.RateLimit.MaxUserAttempts == 0 {
		cfg.Detection.RateLimit.MaxUserAttempts = 10
	}
	if cfg.Detection.RateLimit.MaxAddressAttempts == 0 {
		cfg.Detection.RateLimit.MaxAddressAttempts = 20
	}
	if cfg.Detection.GeoVelocity.MaxVelocityKmh == 0 {
		cfg.Detection.GeoVelocity.MaxVelocityKmh = 900
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "line-json"
	}
	if cfg.EventQueue.Capacity == 0 {
		cfg.EventQueue.Capacity = 1000
	}
	if cfg.AlertQueue.Capacity == 0 {
		cfg.AlertQueue.Capacity = 100
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "bolt"
	}
	if cfg.Store.BoltPath == "" {
		cfg.Store.BoltPath = "nightwatch.db"
	}
	if cfg.Maintenance.IntervalSeconds == 0 {
		cfg.Maintenance.IntervalSeconds = 60
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Ingest.Mode == "" {
		cfg.Ingest.Mode = "stdin"
	}
	if cfg.Ingest.SyslogAddr == "" {
		cfg.Ingest.SyslogAddr = ":514"
	}
}

// MustEnv returns the environment variable's value, or def if unset/empty.
func MustEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
