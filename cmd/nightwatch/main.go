package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/skywalker-88/nightwatch/internal/alert"
	"github.com/skywalker-88/nightwatch/internal/detect"
	"github.com/skywalker-88/nightwatch/internal/event"
	"github.com/skywalker-88/nightwatch/internal/geo"
	"github.com/skywalker-88/nightwatch/internal/httpserver"
	"github.com/skywalker-88/nightwatch/internal/identity"
	"github.com/skywalker-88/nightwatch/internal/ingest"
	"github.com/skywalker-88/nightwatch/internal/maintenance"
	Lm "github.com/skywalker-88/nightwatch/internal/middleware"
	"github.com/skywalker-88/nightwatch/internal/output"
	"github.com/skywalker-88/nightwatch/internal/rl"
	"github.com/skywalker-88/nightwatch/internal/store"
	"github.com/skywalker-88/nightwatch/pkg/config"
)

func main() {
	// ------- Logging setup -------
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	switch strings.ToLower(getenv("LOG_LEVEL", "info")) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// ---- Load config (with env fallback) ----
	cfgPath := os.Getenv("NIGHTWATCH_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", cfgPath).Msg("load config")
	}

	// ---- Optional Redis client, shared by the store (if redis-backed) and
	// the admin surface's self-protecting limiter. ----
	var rdb *redis.Client
	if cfg.Store.Backend == "redis" || cfg.Redis.Addr != "" {
		rdb = store.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn().Err(err).Msg("redis close")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis not reachable yet")
		} else {
			log.Info().Msg("redis reachable")
		}
		cancel()
	}

	// ---- Durable store ----
	stateStore, closeStore := openStore(cfg, rdb)
	defer closeStore()

	// ---- Optional geolocation provider ----
	var geoProvider geo.Provider
	if path := os.Getenv("NIGHTWATCH_GEOIP_DB"); path != "" {
		mm, err := geo.OpenMaxMind(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("geoip database unavailable; geo-velocity rule disabled")
		} else {
			geoProvider = mm
			defer mm.Close()
		}
	}

	// ---- Detection core ----
	identityIndex := identity.NewIndex(store.AsIdentityBacking(stateStore))
	geoIndex := geo.NewIndex(store.AsGeoBacking(stateStore))

	var rules []detect.Rule
	if cfg.Detection.IPSwitchEnabled() {
		rules = append(rules, detect.NewIPSwitchRule(identityIndex))
	}
	if cfg.Detection.GeoVelocityEnabled() && geoProvider != nil {
		rules = append(rules, detect.NewGeoVelocityRule(geoIndex, geoProvider, cfg.Detection.GeoVelocity.MaxVelocityKmh))
	}
	var rateLimitRule *detect.RateLimitRule
	if cfg.Detection.RateLimitEnabled() {
		rateLimitRule = detect.NewRateLimitRule(detect.RateLimitConfig{
			WindowSeconds:      cfg.Detection.RateLimit.WindowSeconds,
			MaxUserAttempts:    cfg.Detection.RateLimit.MaxUserAttempts,
			MaxAddressAttempts: cfg.Detection.RateLimit.MaxAddressAttempts,
		}, stateStore)
		rules = append(rules, rateLimitRule)
	}

	writer := output.NewWriter(os.Stdout, output.Format(cfg.Output.Format))

	alertQueue := alert.NewQueue(cfg.AlertQueue.Capacity)
	notifiers := buildNotifiers(cfg.Webhooks)
	alertDispatcher := alert.NewDispatcher(alertQueue, notifiers, cfg.AlertQueue.MinSeverity)

	dispatcher := detect.NewDispatcher(rules, writer, stateStore, alertQueue)
	eventQueue := event.NewQueue(cfg.EventQueue.Capacity)

	// ---- Maintenance sweep ----
	var windows []maintenance.WindowPruner
	if rateLimitRule != nil {
		for _, w := range rateLimitRule.Windows() {
			windows = append(windows, w)
		}
	}
	ticker := maintenance.New(
		time.Duration(cfg.Maintenance.IntervalSeconds)*time.Second,
		cfg.Detection.RateLimit.WindowSeconds,
		windows,
		stateStore,
	)

	// ---- Admin HTTP surface, self-protected if Redis is available ----
	var adminRL *Lm.AdminRateLimiter
	if rdb != nil {
		adminRL = Lm.NewAdminRateLimiter(rl.New(rdb), cfg)
	}
	httpserver.EnableDrainFlag(true)
	router := httpserver.NewRouter(httpserver.RouterDeps{Cfg: cfg, RL: adminRL, Store: stateStore})

	addr := getenv("NIGHTWATCH_HTTP_ADDR", cfg.Server.Addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// ---- Background workers ----
	// ingestCtx is cancelled first, on its own, so shutdown can stop input
	// production (spec.md §5 step i) before touching the queues that feed
	// off of it. runCtx governs the dispatcher/alertDispatcher/ticker and is
	// only cancelled once those have had a bounded grace window to drain on
	// their own (steps ii-iv).
	runCtx, cancelRun := context.WithCancel(context.Background())
	ingestCtx, cancelIngest := context.WithCancel(runCtx)
	defer cancelRun()

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		dispatcher.Run(runCtx, eventQueue)
	}()
	go func() {
		defer workers.Done()
		alertDispatcher.Run(runCtx)
	}()
	go ticker.Run(runCtx)

	adapter := buildIngestAdapter(cfg)
	go func() {
		if err := adapter.Run(ingestCtx, eventQueue); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("ingest adapter stopped unexpectedly")
		}
	}()

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	log.Info().
		Str("addr", addr).
		Str("config", cfgPath).
		Str("store_backend", cfg.Store.Backend).
		Str("ingest_mode", cfg.Ingest.Mode).
		Str("log_level", zerolog.GlobalLevel().String()).
		Msg("nightwatch starting")

	// ---- Graceful shutdown on SIGINT/SIGTERM ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutdown requested; draining")

	httpserver.SetDraining(true)

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown did not complete in time; forcing close")
		_ = srv.Close()
	} else {
		log.Info().Msg("http server shut down cleanly")
	}
	shCancel()

	// (i) input tasks stop producing.
	cancelIngest()

	// (ii)-(iv) wait, up to a bounded grace window, for the still-running
	// dispatcher and alert dispatcher to drain eventQueue/alertQueue on
	// their own: each item popped this way is still dispatched to the
	// sink, store, and alert queue (the output writer is flushed and
	// alerts fanned out as a normal side effect of dispatch), rather than
	// being silently discarded by Queue.Drain racing a still-running
	// consumer for the same items.
	const shutdownGrace = 10 * time.Second
	deadline := time.Now().Add(shutdownGrace)
	for eventQueue.Len() > 0 || alertQueue.Len() > 0 {
		if time.Now().After(deadline) {
			log.Warn().Msg("shutdown grace window elapsed with events still queued")
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Only now stop the dispatcher/alertDispatcher goroutines, and wait for
	// them to actually exit, so nothing is still consuming from the queues
	// when Drain below runs.
	cancelRun()
	workers.Wait()

	drained := eventQueue.Drain(cfg.EventQueue.Capacity)
	dropped := alertQueue.Drain(cfg.AlertQueue.Capacity)
	log.Info().Int("events_dropped", drained).Int("alerts_dropped", dropped).Msg("queues drained")

	log.Info().Msg("nightwatch exited")
}

// openStore selects the durability backend per cfg.Store.Backend. "redis"
// requires NIGHTWATCH_CONFIG's redis block; any open failure falls back to
// an in-memory store rather than refusing to start, matching spec.md
// §4.F's graceful-degradation posture.
func openStore(cfg *config.Config, rdb *redis.Client) (store.Store, func()) {
	switch cfg.Store.Backend {
	case "redis":
		if rdb == nil {
			rdb = store.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		}
		rs := store.OpenRedis(rdb)
		return rs, func() {}
	case "memory":
		return store.NewMem(), func() {}
	default:
		bs, err := store.OpenBolt(cfg.Store.BoltPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Store.BoltPath).Msg("bolt store unavailable; falling back to in-memory state")
			return store.NewMem(), func() {}
		}
		return bs, func() {
			if err := bs.Close(); err != nil {
				log.Warn().Err(err).Msg("bolt store close")
			}
		}
	}
}

func buildNotifiers(webhooks []config.Webhook) []alert.Notifier {
	var out []alert.Notifier
	for _, w := range webhooks {
		switch w.Kind {
		case "slack":
			out = append(out, &alert.SlackNotifier{WebhookURL: w.URL, Channel: w.Channel, Username: w.Username})
		case "discord":
			out = append(out, &alert.DiscordNotifier{WebhookURL: w.URL, Username: w.Username})
		case "generic":
			out = append(out, &alert.GenericNotifier{URL: w.URL, Method: w.Method, Headers: w.Headers})
		default:
			log.Warn().Str("kind", w.Kind).Msg("unknown webhook kind, skipped")
		}
	}
	return out
}

func buildIngestAdapter(cfg *config.Config) ingest.Adapter {
	switch cfg.Ingest.Mode {
	case "file":
		poll := time.Duration(cfg.Ingest.PollIntervalSecs) * time.Second
		return ingest.NewFileTailAdapter(cfg.Ingest.FilePath, poll, func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		})
	case "syslog":
		return ingest.NewSyslogAdapter(cfg.Ingest.SyslogAddr)
	default:
		return ingest.NewStdinAdapter(os.Stdin)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
