package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skywalker-88/nightwatch/internal/rl"
	"github.com/skywalker-88/nightwatch/pkg/config"
	"github.com/skywalker-88/nightwatch/pkg/metrics"
)

// AdminRateLimiter self-protects the admin HTTP surface (spec.md's
// supplemental operability endpoints) with a Redis token-bucket Limiter that
// shares its Redis client with the RedisStore backend when both are in use.
type AdminRateLimiter struct {
	L   *rl.Limiter
	Cfg *config.Config
}

func NewAdminRateLimiter(l *rl.Limiter, cfg *config.Config) *AdminRateLimiter {
	return &AdminRateLimiter{L: l, Cfg: cfg}
}

func (r *AdminRateLimiter) clientIDFrom(req *http.Request) string {
	id := ""
	src := r.Cfg.Admin.Identity.Source
	if strings.HasPrefix(strings.ToLower(src), "header:") {
		h := strings.TrimSpace(strings.SplitN(src, ":", 2)[1])
		if v := req.Header.Get(h); v != "" {
			id = v
		}
	}
	if id == "" {
		id = clientIP(req)
	}
	if id == "" {
		id = "anon"
	}
	return id
}

func clientIP(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err == nil {
		return host
	}
	return req.RemoteAddr
}

// Limit wraps next with the admin rate limiter for the named route. If L is
// nil (no Redis configured), the limiter is a no-op — the admin surface is
// unprotected but still functional, matching the store's graceful
// degradation posture (spec.md §4.F).
func (r *AdminRateLimiter) Limit(route string, next http.Handler) http.Handler {
	if r.L == nil {
		return next
	}
	lim := rl.EffectiveLimit(r.Cfg)
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		clientID := r.clientIDFrom(req)
		if rl.IsAllowlisted(r.Cfg, clientID) {
			next.ServeHTTP(w, req)
			return
		}

		key := "nightwatch:admin:" + route + ":" + clientID
		allowed, remaining, retryAfter, resetAfter, err := r.L.Consume(req.Context(), key, lim.RPS, lim.Burst, lim.Cost)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("admin limiter error; allowing request")
			next.ServeHTTP(w, req)
			return
		}

		w.Header().Set("X-RateLimit-Limit", formatFloat(lim.RPS))
		w.Header().Set("X-RateLimit-Remaining", formatFloat(remaining))
		w.Header().Set("X-RateLimit-Reset", formatDuration(resetAfter))

		if !allowed {
			if retryAfter > 0 {
				w.Header().Set("Retry-After", formatSeconds(retryAfter))
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limited"}`))
			metrics.AdminLimited.WithLabelValues(route).Inc()
			return
		}

		next.ServeHTTP(w, req)
	})
}

func formatFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(strconv.FormatFloat(f, 'f', 3, 64), "0"), ".")
}
func formatDuration(d time.Duration) string { return strconv.FormatInt(int64(d/time.Second), 10) }
func formatSeconds(d time.Duration) string {
	return strconv.FormatInt(int64((d+time.Second-1)/time.Second), 10)
}
