// Package httpserver exposes nightwatch's admin HTTP surface: health,
// Prometheus metrics, and a recent-reports window, supplemental to the
// detection core itself (spec.md's event source and output sink are the
// real data path; this is operability).
package httpserver

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	Lm "github.com/skywalker-88/nightwatch/internal/middleware"
	"github.com/skywalker-88/nightwatch/internal/report"
	"github.com/skywalker-88/nightwatch/pkg/config"
)

// ReportStore is the slice of store.Store the /reports endpoint needs.
type ReportStore interface {
	RecentReports(ctx context.Context, limit int) ([]report.Report, error)
}

// RouterDeps carries everything the router needs to build handlers.
type RouterDeps struct {
	Cfg   *config.Config
	RL    *Lm.AdminRateLimiter // may be nil: admin surface runs unprotected
	Store ReportStore          // may be nil: /reports degrades to 503
}

// NewRouter builds the Chi router for the admin HTTP surface.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(Lm.AccessLoggerFromEnv())

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name":"nightwatch","status":"ok","hint":"see /health, /metrics, /reports"}`))
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if IsDraining() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"draining"}` + "\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	})

	if d.RL != nil {
		r.Handle("/metrics", d.RL.Limit("/metrics", promhttp.Handler()))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	reportsHandler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if d.Store == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"store_not_configured"}`))
			return
		}
		limit := 50
		if v := req.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		reports, err := d.Store.RecentReports(req.Context(), limit)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"store_unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		_ = enc.Encode(reports)
	})

	if d.RL != nil {
		r.Get("/reports", d.RL.Limit("/reports", reportsHandler).ServeHTTP)
	} else {
		r.Get("/reports", reportsHandler.ServeHTTP)
	}

	r.NotFound(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found"}`))
	}))

	return r
}
