package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmehra2102/stock-reservation-system/pkg/httpx"
)

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Log         *slog.Logger
	Health      Pinger
	Middlewares []func(http.Handler) http.Handler
	Timeout     time.Duration
}

func NewRouter(cfg RouterConfig, groups ...Registrar) http.Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))
	r.Use(requestLogger(cfg.Log))
	for _, mw := range cfg.Middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health.Ping(req.Context()); err != nil {
				cfg.Log.WarnContext(req.Context(), "health check failed", "err", err)
				httpx.Fail(w, http.StatusServiceUnavailable, "UNAVAILABLE", "store unavailable")
				return
			}
		}
		httpx.OK(w, http.StatusOK, "ok", nil)
	})

	for _, g := range groups {
		g.Register(r)
	}
	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
