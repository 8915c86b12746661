// Package server wraps Locomote Server's HTTP handler in an
// http.Server with graceful shutdown, grounded on the teacher's own
// internal/server package: the same Server struct, NewServer
// constructor and Start/Stop shape, with the router built from this
// system's own handler family instead of a single webhook endpoint.
package server

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sevigo/locomote-server/internal/server/handler"
)

// NewRouter builds the chi router for every route spec §6.1 names:
// the address-grammar catch-all, the static robots.txt, and (when
// metricsReg is non-nil) a Prometheus scrape endpoint over it.
func NewRouter(deps handler.Deps, metricsReg *prometheus.Registry, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	h := handler.New(deps)

	r.Get("/robots.txt", h.Robots)
	if metricsReg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
	}
	r.HandleFunc("/*", h.Dispatch)

	return r
}
