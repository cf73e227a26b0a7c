// SPDX-License-Identifier: MIT

// Package api implements the HTTP surface of the careshift daemon.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/careshift/careshift/internal/cache"
	"github.com/careshift/careshift/internal/clinical"
	"github.com/careshift/careshift/internal/config"
	"github.com/careshift/careshift/internal/health"
	"github.com/careshift/careshift/internal/ingest"
	"github.com/careshift/careshift/internal/middleware"
	"github.com/careshift/careshift/internal/scheduler"
	"github.com/careshift/careshift/internal/store"
)

// HistoryReader exposes the archived plans. Satisfied by history.Store.
type HistoryReader interface {
	Latest(ctx context.Context) (clinical.ScheduleResponse, error)
	Recent(ctx context.Context, limit int) ([]clinical.ScheduleResponse, error)
}

// Server holds the wired dependencies of the HTTP API.
type Server struct {
	cfg       config.AppConfig
	store     store.Store
	sched     *scheduler.Scheduler
	cache     cache.PlanCache
	loader    *ingest.Loader
	history   HistoryReader
	healthMgr *health.Manager
	startTime time.Time

	// now is the clock used by time-sensitive handlers; tests pin it.
	now func() time.Time
}

// New wires a Server. history may be nil when archiving is disabled.
func New(cfg config.AppConfig, s store.Store, sched *scheduler.Scheduler, planCache cache.PlanCache, hist HistoryReader, healthMgr *health.Manager) *Server {
	if planCache == nil {
		planCache = cache.NewNoop()
	}
	return &Server{
		cfg:       cfg,
		store:     s,
		sched:     sched,
		cache:     planCache,
		loader:    ingest.NewLoader(s),
		history:   hist,
		healthMgr: healthMgr,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Router builds the chi router with the canonical middleware stack and all
// routes mounted.
func (s *Server) Router() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            len(s.cfg.AllowedOrigins) > 0,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracingService(s.cfg),
		EnableLogging:         true,
		EnableRateLimit:       s.cfg.RateLimitRPM > 0,
		RateLimitRPM:          s.cfg.RateLimitRPM,
		RateLimitWindow:       time.Minute,
	})
	s.routes(r)
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.healthMgr.ServeHealth)
	r.Get("/readyz", s.healthMgr.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/schedule/generate", s.handleScheduleGenerate)
		r.Get("/schedule/latest", s.handleScheduleLatest)
		r.Get("/schedule/history", s.handleScheduleHistory)

		r.Get("/demo/payload", s.handleDemoPayload)
		r.Get("/system/status", s.handleSystemStatus)

		r.Route("/state", func(r chi.Router) {
			r.Get("/", s.handleGetState)
			r.Post("/reset", s.handleResetState)
			r.Post("/shift", s.handleSetShift)
			r.Post("/patients", s.handleSetPatients)
			r.Post("/orders", s.handleAddOrder)
			r.Delete("/orders/{orderID}", s.handleDeleteOrder)
			r.Post("/overrides", s.handleSetOverride)
			r.Delete("/overrides/{orderID}", s.handleDeleteOverride)
			r.Post("/bundle", s.handleLoadBundle)
			r.With(middleware.ReplanRateLimit()).Post("/replan", s.handleReplan)
		})
	})
}

func tracingService(cfg config.AppConfig) string {
	if cfg.OTELEnabled {
		return "careshift-api"
	}
	return ""
}
