// SPDX-License-Identifier: MIT
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/careshift/careshift/internal/cache"
	"github.com/careshift/careshift/internal/clinical"
	"github.com/careshift/careshift/internal/history"
	"github.com/careshift/careshift/internal/ingest"
	"github.com/careshift/careshift/internal/log"
	"github.com/careshift/careshift/internal/metrics"
)

// handleScheduleGenerate is the stateless scheduling endpoint: the full
// request payload in, the prioritized timeline out. Nothing is stored.
func (s *Server) handleScheduleGenerate(w http.ResponseWriter, r *http.Request) {
	var req clinical.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ingest.Normalize(&req)
	if err := req.Validate(); err != nil {
		writeUnprocessable(w, err.Error())
		return
	}

	start := time.Now()
	plan := s.sched.Generate(req)
	metrics.IncScheduleGenerated("api")
	metrics.ObserveScheduleDuration(time.Since(start).Seconds())
	metrics.RecordScheduleOutcome(len(req.Orders), len(plan.Tasks), len(req.Orders)-len(plan.Tasks))

	writeJSON(w, http.StatusOK, plan)
}

// handleReplan generates a schedule from the stored state. Plans are cached
// by state revision, so repeated replans of an unchanged shift are free.
func (s *Server) handleReplan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.WithComponentFromContext(ctx, "api")

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	req, err := snap.Request()
	if err != nil {
		writeStoreError(w, err, "")
		return
	}

	key := cache.PlanKey(snap.Revision)
	if plan, ok := s.cache.Get(ctx, key); ok {
		metrics.IncPlanCacheHit()
		logger.Debug().
			Str("event", "schedule.cache_hit").
			Uint64(log.FieldRevision, snap.Revision).
			Msg("serving cached plan")
		writeJSON(w, http.StatusOK, plan)
		return
	}
	metrics.IncPlanCacheMiss()

	start := time.Now()
	plan := s.sched.Generate(req)
	plan.Revision = snap.Revision

	metrics.IncScheduleGenerated("api")
	metrics.ObserveScheduleDuration(time.Since(start).Seconds())
	metrics.RecordScheduleOutcome(len(req.Orders), len(plan.Tasks), len(req.Orders)-len(plan.Tasks))

	s.cache.Set(ctx, key, plan, s.cfg.CacheTTL)

	logger.Info().
		Str("event", "schedule.generated").
		Uint64(log.FieldRevision, snap.Revision).
		Int(log.FieldTasks, len(plan.Tasks)).
		Msg("schedule generated from state")

	writeJSON(w, http.StatusOK, plan)
}

// handleScheduleLatest returns the most recently archived plan.
func (s *Server) handleScheduleLatest(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeDetail(w, http.StatusNotFound, "Plan history is not enabled.")
		return
	}
	plan, err := s.history.Latest(r.Context())
	if errors.Is(err, history.ErrEmpty) {
		writeDetail(w, http.StatusNotFound, "No schedule generated yet.")
		return
	}
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// handleScheduleHistory lists archived plans, newest first.
func (s *Server) handleScheduleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeDetail(w, http.StatusNotFound, "Plan history is not enabled.")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeUnprocessable(w, "limit must be a positive integer.")
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	plans, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if plans == nil {
		plans = []clinical.ScheduleResponse{}
	}
	writeJSON(w, http.StatusOK, plans)
}

// handleDemoPayload returns a fresh, immediately usable sample request.
func (s *Server) handleDemoPayload(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ingest.DemoPayload(s.now()))
}
