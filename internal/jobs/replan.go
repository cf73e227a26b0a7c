// SPDX-License-Identifier: MIT

// Package jobs runs the background work around the scheduler: automatic
// replanning when the clinical state changes, plan archiving, and atomic
// plan file exports.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/careshift/careshift/internal/cache"
	"github.com/careshift/careshift/internal/clinical"
	"github.com/careshift/careshift/internal/health"
	"github.com/careshift/careshift/internal/log"
	"github.com/careshift/careshift/internal/metrics"
	"github.com/careshift/careshift/internal/scheduler"
	"github.com/careshift/careshift/internal/store"
)

// Archiver records generated plans. Satisfied by history.Store.
type Archiver interface {
	Append(ctx context.Context, plan clinical.ScheduleResponse) error
}

// ReplanConfig configures the replan worker.
type ReplanConfig struct {
	// Debounce is how long to wait after the last store change before
	// regenerating. Bulk ingests collapse into one replan.
	Debounce time.Duration

	// ExportPath is where the current plan is written after every replan.
	// Empty disables the export.
	ExportPath string

	// CacheTTL bounds how long a generated plan stays in the plan cache.
	CacheTTL time.Duration
}

// ReplanWorker regenerates the shift plan whenever the clinical state
// changes.
type ReplanWorker struct {
	store   store.Store
	sched   *scheduler.Scheduler
	cache   cache.PlanCache
	archive Archiver
	checker *health.ReplanChecker
	cfg     ReplanConfig
}

// NewReplanWorker wires the worker. archive and checker may be nil.
func NewReplanWorker(s store.Store, sched *scheduler.Scheduler, planCache cache.PlanCache, archive Archiver, checker *health.ReplanChecker, cfg ReplanConfig) *ReplanWorker {
	if planCache == nil {
		planCache = cache.NewNoop()
	}
	return &ReplanWorker{
		store:   s,
		sched:   sched,
		cache:   planCache,
		archive: archive,
		checker: checker,
		cfg:     cfg,
	}
}

// Run subscribes to store changes and replans after each quiet period. It
// returns when ctx is canceled.
func (w *ReplanWorker) Run(ctx context.Context) error {
	logger := log.WithComponent("replan")
	changes := w.store.Changes()

	timer := time.NewTimer(w.cfg.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	logger.Info().
		Str("event", "replan.started").
		Dur("debounce", w.cfg.Debounce).
		Msg("replan worker running")

	pending := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.cfg.Debounce)
			pending = true

		case <-timer.C:
			pending = false
			if err := w.Replan(ctx); err != nil {
				logger.Error().Err(err).Str("event", "replan.failed").Msg("replan failed")
			}
		}
	}
}

// Replan generates a plan from the current state, caches it, archives it and
// exports it. A store without a shift window is not an error; there is just
// nothing to plan yet.
func (w *ReplanWorker) Replan(ctx context.Context) error {
	logger := log.WithComponentFromContext(ctx, "replan")
	start := time.Now()

	snap, err := w.store.Snapshot(ctx)
	if err != nil {
		w.recordFailure(err)
		return err
	}

	req, err := snap.Request()
	if errors.Is(err, store.ErrShiftNotSet) {
		metrics.IncReplan("skipped")
		logger.Debug().Str("event", "replan.skipped").Msg("no shift configured")
		return nil
	}
	if err != nil {
		w.recordFailure(err)
		return err
	}

	plan := w.sched.Generate(req)
	plan.Revision = snap.Revision

	metrics.IncScheduleGenerated("replan")
	metrics.ObserveScheduleDuration(time.Since(start).Seconds())
	metrics.RecordScheduleOutcome(len(snap.Orders), len(plan.Tasks), len(snap.Orders)-len(plan.Tasks))
	metrics.RecordStoreRevision(snap.Revision)

	w.cache.Set(ctx, cache.PlanKey(snap.Revision), plan, w.cfg.CacheTTL)

	if w.archive != nil {
		if err := w.archive.Append(ctx, plan); err != nil {
			w.recordFailure(err)
			return err
		}
	}

	if w.cfg.ExportPath != "" {
		if err := ExportPlan(ctx, w.cfg.ExportPath, plan); err != nil {
			metrics.IncPlanExport("failure")
			w.recordFailure(err)
			return err
		}
		metrics.IncPlanExport("success")
	}

	metrics.IncReplan("success")
	if w.checker != nil {
		w.checker.RecordSuccess(time.Now())
	}

	logger.Info().
		Str("event", "replan.completed").
		Uint64(log.FieldRevision, snap.Revision).
		Int(log.FieldTasks, len(plan.Tasks)).
		Int("notes", len(plan.Notes)).
		Dur("duration", time.Since(start)).
		Msg("replan completed")
	return nil
}

func (w *ReplanWorker) recordFailure(err error) {
	metrics.IncReplan("failure")
	if w.checker != nil {
		w.checker.RecordFailure(err)
	}
}
