// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduling metrics
	schedulesGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careshift_schedules_generated_total",
		Help: "Total number of schedule generations by trigger",
	}, []string{"trigger"}) // trigger=api|replan|demo

	scheduleDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "careshift_schedule_duration_seconds",
		Help:    "Time spent generating a schedule",
		Buckets: prometheus.DefBuckets,
	})

	ordersScoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "careshift_orders_scored_total",
		Help: "Total number of orders scored across all schedule generations",
	})

	tasksPlaced = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "careshift_tasks_placed",
		Help: "Number of tasks placed in the last generated schedule",
	})

	tasksDeferred = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "careshift_tasks_deferred",
		Help: "Number of orders that did not fit in the last generated schedule",
	})

	overridesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "careshift_overrides_active",
		Help: "Number of manual overrides currently applied to the working state",
	})

	// Ingest metrics
	ingestBundlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careshift_ingest_bundles_total",
		Help: "Total number of ingested bundles by source and outcome",
	}, []string{"source", "outcome"}) // source=watcher|kafka|api outcome=success|invalid|error

	ingestOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careshift_ingest_orders_total",
		Help: "Total number of single order events consumed by outcome",
	}, []string{"outcome"}) // outcome=applied|rejected|error

	// Replan worker metrics
	replansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careshift_replans_total",
		Help: "Total number of automatic replans by outcome",
	}, []string{"outcome"}) // outcome=success|failure|skipped

	planExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careshift_plan_exports_total",
		Help: "Total number of plan file exports by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	// Cache metrics
	planCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careshift_plan_cache_total",
		Help: "Plan cache lookups by outcome",
	}, []string{"outcome"}) // outcome=hit|miss

	// Operational metrics
	configValidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "careshift_config_validation_errors_total",
		Help: "Total number of configuration validation errors",
	})

	storeRevision = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "careshift_store_revision",
		Help: "Current revision of the working clinical state",
	})
)

func IncScheduleGenerated(trigger string) {
	schedulesGeneratedTotal.WithLabelValues(trigger).Inc()
}

func ObserveScheduleDuration(seconds float64) { scheduleDurationSeconds.Observe(seconds) }

func RecordScheduleOutcome(scored, placed, deferred int) {
	ordersScoredTotal.Add(float64(scored))
	tasksPlaced.Set(float64(placed))
	tasksDeferred.Set(float64(deferred))
}

func RecordOverridesActive(n int) { overridesActive.Set(float64(n)) }

func IncIngestBundle(source, outcome string) {
	if source == "" {
		source = "unknown"
	}
	ingestBundlesTotal.WithLabelValues(source, outcome).Inc()
}

func IncIngestOrder(outcome string) { ingestOrdersTotal.WithLabelValues(outcome).Inc() }

func IncReplan(outcome string) { replansTotal.WithLabelValues(outcome).Inc() }

func IncPlanExport(outcome string) { planExportsTotal.WithLabelValues(outcome).Inc() }

func IncPlanCacheHit()  { planCacheTotal.WithLabelValues("hit").Inc() }
func IncPlanCacheMiss() { planCacheTotal.WithLabelValues("miss").Inc() }

func IncConfigValidationError() { configValidationErrors.Inc() }

func RecordStoreRevision(rev uint64) { storeRevision.Set(float64(rev)) }
