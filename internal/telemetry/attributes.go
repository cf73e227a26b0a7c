// SPDX-License-Identifier: MIT
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// Scheduling attributes
	ScheduleRevisionKey = "schedule.revision"
	ScheduleTasksKey    = "schedule.tasks"
	ScheduleNotesKey    = "schedule.notes"
	ScheduleTriggerKey  = "schedule.trigger"

	// Ingest attributes
	IngestSourceKey   = "ingest.source"
	IngestPatientsKey = "ingest.patients"
	IngestOrdersKey   = "ingest.orders"

	// Job attributes
	JobTypeKey     = "job.type"
	JobStatusKey   = "job.status"
	JobDurationKey = "job.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// ScheduleAttributes creates scheduling span attributes.
func ScheduleAttributes(trigger string, revision uint64, tasks, notes int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ScheduleTriggerKey, trigger),
		attribute.Int64(ScheduleRevisionKey, int64(revision)),
		attribute.Int(ScheduleTasksKey, tasks),
		attribute.Int(ScheduleNotesKey, notes),
	}
}

// IngestAttributes creates ingest span attributes.
func IngestAttributes(source string, patients, orders int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(IngestSourceKey, source),
		attribute.Int(IngestPatientsKey, patients),
		attribute.Int(IngestOrdersKey, orders),
	}
}

// JobAttributes creates job span attributes.
func JobAttributes(jobType, status string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobTypeKey, jobType),
		attribute.String(JobStatusKey, status),
		attribute.Int64(JobDurationKey, durationMS),
	}
}

// ErrorAttributes creates error span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
