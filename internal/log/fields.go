// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldOrderID   = "order_id"
	FieldPatientID = "patient_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldRevision  = "revision"

	// Schedule fields
	FieldShiftStart = "shift_start"
	FieldShiftEnd   = "shift_end"
	FieldTasks      = "tasks"

	// Path fields
	FieldPath = "path"
)
