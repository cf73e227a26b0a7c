// SPDX-License-Identifier: MIT

// Package clinical defines the simulated clinical domain model: patients,
// orders, shifts and the schedule request/response shapes. All data handled
// by this service is simulated; nothing here touches a real EHR.
package clinical

import (
	"time"
)

// AcuityLevel is the clinical severity rating of a patient. Higher acuity
// amplifies the priority of every order for that patient.
type AcuityLevel string

const (
	AcuityLow      AcuityLevel = "low"
	AcuityMedium   AcuityLevel = "medium"
	AcuityHigh     AcuityLevel = "high"
	AcuityCritical AcuityLevel = "critical"
)

// Valid reports whether the acuity level is one of the known values.
func (a AcuityLevel) Valid() bool {
	switch a {
	case AcuityLow, AcuityMedium, AcuityHigh, AcuityCritical:
		return true
	}
	return false
}

// OrderType classifies an order. Meds and procedures are typically more time
// sensitive than labs and assessments.
type OrderType string

const (
	OrderMedication OrderType = "medication"
	OrderProcedure  OrderType = "procedure"
	OrderLab        OrderType = "lab"
	OrderAssessment OrderType = "assessment"
)

// Valid reports whether the order type is one of the known values.
func (t OrderType) Valid() bool {
	switch t {
	case OrderMedication, OrderProcedure, OrderLab, OrderAssessment:
		return true
	}
	return false
}

// Duration bounds for a single order, in minutes.
const (
	MinDurationMinutes     = 1
	MaxDurationMinutes     = 240
	DefaultDurationMinutes = 10
)

// Patient is a simulated patient on the nurse's assignment.
type Patient struct {
	ID          string      `json:"id" yaml:"id"`
	DisplayName string      `json:"display_name" yaml:"display_name"`
	Acuity      AcuityLevel `json:"acuity" yaml:"acuity"`
}

// Order is a single actionable item (med, lab, procedure, assessment) with a
// due time. STAT orders float to the top; PRN orders are conditional and get
// a small penalty so they are neither buried nor dominant.
type Order struct {
	ID              string    `json:"id" yaml:"id"`
	PatientID       string    `json:"patient_id" yaml:"patient_id"`
	Type            OrderType `json:"type" yaml:"type"`
	Description     string    `json:"description" yaml:"description"`
	DueAt           time.Time `json:"due_at" yaml:"due_at"`
	DurationMinutes int       `json:"duration_minutes" yaml:"duration_minutes"`
	IsPRN           bool      `json:"is_prn" yaml:"is_prn"`
	IsSTAT          bool      `json:"is_stat" yaml:"is_stat"`
}

// Duration returns the order's working duration, applying the default when
// the field was omitted.
func (o Order) Duration() time.Duration {
	m := o.DurationMinutes
	if m == 0 {
		m = DefaultDurationMinutes
	}
	return time.Duration(m) * time.Minute
}

// Shift is the scheduling window.
type Shift struct {
	StartAt time.Time `json:"start_at" yaml:"start_at"`
	EndAt   time.Time `json:"end_at" yaml:"end_at"`
}

// Override pins an order to a fixed start time. Pins survive replans so a
// nurse's manual adjustment is not silently undone by an order change.
type Override struct {
	OrderID  string    `json:"order_id"`
	StartsAt time.Time `json:"starts_at"`
}

// ScheduleRequest is the full input for one scheduling run. It doubles as the
// ingest bundle format for simulated EHR data.
type ScheduleRequest struct {
	Shift     Shift      `json:"shift" yaml:"shift"`
	Patients  []Patient  `json:"patients" yaml:"patients"`
	Orders    []Order    `json:"orders" yaml:"orders"`
	Overrides []Override `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// ScoreBreakdown keeps the scoring decision explainable and debuggable.
type ScoreBreakdown struct {
	Acuity       AcuityLevel `json:"acuity"`
	OrderType    OrderType   `json:"order_type"`
	DueInMinutes float64     `json:"due_in_minutes"`
	Urgency      float64     `json:"urgency"`
	IsSTAT       bool        `json:"is_stat"`
	IsPRN        bool        `json:"is_prn"`
}

// ScheduledTask is one placed task on the shift timeline.
type ScheduledTask struct {
	OrderID            string         `json:"order_id"`
	PatientID          string         `json:"patient_id"`
	PatientDisplayName string         `json:"patient_display_name"`
	StartsAt           time.Time      `json:"starts_at"`
	EndsAt             time.Time      `json:"ends_at"`
	Pinned             bool           `json:"pinned,omitempty"`
	PriorityScore      float64        `json:"priority_score"`
	Summary            string         `json:"summary"`
	ScoreBreakdown     ScoreBreakdown `json:"score_breakdown"`
}

// ScheduleResponse is the generated plan plus any notes explaining what could
// not be placed.
type ScheduleResponse struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Revision    uint64          `json:"revision,omitempty"`
	Tasks       []ScheduledTask `json:"tasks"`
	Notes       []string        `json:"notes"`
}
