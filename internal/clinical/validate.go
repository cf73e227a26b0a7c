// SPDX-License-Identifier: MIT

package clinical

import (
	"errors"
	"fmt"
)

// Validation sentinels so callers can map failures to HTTP status codes.
var (
	ErrInvalidShift   = errors.New("invalid shift window")
	ErrInvalidPatient = errors.New("invalid patient")
	ErrInvalidOrder   = errors.New("invalid order")
	ErrDuplicateID    = errors.New("duplicate id")
)

// Validate checks the shift window ordering.
func (s Shift) Validate() error {
	if s.StartAt.IsZero() || s.EndAt.IsZero() {
		return fmt.Errorf("%w: start_at and end_at are required", ErrInvalidShift)
	}
	if !s.EndAt.After(s.StartAt) {
		return fmt.Errorf("%w: end_at must be after start_at", ErrInvalidShift)
	}
	return nil
}

// Validate checks required patient fields.
func (p Patient) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPatient)
	}
	if p.DisplayName == "" {
		return fmt.Errorf("%w: display_name is required (patient %q)", ErrInvalidPatient, p.ID)
	}
	if !p.Acuity.Valid() {
		return fmt.Errorf("%w: unknown acuity %q (patient %q)", ErrInvalidPatient, p.Acuity, p.ID)
	}
	return nil
}

// Validate checks required order fields and duration bounds.
func (o Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidOrder)
	}
	if o.PatientID == "" {
		return fmt.Errorf("%w: patient_id is required (order %q)", ErrInvalidOrder, o.ID)
	}
	if !o.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q (order %q)", ErrInvalidOrder, o.Type, o.ID)
	}
	if o.DueAt.IsZero() {
		return fmt.Errorf("%w: due_at is required (order %q)", ErrInvalidOrder, o.ID)
	}
	if o.DurationMinutes != 0 && (o.DurationMinutes < MinDurationMinutes || o.DurationMinutes > MaxDurationMinutes) {
		return fmt.Errorf("%w: duration_minutes must be in [%d,%d] (order %q)",
			ErrInvalidOrder, MinDurationMinutes, MaxDurationMinutes, o.ID)
	}
	return nil
}

// Validate checks the whole request: shift window, every patient and order,
// ID uniqueness within each list. Orders referencing unknown patients are NOT
// rejected here; the scheduler skips them so one bad reference cannot take
// down a whole scheduling run.
func (r ScheduleRequest) Validate() error {
	if err := r.Shift.Validate(); err != nil {
		return err
	}

	patientIDs := make(map[string]struct{}, len(r.Patients))
	for _, p := range r.Patients {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := patientIDs[p.ID]; dup {
			return fmt.Errorf("%w: patient %q", ErrDuplicateID, p.ID)
		}
		patientIDs[p.ID] = struct{}{}
	}

	orderIDs := make(map[string]struct{}, len(r.Orders))
	for _, o := range r.Orders {
		if err := o.Validate(); err != nil {
			return err
		}
		if _, dup := orderIDs[o.ID]; dup {
			return fmt.Errorf("%w: order %q", ErrDuplicateID, o.ID)
		}
		orderIDs[o.ID] = struct{}{}
	}

	for _, ov := range r.Overrides {
		if ov.OrderID == "" || ov.StartsAt.IsZero() {
			return fmt.Errorf("%w: override requires order_id and starts_at", ErrInvalidOrder)
		}
	}
	return nil
}

// PatientsByID builds a lookup map for scheduling.
func PatientsByID(patients []Patient) map[string]Patient {
	m := make(map[string]Patient, len(patients))
	for _, p := range patients {
		m[p.ID] = p
	}
	return m
}
