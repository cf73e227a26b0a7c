// SPDX-License-Identifier: MIT
package ingest

import (
	"time"

	"github.com/careshift/careshift/internal/clinical"
)

// DemoPayload returns a sample bundle that works immediately against the
// schedule endpoint. Timestamps are generated relative to now so the payload
// never goes stale: the shift starts ten minutes out and runs twelve hours,
// and both orders fall inside it. All data is simulated; no real patient
// information is involved.
func DemoPayload(now time.Time) clinical.ScheduleRequest {
	shiftStart := now.UTC().Add(10 * time.Minute)
	shiftEnd := shiftStart.Add(12 * time.Hour)

	patients := []clinical.Patient{
		{ID: "p1", DisplayName: "Patient A", Acuity: clinical.AcuityCritical},
		{ID: "p2", DisplayName: "Patient B", Acuity: clinical.AcuityLow},
	}

	// Two orders where one should clearly win: the critical STAT procedure
	// outranks the routine medication even though it is due later.
	orders := []clinical.Order{
		{
			ID:              "o1",
			PatientID:       "p2",
			Type:            clinical.OrderMedication,
			Description:     "Routine med (demo)",
			DueAt:           shiftStart.Add(45 * time.Minute),
			DurationMinutes: 10,
		},
		{
			ID:              "o2",
			PatientID:       "p1",
			Type:            clinical.OrderProcedure,
			Description:     "Critical stat procedure (demo)",
			DueAt:           shiftStart.Add(90 * time.Minute),
			DurationMinutes: 20,
			IsSTAT:          true,
		},
	}

	return clinical.ScheduleRequest{
		Shift:    clinical.Shift{StartAt: shiftStart, EndAt: shiftEnd},
		Patients: patients,
		Orders:   orders,
	}
}
