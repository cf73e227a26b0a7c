// SPDX-License-Identifier: MIT

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careshift/careshift/internal/clinical"
)

func fixedClock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}

func demoRequest(now time.Time) clinical.ScheduleRequest {
	shiftStart := now.Add(10 * time.Minute)
	return clinical.ScheduleRequest{
		Shift: clinical.Shift{StartAt: shiftStart, EndAt: shiftStart.Add(12 * time.Hour)},
		Patients: []clinical.Patient{
			{ID: "p1", DisplayName: "Patient A", Acuity: clinical.AcuityCritical},
			{ID: "p2", DisplayName: "Patient B", Acuity: clinical.AcuityLow},
		},
		Orders: []clinical.Order{
			{ID: "o1", PatientID: "p2", Type: clinical.OrderMedication, Description: "Routine med",
				DueAt: shiftStart.Add(45 * time.Minute), DurationMinutes: 10},
			{ID: "o2", PatientID: "p1", Type: clinical.OrderProcedure, Description: "Critical stat procedure",
				DueAt: shiftStart.Add(90 * time.Minute), DurationMinutes: 20, IsSTAT: true},
		},
	}
}

func TestGenerate_PrioritizesCriticalSTAT(t *testing.T) {
	now := time.Date(2026, 3, 1, 6, 50, 0, 0, time.UTC)
	s := New(DefaultWeights(), fixedClock(now))

	req := demoRequest(now)
	resp := s.Generate(req)

	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, "o2", resp.Tasks[0].OrderID, "critical STAT procedure should be first")
	assert.Equal(t, "o1", resp.Tasks[1].OrderID)

	// Future shift: timeline starts at shift start, tasks placed back to back.
	assert.Equal(t, req.Shift.StartAt, resp.Tasks[0].StartsAt)
	assert.Equal(t, resp.Tasks[0].EndsAt, resp.Tasks[1].StartsAt)
	assert.Equal(t, 20*time.Minute, resp.Tasks[0].EndsAt.Sub(resp.Tasks[0].StartsAt))
	assert.Empty(t, resp.Notes)
}

func TestGenerate_LiveShiftStartsAtNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(DefaultWeights(), fixedClock(now))

	req := demoRequest(now)
	req.Shift.StartAt = now.Add(-4 * time.Hour) // shift already in progress
	resp := s.Generate(req)

	require.NotEmpty(t, resp.Tasks)
	assert.Equal(t, now, resp.Tasks[0].StartsAt, "never schedule into the past")
}

func TestGenerate_InvalidWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(DefaultWeights(), fixedClock(now))

	req := demoRequest(now)
	req.Shift.EndAt = req.Shift.StartAt
	resp := s.Generate(req)

	assert.Empty(t, resp.Tasks)
	require.Len(t, resp.Notes, 1)
	assert.Equal(t, "Invalid shift window: end_at must be after start_at.", resp.Notes[0])
}

func TestGenerate_ElapsedWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	s := New(DefaultWeights(), fixedClock(now))

	req := demoRequest(now)
	req.Shift.StartAt = now.Add(-13 * time.Hour)
	req.Shift.EndAt = now.Add(-1 * time.Hour)
	resp := s.Generate(req)

	assert.Empty(t, resp.Tasks)
	require.Len(t, resp.Notes, 1)
	assert.Equal(t, "Shift window has already ended relative to current time.", resp.Notes[0])
}

func TestGenerate_StopsWhenTaskWouldOverflow(t *testing.T) {
	now := time.Date(2026, 3, 1, 6, 50, 0, 0, time.UTC)
	s := New(DefaultWeights(), fixedClock(now))

	req := demoRequest(now)
	req.Shift.EndAt = req.Shift.StartAt.Add(25 * time.Minute) // room for the 20m procedure only
	resp := s.Generate(req)

	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "o2", resp.Tasks[0].OrderID)
	require.Len(t, resp.Notes, 1)
	assert.Equal(t, "A task would exceed shift end. Stopping schedule generation.", resp.Notes[0])
}

func TestGenerate_OverridePinsOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 6, 50, 0, 0, time.UTC)
	s := New(DefaultWeights(), fixedClock(now))

	req := demoRequest(now)
	pinAt := req.Shift.StartAt.Add(2 * time.Hour)
	req.Overrides = []clinical.Override{{OrderID: "o2", StartsAt: pinAt}}

	resp := s.Generate(req)
	require.Len(t, resp.Tasks, 2)

	// Pinned task keeps its manual slot even though it scores highest.
	var pinnedTask, other clinical.ScheduledTask
	for _, task := range resp.Tasks {
		if task.OrderID == "o2" {
			pinnedTask = task
		} else {
			other = task
		}
	}
	assert.True(t, pinnedTask.Pinned)
	assert.Equal(t, pinAt, pinnedTask.StartsAt)
	assert.Equal(t, req.Shift.StartAt, other.StartsAt)
	assert.False(t, other.Pinned)
}

func TestGenerate_FillSkipsPinnedInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 6, 50, 0, 0, time.UTC)
	s := New(DefaultWeights(), fixedClock(now))

	req := demoRequest(now)
	// Pin the procedure right at shift start; the med must be placed after it.
	req.Overrides = []clinical.Override{{OrderID: "o2", StartsAt: req.Shift.StartAt}}

	resp := s.Generate(req)
	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, "o2", resp.Tasks[0].OrderID)
	assert.Equal(t, "o1", resp.Tasks[1].OrderID)
	assert.False(t, resp.Tasks[1].StartsAt.Before(resp.Tasks[0].EndsAt))
}

func TestGenerate_OverrideOutsideWindowFallsBack(t *testing.T) {
	now := time.Date(2026, 3, 1, 6, 50, 0, 0, time.UTC)
	s := New(DefaultWeights(), fixedClock(now))

	req := demoRequest(now)
	req.Overrides = []clinical.Override{{OrderID: "o2", StartsAt: req.Shift.EndAt.Add(time.Hour)}}

	resp := s.Generate(req)
	require.Len(t, resp.Tasks, 2)
	for _, task := range resp.Tasks {
		assert.False(t, task.Pinned)
	}
	require.Len(t, resp.Notes, 1)
	assert.Contains(t, resp.Notes[0], `Override for order "o2"`)
}

func TestGenerate_OverrideUnknownOrderIgnored(t *testing.T) {
	now := time.Date(2026, 3, 1, 6, 50, 0, 0, time.UTC)
	s := New(DefaultWeights(), fixedClock(now))

	req := demoRequest(now)
	req.Overrides = []clinical.Override{{OrderID: "ghost", StartsAt: req.Shift.StartAt}}

	resp := s.Generate(req)
	require.Len(t, resp.Tasks, 2)
	require.Len(t, resp.Notes, 1)
	assert.Contains(t, resp.Notes[0], "unknown order")
}

func TestGenerate_TasksSortedByStart(t *testing.T) {
	now := time.Date(2026, 3, 1, 6, 50, 0, 0, time.UTC)
	s := New(DefaultWeights(), fixedClock(now))

	req := demoRequest(now)
	req.Overrides = []clinical.Override{{OrderID: "o1", StartsAt: req.Shift.StartAt.Add(6 * time.Hour)}}

	resp := s.Generate(req)
	for i := 1; i < len(resp.Tasks); i++ {
		assert.False(t, resp.Tasks[i].StartsAt.Before(resp.Tasks[i-1].StartsAt))
	}
}
