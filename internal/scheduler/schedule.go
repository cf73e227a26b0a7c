// SPDX-License-Identifier: MIT

package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/careshift/careshift/internal/clinical"
)

// Timeline notes. These surface in responses, so the exact wording is part of
// the API surface.
const (
	noteInvalidWindow = "Invalid shift window: end_at must be after start_at."
	noteWindowElapsed = "Shift window has already ended relative to current time."
	noteShiftFull     = "Shift is full. Remaining tasks could not be scheduled."
	noteTaskOverflow  = "A task would exceed shift end. Stopping schedule generation."
)

// Scheduler generates shift plans with a fixed weight set. The clock is
// injectable for tests.
type Scheduler struct {
	weights Weights
	now     func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler with the given weights.
func New(weights Weights, opts ...Option) *Scheduler {
	s := &Scheduler{
		weights: weights,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pin is an accepted override occupying a fixed interval on the timeline.
type pin struct {
	start, end time.Time
	scored     ScoredOrder
}

// Generate produces a prioritized plan for a single shift.
//
// Strategy: score everything, accept manual pins first, then fill the
// remaining orders into the gaps in priority order, starting at
// max(shift_start, now) so nothing is scheduled in the past. Placement is
// sequential by duration; this is a prioritized plan, not a strict timed
// calendar, and the nurse can still adjust.
func (s *Scheduler) Generate(req clinical.ScheduleRequest) clinical.ScheduleResponse {
	now := s.now()
	resp := clinical.ScheduleResponse{
		GeneratedAt: now,
		Tasks:       []clinical.ScheduledTask{},
		Notes:       []string{},
	}

	shiftStart := req.Shift.StartAt
	shiftEnd := req.Shift.EndAt

	if !shiftEnd.After(shiftStart) {
		resp.Notes = append(resp.Notes, noteInvalidWindow)
		return resp
	}

	cursor := shiftStart
	if now.After(shiftStart) {
		cursor = now
	}
	if !cursor.Before(shiftEnd) {
		resp.Notes = append(resp.Notes, noteWindowElapsed)
		return resp
	}

	patientsByID := clinical.PatientsByID(req.Patients)
	scored := s.weights.ScoreOrders(now, patientsByID, req.Orders)

	pins, unpinned, pinNotes := acceptPins(scored, req.Overrides, cursor, shiftEnd)
	resp.Notes = append(resp.Notes, pinNotes...)

	for _, p := range pins {
		resp.Tasks = append(resp.Tasks, makeTask(p.scored, p.start, p.end, true))
	}

	for _, item := range unpinned {
		if !cursor.Before(shiftEnd) {
			resp.Notes = append(resp.Notes, noteShiftFull)
			break
		}

		start, end := placeAround(pins, cursor, item.Order.Duration())
		if end.After(shiftEnd) {
			resp.Notes = append(resp.Notes, noteTaskOverflow)
			break
		}

		resp.Tasks = append(resp.Tasks, makeTask(item, start, end, false))
		cursor = end
	}

	sort.SliceStable(resp.Tasks, func(i, j int) bool {
		return resp.Tasks[i].StartsAt.Before(resp.Tasks[j].StartsAt)
	})
	return resp
}

// acceptPins validates overrides against the scored orders and the shift
// window. A pin that references an unknown order, lands outside the window or
// overlaps an earlier pin is rejected with a note; its order then schedules
// normally. Accepted pins are returned sorted by start time.
func acceptPins(scored []ScoredOrder, overrides []clinical.Override, cursor, shiftEnd time.Time) ([]pin, []ScoredOrder, []string) {
	if len(overrides) == 0 {
		return nil, scored, nil
	}

	byOrder := make(map[string]ScoredOrder, len(scored))
	for _, item := range scored {
		byOrder[item.Order.ID] = item
	}

	sorted := make([]clinical.Override, len(overrides))
	copy(sorted, overrides)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartsAt.Before(sorted[j].StartsAt) })

	var (
		pins   []pin
		notes  []string
		pinned = make(map[string]struct{}, len(sorted))
	)
	for _, ov := range sorted {
		item, ok := byOrder[ov.OrderID]
		if !ok {
			notes = append(notes, fmt.Sprintf("Override for unknown order %q ignored.", ov.OrderID))
			continue
		}
		start := ov.StartsAt
		end := start.Add(item.Order.Duration())
		if start.Before(cursor) || end.After(shiftEnd) {
			notes = append(notes, fmt.Sprintf("Override for order %q falls outside the shift window. Scheduling normally.", ov.OrderID))
			continue
		}
		if len(pins) > 0 && start.Before(pins[len(pins)-1].end) {
			notes = append(notes, fmt.Sprintf("Override for order %q overlaps another override. Scheduling normally.", ov.OrderID))
			continue
		}
		pins = append(pins, pin{start: start, end: end, scored: item})
		pinned[ov.OrderID] = struct{}{}
	}

	unpinned := make([]ScoredOrder, 0, len(scored))
	for _, item := range scored {
		if _, ok := pinned[item.Order.ID]; ok {
			continue
		}
		unpinned = append(unpinned, item)
	}
	return pins, unpinned, notes
}

// placeAround finds the earliest interval of the given duration at or after
// start that does not overlap a pinned interval. Pins are sorted, so one
// forward pass suffices.
func placeAround(pins []pin, start time.Time, d time.Duration) (time.Time, time.Time) {
	end := start.Add(d)
	for _, p := range pins {
		if start.Before(p.end) && end.After(p.start) {
			start = p.end
			end = start.Add(d)
		}
	}
	return start, end
}

func makeTask(item ScoredOrder, start, end time.Time, pinned bool) clinical.ScheduledTask {
	return clinical.ScheduledTask{
		OrderID:            item.Order.ID,
		PatientID:          item.Order.PatientID,
		PatientDisplayName: item.Patient.DisplayName,
		StartsAt:           start,
		EndsAt:             end,
		Pinned:             pinned,
		PriorityScore:      item.Score,
		Summary:            item.Summary,
		ScoreBreakdown:     item.Breakdown,
	}
}
