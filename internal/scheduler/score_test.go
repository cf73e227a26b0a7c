// SPDX-License-Identifier: MIT

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careshift/careshift/internal/clinical"
)

func TestUrgency_Bands(t *testing.T) {
	tests := []struct {
		name    string
		minutes float64
		want    float64
	}{
		{"due now", 0, 3.0},
		{"30m overdue", -30, 4.0},
		{"wildly overdue is capped", -10000, 5.0},
		{"due in 2h", 120, 1.5},
		{"far future hits floor", 600, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, urgency(tt.minutes), 1e-9)
		})
	}
}

func TestBreakdownRounding_HalfToEven(t *testing.T) {
	tests := []struct {
		name  string
		round func(float64) float64
		in    float64
		want  float64
	}{
		{"one decimal, tie rounds down to even", round1, 0.25, 0.2},
		{"one decimal, tie rounds up to even", round1, 0.75, 0.8},
		{"one decimal, negative tie", round1, -0.25, -0.2},
		{"two decimals, tie rounds down to even", round2, 0.125, 0.12},
		{"two decimals, tie rounds up to even", round2, 0.375, 0.38},
		{"two decimals, non-tie", round2, 1.234, 1.23},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.round(tt.in), 1e-9)
		})
	}
}

func TestScoreOrders_AcuityAmplifies(t *testing.T) {
	now := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	patients := map[string]clinical.Patient{
		"crit": {ID: "crit", DisplayName: "Patient A", Acuity: clinical.AcuityCritical},
		"low":  {ID: "low", DisplayName: "Patient B", Acuity: clinical.AcuityLow},
	}
	due := now.Add(60 * time.Minute)
	orders := []clinical.Order{
		{ID: "o-low", PatientID: "low", Type: clinical.OrderMedication, DueAt: due},
		{ID: "o-crit", PatientID: "crit", Type: clinical.OrderMedication, DueAt: due},
	}

	scored := DefaultWeights().ScoreOrders(now, patients, orders)
	require.Len(t, scored, 2)
	assert.Equal(t, "o-crit", scored[0].Order.ID)
	assert.Greater(t, scored[0].Score, scored[1].Score)
}

func TestScoreOrders_STATBreaksTies(t *testing.T) {
	now := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	patients := map[string]clinical.Patient{
		"p": {ID: "p", DisplayName: "Patient A", Acuity: clinical.AcuityMedium},
	}
	due := now.Add(90 * time.Minute)
	orders := []clinical.Order{
		{ID: "routine", PatientID: "p", Type: clinical.OrderLab, DueAt: due},
		{ID: "stat", PatientID: "p", Type: clinical.OrderLab, DueAt: due, IsSTAT: true},
	}

	scored := DefaultWeights().ScoreOrders(now, patients, orders)
	require.Len(t, scored, 2)
	assert.Equal(t, "stat", scored[0].Order.ID)
	assert.InDelta(t, 1.5, scored[0].Score-scored[1].Score, 1e-9)
}

func TestScoreOrders_PRNPenalty(t *testing.T) {
	now := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	patients := map[string]clinical.Patient{
		"p": {ID: "p", DisplayName: "Patient A", Acuity: clinical.AcuityMedium},
	}
	due := now.Add(90 * time.Minute)
	orders := []clinical.Order{
		{ID: "prn", PatientID: "p", Type: clinical.OrderMedication, DueAt: due, IsPRN: true},
		{ID: "scheduled", PatientID: "p", Type: clinical.OrderMedication, DueAt: due},
	}

	scored := DefaultWeights().ScoreOrders(now, patients, orders)
	require.Len(t, scored, 2)
	assert.Equal(t, "scheduled", scored[0].Order.ID)
	assert.True(t, scored[1].Breakdown.IsPRN)
}

func TestScoreOrders_SkipsUnknownPatient(t *testing.T) {
	now := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	patients := map[string]clinical.Patient{
		"p": {ID: "p", DisplayName: "Patient A", Acuity: clinical.AcuityLow},
	}
	orders := []clinical.Order{
		{ID: "known", PatientID: "p", Type: clinical.OrderLab, DueAt: now},
		{ID: "orphan", PatientID: "ghost", Type: clinical.OrderLab, DueAt: now},
	}

	scored := DefaultWeights().ScoreOrders(now, patients, orders)
	require.Len(t, scored, 1)
	assert.Equal(t, "known", scored[0].Order.ID)
}

func TestScoreOrders_TieBreakByDueTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	patients := map[string]clinical.Patient{
		"p": {ID: "p", DisplayName: "Patient A", Acuity: clinical.AcuityLow},
	}
	// Same score inputs except due time far enough out to hit the urgency floor,
	// where both orders score identically.
	orders := []clinical.Order{
		{ID: "later", PatientID: "p", Type: clinical.OrderLab, DueAt: now.Add(11 * time.Hour)},
		{ID: "sooner", PatientID: "p", Type: clinical.OrderLab, DueAt: now.Add(10 * time.Hour)},
	}

	scored := DefaultWeights().ScoreOrders(now, patients, orders)
	require.Len(t, scored, 2)
	assert.Equal(t, "sooner", scored[0].Order.ID)
}

func TestScoreOrders_SummaryFormat(t *testing.T) {
	now := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	patients := map[string]clinical.Patient{
		"p1": {ID: "p1", DisplayName: "Patient A", Acuity: clinical.AcuityCritical},
	}
	orders := []clinical.Order{
		{ID: "o1", PatientID: "p1", Type: clinical.OrderProcedure, DueAt: now.Add(84 * time.Minute), IsSTAT: true},
	}

	scored := DefaultWeights().ScoreOrders(now, patients, orders)
	require.Len(t, scored, 1)
	assert.Equal(t, "procedure for Patient A (acuity: critical, due in ~84m, STAT)", scored[0].Summary)
}
