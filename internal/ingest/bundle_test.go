// SPDX-License-Identifier: MIT
package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careshift/careshift/internal/clinical"
	"github.com/careshift/careshift/internal/store"
)

const bundleJSON = `{
	"shift": {"start_at": "2026-08-26T07:00:00Z", "end_at": "2026-08-26T19:00:00Z"},
	"patients": [
		{"id": "p1", "display_name": "  Patient A ", "acuity": "critical"}
	],
	"orders": [
		{"id": "o1", "patient_id": "p1", "type": "medication", "description": "Morning meds", "due_at": "2026-08-26T08:00:00Z", "duration_minutes": 10, "is_prn": false, "is_stat": false}
	]
}`

func TestParseBundle(t *testing.T) {
	bundle, err := ParseBundle(strings.NewReader(bundleJSON))
	require.NoError(t, err)

	require.Len(t, bundle.Patients, 1)
	assert.Equal(t, "Patient A", bundle.Patients[0].DisplayName, "names are trimmed")
	assert.Equal(t, clinical.AcuityCritical, bundle.Patients[0].Acuity)
	require.Len(t, bundle.Orders, 1)
	assert.Equal(t, clinical.OrderMedication, bundle.Orders[0].Type)
}

func TestParseBundleRejectsUnknownFields(t *testing.T) {
	_, err := ParseBundle(strings.NewReader(`{"shift": {}, "patientz": []}`))
	require.Error(t, err)
}

func TestNormalizeNFC(t *testing.T) {
	// "é" as combining sequence should collapse to the precomposed form.
	bundle := clinical.ScheduleRequest{
		Patients: []clinical.Patient{{ID: "p1", DisplayName: "Zoé", Acuity: clinical.AcuityLow}},
	}
	Normalize(&bundle)
	assert.Equal(t, "Zoé", bundle.Patients[0].DisplayName)
}

func TestLoaderApply(t *testing.T) {
	s := store.NewMemory()
	t.Cleanup(func() { _ = s.Close() })
	loader := NewLoader(s)

	bundle, err := ParseBundle(strings.NewReader(bundleJSON))
	require.NoError(t, err)
	require.NoError(t, loader.Apply(context.Background(), bundle, "api"))

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Shift)
	assert.Len(t, snap.Patients, 1)
	assert.Len(t, snap.Orders, 1)
}

func TestLoaderApplyRejectsInvalidBundle(t *testing.T) {
	s := store.NewMemory()
	t.Cleanup(func() { _ = s.Close() })
	loader := NewLoader(s)

	// end before start
	bundle := clinical.ScheduleRequest{
		Shift: clinical.Shift{
			StartAt: time.Date(2026, 8, 26, 19, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2026, 8, 26, 7, 0, 0, 0, time.UTC),
		},
	}
	err := loader.Apply(context.Background(), bundle, "api")
	require.Error(t, err)

	snap, snapErr := s.Snapshot(context.Background())
	require.NoError(t, snapErr)
	assert.Nil(t, snap.Shift, "invalid bundle must not touch state")
}

func TestDemoPayloadIsValidAndFresh(t *testing.T) {
	now := time.Date(2026, 8, 26, 7, 0, 0, 0, time.UTC)
	payload := DemoPayload(now)

	require.NoError(t, payload.Validate())
	assert.Equal(t, now.Add(10*time.Minute), payload.Shift.StartAt)
	assert.Equal(t, 12*time.Hour, payload.Shift.EndAt.Sub(payload.Shift.StartAt))
	require.Len(t, payload.Orders, 2)
	assert.True(t, payload.Orders[1].IsSTAT)
}
