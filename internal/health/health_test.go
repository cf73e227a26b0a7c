// SPDX-License-Identifier: MIT
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careshift/careshift/internal/clinical"
	"github.com/careshift/careshift/internal/store"
)

type staticChecker struct {
	name   string
	result CheckResult
}

func (c staticChecker) Name() string                      { return c.name }
func (c staticChecker) Check(context.Context) CheckResult { return c.result }

func TestHealthAlways200(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{name: "broken", result: CheckResult{Status: StatusUnhealthy}})

	req := httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil)
	w := httptest.NewRecorder()
	m.ServeHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "test", resp.Version)
}

func TestReadyUnhealthyIs503(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{name: "broken", result: CheckResult{Status: StatusUnhealthy, Error: "down"}})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	m.ServeReady(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyDegradedStaysReady(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{name: "slow", result: CheckResult{Status: StatusDegraded}})

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestStoreChecker(t *testing.T) {
	s := store.NewMemory()
	t.Cleanup(func() { _ = s.Close() })
	c := NewStoreChecker(s)

	result := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, result.Status)

	require.NoError(t, s.SetShift(context.Background(), clinical.Shift{
		StartAt: time.Now(),
		EndAt:   time.Now().Add(8 * time.Hour),
	}))

	result = c.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
}

func TestDirChecker(t *testing.T) {
	c := NewDirChecker("ingest-dir", t.TempDir())
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	c = NewDirChecker("ingest-dir", "/does/not/exist")
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)

	c = NewDirChecker("ingest-dir", "")
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
}

func TestReplanCheckerEscalation(t *testing.T) {
	c := NewReplanChecker()
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	err := errors.New("generation failed")
	c.RecordFailure(err)
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	c.RecordFailure(err)
	c.RecordFailure(err)
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)

	c.RecordSuccess(time.Now())
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
}
