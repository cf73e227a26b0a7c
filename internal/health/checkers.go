// SPDX-License-Identifier: MIT
package health

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/careshift/careshift/internal/store"
)

// StoreChecker reports whether the clinical state store answers snapshots.
// A store without a configured shift is degraded, not unhealthy: the API can
// still accept state mutations.
type StoreChecker struct {
	store store.Store
}

func NewStoreChecker(s store.Store) *StoreChecker {
	return &StoreChecker{store: s}
}

func (c *StoreChecker) Name() string { return "store" }

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if snap.Shift == nil {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "no shift configured",
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("revision %d, %d patients, %d orders", snap.Revision, len(snap.Patients), len(snap.Orders)),
	}
}

// DirChecker verifies that a configured directory exists and is a directory.
// An empty path reports healthy so optional features stay silent.
type DirChecker struct {
	name string
	path string
}

func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(_ context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{Status: StatusUnhealthy, Error: "directory not found", Message: c.path}
		}
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory, got file", Message: c.path}
	}
	return CheckResult{Status: StatusHealthy, Message: "directory exists"}
}

// ReplanChecker tracks the outcome of the background replan worker. It is
// healthy until the first failure and recovers on the next success.
type ReplanChecker struct {
	mu       sync.Mutex
	lastOK   time.Time
	lastErr  error
	failures int
}

func NewReplanChecker() *ReplanChecker {
	return &ReplanChecker{}
}

func (c *ReplanChecker) Name() string { return "replan" }

// RecordSuccess notes a completed replan.
func (c *ReplanChecker) RecordSuccess(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastOK = at
	c.lastErr = nil
	c.failures = 0
}

// RecordFailure notes a failed replan.
func (c *ReplanChecker) RecordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	c.failures++
}

func (c *ReplanChecker) Check(_ context.Context) CheckResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastErr != nil {
		status := StatusDegraded
		if c.failures >= 3 {
			status = StatusUnhealthy
		}
		return CheckResult{
			Status:  status,
			Error:   c.lastErr.Error(),
			Message: fmt.Sprintf("%d consecutive failures", c.failures),
		}
	}
	if c.lastOK.IsZero() {
		return CheckResult{Status: StatusHealthy, Message: "no replan yet"}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "last replan " + c.lastOK.UTC().Format(time.RFC3339),
	}
}
