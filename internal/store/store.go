// SPDX-License-Identifier: MIT

// Package store holds the shift context: the shift window, patient
// assignment, orders and manual overrides a scheduling run works from.
// Implementations exist for memory, SQLite and Postgres; all of them enforce
// the same consistency rules so the API behaves identically regardless of
// backend.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/careshift/careshift/internal/clinical"
)

// Sentinel errors mapped to HTTP status codes by the API layer.
var (
	ErrShiftNotSet      = errors.New("shift not set")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderExists      = errors.New("order already exists")
	ErrUnknownPatient   = errors.New("unknown patient")
	ErrOverrideNotFound = errors.New("override not found")
)

// Snapshot is a point-in-time copy of the shift context. Revision increases
// monotonically with every mutation; the replan worker and schedule cache key
// off it.
type Snapshot struct {
	Shift     *clinical.Shift     `json:"shift"`
	Patients  []clinical.Patient  `json:"patients"`
	Orders    []clinical.Order    `json:"orders"`
	Overrides []clinical.Override `json:"overrides"`
	Revision  uint64              `json:"revision"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Request assembles the snapshot into a scheduler input. Returns
// ErrShiftNotSet when no shift window has been configured.
func (s Snapshot) Request() (clinical.ScheduleRequest, error) {
	if s.Shift == nil {
		return clinical.ScheduleRequest{}, ErrShiftNotSet
	}
	return clinical.ScheduleRequest{
		Shift:     *s.Shift,
		Patients:  s.Patients,
		Orders:    s.Orders,
		Overrides: s.Overrides,
	}, nil
}

// Store is the shift context storage contract.
//
// Consistency rules every implementation honors:
//   - ReplacePatients prunes orders (and their overrides) referencing
//     patients no longer on the assignment.
//   - AddOrder rejects unknown patients and duplicate order IDs.
//   - DeleteOrder removes the order's override with it.
//   - SetOverride requires the order to exist.
type Store interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Reset(ctx context.Context) error

	SetShift(ctx context.Context, shift clinical.Shift) error
	ReplacePatients(ctx context.Context, patients []clinical.Patient) (prunedOrders int, err error)
	AddOrder(ctx context.Context, order clinical.Order) error
	DeleteOrder(ctx context.Context, orderID string) error
	SetOverride(ctx context.Context, ov clinical.Override) error
	DeleteOverride(ctx context.Context, orderID string) error

	// LoadBundle atomically replaces the whole context with an ingested bundle.
	LoadBundle(ctx context.Context, bundle clinical.ScheduleRequest) error

	// Changes returns a channel that receives a signal after every mutation.
	// The channel is buffered and signals coalesce; consumers re-read the
	// snapshot rather than relying on one signal per change.
	Changes() <-chan struct{}

	Close() error
}

// notifier implements the coalescing change channel shared by all backends.
type notifier struct {
	ch chan struct{}
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{}, 1)}
}

func (n *notifier) notify() {
	select {
	case n.ch <- struct{}{}:
	default: // a signal is already pending
	}
}

func (n *notifier) Changes() <-chan struct{} { return n.ch }
