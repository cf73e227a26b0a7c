// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/careshift/careshift/internal/clinical"
)

// Memory is the in-process Store. It is the default backend for dev and demo
// runs; state resets with the process.
type Memory struct {
	mu        sync.RWMutex
	shift     *clinical.Shift
	patients  []clinical.Patient
	orders    []clinical.Order
	overrides []clinical.Override
	revision  uint64
	updatedAt time.Time

	*notifier
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{notifier: newNotifier()}
}

func (m *Memory) Snapshot(_ context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Patients:  append([]clinical.Patient(nil), m.patients...),
		Orders:    append([]clinical.Order(nil), m.orders...),
		Overrides: append([]clinical.Override(nil), m.overrides...),
		Revision:  m.revision,
		UpdatedAt: m.updatedAt,
	}
	if m.shift != nil {
		shift := *m.shift
		snap.Shift = &shift
	}
	return snap, nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	m.shift = nil
	m.patients = nil
	m.orders = nil
	m.overrides = nil
	m.touch()
	m.mu.Unlock()

	m.notify()
	return nil
}

func (m *Memory) SetShift(_ context.Context, shift clinical.Shift) error {
	m.mu.Lock()
	m.shift = &shift
	m.touch()
	m.mu.Unlock()

	m.notify()
	return nil
}

func (m *Memory) ReplacePatients(_ context.Context, patients []clinical.Patient) (int, error) {
	m.mu.Lock()
	m.patients = append([]clinical.Patient(nil), patients...)

	keep := make(map[string]struct{}, len(patients))
	for _, p := range patients {
		keep[p.ID] = struct{}{}
	}

	pruned := 0
	orders := m.orders[:0]
	kept := make(map[string]struct{}, len(m.orders))
	for _, o := range m.orders {
		if _, ok := keep[o.PatientID]; ok {
			orders = append(orders, o)
			kept[o.ID] = struct{}{}
			continue
		}
		pruned++
	}
	m.orders = orders

	overrides := m.overrides[:0]
	for _, ov := range m.overrides {
		if _, ok := kept[ov.OrderID]; ok {
			overrides = append(overrides, ov)
		}
	}
	m.overrides = overrides

	m.touch()
	m.mu.Unlock()

	m.notify()
	return pruned, nil
}

func (m *Memory) AddOrder(_ context.Context, order clinical.Order) error {
	m.mu.Lock()

	known := false
	for _, p := range m.patients {
		if p.ID == order.PatientID {
			known = true
			break
		}
	}
	if !known {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownPatient, order.PatientID)
	}
	for _, o := range m.orders {
		if o.ID == order.ID {
			m.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrOrderExists, order.ID)
		}
	}

	m.orders = append(m.orders, order)
	m.touch()
	m.mu.Unlock()

	m.notify()
	return nil
}

func (m *Memory) DeleteOrder(_ context.Context, orderID string) error {
	m.mu.Lock()

	idx := -1
	for i, o := range m.orders {
		if o.ID == orderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrOrderNotFound, orderID)
	}
	m.orders = append(m.orders[:idx], m.orders[idx+1:]...)

	overrides := m.overrides[:0]
	for _, ov := range m.overrides {
		if ov.OrderID != orderID {
			overrides = append(overrides, ov)
		}
	}
	m.overrides = overrides

	m.touch()
	m.mu.Unlock()

	m.notify()
	return nil
}

func (m *Memory) SetOverride(_ context.Context, ov clinical.Override) error {
	m.mu.Lock()

	known := false
	for _, o := range m.orders {
		if o.ID == ov.OrderID {
			known = true
			break
		}
	}
	if !known {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrOrderNotFound, ov.OrderID)
	}

	replaced := false
	for i := range m.overrides {
		if m.overrides[i].OrderID == ov.OrderID {
			m.overrides[i] = ov
			replaced = true
			break
		}
	}
	if !replaced {
		m.overrides = append(m.overrides, ov)
	}

	m.touch()
	m.mu.Unlock()

	m.notify()
	return nil
}

func (m *Memory) DeleteOverride(_ context.Context, orderID string) error {
	m.mu.Lock()

	idx := -1
	for i, ov := range m.overrides {
		if ov.OrderID == orderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrOverrideNotFound, orderID)
	}
	m.overrides = append(m.overrides[:idx], m.overrides[idx+1:]...)

	m.touch()
	m.mu.Unlock()

	m.notify()
	return nil
}

func (m *Memory) LoadBundle(_ context.Context, bundle clinical.ScheduleRequest) error {
	m.mu.Lock()
	shift := bundle.Shift
	m.shift = &shift
	m.patients = append([]clinical.Patient(nil), bundle.Patients...)
	m.orders = append([]clinical.Order(nil), bundle.Orders...)
	m.overrides = append([]clinical.Override(nil), bundle.Overrides...)
	m.touch()
	m.mu.Unlock()

	m.notify()
	return nil
}

func (m *Memory) Close() error { return nil }

// touch must be called with the write lock held.
func (m *Memory) touch() {
	m.revision++
	m.updatedAt = time.Now().UTC()
}
