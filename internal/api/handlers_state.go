// SPDX-License-Identifier: MIT
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/careshift/careshift/internal/clinical"
	"github.com/careshift/careshift/internal/ingest"
	"github.com/careshift/careshift/internal/log"
	"github.com/careshift/careshift/internal/metrics"
)

// stateResponse is the wire shape of the working state. Kept explicit so the
// endpoint doubles as a debug dashboard.
type stateResponse struct {
	Shift     *clinical.Shift     `json:"shift"`
	Patients  []clinical.Patient  `json:"patients"`
	Orders    []clinical.Order    `json:"orders"`
	Overrides []clinical.Override `json:"overrides"`
	Revision  uint64              `json:"revision"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// handleGetState returns the current working state. If something looks
// wrong, check here first.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	resp := stateResponse{
		Shift:     snap.Shift,
		Patients:  snap.Patients,
		Orders:    snap.Orders,
		Overrides: snap.Overrides,
		Revision:  snap.Revision,
		UpdatedAt: snap.UpdatedAt,
	}
	if resp.Patients == nil {
		resp.Patients = []clinical.Patient{}
	}
	if resp.Orders == nil {
		resp.Orders = []clinical.Order{}
	}
	if resp.Overrides == nil {
		resp.Overrides = []clinical.Override{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleResetState clears the working state for demos and dev work.
func (s *Server) handleResetState(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reset(r.Context()); err != nil {
		writeStoreError(w, err, "")
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str("event", "state.reset").
		Msg("working state reset")
	w.WriteHeader(http.StatusNoContent)
}

// handleSetShift sets the shift window.
func (s *Server) handleSetShift(w http.ResponseWriter, r *http.Request) {
	var shift clinical.Shift
	if err := json.NewDecoder(r.Body).Decode(&shift); err != nil {
		writeBadRequest(w, err)
		return
	}
	if !shift.EndAt.After(shift.StartAt) {
		writeUnprocessable(w, "Invalid shift window: end_at must be after start_at.")
		return
	}
	if err := s.store.SetShift(r.Context(), shift); err != nil {
		writeStoreError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

// handleSetPatients replaces the patient assignment. Orders referencing
// removed patients are pruned so the state stays consistent.
func (s *Server) handleSetPatients(w http.ResponseWriter, r *http.Request) {
	var patients []clinical.Patient
	if err := json.NewDecoder(r.Body).Decode(&patients); err != nil {
		writeBadRequest(w, err)
		return
	}

	seen := make(map[string]struct{}, len(patients))
	for i := range patients {
		if err := patients[i].Validate(); err != nil {
			writeUnprocessable(w, err.Error())
			return
		}
		if _, dup := seen[patients[i].ID]; dup {
			writeUnprocessable(w, "Patient IDs must be unique.")
			return
		}
		seen[patients[i].ID] = struct{}{}
	}

	pruned, err := s.store.ReplacePatients(r.Context(), patients)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if pruned > 0 {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Info().
			Str("event", "state.orders_pruned").
			Int("count", pruned).
			Msg("pruned orders for removed patients")
	}
	writeJSON(w, http.StatusOK, patients)
}

// handleAddOrder adds a single order, simulating "new order placed" during
// the shift.
func (s *Server) handleAddOrder(w http.ResponseWriter, r *http.Request) {
	var order clinical.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		writeBadRequest(w, err)
		return
	}
	order.Description = ingest.CleanText(order.Description)
	if err := order.Validate(); err != nil {
		writeUnprocessable(w, err.Error())
		return
	}
	if err := s.store.AddOrder(r.Context(), order); err != nil {
		writeStoreError(w, err, idForOrderError(err, order))
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// handleDeleteOrder removes an order, simulating a discontinued or completed
// order.
func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if err := s.store.DeleteOrder(r.Context(), orderID); err != nil {
		writeStoreError(w, err, orderID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetOverride pins an order to a fixed start time. The scheduler
// places pinned tasks first and fills around them.
func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var override clinical.Override
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
		writeBadRequest(w, err)
		return
	}
	if override.OrderID == "" {
		writeUnprocessable(w, "order_id must not be empty.")
		return
	}
	if override.StartsAt.IsZero() {
		writeUnprocessable(w, "starts_at must be set.")
		return
	}
	if err := s.store.SetOverride(r.Context(), override); err != nil {
		writeStoreError(w, err, override.OrderID)
		return
	}
	s.recordOverrideCount(r)
	writeJSON(w, http.StatusOK, override)
}

// handleDeleteOverride removes a pin, returning the order to score-based
// placement.
func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if err := s.store.DeleteOverride(r.Context(), orderID); err != nil {
		writeStoreError(w, err, orderID)
		return
	}
	s.recordOverrideCount(r)
	w.WriteHeader(http.StatusNoContent)
}

// handleLoadBundle atomically replaces the whole state with an uploaded
// bundle.
func (s *Server) handleLoadBundle(w http.ResponseWriter, r *http.Request) {
	bundle, err := ingest.ParseBundle(r.Body)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.loader.Apply(r.Context(), bundle, "api"); err != nil {
		writeUnprocessable(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordOverrideCount(r *http.Request) {
	if snap, err := s.store.Snapshot(r.Context()); err == nil {
		metrics.RecordOverridesActive(len(snap.Overrides))
	}
}

// idForOrderError picks the identifier the error message should reference:
// the patient for unknown-patient rejections, the order otherwise.
func idForOrderError(err error, order clinical.Order) string {
	if isUnknownPatient(err) {
		return order.PatientID
	}
	return order.ID
}
