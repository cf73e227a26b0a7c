// SPDX-License-Identifier: MIT
package api

import (
	"net/http"
	"time"
)

// systemStatus reports daemon identity and the shape of the working state.
type systemStatus struct {
	Service       string    `json:"service"`
	Version       string    `json:"version"`
	Environment   string    `json:"environment"`
	StoreBackend  string    `json:"store_backend"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Revision      uint64    `json:"revision"`
	Patients      int       `json:"patients"`
	Orders        int       `json:"orders"`
	Overrides     int       `json:"overrides"`
	ShiftSet      bool      `json:"shift_set"`
	Timestamp     time.Time `json:"timestamp"`
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, systemStatus{
		Service:       "careshift",
		Version:       s.cfg.Version,
		Environment:   s.cfg.Environment,
		StoreBackend:  s.cfg.StoreBackend,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Revision:      snap.Revision,
		Patients:      len(snap.Patients),
		Orders:        len(snap.Orders),
		Overrides:     len(snap.Overrides),
		ShiftSet:      snap.Shift != nil,
		Timestamp:     s.now().UTC(),
	})
}
