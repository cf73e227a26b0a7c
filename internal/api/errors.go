// SPDX-License-Identifier: MIT
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/careshift/careshift/internal/store"
)

// errorResponse is the error body shape. "detail" keeps parity with what
// clients of the original prototype already parse.
type errorResponse struct {
	Detail string `json:"detail"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes an error body with an explicit status code.
func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, errorResponse{Detail: detail})
}

// writeUnprocessable writes a 422 validation error.
func writeUnprocessable(w http.ResponseWriter, detail string) {
	writeDetail(w, http.StatusUnprocessableEntity, detail)
}

// writeBadRequest writes a 400 for malformed request bodies.
func writeBadRequest(w http.ResponseWriter, err error) {
	writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v.", err))
}

// isUnknownPatient reports whether err is the unknown-patient rejection.
func isUnknownPatient(err error) bool {
	return errors.Is(err, store.ErrUnknownPatient)
}

// writeStoreError maps store sentinel errors onto HTTP status codes. id is
// interpolated into the detail message where the sentinel references an
// entity.
func writeStoreError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, store.ErrShiftNotSet):
		writeUnprocessable(w, "Shift not set. Use POST /state/shift first.")
	case errors.Is(err, store.ErrUnknownPatient):
		writeUnprocessable(w, fmt.Sprintf("Unknown patient_id '%s'. Add the patient first via POST /state/patients.", id))
	case errors.Is(err, store.ErrOrderExists):
		writeDetail(w, http.StatusConflict, fmt.Sprintf("Order with id '%s' already exists.", id))
	case errors.Is(err, store.ErrOrderNotFound):
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Order '%s' not found.", id))
	case errors.Is(err, store.ErrOverrideNotFound):
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Override for order '%s' not found.", id))
	default:
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
	}
}
