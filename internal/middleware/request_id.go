// SPDX-License-Identifier: MIT
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/careshift/careshift/internal/log"
)

// HeaderRequestID is the header used to propagate request correlation IDs.
const HeaderRequestID = "X-Request-ID"

// RequestID adds a unique ID to every request, honoring an ID supplied by
// the caller.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, reqID)
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
