// SPDX-License-Identifier: MIT
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Tracing creates a middleware that adds OpenTelemetry tracing to HTTP
// requests. Span names use the chi route pattern so cardinality stays
// bounded; query strings never reach the span.
func Tracing(serverName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serverName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				route := r.URL.Path
				if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
					if pattern := routeCtx.RoutePattern(); pattern != "" {
						route = pattern
					}
				}
				return r.Method + " " + route
			}),
		)
	}
}
