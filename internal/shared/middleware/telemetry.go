package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Telemetry wraps an http.Handler with otelhttp instrumentation. Span names
// go through routeLabel so every /api/connections/{id} request shares one
// name.
func Telemetry(next http.Handler) http.Handler {
	return otelhttp.NewMiddleware("banksync-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + routeLabel(r.URL.Path)
		}),
	)(next)
}
