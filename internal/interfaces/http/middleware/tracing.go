package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request, named "METHOD /route/{pattern}"
// once chi has matched the route so span names stay low-cardinality.
// Unrouted requests keep the raw path.
func Tracing() func(http.Handler) http.Handler {
	spanName := func(_ string, r *http.Request) string {
		return r.Method + " " + routePattern(r)
	}
	return func(next http.Handler) http.Handler {
		// otelhttp only renames when the router sets r.Pattern, so the
		// route name is applied here as well.
		routed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			trace.SpanFromContext(r.Context()).SetName(spanName("", r))
		})
		return otelhttp.NewHandler(routed, "http.server", otelhttp.WithSpanNameFormatter(spanName))
	}
}
