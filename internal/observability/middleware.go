package observability

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// HTTPMetrics returns middleware for the host admin endpoints (/metrics,
// /health, /debug/pending). It records duration, total requests and error
// responses (status >= 400), tagged with method, path and status. A nil
// metrics returns handlers unchanged.
//
//	mux := observability.HTTPMetrics(metrics)(adminMux)
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			attrs := otelmetric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("path", r.URL.Path),
				attribute.String("status", strconv.Itoa(rec.status)),
			)
			ctx := r.Context()
			metrics.HTTPRequestDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
			metrics.HTTPRequestTotal.Add(ctx, 1, attrs)
			if rec.status >= http.StatusBadRequest {
				metrics.HTTPRequestErrors.Add(ctx, 1, attrs)
			}
		})
	}
}
