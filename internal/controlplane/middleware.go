package controlplane

import (
	"net/http"
	"time"

	"github.com/kenelite/go-solo/internal/observability"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument counts every request and logs it at debug level.
func Instrument(next http.Handler, metrics *observability.Metrics, logger *observability.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.IncRequests(r.Method)
		if rec.status >= http.StatusBadRequest {
			metrics.IncFailures(r.Method)
		}
		if logger != nil {
			logger.Debugw("admin request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
	})
}
