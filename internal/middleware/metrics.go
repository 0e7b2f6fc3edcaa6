package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/waitroomxyz/api/internal/metrics"
)

// Metrics records request counts, durations, and in-flight gauges. Paths are
// recorded as route templates so path parameters do not explode cardinality.
func Metrics(m *metrics.Metrics, service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			m.IncrementInFlight()
			defer m.DecrementInFlight()

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}
			m.RecordHTTPRequest(service, r.Method, path, strconv.Itoa(rec.status), time.Since(start))
		})
	}
}
