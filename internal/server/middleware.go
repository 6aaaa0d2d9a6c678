package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	applog "platecost/internal/log"
	"platecost/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// withRequestContext tags the request context with a request id, reusing a
// well-formed inbound X-Request-ID.
func withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(applog.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// instrument logs every request and records its latency under the mux
// pattern that served it.
func instrument(mux *http.ServeMux, recorder *metrics.Recorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		_, route := mux.Handler(r)
		if route == "" {
			route = "unmatched"
		}
		recorder.ObserveRequest(route, r.Method, rec.status, elapsed)
		applog.Info(r.Context(), "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", rec.status,
			"duration", elapsed.String(),
		)
	})
}
