package metrics

import (
	"net/http"
	"time"
)

// unmatchedRoute labels requests no route pattern claimed, so probes of
// arbitrary paths cannot grow the label set.
const unmatchedRoute = "unmatched"

// statusRecorder wraps http.ResponseWriter to capture the status code and
// the body size.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	wrote  bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wrote {
		rw.status = code
		rw.wrote = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wrote = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// route returns the ServeMux pattern that served r. It is only set once
// the mux has dispatched, so call it after next.ServeHTTP.
func route(r *http.Request) string {
	if r.Pattern == "" {
		return unmatchedRoute
	}
	return r.Pattern
}

// HTTPMiddleware returns middleware that records HTTP metrics labelled by
// route pattern.
func HTTPMiddleware(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg.InFlightInc()
			defer reg.InFlightDec()

			start := time.Now()
			rw := newStatusRecorder(w)
			next.ServeHTTP(rw, r)

			reg.RecordRequest(r.Method, route(r), rw.status, time.Since(start).Seconds())
		})
	}
}
