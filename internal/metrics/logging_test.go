package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// serveLogged runs req through LoggingMiddleware and returns the single
// logged entry's fields.
func serveLogged(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	obs, logs := observer.New(zapcore.InfoLevel)
	w := httptest.NewRecorder()

	LoggingMiddleware(zap.New(obs))(h).ServeHTTP(w, req)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	return w, entries[0].ContextMap()
}

func TestLoggingMiddleware_Fields(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	req := httptest.NewRequest("GET", "/api/v1/results", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	_, fields := serveLogged(t, h, req)

	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/results", fields["path"])
	assert.Equal(t, unmatchedRoute, fields["route"])
	assert.EqualValues(t, 202, fields["status"])
	assert.Equal(t, "192.168.1.1:12345", fields["client_ip"])
	assert.Contains(t, fields, "duration_ms")
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	t.Run("generated", func(t *testing.T) {
		w, fields := serveLogged(t, h, httptest.NewRequest("GET", "/", nil))

		id := w.Header().Get(RequestIDHeader)
		assert.Len(t, id, 36)
		assert.Equal(t, id, fields["request_id"])
	})

	t.Run("reused", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/run", nil)
		req.Header.Set(RequestIDHeader, "abc-123")

		w, fields := serveLogged(t, h, req)

		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "abc-123", fields["request_id"])
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name string
		xff  string
		want string
	}{
		{name: "socket address", want: "10.0.0.1:54321"},
		{name: "single hop", xff: "203.0.113.50", want: "203.0.113.50"},
		{name: "first of many", xff: "203.0.113.50, 10.0.0.2", want: "203.0.113.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = "10.0.0.1:54321"
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

func TestLoggingMiddleware_LogsRouteAndBytes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/results/events", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})

	_, fields := serveLogged(t, mux, httptest.NewRequest("GET", "/api/v1/results/events?mode=sells", nil))

	assert.Equal(t, "GET /api/v1/results/events", fields["route"])
	assert.EqualValues(t, 11, fields["bytes"])
	assert.EqualValues(t, 200, fields["status"])
}
