package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultBody = `{
	"valor_inicial": 1000, "valor_final": 1200, "lucro_total": 200,
	"total_trades": 3, "vencedoras": 2, "perdedoras": 1,
	"win_rate": 66.7, "sharpe_ratio": 1.1,
	"dados_grafico": {"steps": [0, 1], "patrimonio": [1000, 1200]}
}`

func newProvider(t *testing.T, url string) *Provider {
	t.Helper()
	p, err := New(Config{URL: url, MaxRetryElapsed: 2 * time.Second}, nil)
	require.NoError(t, err)
	return p
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestAvailable(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL+"/")
	assert.NoError(t, p.Available(context.Background()))

	healthy = false
	var se *StatusError
	require.True(t, errors.As(p.Available(context.Background()), &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
}

func TestRun_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/backtest", r.URL.Path)

		var req runRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/models/model_ep30.keras", req.ModelPath)

		w.Write([]byte(resultBody))
	}))
	defer srv.Close()

	rec, err := newProvider(t, srv.URL).Run(context.Background(), "/models/model_ep30.keras")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1200.0, rec.FinalValue)
	assert.Equal(t, 2, rec.Wins)
}

func TestRun_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(resultBody))
	}))
	defer srv.Close()

	rec, err := newProvider(t, srv.URL).Run(context.Background(), "m.keras")
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRun_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": "model incompatible"}`))
	}))
	defer srv.Close()

	_, err := newProvider(t, srv.URL).Run(context.Background(), "m.keras")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model incompatible")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRun_EmptyResults(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status int
		body   string
	}{
		{"no content", http.StatusNoContent, ""},
		{"null body", http.StatusOK, "null"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			rec, err := newProvider(t, srv.URL).Run(context.Background(), "m.keras")
			assert.NoError(t, err)
			assert.Nil(t, rec)
		})
	}
}

func TestRun_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	}))
	defer srv.Close()

	_, err := newProvider(t, srv.URL).Run(context.Background(), "m.keras")
	assert.Error(t, err)
}

func TestRun_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newProvider(t, srv.URL).Run(ctx, "m.keras")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
