package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func postReq(t *testing.T, url string, body []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestDoJSONDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	e := New(zap.NewNop(), nil, srv.Client(), 2, "venue", nil)

	var out map[string]string
	err := e.DoJSON(context.Background(), postReq(t, srv.URL, []byte(`{}`)), "test", &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out["status"])
}

func TestDoJSONRetriesServerErrorsAndRewindsBody(t *testing.T) {
	var calls int
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer srv.Close()

	e := New(zap.NewNop(), nil, srv.Client(), 2, "venue", nil)

	var out map[string]bool
	err := e.DoJSON(context.Background(), postReq(t, srv.URL, []byte(`{"size":3}`)), "test", &out)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, out["success"])

	// Each retry re-sends the full body.
	for _, b := range bodies {
		assert.Equal(t, `{"size":3}`, b)
	}
}

func TestDoJSONExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	e := New(zap.NewNop(), nil, srv.Client(), 1, "venue", nil)

	err := e.DoJSON(context.Background(), postReq(t, srv.URL, nil), "test", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error: 502")
}

func TestDoJSONClientErrorIsNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errorMessage":"bad contract"}`))
	}))
	defer srv.Close()

	e := New(zap.NewNop(), nil, srv.Client(), 3, "venue", func(status int, body []byte) error {
		return fmt.Errorf("venue says %d: %s", status, body)
	})

	err := e.DoJSON(context.Background(), postReq(t, srv.URL, nil), "test", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "bad contract")
	assert.Equal(t, 1, calls)
}

func TestBackoffGrows(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, Backoff(0))
	assert.Equal(t, 250*time.Millisecond, Backoff(1))
	assert.Equal(t, 500*time.Millisecond, Backoff(2))
	assert.Equal(t, 500*time.Millisecond, Backoff(9))
}
