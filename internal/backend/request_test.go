package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_DecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"4.0.1"}`))
	}))
	defer server.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	var out struct {
		Version string `json:"version"`
	}
	require.NoError(t, Do(NewHTTPClient(time.Second), req, &out))
	assert.Equal(t, "4.0.1", out.Version)
}

func TestDo_RejectedCarriesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	err = Do(NewHTTPClient(time.Second), req, nil)
	require.ErrorIs(t, err, ErrBackendRejected)

	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusUnauthorized, rej.Status)
	assert.Contains(t, rej.Body, "Unauthorized")
}

func TestDo_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	err = Do(NewHTTPClient(time.Second), req, nil)
	assert.ErrorIs(t, err, ErrBackendUnreachable)
}

func TestDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	err = Do(NewHTTPClient(50*time.Millisecond), req, nil)
	assert.ErrorIs(t, err, ErrBackendUnreachable)
}

func TestSnapshotConstructors(t *testing.T) {
	now := time.Now()

	ok := Succeeded(KindSeries, now, Health{Reachable: true, Latency: time.Millisecond, Version: "4"}, SeriesStats{TotalSeries: 2})
	assert.True(t, ok.Reachable)
	assert.Empty(t, ok.ErrorDetail)
	assert.Equal(t, SeriesStats{TotalSeries: 2}, ok.Payload)

	bad := Failed(KindSeries, now, 0, ErrBackendUnreachable)
	assert.False(t, bad.Reachable)
	assert.Nil(t, bad.Payload)
	assert.Equal(t, "backend unreachable", bad.ErrorDetail)

	assert.Equal(t, "unknown error", Failed(KindMovie, now, 0, nil).ErrorDetail)
}

func TestDo_TimeoutWhileReadingBody(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"title":"a"},`))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	var out []map[string]any
	err = Do(NewHTTPClient(100*time.Millisecond), req, &out)
	assert.ErrorIs(t, err, ErrBackendUnreachable)
	assert.NotErrorIs(t, err, ErrBackendRejected)
}

func TestDo_MalformedBodyIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login</html>`))
	}))
	defer server.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	var out struct{}
	err = Do(NewHTTPClient(time.Second), req, &out)
	require.ErrorIs(t, err, ErrBackendRejected)

	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusOK, rej.Status)
	assert.Contains(t, rej.Body, "malformed response")
}
