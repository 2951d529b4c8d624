package sonarr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	starrsonarr "golift.io/starr/sonarr"

	"github.com/vmunix/arrdash/internal/backend"
)

// writeJSON is a helper that writes a JSON response, failing the test on error.
func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("failed to encode JSON response: %v", err)
	}
}

func newClient(url string) *Client {
	return New(backend.Endpoint{
		Kind:    backend.KindSeries,
		BaseURL: url,
		APIKey:  "test-key",
		Enabled: true,
		Timeout: 2 * time.Second,
	}, nil)
}

func TestClient_CheckHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/system/status"), "path %s", r.URL.Path)
		writeJSON(t, w, map[string]any{"version": "4.0.2.1183"})
	}))
	defer server.Close()

	h := newClient(server.URL).CheckHealth(context.Background())
	require.NoError(t, h.Err)
	assert.True(t, h.Reachable)
	assert.Equal(t, "4.0.2.1183", h.Version)
}

func TestClient_CheckHealth_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	h := newClient(server.URL).CheckHealth(context.Background())
	assert.False(t, h.Reachable)
	assert.ErrorIs(t, h.Err, backend.ErrBackendUnreachable)
}

func TestClient_CheckHealth_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	h := newClient(server.URL).CheckHealth(context.Background())
	assert.False(t, h.Reachable)
	assert.ErrorIs(t, h.Err, backend.ErrBackendRejected)
}

func TestClient_FetchStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		switch r.URL.Path {
		case "/api/v3/series":
			writeJSON(t, w, []map[string]any{{"id": 1, "title": "Severance"}, {"id": 2, "title": "Andor"}})
		case "/api/v3/wanted/missing":
			assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
			writeJSON(t, w, map[string]any{"page": 1, "pageSize": 1, "totalRecords": 17})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	payload, err := newClient(server.URL).FetchStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, backend.SeriesStats{TotalSeries: 2, MissingEpisodes: 17}, payload)
}

func TestClient_FetchStats_PartialFailureFailsWhole(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/series":
			writeJSON(t, w, []map[string]any{{"id": 1, "title": "Severance"}})
		default:
			http.Error(w, `{"message":"database locked"}`, http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	payload, err := newClient(server.URL).FetchStats(context.Background())
	assert.Nil(t, payload)
	require.ErrorIs(t, err, backend.ErrBackendRejected)
	assert.Contains(t, err.Error(), "database locked")
}

func TestClient_ListItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{{
			"id": 7, "title": "Severance", "year": 2022, "status": "continuing", "monitored": true,
			"path":       "/tv/Severance",
			"statistics": map[string]any{"episodeFileCount": 9, "sizeOnDisk": 1024, "percentOfEpisodes": 50.0},
		}})
	}))
	defer server.Close()

	items, err := newClient(server.URL).ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "7", items[0].ID)
	assert.Equal(t, "Severance", items[0].Title)
	assert.Equal(t, 2022, items[0].Year)
	assert.True(t, items[0].HasFile)
	assert.InDelta(t, 0.5, items[0].Progress, 0.001)
	assert.EqualValues(t, 1024, items[0].SizeBytes)
}

func TestClient_AddItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/series", r.URL.Path)

		var body starrsonarr.AddSeriesInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(371980), body.TvdbID)
		assert.Equal(t, "/tv", body.RootFolderPath)
		assert.Equal(t, int64(4), body.QualityProfileID)
		assert.True(t, body.SeasonFolder)
		require.NotNil(t, body.AddOptions)
		assert.True(t, body.AddOptions.SearchForMissingEpisodes)

		w.WriteHeader(http.StatusCreated)
		writeJSON(t, w, map[string]any{"id": 12, "title": body.Title, "monitored": true})
	}))
	defer server.Close()

	item, err := newClient(server.URL).AddItem(context.Background(), backend.ItemSpec{
		Title:            "Severance",
		TVDBID:           371980,
		RootFolder:       "/tv",
		QualityProfileID: 4,
		Monitored:        true,
		SearchNow:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, "12", item.ID)
}

func TestClient_AddItem_InvalidSpecMakesNoCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	_, err := newClient(server.URL).AddItem(context.Background(), backend.ItemSpec{
		Title:  "Severance",
		TVDBID: 371980,
	})
	require.ErrorIs(t, err, backend.ErrInvalidSpec)
	assert.Contains(t, err.Error(), "root_folder")
	assert.Contains(t, err.Error(), "quality_profile_id")
	assert.Zero(t, calls.Load())
}

func TestClient_AddItem_RejectedBodyVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `[{"errorMessage":"This series has already been added"}]`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newClient(server.URL).AddItem(context.Background(), backend.ItemSpec{
		Title: "Severance", TVDBID: 1, RootFolder: "/tv", QualityProfileID: 1,
	})
	var rej *backend.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusBadRequest, rej.Status)
	assert.Contains(t, rej.Body, "This series has already been added")
}

func TestClient_RemoveItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v3/series/12", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("deleteFiles"))
		assert.Equal(t, "false", r.URL.Query().Get("addImportListExclusion"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := newClient(server.URL).RemoveItem(context.Background(), "12", backend.RemoveOptions{DeleteFiles: true})
	require.NoError(t, err)
}

func TestClient_RemoveItem_NonNumericID(t *testing.T) {
	err := newClient("http://127.0.0.1:1").RemoveItem(context.Background(), "abc", backend.RemoveOptions{})
	assert.ErrorIs(t, err, backend.ErrInvalidSpec)
}

func TestClient_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/series/lookup", r.URL.Path)
		assert.Equal(t, "sever", r.URL.Query().Get("term"))
		writeJSON(t, w, []map[string]any{
			{"title": "Severance", "year": 2022, "tvdbId": 371980},
			{"id": 3, "title": "Severed", "year": 2010, "tvdbId": 1},
		})
	}))
	defer server.Close()

	results, err := newClient(server.URL).Lookup(context.Background(), "sever")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, backend.KindSeries, results[0].Kind)
	assert.False(t, results[0].Added)
	assert.True(t, results[1].Added)
}

func TestClient_Profiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/rootFolder":
			writeJSON(t, w, []map[string]any{{"id": 1, "path": "/tv", "freeSpace": 500}})
		case "/api/v3/qualityProfile":
			writeJSON(t, w, []map[string]any{{"id": 4, "name": "HD-1080p"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := newClient(server.URL)
	folders, err := c.RootFolders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []backend.RootFolder{{ID: 1, Path: "/tv", FreeSpace: 500}}, folders)

	profiles, err := c.QualityProfiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []backend.QualityProfile{{ID: 4, Name: "HD-1080p"}}, profiles)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(backend.ItemSpec{Title: "x", TVDBID: 1, RootFolder: "/tv", QualityProfileID: 1}))
	assert.ErrorIs(t, Validate(backend.ItemSpec{}), backend.ErrInvalidSpec)
}

func TestClient_ListItems_TimeoutWhileReadingBody(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"title":"Severance"},`))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := New(backend.Endpoint{Kind: backend.KindSeries, BaseURL: server.URL, APIKey: "k", Timeout: 100 * time.Millisecond}, nil)
	_, err := c.ListItems(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrBackendUnreachable)
	assert.NotErrorIs(t, err, backend.ErrBackendRejected)
}

func TestClient_ListItems_MalformedBodyIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>login</html>"))
	}))
	defer server.Close()

	_, err := newClient(server.URL).ListItems(context.Background())
	var rej *backend.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Contains(t, rej.Body, "malformed response")
}

func TestClient_Calendar(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/calendar", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("includeSeries"))
		assert.NotEmpty(t, r.URL.Query().Get("start"))
		assert.NotEmpty(t, r.URL.Query().Get("end"))
		writeJSON(t, w, []map[string]any{{
			"seriesId": 7, "seasonNumber": 2, "episodeNumber": 5, "title": "The Wedding",
			"airDateUtc": "2026-03-03T02:00:00Z", "monitored": true,
			"series": map[string]any{"id": 7, "title": "Severance"},
		}})
	}))
	defer server.Close()

	entries, err := newClient(server.URL).Calendar(context.Background(), start, start.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, backend.CalendarEntry{
		Kind:      backend.KindSeries,
		Title:     "Severance",
		Episode:   "S02E05 The Wedding",
		Date:      time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC),
		Monitored: true,
	}, entries[0])
}

func TestClient_DiskSpace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/diskspace", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		writeJSON(t, w, []map[string]any{{"path": "/tv", "label": "media", "freeSpace": 100, "totalSpace": 400}})
	}))
	defer server.Close()

	disks, err := newClient(server.URL).DiskSpace(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []backend.Disk{{Path: "/tv", Label: "media", FreeSpace: 100, TotalSpace: 400}}, disks)
}

func TestClient_HostConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/config/host", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, map[string]any{"id": 1, "port": 8989, "urlBase": ""})
		case http.MethodPut:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "/sonarr", body["urlBase"])
			w.WriteHeader(http.StatusAccepted)
			writeJSON(t, w, body)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	c := newClient(server.URL)
	cfg, err := c.HostConfig(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 8989, cfg["port"])

	cfg["urlBase"] = "/sonarr"
	stored, err := c.UpdateHostConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "/sonarr", stored["urlBase"])
}
