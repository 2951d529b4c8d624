package main

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/config"
	"github.com/vmunix/arrdash/internal/dashboard"
)

func TestStatus_RendersDashboard(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	good := backend.Snapshot{
		Kind: backend.KindSeries, FetchedAt: now.Add(-10 * time.Minute), Reachable: true,
		Payload: backend.SeriesStats{TotalSeries: 42, MissingEpisodes: 3},
	}
	down := backend.Snapshot{
		Kind: backend.KindSeries, FetchedAt: now.Add(-5 * time.Second),
		ErrorDetail: "backend unreachable: connection refused",
	}
	torrents := backend.Snapshot{
		Kind: backend.KindTorrent, FetchedAt: now.Add(-5 * time.Second), Reachable: true,
		Version: "4.0.5", Latency: 12 * time.Millisecond,
		Payload: backend.TorrentStats{ActiveTorrents: []backend.Torrent{
			{ID: "abc", Name: "Ubuntu ISO", ProgressFraction: 0.5, DownloadRate: 2 << 20, ETA: 90 * time.Second},
		}},
	}

	view := dashboard.View{
		GeneratedAt: now,
		Interval:    30 * time.Second,
		Services: []dashboard.ServiceView{
			{Kind: backend.KindSeries, Label: "Sonarr", Stale: true, Current: &down, LastGood: &good},
			{Kind: backend.KindMovie, Label: "Radarr", Pending: true},
			{Kind: backend.KindTorrent, Label: "Transmission", Current: &torrents, LastGood: &torrents},
		},
	}

	srv := newMockServer(t).ExpectGET().ExpectPath("/api/v1/dashboard").RespondJSON(view).Build()

	out, err := runCLI(t, srv, "status")
	require.NoError(t, err)

	assert.Contains(t, out, "DOWN*")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "42 series, 3 missing episodes")
	assert.Contains(t, out, "PENDING")
	assert.Contains(t, out, "1 active, down 2.0 MB/s")
	assert.Contains(t, out, "Ubuntu ISO")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "stale")
}

func TestStatus_NoServices(t *testing.T) {
	srv := newMockServer(t).RespondJSON(dashboard.View{Services: []dashboard.ServiceView{}}).Build()

	out, err := runCLI(t, srv, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No services enabled.")
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		kind    backend.Kind
		payload backend.Payload
		want    string
	}{
		{"movies", backend.KindMovie, backend.MovieStats{TotalMovies: 10, MissingOrUndownloaded: 2}, "10 movies, 2 missing"},
		{"indexers", backend.KindIndexer, backend.IndexerStats{Indexers: []backend.IndexerHealth{
			{Name: "a", Healthy: true}, {Name: "b", LastError: "timeout"},
		}}, "1/2 indexers healthy (failing: b)"},
		{"idle torrents", backend.KindTorrent, backend.TorrentStats{}, "0 active, down -, up -"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, summarize(tt.kind, raw))
		})
	}
}

func TestItems(t *testing.T) {
	srv := newMockServer(t).
		ExpectGET().
		ExpectPath("/api/v1/services/radarr/items").
		RespondJSON(ItemsResponse{Kind: backend.KindMovie, Total: 2, Items: []backend.Item{
			{ID: "1", Title: "Alien", Year: 1979, Status: "released", Monitored: true, HasFile: true},
			{ID: "2", Title: "Aliens", Year: 1986, Status: "released", Monitored: false},
		}}).
		Build()

	out, err := runCLI(t, srv, "items", "movies")
	require.NoError(t, err)
	assert.Contains(t, out, "Alien")
	assert.Contains(t, out, "on disk")
	assert.Contains(t, out, "missing (unmonitored)")
	assert.Contains(t, out, "2 item(s)")
}

func TestItems_UnknownKind(t *testing.T) {
	srv := newMockServer(t).Build()

	_, err := runCLI(t, srv, "items", "plex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service kind")
}

func TestAdd_SendsSpec(t *testing.T) {
	srv := newMockServer(t).
		ExpectPOST().
		ExpectPath("/api/v1/services/radarr/items").
		Handler(func(w http.ResponseWriter, r *http.Request) {
			var spec backend.ItemSpec
			require.NoError(t, json.NewDecoder(r.Body).Decode(&spec))
			assert.Equal(t, backend.ItemSpec{
				Title:            "Alien",
				TMDBID:           348,
				RootFolder:       "/movies",
				QualityProfileID: 4,
				Monitored:        true,
				SearchNow:        true,
			}, spec)

			w.WriteHeader(http.StatusCreated)
			respondJSON(t, w, backend.Item{ID: "12", Title: "Alien"})
		}).
		Build()

	out, err := runCLI(t, srv, "add", "radarr", "--title", "Alien", "--tmdb", "348", "--root", "/movies", "--profile", "4", "--search")
	require.NoError(t, err)
	assert.Contains(t, out, "Added Alien (id 12) to Radarr")
}

func TestAdd_RejectedShowsVendorBody(t *testing.T) {
	srv := newMockServer(t).
		RespondAPIError(http.StatusBadGateway, map[string]any{
			"error":         "backend rejected request: HTTP 400",
			"code":          "BACKEND_REJECTED",
			"vendor_status": 400,
			"vendor_body":   "This movie has already been added",
		}).
		Build()

	_, err := runCLI(t, srv, "add", "radarr", "--title", "Alien", "--tmdb", "348", "--root", "/movies", "--profile", "4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add to radarr")
	assert.Contains(t, err.Error(), "vendor responded 400: This movie has already been added")
}

func TestRm_DeleteFiles(t *testing.T) {
	srv := newMockServer(t).
		ExpectDELETE().
		ExpectPath("/api/v1/services/transmission/items/abc").
		ExpectQuery("delete_files", "true").
		RespondStatus(http.StatusNoContent).
		Build()

	out, err := runCLI(t, srv, "rm", "torrents", "abc", "--delete-files")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed abc from Transmission (files deleted)")
}

func TestRm_KeepsFilesByDefault(t *testing.T) {
	srv := newMockServer(t).
		ExpectDELETE().
		ExpectQuery("delete_files", "").
		RespondStatus(http.StatusNoContent).
		Build()

	out, err := runCLI(t, srv, "rm", "sonarr", "5")
	require.NoError(t, err)
	assert.NotContains(t, out, "files deleted")
}

func TestStartStop(t *testing.T) {
	srv := newMockServer(t).
		ExpectPOST().
		ExpectPath("/api/v1/services/transmission/items/abc/start").
		RespondStatus(http.StatusNoContent).
		Build()

	out, err := runCLI(t, srv, "start", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "Started torrent abc")
}

func TestSearch(t *testing.T) {
	srv := newMockServer(t).
		ExpectGET().
		ExpectPath("/api/v1/search").
		ExpectQuery("term", "the matrix").
		RespondJSON(SearchResponse{
			Term: "the matrix",
			Results: []backend.LookupResult{
				{Kind: backend.KindMovie, Title: "The Matrix", Year: 1999, TMDBID: 603, Score: 1, Added: true},
				{Kind: backend.KindMovie, Title: "The Matrix Reloaded", Year: 2003, TMDBID: 604, Score: 0.9},
			},
			Errors: map[string]string{"sonarr": "backend unreachable"},
		}).
		Build()

	out, err := runCLI(t, srv, "search", "the", "matrix")
	require.NoError(t, err)
	assert.Contains(t, out, "tmdb:603")
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "[added]")
	assert.Contains(t, out, "sonarr: backend unreachable")
}

func TestCalendar(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	srv := newMockServer(t).
		ExpectGET().
		ExpectPath("/api/v1/calendar").
		ExpectQuery("days", "30").
		RespondJSON(CalendarResponse{
			Start: start,
			End:   start.AddDate(0, 0, 30),
			Entries: []backend.CalendarEntry{
				{Kind: backend.KindSeries, Title: "Severance", Episode: "S02E05 Trojan's Horse", Date: start.Add(36 * time.Hour), Monitored: true},
				{Kind: backend.KindMovie, Title: "Dune: Part Two", Date: start.Add(72 * time.Hour), HasFile: true, Monitored: true},
			},
			Errors: map[string]string{"radarr": "backend unreachable"},
		}).
		Build()

	out, err := runCLI(t, srv, "calendar", "--days", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "S02E05 Trojan's Horse")
	assert.Contains(t, out, "Dune: Part Two")
	assert.Contains(t, out, "[downloaded]")
	assert.Contains(t, out, "radarr: backend unreachable")
}

func TestCalendar_Empty(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	srv := newMockServer(t).
		ExpectPath("/api/v1/calendar").
		ExpectQuery("days", "").
		RespondJSON(CalendarResponse{Start: start, End: start.AddDate(0, 0, 7), Entries: []backend.CalendarEntry{}}).
		Build()

	out, err := runCLI(t, srv, "calendar")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing scheduled")
}

func TestDiskSpace(t *testing.T) {
	srv := newMockServer(t).
		ExpectGET().
		ExpectPath("/api/v1/diskspace").
		RespondJSON(DiskSpaceResponse{
			Disks: map[string][]backend.Disk{
				"sonarr": {{Path: "/tv", FreeSpace: 250 << 30, TotalSpace: 1000 << 30}},
				"radarr": {{Path: "/movies", FreeSpace: 0, TotalSpace: 0}},
			},
		}).
		Build()

	out, err := runCLI(t, srv, "diskspace")
	require.NoError(t, err)
	assert.Contains(t, out, "/tv")
	assert.Contains(t, out, "250.0 GB")
	assert.Contains(t, out, "75%")
	assert.Contains(t, out, "/movies")
	assert.NotContains(t, out, "Some services failed")
}

func TestDiskSpace_NotConfigured(t *testing.T) {
	srv := newMockServer(t).
		ExpectPath("/api/v1/diskspace").
		RespondAPIError(http.StatusNotFound, map[string]any{"error": "no service supports disk space", "code": "NOT_CONFIGURED"}).
		Build()

	_, err := runCLI(t, srv, "diskspace")
	require.Error(t, err)
}

func TestAudit_Filters(t *testing.T) {
	srv := newMockServer(t).
		ExpectGET().
		ExpectPath("/api/v1/audit").
		ExpectQuery("kind", "transmission").
		ExpectQuery("outcome", "success").
		ExpectQuery("limit", "5").
		RespondJSON(AuditResponse{Total: 0, Limit: 5}).
		Build()

	out, err := runCLI(t, srv, "audit", "--kind", "torrent", "--outcome", "success", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "No audit entries.")
}

func TestConfigSet_KeepsMaskedSecret(t *testing.T) {
	current := ConfigResponse{Services: config.ServicesConfig{
		Radarr: &config.ServiceConfig{Enabled: true, URL: "http://old:7878", APIKey: "********"},
	}}

	srv := newMockServer(t).Handler(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			respondJSON(t, w, current)
			return
		}
		assert.Equal(t, http.MethodPut, r.Method)
		var req struct {
			Services map[string]config.ServiceConfig `json:"services"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got := req.Services["radarr"]
		assert.Equal(t, "http://nas:7878", got.URL)
		assert.Equal(t, "********", got.APIKey)
		assert.True(t, got.Enabled)

		respondJSON(t, w, current)
	}).Build()

	out, err := runCLI(t, srv, "config", "set", "radarr", "--url", "http://nas:7878")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated Radarr")
}

func TestConfigSet_Disable(t *testing.T) {
	srv := newMockServer(t).Handler(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			respondJSON(t, w, ConfigResponse{Services: config.ServicesConfig{
				Transmission: &config.ServiceConfig{Enabled: true, URL: "http://nas:9091"},
			}})
			return
		}
		var req struct {
			Services map[string]config.ServiceConfig `json:"services"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Services["transmission"].Enabled)
		assert.Equal(t, "http://nas:9091", req.Services["transmission"].URL)
		respondJSON(t, w, ConfigResponse{})
	}).Build()

	_, err := runCLI(t, srv, "config", "set", "transmission", "--disable")
	require.NoError(t, err)
}

func TestConfigInitAndTest(t *testing.T) {
	srv := newMockServer(t).Build()
	path := filepath.Join(t.TempDir(), "arrdash", "config.toml")

	out, err := runCLI(t, srv, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = runCLI(t, srv, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigTest_Invalid(t *testing.T) {
	srv := newMockServer(t).Build()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[services.radarr]
enabled = true
url = "http://nas:7878"
api_key = "${ARRDASH_TEST_UNSET_KEY}"
`), 0600))

	out, err := runCLI(t, srv, "config", "test", path)
	require.Error(t, err)
	assert.Contains(t, out, "ARRDASH_TEST_UNSET_KEY")
}
