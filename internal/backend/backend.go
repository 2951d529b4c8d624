// Package backend defines the normalized model shared by every vendor client:
// service kinds, endpoints, snapshots, items and the capability interfaces.
package backend

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind identifies one of the four supported services.
type Kind string

const (
	KindSeries  Kind = "sonarr"
	KindMovie   Kind = "radarr"
	KindIndexer Kind = "indexer"
	KindTorrent Kind = "transmission"
)

// Kinds lists every kind in dashboard order.
var Kinds = []Kind{KindSeries, KindMovie, KindIndexer, KindTorrent}

// ParseKind converts a user supplied name to a Kind.
// Vendor names of alternative providers are accepted as aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sonarr", "series":
		return KindSeries, nil
	case "radarr", "movie", "movies":
		return KindMovie, nil
	case "indexer", "jackett", "prowlarr":
		return KindIndexer, nil
	case "transmission", "torrent", "torrents":
		return KindTorrent, nil
	default:
		return "", fmt.Errorf("unknown service kind %q", s)
	}
}

// Label returns a human readable name for the kind.
func (k Kind) Label() string {
	switch k {
	case KindSeries:
		return "Sonarr"
	case KindMovie:
		return "Radarr"
	case KindIndexer:
		return "Indexer"
	case KindTorrent:
		return "Transmission"
	default:
		return string(k)
	}
}

// Endpoint is the connection record for one service.
type Endpoint struct {
	Kind     Kind
	Provider string // indexer only: "jackett" (default) or "prowlarr"
	BaseURL  string
	APIKey   string
	Username string
	Password string
	Enabled  bool
	Timeout  time.Duration
}

// DefaultTimeout bounds every outbound call when an endpoint sets none.
const DefaultTimeout = 10 * time.Second

// CallTimeout returns the endpoint timeout or DefaultTimeout.
func (e Endpoint) CallTimeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

// Health is the result of a lightweight status call.
type Health struct {
	Reachable bool
	Latency   time.Duration
	Version   string
	Err       error
}

// Client is implemented by every vendor client.
type Client interface {
	Kind() Kind
	// CheckHealth never returns an error; failures are reported in Health.Err.
	CheckHealth(ctx context.Context) Health
	// FetchStats computes the kind-specific payload. Partial results are errors.
	FetchStats(ctx context.Context) (Payload, error)
}

// ItemLister lists the items a service manages.
type ItemLister interface {
	ListItems(ctx context.Context) ([]Item, error)
}

// ItemAdder adds an item to a service.
type ItemAdder interface {
	AddItem(ctx context.Context, spec ItemSpec) (*Item, error)
}

// ItemRemover removes an item from a service.
type ItemRemover interface {
	RemoveItem(ctx context.Context, id string, opts RemoveOptions) error
}

// Searcher looks up titles in the vendor's metadata source.
type Searcher interface {
	Lookup(ctx context.Context, term string) ([]LookupResult, error)
}

// ProfileLister exposes the options needed to build a valid ItemSpec.
type ProfileLister interface {
	RootFolders(ctx context.Context) ([]RootFolder, error)
	QualityProfiles(ctx context.Context) ([]QualityProfile, error)
}

// TorrentController pauses and resumes individual torrents.
type TorrentController interface {
	StartTorrent(ctx context.Context, id string) error
	StopTorrent(ctx context.Context, id string) error
}

// CalendarLister lists releases scheduled in [start, end).
type CalendarLister interface {
	Calendar(ctx context.Context, start, end time.Time) ([]CalendarEntry, error)
}

// DiskSpaceReporter reports the disks a service can see.
type DiskSpaceReporter interface {
	DiskSpace(ctx context.Context) ([]Disk, error)
}

// HostConfigurer reads and replaces a service's own host settings.
type HostConfigurer interface {
	HostConfig(ctx context.Context) (HostConfig, error)
	UpdateHostConfig(ctx context.Context, cfg HostConfig) (HostConfig, error)
}

// Item is a normalized library entry or torrent.
type Item struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Year         int           `json:"year,omitempty"`
	Status       string        `json:"status,omitempty"`
	Monitored    bool          `json:"monitored"`
	HasFile      bool          `json:"has_file"`
	Path         string        `json:"path,omitempty"`
	SizeBytes    int64         `json:"size_bytes,omitempty"`
	Progress     float64       `json:"progress,omitempty"` // 0-1
	DownloadRate int64         `json:"download_rate,omitempty"`
	UploadRate   int64         `json:"upload_rate,omitempty"`
	ETA          time.Duration `json:"eta,omitempty"`
}

// ItemSpec describes an item to add. Required fields depend on the kind.
type ItemSpec struct {
	Title            string `json:"title,omitempty"`
	Year             int    `json:"year,omitempty"`
	TVDBID           int64  `json:"tvdb_id,omitempty"`
	TMDBID           int64  `json:"tmdb_id,omitempty"`
	RootFolder       string `json:"root_folder,omitempty"`
	QualityProfileID int    `json:"quality_profile_id,omitempty"`
	Monitored        bool   `json:"monitored"`
	SearchNow        bool   `json:"search_now"`
	TorrentURL       string `json:"torrent_url,omitempty"`
	DownloadDir      string `json:"download_dir,omitempty"`
	Paused           bool   `json:"paused,omitempty"`
}

// RemoveOptions controls what RemoveItem deletes besides the record.
type RemoveOptions struct {
	DeleteFiles bool `json:"delete_files"`
}

// LookupResult is one candidate returned by a vendor lookup.
type LookupResult struct {
	Kind     Kind    `json:"kind"`
	Title    string  `json:"title"`
	Year     int     `json:"year,omitempty"`
	TVDBID   int64   `json:"tvdb_id,omitempty"`
	TMDBID   int64   `json:"tmdb_id,omitempty"`
	Overview string  `json:"overview,omitempty"`
	Added    bool    `json:"added"`
	Score    float64 `json:"score"`
}

// RootFolder is a library root configured in Sonarr or Radarr.
type RootFolder struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	FreeSpace int64  `json:"free_space"`
}

// QualityProfile is a quality profile configured in Sonarr or Radarr.
type QualityProfile struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CalendarEntry is one upcoming episode or movie release.
type CalendarEntry struct {
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Episode   string    `json:"episode,omitempty"` // e.g. "S02E05 The Wedding"
	Date      time.Time `json:"date"`
	HasFile   bool      `json:"has_file"`
	Monitored bool      `json:"monitored"`
}

// Disk is one volume reported by a service.
type Disk struct {
	Path       string `json:"path"`
	Label      string `json:"label,omitempty"`
	FreeSpace  int64  `json:"free_space"`
	TotalSpace int64  `json:"total_space"`
}

// HostConfig is a vendor's host settings document. Keys and values are the
// vendor's own.
type HostConfig map[string]any
