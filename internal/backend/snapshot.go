package backend

import "time"

// Payload is the kind-specific part of a Snapshot.
type Payload interface {
	PayloadKind() Kind
}

// SeriesStats is the Sonarr payload.
type SeriesStats struct {
	TotalSeries     int `json:"total_series"`
	MissingEpisodes int `json:"missing_episodes"`
}

func (SeriesStats) PayloadKind() Kind { return KindSeries }

// MovieStats is the Radarr payload.
type MovieStats struct {
	TotalMovies           int `json:"total_movies"`
	MissingOrUndownloaded int `json:"missing_or_undownloaded"`
}

func (MovieStats) PayloadKind() Kind { return KindMovie }

// IndexerHealth is the state of one indexer behind the indexer service.
type IndexerHealth struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	LastError string `json:"last_error,omitempty"`
}

// IndexerStats is the indexer payload.
type IndexerStats struct {
	Indexers []IndexerHealth `json:"indexers"`
}

func (IndexerStats) PayloadKind() Kind { return KindIndexer }

// Torrent is one active torrent.
type Torrent struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	ProgressFraction float64       `json:"progress_fraction"`
	DownloadRate     int64         `json:"download_rate"`
	UploadRate       int64         `json:"upload_rate"`
	ETA              time.Duration `json:"eta"`
}

// TorrentStats is the Transmission payload.
type TorrentStats struct {
	ActiveTorrents []Torrent `json:"active_torrents"`
}

func (TorrentStats) PayloadKind() Kind { return KindTorrent }

// Snapshot is the normalized result of one poll cycle.
// A snapshot is immutable once stored; a new cycle produces a new value.
// Reachable=false implies Payload is nil and ErrorDetail is set.
type Snapshot struct {
	Kind        Kind          `json:"kind"`
	FetchedAt   time.Time     `json:"fetched_at"`
	Reachable   bool          `json:"reachable"`
	Latency     time.Duration `json:"latency"`
	Version     string        `json:"version,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	Payload     Payload       `json:"payload,omitempty"`
}

// Succeeded builds a reachable snapshot.
func Succeeded(kind Kind, at time.Time, h Health, p Payload) Snapshot {
	return Snapshot{
		Kind:      kind,
		FetchedAt: at,
		Reachable: true,
		Latency:   h.Latency,
		Version:   h.Version,
		Payload:   p,
	}
}

// Failed builds an unreachable snapshot carrying err as its detail.
func Failed(kind Kind, at time.Time, latency time.Duration, err error) Snapshot {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return Snapshot{
		Kind:        kind,
		FetchedAt:   at,
		Latency:     latency,
		ErrorDetail: detail,
	}
}
