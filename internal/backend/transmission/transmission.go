// Package transmission implements the torrent-client backend against the
// Transmission RPC interface.
package transmission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vmunix/arrdash/internal/backend"
)

// SessionHeader carries Transmission's CSRF token.
const SessionHeader = "X-Transmission-Session-Id"

// Torrent status codes.
const (
	StatusStopped      = 0
	StatusCheckWait    = 1
	StatusChecking     = 2
	StatusDownloadWait = 3
	StatusDownloading  = 4
	StatusSeedWait     = 5
	StatusSeeding      = 6
)

var torrentFields = []string{
	"hashString", "name", "status", "percentDone", "rateDownload",
	"rateUpload", "eta", "totalSize", "downloadDir", "isFinished",
}

// Client talks to one Transmission daemon.
type Client struct {
	rpcURL     string
	username   string
	password   string
	httpClient *http.Client
	log        *slog.Logger

	mu        sync.Mutex
	sessionID string
}

// New creates a Transmission client for the endpoint.
func New(ep backend.Endpoint, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		rpcURL:     strings.TrimSuffix(ep.BaseURL, "/") + "/transmission/rpc",
		username:   ep.Username,
		password:   ep.Password,
		httpClient: backend.NewHTTPClient(ep.CallTimeout()),
		log:        log.With("component", "transmission"),
	}
}

// Kind implements backend.Client.
func (c *Client) Kind() backend.Kind { return backend.KindTorrent }

type rpcRequest struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

type sessionInfo struct {
	Version string `json:"version"`
}

// CheckHealth calls session-get.
func (c *Client) CheckHealth(ctx context.Context) backend.Health {
	start := time.Now()
	var info sessionInfo
	err := c.call(ctx, "session-get", nil, &info)
	h := backend.Health{Latency: time.Since(start)}
	if err != nil {
		h.Err = err
		return h
	}
	h.Reachable = true
	h.Version = info.Version
	return h
}

type torrent struct {
	HashString   string  `json:"hashString"`
	Name         string  `json:"name"`
	Status       int     `json:"status"`
	PercentDone  float64 `json:"percentDone"`
	RateDownload int64   `json:"rateDownload"`
	RateUpload   int64   `json:"rateUpload"`
	ETA          int64   `json:"eta"`
	TotalSize    int64   `json:"totalSize"`
	DownloadDir  string  `json:"downloadDir"`
	IsFinished   bool    `json:"isFinished"`
}

func (t torrent) eta() time.Duration {
	// -1 not available, -2 unknown
	if t.ETA < 0 {
		return 0
	}
	return time.Duration(t.ETA) * time.Second
}

func (c *Client) torrents(ctx context.Context) ([]torrent, error) {
	var args struct {
		Torrents []torrent `json:"torrents"`
	}
	if err := c.call(ctx, "torrent-get", map[string]any{"fields": torrentFields}, &args); err != nil {
		return nil, err
	}
	return args.Torrents, nil
}

// FetchStats returns every torrent that is not stopped, in Transmission's order.
func (c *Client) FetchStats(ctx context.Context) (backend.Payload, error) {
	all, err := c.torrents(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]backend.Torrent, 0, len(all))
	for _, t := range all {
		if t.Status == StatusStopped {
			continue
		}
		active = append(active, backend.Torrent{
			ID:               t.HashString,
			Name:             t.Name,
			ProgressFraction: t.PercentDone,
			DownloadRate:     t.RateDownload,
			UploadRate:       t.RateUpload,
			ETA:              t.eta(),
		})
	}
	return backend.TorrentStats{ActiveTorrents: active}, nil
}

// ListItems returns every torrent including stopped ones.
func (c *Client) ListItems(ctx context.Context) ([]backend.Item, error) {
	all, err := c.torrents(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]backend.Item, len(all))
	for i, t := range all {
		items[i] = backend.Item{
			ID:           t.HashString,
			Title:        t.Name,
			Status:       statusName(t.Status),
			Monitored:    t.Status != StatusStopped,
			HasFile:      t.IsFinished || t.PercentDone >= 1,
			Path:         t.DownloadDir,
			SizeBytes:    t.TotalSize,
			Progress:     t.PercentDone,
			DownloadRate: t.RateDownload,
			UploadRate:   t.RateUpload,
			ETA:          t.eta(),
		}
	}
	return items, nil
}

func statusName(s int) string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusCheckWait:
		return "check_pending"
	case StatusChecking:
		return "checking"
	case StatusDownloadWait:
		return "download_pending"
	case StatusDownloading:
		return "downloading"
	case StatusSeedWait:
		return "seed_pending"
	case StatusSeeding:
		return "seeding"
	default:
		return "unknown"
	}
}

type addedTorrent struct {
	HashString string `json:"hashString"`
	Name       string `json:"name"`
}

// AddItem adds a torrent by URL or magnet link.
func (c *Client) AddItem(ctx context.Context, spec backend.ItemSpec) (*backend.Item, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}

	args := map[string]any{
		"filename": spec.TorrentURL,
		"paused":   spec.Paused,
	}
	if spec.DownloadDir != "" {
		args["download-dir"] = spec.DownloadDir
	}

	var resp struct {
		Added     *addedTorrent `json:"torrent-added"`
		Duplicate *addedTorrent `json:"torrent-duplicate"`
	}
	if err := c.call(ctx, "torrent-add", args, &resp); err != nil {
		return nil, err
	}

	added := resp.Added
	if added == nil {
		added = resp.Duplicate
	}
	if added == nil {
		return nil, &backend.RejectedError{Status: http.StatusOK, Body: "torrent-add returned no torrent"}
	}

	c.log.Info("torrent added", "hash", added.HashString, "name", added.Name, "duplicate", resp.Added == nil)
	return &backend.Item{
		ID:        added.HashString,
		Title:     added.Name,
		Monitored: !spec.Paused,
		Path:      spec.DownloadDir,
	}, nil
}

// Validate reports the fields Transmission requires that spec lacks.
func Validate(spec backend.ItemSpec) error {
	if strings.TrimSpace(spec.TorrentURL) == "" {
		return backend.MissingFields("torrent_url")
	}
	return nil
}

// RemoveItem removes a torrent; DeleteFiles also deletes downloaded data.
func (c *Client) RemoveItem(ctx context.Context, id string, opts backend.RemoveOptions) error {
	if id == "" {
		return fmt.Errorf("%w: torrent id is empty", backend.ErrInvalidSpec)
	}
	args := map[string]any{
		"ids":               []string{id},
		"delete-local-data": opts.DeleteFiles,
	}
	if err := c.call(ctx, "torrent-remove", args, nil); err != nil {
		return err
	}
	c.log.Info("torrent removed", "hash", id, "delete_data", opts.DeleteFiles)
	return nil
}

// StartTorrent resumes a torrent.
func (c *Client) StartTorrent(ctx context.Context, id string) error {
	return c.control(ctx, "torrent-start", id)
}

// StopTorrent pauses a torrent.
func (c *Client) StopTorrent(ctx context.Context, id string) error {
	return c.control(ctx, "torrent-stop", id)
}

func (c *Client) control(ctx context.Context, method, id string) error {
	if id == "" {
		return fmt.Errorf("%w: torrent id is empty", backend.ErrInvalidSpec)
	}
	return c.call(ctx, method, map[string]any{"ids": []string{id}}, nil)
}

// call performs one RPC, refreshing the session id once on 409.
func (c *Client) call(ctx context.Context, method string, args, out any) error {
	body, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.post(ctx, body, c.session())
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusConflict {
		sid := resp.Header.Get(SessionHeader)
		_ = resp.Body.Close()
		c.setSession(sid)
		c.log.Debug("session id refreshed")
		if resp, err = c.post(ctx, body, sid); err != nil {
			return err
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return backend.Reject(resp)
	}

	var rr rpcResponse
	if err := backend.DecodeBody(resp, &rr); err != nil {
		return err
	}
	if rr.Result != "success" {
		return &backend.RejectedError{Status: resp.StatusCode, Body: rr.Result}
	}

	if out != nil && len(rr.Arguments) > 0 {
		if err := json.Unmarshal(rr.Arguments, out); err != nil {
			return &backend.RejectedError{Status: resp.StatusCode, Body: fmt.Sprintf("malformed arguments: %v", err)}
		}
	}

	c.log.Debug("rpc complete", "method", method)
	return nil
}

func (c *Client) post(ctx context.Context, body []byte, sessionID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, backend.Unreachable(err)
	}
	return resp, nil
}

func (c *Client) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) setSession(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}
