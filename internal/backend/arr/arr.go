// Package arr holds the parts of the Sonarr/Radarr v3 API the two share.
package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golift.io/starr"

	"github.com/vmunix/arrdash/internal/backend"
)

// Client is an authenticated v3 API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a v3 client for the endpoint.
func New(ep backend.Endpoint, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(ep.BaseURL, "/"),
		apiKey:     ep.APIKey,
		httpClient: backend.NewHTTPClient(ep.CallTimeout()),
		log:        log,
	}
}

// StarrConfig returns a starr config sharing this client's timeout-bounded transport.
func (c *Client) StarrConfig() *starr.Config {
	return &starr.Config{
		URL:    c.baseURL,
		APIKey: c.apiKey,
		Client: c.httpClient,
	}
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Put sends body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	start := time.Now()
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := backend.Do(c.httpClient, req, out); err != nil {
		c.log.Debug("api request failed", "method", method, "path", path, "error", err)
		return err
	}

	c.log.Debug("api request complete", "method", method, "path", path, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

type disk struct {
	Path       string `json:"path"`
	Label      string `json:"label"`
	FreeSpace  int64  `json:"freeSpace"`
	TotalSpace int64  `json:"totalSpace"`
}

// DiskSpace lists the disks the service can see.
func (c *Client) DiskSpace(ctx context.Context) ([]backend.Disk, error) {
	var raw []disk
	if err := c.Get(ctx, "/api/v3/diskspace", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]backend.Disk, len(raw))
	for i, d := range raw {
		out[i] = backend.Disk{Path: d.Path, Label: d.Label, FreeSpace: d.FreeSpace, TotalSpace: d.TotalSpace}
	}
	return out, nil
}

// HostConfig returns the service's host settings document.
func (c *Client) HostConfig(ctx context.Context) (backend.HostConfig, error) {
	var cfg backend.HostConfig
	if err := c.Get(ctx, "/api/v3/config/host", nil, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UpdateHostConfig replaces the host settings and returns what the service stored.
func (c *Client) UpdateHostConfig(ctx context.Context, cfg backend.HostConfig) (backend.HostConfig, error) {
	var stored backend.HostConfig
	if err := c.Put(ctx, "/api/v3/config/host", cfg, &stored); err != nil {
		return nil, err
	}
	c.log.Info("host settings updated")
	return stored, nil
}

// Health runs a starr status call and converts the outcome.
func Health(ctx context.Context, status func(context.Context) (string, error)) backend.Health {
	start := time.Now()
	version, err := status(ctx)
	h := backend.Health{Latency: time.Since(start)}
	if err != nil {
		h.Err = FromStarr(err)
		return h
	}
	h.Reachable = true
	h.Version = version
	return h
}

// FromStarr maps a starr error to the backend error kinds. A vendor status
// or a complete body that is not JSON is a *backend.RejectedError; anything
// that stopped the exchange midway is backend.ErrBackendUnreachable.
func FromStarr(err error) error {
	if err == nil {
		return nil
	}
	var reqErr *starr.ReqError
	if errors.As(err, &reqErr) {
		return &backend.RejectedError{Status: reqErr.Code, Body: string(reqErr.Body)}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backend.Unreachable(err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &backend.RejectedError{Status: http.StatusOK, Body: fmt.Sprintf("malformed response: %v", err)}
	}
	return backend.Unreachable(err)
}
