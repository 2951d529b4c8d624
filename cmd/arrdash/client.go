package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vmunix/arrdash/internal/audit"
	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/config"
)

// Client wraps HTTP calls to the arrdash daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new arrdash API client.
func NewClient(serverURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// APIError is a non-success response from the daemon.
type APIError struct {
	Status       int
	Code         string `json:"code"`
	Message      string `json:"error"`
	VendorStatus int    `json:"vendor_status"`
	VendorBody   string `json:"vendor_body"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error %d", e.Status)
	}
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

func (c *Client) do(method, path string, body, result any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) get(path string, result any) error {
	return c.do(http.MethodGet, path, nil, result)
}

// API response types (mirror server types)

type StatusResponse struct {
	Status   string   `json:"status"`
	Version  string   `json:"version"`
	Services []string `json:"services"`
}

// SnapshotResponse keeps the payload raw; its shape depends on Kind.
type SnapshotResponse struct {
	Kind        backend.Kind    `json:"kind"`
	FetchedAt   time.Time       `json:"fetched_at"`
	Reachable   bool            `json:"reachable"`
	Latency     time.Duration   `json:"latency"`
	Version     string          `json:"version"`
	ErrorDetail string          `json:"error_detail"`
	Payload     json.RawMessage `json:"payload"`
}

type ServiceView struct {
	Kind     backend.Kind      `json:"kind"`
	Label    string            `json:"label"`
	Pending  bool              `json:"pending"`
	Stale    bool              `json:"stale"`
	Current  *SnapshotResponse `json:"current"`
	LastGood *SnapshotResponse `json:"last_good"`
}

type DashboardResponse struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Interval    time.Duration `json:"interval"`
	Services    []ServiceView `json:"services"`
}

type ItemsResponse struct {
	Kind  backend.Kind   `json:"kind"`
	Items []backend.Item `json:"items"`
	Total int            `json:"total"`
}

type SearchResponse struct {
	Term    string                 `json:"term"`
	Results []backend.LookupResult `json:"results"`
	Errors  map[string]string      `json:"errors,omitempty"`
}

type CalendarResponse struct {
	Start   time.Time               `json:"start"`
	End     time.Time               `json:"end"`
	Entries []backend.CalendarEntry `json:"entries"`
	Errors  map[string]string       `json:"errors,omitempty"`
}

type DiskSpaceResponse struct {
	Disks  map[string][]backend.Disk `json:"disks"`
	Errors map[string]string         `json:"errors,omitempty"`
}

type AuditResponse struct {
	Items  []audit.Entry `json:"items"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	EventType  string          `json:"event_type"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type EventsResponse struct {
	Items []EventResponse `json:"items"`
	Total int             `json:"total"`
}

type ConfigResponse struct {
	Services config.ServicesConfig `json:"services"`
}

func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get("/api/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Dashboard() (*DashboardResponse, error) {
	var resp DashboardResponse
	if err := c.get("/api/v1/dashboard", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func servicePath(kind backend.Kind, rest string) string {
	return "/api/v1/services/" + url.PathEscape(string(kind)) + rest
}

func (c *Client) Items(kind backend.Kind) (*ItemsResponse, error) {
	var resp ItemsResponse
	if err := c.get(servicePath(kind, "/items"), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AddItem(kind backend.Kind, spec backend.ItemSpec) (*backend.Item, error) {
	var item backend.Item
	if err := c.do(http.MethodPost, servicePath(kind, "/items"), spec, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) RemoveItem(kind backend.Kind, id string, deleteFiles bool) error {
	path := servicePath(kind, "/items/"+url.PathEscape(id))
	if deleteFiles {
		path += "?delete_files=true"
	}
	return c.do(http.MethodDelete, path, nil, nil)
}

func (c *Client) Refresh(kind backend.Kind) (*SnapshotResponse, error) {
	var snap SnapshotResponse
	if err := c.do(http.MethodPost, servicePath(kind, "/refresh"), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) RootFolders(kind backend.Kind) ([]backend.RootFolder, error) {
	var resp struct {
		Items []backend.RootFolder `json:"items"`
	}
	if err := c.get(servicePath(kind, "/rootfolders"), &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) QualityProfiles(kind backend.Kind) ([]backend.QualityProfile, error) {
	var resp struct {
		Items []backend.QualityProfile `json:"items"`
	}
	if err := c.get(servicePath(kind, "/qualityprofiles"), &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// TorrentAction starts or stops a torrent.
func (c *Client) TorrentAction(id, action string) error {
	return c.do(http.MethodPost, servicePath(backend.KindTorrent, "/items/"+url.PathEscape(id)+"/"+action), nil, nil)
}

func (c *Client) Search(term string) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.get("/api/v1/search?term="+url.QueryEscape(term), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Calendar lists upcoming releases. days <= 0 uses the daemon's default.
func (c *Client) Calendar(days int) (*CalendarResponse, error) {
	path := "/api/v1/calendar"
	if days > 0 {
		path += "?days=" + strconv.Itoa(days)
	}
	var resp CalendarResponse
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DiskSpace() (*DiskSpaceResponse, error) {
	var resp DiskSpaceResponse
	if err := c.get("/api/v1/diskspace", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AuditQuery filters the audit listing.
type AuditQuery struct {
	Kind    string
	Outcome string
	Limit   int
	Offset  int
}

func (c *Client) Audit(q AuditQuery) (*AuditResponse, error) {
	v := url.Values{}
	if q.Kind != "" {
		v.Set("kind", q.Kind)
	}
	if q.Outcome != "" {
		v.Set("outcome", q.Outcome)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	path := "/api/v1/audit"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var resp AuditResponse
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Events(kind string, limit int) (*EventsResponse, error) {
	v := url.Values{}
	if kind != "" {
		v.Set("kind", kind)
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/events"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var resp EventsResponse
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Config() (*ConfigResponse, error) {
	var resp ConfigResponse
	if err := c.get("/api/v1/config", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UpdateService(kind backend.Kind, sc config.ServiceConfig) (*ConfigResponse, error) {
	body := map[string]any{"services": map[string]config.ServiceConfig{string(kind): sc}}
	var resp ConfigResponse
	if err := c.do(http.MethodPut, "/api/v1/config", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
