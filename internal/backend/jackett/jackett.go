// Package jackett implements the indexer backend against Jackett's Torznab API.
package jackett

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/arrdash/internal/backend"
)

// capsLimit bounds concurrent per-indexer caps requests.
const capsLimit = 4

// Client talks to one Jackett instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a Jackett client for the endpoint.
func New(ep backend.Endpoint, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(ep.BaseURL, "/"),
		apiKey:     ep.APIKey,
		httpClient: backend.NewHTTPClient(ep.CallTimeout()),
		log:        log.With("component", "jackett"),
	}
}

// Kind implements backend.Client.
func (c *Client) Kind() backend.Kind { return backend.KindIndexer }

// CheckHealth runs an empty search across all indexers.
// The REST indexer list needs a browser session, the results endpoint only the API key.
func (c *Client) CheckHealth(ctx context.Context) backend.Health {
	start := time.Now()
	q := url.Values{"t": {"search"}, "q": {""}}
	_, err := c.get(ctx, "/api/v2.0/indexers/all/results", q)
	h := backend.Health{Latency: time.Since(start)}
	if err != nil {
		h.Err = err
		return h
	}
	h.Reachable = true
	return h
}

// Torznab t=indexers response.
type indexersResponse struct {
	XMLName  xml.Name         `xml:"indexers"`
	Indexers []torznabIndexer `xml:"indexer"`
}

type torznabIndexer struct {
	ID         string `xml:"id,attr"`
	Configured bool   `xml:"configured,attr"`
	Type       string `xml:"type,attr"`
	Title      string `xml:"title"`
}

// Torznab error document, returned with 200 or an error status.
type torznabError struct {
	XMLName     xml.Name `xml:"error"`
	Code        int      `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

// FetchStats lists configured indexers and queries each one's caps endpoint.
// A caps request that Jackett answers with an error marks that indexer unhealthy;
// losing Jackett itself fails the whole fetch.
func (c *Client) FetchStats(ctx context.Context) (backend.Payload, error) {
	indexers, err := c.configuredIndexers(ctx)
	if err != nil {
		return nil, err
	}

	health := make([]backend.IndexerHealth, len(indexers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(capsLimit)
	for i, idx := range indexers {
		g.Go(func() error {
			name := idx.Title
			if name == "" {
				name = idx.ID
			}
			lastErr, err := c.checkCaps(gctx, idx.ID)
			if err != nil {
				return err
			}
			health[i] = backend.IndexerHealth{Name: name, Healthy: lastErr == "", LastError: lastErr}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return backend.IndexerStats{Indexers: health}, nil
}

func (c *Client) configuredIndexers(ctx context.Context) ([]torznabIndexer, error) {
	body, err := c.get(ctx, "/api/v2.0/indexers/all/results/torznab/api", url.Values{"t": {"indexers"}})
	if err != nil {
		return nil, err
	}

	var resp indexersResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, &backend.RejectedError{Status: http.StatusOK, Body: fmt.Sprintf("malformed indexer list: %v", err)}
	}

	out := make([]torznabIndexer, 0, len(resp.Indexers))
	for _, idx := range resp.Indexers {
		if idx.Configured {
			out = append(out, idx)
		}
	}
	return out, nil
}

// checkCaps returns the indexer's error text, or "" when it answered caps.
// Only transport failures are returned as errors.
func (c *Client) checkCaps(ctx context.Context, id string) (string, error) {
	path := "/api/v2.0/indexers/" + url.PathEscape(id) + "/results/torznab/api"
	body, err := c.get(ctx, path, url.Values{"t": {"caps"}})
	if err != nil {
		var rej *backend.RejectedError
		if errors.As(err, &rej) {
			if desc := errorDescription([]byte(rej.Body)); desc != "" {
				return desc, nil
			}
			return rej.Error(), nil
		}
		return "", err
	}
	if desc := errorDescription(body); desc != "" {
		return desc, nil
	}
	return "", nil
}

func errorDescription(body []byte) string {
	var te torznabError
	if err := xml.Unmarshal(body, &te); err != nil {
		return ""
	}
	if te.Description == "" {
		return fmt.Sprintf("torznab error %d", te.Code)
	}
	return te.Description
}

// get issues an authenticated GET and returns the raw body.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	start := time.Now()
	if query == nil {
		query = url.Values{}
	}
	query.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, backend.Unreachable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, backend.Reject(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, backend.Unreachable(err)
	}

	c.log.Debug("api request complete", "path", path, "duration_ms", time.Since(start).Milliseconds())
	return body, nil
}
