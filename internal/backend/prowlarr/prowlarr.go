// Package prowlarr implements the indexer backend against the Prowlarr v1 API.
package prowlarr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/backend/arr"
)

// Client talks to one Prowlarr instance.
type Client struct {
	api *arr.Client
	now func() time.Time
}

// New creates a Prowlarr client for the endpoint.
func New(ep backend.Endpoint, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		api: arr.New(ep, log.With("component", "prowlarr")),
		now: time.Now,
	}
}

// Kind implements backend.Client.
func (c *Client) Kind() backend.Kind { return backend.KindIndexer }

type systemStatus struct {
	Version string `json:"version"`
}

// CheckHealth calls /api/v1/system/status.
func (c *Client) CheckHealth(ctx context.Context) backend.Health {
	start := time.Now()
	var status systemStatus
	err := c.api.Get(ctx, "/api/v1/system/status", nil, &status)
	h := backend.Health{Latency: time.Since(start)}
	if err != nil {
		h.Err = err
		return h
	}
	h.Reachable = true
	h.Version = status.Version
	return h
}

type indexer struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Enable bool   `json:"enable"`
}

type indexerStatus struct {
	IndexerID         int64     `json:"indexerId"`
	DisabledTill      time.Time `json:"disabledTill"`
	MostRecentFailure time.Time `json:"mostRecentFailure"`
}

// FetchStats merges the indexer list with their failure status.
func (c *Client) FetchStats(ctx context.Context) (backend.Payload, error) {
	var indexers []indexer
	var statuses []indexerStatus

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.api.Get(gctx, "/api/v1/indexer", nil, &indexers)
	})
	g.Go(func() error {
		return c.api.Get(gctx, "/api/v1/indexerstatus", nil, &statuses)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int64]indexerStatus, len(statuses))
	for _, s := range statuses {
		byID[s.IndexerID] = s
	}

	now := c.now()
	health := make([]backend.IndexerHealth, 0, len(indexers))
	for _, idx := range indexers {
		h := backend.IndexerHealth{Name: idx.Name, Healthy: idx.Enable}
		if !idx.Enable {
			h.LastError = "disabled"
		} else if s, ok := byID[idx.ID]; ok && s.DisabledTill.After(now) {
			h.Healthy = false
			h.LastError = fmt.Sprintf("failing since %s, disabled until %s",
				s.MostRecentFailure.UTC().Format(time.RFC3339), s.DisabledTill.UTC().Format(time.RFC3339))
		}
		health = append(health, h)
	}

	return backend.IndexerStats{Indexers: health}, nil
}
