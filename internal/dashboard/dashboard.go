// Package dashboard is the facade the API and CLI talk to. It assembles the
// status view from the cache and routes item commands to the vendor clients,
// auditing every command it sends.
package dashboard

//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/vmunix/arrdash/internal/dashboard AuditLog,Refresher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vmunix/arrdash/internal/audit"
	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/backend/registry"
	"github.com/vmunix/arrdash/internal/cache"
	"github.com/vmunix/arrdash/internal/config"
	"github.com/vmunix/arrdash/internal/poller"
)

// AuditLog receives one entry per command.
type AuditLog interface {
	Append(ctx context.Context, e *audit.Entry) error
}

// Refresher schedules polls. Implemented by *poller.Poller.
type Refresher interface {
	Trigger(kind backend.Kind)
	Refresh(ctx context.Context, kind backend.Kind) (backend.Snapshot, error)
	Reconfigure(clients map[backend.Kind]backend.Client)
	Interval() time.Duration
	Now() time.Time
}

// StatusReader is the read side of the status cache.
type StatusReader interface {
	Entry(kind backend.Kind) (cache.Entry, bool)
}

// ServiceStore persists endpoint overrides. Implemented by *settings.Store.
type ServiceStore interface {
	Apply(ctx context.Context, base config.ServicesConfig) (config.ServicesConfig, error)
	SaveService(ctx context.Context, kind backend.Kind, sc config.ServiceConfig) error
}

// ClientFactory builds a vendor client for an endpoint.
type ClientFactory func(ep backend.Endpoint, log *slog.Logger) (backend.Client, error)

// Option configures a Service.
type Option func(*Service)

// WithClientFactory replaces registry.New.
func WithClientFactory(f ClientFactory) Option {
	return func(s *Service) { s.build = f }
}

// WithServiceStore enables endpoint overrides.
func WithServiceStore(store ServiceStore) Option {
	return func(s *Service) { s.store = store }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithRequestIDs replaces the uuid generator.
func WithRequestIDs(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// Service is the aggregation facade.
type Service struct {
	status StatusReader
	poller Refresher
	audit  AuditLog
	store  ServiceStore
	build  ClientFactory
	newID  func() string
	log    *slog.Logger

	// cfgMu serializes Reload and UpdateService.
	cfgMu sync.Mutex

	mu        sync.RWMutex
	services  config.ServicesConfig
	clients   map[backend.Kind]backend.Client
	endpoints map[backend.Kind]backend.Endpoint
}

// New creates a facade with no services. Call Reload or Reconfigure to
// configure them.
func New(status StatusReader, poller Refresher, auditLog AuditLog, opts ...Option) *Service {
	s := &Service{
		status:    status,
		poller:    poller,
		audit:     auditLog,
		build:     registry.New,
		newID:     uuid.NewString,
		clients:   make(map[backend.Kind]backend.Client),
		endpoints: make(map[backend.Kind]backend.Endpoint),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "dashboard")
	return s
}

// Reconfigure swaps the client set. Clients whose endpoint is unchanged are
// kept so their poll workers keep running. Either every enabled endpoint
// gets a client or nothing changes.
func (s *Service) Reconfigure(endpoints []backend.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := make(map[backend.Kind]backend.Client, len(endpoints))
	eps := make(map[backend.Kind]backend.Endpoint, len(endpoints))
	for _, ep := range endpoints {
		if !ep.Enabled {
			continue
		}
		if _, dup := eps[ep.Kind]; dup {
			return fmt.Errorf("duplicate endpoint for %s", ep.Kind)
		}
		if prev, ok := s.endpoints[ep.Kind]; ok && prev == ep {
			clients[ep.Kind] = s.clients[ep.Kind]
		} else {
			c, err := s.build(ep, s.log)
			if err != nil {
				return fmt.Errorf("configure %s: %w", ep.Kind, err)
			}
			clients[ep.Kind] = c
		}
		eps[ep.Kind] = ep
	}

	s.clients = clients
	s.endpoints = eps
	s.poller.Reconfigure(clients)
	s.log.Info("services configured", "enabled", len(clients))
	return nil
}

// Enabled returns the configured kinds in dashboard order.
func (s *Service) Enabled() []backend.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []backend.Kind
	for _, k := range backend.Kinds {
		if _, ok := s.clients[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func (s *Service) client(kind backend.Kind) (backend.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrConfigMissing, kind)
	}
	return c, nil
}

// Refresh polls kind now and returns the stored snapshot. A cycle cut short
// because kind was reconfigured or removed is reported as ErrConfigMissing.
func (s *Service) Refresh(ctx context.Context, kind backend.Kind) (backend.Snapshot, error) {
	if _, err := s.client(kind); err != nil {
		return backend.Snapshot{}, err
	}
	snap, err := s.poller.Refresh(ctx, kind)
	if errors.Is(err, poller.ErrStopped) {
		return backend.Snapshot{}, fmt.Errorf("%w: %s was reconfigured during refresh: %w", backend.ErrConfigMissing, kind, err)
	}
	return snap, err
}
