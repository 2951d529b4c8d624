// Package server wires the poller, the dashboard facade and the HTTP API
// into one process and runs them until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "github.com/vmunix/arrdash/internal/api/v1"
	"github.com/vmunix/arrdash/internal/audit"
	"github.com/vmunix/arrdash/internal/cache"
	"github.com/vmunix/arrdash/internal/config"
	"github.com/vmunix/arrdash/internal/dashboard"
	"github.com/vmunix/arrdash/internal/events"
	"github.com/vmunix/arrdash/internal/poller"
	"github.com/vmunix/arrdash/internal/settings"
)

const (
	defaultPruneInterval = 24 * time.Hour
	shutdownTimeout      = 30 * time.Second
)

// Config for the runner.
type Config struct {
	Addr           string // empty disables the HTTP server
	PollInterval   time.Duration
	AuditRetention time.Duration // zero keeps everything
	PruneInterval  time.Duration
	Services       config.ServicesConfig
	Version        string

	// LoadServices re-reads the service sections on SIGHUP. Nil disables reload.
	LoadServices func() (config.ServicesConfig, error)
}

// Runner owns every long-running component.
type Runner struct {
	config Config
	logger *slog.Logger

	eventLog *events.EventLog
	bus      *events.Bus
	cache    *cache.Cache
	poller   *poller.Poller
	audit    *audit.Store
	dash     *dashboard.Service
	api      *v1.Server

	hup   chan os.Signal
	ready chan struct{}
	mu    sync.Mutex
	addr  string
}

// NewRunner creates a runner backed by db. The schema must already be applied.
func NewRunner(db *sql.DB, cfg Config, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = defaultPruneInterval
	}

	r := &Runner{
		config: cfg,
		logger: logger,
		hup:    make(chan os.Signal, 1),
		ready:  make(chan struct{}),
	}

	r.eventLog = events.NewEventLog(db)
	r.bus = events.NewBus(r.eventLog, logger.With("component", "bus"))
	r.cache = cache.New()
	r.poller = poller.New(r.cache, nil, cfg.PollInterval,
		poller.WithBus(r.bus),
		poller.WithLogger(logger),
	)
	r.audit = audit.NewStore(db)
	r.dash = dashboard.New(r.cache, r.poller, r.audit,
		dashboard.WithServiceStore(settings.NewStore(db)),
		dashboard.WithLogger(logger),
	)

	api, err := v1.New(v1.ServerDeps{
		Dashboard: r.dash,
		Audit:     r.audit,
		EventLog:  r.eventLog,
		Events:    r.bus,
		Registry:  events.DefaultRegistry(),
		Version:   cfg.Version,
	})
	if err != nil {
		return nil, err
	}
	r.api = api
	return r, nil
}

// Dashboard returns the facade.
func (r *Runner) Dashboard() *dashboard.Service { return r.dash }

// Addr returns the address the HTTP server listens on, once it is listening.
func (r *Runner) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addr
}

// Ready is closed when every component has started.
func (r *Runner) Ready() <-chan struct{} { return r.ready }

// Run configures the services and starts every component.
// It blocks until the context is canceled or a component fails.
func (r *Runner) Run(ctx context.Context) error {
	defer func() { _ = r.bus.Close() }()

	if err := r.dash.Reload(ctx, r.config.Services); err != nil {
		return fmt.Errorf("configure services: %w", err)
	}

	var ln net.Listener
	if r.config.Addr != "" {
		var err error
		if ln, err = net.Listen("tcp", r.config.Addr); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		r.mu.Lock()
		r.addr = ln.Addr().String()
		r.mu.Unlock()
	}

	watcher := newBackendWatcher(r.bus, r.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		watcher.run(ctx)
		return nil
	})
	g.Go(func() error {
		return r.poller.Run(ctx)
	})
	if ln != nil {
		g.Go(func() error {
			return r.serve(ctx, ln)
		})
	}
	g.Go(func() error {
		r.pruneLoop(ctx)
		return nil
	})
	g.Go(func() error {
		r.reloadLoop(ctx)
		return nil
	})

	r.logger.Info("server started", "addr", r.Addr(), "services", len(r.dash.Enabled()))
	close(r.ready)
	return g.Wait()
}

func (r *Runner) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	r.api.RegisterRoutes(mux)
	srv := &http.Server{
		Handler:           v1.LogRequests(mux, r.logger.With("component", "http")),
		ReadHeaderTimeout: 10 * time.Second,
		// Cancels open event streams on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	r.logger.Info("http server stopped")
	return nil
}

func (r *Runner) pruneLoop(ctx context.Context) {
	if r.config.AuditRetention <= 0 {
		return
	}
	ticker := time.NewTicker(r.config.PruneInterval)
	defer ticker.Stop()

	for {
		r.prune(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) prune(ctx context.Context) {
	log := r.logger.With("component", "prune")
	if n, err := r.audit.Prune(ctx, r.config.AuditRetention); err != nil {
		log.Error("prune audit log failed", "error", err)
	} else if n > 0 {
		log.Info("pruned audit log", "deleted", n)
	}
	if n, err := r.eventLog.Prune(r.config.AuditRetention); err != nil {
		log.Error("prune events failed", "error", err)
	} else if n > 0 {
		log.Info("pruned events", "deleted", n)
	}
}

func (r *Runner) reloadLoop(ctx context.Context) {
	signal.Notify(r.hup, syscall.SIGHUP)
	defer signal.Stop(r.hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.hup:
			if err := r.reload(ctx); err != nil {
				r.logger.Error("reload failed", "error", err)
			}
		}
	}
}

func (r *Runner) reload(ctx context.Context) error {
	if r.config.LoadServices == nil {
		r.logger.Warn("reload requested but no config file to read")
		return nil
	}
	services, err := r.config.LoadServices()
	if err != nil {
		return err
	}
	if err := r.dash.Reload(ctx, services); err != nil {
		return err
	}
	r.config.Services = services
	r.logger.Info("configuration reloaded", "services", len(r.dash.Enabled()))
	return nil
}
