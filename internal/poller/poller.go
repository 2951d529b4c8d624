// Package poller runs one polling loop per enabled service and stores the
// resulting snapshots in the status cache.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/events"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = 30 * time.Second

// ErrStopped is returned by Refresh when the service was removed or
// reconfigured while its cycle was running.
var ErrStopped = errors.New("poller: worker stopped")

// Store is where completed cycles are written.
type Store interface {
	Put(kind backend.Kind, snap backend.Snapshot) bool
	Delete(kind backend.Kind)
}

// Publisher receives service events. Implemented by *events.Bus.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithBus publishes snapshot and state-change events to bus.
func WithBus(bus Publisher) Option {
	return func(p *Poller) { p.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Poller) { p.log = log }
}

// Poller owns one worker per enabled service.
type Poller struct {
	store    Store
	interval time.Duration
	clock    Clock
	bus      Publisher
	log      *slog.Logger
	group    singleflight.Group

	mu      sync.Mutex
	workers map[backend.Kind]*worker
	running bool
	gen     uint64
	wg      sync.WaitGroup

	stateMu sync.Mutex
	state   map[backend.Kind]serviceState
}

type worker struct {
	kind   backend.Kind
	client backend.Client
	key    string
	ctx    context.Context
	cancel context.CancelFunc
}

// serviceState tracks reachability transitions for events.
type serviceState struct {
	up        bool
	downSince time.Time
}

// New creates a poller for clients. Nothing is polled until Run.
func New(store Store, clients map[backend.Kind]backend.Client, interval time.Duration, opts ...Option) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{
		store:    store,
		interval: interval,
		clock:    realClock{},
		workers:  make(map[backend.Kind]*worker),
		state:    make(map[backend.Kind]serviceState),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	p.log = p.log.With("component", "poller")

	for kind, c := range clients {
		p.workers[kind] = p.newWorker(kind, c)
	}
	return p
}

// Name returns the runner name.
func (p *Poller) Name() string { return "poller" }

// Interval returns the polling period.
func (p *Poller) Interval() time.Duration { return p.interval }

// Now returns the poller clock's current time.
func (p *Poller) Now() time.Time { return p.clock.Now() }

// Kinds returns the polled kinds in dashboard order.
func (p *Poller) Kinds() []backend.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []backend.Kind
	for _, k := range backend.Kinds {
		if _, ok := p.workers[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Run starts every worker and blocks until ctx is canceled.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("poller already running")
	}
	p.running = true
	for _, w := range p.workers {
		p.start(w)
	}
	p.log.Info("poller started", "services", len(p.workers), "interval", p.interval)
	p.mu.Unlock()

	<-ctx.Done()

	p.mu.Lock()
	p.running = false
	for _, w := range p.workers {
		w.cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()

	p.log.Info("poller stopped")
	return nil
}

// Reconfigure replaces the polled set. Workers whose client changed or
// disappeared are stopped and their cache entries cleared; new ones start
// immediately if the poller is running.
func (p *Poller) Reconfigure(clients map[backend.Kind]backend.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for kind, w := range p.workers {
		if c, ok := clients[kind]; ok && c == w.client {
			continue
		}
		w.cancel()
		delete(p.workers, kind)
		p.store.Delete(kind)
		p.clearState(kind)
		p.log.Info("service stopped", "kind", kind)
	}

	for kind, c := range clients {
		if _, ok := p.workers[kind]; ok {
			continue
		}
		w := p.newWorker(kind, c)
		p.workers[kind] = w
		if p.running {
			p.start(w)
		}
		p.log.Info("service added", "kind", kind)
	}

	if p.bus != nil {
		kinds := make([]backend.Kind, 0, len(p.workers))
		for k := range p.workers {
			kinds = append(kinds, k)
		}
		slices.Sort(kinds)
		p.emit(context.Background(), events.NewServicesReloaded(kinds, p.clock.Now()))
	}
}

// Refresh runs a cycle for kind now and waits for it. Concurrent callers,
// and a scheduled cycle already in progress, share one cycle and its result.
func (p *Poller) Refresh(ctx context.Context, kind backend.Kind) (backend.Snapshot, error) {
	w, ok := p.worker(kind)
	if !ok {
		return backend.Snapshot{}, fmt.Errorf("%w: %s", backend.ErrConfigMissing, kind)
	}

	ch := p.group.DoChan(w.key, func() (any, error) {
		return p.cycle(w)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return backend.Snapshot{}, res.Err
		}
		return res.Val.(backend.Snapshot), nil
	case <-ctx.Done():
		return backend.Snapshot{}, ctx.Err()
	}
}

// Trigger schedules a cycle for kind without waiting for it.
func (p *Poller) Trigger(kind backend.Kind) {
	w, ok := p.worker(kind)
	if !ok {
		return
	}
	p.group.DoChan(w.key, func() (any, error) {
		return p.cycle(w)
	})
}

func (p *Poller) worker(kind backend.Kind) (*worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[kind]
	return w, ok
}

func (p *Poller) newWorker(kind backend.Kind, c backend.Client) *worker {
	p.gen++
	ctx, cancel := context.WithCancel(context.Background())
	return &worker{
		kind:   kind,
		client: c,
		key:    fmt.Sprintf("%s#%d", kind, p.gen),
		ctx:    ctx,
		cancel: cancel,
	}
}

// start launches w's loop. Caller holds p.mu.
func (p *Poller) start(w *worker) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop(w)
	}()
}

func (p *Poller) loop(w *worker) {
	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()

	// Poll immediately on start
	p.scheduled(w)

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.Chan():
			p.scheduled(w)
		}
	}
}

func (p *Poller) scheduled(w *worker) {
	_, err, shared := p.group.Do(w.key, func() (any, error) {
		return p.cycle(w)
	})
	if err != nil && !errors.Is(err, ErrStopped) {
		p.log.Warn("poll cycle failed", "kind", w.kind, "error", err)
	}
	if shared {
		p.log.Debug("scheduled cycle coalesced", "kind", w.kind)
	}
}

// cycle checks health, fetches stats only when reachable, and stores
// exactly one snapshot whatever the outcome.
func (p *Poller) cycle(w *worker) (backend.Snapshot, error) {
	ctx := w.ctx
	h := w.client.CheckHealth(ctx)

	var snap backend.Snapshot
	if !h.Reachable {
		snap = backend.Failed(w.kind, p.clock.Now(), h.Latency, h.Err)
	} else if payload, err := w.client.FetchStats(ctx); err != nil {
		snap = backend.Failed(w.kind, p.clock.Now(), h.Latency, err)
	} else {
		snap = backend.Succeeded(w.kind, p.clock.Now(), h, payload)
	}

	p.mu.Lock()
	if ctx.Err() != nil || p.workers[w.kind] != w {
		p.mu.Unlock()
		return snap, ErrStopped
	}
	stored := p.store.Put(w.kind, snap)
	p.mu.Unlock()

	if !stored {
		p.log.Debug("older snapshot dropped", "kind", w.kind, "fetched_at", snap.FetchedAt)
		return snap, nil
	}

	if snap.Reachable {
		p.log.Debug("poll complete", "kind", w.kind, "latency_ms", snap.Latency.Milliseconds())
	} else {
		p.log.Debug("poll failed", "kind", w.kind, "error", snap.ErrorDetail)
	}
	p.record(snap)
	return snap, nil
}

// record tracks up/down state and publishes the snapshot and any transition.
// Transitions are logged by the bus subscribers.
func (p *Poller) record(snap backend.Snapshot) {
	p.stateMu.Lock()
	prev, known := p.state[snap.Kind]
	next := prev
	var transition events.Event
	switch {
	case snap.Reachable && known && !prev.up:
		transition = events.NewBackendRecovered(snap, prev.downSince)
		next = serviceState{up: true}
	case snap.Reachable:
		next = serviceState{up: true}
	case !known || prev.up:
		transition = events.NewBackendDown(snap)
		next = serviceState{downSince: snap.FetchedAt}
	}
	p.state[snap.Kind] = next
	p.stateMu.Unlock()

	if p.bus == nil {
		return
	}
	ctx := context.Background()
	p.emit(ctx, events.NewSnapshotUpdated(snap))
	if transition != nil {
		p.emit(ctx, transition)
	}
}

// emit hands e to the bus. Delivery failures never stop a cycle.
func (p *Poller) emit(ctx context.Context, e events.Event) {
	if err := p.bus.Publish(ctx, e); err != nil {
		p.log.Warn("publish event failed", "type", e.EventType(), "kind", e.EntityID(), "error", err)
	}
}

func (p *Poller) clearState(kind backend.Kind) {
	p.stateMu.Lock()
	delete(p.state, kind)
	p.stateMu.Unlock()
}
