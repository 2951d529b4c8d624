package poller

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/cache"
	"github.com/vmunix/arrdash/internal/events"
)

// fakeClock hands out manually fired tickers.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Ticker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Tick fires every live ticker.
func (c *fakeClock) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tickers {
		select {
		case t.ch <- c.now:
		default:
		}
	}
}

func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()                  {}

type fakeClient struct {
	kind     backend.Kind
	healthy  atomic.Bool
	statsErr error
	payload  backend.Payload

	healthCalls atomic.Int32
	statsCalls  atomic.Int32

	// When set, CheckHealth signals entered and blocks until release or ctx.
	entered chan struct{}
	release chan struct{}
}

func newFakeClient(kind backend.Kind, payload backend.Payload) *fakeClient {
	c := &fakeClient{kind: kind, payload: payload}
	c.healthy.Store(true)
	return c
}

func (c *fakeClient) Kind() backend.Kind { return c.kind }

func (c *fakeClient) CheckHealth(ctx context.Context) backend.Health {
	c.healthCalls.Add(1)
	if c.release != nil {
		select {
		case c.entered <- struct{}{}:
		default:
		}
		select {
		case <-c.release:
		case <-ctx.Done():
			return backend.Health{Err: backend.Unreachable(ctx.Err())}
		}
	}
	if !c.healthy.Load() {
		return backend.Health{Latency: 5 * time.Millisecond, Err: backend.Unreachable(errors.New("connection refused"))}
	}
	return backend.Health{Reachable: true, Latency: 2 * time.Millisecond, Version: "1.0"}
}

func (c *fakeClient) FetchStats(context.Context) (backend.Payload, error) {
	c.statsCalls.Add(1)
	if c.statsErr != nil {
		return nil, c.statsErr
	}
	return c.payload, nil
}

func run(t *testing.T, p *Poller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("poller did not stop")
		}
	})
}

func TestPoller_Liveness(t *testing.T) {
	clock := newFakeClock()
	store := cache.New()
	client := newFakeClient(backend.KindSeries, backend.SeriesStats{TotalSeries: 3})

	p := New(store, map[backend.Kind]backend.Client{backend.KindSeries: client}, time.Minute, WithClock(clock))
	run(t, p)

	// First cycle runs without waiting for a tick.
	require.Eventually(t, func() bool {
		_, ok := store.Get(backend.KindSeries)
		return ok
	}, time.Second, 5*time.Millisecond)

	first, _ := store.Get(backend.KindSeries)
	assert.True(t, first.Reachable)
	assert.Equal(t, backend.SeriesStats{TotalSeries: 3}, first.Payload)
	assert.Equal(t, "1.0", first.Version)

	require.Eventually(t, func() bool { return clock.tickerCount() == 1 }, time.Second, 5*time.Millisecond)
	clock.Tick()

	require.Eventually(t, func() bool {
		snap, _ := store.Get(backend.KindSeries)
		return snap.FetchedAt.After(first.FetchedAt)
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 2, client.statsCalls.Load())
}

func TestPoller_Isolation(t *testing.T) {
	clock := newFakeClock()
	store := cache.New()
	hung := newFakeClient(backend.KindSeries, backend.SeriesStats{})
	hung.entered = make(chan struct{}, 1)
	hung.release = make(chan struct{})
	ok := newFakeClient(backend.KindMovie, backend.MovieStats{TotalMovies: 7})

	p := New(store, map[backend.Kind]backend.Client{
		backend.KindSeries: hung,
		backend.KindMovie:  ok,
	}, time.Minute, WithClock(clock))
	run(t, p)

	<-hung.entered
	require.Eventually(t, func() bool {
		_, found := store.Get(backend.KindMovie)
		return found
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return clock.tickerCount() == 2 }, time.Second, 5*time.Millisecond)

	// The movie worker keeps its cadence for as long as the series call hangs.
	for i := range 3 {
		prev, _ := store.Get(backend.KindMovie)
		clock.Tick()
		require.Eventually(t, func() bool {
			snap, _ := store.Get(backend.KindMovie)
			return snap.FetchedAt.After(prev.FetchedAt)
		}, time.Second, 5*time.Millisecond, "tick %d", i)

		_, found := store.Get(backend.KindSeries)
		assert.False(t, found, "hung service must not have a snapshot yet")
	}
	assert.EqualValues(t, 4, ok.statsCalls.Load())
	assert.EqualValues(t, 1, hung.healthCalls.Load())

	close(hung.release)
	require.Eventually(t, func() bool {
		_, found := store.Get(backend.KindSeries)
		return found
	}, time.Second, 5*time.Millisecond)
}

func TestPoller_RefreshCoalesces(t *testing.T) {
	store := cache.New()
	client := newFakeClient(backend.KindTorrent, backend.TorrentStats{})
	client.entered = make(chan struct{}, 1)
	client.release = make(chan struct{})

	// Not running: only on-demand cycles happen.
	p := New(store, map[backend.Kind]backend.Client{backend.KindTorrent: client}, time.Minute, WithClock(newFakeClock()))

	type result struct {
		snap backend.Snapshot
		err  error
	}
	results := make(chan result, 2)
	refresh := func() {
		snap, err := p.Refresh(context.Background(), backend.KindTorrent)
		results <- result{snap, err}
	}

	go refresh()
	<-client.entered
	go refresh()
	time.Sleep(50 * time.Millisecond)
	close(client.release)

	a, b := <-results, <-results
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Equal(t, a.snap, b.snap)
	assert.EqualValues(t, 1, client.healthCalls.Load())

	stored, found := store.Get(backend.KindTorrent)
	require.True(t, found)
	assert.Equal(t, a.snap, stored)
}

func TestPoller_FailedPollStillUpdates(t *testing.T) {
	store := cache.New()
	client := newFakeClient(backend.KindSeries, backend.SeriesStats{TotalSeries: 1})
	p := New(store, map[backend.Kind]backend.Client{backend.KindSeries: client}, time.Minute, WithClock(newFakeClock()))

	good, err := p.Refresh(context.Background(), backend.KindSeries)
	require.NoError(t, err)
	require.True(t, good.Reachable)

	client.healthy.Store(false)
	bad, err := p.Refresh(context.Background(), backend.KindSeries)
	require.NoError(t, err)

	assert.False(t, bad.Reachable)
	assert.Nil(t, bad.Payload)
	assert.Contains(t, bad.ErrorDetail, "connection refused")
	assert.True(t, bad.FetchedAt.After(good.FetchedAt))
	assert.EqualValues(t, 1, client.statsCalls.Load(), "stats must not be fetched when unreachable")

	entry, _ := store.Entry(backend.KindSeries)
	assert.Equal(t, bad, entry.Current)
	require.NotNil(t, entry.LastGood)
	assert.Equal(t, good, *entry.LastGood)
}

func TestPoller_StatsFailureIsUnreachable(t *testing.T) {
	store := cache.New()
	client := newFakeClient(backend.KindMovie, nil)
	client.statsErr = &backend.RejectedError{Status: 500, Body: "boom"}
	p := New(store, map[backend.Kind]backend.Client{backend.KindMovie: client}, time.Minute, WithClock(newFakeClock()))

	snap, err := p.Refresh(context.Background(), backend.KindMovie)
	require.NoError(t, err)
	assert.False(t, snap.Reachable)
	assert.Equal(t, 2*time.Millisecond, snap.Latency)
	assert.Contains(t, snap.ErrorDetail, "HTTP 500: boom")
}

func TestPoller_RefreshUnknownKind(t *testing.T) {
	p := New(cache.New(), nil, 0)
	assert.Equal(t, DefaultInterval, p.Interval())

	_, err := p.Refresh(context.Background(), backend.KindIndexer)
	assert.ErrorIs(t, err, backend.ErrConfigMissing)

	// Trigger on an unknown kind is a no-op.
	p.Trigger(backend.KindIndexer)
}

func TestPoller_RefreshHonorsCallerContext(t *testing.T) {
	client := newFakeClient(backend.KindSeries, backend.SeriesStats{})
	client.entered = make(chan struct{}, 1)
	client.release = make(chan struct{})
	defer close(client.release)

	p := New(cache.New(), map[backend.Kind]backend.Client{backend.KindSeries: client}, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Refresh(ctx, backend.KindSeries)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoller_Reconfigure(t *testing.T) {
	store := cache.New()
	sonarr := newFakeClient(backend.KindSeries, backend.SeriesStats{})
	radarr := newFakeClient(backend.KindMovie, backend.MovieStats{})
	p := New(store, map[backend.Kind]backend.Client{backend.KindSeries: sonarr}, time.Minute, WithClock(newFakeClock()))
	run(t, p)

	require.Eventually(t, func() bool {
		_, ok := store.Get(backend.KindSeries)
		return ok
	}, time.Second, 5*time.Millisecond)

	p.Reconfigure(map[backend.Kind]backend.Client{backend.KindMovie: radarr})

	_, ok := store.Get(backend.KindSeries)
	assert.False(t, ok, "disabled service must be cleared")
	assert.Equal(t, []backend.Kind{backend.KindMovie}, p.Kinds())

	require.Eventually(t, func() bool {
		_, ok := store.Get(backend.KindMovie)
		return ok
	}, time.Second, 5*time.Millisecond)

	_, err := p.Refresh(context.Background(), backend.KindSeries)
	assert.ErrorIs(t, err, backend.ErrConfigMissing)

	// Same client instance keeps its worker and its cache entry.
	p.Reconfigure(map[backend.Kind]backend.Client{backend.KindMovie: radarr})
	_, ok = store.Get(backend.KindMovie)
	assert.True(t, ok)
}

func TestPoller_ReconfigureDropsInFlightResult(t *testing.T) {
	store := cache.New()
	old := newFakeClient(backend.KindSeries, backend.SeriesStats{TotalSeries: 1})
	old.entered = make(chan struct{}, 1)
	old.release = make(chan struct{})

	p := New(store, map[backend.Kind]backend.Client{backend.KindSeries: old}, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Refresh(context.Background(), backend.KindSeries)
		errCh <- err
	}()
	<-old.entered

	p.Reconfigure(nil)
	close(old.release)

	assert.ErrorIs(t, <-errCh, ErrStopped)
	_, ok := store.Get(backend.KindSeries)
	assert.False(t, ok)
}

func TestPoller_PublishesTransitions(t *testing.T) {
	bus := events.NewBus(nil, nil)
	defer bus.Close()
	down := bus.Subscribe(events.EventBackendDown, 10)
	up := bus.Subscribe(events.EventBackendRecovered, 10)
	updates := bus.Subscribe(events.EventSnapshotUpdated, 10)

	client := newFakeClient(backend.KindIndexer, backend.IndexerStats{})
	client.healthy.Store(false)
	p := New(cache.New(), map[backend.Kind]backend.Client{backend.KindIndexer: client}, time.Minute,
		WithClock(newFakeClock()), WithBus(bus))

	ctx := context.Background()
	_, _ = p.Refresh(ctx, backend.KindIndexer)
	_, _ = p.Refresh(ctx, backend.KindIndexer)
	client.healthy.Store(true)
	_, _ = p.Refresh(ctx, backend.KindIndexer)

	assert.Len(t, down, 1, "one down event per outage")
	require.Len(t, up, 1)
	rec := (<-up).(*events.BackendRecovered)
	assert.Equal(t, backend.KindIndexer, rec.Kind)
	assert.Len(t, updates, 3)
}

type failingPublisher struct{ calls atomic.Int32 }

func (f *failingPublisher) Publish(context.Context, events.Event) error {
	f.calls.Add(1)
	return errors.New("bus closed")
}

func TestPoller_PublishFailureIsLoggedNotFatal(t *testing.T) {
	var buf syncBuffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	pub := &failingPublisher{}

	client := newFakeClient(backend.KindMovie, backend.MovieStats{TotalMovies: 1})
	p := New(cache.New(), map[backend.Kind]backend.Client{backend.KindMovie: client}, time.Minute,
		WithClock(newFakeClock()), WithBus(pub), WithLogger(log))

	snap, err := p.Refresh(context.Background(), backend.KindMovie)
	require.NoError(t, err)
	assert.True(t, snap.Reachable)

	assert.EqualValues(t, 1, pub.calls.Load())
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "publish event failed")
	assert.Contains(t, out, "type=snapshot.updated")
	assert.Contains(t, out, "bus closed")
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
