// Package poll implements the polling data synchronizer: one Poller per
// remote telemetry resource, each owning a locally cached snapshot kept
// fresh by a fixed-interval fetch loop.
//
// Correctness properties enforced here:
//   - At most one fetch is live per poller. Starting a fetch cancels the
//     context of any fetch still in flight, and a generation counter discards
//     completions that were superseded while running, so a stale response can
//     never overwrite a newer snapshot.
//   - A failed or malformed fetch leaves the previous snapshot untouched and
//     is retried silently on the next tick (stale-while-error). There is no
//     backoff: at a 10-second-class cadence, staleness is the dominant risk,
//     not failure amplification.
//   - Snapshot writes are whole-value swaps under the poller lock, so a
//     reader can never observe a snapshot mid-patch.
//   - After Stop returns, no further snapshot writes occur.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Refetch after the poller has been stopped.
var ErrStopped = errors.New("poller stopped")

// FetchFunc retrieves the current authoritative value of the resource.
// Implementations must honor context cancellation.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Observer receives the outcome of every settled fetch. Superseded fetches
// (cancelled by a newer one) are not reported.
type Observer interface {
	ObservePoll(resource string, err error, elapsed time.Duration)
}

// Poller keeps a locally cached snapshot of one remote resource.
type Poller[T any] struct {
	resource string
	fetch    FetchFunc[T]
	interval time.Duration
	logger   *slog.Logger
	observer Observer

	mu          sync.Mutex
	snap        T
	ready       bool
	lastSuccess time.Time
	gen         uint64             // incremented per issued fetch
	inflight    context.CancelFunc // cancels the fetch holding the current gen
	stopped     bool
	started     bool

	rootCtx  context.Context
	rootStop context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures optional Poller behavior.
type Option func(*pollerOptions)

type pollerOptions struct {
	logger   *slog.Logger
	observer Observer
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *pollerOptions) { o.logger = logger }
}

// WithObserver registers a fetch-outcome observer (metrics).
func WithObserver(obs Observer) Option {
	return func(o *pollerOptions) { o.observer = obs }
}

// New creates a poller for the named resource. The poller is inert until
// Start is called.
func New[T any](resource string, fetch FetchFunc[T], interval time.Duration, opts ...Option) *Poller[T] {
	o := pollerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Poller[T]{
		resource: resource,
		fetch:    fetch,
		interval: interval,
		logger:   o.logger,
		observer: o.observer,
		rootCtx:  ctx,
		rootStop: cancel,
		done:     make(chan struct{}),
	}
}

// Start launches the fetch loop: one immediate fetch, then one per interval.
// Ticks that fire while a fetch is still running coalesce (the loop fetches
// sequentially), which preserves the one-live-fetch guarantee without ever
// queueing requests. Start must be called at most once.
func (p *Poller[T]) Start() {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)

		p.runFetch(p.rootCtx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.rootCtx.Done():
				return
			case <-ticker.C:
				p.runFetch(p.rootCtx)
			}
		}
	}()
}

// Stop cancels the fetch loop and any in-flight request, then waits for the
// loop goroutine to exit. Safe to call multiple times; after the first call
// returns, the snapshot is frozen.
func (p *Poller[T]) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		started := p.started
		if p.inflight != nil {
			p.inflight()
		}
		p.mu.Unlock()

		p.rootStop()
		if started {
			<-p.done
		}
	})
}

// Snapshot returns the current cached value and whether a first successful
// fetch has happened yet. The returned value must be treated as immutable;
// mutations go through Patch.
func (p *Poller[T]) Snapshot() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap, p.ready
}

// LastUpdated returns the time of the most recent successful fetch.
func (p *Poller[T]) LastUpdated() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSuccess, p.ready
}

// Refetch performs a synchronous out-of-band fetch, cancelling any fetch in
// flight. It is the reconciliation entry point for the mutation coordinator;
// a concurrent timer tick that completes later simply wins by completion
// time, which is acceptable because every write is a full-snapshot
// replacement of idempotent data.
func (p *Poller[T]) Refetch(ctx context.Context) error {
	return p.runFetch(ctx)
}

// Patch atomically replaces the cached snapshot with fn(current). The
// function must return a new value rather than mutating its argument in
// place; the swap under the lock is what keeps readers from seeing a torn
// snapshot. Patch is a no-op before the first successful fetch.
func (p *Poller[T]) Patch(fn func(T) T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready || p.stopped {
		return
	}
	p.snap = fn(p.snap)
}

// runFetch issues one fetch and commits its result unless it was superseded
// or the poller stopped while it ran.
func (p *Poller[T]) runFetch(parent context.Context) error {
	fctx, gen, ok := p.begin(parent)
	if !ok {
		return ErrStopped
	}
	defer fctx.cancel()

	start := time.Now()
	val, err := p.fetch(fctx.ctx)
	elapsed := time.Since(start)

	committed := p.commit(gen, val, err)
	if !committed {
		// Superseded by a newer fetch or stopped mid-flight; the outcome is
		// irrelevant either way.
		return nil
	}

	if p.observer != nil {
		p.observer.ObservePoll(p.resource, err, elapsed)
	}
	if err != nil {
		p.logger.DebugContext(fctx.ctx, "poll failed; keeping previous snapshot",
			"resource", p.resource,
			"error", err,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		return err
	}
	return nil
}

type fetchHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// begin registers a new fetch: cancels the in-flight one, bumps the
// generation, and derives the fetch context from the caller's parent.
func (p *Poller[T]) begin(parent context.Context) (fetchHandle, uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return fetchHandle{}, 0, false
	}
	if p.inflight != nil {
		p.inflight()
	}
	ctx, cancel := context.WithCancel(parent)
	p.inflight = cancel
	p.gen++
	return fetchHandle{ctx: ctx, cancel: cancel}, p.gen, true
}

// commit applies a settled fetch result. Returns false when the fetch was
// superseded (its generation is no longer current) or the poller stopped.
func (p *Poller[T]) commit(gen uint64, val T, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || gen != p.gen {
		return false
	}
	p.inflight = nil
	if err == nil {
		p.snap = val
		p.ready = true
		p.lastSuccess = time.Now()
	}
	return true
}
