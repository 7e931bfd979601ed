package ack

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"aquaview/internal/poll"
	"aquaview/internal/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// fakeBackend is the remote source of truth for the alerts poller: a mutable
// alert list plus a fetch counter.
type fakeBackend struct {
	mu      sync.Mutex
	alerts  types.AlertList
	fetches atomic.Int32
}

func (b *fakeBackend) fetch(ctx context.Context) (types.AlertList, error) {
	b.fetches.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.alerts.Clone(), nil
}

func (b *fakeBackend) set(alerts types.AlertList) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts = alerts
}

// mockAcker is a controllable Acker.
type mockAcker struct {
	mu      sync.Mutex
	err     error
	block   chan struct{} // non-nil: AcknowledgeAlert waits until closed
	calls   atomic.Int32
	lastID  int64
	started chan struct{} // non-nil: closed when a call begins
}

func (m *mockAcker) AcknowledgeAlert(ctx context.Context, alertID int64, note string) error {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastID = alertID
	started := m.started
	block := m.block
	err := m.err
	m.mu.Unlock()

	if started != nil {
		close(started)
		m.mu.Lock()
		m.started = nil
		m.mu.Unlock()
	}
	if block != nil {
		<-block
	}
	return err
}

func openAlert(id int64) types.Alert {
	return types.Alert{
		ID:        id,
		Level:     types.LevelHigh,
		Category:  types.CategoryOverPressure,
		State:     types.AlertOpen,
		CreatedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

// newFixture builds a primed alerts poller (first fetch done) plus a
// coordinator over the given acker.
func newFixture(t *testing.T, backend *fakeBackend, acker Acker) (*poll.Poller[types.AlertList], *Coordinator) {
	t.Helper()
	p := poll.New("alerts", backend.fetch, time.Hour, poll.WithLogger(quietLogger()))
	if err := p.Refetch(context.Background()); err != nil {
		t.Fatalf("priming fetch: %v", err)
	}
	t.Cleanup(p.Stop)

	c := New(Config{
		Alerts: p,
		Client: acker,
		Logger: quietLogger(),
	})
	return p, c
}

func TestAcknowledgeRemovesOptimisticallyBeforeRemoteCompletes(t *testing.T) {
	backend := &fakeBackend{alerts: types.AlertList{openAlert(1), openAlert(2)}}
	acker := &mockAcker{block: make(chan struct{}), started: make(chan struct{})}
	p, c := newFixture(t, backend, acker)

	started := acker.started
	block := acker.block

	done := make(chan error, 1)
	go func() { done <- c.Acknowledge(context.Background(), 1, "from test") }()

	<-started

	// The alert is gone from the cache while the remote call is still pending.
	snap, _ := p.Snapshot()
	if _, present := snap.Find(1); present {
		t.Error("optimistic removal did not happen before remote completion")
	}
	if !c.Pending(1) {
		t.Error("mutation should be pending")
	}

	// Server applies the ack, then the remote call resolves.
	backend.set(types.AlertList{openAlert(2)})
	close(block)

	if err := <-done; err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if c.Pending(1) {
		t.Error("mutation still pending after resolution")
	}

	snap, _ = p.Snapshot()
	if _, present := snap.Find(1); present {
		t.Error("alert present after confirmed ack and resync")
	}
}

func TestAcknowledgeSuccessAlwaysResyncs(t *testing.T) {
	backend := &fakeBackend{alerts: types.AlertList{openAlert(1)}}
	acker := &mockAcker{}
	p, c := newFixture(t, backend, acker)

	before := backend.fetches.Load()
	backend.set(types.AlertList{})
	if err := c.Acknowledge(context.Background(), 1, ""); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	if backend.fetches.Load() != before+1 {
		t.Errorf("resync fetches = %d, want exactly one more than %d", backend.fetches.Load(), before)
	}
	if _, ready := p.Snapshot(); !ready {
		t.Fatal("snapshot lost")
	}
}

func TestAcknowledgeFailureRollsBackAndResyncs(t *testing.T) {
	backend := &fakeBackend{alerts: types.AlertList{openAlert(1), openAlert(2)}}
	acker := &mockAcker{err: types.NewAppError(types.ErrCodeUpstreamUnavailable, "backend down", nil)}
	p, c := newFixture(t, backend, acker)

	before := backend.fetches.Load()
	err := c.Acknowledge(context.Background(), 1, "")
	if err == nil {
		t.Fatal("expected error from failed mutation")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeAckNotApplied {
		t.Errorf("error = %v, want ack_not_applied", err)
	}

	// The backend still lists the alert, and after rollback + resync the
	// snapshot must contain it in its original open state.
	snap, _ := p.Snapshot()
	a, present := snap.Find(1)
	if !present {
		t.Fatal("alert missing after rollback")
	}
	if a.State != types.AlertOpen {
		t.Errorf("alert state = %q, want abierta", a.State)
	}
	if backend.fetches.Load() != before+1 {
		t.Errorf("failure path must also resync (fetches = %d, want %d)", backend.fetches.Load(), before+1)
	}
	if c.Pending(1) {
		t.Error("mutation still pending after rollback")
	}
}

func TestAcknowledgePendingDuplicateIsNoop(t *testing.T) {
	backend := &fakeBackend{alerts: types.AlertList{openAlert(1)}}
	acker := &mockAcker{block: make(chan struct{}), started: make(chan struct{})}
	_, c := newFixture(t, backend, acker)

	started := acker.started
	block := acker.block

	done := make(chan error, 1)
	go func() { done <- c.Acknowledge(context.Background(), 1, "") }()
	<-started

	// Second acknowledge while the first is pending: no-op, no second call.
	if err := c.Acknowledge(context.Background(), 1, ""); err != nil {
		t.Errorf("duplicate ack returned error: %v", err)
	}
	if got := acker.calls.Load(); got != 1 {
		t.Errorf("remote calls = %d, want 1", got)
	}

	backend.set(types.AlertList{})
	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first Acknowledge: %v", err)
	}
}

func TestAcknowledgeUnknownAlert(t *testing.T) {
	backend := &fakeBackend{alerts: types.AlertList{openAlert(1)}}
	acker := &mockAcker{}
	_, c := newFixture(t, backend, acker)

	err := c.Acknowledge(context.Background(), 404, "")
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeNotFoundAlert {
		t.Errorf("error = %v, want not_found_alert", err)
	}
	if acker.calls.Load() != 0 {
		t.Error("remote call issued for unknown alert")
	}
}

func TestAcknowledgeBeforeFirstSnapshot(t *testing.T) {
	p := poll.New("alerts", func(ctx context.Context) (types.AlertList, error) {
		return nil, errors.New("down")
	}, time.Hour, poll.WithLogger(quietLogger()))
	t.Cleanup(p.Stop)

	c := New(Config{Alerts: p, Client: &mockAcker{}, Logger: quietLogger()})

	err := c.Acknowledge(context.Background(), 1, "")
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeSnapshotUnavailable {
		t.Errorf("error = %v, want snapshot_unavailable", err)
	}
}

func TestAcknowledgeLostRaceTreatedAsConfirmed(t *testing.T) {
	// The backend answers 404 when another operator attended the alert
	// first. That is a success for our purposes: the alert is gone either way.
	backend := &fakeBackend{alerts: types.AlertList{openAlert(1)}}
	acker := &mockAcker{err: types.NewAppError(types.ErrCodeNotFoundAlert, "already attended", nil)}
	p, c := newFixture(t, backend, acker)

	backend.set(types.AlertList{})
	if err := c.Acknowledge(context.Background(), 1, ""); err != nil {
		t.Fatalf("lost race should not surface an error, got %v", err)
	}

	snap, _ := p.Snapshot()
	if _, present := snap.Find(1); present {
		t.Error("alert present after lost-race confirmation")
	}
}

func TestPollRevivalIsReconciledByResync(t *testing.T) {
	// Models the hazard from the alerts-panel flow: a timer-driven poll
	// resolves mid-mutation with a snapshot that still contains the alert,
	// "reviving" it. The mutation's own resync must settle the final state
	// without the alert once the server reflects the ack.
	backend := &fakeBackend{alerts: types.AlertList{openAlert(1), openAlert(2)}}
	acker := &mockAcker{block: make(chan struct{}), started: make(chan struct{})}
	p, c := newFixture(t, backend, acker)

	started := acker.started
	block := acker.block

	done := make(chan error, 1)
	go func() { done <- c.Acknowledge(context.Background(), 1, "") }()
	<-started

	// Concurrent poll tick: the backend has not applied the ack yet, so the
	// revived snapshot contains alert 1 again.
	if err := p.Refetch(context.Background()); err != nil {
		t.Fatalf("tick refetch: %v", err)
	}
	snap, _ := p.Snapshot()
	if _, present := snap.Find(1); !present {
		t.Fatal("test setup: tick should have revived the alert")
	}

	// Server applies the ack; the mutation resolves and resyncs.
	backend.set(types.AlertList{openAlert(2)})
	close(block)
	if err := <-done; err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	snap, _ = p.Snapshot()
	if _, present := snap.Find(1); present {
		t.Error("revived alert survived the post-mutation resync")
	}
}

func TestRollbackDoesNotDuplicateRevivedAlert(t *testing.T) {
	backend := &fakeBackend{alerts: types.AlertList{openAlert(1)}}
	acker := &mockAcker{
		err:     types.NewAppError(types.ErrCodeUpstreamUnavailable, "backend down", nil),
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	p, c := newFixture(t, backend, acker)

	started := acker.started
	block := acker.block

	done := make(chan error, 1)
	go func() { done <- c.Acknowledge(context.Background(), 1, "") }()
	<-started

	// A tick restores the alert before the failure resolves.
	if err := p.Refetch(context.Background()); err != nil {
		t.Fatalf("tick refetch: %v", err)
	}

	close(block)
	if err := <-done; err == nil {
		t.Fatal("expected failure")
	}

	snap, _ := p.Snapshot()
	count := 0
	for _, a := range snap {
		if a.ID == 1 {
			count++
		}
	}
	if count != 1 {
		t.Errorf("alert 1 appears %d times after rollback, want exactly 1", count)
	}
}
