// Package ack implements the optimistic mutation coordinator for alert
// acknowledgment. It owns the two-phase protocol the dashboard relies on for
// zero perceived latency: apply a speculative local change first, issue the
// remote mutation, then reconcile against the next authoritative snapshot.
//
// The coordinator patches the alerts poller's cached snapshot directly
// rather than keeping its own shadow copy. That is what closes the race
// where a poll tick resolving between the optimistic removal and the
// post-mutation resync would otherwise "revive" the removed alert: every
// writer goes through the same cache, and the resync triggered on mutation
// resolution (success or failure) restores server truth either way.
package ack

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"aquaview/internal/poll"
	"aquaview/internal/types"
)

// Acker issues the remote acknowledge mutation.
type Acker interface {
	AcknowledgeAlert(ctx context.Context, alertID int64, note string) error
}

// Observer receives the terminal state of every mutation for metrics.
type Observer interface {
	ObserveAck(state types.MutationState, elapsed time.Duration)
}

// Mutation is the record of one acknowledge flow, exposed so callers and
// tests can assert on the intermediate pending state.
type Mutation struct {
	AlertID   int64
	State     types.MutationState
	StartedAt time.Time
}

// Coordinator drives acknowledge mutations against the alerts poller.
type Coordinator struct {
	alerts   *poll.Poller[types.AlertList]
	client   Acker
	logger   *slog.Logger
	observer Observer

	// resyncTimeout bounds the reconciliation refetch, which runs on a
	// background context so a caller hanging up cannot skip reconciliation.
	resyncTimeout time.Duration

	mu       sync.Mutex
	inflight map[int64]*Mutation
}

// Config holds the coordinator dependencies.
type Config struct {
	Alerts        *poll.Poller[types.AlertList]
	Client        Acker
	Logger        *slog.Logger
	Observer      Observer
	ResyncTimeout time.Duration
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ResyncTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Coordinator{
		alerts:        cfg.Alerts,
		client:        cfg.Client,
		logger:        logger,
		observer:      cfg.Observer,
		resyncTimeout: timeout,
		inflight:      make(map[int64]*Mutation),
	}
}

// Pending reports whether an acknowledge mutation for the alert is in flight.
// The UI uses this to disable the control for that alert until resolution.
func (c *Coordinator) Pending(alertID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.inflight[alertID]
	return ok && m.State == types.MutationPending
}

// Acknowledge runs the full acknowledge flow for one alert:
//
//  1. Precondition: the alert is present in the cached snapshot in the open
//     state, and no mutation for it is already pending.
//  2. Optimistic removal from the cached snapshot, synchronously, before the
//     remote call -- the UI never shows pre-mutation state after the action.
//  3. Remote mutation.
//  4. On success: resync. Server truth supersedes the optimistic patch; if
//     the server already reflects the removal nothing visibly changes.
//  5. On failure: reinsert the original alert, resync to resolve whether the
//     mutation partially applied, and return an error.
//
// A second Acknowledge for an alert with a pending mutation is a no-op and
// returns nil. The backend answering "not found" counts as success with a
// lost race: the alert is already attended server-side, and the resync
// removes any doubt.
func (c *Coordinator) Acknowledge(ctx context.Context, alertID int64, note string) error {
	snap, ready := c.alerts.Snapshot()
	if !ready {
		return types.NewAppError(types.ErrCodeSnapshotUnavailable, "alerts snapshot not yet available", nil)
	}
	original, found := snap.Find(alertID)
	if !found || original.State != types.AlertOpen {
		return types.NewAppError(types.ErrCodeNotFoundAlert, "alert not open in current snapshot", nil)
	}

	mutation, first := c.begin(alertID)
	if !first {
		c.logger.DebugContext(ctx, "acknowledge already pending; ignoring duplicate",
			"alert_id", alertID,
		)
		return nil
	}

	// Phase 1: speculative local removal, before the remote call is issued.
	c.alerts.Patch(func(cur types.AlertList) types.AlertList {
		return cur.Without(alertID)
	})

	// Phase 2: remote mutation.
	err := c.client.AcknowledgeAlert(ctx, alertID, note)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundAlert {
			// Already attended on the server; treat as confirmed.
			c.resolve(ctx, mutation, types.MutationConfirmed)
			return nil
		}

		// Roll back: reinsert the alert exactly as it was, unless a
		// fresher poll already restored it.
		c.alerts.Patch(func(cur types.AlertList) types.AlertList {
			if _, present := cur.Find(alertID); present {
				return cur
			}
			out := cur.Clone()
			return append(out, original)
		})
		c.resolve(ctx, mutation, types.MutationRolledBack)

		c.logger.WarnContext(ctx, "acknowledge failed; optimistic removal rolled back",
			"alert_id", alertID,
			"error", err,
		)
		return types.NewAppError(types.ErrCodeAckNotApplied, "acknowledge did not complete", err)
	}

	c.resolve(ctx, mutation, types.MutationConfirmed)
	return nil
}

// begin registers a pending mutation; returns false when one already exists.
func (c *Coordinator) begin(alertID int64) (*Mutation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.inflight[alertID]; ok && m.State == types.MutationPending {
		return nil, false
	}
	m := &Mutation{
		AlertID:   alertID,
		State:     types.MutationPending,
		StartedAt: time.Now(),
	}
	c.inflight[alertID] = m
	return m, true
}

// resolve marks the mutation terminal and always triggers the
// reconciliation refetch. Resyncing on both outcomes is deliberate: it
// resolves ambiguity about partial application on failure, and on success it
// replaces the optimistic patch with server truth before the next regular
// tick would.
func (c *Coordinator) resolve(ctx context.Context, m *Mutation, state types.MutationState) {
	c.mu.Lock()
	m.State = state
	delete(c.inflight, m.AlertID)
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.ObserveAck(state, time.Since(m.StartedAt))
	}

	// The resync runs on its own context: reconciliation must happen even
	// when the originating request has already been cancelled.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.resyncTimeout)
	defer cancel()
	if err := c.alerts.Refetch(rctx); err != nil {
		c.logger.DebugContext(rctx, "post-mutation resync failed; next tick will reconcile",
			"alert_id", m.AlertID,
			"error", err,
		)
	}
}
