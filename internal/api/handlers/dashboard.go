// Package handlers contains the HTTP handler implementations for the AquaView
// dashboard API. Read endpoints serve classified view models straight from the
// in-memory snapshots; the only mutation is the alert acknowledgment, which is
// delegated to the ack coordinator.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"aquaview/internal/ack"
	"aquaview/internal/core"
	"aquaview/internal/derive"
	"aquaview/internal/poll"
	"aquaview/internal/types"
)

// KPIView is the KPI snapshot plus the derived efficiency trend direction.
type KPIView struct {
	types.KPISnapshot
	TrendDirection types.TrendDirection `json:"trend_direction"`
}

// SectorView is a sector record plus its derived presentation fields: the
// visual tier, efficiency trend direction, and pressure classification
// against the configured operating band.
type SectorView struct {
	types.Sector
	Tier           types.VisualTier     `json:"tier"`
	TrendDirection types.TrendDirection `json:"trend_direction"`
	PressureClass  types.PressureClass  `json:"pressure_class"`
}

// AlertView is an alert record plus its display category (unknown categories
// collapse to the fallback icon) and whether an acknowledge mutation for it
// is currently in flight.
type AlertView struct {
	types.Alert
	DisplayCategory types.AlertCategory `json:"display_category"`
	PendingAck      bool                `json:"pending_ack"`
}

// ackRequestBody is the optional request body for the acknowledge endpoint.
type ackRequestBody struct {
	Note string `json:"nota"`
}

// ackResponseBody reports the terminal state of the acknowledge flow.
type ackResponseBody struct {
	AlertID int64  `json:"alert_id"`
	Status  string `json:"status"`
}

// DashboardConfig holds the dashboard handler dependencies.
type DashboardConfig struct {
	KPIs    *poll.Poller[types.KPISnapshot]
	Sectors *poll.Poller[types.SectorList]
	Alerts  *poll.Poller[types.AlertList]
	Acks    *ack.Coordinator
	Band    types.PressureBand

	// StaleAfter marks responses stale when the backing snapshot is older
	// than this. Zero disables the flag.
	StaleAfter time.Duration

	Logger *slog.Logger
}

// DashboardHandler maps HTTP requests to snapshot reads and coordinator
// mutations.
type DashboardHandler struct {
	kpis       *poll.Poller[types.KPISnapshot]
	sectors    *poll.Poller[types.SectorList]
	alerts     *poll.Poller[types.AlertList]
	acks       *ack.Coordinator
	band       types.PressureBand
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler with the provided
// dependencies.
func NewDashboardHandler(cfg DashboardConfig) *DashboardHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{
		kpis:       cfg.KPIs,
		sectors:    cfg.Sectors,
		alerts:     cfg.Alerts,
		acks:       cfg.Acks,
		band:       cfg.Band,
		staleAfter: cfg.StaleAfter,
		logger:     logger,
	}
}

// RegisterRoutes mounts the dashboard endpoints onto the mux.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/kpis", h.HandleGetKPIs)
		r.Get("/sectors", h.HandleGetSectors)
		r.Get("/alerts", h.HandleGetAlerts)
		r.Post("/alerts/{id}/ack", h.HandleAckAlert)
	})
}

// meta builds the freshness metadata for a snapshot updated at last. The ok
// flag mirrors Snapshot's: the handlers only call this after a snapshot
// exists, so it is always true in practice.
func (h *DashboardHandler) meta(last time.Time, ok bool) *types.ResponseMeta {
	if !ok {
		return nil
	}
	m := &types.ResponseMeta{LastUpdated: &last}
	if h.staleAfter > 0 && time.Since(last) > h.staleAfter {
		m.Stale = true
	}
	return m
}

// snapshotUnavailable is the error returned before a resource's first
// successful fetch.
func snapshotUnavailable(resource string) *types.AppError {
	return types.NewAppErrorWithDetails(
		types.ErrCodeSnapshotUnavailable,
		"no data synchronized yet; retry shortly",
		nil,
		map[string]any{"resource": resource},
	)
}

// HandleGetKPIs handles GET /v1/dashboard/kpis.
func (h *DashboardHandler) HandleGetKPIs(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.kpis.Snapshot()
	if !ok {
		core.Error(w, r, snapshotUnavailable("kpis"))
		return
	}

	view := KPIView{
		KPISnapshot:    snap,
		TrendDirection: derive.ClassifyTrend(snap.EfficiencyTrend),
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: view,
		Meta: h.meta(h.kpis.LastUpdated()),
	})
}

// HandleGetSectors handles GET /v1/dashboard/sectors.
func (h *DashboardHandler) HandleGetSectors(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.sectors.Snapshot()
	if !ok {
		core.Error(w, r, snapshotUnavailable("sectors"))
		return
	}

	views := make([]SectorView, len(snap))
	for i, s := range snap {
		views[i] = SectorView{
			Sector:         s,
			Tier:           derive.MapStateToTier(s.RawState),
			TrendDirection: derive.ClassifyTrend(s.Trend),
			PressureClass:  derive.ClassifyPressure(s.PressurePSI, h.band),
		}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: views,
		Meta: h.meta(h.sectors.LastUpdated()),
	})
}

// HandleGetAlerts handles GET /v1/dashboard/alerts. Alerts are returned in
// triage order: priority rank descending, then newest first.
func (h *DashboardHandler) HandleGetAlerts(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.alerts.Snapshot()
	if !ok {
		core.Error(w, r, snapshotUnavailable("alerts"))
		return
	}

	sorted := derive.SortAlerts(snap)
	views := make([]AlertView, len(sorted))
	for i, a := range sorted {
		views[i] = AlertView{
			Alert:           a,
			DisplayCategory: a.Category.Normalize(),
			PendingAck:      h.acks.Pending(a.ID),
		}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: views,
		Meta: h.meta(h.alerts.LastUpdated()),
	})
}

// HandleAckAlert handles POST /v1/dashboard/alerts/{id}/ack.
//
// Outcomes:
//   - 200 confirmed: the backend applied the mutation (or another operator
//     already had; either way the alert is gone).
//   - 202 pending: an acknowledge for this alert is already in flight; the
//     request is a no-op.
//   - 404: the alert is unknown or no longer open.
//   - 502 ack_not_applied: the mutation failed and was rolled back.
//   - 503 snapshot_unavailable: no alert snapshot yet.
func (h *DashboardHandler) HandleAckAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || alertID <= 0 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidID,
			"alert id must be a positive integer",
			err,
		))
		return
	}

	// The note is optional; an empty body means no note.
	var body ackRequestBody
	if r.ContentLength != 0 {
		if err := core.DecodeJSON(w, r, &body); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	if h.acks.Pending(alertID) {
		core.JSON(w, r, http.StatusAccepted, core.APIResponse{
			Data: ackResponseBody{AlertID: alertID, Status: string(types.MutationPending)},
		})
		return
	}

	if err := h.acks.Acknowledge(r.Context(), alertID, body.Note); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: ackResponseBody{AlertID: alertID, Status: string(types.MutationConfirmed)},
	})
}
