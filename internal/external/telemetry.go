package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"aquaview/internal/types"
)

// maxResponseBytes caps how much of a backend response is read into memory.
// The largest legitimate payload (the full open-alerts list) is a few KB.
const maxResponseBytes = 4 << 20 // 4 MB

// Backend resource paths, per the telemetry service's REST contract.
const (
	kpiPath     = "/sim/kpis"
	sectorsPath = "/sim/sectors"
	alertsPath  = "/sim/alerts?estado=abierta"
	ackPathFmt  = "/sim/alerts/%d/ack"
)

// TelemetryClient speaks the telemetry backend's REST contract: three polled
// GET resources plus the alert acknowledgment mutation. Every GET carries a
// no-store cache directive so polling always observes fresh server state,
// and every request honors context cancellation so an in-flight fetch can be
// aborted when a newer one starts.
type TelemetryClient struct {
	baseURL string
	polls   *BaseClient // zero-retry: the poll tick is the retry loop
	acks    *BaseClient // bounded retries: acks are idempotent backend-side
	pin     types.SecretString
}

// TelemetryClientConfig configures a TelemetryClient.
type TelemetryClientConfig struct {
	BaseURL     string
	OperatorPIN types.SecretString
	UserAgent   string
}

// NewTelemetryClient builds a client over the shared http.Client. Poll and
// mutation traffic get separate breakers so a flapping poll resource cannot
// block acknowledgments, and vice versa.
func NewTelemetryClient(httpClient *http.Client, cfg TelemetryClientConfig, opts ...BaseClientOption) *TelemetryClient {
	agent := cfg.UserAgent
	if agent == "" {
		agent = "Aquaview/1.0"
	}
	return &TelemetryClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		polls:   NewBaseClient(httpClient, "telemetry-polls", PollRetryPolicy(), agent, opts...),
		acks:    NewBaseClient(httpClient, "telemetry-acks", MutationRetryPolicy(), agent, opts...),
		pin:     cfg.OperatorPIN,
	}
}

// GetKPIs fetches the current KPI snapshot.
func (t *TelemetryClient) GetKPIs(ctx context.Context) (types.KPISnapshot, error) {
	var snap types.KPISnapshot
	if err := t.getJSON(ctx, kpiPath, &snap); err != nil {
		return types.KPISnapshot{}, err
	}
	if err := snap.Validate(); err != nil {
		return types.KPISnapshot{}, types.NewAppError(types.ErrCodeUpstreamMalformed, "kpi snapshot failed validation", err)
	}
	return snap, nil
}

// GetSectors fetches the full sector list.
func (t *TelemetryClient) GetSectors(ctx context.Context) (types.SectorList, error) {
	var env types.SectorsEnvelope
	if err := t.getJSON(ctx, sectorsPath, &env); err != nil {
		return nil, err
	}
	if err := env.Items.Validate(); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamMalformed, "sector list failed validation", err)
	}
	return env.Items, nil
}

// GetOpenAlerts fetches the alerts currently in the open lifecycle state.
func (t *TelemetryClient) GetOpenAlerts(ctx context.Context) (types.AlertList, error) {
	var env types.AlertsEnvelope
	if err := t.getJSON(ctx, alertsPath, &env); err != nil {
		return nil, err
	}
	if err := env.Items.Validate(); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamMalformed, "alert list failed validation", err)
	}
	return env.Items, nil
}

// AcknowledgeAlert issues the acknowledge mutation for one alert. The
// backend answers 404 when the alert is unknown or already attended; that is
// surfaced as a not-found AppError so the coordinator can distinguish "lost
// the race" from a transport failure.
func (t *TelemetryClient) AcknowledgeAlert(ctx context.Context, alertID int64, note string) error {
	body, err := json.Marshal(types.AckRequest{PIN: t.pin.Unmask(), Note: note})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "encoding ack request", err)
	}

	url := t.baseURL + fmt.Sprintf(ackPathFmt, alertID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "building ack request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	resp, err := t.acks.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found or already attended", nil)
	default:
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamRejected, "acknowledge rejected by backend", nil,
			map[string]any{"status": resp.StatusCode})
	}
}

// getJSON performs a polled GET and decodes the body into dst. Any non-2xx
// status or undecodable body is an error; callers higher up treat both the
// same way (keep the previous snapshot, retry next tick).
func (t *TelemetryClient) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "building poll request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := t.polls.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamUnavailable, "poll returned non-success status", nil,
			map[string]any{"status": resp.StatusCode, "path": path})
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "reading poll response", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamMalformed, "decoding poll response", err)
	}
	return nil
}
