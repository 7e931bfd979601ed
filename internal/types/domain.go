// Package types defines the shared domain model for the Aquaview dashboard
// sync service. Wire-format structs mirror the telemetry backend's JSON
// contract (Spanish field names); every entity is created by the backend and
// only mirrored locally, so the structs here carry no local-only fields beyond
// what the sync layer needs.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// KPISnapshot is the process-wide efficiency summary, replaced wholesale on
// each poll.
type KPISnapshot struct {
	Timestamp           time.Time `json:"ts"`
	EfficiencyRatio     float64   `json:"eficiencia"`
	EfficiencyTrend     []float64 `json:"eficiencia_trend"`
	SectorsAtRisk       int       `json:"sectores_en_riesgo"`
	AlertsHandled24h    int       `json:"alertas_atendidas_24h"`
	DecisionTimeMinutes float64   `json:"tiempo_decision_min"`
}

// Validate checks the backend-guaranteed invariants. A snapshot failing
// validation is treated like an unparseable body: discarded, previous
// snapshot kept.
func (k *KPISnapshot) Validate() error {
	if k.EfficiencyRatio < 0 || k.EfficiencyRatio > 1 {
		return fmt.Errorf("efficiency ratio %.4f outside [0,1]", k.EfficiencyRatio)
	}
	if k.SectorsAtRisk < 0 {
		return fmt.Errorf("negative sectors_at_risk %d", k.SectorsAtRisk)
	}
	if k.AlertsHandled24h < 0 {
		return fmt.Errorf("negative alerts_handled_24h %d", k.AlertsHandled24h)
	}
	if k.DecisionTimeMinutes < 0 {
		return fmt.Errorf("negative decision_time_minutes %.2f", k.DecisionTimeMinutes)
	}
	return nil
}

// Sector is one physical hydraulic sector. Identity is the stable backend ID.
type Sector struct {
	ID          int64       `json:"id"`
	Name        string      `json:"nombre"`
	RawState    SectorState `json:"estado"`
	Efficiency  float64     `json:"eficiencia"`
	PressurePSI float64     `json:"presion_psi"`
	OpenAlerts  int         `json:"alertas_abiertas"`
	Trend       []float64   `json:"tendencia"`
}

// Validate checks the backend-guaranteed invariants for a sector record.
func (s *Sector) Validate() error {
	if s.Efficiency < 0 || s.Efficiency > 1 {
		return fmt.Errorf("sector %d: efficiency %.4f outside [0,1]", s.ID, s.Efficiency)
	}
	if s.OpenAlerts < 0 {
		return fmt.Errorf("sector %d: negative open alert count %d", s.ID, s.OpenAlerts)
	}
	return nil
}

// SectorList is the sectors collection as polled from the backend.
type SectorList []Sector

// Validate checks every sector record.
func (sl SectorList) Validate() error {
	for i := range sl {
		if err := sl[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Alert is one detected anomaly. Identity is the stable backend ID.
//
// Explanation is an opaque structured payload produced by the backend's
// detection pipeline; it is passed through untouched and never interpreted
// by this layer.
type Alert struct {
	ID               int64           `json:"id"`
	Level            AlertLevel      `json:"nivel"`
	Category         AlertCategory   `json:"tipo"`
	Title            string          `json:"titulo"`
	Summary          string          `json:"resumen"`
	ImpactM3PerMonth *float64        `json:"impacto_m3_mes"`
	Recommendation   string          `json:"recomendacion"`
	SectorID         int64           `json:"sector_id"`
	CreatedAt        time.Time       `json:"created_at"`
	State            AlertState      `json:"estado"`
	Explanation      json.RawMessage `json:"explicacion"`
}

// Validate checks the backend-guaranteed invariants for an alert record.
func (a *Alert) Validate() error {
	if a.ImpactM3PerMonth != nil && *a.ImpactM3PerMonth < 0 {
		return fmt.Errorf("alert %d: negative impact volume %.2f", a.ID, *a.ImpactM3PerMonth)
	}
	return nil
}

// AlertList is the open-alerts collection as polled from the backend. The
// pollers hand snapshots out by value, so mutations must always go through
// Clone to avoid aliasing a shared backing array.
type AlertList []Alert

// Validate checks every alert record.
func (al AlertList) Validate() error {
	for i := range al {
		if err := al[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a shallow copy with its own backing array. Element fields
// (including the Explanation raw message) still alias the originals; callers
// treat alerts as immutable values, so that is sufficient.
func (al AlertList) Clone() AlertList {
	if al == nil {
		return nil
	}
	out := make(AlertList, len(al))
	copy(out, al)
	return out
}

// Find returns the alert with the given ID, or false when absent.
func (al AlertList) Find(id int64) (Alert, bool) {
	for i := range al {
		if al[i].ID == id {
			return al[i], true
		}
	}
	return Alert{}, false
}

// Without returns a copy of the list with the given alert removed.
func (al AlertList) Without(id int64) AlertList {
	out := make(AlertList, 0, len(al))
	for i := range al {
		if al[i].ID != id {
			out = append(out, al[i])
		}
	}
	return out
}

// SectorsEnvelope and AlertsEnvelope are the backend's list response bodies.
type SectorsEnvelope struct {
	Items SectorList `json:"items"`
}

// AlertsEnvelope wraps the alerts list response.
type AlertsEnvelope struct {
	Items AlertList `json:"items"`
}

// AckRequest is the body of the alert acknowledgment mutation.
type AckRequest struct {
	PIN  string `json:"pin"`
	Note string `json:"nota,omitempty"`
}

// AckResponse is the backend's acknowledgment confirmation. The backend only
// guarantees a success indicator; no other fields are required.
type AckResponse struct {
	Status string `json:"status"`
}

// PressureBand is the operational pressure range considered normal. The
// bounds are configuration, not business logic.
type PressureBand struct {
	MinPSI float64
	MaxPSI float64
}

// Contains reports whether the reading falls inside the band (inclusive).
func (b PressureBand) Contains(psi float64) bool {
	return psi >= b.MinPSI && psi <= b.MaxPSI
}

// ResponseMeta carries snapshot freshness alongside API payloads. Stale is
// set when the last poll of the resource failed and the payload is the
// previous successful snapshot.
type ResponseMeta struct {
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Stale       bool       `json:"stale,omitempty"`
}
