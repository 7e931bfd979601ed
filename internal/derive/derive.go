// Package derive contains the pure classification functions that turn raw
// polled telemetry into stable UI-facing values: trend direction, visual
// tier, alert ordering, and pressure band classification.
//
// Every function here is stateless and deterministic, so the API layer can
// call them on every request without caching concerns. None of them may
// fail: unknown enum values always degrade to a safe default.
package derive

import (
	"sort"

	"aquaview/internal/types"
)

// TrendThreshold is the relative change between the first and last sample of
// a series required to classify the trend as up or down. The threshold is
// relative, not absolute, so it is scale-invariant across sectors with
// different baseline efficiency.
const TrendThreshold = 0.02

// ClassifyTrend compares the newest sample of a series against the oldest.
// Series shorter than two samples carry no signal and classify as stable.
func ClassifyTrend(series []float64) types.TrendDirection {
	if len(series) < 2 {
		return types.TrendStable
	}
	first := series[0]
	last := series[len(series)-1]

	switch {
	case last > first*(1+TrendThreshold):
		return types.TrendUp
	case last < first*(1-TrendThreshold):
		return types.TrendDown
	default:
		return types.TrendStable
	}
}

// MapStateToTier translates the backend's sector state into the UI severity
// tier. Unknown or missing states degrade to the normal tier rather than
// failing; the backend enum is open-ended from this layer's perspective.
func MapStateToTier(state types.SectorState) types.VisualTier {
	switch state {
	case types.SectorStateWarning:
		return types.TierWarning
	case types.SectorStateCritical:
		return types.TierCritical
	default:
		return types.TierNormal
	}
}

// PriorityRank maps an alert level to its ordinal rank: alta=2, media=1,
// baja=0. Unrecognized levels rank lowest.
func PriorityRank(level types.AlertLevel) int {
	switch level {
	case types.LevelHigh:
		return 2
	case types.LevelMedium:
		return 1
	default:
		return 0
	}
}

// SortAlerts returns a new list ordered by priority rank descending, with
// ties broken by creation time descending (newest first) and finally by ID
// descending. The ID tie-break makes the order total: no two distinct alerts
// ever compare equal, so the display order is stable across polls.
func SortAlerts(alerts types.AlertList) types.AlertList {
	out := alerts.Clone()
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := PriorityRank(out[i].Level), PriorityRank(out[j].Level)
		if ri != rj {
			return ri > rj
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// ClassifyPressure classifies a pressure reading against the configured
// operational band.
func ClassifyPressure(psi float64, band types.PressureBand) types.PressureClass {
	if band.Contains(psi) {
		return types.PressureNormal
	}
	return types.PressureAnomalous
}
