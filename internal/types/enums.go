package types

// SectorState is the sector condition as reported by the telemetry backend.
// Wire values are the backend's Spanish enum and are authoritative; values
// outside the known set are preserved as-is and degrade to the normal tier
// during classification rather than failing.
type SectorState string

const (
	SectorStateNormal   SectorState = "normal"
	SectorStateWarning  SectorState = "alerta"
	SectorStateCritical SectorState = "critico"
)

// VisualTier is the UI-facing severity classification derived from a
// SectorState. It is kept distinct from SectorState because presentation may
// need an independent mapping from what the backend reports.
type VisualTier string

const (
	TierNormal   VisualTier = "normal"
	TierWarning  VisualTier = "warning"
	TierCritical VisualTier = "critical"
)

// TrendDirection is the coarse direction derived from a recent sample series.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// AlertLevel is the ordinal priority of an alert: alta > media > baja.
type AlertLevel string

const (
	LevelHigh   AlertLevel = "alta"
	LevelMedium AlertLevel = "media"
	LevelLow    AlertLevel = "baja"
)

// AlertCategory identifies the anomaly class behind an alert. The set is
// open-ended on the backend side; unrecognized values must never break
// classification, so callers treat anything outside the known constants as
// CategoryOther while keeping the raw value for display.
type AlertCategory string

const (
	CategoryNonBillable   AlertCategory = "no_facturable"
	CategoryOverPressure  AlertCategory = "sobrepresion"
	CategoryLowEfficiency AlertCategory = "baja_eficiencia"
	CategoryOther         AlertCategory = "other"
)

// Known reports whether the category is one of the closed set of categories
// this layer understands.
func (c AlertCategory) Known() bool {
	switch c {
	case CategoryNonBillable, CategoryOverPressure, CategoryLowEfficiency:
		return true
	}
	return false
}

// Normalize maps unrecognized categories to CategoryOther.
func (c AlertCategory) Normalize() AlertCategory {
	if c.Known() {
		return c
	}
	return CategoryOther
}

// AlertState is the lifecycle state of an alert. The only transition this
// layer drives is abierta -> atendida (acknowledgment); escalada is a UI-only
// label with no remote mutation behind it.
type AlertState string

const (
	AlertOpen         AlertState = "abierta"
	AlertAcknowledged AlertState = "atendida"
	AlertEscalated    AlertState = "escalada"
)

// PressureClass is the band classification of a sector pressure reading.
type PressureClass string

const (
	PressureNormal    PressureClass = "normal"
	PressureAnomalous PressureClass = "anomalous"
)

// MutationState tracks a pending optimistic mutation through its two-phase
// protocol: applied speculatively, then confirmed or rolled back once the
// remote call resolves.
type MutationState string

const (
	MutationPending    MutationState = "pending"
	MutationConfirmed  MutationState = "confirmed"
	MutationRolledBack MutationState = "rolled_back"
)
