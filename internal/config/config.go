// Package config defines the global configuration structure for the AquaView
// sync service. Configuration is loaded once at process startup and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format causes the application to exit
// immediately on startup (fail fast).
package config

import (
	"time"

	"aquaview/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values such as the operator PIN.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the AquaView sync service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"aquaview-sync"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server        ServerConfig
	Backend       BackendConfig
	Poll          PollConfig
	Pressure      PressureConfig
	Security      SecurityConfig
	Observability ObservabilityConfig
	AWS           AWSConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// BackendConfig holds the upstream telemetry backend endpoint and the
// operator credential used for alert acknowledgements.
type BackendConfig struct {
	BaseURL        string        `envconfig:"BACKEND_BASE_URL" validate:"required,url"` // e.g., https://ops-backend.sapal.internal
	RequestTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"8s"`
	UserAgent      string        `envconfig:"BACKEND_USER_AGENT" default:"AquaView-Sync/1.0"`

	// OperatorPIN authorizes acknowledge mutations against the backend.
	// Resolved from SSM or Env.
	OperatorPIN SecretString `envconfig:"OPERATOR_PIN" validate:"required,min=4"`
}

// PollConfig holds per-resource poll cadences and mutation reconciliation
// tuning. All three resources default to the same 10s cadence; they can be
// tuned independently when one feed is more expensive than the others.
type PollConfig struct {
	KPIInterval    time.Duration `envconfig:"POLL_KPI_INTERVAL" default:"10s" validate:"min=1s"`
	SectorInterval time.Duration `envconfig:"POLL_SECTOR_INTERVAL" default:"10s" validate:"min=1s"`
	AlertInterval  time.Duration `envconfig:"POLL_ALERT_INTERVAL" default:"10s" validate:"min=1s"`

	// ResyncTimeout bounds the reconciliation refetch that follows every
	// acknowledge mutation, success or rollback.
	ResyncTimeout time.Duration `envconfig:"ACK_RESYNC_TIMEOUT" default:"10s"`
}

// PressureConfig holds the operating pressure band used to classify sector
// pressure readings. Readings below MinPSI are flagged low, above MaxPSI high.
type PressureConfig struct {
	MinPSI float64 `envconfig:"PRESSURE_MIN_PSI" default:"35" validate:"gt=0"`
	MaxPSI float64 `envconfig:"PRESSURE_MAX_PSI" default:"42" validate:"gtfield=MinPSI"`
}

// Band returns the configured pressure band as a domain value.
func (p PressureConfig) Band() types.PressureBand {
	return types.PressureBand{MinPSI: p.MinPSI, MaxPSI: p.MaxPSI}
}

// SecurityConfig holds CORS settings for the dashboard frontend.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"AquaView"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// AWSConfig holds AWS regional configuration for SSM and CloudWatch.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
