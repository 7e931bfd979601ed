package types

import "log/slog"

// redactedPlaceholder replaces secret values in every rendered form.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString carries a sensitive value (the operator PIN) in a form that
// cannot leak by accident: fmt verbs, JSON marshalling, and slog attributes
// all render the redaction placeholder. Unmask is the single escape hatch
// and is called only where the raw value goes on the wire to the backend.
type SecretString string

// String implements fmt.Stringer with the redaction placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON renders the redaction placeholder, so config dumps and
// structured log entries never contain the raw value.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// LogValue implements slog.LogValuer, covering the case of a SecretString
// passed directly as a log attribute value.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}
