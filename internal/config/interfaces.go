package config

import "context"

// SecretProvider abstracts the retrieval of secrets to support both
// AWS SSM Parameter Store (deployed environments) and environment variables
// (local development). The operator PIN is the main consumer: it is stored
// as a SecureString parameter and must never appear in the repository or
// in deployment manifests.
type SecretProvider interface {
	// GetParametersBatch retrieves multiple secret values, batching requests
	// to avoid throttling. The keys slice contains the SSM parameter paths
	// (or equivalent identifiers) to resolve. Returns a map of key ->
	// plaintext value for all successfully resolved parameters.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
