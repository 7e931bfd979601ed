package config

import (
	"context"
	"os"
)

// EnvVarProvider resolves secrets straight from OS environment variables.
// It backs local development and CI runs, where the operator PIN is set in
// the environment (usually via .env) and SSM is never involved.
type EnvVarProvider struct{}

// NewEnvVarProvider creates an EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch looks each key up in the environment. Missing keys are
// omitted from the result rather than treated as errors; the loader decides
// whether an unresolved secret is fatal.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	found := make(map[string]string, len(keys))
	for _, key := range keys {
		val, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		found[key] = val
	}
	return found, nil
}
