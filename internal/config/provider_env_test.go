package config

import (
	"context"
	"testing"
)

var _ SecretProvider = (*EnvVarProvider)(nil)

func TestEnvVarProviderResolvesFromEnvironment(t *testing.T) {
	t.Setenv("AQUAVIEW_TEST_SECRET_A", "value-a")
	t.Setenv("AQUAVIEW_TEST_SECRET_B", "value-b")

	provider := NewEnvVarProvider()
	result, err := provider.GetParametersBatch(context.Background(), []string{
		"AQUAVIEW_TEST_SECRET_A",
		"AQUAVIEW_TEST_SECRET_B",
		"AQUAVIEW_TEST_SECRET_MISSING",
	})
	if err != nil {
		t.Fatalf("GetParametersBatch: %v", err)
	}

	if result["AQUAVIEW_TEST_SECRET_A"] != "value-a" {
		t.Errorf("SECRET_A = %q, want value-a", result["AQUAVIEW_TEST_SECRET_A"])
	}
	if result["AQUAVIEW_TEST_SECRET_B"] != "value-b" {
		t.Errorf("SECRET_B = %q, want value-b", result["AQUAVIEW_TEST_SECRET_B"])
	}

	// Missing keys are omitted, not errors.
	if _, ok := result["AQUAVIEW_TEST_SECRET_MISSING"]; ok {
		t.Error("missing key should be omitted from the result")
	}
	if len(result) != 2 {
		t.Errorf("result has %d entries, want 2", len(result))
	}
}

func TestEnvVarProviderEmptyKeys(t *testing.T) {
	provider := NewEnvVarProvider()
	result, err := provider.GetParametersBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetParametersBatch: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("result has %d entries, want 0", len(result))
	}
}
