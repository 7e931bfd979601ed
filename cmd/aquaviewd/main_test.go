package main

import (
	"context"
	"testing"
	"time"

	"aquaview/internal/config"
	"aquaview/internal/poll"
	"aquaview/internal/types"
)

// TestNewLogger verifies that the logger factory handles various log levels.
func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "unknown"} {
		t.Run(level, func(t *testing.T) {
			if newLogger(level) == nil {
				t.Fatalf("newLogger(%q) returned nil", level)
			}
		})
	}
}

func TestMaxInterval(t *testing.T) {
	p := config.PollConfig{
		KPIInterval:    10 * time.Second,
		SectorInterval: 30 * time.Second,
		AlertInterval:  5 * time.Second,
	}
	if got := maxInterval(p); got != 30*time.Second {
		t.Errorf("maxInterval = %v, want 30s", got)
	}
}

func TestFreshnessBeforeAndAfterFirstFetch(t *testing.T) {
	p := poll.New("kpis", func(context.Context) (types.KPISnapshot, error) {
		return types.KPISnapshot{EfficiencyRatio: 0.5}, nil
	}, time.Hour)
	defer p.Stop()

	clock := freshness(p)
	if !clock().IsZero() {
		t.Error("freshness should report zero time before the first fetch")
	}

	if err := p.Refetch(t.Context()); err != nil {
		t.Fatalf("Refetch: %v", err)
	}
	if clock().IsZero() {
		t.Error("freshness should report a non-zero time after a successful fetch")
	}
}

// TestMetricsDisabledReturnsNil covers the no-op path so a disabled
// configuration never reaches AWS.
func TestMetricsDisabledReturnsNil(t *testing.T) {
	cfg := &config.Config{}
	m, err := newMetrics(cfg, newLogger("error"))
	if err != nil {
		t.Fatalf("newMetrics: %v", err)
	}
	if m != nil {
		t.Error("expected nil metrics when disabled")
	}
}
