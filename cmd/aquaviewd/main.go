// Package main is the entry point for the AquaView sync daemon.
//
// It loads configuration (resolving the operator PIN from SSM outside local
// mode), builds the telemetry client and the three resource pollers, wires
// the acknowledgment coordinator, and serves the dashboard API until a
// SIGINT or SIGTERM arrives. On shutdown the HTTP listener drains first,
// then the pollers are stopped so no fetch outlives the process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"aquaview/internal/ack"
	"aquaview/internal/api/handlers"
	"aquaview/internal/config"
	"aquaview/internal/core"
	"aquaview/internal/external"
	"aquaview/internal/poll"
)

// staleFactor is how many missed poll ticks make a snapshot stale enough
// to flag in response metadata and fail the freshness probes.
const staleFactor = 3

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	// The SSM provider is lazy: it never touches AWS when APP_ENV=local or
	// when no *_SSM_PARAM references are present in the environment.
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("aquaview sync daemon starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"backend", cfg.Backend.BaseURL,
		"port", cfg.Server.Port,
	)

	// One shared transport for all backend traffic. Per-request deadlines
	// come from the poll loop and handler contexts; the client timeout is a
	// hard backstop.
	httpClient := &http.Client{Timeout: cfg.Backend.RequestTimeout}
	telemetry := external.NewTelemetryClient(httpClient, external.TelemetryClientConfig{
		BaseURL:     cfg.Backend.BaseURL,
		OperatorPIN: cfg.Backend.OperatorPIN,
		UserAgent:   cfg.Backend.UserAgent,
	})

	metrics, err := newMetrics(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	pollOpts := []poll.Option{poll.WithLogger(logger)}
	if metrics != nil {
		pollOpts = append(pollOpts, poll.WithObserver(metrics))
	}

	kpis := poll.New("kpis", telemetry.GetKPIs, cfg.Poll.KPIInterval, pollOpts...)
	sectors := poll.New("sectors", telemetry.GetSectors, cfg.Poll.SectorInterval, pollOpts...)
	alerts := poll.New("alerts", telemetry.GetOpenAlerts, cfg.Poll.AlertInterval, pollOpts...)
	kpis.Start()
	sectors.Start()
	alerts.Start()

	ackCfg := ack.Config{
		Alerts:        alerts,
		Client:        telemetry,
		Logger:        logger,
		ResyncTimeout: cfg.Poll.ResyncTimeout,
	}
	if metrics != nil {
		ackCfg.Observer = metrics
	}
	coordinator := ack.New(ackCfg)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if metrics != nil {
		srv.Metrics = metrics
	}

	staleAfter := staleFactor * maxInterval(cfg.Poll)

	dashboard := handlers.NewDashboardHandler(handlers.DashboardConfig{
		KPIs:       kpis,
		Sectors:    sectors,
		Alerts:     alerts,
		Acks:       coordinator,
		Band:       cfg.Pressure.Band(),
		StaleAfter: staleAfter,
		Logger:     logger,
	})
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		dashboard.RegisterRoutes(r)
	})

	srv.HealthProbes = []core.HealthProbe{
		core.NewFreshnessProbe("kpis", freshness(kpis), staleAfter),
		core.NewFreshnessProbe("sectors", freshness(sectors), staleAfter),
		core.NewFreshnessProbe("alerts", freshness(alerts), staleAfter),
	}
	srv.Stoppers = []core.Stopper{kpis, sectors, alerts}

	srv.MountRoutes()

	return serve(srv, cfg, logger)
}

// serve runs the HTTP listener until a termination signal or listener error,
// then drains connections and stops the pollers.
func serve(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

// newMetrics builds the CloudWatch publisher, or returns nil when metrics
// are disabled so every consumer falls back to its no-op path.
func newMetrics(cfg *config.Config, logger *slog.Logger) (*core.CloudWatchMetrics, error) {
	if !cfg.Observability.EnableMetrics {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	return core.NewCloudWatchMetrics(client, cfg.Observability.MetricNamespace, logger), nil
}

// freshness adapts a poller's LastUpdated to the probe's clock function.
// A zero time means the poller has never populated its snapshot.
func freshness[T any](p *poll.Poller[T]) func() time.Time {
	return func() time.Time {
		last, ok := p.LastUpdated()
		if !ok {
			return time.Time{}
		}
		return last
	}
}

// maxInterval returns the slowest of the three poll cadences, which bounds
// how old a healthy snapshot can legitimately be.
func maxInterval(p config.PollConfig) time.Duration {
	return max(p.KPIInterval, p.SectorInterval, p.AlertInterval)
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
