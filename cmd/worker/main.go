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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brojonat/algofund/service/algorand"
	"github.com/brojonat/algofund/service/config"
	"github.com/brojonat/algofund/service/db"
	"github.com/brojonat/algofund/service/metrics"
	natspkg "github.com/brojonat/algofund/service/nats"
	"github.com/brojonat/algofund/service/temporal"
)

func main() {
	cfg := config.MustLoad()
	logger := setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker exited", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.TemporalEnabled() {
		return errors.New("TEMPORAL_HOST is required to run the worker")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required to run the worker")
	}

	metricsCollector := metrics.NewMetrics(nil)

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	store := db.NewStore(pool).WithMetrics(metricsCollector)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	stopMetrics := serveMetrics(cfg.MetricsAddr, logger)
	defer stopMetrics()

	algod, err := algorand.NewAlgodClient(cfg.AlgodURL, cfg.AlgodToken)
	if err != nil {
		return fmt.Errorf("failed to create algod client: %w", err)
	}
	chain := algorand.NewClient(algod, cfg.Network, algorand.Options{
		ConfirmationRounds: cfg.ConfirmationRounds,
		RequestsPerSecond:  cfg.AlgodRPS,
	}, metricsCollector, logger)

	workerConfig := temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Concurrency:       cfg.WorkerConcurrency,
		ExpiryInterval:    cfg.CampaignExpiryInterval,
		Store:             store,
		Confirmer:         chain,
		Explorer:          algorand.NewExplorer(cfg.ExplorerBaseURL),
		Metrics:           metricsCollector,
		Logger:            logger,
	}

	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			return fmt.Errorf("failed to create NATS publisher: %w", err)
		}
		defer publisher.Close()
		workerConfig.Publisher = publisher
	} else {
		logger.Warn("NATS_URL not set, confirmed donations will not be published")
	}

	w, err := temporal.NewWorker(workerConfig)
	if err != nil {
		return err
	}

	logger.Info("starting worker",
		"network", cfg.Network,
		"algod_url", cfg.AlgodURL,
		"expiry_interval", cfg.CampaignExpiryInterval,
		"nats", cfg.NATSURL != "",
	)
	return w.Run(ctx)
}

// serveMetrics exposes the default Prometheus registry and returns a func that shuts it down.
func serveMetrics(addr string, logger *slog.Logger) func() {
	srv := &http.Server{Addr: addr, Handler: promhttp.Handler()}
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}
}

// setupLogger returns a JSON logger on stderr. Unknown levels fall back to info.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
