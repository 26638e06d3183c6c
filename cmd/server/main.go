package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/algofund/service/algorand"
	"github.com/brojonat/algofund/service/config"
	"github.com/brojonat/algofund/service/db"
	"github.com/brojonat/algofund/service/ledger"
	"github.com/brojonat/algofund/service/metrics"
	natspkg "github.com/brojonat/algofund/service/nats"
	"github.com/brojonat/algofund/service/server"
	"github.com/brojonat/algofund/service/temporal"
	"github.com/brojonat/algofund/service/wallet"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Fails fast on missing or invalid configuration
	cfg := config.MustLoad()
	logger := setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metricsCollector := metrics.NewMetrics(nil)

	store, closeStore, err := openLedger(ctx, cfg, metricsCollector, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	algod, err := algorand.NewAlgodClient(cfg.AlgodURL, cfg.AlgodToken)
	if err != nil {
		return fmt.Errorf("failed to create algod client: %w", err)
	}
	chain := algorand.NewClient(algod, cfg.Network, algorand.Options{
		ConfirmationRounds: cfg.ConfirmationRounds,
		RequestsPerSecond:  cfg.AlgodRPS,
	}, metricsCollector, logger)

	// Wallets able to sign in-app; everyone else gets the manual-sign flow
	keyring := wallet.NewKeyring(logger)
	if cfg.DevSignerMnemonics != "" {
		if err := keyring.LoadMnemonics(cfg.DevSignerMnemonics); err != nil {
			return fmt.Errorf("failed to load signer mnemonics: %w", err)
		}
		logger.Info("connected developer wallets", "count", len(keyring.Addresses()))
	}
	if cfg.EscrowAddress == "" {
		logger.Warn("ESCROW_ADDRESS not set, campaigns without a receiver cannot be funded on-chain")
	}

	deps := server.Deps{
		Store:             store,
		Chain:             chain,
		Keyring:           keyring,
		AsyncConfirmation: cfg.AsyncConfirmation,
		EscrowAddress:     cfg.EscrowAddress,
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
		deps.Publisher = publisher

		// Closed by Server.Shutdown
		events, err := server.NewEventStream(cfg.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect SSE event stream: %w", err)
		}
		deps.SSE = events
	} else {
		logger.Warn("NATS_URL not set, donation events and streaming disabled")
	}

	if cfg.TemporalEnabled() {
		tc, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
		if err != nil {
			return fmt.Errorf("failed to create temporal client: %w", err)
		}
		defer tc.Close()
		deps.Scheduler = tc
	}

	httpServer := server.New(cfg.ServerAddr, deps)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"network", cfg.Network,
		"algod_url", cfg.AlgodURL,
		"postgres", cfg.DatabaseURL != "",
		"nats", cfg.NATSURL != "",
		"temporal", cfg.TemporalEnabled(),
		"async_confirmation", cfg.AsyncConfirmation,
	)

	serverErrors := make(chan error, 1)
	go func() { serverErrors <- httpServer.Start() }()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}
	return nil
}

// openLedger returns the Postgres ledger when DATABASE_URL is set, otherwise the in-memory one.
// Demo campaigns are seeded in either case when SEED_DEMO_CAMPAIGNS is on.
func openLedger(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (ledger.Repository, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory ledger", "seeded", cfg.SeedDemoCampaigns)
		return ledger.NewMemory(cfg.SeedDemoCampaigns), func() {}, nil
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := db.NewStore(pool).WithMetrics(m)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if cfg.SeedDemoCampaigns {
		n, err := store.Seed(ctx)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to seed demo campaigns: %w", err)
		}
		logger.Info("seeded demo campaigns", "inserted", n)
	}
	return store, pool.Close, nil
}

// setupLogger returns a JSON logger on stderr. Unknown levels fall back to info.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
