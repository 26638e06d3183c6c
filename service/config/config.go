package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/brojonat/algofund/service/algorand"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr  string
	LogLevel    string
	MetricsAddr string

	// Database configuration. Empty means the in-memory ledger.
	DatabaseURL       string
	SeedDemoCampaigns bool

	// NATS configuration. Empty disables event publishing and streaming.
	NATSURL string

	// Algorand configuration
	AlgodURL           string
	AlgodToken         string
	Network            string
	EscrowAddress      string
	ExplorerBaseURL    string
	ConfirmationRounds uint64
	AlgodRPS           float64
	DevSignerMnemonics string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
	WorkerConcurrency int

	// AsyncConfirmation hands on-chain confirmation to a Temporal workflow
	// instead of waiting inside the HTTP request.
	AsyncConfirmation      bool
	CampaignExpiryInterval time.Duration
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	seed, err := parseBool("SEED_DEMO_CAMPAIGNS", true)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.SeedDemoCampaigns = seed

	// NATS configuration
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Algorand configuration
	cfg.Network = strings.ToLower(getEnvOrDefault("ALGORAND_NETWORK", "testnet"))
	if !algorand.ValidNetwork(cfg.Network) {
		errs = append(errs, fmt.Errorf("ALGORAND_NETWORK must be one of testnet, mainnet, betanet (got %q)", cfg.Network))
	}
	cfg.AlgodURL = getEnvOrDefault("ALGOD_URL", algorand.DefaultAlgodURL(cfg.Network))
	if cfg.AlgodURL == "" {
		errs = append(errs, fmt.Errorf("ALGOD_URL is required"))
	}
	cfg.AlgodToken = os.Getenv("ALGOD_TOKEN")
	cfg.ExplorerBaseURL = getEnvOrDefault("EXPLORER_BASE_URL", algorand.DefaultExplorerURL(cfg.Network))

	cfg.EscrowAddress = strings.TrimSpace(os.Getenv("ESCROW_ADDRESS"))
	if cfg.EscrowAddress != "" {
		if _, err := types.DecodeAddress(cfg.EscrowAddress); err != nil {
			errs = append(errs, fmt.Errorf("ESCROW_ADDRESS: invalid Algorand address: %w", err))
		}
	}

	rounds, err := parseInt("CONFIRMATION_ROUNDS", 4)
	if err != nil {
		errs = append(errs, err)
	} else if rounds < 1 {
		errs = append(errs, fmt.Errorf("CONFIRMATION_ROUNDS must be at least 1"))
	} else {
		cfg.ConfirmationRounds = uint64(rounds)
	}

	rps, err := parseFloat("ALGOD_RPS", 10)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.AlgodRPS = rps
	}

	cfg.DevSignerMnemonics = os.Getenv("DEV_SIGNER_MNEMONICS")

	// Temporal configuration
	cfg.TemporalHost = os.Getenv("TEMPORAL_HOST")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "algofund-donations")
	concurrency, err := parseInt("WORKER_CONCURRENCY", 10)
	if err != nil {
		errs = append(errs, err)
	} else if concurrency < 1 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be at least 1"))
	} else {
		cfg.WorkerConcurrency = concurrency
	}

	async, err := parseBool("ASYNC_CONFIRMATION", false)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.AsyncConfirmation = async
	if cfg.AsyncConfirmation && cfg.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("ASYNC_CONFIRMATION requires TEMPORAL_HOST"))
	}
	if cfg.AsyncConfirmation && cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("ASYNC_CONFIRMATION requires DATABASE_URL shared with the worker"))
	}

	interval, err := parseDuration("CAMPAIGN_EXPIRY_INTERVAL", "1h")
	if err != nil {
		errs = append(errs, err)
	} else if interval < time.Minute {
		errs = append(errs, fmt.Errorf("CAMPAIGN_EXPIRY_INTERVAL (%v) must be at least 1m", interval))
	} else {
		cfg.CampaignExpiryInterval = interval
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// TemporalEnabled reports whether a Temporal server is configured.
func (c *Config) TemporalEnabled() bool {
	return c.TemporalHost != ""
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}

	if !algorand.ValidNetwork(c.Network) {
		errs = append(errs, fmt.Errorf("Network %q is not supported", c.Network))
	}

	if c.AlgodURL == "" {
		errs = append(errs, fmt.Errorf("AlgodURL is required"))
	}

	if c.EscrowAddress != "" {
		if _, err := types.DecodeAddress(c.EscrowAddress); err != nil {
			errs = append(errs, fmt.Errorf("EscrowAddress is not a valid address"))
		}
	}

	if c.ConfirmationRounds < 1 {
		errs = append(errs, fmt.Errorf("ConfirmationRounds must be at least 1"))
	}

	if c.AsyncConfirmation && c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("AsyncConfirmation requires TemporalHost"))
	}
	if c.AsyncConfirmation && c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("AsyncConfirmation requires DatabaseURL"))
	}

	if c.TemporalEnabled() {
		if c.TemporalNamespace == "" {
			errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
		}
		if c.TemporalTaskQueue == "" {
			errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
		}
	}

	if c.CampaignExpiryInterval < time.Minute {
		errs = append(errs, fmt.Errorf("CampaignExpiryInterval must be at least 1 minute"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseFloat parses a float from an environment variable or uses a default.
func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}

// parseBool parses a boolean from an environment variable or uses a default.
func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}
