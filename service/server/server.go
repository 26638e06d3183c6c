package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brojonat/algofund/service/algorand"
	"github.com/brojonat/algofund/service/ledger"
	"github.com/brojonat/algofund/service/metrics"
	natspkg "github.com/brojonat/algofund/service/nats"
	"github.com/brojonat/algofund/service/temporal"
	"github.com/brojonat/algofund/service/wallet"
)

// ChainClient is the subset of algorand.Client the handlers use.
type ChainClient interface {
	Network() string
	FundCampaign(ctx context.Context, params algorand.FundParams) (*algorand.SubmitResult, error)
	SignProof(ctx context.Context, sender, note string, signer wallet.Signer) (*algorand.SubmitResult, error)
	SubmitSignedBase64(ctx context.Context, kind, b64 string) (*algorand.SubmitResult, error)
	SendSignedBase64(ctx context.Context, kind, b64 string) (*algorand.SubmitResult, error)
	AccountBalance(ctx context.Context, address string) (ledger.MicroAlgos, error)
}

// Deps are the server's collaborators. Store, Chain and Keyring are required.
type Deps struct {
	Store   ledger.Repository
	Chain   ChainClient
	Keyring *wallet.Keyring

	// Publisher is optional; nil disables donation and campaign events.
	Publisher natspkg.Publisher
	// Scheduler is optional; nil disables asynchronous confirmation and donation status.
	Scheduler temporal.Scheduler
	// AsyncConfirmation hands confirmation to Scheduler instead of waiting in the request.
	AsyncConfirmation bool
	// SSE is optional; nil disables the streaming endpoints.
	SSE *EventStream

	EscrowAddress string
	Explorer      algorand.Explorer
	Metrics       *metrics.Metrics // Optional: nil disables /metrics
	Logger        *slog.Logger
	Now           func() time.Time
}

// Server represents the HTTP server for the crowdfunding API.
type Server struct {
	addr   string
	deps   Deps
	logger *slog.Logger
	server *http.Server
}

// New creates a new HTTP server with the given dependencies.
func New(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Server{
		addr:   addr,
		deps:   deps,
		logger: deps.Logger,
	}
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	d := s.deps
	logger := s.logger
	recorder := &donationRecorder{
		store:     d.Store,
		publisher: d.Publisher,
		scheduler: d.Scheduler,
		async:     d.AsyncConfirmation && d.Scheduler != nil,
		explorer:  d.Explorer,
		metrics:   d.Metrics,
		logger:    logger,
	}

	mux := http.NewServeMux()
	route := func(pattern, name string, h http.Handler) {
		if d.Metrics != nil {
			h = metrics.HTTPMetricsMiddleware(d.Metrics, name)(h)
		}
		mux.Handle(pattern, h)
	}

	// Campaign routes
	route("GET /api/v1/campaigns", "list_campaigns", handleListCampaigns(d.Store, d.Now, logger))
	route("POST /api/v1/campaigns", "create_campaign", handleCreateCampaign(d.Store, d.Publisher, d.Metrics, d.Now, logger))
	route("GET /api/v1/campaigns/{id}", "get_campaign", handleGetCampaign(d.Store, d.Now, logger))
	route("GET /api/v1/campaigns/{id}/leaderboard", "campaign_leaderboard", handleCampaignLeaderboard(d.Store, logger))
	route("POST /api/v1/campaigns/{id}/donations", "pledge", handlePledge(d.Store, recorder, d.Now, logger))

	// On-chain donation routes
	route("POST /api/v1/campaigns/{id}/fund", "fund_campaign", handleFundCampaign(d.Store, d.Chain, d.Keyring, recorder, d.EscrowAddress, d.Now, logger))
	route("POST /api/v1/campaigns/{id}/fund/signed", "fund_campaign_signed", handleFundCampaignSigned(d.Store, d.Chain, recorder, d.EscrowAddress, d.Now, logger))
	route("GET /api/v1/donation-status/{workflow_id}", "donation_status", handleDonationStatus(d.Scheduler, logger))
	route("GET /api/v1/receiver", "receiver", handleReceiver(d.EscrowAddress, d.Chain.Network(), d.Explorer))

	// Leaderboard, profiles and bounties
	route("GET /api/v1/leaderboard", "leaderboard", handleLeaderboard(d.Store, logger))
	route("GET /api/v1/profiles/{address}", "profile", handleProfile(d.Store, d.Chain, d.Explorer, logger))
	route("GET /api/v1/bounties", "list_bounties", handleListBounties())
	route("POST /api/v1/bounties/{id}/claim", "claim_bounty", handleClaimBounty(d.Store, d.Chain, d.Keyring, d.Explorer, d.Metrics, d.Now, logger))
	route("POST /api/v1/bounties/{id}/claim/signed", "claim_bounty_signed", handleClaimBountySigned(d.Store, d.Chain, d.Explorer, d.Metrics, logger))

	// Wallets
	route("GET /api/v1/wallets/{address}", "wallet_status", handleWalletStatus(d.Keyring))
	route("DELETE /api/v1/wallets/{address}", "disconnect_wallet", handleDisconnectWallet(d.Keyring, logger))

	// Raw transactions
	route("POST /api/v1/transactions/signed", "submit_signed", handleSubmitSigned(d.Store, d.Chain, d.Explorer, logger))
	route("GET /api/v1/transactions", "list_transactions", handleListTransactions(d.Store, d.Explorer, logger))

	// SSE streaming endpoints (if an event stream is configured)
	if d.SSE != nil {
		mux.Handle("GET /api/v1/stream/donations/{campaign_id}", handleStreamDonations(d.SSE, d.Metrics, logger))
		mux.Handle("GET /api/v1/stream/donations", handleStreamDonations(d.SSE, d.Metrics, logger))
		logger.Info("SSE streaming endpoints enabled")
	} else {
		logger.Warn("NATS not configured, streaming endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	if s.deps.Store == nil || s.deps.Chain == nil || s.deps.Keyring == nil {
		return fmt.Errorf("server requires a store, a chain client and a keyring")
	}

	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close the event stream first (disconnects all clients)
	if s.deps.SSE != nil {
		s.deps.SSE.Close()
	}

	// Then shutdown HTTP server
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers for all requests
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Pass through to next handler
		next.ServeHTTP(w, r)
	})
}
