package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/brojonat/algofund/service/algorand"
	"github.com/brojonat/algofund/service/ledger"
	"github.com/brojonat/algofund/service/metrics"
	natspkg "github.com/brojonat/algofund/service/nats"
)

// AwaitConfirmationInput contains parameters for the AwaitConfirmation activity.
type AwaitConfirmationInput struct {
	TxID   string `json:"txid"`
	Rounds uint64 `json:"rounds"` // 0 uses the client default
}

// AwaitConfirmationResult contains the round the transaction was confirmed in.
type AwaitConfirmationResult struct {
	TxID           string `json:"txid"`
	ConfirmedRound uint64 `json:"confirmed_round"`
}

// RecordDonationInput contains a confirmed donation to credit.
type RecordDonationInput struct {
	TxID           string `json:"txid"`
	Kind           string `json:"kind"`
	CampaignID     string `json:"campaign_id"`
	Donor          string `json:"donor"`
	Receiver       string `json:"receiver"`
	Amount         uint64 `json:"amount"`
	Note           string `json:"note,omitempty"`
	ConfirmedRound uint64 `json:"confirmed_round"`
}

// RecordDonationResult contains the campaign totals after crediting.
type RecordDonationResult struct {
	CampaignID   string `json:"campaign_id"`
	Raised       uint64 `json:"raised"`
	Goal         uint64 `json:"goal"`
	RewardTokens uint64 `json:"reward_tokens"`
	Duplicate    bool   `json:"duplicate"` // the transaction had already been credited
}

// PublishDonationInput contains the donation to announce.
type PublishDonationInput struct {
	TxID           string `json:"txid"`
	CampaignID     string `json:"campaign_id"`
	Donor          string `json:"donor"`
	Amount         uint64 `json:"amount"`
	ConfirmedRound uint64 `json:"confirmed_round"`
}

// ExpireCampaignsInput contains the time campaigns are compared against.
type ExpireCampaignsInput struct {
	Now time.Time `json:"now"`
}

// ExpireCampaignsResult contains the number of campaigns deactivated.
type ExpireCampaignsResult struct {
	Expired int `json:"expired"`
}

// ConfirmerInterface waits for a submitted transaction to be confirmed.
// This allows for easy mocking in tests.
type ConfirmerInterface interface {
	WaitForConfirmation(ctx context.Context, txid string, rounds uint64) (uint64, error)
}

// PublisherInterface defines the NATS publishing operations needed by activities.
type PublisherInterface interface {
	PublishDonation(ctx context.Context, event *natspkg.DonationEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	store     ledger.Repository
	confirmer ConfirmerInterface
	publisher PublisherInterface
	explorer  algorand.Explorer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// publisher and m may be nil.
func NewActivities(
	store ledger.Repository,
	confirmer ConfirmerInterface,
	publisher PublisherInterface,
	explorer algorand.Explorer,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		store:     store,
		confirmer: confirmer,
		publisher: publisher,
		explorer:  explorer,
		metrics:   m,
		logger:    logger,
	}
}

func (a *Activities) observe(name string, start time.Time, err error) {
	if a.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	a.metrics.RecordActivityDuration(name, status, time.Since(start).Seconds())
}

// heartbeat records a heartbeat every interval until the returned func is called.
func heartbeat(ctx context.Context, interval time.Duration, details string) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, details)
			}
		}
	}()
	return cancel
}

// AwaitConfirmation blocks until the transaction is confirmed or can no longer be.
// Rejected and expired transactions fail without retry.
func (a *Activities) AwaitConfirmation(ctx context.Context, input AwaitConfirmationInput) (result *AwaitConfirmationResult, err error) {
	start := time.Now()
	defer func() { a.observe("AwaitConfirmation", start, err) }()

	a.logger.InfoContext(ctx, "waiting for confirmation", "txid", input.TxID, "rounds", input.Rounds)

	stop := heartbeat(ctx, 10*time.Second, "waiting for confirmation")
	defer stop()

	round, err := a.confirmer.WaitForConfirmation(ctx, input.TxID, input.Rounds)
	if err != nil {
		a.logger.WarnContext(ctx, "confirmation failed", "txid", input.TxID, "error", err)
		if errors.Is(err, algorand.ErrTransactionRejected) || errors.Is(err, algorand.ErrConfirmationTimeout) {
			return nil, temporal.NewNonRetryableApplicationError(algorand.UserMessage(err), "ConfirmationFailed", err)
		}
		return nil, fmt.Errorf("failed to await confirmation: %w", err)
	}

	a.logger.InfoContext(ctx, "transaction confirmed", "txid", input.TxID, "round", round)
	return &AwaitConfirmationResult{TxID: input.TxID, ConfirmedRound: round}, nil
}

// RecordDonation credits a confirmed donation. Crediting is idempotent per transaction ID.
func (a *Activities) RecordDonation(ctx context.Context, input RecordDonationInput) (result *RecordDonationResult, err error) {
	start := time.Now()
	defer func() { a.observe("RecordDonation", start, err) }()

	rec := ledger.TransactionRecord{
		TxID:           input.TxID,
		Kind:           input.Kind,
		Sender:         input.Donor,
		Receiver:       input.Receiver,
		Amount:         ledger.MicroAlgos(input.Amount),
		CampaignID:     input.CampaignID,
		Note:           input.Note,
		ConfirmedRound: input.ConfirmedRound,
	}

	c, err := ledger.CreditOnChain(ctx, a.store, rec)
	duplicate := false
	switch {
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		a.logger.InfoContext(ctx, "donation already credited", "txid", input.TxID)
		duplicate = true
		c, err = a.store.GetCampaign(ctx, input.CampaignID)
		if err != nil {
			return nil, fmt.Errorf("failed to load campaign: %w", err)
		}
	case errors.Is(err, ledger.ErrCampaignNotFound):
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "CampaignNotFound", err)
	case err != nil:
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidDonation", err)
		}
		return nil, fmt.Errorf("failed to record donation: %w", err)
	}

	if !duplicate && a.metrics != nil {
		a.metrics.RecordDonation(natspkg.SourceOnChain, "success", rec.Amount.ToAlgos())
		a.metrics.RecordRewardTokens("donation", ledger.RewardTokens(rec.Amount))
	}

	a.logger.InfoContext(ctx, "donation recorded",
		"txid", input.TxID,
		"campaign_id", input.CampaignID,
		"donor", input.Donor,
		"amount", input.Amount,
		"raised", uint64(c.Raised),
		"duplicate", duplicate,
	)

	return &RecordDonationResult{
		CampaignID:   c.ID,
		Raised:       uint64(c.Raised),
		Goal:         uint64(c.Goal),
		RewardTokens: ledger.RewardTokens(rec.Amount),
		Duplicate:    duplicate,
	}, nil
}

// PublishDonation announces a credited donation on NATS. It is a no-op without a publisher.
func (a *Activities) PublishDonation(ctx context.Context, input PublishDonationInput) (err error) {
	start := time.Now()
	defer func() { a.observe("PublishDonation", start, err) }()

	if a.publisher == nil {
		a.logger.DebugContext(ctx, "no publisher configured, skipping donation event", "txid", input.TxID)
		return nil
	}

	c, err := a.store.GetCampaign(ctx, input.CampaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	event := natspkg.NewDonationEvent(c, input.Donor, ledger.MicroAlgos(input.Amount), natspkg.SourceOnChain)
	event.TxID = input.TxID
	event.ConfirmedRound = input.ConfirmedRound
	if a.explorer.BaseURL != "" {
		event.ExplorerURL = a.explorer.TransactionURL(input.TxID)
	}

	if err := a.publisher.PublishDonation(ctx, event); err != nil {
		return fmt.Errorf("failed to publish donation event: %w", err)
	}
	return nil
}

// ExpireCampaigns deactivates campaigns past their deadline.
func (a *Activities) ExpireCampaigns(ctx context.Context, input ExpireCampaignsInput) (result *ExpireCampaignsResult, err error) {
	start := time.Now()
	defer func() { a.observe("ExpireCampaigns", start, err) }()

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	n, err := a.store.ExpireCampaigns(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire campaigns: %w", err)
	}
	if a.metrics != nil {
		a.metrics.RecordCampaignsExpired(n)
	}
	if n > 0 {
		a.logger.InfoContext(ctx, "expired campaigns", "count", n)
	}
	return &ExpireCampaignsResult{Expired: n}, nil
}
