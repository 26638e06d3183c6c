package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/algofund/service/algorand"
	"github.com/brojonat/algofund/service/ledger"
	"github.com/brojonat/algofund/service/metrics"
	natspkg "github.com/brojonat/algofund/service/nats"
	"github.com/brojonat/algofund/service/temporal"
)

// donationRecorder credits donations to the ledger and announces them.
// When async is set, on-chain donations are handed to the scheduler instead of
// being credited in the request.
type donationRecorder struct {
	store     ledger.Repository
	publisher natspkg.Publisher
	scheduler temporal.Scheduler
	async     bool
	explorer  algorand.Explorer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// pledge records an off-chain donation.
func (d *donationRecorder) pledge(ctx context.Context, campaignID, donor string, amount ledger.MicroAlgos) (*ledger.Campaign, error) {
	c, err := d.store.AddDonation(ctx, campaignID, donor, amount)
	if err != nil {
		d.recordMetrics(natspkg.SourcePledge, "error", amount)
		return nil, err
	}
	d.recordMetrics(natspkg.SourcePledge, "success", amount)

	d.logger.InfoContext(ctx, "donation pledged",
		"campaign_id", campaignID,
		"donor", donor,
		"amount", amount.String(),
		"raised", c.Raised.String(),
	)

	d.publish(ctx, natspkg.NewDonationEvent(c, donor, amount, natspkg.SourcePledge))
	return c, nil
}

// credit records a confirmed on-chain donation. A transaction is credited at most once.
func (d *donationRecorder) credit(ctx context.Context, campaignID string, result *algorand.SubmitResult) (*ledger.Campaign, error) {
	c, err := ledger.CreditOnChain(ctx, d.store, ledger.TransactionRecord{
		TxID:           result.TxID,
		Kind:           ledger.KindFund,
		Sender:         result.Sender,
		Receiver:       result.Receiver,
		Amount:         result.Amount,
		CampaignID:     campaignID,
		Note:           result.Note,
		ConfirmedRound: result.ConfirmedRound,
	})
	if err != nil {
		d.recordMetrics(natspkg.SourceOnChain, "error", result.Amount)
		return nil, fmt.Errorf("failed to credit donation: %w", err)
	}
	d.recordMetrics(natspkg.SourceOnChain, "success", result.Amount)

	d.logger.InfoContext(ctx, "on-chain donation credited",
		"campaign_id", campaignID,
		"txid", result.TxID,
		"donor", result.Sender,
		"amount", result.Amount.String(),
		"round", result.ConfirmedRound,
	)

	event := natspkg.NewDonationEvent(c, result.Sender, result.Amount, natspkg.SourceOnChain)
	event.TxID = result.TxID
	event.ConfirmedRound = result.ConfirmedRound
	if d.explorer.BaseURL != "" {
		event.ExplorerURL = d.explorer.TransactionURL(result.TxID)
	}
	d.publish(ctx, event)
	return c, nil
}

// track starts the confirmation workflow for a submitted donation.
func (d *donationRecorder) track(ctx context.Context, campaignID string, result *algorand.SubmitResult) (string, error) {
	if d.scheduler == nil {
		return "", fmt.Errorf("no scheduler configured")
	}
	return d.scheduler.StartDonationConfirmation(ctx, temporal.DonationConfirmationInput{
		TxID:       result.TxID,
		Kind:       ledger.KindFund,
		CampaignID: campaignID,
		Donor:      result.Sender,
		Receiver:   result.Receiver,
		Amount:     uint64(result.Amount),
		Note:       result.Note,
	})
}

func (d *donationRecorder) publish(ctx context.Context, event *natspkg.DonationEvent) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishDonation(ctx, event); err != nil {
		d.logger.WarnContext(ctx, "failed to publish donation event",
			"campaign_id", event.CampaignID,
			"source", event.Source,
			"error", err,
		)
	}
}

func (d *donationRecorder) recordMetrics(source, status string, amount ledger.MicroAlgos) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordDonation(source, status, amount.ToAlgos())
	if status == "success" {
		d.metrics.RecordRewardTokens("donation", ledger.RewardTokens(amount))
	}
}
