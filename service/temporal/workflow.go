package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/brojonat/algofund/service/ledger"
)

var a *Activities // for type-safe activity invocation

// Donation workflow statuses.
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// DonationConfirmationInput describes a submitted on-chain donation.
type DonationConfirmationInput struct {
	TxID       string `json:"txid"`
	Kind       string `json:"kind"`
	CampaignID string `json:"campaign_id"`
	Donor      string `json:"donor"`
	Receiver   string `json:"receiver"`
	Amount     uint64 `json:"amount"`
	Note       string `json:"note,omitempty"`

	// ConfirmationRounds bounds how many rounds to wait. 0 uses the worker default.
	ConfirmationRounds uint64 `json:"confirmation_rounds"`
}

// DonationConfirmationResult is the outcome of a DonationConfirmationWorkflow.
type DonationConfirmationResult struct {
	TxID           string    `json:"txid"`
	CampaignID     string    `json:"campaign_id"`
	Status         string    `json:"status"`
	ConfirmedRound uint64    `json:"confirmed_round,omitempty"`
	Raised         uint64    `json:"raised,omitempty"`
	Goal           uint64    `json:"goal,omitempty"`
	RewardTokens   uint64    `json:"reward_tokens,omitempty"`
	Duplicate      bool      `json:"duplicate,omitempty"`
	Published      bool      `json:"published"`
	Error          *string   `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// DonationWorkflowID returns the workflow ID used for a transaction.
// One workflow runs per transaction ID.
func DonationWorkflowID(txid string) string {
	return "donation-" + txid
}

// DonationConfirmationWorkflow waits for a submitted donation to confirm,
// credits it to the campaign and announces it.
//
// The workflow performs these steps:
// 1. Wait for the transaction to be confirmed (AwaitConfirmation activity)
// 2. Credit the donation and log the transaction (RecordDonation activity)
// 3. Publish a donation event (PublishDonation activity, best effort)
//
// A transaction that never confirms is a completed workflow with status "failed".
func DonationConfirmationWorkflow(ctx workflow.Context, input DonationConfirmationInput) (*DonationConfirmationResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("DonationConfirmationWorkflow started", "txid", input.TxID, "campaign_id", input.CampaignID)

	result := &DonationConfirmationResult{
		TxID:       input.TxID,
		CampaignID: input.CampaignID,
		StartedAt:  workflow.Now(ctx),
	}

	retry := &temporalsdk.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    30 * time.Second,
		MaximumAttempts:    3,
	}

	// Step 1: wait for confirmation
	awaitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         retry,
	})

	var confirmed *AwaitConfirmationResult
	err := workflow.ExecuteActivity(awaitCtx, a.AwaitConfirmation, AwaitConfirmationInput{
		TxID:   input.TxID,
		Rounds: input.ConfirmationRounds,
	}).Get(awaitCtx, &confirmed)
	if err != nil {
		logger.Warn("donation not confirmed", "txid", input.TxID, "error", err)
		errMsg := err.Error()
		result.Status = StatusFailed
		result.Error = &errMsg
		result.CompletedAt = workflow.Now(ctx)
		return result, nil
	}
	result.ConfirmedRound = confirmed.ConfirmedRound

	// Step 2: credit the donation
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         retry,
	})

	var recorded *RecordDonationResult
	err = workflow.ExecuteActivity(ctx, a.RecordDonation, RecordDonationInput{
		TxID:           input.TxID,
		Kind:           kindOrFund(input.Kind),
		CampaignID:     input.CampaignID,
		Donor:          input.Donor,
		Receiver:       input.Receiver,
		Amount:         input.Amount,
		Note:           input.Note,
		ConfirmedRound: confirmed.ConfirmedRound,
	}).Get(ctx, &recorded)
	if err != nil {
		logger.Error("failed to record donation", "txid", input.TxID, "error", err)
		errMsg := fmt.Sprintf("failed to record donation: %v", err)
		result.Status = StatusFailed
		result.Error = &errMsg
		result.CompletedAt = workflow.Now(ctx)
		return result, fmt.Errorf("failed to record donation: %w", err)
	}
	result.Status = StatusConfirmed
	result.Raised = recorded.Raised
	result.Goal = recorded.Goal
	result.RewardTokens = recorded.RewardTokens
	result.Duplicate = recorded.Duplicate

	// Step 3: publish. A replayed transaction was already announced.
	if !recorded.Duplicate {
		err = workflow.ExecuteActivity(ctx, a.PublishDonation, PublishDonationInput{
			TxID:           input.TxID,
			CampaignID:     input.CampaignID,
			Donor:          input.Donor,
			Amount:         input.Amount,
			ConfirmedRound: confirmed.ConfirmedRound,
		}).Get(ctx, nil)
		if err != nil {
			logger.Warn("failed to publish donation event", "txid", input.TxID, "error", err)
		} else {
			result.Published = true
		}
	}

	result.CompletedAt = workflow.Now(ctx)
	logger.Info("DonationConfirmationWorkflow completed",
		"txid", input.TxID,
		"round", result.ConfirmedRound,
		"raised", result.Raised,
	)
	return result, nil
}

// ExpireCampaignsWorkflow deactivates campaigns whose deadline has passed.
// It is triggered by the campaign expiry schedule.
func ExpireCampaignsWorkflow(ctx workflow.Context) (*ExpireCampaignsResult, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var result *ExpireCampaignsResult
	err := workflow.ExecuteActivity(ctx, a.ExpireCampaigns, ExpireCampaignsInput{Now: workflow.Now(ctx)}).Get(ctx, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to expire campaigns: %w", err)
	}

	workflow.GetLogger(ctx).Info("ExpireCampaignsWorkflow completed", "expired", result.Expired)
	return result, nil
}

func kindOrFund(kind string) string {
	if kind == "" {
		return ledger.KindFund
	}
	return kind
}
