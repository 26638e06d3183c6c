package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/algofund/service/algorand"
	"github.com/brojonat/algofund/service/ledger"
	"github.com/brojonat/algofund/service/temporal"
	"github.com/brojonat/algofund/service/wallet"
)

// Donation response statuses.
const (
	statusConfirmed          = "confirmed"
	statusPending            = "pending"
	statusSubmitted          = "submitted"
	statusManualSignRequired = "manual_sign_required"
)

type fundRequest struct {
	Donor string `json:"donor"`
	amountFields
}

// handleFundCampaign returns a handler that sends an on-chain donation from a connected wallet.
// POST /api/v1/campaigns/{id}/fund
//
// Responds 200 once the payment is confirmed and credited, 202 with a workflow ID
// when confirmation is asynchronous, or 202 with an unsigned transaction when the
// donor's wallet cannot sign in-app.
func handleFundCampaign(
	store ledger.Repository,
	chain ChainClient,
	keyring *wallet.Keyring,
	recorder *donationRecorder,
	escrow string,
	now func() time.Time,
	logger *slog.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req fundRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		donor := strings.TrimSpace(req.Donor)
		if !ledger.ValidAddress(donor) {
			writeError(w, "invalid donor address", http.StatusBadRequest)
			return
		}

		c, err := store.GetCampaign(r.Context(), r.PathValue("id"))
		if err != nil {
			writeLedgerError(w, r, logger, "failed to get campaign", err)
			return
		}
		amount := req.microAlgos()
		if err := ledger.ValidateDonation(c, amount); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		receiver, err := algorand.ResolveReceiver(c, escrow)
		if err != nil {
			writeError(w, algorand.UserMessage(err), http.StatusBadRequest)
			return
		}

		result, err := chain.FundCampaign(r.Context(), algorand.FundParams{
			CampaignID:       c.ID,
			Sender:           donor,
			Receiver:         receiver,
			Amount:           amount,
			Signer:           keyring.Signer(donor),
			SkipConfirmation: recorder.async,
		})
		finishDonation(w, r, recorder, c.ID, result, err, now, logger)
	})
}

type signedTxnRequest struct {
	SignedTxn string `json:"signed_txn"` // base64 msgpack
}

// handleFundCampaignSigned returns a handler that submits a donation signed outside the app.
// POST /api/v1/campaigns/{id}/fund/signed
func handleFundCampaignSigned(
	store ledger.Repository,
	chain ChainClient,
	recorder *donationRecorder,
	escrow string,
	now func() time.Time,
	logger *slog.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req signedTxnRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.SignedTxn) == "" {
			writeError(w, "signed_txn is required", http.StatusBadRequest)
			return
		}

		payment, _, err := algorand.DecodeSignedTxn(req.SignedTxn)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		c, err := store.GetCampaign(r.Context(), r.PathValue("id"))
		if err != nil {
			writeLedgerError(w, r, logger, "failed to get campaign", err)
			return
		}
		receiver, err := algorand.ResolveReceiver(c, escrow)
		if err != nil {
			writeError(w, algorand.UserMessage(err), http.StatusBadRequest)
			return
		}

		switch {
		case payment.Type != "pay":
			writeError(w, "signed transaction is not a payment", http.StatusBadRequest)
			return
		case payment.Receiver != receiver:
			writeError(w, "payment receiver does not match the campaign receiver", http.StatusBadRequest)
			return
		}
		if err := ledger.ValidateDonation(c, payment.Amount); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result *algorand.SubmitResult
		if recorder.async {
			result, err = chain.SendSignedBase64(r.Context(), ledger.KindFund, req.SignedTxn)
		} else {
			result, err = chain.SubmitSignedBase64(r.Context(), ledger.KindFund, req.SignedTxn)
		}
		finishDonation(w, r, recorder, c.ID, result, err, now, logger)
	})
}

// finishDonation turns the outcome of a submitted donation into a response,
// crediting it or handing it to the scheduler.
func finishDonation(
	w http.ResponseWriter,
	r *http.Request,
	recorder *donationRecorder,
	campaignID string,
	result *algorand.SubmitResult,
	err error,
	now func() time.Time,
	logger *slog.Logger,
) {
	ctx := r.Context()

	if errors.Is(err, algorand.ErrConfirmationTimeout) && result != nil {
		// Accepted by the node but not confirmed within the wait window.
		logger.WarnContext(ctx, "donation submitted but not confirmed", "txid", result.TxID, "campaign_id", campaignID)
		resp := submittedResponse(recorder, statusSubmitted, result)
		resp["message"] = algorand.UserMessage(err)
		tracked := false
		if recorder.scheduler != nil {
			if id, err := recorder.track(ctx, campaignID, result); err != nil {
				logger.ErrorContext(ctx, "failed to start donation workflow", "txid", result.TxID, "error", err)
			} else {
				resp["workflow_id"] = id
				resp["status_url"] = "/api/v1/donation-status/" + id
				tracked = true
			}
		}
		if !tracked && result.SignedTxn != "" {
			// Nothing will credit it later; hand back the bytes for /fund/signed.
			resp["signed_txn"] = result.SignedTxn
			resp["resubmit_url"] = "/api/v1/campaigns/" + campaignID + "/fund/signed"
		}
		writeJSON(w, resp, http.StatusAccepted)
		return
	}
	if err != nil {
		writeChainError(w, r, logger, err)
		return
	}

	if recorder.async && result.ConfirmedRound == 0 {
		resp := submittedResponse(recorder, statusPending, result)
		id, err := recorder.track(ctx, campaignID, result)
		if err != nil {
			logger.ErrorContext(ctx, "failed to start donation workflow", "txid", result.TxID, "error", err)
			resp["status"] = statusSubmitted
			resp["message"] = "Transaction submitted. Confirmation tracking is unavailable."
			writeJSON(w, resp, http.StatusAccepted)
			return
		}
		resp["workflow_id"] = id
		resp["status_url"] = "/api/v1/donation-status/" + id
		writeJSON(w, resp, http.StatusAccepted)
		return
	}

	c, err := recorder.credit(ctx, campaignID, result)
	if err != nil {
		writeLedgerError(w, r, logger, "failed to credit donation", err)
		return
	}

	resp := submittedResponse(recorder, statusConfirmed, result)
	resp["confirmed_round"] = result.ConfirmedRound
	resp["reward_tokens"] = ledger.RewardTokens(result.Amount)
	resp["campaign"] = campaignToResponse(c, now())
	writeJSON(w, resp, http.StatusOK)
}

func submittedResponse(recorder *donationRecorder, status string, result *algorand.SubmitResult) map[string]interface{} {
	resp := map[string]interface{}{
		"status": status,
		"txid":   result.TxID,
		"amount": uint64(result.Amount),
	}
	if recorder.explorer.BaseURL != "" {
		resp["explorer_url"] = recorder.explorer.TransactionURL(result.TxID)
	}
	return resp
}

// writeChainError maps chain and wallet errors to responses. A wallet that cannot
// sign yields 202 with the unsigned transaction for manual signing.
func writeChainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var manual *algorand.ManualSignRequiredError
	switch {
	case errors.As(err, &manual):
		logger.InfoContext(r.Context(), "manual signing required",
			"kind", manual.Kind,
			"txid", manual.TxID,
			"sender", manual.Sender,
		)
		writeJSON(w, map[string]interface{}{
			"status":      statusManualSignRequired,
			"message":     algorand.UserMessage(err),
			"manual_sign": manual,
		}, http.StatusAccepted)
	case algorand.IsClientError(err):
		writeError(w, algorand.UserMessage(err), http.StatusBadRequest)
	default:
		logger.WarnContext(r.Context(), "chain operation failed", "error", err)
		writeError(w, algorand.UserMessage(err), http.StatusBadGateway)
	}
}

// handleDonationStatus returns a handler that reports an asynchronous donation's progress.
// GET /api/v1/donation-status/{workflow_id}
func handleDonationStatus(scheduler temporal.Scheduler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if scheduler == nil {
			writeError(w, "asynchronous confirmation is not enabled", http.StatusServiceUnavailable)
			return
		}

		id := r.PathValue("workflow_id")
		status, err := scheduler.DonationStatus(r.Context(), id)
		if err != nil {
			if errors.Is(err, temporal.ErrWorkflowNotFound) {
				writeError(w, "workflow not found", http.StatusNotFound)
				return
			}
			logger.ErrorContext(r.Context(), "failed to get donation status", "workflow_id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, status, http.StatusOK)
	})
}

// handleReceiver returns a handler that reports the default escrow address.
// GET /api/v1/receiver
func handleReceiver(escrow, network string, explorer algorand.Explorer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"address": escrow,
			"network": network,
		}
		if escrow != "" && explorer.BaseURL != "" {
			resp["explorer_url"] = explorer.AccountURL(escrow)
		}
		writeJSON(w, resp, http.StatusOK)
	})
}
