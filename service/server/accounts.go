package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/algofund/service/algorand"
	"github.com/brojonat/algofund/service/ledger"
	"github.com/brojonat/algofund/service/metrics"
	"github.com/brojonat/algofund/service/wallet"
)

// handleProfile returns a handler that summarizes an address's donations and rewards.
// GET /api/v1/profiles/{address}
func handleProfile(store ledger.Repository, chain ChainClient, explorer algorand.Explorer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if !ledger.ValidAddress(address) {
			writeError(w, "invalid address", http.StatusBadRequest)
			return
		}

		campaigns, err := store.ListCampaigns(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list campaigns", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		tokens, err := store.TokenBalance(r.Context(), address)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get token balance", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		p := ledger.BuildProfile(address, campaigns, tokens)
		contributions := make([]donationEntryResponse, len(p.Contributions))
		for i, e := range p.Contributions {
			contributions[i] = entryToResponse(e)
		}
		resp := map[string]interface{}{
			"address":            p.Address,
			"token_balance":      p.TokenBalance,
			"total_donated":      uint64(p.TotalDonated),
			"total_donated_algo": p.TotalDonated.ToAlgos(),
			"badges":             p.Badges,
			"contributions":      contributions,
		}
		if explorer.BaseURL != "" {
			resp["explorer_url"] = explorer.AccountURL(p.Address)
		}

		// The on-chain balance is informational; the profile is served without it.
		if balance, err := chain.AccountBalance(r.Context(), address); err != nil {
			logger.WarnContext(r.Context(), "failed to get account balance", "address", address, "error", err)
		} else {
			resp["algo_balance"] = uint64(balance)
			resp["algo_balance_algo"] = balance.ToAlgos()
		}

		writeJSON(w, resp, http.StatusOK)
	})
}

type bountyResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	RewardTokens uint64 `json:"reward_tokens"`
}

// handleListBounties returns a handler that lists the claimable bounties.
// GET /api/v1/bounties
func handleListBounties() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bounties := ledger.Bounties()
		resp := make([]bountyResponse, len(bounties))
		for i, b := range bounties {
			resp[i] = bountyResponse{ID: b.ID, Title: b.Title, RewardTokens: b.RewardTokens}
		}
		writeJSON(w, map[string]interface{}{"bounties": resp}, http.StatusOK)
	})
}

type claimRequest struct {
	Address string `json:"address"`
}

// handleClaimBounty returns a handler that claims a bounty by sending a zero-amount
// self-payment carrying the claim note from the claimant's connected wallet.
// POST /api/v1/bounties/{id}/claim
func handleClaimBounty(
	store ledger.Repository,
	chain ChainClient,
	keyring *wallet.Keyring,
	explorer algorand.Explorer,
	m *metrics.Metrics,
	now func() time.Time,
	logger *slog.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bounty, ok := ledger.FindBounty(r.PathValue("id"))
		if !ok {
			writeError(w, "bounty not found", http.StatusNotFound)
			return
		}

		var req claimRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		address := strings.TrimSpace(req.Address)
		if !ledger.ValidAddress(address) {
			writeError(w, "invalid address", http.StatusBadRequest)
			return
		}

		note := ledger.ClaimNote(bounty.ID, now())
		result, err := chain.SignProof(r.Context(), address, note, keyring.Signer(address))
		if err != nil {
			writeChainError(w, r, logger, err)
			return
		}

		balance, err := awardClaim(r.Context(), store, m, bounty, result)
		if err != nil {
			writeLedgerError(w, r, logger, "failed to award bounty", err)
			return
		}

		logger.InfoContext(r.Context(), "bounty claimed",
			"bounty_id", bounty.ID,
			"address", address,
			"txid", result.TxID,
		)
		writeJSON(w, claimResponse(bounty, result, balance, explorer), http.StatusOK)
	})
}

// handleClaimBountySigned returns a handler that submits a claim proof signed outside the app.
// POST /api/v1/bounties/{id}/claim/signed
func handleClaimBountySigned(
	store ledger.Repository,
	chain ChainClient,
	explorer algorand.Explorer,
	m *metrics.Metrics,
	logger *slog.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bounty, ok := ledger.FindBounty(r.PathValue("id"))
		if !ok {
			writeError(w, "bounty not found", http.StatusNotFound)
			return
		}

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
		if err := validateClaimProof(bounty, payment); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := chain.SubmitSignedBase64(r.Context(), ledger.KindClaim, req.SignedTxn)
		if err != nil {
			writeChainError(w, r, logger, err)
			return
		}

		balance, err := awardClaim(r.Context(), store, m, bounty, result)
		if err != nil {
			writeLedgerError(w, r, logger, "failed to award bounty", err)
			return
		}
		writeJSON(w, claimResponse(bounty, result, balance, explorer), http.StatusOK)
	})
}

// validateClaimProof checks a claim is a zero-amount self-payment noting the bounty.
func validateClaimProof(bounty ledger.Bounty, p *algorand.Payment) error {
	switch {
	case p.Type != "pay":
		return ledger.Invalid("claim proof must be a payment")
	case p.Sender != p.Receiver:
		return ledger.Invalid("claim proof must be a payment to self")
	case p.Amount != 0:
		return ledger.Invalid("claim proof must have a zero amount")
	case !strings.HasPrefix(p.Note, "Claim:"+bounty.ID+":"):
		return ledger.Invalid("claim proof note does not match the bounty")
	}
	return nil
}

// awardClaim logs the proof transaction and credits the bounty reward in one write.
// A proof transaction pays out once.
func awardClaim(ctx context.Context, store ledger.Repository, m *metrics.Metrics, bounty ledger.Bounty, result *algorand.SubmitResult) (uint64, error) {
	err := store.CreditReward(ctx, ledger.TransactionRecord{
		TxID:           result.TxID,
		Kind:           ledger.KindClaim,
		Sender:         result.Sender,
		Receiver:       result.Receiver,
		Note:           result.Note,
		ConfirmedRound: result.ConfirmedRound,
	}, bounty.RewardTokens)
	if err != nil {
		return 0, err
	}
	if m != nil {
		m.RecordRewardTokens("bounty", bounty.RewardTokens)
	}
	return store.TokenBalance(ctx, result.Sender)
}

func claimResponse(bounty ledger.Bounty, result *algorand.SubmitResult, balance uint64, explorer algorand.Explorer) map[string]interface{} {
	resp := map[string]interface{}{
		"status":          "claimed",
		"bounty_id":       bounty.ID,
		"txid":            result.TxID,
		"confirmed_round": result.ConfirmedRound,
		"reward_tokens":   bounty.RewardTokens,
		"token_balance":   balance,
	}
	if explorer.BaseURL != "" {
		resp["explorer_url"] = explorer.TransactionURL(result.TxID)
	}
	return resp
}

// handleSubmitSigned returns a handler that submits any signed transaction and waits for it.
// POST /api/v1/transactions/signed
func handleSubmitSigned(store ledger.Repository, chain ChainClient, explorer algorand.Explorer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req signedTxnRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.SignedTxn) == "" {
			writeError(w, "signed_txn is required", http.StatusBadRequest)
			return
		}

		if _, _, err := algorand.DecodeSignedTxn(req.SignedTxn); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := chain.SubmitSignedBase64(r.Context(), ledger.KindRaw, req.SignedTxn)
		status := http.StatusOK
		switch {
		case errors.Is(err, algorand.ErrConfirmationTimeout) && result != nil:
			status = http.StatusAccepted
		case err != nil:
			writeChainError(w, r, logger, err)
			return
		}

		err = store.RecordTransaction(r.Context(), ledger.TransactionRecord{
			TxID:           result.TxID,
			Kind:           ledger.KindRaw,
			Sender:         result.Sender,
			Receiver:       result.Receiver,
			Amount:         result.Amount,
			Note:           result.Note,
			ConfirmedRound: result.ConfirmedRound,
		})
		if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
			logger.ErrorContext(r.Context(), "failed to record transaction", "txid", result.TxID, "error", err)
		}

		resp := map[string]interface{}{
			"status":          statusConfirmed,
			"txid":            result.TxID,
			"type":            result.Type,
			"sender":          result.Sender,
			"receiver":        result.Receiver,
			"amount":          uint64(result.Amount),
			"confirmed_round": result.ConfirmedRound,
		}
		if status == http.StatusAccepted {
			resp["status"] = statusSubmitted
			resp["message"] = algorand.UserMessage(algorand.ErrConfirmationTimeout)
		}
		if explorer.BaseURL != "" {
			resp["explorer_url"] = explorer.TransactionURL(result.TxID)
		}
		writeJSON(w, resp, status)
	})
}

// handleListTransactions returns a handler that lists transactions submitted through the service.
// GET /api/v1/transactions?address=ADDRESS&limit=N&offset=N
func handleListTransactions(store ledger.Repository, explorer algorand.Explorer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.URL.Query().Get("address")
		if address != "" && !ledger.ValidAddress(address) {
			writeError(w, "invalid address", http.StatusBadRequest)
			return
		}

		limit, offset, err := parsePaging(r)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		txns, err := store.ListTransactions(r.Context(), address, limit, offset)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list transactions", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]transactionResponse, len(txns))
		for i, t := range txns {
			resp[i] = transactionToResponse(t, explorer)
		}
		writeJSON(w, map[string]interface{}{
			"transactions": resp,
			"count":        len(resp),
			"limit":        limit,
			"offset":       offset,
		}, http.StatusOK)
	})
}

// transactionResponse is the JSON response format for a logged transaction.
type transactionResponse struct {
	TxID           string    `json:"txid"`
	Kind           string    `json:"kind"`
	Sender         string    `json:"sender"`
	Receiver       string    `json:"receiver,omitempty"`
	Amount         uint64    `json:"amount"`
	CampaignID     string    `json:"campaign_id,omitempty"`
	Note           string    `json:"note,omitempty"`
	ConfirmedRound uint64    `json:"confirmed_round,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
	ExplorerURL    string    `json:"explorer_url,omitempty"`
}

func transactionToResponse(t *ledger.TransactionRecord, explorer algorand.Explorer) transactionResponse {
	resp := transactionResponse{
		TxID:           t.TxID,
		Kind:           t.Kind,
		Sender:         t.Sender,
		Receiver:       t.Receiver,
		Amount:         uint64(t.Amount),
		CampaignID:     t.CampaignID,
		Note:           t.Note,
		ConfirmedRound: t.ConfirmedRound,
		SubmittedAt:    t.SubmittedAt,
	}
	if explorer.BaseURL != "" {
		resp.ExplorerURL = explorer.TransactionURL(t.TxID)
	}
	return resp
}
