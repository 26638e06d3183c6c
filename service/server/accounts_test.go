package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/algofund/service/ledger"
)

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balance = 5_250_000
	donor := newAddress()

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/campaigns/1/donations", fmt.Sprintf(`{"donor":"%s","amount_algo":60}`, donor)).Code)
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/campaigns/3/donations", fmt.Sprintf(`{"donor":"%s","amount_algo":50}`, donor)).Code)

	w := env.do(t, "GET", "/api/v1/profiles/"+donor, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Address          string                  `json:"address"`
		TokenBalance     uint64                  `json:"token_balance"`
		TotalDonatedAlgo float64                 `json:"total_donated_algo"`
		Badges           []string                `json:"badges"`
		Contributions    []donationEntryResponse `json:"contributions"`
		AlgoBalance      *uint64                 `json:"algo_balance"`
		ExplorerURL      string                  `json:"explorer_url"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, donor, resp.Address)
	assert.Equal(t, uint64(110), resp.TokenBalance)
	assert.Equal(t, 110.0, resp.TotalDonatedAlgo)
	assert.Equal(t, []string{"Legendary Supporter", "Top Backer", "Active Donor"}, resp.Badges)
	assert.Len(t, resp.Contributions, 2)
	require.NotNil(t, resp.AlgoBalance)
	assert.Equal(t, uint64(5_250_000), *resp.AlgoBalance)
	assert.Equal(t, "https://testnet.explorer.perawallet.app/address/"+donor, resp.ExplorerURL)
}

func TestProfile_WithoutChainBalance(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balanceErr = errors.New("connection refused")
	address := newAddress()

	w := env.do(t, "GET", "/api/v1/profiles/"+address, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.NotContains(t, body, "algo_balance")
	assert.Equal(t, 0.0, body["token_balance"])
	assert.Empty(t, body["badges"])
	assert.Empty(t, body["contributions"])

	w = env.do(t, "GET", "/api/v1/profiles/not-an-address", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListBounties(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/api/v1/bounties", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Bounties []bountyResponse `json:"bounties"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Bounties, 3)
	assert.Equal(t, bountyResponse{ID: "b1", Title: "Translate Docs", RewardTokens: 50}, resp.Bounties[0])
}

func TestClaimBounty(t *testing.T) {
	env := newTestEnv(t)
	address := env.donor.Address()

	w := env.do(t, "POST", "/api/v1/bounties/b1/claim", fmt.Sprintf(`{"address":"%s"}`, address))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "claimed", body["status"])
	assert.Equal(t, "b1", body["bounty_id"])
	assert.Equal(t, 50.0, body["reward_tokens"])
	assert.Equal(t, 50.0, body["token_balance"])
	assert.Equal(t, "https://testnet.explorer.perawallet.app/tx/TX0001", body["explorer_url"])

	require.Len(t, env.chain.proofs, 1)
	assert.Equal(t, ledger.ClaimNote("b1", testNow), env.chain.proofs[0])

	txns, err := env.store.ListTransactions(context.Background(), address, 10, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, ledger.KindClaim, txns[0].Kind)

	w = env.do(t, "POST", "/api/v1/bounties/b3/claim", fmt.Sprintf(`{"address":"%s"}`, address))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 60.0, decodeBody(t, w)["token_balance"])
}

func TestClaimBounty_Errors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/bounties/b9/claim", fmt.Sprintf(`{"address":"%s"}`, env.donor.Address()))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, "POST", "/api/v1/bounties/b1/claim", `{"address":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Not connected: the claim proof has to be signed externally.
	w = env.do(t, "POST", "/api/v1/bounties/b1/claim", fmt.Sprintf(`{"address":"%s"}`, newAddress()))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, statusManualSignRequired, decodeBody(t, w)["status"])

	env.chain.proofErr = errors.New("http 503: service unavailable")
	w = env.do(t, "POST", "/api/v1/bounties/b1/claim", fmt.Sprintf(`{"address":"%s"}`, env.donor.Address()))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	tokens, err := env.store.TokenBalance(context.Background(), env.donor.Address())
	require.NoError(t, err)
	assert.Zero(t, tokens)
}

func TestClaimBountySigned(t *testing.T) {
	env := newTestEnv(t)
	account := crypto.GenerateAccount()
	address := account.Address.String()

	b64, txid := signedPayment(t, account, address, 0, "Claim:b2:1717243200000")
	w := env.do(t, "POST", "/api/v1/bounties/b2/claim/signed", fmt.Sprintf(`{"signed_txn":"%s"}`, b64))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, txid, body["txid"])
	assert.Equal(t, 25.0, body["token_balance"])
	assert.Equal(t, []string{ledger.KindClaim}, env.chain.submitted)

	// A proof pays out once.
	w = env.do(t, "POST", "/api/v1/bounties/b2/claim/signed", fmt.Sprintf(`{"signed_txn":"%s"}`, b64))
	assert.Equal(t, http.StatusConflict, w.Code)
	tokens, err := env.store.TokenBalance(context.Background(), address)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), tokens)
}

func TestClaimBountySigned_RetryAfterFailedAward(t *testing.T) {
	env := newTestEnv(t, withFlakyStore(0, 1))
	account := crypto.GenerateAccount()
	address := account.Address.String()
	b64, txid := signedPayment(t, account, address, 0, "Claim:b2:1717243200000")
	body := fmt.Sprintf(`{"signed_txn":"%s"}`, b64)

	w := env.do(t, "POST", "/api/v1/bounties/b2/claim/signed", body)
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
	tokens, err := env.store.TokenBalance(context.Background(), address)
	require.NoError(t, err)
	assert.Zero(t, tokens)

	w = env.do(t, "POST", "/api/v1/bounties/b2/claim/signed", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody(t, w)
	assert.Equal(t, txid, resp["txid"])
	assert.Equal(t, 25.0, resp["token_balance"], "the retried proof still pays out")

	txns, err := env.store.ListTransactions(context.Background(), address, 0, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, ledger.KindClaim, txns[0].Kind)
}

func TestClaimBounty_RetryAfterFailedAward(t *testing.T) {
	env := newTestEnv(t, withFlakyStore(0, 1))
	address := env.donor.Address()

	w := env.do(t, "POST", "/api/v1/bounties/b1/claim", fmt.Sprintf(`{"address":"%s"}`, address))
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())

	w = env.do(t, "POST", "/api/v1/bounties/b1/claim", fmt.Sprintf(`{"address":"%s"}`, address))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 50.0, decodeBody(t, w)["token_balance"])
}

func TestClaimBountySigned_InvalidProof(t *testing.T) {
	env := newTestEnv(t)
	account := crypto.GenerateAccount()
	address := account.Address.String()

	wrongBounty, _ := signedPayment(t, account, address, 0, "Claim:b1:1")
	notSelf, _ := signedPayment(t, account, newAddress(), 0, "Claim:b2:1")
	withAmount, _ := signedPayment(t, account, address, 1000, "Claim:b2:1")

	tests := []struct {
		name      string
		signed    string
		wantError string
	}{
		{name: "note for another bounty", signed: wrongBounty, wantError: "does not match the bounty"},
		{name: "payment to someone else", signed: notSelf, wantError: "payment to self"},
		{name: "non-zero amount", signed: withAmount, wantError: "zero amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/v1/bounties/b2/claim/signed", fmt.Sprintf(`{"signed_txn":"%s"}`, tt.signed))
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decodeBody(t, w)["error"], tt.wantError)
		})
	}
	assert.Empty(t, env.chain.submitted)
}

func TestSubmitSignedAndListTransactions(t *testing.T) {
	env := newTestEnv(t)
	sender := crypto.GenerateAccount()
	receiver := newAddress()

	b64, txid := signedPayment(t, sender, receiver, 1_500_000, "hello")
	w := env.do(t, "POST", "/api/v1/transactions/signed", fmt.Sprintf(`{"signed_txn":"%s"}`, b64))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, txid, body["txid"])
	assert.Equal(t, "pay", body["type"])
	assert.Equal(t, 1_500_000.0, body["amount"])
	assert.Equal(t, []string{ledger.KindRaw}, env.chain.submitted)

	w = env.do(t, "POST", "/api/v1/transactions/signed", `{"signed_txn":"%%%"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "GET", "/api/v1/transactions?address="+receiver, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Transactions []transactionResponse `json:"transactions"`
		Count        int                   `json:"count"`
		Limit        int                   `json:"limit"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, 100, resp.Limit)
	assert.Equal(t, txid, resp.Transactions[0].TxID)
	assert.Equal(t, ledger.KindRaw, resp.Transactions[0].Kind)
	assert.Equal(t, "hello", resp.Transactions[0].Note)
	assert.Equal(t, "https://testnet.explorer.perawallet.app/tx/"+txid, resp.Transactions[0].ExplorerURL)

	w = env.do(t, "GET", "/api/v1/transactions?address="+newAddress(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, decodeBody(t, w)["count"])

	w = env.do(t, "GET", "/api/v1/transactions?address=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "GET", "/api/v1/transactions?limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "limit cannot exceed")
}
