package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Profile summarizes an address's donations and rewards.
type Profile struct {
	Address          string          `json:"address"`
	TokenBalance     uint64          `json:"token_balance"`
	TotalDonated     uint64          `json:"total_donated"`
	TotalDonatedAlgo float64         `json:"total_donated_algo"`
	Badges           []string        `json:"badges"`
	Contributions    []DonationEntry `json:"contributions"`
	AlgoBalance      *uint64         `json:"algo_balance,omitempty"` // nil when the node could not be reached
	ExplorerURL      string          `json:"explorer_url,omitempty"`
}

// Bounty is a task that pays reward tokens.
type Bounty struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	RewardTokens uint64 `json:"reward_tokens"`
}

// ClaimResult is the outcome of a bounty claim.
// ManualSign is set when the claimant's wallet cannot sign in-app.
type ClaimResult struct {
	Status         string      `json:"status"`
	Message        string      `json:"message,omitempty"`
	BountyID       string      `json:"bounty_id,omitempty"`
	TxID           string      `json:"txid,omitempty"`
	ConfirmedRound uint64      `json:"confirmed_round,omitempty"`
	RewardTokens   uint64      `json:"reward_tokens,omitempty"`
	TokenBalance   uint64      `json:"token_balance,omitempty"`
	ExplorerURL    string      `json:"explorer_url,omitempty"`
	ManualSign     *ManualSign `json:"manual_sign,omitempty"`
}

// Transaction is a transaction submitted through the service.
type Transaction struct {
	TxID           string    `json:"txid"`
	Kind           string    `json:"kind"` // fund, claim, raw
	Sender         string    `json:"sender"`
	Receiver       string    `json:"receiver,omitempty"`
	Amount         uint64    `json:"amount"`
	CampaignID     string    `json:"campaign_id,omitempty"`
	Note           string    `json:"note,omitempty"`
	ConfirmedRound uint64    `json:"confirmed_round,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
	ExplorerURL    string    `json:"explorer_url,omitempty"`
}

// SubmitResult describes a signed transaction submitted through SubmitSigned.
type SubmitResult struct {
	Status         string `json:"status"` // confirmed or submitted
	Message        string `json:"message,omitempty"`
	TxID           string `json:"txid"`
	Type           string `json:"type"`
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
	Amount         uint64 `json:"amount"`
	ConfirmedRound uint64 `json:"confirmed_round"`
	ExplorerURL    string `json:"explorer_url,omitempty"`
}

// Profile retrieves an address's profile.
func (c *Client) Profile(ctx context.Context, address string) (*Profile, error) {
	var p Profile
	if _, err := c.do(ctx, "GET", "/api/v1/profiles/"+url.PathEscape(address), nil, &p, http.StatusOK); err != nil {
		return nil, err
	}
	return &p, nil
}

// Wallet reports how an address signs: "in_app" for a connected signer, "manual" otherwise.
type Wallet struct {
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
	Signing   string `json:"signing"`
}

// WalletStatus reports whether the server can sign for address.
func (c *Client) WalletStatus(ctx context.Context, address string) (*Wallet, error) {
	var wallet Wallet
	if _, err := c.do(ctx, "GET", "/api/v1/wallets/"+url.PathEscape(address), nil, &wallet, http.StatusOK); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// DisconnectWallet drops the server's in-app signer for address.
func (c *Client) DisconnectWallet(ctx context.Context, address string) (*Wallet, error) {
	var wallet Wallet
	if _, err := c.do(ctx, "DELETE", "/api/v1/wallets/"+url.PathEscape(address), nil, &wallet, http.StatusOK); err != nil {
		return nil, err
	}
	c.logger.Debug("wallet disconnected", "address", address)
	return &wallet, nil
}

// ListBounties retrieves the claimable bounties.
func (c *Client) ListBounties(ctx context.Context) ([]Bounty, error) {
	var response struct {
		Bounties []Bounty `json:"bounties"`
	}
	if _, err := c.do(ctx, "GET", "/api/v1/bounties", nil, &response, http.StatusOK); err != nil {
		return nil, err
	}
	return response.Bounties, nil
}

// ClaimBounty claims a bounty by signing a proof transaction with address's connected wallet.
func (c *Client) ClaimBounty(ctx context.Context, bountyID, address string) (*ClaimResult, error) {
	var result ClaimResult
	path := fmt.Sprintf("/api/v1/bounties/%s/claim", url.PathEscape(bountyID))
	body := map[string]string{"address": address}
	if _, err := c.do(ctx, "POST", path, body, &result, http.StatusOK, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &result, nil
}

// ClaimBountySigned submits a claim proof signed outside the app.
func (c *Client) ClaimBountySigned(ctx context.Context, bountyID, signedTxn string) (*ClaimResult, error) {
	var result ClaimResult
	path := fmt.Sprintf("/api/v1/bounties/%s/claim/signed", url.PathEscape(bountyID))
	body := map[string]string{"signed_txn": signedTxn}
	if _, err := c.do(ctx, "POST", path, body, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitSigned submits any signed transaction (base64 msgpack).
func (c *Client) SubmitSigned(ctx context.Context, signedTxn string) (*SubmitResult, error) {
	var result SubmitResult
	body := map[string]string{"signed_txn": signedTxn}
	if _, err := c.do(ctx, "POST", "/api/v1/transactions/signed", body, &result, http.StatusOK, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTransactionsParams filters ListTransactions. Zero values use server defaults.
type ListTransactionsParams struct {
	Address string
	Limit   int
	Offset  int
}

// ListTransactions retrieves transactions submitted through the service, newest first.
func (c *Client) ListTransactions(ctx context.Context, params ListTransactionsParams) ([]*Transaction, error) {
	q := url.Values{}
	if params.Address != "" {
		q.Set("address", params.Address)
	}
	if params.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", params.Offset))
	}
	path := "/api/v1/transactions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var response struct {
		Transactions []*Transaction `json:"transactions"`
	}
	if _, err := c.do(ctx, "GET", path, nil, &response, http.StatusOK); err != nil {
		return nil, err
	}
	return response.Transactions, nil
}
