package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Donation and claim statuses reported by the server.
const (
	StatusConfirmed          = "confirmed"
	StatusPending            = "pending"
	StatusSubmitted          = "submitted"
	StatusManualSignRequired = "manual_sign_required"
)

// ManualSign is an unsigned transaction the caller must sign with an external wallet
// and submit through FundSigned or ClaimBountySigned.
type ManualSign struct {
	Kind        string    `json:"kind"`
	TxID        string    `json:"txid"`
	Sender      string    `json:"sender"`
	Receiver    string    `json:"receiver"`
	Amount      uint64    `json:"amount"`
	Note        string    `json:"note"`
	UnsignedTxn string    `json:"unsigned_txn"`
	LuteURL     string    `json:"lute_url"`
	PaymentURI  string    `json:"payment_uri"`
	QRCodeData  string    `json:"qr_code_data,omitempty"`
	Filename    string    `json:"filename"`
	ExpiresAt   uint64    `json:"expires_at_round"`
	CreatedAt   time.Time `json:"created_at"`
}

// FundResult is the outcome of an on-chain donation.
// Status is one of the Status constants; ManualSign is set for StatusManualSignRequired.
type FundResult struct {
	Status         string      `json:"status"`
	Message        string      `json:"message,omitempty"`
	TxID           string      `json:"txid,omitempty"`
	Amount         uint64      `json:"amount,omitempty"`
	ExplorerURL    string      `json:"explorer_url,omitempty"`
	ConfirmedRound uint64      `json:"confirmed_round,omitempty"`
	RewardTokens   uint64      `json:"reward_tokens,omitempty"`
	WorkflowID     string      `json:"workflow_id,omitempty"`
	StatusURL      string      `json:"status_url,omitempty"`
	// SignedTxn is set when nothing will credit a submitted donation once it confirms;
	// resubmit it to the signed endpoint to credit the campaign.
	SignedTxn      string      `json:"signed_txn,omitempty"`
	Campaign       *Campaign   `json:"campaign,omitempty"`
	ManualSign     *ManualSign `json:"manual_sign,omitempty"`
}

// Fund sends an on-chain donation of amount microALGO from donor.
// A donor whose wallet cannot sign in-app gets StatusManualSignRequired, not an error.
func (c *Client) Fund(ctx context.Context, campaignID, donor string, amount uint64) (*FundResult, error) {
	var result FundResult
	path := fmt.Sprintf("/api/v1/campaigns/%s/fund", url.PathEscape(campaignID))
	body := map[string]interface{}{"donor": donor, "amount": amount}
	if _, err := c.do(ctx, "POST", path, body, &result, http.StatusOK, http.StatusAccepted); err != nil {
		return nil, err
	}
	c.logger.Debug("campaign funded", "campaign_id", campaignID, "status", result.Status, "txid", result.TxID)
	return &result, nil
}

// FundSigned submits a donation signed outside the app (base64 msgpack).
func (c *Client) FundSigned(ctx context.Context, campaignID, signedTxn string) (*FundResult, error) {
	var result FundResult
	path := fmt.Sprintf("/api/v1/campaigns/%s/fund/signed", url.PathEscape(campaignID))
	body := map[string]string{"signed_txn": signedTxn}
	if _, err := c.do(ctx, "POST", path, body, &result, http.StatusOK, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &result, nil
}

// DonationResult is the outcome of a finished donation workflow.
type DonationResult struct {
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

// DonationStatus reports an asynchronous donation's workflow.
type DonationStatus struct {
	WorkflowID string          `json:"workflow_id"`
	State      string          `json:"state"` // running, completed, failed
	Result     *DonationResult `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// DonationStatus retrieves the state of a donation workflow.
func (c *Client) DonationStatus(ctx context.Context, workflowID string) (*DonationStatus, error) {
	var status DonationStatus
	path := "/api/v1/donation-status/" + url.PathEscape(workflowID)
	if _, err := c.do(ctx, "GET", path, nil, &status, http.StatusOK); err != nil {
		return nil, err
	}
	return &status, nil
}

// WaitForDonation polls a donation workflow until it leaves the running state.
func (c *Client) WaitForDonation(ctx context.Context, workflowID string, interval time.Duration) (*DonationStatus, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.DonationStatus(ctx, workflowID)
		if err != nil {
			return nil, err
		}
		if status.State != "running" {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Receiver is the server's default escrow address.
type Receiver struct {
	Address     string `json:"address"`
	Network     string `json:"network"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// Receiver retrieves the default escrow address donations are sent to.
func (c *Client) Receiver(ctx context.Context) (*Receiver, error) {
	var r Receiver
	if _, err := c.do(ctx, "GET", "/api/v1/receiver", nil, &r, http.StatusOK); err != nil {
		return nil, err
	}
	return &r, nil
}
