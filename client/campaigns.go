package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Campaign is a crowdfunding campaign as reported by the server. Amounts are in microALGO.
type Campaign struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Goal        uint64    `json:"goal"`
	GoalAlgo    float64   `json:"goal_algo"`
	Raised      uint64    `json:"raised"`
	RaisedAlgo  float64   `json:"raised_algo"`
	Progress    float64   `json:"progress"`
	Remaining   uint64    `json:"remaining"`
	Deadline    time.Time `json:"deadline"`
	Creator     string    `json:"creator"`
	Receiver    string    `json:"receiver,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	Ended       bool      `json:"ended"`
	AppID       uint64    `json:"app_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	DonorCount  int       `json:"donor_count"`
	TopDonors   []Donor   `json:"top_donors"`
}

// Donor is one address's cumulative contribution to a campaign.
type Donor struct {
	Address    string  `json:"address"`
	Amount     uint64  `json:"amount"`
	AmountAlgo float64 `json:"amount_algo"`
}

// DonationEntry is a donor row annotated with its campaign.
type DonationEntry struct {
	CampaignID    string  `json:"campaign_id"`
	CampaignTitle string  `json:"campaign_title"`
	Address       string  `json:"address"`
	Amount        uint64  `json:"amount"`
	AmountAlgo    float64 `json:"amount_algo"`
}

// NewCampaign contains the fields for creating a campaign.
// Deadline is RFC3339 or YYYY-MM-DD.
type NewCampaign struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Goal        uint64  `json:"goal,omitempty"`
	GoalAlgo    float64 `json:"goal_algo,omitempty"`
	Deadline    string  `json:"deadline"`
	Creator     string  `json:"creator"`
	Receiver    string  `json:"receiver,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// PledgeResult is the outcome of an off-chain donation.
type PledgeResult struct {
	Status       string   `json:"status"`
	RewardTokens uint64   `json:"reward_tokens"`
	Campaign     Campaign `json:"campaign"`
}

// ListCampaigns retrieves all campaigns, newest first.
func (c *Client) ListCampaigns(ctx context.Context) ([]*Campaign, error) {
	var response struct {
		Campaigns []*Campaign `json:"campaigns"`
	}
	if _, err := c.do(ctx, "GET", "/api/v1/campaigns", nil, &response, http.StatusOK); err != nil {
		return nil, err
	}
	return response.Campaigns, nil
}

// GetCampaign retrieves a campaign by ID.
func (c *Client) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	var campaign Campaign
	if _, err := c.do(ctx, "GET", "/api/v1/campaigns/"+url.PathEscape(id), nil, &campaign, http.StatusOK); err != nil {
		return nil, err
	}
	return &campaign, nil
}

// CreateCampaign creates a campaign and returns it with its server-assigned ID.
func (c *Client) CreateCampaign(ctx context.Context, nc NewCampaign) (*Campaign, error) {
	var campaign Campaign
	if _, err := c.do(ctx, "POST", "/api/v1/campaigns", nc, &campaign, http.StatusCreated); err != nil {
		return nil, err
	}
	c.logger.Debug("campaign created", "campaign_id", campaign.ID)
	return &campaign, nil
}

// CampaignLeaderboard retrieves a campaign's top donors.
func (c *Client) CampaignLeaderboard(ctx context.Context, id string) ([]Donor, error) {
	var response struct {
		Donors []Donor `json:"donors"`
	}
	path := fmt.Sprintf("/api/v1/campaigns/%s/leaderboard", url.PathEscape(id))
	if _, err := c.do(ctx, "GET", path, nil, &response, http.StatusOK); err != nil {
		return nil, err
	}
	return response.Donors, nil
}

// Pledge records an off-chain donation of amount microALGO.
func (c *Client) Pledge(ctx context.Context, campaignID, donor string, amount uint64) (*PledgeResult, error) {
	var result PledgeResult
	path := fmt.Sprintf("/api/v1/campaigns/%s/donations", url.PathEscape(campaignID))
	body := map[string]interface{}{"donor": donor, "amount": amount}
	if _, err := c.do(ctx, "POST", path, body, &result, http.StatusOK); err != nil {
		return nil, err
	}
	c.logger.Debug("donation pledged", "campaign_id", campaignID, "donor", donor, "amount", amount)
	return &result, nil
}

// Leaderboard retrieves every donor row across campaigns, largest first.
func (c *Client) Leaderboard(ctx context.Context) ([]DonationEntry, error) {
	var response struct {
		Entries []DonationEntry `json:"entries"`
	}
	if _, err := c.do(ctx, "GET", "/api/v1/leaderboard", nil, &response, http.StatusOK); err != nil {
		return nil, err
	}
	return response.Entries, nil
}
