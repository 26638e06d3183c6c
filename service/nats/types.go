package nats

import (
	"fmt"
	"time"

	"github.com/brojonat/algofund/service/ledger"
)

// Donation sources.
const (
	SourcePledge  = "pledge"
	SourceOnChain = "onchain"
)

// DonationEvent is published to "campaigns.{campaign_id}.donations" whenever
// a donation is credited to a campaign.
type DonationEvent struct {
	CampaignID    string `json:"campaign_id"`
	CampaignTitle string `json:"campaign_title"`

	Donor        string  `json:"donor"`
	Amount       uint64  `json:"amount"` // microALGO
	AmountAlgo   float64 `json:"amount_algo"`
	RewardTokens uint64  `json:"reward_tokens"`
	Source       string  `json:"source"`

	// On-chain donations only
	TxID           string `json:"txid,omitempty"`
	ConfirmedRound uint64 `json:"confirmed_round,omitempty"`
	ExplorerURL    string `json:"explorer_url,omitempty"`

	// Campaign totals after the donation
	Raised   uint64  `json:"raised"`
	Goal     uint64  `json:"goal"`
	Progress float64 `json:"progress"`

	Timestamp   time.Time `json:"timestamp"`
	PublishedAt time.Time `json:"published_at"`
}

// CampaignEvent is published to "campaigns.{campaign_id}.created" for new campaigns.
type CampaignEvent struct {
	CampaignID  string    `json:"campaign_id"`
	Title       string    `json:"title"`
	Creator     string    `json:"creator"`
	Goal        uint64    `json:"goal"`
	Deadline    time.Time `json:"deadline"`
	CreatedAt   time.Time `json:"created_at"`
	PublishedAt time.Time `json:"published_at"`
}

// NewDonationEvent builds a DonationEvent from the campaign state after a donation.
func NewDonationEvent(c *ledger.Campaign, donor string, amount ledger.MicroAlgos, source string) *DonationEvent {
	return &DonationEvent{
		CampaignID:    c.ID,
		CampaignTitle: c.Title,
		Donor:         donor,
		Amount:        uint64(amount),
		AmountAlgo:    amount.ToAlgos(),
		RewardTokens:  ledger.RewardTokens(amount),
		Source:        source,
		Raised:        uint64(c.Raised),
		Goal:          uint64(c.Goal),
		Progress:      ledger.Progress(c),
		Timestamp:     time.Now().UTC(),
	}
}

// FromCampaign converts a campaign to a CampaignEvent for publishing.
func FromCampaign(c *ledger.Campaign) *CampaignEvent {
	return &CampaignEvent{
		CampaignID: c.ID,
		Title:      c.Title,
		Creator:    c.Creator,
		Goal:       uint64(c.Goal),
		Deadline:   c.Deadline,
		CreatedAt:  c.CreatedAt,
	}
}

// Event types, used as the publish metrics label.
const (
	EventDonation        = "donation"
	EventCampaignCreated = "created"
)

// DonationSubject returns the subject donations to a campaign are published on.
func DonationSubject(campaignID string) string {
	return fmt.Sprintf("campaigns.%s.donations", campaignID)
}

// CampaignSubject returns the subject a campaign's creation is published on.
func CampaignSubject(campaignID string) string {
	return fmt.Sprintf("campaigns.%s.created", campaignID)
}

// AllDonationsSubject matches donations to every campaign.
const AllDonationsSubject = "campaigns.*.donations"
