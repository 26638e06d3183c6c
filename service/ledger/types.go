package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// MicroAlgos is an amount of the native token in its smallest unit.
// 1 ALGO = 1,000,000 microALGO.
type MicroAlgos uint64

// MicroAlgosPerAlgo is the number of microALGO in one ALGO.
const MicroAlgosPerAlgo = 1_000_000

// MaxSupply is the total ALGO supply. No goal or donation can exceed it.
const MaxSupply MicroAlgos = 10_000_000_000 * MicroAlgosPerAlgo

// ToAlgos converts microALGO to ALGO for display.
func (m MicroAlgos) ToAlgos() float64 {
	return float64(m) / MicroAlgosPerAlgo
}

// String formats the amount as ALGO with six decimals.
func (m MicroAlgos) String() string {
	return fmt.Sprintf("%d.%06d", uint64(m)/MicroAlgosPerAlgo, uint64(m)%MicroAlgosPerAlgo)
}

// FromAlgos converts a decimal ALGO amount to microALGO, rounding to the nearest unit.
// Negative amounts and NaN convert to zero. Amounts above MaxSupply, +Inf included,
// convert to MaxSupply+1 so validation rejects them instead of wrapping around.
func FromAlgos(algos float64) MicroAlgos {
	if math.IsNaN(algos) || algos <= 0 {
		return 0
	}
	if algos > MaxSupply.ToAlgos() {
		return MaxSupply + 1
	}
	return MicroAlgos(algos*MicroAlgosPerAlgo + 0.5)
}

// Campaign is a funding goal with a deadline and a running total of contributions.
type Campaign struct {
	ID          string
	Title       string
	Description string
	Goal        MicroAlgos
	Raised      MicroAlgos
	Deadline    time.Time
	Creator     string
	Receiver    string // escrow address for on-chain donations; empty means use the default
	ImageURL    string
	IsActive    bool
	AppID       uint64 // reserved for a smart-contract backed campaign; 0 when unused
	Donors      []Donor
	CreatedAt   time.Time
}

// Donor is one address's cumulative contribution to a campaign.
type Donor struct {
	Address string
	Amount  MicroAlgos
}

// DonationEntry is a donor row annotated with the campaign it belongs to.
type DonationEntry struct {
	CampaignID    string
	CampaignTitle string
	Address       string
	Amount        MicroAlgos
}

// Profile summarizes an address's activity across campaigns.
type Profile struct {
	Address       string
	TokenBalance  uint64
	TotalDonated  MicroAlgos
	Badges        []string
	Contributions []DonationEntry
}

// Transaction kinds recorded in the transaction log.
const (
	KindFund  = "fund"
	KindClaim = "claim"
	KindRaw   = "raw"
)

// TransactionRecord is an on-chain transaction submitted through the service.
type TransactionRecord struct {
	TxID           string
	Kind           string
	Sender         string
	Receiver       string
	Amount         MicroAlgos
	CampaignID     string
	Note           string
	ConfirmedRound uint64
	SubmittedAt    time.Time
}

var (
	// ErrCampaignNotFound is returned when a campaign ID is unknown.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrDuplicateCampaign is returned when adding a campaign whose ID already exists.
	ErrDuplicateCampaign = errors.New("campaign already exists")

	// ErrDuplicateTransaction is returned when a transaction ID was already recorded.
	// A transaction logged as KindRaw can still be credited once.
	ErrDuplicateTransaction = errors.New("transaction already recorded")
)

// Repository is the campaign/donation ledger.
// Implementations: the in-memory Memory store and the Postgres-backed db.Store.
type Repository interface {
	ListCampaigns(ctx context.Context) ([]*Campaign, error)
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
	AddCampaign(ctx context.Context, c *Campaign) error
	AddDonation(ctx context.Context, campaignID, donorAddress string, amount MicroAlgos) (*Campaign, error)
	ExpireCampaigns(ctx context.Context, now time.Time) (int, error)

	TokenBalance(ctx context.Context, address string) (uint64, error)

	// CreditDonation logs rec and credits rec.Amount from rec.Sender to rec.CampaignID
	// as one write: either both happen or neither does.
	CreditDonation(ctx context.Context, rec TransactionRecord) (*Campaign, error)
	// CreditReward logs rec and credits tokens to rec.Sender as one write.
	CreditReward(ctx context.Context, rec TransactionRecord, tokens uint64) error

	// RecordTransaction logs a transaction that credits nothing.
	RecordTransaction(ctx context.Context, rec TransactionRecord) error
	ListTransactions(ctx context.Context, address string, limit, offset int) ([]*TransactionRecord, error)
}

// RewardTokens returns the reward tokens earned for a donation: one per whole ALGO.
func RewardTokens(amount MicroAlgos) uint64 {
	return uint64(amount) / MicroAlgosPerAlgo
}

// Clone returns a deep copy of the campaign.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	out := *c
	out.Donors = append([]Donor(nil), c.Donors...)
	return &out
}
