package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Repository. It is safe for concurrent use and
// never hands out pointers into its own state.
type Memory struct {
	mu        sync.RWMutex
	campaigns []*Campaign // newest first
	tokens    map[string]uint64
	txs       []*TransactionRecord
	txIndex   map[string]*TransactionRecord
	now       func() time.Time
}

var _ Repository = (*Memory)(nil)

// NewMemory creates an empty in-memory ledger, optionally holding the demo campaigns.
func NewMemory(seed bool) *Memory {
	m := &Memory{
		tokens:  make(map[string]uint64),
		txIndex: make(map[string]*TransactionRecord),
		now:     time.Now,
	}
	if seed {
		m.campaigns = SeedCampaigns()
	}
	return m
}

func (m *Memory) find(id string) *Campaign {
	for _, c := range m.campaigns {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ListCampaigns returns every campaign, newest first.
func (m *Memory) ListCampaigns(ctx context.Context) ([]*Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		out = append(out, c.Clone())
	}
	return out, nil
}

// GetCampaign returns a campaign by ID.
func (m *Memory) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.find(id)
	if c == nil {
		return nil, ErrCampaignNotFound
	}
	return c.Clone(), nil
}

// AddCampaign stores a new campaign ahead of the existing ones.
func (m *Memory) AddCampaign(ctx context.Context, c *Campaign) error {
	if c == nil || c.ID == "" {
		return invalidf("campaign id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.find(c.ID) != nil {
		return ErrDuplicateCampaign
	}
	stored := c.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.now().UTC()
	}
	m.campaigns = append([]*Campaign{stored}, m.campaigns...)
	return nil
}

// AddDonation credits a donation to a campaign and rewards the donor.
func (m *Memory) AddDonation(ctx context.Context, campaignID, donorAddress string, amount MicroAlgos) (*Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.donate(campaignID, donorAddress, amount)
}

// donate applies a donation. Callers hold m.mu.
func (m *Memory) donate(campaignID, donorAddress string, amount MicroAlgos) (*Campaign, error) {
	address := NormalizeAddress(donorAddress)
	if address == "" {
		return nil, invalidf("donor address is required")
	}
	if amount == 0 {
		return nil, invalidf("amount must be greater than zero")
	}
	c := m.find(campaignID)
	if c == nil {
		return nil, ErrCampaignNotFound
	}
	c.Donors = MergeDonation(c.Donors, address, amount)
	c.Raised += amount
	if tokens := RewardTokens(amount); tokens > 0 {
		m.tokens[address] += tokens
	}
	return c.Clone(), nil
}

// CreditDonation logs rec and credits its donation under one lock.
func (m *Memory) CreditDonation(ctx context.Context, rec TransactionRecord) (*Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkCredit(rec); err != nil {
		return nil, err
	}
	c, err := m.donate(rec.CampaignID, rec.Sender, rec.Amount)
	if err != nil {
		return nil, err
	}
	m.log(rec)
	return c, nil
}

// CreditReward logs rec and credits tokens to its sender under one lock.
func (m *Memory) CreditReward(ctx context.Context, rec TransactionRecord, tokens uint64) error {
	address := NormalizeAddress(rec.Sender)
	if address == "" {
		return invalidf("reward address is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkCredit(rec); err != nil {
		return err
	}
	m.tokens[address] += tokens
	m.log(rec)
	return nil
}

// checkCredit rejects a credit for a transaction already logged as anything but raw.
func (m *Memory) checkCredit(rec TransactionRecord) error {
	if rec.TxID == "" {
		return invalidf("transaction id is required")
	}
	if prev, ok := m.txIndex[rec.TxID]; ok && prev.Kind != KindRaw {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, rec.TxID)
	}
	return nil
}

// log appends rec, or overwrites the raw entry with the same ID in place.
func (m *Memory) log(rec TransactionRecord) {
	if prev, ok := m.txIndex[rec.TxID]; ok {
		rec.SubmittedAt = prev.SubmittedAt
		*prev = rec
		return
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = m.now().UTC()
	}
	m.txs = append(m.txs, &rec)
	m.txIndex[rec.TxID] = &rec
}

// ExpireCampaigns deactivates active campaigns whose deadline is before now.
func (m *Memory) ExpireCampaigns(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.campaigns {
		if c.IsActive && Ended(c, now) {
			c.IsActive = false
			n++
		}
	}
	return n, nil
}

// TokenBalance returns the reward tokens held by an address.
func (m *Memory) TokenBalance(ctx context.Context, address string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[NormalizeAddress(address)], nil
}

// RecordTransaction appends a transaction to the log. Each transaction ID is recorded once.
func (m *Memory) RecordTransaction(ctx context.Context, rec TransactionRecord) error {
	if rec.TxID == "" {
		return invalidf("transaction id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.txIndex[rec.TxID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, rec.TxID)
	}
	m.log(rec)
	return nil
}

// ListTransactions returns transactions sent or received by address, newest first.
// An empty address lists every transaction.
func (m *Memory) ListTransactions(ctx context.Context, address string, limit, offset int) ([]*TransactionRecord, error) {
	address = strings.TrimSpace(address)

	m.mu.RLock()
	matched := make([]*TransactionRecord, 0)
	for _, rec := range m.txs {
		if address == "" || rec.Sender == address || rec.Receiver == address {
			cp := *rec
			matched = append(matched, &cp)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []*TransactionRecord{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
