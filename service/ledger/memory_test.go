package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCampaign(id string) *Campaign {
	return &Campaign{
		ID:          id,
		Title:       "Campaign " + id,
		Description: "description",
		Goal:        100 * MicroAlgosPerAlgo,
		Deadline:    time.Now().Add(24 * time.Hour),
		Creator:     "CREATOR",
		IsActive:    true,
	}
}

func TestMemory_SeededCampaigns(t *testing.T) {
	m := NewMemory(true)

	campaigns, err := m.ListCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 3)
	assert.Equal(t, "1", campaigns[0].ID)
	assert.Equal(t, "Green Energy Solar Farm", campaigns[0].Title)
	assert.Equal(t, MicroAlgos(32_500*MicroAlgosPerAlgo), campaigns[0].Raised)

	empty := NewMemory(false)
	campaigns, err = empty.ListCampaigns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, campaigns)
}

func TestMemory_AddCampaignPrepends(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(true)

	require.NoError(t, m.AddCampaign(ctx, newCampaign("new")))

	campaigns, err := m.ListCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, campaigns, 4)
	assert.Equal(t, "new", campaigns[0].ID)
	assert.False(t, campaigns[0].CreatedAt.IsZero(), "CreatedAt should be stamped")
}

func TestMemory_AddCampaignDuplicate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(false)

	require.NoError(t, m.AddCampaign(ctx, newCampaign("x")))
	err := m.AddCampaign(ctx, newCampaign("x"))
	assert.ErrorIs(t, err, ErrDuplicateCampaign)
}

func TestMemory_AddDonationMergesDonors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(false)
	require.NoError(t, m.AddCampaign(ctx, newCampaign("c1")))

	_, err := m.AddDonation(ctx, "c1", "ALICE", 2*MicroAlgosPerAlgo)
	require.NoError(t, err)
	_, err = m.AddDonation(ctx, "c1", "BOB", 500_000)
	require.NoError(t, err)
	c, err := m.AddDonation(ctx, "c1", "  ALICE  ", 1_500_000)
	require.NoError(t, err)

	require.Len(t, c.Donors, 2)
	assert.Equal(t, Donor{Address: "ALICE", Amount: 3_500_000}, c.Donors[0])
	assert.Equal(t, Donor{Address: "BOB", Amount: 500_000}, c.Donors[1])
	assert.Equal(t, MicroAlgos(4_000_000), c.Raised)

	var sum MicroAlgos
	for _, d := range c.Donors {
		sum += d.Amount
	}
	assert.Equal(t, c.Raised, sum)
}

func TestMemory_AddDonationCreditsRewardTokens(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(false)
	require.NoError(t, m.AddCampaign(ctx, newCampaign("c1")))

	_, err := m.AddDonation(ctx, "c1", "ALICE", 2_900_000)
	require.NoError(t, err)
	_, err = m.AddDonation(ctx, "c1", "ALICE", 900_000)
	require.NoError(t, err)

	balance, err := m.TokenBalance(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), balance, "floor per donation, not per total")
}

func TestMemory_AddDonationErrors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(false)
	require.NoError(t, m.AddCampaign(ctx, newCampaign("c1")))

	_, err := m.AddDonation(ctx, "missing", "ALICE", MicroAlgosPerAlgo)
	assert.ErrorIs(t, err, ErrCampaignNotFound)

	_, err = m.AddDonation(ctx, "c1", "ALICE", 0)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = m.AddDonation(ctx, "c1", "   ", MicroAlgosPerAlgo)
	assert.True(t, errors.As(err, &verr))
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(false)
	require.NoError(t, m.AddCampaign(ctx, newCampaign("c1")))
	_, err := m.AddDonation(ctx, "c1", "ALICE", MicroAlgosPerAlgo)
	require.NoError(t, err)

	c, err := m.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	c.Title = "mutated"
	c.Donors[0].Amount = 0

	again, err := m.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Campaign c1", again.Title)
	assert.Equal(t, MicroAlgos(MicroAlgosPerAlgo), again.Donors[0].Amount)
}

func TestMemory_CreditReward(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(false)

	require.NoError(t, m.CreditReward(ctx, TransactionRecord{TxID: "C1", Kind: KindClaim, Sender: "ALICE"}, 50))
	require.NoError(t, m.CreditReward(ctx, TransactionRecord{TxID: "C2", Kind: KindClaim, Sender: " ALICE "}, 25))
	require.NoError(t, m.CreditReward(ctx, TransactionRecord{TxID: "C3", Kind: KindClaim, Sender: "BOB"}, 0))

	err := m.CreditReward(ctx, TransactionRecord{TxID: "C1", Kind: KindClaim, Sender: "ALICE"}, 50)
	assert.ErrorIs(t, err, ErrDuplicateTransaction, "a proof pays out once")

	var verr *ValidationError
	err = m.CreditReward(ctx, TransactionRecord{TxID: "C4", Kind: KindClaim, Sender: ""}, 10)
	assert.True(t, errors.As(err, &verr))
	err = m.CreditReward(ctx, TransactionRecord{Kind: KindClaim, Sender: "ALICE"}, 10)
	assert.True(t, errors.As(err, &verr))

	balance, err := m.TokenBalance(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, uint64(75), balance)

	balance, err = m.TokenBalance(ctx, "BOB")
	require.NoError(t, err)
	assert.Zero(t, balance)

	txs, err := m.ListTransactions(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}

func TestMemory_CreditDonation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(false)
	require.NoError(t, m.AddCampaign(ctx, newCampaign("c1")))
	rec := TransactionRecord{TxID: "F1", Kind: KindFund, Sender: "ALICE", Receiver: "ESCROW", Amount: 2 * MicroAlgosPerAlgo, CampaignID: "c1"}

	c, err := m.CreditDonation(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, MicroAlgos(2*MicroAlgosPerAlgo), c.Raised)

	_, err = m.CreditDonation(ctx, rec)
	assert.ErrorIs(t, err, ErrDuplicateTransaction)

	c, err = m.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, MicroAlgos(2*MicroAlgosPerAlgo), c.Raised)

	balance, err := m.TokenBalance(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), balance)
}

func TestMemory_CreditDonationFailureLogsNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(false)
	rec := TransactionRecord{TxID: "F1", Kind: KindFund, Sender: "ALICE", Amount: MicroAlgosPerAlgo, CampaignID: "late"}

	_, err := m.CreditDonation(ctx, rec)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
	txs, err := m.ListTransactions(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, txs)

	// Once the campaign exists the same transaction credits normally.
	require.NoError(t, m.AddCampaign(ctx, newCampaign("late")))
	c, err := m.CreditDonation(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, MicroAlgos(MicroAlgosPerAlgo), c.Raised)
}

func TestMemory_CreditUpgradesRawTransaction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(false)
	require.NoError(t, m.AddCampaign(ctx, newCampaign("c1")))
	submitted := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	raw := TransactionRecord{TxID: "R1", Kind: KindRaw, Sender: "ALICE", Receiver: "ESCROW", Amount: 3 * MicroAlgosPerAlgo, SubmittedAt: submitted}
	require.NoError(t, m.RecordTransaction(ctx, raw))
	assert.ErrorIs(t, m.RecordTransaction(ctx, raw), ErrDuplicateTransaction)

	credit := raw
	credit.Kind = KindFund
	credit.CampaignID = "c1"
	credit.SubmittedAt = time.Time{}
	c, err := m.CreditDonation(ctx, credit)
	require.NoError(t, err)
	assert.Equal(t, MicroAlgos(3*MicroAlgosPerAlgo), c.Raised)

	txs, err := m.ListTransactions(ctx, "ALICE", 0, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1, "the raw entry is replaced, not duplicated")
	assert.Equal(t, KindFund, txs[0].Kind)
	assert.Equal(t, "c1", txs[0].CampaignID)
	assert.Equal(t, submitted, txs[0].SubmittedAt)

	_, err = m.CreditDonation(ctx, credit)
	assert.ErrorIs(t, err, ErrDuplicateTransaction, "an upgraded transaction cannot be credited again")
}

func TestMemory_ExpireCampaigns(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(true)

	n, err := m.ExpireCampaigns(ctx, time.Date(2024, time.November, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	c, err := m.GetCampaign(ctx, "1")
	require.NoError(t, err)
	assert.True(t, c.IsActive)

	n, err = m.ExpireCampaigns(ctx, time.Date(2024, time.November, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n, "already expired campaigns are not counted twice")
}

func TestMemory_Transactions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(false)
	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.RecordTransaction(ctx, TransactionRecord{TxID: "T1", Kind: KindFund, Sender: "ALICE", Receiver: "ESCROW", SubmittedAt: base}))
	require.NoError(t, m.RecordTransaction(ctx, TransactionRecord{TxID: "T2", Kind: KindClaim, Sender: "BOB", Receiver: "BOB", SubmittedAt: base.Add(time.Minute)}))
	require.NoError(t, m.RecordTransaction(ctx, TransactionRecord{TxID: "T3", Kind: KindFund, Sender: "ALICE", Receiver: "ESCROW", SubmittedAt: base.Add(2 * time.Minute)}))

	err := m.RecordTransaction(ctx, TransactionRecord{TxID: "T1"})
	assert.ErrorIs(t, err, ErrDuplicateTransaction)

	txs, err := m.ListTransactions(ctx, "ALICE", 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "T3", txs[0].TxID)
	assert.Equal(t, "T1", txs[1].TxID)

	txs, err = m.ListTransactions(ctx, "ESCROW", 1, 1)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "T1", txs[0].TxID)

	txs, err = m.ListTransactions(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 3)

	txs, err = m.ListTransactions(ctx, "ALICE", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestMemory_ConcurrentDonations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(false)
	require.NoError(t, m.AddCampaign(ctx, newCampaign("c1")))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.AddDonation(ctx, "c1", "ALICE", MicroAlgosPerAlgo)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := m.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, MicroAlgos(50*MicroAlgosPerAlgo), c.Raised)
	require.Len(t, c.Donors, 1)

	balance, err := m.TokenBalance(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), balance)
}
