package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/algofund/service/ledger"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "campaigns.abc.donations", DonationSubject("abc"))
	assert.Equal(t, "campaigns.abc.created", CampaignSubject("abc"))
}

func TestNewDonationEvent(t *testing.T) {
	c := &ledger.Campaign{
		ID:     "1",
		Title:  "Green Energy Solar Farm",
		Goal:   10 * ledger.MicroAlgosPerAlgo,
		Raised: 5 * ledger.MicroAlgosPerAlgo,
	}

	event := NewDonationEvent(c, "ALICE", 2_500_000, SourceOnChain)
	assert.Equal(t, "1", event.CampaignID)
	assert.Equal(t, "ALICE", event.Donor)
	assert.Equal(t, uint64(2_500_000), event.Amount)
	assert.InDelta(t, 2.5, event.AmountAlgo, 1e-9)
	assert.Equal(t, uint64(2), event.RewardTokens)
	assert.InDelta(t, 50.0, event.Progress, 1e-9)
	assert.False(t, event.Timestamp.IsZero())

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "txid", "pledges omit on-chain fields")
}

func TestFromCampaign(t *testing.T) {
	deadline := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	event := FromCampaign(&ledger.Campaign{ID: "x", Title: "T", Creator: "C", Goal: 7, Deadline: deadline})
	assert.Equal(t, "x", event.CampaignID)
	assert.Equal(t, uint64(7), event.Goal)
	assert.Equal(t, deadline, event.Deadline)
}

func TestMockPublisher(t *testing.T) {
	ctx := context.Background()
	m := NewMockPublisher()

	require.NoError(t, m.PublishDonation(ctx, &DonationEvent{CampaignID: "1"}))
	require.NoError(t, m.PublishDonation(ctx, &DonationEvent{CampaignID: "2"}))
	require.NoError(t, m.PublishCampaign(ctx, &CampaignEvent{CampaignID: "2"}))

	assert.Len(t, m.Donations(), 2)
	assert.Len(t, m.DonationsFor("2"), 1)
	assert.Len(t, m.Campaigns(), 1)

	m.FailWith(errors.New("nats down"))
	assert.Error(t, m.PublishDonation(ctx, &DonationEvent{CampaignID: "3"}))
	assert.Len(t, m.Donations(), 2)

	require.NoError(t, m.Close())
	assert.True(t, m.Closed())

	m.Reset()
	assert.Empty(t, m.Donations())
	assert.False(t, m.Closed())
}
