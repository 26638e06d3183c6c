package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMicroAlgos_Format(t *testing.T) {
	assert.Equal(t, "1.500000", MicroAlgos(1_500_000).String())
	assert.Equal(t, "0.010000", MinDonation.String())
	assert.InDelta(t, 2.25, MicroAlgos(2_250_000).ToAlgos(), 1e-9)
	assert.Equal(t, MicroAlgos(1_234_568), FromAlgos(1.2345678))
	assert.Equal(t, MicroAlgos(0), FromAlgos(-3))
}

func TestFromAlgos_Bounds(t *testing.T) {
	assert.Equal(t, MicroAlgos(10_000_000_000_000_000), MaxSupply)
	assert.Equal(t, MaxSupply, FromAlgos(10_000_000_000))
	assert.Equal(t, MaxSupply+1, FromAlgos(1e30), "oversized amounts must not wrap")
	assert.Equal(t, MaxSupply+1, FromAlgos(math.Inf(1)))
	assert.Equal(t, MicroAlgos(0), FromAlgos(math.NaN()))
	assert.Equal(t, MicroAlgos(0), FromAlgos(math.Inf(-1)))
}

func TestRewardTokens(t *testing.T) {
	assert.Equal(t, uint64(0), RewardTokens(999_999))
	assert.Equal(t, uint64(1), RewardTokens(1_999_999))
	assert.Equal(t, uint64(12), RewardTokens(12*MicroAlgosPerAlgo))
}

func TestTopDonors(t *testing.T) {
	donors := []Donor{
		{"A", 10}, {"B", 50}, {"C", 30}, {"D", 50}, {"E", 5}, {"F", 40},
	}

	top := TopDonors(donors, DefaultTopDonors)
	require.Len(t, top, 5)
	assert.Equal(t, []string{"B", "D", "F", "C", "A"}, addresses(top))
	assert.Equal(t, "A", donors[0].Address, "input must not be reordered")

	assert.Len(t, TopDonors(donors[:2], 5), 2)
	assert.Empty(t, TopDonors(nil, 5))
}

func addresses(donors []Donor) []string {
	out := make([]string, len(donors))
	for i, d := range donors {
		out[i] = d.Address
	}
	return out
}

func TestAllDonations(t *testing.T) {
	campaigns := []*Campaign{
		{ID: "1", Title: "One", Donors: []Donor{{"A", 5}, {"B", 20}}},
		{ID: "2", Title: "Two", Donors: []Donor{{"A", 10}}},
		{ID: "3", Title: "Three"},
	}

	entries := AllDonations(campaigns)
	require.Len(t, entries, 3)
	assert.Equal(t, DonationEntry{CampaignID: "1", CampaignTitle: "One", Address: "B", Amount: 20}, entries[0])
	assert.Equal(t, "2", entries[1].CampaignID)
	assert.Equal(t, MicroAlgos(5), entries[2].Amount)

	assert.NotNil(t, AllDonations(nil))
}

func TestBadgesFor(t *testing.T) {
	tests := []struct {
		total MicroAlgos
		want  []string
	}{
		{0, []string{}},
		{9_999_999, []string{}},
		{10 * MicroAlgosPerAlgo, []string{"Active Donor"}},
		{50 * MicroAlgosPerAlgo, []string{"Top Backer", "Active Donor"}},
		{150 * MicroAlgosPerAlgo, []string{"Legendary Supporter", "Top Backer", "Active Donor"}},
	}
	for _, tt := range tests {
		t.Run(tt.total.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, BadgesFor(tt.total))
		})
	}
}

func TestBuildProfile(t *testing.T) {
	campaigns := []*Campaign{
		{ID: "1", Title: "One", Donors: []Donor{{"ALICE", 40 * MicroAlgosPerAlgo}, {"BOB", MicroAlgosPerAlgo}}},
		{ID: "2", Title: "Two", Donors: []Donor{{"ALICE", 15 * MicroAlgosPerAlgo}}},
	}

	p := BuildProfile(" ALICE ", campaigns, 80)
	assert.Equal(t, "ALICE", p.Address)
	assert.Equal(t, uint64(80), p.TokenBalance)
	assert.Equal(t, MicroAlgos(55*MicroAlgosPerAlgo), p.TotalDonated)
	assert.Equal(t, []string{"Top Backer", "Active Donor"}, p.Badges)
	require.Len(t, p.Contributions, 2)
	assert.Equal(t, "Two", p.Contributions[1].CampaignTitle)

	nobody := BuildProfile("CAROL", campaigns, 0)
	assert.Zero(t, nobody.TotalDonated)
	assert.Empty(t, nobody.Badges)
	assert.Empty(t, nobody.Contributions)
}

func TestProgressRemainingEnded(t *testing.T) {
	c := &Campaign{Goal: 200, Raised: 50, Deadline: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.InDelta(t, 25.0, Progress(c), 1e-9)
	assert.Equal(t, MicroAlgos(150), Remaining(c))

	c.Raised = 300
	assert.InDelta(t, 150.0, Progress(c), 1e-9)
	assert.Zero(t, Remaining(c))

	assert.Zero(t, Progress(&Campaign{}))

	assert.False(t, Ended(c, c.Deadline.Add(-time.Second)))
	assert.True(t, Ended(c, c.Deadline.Add(time.Second)))
}

func TestValidateNewCampaign(t *testing.T) {
	now := time.Date(2025, time.June, 10, 15, 0, 0, 0, time.UTC)
	creator := crypto.GenerateAccount().Address.String()

	valid := func() *Campaign {
		return &Campaign{
			Title:       "Community Garden",
			Description: "Seeds and tools",
			Goal:        10 * MicroAlgosPerAlgo,
			Deadline:    time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
			Creator:     creator,
		}
	}

	require.NoError(t, ValidateNewCampaign(valid(), now))

	today := valid()
	today.Deadline = time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, ValidateNewCampaign(today, now), "a deadline of today is allowed")

	tests := []struct {
		name    string
		mutate  func(c *Campaign)
		wantErr string
	}{
		{"missing title", func(c *Campaign) { c.Title = "  " }, "title is required"},
		{"missing description", func(c *Campaign) { c.Description = "" }, "description is required"},
		{"goal below minimum", func(c *Campaign) { c.Goal = 999_999 }, "goal must be at least"},
		{"goal above supply", func(c *Campaign) { c.Goal = MaxSupply + 1 }, "goal cannot exceed the total supply"},
		{"goal at max uint64", func(c *Campaign) { c.Goal = math.MaxUint64 }, "goal cannot exceed the total supply"},
		{"goal from huge float", func(c *Campaign) { c.Goal = FromAlgos(1e30) }, "goal cannot exceed the total supply"},
		{"missing deadline", func(c *Campaign) { c.Deadline = time.Time{} }, "deadline is required"},
		{"past deadline", func(c *Campaign) { c.Deadline = now.AddDate(0, 0, -1) }, "deadline cannot be in the past"},
		{"missing creator", func(c *Campaign) { c.Creator = "" }, "creator address is required"},
		{"invalid creator", func(c *Campaign) { c.Creator = "ABCD...EFGH" }, "invalid creator address"},
		{"invalid receiver", func(c *Campaign) { c.Receiver = "nope" }, "invalid receiver address"},
		{"image too large", func(c *Campaign) { c.ImageURL = string(make([]byte, maxImageURLLength+1)) }, "image too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := ValidateNewCampaign(c, now)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestValidateDonation(t *testing.T) {
	c := &Campaign{Goal: 10 * MicroAlgosPerAlgo, Raised: 9 * MicroAlgosPerAlgo, IsActive: true}

	assert.NoError(t, ValidateDonation(c, MinDonation))
	assert.NoError(t, ValidateDonation(c, MicroAlgosPerAlgo))

	err := ValidateDonation(c, MinDonation-1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 0.010000 ALGO")

	err = ValidateDonation(c, MicroAlgosPerAlgo+1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds remaining goal of 1.000000 ALGO")

	inactive := c.Clone()
	inactive.IsActive = false
	err = ValidateDonation(inactive, MicroAlgosPerAlgo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not accepting donations")

	huge := &Campaign{Goal: math.MaxUint64, IsActive: true}
	err = ValidateDonation(huge, math.MaxUint64)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot exceed the total supply")

	funded := c.Clone()
	funded.Raised = funded.Goal
	err = ValidateDonation(funded, MicroAlgosPerAlgo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fully funded")
}

func TestBounties(t *testing.T) {
	all := Bounties()
	require.Len(t, all, 3)
	assert.Equal(t, Bounty{ID: "b1", Title: "Translate Docs", RewardTokens: 50}, all[0])

	all[0].RewardTokens = 1
	b, ok := FindBounty("b1")
	require.True(t, ok)
	assert.Equal(t, uint64(50), b.RewardTokens)

	_, ok = FindBounty("b9")
	assert.False(t, ok)

	at := time.UnixMilli(1_700_000_000_123)
	assert.Equal(t, "Claim:b2:1700000000123", ClaimNote("b2", at))
	assert.Equal(t, "Fund campaign: 3", FundNote("3"))
}
