package ledger

import (
	"fmt"
	"time"
)

// Bounty is a task that pays reward tokens once a contributor proves
// control of their address with a signed claim transaction.
type Bounty struct {
	ID           string
	Title        string
	RewardTokens uint64
}

var sampleBounties = []Bounty{
	{ID: "b1", Title: "Translate Docs", RewardTokens: 50},
	{ID: "b2", Title: "Fix UI Bug", RewardTokens: 25},
	{ID: "b3", Title: "Write Example", RewardTokens: 10},
}

// Bounties lists the claimable bounties.
func Bounties() []Bounty {
	return append([]Bounty(nil), sampleBounties...)
}

// FindBounty looks up a bounty by ID.
func FindBounty(id string) (Bounty, bool) {
	for _, b := range sampleBounties {
		if b.ID == id {
			return b, true
		}
	}
	return Bounty{}, false
}

// ClaimNote is the note carried by a bounty claim proof transaction.
func ClaimNote(bountyID string, at time.Time) string {
	return fmt.Sprintf("Claim:%s:%d", bountyID, at.UnixMilli())
}

// FundNote is the note carried by an on-chain donation.
func FundNote(campaignID string) string {
	return "Fund campaign: " + campaignID
}
