package ledger

import (
	"sort"
	"strings"
	"time"
)

// DefaultTopDonors is how many donors a campaign leaderboard shows.
const DefaultTopDonors = 5

// Badge thresholds in whole ALGO.
var badgeThresholds = []struct {
	min  MicroAlgos
	name string
}{
	{100 * MicroAlgosPerAlgo, "Legendary Supporter"},
	{50 * MicroAlgosPerAlgo, "Top Backer"},
	{10 * MicroAlgosPerAlgo, "Active Donor"},
}

// NormalizeAddress trims surrounding whitespace from a donor address.
func NormalizeAddress(address string) string {
	return strings.TrimSpace(address)
}

// MergeDonation folds a donation into the donor list. A donor that already
// contributed has its amount increased; otherwise the donor is appended.
func MergeDonation(donors []Donor, address string, amount MicroAlgos) []Donor {
	for i := range donors {
		if donors[i].Address == address {
			donors[i].Amount += amount
			return donors
		}
	}
	return append(donors, Donor{Address: address, Amount: amount})
}

// TopDonors returns up to n donors ordered by amount descending.
// Ties keep their input order.
func TopDonors(donors []Donor, n int) []Donor {
	sorted := append([]Donor(nil), donors...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount > sorted[j].Amount
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// AllDonations flattens every donor row across campaigns, ordered by amount descending.
func AllDonations(campaigns []*Campaign) []DonationEntry {
	entries := make([]DonationEntry, 0)
	for _, c := range campaigns {
		for _, d := range c.Donors {
			entries = append(entries, DonationEntry{
				CampaignID:    c.ID,
				CampaignTitle: c.Title,
				Address:       d.Address,
				Amount:        d.Amount,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Amount > entries[j].Amount
	})
	return entries
}

// BadgesFor returns every badge earned by a donation total, highest first.
func BadgesFor(total MicroAlgos) []string {
	badges := make([]string, 0, len(badgeThresholds))
	for _, b := range badgeThresholds {
		if total >= b.min {
			badges = append(badges, b.name)
		}
	}
	return badges
}

// BuildProfile collects an address's contributions, total and badges.
func BuildProfile(address string, campaigns []*Campaign, tokenBalance uint64) *Profile {
	address = NormalizeAddress(address)
	p := &Profile{
		Address:       address,
		TokenBalance:  tokenBalance,
		Contributions: make([]DonationEntry, 0),
	}
	for _, c := range campaigns {
		for _, d := range c.Donors {
			if d.Address != address {
				continue
			}
			p.TotalDonated += d.Amount
			p.Contributions = append(p.Contributions, DonationEntry{
				CampaignID:    c.ID,
				CampaignTitle: c.Title,
				Address:       d.Address,
				Amount:        d.Amount,
			})
		}
	}
	p.Badges = BadgesFor(p.TotalDonated)
	return p
}

// Progress returns the funded percentage of the goal. It can exceed 100.
func Progress(c *Campaign) float64 {
	if c.Goal == 0 {
		return 0
	}
	return float64(c.Raised) / float64(c.Goal) * 100
}

// Remaining returns how much is left to reach the goal, never negative.
func Remaining(c *Campaign) MicroAlgos {
	if c.Raised >= c.Goal {
		return 0
	}
	return c.Goal - c.Raised
}

// Ended reports whether the campaign deadline has passed.
func Ended(c *Campaign, now time.Time) bool {
	return now.After(c.Deadline)
}
