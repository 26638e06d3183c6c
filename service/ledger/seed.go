package ledger

import "time"

// SeedCampaigns returns the demo campaigns shown on a fresh install.
// Seeded campaigns carry an opening balance with no donor rows.
func SeedCampaigns() []*Campaign {
	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return []*Campaign{
		{
			ID:          "1",
			Title:       "Green Energy Solar Farm",
			Description: "Building sustainable solar infrastructure for rural communities",
			Goal:        50_000 * MicroAlgosPerAlgo,
			Raised:      32_500 * MicroAlgosPerAlgo,
			Deadline:    day(2024, time.December, 31),
			Creator:     "ABCD...EFGH",
			IsActive:    true,
			Donors:      []Donor{},
			CreatedAt:   created,
		},
		{
			ID:          "2",
			Title:       "Ocean Cleanup Initiative",
			Description: "Revolutionary technology to remove plastic waste from oceans",
			Goal:        75_000 * MicroAlgosPerAlgo,
			Raised:      18_750 * MicroAlgosPerAlgo,
			Deadline:    day(2024, time.November, 15),
			Creator:     "IJKL...MNOP",
			IsActive:    true,
			Donors:      []Donor{},
			CreatedAt:   created,
		},
		{
			ID:          "3",
			Title:       "Educational Tech Platform",
			Description: "Bringing digital education to underserved communities worldwide",
			Goal:        30_000 * MicroAlgosPerAlgo,
			Raised:      28_500 * MicroAlgosPerAlgo,
			Deadline:    day(2024, time.October, 30),
			Creator:     "QRST...UVWX",
			IsActive:    true,
			Donors:      []Donor{},
			CreatedAt:   created,
		},
	}
}
