package ledger

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

const (
	// MinGoal is the smallest campaign goal accepted (1 ALGO).
	MinGoal MicroAlgos = MicroAlgosPerAlgo

	// MinDonation is the smallest donation accepted (0.01 ALGO).
	MinDonation MicroAlgos = MicroAlgosPerAlgo / 100

	maxTitleLength       = 200
	maxDescriptionLength = 10_000
	maxImageURLLength    = 512 << 10
)

// ValidationError describes input rejected by the ledger.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// Invalid returns a ValidationError carrying msg.
func Invalid(msg string) error {
	return &ValidationError{msg: msg}
}

func invalidf(format string, args ...interface{}) error {
	return &ValidationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

// ValidAddress reports whether s is a well-formed Algorand address with a valid checksum.
func ValidAddress(s string) bool {
	_, err := types.DecodeAddress(s)
	return err == nil
}

// ValidateNewCampaign checks a campaign before it is added to the ledger.
// The deadline may be any time today or later.
func ValidateNewCampaign(c *Campaign, now time.Time) error {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return invalidf("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return invalidf("title too long: maximum length is %d characters", maxTitleLength)
	}
	if strings.TrimSpace(c.Description) == "" {
		return invalidf("description is required")
	}
	if utf8.RuneCountInString(c.Description) > maxDescriptionLength {
		return invalidf("description too long: maximum length is %d characters", maxDescriptionLength)
	}
	if c.Goal < MinGoal {
		return invalidf("goal must be at least %s ALGO", MinGoal)
	}
	if c.Goal > MaxSupply {
		return invalidf("goal cannot exceed the total supply of %s ALGO", MaxSupply)
	}
	if c.Deadline.IsZero() {
		return invalidf("deadline is required")
	}
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if c.Deadline.Before(today) {
		return invalidf("deadline cannot be in the past")
	}
	if c.Creator == "" {
		return invalidf("creator address is required")
	}
	if !ValidAddress(c.Creator) {
		return invalidf("invalid creator address")
	}
	if c.Receiver != "" && !ValidAddress(c.Receiver) {
		return invalidf("invalid receiver address")
	}
	if len(c.ImageURL) > maxImageURLLength {
		return invalidf("image too large: maximum size is %d KiB", maxImageURLLength>>10)
	}
	return nil
}

// ValidateDonation checks that a campaign can accept the given amount.
func ValidateDonation(c *Campaign, amount MicroAlgos) error {
	if amount < MinDonation {
		return invalidf("amount must be at least %s ALGO", MinDonation)
	}
	if amount > MaxSupply {
		return invalidf("amount cannot exceed the total supply of %s ALGO", MaxSupply)
	}
	if !c.IsActive {
		return invalidf("campaign is not accepting donations")
	}
	remaining := Remaining(c)
	if remaining == 0 {
		return invalidf("campaign is fully funded")
	}
	if amount > remaining {
		return invalidf("amount exceeds remaining goal of %s ALGO", remaining)
	}
	return nil
}
