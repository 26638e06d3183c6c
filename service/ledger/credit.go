package ledger

import (
	"context"
	"fmt"
)

// CreditOnChain logs a confirmed on-chain donation and credits it to the campaign
// in one repository write. Crediting the same transaction twice fails with
// ErrDuplicateTransaction and leaves the campaign untouched; a failed credit
// leaves nothing behind, so it can be retried.
func CreditOnChain(ctx context.Context, repo Repository, rec TransactionRecord) (*Campaign, error) {
	if rec.CampaignID == "" {
		return nil, invalidf("campaign id is required")
	}
	if rec.Kind == "" {
		rec.Kind = KindFund
	}
	c, err := repo.CreditDonation(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to credit transaction %s: %w", rec.TxID, err)
	}
	return c, nil
}
