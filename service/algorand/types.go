package algorand

import (
	"github.com/brojonat/algofund/service/ledger"
	"github.com/brojonat/algofund/service/wallet"
)

// Supported networks.
const (
	NetworkTestnet = "testnet"
	NetworkMainnet = "mainnet"
	NetworkBetanet = "betanet"
)

// DefaultConfirmationRounds is how many rounds WaitForConfirmation waits by default.
const DefaultConfirmationRounds = 4

// Payment is the decoded content of a payment transaction.
type Payment struct {
	TxID       string
	Type       string
	Sender     string
	Receiver   string
	Amount     ledger.MicroAlgos
	Note       string
	FirstValid uint64
	LastValid  uint64
}

// SubmitResult describes a submitted transaction.
// ConfirmedRound is zero when confirmation was not awaited.
type SubmitResult struct {
	Payment
	ConfirmedRound uint64
	// SignedTxn is the submitted transaction, base64 msgpack, so an unconfirmed
	// submission can be resubmitted for crediting.
	SignedTxn string
}

// FundParams contains parameters for an on-chain donation.
type FundParams struct {
	CampaignID string
	Sender     string
	Receiver   string
	Amount     ledger.MicroAlgos
	Signer     wallet.Signer

	// SkipConfirmation returns as soon as the node accepts the transaction.
	SkipConfirmation bool
}
