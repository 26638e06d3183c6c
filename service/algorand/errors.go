package algorand

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/brojonat/algofund/service/wallet"
)

var (
	// ErrNoReceiver is returned when no receiver address can be determined for a campaign.
	ErrNoReceiver = errors.New("no receiver address configured for campaign")

	// ErrInvalidAddress is returned for malformed Algorand addresses.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNotSigned is returned when a submitted transaction carries no signature.
	ErrNotSigned = errors.New("transaction is not signed")

	// ErrConfirmationTimeout is returned when a transaction is not confirmed within the wait window.
	ErrConfirmationTimeout = errors.New("transaction not confirmed")

	// ErrTransactionRejected is returned when the node drops a transaction from its pool.
	ErrTransactionRejected = errors.New("transaction rejected by node")
)

func errContains(err error, subs ...string) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range subs {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func isRateLimited(err error) bool {
	return errContains(err, "http 429", "too many requests")
}

// isTransient reports whether an algod error is worth retrying.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || isInsufficientFunds(err) || isExpired(err) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if isRateLimited(err) {
		return true
	}
	return errContains(err,
		"timeout",
		"connection refused",
		"connection reset",
		"eof",
		"no such host",
		"temporarily unavailable",
		"http 500", "http 502", "http 503", "http 504",
	)
}

// isExpired reports whether the node refused a transaction because its validity window passed.
func isExpired(err error) bool {
	return err != nil && errContains(err, "txn dead", "outside of", "round not available")
}

func isAlreadyInLedger(err error) bool {
	return err != nil && errContains(err, "already in ledger")
}

func isInsufficientFunds(err error) bool {
	return errContains(err, "overspend", "insufficient", "below min")
}

// UserMessage maps an error from the transaction path to a message suitable for end users.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var manual *ManualSignRequiredError
	switch {
	case errors.As(err, &manual):
		return "Manual signing required. Sign the exported transaction in your wallet and submit it."
	case errors.Is(err, ErrNoReceiver):
		return "This campaign has no receiver address configured."
	case errors.Is(err, wallet.ErrRejected), errContains(err, "rejected by user", "user rejected", "cancelled", "canceled"):
		return "Transaction was rejected in the wallet."
	case isInsufficientFunds(err):
		return "Insufficient balance to complete this transaction."
	case isExpired(err):
		return "Transaction expired before it was accepted. Please try again."
	case errors.Is(err, ErrInvalidAddress), errContains(err, "checksum", "invalid address"):
		return "Invalid Algorand address."
	case errors.Is(err, ErrNotSigned):
		return "The transaction is not signed."
	case errors.Is(err, ErrConfirmationTimeout):
		return "Transaction was submitted but is not confirmed yet. Check the explorer shortly."
	case errors.Is(err, ErrTransactionRejected):
		return "The network rejected the transaction."
	case isTransient(err), errors.Is(err, context.DeadlineExceeded):
		return "Network error contacting the Algorand node. Please try again."
	default:
		return "Transaction failed. Please try again."
	}
}

// IsClientError reports whether err was caused by the request itself rather
// than by the node or the network.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrNoReceiver) ||
		errors.Is(err, ErrNotSigned) ||
		errors.Is(err, wallet.ErrRejected) ||
		(err != nil && isInsufficientFunds(err))
}
