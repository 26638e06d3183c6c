package algorand

import (
	"fmt"
	"strings"

	"github.com/brojonat/algofund/service/ledger"
)

// DefaultAlgodURL returns the public AlgoNode endpoint for a network.
func DefaultAlgodURL(network string) string {
	switch network {
	case NetworkMainnet:
		return "https://mainnet-api.algonode.cloud"
	case NetworkBetanet:
		return "https://betanet-api.algonode.cloud"
	default:
		return "https://testnet-api.algonode.cloud"
	}
}

// DefaultExplorerURL returns the block explorer base URL for a network.
func DefaultExplorerURL(network string) string {
	switch network {
	case NetworkMainnet:
		return "https://algoexplorer.io"
	case NetworkBetanet:
		return "https://betanet.algoexplorer.io"
	default:
		return "https://testnet.algoexplorer.io"
	}
}

// ValidNetwork reports whether network is one we can talk to.
func ValidNetwork(network string) bool {
	switch network {
	case NetworkTestnet, NetworkMainnet, NetworkBetanet:
		return true
	}
	return false
}

// Explorer builds block explorer links.
type Explorer struct {
	BaseURL string
}

// NewExplorer returns an Explorer rooted at baseURL.
func NewExplorer(baseURL string) Explorer {
	return Explorer{BaseURL: strings.TrimRight(baseURL, "/")}
}

// TransactionURL links to a transaction.
func (e Explorer) TransactionURL(txid string) string {
	return fmt.Sprintf("%s/tx/%s", e.BaseURL, txid)
}

// AccountURL links to an account.
func (e Explorer) AccountURL(address string) string {
	return fmt.Sprintf("%s/address/%s", e.BaseURL, address)
}

// FormatAlgo renders a microALGO amount as ALGO with two decimals.
func FormatAlgo(amount ledger.MicroAlgos) string {
	return fmt.Sprintf("%.2f", amount.ToAlgos())
}

// AlgoToMicroAlgos converts ALGO to microALGO, rounding to the nearest unit.
func AlgoToMicroAlgos(algo float64) ledger.MicroAlgos {
	return ledger.FromAlgos(algo)
}

// ResolveReceiver picks the address a campaign donation is paid to:
// the campaign's own escrow, then the configured default escrow, then the
// campaign creator when it is a usable address.
func ResolveReceiver(c *ledger.Campaign, defaultReceiver string) (string, error) {
	if c != nil && c.Receiver != "" {
		if !ledger.ValidAddress(c.Receiver) {
			return "", fmt.Errorf("%w: campaign receiver %q", ErrInvalidAddress, c.Receiver)
		}
		return c.Receiver, nil
	}
	if defaultReceiver != "" {
		if !ledger.ValidAddress(defaultReceiver) {
			return "", fmt.Errorf("%w: default receiver %q", ErrInvalidAddress, defaultReceiver)
		}
		return defaultReceiver, nil
	}
	if c != nil && ledger.ValidAddress(c.Creator) {
		return c.Creator, nil
	}
	return "", ErrNoReceiver
}
