package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/brojonat/algofund/service/ledger"
	"github.com/brojonat/algofund/service/wallet"
)

// Signing modes reported for a wallet.
const (
	signingInApp  = "in_app"
	signingManual = "manual"
)

func walletResponse(keyring *wallet.Keyring, address string) map[string]interface{} {
	connected := keyring.Connected(address)
	signing := signingManual
	if connected {
		signing = signingInApp
	}
	return map[string]interface{}{
		"address":   address,
		"connected": connected,
		"signing":   signing,
	}
}

// handleWalletStatus returns a handler that reports whether an address signs in-app
// or gets the manual-sign flow.
// GET /api/v1/wallets/{address}
func handleWalletStatus(keyring *wallet.Keyring) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := strings.TrimSpace(r.PathValue("address"))
		if !ledger.ValidAddress(address) {
			writeError(w, "invalid address", http.StatusBadRequest)
			return
		}
		writeJSON(w, walletResponse(keyring, address), http.StatusOK)
	})
}

// handleDisconnectWallet returns a handler that drops an address's in-app signer.
// Later donations from the address fall back to manual signing.
// DELETE /api/v1/wallets/{address}
func handleDisconnectWallet(keyring *wallet.Keyring, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := strings.TrimSpace(r.PathValue("address"))
		if !ledger.ValidAddress(address) {
			writeError(w, "invalid address", http.StatusBadRequest)
			return
		}
		if !keyring.Disconnect(address) {
			writeError(w, "wallet not connected", http.StatusNotFound)
			return
		}
		logger.InfoContext(r.Context(), "wallet disconnected via api", "address", address)
		writeJSON(w, walletResponse(keyring, address), http.StatusOK)
	})
}
