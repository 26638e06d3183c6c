package wallet

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Keyring tracks connected accounts and the signer each one uses.
type Keyring struct {
	mu      sync.RWMutex
	signers map[string]Signer
	logger  *slog.Logger
}

// NewKeyring creates an empty keyring.
func NewKeyring(logger *slog.Logger) *Keyring {
	if logger == nil {
		logger = slog.Default()
	}
	return &Keyring{
		signers: make(map[string]Signer),
		logger:  logger,
	}
}

// LoadMnemonics connects a KeySigner for each comma-separated mnemonic.
func (k *Keyring) LoadMnemonics(list string) error {
	for i, phrase := range strings.Split(list, ",") {
		if strings.TrimSpace(phrase) == "" {
			continue
		}
		signer, err := NewKeySigner(phrase)
		if err != nil {
			return fmt.Errorf("mnemonic %d: %w", i+1, err)
		}
		k.Connect(signer)
	}
	return nil
}

// Connect registers a signer under its address, replacing any previous one.
func (k *Keyring) Connect(s Signer) {
	k.mu.Lock()
	k.signers[s.Address()] = s
	k.mu.Unlock()
	k.logger.Info("wallet connected", "address", s.Address())
}

// Disconnect removes the signer for an address. It reports whether one was connected.
func (k *Keyring) Disconnect(address string) bool {
	address = strings.TrimSpace(address)
	k.mu.Lock()
	_, ok := k.signers[address]
	delete(k.signers, address)
	k.mu.Unlock()
	if ok {
		k.logger.Info("wallet disconnected", "address", address)
	}
	return ok
}

// Signer returns the signer for address. Addresses without a connected
// signer get an ExternalSigner.
func (k *Keyring) Signer(address string) Signer {
	address = strings.TrimSpace(address)
	k.mu.RLock()
	s, ok := k.signers[address]
	k.mu.RUnlock()
	if ok {
		return s
	}
	return NewExternalSigner(address)
}

// Connected reports whether address has an in-app signer.
func (k *Keyring) Connected(address string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.signers[strings.TrimSpace(address)]
	return ok
}

// Addresses lists connected addresses.
func (k *Keyring) Addresses() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]string, 0, len(k.signers))
	for addr := range k.signers {
		out = append(out, addr)
	}
	return out
}
