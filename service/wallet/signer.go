// Package wallet is the boundary between the service and the wallet software
// that holds private keys. The service never manages user keys itself: an
// account either signs through a Signer or falls back to manual signing.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// ErrSigningUnsupported means the wallet cannot sign in-app and the
// transaction must be signed out of band.
var ErrSigningUnsupported = errors.New("wallet does not support in-app signing")

// ErrRejected means the wallet owner declined to sign.
var ErrRejected = errors.New("transaction rejected by user")

// Signer signs transactions on behalf of one account.
type Signer interface {
	// Address returns the account address the signer signs for.
	Address() string
	// SignTransaction returns the msgpack-encoded signed transaction.
	SignTransaction(ctx context.Context, txn types.Transaction) ([]byte, error)
}

// KeySigner signs with a local key recovered from a 25-word mnemonic.
// Intended for development wallets and offline signing tools.
type KeySigner struct {
	account crypto.Account
}

// NewKeySigner recovers the account behind a mnemonic.
func NewKeySigner(phrase string) (*KeySigner, error) {
	words := strings.Join(strings.Fields(phrase), " ")
	sk, err := mnemonic.ToPrivateKey(words)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	account, err := crypto.AccountFromPrivateKey(sk)
	if err != nil {
		return nil, fmt.Errorf("failed to derive account: %w", err)
	}
	return &KeySigner{account: account}, nil
}

// NewKeySignerFromAccount wraps an existing account.
func NewKeySignerFromAccount(account crypto.Account) *KeySigner {
	return &KeySigner{account: account}
}

// Address returns the signer's address.
func (s *KeySigner) Address() string {
	return s.account.Address.String()
}

// SignTransaction signs txn. The sender must be the signer's address.
func (s *KeySigner) SignTransaction(ctx context.Context, txn types.Transaction) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if txn.Sender != s.account.Address {
		return nil, fmt.Errorf("cannot sign for sender %s: signer is %s", txn.Sender.String(), s.Address())
	}
	_, signed, err := crypto.SignTransaction(s.account.PrivateKey, txn)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// Mnemonic returns the signer's 25-word recovery phrase.
func (s *KeySigner) Mnemonic() (string, error) {
	return mnemonic.FromPrivateKey(s.account.PrivateKey)
}

// ExternalSigner stands for an account whose keys live in wallet software
// the service cannot reach. Every signing request falls back to manual signing.
type ExternalSigner struct {
	address string
}

// NewExternalSigner returns a signer for an address with no in-app signing.
func NewExternalSigner(address string) *ExternalSigner {
	return &ExternalSigner{address: strings.TrimSpace(address)}
}

func (s *ExternalSigner) Address() string {
	return s.address
}

func (s *ExternalSigner) SignTransaction(ctx context.Context, txn types.Transaction) ([]byte, error) {
	return nil, ErrSigningUnsupported
}
