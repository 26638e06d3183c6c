package wallet

import (
	"context"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() types.SuggestedParams {
	return types.SuggestedParams{
		Fee:             0,
		MinFee:          1000,
		FlatFee:         true,
		FirstRoundValid: 1000,
		LastRoundValid:  2000,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     make([]byte, 32),
	}
}

func newAccountMnemonic(t *testing.T) (crypto.Account, string) {
	t.Helper()
	account := crypto.GenerateAccount()
	phrase, err := mnemonic.FromPrivateKey(account.PrivateKey)
	require.NoError(t, err)
	return account, phrase
}

func TestKeySigner_SignsOwnTransactions(t *testing.T) {
	account, phrase := newAccountMnemonic(t)
	receiver := crypto.GenerateAccount()

	signer, err := NewKeySigner(phrase)
	require.NoError(t, err)
	assert.Equal(t, account.Address.String(), signer.Address())

	txn, err := transaction.MakePaymentTxn(account.Address.String(), receiver.Address.String(), 1_000_000, []byte("note"), "", testParams())
	require.NoError(t, err)

	signed, err := signer.SignTransaction(context.Background(), txn)
	require.NoError(t, err)

	var stx types.SignedTxn
	require.NoError(t, msgpack.Decode(signed, &stx))
	assert.Equal(t, account.Address, stx.Txn.Sender)
	assert.NotEqual(t, types.Signature{}, stx.Sig)
}

func TestKeySigner_RejectsOtherSender(t *testing.T) {
	signer := NewKeySignerFromAccount(crypto.GenerateAccount())
	other := crypto.GenerateAccount()

	txn, err := transaction.MakePaymentTxn(other.Address.String(), other.Address.String(), 0, nil, "", testParams())
	require.NoError(t, err)

	_, err = signer.SignTransaction(context.Background(), txn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot sign for sender")
}

func TestKeySigner_CancelledContext(t *testing.T) {
	account := crypto.GenerateAccount()
	signer := NewKeySignerFromAccount(account)
	txn, err := transaction.MakePaymentTxn(account.Address.String(), account.Address.String(), 0, nil, "", testParams())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = signer.SignTransaction(ctx, txn)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewKeySigner_InvalidMnemonic(t *testing.T) {
	_, err := NewKeySigner("not a real mnemonic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mnemonic")
}

func TestKeySigner_MnemonicRoundTrip(t *testing.T) {
	_, phrase := newAccountMnemonic(t)
	signer, err := NewKeySigner("  " + phrase + "\n")
	require.NoError(t, err)

	got, err := signer.Mnemonic()
	require.NoError(t, err)
	assert.Equal(t, phrase, got)
}

func TestExternalSigner(t *testing.T) {
	s := NewExternalSigner(" ADDR ")
	assert.Equal(t, "ADDR", s.Address())

	_, err := s.SignTransaction(context.Background(), types.Transaction{})
	assert.ErrorIs(t, err, ErrSigningUnsupported)
}
