package algorand

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/skip2/go-qrcode"
)

// ManualSignRequiredError is returned when the wallet cannot sign in-app.
// It carries everything a user needs to sign the transaction out of band and
// submit the result back.
type ManualSignRequiredError struct {
	Kind        string    `json:"kind"`
	TxID        string    `json:"txid"`
	Sender      string    `json:"sender"`
	Receiver    string    `json:"receiver"`
	Amount      uint64    `json:"amount"`
	Note        string    `json:"note"`
	UnsignedTxn string    `json:"unsigned_txn"` // base64 msgpack
	LuteURL     string    `json:"lute_url"`
	PaymentURI  string    `json:"payment_uri"` // ARC-26
	QRCodeData  string    `json:"qr_code_data,omitempty"`
	Filename    string    `json:"filename"`
	ExpiresAt   uint64    `json:"expires_at_round"`
	CreatedAt   time.Time `json:"created_at"`
}

func (e *ManualSignRequiredError) Error() string {
	return fmt.Sprintf("manual signing required for %s transaction %s", e.Kind, e.TxID)
}

// NewManualSignRequired exports txn for out-of-band signing.
func NewManualSignRequired(kind string, txn types.Transaction) *ManualSignRequiredError {
	unsigned := base64.StdEncoding.EncodeToString(msgpack.Encode(txn))
	now := time.Now()

	paymentURI := buildPaymentURI(txn.Receiver.String(), uint64(txn.Amount), string(txn.Note))

	qrCodeData, err := generateQRCode(paymentURI)
	if err != nil {
		// QR code is optional
		qrCodeData = ""
	}

	return &ManualSignRequiredError{
		Kind:        kind,
		TxID:        crypto.GetTxID(txn),
		Sender:      txn.Sender.String(),
		Receiver:    txn.Receiver.String(),
		Amount:      uint64(txn.Amount),
		Note:        string(txn.Note),
		UnsignedTxn: unsigned,
		LuteURL:     LuteSignURL(unsigned),
		PaymentURI:  paymentURI,
		QRCodeData:  qrCodeData,
		Filename:    fmt.Sprintf("unsigned_tx_%d.txt", now.UnixMilli()),
		ExpiresAt:   uint64(txn.LastValid),
		CreatedAt:   now,
	}
}

// LuteSignURL builds a deep link that opens the Lute wallet on the unsigned transaction.
func LuteSignURL(unsignedB64 string) string {
	return "lute://sign?txn=" + url.QueryEscape(unsignedB64)
}

// buildPaymentURI creates an ARC-26 payment URI.
// Format: algorand://{receiver}?amount={microalgos}&note={note}
func buildPaymentURI(receiver string, amount uint64, note string) string {
	params := url.Values{}
	params.Set("amount", fmt.Sprintf("%d", amount))
	if note != "" {
		params.Set("note", note)
	}
	return fmt.Sprintf("algorand://%s?%s", receiver, params.Encode())
}

// generateQRCode creates a QR code image from a payment URI and returns it as base64-encoded PNG.
func generateQRCode(data string) (string, error) {
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code as PNG: %w", err)
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
