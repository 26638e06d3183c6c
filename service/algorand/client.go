package algorand

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"golang.org/x/time/rate"

	"github.com/brojonat/algofund/service/ledger"
	"github.com/brojonat/algofund/service/metrics"
	"github.com/brojonat/algofund/service/wallet"
)

// AlgodClient is an interface for the algod operations we need.
// This allows us to mock the node in tests without hitting a real network.
type AlgodClient interface {
	SuggestedParams(ctx context.Context) (types.SuggestedParams, error)
	SendRawTransaction(ctx context.Context, signed []byte) (string, error)
	PendingTransactionInformation(ctx context.Context, txid string) (models.PendingTransactionInfoResponse, error)
	Status(ctx context.Context) (models.NodeStatus, error)
	StatusAfterBlock(ctx context.Context, round uint64) (models.NodeStatus, error)
	AccountInformation(ctx context.Context, address string) (models.Account, error)
}

// Options tunes a Client. Zero values pick defaults.
type Options struct {
	// ConfirmationRounds is how many rounds to wait for a submitted transaction.
	ConfirmationRounds uint64
	// RequestsPerSecond throttles calls to algod. Zero or negative disables throttling.
	RequestsPerSecond float64
	// MaxAttempts bounds retries of transient algod errors.
	MaxAttempts int
	// Backoff returns the delay before retry attempt n (0-based).
	Backoff func(attempt int) time.Duration
}

// Client builds, signs, submits and confirms transactions.
// It wraps the algod client with throttling, retries and metrics.
type Client struct {
	algod   AlgodClient
	network string
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger

	rounds      uint64
	maxAttempts int
	backoff     func(attempt int) time.Duration
}

// NewClient creates a new Algorand client.
// The network parameter labels metrics (e.g., "testnet", "mainnet").
// If metrics is nil, no metrics will be recorded.
func NewClient(algodClient AlgodClient, network string, opts Options, m *metrics.Metrics, logger *slog.Logger) *Client {
	if opts.ConfirmationRounds == 0 {
		opts.ConfirmationRounds = DefaultConfirmationRounds
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff == nil {
		opts.Backoff = func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second // 1s, 2s, 4s
		}
	}
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(1, int(opts.RequestsPerSecond))
	}
	return &Client{
		algod:       algodClient,
		network:     network,
		limiter:     rate.NewLimiter(limit, burst),
		metrics:     m,
		logger:      logger,
		rounds:      opts.ConfirmationRounds,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
	}
}

// Network returns the network the client talks to.
func (c *Client) Network() string {
	return c.network
}

// call runs one algod request through the limiter, retrying transient failures.
func (c *Client) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := range c.maxAttempts {
		waitStart := time.Now()
		if werr := c.limiter.Wait(ctx); werr != nil {
			return werr
		}
		if c.metrics != nil {
			c.metrics.RecordLimiterWait(c.network, time.Since(waitStart).Seconds())
		}

		start := time.Now()
		err = fn(ctx)
		status := "success"
		if err != nil {
			status = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordRPCCall(method, status, c.network, time.Since(start).Seconds())
		}
		if err == nil {
			return nil
		}
		if !isTransient(err) || attempt == c.maxAttempts-1 {
			return err
		}

		backoff := c.backoff(attempt)
		reason := "timeout_or_error"
		if isRateLimited(err) {
			// Handle rate limiting (429 Too Many Requests) with longer backoff
			backoff *= 2
			reason = "rate_limit"
			if c.metrics != nil {
				c.metrics.RecordRateLimitHit(c.network)
			}
		}
		if c.metrics != nil {
			c.metrics.RecordRPCRetry(method, reason)
		}
		c.logger.WarnContext(ctx, "algod call failed, retrying",
			"method", method,
			"attempt", attempt+1,
			"error", err,
			"backoff_seconds", backoff.Seconds(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

// SuggestedParams fetches fresh transaction parameters.
func (c *Client) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	var params types.SuggestedParams
	err := c.call(ctx, "SuggestedParams", func(ctx context.Context) error {
		var err error
		params, err = c.algod.SuggestedParams(ctx)
		return err
	})
	if err != nil {
		return types.SuggestedParams{}, fmt.Errorf("failed to get suggested params: %w", err)
	}
	return params, nil
}

// Status returns the node's last round.
func (c *Client) Status(ctx context.Context) (uint64, error) {
	var status models.NodeStatus
	err := c.call(ctx, "Status", func(ctx context.Context) error {
		var err error
		status, err = c.algod.Status(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get node status: %w", err)
	}
	return status.LastRound, nil
}

// AccountBalance returns an account's balance.
func (c *Client) AccountBalance(ctx context.Context, address string) (ledger.MicroAlgos, error) {
	if !ledger.ValidAddress(address) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	var account models.Account
	err := c.call(ctx, "AccountInformation", func(ctx context.Context) error {
		var err error
		account, err = c.algod.AccountInformation(ctx, address)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get account information: %w", err)
	}
	return ledger.MicroAlgos(account.Amount), nil
}

// BuildPayment creates an unsigned payment transaction with fresh suggested params.
func (c *Client) BuildPayment(ctx context.Context, sender, receiver string, amount ledger.MicroAlgos, note string) (types.Transaction, error) {
	if !ledger.ValidAddress(sender) {
		return types.Transaction{}, fmt.Errorf("%w: sender %q", ErrInvalidAddress, sender)
	}
	if !ledger.ValidAddress(receiver) {
		return types.Transaction{}, fmt.Errorf("%w: receiver %q", ErrInvalidAddress, receiver)
	}

	params, err := c.SuggestedParams(ctx)
	if err != nil {
		return types.Transaction{}, err
	}

	var noteBytes []byte
	if note != "" {
		noteBytes = []byte(note)
	}
	txn, err := transaction.MakePaymentTxn(sender, receiver, uint64(amount), noteBytes, "", params)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("failed to build payment: %w", err)
	}
	return txn, nil
}

// FundCampaign donates to a campaign: build, sign, submit and confirm.
// Returns *ManualSignRequiredError when the signer cannot sign in-app.
func (c *Client) FundCampaign(ctx context.Context, params FundParams) (*SubmitResult, error) {
	if params.Signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if params.Amount == 0 {
		return nil, fmt.Errorf("amount must be greater than zero")
	}
	note := ledger.FundNote(params.CampaignID)
	build := func(ctx context.Context) (types.Transaction, error) {
		return c.BuildPayment(ctx, params.Sender, params.Receiver, params.Amount, note)
	}

	c.logger.InfoContext(ctx, "funding campaign",
		"campaign_id", params.CampaignID,
		"sender", params.Sender,
		"receiver", params.Receiver,
		"amount", params.Amount.String(),
	)
	return c.signAndSubmit(ctx, ledger.KindFund, params.Signer, build, !params.SkipConfirmation)
}

// SignProof submits a zero-ALGO self-payment carrying note, proving control of sender.
func (c *Client) SignProof(ctx context.Context, sender, note string, signer wallet.Signer) (*SubmitResult, error) {
	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	build := func(ctx context.Context) (types.Transaction, error) {
		return c.BuildPayment(ctx, sender, sender, 0, note)
	}
	return c.signAndSubmit(ctx, ledger.KindClaim, signer, build, true)
}

func (c *Client) signAndSubmit(
	ctx context.Context,
	kind string,
	signer wallet.Signer,
	build func(ctx context.Context) (types.Transaction, error),
	wait bool,
) (*SubmitResult, error) {
	txn, err := build(ctx)
	if err != nil {
		return nil, err
	}

	signed, err := c.sign(ctx, kind, signer, txn)
	if err != nil {
		return nil, err
	}

	txid, err := c.Submit(ctx, kind, signed)
	if isExpired(err) {
		// Rebuild once with fresh params; the signer already proved it can sign in-app.
		c.logger.WarnContext(ctx, "transaction expired before submission, rebuilding",
			"kind", kind,
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.RecordTransactionRebuild(kind)
		}
		if txn, err = build(ctx); err != nil {
			return nil, err
		}
		if signed, err = c.sign(ctx, kind, signer, txn); err != nil {
			return nil, err
		}
		txid, err = c.Submit(ctx, kind, signed)
	}
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{
		Payment:   paymentFromTxn(txid, txn),
		SignedTxn: base64.StdEncoding.EncodeToString(signed),
	}
	if !wait {
		return result, nil
	}

	round, err := c.WaitForConfirmation(ctx, txid, c.rounds)
	if err != nil {
		return result, err
	}
	result.ConfirmedRound = round
	return result, nil
}

func (c *Client) sign(ctx context.Context, kind string, signer wallet.Signer, txn types.Transaction) ([]byte, error) {
	signed, err := signer.SignTransaction(ctx, txn)
	if errors.Is(err, wallet.ErrSigningUnsupported) {
		c.logger.InfoContext(ctx, "wallet cannot sign in-app, exporting for manual signing",
			"kind", kind,
			"sender", txn.Sender.String(),
		)
		if c.metrics != nil {
			c.metrics.RecordManualSignFallback(kind)
		}
		return nil, NewManualSignRequired(kind, txn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// Submit sends a signed transaction to the network and returns its ID.
// Resubmitting a transaction the ledger already holds is not an error.
func (c *Client) Submit(ctx context.Context, kind string, signed []byte) (string, error) {
	var stx types.SignedTxn
	if err := msgpack.Decode(signed, &stx); err != nil {
		return "", fmt.Errorf("invalid signed transaction: %w", err)
	}
	expected := crypto.GetTxID(stx.Txn)

	var txid string
	err := c.call(ctx, "SendRawTransaction", func(ctx context.Context) error {
		var err error
		txid, err = c.algod.SendRawTransaction(ctx, signed)
		return err
	})
	if isAlreadyInLedger(err) {
		c.logger.InfoContext(ctx, "transaction already in ledger", "txid", expected)
		txid, err = expected, nil
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordTransactionSubmitted(kind, "error")
		}
		c.logger.ErrorContext(ctx, "failed to submit transaction",
			"kind", kind,
			"txid", expected,
			"error", err,
		)
		return "", fmt.Errorf("failed to submit transaction: %w", err)
	}
	if txid == "" {
		txid = expected
	}
	if c.metrics != nil {
		c.metrics.RecordTransactionSubmitted(kind, "success")
	}
	c.logger.InfoContext(ctx, "transaction submitted", "kind", kind, "txid", txid)
	return txid, nil
}

// SubmitSignedBase64 submits a base64 signed transaction and waits for confirmation.
func (c *Client) SubmitSignedBase64(ctx context.Context, kind, b64 string) (*SubmitResult, error) {
	result, err := c.SendSignedBase64(ctx, kind, b64)
	if err != nil {
		return nil, err
	}
	round, err := c.WaitForConfirmation(ctx, result.TxID, c.rounds)
	if err != nil {
		return result, err
	}
	result.ConfirmedRound = round
	return result, nil
}

// SendSignedBase64 submits a base64 signed transaction without waiting for confirmation.
func (c *Client) SendSignedBase64(ctx context.Context, kind, b64 string) (*SubmitResult, error) {
	payment, raw, err := DecodeSignedTxn(b64)
	if err != nil {
		return nil, err
	}
	txid, err := c.Submit(ctx, kind, raw)
	if err != nil {
		return nil, err
	}
	payment.TxID = txid
	return &SubmitResult{Payment: *payment, SignedTxn: b64}, nil
}

// WaitForConfirmation polls until txid is confirmed or rounds rounds pass.
// Returns the confirmed round.
func (c *Client) WaitForConfirmation(ctx context.Context, txid string, rounds uint64) (uint64, error) {
	if rounds == 0 {
		rounds = c.rounds
	}
	start := time.Now()
	round, err := c.waitForConfirmation(ctx, txid, rounds)
	status := "confirmed"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrConfirmationTimeout) {
			status = "timeout"
		}
	}
	if c.metrics != nil {
		c.metrics.RecordConfirmation(status, time.Since(start).Seconds())
	}
	return round, err
}

func (c *Client) waitForConfirmation(ctx context.Context, txid string, rounds uint64) (uint64, error) {
	startRound, err := c.Status(ctx)
	if err != nil {
		return 0, err
	}

	for current := startRound; current < startRound+rounds; current++ {
		var info models.PendingTransactionInfoResponse
		err := c.call(ctx, "PendingTransactionInformation", func(ctx context.Context) error {
			var err error
			info, err = c.algod.PendingTransactionInformation(ctx, txid)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("failed to get pending transaction %s: %w", txid, err)
		}
		if info.ConfirmedRound > 0 {
			c.logger.InfoContext(ctx, "transaction confirmed",
				"txid", txid,
				"round", info.ConfirmedRound,
			)
			return info.ConfirmedRound, nil
		}
		if info.PoolError != "" {
			return 0, fmt.Errorf("%w: %s", ErrTransactionRejected, info.PoolError)
		}

		c.logger.DebugContext(ctx, "waiting for confirmation", "txid", txid, "round", current)
		err = c.call(ctx, "StatusAfterBlock", func(ctx context.Context) error {
			_, err := c.algod.StatusAfterBlock(ctx, current+1)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("failed waiting for round %d: %w", current+1, err)
		}
	}
	return 0, fmt.Errorf("%w: %s after %d rounds", ErrConfirmationTimeout, txid, rounds)
}

// DecodeSignedTxn decodes a base64 msgpack signed transaction, returning its
// payment fields and raw bytes.
func DecodeSignedTxn(b64 string) (*Payment, []byte, error) {
	raw, err := decodeBase64(b64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid base64 transaction: %w", err)
	}
	var stx types.SignedTxn
	if err := msgpack.Decode(raw, &stx); err != nil {
		return nil, nil, fmt.Errorf("invalid signed transaction: %w", err)
	}
	if stx.Sig == (types.Signature{}) && len(stx.Msig.Subsigs) == 0 && len(stx.Lsig.Logic) == 0 {
		return nil, nil, ErrNotSigned
	}
	p := paymentFromTxn(crypto.GetTxID(stx.Txn), stx.Txn)
	return &p, raw, nil
}

// DecodeUnsignedTxn decodes a base64 msgpack unsigned transaction.
func DecodeUnsignedTxn(b64 string) (types.Transaction, error) {
	raw, err := decodeBase64(b64)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("invalid base64 transaction: %w", err)
	}
	var txn types.Transaction
	if err := msgpack.Decode(raw, &txn); err != nil {
		return types.Transaction{}, fmt.Errorf("invalid transaction: %w", err)
	}
	return txn, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

func paymentFromTxn(txid string, txn types.Transaction) Payment {
	p := Payment{
		TxID:       txid,
		Type:       string(txn.Type),
		Sender:     txn.Sender.String(),
		Amount:     ledger.MicroAlgos(txn.Amount),
		Note:       string(txn.Note),
		FirstValid: uint64(txn.FirstValid),
		LastValid:  uint64(txn.LastValid),
	}
	if txn.Type == types.PaymentTx {
		p.Receiver = txn.Receiver.String()
	}
	return p
}
