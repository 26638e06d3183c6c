package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/algofund/client"
	"github.com/brojonat/algofund/service/algorand"
	"github.com/brojonat/algofund/service/ledger"
	"github.com/brojonat/algofund/service/wallet"
)

func txCommands() *cli.Command {
	return &cli.Command{
		Name:  "tx",
		Usage: "Sign, submit and inspect Algorand transactions",
		Subcommands: []*cli.Command{
			txSignCommand(),
			txSubmitCommand(),
			txInspectCommand(),
			txListCommand(),
		},
	}
}

// readTxnArg returns a base64 transaction given as an argument, "-" for stdin or @path for a file.
func readTxnArg(c *cli.Context, stdin io.Reader) (string, error) {
	arg := c.Args().First()
	var data []byte
	var err error
	switch {
	case arg == "" || arg == "-":
		data, err = io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		data, err = os.ReadFile(strings.TrimPrefix(arg, "@"))
	default:
		data = []byte(arg)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read transaction: %w", err)
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return "", fmt.Errorf("transaction is required (argument, - for stdin, or @file)")
	}
	return s, nil
}

func txSignCommand() *cli.Command {
	return &cli.Command{
		Name:      "sign",
		Usage:     "Sign an unsigned transaction offline with a mnemonic",
		ArgsUsage: "<unsigned-txn-base64 | - | @file>",
		Description: `Sign a base64 msgpack transaction produced by the manual-sign flow.

The key never leaves this machine. The signed transaction is printed as base64
so it can be piped into "algofund tx submit".`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mnemonic",
				Usage:   "25-word account mnemonic",
				EnvVars: []string{"ALGOFUND_MNEMONIC"},
			},
			&cli.StringFlag{
				Name:  "mnemonic-file",
				Usage: "File containing the 25-word account mnemonic",
			},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			phrase := c.String("mnemonic")
			if path := c.String("mnemonic-file"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read mnemonic file: %w", err)
				}
				phrase = string(data)
			}
			if strings.TrimSpace(phrase) == "" {
				return fmt.Errorf("a mnemonic is required (--mnemonic, --mnemonic-file or ALGOFUND_MNEMONIC)")
			}

			unsigned, err := readTxnArg(c, os.Stdin)
			if err != nil {
				return err
			}

			signed, txid, err := signTransaction(c.Context, phrase, unsigned)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(map[string]string{"txid": txid, "signed_txn": signed})
			}
			fmt.Fprintf(os.Stderr, "✓ Signed transaction %s\n", txid)
			fmt.Println(signed)
			return nil
		},
	}
}

// signTransaction signs a base64 unsigned transaction and returns the base64 signed form and its ID.
func signTransaction(ctx context.Context, phrase, unsignedB64 string) (string, string, error) {
	signer, err := wallet.NewKeySigner(phrase)
	if err != nil {
		return "", "", err
	}
	txn, err := algorand.DecodeUnsignedTxn(unsignedB64)
	if err != nil {
		return "", "", err
	}
	if sender := txn.Sender.String(); sender != signer.Address() {
		return "", "", fmt.Errorf("transaction sender %s does not match the mnemonic's account %s", sender, signer.Address())
	}
	signed, err := signer.SignTransaction(ctx, txn)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signed), crypto.GetTxID(txn), nil
}

func txSubmitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Submit a signed transaction through the server",
		ArgsUsage: "<signed-txn-base64 | - | @file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "campaign", Usage: "Credit the payment as a donation to this campaign"},
			&cli.StringFlag{Name: "bounty", Usage: "Submit the transaction as a claim proof for this bounty"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			campaignID, bountyID := c.String("campaign"), c.String("bounty")
			if campaignID != "" && bountyID != "" {
				return fmt.Errorf("--campaign and --bounty are mutually exclusive")
			}

			signed, err := readTxnArg(c, os.Stdin)
			if err != nil {
				return err
			}
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}
			ctx := context.Background()

			var result interface{}
			switch {
			case campaignID != "":
				r, err := cl.FundSigned(ctx, campaignID, signed)
				if err != nil {
					return fmt.Errorf("failed to submit donation: %w", err)
				}
				if !c.Bool("json") {
					printFundResult(campaignID, r)
					return nil
				}
				result = r
			case bountyID != "":
				r, err := cl.ClaimBountySigned(ctx, bountyID, signed)
				if err != nil {
					return fmt.Errorf("failed to submit claim: %w", err)
				}
				if !c.Bool("json") {
					printClaimResult(bountyID, r)
					return nil
				}
				result = r
			default:
				r, err := cl.SubmitSigned(ctx, signed)
				if err != nil {
					return fmt.Errorf("failed to submit transaction: %w", err)
				}
				if !c.Bool("json") {
					printSubmitResult(r)
					return nil
				}
				result = r
			}
			return outputJSON(result)
		},
	}
}

func printSubmitResult(r *client.SubmitResult) {
	if r.Status == client.StatusConfirmed {
		fmt.Printf("✓ Transaction confirmed in round %d\n", r.ConfirmedRound)
	} else {
		fmt.Printf("⏳ Transaction %s\n", r.Status)
		if r.Message != "" {
			fmt.Printf("  %s\n", r.Message)
		}
	}
	fmt.Printf("  TxID:     %s\n", r.TxID)
	fmt.Printf("  Type:     %s\n", r.Type)
	fmt.Printf("  Sender:   %s\n", r.Sender)
	if r.Receiver != "" {
		fmt.Printf("  Receiver: %s\n", r.Receiver)
	}
	fmt.Printf("  Amount:   %.6f ALGO\n", ledger.MicroAlgos(r.Amount).ToAlgos())
	if r.ExplorerURL != "" {
		fmt.Printf("  Explorer: %s\n", r.ExplorerURL)
	}
}

// inspectedTxn is the decoded content of a transaction shown by tx inspect.
type inspectedTxn struct {
	TxID       string  `json:"txid"`
	Signed     bool    `json:"signed"`
	Type       string  `json:"type"`
	Sender     string  `json:"sender"`
	Receiver   string  `json:"receiver,omitempty"`
	Amount     uint64  `json:"amount"`
	AmountAlgo float64 `json:"amount_algo"`
	Fee        uint64  `json:"fee,omitempty"`
	Note       string  `json:"note,omitempty"`
	FirstValid uint64  `json:"first_valid"`
	LastValid  uint64  `json:"last_valid"`
}

// inspectTransaction decodes a signed or unsigned base64 transaction.
func inspectTransaction(b64 string) (*inspectedTxn, error) {
	p, _, err := algorand.DecodeSignedTxn(b64)
	if err == nil {
		return &inspectedTxn{
			TxID:       p.TxID,
			Signed:     true,
			Type:       p.Type,
			Sender:     p.Sender,
			Receiver:   p.Receiver,
			Amount:     uint64(p.Amount),
			AmountAlgo: p.Amount.ToAlgos(),
			Note:       p.Note,
			FirstValid: p.FirstValid,
			LastValid:  p.LastValid,
		}, nil
	}
	signedErr := err

	txn, err := algorand.DecodeUnsignedTxn(b64)
	if err != nil || txn.Type == "" {
		if errors.Is(signedErr, algorand.ErrNotSigned) {
			return nil, fmt.Errorf("not a transaction")
		}
		return nil, signedErr
	}
	out := &inspectedTxn{
		TxID:       crypto.GetTxID(txn),
		Type:       string(txn.Type),
		Sender:     txn.Sender.String(),
		Amount:     uint64(txn.Amount),
		AmountAlgo: ledger.MicroAlgos(txn.Amount).ToAlgos(),
		Fee:        uint64(txn.Fee),
		Note:       string(txn.Note),
		FirstValid: uint64(txn.FirstValid),
		LastValid:  uint64(txn.LastValid),
	}
	if out.Type == "pay" {
		out.Receiver = txn.Receiver.String()
	}
	return out, nil
}

func txInspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Decode a signed or unsigned transaction",
		ArgsUsage: "<txn-base64 | - | @file>",
		Flags:     []cli.Flag{jsonFlag()},
		Action: func(c *cli.Context) error {
			b64, err := readTxnArg(c, os.Stdin)
			if err != nil {
				return err
			}
			tx, err := inspectTransaction(b64)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(tx)
			}
			fmt.Printf("TxID:        %s\n", tx.TxID)
			fmt.Printf("Signed:      %v\n", tx.Signed)
			fmt.Printf("Type:        %s\n", tx.Type)
			fmt.Printf("Sender:      %s\n", tx.Sender)
			if tx.Receiver != "" {
				fmt.Printf("Receiver:    %s\n", tx.Receiver)
			}
			fmt.Printf("Amount:      %.6f ALGO\n", tx.AmountAlgo)
			if tx.Note != "" {
				fmt.Printf("Note:        %s\n", tx.Note)
			}
			fmt.Printf("Valid:       rounds %d-%d\n", tx.FirstValid, tx.LastValid)
			return nil
		},
	}
}

func txListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List transactions submitted through the server",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "Only transactions sent or received by this address"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of transactions", Value: 50},
			&cli.IntFlag{Name: "offset", Usage: "Number of transactions to skip"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}
			txns, err := cl.ListTransactions(context.Background(), client.ListTransactionsParams{
				Address: c.String("address"),
				Limit:   c.Int("limit"),
				Offset:  c.Int("offset"),
			})
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(txns)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TXID\tKIND\tSENDER\tAMOUNT (ALGO)\tROUND\tSUBMITTED")
			for _, tx := range txns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.6f\t%d\t%s\n",
					tx.TxID,
					tx.Kind,
					tx.Sender,
					ledger.MicroAlgos(tx.Amount).ToAlgos(),
					tx.ConfirmedRound,
					tx.SubmittedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d transactions\n", len(txns))
			return nil
		},
	}
}
