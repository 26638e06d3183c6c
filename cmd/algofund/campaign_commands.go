package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/algofund/client"
	"github.com/brojonat/algofund/service/algorand"
	"github.com/brojonat/algofund/service/ledger"
)

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "json",
		Aliases: []string{"j"},
		Usage:   "Output in JSON format",
	}
}

// formatAlgo renders a microALGO amount from an API response as ALGO.
func formatAlgo(amount uint64) string {
	return algorand.FormatAlgo(ledger.MicroAlgos(amount))
}

// newAPIClient builds an API client for the --server-url flag.
func newAPIClient(c *cli.Context) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	return client.NewClient(serverURL, nil, logger), nil
}

func campaignCommands() *cli.Command {
	return &cli.Command{
		Name:    "campaigns",
		Usage:   "Browse and create campaigns",
		Aliases: []string{"c"},
		Subcommands: []*cli.Command{
			campaignListCommand(),
			campaignGetCommand(),
			campaignCreateCommand(),
		},
	}
}

func campaignListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List all campaigns",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "active",
				Usage: "Only show campaigns accepting donations",
			},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}

			campaigns, err := cl.ListCampaigns(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list campaigns: %w", err)
			}

			if c.Bool("active") {
				filtered := make([]*client.Campaign, 0)
				for _, campaign := range campaigns {
					if campaign.IsActive && !campaign.Ended {
						filtered = append(filtered, campaign)
					}
				}
				campaigns = filtered
			}

			if c.Bool("json") {
				return outputJSON(campaigns)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tRAISED\tGOAL\tPROGRESS\tDEADLINE\tSTATUS")
			for _, campaign := range campaigns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f%%\t%s\t%s\n",
					campaign.ID,
					campaign.Title,
					formatAlgo(campaign.Raised),
					formatAlgo(campaign.Goal),
					campaign.Progress,
					campaign.Deadline.Format("2006-01-02"),
					campaignStatus(campaign),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d campaigns\n", len(campaigns))
			return nil
		},
	}
}

func campaignStatus(c *client.Campaign) string {
	switch {
	case c.Ended:
		return "ended"
	case !c.IsActive:
		return "inactive"
	case c.Remaining == 0:
		return "funded"
	default:
		return "active"
	}
}

func campaignGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a campaign and its top donors",
		ArgsUsage: "<campaign-id>",
		Flags:     []cli.Flag{jsonFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: campaign ID")
			}
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}

			campaign, err := cl.GetCampaign(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get campaign: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(campaign)
			}

			fmt.Printf("Campaign:     %s\n", campaign.ID)
			fmt.Printf("Title:        %s\n", campaign.Title)
			if campaign.Description != "" {
				fmt.Printf("Description:  %s\n", campaign.Description)
			}
			fmt.Printf("Raised:       %s / %s ALGO (%.1f%%)\n", formatAlgo(campaign.Raised), formatAlgo(campaign.Goal), campaign.Progress)
			fmt.Printf("Remaining:    %s ALGO\n", formatAlgo(campaign.Remaining))
			fmt.Printf("Deadline:     %s\n", campaign.Deadline.Format(time.RFC3339))
			fmt.Printf("Status:       %s\n", campaignStatus(campaign))
			fmt.Printf("Creator:      %s\n", campaign.Creator)
			if campaign.Receiver != "" {
				fmt.Printf("Receiver:     %s\n", campaign.Receiver)
			}
			fmt.Printf("Donors:       %d\n", campaign.DonorCount)

			if len(campaign.TopDonors) > 0 {
				fmt.Printf("\nTop Donors:\n")
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				for i, d := range campaign.TopDonors {
					fmt.Fprintf(w, "  %d.\t%s\t%s ALGO\n", i+1, d.Address, formatAlgo(d.Amount))
				}
				w.Flush()
			}
			return nil
		},
	}
}

func campaignCreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a campaign",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "Campaign title", Required: true},
			&cli.StringFlag{Name: "description", Usage: "Campaign description"},
			&cli.Float64Flag{Name: "goal", Usage: "Funding goal in ALGO", Required: true},
			&cli.StringFlag{Name: "deadline", Usage: "Deadline (RFC3339 or YYYY-MM-DD)", Required: true},
			&cli.StringFlag{Name: "creator", Usage: "Creator address", EnvVars: []string{"ALGOFUND_ADDRESS"}, Required: true},
			&cli.StringFlag{Name: "receiver", Usage: "Address donations are paid to (defaults to the server escrow)"},
			&cli.StringFlag{Name: "image-url", Usage: "Campaign image URL"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}

			campaign, err := cl.CreateCampaign(context.Background(), client.NewCampaign{
				Title:       c.String("title"),
				Description: c.String("description"),
				GoalAlgo:    c.Float64("goal"),
				Deadline:    c.String("deadline"),
				Creator:     c.String("creator"),
				Receiver:    c.String("receiver"),
				ImageURL:    c.String("image-url"),
			})
			if err != nil {
				return fmt.Errorf("failed to create campaign: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(campaign)
			}
			fmt.Printf("✓ Campaign created: %s\n", campaign.ID)
			fmt.Printf("  Title:    %s\n", campaign.Title)
			fmt.Printf("  Goal:     %s ALGO\n", formatAlgo(campaign.Goal))
			fmt.Printf("  Deadline: %s\n", campaign.Deadline.Format(time.RFC3339))
			return nil
		},
	}
}

func donateCommand() *cli.Command {
	return &cli.Command{
		Name:      "donate",
		Usage:     "Record an off-chain pledge to a campaign",
		ArgsUsage: "<campaign-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "donor", Usage: "Donor address", EnvVars: []string{"ALGOFUND_ADDRESS"}, Required: true},
			&cli.Float64Flag{Name: "amount", Usage: "Amount in ALGO", Required: true},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: campaign ID")
			}
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}

			amount := algorand.AlgoToMicroAlgos(c.Float64("amount"))
			result, err := cl.Pledge(context.Background(), c.Args().First(), c.String("donor"), uint64(amount))
			if err != nil {
				return fmt.Errorf("failed to donate: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(result)
			}
			fmt.Printf("✓ Donation recorded: %s ALGO to %s\n", algorand.FormatAlgo(amount), result.Campaign.Title)
			fmt.Printf("  Reward tokens: %d\n", result.RewardTokens)
			fmt.Printf("  Campaign:      %s / %s ALGO (%.1f%%)\n", formatAlgo(result.Campaign.Raised), formatAlgo(result.Campaign.Goal), result.Campaign.Progress)
			return nil
		},
	}
}

func fundCommand() *cli.Command {
	return &cli.Command{
		Name:      "fund",
		Usage:     "Send an on-chain donation to a campaign",
		ArgsUsage: "<campaign-id>",
		Description: `Fund a campaign with an Algorand payment.

If the donor's wallet is not connected to the server, the server returns an
unsigned transaction instead. Sign it with "algofund tx sign" and submit it
with "algofund tx submit --campaign <campaign-id>".`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "donor", Usage: "Donor address", EnvVars: []string{"ALGOFUND_ADDRESS"}, Required: true},
			&cli.Float64Flag{Name: "amount", Usage: "Amount in ALGO", Required: true},
			&cli.BoolFlag{Name: "wait", Usage: "Wait for asynchronous confirmation to finish"},
			&cli.StringFlag{Name: "unsigned-out", Usage: "Write an unsigned transaction to this file"},
			&cli.StringFlag{Name: "qr-out", Usage: "Write a payment QR code PNG to this file"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: campaign ID")
			}
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}

			ctx := context.Background()
			amount := algorand.AlgoToMicroAlgos(c.Float64("amount"))
			result, err := cl.Fund(ctx, c.Args().First(), c.String("donor"), uint64(amount))
			if err != nil {
				return fmt.Errorf("failed to fund campaign: %w", err)
			}

			if result.ManualSign != nil {
				if err := writeManualSignFiles(result.ManualSign, c.String("unsigned-out"), c.String("qr-out")); err != nil {
					return err
				}
			}

			if c.Bool("wait") && result.WorkflowID != "" {
				status, err := cl.WaitForDonation(ctx, result.WorkflowID, 2*time.Second)
				if err != nil {
					return fmt.Errorf("failed to wait for donation: %w", err)
				}
				if c.Bool("json") {
					return outputJSON(status)
				}
				printDonationStatus(status)
				return nil
			}

			if c.Bool("json") {
				return outputJSON(result)
			}
			printFundResult(c.Args().First(), result)
			return nil
		},
	}
}

// writeManualSignFiles saves the unsigned transaction and a payment QR code when asked to.
func writeManualSignFiles(ms *client.ManualSign, unsignedPath, qrPath string) error {
	if unsignedPath != "" {
		if err := os.WriteFile(unsignedPath, []byte(ms.UnsignedTxn+"\n"), 0o600); err != nil {
			return fmt.Errorf("failed to write unsigned transaction: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Unsigned transaction written to %s\n", unsignedPath)
	}
	if qrPath != "" && ms.PaymentURI != "" {
		if err := qrcode.WriteFile(ms.PaymentURI, qrcode.Medium, 256, qrPath); err != nil {
			return fmt.Errorf("failed to write QR code: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Payment QR code written to %s\n", qrPath)
	}
	return nil
}

func printFundResult(campaignID string, r *client.FundResult) {
	switch r.Status {
	case client.StatusConfirmed:
		fmt.Printf("✓ Donation confirmed in round %d\n", r.ConfirmedRound)
		fmt.Printf("  TxID:          %s\n", r.TxID)
		fmt.Printf("  Amount:        %s ALGO\n", formatAlgo(r.Amount))
		fmt.Printf("  Reward tokens: %d\n", r.RewardTokens)
		if r.ExplorerURL != "" {
			fmt.Printf("  Explorer:      %s\n", r.ExplorerURL)
		}
	case client.StatusPending, client.StatusSubmitted:
		fmt.Printf("⏳ Donation %s\n", r.Status)
		fmt.Printf("  TxID:     %s\n", r.TxID)
		if r.Message != "" {
			fmt.Printf("  %s\n", r.Message)
		}
		if r.WorkflowID != "" {
			fmt.Printf("  Workflow: %s\n", r.WorkflowID)
			fmt.Printf("  Check with: algofund temporal donation-status %s\n", r.WorkflowID)
		}
		if r.SignedTxn != "" {
			fmt.Printf("  Credit it once confirmed:\n")
			fmt.Printf("  algofund tx submit --campaign %s %s\n", campaignID, r.SignedTxn)
		}
	case client.StatusManualSignRequired:
		ms := r.ManualSign
		fmt.Printf("✍  Manual signing required\n")
		if r.Message != "" {
			fmt.Printf("  %s\n", r.Message)
		}
		if ms == nil {
			return
		}
		fmt.Printf("  Sender:    %s\n", ms.Sender)
		fmt.Printf("  Receiver:  %s\n", ms.Receiver)
		fmt.Printf("  Amount:    %s ALGO\n", formatAlgo(ms.Amount))
		fmt.Printf("  Note:      %s\n", ms.Note)
		fmt.Printf("  Expires:   round %d\n", ms.ExpiresAt)
		if ms.LuteURL != "" {
			fmt.Printf("  Sign in browser: %s\n", ms.LuteURL)
		}
		fmt.Printf("\nUnsigned transaction:\n%s\n", ms.UnsignedTxn)
		fmt.Printf("\nSign and submit:\n")
		fmt.Printf("  algofund tx sign --mnemonic-file <file> <unsigned-txn> | algofund tx submit --campaign %s -\n", campaignID)
	default:
		data, _ := json.MarshalIndent(r, "", "  ")
		fmt.Println(string(data))
	}
}

func printDonationStatus(s *client.DonationStatus) {
	fmt.Printf("Workflow:   %s\n", s.WorkflowID)
	fmt.Printf("State:      %s\n", s.State)
	if s.Error != "" {
		fmt.Printf("Error:      %s\n", s.Error)
	}
	if r := s.Result; r != nil {
		fmt.Printf("Status:     %s\n", r.Status)
		fmt.Printf("TxID:       %s\n", r.TxID)
		if r.ConfirmedRound > 0 {
			fmt.Printf("Round:      %d\n", r.ConfirmedRound)
		}
		if r.Duplicate {
			fmt.Printf("Duplicate:  already credited\n")
		}
		if r.Error != nil {
			fmt.Printf("Error:      %s\n", *r.Error)
		}
	}
}

func leaderboardCommand() *cli.Command {
	return &cli.Command{
		Name:      "leaderboard",
		Usage:     "Show top donors, across campaigns or for one campaign",
		ArgsUsage: "[campaign-id]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Rows to show (0 for all)", Value: 10},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}
			ctx := context.Background()

			var entries []client.DonationEntry
			if id := c.Args().First(); id != "" {
				donors, err := cl.CampaignLeaderboard(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to get leaderboard: %w", err)
				}
				for _, d := range donors {
					entries = append(entries, client.DonationEntry{CampaignID: id, Address: d.Address, Amount: d.Amount, AmountAlgo: d.AmountAlgo})
				}
			} else {
				entries, err = cl.Leaderboard(ctx)
				if err != nil {
					return fmt.Errorf("failed to get leaderboard: %w", err)
				}
			}

			if limit := c.Int("limit"); limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			if c.Bool("json") {
				return outputJSON(entries)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tADDRESS\tAMOUNT (ALGO)\tCAMPAIGN")
			for i, e := range entries {
				campaign := e.CampaignTitle
				if campaign == "" {
					campaign = e.CampaignID
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, e.Address, formatAlgo(e.Amount), campaign)
			}
			w.Flush()
			return nil
		},
	}
}

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:      "profile",
		Usage:     "Show an address's tokens, badges and contributions",
		ArgsUsage: "<address>",
		Flags:     []cli.Flag{jsonFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: address")
			}
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}

			p, err := cl.Profile(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get profile: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(p)
			}

			fmt.Printf("Address:        %s\n", p.Address)
			if p.AlgoBalance != nil {
				fmt.Printf("ALGO balance:   %.6f\n", ledger.MicroAlgos(*p.AlgoBalance).ToAlgos())
			}
			fmt.Printf("Reward tokens:  %d\n", p.TokenBalance)
			fmt.Printf("Total donated:  %s ALGO\n", formatAlgo(p.TotalDonated))
			if len(p.Badges) > 0 {
				fmt.Printf("Badges:\n")
				for _, b := range p.Badges {
					fmt.Printf("  🏅 %s\n", b)
				}
			}
			if len(p.Contributions) > 0 {
				fmt.Printf("\nContributions:\n")
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				for _, e := range p.Contributions {
					fmt.Fprintf(w, "  %s\t%s ALGO\n", e.CampaignTitle, formatAlgo(e.Amount))
				}
				w.Flush()
			}
			return nil
		},
	}
}

func bountyCommands() *cli.Command {
	return &cli.Command{
		Name:  "bounties",
		Usage: "List and claim reward bounties",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Usage:   "List claimable bounties",
				Aliases: []string{"ls"},
				Flags:   []cli.Flag{jsonFlag()},
				Action: func(c *cli.Context) error {
					cl, err := newAPIClient(c)
					if err != nil {
						return err
					}
					bounties, err := cl.ListBounties(context.Background())
					if err != nil {
						return fmt.Errorf("failed to list bounties: %w", err)
					}
					if c.Bool("json") {
						return outputJSON(bounties)
					}
					w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tTITLE\tREWARD")
					for _, b := range bounties {
						fmt.Fprintf(w, "%s\t%s\t%d tokens\n", b.ID, b.Title, b.RewardTokens)
					}
					w.Flush()
					return nil
				},
			},
			{
				Name:      "claim",
				Usage:     "Claim a bounty with a signed proof transaction",
				ArgsUsage: "<bounty-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "address", Usage: "Claimant address", EnvVars: []string{"ALGOFUND_ADDRESS"}, Required: true},
					jsonFlag(),
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("requires exactly one argument: bounty ID")
					}
					cl, err := newAPIClient(c)
					if err != nil {
						return err
					}
					result, err := cl.ClaimBounty(context.Background(), c.Args().First(), c.String("address"))
					if err != nil {
						return fmt.Errorf("failed to claim bounty: %w", err)
					}
					if c.Bool("json") {
						return outputJSON(result)
					}
					printClaimResult(c.Args().First(), result)
					return nil
				},
			},
		},
	}
}

func printClaimResult(bountyID string, r *client.ClaimResult) {
	if r.ManualSign != nil {
		fmt.Printf("✍  Manual signing required for the claim proof\n")
		fmt.Printf("  Note: %s\n", r.ManualSign.Note)
		fmt.Printf("\nUnsigned transaction:\n%s\n", r.ManualSign.UnsignedTxn)
		fmt.Printf("\nSign and submit:\n")
		fmt.Printf("  algofund tx sign --mnemonic-file <file> <unsigned-txn> | algofund tx submit --bounty %s -\n", bountyID)
		return
	}
	fmt.Printf("✓ Bounty %s claimed\n", r.BountyID)
	fmt.Printf("  TxID:          %s\n", r.TxID)
	fmt.Printf("  Reward tokens: %d\n", r.RewardTokens)
	fmt.Printf("  Token balance: %d\n", r.TokenBalance)
	if r.ExplorerURL != "" {
		fmt.Printf("  Explorer:      %s\n", r.ExplorerURL)
	}
}

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
