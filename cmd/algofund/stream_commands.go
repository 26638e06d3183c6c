package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/algofund/client"
)

var errStreamDone = errors.New("stream done")

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Stream donations via SSE (HTTP)",
		ArgsUsage: "[campaign-id]",
		Description: `Follow donations as the server credits them.

With --must-jq, only events for which every filter is truthy are shown.
With --first, exit after the first matching event.

Example:
  algofund stream 1 --must-jq '.source == "onchain"' --must-jq '.amount_algo >= 10' --first`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Aliases: []string{"jq"},
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
			},
			&cli.BoolFlag{
				Name:  "first",
				Usage: "Exit after the first matching donation",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "Stop streaming after this long (0 streams until interrupted)",
			},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
			matcher, err := newJQMatcher(c.StringSlice("must-jq"), logger)
			if err != nil {
				return err
			}

			campaignID := c.Args().First()
			jsonOutput := c.Bool("json")
			first := c.Bool("first")

			// Create context that cancels on interrupt
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if timeout := c.Duration("timeout"); timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			go func() {
				select {
				case <-sigChan:
					cancel()
				case <-ctx.Done():
				}
			}()

			if !jsonOutput {
				if campaignID != "" {
					fmt.Fprintf(os.Stderr, "Streaming donations for campaign %s... (Ctrl+C to stop)\n\n", campaignID)
				} else {
					fmt.Fprintf(os.Stderr, "Streaming donations for all campaigns... (Ctrl+C to stop)\n\n")
				}
			}

			count := 0
			err = cl.StreamDonations(ctx, campaignID, func(ev *client.DonationEvent) error {
				data, err := json.Marshal(ev)
				if err != nil {
					return err
				}
				if !matcher.MatchJSON(data) {
					return nil
				}
				count++
				if jsonOutput {
					fmt.Println(string(data))
				} else {
					printDonationEvent(ev)
				}
				if first {
					return errStreamDone
				}
				return nil
			})

			switch {
			case errors.Is(err, errStreamDone):
				return nil
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				if first && count == 0 {
					return fmt.Errorf("no matching donation received")
				}
				if !jsonOutput {
					fmt.Fprintf(os.Stderr, "\nDisconnected after %d donations\n", count)
				}
				return nil
			case err != nil:
				return fmt.Errorf("error reading SSE stream: %w", err)
			}
			return nil
		},
	}
}

func printDonationEvent(ev *client.DonationEvent) {
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Campaign:   %s (%s)\n", ev.CampaignTitle, ev.CampaignID)
	fmt.Printf("Donor:      %s\n", ev.Donor)
	fmt.Printf("Amount:     %s ALGO\n", formatAlgo(ev.Amount))
	fmt.Printf("Source:     %s\n", ev.Source)
	fmt.Printf("Tokens:     %d\n", ev.RewardTokens)
	fmt.Printf("Progress:   %.1f%%\n", ev.Progress)
	if ev.TxID != "" {
		fmt.Printf("TxID:       %s (round %d)\n", ev.TxID, ev.ConfirmedRound)
	}
	if ev.ExplorerURL != "" {
		fmt.Printf("Explorer:   %s\n", ev.ExplorerURL)
	}
	if !ev.Timestamp.IsZero() {
		fmt.Printf("Time:       %s\n", ev.Timestamp.Format(time.RFC3339))
	}
	fmt.Println()
}
