package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"

	natspkg "github.com/brojonat/algofund/service/nats"
)

// subscribeCommand subscribes to campaign events on JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to donation events for one or all campaigns",
		ArgsUsage: "[campaign-id]",
		Description: `Subscribe to events published to NATS JetStream.

Donations are published to campaigns.{campaign_id}.donations and new campaigns
to campaigns.{campaign_id}.created. With --must-jq, only events for which every
filter is truthy are shown.

Example:
  algofund nats subscribe 1 --must-jq '.amount_algo > 100' --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "created",
				Usage: "Follow campaign creation events instead of donations",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "algofund-cli",
			},
			&cli.BoolFlag{
				Name:  "new",
				Usage: "Only deliver events published after subscribing",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Aliases: []string{"jq"},
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
			},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
			matcher, err := newJQMatcher(c.StringSlice("must-jq"), logger)
			if err != nil {
				return err
			}

			opts := subscribeOptions{
				subject:      eventSubject(c.Args().First(), c.Bool("created")),
				created:      c.Bool("created"),
				durable:      c.Bool("durable"),
				consumerName: c.String("consumer-name"),
				onlyNew:      c.Bool("new"),
				jsonOutput:   c.Bool("json"),
			}
			return streamEvents(c.String("nats-url"), opts, matcher)
		},
	}
}

// eventSubject picks the JetStream subject for a campaign filter.
func eventSubject(campaignID string, created bool) string {
	switch {
	case created && campaignID != "":
		return natspkg.CampaignSubject(campaignID)
	case created:
		return "campaigns.*.created"
	case campaignID != "":
		return natspkg.DonationSubject(campaignID)
	default:
		return natspkg.AllDonationsSubject
	}
}

type subscribeOptions struct {
	subject      string
	created      bool
	durable      bool
	consumerName string
	onlyNew      bool
	jsonOutput   bool
}

// streamEvents connects to NATS and prints matching events until interrupted.
func streamEvents(natsURL string, opts subscribeOptions, matcher *jqMatcher) error {
	nc, err := natspkg.Connect(natsURL, "algofund-cli")
	if err != nil {
		return err
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if !opts.jsonOutput {
		fmt.Printf("📡 Subscribing to: %s\n", opts.subject)
		fmt.Printf("   NATS: %s\n", natsURL)
		if opts.durable {
			fmt.Printf("   Consumer: %s (durable)\n", opts.consumerName)
		}
		for _, f := range matcher.filters {
			fmt.Printf("   jq Filter: %s\n", f)
		}
		fmt.Printf("\nWaiting for events... (Ctrl-C to exit)\n\n")
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: opts.subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if opts.onlyNew {
		consumerConfig.DeliverPolicy = jetstream.DeliverNewPolicy
	}
	if opts.durable {
		consumerConfig.Durable = opts.consumerName
		consumerConfig.Name = opts.consumerName
	}

	cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan jetstream.Msg, 10)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			data := msg.Data()
			if matcher.MatchJSON(data) {
				count++
				if err := printEvent(data, opts, count); err != nil && !opts.jsonOutput {
					fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
				}
			}
			msg.Ack()

		case <-sigChan:
			if !opts.jsonOutput {
				fmt.Printf("\n\n✅ Received %d events\n", count)
				fmt.Println("Shutting down...")
			}
			return nil
		}
	}
}

func printEvent(data []byte, opts subscribeOptions, n int) error {
	if opts.jsonOutput {
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("─────────────────────────────────────────────────────\n")
	if opts.created {
		var event natspkg.CampaignEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return err
		}
		fmt.Printf("Campaign #%d\n", n)
		fmt.Printf("─────────────────────────────────────────────────────\n")
		fmt.Printf("ID:           %s\n", event.CampaignID)
		fmt.Printf("Title:        %s\n", event.Title)
		fmt.Printf("Creator:      %s\n", event.Creator)
		fmt.Printf("Goal:         %d microALGO\n", event.Goal)
		fmt.Printf("Deadline:     %s\n", event.Deadline.Format(time.RFC3339))
		fmt.Printf("Published:    %s\n\n", event.PublishedAt.Format(time.RFC3339))
		return nil
	}

	var event natspkg.DonationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return err
	}
	fmt.Printf("Donation #%d\n", n)
	fmt.Printf("─────────────────────────────────────────────────────\n")
	fmt.Printf("Campaign:     %s (%s)\n", event.CampaignTitle, event.CampaignID)
	fmt.Printf("Donor:        %s\n", event.Donor)
	fmt.Printf("Amount:       %s ALGO\n", formatAlgo(event.Amount))
	fmt.Printf("Source:       %s\n", event.Source)
	fmt.Printf("Raised:       %d / %d microALGO (%.1f%%)\n", event.Raised, event.Goal, event.Progress)
	if event.TxID != "" {
		fmt.Printf("TxID:         %s\n", event.TxID)
		fmt.Printf("Round:        %d\n", event.ConfirmedRound)
	}
	fmt.Printf("Published:    %s\n\n", event.PublishedAt.Format(time.RFC3339))
	return nil
}

// inspectStreamCommand shows information about the NATS JetStream stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the CAMPAIGNS JetStream stream",
		Description: `Show information about the JetStream stream including:
- Message count
- Consumers
- Storage usage

Example:
  algofund nats inspect-stream`,
		Flags: []cli.Flag{jsonFlag()},
		Action: func(c *cli.Context) error {
			nc, err := natspkg.Connect(c.String("nats-url"), "algofund-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(context.Background(), natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(info)
			}
			fmt.Printf("Stream: %s\n", info.Config.Name)
			fmt.Printf("─────────────────────────────────────────────────────\n")
			fmt.Printf("Description:  %s\n", info.Config.Description)
			fmt.Printf("Subjects:     %v\n", info.Config.Subjects)
			fmt.Printf("Messages:     %d\n", info.State.Msgs)
			fmt.Printf("Bytes:        %d\n", info.State.Bytes)
			fmt.Printf("First Seq:    %d\n", info.State.FirstSeq)
			fmt.Printf("Last Seq:     %d\n", info.State.LastSeq)
			fmt.Printf("Consumers:    %d\n", info.State.Consumers)
			fmt.Printf("Max Age:      %s\n", info.Config.MaxAge)
			fmt.Printf("Storage:      %s\n", info.Config.Storage)
			fmt.Printf("\n")
			return nil
		},
	}
}
