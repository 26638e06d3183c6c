package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"go.temporal.io/sdk/client"

	"github.com/brojonat/algofund/service/temporal"
)

// withSchedule dials Temporal and hands fn the schedule named by the first argument,
// or the campaign expiry schedule when there is none.
func withSchedule(c *cli.Context, fn func(ctx context.Context, id string, h client.ScheduleHandle) error) error {
	id := c.Args().First()
	if id == "" {
		id = temporal.ExpiryScheduleID
	}

	tc, err := dialTemporal(c)
	if err != nil {
		return err
	}
	defer tc.Close()

	ctx := c.Context
	return fn(ctx, id, tc.ScheduleClient().GetHandle(ctx, id))
}

func describeScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "describe-schedule",
		Aliases:   []string{"desc"},
		Usage:     "Show the campaign expiry schedule (or another schedule by ID)",
		ArgsUsage: "[schedule-id]",
		Action: func(c *cli.Context) error {
			return withSchedule(c, func(ctx context.Context, id string, h client.ScheduleHandle) error {
				desc, err := h.Describe(ctx)
				if err != nil {
					return fmt.Errorf("failed to describe schedule %s: %w", id, err)
				}
				printSchedule(id, desc)
				return nil
			})
		},
	}
}

func printSchedule(id string, desc *client.ScheduleDescription) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	state := "active"
	if desc.Schedule.State.Paused {
		state = "paused"
	}
	fmt.Fprintf(tw, "Schedule:\t%s\n", id)
	fmt.Fprintf(tw, "State:\t%s\n", state)
	if note := desc.Schedule.State.Note; note != "" {
		fmt.Fprintf(tw, "Note:\t%s\n", note)
	}
	if action, ok := desc.Schedule.Action.(*client.ScheduleWorkflowAction); ok {
		fmt.Fprintf(tw, "Workflow:\t%v\n", action.Workflow)
		fmt.Fprintf(tw, "Task queue:\t%s\n", action.TaskQueue)
	}

	every := make([]string, 0, len(desc.Schedule.Spec.Intervals))
	for _, interval := range desc.Schedule.Spec.Intervals {
		every = append(every, "Every "+interval.Every.String())
	}
	if len(every) > 0 {
		fmt.Fprintf(tw, "Runs:\t%s\n", strings.Join(every, ", "))
	}

	recent := desc.Info.RecentActions
	fmt.Fprintf(tw, "Recent runs:\t%d\n", len(recent))
	if len(recent) > 0 {
		fmt.Fprintf(tw, "Last run:\t%s\n", recent[len(recent)-1].ActualTime.Format(time.RFC3339))
	}
	if next := desc.Info.NextActionTimes; len(next) > 0 {
		fmt.Fprintf(tw, "Next run:\t%s\n", next[0].Format(time.RFC3339))
	}
}

func noteFlag(value string) cli.Flag {
	return &cli.StringFlag{Name: "note", Usage: "Note recorded on the schedule state", Value: value}
}

func pauseScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "pause-schedule",
		Usage:     "Stop campaign expiry runs until resumed",
		ArgsUsage: "[schedule-id]",
		Flags:     []cli.Flag{noteFlag("Paused via algofund CLI")},
		Action: func(c *cli.Context) error {
			return withSchedule(c, func(ctx context.Context, id string, h client.ScheduleHandle) error {
				if err := h.Pause(ctx, client.SchedulePauseOptions{Note: c.String("note")}); err != nil {
					return fmt.Errorf("failed to pause schedule %s: %w", id, err)
				}
				fmt.Printf("✓ Schedule paused: %s\n", id)
				return nil
			})
		},
	}
}

func resumeScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "resume-schedule",
		Usage:     "Resume a paused schedule",
		ArgsUsage: "[schedule-id]",
		Flags:     []cli.Flag{noteFlag("Resumed via algofund CLI")},
		Action: func(c *cli.Context) error {
			return withSchedule(c, func(ctx context.Context, id string, h client.ScheduleHandle) error {
				if err := h.Unpause(ctx, client.ScheduleUnpauseOptions{Note: c.String("note")}); err != nil {
					return fmt.Errorf("failed to resume schedule %s: %w", id, err)
				}
				fmt.Printf("✓ Schedule resumed: %s\n", id)
				return nil
			})
		},
	}
}

func triggerScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "trigger-schedule",
		Usage:     "Expire ended campaigns now instead of waiting for the next run",
		ArgsUsage: "[schedule-id]",
		Action: func(c *cli.Context) error {
			return withSchedule(c, func(ctx context.Context, id string, h client.ScheduleHandle) error {
				if err := h.Trigger(ctx, client.ScheduleTriggerOptions{}); err != nil {
					return fmt.Errorf("failed to trigger schedule %s: %w", id, err)
				}
				fmt.Printf("✓ Schedule triggered: %s\n", id)
				return nil
			})
		},
	}
}

func donationStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "donation-status",
		Usage:     "Show where a donation confirmation workflow is",
		ArgsUsage: "<workflow-id | txid>",
		Flags:     []cli.Flag{jsonFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: workflow ID or transaction ID")
			}
			id := c.Args().First()

			tc, err := temporal.NewClient(c.String("temporal-host"), c.String("temporal-namespace"), "",
				slog.New(slog.NewTextHandler(io.Discard, nil)))
			if err != nil {
				return err
			}
			defer tc.Close()

			status, err := tc.DonationStatus(c.Context, id)
			if errors.Is(err, temporal.ErrWorkflowNotFound) {
				status, err = tc.DonationStatus(c.Context, temporal.DonationWorkflowID(id))
			}
			if err != nil {
				return fmt.Errorf("failed to get donation status: %w", err)
			}
			if c.Bool("json") {
				return outputJSON(status)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer tw.Flush()
			fmt.Fprintf(tw, "Workflow:\t%s\n", status.WorkflowID)
			fmt.Fprintf(tw, "State:\t%s\n", status.State)
			if status.Error != "" {
				fmt.Fprintf(tw, "Error:\t%s\n", status.Error)
			}
			if r := status.Result; r != nil {
				fmt.Fprintf(tw, "Status:\t%s\n", r.Status)
				fmt.Fprintf(tw, "TxID:\t%s\n", r.TxID)
				fmt.Fprintf(tw, "Campaign:\t%s\n", r.CampaignID)
				if r.ConfirmedRound > 0 {
					fmt.Fprintf(tw, "Round:\t%d\n", r.ConfirmedRound)
				}
				fmt.Fprintf(tw, "Published:\t%v\n", r.Published)
			}
			return nil
		},
	}
}

// dialTemporal connects with the global --temporal-host and --temporal-namespace flags.
func dialTemporal(c *cli.Context) (client.Client, error) {
	host, namespace := c.String("temporal-host"), c.String("temporal-namespace")
	if host == "" {
		host = client.DefaultHostPort
	}
	if namespace == "" {
		namespace = client.DefaultNamespace
	}
	tc, err := client.Dial(client.Options{HostPort: host, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal at %s: %w", host, err)
	}
	return tc, nil
}
