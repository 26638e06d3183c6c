package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

var _ Scheduler = (*Client)(nil)

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// StartDonationConfirmation starts the confirmation workflow for a transaction.
// Starting twice for the same transaction returns the running workflow.
func (c *Client) StartDonationConfirmation(ctx context.Context, input DonationConfirmationInput) (string, error) {
	id := DonationWorkflowID(input.TxID)

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       id,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: time.Hour,
		Memo: map[string]interface{}{
			"campaign_id": input.CampaignID,
			"donor":       input.Donor,
			"created_by":  "algofund",
		},
	}, DonationConfirmationWorkflow, input)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to start donation workflow",
			"txid", input.TxID,
			"workflow_id", id,
			"error", err,
		)
		return "", fmt.Errorf("failed to start workflow %q: %w", id, err)
	}

	c.logger.InfoContext(ctx, "donation workflow started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"campaign_id", input.CampaignID,
	)
	return run.GetID(), nil
}

// DonationStatus describes a donation workflow, including its result once it has finished.
func (c *Client) DonationStatus(ctx context.Context, workflowID string) (*DonationStatus, error) {
	desc, err := c.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
		}
		return nil, fmt.Errorf("failed to describe workflow %q: %w", workflowID, err)
	}

	status := &DonationStatus{WorkflowID: workflowID}
	switch desc.GetWorkflowExecutionInfo().GetStatus() {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING, enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		status.State = WorkflowRunning
		return status, nil
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		status.State = WorkflowCompleted
	default:
		status.State = WorkflowFailed
	}

	var result DonationConfirmationResult
	if err := c.client.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err != nil {
		status.State = WorkflowFailed
		status.Error = err.Error()
		return status, nil
	}
	status.Result = &result
	return status, nil
}

// UpsertExpirySchedule creates or updates the campaign expiry schedule.
// If the schedule already exists, it updates the interval.
func (c *Client) UpsertExpirySchedule(ctx context.Context, interval time.Duration) error {
	handle := c.client.ScheduleClient().GetHandle(ctx, ExpiryScheduleID)
	if _, err := handle.Describe(ctx); err != nil {
		c.logger.Debug("schedule not found, creating new one",
			"schedule_id", ExpiryScheduleID,
			"error", err,
		)
		return c.createExpirySchedule(ctx, interval)
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{
				{Every: interval},
			}
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
	if err != nil {
		c.logger.Error("failed to update schedule", "schedule_id", ExpiryScheduleID, "error", err)
		return fmt.Errorf("failed to update schedule %q: %w", ExpiryScheduleID, err)
	}

	c.logger.Info("expiry schedule updated", "schedule_id", ExpiryScheduleID, "interval", interval)
	return nil
}

func (c *Client) createExpirySchedule(ctx context.Context, interval time.Duration) error {
	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: ExpiryScheduleID,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{
				{Every: interval},
			},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        "expire-campaigns",
			Workflow:  ExpireCampaignsWorkflow,
			TaskQueue: c.taskQueue,
		},
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
		Memo: map[string]interface{}{
			"created_by": "algofund",
		},
	})
	if err != nil {
		c.logger.Error("failed to create schedule", "schedule_id", ExpiryScheduleID, "error", err)
		return fmt.Errorf("failed to create schedule %q: %w", ExpiryScheduleID, err)
	}

	c.logger.Info("expiry schedule created", "schedule_id", ExpiryScheduleID, "interval", interval)
	return nil
}

// DeleteExpirySchedule deletes the campaign expiry schedule.
func (c *Client) DeleteExpirySchedule(ctx context.Context) error {
	handle := c.client.ScheduleClient().GetHandle(ctx, ExpiryScheduleID)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete schedule", "schedule_id", ExpiryScheduleID, "error", err)
		return fmt.Errorf("failed to delete schedule %q: %w", ExpiryScheduleID, err)
	}

	c.logger.Info("expiry schedule deleted", "schedule_id", ExpiryScheduleID)
	return nil
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
