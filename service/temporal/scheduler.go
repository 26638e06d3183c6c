package temporal

import (
	"context"
	"errors"
	"time"
)

// ExpiryScheduleID is the Temporal schedule that runs ExpireCampaignsWorkflow.
const ExpiryScheduleID = "algofund-expire-campaigns"

// Workflow execution states reported by DonationStatus.
const (
	WorkflowRunning   = "running"
	WorkflowCompleted = "completed"
	WorkflowFailed    = "failed"
)

// ErrWorkflowNotFound is returned when a workflow ID is unknown.
var ErrWorkflowNotFound = errors.New("workflow not found")

// DonationStatus describes a donation confirmation workflow.
type DonationStatus struct {
	WorkflowID string                      `json:"workflow_id"`
	State      string                      `json:"state"`
	Result     *DonationConfirmationResult `json:"result,omitempty"`
	Error      string                      `json:"error,omitempty"`
}

// Scheduler starts donation workflows and manages the campaign expiry schedule.
type Scheduler interface {
	// StartDonationConfirmation starts (or joins) the workflow for a submitted
	// transaction and returns its workflow ID.
	StartDonationConfirmation(ctx context.Context, input DonationConfirmationInput) (string, error)

	// DonationStatus reports the state of a donation workflow.
	DonationStatus(ctx context.Context, workflowID string) (*DonationStatus, error)

	// UpsertExpirySchedule creates the expiry schedule or updates its interval.
	UpsertExpirySchedule(ctx context.Context, interval time.Duration) error

	// DeleteExpirySchedule removes the expiry schedule.
	DeleteExpirySchedule(ctx context.Context) error
}
