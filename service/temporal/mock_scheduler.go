package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockScheduler is a mock implementation of Scheduler for testing.
type MockScheduler struct {
	mu             sync.Mutex
	started        map[string]DonationConfirmationInput // map[workflowID]input
	statuses       map[string]*DonationStatus
	expiryInterval time.Duration
	hasSchedule    bool
	startErr       error
	scheduleErr    error
}

var _ Scheduler = (*MockScheduler)(nil)

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{
		started:  make(map[string]DonationConfirmationInput),
		statuses: make(map[string]*DonationStatus),
	}
}

// StartDonationConfirmation records the workflow as running.
func (m *MockScheduler) StartDonationConfirmation(ctx context.Context, input DonationConfirmationInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return "", m.startErr
	}

	id := DonationWorkflowID(input.TxID)
	m.started[id] = input
	if _, ok := m.statuses[id]; !ok {
		m.statuses[id] = &DonationStatus{WorkflowID: id, State: WorkflowRunning}
	}
	return id, nil
}

// DonationStatus returns the recorded status for a workflow.
func (m *MockScheduler) DonationStatus(ctx context.Context, workflowID string) (*DonationStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statuses[workflowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}
	cp := *status
	return &cp, nil
}

// UpsertExpirySchedule records the schedule interval.
func (m *MockScheduler) UpsertExpirySchedule(ctx context.Context, interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scheduleErr != nil {
		return m.scheduleErr
	}
	m.expiryInterval = interval
	m.hasSchedule = true
	return nil
}

// DeleteExpirySchedule removes the recorded schedule.
func (m *MockScheduler) DeleteExpirySchedule(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scheduleErr != nil {
		return m.scheduleErr
	}
	if !m.hasSchedule {
		return fmt.Errorf("schedule %q not found", ExpiryScheduleID)
	}
	m.hasSchedule = false
	m.expiryInterval = 0
	return nil
}

// SetStatus sets the status returned for a workflow.
func (m *MockScheduler) SetStatus(status *DonationStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[status.WorkflowID] = status
}

// SetStartError makes StartDonationConfirmation return an error.
func (m *MockScheduler) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// SetScheduleError makes the schedule methods return an error.
func (m *MockScheduler) SetScheduleError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduleErr = err
}

// Started returns the input a workflow was started with.
func (m *MockScheduler) Started(workflowID string) (DonationConfirmationInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	input, ok := m.started[workflowID]
	return input, ok
}

// StartedCount returns the number of distinct workflows started.
func (m *MockScheduler) StartedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.started)
}

// ExpirySchedule returns the schedule interval and whether it exists.
func (m *MockScheduler) ExpirySchedule() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiryInterval, m.hasSchedule
}

// Reset clears all state and errors.
func (m *MockScheduler) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = make(map[string]DonationConfirmationInput)
	m.statuses = make(map[string]*DonationStatus)
	m.expiryInterval = 0
	m.hasSchedule = false
	m.startErr = nil
	m.scheduleErr = nil
}
