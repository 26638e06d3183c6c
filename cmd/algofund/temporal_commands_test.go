package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"

	"github.com/brojonat/algofund/service/temporal"
)

// temporalHost returns the test Temporal address, skipping unless RUN_TEMPORAL_TESTS is set.
func temporalHost(t *testing.T) string {
	t.Helper()
	if os.Getenv("RUN_TEMPORAL_TESTS") == "" {
		t.Skip("Skipping Temporal integration test (set RUN_TEMPORAL_TESTS=1 to enable)")
	}
	if host := os.Getenv("TEST_TEMPORAL_HOST"); host != "" {
		return host
	}
	return client.DefaultHostPort
}

// hourlyExpirySchedule creates a throwaway hourly expiry schedule, deleted when the test ends.
func hourlyExpirySchedule(t *testing.T, host string) (string, client.ScheduleHandle) {
	t.Helper()
	ctx := context.Background()

	tc, err := client.Dial(client.Options{HostPort: host})
	require.NoError(t, err)
	t.Cleanup(tc.Close)

	id := "algofund-test-" + uuid.NewString()[:8]
	handle, err := tc.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:   id,
		Spec: client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: time.Hour}}},
		Action: &client.ScheduleWorkflowAction{
			ID:        id + "-run",
			Workflow:  temporal.ExpireCampaignsWorkflow,
			TaskQueue: "algofund-test",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Delete(context.Background()) })
	return id, handle
}

func TestPauseAndResumeScheduleCommands(t *testing.T) {
	host := temporalHost(t)
	id, handle := hourlyExpirySchedule(t, host)
	ctx := context.Background()

	output, err := runApp(t, "--temporal-host", host, "temporal", "pause-schedule", "--note", "Test pause", id)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ Schedule paused: "+id)

	desc, err := handle.Describe(ctx)
	require.NoError(t, err)
	assert.True(t, desc.Schedule.State.Paused)
	assert.Equal(t, "Test pause", desc.Schedule.State.Note)

	output, err = runApp(t, "--temporal-host", host, "temporal", "resume-schedule", "--note", "Test resume", id)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ Schedule resumed: "+id)

	desc, err = handle.Describe(ctx)
	require.NoError(t, err)
	assert.False(t, desc.Schedule.State.Paused)
	assert.Equal(t, "Test resume", desc.Schedule.State.Note)
}

func TestDescribeScheduleCommand(t *testing.T) {
	host := temporalHost(t)
	id, _ := hourlyExpirySchedule(t, host)

	output, err := runApp(t, "--temporal-host", host, "temporal", "desc", id)
	require.NoError(t, err)
	assert.Contains(t, output, id)
	assert.Contains(t, output, "active")
	assert.Contains(t, output, "Every 1h0m0s")
	assert.Contains(t, output, "algofund-test")
}

func TestDonationStatusCommand_NotFound(t *testing.T) {
	host := temporalHost(t)

	_, err := runApp(t, "--temporal-host", host, "temporal", "donation-status", "NO-SUCH-TXID")
	require.Error(t, err)
	assert.ErrorContains(t, err, "workflow not found")
}
