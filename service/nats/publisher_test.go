package nats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/algofund/service/metrics"
)

// recordingJetStream captures published subjects. Only Publish is implemented.
type recordingJetStream struct {
	jetstream.JetStream
	subjects []string
	err      error
}

func (r *recordingJetStream) Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	r.subjects = append(r.subjects, subject)
	if r.err != nil {
		return nil, r.err
	}
	return &jetstream.PubAck{Stream: StreamName}, nil
}

func TestPublisherMetricsLabelByEventType(t *testing.T) {
	reg := prometheus.NewRegistry()
	js := &recordingJetStream{}
	p := &JetStreamPublisher{
		js:      js,
		metrics: metrics.NewMetrics(reg),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, p.PublishDonation(ctx, &DonationEvent{CampaignID: id, Donor: "ALICE", Amount: 1_000_000}))
	}
	require.NoError(t, p.PublishCampaign(ctx, &CampaignEvent{CampaignID: "4"}))

	js.err = errors.New("nats: timeout")
	err := p.PublishDonation(ctx, &DonationEvent{CampaignID: "5"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "campaigns.5.donations")

	assert.Equal(t, []string{
		"campaigns.1.donations", "campaigns.2.donations", "campaigns.3.donations",
		"campaigns.4.created", "campaigns.5.donations",
	}, js.subjects)

	// One series per event type and status, however many campaigns publish.
	n, err := testutil.GatherAndCount(reg, "nats_messages_published_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = testutil.GatherAndCount(reg, "nats_publish_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
