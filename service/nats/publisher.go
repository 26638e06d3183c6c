package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/brojonat/algofund/service/metrics"
)

// Publisher defines the interface for publishing campaign events to NATS.
type Publisher interface {
	// PublishDonation publishes a donation event to "campaigns.{campaign_id}.donations".
	PublishDonation(ctx context.Context, event *DonationEvent) error

	// PublishCampaign publishes a campaign creation event to "campaigns.{campaign_id}.created".
	PublishCampaign(ctx context.Context, event *CampaignEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes campaign events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

const (
	// StreamName is the name of the JetStream stream for campaign events.
	StreamName = "CAMPAIGNS"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "campaigns.>"

	// StreamRetention is how long messages are retained (30 days by default).
	StreamRetention = 30 * 24 * time.Hour
)

// Connect dials NATS with the reconnect settings every component uses.
func Connect(natsURL, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := Connect(natsURL, "algofund-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	if err := EnsureStream(context.Background(), js, logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// EnsureStream creates the JetStream stream if it doesn't exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stream, err := js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	logger.Info("creating JetStream stream", "stream", StreamName)

	streamConfig := jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Campaign and donation events",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	if _, err := js.CreateStream(ctx, streamConfig); err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// publish sends v to subject, labelling metrics by eventType.
func (p *JetStreamPublisher) publish(ctx context.Context, eventType, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	start := time.Now()
	_, err = p.js.Publish(ctx, subject, data)
	status := "success"
	if err != nil {
		status = "error"
	}
	if p.metrics != nil {
		p.metrics.RecordNATSPublish(eventType, status, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// PublishDonation publishes a single donation event.
func (p *JetStreamPublisher) PublishDonation(ctx context.Context, event *DonationEvent) error {
	event.PublishedAt = time.Now().UTC()
	subject := DonationSubject(event.CampaignID)
	if err := p.publish(ctx, EventDonation, subject, event); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published donation event",
		"subject", subject,
		"campaign_id", event.CampaignID,
		"donor", event.Donor,
		"txid", event.TxID,
	)
	return nil
}

// PublishCampaign publishes a campaign creation event.
func (p *JetStreamPublisher) PublishCampaign(ctx context.Context, event *CampaignEvent) error {
	event.PublishedAt = time.Now().UTC()
	subject := CampaignSubject(event.CampaignID)
	if err := p.publish(ctx, EventCampaignCreated, subject, event); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published campaign event",
		"subject", subject,
		"campaign_id", event.CampaignID,
	)
	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
