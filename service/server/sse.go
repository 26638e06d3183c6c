package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/brojonat/algofund/service/metrics"
	natspkg "github.com/brojonat/algofund/service/nats"
)

const sseKeepalive = 10 * time.Second

// EventStream reads donation events from JetStream for Server-Sent Events clients.
type EventStream struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewEventStream connects to NATS. Each SSE client later gets its own ephemeral consumer.
func NewEventStream(natsURL string, logger *slog.Logger) (*EventStream, error) {
	nc, err := natspkg.Connect(natsURL, "algofund-sse")
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return &EventStream{nc: nc, js: js, logger: logger}, nil
}

// Close drops the NATS connection, which ends every open stream.
func (s *EventStream) Close() error {
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}

// streamSubject returns the subject to follow and the metrics label for it.
func streamSubject(campaignID string) (subject, label string) {
	if campaignID == "" {
		return natspkg.AllDonationsSubject, "all"
	}
	return natspkg.DonationSubject(campaignID), "campaign"
}

// writeSSE writes one event frame. An empty event name writes a comment line.
func writeSSE(w io.Writer, event string, data []byte) {
	if event == "" {
		fmt.Fprintf(w, ": %s\n\n", data)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// handleStreamDonations streams confirmed donations for one campaign, or all of them
// when the route has no campaign_id. Only events published after the client connects are sent.
func handleStreamDonations(stream *EventStream, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		campaignID := r.PathValue("campaign_id")
		subject, label := streamSubject(campaignID)

		flusher, _ := w.(http.Flusher)
		send := func(event string, data []byte) {
			writeSSE(w, event, data)
			if flusher != nil {
				flusher.Flush()
			}
		}

		cons, err := stream.js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, jetstream.ConsumerConfig{
			FilterSubject:     subject,
			AckPolicy:         jetstream.AckNonePolicy,
			DeliverPolicy:     jetstream.DeliverNewPolicy,
			InactiveThreshold: time.Minute,
		})
		if err != nil {
			logger.ErrorContext(ctx, "failed to create consumer", "subject", subject, "error", err)
			writeError(w, "failed to subscribe to donation events", http.StatusServiceUnavailable)
			return
		}

		events := make(chan []byte, 16)
		consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
			select {
			case events <- msg.Data():
			case <-ctx.Done():
			}
		})
		if err != nil {
			logger.ErrorContext(ctx, "failed to consume donation events", "subject", subject, "error", err)
			writeError(w, "failed to subscribe to donation events", http.StatusServiceUnavailable)
			return
		}
		defer consumeCtx.Stop()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		if m != nil {
			m.RecordSSEConnectionChange(label, 1)
			defer m.RecordSSEConnectionChange(label, -1)
		}
		logger.DebugContext(ctx, "SSE client connected", "subject", subject, "remote_addr", r.RemoteAddr)

		hello, _ := json.Marshal(map[string]string{"campaign_id": campaignID, "subject": subject})
		send("connected", hello)

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.DebugContext(ctx, "SSE client disconnected", "subject", subject, "remote_addr", r.RemoteAddr)
				return
			case <-consumeCtx.Closed():
				return
			case <-keepalive.C:
				send("", []byte("keepalive"))
			case data := <-events:
				var event natspkg.DonationEvent
				if err := json.Unmarshal(data, &event); err != nil {
					logger.WarnContext(ctx, "skipping malformed donation event", "error", err)
					continue
				}
				send("donation", data)
				if m != nil {
					m.RecordSSEEventSent(label, "donation")
				}
			}
		}
	})
}
