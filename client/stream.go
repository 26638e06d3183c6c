package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DonationEvent is a credited donation as streamed by the server.
type DonationEvent struct {
	CampaignID     string    `json:"campaign_id"`
	CampaignTitle  string    `json:"campaign_title"`
	Donor          string    `json:"donor"`
	Amount         uint64    `json:"amount"`
	AmountAlgo     float64   `json:"amount_algo"`
	RewardTokens   uint64    `json:"reward_tokens"`
	Source         string    `json:"source"` // pledge or onchain
	TxID           string    `json:"txid,omitempty"`
	ConfirmedRound uint64    `json:"confirmed_round,omitempty"`
	ExplorerURL    string    `json:"explorer_url,omitempty"`
	Raised         uint64    `json:"raised"`
	Goal           uint64    `json:"goal"`
	Progress       float64   `json:"progress"`
	Timestamp      time.Time `json:"timestamp"`
	PublishedAt    time.Time `json:"published_at"`
}

// errStopStream ends StreamDonations without an error.
var errStopStream = errors.New("stop stream")

// StreamDonations follows the server's donation stream and calls fn for each event.
// An empty campaignID streams every campaign. It returns when ctx is done, the
// server closes the stream, or fn returns an error.
func (c *Client) StreamDonations(ctx context.Context, campaignID string, fn func(*DonationEvent) error) error {
	path := "/api/v1/stream/donations"
	if campaignID != "" {
		path += "/" + url.PathEscape(campaignID)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Streams outlive the regular request timeout.
	streamClient := *c.httpClient
	streamClient.Timeout = 0

	resp, err := streamClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	var event string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if event != "" && event != "donation" {
				continue
			}
			var ev DonationEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				c.logger.Warn("skipping malformed donation event", "error", err)
				continue
			}
			if err := fn(&ev); err != nil {
				return err
			}
		case line == "":
			event = ""
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

// AwaitDonation blocks until a streamed donation satisfies matcher or ctx is done.
func (c *Client) AwaitDonation(ctx context.Context, campaignID string, matcher func(*DonationEvent) bool) (*DonationEvent, error) {
	var found *DonationEvent
	err := c.StreamDonations(ctx, campaignID, func(ev *DonationEvent) error {
		if matcher(ev) {
			found = ev
			return errStopStream
		}
		return nil
	})
	if found != nil {
		return found, nil
	}
	if err == nil || errors.Is(err, errStopStream) {
		return nil, errors.New("stream closed before a matching donation arrived")
	}
	return nil, err
}
