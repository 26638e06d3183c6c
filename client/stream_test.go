package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEvent(t *testing.T, w http.ResponseWriter, event string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	_, err = w.Write([]byte("event: " + event + "\ndata: " + string(data) + "\n\n"))
	require.NoError(t, err)
	w.(http.Flusher).Flush()
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func TestAwaitDonation_Matching(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stream/donations/1", r.URL.Path)
		sseHeaders(w)

		writeEvent(t, w, "connected", map[string]string{"campaign_id": "1", "subject": "campaigns.1.donations"})
		w.Write([]byte(": keepalive\n\n"))
		writeEvent(t, w, "donation", DonationEvent{CampaignID: "1", Donor: "OTHER", Amount: 1_000_000})
		writeEvent(t, w, "donation", DonationEvent{CampaignID: "1", Donor: "ME", Amount: 2_000_000, TxID: "TXID", Source: "onchain"})
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev, err := client.AwaitDonation(ctx, "1", func(ev *DonationEvent) bool {
		return ev.Donor == "ME"
	})
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "TXID", ev.TxID)
	assert.Equal(t, uint64(2_000_000), ev.Amount)
}

func TestAwaitDonation_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseHeaders(w)
		writeEvent(t, w, "donation", DonationEvent{CampaignID: "2", Donor: "OTHER"})
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	ev, err := client.AwaitDonation(ctx, "", func(ev *DonationEvent) bool { return false })
	require.Error(t, err)
	assert.Nil(t, ev)
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestStreamDonations_ServerClosesStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stream/donations", r.URL.Path)
		sseHeaders(w)
		writeEvent(t, w, "donation", DonationEvent{CampaignID: "1", Amount: 1})
		w.Write([]byte("data: not-json\n\n"))
		writeEvent(t, w, "donation", DonationEvent{CampaignID: "3", Amount: 2})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	var got []string
	err := client.StreamDonations(context.Background(), "", func(ev *DonationEvent) error {
		got = append(got, ev.CampaignID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, got)

	_, err = client.AwaitDonation(context.Background(), "", func(ev *DonationEvent) bool { return false })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream closed")
}

func TestStreamDonations_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	err := client.StreamDonations(context.Background(), "1", func(*DonationEvent) error { return nil })
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
