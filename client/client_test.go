package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", nil, nil)
	assert.NoError(t, client.Health(context.Background()))
}

func TestListCampaigns_Success(t *testing.T) {
	deadline := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/campaigns", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"campaigns": []map[string]interface{}{
				{"id": "1", "title": "Community Garden", "goal": 50_000_000_000, "raised": 32_500_000_000, "progress": 65.0, "deadline": deadline},
				{"id": "2", "title": "Open Source Library", "goal": 75_000_000_000, "raised": 18_750_000_000, "progress": 25.0, "deadline": deadline},
			},
			"count": 2,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	campaigns, err := client.ListCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 2)

	assert.Equal(t, "1", campaigns[0].ID)
	assert.Equal(t, uint64(32_500_000_000), campaigns[0].Raised)
	assert.Equal(t, 65.0, campaigns[0].Progress)
	assert.True(t, deadline.Equal(campaigns[1].Deadline))
}

func TestGetCampaign_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/campaigns/missing", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "campaign not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	campaign, err := client.GetCampaign(context.Background(), "missing")
	require.Error(t, err)
	assert.Nil(t, campaign)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "campaign not found")
}

func TestCreateCampaign_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/campaigns", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Library Books", body["title"])
		assert.Equal(t, 1000.0, body["goal_algo"])
		assert.Equal(t, "2025-01-31", body["deadline"])
		assert.NotContains(t, body, "goal")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "abc-123", "title": "Library Books", "goal": 1_000_000_000, "is_active": true})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	campaign, err := client.CreateCampaign(context.Background(), NewCampaign{
		Title:    "Library Books",
		GoalAlgo: 1000,
		Deadline: "2025-01-31",
		Creator:  "CREATOR",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc-123", campaign.ID)
	assert.True(t, campaign.IsActive)
}

func TestCreateCampaign_ValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "title is required"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.CreateCampaign(context.Background(), NewCampaign{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title is required")
}

func TestPledge_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/campaigns/1/donations", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "DONOR", body["donor"])
		assert.Equal(t, 10_000_000.0, body["amount"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":        "recorded",
			"reward_tokens": 10,
			"campaign":      map[string]interface{}{"id": "1", "raised": 32_510_000_000},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	result, err := client.Pledge(context.Background(), "1", "DONOR", 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, "recorded", result.Status)
	assert.Equal(t, uint64(10), result.RewardTokens)
	assert.Equal(t, uint64(32_510_000_000), result.Campaign.Raised)
}

func TestLeaderboards(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/campaigns/2/leaderboard":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"campaign_id": "2",
				"donors":      []map[string]interface{}{{"address": "A", "amount": 5_000_000, "amount_algo": 5.0}},
			})
		case "/api/v1/leaderboard":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"entries": []map[string]interface{}{
					{"campaign_id": "1", "campaign_title": "Garden", "address": "A", "amount": 9_000_000},
					{"campaign_id": "2", "campaign_title": "Library", "address": "B", "amount": 1_000_000},
				},
				"count": 2,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)

	donors, err := client.CampaignLeaderboard(context.Background(), "2")
	require.NoError(t, err)
	require.Len(t, donors, 1)
	assert.Equal(t, "A", donors[0].Address)
	assert.Equal(t, 5.0, donors[0].AmountAlgo)

	entries, err := client.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Garden", entries[0].CampaignTitle)
}

func TestFund_ManualSignRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/campaigns/1/fund", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  StatusManualSignRequired,
			"message": "Sign the transaction in your wallet, then submit it.",
			"manual_sign": map[string]interface{}{
				"kind":         "fund",
				"txid":         "TXID",
				"sender":       "DONOR",
				"receiver":     "ESCROW",
				"amount":       2_000_000,
				"note":         "Fund campaign: 1",
				"unsigned_txn": "gqN0eG4=",
				"payment_uri":  "algorand://ESCROW?amount=2000000",
				"filename":     "fund-TXID.txn",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	result, err := client.Fund(context.Background(), "1", "DONOR", 2_000_000)
	require.NoError(t, err)
	assert.Equal(t, StatusManualSignRequired, result.Status)
	require.NotNil(t, result.ManualSign)
	assert.Equal(t, "ESCROW", result.ManualSign.Receiver)
	assert.Equal(t, uint64(2_000_000), result.ManualSign.Amount)
	assert.Equal(t, "Fund campaign: 1", result.ManualSign.Note)
}

func TestFundSigned_Confirmed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/campaigns/3/fund/signed", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "c2lnbmVk", body["signed_txn"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":          StatusConfirmed,
			"txid":            "TXID",
			"amount":          1_000_000,
			"confirmed_round": 42,
			"reward_tokens":   1,
			"explorer_url":    "https://testnet.explorer.perawallet.app/tx/TXID",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	result, err := client.FundSigned(context.Background(), "3", "c2lnbmVk")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, result.Status)
	assert.Equal(t, uint64(42), result.ConfirmedRound)
	assert.Nil(t, result.ManualSign)
}

func TestWaitForDonation(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/donation-status/donation-TXID", r.URL.Path)
		calls++

		w.Header().Set("Content-Type", "application/json")
		if calls < 3 {
			json.NewEncoder(w).Encode(map[string]interface{}{"workflow_id": "donation-TXID", "state": "running"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"workflow_id": "donation-TXID",
			"state":       "completed",
			"result":      map[string]interface{}{"txid": "TXID", "status": "confirmed", "confirmed_round": 7, "published": true},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	status, err := client.WaitForDonation(context.Background(), "donation-TXID", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "completed", status.State)
	require.NotNil(t, status.Result)
	assert.Equal(t, uint64(7), status.Result.ConfirmedRound)
}

func TestProfileAndBounties(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method + " " + r.URL.Path {
		case "GET /api/v1/profiles/ADDR":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"address":       "ADDR",
				"token_balance": 60,
				"badges":        []string{"Top Backer", "Active Donor"},
				"algo_balance":  1_000_000,
			})
		case "GET /api/v1/bounties":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"bounties": []map[string]interface{}{{"id": "b1", "title": "Translate Docs", "reward_tokens": 50}},
			})
		case "POST /api/v1/bounties/b1/claim":
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "claimed", "bounty_id": "b1", "token_balance": 110})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ctx := context.Background()

	profile, err := client.Profile(ctx, "ADDR")
	require.NoError(t, err)
	assert.Equal(t, uint64(60), profile.TokenBalance)
	assert.Equal(t, []string{"Top Backer", "Active Donor"}, profile.Badges)
	require.NotNil(t, profile.AlgoBalance)
	assert.Equal(t, uint64(1_000_000), *profile.AlgoBalance)

	bounties, err := client.ListBounties(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Bounty{{ID: "b1", Title: "Translate Docs", RewardTokens: 50}}, bounties)

	claim, err := client.ClaimBounty(ctx, "b1", "ADDR")
	require.NoError(t, err)
	assert.Equal(t, "claimed", claim.Status)
	assert.Equal(t, uint64(110), claim.TokenBalance)
}

func TestListTransactions_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transactions", r.URL.Path)
		assert.Equal(t, "ADDR", r.URL.Query().Get("address"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("offset"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"transactions": []map[string]interface{}{{"txid": "T1", "kind": "fund", "sender": "ADDR", "amount": 5}},
			"count":        1,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	txns, err := client.ListTransactions(context.Background(), ListTransactionsParams{Address: "ADDR", Limit: 10})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "fund", txns[0].Kind)
}

func TestErrorResponse_NotJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down\n"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Receiver(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502: upstream down")
}

func TestWallets(t *testing.T) {
	connected := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/wallets/ADDR", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == "DELETE" && !connected:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "wallet not connected"})
			return
		case r.Method == "DELETE":
			connected = false
		}
		signing := "manual"
		if connected {
			signing = "in_app"
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"address": "ADDR", "connected": connected, "signing": signing})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ctx := context.Background()

	wallet, err := client.WalletStatus(ctx, "ADDR")
	require.NoError(t, err)
	assert.True(t, wallet.Connected)
	assert.Equal(t, "in_app", wallet.Signing)

	wallet, err = client.DisconnectWallet(ctx, "ADDR")
	require.NoError(t, err)
	assert.False(t, wallet.Connected)
	assert.Equal(t, "manual", wallet.Signing)

	_, err = client.DisconnectWallet(ctx, "ADDR")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
