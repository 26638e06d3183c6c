package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brojonat/algofund/service/ledger"
	"github.com/brojonat/algofund/service/metrics"
	natspkg "github.com/brojonat/algofund/service/nats"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB, image URLs may be data URIs
	defaultListLimit   = 100
	maxListLimit       = 1000
)

// handleListCampaigns returns a handler that lists all campaigns, newest first.
// GET /api/v1/campaigns
func handleListCampaigns(store ledger.Repository, now func() time.Time, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		campaigns, err := store.ListCampaigns(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list campaigns", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		t := now()
		resp := make([]campaignResponse, len(campaigns))
		for i, c := range campaigns {
			resp[i] = campaignToResponse(c, t)
		}

		logger.DebugContext(r.Context(), "campaigns listed", "count", len(resp))
		writeJSON(w, map[string]interface{}{
			"campaigns": resp,
			"count":     len(resp),
		}, http.StatusOK)
	})
}

type createCampaignRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Goal        uint64  `json:"goal"`      // microALGO
	GoalAlgo    float64 `json:"goal_algo"` // used when goal is zero
	Deadline    string  `json:"deadline"`  // RFC3339 or YYYY-MM-DD
	Creator     string  `json:"creator"`
	Receiver    string  `json:"receiver"`
	ImageURL    string  `json:"image_url"`
}

// handleCreateCampaign returns a handler that creates a campaign.
// POST /api/v1/campaigns
func handleCreateCampaign(store ledger.Repository, publisher natspkg.Publisher, m *metrics.Metrics, now func() time.Time, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createCampaignRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		deadline, err := parseDeadline(req.Deadline)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		goal := ledger.MicroAlgos(req.Goal)
		if goal == 0 {
			goal = ledger.FromAlgos(req.GoalAlgo)
		}

		t := now().UTC()
		c := &ledger.Campaign{
			ID:          uuid.NewString(),
			Title:       strings.TrimSpace(req.Title),
			Description: strings.TrimSpace(req.Description),
			Goal:        goal,
			Deadline:    deadline,
			Creator:     strings.TrimSpace(req.Creator),
			Receiver:    strings.TrimSpace(req.Receiver),
			ImageURL:    strings.TrimSpace(req.ImageURL),
			IsActive:    true,
			CreatedAt:   t,
		}

		if err := ledger.ValidateNewCampaign(c, t); err != nil {
			logger.DebugContext(r.Context(), "invalid campaign", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := store.AddCampaign(r.Context(), c); err != nil {
			writeLedgerError(w, r, logger, "failed to create campaign", err)
			return
		}

		if m != nil {
			m.RecordCampaignCreated()
		}
		if publisher != nil {
			if err := publisher.PublishCampaign(r.Context(), natspkg.FromCampaign(c)); err != nil {
				logger.WarnContext(r.Context(), "failed to publish campaign event", "campaign_id", c.ID, "error", err)
			}
		}

		logger.InfoContext(r.Context(), "campaign created",
			"campaign_id", c.ID,
			"creator", c.Creator,
			"goal", c.Goal.String(),
			"deadline", c.Deadline,
		)
		writeJSON(w, campaignToResponse(c, t), http.StatusCreated)
	})
}

// handleGetCampaign returns a handler that retrieves one campaign.
// GET /api/v1/campaigns/{id}
func handleGetCampaign(store ledger.Repository, now func() time.Time, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetCampaign(r.Context(), r.PathValue("id"))
		if err != nil {
			writeLedgerError(w, r, logger, "failed to get campaign", err)
			return
		}
		writeJSON(w, campaignToResponse(c, now()), http.StatusOK)
	})
}

// handleCampaignLeaderboard returns a handler that lists a campaign's top donors.
// GET /api/v1/campaigns/{id}/leaderboard
func handleCampaignLeaderboard(store ledger.Repository, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetCampaign(r.Context(), r.PathValue("id"))
		if err != nil {
			writeLedgerError(w, r, logger, "failed to get campaign", err)
			return
		}

		top := ledger.TopDonors(c.Donors, ledger.DefaultTopDonors)
		writeJSON(w, map[string]interface{}{
			"campaign_id": c.ID,
			"donors":      donorsToResponse(top),
		}, http.StatusOK)
	})
}

type amountFields struct {
	Amount     uint64  `json:"amount"`      // microALGO
	AmountAlgo float64 `json:"amount_algo"` // used when amount is zero
}

func (a amountFields) microAlgos() ledger.MicroAlgos {
	if a.Amount > 0 {
		return ledger.MicroAlgos(a.Amount)
	}
	return ledger.FromAlgos(a.AmountAlgo)
}

type pledgeRequest struct {
	Donor string `json:"donor"`
	amountFields
}

// handlePledge returns a handler that records an off-chain donation in the ledger.
// POST /api/v1/campaigns/{id}/donations
func handlePledge(store ledger.Repository, recorder *donationRecorder, now func() time.Time, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req pledgeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		donor := strings.TrimSpace(req.Donor)
		if !ledger.ValidAddress(donor) {
			writeError(w, "invalid donor address", http.StatusBadRequest)
			return
		}

		c, err := store.GetCampaign(r.Context(), r.PathValue("id"))
		if err != nil {
			writeLedgerError(w, r, logger, "failed to get campaign", err)
			return
		}
		amount := req.microAlgos()
		if err := ledger.ValidateDonation(c, amount); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		updated, err := recorder.pledge(r.Context(), c.ID, donor, amount)
		if err != nil {
			writeLedgerError(w, r, logger, "failed to record donation", err)
			return
		}

		writeJSON(w, map[string]interface{}{
			"status":        "recorded",
			"reward_tokens": ledger.RewardTokens(amount),
			"campaign":      campaignToResponse(updated, now()),
		}, http.StatusOK)
	})
}

// handleLeaderboard returns a handler that lists every donor row across campaigns, largest first.
// GET /api/v1/leaderboard
func handleLeaderboard(store ledger.Repository, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		campaigns, err := store.ListCampaigns(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list campaigns", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		entries := ledger.AllDonations(campaigns)
		resp := make([]donationEntryResponse, len(entries))
		for i, e := range entries {
			resp[i] = entryToResponse(e)
		}
		writeJSON(w, map[string]interface{}{
			"entries": resp,
			"count":   len(resp),
		}, http.StatusOK)
	})
}

// campaignResponse is the JSON response format for a campaign.
type campaignResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Goal        uint64          `json:"goal"`
	GoalAlgo    float64         `json:"goal_algo"`
	Raised      uint64          `json:"raised"`
	RaisedAlgo  float64         `json:"raised_algo"`
	Progress    float64         `json:"progress"`
	Remaining   uint64          `json:"remaining"`
	Deadline    time.Time       `json:"deadline"`
	Creator     string          `json:"creator"`
	Receiver    string          `json:"receiver,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	IsActive    bool            `json:"is_active"`
	Ended       bool            `json:"ended"`
	AppID       uint64          `json:"app_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	DonorCount  int             `json:"donor_count"`
	TopDonors   []donorResponse `json:"top_donors"`
}

type donorResponse struct {
	Address    string  `json:"address"`
	Amount     uint64  `json:"amount"`
	AmountAlgo float64 `json:"amount_algo"`
}

type donationEntryResponse struct {
	CampaignID    string  `json:"campaign_id"`
	CampaignTitle string  `json:"campaign_title"`
	Address       string  `json:"address"`
	Amount        uint64  `json:"amount"`
	AmountAlgo    float64 `json:"amount_algo"`
}

func campaignToResponse(c *ledger.Campaign, now time.Time) campaignResponse {
	return campaignResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Goal:        uint64(c.Goal),
		GoalAlgo:    c.Goal.ToAlgos(),
		Raised:      uint64(c.Raised),
		RaisedAlgo:  c.Raised.ToAlgos(),
		Progress:    ledger.Progress(c),
		Remaining:   uint64(ledger.Remaining(c)),
		Deadline:    c.Deadline,
		Creator:     c.Creator,
		Receiver:    c.Receiver,
		ImageURL:    c.ImageURL,
		IsActive:    c.IsActive,
		Ended:       ledger.Ended(c, now),
		AppID:       c.AppID,
		CreatedAt:   c.CreatedAt,
		DonorCount:  len(c.Donors),
		TopDonors:   donorsToResponse(ledger.TopDonors(c.Donors, ledger.DefaultTopDonors)),
	}
}

func donorsToResponse(donors []ledger.Donor) []donorResponse {
	resp := make([]donorResponse, len(donors))
	for i, d := range donors {
		resp[i] = donorResponse{Address: d.Address, Amount: uint64(d.Amount), AmountAlgo: d.Amount.ToAlgos()}
	}
	return resp
}

func entryToResponse(e ledger.DonationEntry) donationEntryResponse {
	return donationEntryResponse{
		CampaignID:    e.CampaignID,
		CampaignTitle: e.CampaignTitle,
		Address:       e.Address,
		Amount:        uint64(e.Amount),
		AmountAlgo:    e.Amount.ToAlgos(),
	}
}

// parseDeadline accepts RFC3339 or a bare date. A bare date means the end of that day in UTC.
func parseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("deadline is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid deadline: use RFC3339 or YYYY-MM-DD")
	}
	return d.Add(24*time.Hour - time.Second), nil
}

// decodeJSON decodes a size-limited request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// parsePaging reads limit (default 100, max 1000) and offset (default 0) query parameters.
func parsePaging(r *http.Request) (limit, offset int, err error) {
	query := r.URL.Query()

	limit = defaultListLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		if _, err := fmt.Sscanf(limitStr, "%d", &limit); err != nil {
			return 0, 0, fmt.Errorf("invalid limit parameter: must be an integer")
		}
		if limit < 1 {
			return 0, 0, fmt.Errorf("limit must be at least 1")
		}
		if limit > maxListLimit {
			return 0, 0, fmt.Errorf("limit cannot exceed %d", maxListLimit)
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if _, err := fmt.Sscanf(offsetStr, "%d", &offset); err != nil {
			return 0, 0, fmt.Errorf("invalid offset parameter: must be an integer")
		}
		if offset < 0 {
			return 0, 0, fmt.Errorf("offset cannot be negative")
		}
	}
	return limit, offset, nil
}

// writeLedgerError maps ledger errors to status codes. Unexpected errors are logged and hidden.
func writeLedgerError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrCampaignNotFound):
		writeError(w, "campaign not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrDuplicateCampaign):
		writeError(w, "campaign already exists", http.StatusConflict)
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		writeError(w, "transaction already recorded", http.StatusConflict)
	default:
		logger.ErrorContext(r.Context(), msg, "error", err)
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
