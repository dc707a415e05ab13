package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
	"github.com/ternarybob/capto/internal/interfaces"
	"github.com/ternarybob/capto/internal/models"
)

// Enqueuer schedules campaign batch messages
type Enqueuer interface {
	Enqueue(ctx context.Context, msg models.QueueMessage) error
}

// CampaignHandler serves campaign CRUD plus the start/stop lifecycle
type CampaignHandler struct {
	storage  interfaces.StorageManager
	quota    interfaces.QuotaService
	queue    Enqueuer
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewCampaignHandler creates a campaign handler
func NewCampaignHandler(storage interfaces.StorageManager, quota interfaces.QuotaService, queue Enqueuer, logger arbor.ILogger) *CampaignHandler {
	return &CampaignHandler{
		storage:  storage,
		quota:    quota,
		queue:    queue,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateCampaignRequest is the create/update request body
type CreateCampaignRequest struct {
	AccountID   string   `json:"account_id" validate:"required"`
	Name        string   `json:"name" validate:"required,min=2,max=120"`
	Description string   `json:"description"`
	Source      string   `json:"source" validate:"required,oneof=google google_maps instagram all"`
	Niche       string   `json:"niche"`
	Location    string   `json:"location"`
	SearchQuery string   `json:"search_query"`
	Hashtags    []string `json:"hashtags"`
	Keywords    []string `json:"keywords"`
}

// CreateHandler handles POST /api/campaigns
func (h *CampaignHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.storage.AccountStorage().GetAccount(r.Context(), req.AccountID); err != nil {
		WriteError(w, http.StatusNotFound, "account not found")
		return
	}

	now := time.Now()
	campaign := &models.Campaign{
		ID:          common.NewCampaignID(),
		AccountID:   req.AccountID,
		Name:        req.Name,
		Description: req.Description,
		Status:      models.CampaignStatusDraft,
		Source:      models.LeadSource(req.Source),
		Niche:       req.Niche,
		Location:    req.Location,
		SearchQuery: req.SearchQuery,
		Hashtags:    req.Hashtags,
		Keywords:    req.Keywords,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.storage.CampaignStorage().SaveCampaign(r.Context(), campaign); err != nil {
		h.logger.Error().Err(err).Msg("Failed to save campaign")
		WriteError(w, http.StatusInternalServerError, "failed to save campaign")
		return
	}

	h.logger.Info().
		Str("campaign_id", campaign.ID).
		Str("account_id", campaign.AccountID).
		Str("source", string(campaign.Source)).
		Msg("Campaign created")
	WriteJSON(w, http.StatusCreated, campaign)
}

// ListHandler handles GET /api/campaigns?account_id={id}
func (h *CampaignHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	campaigns, err := h.storage.CampaignStorage().ListCampaigns(r.Context(), accountID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"campaigns": campaigns})
}

// GetHandler handles GET /api/campaigns/{id}
func (h *CampaignHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, campaign)
}

// UpdateHandler handles PUT /api/campaigns/{id}
func (h *CampaignHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}

	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Account binding is immutable; ignore any account_id in the body.
	req.AccountID = campaign.AccountID
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	campaign.Name = req.Name
	campaign.Description = req.Description
	campaign.Source = models.LeadSource(req.Source)
	campaign.Niche = req.Niche
	campaign.Location = req.Location
	campaign.SearchQuery = req.SearchQuery
	campaign.Hashtags = req.Hashtags
	campaign.Keywords = req.Keywords
	campaign.UpdatedAt = time.Now()

	if err := h.storage.CampaignStorage().SaveCampaign(r.Context(), campaign); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to update campaign")
		return
	}
	WriteJSON(w, http.StatusOK, campaign)
}

// StartHandler handles POST /api/campaigns/{id}/start. Activation
// enqueues the first batch immediately; later batches schedule
// themselves.
func (h *CampaignHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}

	if campaign.IsActive() {
		WriteError(w, http.StatusConflict, "campaign is already active")
		return
	}

	status, err := h.quota.Status(r.Context(), campaign.AccountID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to check quota")
		return
	}
	if !status.Unlimited && status.Remaining <= 0 {
		WriteError(w, http.StatusForbidden, "monthly lead limit reached")
		return
	}

	if err := h.storage.CampaignStorage().UpdateCampaignStatus(r.Context(), campaign.ID, models.CampaignStatusActive); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to activate campaign")
		return
	}

	msg, err := models.NewCampaignMessage(common.NewJobID(), campaign.ID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to schedule campaign")
		return
	}
	if err := h.queue.Enqueue(r.Context(), msg); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to schedule campaign")
		return
	}

	h.logger.Info().
		Str("campaign_id", campaign.ID).
		Msg("Campaign started")
	WriteSuccess(w, "campaign started")
}

// StopHandler handles POST /api/campaigns/{id}/stop. The running batch
// notices the pause at its next checkpoint; no new batches schedule.
func (h *CampaignHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}

	if !campaign.IsActive() {
		WriteError(w, http.StatusConflict, "campaign is not active")
		return
	}

	if err := h.storage.CampaignStorage().UpdateCampaignStatus(r.Context(), campaign.ID, models.CampaignStatusPaused); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to pause campaign")
		return
	}

	h.logger.Info().
		Str("campaign_id", campaign.ID).
		Msg("Campaign stopped")
	WriteSuccess(w, "campaign stopped")
}

// LeadsHandler handles GET /api/campaigns/{id}/leads
func (h *CampaignHandler) LeadsHandler(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}

	limit, offset := GetPaginationParams(r)
	leads, err := h.storage.LeadStorage().ListLeads(r.Context(), campaign.ID, limit, offset)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	if leads == nil {
		leads = []*models.Lead{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": campaign.ID,
		"leads":       leads,
		"limit":       limit,
		"offset":      offset,
	})
}

// JobsHandler handles GET /api/campaigns/{id}/jobs
func (h *CampaignHandler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}

	limit, _ := GetPaginationParams(r)
	jobs, err := h.storage.JobStorage().ListJobs(r.Context(), campaign.ID, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

func (h *CampaignHandler) loadCampaign(w http.ResponseWriter, r *http.Request) (*models.Campaign, bool) {
	campaignID := r.PathValue("id")
	if campaignID == "" {
		WriteError(w, http.StatusBadRequest, "campaign ID is required")
		return nil, false
	}

	campaign, err := h.storage.CampaignStorage().GetCampaign(r.Context(), campaignID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "campaign not found")
		return nil, false
	}
	return campaign, true
}
