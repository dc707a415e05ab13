package sink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
	"github.com/ternarybob/capto/internal/interfaces"
	"github.com/ternarybob/capto/internal/models"
)

// lowQuotaWarning triggers a warning log when headroom drops this low
const lowQuotaWarning = 10

// LeadSink admits scraped items into storage. Every admission runs the
// same sequence under the account lock: quota check, dedup check,
// persist, consume. Scrapers stream items in; the sink decides what
// sticks and reports progress through the event bus.
type LeadSink struct {
	storage interfaces.StorageManager
	quota   interfaces.QuotaService
	events  interfaces.EventService
	logger  arbor.ILogger
}

// NewLeadSink creates a lead sink
func NewLeadSink(storage interfaces.StorageManager, quota interfaces.QuotaService, events interfaces.EventService, logger arbor.ILogger) *LeadSink {
	return &LeadSink{
		storage: storage,
		quota:   quota,
		events:  events,
		logger:  logger,
	}
}

// RunStats summarizes one batch run through the sink
type RunStats struct {
	Found        int
	Saved        int
	Duplicates   int
	LimitReached bool
}

// ProgressPayload is pushed per admitted or inspected item
type ProgressPayload struct {
	Found   int    `json:"found"`
	Saved   int    `json:"saved"`
	Current string `json:"current"`
}

// LeadFoundPayload carries the admitted lead summary
type LeadFoundPayload struct {
	Lead LeadSummary `json:"lead"`
}

// LeadSummary is the wire shape of a freshly admitted lead
type LeadSummary struct {
	Name     string  `json:"name"`
	Phone    string  `json:"phone,omitempty"`
	Website  string  `json:"website,omitempty"`
	Email    string  `json:"email,omitempty"`
	Category string  `json:"category,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
}

// CompletedPayload closes out a batch run
type CompletedPayload struct {
	TotalFound      int     `json:"total_found"`
	TotalSaved      int     `json:"total_saved"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ErrorPayload reports a failed batch run
type ErrorPayload struct {
	Error string `json:"error"`
}

// LimitReachedPayload tells clients the account has no headroom left
type LimitReachedPayload struct {
	Message   string `json:"message"`
	Remaining int    `json:"remaining"`
}

// CampaignsPausedPayload tells account subscribers their campaigns stopped
type CampaignsPausedPayload struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Run binds the sink to a single campaign batch. Not safe for use from
// multiple goroutines; one scraper drives one run.
type Run struct {
	sink       *LeadSink
	ctx        context.Context
	campaign   *models.Campaign
	batchLimit int
	stats      RunStats
	startedAt  time.Time
}

// NewRun starts an admission run for one campaign batch
func (s *LeadSink) NewRun(ctx context.Context, campaign *models.Campaign, batchLimit int) *Run {
	return &Run{
		sink:       s,
		ctx:        ctx,
		campaign:   campaign,
		batchLimit: batchLimit,
		startedAt:  time.Now(),
	}
}

// Stats returns a snapshot of the run so far
func (r *Run) Stats() RunStats {
	return r.stats
}

// OnItem admits one scraped item. Returns true when the scraper should
// stop: batch filled, quota exhausted, or run cancelled.
func (r *Run) OnItem(item *models.ScrapedItem) bool {
	if r.ctx.Err() != nil {
		return true
	}

	r.stats.Found++
	if r.stats.LimitReached {
		return true
	}

	normalized := models.NormalizeLeadName(item.Name)
	if normalized == "" {
		return false
	}

	stop := false
	err := r.sink.quota.WithAccountLock(r.campaign.AccountID, func() error {
		status, err := r.sink.quota.Status(r.ctx, r.campaign.AccountID)
		if err != nil {
			return fmt.Errorf("quota status: %w", err)
		}

		if !status.Unlimited && status.Remaining <= 0 {
			r.stats.LimitReached = true
			stop = true
			r.sink.onLimitReached(r.ctx, r.campaign)
			return nil
		}

		existing, err := r.sink.storage.LeadStorage().FindByNormalizedName(r.ctx, r.campaign.ID, normalized)
		if err != nil {
			return fmt.Errorf("dedup lookup: %w", err)
		}
		if existing != nil {
			// Duplicates are dropped without touching the quota.
			r.stats.Duplicates++
			return nil
		}

		lead := buildLead(r.campaign, item, normalized)
		if err := r.sink.storage.LeadStorage().SaveLead(r.ctx, lead); err != nil {
			return fmt.Errorf("save lead: %w", err)
		}
		if err := r.sink.quota.Consume(r.ctx, r.campaign.AccountID); err != nil {
			return fmt.Errorf("consume quota: %w", err)
		}

		r.stats.Saved++
		r.sink.publishLead(r.ctx, r.campaign, lead)

		if !status.Unlimited && status.Remaining-1 <= lowQuotaWarning {
			r.sink.logger.Warn().
				Str("account_id", r.campaign.AccountID).
				Int("remaining", status.Remaining-1).
				Msg("Account quota nearly exhausted")
		}
		return nil
	})
	if err != nil {
		r.sink.logger.Error().
			Err(err).
			Str("campaign_id", r.campaign.ID).
			Str("lead_name", item.Name).
			Msg("Lead admission failed")
		return false
	}

	r.publishProgress(item.Name)

	if stop {
		return true
	}
	if r.batchLimit > 0 && r.stats.Saved >= r.batchLimit {
		return true
	}
	return false
}

// Complete publishes the batch completion event
func (r *Run) Complete() {
	r.sink.events.Publish(r.ctx, interfaces.Event{
		Type:       interfaces.EventScrapingCompleted,
		CampaignID: r.campaign.ID,
		AccountID:  r.campaign.AccountID,
		Payload: CompletedPayload{
			TotalFound:      r.stats.Found,
			TotalSaved:      r.stats.Saved,
			DurationSeconds: time.Since(r.startedAt).Seconds(),
		},
	})
}

// Fail publishes the batch error event
func (r *Run) Fail(err error) {
	r.sink.events.Publish(r.ctx, interfaces.Event{
		Type:       interfaces.EventScrapingError,
		CampaignID: r.campaign.ID,
		AccountID:  r.campaign.AccountID,
		Payload:    ErrorPayload{Error: err.Error()},
	})
}

func (r *Run) publishProgress(current string) {
	r.sink.events.Publish(r.ctx, interfaces.Event{
		Type:       interfaces.EventScrapingProgress,
		CampaignID: r.campaign.ID,
		AccountID:  r.campaign.AccountID,
		Payload: ProgressPayload{
			Found:   r.stats.Found,
			Saved:   r.stats.Saved,
			Current: current,
		},
	})
}

func (s *LeadSink) publishLead(ctx context.Context, campaign *models.Campaign, lead *models.Lead) {
	s.events.Publish(ctx, interfaces.Event{
		Type:       interfaces.EventLeadFound,
		CampaignID: campaign.ID,
		AccountID:  campaign.AccountID,
		Payload: LeadFoundPayload{
			Lead: LeadSummary{
				Name:     lead.Name,
				Phone:    lead.Phone,
				Website:  lead.Website,
				Email:    lead.Email,
				Category: lead.Extra.Category,
				Rating:   lead.Extra.Rating,
			},
		},
	})
}

// onLimitReached pauses the account's campaigns and notifies clients.
// Runs while the account lock is held so only one batch announces it.
func (s *LeadSink) onLimitReached(ctx context.Context, campaign *models.Campaign) {
	paused, err := s.quota.AutoPause(ctx, campaign.AccountID, "monthly lead limit reached")
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("account_id", campaign.AccountID).
			Msg("Failed to auto-pause campaigns")
	}

	s.events.Publish(ctx, interfaces.Event{
		Type:       interfaces.EventLimitReached,
		CampaignID: campaign.ID,
		AccountID:  campaign.AccountID,
		Payload: LimitReachedPayload{
			Message:   "Limite mensal de leads atingido. Campanhas pausadas.",
			Remaining: 0,
		},
	})
	if paused > 0 {
		s.events.Publish(ctx, interfaces.Event{
			Type:      interfaces.EventCampaignPaused,
			AccountID: campaign.AccountID,
			Payload: CampaignsPausedPayload{
				Reason: "monthly lead limit reached",
				Count:  paused,
			},
		})
	}

	s.logger.Info().
		Str("account_id", campaign.AccountID).
		Int("campaigns_paused", paused).
		Msg("Lead limit reached, campaigns paused")
}

// buildLead maps a scraped item onto a persistable lead
func buildLead(campaign *models.Campaign, item *models.ScrapedItem, normalized string) *models.Lead {
	now := time.Now()
	lead := &models.Lead{
		ID:             common.NewLeadID(),
		CampaignID:     campaign.ID,
		AccountID:      campaign.AccountID,
		Name:           item.Name,
		NormalizedName: normalized,
		Username:       models.UsernameFromName(item.Name),
		Platform:       item.Source,
		Company:        item.Name,
		Position:       item.Category,
		Website:        item.Website,
		HasWebsite:     item.Website != "",
		Email:          item.Email,
		Phone:          item.Phone,
		Status:         models.LeadStatusFound,
		Extra: models.LeadExtra{
			Address:      item.Address,
			Rating:       item.Rating,
			ReviewsCount: item.ReviewsCount,
			PlaceID:      item.PlaceID,
			Latitude:     item.Latitude,
			Longitude:    item.Longitude,
			Category:     item.Category,
			Source:       string(item.Source),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if item.Extra != nil {
		if username := item.Extra["username"]; username != "" {
			lead.Username = username
		}
		if bio := item.Extra["bio"]; bio != "" {
			lead.Extra.Bio = bio
		}
		if item.Extra["is_verified"] == "true" {
			lead.Extra.IsVerified = true
		}
		if item.Extra["is_business"] == "true" {
			lead.Extra.IsBusiness = true
		}
		if followers := item.Extra["follower_count"]; followers != "" {
			if count, err := strconv.Atoi(followers); err == nil {
				lead.Extra.FollowerCount = count
			}
		}
	}
	return lead
}
