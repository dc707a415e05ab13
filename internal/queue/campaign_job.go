package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
	"github.com/ternarybob/capto/internal/interfaces"
	"github.com/ternarybob/capto/internal/models"
	"github.com/ternarybob/capto/internal/services/sink"
)

// heartbeatInterval is how often a running job refreshes its liveness
const heartbeatInterval = time.Minute

// DelayedEnqueuer schedules a message for future delivery. The campaign
// runner uses it to arrange its own next batch.
type DelayedEnqueuer interface {
	EnqueueDelayed(ctx context.Context, msg models.QueueMessage, delay time.Duration) error
}

// ContactEnricher crawls a lead's website for additional contact data
type ContactEnricher interface {
	Enrich(ctx context.Context, websiteURL string) (*models.ContactInfo, error)
}

// CampaignRunner executes one campaign batch per queue message and
// reschedules itself while the campaign stays active. The batch size is
// the configured limit capped by the account's remaining quota.
type CampaignRunner struct {
	storage  interfaces.StorageManager
	quota    interfaces.QuotaService
	sink     *sink.LeadSink
	events   interfaces.EventService
	queue    DelayedEnqueuer
	scrapers map[models.LeadSource]interfaces.Scraper
	enricher ContactEnricher
	cfg      common.CampaignsConfig
	logger   arbor.ILogger
}

// NewCampaignRunner creates the campaign batch handler
func NewCampaignRunner(
	storage interfaces.StorageManager,
	quota interfaces.QuotaService,
	leadSink *sink.LeadSink,
	events interfaces.EventService,
	queue DelayedEnqueuer,
	cfg common.CampaignsConfig,
	logger arbor.ILogger,
) *CampaignRunner {
	return &CampaignRunner{
		storage:  storage,
		quota:    quota,
		sink:     leadSink,
		events:   events,
		queue:    queue,
		scrapers: make(map[models.LeadSource]interfaces.Scraper),
		cfg:      cfg,
		logger:   logger,
	}
}

// RegisterScraper binds a scraper to its lead source
func (r *CampaignRunner) RegisterScraper(s interfaces.Scraper) {
	r.scrapers[s.Source()] = s
}

// SetContactEnricher enables website contact enrichment for items that
// arrive with a site but no phone or email.
func (r *CampaignRunner) SetContactEnricher(e ContactEnricher) {
	r.enricher = e
}

// Handle processes one campaign batch message
func (r *CampaignRunner) Handle(ctx context.Context, msg *models.QueueMessage) error {
	var payload models.CampaignJobPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode campaign payload: %w", err)
	}

	campaign, err := r.storage.CampaignStorage().GetCampaign(ctx, payload.CampaignID)
	if err != nil {
		// Deleted campaigns simply stop rescheduling.
		r.logger.Warn().
			Str("campaign_id", payload.CampaignID).
			Msg("Campaign not found, dropping scheduled batch")
		return nil
	}

	if !campaign.IsActive() {
		r.recordStoppedJob(ctx, campaign, models.StopReasonNotActive)
		r.logger.Info().
			Str("campaign_id", campaign.ID).
			Str("status", string(campaign.Status)).
			Msg("Campaign not active, batch skipped")
		return nil
	}

	status, err := r.quota.Status(ctx, campaign.AccountID)
	if err != nil {
		return fmt.Errorf("quota status: %w", err)
	}
	if !status.Unlimited && status.Remaining <= 0 {
		r.handlePreRunLimit(ctx, campaign)
		return nil
	}

	batchLimit := r.cfg.BatchLimit
	if !status.Unlimited && status.Remaining < batchLimit {
		batchLimit = status.Remaining
	}

	job := &models.Job{
		ID:         common.NewJobID(),
		CampaignID: campaign.ID,
		AccountID:  campaign.AccountID,
		Status:     models.JobStatusPending,
		CreatedAt:  time.Now(),
	}
	if err := r.storage.JobStorage().SaveJob(ctx, job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	if err := r.storage.JobStorage().UpdateJobStatus(ctx, job.ID, models.JobStatusRunning, ""); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	runCtx, runCancel := context.WithTimeout(ctx, r.cfg.JobWallCeiling)
	defer runCancel()

	r.startHeartbeat(runCtx, job.ID)

	run := r.sink.NewRun(runCtx, campaign, batchLimit)
	runErr := r.runScrapers(runCtx, campaign, batchLimit, run)

	stats := run.Stats()
	job.LeadsFound = stats.Found
	job.LeadsSaved = stats.Saved

	if runErr != nil {
		run.Fail(runErr)
		job.Error = runErr.Error()
	} else {
		run.Complete()
	}

	return r.finishBatch(ctx, campaign, job, stats, runErr)
}

// runScrapers drives the campaign's sources until the batch is filled or
// a source signals stop. With SourceAll each registered source gets a
// turn at the remaining batch headroom.
func (r *CampaignRunner) runScrapers(ctx context.Context, campaign *models.Campaign, batchLimit int, run *sink.Run) error {
	location := campaign.Location
	if location == "" {
		location = r.cfg.DefaultLocation
	}

	var lastErr error
	ranAny := false
	for _, source := range r.sourcesFor(campaign.Source) {
		scraper, ok := r.scrapers[source]
		if !ok {
			continue
		}
		ranAny = true

		stats := run.Stats()
		if stats.LimitReached || (batchLimit > 0 && stats.Saved >= batchLimit) || ctx.Err() != nil {
			break
		}

		opts := interfaces.ScrapeOptions{
			Query:    campaign.SearchTerms(),
			Location: location,
			Limit:    batchLimit - stats.Saved,
			Detailed: source == models.SourceGoogleMaps,
		}

		if _, err := scraper.Scrape(ctx, opts, r.wrapOnItem(ctx, run)); err != nil {
			lastErr = err
			r.logger.Error().
				Err(err).
				Str("campaign_id", campaign.ID).
				Str("source", string(source)).
				Msg("Scraper run failed")
		}
	}

	if !ranAny {
		return fmt.Errorf("no scraper registered for source %q", campaign.Source)
	}
	// A partial batch with some saved leads still counts as progress.
	if lastErr != nil && run.Stats().Saved == 0 {
		return lastErr
	}
	return nil
}

// wrapOnItem fills in missing contact details from the item's website
// before the sink sees it. Enrichment failures are non-fatal.
func (r *CampaignRunner) wrapOnItem(ctx context.Context, run *sink.Run) interfaces.OnItemFunc {
	if r.enricher == nil {
		return run.OnItem
	}

	return func(item *models.ScrapedItem) bool {
		if item.Website != "" && (item.Email == "" || item.Phone == "") {
			info, err := r.enricher.Enrich(ctx, item.Website)
			if err != nil {
				r.logger.Debug().
					Err(err).
					Str("website", item.Website).
					Msg("Contact enrichment failed")
			} else {
				if item.Email == "" && len(info.Emails) > 0 {
					item.Email = info.Emails[0]
				}
				if item.Phone == "" && len(info.Phones) > 0 {
					item.Phone = info.Phones[0]
				}
				if len(info.SocialLinks) > 0 {
					if item.Extra == nil {
						item.Extra = make(map[string]string)
					}
					for network, link := range info.SocialLinks {
						if _, exists := item.Extra[network]; !exists {
							item.Extra[network] = link
						}
					}
				}
			}
		}
		return run.OnItem(item)
	}
}

func (r *CampaignRunner) sourcesFor(source models.LeadSource) []models.LeadSource {
	if source == models.SourceAll {
		return []models.LeadSource{models.SourceGoogleMaps, models.SourceGoogle, models.SourceInstagram}
	}
	return []models.LeadSource{source}
}

// finishBatch records the job outcome and schedules the next run when
// the campaign is still eligible.
func (r *CampaignRunner) finishBatch(ctx context.Context, campaign *models.Campaign, job *models.Job, stats sink.RunStats, runErr error) error {
	// Status may have changed mid-run (manual pause, auto-pause).
	current, err := r.storage.CampaignStorage().GetCampaign(ctx, campaign.ID)
	if err != nil {
		current = campaign
	}

	switch {
	case stats.LimitReached:
		job.Status = models.JobStatusStopped
		job.StopReason = models.StopReasonLimitReached

	case !current.IsActive():
		job.Status = models.JobStatusStopped
		job.StopReason = models.StopReasonCampaignPaused

	case runErr != nil:
		job.Status = models.JobStatusFailed

	default:
		job.Status = models.JobStatusCompleted
	}

	reschedule := job.Status == models.JobStatusCompleted || job.Status == models.JobStatusFailed
	if reschedule {
		nextRun := time.Now().Add(r.cfg.RunInterval)
		job.NextRunAt = &nextRun

		next, err := models.NewCampaignMessage(common.NewJobID(), campaign.ID)
		if err != nil {
			return fmt.Errorf("build next campaign message: %w", err)
		}
		if err := r.queue.EnqueueDelayed(ctx, next, r.cfg.RunInterval); err != nil {
			return fmt.Errorf("schedule next batch: %w", err)
		}

		r.logger.Info().
			Str("campaign_id", campaign.ID).
			Int("leads_saved", stats.Saved).
			Str("next_run_at", nextRun.Format(time.RFC3339)).
			Msg("Campaign batch finished, next run scheduled")
	} else {
		r.logger.Info().
			Str("campaign_id", campaign.ID).
			Str("stop_reason", job.StopReason).
			Int("leads_saved", stats.Saved).
			Msg("Campaign batch finished without reschedule")
	}

	now := time.Now()
	job.CompletedAt = &now
	if err := r.storage.JobStorage().SaveJob(ctx, job); err != nil {
		return fmt.Errorf("save job outcome: %w", err)
	}
	return runErr
}

// handlePreRunLimit pauses the account's campaigns when a batch starts
// with zero headroom.
func (r *CampaignRunner) handlePreRunLimit(ctx context.Context, campaign *models.Campaign) {
	paused, err := r.quota.AutoPause(ctx, campaign.AccountID, "monthly lead limit reached")
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("account_id", campaign.AccountID).
			Msg("Failed to auto-pause campaigns")
	}

	r.events.Publish(ctx, interfaces.Event{
		Type:       interfaces.EventLimitReached,
		CampaignID: campaign.ID,
		AccountID:  campaign.AccountID,
		Payload: sink.LimitReachedPayload{
			Message:   "Limite mensal de leads atingido. Campanhas pausadas.",
			Remaining: 0,
		},
	})
	if paused > 0 {
		r.events.Publish(ctx, interfaces.Event{
			Type:      interfaces.EventCampaignPaused,
			AccountID: campaign.AccountID,
			Payload: sink.CampaignsPausedPayload{
				Reason: "monthly lead limit reached",
				Count:  paused,
			},
		})
	}

	r.recordStoppedJob(ctx, campaign, models.StopReasonLimitReached)
	r.logger.Info().
		Str("campaign_id", campaign.ID).
		Msg("Batch skipped, account has no remaining quota")
}

func (r *CampaignRunner) recordStoppedJob(ctx context.Context, campaign *models.Campaign, reason string) {
	now := time.Now()
	job := &models.Job{
		ID:          common.NewJobID(),
		CampaignID:  campaign.ID,
		AccountID:   campaign.AccountID,
		Status:      models.JobStatusStopped,
		StopReason:  reason,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if err := r.storage.JobStorage().SaveJob(ctx, job); err != nil {
		r.logger.Error().
			Err(err).
			Str("campaign_id", campaign.ID).
			Msg("Failed to record stopped job")
	}
}

// startHeartbeat refreshes the job's liveness marker until the run ends
func (r *CampaignRunner) startHeartbeat(ctx context.Context, jobID string) {
	common.SafeGo(r.logger, "jobHeartbeat", func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job, err := r.storage.JobStorage().GetJob(ctx, jobID)
				if err != nil {
					return
				}
				now := time.Now()
				job.LastHeartbeat = &now
				if err := r.storage.JobStorage().SaveJob(ctx, job); err != nil {
					r.logger.Debug().Err(err).Str("job_id", jobID).Msg("Heartbeat update failed")
				}
			}
		}
	})
}
