package queue

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
	"github.com/ternarybob/capto/internal/interfaces"
	"github.com/ternarybob/capto/internal/models"
)

// Reaper recovers campaign batches orphaned by a crash or kill. A job
// left in running state with a stale heartbeat is marked failed and its
// campaign is rescheduled immediately when still active.
type Reaper struct {
	storage    interfaces.StorageManager
	queue      DelayedEnqueuer
	staleAfter time.Duration
	cron       *cron.Cron
	logger     arbor.ILogger
}

// NewReaper creates a stale job reaper
func NewReaper(storage interfaces.StorageManager, queue DelayedEnqueuer, staleAfter time.Duration, logger arbor.ILogger) *Reaper {
	return &Reaper{
		storage:    storage,
		queue:      queue,
		staleAfter: staleAfter,
		cron:       cron.New(),
		logger:     logger,
	}
}

// Start schedules the sweep every five minutes
func (r *Reaper) Start() error {
	if _, err := r.cron.AddFunc("*/5 * * * *", func() {
		r.Sweep(context.Background())
	}); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info().
		Dur("stale_after", r.staleAfter).
		Msg("Stale job reaper started")
	return nil
}

// Stop halts the sweep schedule, waiting for a running sweep to finish
func (r *Reaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info().Msg("Stale job reaper stopped")
}

// Sweep fails all stale running jobs and reschedules their campaigns
func (r *Reaper) Sweep(ctx context.Context) {
	stale, err := r.storage.JobStorage().GetStaleJobs(ctx, r.staleAfter)
	if err != nil {
		r.logger.Error().Err(err).Msg("Stale job sweep failed")
		return
	}
	if len(stale) == 0 {
		return
	}

	for _, job := range stale {
		if err := r.storage.JobStorage().UpdateJobStatus(ctx, job.ID, models.JobStatusFailed, "heartbeat lost"); err != nil {
			r.logger.Error().
				Err(err).
				Str("job_id", job.ID).
				Msg("Failed to fail stale job")
			continue
		}

		r.logger.Warn().
			Str("job_id", job.ID).
			Str("campaign_id", job.CampaignID).
			Msg("Reaped stale job")

		campaign, err := r.storage.CampaignStorage().GetCampaign(ctx, job.CampaignID)
		if err != nil || !campaign.IsActive() {
			continue
		}

		msg, err := models.NewCampaignMessage(common.NewJobID(), campaign.ID)
		if err != nil {
			continue
		}
		if err := r.queue.EnqueueDelayed(ctx, msg, 0); err != nil {
			r.logger.Error().
				Err(err).
				Str("campaign_id", campaign.ID).
				Msg("Failed to reschedule reaped campaign")
		}
	}
}
