package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNoMessage is returned when the queue has no visible message
var ErrNoMessage = errors.New("no messages in queue")

// JobStatus represents the state of a campaign job run
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusStopped   JobStatus = "stopped"
	JobStatusFailed    JobStatus = "failed"
)

// Stop reasons recorded on job results when a continuous campaign halts
const (
	StopReasonNotActive      = "campaign_not_active"
	StopReasonLimitReached   = "limit_reached"
	StopReasonCampaignPaused = "campaign_paused"
)

// Job is a persisted record of one continuous-campaign batch run
type Job struct {
	ID            string     `json:"id" badgerhold:"key"`
	CampaignID    string     `json:"campaign_id" badgerhold:"index"`
	AccountID     string     `json:"account_id"`
	Status        JobStatus  `json:"status" badgerhold:"index"`
	StopReason    string     `json:"stop_reason,omitempty"`
	LeadsFound    int        `json:"leads_found"`
	LeadsSaved    int        `json:"leads_saved"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
}

// QueueMessage is the wire form carried by the persistent queue
type QueueMessage struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// CampaignJobPayload is the payload of a continuous campaign message
type CampaignJobPayload struct {
	CampaignID string `json:"campaign_id"`
}

// NewCampaignMessage builds a queue message for a campaign batch run
func NewCampaignMessage(id, campaignID string) (QueueMessage, error) {
	payload, err := json.Marshal(CampaignJobPayload{CampaignID: campaignID})
	if err != nil {
		return QueueMessage{}, err
	}
	return QueueMessage{ID: id, Type: JobTypeCampaignScrape, Payload: payload}, nil
}

// JobTypeCampaignScrape is the queue message type for campaign batches
const JobTypeCampaignScrape = "campaign_scrape"
