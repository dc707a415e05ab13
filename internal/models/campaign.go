package models

import (
	"strings"
	"time"
)

// CampaignStatus represents the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// LeadSource identifies which scraper feeds a campaign
type LeadSource string

const (
	SourceGoogle     LeadSource = "google"
	SourceGoogleMaps LeadSource = "google_maps"
	SourceInstagram  LeadSource = "instagram"
	SourceAll        LeadSource = "all"
)

// Campaign describes a continuous lead search
type Campaign struct {
	ID          string         `json:"id" badgerhold:"key"`
	AccountID   string         `json:"account_id" badgerhold:"index"`
	Name        string         `json:"name" validate:"required,min=2,max=120"`
	Description string         `json:"description,omitempty"`
	Status      CampaignStatus `json:"status" badgerhold:"index"`
	Source      LeadSource     `json:"source" validate:"required,oneof=google google_maps instagram all"`
	Niche       string         `json:"niche,omitempty"`
	Location    string         `json:"location,omitempty"`
	SearchQuery string         `json:"search_query,omitempty"`
	Hashtags    []string       `json:"hashtags,omitempty"`
	Keywords    []string       `json:"keywords,omitempty"`
	RateLimit   int            `json:"rate_limit,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SearchTerms resolves the effective search query: explicit query first,
// then niche plus keywords, then the campaign name.
func (c *Campaign) SearchTerms() string {
	if q := strings.TrimSpace(c.SearchQuery); q != "" {
		return q
	}
	if c.Niche != "" {
		terms := c.Niche
		if len(c.Keywords) > 0 {
			terms += " " + strings.Join(c.Keywords, " ")
		}
		return strings.TrimSpace(terms)
	}
	return c.Name
}

// IsActive reports whether the campaign should keep scraping
func (c *Campaign) IsActive() bool {
	return c.Status == CampaignStatusActive
}
