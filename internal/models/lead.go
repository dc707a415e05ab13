package models

import (
	"strings"
	"time"
)

// LeadStatus tracks outreach progress for a lead
type LeadStatus string

const (
	LeadStatusFound     LeadStatus = "found"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusReplied   LeadStatus = "replied"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusRejected  LeadStatus = "rejected"
	LeadStatusIgnored   LeadStatus = "ignored"
)

// Lead is a persisted prospect discovered by a scraper
type Lead struct {
	ID             string     `json:"id" badgerhold:"key"`
	CampaignID     string     `json:"campaign_id" badgerhold:"index"`
	AccountID      string     `json:"account_id" badgerhold:"index"`
	Name           string     `json:"name"`
	NormalizedName string     `json:"normalized_name" badgerhold:"index"`
	Username       string     `json:"username,omitempty"`
	Platform       LeadSource `json:"platform"`
	Company        string     `json:"company,omitempty"`
	Position       string     `json:"position,omitempty"`
	Website        string     `json:"website,omitempty"`
	HasWebsite     bool       `json:"has_website"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Status         LeadStatus `json:"status"`
	Score          int        `json:"score"`
	Extra          LeadExtra  `json:"extra,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// LeadExtra carries source-specific attributes
type LeadExtra struct {
	Address       string  `json:"address,omitempty"`
	Category      string  `json:"category,omitempty"`
	Rating        float64 `json:"rating,omitempty"`
	ReviewsCount  int     `json:"reviews_count,omitempty"`
	PlaceID       string  `json:"place_id,omitempty"`
	Latitude      float64 `json:"latitude,omitempty"`
	Longitude     float64 `json:"longitude,omitempty"`
	Source        string  `json:"source,omitempty"`
	FollowerCount int     `json:"follower_count,omitempty"`
	IsVerified    bool    `json:"is_verified,omitempty"`
	IsBusiness    bool    `json:"is_business,omitempty"`
	Bio           string  `json:"bio,omitempty"`
}

// NormalizeLeadName lowercases, trims, and collapses inner whitespace.
// The normalized form is the dedup key within a campaign.
func NormalizeLeadName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
}

// UsernameFromName derives a storable username slug from a lead name,
// capped at 50 characters.
func UsernameFromName(name string) string {
	username := strings.ReplaceAll(NormalizeLeadName(name), " ", "_")
	if len(username) > 50 {
		username = username[:50]
	}
	return username
}
