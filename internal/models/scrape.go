package models

import "time"

// ScrapedItem is a single business or profile extracted from a source page
type ScrapedItem struct {
	Name         string            `json:"name"`
	Address      string            `json:"address,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Website      string            `json:"website,omitempty"`
	Email        string            `json:"email,omitempty"`
	Rating       float64           `json:"rating,omitempty"`
	ReviewsCount int               `json:"reviews_count,omitempty"`
	Category     string            `json:"category,omitempty"`
	OpeningHours string            `json:"opening_hours,omitempty"`
	Latitude     float64           `json:"latitude,omitempty"`
	Longitude    float64           `json:"longitude,omitempty"`
	PlaceID      string            `json:"place_id,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
	ScrapedAt    time.Time         `json:"scraped_at"`
	Source       LeadSource        `json:"source"`
}

// ScrapeResult is the outcome of one extraction run. A run that hits its
// wall ceiling returns the items found so far with Success=true.
type ScrapeResult struct {
	Success         bool           `json:"success"`
	Items           []*ScrapedItem `json:"items"`
	TotalFound      int            `json:"total_found"`
	Query           string         `json:"query"`
	Location        string         `json:"location"`
	Error           string         `json:"error,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
}

// ContactInfo is the result of enriching a lead from its website
type ContactInfo struct {
	Emails       []string          `json:"emails,omitempty"`
	Phones       []string          `json:"phones,omitempty"`
	SocialLinks  map[string]string `json:"social_links,omitempty"`
	ContactForms []string          `json:"contact_forms,omitempty"`
}
