package interfaces

import (
	"context"

	"github.com/ternarybob/capto/internal/models"
)

// OnItemFunc is invoked for each item as the scraper finds it.
// Returning true tells the scraper to stop extracting.
type OnItemFunc func(item *models.ScrapedItem) (stop bool)

// ScrapeOptions tunes a single extraction run.
type ScrapeOptions struct {
	Query    string
	Location string
	Limit    int

	// Detailed enables per-item detail extraction (card click-through)
	// on scrapers that support it.
	Detailed bool
}

// Scraper extracts items from a rendered source page. Implementations
// always return a non-nil result; failures set Success=false and Error
// instead of retrying.
type Scraper interface {
	// Source returns the lead source this scraper serves.
	Source() models.LeadSource

	// Scrape runs a progressive extraction, invoking onItem per item found.
	Scrape(ctx context.Context, opts ScrapeOptions, onItem OnItemFunc) (*models.ScrapeResult, error)
}
