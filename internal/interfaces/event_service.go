package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventScrapingProgress  EventType = "scraping_progress"
	EventLeadFound         EventType = "lead_found"
	EventScrapingCompleted EventType = "scraping_completed"
	EventScrapingError     EventType = "scraping_error"
	EventLimitReached      EventType = "limit_reached"
	EventCampaignPaused    EventType = "campaign_paused"
)

// Event represents a system event. CampaignID and AccountID drive
// per-subscriber routing in the websocket hub.
type Event struct {
	Type       EventType
	CampaignID string
	AccountID  string
	Payload    interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for every event type
	SubscribeAll(handler EventHandler) error

	// Publish an event to all subscribers
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
