package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/interfaces"
	"github.com/ternarybob/capto/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// LeadStorage implements the LeadStorage interface for Badger
type LeadStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLeadStorage creates a new LeadStorage instance
func NewLeadStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LeadStorage {
	return &LeadStorage{
		db:     db,
		logger: logger,
	}
}

func (s *LeadStorage) SaveLead(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		return fmt.Errorf("lead ID is required")
	}
	lead.UpdatedAt = time.Now()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = lead.UpdatedAt
	}

	if err := s.db.Store().Upsert(lead.ID, lead); err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}
	return nil
}

func (s *LeadStorage) GetLead(ctx context.Context, leadID string) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.Store().Get(leadID, &lead); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("lead not found: %s", leadID)
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

// FindByNormalizedName returns nil, nil when no lead matches so callers can
// distinguish "no duplicate" from storage failure.
func (s *LeadStorage) FindByNormalizedName(ctx context.Context, campaignID, normalizedName string) (*models.Lead, error) {
	var leads []models.Lead
	query := badgerhold.Where("CampaignID").Eq(campaignID).And("NormalizedName").Eq(normalizedName).Limit(1)
	if err := s.db.Store().Find(&leads, query); err != nil {
		return nil, fmt.Errorf("failed to query lead by name: %w", err)
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

func (s *LeadStorage) ListLeads(ctx context.Context, campaignID string, limit, offset int) ([]*models.Lead, error) {
	query := badgerhold.Where("CampaignID").Eq(campaignID).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Skip(offset)
	}

	var leads []models.Lead
	if err := s.db.Store().Find(&leads, query); err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	result := make([]*models.Lead, len(leads))
	for i := range leads {
		result[i] = &leads[i]
	}
	return result, nil
}

func (s *LeadStorage) CountLeadsSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	count, err := s.db.Store().Count(&models.Lead{},
		badgerhold.Where("AccountID").Eq(accountID).And("CreatedAt").Ge(since))
	if err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return int(count), nil
}
