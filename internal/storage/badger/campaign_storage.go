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

// CampaignStorage implements the CampaignStorage interface for Badger
type CampaignStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCampaignStorage creates a new CampaignStorage instance
func NewCampaignStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CampaignStorage {
	return &CampaignStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CampaignStorage) SaveCampaign(ctx context.Context, campaign *models.Campaign) error {
	if campaign.ID == "" {
		return fmt.Errorf("campaign ID is required")
	}
	campaign.UpdatedAt = time.Now()
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = campaign.UpdatedAt
	}

	if err := s.db.Store().Upsert(campaign.ID, campaign); err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}
	return nil
}

func (s *CampaignStorage) GetCampaign(ctx context.Context, campaignID string) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := s.db.Store().Get(campaignID, &campaign); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("campaign not found: %s", campaignID)
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &campaign, nil
}

func (s *CampaignStorage) ListCampaigns(ctx context.Context, accountID string) ([]*models.Campaign, error) {
	var campaigns []models.Campaign
	query := badgerhold.Where("AccountID").Eq(accountID).SortBy("CreatedAt").Reverse()
	if err := s.db.Store().Find(&campaigns, query); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	result := make([]*models.Campaign, len(campaigns))
	for i := range campaigns {
		result[i] = &campaigns[i]
	}
	return result, nil
}

func (s *CampaignStorage) ListCampaignsByStatus(ctx context.Context, accountID string, status models.CampaignStatus) ([]*models.Campaign, error) {
	var campaigns []models.Campaign
	query := badgerhold.Where("AccountID").Eq(accountID).And("Status").Eq(status)
	if err := s.db.Store().Find(&campaigns, query); err != nil {
		return nil, fmt.Errorf("failed to list campaigns by status: %w", err)
	}

	result := make([]*models.Campaign, len(campaigns))
	for i := range campaigns {
		result[i] = &campaigns[i]
	}
	return result, nil
}

func (s *CampaignStorage) UpdateCampaignStatus(ctx context.Context, campaignID string, status models.CampaignStatus) error {
	var campaign models.Campaign
	if err := s.db.Store().Get(campaignID, &campaign); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("campaign not found: %s", campaignID)
		}
		return err
	}

	campaign.Status = status
	return s.SaveCampaign(ctx, &campaign)
}
