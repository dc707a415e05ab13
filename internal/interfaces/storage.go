package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/capto/internal/models"
)

// AccountStorage persists accounts
type AccountStorage interface {
	SaveAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
}

// CampaignStorage persists campaigns
type CampaignStorage interface {
	SaveCampaign(ctx context.Context, campaign *models.Campaign) error
	GetCampaign(ctx context.Context, campaignID string) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, accountID string) ([]*models.Campaign, error)
	ListCampaignsByStatus(ctx context.Context, accountID string, status models.CampaignStatus) ([]*models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, campaignID string, status models.CampaignStatus) error
}

// LeadStorage persists leads
type LeadStorage interface {
	SaveLead(ctx context.Context, lead *models.Lead) error
	GetLead(ctx context.Context, leadID string) (*models.Lead, error)
	// FindByNormalizedName returns the existing lead for a
	// (campaign, normalized name) pair, or nil when none exists.
	FindByNormalizedName(ctx context.Context, campaignID, normalizedName string) (*models.Lead, error)
	ListLeads(ctx context.Context, campaignID string, limit, offset int) ([]*models.Lead, error)
	// CountLeadsSince counts an account's leads created at or after the cutoff.
	CountLeadsSince(ctx context.Context, accountID string, since time.Time) (int, error)
}

// PackageStorage persists lead top-up packages
type PackageStorage interface {
	SavePackage(ctx context.Context, pkg *models.LeadPackage) error
	GetPackage(ctx context.Context, packageID string) (*models.LeadPackage, error)
	// ListValidPackages returns the account's usable packages ordered
	// oldest first (FIFO consumption order).
	ListValidPackages(ctx context.Context, accountID string) ([]*models.LeadPackage, error)
	ListPackages(ctx context.Context, accountID string) ([]*models.LeadPackage, error)
}

// JobStorage persists campaign job run records
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, campaignID string, limit int) ([]*models.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, errorMsg string) error
	GetStaleJobs(ctx context.Context, staleThreshold time.Duration) ([]*models.Job, error)
}

// StorageManager aggregates the typed storages over one database
type StorageManager interface {
	AccountStorage() AccountStorage
	CampaignStorage() CampaignStorage
	LeadStorage() LeadStorage
	PackageStorage() PackageStorage
	JobStorage() JobStorage
	DB() interface{}
	Close() error
}
