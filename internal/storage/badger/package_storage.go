package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/interfaces"
	"github.com/ternarybob/capto/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// PackageStorage implements the PackageStorage interface for Badger
type PackageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPackageStorage creates a new PackageStorage instance
func NewPackageStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PackageStorage {
	return &PackageStorage{
		db:     db,
		logger: logger,
	}
}

func (s *PackageStorage) SavePackage(ctx context.Context, pkg *models.LeadPackage) error {
	if pkg.ID == "" {
		return fmt.Errorf("package ID is required")
	}
	pkg.UpdatedAt = time.Now()
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = pkg.UpdatedAt
	}

	if err := s.db.Store().Upsert(pkg.ID, pkg); err != nil {
		return fmt.Errorf("failed to save package: %w", err)
	}
	return nil
}

func (s *PackageStorage) GetPackage(ctx context.Context, packageID string) (*models.LeadPackage, error) {
	var pkg models.LeadPackage
	if err := s.db.Store().Get(packageID, &pkg); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("package not found: %s", packageID)
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return &pkg, nil
}

// ListValidPackages returns usable packages oldest first. Validity is
// evaluated in memory since expiry depends on the current time.
func (s *PackageStorage) ListValidPackages(ctx context.Context, accountID string) ([]*models.LeadPackage, error) {
	var packages []models.LeadPackage
	query := badgerhold.Where("AccountID").Eq(accountID).And("PaymentStatus").Eq(models.PaymentPaid)
	if err := s.db.Store().Find(&packages, query); err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}

	var result []*models.LeadPackage
	for i := range packages {
		if packages[i].Valid() {
			result = append(result, &packages[i])
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *PackageStorage) ListPackages(ctx context.Context, accountID string) ([]*models.LeadPackage, error) {
	var packages []models.LeadPackage
	query := badgerhold.Where("AccountID").Eq(accountID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&packages, query); err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}

	result := make([]*models.LeadPackage, len(packages))
	for i := range packages {
		result[i] = &packages[i]
	}
	return result, nil
}
