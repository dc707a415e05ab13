package quota

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
	"github.com/ternarybob/capto/internal/interfaces"
	"github.com/ternarybob/capto/internal/models"
)

// Service implements the quota ledger over the plan allowance and FIFO
// top-up packages. The plan allowance is consumed implicitly through the
// monthly lead count; only packages carry explicit usage counters.
type Service struct {
	accounts  interfaces.AccountStorage
	campaigns interfaces.CampaignStorage
	leads     interfaces.LeadStorage
	packages  interfaces.PackageStorage
	logger    arbor.ILogger

	locksMu      sync.Mutex
	accountLocks map[string]*sync.Mutex
}

// NewService creates a new quota service
func NewService(storage interfaces.StorageManager, logger arbor.ILogger) *Service {
	return &Service{
		accounts:     storage.AccountStorage(),
		campaigns:    storage.CampaignStorage(),
		leads:        storage.LeadStorage(),
		packages:     storage.PackageStorage(),
		logger:       logger,
		accountLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) accountLock(accountID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.accountLocks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.accountLocks[accountID] = lock
	}
	return lock
}

// WithAccountLock serializes fn against all other admissions for the same
// account. The progressive sink runs its check-dedup-persist-consume
// sequence inside this lock so concurrent saves cannot oversell quota.
func (s *Service) WithAccountLock(accountID string, fn func() error) error {
	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// titleCase capitalizes the first letter of a plan name for display
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// monthStart returns the first instant of the current calendar month in UTC
func monthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Status computes the account's current headroom.
func (s *Service) Status(ctx context.Context, accountID string) (*interfaces.QuotaStatus, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("resolve account: %w", err)
	}

	if account.Plan.Unlimited() {
		return &interfaces.QuotaStatus{Unlimited: true, PlanLimit: -1}, nil
	}

	planLimit := account.Plan.LeadLimit()

	used, err := s.leads.CountLeadsSince(ctx, accountID, monthStart(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("count monthly leads: %w", err)
	}

	packages, err := s.packages.ListValidPackages(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}

	total := planLimit
	for _, pkg := range packages {
		total += pkg.Remaining()
	}

	remaining := total - used
	if remaining < 0 {
		remaining = 0
	}

	return &interfaces.QuotaStatus{
		PlanLimit: planLimit,
		Used:      used,
		Total:     total,
		Remaining: remaining,
	}, nil
}

// Consume admits one lead. The caller must hold the account lock (via
// WithAccountLock) and must have already persisted the lead: the monthly
// count therefore includes it. A package is decremented only once the
// month's consumption has moved past the plan allowance.
func (s *Service) Consume(ctx context.Context, accountID string) error {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("resolve account: %w", err)
	}

	if account.Plan.Unlimited() {
		return nil
	}

	used, err := s.leads.CountLeadsSince(ctx, accountID, monthStart(time.Now()))
	if err != nil {
		return fmt.Errorf("count monthly leads: %w", err)
	}

	if used <= account.Plan.LeadLimit() {
		// Still within the plan allowance, nothing to decrement.
		return nil
	}

	packages, err := s.packages.ListValidPackages(ctx, accountID)
	if err != nil {
		return fmt.Errorf("list packages: %w", err)
	}
	if len(packages) == 0 {
		// Admission was checked before persisting, so this means the last
		// package slot was just consumed elsewhere. Log it rather than
		// failing the already-saved lead.
		s.logger.Warn().
			Str("account_id", accountID).
			Int("used", used).
			Msg("Lead admitted beyond plan with no package to decrement")
		return nil
	}

	// FIFO: oldest valid package first.
	pkg := packages[0]
	pkg.Used++
	if pkg.Used >= pkg.Purchased {
		pkg.Active = false
		s.logger.Info().
			Str("package_id", pkg.ID).
			Str("account_id", accountID).
			Int("purchased", pkg.Purchased).
			Msg("Lead package exhausted and deactivated")
	}

	if err := s.packages.SavePackage(ctx, pkg); err != nil {
		return fmt.Errorf("decrement package: %w", err)
	}

	s.logger.Debug().
		Str("package_id", pkg.ID).
		Int("used", pkg.Used).
		Int("remaining", pkg.Remaining()).
		Msg("Consumed lead from package")

	return nil
}

// AutoPause pauses all active campaigns of the account.
func (s *Service) AutoPause(ctx context.Context, accountID, reason string) (int, error) {
	campaigns, err := s.campaigns.ListCampaignsByStatus(ctx, accountID, models.CampaignStatusActive)
	if err != nil {
		return 0, fmt.Errorf("list active campaigns: %w", err)
	}

	paused := 0
	for _, campaign := range campaigns {
		if err := s.campaigns.UpdateCampaignStatus(ctx, campaign.ID, models.CampaignStatusPaused); err != nil {
			s.logger.Error().
				Err(err).
				Str("campaign_id", campaign.ID).
				Msg("Failed to pause campaign")
			continue
		}
		paused++
	}

	if paused > 0 {
		s.logger.Info().
			Str("account_id", accountID).
			Str("reason", reason).
			Int("paused", paused).
			Msg("Campaigns auto-paused")
	}

	return paused, nil
}

// UsageSummary builds the account-facing usage report.
func (s *Service) UsageSummary(ctx context.Context, accountID string) (*models.UsageSummary, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("resolve account: %w", err)
	}

	status, err := s.Status(ctx, accountID)
	if err != nil {
		return nil, err
	}

	summary := &models.UsageSummary{
		PlanName:  titleCase(string(account.Plan)),
		Unlimited: status.Unlimited,
		Used:      status.Used,
		Total:     status.Total,
		Remaining: status.Remaining,
	}

	if !status.Unlimited {
		switch {
		case status.Total > 0:
			pct := float64(status.Used) / float64(status.Total) * 100
			if pct > 100 {
				pct = 100
			}
			summary.UsagePercentage = pct
		case status.Used > 0:
			summary.UsagePercentage = 100
		}
		summary.LimitReached = status.Remaining == 0

		if summary.LimitReached {
			pausedCampaigns, err := s.campaigns.ListCampaignsByStatus(ctx, accountID, models.CampaignStatusPaused)
			if err != nil {
				return nil, fmt.Errorf("list paused campaigns: %w", err)
			}
			summary.CampaignsPaused = len(pausedCampaigns) > 0
		}
	}

	allPackages, err := s.packages.ListPackages(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	for _, pkg := range allPackages {
		summary.Packages = append(summary.Packages, models.PackageSummary{
			ID:        pkg.ID,
			Type:      string(pkg.Type),
			Purchased: pkg.Purchased,
			Used:      pkg.Used,
			Remaining: pkg.Remaining(),
			Active:    pkg.Active,
			CreatedAt: pkg.CreatedAt,
		})
	}

	return summary, nil
}

// PurchasePackage records a package purchase. The payment itself happens
// outside this system; autoConfirm marks the package paid immediately.
func (s *Service) PurchasePackage(ctx context.Context, accountID string, pkgType models.PackageType, method string, autoConfirm bool) (*models.LeadPackage, error) {
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("resolve account: %w", err)
	}

	leads, price, ok := pkgType.CatalogEntry()
	if !ok {
		return nil, fmt.Errorf("unknown package type: %s", pkgType)
	}

	now := time.Now()
	pkg := &models.LeadPackage{
		ID:            common.NewPackageID(),
		AccountID:     accountID,
		Type:          pkgType,
		Purchased:     leads,
		PricePaid:     price,
		PaymentStatus: models.PaymentPending,
		PaymentMethod: method,
		PurchaseMonth: now.UTC().Format("2006-01"),
		CreatedAt:     now,
	}

	if autoConfirm {
		pkg.PaymentStatus = models.PaymentPaid
		pkg.Active = true
	}

	if err := s.packages.SavePackage(ctx, pkg); err != nil {
		return nil, fmt.Errorf("save package: %w", err)
	}

	s.logger.Info().
		Str("package_id", pkg.ID).
		Str("account_id", accountID).
		Str("type", string(pkgType)).
		Bool("auto_confirm", autoConfirm).
		Msg("Lead package purchased")

	return pkg, nil
}

// ConfirmPayment marks a pending package as paid. Calling it again for an
// already paid package is a no-op.
func (s *Service) ConfirmPayment(ctx context.Context, packageID, paymentID string) (*models.LeadPackage, error) {
	pkg, err := s.packages.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}

	if pkg.PaymentStatus == models.PaymentPaid {
		return pkg, nil
	}

	pkg.PaymentStatus = models.PaymentPaid
	pkg.Active = true
	pkg.PaymentID = paymentID

	if err := s.packages.SavePackage(ctx, pkg); err != nil {
		return nil, fmt.Errorf("confirm package payment: %w", err)
	}

	s.logger.Info().
		Str("package_id", pkg.ID).
		Str("payment_id", paymentID).
		Msg("Lead package payment confirmed")

	return pkg, nil
}
