package quota

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/interfaces"
	"github.com/ternarybob/capto/internal/models"
)

// memStorage is an in-memory StorageManager for ledger tests
type memStorage struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account
	campaigns map[string]*models.Campaign
	leads     map[string]*models.Lead
	packages  map[string]*models.LeadPackage
	jobs      map[string]*models.Job
}

func newMemStorage() *memStorage {
	return &memStorage{
		accounts:  make(map[string]*models.Account),
		campaigns: make(map[string]*models.Campaign),
		leads:     make(map[string]*models.Lead),
		packages:  make(map[string]*models.LeadPackage),
		jobs:      make(map[string]*models.Job),
	}
}

func (m *memStorage) AccountStorage() interfaces.AccountStorage   { return m }
func (m *memStorage) CampaignStorage() interfaces.CampaignStorage { return m }
func (m *memStorage) LeadStorage() interfaces.LeadStorage         { return m }
func (m *memStorage) PackageStorage() interfaces.PackageStorage   { return m }
func (m *memStorage) JobStorage() interfaces.JobStorage           { return m }
func (m *memStorage) DB() interface{}                             { return nil }
func (m *memStorage) Close() error                                { return nil }

func (m *memStorage) SaveAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *memStorage) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account not found: %s", accountID)
	}
	return account, nil
}

func (m *memStorage) SaveCampaign(ctx context.Context, campaign *models.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[campaign.ID] = campaign
	return nil
}

func (m *memStorage) GetCampaign(ctx context.Context, campaignID string) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	campaign, ok := m.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("campaign not found: %s", campaignID)
	}
	return campaign, nil
}

func (m *memStorage) ListCampaigns(ctx context.Context, accountID string) ([]*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Campaign
	for _, c := range m.campaigns {
		if c.AccountID == accountID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *memStorage) ListCampaignsByStatus(ctx context.Context, accountID string, status models.CampaignStatus) ([]*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Campaign
	for _, c := range m.campaigns {
		if c.AccountID == accountID && c.Status == status {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *memStorage) UpdateCampaignStatus(ctx context.Context, campaignID string, status models.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	campaign, ok := m.campaigns[campaignID]
	if !ok {
		return fmt.Errorf("campaign not found: %s", campaignID)
	}
	campaign.Status = status
	return nil
}

func (m *memStorage) SaveLead(ctx context.Context, lead *models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}
	m.leads[lead.ID] = lead
	return nil
}

func (m *memStorage) GetLead(ctx context.Context, leadID string) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[leadID]
	if !ok {
		return nil, fmt.Errorf("lead not found: %s", leadID)
	}
	return lead, nil
}

func (m *memStorage) FindByNormalizedName(ctx context.Context, campaignID, normalizedName string) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lead := range m.leads {
		if lead.CampaignID == campaignID && lead.NormalizedName == normalizedName {
			return lead, nil
		}
	}
	return nil, nil
}

func (m *memStorage) ListLeads(ctx context.Context, campaignID string, limit, offset int) ([]*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Lead
	for _, lead := range m.leads {
		if lead.CampaignID == campaignID {
			result = append(result, lead)
		}
	}
	return result, nil
}

func (m *memStorage) CountLeadsSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, lead := range m.leads {
		if lead.AccountID == accountID && !lead.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memStorage) SavePackage(ctx context.Context, pkg *models.LeadPackage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = time.Now()
	}
	m.packages[pkg.ID] = pkg
	return nil
}

func (m *memStorage) GetPackage(ctx context.Context, packageID string) (*models.LeadPackage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkg, ok := m.packages[packageID]
	if !ok {
		return nil, fmt.Errorf("package not found: %s", packageID)
	}
	return pkg, nil
}

func (m *memStorage) ListValidPackages(ctx context.Context, accountID string) ([]*models.LeadPackage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.LeadPackage
	for _, pkg := range m.packages {
		if pkg.AccountID == accountID && pkg.Valid() {
			result = append(result, pkg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *memStorage) ListPackages(ctx context.Context, accountID string) ([]*models.LeadPackage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.LeadPackage
	for _, pkg := range m.packages {
		if pkg.AccountID == accountID {
			result = append(result, pkg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *memStorage) SaveJob(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *memStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	return job, nil
}

func (m *memStorage) ListJobs(ctx context.Context, campaignID string, limit int) ([]*models.Job, error) {
	return nil, nil
}

func (m *memStorage) UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		job.Status = status
		job.Error = errorMsg
	}
	return nil
}

func (m *memStorage) GetStaleJobs(ctx context.Context, staleThreshold time.Duration) ([]*models.Job, error) {
	return nil, nil
}

// Test helpers

func seedAccount(t *testing.T, storage *memStorage, plan models.Plan) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:        "acct_test",
		Email:     "owner@example.com",
		Plan:      plan,
		CreatedAt: time.Now(),
	}
	require.NoError(t, storage.SaveAccount(context.Background(), account))
	return account
}

func seedLeads(t *testing.T, storage *memStorage, accountID string, count int, createdAt time.Time) {
	t.Helper()
	for i := 0; i < count; i++ {
		require.NoError(t, storage.SaveLead(context.Background(), &models.Lead{
			ID:        fmt.Sprintf("lead_%s_%d_%d", accountID, createdAt.Unix(), i),
			AccountID: accountID,
			CreatedAt: createdAt,
		}))
	}
}

func seedPackage(t *testing.T, storage *memStorage, id string, purchased, used int, createdAt time.Time) *models.LeadPackage {
	t.Helper()
	pkg := &models.LeadPackage{
		ID:            id,
		AccountID:     "acct_test",
		Type:          models.Package500,
		Purchased:     purchased,
		Used:          used,
		PaymentStatus: models.PaymentPaid,
		Active:        true,
		CreatedAt:     createdAt,
	}
	require.NoError(t, storage.SavePackage(context.Background(), pkg))
	return pkg
}

func newTestService(storage *memStorage) *Service {
	return NewService(storage, arbor.NewLogger())
}

func TestStatusMergesPlanAndPackages(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanFree) // 50/month
	seedLeads(t, storage, "acct_test", 10, time.Now())
	seedPackage(t, storage, "pkg_a", 500, 100, time.Now())

	svc := newTestService(storage)
	status, err := svc.Status(context.Background(), "acct_test")
	require.NoError(t, err)

	assert.False(t, status.Unlimited)
	assert.Equal(t, 50, status.PlanLimit)
	assert.Equal(t, 10, status.Used)
	assert.Equal(t, 400, status.Total-status.PlanLimit)
	assert.Equal(t, 440, status.Remaining)
}

func TestStatusIgnoresLeadsFromPreviousMonths(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanFree)
	seedLeads(t, storage, "acct_test", 30, time.Now().AddDate(0, -1, 0))
	seedLeads(t, storage, "acct_test", 5, time.Now())

	svc := newTestService(storage)
	status, err := svc.Status(context.Background(), "acct_test")
	require.NoError(t, err)

	assert.Equal(t, 5, status.Used)
	assert.Equal(t, 45, status.Remaining)
}

func TestStatusUnlimitedPlan(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanScale)
	seedLeads(t, storage, "acct_test", 10000, time.Now())

	svc := newTestService(storage)
	status, err := svc.Status(context.Background(), "acct_test")
	require.NoError(t, err)

	assert.True(t, status.Unlimited)
}

func TestStatusRemainingFloorsAtZero(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanFree)
	seedLeads(t, storage, "acct_test", 80, time.Now())

	svc := newTestService(storage)
	status, err := svc.Status(context.Background(), "acct_test")
	require.NoError(t, err)

	assert.Equal(t, 0, status.Remaining)
}

func TestConsumeWithinPlanLeavesPackagesUntouched(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanFree)
	seedLeads(t, storage, "acct_test", 20, time.Now())
	seedPackage(t, storage, "pkg_a", 500, 0, time.Now())

	svc := newTestService(storage)
	require.NoError(t, svc.Consume(context.Background(), "acct_test"))

	pkg, err := storage.GetPackage(context.Background(), "pkg_a")
	require.NoError(t, err)
	assert.Equal(t, 0, pkg.Used)
}

func TestConsumeDecrementsOldestPackageFirst(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanFree)
	// Monthly count already past the 50-lead plan allowance.
	seedLeads(t, storage, "acct_test", 51, time.Now())
	older := seedPackage(t, storage, "pkg_old", 500, 0, time.Now().Add(-48*time.Hour))
	newer := seedPackage(t, storage, "pkg_new", 500, 0, time.Now())

	svc := newTestService(storage)
	require.NoError(t, svc.Consume(context.Background(), "acct_test"))

	assert.Equal(t, 1, older.Used)
	assert.Equal(t, 0, newer.Used)
}

func TestConsumeExhaustionDeactivatesPackage(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanFree)
	seedLeads(t, storage, "acct_test", 60, time.Now())
	pkg := seedPackage(t, storage, "pkg_last", 10, 9, time.Now())

	svc := newTestService(storage)
	require.NoError(t, svc.Consume(context.Background(), "acct_test"))

	assert.Equal(t, 10, pkg.Used)
	assert.False(t, pkg.Active)
	assert.False(t, pkg.Valid())
}

func TestConsumeFallsThroughToNextPackage(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanFree)
	seedLeads(t, storage, "acct_test", 60, time.Now())
	exhausted := seedPackage(t, storage, "pkg_done", 10, 10, time.Now().Add(-48*time.Hour))
	exhausted.Active = false
	next := seedPackage(t, storage, "pkg_next", 500, 0, time.Now())

	svc := newTestService(storage)
	require.NoError(t, svc.Consume(context.Background(), "acct_test"))

	assert.Equal(t, 10, exhausted.Used)
	assert.Equal(t, 1, next.Used)
}

func TestAutoPausePausesOnlyActiveCampaigns(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanFree)
	ctx := context.Background()
	require.NoError(t, storage.SaveCampaign(ctx, &models.Campaign{ID: "cmp_a", AccountID: "acct_test", Status: models.CampaignStatusActive}))
	require.NoError(t, storage.SaveCampaign(ctx, &models.Campaign{ID: "cmp_b", AccountID: "acct_test", Status: models.CampaignStatusActive}))
	require.NoError(t, storage.SaveCampaign(ctx, &models.Campaign{ID: "cmp_c", AccountID: "acct_test", Status: models.CampaignStatusDraft}))

	svc := newTestService(storage)
	paused, err := svc.AutoPause(ctx, "acct_test", "limit reached")
	require.NoError(t, err)

	assert.Equal(t, 2, paused)
	campaignA, _ := storage.GetCampaign(ctx, "cmp_a")
	assert.Equal(t, models.CampaignStatusPaused, campaignA.Status)
	campaignC, _ := storage.GetCampaign(ctx, "cmp_c")
	assert.Equal(t, models.CampaignStatusDraft, campaignC.Status)
}

func TestUsageSummaryPercentagesAndFlags(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanFree)
	seedLeads(t, storage, "acct_test", 25, time.Now())

	svc := newTestService(storage)
	summary, err := svc.UsageSummary(context.Background(), "acct_test")
	require.NoError(t, err)

	assert.Equal(t, "Free", summary.PlanName)
	assert.Equal(t, 25, summary.Used)
	assert.Equal(t, 50, summary.Total)
	assert.InDelta(t, 50.0, summary.UsagePercentage, 0.01)
	assert.False(t, summary.LimitReached)
}

func TestUsageSummaryLimitReachedWithPausedCampaigns(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanFree)
	seedLeads(t, storage, "acct_test", 50, time.Now())
	ctx := context.Background()
	require.NoError(t, storage.SaveCampaign(ctx, &models.Campaign{ID: "cmp_a", AccountID: "acct_test", Status: models.CampaignStatusPaused}))

	svc := newTestService(storage)
	summary, err := svc.UsageSummary(ctx, "acct_test")
	require.NoError(t, err)

	assert.True(t, summary.LimitReached)
	assert.True(t, summary.CampaignsPaused)
	assert.InDelta(t, 100.0, summary.UsagePercentage, 0.01)
}

func TestPurchasePackagePendingUntilConfirmed(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanFree)
	svc := newTestService(storage)
	ctx := context.Background()

	pkg, err := svc.PurchasePackage(ctx, "acct_test", models.Package1000, "pix", false)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, pkg.PaymentStatus)
	assert.False(t, pkg.Active)
	assert.Equal(t, 1000, pkg.Purchased)
	assert.Equal(t, 70.0, pkg.PricePaid)
	assert.False(t, pkg.Valid())

	confirmed, err := svc.ConfirmPayment(ctx, pkg.ID, "pay_123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, confirmed.PaymentStatus)
	assert.True(t, confirmed.Active)
	assert.True(t, confirmed.Valid())

	// Idempotent: confirming again keeps the original payment ID.
	again, err := svc.ConfirmPayment(ctx, pkg.ID, "pay_456")
	require.NoError(t, err)
	assert.Equal(t, "pay_123", again.PaymentID)
}

func TestPurchasePackageAutoConfirm(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanFree)
	svc := newTestService(storage)

	pkg, err := svc.PurchasePackage(context.Background(), "acct_test", models.Package500, "card", true)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, pkg.PaymentStatus)
	assert.True(t, pkg.Valid())
}

func TestPurchasePackageUnknownType(t *testing.T) {
	storage := newMemStorage()
	seedAccount(t, storage, models.PlanFree)
	svc := newTestService(storage)

	_, err := svc.PurchasePackage(context.Background(), "acct_test", models.PackageType("leads_9999"), "card", true)
	require.Error(t, err)
}
