package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/interfaces"
	"github.com/ternarybob/capto/internal/models"
)

// fakeStore is an in-memory StorageManager for handler tests
type fakeStore struct {
	accounts  map[string]*models.Account
	campaigns map[string]*models.Campaign
	leads     map[string][]*models.Lead
	packages  map[string]*models.LeadPackage
	jobs      map[string]*models.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:  make(map[string]*models.Account),
		campaigns: make(map[string]*models.Campaign),
		leads:     make(map[string][]*models.Lead),
		packages:  make(map[string]*models.LeadPackage),
		jobs:      make(map[string]*models.Job),
	}
}

func (s *fakeStore) SaveAccount(_ context.Context, account *models.Account) error {
	s.accounts[account.ID] = account
	return nil
}

func (s *fakeStore) GetAccount(_ context.Context, accountID string) (*models.Account, error) {
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s not found", accountID)
	}
	return account, nil
}

func (s *fakeStore) SaveCampaign(_ context.Context, campaign *models.Campaign) error {
	s.campaigns[campaign.ID] = campaign
	return nil
}

func (s *fakeStore) GetCampaign(_ context.Context, campaignID string) (*models.Campaign, error) {
	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("campaign %s not found", campaignID)
	}
	return campaign, nil
}

func (s *fakeStore) ListCampaigns(_ context.Context, accountID string) ([]*models.Campaign, error) {
	var out []*models.Campaign
	for _, c := range s.campaigns {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) ListCampaignsByStatus(_ context.Context, accountID string, status models.CampaignStatus) ([]*models.Campaign, error) {
	var out []*models.Campaign
	for _, c := range s.campaigns {
		if c.AccountID == accountID && c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateCampaignStatus(_ context.Context, campaignID string, status models.CampaignStatus) error {
	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return fmt.Errorf("campaign %s not found", campaignID)
	}
	campaign.Status = status
	return nil
}

func (s *fakeStore) SaveLead(_ context.Context, lead *models.Lead) error {
	s.leads[lead.CampaignID] = append(s.leads[lead.CampaignID], lead)
	return nil
}

func (s *fakeStore) GetLead(_ context.Context, leadID string) (*models.Lead, error) {
	for _, leads := range s.leads {
		for _, lead := range leads {
			if lead.ID == leadID {
				return lead, nil
			}
		}
	}
	return nil, fmt.Errorf("lead %s not found", leadID)
}

func (s *fakeStore) FindByNormalizedName(_ context.Context, campaignID, normalizedName string) (*models.Lead, error) {
	for _, lead := range s.leads[campaignID] {
		if lead.NormalizedName == normalizedName {
			return lead, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListLeads(_ context.Context, campaignID string, limit, offset int) ([]*models.Lead, error) {
	leads := s.leads[campaignID]
	if offset >= len(leads) {
		return nil, nil
	}
	end := offset + limit
	if end > len(leads) {
		end = len(leads)
	}
	return leads[offset:end], nil
}

func (s *fakeStore) CountLeadsSince(_ context.Context, accountID string, since time.Time) (int, error) {
	count := 0
	for _, leads := range s.leads {
		for _, lead := range leads {
			if lead.AccountID == accountID && !lead.CreatedAt.Before(since) {
				count++
			}
		}
	}
	return count, nil
}

func (s *fakeStore) SavePackage(_ context.Context, pkg *models.LeadPackage) error {
	s.packages[pkg.ID] = pkg
	return nil
}

func (s *fakeStore) GetPackage(_ context.Context, packageID string) (*models.LeadPackage, error) {
	pkg, ok := s.packages[packageID]
	if !ok {
		return nil, fmt.Errorf("package %s not found", packageID)
	}
	return pkg, nil
}

func (s *fakeStore) ListValidPackages(_ context.Context, accountID string) ([]*models.LeadPackage, error) {
	var out []*models.LeadPackage
	for _, pkg := range s.packages {
		if pkg.AccountID == accountID && pkg.Valid() {
			out = append(out, pkg)
		}
	}
	return out, nil
}

func (s *fakeStore) ListPackages(_ context.Context, accountID string) ([]*models.LeadPackage, error) {
	var out []*models.LeadPackage
	for _, pkg := range s.packages {
		if pkg.AccountID == accountID {
			out = append(out, pkg)
		}
	}
	return out, nil
}

func (s *fakeStore) SaveJob(_ context.Context, job *models.Job) error {
	s.jobs[job.ID] = job
	return nil
}

func (s *fakeStore) GetJob(_ context.Context, jobID string) (*models.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	return job, nil
}

func (s *fakeStore) ListJobs(_ context.Context, campaignID string, limit int) ([]*models.Job, error) {
	var out []*models.Job
	for _, job := range s.jobs {
		if job.CampaignID == campaignID {
			out = append(out, job)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) UpdateJobStatus(_ context.Context, jobID string, status models.JobStatus, errorMsg string) error {
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	job.Status = status
	job.Error = errorMsg
	return nil
}

func (s *fakeStore) GetStaleJobs(_ context.Context, _ time.Duration) ([]*models.Job, error) {
	return nil, nil
}

func (s *fakeStore) AccountStorage() interfaces.AccountStorage   { return s }
func (s *fakeStore) CampaignStorage() interfaces.CampaignStorage { return s }
func (s *fakeStore) LeadStorage() interfaces.LeadStorage         { return s }
func (s *fakeStore) PackageStorage() interfaces.PackageStorage   { return s }
func (s *fakeStore) JobStorage() interfaces.JobStorage           { return s }
func (s *fakeStore) DB() interface{}                             { return nil }
func (s *fakeStore) Close() error                                { return nil }

// fakeQuota returns canned quota answers
type fakeQuota struct {
	remaining int
	unlimited bool
	summary   *models.UsageSummary
}

func (q *fakeQuota) WithAccountLock(_ string, fn func() error) error { return fn() }

func (q *fakeQuota) Status(_ context.Context, _ string) (*interfaces.QuotaStatus, error) {
	return &interfaces.QuotaStatus{Unlimited: q.unlimited, Remaining: q.remaining}, nil
}

func (q *fakeQuota) Consume(_ context.Context, _ string) error { return nil }

func (q *fakeQuota) AutoPause(_ context.Context, _, _ string) (int, error) { return 0, nil }

func (q *fakeQuota) UsageSummary(_ context.Context, _ string) (*models.UsageSummary, error) {
	if q.summary != nil {
		return q.summary, nil
	}
	return &models.UsageSummary{PlanName: "free", Total: 50, Remaining: q.remaining}, nil
}

func (q *fakeQuota) PurchasePackage(_ context.Context, accountID string, pkgType models.PackageType, method string, autoConfirm bool) (*models.LeadPackage, error) {
	leads, price, ok := pkgType.CatalogEntry()
	if !ok {
		return nil, fmt.Errorf("unknown package type: %s", pkgType)
	}
	return &models.LeadPackage{
		ID:            "pkg_test",
		AccountID:     accountID,
		Type:          pkgType,
		Purchased:     leads,
		PricePaid:     price,
		PaymentStatus: models.PaymentPending,
		PaymentMethod: method,
	}, nil
}

func (q *fakeQuota) ConfirmPayment(_ context.Context, packageID, paymentID string) (*models.LeadPackage, error) {
	return &models.LeadPackage{ID: packageID, PaymentID: paymentID, PaymentStatus: models.PaymentPaid, Active: true}, nil
}

// fakeQueue records enqueued messages
type fakeQueue struct {
	messages []models.QueueMessage
}

func (q *fakeQueue) Enqueue(_ context.Context, msg models.QueueMessage) error {
	q.messages = append(q.messages, msg)
	return nil
}

type handlerFixture struct {
	store *fakeStore
	quota *fakeQuota
	queue *fakeQueue
	mux   *http.ServeMux
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		store: newFakeStore(),
		quota: &fakeQuota{remaining: 50},
		queue: &fakeQueue{},
	}

	logger := arbor.NewLogger()
	campaigns := NewCampaignHandler(f.store, f.quota, f.queue, logger)
	accounts := NewAccountHandler(f.store, f.quota, logger)

	f.mux = http.NewServeMux()
	f.mux.HandleFunc("POST /api/campaigns", campaigns.CreateHandler)
	f.mux.HandleFunc("GET /api/campaigns", campaigns.ListHandler)
	f.mux.HandleFunc("GET /api/campaigns/{id}", campaigns.GetHandler)
	f.mux.HandleFunc("PUT /api/campaigns/{id}", campaigns.UpdateHandler)
	f.mux.HandleFunc("POST /api/campaigns/{id}/start", campaigns.StartHandler)
	f.mux.HandleFunc("POST /api/campaigns/{id}/stop", campaigns.StopHandler)
	f.mux.HandleFunc("GET /api/campaigns/{id}/leads", campaigns.LeadsHandler)
	f.mux.HandleFunc("POST /api/accounts", accounts.CreateAccountHandler)
	f.mux.HandleFunc("GET /api/accounts/{id}/usage", accounts.UsageHandler)
	f.mux.HandleFunc("POST /api/accounts/{id}/packages", accounts.PurchasePackageHandler)
	f.mux.HandleFunc("POST /api/packages/{id}/confirm", accounts.ConfirmPaymentHandler)
	return f
}

func (f *handlerFixture) seedAccount(id string) {
	f.store.accounts[id] = &models.Account{ID: id, Email: id + "@example.com", Name: "Test", Plan: models.PlanFree}
}

func (f *handlerFixture) seedCampaign(id, accountID string, status models.CampaignStatus) {
	f.store.campaigns[id] = &models.Campaign{
		ID:        id,
		AccountID: accountID,
		Name:      "Padarias em Campinas",
		Status:    status,
		Source:    models.SourceGoogleMaps,
		Niche:     "padaria",
		Location:  "Campinas, SP",
	}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateCampaign(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedAccount("acct_1")

	rec := f.do(t, "POST", "/api/campaigns", map[string]interface{}{
		"account_id": "acct_1",
		"name":       "Padarias em Campinas",
		"source":     "google_maps",
		"niche":      "padaria",
		"location":   "Campinas, SP",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var campaign models.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &campaign))
	assert.NotEmpty(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusDraft, campaign.Status)
	assert.Equal(t, models.SourceGoogleMaps, campaign.Source)
}

func TestCreateCampaignUnknownAccount(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, "POST", "/api/campaigns", map[string]interface{}{
		"account_id": "acct_missing",
		"name":       "Padarias",
		"source":     "google_maps",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateCampaignRejectsInvalidSource(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedAccount("acct_1")

	rec := f.do(t, "POST", "/api/campaigns", map[string]interface{}{
		"account_id": "acct_1",
		"name":       "Padarias",
		"source":     "yelp",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartCampaignActivatesAndEnqueues(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedAccount("acct_1")
	f.seedCampaign("cmp_1", "acct_1", models.CampaignStatusDraft)

	rec := f.do(t, "POST", "/api/campaigns/cmp_1/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, models.CampaignStatusActive, f.store.campaigns["cmp_1"].Status)
	require.Len(t, f.queue.messages, 1)
	assert.Equal(t, models.JobTypeCampaignScrape, f.queue.messages[0].Type)

	// Starting an active campaign is a conflict.
	rec = f.do(t, "POST", "/api/campaigns/cmp_1/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, f.queue.messages, 1)
}

func TestStartCampaignBlockedWithoutQuota(t *testing.T) {
	f := newHandlerFixture(t)
	f.quota.remaining = 0
	f.seedAccount("acct_1")
	f.seedCampaign("cmp_1", "acct_1", models.CampaignStatusDraft)

	rec := f.do(t, "POST", "/api/campaigns/cmp_1/start", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, models.CampaignStatusDraft, f.store.campaigns["cmp_1"].Status)
	assert.Empty(t, f.queue.messages)
}

func TestStopCampaign(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedAccount("acct_1")
	f.seedCampaign("cmp_1", "acct_1", models.CampaignStatusActive)

	rec := f.do(t, "POST", "/api/campaigns/cmp_1/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CampaignStatusPaused, f.store.campaigns["cmp_1"].Status)

	rec = f.do(t, "POST", "/api/campaigns/cmp_1/stop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListLeadsPagination(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedAccount("acct_1")
	f.seedCampaign("cmp_1", "acct_1", models.CampaignStatusActive)
	for i := 0; i < 5; i++ {
		f.store.leads["cmp_1"] = append(f.store.leads["cmp_1"], &models.Lead{
			ID:         fmt.Sprintf("lead_%d", i),
			CampaignID: "cmp_1",
			AccountID:  "acct_1",
			Name:       fmt.Sprintf("Padaria %d", i),
		})
	}

	rec := f.do(t, "GET", "/api/campaigns/cmp_1/leads?limit=2&offset=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Leads  []*models.Lead `json:"leads"`
		Limit  int            `json:"limit"`
		Offset int            `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Leads, 2)
	assert.Equal(t, "lead_2", resp.Leads[0].ID)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, 2, resp.Offset)
}

func TestUsageEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedAccount("acct_1")
	f.quota.summary = &models.UsageSummary{
		PlanName:  "starter",
		Used:      120,
		Total:     500,
		Remaining: 380,
	}

	rec := f.do(t, "GET", "/api/accounts/acct_1/usage", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary models.UsageSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "starter", summary.PlanName)
	assert.Equal(t, 380, summary.Remaining)
}

func TestPurchasePackageEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedAccount("acct_1")

	rec := f.do(t, "POST", "/api/accounts/acct_1/packages", map[string]interface{}{
		"type":           "leads_1000",
		"payment_method": "pix",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var pkg models.LeadPackage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pkg))
	assert.Equal(t, models.Package1000, pkg.Type)
	assert.Equal(t, 1000, pkg.Purchased)
	assert.Equal(t, models.PaymentPending, pkg.PaymentStatus)
}

func TestPurchasePackageRejectsUnknownType(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedAccount("acct_1")

	rec := f.do(t, "POST", "/api/accounts/acct_1/packages", map[string]interface{}{
		"type":           "leads_9000",
		"payment_method": "pix",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmPaymentEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, "POST", "/api/packages/pkg_1/confirm", map[string]interface{}{
		"payment_id": "pay_123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var pkg models.LeadPackage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pkg))
	assert.Equal(t, models.PaymentPaid, pkg.PaymentStatus)
	assert.Equal(t, "pay_123", pkg.PaymentID)
}
