package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
	"github.com/ternarybob/capto/internal/interfaces"
	"github.com/ternarybob/capto/internal/models"
)

// AccountHandler serves account usage and package purchase endpoints
type AccountHandler struct {
	storage  interfaces.StorageManager
	quota    interfaces.QuotaService
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewAccountHandler creates an account handler
func NewAccountHandler(storage interfaces.StorageManager, quota interfaces.QuotaService, logger arbor.ILogger) *AccountHandler {
	return &AccountHandler{
		storage:  storage,
		quota:    quota,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateAccountRequest is the account create request body
type CreateAccountRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,min=2,max=120"`
	Plan  string `json:"plan" validate:"omitempty,oneof=free starter pro scale"`
}

// PurchasePackageRequest is the package purchase request body
type PurchasePackageRequest struct {
	Type          string `json:"type" validate:"required,oneof=leads_500 leads_1000 leads_1500"`
	PaymentMethod string `json:"payment_method" validate:"required"`
	AutoConfirm   bool   `json:"auto_confirm"`
}

// ConfirmPaymentRequest is the payment confirmation request body
type ConfirmPaymentRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
}

// CreateAccountHandler handles POST /api/accounts
func (h *AccountHandler) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan := models.Plan(req.Plan)
	if req.Plan == "" {
		plan = models.PlanFree
	}

	now := time.Now()
	account := &models.Account{
		ID:        common.NewAccountID(),
		Email:     req.Email,
		Name:      req.Name,
		Plan:      plan,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.storage.AccountStorage().SaveAccount(r.Context(), account); err != nil {
		h.logger.Error().Err(err).Msg("Failed to save account")
		WriteError(w, http.StatusInternalServerError, "failed to save account")
		return
	}

	h.logger.Info().
		Str("account_id", account.ID).
		Str("plan", string(account.Plan)).
		Msg("Account created")
	WriteJSON(w, http.StatusCreated, account)
}

// GetAccountHandler handles GET /api/accounts/{id}
func (h *AccountHandler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, account)
}

// UsageHandler handles GET /api/accounts/{id}/usage
func (h *AccountHandler) UsageHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	summary, err := h.quota.UsageSummary(r.Context(), account.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("account_id", account.ID).Msg("Failed to build usage summary")
		WriteError(w, http.StatusInternalServerError, "failed to build usage summary")
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

// ListPackagesHandler handles GET /api/accounts/{id}/packages
func (h *AccountHandler) ListPackagesHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	packages, err := h.storage.PackageStorage().ListPackages(r.Context(), account.ID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list packages")
		return
	}
	if packages == nil {
		packages = []*models.LeadPackage{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"packages": packages})
}

// PurchasePackageHandler handles POST /api/accounts/{id}/packages
func (h *AccountHandler) PurchasePackageHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	var req PurchasePackageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pkg, err := h.quota.PurchasePackage(r.Context(), account.ID, models.PackageType(req.Type), req.PaymentMethod, req.AutoConfirm)
	if err != nil {
		h.logger.Error().Err(err).Str("account_id", account.ID).Msg("Failed to purchase package")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info().
		Str("account_id", account.ID).
		Str("package_id", pkg.ID).
		Str("type", string(pkg.Type)).
		Str("payment_status", string(pkg.PaymentStatus)).
		Msg("Package purchased")
	WriteJSON(w, http.StatusCreated, pkg)
}

// ConfirmPaymentHandler handles POST /api/packages/{id}/confirm
func (h *AccountHandler) ConfirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	packageID := r.PathValue("id")
	if packageID == "" {
		WriteError(w, http.StatusBadRequest, "package ID is required")
		return
	}

	var req ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pkg, err := h.quota.ConfirmPayment(r.Context(), packageID, req.PaymentID)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.Info().
		Str("package_id", pkg.ID).
		Str("payment_id", req.PaymentID).
		Msg("Package payment confirmed")
	WriteJSON(w, http.StatusOK, pkg)
}

func (h *AccountHandler) loadAccount(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	accountID := r.PathValue("id")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "account ID is required")
		return nil, false
	}

	account, err := h.storage.AccountStorage().GetAccount(r.Context(), accountID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "account not found")
		return nil, false
	}
	return account, true
}
