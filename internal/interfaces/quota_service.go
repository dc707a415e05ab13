package interfaces

import (
	"context"

	"github.com/ternarybob/capto/internal/models"
)

// QuotaStatus is the ledger read model for an account.
type QuotaStatus struct {
	Unlimited bool
	PlanLimit int
	Used      int
	Total     int
	Remaining int
}

// QuotaService merges the plan allowance with FIFO top-up packages.
type QuotaService interface {
	// WithAccountLock serializes fn against all other admissions for the
	// same account.
	WithAccountLock(accountID string, fn func() error) error

	// Status computes the account's current headroom.
	Status(ctx context.Context, accountID string) (*QuotaStatus, error)

	// Consume admits one lead, decrementing the oldest valid package when
	// monthly consumption has passed the plan allowance. Admission is
	// serialized per account.
	Consume(ctx context.Context, accountID string) error

	// AutoPause pauses all active campaigns of the account and returns how
	// many were paused.
	AutoPause(ctx context.Context, accountID, reason string) (int, error)

	// UsageSummary builds the account-facing usage report.
	UsageSummary(ctx context.Context, accountID string) (*models.UsageSummary, error)

	// PurchasePackage records a package purchase. With autoConfirm the
	// package is immediately paid and active.
	PurchasePackage(ctx context.Context, accountID string, pkgType models.PackageType, method string, autoConfirm bool) (*models.LeadPackage, error)

	// ConfirmPayment marks a pending package as paid. Idempotent.
	ConfirmPayment(ctx context.Context, packageID, paymentID string) (*models.LeadPackage, error)
}
