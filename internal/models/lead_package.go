package models

import "time"

// PackageType identifies the purchasable top-up sizes
type PackageType string

const (
	Package500  PackageType = "leads_500"
	Package1000 PackageType = "leads_1000"
	Package1500 PackageType = "leads_1500"
)

// PaymentStatus tracks the payment lifecycle of a package
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// packageCatalog maps types to (leads, price USD)
var packageCatalog = map[PackageType]struct {
	Leads int
	Price float64
}{
	Package500:  {500, 50},
	Package1000: {1000, 70},
	Package1500: {1500, 100},
}

// CatalogEntry returns leads and price for a package type; ok is false for
// unknown types.
func (t PackageType) CatalogEntry() (leads int, price float64, ok bool) {
	entry, ok := packageCatalog[t]
	return entry.Leads, entry.Price, ok
}

// LeadPackage is a purchased lead top-up consumed FIFO after the plan
// allowance runs out.
type LeadPackage struct {
	ID            string        `json:"id" badgerhold:"key"`
	AccountID     string        `json:"account_id" badgerhold:"index"`
	Type          PackageType   `json:"type"`
	Purchased     int           `json:"purchased"`
	Used          int           `json:"used"`
	PricePaid     float64       `json:"price_paid"`
	PaymentStatus PaymentStatus `json:"payment_status" badgerhold:"index"`
	PaymentID     string        `json:"payment_id,omitempty"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	ValidUntil    *time.Time    `json:"valid_until,omitempty"`
	PurchaseMonth string        `json:"purchase_month"`
	Active        bool          `json:"active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Remaining returns the unconsumed leads in the package.
func (p *LeadPackage) Remaining() int {
	if r := p.Purchased - p.Used; r > 0 {
		return r
	}
	return 0
}

// Valid reports whether the package can still be consumed from.
func (p *LeadPackage) Valid() bool {
	if !p.Active || p.PaymentStatus != PaymentPaid {
		return false
	}
	if p.ValidUntil != nil && time.Now().After(*p.ValidUntil) {
		return false
	}
	return p.Remaining() > 0
}
