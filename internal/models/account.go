package models

import "time"

// Plan identifies an account's subscription tier
type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
	PlanScale   Plan = "scale"
)

// planLeadLimits maps plans to leads per calendar month. -1 means unlimited.
var planLeadLimits = map[Plan]int{
	PlanFree:    50,
	PlanStarter: 500,
	PlanPro:     2000,
	PlanScale:   -1,
}

// LeadLimit returns the plan's monthly lead allowance, -1 for unlimited.
func (p Plan) LeadLimit() int {
	if limit, ok := planLeadLimits[p]; ok {
		return limit
	}
	return planLeadLimits[PlanFree]
}

// Unlimited reports whether the plan has no monthly lead ceiling.
func (p Plan) Unlimited() bool {
	return p.LeadLimit() < 0
}

// Account represents a billing account owning campaigns and packages
type Account struct {
	ID        string    `json:"id" badgerhold:"key"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Plan      Plan      `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UsageSummary is the account-facing quota report
type UsageSummary struct {
	PlanName        string           `json:"plan_name"`
	Unlimited       bool             `json:"unlimited"`
	Used            int              `json:"used"`
	Total           int              `json:"total"`
	Remaining       int              `json:"remaining"`
	UsagePercentage float64          `json:"usage_percentage"`
	LimitReached    bool             `json:"is_limit_reached"`
	CampaignsPaused bool             `json:"campaigns_paused"`
	Packages        []PackageSummary `json:"packages"`
}

// PackageSummary is the per-package slice of a usage summary
type PackageSummary struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Purchased int       `json:"purchased"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
