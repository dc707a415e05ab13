package common

import (
	"github.com/google/uuid"
)

// NewCampaignID generates a unique campaign ID with the "cmp_" prefix
func NewCampaignID() string {
	return "cmp_" + uuid.New().String()
}

// NewLeadID generates a unique lead ID with the "lead_" prefix
func NewLeadID() string {
	return "lead_" + uuid.New().String()
}

// NewPackageID generates a unique package ID with the "pkg_" prefix
func NewPackageID() string {
	return "pkg_" + uuid.New().String()
}

// NewAccountID generates a unique account ID with the "acct_" prefix
func NewAccountID() string {
	return "acct_" + uuid.New().String()
}

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}
