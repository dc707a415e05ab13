package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
	"github.com/ternarybob/capto/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	account  interfaces.AccountStorage
	campaign interfaces.CampaignStorage
	lead     interfaces.LeadStorage
	pkg      interfaces.PackageStorage
	job      interfaces.JobStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		account:  NewAccountStorage(db, logger),
		campaign: NewCampaignStorage(db, logger),
		lead:     NewLeadStorage(db, logger),
		pkg:      NewPackageStorage(db, logger),
		job:      NewJobStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// AccountStorage returns the Account storage interface
func (m *Manager) AccountStorage() interfaces.AccountStorage {
	return m.account
}

// CampaignStorage returns the Campaign storage interface
func (m *Manager) CampaignStorage() interfaces.CampaignStorage {
	return m.campaign
}

// LeadStorage returns the Lead storage interface
func (m *Manager) LeadStorage() interfaces.LeadStorage {
	return m.lead
}

// PackageStorage returns the Package storage interface
func (m *Manager) PackageStorage() interfaces.PackageStorage {
	return m.pkg
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.Store()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
