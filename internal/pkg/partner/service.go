package partner

import (
	"gorm.io/gorm"

	"github.com/fundlink/fundlink/internal/pkg/docstore"
)

// Service owns the merchant lifecycle, payment/payout reconciliation and
// webhook event processing against the partner gateway.
type Service struct {
	repo    Repository
	clients ClientFactory
	locks   *keyedMutex
	docs    *docstore.Store
	docsCfg *docstore.Config
}

// NewService creates a partner service from injected dependencies.
func NewService(repo Repository, clients ClientFactory) *Service {
	return &Service{
		repo:    repo,
		clients: clients,
		locks:   newKeyedMutex(),
	}
}

// NewServiceFromDB creates a partner service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	repo := NewRepository(db)
	return NewService(repo, NewClientFactory(repo))
}

// Repo exposes the repository for collaborators that need read access
// (controllers resolving merchants before calling into the service).
func (s *Service) Repo() Repository {
	return s.repo
}
