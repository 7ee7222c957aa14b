package partner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/internal/pkg/gateway"
)

// CreateDraft returns the organization's merchant, creating a draft row if
// none exists yet. The merchant creation and the organization
// back-reference update commit together.
func (s *Service) CreateDraft(ctx context.Context, orgID uint, settings models.MerchantSettings) (*models.Merchant, error) {
	_ = ctx
	unlock := s.locks.Lock(orgID)
	defer unlock()

	var out *models.Merchant
	err := s.repo.WithTx(func(repo Repository) error {
		org, err := repo.GetOrganization(orgID)
		if err != nil {
			return fmt.Errorf("organization %d: %w", orgID, err)
		}

		m, err := repo.GetMerchantByOrganization(orgID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m = &models.Merchant{
				OrganizationID: orgID,
				Status:         models.MerchantStatusDraft,
			}
			if err := m.SetSettings(settings); err != nil {
				return err
			}
			if err := repo.CreateMerchant(m); err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else {
			if err := m.MergeSettings(settings); err != nil {
				return err
			}
			if err := repo.SaveMerchant(m); err != nil {
				return err
			}
		}

		if org.MerchantID == nil || *org.MerchantID != m.ID {
			org.MerchantID = &m.ID
			if err := repo.SaveOrganization(org); err != nil {
				return err
			}
		}

		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitOnboarding sends the onboarding application to the processor and
// folds the returned merchant record into the local row. Returned
// credentials are merged, never replaced: empty incoming values keep the
// stored ones.
func (s *Service) SubmitOnboarding(ctx context.Context, merchantID uint, data map[string]interface{}) (*models.Merchant, error) {
	m, err := s.repo.GetMerchant(merchantID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(m.OrganizationID)
	defer unlock()

	org, err := s.repo.GetOrganization(m.OrganizationID)
	if err != nil {
		return nil, err
	}
	client, err := s.clients.ForOrganization(org, m)
	if err != nil {
		return nil, err
	}

	remote, err := client.CreateMerchant(ctx, data)
	if err != nil {
		return nil, err
	}

	m.ExternalID = &remote.ID
	m.Status = MapMerchantStatus(remote.Status)
	m.OnboardingID = remote.OnboardingID
	if err := m.MergeCredentials(remote.Credentials); err != nil {
		return nil, err
	}
	if err := s.repo.SaveMerchant(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Sync pulls the authoritative merchant record from the processor and folds
// it back. Requires a persisted external id and an OAuth access token; a
// token whose scope does not cover the id-scoped lookup falls back to the
// token-scoped "me" snapshot.
func (s *Service) Sync(ctx context.Context, merchantID uint) (*models.Merchant, error) {
	m, err := s.repo.GetMerchant(merchantID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(m.OrganizationID)
	defer unlock()

	if !m.HasExternalID() {
		return nil, &DomainStateError{Message: "merchant has no external id yet: submit onboarding first"}
	}

	now := time.Now()
	if !m.Credentials().HasToken() {
		m.LastSyncedAt = &now
		if err := s.repo.SaveMerchant(m); err != nil {
			return nil, err
		}
		return nil, &DomainStateError{Message: "merchant has no gateway access token: complete the OAuth authorization first"}
	}

	org, err := s.repo.GetOrganization(m.OrganizationID)
	if err != nil {
		return nil, err
	}
	client, err := s.clients.ForOrganization(org, m)
	if err != nil {
		return nil, err
	}

	remote, err := client.GetMerchant(ctx, *m.ExternalID)
	if err != nil {
		var gerr *gateway.GatewayError
		if errors.As(err, &gerr) && gerr.IsAuthError() {
			// The granted scope does not cover id-scoped merchant reads;
			// the "me" lookup returns a narrower identity snapshot.
			log.Warnf("[Partner] merchant %d: id-scoped lookup denied (code=%s), falling back to /me", m.ID, gerr.Code)
			remote, err = client.GetMe(ctx)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.WithTx(func(repo Repository) error {
		applyRemoteMerchant(m, remote, nil)
		m.LastSyncedAt = &now
		return repo.SaveMerchant(m)
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// Deactivate moves the merchant to blocked and records the reason. Only a
// fresh OAuth authorization brings a blocked merchant back.
func (s *Service) Deactivate(ctx context.Context, merchantID uint, reason string) error {
	_ = ctx
	m, err := s.repo.GetMerchant(merchantID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(m.OrganizationID)
	defer unlock()

	m.Status = models.MerchantStatusBlocked
	if err := m.MergeSettings(models.MerchantSettings{DeactivationReason: reason}); err != nil {
		return err
	}
	log.Warnf("[Partner] merchant %d deactivated: %s", m.ID, reason)
	return s.repo.SaveMerchant(m)
}

// SyncReport summarizes one batch synchronization run.
type SyncReport struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

const batchSyncWorkers = 4

// SyncAuthorizedMerchants refreshes every merchant with a known external id
// using the global platform credentials. The Partner API has no "list all
// merchants" endpoint, so this cannot discover merchants that never went
// through onboarding or OAuth here. Merchants are refreshed on independent
// workers so one hung gateway call cannot stall the rest.
func (s *Service) SyncAuthorizedMerchants(ctx context.Context) (SyncReport, error) {
	merchants, err := s.repo.ListOnboardedMerchants()
	if err != nil {
		return SyncReport{}, err
	}
	settings, err := s.repo.GatewaySettings()
	if err != nil {
		return SyncReport{}, err
	}

	var (
		mu     sync.Mutex
		report SyncReport
		wg     sync.WaitGroup
		sem    = make(chan struct{}, batchSyncWorkers)
	)

	for i := range merchants {
		m := merchants[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			err := s.syncWithGlobalCredentials(ctx, &m, settings)
			mu.Lock()
			if err != nil {
				report.Failed++
				log.Errorf("[Partner] batch sync merchant %d failed: %v", m.ID, err)
			} else {
				report.Synced++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	log.Infof("[Partner] batch sync finished: synced=%d failed=%d", report.Synced, report.Failed)
	return report, nil
}

func (s *Service) syncWithGlobalCredentials(ctx context.Context, m *models.Merchant, settings *models.GatewaySettings) error {
	unlock := s.locks.Lock(m.OrganizationID)
	defer unlock()

	client, err := s.clients.ForSettings(settings)
	if err != nil {
		return err
	}
	remote, err := client.GetMerchant(ctx, *m.ExternalID)
	if err != nil {
		return err
	}

	now := time.Now()
	return s.repo.WithTx(func(repo Repository) error {
		applyRemoteMerchant(m, remote, nil)
		m.LastSyncedAt = &now
		return repo.SaveMerchant(m)
	})
}

// AttachMerchant binds an externally created merchant to an organization by
// its external id. It recovers setups where the OAuth callback never
// registered: a remote snapshot is folded in when the platform credentials
// allow it, and the operation degrades to storing only the supplied id when
// they do not.
func (s *Service) AttachMerchant(ctx context.Context, orgID uint, externalID string) (*models.Merchant, error) {
	if externalID == "" {
		return nil, &DomainStateError{Message: "external merchant id is required"}
	}

	existing, err := s.repo.GetMerchantByExternalID(externalID)
	if err == nil && existing.OrganizationID != orgID {
		return nil, &DomainStateError{Message: fmt.Sprintf("merchant %s already belongs to organization %d", externalID, existing.OrganizationID)}
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	m, err := s.CreateDraft(ctx, orgID, models.MerchantSettings{})
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(orgID)
	defer unlock()

	m.ExternalID = &externalID
	if m.Status == models.MerchantStatusDraft {
		m.Status = models.MerchantStatusPending
	}

	// Best effort: fold the remote snapshot when platform credentials can
	// read it. Failing that, the stored id alone is still an improvement.
	if settings, serr := s.repo.GatewaySettings(); serr == nil {
		if client, cerr := s.clients.ForSettings(settings); cerr == nil {
			if remote, gerr := client.GetMerchant(ctx, externalID); gerr == nil {
				applyRemoteMerchant(m, remote, nil)
			} else {
				log.Warnf("[Partner] attach merchant %s: info fetch failed, storing id only: %v", externalID, gerr)
			}
		}
	}

	if err := s.repo.SaveMerchant(m); err != nil {
		return nil, err
	}
	return m, nil
}

// applyRemoteMerchant folds a remote merchant record into the local row.
// eventAt carries the webhook's occurrence time; folds older than the last
// applied event are skipped so out-of-order deliveries cannot regress
// state. Explicit sync passes nil (the pull is authoritative "now").
// A locally blocked merchant keeps its status: only a fresh OAuth grant
// reopens it.
func applyRemoteMerchant(m *models.Merchant, remote *gateway.MerchantObject, eventAt *time.Time) bool {
	if eventAt != nil && m.LastEventAt != nil && eventAt.Before(*m.LastEventAt) {
		return false
	}

	if remote.Status != "" && m.Status != models.MerchantStatusBlocked {
		m.Status = MapMerchantStatus(remote.Status)
	}
	if remote.ContractID != "" {
		m.ContractID = remote.ContractID
	}
	if remote.OnboardingID != "" {
		m.OnboardingID = remote.OnboardingID
	}
	if remote.PayoutAccount.ID != "" {
		m.PayoutAccountID = remote.PayoutAccount.ID
	}
	if remote.PayoutAccount.Status != "" {
		m.PayoutStatus = remote.PayoutAccount.Status
	}
	if len(remote.Documents) > 0 {
		_ = m.SetDocuments(mergeDocuments(m.Documents(), remote.Documents))
	}
	_ = m.MergeCredentials(remote.Credentials)

	if m.Status == models.MerchantStatusActive && m.ActivatedAt == nil {
		now := time.Now()
		m.ActivatedAt = &now
	}
	if eventAt != nil {
		m.LastEventAt = eventAt
	}
	return true
}

// mergeDocuments folds the processor's document list into the stored
// metadata, keeping local storage fields for documents we uploaded.
func mergeDocuments(local []models.MerchantDocumentMeta, remote []gateway.MerchantDocument) []models.MerchantDocumentMeta {
	byID := make(map[string]int, len(local))
	for i, doc := range local {
		byID[doc.ID] = i
	}

	out := append([]models.MerchantDocumentMeta(nil), local...)
	for _, rd := range remote {
		if i, ok := byID[rd.ID]; ok {
			out[i].Type = rd.Type
			out[i].Status = rd.Status
			continue
		}
		out = append(out, models.MerchantDocumentMeta{ID: rd.ID, Type: rd.Type, Status: rd.Status})
	}
	return out
}
