package partner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/internal/pkg/gateway"
	"github.com/fundlink/fundlink/internal/pkg/money"
)

const syncPageSize = 100

// SyncMerchantPayments pulls the merchant's payments created since the
// given time (all payments when nil) and folds each one through the same
// ingestion path webhooks use. Returns the number of folded payments.
func (s *Service) SyncMerchantPayments(ctx context.Context, merchantID uint, since *time.Time) (int, error) {
	m, err := s.repo.GetMerchant(merchantID)
	if err != nil {
		return 0, err
	}
	if !m.HasExternalID() {
		return 0, &DomainStateError{Message: "merchant has no external id yet: submit onboarding first"}
	}

	org, err := s.repo.GetOrganization(m.OrganizationID)
	if err != nil {
		return 0, err
	}
	client, err := s.clients.ForOrganization(org, m)
	if err != nil {
		return 0, err
	}

	count := 0
	params := gateway.ListParams{
		MerchantID:   *m.ExternalID,
		CreatedAtGte: since,
		Limit:        syncPageSize,
	}
	for {
		page, err := client.ListPayments(ctx, params)
		if err != nil {
			return count, err
		}
		for i := range page.Items {
			if err := s.StorePayment(ctx, m, &page.Items[i], nil); err != nil {
				return count, fmt.Errorf("payment %s: %w", page.Items[i].ID, err)
			}
			count++
		}
		if page.NextCursor == "" {
			break
		}
		params.Cursor = page.NextCursor
	}

	log.Infof("[Partner] merchant %d: synced %d payments", m.ID, count)
	return count, nil
}

// StorePayment folds one gateway payment into local storage: the linked
// PaymentTransaction is first-or-created by the metadata transaction id and
// the PaymentDetail mirror is upserted by the external payment id. The fold
// is idempotent and commits atomically. eventAt carries a webhook's
// occurrence time; older-than-last-applied deliveries are skipped.
func (s *Service) StorePayment(ctx context.Context, merchant *models.Merchant, p *gateway.PaymentObject, eventAt *time.Time) error {
	_ = ctx
	unlock := s.locks.Lock(merchant.OrganizationID)
	defer unlock()

	return s.repo.WithTx(func(repo Repository) error {
		detail, err := repo.GetPaymentDetailByExternalID(p.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if detail != nil && eventAt != nil && detail.LastEventAt != nil && eventAt.Before(*detail.LastEventAt) {
			log.Debugf("[Partner] payment %s: stale event (%s before %s), skipping", p.ID, eventAt, detail.LastEventAt)
			return nil
		}

		var txn *models.PaymentTransaction
		createdVia := createdViaOurSite(p)
		if detail != nil && detail.PaymentTransactionID != 0 {
			// A known payment keeps its transaction linkage even when a
			// later snapshot arrives without metadata.
			txn, err = repo.GetTransaction(detail.PaymentTransactionID)
			if err != nil {
				return err
			}
		} else {
			txn, createdVia, err = resolveTransaction(repo, merchant, p)
			if err != nil {
				return err
			}
		}

		if err := foldTransaction(txn, p, createdVia); err != nil {
			return err
		}
		if err := repo.SaveTransaction(txn); err != nil {
			return err
		}

		if detail == nil {
			detail = &models.PaymentDetail{
				MerchantID: merchant.ID,
				ExternalID: p.ID,
			}
		}
		detail.Status = p.Status
		detail.PayloadJSON = string(p.Raw)
		detail.PaymentTransactionID = txn.ID
		if eventAt != nil {
			detail.LastEventAt = eventAt
		}
		return repo.SavePaymentDetail(detail)
	})
}

// createdViaOurSite reports whether a payment originated on our checkout.
// Only payments whose metadata carries both the local transaction id and
// the organization id qualify; payments made directly against the
// merchant's own storefront lack one or both.
func createdViaOurSite(p *gateway.PaymentObject) bool {
	return strings.TrimSpace(p.Metadata.TransactionID) != "" && p.Metadata.OrganizationID != 0
}

// resolveTransaction finds or creates the local transaction a payment
// belongs to. Payments carrying a transaction id in their metadata were
// initiated by our checkout; payments without one were created elsewhere
// (the merchant's own integration) and get a synthesized id derived from
// the gateway payment id so re-ingestion stays idempotent.
func resolveTransaction(repo Repository, merchant *models.Merchant, p *gateway.PaymentObject) (*models.PaymentTransaction, bool, error) {
	transactionID := strings.TrimSpace(p.Metadata.TransactionID)
	createdVia := createdViaOurSite(p)
	if transactionID == "" {
		transactionID = "gw:" + p.ID
	}

	txn, err := repo.GetTransactionByTransactionID(transactionID)
	if err == nil {
		return txn, createdVia, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	txn = &models.PaymentTransaction{
		TransactionID:  transactionID,
		OrganizationID: merchant.OrganizationID,
		Status:         models.TransactionStatusPending,
	}
	return txn, createdVia, nil
}

// foldTransaction applies one gateway payment snapshot to a transaction.
func foldTransaction(txn *models.PaymentTransaction, p *gateway.PaymentObject, createdVia bool) error {
	// Provenance is sticky: once a payment is known to have originated on
	// our checkout, a later snapshot without metadata cannot unset it.
	if createdVia {
		txn.CreatedViaOurSite = true
	}

	if p.Metadata.OrganizationID != 0 {
		txn.OrganizationID = p.Metadata.OrganizationID
	}
	if p.Metadata.FundraiserID != 0 && txn.FundraiserID == nil {
		v := p.Metadata.FundraiserID
		txn.FundraiserID = &v
	}
	if p.Metadata.ProjectID != 0 && txn.ProjectID == nil {
		v := p.Metadata.ProjectID
		txn.ProjectID = &v
	}
	if p.Metadata.StageID != 0 && txn.StageID == nil {
		v := p.Metadata.StageID
		txn.StageID = &v
	}

	if p.Amount.Value != "" {
		minor, err := money.ToMinorUnits(p.Amount.Value, p.Amount.Currency)
		if err != nil {
			return fmt.Errorf("payment %s amount: %w", p.ID, err)
		}
		txn.AmountMinor = minor
		txn.Currency = p.Amount.Currency
	}

	txn.ExternalPaymentID = p.ID
	txn.Status = MapPaymentStatus(p.Status)
	txn.PayloadJSON = string(p.Raw)

	if txn.Status == models.TransactionStatusCompleted && txn.PaidAt == nil {
		paidAt := time.Now()
		if p.CapturedAt != nil {
			paidAt = *p.CapturedAt
		}
		txn.PaidAt = &paidAt
	}

	return txn.MergeDetails(models.DonorDetails{
		Email:              p.Payer.Email,
		Name:               p.Payer.Name,
		PaymentMethodType:  p.PaymentMethod.Type,
		PaymentMethodTitle: p.PaymentMethod.Title,
	})
}
