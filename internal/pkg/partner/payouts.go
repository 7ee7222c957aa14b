package partner

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/internal/pkg/gateway"
	"github.com/fundlink/fundlink/internal/pkg/money"
)

// SyncMerchantPayouts pulls the merchant's payouts created since the given
// time (all payouts when nil) and upserts each one. Returns the number of
// folded payouts.
func (s *Service) SyncMerchantPayouts(ctx context.Context, merchantID uint, since *time.Time) (int, error) {
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
		page, err := client.ListPayouts(ctx, params)
		if err != nil {
			return count, err
		}
		for i := range page.Items {
			if err := s.StorePayout(ctx, m, &page.Items[i]); err != nil {
				return count, fmt.Errorf("payout %s: %w", page.Items[i].ID, err)
			}
			count++
		}
		if page.NextCursor == "" {
			break
		}
		params.Cursor = page.NextCursor
	}

	log.Infof("[Partner] merchant %d: synced %d payouts", m.ID, count)
	return count, nil
}

// StorePayout upserts one gateway payout keyed by its external id.
func (s *Service) StorePayout(ctx context.Context, merchant *models.Merchant, p *gateway.PayoutObject) error {
	_ = ctx

	row := &models.Payout{
		MerchantID:  merchant.ID,
		ExternalID:  p.ID,
		Status:      p.Status,
		ScheduledAt: p.ScheduledAt,
		ProcessedAt: p.ProcessedAt,
		PayloadJSON: string(p.Raw),
	}
	if p.Amount.Value != "" {
		minor, err := money.ToMinorUnits(p.Amount.Value, p.Amount.Currency)
		if err != nil {
			return fmt.Errorf("payout %s amount: %w", p.ID, err)
		}
		row.AmountMinor = minor
		row.Currency = p.Amount.Currency
	}
	return s.repo.UpsertPayout(row)
}
