package repository

import (
	"gorm.io/gorm"

	"github.com/fundlink/fundlink/app/models"
)

// merchantRepository implements the MerchantRepository interface
type merchantRepository struct {
	db *gorm.DB
}

// NewMerchantRepository creates a new merchant repository instance
func NewMerchantRepository(db *gorm.DB) MerchantRepository {
	return &merchantRepository{db: db}
}

func (r *merchantRepository) GetByID(id uint) (*models.Merchant, error) {
	var m models.Merchant
	if err := r.db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *merchantRepository) GetByOrganizationID(orgID uint) (*models.Merchant, error) {
	var m models.Merchant
	if err := r.db.Where("organization_id = ?", orgID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *merchantRepository) GetByExternalID(externalID string) (*models.Merchant, error) {
	var m models.Merchant
	if err := r.db.Where("external_id = ?", externalID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *merchantRepository) List(filter ListFilter) ([]models.Merchant, int64, error) {
	q := r.db.Model(&models.Merchant{})
	if filter.OrganizationID != 0 {
		q = q.Where("organization_id = ?", filter.OrganizationID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var merchants []models.Merchant
	err := q.Offset(filter.Offset).Limit(normalizeLimit(filter.Limit)).
		Order("id ASC").Find(&merchants).Error
	return merchants, total, err
}

func (r *merchantRepository) GetStats(merchantID uint) (*MerchantStats, error) {
	stats := &MerchantStats{}

	if err := r.db.Model(&models.PaymentDetail{}).
		Where("merchant_id = ?", merchantID).
		Count(&stats.PaymentCount).Error; err != nil {
		return nil, err
	}

	row := r.db.Model(&models.PaymentTransaction{}).
		Select("COUNT(*), COALESCE(SUM(amount_minor), 0)").
		Joins("JOIN payment_details ON payment_details.payment_transaction_id = payment_transactions.id").
		Where("payment_details.merchant_id = ? AND payment_transactions.status = ?",
			merchantID, models.TransactionStatusCompleted).
		Row()
	if err := row.Scan(&stats.CompletedCount, &stats.CompletedMinorTotal); err != nil {
		return nil, err
	}

	row = r.db.Model(&models.Payout{}).
		Select("COUNT(*), COALESCE(SUM(amount_minor), 0)").
		Where("merchant_id = ?", merchantID).
		Row()
	if err := row.Scan(&stats.PayoutCount, &stats.PayoutMinorTotal); err != nil {
		return nil, err
	}

	return stats, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}
