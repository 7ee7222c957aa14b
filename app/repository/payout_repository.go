package repository

import (
	"gorm.io/gorm"

	"github.com/fundlink/fundlink/app/models"
)

// payoutRepository implements the PayoutRepository interface
type payoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository creates a new payout repository instance
func NewPayoutRepository(db *gorm.DB) PayoutRepository {
	return &payoutRepository{db: db}
}

func (r *payoutRepository) GetByID(id uint) (*models.Payout, error) {
	var p models.Payout
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *payoutRepository) List(filter ListFilter) ([]models.Payout, int64, error) {
	q := r.db.Model(&models.Payout{})
	if filter.MerchantID != 0 {
		q = q.Where("merchant_id = ?", filter.MerchantID)
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

	var payouts []models.Payout
	err := q.Offset(filter.Offset).Limit(normalizeLimit(filter.Limit)).
		Order("id DESC").Find(&payouts).Error
	return payouts, total, err
}
