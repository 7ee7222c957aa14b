package repository

import (
	"gorm.io/gorm"

	"github.com/fundlink/fundlink/app/models"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetDetailByID(id uint) (*models.PaymentDetail, error) {
	var d models.PaymentDetail
	if err := r.db.First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *paymentRepository) GetDetailByExternalID(externalID string) (*models.PaymentDetail, error) {
	var d models.PaymentDetail
	if err := r.db.Where("external_id = ?", externalID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *paymentRepository) ListDetails(filter ListFilter) ([]models.PaymentDetail, int64, error) {
	q := r.db.Model(&models.PaymentDetail{})
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

	var details []models.PaymentDetail
	err := q.Offset(filter.Offset).Limit(normalizeLimit(filter.Limit)).
		Order("id DESC").Find(&details).Error
	return details, total, err
}

func (r *paymentRepository) GetTransactionByID(id uint) (*models.PaymentTransaction, error) {
	var t models.PaymentTransaction
	if err := r.db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *paymentRepository) ListTransactions(filter ListFilter) ([]models.PaymentTransaction, int64, error) {
	q := r.db.Model(&models.PaymentTransaction{})
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

	var transactions []models.PaymentTransaction
	err := q.Offset(filter.Offset).Limit(normalizeLimit(filter.Limit)).
		Order("id DESC").Find(&transactions).Error
	return transactions, total, err
}
