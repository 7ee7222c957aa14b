package partner

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fundlink/fundlink/app/models"
)

// Repository provides the DB operations used by the partner services.
type Repository interface {
	// WithTx runs fn against a transactional copy of the repository; all
	// writes inside fn commit or roll back together.
	WithTx(fn func(Repository) error) error

	GetOrganization(id uint) (*models.Organization, error)
	SaveOrganization(org *models.Organization) error

	GetMerchant(id uint) (*models.Merchant, error)
	GetMerchantByOrganization(orgID uint) (*models.Merchant, error)
	GetMerchantByExternalID(externalID string) (*models.Merchant, error)
	CreateMerchant(m *models.Merchant) error
	SaveMerchant(m *models.Merchant) error
	ListOnboardedMerchants() ([]models.Merchant, error)

	GetPaymentDetailByExternalID(externalID string) (*models.PaymentDetail, error)
	SavePaymentDetail(d *models.PaymentDetail) error

	GetTransaction(id uint) (*models.PaymentTransaction, error)
	GetTransactionByTransactionID(transactionID string) (*models.PaymentTransaction, error)
	SaveTransaction(t *models.PaymentTransaction) error

	GetPayoutByExternalID(externalID string) (*models.Payout, error)
	UpsertPayout(p *models.Payout) error

	CreateWebhookEventIfNotExists(ev *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	GetWebhookEvent(id uint) (*models.WebhookEvent, error)
	SaveWebhookEvent(ev *models.WebhookEvent) error

	GatewaySettings() (*models.GatewaySettings, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a partner repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetOrganization(id uint) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.First(&org, id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *gormRepository) SaveOrganization(org *models.Organization) error {
	return r.db.Save(org).Error
}

func (r *gormRepository) GetMerchant(id uint) (*models.Merchant, error) {
	var m models.Merchant
	if err := r.db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) GetMerchantByOrganization(orgID uint) (*models.Merchant, error) {
	var m models.Merchant
	if err := r.db.Where("organization_id = ?", orgID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) GetMerchantByExternalID(externalID string) (*models.Merchant, error) {
	var m models.Merchant
	if err := r.db.Where("external_id = ?", externalID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) CreateMerchant(m *models.Merchant) error {
	return r.db.Create(m).Error
}

func (r *gormRepository) SaveMerchant(m *models.Merchant) error {
	return r.db.Save(m).Error
}

func (r *gormRepository) ListOnboardedMerchants() ([]models.Merchant, error) {
	var merchants []models.Merchant
	err := r.db.Where("external_id IS NOT NULL AND external_id <> ''").Find(&merchants).Error
	return merchants, err
}

func (r *gormRepository) GetPaymentDetailByExternalID(externalID string) (*models.PaymentDetail, error) {
	var d models.PaymentDetail
	if err := r.db.Where("external_id = ?", externalID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *gormRepository) SavePaymentDetail(d *models.PaymentDetail) error {
	return r.db.Save(d).Error
}

func (r *gormRepository) GetTransaction(id uint) (*models.PaymentTransaction, error) {
	var t models.PaymentTransaction
	if err := r.db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormRepository) GetTransactionByTransactionID(transactionID string) (*models.PaymentTransaction, error) {
	var t models.PaymentTransaction
	if err := r.db.Where("transaction_id = ?", transactionID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormRepository) SaveTransaction(t *models.PaymentTransaction) error {
	return r.db.Save(t).Error
}

func (r *gormRepository) GetPayoutByExternalID(externalID string) (*models.Payout, error) {
	var p models.Payout
	if err := r.db.Where("external_id = ?", externalID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) UpsertPayout(p *models.Payout) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"merchant_id",
			"status",
			"amount_minor",
			"currency",
			"scheduled_at",
			"processed_at",
			"payload_json",
			"updated_at",
		}),
	}).Create(p).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("external_id = ?", p.ExternalID).First(p).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ev *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_event_id"}},
		DoNothing: true,
	}).Create(ev)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("external_event_id = ?", ev.ExternalEventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetWebhookEvent(id uint) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	if err := r.db.First(&ev, id).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *gormRepository) SaveWebhookEvent(ev *models.WebhookEvent) error {
	now := time.Now()
	ev.UpdatedAt = now
	return r.db.Save(ev).Error
}

func (r *gormRepository) GatewaySettings() (*models.GatewaySettings, error) {
	return models.LoadGatewaySettings(r.db)
}
