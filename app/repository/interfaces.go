package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/fundlink/fundlink/app/models"
)

// ListFilter carries the common admin list filters. Zero values mean "no
// filter"; From/To bound CreatedAt.
type ListFilter struct {
	OrganizationID uint
	MerchantID     uint
	Status         string
	From           *time.Time
	To             *time.Time
	Offset         int
	Limit          int
}

// OrganizationRepository defines the interface for organization operations
type OrganizationRepository interface {
	Create(org *models.Organization) error
	GetByID(id uint) (*models.Organization, error)
	Update(org *models.Organization) error
	List(offset, limit int) ([]models.Organization, error)
	Count() (int64, error)
}

// MerchantRepository defines the interface for merchant operations
type MerchantRepository interface {
	GetByID(id uint) (*models.Merchant, error)
	GetByOrganizationID(orgID uint) (*models.Merchant, error)
	GetByExternalID(externalID string) (*models.Merchant, error)
	List(filter ListFilter) ([]models.Merchant, int64, error)
	GetStats(merchantID uint) (*MerchantStats, error)
}

// PaymentRepository defines the interface for payment detail and
// transaction read operations
type PaymentRepository interface {
	GetDetailByID(id uint) (*models.PaymentDetail, error)
	GetDetailByExternalID(externalID string) (*models.PaymentDetail, error)
	ListDetails(filter ListFilter) ([]models.PaymentDetail, int64, error)
	GetTransactionByID(id uint) (*models.PaymentTransaction, error)
	ListTransactions(filter ListFilter) ([]models.PaymentTransaction, int64, error)
}

// PayoutRepository defines the interface for payout read operations
type PayoutRepository interface {
	GetByID(id uint) (*models.Payout, error)
	List(filter ListFilter) ([]models.Payout, int64, error)
}

// WebhookEventRepository defines the interface for the webhook event log
type WebhookEventRepository interface {
	GetByID(id uint) (*models.WebhookEvent, error)
	List(filter ListFilter) ([]models.WebhookEvent, int64, error)
	CountByStatus() (map[string]int64, error)
}

// SettingRepository defines the interface for global gateway settings
type SettingRepository interface {
	GetGatewaySettings() (*models.GatewaySettings, error)
	SaveGatewaySettings(settings *models.GatewaySettings) error
	GetValue(key string) (string, error)
	SetValue(key, value string) error
}

// QueueRepository defines the interface for cache/queue inspection
type QueueRepository interface {
	GetValue(key string) (string, error)
	GetTTL(key string) (time.Duration, error)
	DeleteKey(key string) (int64, error)
	GetListLength(key string) (int64, error)
	FindKeysByPatterns(patterns []string) ([]string, error)
	DeleteKeys(keys []string) (int64, error)
}

// MerchantStats aggregates payment and payout figures for one merchant.
type MerchantStats struct {
	PaymentCount        int64 `json:"payment_count"`
	CompletedCount      int64 `json:"completed_count"`
	CompletedMinorTotal int64 `json:"completed_minor_total"`
	PayoutCount         int64 `json:"payout_count"`
	PayoutMinorTotal    int64 `json:"payout_minor_total"`
}

// Repositories struct holds all repository instances
type Repositories struct {
	Organization OrganizationRepository
	Merchant     MerchantRepository
	Payment      PaymentRepository
	Payout       PayoutRepository
	WebhookEvent WebhookEventRepository
	Setting      SettingRepository
	Queue        QueueRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Organization: NewOrganizationRepository(db),
		Merchant:     NewMerchantRepository(db),
		Payment:      NewPaymentRepository(db),
		Payout:       NewPayoutRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Setting:      NewSettingRepository(db),
		Queue:        NewQueueRepository(),
	}
}
