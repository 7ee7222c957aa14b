package models

import "time"

// Payout mirrors one external payout to a merchant's settlement account.
// Keyed by the external payout id; amounts are stored in integer minor
// currency units.
type Payout struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	MerchantID  uint       `gorm:"not null;index" json:"merchant_id"`
	ExternalID  string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"external_id"`
	Status      string     `gorm:"type:varchar(32);not null;index" json:"status"`
	AmountMinor int64      `gorm:"not null;default:0" json:"amount_minor"`
	Currency    string     `gorm:"type:varchar(3);not null;default:'RUB'" json:"currency"`
	ScheduledAt *time.Time `gorm:"type:timestamp;default:null" json:"scheduled_at,omitempty"`
	ProcessedAt *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	PayloadJSON string     `gorm:"type:longtext" json:"payload_json"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
