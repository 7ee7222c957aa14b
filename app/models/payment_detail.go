package models

import "time"

// PaymentDetail mirrors one external payment. The external payment id is
// unique: repeated ingestion of the same payment updates the row, never
// duplicates it. Every detail links to exactly one local
// PaymentTransaction (created during ingestion if absent).
type PaymentDetail struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	MerchantID           uint       `gorm:"not null;index" json:"merchant_id"`
	ExternalID           string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"external_id"`
	Status               string     `gorm:"type:varchar(32);not null;index" json:"status"`
	PayloadJSON          string     `gorm:"type:longtext" json:"payload_json"`
	PaymentTransactionID uint       `gorm:"not null;index" json:"payment_transaction_id"`
	LastEventAt          *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
