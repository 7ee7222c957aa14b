package models

import "time"

// Webhook event processing statuses.
const (
	EventStatusPending    = "pending"
	EventStatusProcessing = "processing"
	EventStatusProcessed  = "processed"
	EventStatusFailed     = "failed"
)

// WebhookEvent is one entry in the append-only inbound event log.
// Registration is a cheap synchronous insert so delivery acknowledgment is
// never blocked on processing; processing happens out of band and its
// outcome is folded back into the row. A processed event is never
// reprocessed; a failed event keeps its error for diagnosis and is only
// replayed by an operator, never automatically.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ExternalEventID string     `gorm:"type:varchar(191);not null;default:'';uniqueIndex" json:"external_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	ObjectID        string     `gorm:"type:varchar(191);not null;index" json:"object_id"`
	ObjectType      string     `gorm:"type:varchar(32);not null;index" json:"object_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	Status          string     `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	OccurredAt      *time.Time `gorm:"type:timestamp;default:null" json:"occurred_at,omitempty"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
