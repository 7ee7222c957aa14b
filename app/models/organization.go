package models

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fundlink/fundlink/internal/pkg/gateway"
)

// Organization is a fundraising tenant. The wider platform owns its
// lifecycle; this subsystem only reads it and maintains the merchant
// back-reference plus organization-level payment settings.
type Organization struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Name                string    `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=1,max=200"`
	MerchantID          *uint     `gorm:"index" json:"merchant_id,omitempty"`
	PaymentSettingsJSON string    `gorm:"type:text" json:"-"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Validate checks the organization data against the validation rules
func (o *Organization) Validate() error {
	return validator.New().Struct(o)
}

// PaymentCredentials decodes the organization-level gateway credentials,
// the middle tier of the client factory's resolution chain.
func (o *Organization) PaymentCredentials() gateway.Credentials {
	var creds gateway.Credentials
	if o.PaymentSettingsJSON == "" {
		return creds
	}
	_ = json.Unmarshal([]byte(o.PaymentSettingsJSON), &creds)
	return creds
}

// SetPaymentCredentials stores organization-level gateway credentials.
func (o *Organization) SetPaymentCredentials(creds gateway.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	o.PaymentSettingsJSON = string(data)
	return nil
}
