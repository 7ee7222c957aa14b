package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/fundlink/fundlink/internal/pkg/gateway"
)

// Setting represents one stored configuration entry
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GatewaySettings is the global (tier-3) gateway configuration: the default
// platform credentials plus OAuth and webhook endpoints. Loaded from the
// settings table per use — never cached in package state.
type GatewaySettings struct {
	ClientID      string `json:"client_id" validate:"max=255"`
	ClientSecret  string `json:"client_secret" validate:"max=255"`
	APIBaseURL    string `json:"api_base_url" validate:"omitempty,url"`
	OAuthBaseURL  string `json:"oauth_base_url" validate:"omitempty,url"`
	CallbackURL   string `json:"callback_url" validate:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret" validate:"max=255"`
}

// Validate checks the settings payload
func (s *GatewaySettings) Validate() error {
	return validator.New().Struct(s)
}

// Credentials returns the settings' static credential pair.
func (s *GatewaySettings) Credentials() gateway.Credentials {
	return gateway.Credentials{ClientID: s.ClientID, ClientSecret: s.ClientSecret}
}

const (
	settingKeyGatewayClientID      = "gateway_client_id"
	settingKeyGatewayClientSecret  = "gateway_client_secret"
	settingKeyGatewayAPIBaseURL    = "gateway_api_base_url"
	settingKeyGatewayOAuthBaseURL  = "gateway_oauth_base_url"
	settingKeyGatewayCallbackURL   = "gateway_callback_url"
	settingKeyGatewayWebhookSecret = "gateway_webhook_secret"
)

// LoadGatewaySettings reads the global gateway settings from the database.
func LoadGatewaySettings(db *gorm.DB) (*GatewaySettings, error) {
	var rows []Setting
	if err := db.Where("setting_key LIKE ?", "gateway_%").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load gateway settings: %w", err)
	}

	out := &GatewaySettings{}
	for _, row := range rows {
		switch row.Key {
		case settingKeyGatewayClientID:
			out.ClientID = row.Value
		case settingKeyGatewayClientSecret:
			out.ClientSecret = row.Value
		case settingKeyGatewayAPIBaseURL:
			out.APIBaseURL = row.Value
		case settingKeyGatewayOAuthBaseURL:
			out.OAuthBaseURL = row.Value
		case settingKeyGatewayCallbackURL:
			out.CallbackURL = row.Value
		case settingKeyGatewayWebhookSecret:
			out.WebhookSecret = row.Value
		}
	}
	return out, nil
}

// SaveGatewaySettings writes the global gateway settings to the database.
func SaveGatewaySettings(db *gorm.DB, s *GatewaySettings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	values := map[string]string{
		settingKeyGatewayClientID:      s.ClientID,
		settingKeyGatewayClientSecret:  s.ClientSecret,
		settingKeyGatewayAPIBaseURL:    s.APIBaseURL,
		settingKeyGatewayOAuthBaseURL:  s.OAuthBaseURL,
		settingKeyGatewayCallbackURL:   s.CallbackURL,
		settingKeyGatewayWebhookSecret: s.WebhookSecret,
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			var setting Setting
			err := tx.Where("setting_key = ?", key).First(&setting).Error
			if err == gorm.ErrRecordNotFound {
				setting = Setting{Key: key, Value: value}
				if err := tx.Create(&setting).Error; err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			setting.Value = value
			if err := tx.Save(&setting).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
