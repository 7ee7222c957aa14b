package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/fundlink/fundlink/internal/pkg/gateway"
)

// Merchant lifecycle statuses. draft -> pending -> active <-> blocked.
// Transitions to pending/active are driven by the processor (sync or
// webhook); blocked is a local administrative action.
const (
	MerchantStatusDraft   = "draft"
	MerchantStatusPending = "pending"
	MerchantStatusActive  = "active"
	MerchantStatusBlocked = "blocked"
)

// Merchant is this platform's record of an organization's sub-merchant at
// the payment processor. At most one per organization; the external id,
// once assigned, is unique across all merchants. Rows are never deleted,
// only moved to blocked.
type Merchant struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	OrganizationID  uint       `gorm:"not null;uniqueIndex" json:"organization_id"`
	ExternalID      *string    `gorm:"type:varchar(191);uniqueIndex" json:"external_id,omitempty"`
	Status          string     `gorm:"type:varchar(32);not null;default:'draft';index" json:"status"`
	ContractID      string     `gorm:"type:varchar(191);default:''" json:"contract_id"`
	OnboardingID    string     `gorm:"type:varchar(191);default:''" json:"onboarding_id"`
	PayoutAccountID string     `gorm:"type:varchar(191);default:''" json:"payout_account_id"`
	PayoutStatus    string     `gorm:"type:varchar(32);default:''" json:"payout_status"`
	CredentialsJSON string     `gorm:"type:text" json:"-"`
	DocumentsJSON   string     `gorm:"type:text" json:"-"`
	SettingsJSON    string     `gorm:"type:text" json:"-"`
	ActivatedAt     *time.Time `gorm:"type:timestamp;default:null" json:"activated_at,omitempty"`
	LastSyncedAt    *time.Time `gorm:"type:timestamp;default:null" json:"last_synced_at,omitempty"`
	LastEventAt     *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasExternalID reports whether onboarding has assigned a processor-side id.
func (m *Merchant) HasExternalID() bool {
	return m.ExternalID != nil && strings.TrimSpace(*m.ExternalID) != ""
}

// Credentials decodes the merchant's typed credential bag.
func (m *Merchant) Credentials() gateway.Credentials {
	var creds gateway.Credentials
	if m.CredentialsJSON == "" {
		return creds
	}
	_ = json.Unmarshal([]byte(m.CredentialsJSON), &creds)
	return creds
}

// SetCredentials stores the credential bag.
func (m *Merchant) SetCredentials(creds gateway.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	m.CredentialsJSON = string(data)
	return nil
}

// MergeCredentials folds incoming credentials into the stored bag; empty
// incoming values never erase stored ones.
func (m *Merchant) MergeCredentials(in gateway.Credentials) error {
	return m.SetCredentials(m.Credentials().Merge(in))
}

// MerchantSettings is the typed per-merchant configuration previously kept
// as a free-form map.
type MerchantSettings struct {
	ReturnURL           string `json:"return_url,omitempty"`
	StatementDescriptor string `json:"statement_descriptor,omitempty"`
	DeactivationReason  string `json:"deactivation_reason,omitempty"`
	TestMode            bool   `json:"test_mode,omitempty"`
}

// Merge folds non-empty incoming settings over the receiver.
func (s MerchantSettings) Merge(in MerchantSettings) MerchantSettings {
	out := s
	if strings.TrimSpace(in.ReturnURL) != "" {
		out.ReturnURL = in.ReturnURL
	}
	if strings.TrimSpace(in.StatementDescriptor) != "" {
		out.StatementDescriptor = in.StatementDescriptor
	}
	if strings.TrimSpace(in.DeactivationReason) != "" {
		out.DeactivationReason = in.DeactivationReason
	}
	if in.TestMode {
		out.TestMode = true
	}
	return out
}

// Settings decodes the merchant settings.
func (m *Merchant) Settings() MerchantSettings {
	var s MerchantSettings
	if m.SettingsJSON == "" {
		return s
	}
	_ = json.Unmarshal([]byte(m.SettingsJSON), &s)
	return s
}

// SetSettings stores the merchant settings.
func (m *Merchant) SetSettings(s MerchantSettings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.SettingsJSON = string(data)
	return nil
}

// MergeSettings folds incoming settings into the stored ones.
func (m *Merchant) MergeSettings(in MerchantSettings) error {
	return m.SetSettings(m.Settings().Merge(in))
}

// MerchantDocumentMeta describes one onboarding document: the processor's
// view (id/type/status) plus where our copy lives in object storage.
type MerchantDocumentMeta struct {
	ID          string     `json:"id,omitempty"`
	Type        string     `json:"type,omitempty"`
	Status      string     `json:"status,omitempty"`
	StorageKey  string     `json:"storage_key,omitempty"`
	FileName    string     `json:"file_name,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	Size        int64      `json:"size,omitempty"`
	UploadedAt  *time.Time `json:"uploaded_at,omitempty"`
}

// Documents decodes the stored document metadata.
func (m *Merchant) Documents() []MerchantDocumentMeta {
	if m.DocumentsJSON == "" {
		return nil
	}
	var docs []MerchantDocumentMeta
	_ = json.Unmarshal([]byte(m.DocumentsJSON), &docs)
	return docs
}

// SetDocuments stores document metadata.
func (m *Merchant) SetDocuments(docs []MerchantDocumentMeta) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	m.DocumentsJSON = string(data)
	return nil
}
