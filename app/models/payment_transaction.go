package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Local transaction status vocabulary (billing domain).
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusCancelled = "cancelled"
)

// PaymentTransaction is the billing domain's donation record. That domain
// owns its broader lifecycle; this subsystem first-or-creates rows keyed by
// the transaction id carried in payment metadata and updates status,
// paid-at and linkage fields as gateway state arrives.
type PaymentTransaction struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	TransactionID     string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"transaction_id"`
	OrganizationID    uint       `gorm:"index" json:"organization_id"`
	FundraiserID      *uint      `gorm:"index" json:"fundraiser_id,omitempty"`
	ProjectID         *uint      `gorm:"index" json:"project_id,omitempty"`
	StageID           *uint      `json:"stage_id,omitempty"`
	AmountMinor       int64      `gorm:"not null;default:0" json:"amount_minor"`
	Currency          string     `gorm:"type:varchar(3);not null;default:'RUB'" json:"currency"`
	Status            string     `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	ExternalPaymentID string     `gorm:"type:varchar(191);default:'';index" json:"external_payment_id"`
	PayloadJSON       string     `gorm:"type:longtext" json:"payload_json"`
	DetailsJSON       string     `gorm:"type:text" json:"-"`
	CreatedViaOurSite bool       `gorm:"default:false" json:"created_via_our_site"`
	PaidAt            *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// DonorDetails is the typed donor/payment-method detail bag on a
// transaction.
type DonorDetails struct {
	Email              string `json:"email,omitempty"`
	Name               string `json:"name,omitempty"`
	PaymentMethodType  string `json:"payment_method_type,omitempty"`
	PaymentMethodTitle string `json:"payment_method_title,omitempty"`
}

// Merge folds non-empty incoming details over the receiver so a later
// webhook without donor data never discards previously stored fields.
func (d DonorDetails) Merge(in DonorDetails) DonorDetails {
	out := d
	if strings.TrimSpace(in.Email) != "" {
		out.Email = in.Email
	}
	if strings.TrimSpace(in.Name) != "" {
		out.Name = in.Name
	}
	if strings.TrimSpace(in.PaymentMethodType) != "" {
		out.PaymentMethodType = in.PaymentMethodType
	}
	if strings.TrimSpace(in.PaymentMethodTitle) != "" {
		out.PaymentMethodTitle = in.PaymentMethodTitle
	}
	return out
}

// Details decodes the donor detail bag.
func (t *PaymentTransaction) Details() DonorDetails {
	var d DonorDetails
	if t.DetailsJSON == "" {
		return d
	}
	_ = json.Unmarshal([]byte(t.DetailsJSON), &d)
	return d
}

// SetDetails stores the donor detail bag.
func (t *PaymentTransaction) SetDetails(d DonorDetails) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	t.DetailsJSON = string(data)
	return nil
}

// MergeDetails folds incoming details into the stored bag.
func (t *PaymentTransaction) MergeDetails(in DonorDetails) error {
	return t.SetDetails(t.Details().Merge(in))
}
