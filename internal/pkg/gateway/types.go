package gateway

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Gateway-side payment status vocabulary.
const (
	PaymentStatusSucceeded         = "succeeded"
	PaymentStatusCanceled          = "canceled"
	PaymentStatusPending           = "pending"
	PaymentStatusWaitingForCapture = "waiting_for_capture"
)

// Gateway-side merchant status vocabulary.
const (
	MerchantStatusActive  = "active"
	MerchantStatusPending = "pending"
)

// Amount is the gateway's money representation: a decimal string plus an
// ISO 4217 currency code.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// PayoutAccount is the sub-merchant's settlement account as reported by the
// processor.
type PayoutAccount struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// MerchantDocument describes an onboarding document attached to a merchant.
type MerchantDocument struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// MerchantObject is the remote merchant record. GetMe returns the same
// shape with fewer fields populated (a capability-limited identity
// snapshot).
type MerchantObject struct {
	ID            string             `json:"id"`
	Status        string             `json:"status"`
	ContractID    string             `json:"contract_id"`
	OnboardingID  string             `json:"onboarding_id"`
	PayoutAccount PayoutAccount      `json:"payout_account"`
	Documents     []MerchantDocument `json:"documents"`
	Credentials   Credentials        `json:"credentials"`
	TestMode      bool               `json:"test"`

	Raw json.RawMessage `json:"-"`
}

// Payer carries donor contact details attached to a payment.
type Payer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// PaymentMethod describes how a payment was made.
type PaymentMethod struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

// PaymentMetadata is the typed view of the free-form metadata bag our
// checkout attaches to payments it initiates. Values arrive as strings or
// numbers depending on who created the payment, so decoding is tolerant.
type PaymentMetadata struct {
	TransactionID  string
	OrganizationID uint
	FundraiserID   uint
	ProjectID      uint
	StageID        uint
}

func (m *PaymentMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.TransactionID = flexString(raw["transaction_id"])
	m.OrganizationID = flexUint(raw["organization_id"])
	m.FundraiserID = flexUint(raw["fundraiser_id"])
	m.ProjectID = flexUint(raw["project_id"])
	m.StageID = flexUint(raw["stage_id"])
	return nil
}

func (m PaymentMetadata) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{}
	if m.TransactionID != "" {
		out["transaction_id"] = m.TransactionID
	}
	if m.OrganizationID != 0 {
		out["organization_id"] = m.OrganizationID
	}
	if m.FundraiserID != 0 {
		out["fundraiser_id"] = m.FundraiserID
	}
	if m.ProjectID != 0 {
		out["project_id"] = m.ProjectID
	}
	if m.StageID != 0 {
		out["stage_id"] = m.StageID
	}
	return json.Marshal(out)
}

func flexString(r json.RawMessage) string {
	if len(r) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(r, &n); err == nil {
		return n.String()
	}
	return ""
}

func flexUint(r json.RawMessage) uint {
	s := flexString(r)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

// PaymentObject is a payment as reported by the processor, via poll or push.
type PaymentObject struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Paid          bool            `json:"paid"`
	Amount        Amount          `json:"amount"`
	Description   string          `json:"description"`
	MerchantID    string          `json:"merchant_id"`
	Metadata      PaymentMetadata `json:"metadata"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Payer         Payer           `json:"payer"`
	CreatedAt     *time.Time      `json:"created_at"`
	CapturedAt    *time.Time      `json:"captured_at"`

	Raw json.RawMessage `json:"-"`
}

// PayoutObject is a payout as reported by the processor.
type PayoutObject struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Amount      Amount     `json:"amount"`
	MerchantID  string     `json:"merchant_id"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	ProcessedAt *time.Time `json:"processed_at"`

	Raw json.RawMessage `json:"-"`
}

// RefundObject is the processor's refund record.
type RefundObject struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Amount    Amount `json:"amount"`

	Raw json.RawMessage `json:"-"`
}

// PaymentList and PayoutList are cursor-paginated list responses.
type PaymentList struct {
	Items      []PaymentObject
	NextCursor string
}

type PayoutList struct {
	Items      []PayoutObject
	NextCursor string
}

// TokenResponse is the OAuth code-exchange result.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// WebhookPayload is the inbound webhook envelope: the event type plus the
// full object, whose id/type route dispatch.
type WebhookPayload struct {
	EventType  string          `json:"event_type"`
	Object     json.RawMessage `json:"object"`
	OccurredAt *time.Time      `json:"occurred_at"`

	ObjectID   string `json:"-"`
	ObjectType string `json:"-"`
}

// ParseWebhookPayload decodes a webhook body and extracts the routed
// object's id and type.
func ParseWebhookPayload(data []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.EventType == "" {
		return nil, errors.New("webhook payload missing event_type")
	}
	if len(p.Object) == 0 {
		return nil, errors.New("webhook payload missing object")
	}

	var meta struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(p.Object, &meta); err != nil {
		return nil, err
	}
	p.ObjectID = strings.TrimSpace(meta.ID)
	p.ObjectType = strings.TrimSpace(meta.Type)
	if p.ObjectID == "" {
		return nil, errors.New("webhook object missing id")
	}
	if p.ObjectType == "" {
		// Fall back to the event type prefix ("payment.succeeded" -> "payment").
		if i := strings.IndexByte(p.EventType, '.'); i > 0 {
			p.ObjectType = p.EventType[:i]
		}
	}
	return &p, nil
}

// ParseMerchant decodes a merchant object, retaining the raw payload.
func ParseMerchant(data []byte) (*MerchantObject, error) {
	var m MerchantObject
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if strings.TrimSpace(m.ID) == "" {
		return nil, errors.New("merchant object missing id")
	}
	m.Raw = append(json.RawMessage(nil), data...)
	return &m, nil
}

// ParsePayment decodes a payment object, retaining the raw payload. Webhook
// handling and explicit sync both go through this single decoder so the two
// paths cannot drift.
func ParsePayment(data []byte) (*PaymentObject, error) {
	var p PaymentObject
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.ID) == "" {
		return nil, errors.New("payment object missing id")
	}
	p.Raw = append(json.RawMessage(nil), data...)
	return &p, nil
}

// ParseRefund decodes a refund object, retaining the raw payload.
func ParseRefund(data []byte) (*RefundObject, error) {
	var r RefundObject
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.ID) == "" {
		return nil, errors.New("refund object missing id")
	}
	if strings.TrimSpace(r.PaymentID) == "" {
		return nil, errors.New("refund object missing payment_id")
	}
	r.Raw = append(json.RawMessage(nil), data...)
	return &r, nil
}

// ParsePayout decodes a payout object, retaining the raw payload.
func ParsePayout(data []byte) (*PayoutObject, error) {
	var p PayoutObject
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.ID) == "" {
		return nil, errors.New("payout object missing id")
	}
	p.Raw = append(json.RawMessage(nil), data...)
	return &p, nil
}
