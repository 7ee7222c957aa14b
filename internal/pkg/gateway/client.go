package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

const (
	defaultAPIBaseURL   = "https://partner.paygate.example/v3"
	defaultOAuthBaseURL = "https://auth.paygate.example/oauth"

	// Scopes requested during merchant authorization. Fixed read-write set
	// covering everything the reconciliation services touch.
	authorizeScopes = "merchants:read merchants:write payments:read payments:write payouts:read payouts:write"

	defaultTimeout = 15 * time.Second
)

// Client is the low-level HTTP wrapper around the processor's Partner API.
// It authenticates with Bearer auth when an OAuth access token is present
// and falls back to Basic auth with the static client id/secret otherwise.
// Every mutating request carries an Idempotence-Key so a retried call is
// safe to repeat on the processor side.
type Client struct {
	baseURL      string
	oauthBaseURL string
	creds        Credentials
	accountID    string
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Partner API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithOAuthBaseURL overrides the OAuth endpoint base URL.
func WithOAuthBaseURL(u string) Option {
	return func(c *Client) { c.oauthBaseURL = strings.TrimRight(u, "/") }
}

// WithAccountID scopes all requests to a specific sub-merchant via the
// X-Account-Id header (Partner API convention).
func WithAccountID(id string) Option {
	return func(c *Client) { c.accountID = strings.TrimSpace(id) }
}

// WithHTTPClient swaps the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient builds a Client from credentials. It fails with a
// ConfigurationError when no authentication material is present.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if creds.IsZero() {
		return nil, &ConfigurationError{Reason: "no access token or client id/secret configured"}
	}

	c := &Client{
		baseURL:      defaultAPIBaseURL,
		oauthBaseURL: defaultOAuthBaseURL,
		creds:        creds,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// do performs one Partner API request and returns the raw response body.
// Non-2xx responses become a *GatewayError carrying the processor's
// structured error code.
func (c *Client) do(ctx context.Context, method, path string, body map[string]interface{}, query url.Values) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	// A caller-supplied idempotence key in the body wins over a generated one.
	idemKey := ""
	if body != nil {
		if v, ok := body["idempotence_key"].(string); ok && strings.TrimSpace(v) != "" {
			idemKey = strings.TrimSpace(v)
			delete(body, "idempotence_key")
		}
	}
	if idemKey == "" {
		idemKey = uuid.NewString()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotence-Key", idemKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accountID != "" {
		req.Header.Set("X-Account-Id", c.accountID)
	}
	if c.creds.HasToken() {
		req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	} else {
		req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("gateway %s %s: reading response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gerr := &GatewayError{
			Status: resp.StatusCode,
			Body:   string(respBody),
		}
		var parsed struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(respBody, &parsed); err == nil {
			gerr.Code = parsed.Code
			gerr.Description = parsed.Description
		}
		// Request/response metadata only; payloads can carry secrets.
		log.Errorf("[Gateway] %s %s failed: status=%d code=%s", method, path, gerr.Status, gerr.Code)
		return nil, gerr
	}

	return respBody, nil
}

// CreateMerchant submits a merchant onboarding application.
func (c *Client) CreateMerchant(ctx context.Context, data map[string]interface{}) (*MerchantObject, error) {
	body, err := c.do(ctx, http.MethodPost, "/merchants", data, nil)
	if err != nil {
		return nil, err
	}
	return ParseMerchant(body)
}

// GetMerchant fetches a merchant by its external id.
func (c *Client) GetMerchant(ctx context.Context, externalID string) (*MerchantObject, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, errors.New("merchant id is required")
	}
	body, err := c.do(ctx, http.MethodGet, "/merchants/"+url.PathEscape(externalID), nil, nil)
	if err != nil {
		return nil, err
	}
	return ParseMerchant(body)
}

// GetMe fetches the identity bound to the configured OAuth token. It is the
// capability-limited fallback for tokens whose scope does not cover
// id-scoped merchant reads.
func (c *Client) GetMe(ctx context.Context) (*MerchantObject, error) {
	body, err := c.do(ctx, http.MethodGet, "/me", nil, nil)
	if err != nil {
		return nil, err
	}
	return ParseMerchant(body)
}

// ListParams filters list requests.
type ListParams struct {
	MerchantID   string
	Status       string
	CreatedAtGte *time.Time
	CreatedAtLte *time.Time
	Cursor       string
	Limit        int
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	if p.MerchantID != "" {
		q.Set("merchant_id", p.MerchantID)
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.CreatedAtGte != nil {
		q.Set("created_at.gte", p.CreatedAtGte.UTC().Format(time.RFC3339))
	}
	if p.CreatedAtLte != nil {
		q.Set("created_at.lte", p.CreatedAtLte.UTC().Format(time.RFC3339))
	}
	if p.Cursor != "" {
		q.Set("cursor", p.Cursor)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

type listEnvelope struct {
	Items      []json.RawMessage `json:"items"`
	NextCursor string            `json:"next_cursor"`
}

// ListPayments lists payments matching the filter.
func (c *Client) ListPayments(ctx context.Context, params ListParams) (*PaymentList, error) {
	body, err := c.do(ctx, http.MethodGet, "/payments", nil, params.values())
	if err != nil {
		return nil, err
	}
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	out := &PaymentList{NextCursor: env.NextCursor}
	for _, raw := range env.Items {
		p, err := ParsePayment(raw)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, *p)
	}
	return out, nil
}

// CreatePayment creates a payment on behalf of the scoped merchant.
func (c *Client) CreatePayment(ctx context.Context, data map[string]interface{}) (*PaymentObject, error) {
	body, err := c.do(ctx, http.MethodPost, "/payments", data, nil)
	if err != nil {
		return nil, err
	}
	return ParsePayment(body)
}

// GetPayment fetches a payment by its external id.
func (c *Client) GetPayment(ctx context.Context, externalID string) (*PaymentObject, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, errors.New("payment id is required")
	}
	body, err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(externalID), nil, nil)
	if err != nil {
		return nil, err
	}
	return ParsePayment(body)
}

// CancelPayment cancels a pending payment.
func (c *Client) CancelPayment(ctx context.Context, externalID string) (*PaymentObject, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, errors.New("payment id is required")
	}
	body, err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(externalID)+"/cancel", map[string]interface{}{}, nil)
	if err != nil {
		return nil, err
	}
	return ParsePayment(body)
}

// CreateRefund refunds a payment (fully or partially).
func (c *Client) CreateRefund(ctx context.Context, data map[string]interface{}) (*RefundObject, error) {
	body, err := c.do(ctx, http.MethodPost, "/refunds", data, nil)
	if err != nil {
		return nil, err
	}
	var r RefundObject
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	r.Raw = append(json.RawMessage(nil), body...)
	return &r, nil
}

// ListPayouts lists payouts matching the filter.
func (c *Client) ListPayouts(ctx context.Context, params ListParams) (*PayoutList, error) {
	body, err := c.do(ctx, http.MethodGet, "/payouts", nil, params.values())
	if err != nil {
		return nil, err
	}
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	out := &PayoutList{NextCursor: env.NextCursor}
	for _, raw := range env.Items {
		p, err := ParsePayout(raw)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, *p)
	}
	return out, nil
}

// ConfirmPayout confirms a scheduled payout.
func (c *Client) ConfirmPayout(ctx context.Context, externalID string) (*PayoutObject, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, errors.New("payout id is required")
	}
	body, err := c.do(ctx, http.MethodPost, "/payouts/"+url.PathEscape(externalID)+"/confirm", map[string]interface{}{}, nil)
	if err != nil {
		return nil, err
	}
	return ParsePayout(body)
}

// ExchangeOAuthCode trades an authorization code for tokens. Authorization
// codes are single-use: this call is never retried by callers.
func (c *Client) ExchangeOAuthCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	if !c.creds.HasBasicAuth() {
		return nil, &ConfigurationError{Reason: "client id/secret required for token exchange"}
	}
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("oauth code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", strings.TrimSpace(code))
	form.Set("client_id", c.creds.ClientID)
	form.Set("client_secret", c.creds.ClientSecret)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthBaseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("token exchange: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gerr := &GatewayError{Status: resp.StatusCode, Body: string(body)}
		var parsed struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil {
			gerr.Code = parsed.Code
			gerr.Description = parsed.Description
		}
		log.Errorf("[Gateway] token exchange failed: status=%d code=%s", gerr.Status, gerr.Code)
		return nil, gerr
	}

	var out TokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, errors.New("token exchange returned empty access_token")
	}
	return &out, nil
}

// BuildAuthorizeURL constructs the three-legged authorization redirect. It
// fails with a ConfigurationError when the client id or callback URL is
// missing.
func BuildAuthorizeURL(oauthBaseURL, clientID, redirectURI, state string) (string, error) {
	if strings.TrimSpace(clientID) == "" {
		return "", &ConfigurationError{Reason: "oauth client id is not configured"}
	}
	if strings.TrimSpace(redirectURI) == "" {
		return "", &ConfigurationError{Reason: "oauth callback url is not configured"}
	}
	if strings.TrimSpace(oauthBaseURL) == "" {
		oauthBaseURL = defaultOAuthBaseURL
	}

	u, err := url.Parse(strings.TrimRight(oauthBaseURL, "/") + "/authorize")
	if err != nil {
		return "", fmt.Errorf("invalid oauth base url: %w", err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", authorizeScopes)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
