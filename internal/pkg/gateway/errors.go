package gateway

import "fmt"

// Error codes returned by the partner API in the body of non-2xx responses.
const (
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeInternal           = "internal_server_error"
)

// ConfigurationError means required authentication material or endpoint
// configuration is missing. It is fatal for the call and never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "gateway configuration error: " + e.Reason
}

// GatewayError is returned for any non-2xx response from the partner API.
// Code carries the processor's structured error code so callers can branch
// on error class instead of matching message text.
type GatewayError struct {
	Status      int
	Code        string
	Description string
	Body        string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway request failed: status=%d code=%s description=%s", e.Status, e.Code, e.Description)
	}
	return fmt.Sprintf("gateway request failed: status=%d body=%s", e.Status, e.Body)
}

// IsAuthError reports whether the failure belongs to the authorization /
// invalid-request class. The merchant sync fallback from the id-scoped
// lookup to the token-scoped "me" lookup keys off this classification.
func (e *GatewayError) IsAuthError() bool {
	switch e.Code {
	case ErrCodeInvalidCredentials, ErrCodeForbidden, ErrCodeInvalidRequest:
		return true
	}
	return e.Status == 401 || e.Status == 403
}

// IsNotFound reports whether the processor answered with a not-found class
// error.
func (e *GatewayError) IsNotFound() bool {
	return e.Code == ErrCodeNotFound || e.Status == 404
}
