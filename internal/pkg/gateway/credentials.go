package gateway

import (
	"strings"
	"time"
)

// Credentials is the typed credential bag stored per merchant. Static
// client id/secret pairs authenticate platform-level calls (Basic auth);
// the OAuth token pair authenticates merchant-scoped calls (Bearer auth).
type Credentials struct {
	ClientID       string     `json:"client_id,omitempty"`
	ClientSecret   string     `json:"client_secret,omitempty"`
	AccessToken    string     `json:"access_token,omitempty"`
	RefreshToken   string     `json:"refresh_token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	AuthorizedAt   *time.Time `json:"authorized_at,omitempty"`
}

// Merge folds incoming credentials into the receiver. Empty incoming fields
// never erase existing values, so a partial API response cannot clobber a
// previously stored secret.
func (c Credentials) Merge(in Credentials) Credentials {
	out := c
	if strings.TrimSpace(in.ClientID) != "" {
		out.ClientID = in.ClientID
	}
	if strings.TrimSpace(in.ClientSecret) != "" {
		out.ClientSecret = in.ClientSecret
	}
	if strings.TrimSpace(in.AccessToken) != "" {
		out.AccessToken = in.AccessToken
	}
	if strings.TrimSpace(in.RefreshToken) != "" {
		out.RefreshToken = in.RefreshToken
	}
	if in.TokenExpiresAt != nil {
		out.TokenExpiresAt = in.TokenExpiresAt
	}
	if in.AuthorizedAt != nil {
		out.AuthorizedAt = in.AuthorizedAt
	}
	return out
}

// HasToken reports whether an OAuth access token is present.
func (c Credentials) HasToken() bool {
	return strings.TrimSpace(c.AccessToken) != ""
}

// HasBasicAuth reports whether a static client id/secret pair is present.
func (c Credentials) HasBasicAuth() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// IsZero reports whether no authentication material is present at all.
func (c Credentials) IsZero() bool {
	return !c.HasToken() && !c.HasBasicAuth()
}
