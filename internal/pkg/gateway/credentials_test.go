package gateway

import (
	"testing"
	"time"
)

func TestCredentialsMergeKeepsExistingOnEmptyIncoming(t *testing.T) {
	existing := Credentials{AccessToken: "old", RefreshToken: "old"}
	incoming := Credentials{AccessToken: "", RefreshToken: "new"}

	merged := existing.Merge(incoming)
	if merged.AccessToken != "old" {
		t.Fatalf("empty incoming access_token must not erase existing, got %q", merged.AccessToken)
	}
	if merged.RefreshToken != "new" {
		t.Fatalf("non-empty incoming refresh_token must win, got %q", merged.RefreshToken)
	}
}

func TestCredentialsMergeTimestamps(t *testing.T) {
	then := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	existing := Credentials{TokenExpiresAt: &then}
	merged := existing.Merge(Credentials{})
	if merged.TokenExpiresAt == nil || !merged.TokenExpiresAt.Equal(then) {
		t.Fatalf("nil incoming expiry must not erase existing")
	}

	merged = existing.Merge(Credentials{TokenExpiresAt: &now})
	if merged.TokenExpiresAt == nil || !merged.TokenExpiresAt.Equal(now) {
		t.Fatalf("incoming expiry must replace existing")
	}
}

func TestCredentialsPredicates(t *testing.T) {
	tests := []struct {
		creds    Credentials
		token    bool
		basic    bool
		zero     bool
	}{
		{creds: Credentials{}, zero: true},
		{creds: Credentials{AccessToken: "tok"}, token: true},
		{creds: Credentials{ClientID: "id", ClientSecret: "sec"}, basic: true},
		{creds: Credentials{ClientID: "id"}, zero: true},
		{creds: Credentials{AccessToken: " "}, zero: true},
	}

	for i, tt := range tests {
		if got := tt.creds.HasToken(); got != tt.token {
			t.Fatalf("case %d: HasToken() = %v, want %v", i, got, tt.token)
		}
		if got := tt.creds.HasBasicAuth(); got != tt.basic {
			t.Fatalf("case %d: HasBasicAuth() = %v, want %v", i, got, tt.basic)
		}
		if got := tt.creds.IsZero(); got != tt.zero {
			t.Fatalf("case %d: IsZero() = %v, want %v", i, got, tt.zero)
		}
	}
}
