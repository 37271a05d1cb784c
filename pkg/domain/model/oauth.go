package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

// OAuthSession correlates an OAuth redirect back to the initiating tenant.
// Sessions are single-use and expire after a short TTL.
type OAuthSession struct {
	State    types.OAuthState
	TenantID types.TenantID
	Platform types.Platform
	// CodeVerifier is set only for PKCE platforms (TikTok, Twitter).
	CodeVerifier string
	IssuedAt     time.Time
}

// Validate checks if the OAuth session is valid
func (s *OAuthSession) Validate() error {
	if s.State == "" {
		return goerr.New("OAuth state is empty")
	}
	if err := s.TenantID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid tenant ID")
	}
	if !s.Platform.IsValid() {
		return goerr.New("invalid platform", goerr.V(types.PlatformKey, s.Platform))
	}
	return nil
}

// Expired reports whether the session passed its TTL at the given time
func (s *OAuthSession) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.IssuedAt) > ttl
}

// ExternalProfile identifies the platform-side account behind a token
type ExternalProfile struct {
	ID   string
	Name string
}

// SyncContext carries everything a connector needs for one account sync.
// Tokens are plaintext here; decryption happened in the token manager.
type SyncContext struct {
	TenantID          types.TenantID
	AccountID         types.AccountID
	ExternalAccountID string
	AccessToken       string
	RefreshToken      string
}

// OAuthToken is the plaintext result of a token exchange or refresh.
// It exists only in memory; persistence goes through the cipher.
type OAuthToken struct {
	AccessToken  string
	RefreshToken string
	// ExpiresAt is nil when the platform issues non-expiring tokens.
	ExpiresAt *time.Time
}
