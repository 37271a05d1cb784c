package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

// SocialAccount is a connected platform account owned by a tenant.
// Token fields hold ciphertext produced by the cipher service; plaintext
// tokens never touch the repository.
type SocialAccount struct {
	ID                types.AccountID
	TenantID          types.TenantID
	Platform          types.Platform
	ExternalAccountID string
	AccountName       string

	AccessTokenEnc  string
	RefreshTokenEnc string
	// TokenExpiresAt is nil for platforms that issue non-expiring tokens.
	TokenExpiresAt *time.Time

	AuthStatus types.AuthStatus
	LastSyncAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks if the social account is valid
func (a *SocialAccount) Validate() error {
	if err := a.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid account ID")
	}
	if err := a.TenantID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid tenant ID")
	}
	if !a.Platform.IsValid() {
		return goerr.New("invalid platform", goerr.V(types.PlatformKey, a.Platform))
	}
	if a.ExternalAccountID == "" {
		return goerr.New("external account ID is required", goerr.V(types.AccountIDKey, a.ID))
	}
	if !a.AuthStatus.IsValid() {
		return goerr.New("invalid auth status", goerr.V("auth_status", a.AuthStatus))
	}
	return nil
}

// TokenExpiresWithin reports whether the access token expires within the
// given window. Accounts with no expiry never expire.
func (a *SocialAccount) TokenExpiresWithin(window time.Duration, now time.Time) bool {
	if a.TokenExpiresAt == nil {
		return false
	}
	return !a.TokenExpiresAt.After(now.Add(window))
}
