package interfaces

import (
	"context"

	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

// Connector is the uniform contract each platform integration implements.
// The five variants form a closed set dispatched by platform value.
type Connector interface {
	Platform() types.Platform

	// Sync pulls account-level daily metrics and recent posts. All failures
	// surface through the shared error taxonomy (types.ErrAuth etc.) so the
	// orchestrator's handling stays uniform across platforms.
	Sync(ctx context.Context, sc *model.SyncContext) (*model.SyncResult, error)

	// AuthURL builds the platform's authorization URL. codeChallenge is
	// empty for platforms that do not use PKCE.
	AuthURL(state types.OAuthState, codeChallenge string) string

	// ExchangeCode trades an authorization code for tokens and fetches the
	// external profile the account will be keyed by. codeVerifier is empty
	// for non-PKCE platforms.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*model.OAuthToken, *model.ExternalProfile, error)

	// RefreshToken rotates an access token using the stored refresh token
	RefreshToken(ctx context.Context, refreshToken string) (*model.OAuthToken, error)
}

// ConnectorRegistry resolves the connector for a platform
type ConnectorRegistry interface {
	Get(platform types.Platform) (Connector, bool)
}
