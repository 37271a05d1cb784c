package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/service/cipher"
	"github.com/socialpulse-lab/socialpulse/pkg/service/oauth"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/logging"
)

// AuthUseCase drives the OAuth connect flow: issue an authorization URL,
// then turn the provider callback into a connected account with encrypted
// tokens at rest.
type AuthUseCase struct {
	repo     interfaces.Repository
	registry interfaces.ConnectorRegistry
	cipher   *cipher.Service
	sessions *oauth.SessionStore
	now      func() time.Time
}

func NewAuthUseCase(repo interfaces.Repository, registry interfaces.ConnectorRegistry, cipherSvc *cipher.Service, sessions *oauth.SessionStore, now func() time.Time) *AuthUseCase {
	return &AuthUseCase{
		repo:     repo,
		registry: registry,
		cipher:   cipherSvc,
		sessions: sessions,
		now:      now,
	}
}

// ConnectURL issues a state-bound authorization URL for the tenant
func (uc *AuthUseCase) ConnectURL(ctx context.Context, tenantID types.TenantID, platform types.Platform) (string, error) {
	connector, ok := uc.registry.Get(platform)
	if !ok {
		return "", goerr.Wrap(types.ErrConfiguration, "platform is not configured",
			goerr.V(types.PlatformKey, platform))
	}

	session, err := uc.sessions.Issue(tenantID, platform)
	if err != nil {
		return "", goerr.Wrap(err, "failed to issue OAuth session")
	}

	codeChallenge := ""
	if session.CodeVerifier != "" {
		codeChallenge = oauth.CodeChallenge(session.CodeVerifier)
	}
	return connector.AuthURL(session.State, codeChallenge), nil
}

// ListAccounts returns every connected account of a tenant
func (uc *AuthUseCase) ListAccounts(ctx context.Context, tenantID types.TenantID) ([]*model.SocialAccount, error) {
	accounts, err := uc.repo.Account().ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list accounts", goerr.V(types.TenantIDKey, tenantID))
	}
	return accounts, nil
}

// HandleCallback consumes the state, exchanges the code and upserts the
// account. Reconnecting an already-connected account replaces its tokens
// and reactivates it.
func (uc *AuthUseCase) HandleCallback(ctx context.Context, state types.OAuthState, code string) (*model.SocialAccount, error) {
	session, err := uc.sessions.Consume(state)
	if err != nil {
		return nil, err
	}

	connector, ok := uc.registry.Get(session.Platform)
	if !ok {
		return nil, goerr.Wrap(types.ErrConfiguration, "platform is not configured",
			goerr.V(types.PlatformKey, session.Platform))
	}

	oauthToken, profile, err := connector.ExchangeCode(ctx, code, session.CodeVerifier)
	if err != nil {
		return nil, goerr.Wrap(err, "code exchange failed",
			goerr.V(types.PlatformKey, session.Platform),
			goerr.V(types.TenantIDKey, session.TenantID))
	}

	accessEnc, err := uc.cipher.Encrypt(oauthToken.AccessToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encrypt access token")
	}
	refreshEnc := ""
	if oauthToken.RefreshToken != "" {
		if refreshEnc, err = uc.cipher.Encrypt(oauthToken.RefreshToken); err != nil {
			return nil, goerr.Wrap(err, "failed to encrypt refresh token")
		}
	}

	now := uc.now()
	account := &model.SocialAccount{
		ID:                types.NewAccountID(),
		TenantID:          session.TenantID,
		Platform:          session.Platform,
		ExternalAccountID: profile.ID,
		AccountName:       profile.Name,
		AccessTokenEnc:    accessEnc,
		RefreshTokenEnc:   refreshEnc,
		TokenExpiresAt:    oauthToken.ExpiresAt,
		AuthStatus:        types.AuthStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}

	if err := uc.repo.Account().Upsert(ctx, account); err != nil {
		return nil, goerr.Wrap(err, "failed to store account",
			goerr.V(types.TenantIDKey, session.TenantID))
	}

	logging.From(ctx).Info("account connected",
		"tenant_id", session.TenantID,
		"platform", session.Platform,
		"account_name", profile.Name)

	// Upsert may have kept an existing account ID for a reconnect
	stored, err := uc.repo.Account().GetByExternalID(ctx, session.TenantID, session.Platform, profile.ID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load stored account")
	}
	return stored, nil
}
