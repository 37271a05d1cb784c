package token

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/service/cipher"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/logging"
)

// defaultRefreshSkew refreshes tokens this far before their actual expiry,
// so a token never expires mid-sync.
const defaultRefreshSkew = 5 * time.Minute

// Manager hands out currently-valid plaintext access tokens for accounts,
// refreshing proactively when expiry is imminent.
type Manager struct {
	repo        interfaces.Repository
	cipher      *cipher.Service
	connectors  interfaces.ConnectorRegistry
	refreshSkew time.Duration
	now         func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithRefreshSkew overrides the proactive refresh window
func WithRefreshSkew(d time.Duration) Option {
	return func(m *Manager) {
		m.refreshSkew = d
	}
}

// WithClock overrides the time source for tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a token Manager
func New(repo interfaces.Repository, cipherSvc *cipher.Service, connectors interfaces.ConnectorRegistry, opts ...Option) *Manager {
	m := &Manager{
		repo:        repo,
		cipher:      cipherSvc,
		connectors:  connectors,
		refreshSkew: defaultRefreshSkew,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ValidToken returns decrypted, currently-valid tokens for the account.
// When the stored access token is expired or near expiry it runs the
// platform's refresh flow and persists the rotated ciphertext first.
// A failed refresh marks the account expired and returns ErrTokenRefresh.
func (m *Manager) ValidToken(ctx context.Context, accountID types.AccountID) (*model.OAuthToken, error) {
	account, err := m.repo.Account().GetByID(ctx, accountID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load account for token", goerr.V(types.AccountIDKey, accountID))
	}

	accessToken, err := m.cipher.Decrypt(account.AccessTokenEnc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decrypt access token", goerr.V(types.AccountIDKey, accountID))
	}

	var refreshToken string
	if account.RefreshTokenEnc != "" {
		refreshToken, err = m.cipher.Decrypt(account.RefreshTokenEnc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decrypt refresh token", goerr.V(types.AccountIDKey, accountID))
		}
	}

	if !account.TokenExpiresWithin(m.refreshSkew, m.now()) {
		return &model.OAuthToken{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    account.TokenExpiresAt,
		}, nil
	}

	return m.refresh(ctx, account, refreshToken)
}

func (m *Manager) refresh(ctx context.Context, account *model.SocialAccount, refreshToken string) (*model.OAuthToken, error) {
	logging.From(ctx).Info("refreshing access token",
		"account_id", account.ID,
		"platform", account.Platform,
		"expires_at", account.TokenExpiresAt)

	connector, ok := m.connectors.Get(account.Platform)
	if !ok {
		return nil, goerr.Wrap(types.ErrConfiguration, "no connector registered",
			goerr.V(types.PlatformKey, account.Platform))
	}

	if refreshToken == "" {
		return nil, m.markExpired(ctx, account,
			goerr.Wrap(types.ErrTokenRefresh, "token expired and no refresh token stored",
				goerr.V(types.AccountIDKey, account.ID)))
	}

	rotated, err := connector.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, m.markExpired(ctx, account,
			goerr.Wrap(types.ErrTokenRefresh, "platform refused token refresh",
				goerr.V(types.AccountIDKey, account.ID),
				goerr.V(types.PlatformKey, account.Platform),
				goerr.V("cause", err.Error())))
	}

	// Platforms that do not rotate refresh tokens keep the stored one
	if rotated.RefreshToken == "" {
		rotated.RefreshToken = refreshToken
	}

	accessEnc, err := m.cipher.Encrypt(rotated.AccessToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encrypt refreshed access token", goerr.V(types.AccountIDKey, account.ID))
	}
	refreshEnc, err := m.cipher.Encrypt(rotated.RefreshToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encrypt refreshed refresh token", goerr.V(types.AccountIDKey, account.ID))
	}

	if err := m.repo.Account().UpdateTokens(ctx, account.ID, accessEnc, refreshEnc, rotated.ExpiresAt); err != nil {
		return nil, goerr.Wrap(err, "failed to persist refreshed tokens", goerr.V(types.AccountIDKey, account.ID))
	}

	return rotated, nil
}

// markExpired flags the account so the UI can prompt a reconnect. The
// original refresh error is what callers see; a status-update failure is
// only logged.
func (m *Manager) markExpired(ctx context.Context, account *model.SocialAccount, refreshErr error) error {
	if err := m.repo.Account().UpdateAuthStatus(ctx, account.ID, types.AuthStatusExpired); err != nil {
		logging.From(ctx).Error("failed to mark account expired",
			"account_id", account.ID,
			"error", err.Error())
	}
	return refreshErr
}
