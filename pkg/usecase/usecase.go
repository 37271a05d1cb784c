package usecase

import (
	"time"

	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model/config"
	"github.com/socialpulse-lab/socialpulse/pkg/service/cipher"
	"github.com/socialpulse-lab/socialpulse/pkg/service/oauth"
	"github.com/socialpulse-lab/socialpulse/pkg/service/token"
)

type UseCases struct {
	repo     interfaces.Repository
	registry interfaces.ConnectorRegistry
	syncCfg  config.SyncConfig
	now      func() time.Time

	Sync *SyncUseCase
	Auth *AuthUseCase
}

type Option func(*UseCases)

func WithSyncConfig(cfg config.SyncConfig) Option {
	return func(uc *UseCases) {
		uc.syncCfg = cfg.Normalize()
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, registry interfaces.ConnectorRegistry, cipherSvc *cipher.Service, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:     repo,
		registry: registry,
		syncCfg:  config.DefaultSyncConfig(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	tokens := token.New(repo, cipherSvc, registry, token.WithClock(uc.now))
	sessions := oauth.NewSessionStore(oauth.WithClock(uc.now))

	uc.Sync = NewSyncUseCase(repo, registry, tokens, uc.syncCfg, uc.now)
	uc.Auth = NewAuthUseCase(repo, registry, cipherSvc, sessions, uc.now)

	return uc
}
