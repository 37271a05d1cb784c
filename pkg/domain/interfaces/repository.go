package interfaces

import (
	"context"
	"time"

	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

// Repository defines the interface for data persistence
type Repository interface {
	Account() AccountRepository
	SyncLog() SyncLogRepository
	Metric() MetricRepository
	Post() PostRepository

	Close() error
}

// AccountRepository persists social accounts
type AccountRepository interface {
	// Upsert writes an account keyed by (tenant, platform, external account ID).
	// The OAuth callback path uses this so reconnecting replaces credentials
	// instead of duplicating the account.
	Upsert(ctx context.Context, account *model.SocialAccount) error

	GetByID(ctx context.Context, id types.AccountID) (*model.SocialAccount, error)
	GetByExternalID(ctx context.Context, tenantID types.TenantID, platform types.Platform, externalID string) (*model.SocialAccount, error)

	// ListActive returns active accounts for a tenant, optionally filtered to one platform
	ListActive(ctx context.Context, tenantID types.TenantID, platform *types.Platform) ([]*model.SocialAccount, error)
	ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.SocialAccount, error)

	// ListTenants returns all tenants with at least one account
	ListTenants(ctx context.Context) ([]types.TenantID, error)

	UpdateTokens(ctx context.Context, id types.AccountID, accessTokenEnc, refreshTokenEnc string, expiresAt *time.Time) error
	UpdateAuthStatus(ctx context.Context, id types.AccountID, status types.AuthStatus) error
	UpdateLastSync(ctx context.Context, id types.AccountID, at time.Time) error
}

// SyncLogRepository persists sync attempt records (append-only history)
type SyncLogRepository interface {
	Create(ctx context.Context, log *model.SyncLog) error
	// Finalize writes the terminal state of a log created earlier
	Finalize(ctx context.Context, log *model.SyncLog) error

	GetByID(ctx context.Context, id types.SyncLogID) (*model.SyncLog, error)
	ListByTenant(ctx context.Context, tenantID types.TenantID, limit int) ([]*model.SyncLog, error)
	ListByAccount(ctx context.Context, accountID types.AccountID, limit int) ([]*model.SyncLog, error)
}

// MetricRepository persists daily metric rows keyed by (tenant, platform, account, date)
type MetricRepository interface {
	Upsert(ctx context.Context, metric *model.DailyMetric) error
	UpsertMany(ctx context.Context, metrics []*model.DailyMetric) error

	// LatestBefore returns the most recent row strictly before the given date,
	// used to seed LinkedIn follower-delta reconciliation.
	LatestBefore(ctx context.Context, accountID types.AccountID, before time.Time) (*model.DailyMetric, error)
	ListRange(ctx context.Context, accountID types.AccountID, from, to time.Time) ([]*model.DailyMetric, error)
}

// PostRepository persists post rows keyed by (tenant, platform, account, external post ID)
type PostRepository interface {
	Upsert(ctx context.Context, post *model.Post) error
	UpsertMany(ctx context.Context, posts []*model.Post) error

	ListByAccount(ctx context.Context, accountID types.AccountID, limit int) ([]*model.Post, error)
}
