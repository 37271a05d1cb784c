package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model/config"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/repository/memory"
	"github.com/socialpulse-lab/socialpulse/pkg/service/cipher"
	"github.com/socialpulse-lab/socialpulse/pkg/service/token"
	"github.com/socialpulse-lab/socialpulse/pkg/usecase"
)

type fakeConnector struct {
	platform  types.Platform
	syncCalls int
	syncFn    func(sc *model.SyncContext) (*model.SyncResult, error)
}

func (f *fakeConnector) Platform() types.Platform { return f.platform }

func (f *fakeConnector) Sync(ctx context.Context, sc *model.SyncContext) (*model.SyncResult, error) {
	f.syncCalls++
	if f.syncFn != nil {
		return f.syncFn(sc)
	}
	return &model.SyncResult{}, nil
}

func (f *fakeConnector) AuthURL(state types.OAuthState, codeChallenge string) string {
	return "https://example.com/auth?state=" + state.String()
}

func (f *fakeConnector) ExchangeCode(ctx context.Context, code, codeVerifier string) (*model.OAuthToken, *model.ExternalProfile, error) {
	return &model.OAuthToken{AccessToken: "exchanged-" + code},
		&model.ExternalProfile{ID: "ext-" + code, Name: "Test Account"}, nil
}

func (f *fakeConnector) RefreshToken(ctx context.Context, refreshToken string) (*model.OAuthToken, error) {
	return nil, goerr.Wrap(types.ErrAuth, "refresh always fails in this fake")
}

type fakeRegistry map[types.Platform]interfaces.Connector

func (r fakeRegistry) Get(platform types.Platform) (interfaces.Connector, bool) {
	c, ok := r[platform]
	return c, ok
}

type fixture struct {
	repo      interfaces.Repository
	cipher    *cipher.Service
	registry  fakeRegistry
	now       time.Time
	cfg       config.SyncConfig
	connector *fakeConnector
}

func newFixture(t *testing.T, platform types.Platform) *fixture {
	t.Helper()

	cipherSvc, err := cipher.New("test-secret")
	gt.NoError(t, err).Required()

	connector := &fakeConnector{platform: platform}
	return &fixture{
		repo:      memory.New(),
		cipher:    cipherSvc,
		registry:  fakeRegistry{platform: connector},
		now:       time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		cfg:       config.DefaultSyncConfig(),
		connector: connector,
	}
}

func (f *fixture) newSyncUseCase() *usecase.SyncUseCase {
	clock := func() time.Time { return f.now }
	tokens := token.New(f.repo, f.cipher, f.registry, token.WithClock(clock))
	return usecase.NewSyncUseCase(f.repo, f.registry, tokens, f.cfg, clock)
}

func (f *fixture) seedAccount(t *testing.T, platform types.Platform, externalID string) *model.SocialAccount {
	t.Helper()

	accessEnc, err := f.cipher.Encrypt("access-" + externalID)
	gt.NoError(t, err).Required()

	account := &model.SocialAccount{
		ID:                types.NewAccountID(),
		TenantID:          "tenant-a",
		Platform:          platform,
		ExternalAccountID: externalID,
		AccountName:       "Account " + externalID,
		AccessTokenEnc:    accessEnc,
		AuthStatus:        types.AuthStatusActive,
		CreatedAt:         f.now,
		UpdatedAt:         f.now,
	}
	gt.NoError(t, f.repo.Account().Upsert(context.Background(), account)).Required()
	return account
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse(model.DateFormat, value)
	gt.NoError(t, err).Required()
	return d
}

func metricRow(account *model.SocialAccount, date time.Time, followers int64) *model.DailyMetric {
	return &model.DailyMetric{
		TenantID:  account.TenantID,
		Platform:  account.Platform,
		AccountID: account.ID,
		Date:      date,
		Followers: followers,
	}
}

func TestRunTenantSyncPersistsRowsAndLog(t *testing.T) {
	f := newFixture(t, types.PlatformMeta)
	account := f.seedAccount(t, types.PlatformMeta, "ig-1")

	f.connector.syncFn = func(sc *model.SyncContext) (*model.SyncResult, error) {
		gt.Value(t, sc.AccessToken).Equal("access-ig-1")
		gt.Value(t, sc.ExternalAccountID).Equal("ig-1")
		return &model.SyncResult{
			DailyMetrics: []*model.DailyMetric{
				metricRow(account, day(t, "2025-06-09"), 1000),
			},
			Posts: []*model.Post{{
				TenantID:       account.TenantID,
				Platform:       account.Platform,
				AccountID:      account.ID,
				ExternalPostID: "post-1",
				Metrics:        map[string]any{"likes": 12},
			}},
		}, nil
	}

	uc := f.newSyncUseCase()
	result, err := uc.RunTenantSync(context.Background(), "tenant-a", nil)
	gt.NoError(t, err).Required()
	gt.Value(t, result.Total).Equal(1)
	gt.Value(t, result.Succeeded).Equal(1)
	gt.Value(t, result.Failed).Equal(0)

	logs, err := f.repo.SyncLog().ListByAccount(context.Background(), account.ID, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, logs).Length(1)
	gt.Value(t, logs[0].Status).Equal(types.SyncStatusSuccess)
	gt.Value(t, logs[0].RowsUpserted).Equal(2)
	gt.Value(t, logs[0].FinishedAt).NotNil()

	stored, err := f.repo.Account().GetByID(context.Background(), account.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.LastSyncAt).NotNil()

	posts, err := f.repo.Post().ListByAccount(context.Background(), account.ID, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, posts).Length(1)
}

func TestRunTenantSyncIsIdempotent(t *testing.T) {
	f := newFixture(t, types.PlatformMeta)
	account := f.seedAccount(t, types.PlatformMeta, "ig-1")

	f.connector.syncFn = func(sc *model.SyncContext) (*model.SyncResult, error) {
		return &model.SyncResult{
			DailyMetrics: []*model.DailyMetric{
				metricRow(account, day(t, "2025-06-09"), 1000),
			},
			Posts: []*model.Post{{
				TenantID:       account.TenantID,
				Platform:       account.Platform,
				AccountID:      account.ID,
				ExternalPostID: "post-1",
			}},
		}, nil
	}

	uc := f.newSyncUseCase()
	_, err := uc.RunTenantSync(context.Background(), "tenant-a", nil)
	gt.NoError(t, err).Required()

	// Second run past the cooldown writes the same keys again
	f.now = f.now.Add(time.Hour)
	_, err = uc.RunTenantSync(context.Background(), "tenant-a", nil)
	gt.NoError(t, err).Required()
	gt.Value(t, f.connector.syncCalls).Equal(2)

	metrics, err := f.repo.Metric().ListRange(context.Background(), account.ID,
		day(t, "2025-06-01"), day(t, "2025-06-30"))
	gt.NoError(t, err).Required()
	gt.Array(t, metrics).Length(1)

	posts, err := f.repo.Post().ListByAccount(context.Background(), account.ID, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, posts).Length(1)
}

func TestRunTenantSyncIsolatesAccountFailures(t *testing.T) {
	f := newFixture(t, types.PlatformMeta)
	f.seedAccount(t, types.PlatformMeta, "ig-1")
	broken := f.seedAccount(t, types.PlatformMeta, "ig-2")
	f.seedAccount(t, types.PlatformMeta, "ig-3")

	f.connector.syncFn = func(sc *model.SyncContext) (*model.SyncResult, error) {
		if sc.ExternalAccountID == "ig-2" {
			return nil, goerr.Wrap(types.ErrTransient, "platform outage")
		}
		return &model.SyncResult{}, nil
	}

	uc := f.newSyncUseCase()
	result, err := uc.RunTenantSync(context.Background(), "tenant-a", nil)
	gt.NoError(t, err).Required()
	gt.Value(t, result.Total).Equal(3)
	gt.Value(t, result.Succeeded).Equal(2)
	gt.Value(t, result.Failed).Equal(1)

	logs, err := f.repo.SyncLog().ListByAccount(context.Background(), broken.ID, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, logs).Length(1)
	gt.Value(t, logs[0].Status).Equal(types.SyncStatusFailed)
	gt.Value(t, logs[0].ErrorMessage).NotEqual("")
}

func TestRunTenantSyncAbortsOnConfigurationError(t *testing.T) {
	f := newFixture(t, types.PlatformMeta)
	// The account's platform has no connector in the registry
	f.seedAccount(t, types.PlatformTwitter, "tw-1")

	uc := f.newSyncUseCase()
	_, err := uc.RunTenantSync(context.Background(), "tenant-a", nil)
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, types.ErrConfiguration)).True()
}

func TestRunTenantSyncSkipsAccountsInCooldown(t *testing.T) {
	f := newFixture(t, types.PlatformMeta)
	account := f.seedAccount(t, types.PlatformMeta, "ig-1")

	recent := f.now.Add(-time.Minute)
	gt.NoError(t, f.repo.Account().UpdateLastSync(context.Background(), account.ID, recent)).Required()

	uc := f.newSyncUseCase()
	result, err := uc.RunTenantSync(context.Background(), "tenant-a", nil)
	gt.NoError(t, err).Required()
	gt.Value(t, result.Skipped).Equal(1)
	gt.Value(t, f.connector.syncCalls).Equal(0)
}

func TestRunTenantSyncPlatformFilter(t *testing.T) {
	f := newFixture(t, types.PlatformMeta)
	f.seedAccount(t, types.PlatformMeta, "ig-1")

	platform := types.PlatformTikTok
	result, err := f.newSyncUseCase().RunTenantSync(context.Background(), "tenant-a", &platform)
	gt.NoError(t, err).Required()
	gt.Value(t, result.Total).Equal(0)
	gt.Value(t, f.connector.syncCalls).Equal(0)
}

func TestRefreshFailureProducesFailedLogWithoutSync(t *testing.T) {
	f := newFixture(t, types.PlatformMeta)

	// Token near expiry with a refresh token forces the refresh path,
	// and the fake connector always refuses refreshes.
	accessEnc, err := f.cipher.Encrypt("stale-access")
	gt.NoError(t, err).Required()
	refreshEnc, err := f.cipher.Encrypt("stale-refresh")
	gt.NoError(t, err).Required()
	expiry := f.now.Add(time.Minute)
	account := &model.SocialAccount{
		ID:                types.NewAccountID(),
		TenantID:          "tenant-a",
		Platform:          types.PlatformMeta,
		ExternalAccountID: "ig-1",
		AccessTokenEnc:    accessEnc,
		RefreshTokenEnc:   refreshEnc,
		TokenExpiresAt:    &expiry,
		AuthStatus:        types.AuthStatusActive,
	}
	gt.NoError(t, f.repo.Account().Upsert(context.Background(), account)).Required()

	result, err := f.newSyncUseCase().RunTenantSync(context.Background(), "tenant-a", nil)
	gt.NoError(t, err).Required()
	gt.Value(t, result.Failed).Equal(1)
	gt.Value(t, f.connector.syncCalls).Equal(0)

	stored, err := f.repo.Account().GetByID(context.Background(), account.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.AuthStatus).Equal(types.AuthStatusExpired)

	logs, err := f.repo.SyncLog().ListByAccount(context.Background(), account.ID, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, logs).Length(1)
	gt.Value(t, logs[0].Status).Equal(types.SyncStatusFailed)
}

func TestConnectorAuthFailureMarksAccountRevoked(t *testing.T) {
	f := newFixture(t, types.PlatformMeta)
	account := f.seedAccount(t, types.PlatformMeta, "ig-1")

	// The stored token is still within its lifetime, but the platform
	// rejects it mid-sync: the user revoked the grant out of band.
	f.connector.syncFn = func(sc *model.SyncContext) (*model.SyncResult, error) {
		return nil, goerr.Wrap(types.ErrAuth, "token revoked by user")
	}

	result, err := f.newSyncUseCase().RunTenantSync(context.Background(), "tenant-a", nil)
	gt.NoError(t, err).Required()
	gt.Value(t, result.Failed).Equal(1)
	gt.Value(t, f.connector.syncCalls).Equal(1)

	stored, err := f.repo.Account().GetByID(context.Background(), account.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.AuthStatus).Equal(types.AuthStatusRevoked)

	logs, err := f.repo.SyncLog().ListByAccount(context.Background(), account.ID, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, logs).Length(1)
	gt.Value(t, logs[0].Status).Equal(types.SyncStatusFailed)
}

func TestTransientFailureKeepsAccountActive(t *testing.T) {
	f := newFixture(t, types.PlatformMeta)
	account := f.seedAccount(t, types.PlatformMeta, "ig-1")

	f.connector.syncFn = func(sc *model.SyncContext) (*model.SyncResult, error) {
		return nil, goerr.Wrap(types.ErrTransient, "platform had a bad day")
	}

	result, err := f.newSyncUseCase().RunTenantSync(context.Background(), "tenant-a", nil)
	gt.NoError(t, err).Required()
	gt.Value(t, result.Failed).Equal(1)

	stored, err := f.repo.Account().GetByID(context.Background(), account.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.AuthStatus).Equal(types.AuthStatusActive)
}

func TestLinkedInDeltasBecomeCumulative(t *testing.T) {
	f := newFixture(t, types.PlatformLinkedIn)
	account := f.seedAccount(t, types.PlatformLinkedIn, "urn-1")

	// Last persisted total before the window
	gt.NoError(t, f.repo.Metric().Upsert(context.Background(),
		metricRow(account, day(t, "2025-06-06"), 100))).Required()

	f.connector.syncFn = func(sc *model.SyncContext) (*model.SyncResult, error) {
		return &model.SyncResult{
			DailyMetrics: []*model.DailyMetric{
				metricRow(account, day(t, "2025-06-07"), 5),
				metricRow(account, day(t, "2025-06-08"), -2),
				metricRow(account, day(t, "2025-06-09"), 10),
			},
		}, nil
	}

	_, err := f.newSyncUseCase().RunTenantSync(context.Background(), "tenant-a", nil)
	gt.NoError(t, err).Required()

	metrics, err := f.repo.Metric().ListRange(context.Background(), account.ID,
		day(t, "2025-06-07"), day(t, "2025-06-09"))
	gt.NoError(t, err).Required()
	gt.Array(t, metrics).Length(3).Required()
	gt.Value(t, metrics[0].Followers).Equal(int64(105))
	gt.Value(t, metrics[1].Followers).Equal(int64(103))
	gt.Value(t, metrics[2].Followers).Equal(int64(113))
}

func TestLinkedInDeltasWithoutBaselineStartFromZero(t *testing.T) {
	f := newFixture(t, types.PlatformLinkedIn)
	account := f.seedAccount(t, types.PlatformLinkedIn, "urn-1")

	f.connector.syncFn = func(sc *model.SyncContext) (*model.SyncResult, error) {
		return &model.SyncResult{
			DailyMetrics: []*model.DailyMetric{
				metricRow(account, day(t, "2025-06-08"), 7),
				metricRow(account, day(t, "2025-06-09"), 3),
			},
		}, nil
	}

	_, err := f.newSyncUseCase().RunTenantSync(context.Background(), "tenant-a", nil)
	gt.NoError(t, err).Required()

	metrics, err := f.repo.Metric().ListRange(context.Background(), account.ID,
		day(t, "2025-06-08"), day(t, "2025-06-09"))
	gt.NoError(t, err).Required()
	gt.Array(t, metrics).Length(2).Required()
	gt.Value(t, metrics[0].Followers).Equal(int64(7))
	gt.Value(t, metrics[1].Followers).Equal(int64(10))
}

func TestNonLinkedInFollowersAreStoredAsIs(t *testing.T) {
	f := newFixture(t, types.PlatformYouTube)
	account := f.seedAccount(t, types.PlatformYouTube, "chan-1")

	gt.NoError(t, f.repo.Metric().Upsert(context.Background(),
		metricRow(account, day(t, "2025-06-08"), 100))).Required()

	f.connector.syncFn = func(sc *model.SyncContext) (*model.SyncResult, error) {
		return &model.SyncResult{
			DailyMetrics: []*model.DailyMetric{
				metricRow(account, day(t, "2025-06-09"), 5000),
			},
		}, nil
	}

	_, err := f.newSyncUseCase().RunTenantSync(context.Background(), "tenant-a", nil)
	gt.NoError(t, err).Required()

	metrics, err := f.repo.Metric().ListRange(context.Background(), account.ID,
		day(t, "2025-06-09"), day(t, "2025-06-09"))
	gt.NoError(t, err).Required()
	gt.Array(t, metrics).Length(1).Required()
	gt.Value(t, metrics[0].Followers).Equal(int64(5000))
}

func TestRunGlobalSyncCoversAllTenants(t *testing.T) {
	f := newFixture(t, types.PlatformMeta)
	f.seedAccount(t, types.PlatformMeta, "ig-1")

	other := &model.SocialAccount{
		ID:                types.NewAccountID(),
		TenantID:          "tenant-b",
		Platform:          types.PlatformMeta,
		ExternalAccountID: "ig-9",
		AuthStatus:        types.AuthStatusActive,
	}
	accessEnc, err := f.cipher.Encrypt("access-ig-9")
	gt.NoError(t, err).Required()
	other.AccessTokenEnc = accessEnc
	gt.NoError(t, f.repo.Account().Upsert(context.Background(), other)).Required()

	result, err := f.newSyncUseCase().RunGlobalSync(context.Background())
	gt.NoError(t, err).Required()
	gt.Value(t, result.Total).Equal(2)
	gt.Value(t, result.Succeeded).Equal(2)
	gt.Value(t, f.connector.syncCalls).Equal(2)
}
