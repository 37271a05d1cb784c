package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model/config"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/service/token"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// SyncUseCase runs metric sync batches. A batch fans out over a tenant's
// active accounts with bounded concurrency; one account failing never
// stops the others. Only configuration errors abort a batch.
type SyncUseCase struct {
	repo     interfaces.Repository
	registry interfaces.ConnectorRegistry
	tokens   *token.Manager
	cfg      config.SyncConfig
	now      func() time.Time
}

// BatchResult summarizes one sync batch
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

func NewSyncUseCase(repo interfaces.Repository, registry interfaces.ConnectorRegistry, tokens *token.Manager, cfg config.SyncConfig, now func() time.Time) *SyncUseCase {
	return &SyncUseCase{
		repo:     repo,
		registry: registry,
		tokens:   tokens,
		cfg:      cfg.Normalize(),
		now:      now,
	}
}

// RunTenantSync syncs all active accounts of one tenant, optionally
// filtered to a single platform.
func (uc *SyncUseCase) RunTenantSync(ctx context.Context, tenantID types.TenantID, platform *types.Platform) (*BatchResult, error) {
	accounts, err := uc.repo.Account().ListActive(ctx, tenantID, platform)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list active accounts", goerr.V(types.TenantIDKey, tenantID))
	}
	return uc.runBatch(ctx, accounts)
}

// RunGlobalSync syncs every tenant's active accounts. Used by the
// periodic scheduler.
func (uc *SyncUseCase) RunGlobalSync(ctx context.Context) (*BatchResult, error) {
	tenants, err := uc.repo.Account().ListTenants(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tenants")
	}

	total := &BatchResult{}
	for _, tenantID := range tenants {
		result, err := uc.RunTenantSync(ctx, tenantID, nil)
		if err != nil {
			return total, err
		}
		total.Total += result.Total
		total.Succeeded += result.Succeeded
		total.Failed += result.Failed
		total.Skipped += result.Skipped
	}
	return total, nil
}

func (uc *SyncUseCase) runBatch(ctx context.Context, accounts []*model.SocialAccount) (*BatchResult, error) {
	result := &BatchResult{Total: len(accounts)}
	if len(accounts) == 0 {
		return result, nil
	}

	type outcome int
	const (
		outcomeSucceeded outcome = iota
		outcomeFailed
		outcomeSkipped
	)
	outcomes := make([]outcome, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.Concurrency)
	for i, account := range accounts {
		g.Go(func() error {
			if uc.inCooldown(account) {
				outcomes[i] = outcomeSkipped
				return nil
			}

			err := uc.syncAccount(gctx, account)
			switch {
			case err == nil:
				outcomes[i] = outcomeSucceeded
			case errors.Is(err, types.ErrConfiguration):
				// A broken deployment config poisons every account on the
				// platform; abort instead of burning through the batch.
				outcomes[i] = outcomeFailed
				return err
			default:
				outcomes[i] = outcomeFailed
				logging.From(gctx).Error("account sync failed",
					"tenant_id", account.TenantID,
					"account_id", account.ID,
					"platform", account.Platform,
					"error", err)
			}
			return nil
		})
	}
	err := g.Wait()

	for _, o := range outcomes {
		switch o {
		case outcomeSucceeded:
			result.Succeeded++
		case outcomeFailed:
			result.Failed++
		case outcomeSkipped:
			result.Skipped++
		}
	}
	return result, err
}

// inCooldown reports whether the account synced recently enough that a new
// run would be redundant. This also keeps overlapping batch triggers from
// running the same account twice.
func (uc *SyncUseCase) inCooldown(account *model.SocialAccount) bool {
	if account.LastSyncAt == nil {
		return false
	}
	return uc.now().Sub(*account.LastSyncAt) < uc.cfg.Cooldown
}

// syncAccount runs the full job state machine for one account: create a
// running sync log, obtain a valid token, pull from the platform, persist
// rows, then finalize the log exactly once.
func (uc *SyncUseCase) syncAccount(ctx context.Context, account *model.SocialAccount) error {
	now := uc.now()
	syncLog := model.NewSyncLog(account, now)
	if err := uc.repo.SyncLog().Create(ctx, syncLog); err != nil {
		return goerr.Wrap(err, "failed to create sync log", goerr.V(types.AccountIDKey, account.ID))
	}

	result, err := uc.runJob(ctx, account)
	if err != nil {
		if errors.Is(err, types.ErrAuth) {
			// The platform rejected a token it previously accepted, so the
			// grant was revoked out of band. Flag the account for reconnect
			// instead of retrying a dead credential every cycle.
			if uerr := uc.repo.Account().UpdateAuthStatus(ctx, account.ID, types.AuthStatusRevoked); uerr != nil {
				logging.From(ctx).Error("failed to mark account revoked",
					"account_id", account.ID, "error", uerr)
			}
		}
		syncLog.Finalize(types.SyncStatusFailed, 0, err.Error(), uc.now())
		if ferr := uc.repo.SyncLog().Finalize(ctx, syncLog); ferr != nil {
			logging.From(ctx).Error("failed to finalize sync log",
				"sync_log_id", syncLog.ID, "error", ferr)
		}
		return err
	}

	syncLog.Finalize(types.SyncStatusSuccess, result.RowCount(), "", uc.now())
	if err := uc.repo.SyncLog().Finalize(ctx, syncLog); err != nil {
		return goerr.Wrap(err, "failed to finalize sync log", goerr.V("sync_log_id", syncLog.ID))
	}
	return nil
}

func (uc *SyncUseCase) runJob(ctx context.Context, account *model.SocialAccount) (*model.SyncResult, error) {
	connector, ok := uc.registry.Get(account.Platform)
	if !ok {
		return nil, goerr.Wrap(types.ErrConfiguration, "no connector configured for platform",
			goerr.V(types.PlatformKey, account.Platform))
	}

	oauthToken, err := uc.tokens.ValidToken(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	result, err := connector.Sync(ctx, &model.SyncContext{
		TenantID:          account.TenantID,
		AccountID:         account.ID,
		ExternalAccountID: account.ExternalAccountID,
		AccessToken:       oauthToken.AccessToken,
		RefreshToken:      oauthToken.RefreshToken,
	})
	if err != nil {
		return nil, err
	}

	if account.Platform == types.PlatformLinkedIn {
		if err := uc.reconcileFollowerDeltas(ctx, account, result.DailyMetrics); err != nil {
			return nil, err
		}
	}

	if len(result.DailyMetrics) > 0 {
		if err := uc.repo.Metric().UpsertMany(ctx, result.DailyMetrics); err != nil {
			return nil, goerr.Wrap(err, "failed to upsert daily metrics", goerr.V(types.AccountIDKey, account.ID))
		}
	}
	if len(result.Posts) > 0 {
		if err := uc.repo.Post().UpsertMany(ctx, result.Posts); err != nil {
			return nil, goerr.Wrap(err, "failed to upsert posts", goerr.V(types.AccountIDKey, account.ID))
		}
	}

	if err := uc.repo.Account().UpdateLastSync(ctx, account.ID, uc.now()); err != nil {
		return nil, goerr.Wrap(err, "failed to update last sync time", goerr.V(types.AccountIDKey, account.ID))
	}
	return result, nil
}

// ListLogs returns a tenant's recent sync history, newest first
func (uc *SyncUseCase) ListLogs(ctx context.Context, tenantID types.TenantID, limit int) ([]*model.SyncLog, error) {
	logs, err := uc.repo.SyncLog().ListByTenant(ctx, tenantID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list sync logs", goerr.V(types.TenantIDKey, tenantID))
	}
	return logs, nil
}

// reconcileFollowerDeltas converts LinkedIn's per-day follower gains into
// cumulative totals. The baseline is the last persisted row before the
// window; a brand-new account starts from zero, which undercounts until
// history accumulates.
func (uc *SyncUseCase) reconcileFollowerDeltas(ctx context.Context, account *model.SocialAccount, metrics []*model.DailyMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].Date.Before(metrics[j].Date)
	})

	var baseline int64
	prior, err := uc.repo.Metric().LatestBefore(ctx, account.ID, metrics[0].Date)
	switch {
	case err == nil:
		baseline = prior.Followers
	case errors.Is(err, types.ErrNotFound):
		logging.From(ctx).Warn("no prior follower baseline, starting from zero",
			"account_id", account.ID, "date", metrics[0].Date.Format(model.DateFormat))
	default:
		return goerr.Wrap(err, "failed to load follower baseline", goerr.V(types.AccountIDKey, account.ID))
	}

	running := baseline
	for _, m := range metrics {
		running += m.Followers
		m.Followers = running
	}
	return nil
}
