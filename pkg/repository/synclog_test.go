package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

func runSyncLogRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	newLog := func(account *model.SocialAccount, startedAt time.Time) *model.SyncLog {
		return model.NewSyncLog(account, startedAt)
	}

	t.Run("Create and GetByID", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		account := newTestAccount("tenant-1", types.PlatformMeta, "ig-1")
		syncLog := newLog(account, time.Now().UTC().Truncate(time.Second))
		gt.NoError(t, repo.SyncLog().Create(ctx, syncLog)).Required()

		got, err := repo.SyncLog().GetByID(ctx, syncLog.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Status).Equal(types.SyncStatusRunning)
		gt.Value(t, got.AccountID).Equal(account.ID)
		gt.Value(t, got.FinishedAt).Nil()
	})

	t.Run("Create rejects duplicate ID", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		account := newTestAccount("tenant-1", types.PlatformMeta, "ig-1")
		syncLog := newLog(account, time.Now().UTC())
		gt.NoError(t, repo.SyncLog().Create(ctx, syncLog)).Required()
		gt.Error(t, repo.SyncLog().Create(ctx, syncLog))
	})

	t.Run("Finalize transitions to a terminal state once", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		account := newTestAccount("tenant-1", types.PlatformMeta, "ig-1")
		syncLog := newLog(account, time.Now().UTC().Truncate(time.Second))
		gt.NoError(t, repo.SyncLog().Create(ctx, syncLog)).Required()

		syncLog.Finalize(types.SyncStatusSuccess, 42, "", time.Now().UTC().Truncate(time.Second))
		gt.NoError(t, repo.SyncLog().Finalize(ctx, syncLog)).Required()

		got, err := repo.SyncLog().GetByID(ctx, syncLog.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Status).Equal(types.SyncStatusSuccess)
		gt.Value(t, got.RowsUpserted).Equal(42)
		gt.Value(t, got.FinishedAt).NotNil()

		// Second finalize is rejected by the store
		gt.Error(t, repo.SyncLog().Finalize(ctx, syncLog))
	})

	t.Run("Failed logs keep the error message", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		account := newTestAccount("tenant-1", types.PlatformTikTok, "tt-1")
		syncLog := newLog(account, time.Now().UTC().Truncate(time.Second))
		gt.NoError(t, repo.SyncLog().Create(ctx, syncLog)).Required()

		syncLog.Finalize(types.SyncStatusFailed, 0, "token refresh failed", time.Now().UTC())
		gt.NoError(t, repo.SyncLog().Finalize(ctx, syncLog)).Required()

		got, err := repo.SyncLog().GetByID(ctx, syncLog.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Status).Equal(types.SyncStatusFailed)
		gt.Value(t, got.ErrorMessage).Equal("token refresh failed")
	})

	t.Run("ListByTenant is newest first with limit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		account := newTestAccount("tenant-1", types.PlatformMeta, "ig-1")
		base := time.Now().UTC().Truncate(time.Second)
		for i := 0; i < 3; i++ {
			syncLog := newLog(account, base.Add(time.Duration(i)*time.Minute))
			gt.NoError(t, repo.SyncLog().Create(ctx, syncLog)).Required()
		}

		logs, err := repo.SyncLog().ListByTenant(ctx, "tenant-1", 2)
		gt.NoError(t, err).Required()
		gt.Array(t, logs).Length(2).Required()
		gt.Bool(t, logs[0].StartedAt.After(logs[1].StartedAt)).True()
	})

	t.Run("ListByAccount isolates accounts", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first := newTestAccount("tenant-1", types.PlatformMeta, "ig-1")
		second := newTestAccount("tenant-1", types.PlatformMeta, "ig-2")
		now := time.Now().UTC().Truncate(time.Second)
		gt.NoError(t, repo.SyncLog().Create(ctx, newLog(first, now))).Required()
		gt.NoError(t, repo.SyncLog().Create(ctx, newLog(second, now))).Required()

		logs, err := repo.SyncLog().ListByAccount(ctx, first.ID, 10)
		gt.NoError(t, err).Required()
		gt.Array(t, logs).Length(1).Required()
		gt.Value(t, logs[0].AccountID).Equal(first.ID)
	})
}

func TestMemorySyncLogRepository(t *testing.T) {
	runSyncLogRepositoryTest(t, newMemoryRepository)
}

func TestFirestoreSyncLogRepository(t *testing.T) {
	runSyncLogRepositoryTest(t, newFirestoreRepository)
}
