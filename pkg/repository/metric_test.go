package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

func newTestMetric(accountID types.AccountID, date string, followers int64) *model.DailyMetric {
	d, err := time.Parse(model.DateFormat, date)
	if err != nil {
		panic(err)
	}
	return &model.DailyMetric{
		TenantID:  "tenant-1",
		Platform:  types.PlatformMeta,
		AccountID: accountID,
		Date:      d,
		Followers: followers,
	}
}

func runMetricRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Upsert is idempotent per day", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		accountID := types.NewAccountID()

		gt.NoError(t, repo.Metric().Upsert(ctx, newTestMetric(accountID, "2025-06-01", 100))).Required()
		gt.NoError(t, repo.Metric().Upsert(ctx, newTestMetric(accountID, "2025-06-01", 120))).Required()

		from, _ := time.Parse(model.DateFormat, "2025-06-01")
		metrics, err := repo.Metric().ListRange(ctx, accountID, from, from)
		gt.NoError(t, err).Required()
		gt.Array(t, metrics).Length(1).Required()
		gt.Value(t, metrics[0].Followers).Equal(int64(120))
	})

	t.Run("ListRange is inclusive and sorted ascending", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		accountID := types.NewAccountID()

		gt.NoError(t, repo.Metric().UpsertMany(ctx, []*model.DailyMetric{
			newTestMetric(accountID, "2025-06-03", 103),
			newTestMetric(accountID, "2025-06-01", 101),
			newTestMetric(accountID, "2025-06-02", 102),
			newTestMetric(accountID, "2025-06-05", 105),
		})).Required()

		from, _ := time.Parse(model.DateFormat, "2025-06-01")
		to, _ := time.Parse(model.DateFormat, "2025-06-03")
		metrics, err := repo.Metric().ListRange(ctx, accountID, from, to)
		gt.NoError(t, err).Required()
		gt.Array(t, metrics).Length(3).Required()
		gt.Value(t, metrics[0].Followers).Equal(int64(101))
		gt.Value(t, metrics[1].Followers).Equal(int64(102))
		gt.Value(t, metrics[2].Followers).Equal(int64(103))
	})

	t.Run("LatestBefore returns the newest prior row", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		accountID := types.NewAccountID()

		gt.NoError(t, repo.Metric().UpsertMany(ctx, []*model.DailyMetric{
			newTestMetric(accountID, "2025-06-01", 101),
			newTestMetric(accountID, "2025-06-04", 104),
			newTestMetric(accountID, "2025-06-07", 107),
		})).Required()

		before, _ := time.Parse(model.DateFormat, "2025-06-07")
		latest, err := repo.Metric().LatestBefore(ctx, accountID, before)
		gt.NoError(t, err).Required()
		gt.Value(t, latest.Followers).Equal(int64(104))
	})

	t.Run("LatestBefore with no history", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		before, _ := time.Parse(model.DateFormat, "2025-06-07")
		_, err := repo.Metric().LatestBefore(ctx, types.NewAccountID(), before)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, types.ErrNotFound)).True()
	})

	t.Run("Rows are isolated per account", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		a := types.NewAccountID()
		b := types.NewAccountID()

		gt.NoError(t, repo.Metric().Upsert(ctx, newTestMetric(a, "2025-06-01", 10))).Required()
		gt.NoError(t, repo.Metric().Upsert(ctx, newTestMetric(b, "2025-06-01", 20))).Required()

		from, _ := time.Parse(model.DateFormat, "2025-06-01")
		metrics, err := repo.Metric().ListRange(ctx, a, from, from)
		gt.NoError(t, err).Required()
		gt.Array(t, metrics).Length(1).Required()
		gt.Value(t, metrics[0].Followers).Equal(int64(10))
	})
}

func TestMemoryMetricRepository(t *testing.T) {
	runMetricRepositoryTest(t, newMemoryRepository)
}

func TestFirestoreMetricRepository(t *testing.T) {
	runMetricRepositoryTest(t, newFirestoreRepository)
}
