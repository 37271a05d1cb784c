package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

type metricRepository struct {
	mu      sync.RWMutex
	metrics map[string]*model.DailyMetric
}

func newMetricRepository() *metricRepository {
	return &metricRepository{
		metrics: make(map[string]*model.DailyMetric),
	}
}

func (r *metricRepository) Upsert(ctx context.Context, metric *model.DailyMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *metric
	r.metrics[metric.Key()] = &copied
	return nil
}

func (r *metricRepository) UpsertMany(ctx context.Context, metrics []*model.DailyMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, metric := range metrics {
		copied := *metric
		r.metrics[metric.Key()] = &copied
	}
	return nil
}

func (r *metricRepository) LatestBefore(ctx context.Context, accountID types.AccountID, before time.Time) (*model.DailyMetric, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.DailyMetric
	for _, metric := range r.metrics {
		if metric.AccountID != accountID || !metric.Date.Before(before) {
			continue
		}
		if latest == nil || metric.Date.After(latest.Date) {
			latest = metric
		}
	}
	if latest == nil {
		return nil, types.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *metricRepository) ListRange(ctx context.Context, accountID types.AccountID, from, to time.Time) ([]*model.DailyMetric, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var metrics []*model.DailyMetric
	for _, metric := range r.metrics {
		if metric.AccountID != accountID {
			continue
		}
		if metric.Date.Before(from) || metric.Date.After(to) {
			continue
		}
		copied := *metric
		metrics = append(metrics, &copied)
	}
	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].Date.Before(metrics[j].Date)
	})
	return metrics, nil
}
