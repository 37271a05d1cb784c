package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

type syncLogRepository struct {
	mu   sync.RWMutex
	logs map[types.SyncLogID]*model.SyncLog
}

func newSyncLogRepository() *syncLogRepository {
	return &syncLogRepository{
		logs: make(map[types.SyncLogID]*model.SyncLog),
	}
}

func (r *syncLogRepository) Create(ctx context.Context, log *model.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.logs[log.ID]; ok {
		return goerr.New("sync log already exists", goerr.V("sync_log_id", log.ID))
	}
	copied := *log
	r.logs[log.ID] = &copied
	return nil
}

func (r *syncLogRepository) Finalize(ctx context.Context, log *model.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.logs[log.ID]
	if !ok {
		return goerr.Wrap(types.ErrNotFound, "sync log not found", goerr.V("sync_log_id", log.ID))
	}
	if existing.Status.IsFinal() {
		return goerr.New("sync log already finalized", goerr.V("sync_log_id", log.ID))
	}
	copied := *log
	r.logs[log.ID] = &copied
	return nil
}

func (r *syncLogRepository) GetByID(ctx context.Context, id types.SyncLogID) (*model.SyncLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log, ok := r.logs[id]
	if !ok {
		return nil, goerr.Wrap(types.ErrNotFound, "sync log not found", goerr.V("sync_log_id", id))
	}
	copied := *log
	return &copied, nil
}

func (r *syncLogRepository) ListByTenant(ctx context.Context, tenantID types.TenantID, limit int) ([]*model.SyncLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var logs []*model.SyncLog
	for _, log := range r.logs {
		if log.TenantID != tenantID {
			continue
		}
		copied := *log
		logs = append(logs, &copied)
	}
	return sortAndLimit(logs, limit), nil
}

func (r *syncLogRepository) ListByAccount(ctx context.Context, accountID types.AccountID, limit int) ([]*model.SyncLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var logs []*model.SyncLog
	for _, log := range r.logs {
		if log.AccountID != accountID {
			continue
		}
		copied := *log
		logs = append(logs, &copied)
	}
	return sortAndLimit(logs, limit), nil
}

// sortAndLimit orders logs newest-first and truncates to limit (0 = all)
func sortAndLimit(logs []*model.SyncLog, limit int) []*model.SyncLog {
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].StartedAt.After(logs[j].StartedAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs
}
