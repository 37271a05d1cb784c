package memory

import (
	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is the in-process repository used for development and tests
type Memory struct {
	account *accountRepository
	syncLog *syncLogRepository
	metric  *metricRepository
	post    *postRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		account: newAccountRepository(),
		syncLog: newSyncLogRepository(),
		metric:  newMetricRepository(),
		post:    newPostRepository(),
	}
}

func (m *Memory) Account() interfaces.AccountRepository {
	return m.account
}

func (m *Memory) SyncLog() interfaces.SyncLogRepository {
	return m.syncLog
}

func (m *Memory) Metric() interfaces.MetricRepository {
	return m.metric
}

func (m *Memory) Post() interfaces.PostRepository {
	return m.post
}

func (m *Memory) Close() error {
	return nil
}
