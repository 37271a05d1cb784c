package model

import (
	"time"

	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

// SyncLog is one row per (account, sync attempt). Created at job start,
// finalized exactly once at job end, never updated afterwards.
type SyncLog struct {
	ID         types.SyncLogID
	TenantID   types.TenantID
	AccountID  types.AccountID
	Platform   types.Platform
	Status     types.SyncStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	// RowsUpserted counts metric rows plus post rows written by the job.
	RowsUpserted int
	ErrorMessage string
}

// NewSyncLog creates a running sync log for the given account
func NewSyncLog(account *SocialAccount, now time.Time) *SyncLog {
	return &SyncLog{
		ID:        types.NewSyncLogID(),
		TenantID:  account.TenantID,
		AccountID: account.ID,
		Platform:  account.Platform,
		Status:    types.SyncStatusRunning,
		StartedAt: now,
	}
}

// Finalize transitions the log to a terminal state. A log is finalized at
// most once; subsequent calls are ignored.
func (l *SyncLog) Finalize(status types.SyncStatus, rowsUpserted int, errMsg string, now time.Time) {
	if l.Status.IsFinal() {
		return
	}
	l.Status = status
	l.RowsUpserted = rowsUpserted
	l.ErrorMessage = errMsg
	l.FinishedAt = &now
}
