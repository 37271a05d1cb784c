package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const syncLogsCollection = "sync_logs"

type syncLogDoc struct {
	ID           string     `firestore:"id"`
	TenantID     string     `firestore:"tenant_id"`
	AccountID    string     `firestore:"account_id"`
	Platform     string     `firestore:"platform"`
	Status       string     `firestore:"status"`
	StartedAt    time.Time  `firestore:"started_at"`
	FinishedAt   *time.Time `firestore:"finished_at"`
	RowsUpserted int        `firestore:"rows_upserted"`
	ErrorMessage string     `firestore:"error_message"`
}

type syncLogRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newSyncLogRepository(client *firestore.Client) *syncLogRepository {
	return &syncLogRepository{client: client}
}

func (r *syncLogRepository) collection() *firestore.CollectionRef {
	if r.collectionPrefix != "" {
		return r.client.Collection(r.collectionPrefix + "_" + syncLogsCollection)
	}
	return r.client.Collection(syncLogsCollection)
}

func (r *syncLogRepository) toDoc(log *model.SyncLog) *syncLogDoc {
	return &syncLogDoc{
		ID:           string(log.ID),
		TenantID:     string(log.TenantID),
		AccountID:    string(log.AccountID),
		Platform:     string(log.Platform),
		Status:       string(log.Status),
		StartedAt:    log.StartedAt,
		FinishedAt:   log.FinishedAt,
		RowsUpserted: log.RowsUpserted,
		ErrorMessage: log.ErrorMessage,
	}
}

func (r *syncLogRepository) fromDoc(doc *syncLogDoc) *model.SyncLog {
	return &model.SyncLog{
		ID:           types.SyncLogID(doc.ID),
		TenantID:     types.TenantID(doc.TenantID),
		AccountID:    types.AccountID(doc.AccountID),
		Platform:     types.Platform(doc.Platform),
		Status:       types.SyncStatus(doc.Status),
		StartedAt:    doc.StartedAt,
		FinishedAt:   doc.FinishedAt,
		RowsUpserted: doc.RowsUpserted,
		ErrorMessage: doc.ErrorMessage,
	}
}

func (r *syncLogRepository) Create(ctx context.Context, log *model.SyncLog) error {
	if _, err := r.collection().Doc(string(log.ID)).Create(ctx, r.toDoc(log)); err != nil {
		return goerr.Wrap(err, "failed to create sync log", goerr.V("sync_log_id", log.ID))
	}
	return nil
}

func (r *syncLogRepository) Finalize(ctx context.Context, log *model.SyncLog) error {
	updates := []firestore.Update{
		{Path: "status", Value: string(log.Status)},
		{Path: "finished_at", Value: log.FinishedAt},
		{Path: "rows_upserted", Value: log.RowsUpserted},
		{Path: "error_message", Value: log.ErrorMessage},
	}

	if _, err := r.collection().Doc(string(log.ID)).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(types.ErrNotFound, "sync log not found", goerr.V("sync_log_id", log.ID))
		}
		return goerr.Wrap(err, "failed to finalize sync log", goerr.V("sync_log_id", log.ID))
	}
	return nil
}

func (r *syncLogRepository) GetByID(ctx context.Context, id types.SyncLogID) (*model.SyncLog, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrNotFound, "sync log not found", goerr.V("sync_log_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get sync log", goerr.V("sync_log_id", id))
	}

	var logDoc syncLogDoc
	if err := doc.DataTo(&logDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal sync log", goerr.V("sync_log_id", id))
	}
	return r.fromDoc(&logDoc), nil
}

func (r *syncLogRepository) ListByTenant(ctx context.Context, tenantID types.TenantID, limit int) ([]*model.SyncLog, error) {
	query := r.collection().
		Where("tenant_id", "==", string(tenantID)).
		OrderBy("started_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.queryLogs(ctx, query)
}

func (r *syncLogRepository) ListByAccount(ctx context.Context, accountID types.AccountID, limit int) ([]*model.SyncLog, error) {
	query := r.collection().
		Where("account_id", "==", string(accountID)).
		OrderBy("started_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.queryLogs(ctx, query)
}

func (r *syncLogRepository) queryLogs(ctx context.Context, query firestore.Query) ([]*model.SyncLog, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var logs []*model.SyncLog
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate sync logs")
		}

		var logDoc syncLogDoc
		if err := doc.DataTo(&logDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal sync log", goerr.V("docID", doc.Ref.ID))
		}
		logs = append(logs, r.fromDoc(&logDoc))
	}
	return logs, nil
}
