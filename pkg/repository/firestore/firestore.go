package firestore

import (
	"context"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
)

type Firestore struct {
	client  *firestore.Client
	account *accountRepository
	syncLog *syncLogRepository
	metric  *metricRepository
	post    *postRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces all collections (used by integration tests)
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.account.collectionPrefix = prefix
		f.syncLog.collectionPrefix = prefix
		f.metric.collectionPrefix = prefix
		f.post.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("projectID", projectID))
	}

	f := &Firestore{
		client:  client,
		account: newAccountRepository(client),
		syncLog: newSyncLogRepository(client),
		metric:  newMetricRepository(client),
		post:    newPostRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Account() interfaces.AccountRepository {
	return f.account
}

func (f *Firestore) SyncLog() interfaces.SyncLogRepository {
	return f.syncLog
}

func (f *Firestore) Metric() interfaces.MetricRepository {
	return f.metric
}

func (f *Firestore) Post() interfaces.PostRepository {
	return f.post
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// docID sanitizes a composite key for use as a Firestore document ID.
// External IDs may contain "/", which Firestore treats as a path separator.
func docID(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}
