package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"google.golang.org/api/iterator"
)

const dailyMetricsCollection = "daily_metrics"

type dailyMetricDoc struct {
	TenantID    string         `firestore:"tenant_id"`
	Platform    string         `firestore:"platform"`
	AccountID   string         `firestore:"account_id"`
	Date        time.Time      `firestore:"date"`
	Followers   int64          `firestore:"followers"`
	Impressions int64          `firestore:"impressions"`
	Reach       int64          `firestore:"reach"`
	Engagements int64          `firestore:"engagements"`
	Views       int64          `firestore:"views"`
	WatchTime   int64          `firestore:"watch_time"`
	PostsCount  int64          `firestore:"posts_count"`
	Raw         map[string]any `firestore:"raw"`
}

type metricRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newMetricRepository(client *firestore.Client) *metricRepository {
	return &metricRepository{client: client}
}

func (r *metricRepository) collection() *firestore.CollectionRef {
	if r.collectionPrefix != "" {
		return r.client.Collection(r.collectionPrefix + "_" + dailyMetricsCollection)
	}
	return r.client.Collection(dailyMetricsCollection)
}

func (r *metricRepository) toDoc(metric *model.DailyMetric) *dailyMetricDoc {
	return &dailyMetricDoc{
		TenantID:    string(metric.TenantID),
		Platform:    string(metric.Platform),
		AccountID:   string(metric.AccountID),
		Date:        metric.Date,
		Followers:   metric.Followers,
		Impressions: metric.Impressions,
		Reach:       metric.Reach,
		Engagements: metric.Engagements,
		Views:       metric.Views,
		WatchTime:   metric.WatchTime,
		PostsCount:  metric.PostsCount,
		Raw:         metric.Raw,
	}
}

func (r *metricRepository) fromDoc(doc *dailyMetricDoc) *model.DailyMetric {
	return &model.DailyMetric{
		TenantID:    types.TenantID(doc.TenantID),
		Platform:    types.Platform(doc.Platform),
		AccountID:   types.AccountID(doc.AccountID),
		Date:        doc.Date,
		Followers:   doc.Followers,
		Impressions: doc.Impressions,
		Reach:       doc.Reach,
		Engagements: doc.Engagements,
		Views:       doc.Views,
		WatchTime:   doc.WatchTime,
		PostsCount:  doc.PostsCount,
		Raw:         doc.Raw,
	}
}

// Upsert writes the row under its deterministic composite-key document ID,
// so re-syncing the same day replaces the document in place.
func (r *metricRepository) Upsert(ctx context.Context, metric *model.DailyMetric) error {
	if _, err := r.collection().Doc(docID(metric.Key())).Set(ctx, r.toDoc(metric)); err != nil {
		return goerr.Wrap(err, "failed to upsert daily metric", goerr.V("key", metric.Key()))
	}
	return nil
}

func (r *metricRepository) UpsertMany(ctx context.Context, metrics []*model.DailyMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	bw := r.client.BulkWriter(ctx)
	for _, metric := range metrics {
		if _, err := bw.Set(r.collection().Doc(docID(metric.Key())), r.toDoc(metric)); err != nil {
			return goerr.Wrap(err, "failed to enqueue daily metric write", goerr.V("key", metric.Key()))
		}
	}
	bw.End()
	return nil
}

func (r *metricRepository) LatestBefore(ctx context.Context, accountID types.AccountID, before time.Time) (*model.DailyMetric, error) {
	iter := r.collection().
		Where("account_id", "==", string(accountID)).
		Where("date", "<", before).
		OrderBy("date", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(types.ErrNotFound, "no prior daily metric", goerr.V(types.AccountIDKey, accountID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query daily metrics", goerr.V(types.AccountIDKey, accountID))
	}

	var metricDoc dailyMetricDoc
	if err := doc.DataTo(&metricDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal daily metric", goerr.V("docID", doc.Ref.ID))
	}
	return r.fromDoc(&metricDoc), nil
}

func (r *metricRepository) ListRange(ctx context.Context, accountID types.AccountID, from, to time.Time) ([]*model.DailyMetric, error) {
	iter := r.collection().
		Where("account_id", "==", string(accountID)).
		Where("date", ">=", from).
		Where("date", "<=", to).
		OrderBy("date", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var metrics []*model.DailyMetric
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate daily metrics", goerr.V(types.AccountIDKey, accountID))
		}

		var metricDoc dailyMetricDoc
		if err := doc.DataTo(&metricDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal daily metric", goerr.V("docID", doc.Ref.ID))
		}
		metrics = append(metrics, r.fromDoc(&metricDoc))
	}
	return metrics, nil
}
