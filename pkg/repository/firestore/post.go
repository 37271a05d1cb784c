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

const postsCollection = "posts"

type postDoc struct {
	TenantID       string         `firestore:"tenant_id"`
	Platform       string         `firestore:"platform"`
	AccountID      string         `firestore:"account_id"`
	ExternalPostID string         `firestore:"external_post_id"`
	PostedAt       time.Time      `firestore:"posted_at"`
	Caption        string         `firestore:"caption"`
	MediaType      string         `firestore:"media_type"`
	MediaURL       string         `firestore:"media_url"`
	ThumbnailURL   string         `firestore:"thumbnail_url"`
	Metrics        map[string]any `firestore:"metrics"`
	Raw            map[string]any `firestore:"raw"`
}

type postRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newPostRepository(client *firestore.Client) *postRepository {
	return &postRepository{client: client}
}

func (r *postRepository) collection() *firestore.CollectionRef {
	if r.collectionPrefix != "" {
		return r.client.Collection(r.collectionPrefix + "_" + postsCollection)
	}
	return r.client.Collection(postsCollection)
}

func (r *postRepository) toDoc(post *model.Post) *postDoc {
	return &postDoc{
		TenantID:       string(post.TenantID),
		Platform:       string(post.Platform),
		AccountID:      string(post.AccountID),
		ExternalPostID: post.ExternalPostID,
		PostedAt:       post.PostedAt,
		Caption:        post.Caption,
		MediaType:      post.MediaType,
		MediaURL:       post.MediaURL,
		ThumbnailURL:   post.ThumbnailURL,
		Metrics:        post.Metrics,
		Raw:            post.Raw,
	}
}

func (r *postRepository) fromDoc(doc *postDoc) *model.Post {
	return &model.Post{
		TenantID:       types.TenantID(doc.TenantID),
		Platform:       types.Platform(doc.Platform),
		AccountID:      types.AccountID(doc.AccountID),
		ExternalPostID: doc.ExternalPostID,
		PostedAt:       doc.PostedAt,
		Caption:        doc.Caption,
		MediaType:      doc.MediaType,
		MediaURL:       doc.MediaURL,
		ThumbnailURL:   doc.ThumbnailURL,
		Metrics:        doc.Metrics,
		Raw:            doc.Raw,
	}
}

func (r *postRepository) Upsert(ctx context.Context, post *model.Post) error {
	if _, err := r.collection().Doc(docID(post.Key())).Set(ctx, r.toDoc(post)); err != nil {
		return goerr.Wrap(err, "failed to upsert post", goerr.V("key", post.Key()))
	}
	return nil
}

func (r *postRepository) UpsertMany(ctx context.Context, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	bw := r.client.BulkWriter(ctx)
	for _, post := range posts {
		if _, err := bw.Set(r.collection().Doc(docID(post.Key())), r.toDoc(post)); err != nil {
			return goerr.Wrap(err, "failed to enqueue post write", goerr.V("key", post.Key()))
		}
	}
	bw.End()
	return nil
}

func (r *postRepository) ListByAccount(ctx context.Context, accountID types.AccountID, limit int) ([]*model.Post, error) {
	query := r.collection().
		Where("account_id", "==", string(accountID)).
		OrderBy("posted_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var posts []*model.Post
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate posts", goerr.V(types.AccountIDKey, accountID))
		}

		var pd postDoc
		if err := doc.DataTo(&pd); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal post", goerr.V("docID", doc.Ref.ID))
		}
		posts = append(posts, r.fromDoc(&pd))
	}
	return posts, nil
}
