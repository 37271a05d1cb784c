package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

type postRepository struct {
	mu    sync.RWMutex
	posts map[string]*model.Post
}

func newPostRepository() *postRepository {
	return &postRepository{
		posts: make(map[string]*model.Post),
	}
}

func (r *postRepository) Upsert(ctx context.Context, post *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *post
	r.posts[post.Key()] = &copied
	return nil
}

func (r *postRepository) UpsertMany(ctx context.Context, posts []*model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, post := range posts {
		copied := *post
		r.posts[post.Key()] = &copied
	}
	return nil
}

func (r *postRepository) ListByAccount(ctx context.Context, accountID types.AccountID, limit int) ([]*model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var posts []*model.Post
	for _, post := range r.posts {
		if post.AccountID != accountID {
			continue
		}
		copied := *post
		posts = append(posts, &copied)
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].PostedAt.After(posts[j].PostedAt)
	})
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}
