package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/afterhours/backend/internal/domain/post"
)

type PostsRepo struct {
	mu    sync.RWMutex
	items map[string]post.Post
	users *UsersRepo
}

// users is optional and only used to fill Author on read.
func NewPostsRepo(users *UsersRepo) *PostsRepo {
	return &PostsRepo{
		items: make(map[string]post.Post),
		users: users,
	}
}

func (r *PostsRepo) Create(_ context.Context, p post.Post) (post.Post, error) {
	r.mu.Lock()
	r.items[p.ID] = p
	r.mu.Unlock()

	return r.withAuthor(p), nil
}

func (r *PostsRepo) GetByID(_ context.Context, id string) (post.Post, error) {
	r.mu.RLock()
	p, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return post.Post{}, post.ErrNotFound
	}
	return r.withAuthor(p), nil
}

// newest first
func (r *PostsRepo) List(_ context.Context) ([]post.Post, error) {
	r.mu.RLock()
	out := make([]post.Post, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	for i := range out {
		out[i] = r.withAuthor(out[i])
	}

	return out, nil
}

func (r *PostsRepo) Update(_ context.Context, id string, title, content string) (post.Post, error) {
	r.mu.Lock()
	p, ok := r.items[id]
	if !ok {
		r.mu.Unlock()
		return post.Post{}, post.ErrNotFound
	}

	p.Title = title
	p.Content = content
	p.UpdatedAt = time.Now().UTC()
	r.items[id] = p
	r.mu.Unlock()

	return r.withAuthor(p), nil
}

func (r *PostsRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return post.ErrNotFound
	}
	delete(r.items, id)

	return nil
}

func (r *PostsRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return r.DeleteByUsers(ctx, []string{userID})
}

func (r *PostsRepo) DeleteByUsers(_ context.Context, userIDs []string) (int64, error) {
	owners := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		owners[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, p := range r.items {
		if _, ok := owners[p.UserID]; ok {
			delete(r.items, id)
			n++
		}
	}

	return n, nil
}

// CountByUser is a test helper.
func (r *PostsRepo) CountByUser(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.items {
		if p.UserID == userID {
			n++
		}
	}
	return n
}

func (r *PostsRepo) withAuthor(p post.Post) post.Post {
	if r.users != nil {
		p.Author = r.users.usernameOf(p.UserID)
	}
	return p
}
