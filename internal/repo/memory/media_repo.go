package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/afterhours/backend/internal/domain/media"
)

type MediaRepo struct {
	mu    sync.RWMutex
	items []media.Item
	users *UsersRepo
}

func NewMediaRepo(users *UsersRepo) *MediaRepo {
	return &MediaRepo{users: users}
}

func (r *MediaRepo) Create(_ context.Context, item media.Item) (media.Item, error) {
	r.mu.Lock()
	r.items = append(r.items, item)
	r.mu.Unlock()

	if r.users != nil {
		item.Username = r.users.usernameOf(item.UserID)
	}
	return item, nil
}

func (r *MediaRepo) List(_ context.Context, kind media.Kind) ([]media.Item, error) {
	r.mu.RLock()
	out := make([]media.Item, 0, len(r.items))
	for _, it := range r.items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if r.users != nil {
		for i := range out {
			out[i].Username = r.users.usernameOf(out[i].UserID)
		}
	}

	return out, nil
}
