package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/afterhours/backend/internal/domain/user"
	"github.com/afterhours/backend/internal/entitlement"
)

type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
	}
}

func (r *UsersRepo) Create(_ context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if strings.EqualFold(existing.Email, u.Email) {
			return user.User{}, user.ErrEmailTaken
		}
		if existing.Username == u.Username {
			return user.User{}, user.ErrUsernameTaken
		}
	}

	r.items[u.ID] = u

	return u, nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	u, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByUsername(_ context.Context, username string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.Username == username {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

// EnsureTrialEnd only writes when trialEnd is still unset.
func (r *UsersRepo) EnsureTrialEnd(_ context.Context, id string, trialEnd time.Time) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if u.TrialEnd == nil {
		t := trialEnd
		u.TrialEnd = &t
		u.UpdatedAt = time.Now().UTC()
		r.items[id] = u
	}

	return u, nil
}

func (r *UsersRepo) UpdateProfile(_ context.Context, id string, p user.Profile) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	u.Profile = p
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return u, nil
}

func (r *UsersRepo) ListLapsedUserIDs(_ context.Context, now time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0)
	for id, u := range r.items {
		if entitlement.Lapsed(u.Subscriber, u.TrialEnd, now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	return ids, nil
}

// Put stores u as-is. Seeding helper for tests and local runs; skips uniqueness checks.
func (r *UsersRepo) Put(u user.User) {
	r.mu.Lock()
	r.items[u.ID] = u
	r.mu.Unlock()
}

// Delete removes a user record. There is no API for this; tests use it to simulate a
// record vanishing after a token was issued.
func (r *UsersRepo) Delete(id string) {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
}

func (r *UsersRepo) usernameOf(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items[id].Username
}
