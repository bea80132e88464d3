package content_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/afterhours/backend/internal/content"
	"github.com/afterhours/backend/internal/domain/post"
	"github.com/afterhours/backend/internal/domain/user"
	"github.com/afterhours/backend/internal/repo/memory"
	"github.com/afterhours/backend/internal/sweep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	now   time.Time
	users *memory.UsersRepo
	posts *memory.PostsRepo
	svc   *content.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{now: time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	f.users = memory.NewUsersRepo()
	f.posts = memory.NewPostsRepo(f.users)
	sweeper := sweep.New(sweep.Config{}, f.users, f.posts, clock, nil, log)
	f.svc = content.NewService(f.posts, f.users, sweeper, clock, log)

	return f
}

func (f *fixture) addUser(id string, subscriber bool, trialEnd *time.Time) {
	f.users.Put(user.User{
		ID:         id,
		Username:   "u-" + id,
		Email:      id + "@example.com",
		Subscriber: subscriber,
		TrialEnd:   trialEnd,
		CreatedAt:  f.now,
	})
}

func (f *fixture) trialUser(id string) {
	end := f.now.Add(72 * time.Hour)
	f.addUser(id, false, &end)
}

func (f *fixture) mustCreate(t *testing.T, requester, title string) post.Post {
	t.Helper()
	p, err := f.svc.Create(context.Background(), requester, post.CreatePostRequest{Title: title, Content: "body of " + title})
	require.NoError(t, err)
	return p
}

func ptr(t time.Time) *time.Time { return &t }

func TestCreate_InTrialStoresPostForRequester(t *testing.T) {
	f := newFixture(t)
	f.trialUser("alice")

	p := f.mustCreate(t, "alice", "hello")

	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, "u-alice", p.Author)
	assert.Equal(t, 1, f.posts.CountByUser("alice"))
}

func TestCreate_LapsedUserIsDeniedAndPurged(t *testing.T) {
	f := newFixture(t)
	f.trialUser("alice")
	f.mustCreate(t, "alice", "one")
	f.mustCreate(t, "alice", "two")

	f.now = f.now.Add(73 * time.Hour)

	_, err := f.svc.Create(context.Background(), "alice", post.CreatePostRequest{Title: "three", Content: "x"})

	var denied *content.EntitlementError
	require.True(t, errors.As(err, &denied), "got %v", err)
	assert.Equal(t, int64(2), denied.Purged)
	assert.Equal(t, 0, f.posts.CountByUser("alice"))

	// nothing left to delete on the next attempt
	_, err = f.svc.Create(context.Background(), "alice", post.CreatePostRequest{Title: "four", Content: "x"})
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, int64(0), denied.Purged)
}

func TestList_LapsedRequesterLosesOwnPostsOnly(t *testing.T) {
	f := newFixture(t)
	f.trialUser("alice")
	f.addUser("bob", true, nil)

	f.mustCreate(t, "alice", "a1")
	f.mustCreate(t, "alice", "a2")
	f.mustCreate(t, "bob", "b1")

	// still inside the trial: nothing is removed
	items, err := f.svc.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, items, 3)

	f.now = f.now.Add(73 * time.Hour)

	items, err = f.svc.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "bob", items[0].UserID)
	assert.Equal(t, 0, f.posts.CountByUser("alice"))
}

func TestList_AnonymousNeverDeletes(t *testing.T) {
	f := newFixture(t)
	f.trialUser("alice")
	f.mustCreate(t, "alice", "a1")

	f.now = f.now.Add(100 * time.Hour)

	items, err := f.svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, f.posts.CountByUser("alice"))
}

func TestList_SubscriberWithPastTrialKeepsPosts(t *testing.T) {
	f := newFixture(t)
	f.trialUser("alice")
	f.mustCreate(t, "alice", "a1")

	f.now = f.now.Add(100 * time.Hour)
	f.addUser("alice", true, ptr(f.now.Add(-28*time.Hour)))

	items, err := f.svc.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = f.svc.Create(context.Background(), "alice", post.CreatePostRequest{Title: "more", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.posts.CountByUser("alice"))
}

func TestList_UnprovisionedTrialCountsAsNoAccess(t *testing.T) {
	f := newFixture(t)
	f.trialUser("alice")
	f.mustCreate(t, "alice", "a1")
	f.addUser("alice", false, nil)

	items, err := f.svc.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreate_ExactlyAtTrialEndIsAllowed(t *testing.T) {
	f := newFixture(t)
	f.addUser("alice", false, ptr(f.now))

	_, err := f.svc.Create(context.Background(), "alice", post.CreatePostRequest{Title: "edge", Content: "x"})
	require.NoError(t, err)

	f.now = f.now.Add(time.Nanosecond)
	_, err = f.svc.Create(context.Background(), "alice", post.CreatePostRequest{Title: "late", Content: "x"})

	var denied *content.EntitlementError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, int64(1), denied.Purged)
}

func TestCreate_VanishedRequester(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), "ghost", post.CreatePostRequest{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, user.ErrNotFound)

	_, err = f.svc.List(context.Background(), "ghost")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestUpdate_OrderingAndPartialFields(t *testing.T) {
	f := newFixture(t)
	f.trialUser("alice")
	f.trialUser("bob")
	p := f.mustCreate(t, "alice", "original")

	_, err := f.svc.Update(context.Background(), "bob", "missing-id", post.UpdatePostRequest{Title: "x"})
	assert.ErrorIs(t, err, post.ErrNotFound)

	_, err = f.svc.Update(context.Background(), "bob", p.ID, post.UpdatePostRequest{Title: "hijack"})
	assert.ErrorIs(t, err, content.ErrNotOwner)

	updated, err := f.svc.Update(context.Background(), "alice", p.ID, post.UpdatePostRequest{Title: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, "body of original", updated.Content)
	assert.Equal(t, "alice", updated.UserID)

	updated, err = f.svc.Update(context.Background(), "alice", p.ID, post.UpdatePostRequest{Title: "   ", Content: "  new body  "})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title, "blank title keeps the stored value")
	assert.Equal(t, "new body", updated.Content)
}

func TestDelete_OrderingAndOwnership(t *testing.T) {
	f := newFixture(t)
	f.trialUser("alice")
	f.trialUser("bob")
	p := f.mustCreate(t, "alice", "mine")

	assert.ErrorIs(t, f.svc.Delete(context.Background(), "alice", "missing-id"), post.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), "bob", p.ID), content.ErrNotOwner)
	assert.Equal(t, 1, f.posts.CountByUser("alice"))

	require.NoError(t, f.svc.Delete(context.Background(), "alice", p.ID))
	assert.Equal(t, 0, f.posts.CountByUser("alice"))
}

func TestCleanupExpired_OnlyLapsedNonSubscribers(t *testing.T) {
	f := newFixture(t)
	f.trialUser("lapsing")
	f.addUser("subscriber", true, nil)
	f.trialUser("fresh")

	f.mustCreate(t, "lapsing", "l1")
	f.mustCreate(t, "lapsing", "l2")
	f.mustCreate(t, "subscriber", "s1")

	f.now = f.now.Add(80 * time.Hour)
	f.trialUser("fresh")
	f.mustCreate(t, "fresh", "f1")
	f.addUser("nil-trial", false, nil)

	res, err := f.svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Deleted)
	assert.Equal(t, 1, res.ExpiredUsers)

	assert.Equal(t, 1, f.posts.CountByUser("subscriber"))
	assert.Equal(t, 1, f.posts.CountByUser("fresh"))

	again, err := f.svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.Deleted)
}
