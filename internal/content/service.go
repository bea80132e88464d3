// Package content owns the post lifecycle: ownership checks, entitlement-gated
// creation, and the cascading purge of a lapsed user's posts.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/afterhours/backend/internal/domain/post"
	"github.com/afterhours/backend/internal/domain/user"
	"github.com/afterhours/backend/internal/entitlement"
	"github.com/afterhours/backend/internal/sweep"
)

var ErrNotOwner = errors.New("not the owner of this post")

// EntitlementError is returned by Create for a lapsed user, after their posts were purged.
type EntitlementError struct {
	Purged int64
}

func (e *EntitlementError) Error() string {
	return fmt.Sprintf("trial expired: %d posts removed", e.Purged)
}

type PostStore interface {
	Create(ctx context.Context, p post.Post) (post.Post, error)
	GetByID(ctx context.Context, id string) (post.Post, error)
	List(ctx context.Context) ([]post.Post, error)
	Update(ctx context.Context, id string, title, content string) (post.Post, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type UserReader interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type ExpiredSweeper interface {
	RunOnce(ctx context.Context) (sweep.Result, error)
}

type Service struct {
	posts   PostStore
	users   UserReader
	sweeper ExpiredSweeper
	clock   entitlement.Clock
	log     *slog.Logger
}

func NewService(posts PostStore, users UserReader, sweeper ExpiredSweeper, clock entitlement.Clock, log *slog.Logger) *Service {
	if clock == nil {
		clock = entitlement.SystemClock
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		posts:   posts,
		users:   users,
		sweeper: sweeper,
		clock:   clock,
		log:     log,
	}
}

// List returns every post. A lapsed requester's own posts are deleted first, on every call.
// An empty requesterID is an anonymous caller and never triggers a purge.
func (s *Service) List(ctx context.Context, requesterID string) ([]post.Post, error) {
	if requesterID != "" {
		_, _, err := s.reconcile(ctx, requesterID)
		if err != nil {
			return nil, err
		}
	}

	items, err := s.posts.List(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "list posts failed", "op", "posts.list", "user_id", requesterID, "err", err)
		return nil, fmt.Errorf("posts.list: %w", err)
	}

	return items, nil
}

func (s *Service) Create(ctx context.Context, requesterID string, req post.CreatePostRequest) (post.Post, error) {
	ok, purged, err := s.reconcile(ctx, requesterID)
	if err != nil {
		return post.Post{}, err
	}

	if !ok {
		return post.Post{}, &EntitlementError{Purged: purged}
	}

	p := post.NewForOwner(requesterID, req, s.clock())

	created, err := s.posts.Create(ctx, p)
	if err != nil {
		s.log.ErrorContext(ctx, "create post failed", "op", "posts.create", "user_id", requesterID, "err", err)
		return post.Post{}, fmt.Errorf("posts.create: %w", err)
	}

	return created, nil
}

func (s *Service) Update(ctx context.Context, requesterID, id string, req post.UpdatePostRequest) (post.Post, error) {
	current, err := s.ownedPost(ctx, requesterID, id)
	if err != nil {
		return post.Post{}, err
	}

	title := current.Title
	if v := strings.TrimSpace(req.Title); v != "" {
		title = v
	}

	body := current.Content
	if v := strings.TrimSpace(req.Content); v != "" {
		body = v
	}

	updated, err := s.posts.Update(ctx, id, title, body)
	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			return post.Post{}, err
		}
		s.log.ErrorContext(ctx, "update post failed", "op", "posts.update", "user_id", requesterID, "post_id", id, "err", err)
		return post.Post{}, fmt.Errorf("posts.update: %w", err)
	}

	return updated, nil
}

func (s *Service) Delete(ctx context.Context, requesterID, id string) error {
	if _, err := s.ownedPost(ctx, requesterID, id); err != nil {
		return err
	}

	err := s.posts.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			return err
		}
		s.log.ErrorContext(ctx, "delete post failed", "op", "posts.delete", "user_id", requesterID, "post_id", id, "err", err)
		return fmt.Errorf("posts.delete: %w", err)
	}

	s.log.InfoContext(ctx, "post deleted", "post_id", id, "user_id", requesterID)

	return nil
}

// CleanupExpired runs the population-wide sweep on demand.
func (s *Service) CleanupExpired(ctx context.Context) (sweep.Result, error) {
	res, err := s.sweeper.RunOnce(ctx)
	if err != nil {
		return sweep.Result{}, fmt.Errorf("posts.cleanup_expired: %w", err)
	}

	return res, nil
}

// existence first, then ownership
func (s *Service) ownedPost(ctx context.Context, requesterID, id string) (post.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			return post.Post{}, err
		}
		s.log.ErrorContext(ctx, "load post failed", "op", "posts.get", "user_id", requesterID, "post_id", id, "err", err)
		return post.Post{}, fmt.Errorf("posts.get: %w", err)
	}

	if p.UserID != requesterID {
		return post.Post{}, ErrNotOwner
	}

	return p, nil
}

// reconcile reports whether the requester currently has access. When they do not,
// all of their posts are deleted and the count is returned.
func (s *Service) reconcile(ctx context.Context, requesterID string) (bool, int64, error) {
	u, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return false, 0, err
		}
		s.log.ErrorContext(ctx, "load requester failed", "op", "users.get", "user_id", requesterID, "err", err)
		return false, 0, fmt.Errorf("users.get: %w", err)
	}

	if entitlement.HasAccess(u.Subscriber, u.TrialEnd, s.clock()) {
		return true, 0, nil
	}

	purged, err := s.posts.DeleteByUser(ctx, requesterID)
	if err != nil {
		s.log.ErrorContext(ctx, "purge lapsed user posts failed", "op", "posts.delete_by_user", "user_id", requesterID, "err", err)
		return false, 0, fmt.Errorf("posts.delete_by_user: %w", err)
	}

	if purged > 0 {
		s.log.InfoContext(ctx, "purged posts of lapsed user", "user_id", requesterID, "deleted", purged)
	}

	return false, purged, nil
}
