package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/afterhours/backend/internal/content"
	"github.com/afterhours/backend/internal/domain/post"
	"github.com/afterhours/backend/internal/domain/user"
	"github.com/afterhours/backend/internal/http/middlewares"
	"github.com/afterhours/backend/internal/sweep"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PostService interface {
	List(ctx context.Context, requesterID string) ([]post.Post, error)
	Create(ctx context.Context, requesterID string, req post.CreatePostRequest) (post.Post, error)
	Update(ctx context.Context, requesterID, id string, req post.UpdatePostRequest) (post.Post, error)
	Delete(ctx context.Context, requesterID, id string) error
	CleanupExpired(ctx context.Context) (sweep.Result, error)
}

type PostsHandler struct {
	svc PostService
}

func NewPostsHandler(svc PostService) *PostsHandler {
	return &PostsHandler{svc: svc}
}

// ListPosts is public. An authenticated lapsed caller loses their own posts before the listing.
func (h *PostsHandler) ListPosts(ctx *gin.Context) {
	requesterID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	items, err := h.svc.List(cctx, requesterID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnAuthorized(ctx, "unauthorized", "Not authorized")
			return
		}
		RespondInternal(ctx, "Could not list posts")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *PostsHandler) CreatePost(ctx *gin.Context) {
	requesterID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authorized")
		return
	}

	var req post.CreatePostRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	created, err := h.svc.Create(cctx, requesterID, req)
	if err != nil {
		respondPostError(ctx, err, "Could not create post")
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (h *PostsHandler) UpdatePost(ctx *gin.Context) {
	requesterID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authorized")
		return
	}

	id, ok := postIDParam(ctx)
	if !ok {
		return
	}

	var req post.UpdatePostRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	updated, err := h.svc.Update(cctx, requesterID, id, req)
	if err != nil {
		respondPostError(ctx, err, "Could not update post")
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (h *PostsHandler) DeletePost(ctx *gin.Context) {
	requesterID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authorized")
		return
	}

	id, ok := postIDParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := h.svc.Delete(cctx, requesterID, id); err != nil {
		respondPostError(ctx, err, "Could not delete post")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

// CleanupExpired purges the posts of every lapsed user.
func (h *PostsHandler) CleanupExpired(ctx *gin.Context) {
	cctx, cancel := withTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := h.svc.CleanupExpired(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not clean up expired posts")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"deletedCount": res.Deleted,
		"expiredUsers": res.ExpiredUsers,
		"message":      fmt.Sprintf("Deleted %d posts from %d expired trial users", res.Deleted, res.ExpiredUsers),
	})
}

// postIDParam answers 404 for ids that cannot name a post.
func postIDParam(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		RespondNotFound(ctx, "Post not found")
		return "", false
	}
	return id, true
}

func respondPostError(ctx *gin.Context, err error, fallback string) {
	var denied *content.EntitlementError

	switch {
	case errors.As(err, &denied):
		RespondForbidden(ctx, "entitlement_denied", "Trial expired. Your posts were removed.", gin.H{"purged": denied.Purged})
	case errors.Is(err, content.ErrNotOwner):
		RespondForbidden(ctx, "forbidden", "You can only modify your own posts", nil)
	case errors.Is(err, post.ErrNotFound):
		RespondNotFound(ctx, "Post not found")
	case errors.Is(err, user.ErrNotFound):
		RespondUnAuthorized(ctx, "unauthorized", "Not authorized")
	default:
		RespondInternal(ctx, fallback)
	}
}
