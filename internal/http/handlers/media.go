package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/afterhours/backend/internal/cache"
	"github.com/afterhours/backend/internal/domain/media"
	"github.com/afterhours/backend/internal/entitlement"
	"github.com/afterhours/backend/internal/http/middlewares"
	"github.com/afterhours/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

type MediaStore interface {
	Create(ctx context.Context, item media.Item) (media.Item, error)
	List(ctx context.Context, kind media.Kind) ([]media.Item, error)
}

type MediaHandler struct {
	store MediaStore
	cache *cache.Cache
	clock entitlement.Clock
	log   *slog.Logger
}

// NewMediaHandler accepts a nil cache, in which case every list hits the store.
func NewMediaHandler(store MediaStore, c *cache.Cache, clock entitlement.Clock, log *slog.Logger) *MediaHandler {
	if clock == nil {
		clock = entitlement.SystemClock
	}
	if log == nil {
		log = slog.Default()
	}
	return &MediaHandler{store: store, cache: c, clock: clock, log: log}
}

func (h *MediaHandler) ListMusic(ctx *gin.Context)  { h.list(ctx, media.KindMusic) }
func (h *MediaHandler) ListVideos(ctx *gin.Context) { h.list(ctx, media.KindVideo) }

func (h *MediaHandler) CreateMusic(ctx *gin.Context) {
	var req media.CreateMusicRequest
	if !BindJSON(ctx, &req) {
		return
	}

	uid, _ := middlewares.UserIDFromContext(ctx)
	h.create(ctx, media.NewMusic(uid, req, h.clock()))
}

func (h *MediaHandler) CreateVideo(ctx *gin.Context) {
	var req media.CreateVideoRequest
	if !BindJSON(ctx, &req) {
		return
	}

	uid, _ := middlewares.UserIDFromContext(ctx)
	h.create(ctx, media.NewVideo(uid, req, h.clock()))
}

func (h *MediaHandler) list(ctx *gin.Context, kind media.Kind) {
	key := utils.BuildMediaListCacheKey(string(kind))

	if h.cache != nil {
		if cached, ok := h.cache.Get(key); ok {
			if payload, ok := cached.(gin.H); ok {
				RespondJSONWithETag(ctx, http.StatusOK, payload)
				return
			}
		}
	}

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	items, err := h.store.List(cctx, kind)
	if err != nil {
		h.log.ErrorContext(cctx, "list media failed", "op", "media.list", "kind", kind, "err", err)
		RespondInternal(ctx, "Could not list "+string(kind))
		return
	}

	payload := gin.H{
		"items": items,
		"count": len(items),
	}

	if h.cache != nil {
		h.cache.Set(key, payload)
	}

	RespondJSONWithETag(ctx, http.StatusOK, payload)
}

func (h *MediaHandler) create(ctx *gin.Context, item media.Item) {
	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	created, err := h.store.Create(cctx, item)
	if err != nil {
		h.log.ErrorContext(cctx, "create media failed", "op", "media.create", "kind", item.Kind, "user_id", item.UserID, "err", err)
		RespondInternal(ctx, "Could not save "+string(item.Kind))
		return
	}

	if h.cache != nil {
		h.cache.Delete(utils.BuildMediaListCacheKey(string(item.Kind)))
	}

	ctx.JSON(http.StatusCreated, created)
}
