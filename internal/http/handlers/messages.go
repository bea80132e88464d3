package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/afterhours/backend/internal/chat"
	"github.com/afterhours/backend/internal/domain/message"
	"github.com/afterhours/backend/internal/entitlement"
	"github.com/afterhours/backend/internal/http/middlewares"
	"github.com/afterhours/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	defaultMessagesLimit = 50
	maxMessagesLimit     = 200
)

type MessageStore interface {
	Create(ctx context.Context, m message.Message) (message.Message, error)
	ListConversation(ctx context.Context, me, other string, beforeAt time.Time, beforeID string, limit int) ([]message.Message, error)
}

// Relay is satisfied by *chat.Hub and *chat.RedisBridge.
type Relay interface {
	Relay(ctx context.Context, evt chat.Event) error
}

type MessagesHandler struct {
	store MessageStore
	relay Relay
	clock entitlement.Clock
	log   *slog.Logger
}

func NewMessagesHandler(store MessageStore, relay Relay, clock entitlement.Clock, log *slog.Logger) *MessagesHandler {
	if clock == nil {
		clock = entitlement.SystemClock
	}
	if log == nil {
		log = slog.Default()
	}
	return &MessagesHandler{store: store, relay: relay, clock: clock, log: log}
}

// ListConversation pages the history with :username (or "Group"), newest first.
func (h *MessagesHandler) ListConversation(ctx *gin.Context) {
	me, ok := middlewares.UsernameFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authorized")
		return
	}

	limit := defaultMessagesLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxMessagesLimit {
			RespondBadRequest(ctx, "limit must be between 1 and "+strconv.Itoa(maxMessagesLimit), nil)
			return
		}
		limit = n
	}

	var cur utils.Cursor
	if raw := ctx.Query("cursor"); raw != "" {
		c, err := utils.DecodeCursor(raw)
		if err != nil {
			RespondBadRequest(ctx, "Invalid cursor", nil)
			return
		}
		cur = c
	}

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	items, err := h.store.ListConversation(cctx, me, ctx.Param("username"), cur.CreatedAt, cur.ID, limit)
	if err != nil {
		h.log.ErrorContext(cctx, "list messages failed", "op", "messages.list", "err", err)
		RespondInternal(ctx, "Could not load messages")
		return
	}

	var next *string
	if len(items) == limit {
		last := items[len(items)-1]
		if enc, err := utils.EncodeCursor(last.CreatedAt, last.ID); err == nil {
			next = &enc
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":      items,
		"count":      len(items),
		"nextCursor": next,
	})
}

func (h *MessagesHandler) Send(ctx *gin.Context) {
	uid, _ := middlewares.UserIDFromContext(ctx)
	me, ok := middlewares.UsernameFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authorized")
		return
	}

	var req message.SendRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	m, err := h.deliver(cctx, message.New(uid, me, req, h.clock()))
	if err != nil {
		RespondInternal(ctx, "Could not send message")
		return
	}

	ctx.JSON(http.StatusCreated, m)
}

// deliver stores m and then relays it. A relay failure only costs the live push.
func (h *MessagesHandler) deliver(ctx context.Context, m message.Message) (message.Message, error) {
	saved, err := h.store.Create(ctx, m)
	if err != nil {
		h.log.ErrorContext(ctx, "store message failed", "op", "messages.create", "user_id", m.SenderID, "err", err)
		return message.Message{}, err
	}

	if h.relay != nil {
		if err := h.relay.Relay(ctx, chat.Event{Type: chat.EventMessage, Message: &saved}); err != nil {
			h.log.WarnContext(ctx, "relay message failed", "message_id", saved.ID, "err", err)
		}
	}

	return saved, nil
}
