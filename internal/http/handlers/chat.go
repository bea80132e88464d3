package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/afterhours/backend/internal/chat"
	"github.com/afterhours/backend/internal/domain/message"
	"github.com/afterhours/backend/internal/http/middlewares"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	chatClientBuffer = 64
	chatWriteTimeout = 5 * time.Second
	chatMaxText      = 2000
)

type ChatHandler struct {
	hub      *chat.Hub
	messages *MessagesHandler
	origins  []string
	// inbound limit per connection
	every rate.Limit
	burst int
	log   *slog.Logger
}

// NewChatHandler serves the websocket relay. allowedOrigins takes the CORS list
// ("https://app.example") and reduces it to host patterns.
func NewChatHandler(hub *chat.Hub, messages *MessagesHandler, allowedOrigins []string, log *slog.Logger) *ChatHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ChatHandler{
		hub:      hub,
		messages: messages,
		origins:  wsOriginPatterns(allowedOrigins),
		every:    rate.Every(200 * time.Millisecond),
		burst:    10,
		log:      log,
	}
}

type inboundChat struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// Serve upgrades the connection and relays until either side goes away.
func (h *ChatHandler) Serve(ctx *gin.Context) {
	uid, _ := middlewares.UserIDFromContext(ctx)
	username, ok := middlewares.UsernameFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authorized")
		return
	}

	conn, err := websocket.Accept(newUpgradeWriter(ctx.Writer), ctx.Request, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		// Accept already wrote the failure response
		h.log.WarnContext(ctx.Request.Context(), "chat upgrade failed", "username", username, "err", err)
		return
	}
	defer conn.CloseNow()

	rctx, cancel := context.WithCancel(ctx.Request.Context())
	defer cancel()

	sub := h.hub.Subscribe(username, chatClientBuffer)
	defer h.hub.Unsubscribe(sub)

	h.log.InfoContext(rctx, "chat client connected", "username", username)

	readErr := make(chan error, 1)
	go func() {
		readErr <- h.readLoop(rctx, conn, uid, username)
	}()

	for {
		select {
		case <-rctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case err := <-readErr:
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				h.log.DebugContext(rctx, "chat read ended", "username", username, "err", err)
			}
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case evt, ok := <-sub.Events():
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			}
			wctx, cancelWrite := context.WithTimeout(rctx, chatWriteTimeout)
			err := wsjson.Write(wctx, conn, evt)
			cancelWrite()
			if err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}

// readLoop persists and relays each inbound message. Over-limit and invalid frames are dropped.
func (h *ChatHandler) readLoop(ctx context.Context, conn *websocket.Conn, uid, username string) error {
	lim := rate.NewLimiter(h.every, h.burst)

	for {
		var in inboundChat
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			return err
		}

		if !lim.Allow() {
			continue
		}

		text := strings.TrimSpace(in.Text)
		if text == "" || len(text) > chatMaxText {
			continue
		}

		req := message.SendRequest{Recipient: strings.TrimSpace(in.Recipient), Text: text}
		sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, _ = h.messages.deliver(sctx, message.New(uid, username, req, h.messages.clock()))
		cancel()
	}
}

func wsOriginPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
