package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/afterhours/backend/internal/actorctx"
	"github.com/afterhours/backend/internal/auth"
	"github.com/afterhours/backend/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// UserResolver turns a token subject into a live user record.
type UserResolver interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type AuthMiddleware struct {
	jwt   TokenVerifier
	users UserResolver
	log   *slog.Logger
}

func NewAuthMiddleware(jwt TokenVerifier, users UserResolver, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{jwt: jwt, users: users, log: log}
}

const resolveTimeout = 2 * time.Second

// RequireAuth rejects the request unless a valid bearer token names an existing user.
// The rejection is identical for every failure.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return m.require(bearerToken)
}

// RequireAuthQuery is RequireAuth for websocket upgrades, where browsers cannot set
// headers. The token travels as ?token=.
func (m *AuthMiddleware) RequireAuthQuery() gin.HandlerFunc {
	return m.require(func(c *gin.Context) string {
		if raw := bearerToken(c); raw != "" {
			return raw
		}
		return strings.TrimSpace(c.Query("token"))
	})
}

// OptionalAuth attaches the identity when a usable token is present and otherwise
// lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.Next()
			return
		}

		u, ok := m.resolve(c, raw)
		if ok {
			attach(c, u)
		}
		c.Next()
	}
}

func (m *AuthMiddleware) require(extract func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extract(c)
		if raw == "" {
			abortUnauthorized(c)
			return
		}

		u, ok := m.resolve(c, raw)
		if !ok {
			abortUnauthorized(c)
			return
		}

		attach(c, u)
		c.Next()
	}
}

func (m *AuthMiddleware) resolve(c *gin.Context, raw string) (user.User, bool) {
	claims, err := m.jwt.VerifyAccessToken(raw)
	if err != nil {
		return user.User{}, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), resolveTimeout)
	defer cancel()

	u, err := m.users.GetByID(ctx, claims.UserID)
	if err != nil {
		// a deleted account is routine; anything else is worth a log line
		if !errors.Is(err, user.ErrNotFound) {
			m.log.ErrorContext(ctx, "auth: resolve user", "user_id", claims.UserID, "err", err)
		}
		return user.User{}, false
	}

	return u, true
}

func attach(c *gin.Context, u user.User) {
	c.Set(ctxUserIDKey, u.ID)
	c.Set(ctxUsernameKey, u.Username)
	c.Set(ctxUserKey, u)
	c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), u.ID))
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": "Not authorized",
		},
	})
}

// Optional helpers so handlers don’t need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func UsernameFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUsernameKey)
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}

// UserFromContext returns the record loaded by the auth middleware for this request.
func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}
