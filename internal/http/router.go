package http

import (
	"log/slog"
	"time"

	"github.com/afterhours/backend/internal/entitlement"
	"github.com/afterhours/backend/internal/http/handlers"
	"github.com/afterhours/backend/internal/http/middlewares"
	"github.com/afterhours/backend/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Env          string
	ServiceName  string
	CORSOrigins  []string
	MaxBodyBytes int64

	Log   *slog.Logger
	Prom  *observability.Prom
	Clock entitlement.Clock

	Auth     *middlewares.AuthMiddleware
	Health   *handlers.HealthHandler
	Users    *handlers.AuthHandler
	Posts    *handlers.PostsHandler
	Media    *handlers.MediaHandler
	Messages *handlers.MessagesHandler
	Chat     *handlers.ChatHandler
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.ServiceName == "" {
		d.ServiceName = "afterhours-api"
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(d.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))

	// ops
	r.GET("/healthz", d.Health.Healthz)
	r.GET("/readyz", d.Health.Readyz)
	r.GET("/ping", d.Health.Ping)
	if d.Prom != nil {
		r.GET("/metrics", gin.WrapH(d.Prom.Handler()))
	}

	api := r.Group("/api")

	authLimiter := middlewares.NewRateLimiter(10, time.Minute)
	writeLimiter := middlewares.NewRateLimiter(60, time.Minute)

	requireAuth := d.Auth.RequireAuth()
	jsonOnly := middlewares.RequireJSON()
	limitWrites := writeLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP)

	// users
	userGroup := api.Group("/user")
	{
		limitAuth := authLimiter.RateLimiterMiddleware(middlewares.KeyByIP)
		userGroup.POST("/register", limitAuth, jsonOnly, d.Users.Register)
		userGroup.POST("/login", limitAuth, jsonOnly, d.Users.Login)
		userGroup.GET("/profile", requireAuth, d.Users.Profile)
		userGroup.PUT("/profile", requireAuth, jsonOnly, d.Users.UpdateProfile)
	}

	// posts
	posts := api.Group("/posts")
	{
		posts.GET("", d.Auth.OptionalAuth(), d.Posts.ListPosts)
		posts.POST("", requireAuth, limitWrites, jsonOnly, d.Posts.CreatePost)
		// registered before /:id so the literal segment wins
		posts.DELETE("/cleanup/expired", requireAuth, d.Posts.CleanupExpired)
		posts.PUT("/:id", requireAuth, limitWrites, jsonOnly, d.Posts.UpdatePost)
		posts.DELETE("/:id", requireAuth, d.Posts.DeletePost)
	}

	// media
	requireAccess := middlewares.RequireAccess(d.Clock)
	api.GET("/music", requireAuth, d.Media.ListMusic)
	api.POST("/music", requireAuth, requireAccess, limitWrites, jsonOnly, d.Media.CreateMusic)
	api.GET("/videos", requireAuth, d.Media.ListVideos)
	api.POST("/videos", requireAuth, requireAccess, limitWrites, jsonOnly, d.Media.CreateVideo)

	// messaging
	api.GET("/messages/:username", requireAuth, d.Messages.ListConversation)
	api.POST("/messages", requireAuth, limitWrites, jsonOnly, d.Messages.Send)
	if d.Chat != nil {
		api.GET("/chat/ws", d.Auth.RequireAuthQuery(), d.Chat.Serve)
	}

	return r
}
