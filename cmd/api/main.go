package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/afterhours/backend/internal/auth"
	"github.com/afterhours/backend/internal/cache"
	"github.com/afterhours/backend/internal/chat"
	"github.com/afterhours/backend/internal/config"
	"github.com/afterhours/backend/internal/content"
	"github.com/afterhours/backend/internal/entitlement"
	httpx "github.com/afterhours/backend/internal/http"
	"github.com/afterhours/backend/internal/http/handlers"
	"github.com/afterhours/backend/internal/http/middlewares"
	"github.com/afterhours/backend/internal/observability"
	"github.com/afterhours/backend/internal/redisclient"
	"github.com/afterhours/backend/internal/sweep"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "afterhours-api"

func main() {
	// Load the config set up
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	st, closeStores, err := openStores(ctx, cfg, prom, log)
	if err != nil {
		log.Error("store init failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}

	clock := entitlement.Clock(entitlement.SystemClock)
	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)

	sweepCfg := sweep.Config{Interval: cfg.SweepInterval}
	if cfg.SweepOnStartup {
		// the periodic loop would otherwise repeat this run immediately
		sweepCfg.InitialDelay = cfg.SweepInterval
	}
	sweeper := sweep.New(sweepCfg, st.users, st.posts, clock, prom, log)

	if cfg.SweepOnStartup {
		sctx, cancel := config.WithTimeout(30 * time.Second)
		res, err := sweeper.RunOnce(sctx)
		cancel()
		if err != nil {
			log.Error("startup sweep failed, continuing", "err", err)
		} else {
			log.Info("startup sweep done", "expired_users", res.ExpiredUsers, "deleted", res.Deleted)
		}
	}

	if cfg.SweepInterval > 0 {
		go func() {
			if err := sweeper.Run(ctx); err != nil {
				log.Error("sweeper stopped with error", "err", err)
			}
		}()
	}

	// chat relay: local hub, bridged over redis when configured
	hub := chat.NewHub(prom)
	var (
		relay      handlers.Relay = hub
		redisCheck handlers.Pinger
	)

	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rc.Close()

		pctx, cancel := config.WithTimeout(2 * time.Second)
		err := rc.Ping(pctx)
		cancel()

		if err != nil {
			log.Warn("redis unavailable, chat relay stays single-instance", "addr", cfg.RedisAddr, "err", err)
		} else {
			bridge := chat.NewRedisBridge(rc.Raw(), hub, cfg.ChatChannel, log)
			go func() {
				if err := bridge.Run(ctx); err != nil {
					log.Error("chat bridge stopped", "err", err)
				}
			}()
			relay = bridge
			redisCheck = rc
		}
	}

	svc := content.NewService(st.posts, st.users, sweeper, clock, log)
	messages := handlers.NewMessagesHandler(st.messages, relay, clock, log)

	router := httpx.NewRouter(httpx.Deps{
		Env:          cfg.Env,
		ServiceName:  serviceName,
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Log:          log,
		Prom:         prom,
		Clock:        clock,
		Auth:         middlewares.NewAuthMiddleware(jwtManager, st.users, log),
		Health:       handlers.NewHealthHandler(st.db, redisCheck),
		Users:        handlers.NewAuthHandler(st.users, jwtManager, clock, cfg.TrialDuration, log),
		Posts:        handlers.NewPostsHandler(svc),
		Media:        handlers.NewMediaHandler(st.media, cache.New(5*time.Second), clock, log),
		Messages:     messages,
		Chat:         handlers.NewChatHandler(hub, messages, cfg.CORSOrigins, log),
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		// no Read/WriteTimeout: they would cut long-lived websocket connections;
		// handlers bound their own store calls
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
		if err := shutdownTracer(sctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}

	closeStores()
}
