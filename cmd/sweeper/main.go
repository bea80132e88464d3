package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/afterhours/backend/internal/config"
	"github.com/afterhours/backend/internal/db"
	"github.com/afterhours/backend/internal/entitlement"
	"github.com/afterhours/backend/internal/observability"
	"github.com/afterhours/backend/internal/repo/postgres"
	"github.com/afterhours/backend/internal/sweep"
	"github.com/prometheus/client_golang/prometheus"
)

// The standalone sweeper removes posts of lapsed trial users on a schedule,
// for deployments that keep the API replicas free of background work.
func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.StoreDriver != config.StoreDriverPostgres {
		log.Error("sweeper requires STORE_DRIVER=postgres", "driver", cfg.StoreDriver)
		os.Exit(1)
	}

	shutdownTracer, err := observability.InitTracer(ctx, "afterhours-sweeper", cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, 2)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	prom := observability.NewProm(prometheus.NewRegistry())

	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	s := sweep.New(sweep.Config{Interval: interval},
		postgres.NewUsersRepo(pool, prom),
		postgres.NewPostsRepo(pool, prom),
		entitlement.SystemClock, prom, log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	mux.Handle("/", s.HealthHandler(pool))

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.SweeperHealthPort),
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		log.Info("sweeper health server listening", "port", cfg.SweeperHealthPort)
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health server failed", "err", err)
		}
	}()

	log.Info("sweeper started", "interval", interval)

	if err := s.Run(ctx); err != nil {
		log.Error("sweeper stopped with error", "err", err)
	}

	sctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(sctx)
	_ = shutdownTracer(sctx)

	log.Info("sweeper shutdown complete")
}
