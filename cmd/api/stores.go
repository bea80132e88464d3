package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/afterhours/backend/internal/config"
	"github.com/afterhours/backend/internal/content"
	"github.com/afterhours/backend/internal/db"
	"github.com/afterhours/backend/internal/http/handlers"
	"github.com/afterhours/backend/internal/http/middlewares"
	"github.com/afterhours/backend/internal/observability"
	"github.com/afterhours/backend/internal/repo/memory"
	"github.com/afterhours/backend/internal/repo/postgres"
	"github.com/afterhours/backend/internal/sweep"
)

type userStore interface {
	handlers.UserStore
	middlewares.UserResolver
	content.UserReader
	sweep.LapsedUsers
}

type postStore interface {
	content.PostStore
	sweep.PostPurger
}

type stores struct {
	users    userStore
	posts    postStore
	media    handlers.MediaStore
	messages handlers.MessageStore
	// nil for the memory driver
	db handlers.Pinger
}

func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (stores, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory stores; data is lost on restart")

		users := memory.NewUsersRepo()
		return stores{
			users:    users,
			posts:    memory.NewPostsRepo(users),
			media:    memory.NewMediaRepo(users),
			messages: memory.NewMessagesRepo(),
		}, func() {}, nil

	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DBURL, 10)
		if err != nil {
			return stores{}, nil, fmt.Errorf("db connect: %w", err)
		}

		if err := db.Migrate(pool, cfg.MigrationsPath); err != nil {
			pool.Close()
			return stores{}, nil, err
		}

		return stores{
			users:    postgres.NewUsersRepo(pool, prom),
			posts:    postgres.NewPostsRepo(pool, prom),
			media:    postgres.NewMediaRepo(pool, prom),
			messages: postgres.NewMessagesRepo(pool, prom),
			db:       pool,
		}, pool.Close, nil

	default:
		return stores{}, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
