package postgres

import (
	"context"

	"github.com/afterhours/backend/internal/domain/media"
	"github.com/afterhours/backend/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MediaRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewMediaRepo(pool *pgxpool.Pool, prom *observability.Prom) *MediaRepo {
	return &MediaRepo{pool: pool, prom: prom}
}

func (r *MediaRepo) Create(ctx context.Context, item media.Item) (media.Item, error) {
	err := observe(r.prom, "media.create", func() error {
		return r.pool.QueryRow(ctx,
			`WITH ins AS (
				INSERT INTO media_items (id, kind, user_id, title, url, artist, description, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
				RETURNING user_id
			)
			SELECT COALESCE(u.username, '') FROM ins LEFT JOIN users u ON u.id = ins.user_id`,
			item.ID, string(item.Kind), item.UserID, item.Title, item.URL, item.Artist, item.Description, item.CreatedAt,
		).Scan(&item.Username)
	})

	if err != nil {
		return media.Item{}, err
	}

	return item, nil
}

func (r *MediaRepo) List(ctx context.Context, kind media.Kind) ([]media.Item, error) {
	out := make([]media.Item, 0)

	err := observe(r.prom, "media.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT m.id, m.kind, m.user_id, COALESCE(u.username, ''), m.title, m.url, m.artist, m.description, m.created_at
			FROM media_items m
			LEFT JOIN users u ON u.id = m.user_id
			WHERE m.kind = $1
			ORDER BY m.created_at DESC, m.id DESC`,
			string(kind),
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var it media.Item
			var k string
			if err := rows.Scan(&it.ID, &k, &it.UserID, &it.Username, &it.Title, &it.URL, &it.Artist, &it.Description, &it.CreatedAt); err != nil {
				return err
			}
			it.Kind = media.Kind(k)
			out = append(out, it)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}
