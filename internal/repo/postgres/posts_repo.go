package postgres

import (
	"context"

	"github.com/afterhours/backend/internal/domain/post"
	"github.com/afterhours/backend/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewPostsRepo(pool *pgxpool.Pool, prom *observability.Prom) *PostsRepo {
	return &PostsRepo{
		pool: pool,
		prom: prom,
	}
}

const postSelect = `SELECT p.id, p.title, p.content, p.user_id, COALESCE(u.username, ''), p.created_at, p.updated_at
	FROM posts p
	LEFT JOIN users u ON u.id = p.user_id`

func (r *PostsRepo) Create(ctx context.Context, p post.Post) (post.Post, error) {
	err := observe(r.prom, "posts.create", func() error {
		return r.pool.QueryRow(ctx,
			`WITH ins AS (
				INSERT INTO posts (id, title, content, user_id, created_at, updated_at)
				VALUES ($1,$2,$3,$4,$5,$6)
				RETURNING user_id
			)
			SELECT COALESCE(u.username, '') FROM ins LEFT JOIN users u ON u.id = ins.user_id`,
			p.ID, p.Title, p.Content, p.UserID, p.CreatedAt, p.UpdatedAt,
		).Scan(&p.Author)
	})

	if err != nil {
		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) GetByID(ctx context.Context, id string) (post.Post, error) {
	var p post.Post

	err := observe(r.prom, "posts.get_by_id", func() error {
		return scanPost(r.pool.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id), &p)
	})

	if err != nil {
		if isMissingRow(err) {
			return post.Post{}, post.ErrNotFound
		}
		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) List(ctx context.Context) ([]post.Post, error) {
	output := make([]post.Post, 0)

	err := observe(r.prom, "posts.list", func() error {
		rows, err := r.pool.Query(ctx, postSelect+` ORDER BY p.created_at DESC, p.id DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p post.Post
			if err := scanPost(rows, &p); err != nil {
				return err
			}
			output = append(output, p)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return output, nil
}

func (r *PostsRepo) Update(ctx context.Context, id string, title, content string) (post.Post, error) {
	var p post.Post

	err := observe(r.prom, "posts.update", func() error {
		return scanPost(r.pool.QueryRow(ctx,
			`WITH upd AS (
				UPDATE posts
				SET title = $2,
					content = $3,
					updated_at = NOW()
				WHERE id = $1
				RETURNING id, title, content, user_id, created_at, updated_at
			)
			SELECT upd.id, upd.title, upd.content, upd.user_id, COALESCE(u.username, ''), upd.created_at, upd.updated_at
			FROM upd LEFT JOIN users u ON u.id = upd.user_id`,
			id, title, content,
		), &p)
	})

	if err != nil {
		// if there are no rows matching the id
		if isMissingRow(err) {
			return post.Post{}, post.ErrNotFound
		}
		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag

	err := observe(r.prom, "posts.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
		return err
	})

	if err != nil {
		if isMissingRow(err) {
			return post.ErrNotFound
		}
		return err
	}

	// the row disappeared between the ownership check and the delete
	if tag.RowsAffected() == 0 {
		return post.ErrNotFound
	}

	return nil
}

func (r *PostsRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	var tag pgconn.CommandTag

	err := observe(r.prom, "posts.delete_by_user", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM posts WHERE user_id = $1`, userID)
		return err
	})

	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (r *PostsRepo) DeleteByUsers(ctx context.Context, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	var tag pgconn.CommandTag

	err := observe(r.prom, "posts.delete_by_users", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM posts WHERE user_id = ANY($1::uuid[])`, userIDs)
		return err
	})

	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func scanPost(row pgx.Row, p *post.Post) error {
	return row.Scan(&p.ID, &p.Title, &p.Content, &p.UserID, &p.Author, &p.CreatedAt, &p.UpdatedAt)
}
