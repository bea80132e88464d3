package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/afterhours/backend/internal/domain/user"
	"github.com/afterhours/backend/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, first_name, last_name, username, email, password_hash,
	age, sex, ethnicity, hair_color, skin_color, eye_color, body_type, weight, avatar,
	subscriber, trial_end, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	var out user.User

	err := observe(r.prom, "users.create", func() error {
		return scanUser(r.pool.QueryRow(ctx,
			`INSERT INTO users (id, first_name, last_name, username, email, password_hash,
				age, sex, ethnicity, hair_color, skin_color, eye_color, body_type, weight, avatar,
				subscriber, trial_end, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
			RETURNING `+userColumns,
			u.ID, u.FirstName, u.LastName, u.Username, u.Email, u.PasswordHash,
			u.Age, u.Sex, u.Ethnicity, u.HairColor, u.SkinColor, u.EyeColor, u.BodyType, u.Weight, u.Avatar,
			u.Subscriber, u.TrialEnd, u.CreatedAt, u.UpdatedAt,
		), &out)
	})

	if err != nil {
		if IsUniqueViolation(err) {
			switch violatedConstraint(err) {
			case "users_username_key":
				return user.User{}, user.ErrUsernameTaken
			default:
				return user.User{}, user.ErrEmailTaken
			}
		}
		return user.User{}, err
	}

	return out, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_username", `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// EnsureTrialEnd sets trial_end only while it is NULL, so concurrent first logins agree
// on a single value. The current row is returned either way.
func (r *UsersRepo) EnsureTrialEnd(ctx context.Context, id string, trialEnd time.Time) (user.User, error) {
	var out user.User

	err := observe(r.prom, "users.ensure_trial_end", func() error {
		return scanUser(r.pool.QueryRow(ctx,
			`WITH upd AS (
				UPDATE users SET trial_end = $2, updated_at = NOW()
				WHERE id = $1 AND trial_end IS NULL
				RETURNING `+userColumns+`
			)
			SELECT `+userColumns+` FROM upd
			UNION ALL
			SELECT `+userColumns+` FROM users WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM upd)`,
			id, trialEnd,
		), &out)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return out, nil
}

// UpdateProfile never touches subscriber or trial_end.
func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, p user.Profile) (user.User, error) {
	var out user.User

	err := observe(r.prom, "users.update_profile", func() error {
		return scanUser(r.pool.QueryRow(ctx,
			`UPDATE users
			SET age = $2,
				sex = $3,
				ethnicity = $4,
				hair_color = $5,
				skin_color = $6,
				eye_color = $7,
				body_type = $8,
				weight = $9,
				avatar = $10,
				updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns,
			id, p.Age, p.Sex, p.Ethnicity, p.HairColor, p.SkinColor, p.EyeColor, p.BodyType, p.Weight, p.Avatar,
		), &out)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return out, nil
}

func (r *UsersRepo) ListLapsedUserIDs(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string

	err := observe(r.prom, "users.list_lapsed", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id FROM users WHERE subscriber = FALSE AND trial_end IS NOT NULL AND trial_end < $1`,
			now,
		)
		if err != nil {
			return err
		}

		ids, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})

	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, arg any) (user.User, error) {
	var u user.User

	err := observe(r.prom, op, func() error {
		return scanUser(r.pool.QueryRow(ctx, query, arg), &u)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func scanUser(row pgx.Row, u *user.User) error {
	return row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Age,
		&u.Sex,
		&u.Ethnicity,
		&u.HairColor,
		&u.SkinColor,
		&u.EyeColor,
		&u.BodyType,
		&u.Weight,
		&u.Avatar,
		&u.Subscriber,
		&u.TrialEnd,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
}
