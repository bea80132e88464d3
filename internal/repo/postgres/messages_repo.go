package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/afterhours/backend/internal/domain/message"
	"github.com/afterhours/backend/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessagesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewMessagesRepo(pool *pgxpool.Pool, prom *observability.Prom) *MessagesRepo {
	return &MessagesRepo{pool: pool, prom: prom}
}

func (r *MessagesRepo) Create(ctx context.Context, m message.Message) (message.Message, error) {
	err := observe(r.prom, "messages.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO messages (id, sender_id, sender, recipient, text, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			m.ID, m.SenderID, m.Sender, m.Recipient, m.Text, m.CreatedAt,
		)
		return err
	})

	if err != nil {
		return message.Message{}, err
	}

	return m, nil
}

// ListConversation returns newest first. A zero beforeAt means "from the latest message".
func (r *MessagesRepo) ListConversation(ctx context.Context, me, other string, beforeAt time.Time, beforeID string, limit int) ([]message.Message, error) {
	var (
		query string
		args  []any
	)

	if other == message.GroupRecipient {
		query = `SELECT id, sender_id, sender, recipient, text, created_at FROM messages
			WHERE recipient = $1`
		args = []any{message.GroupRecipient}
	} else {
		query = `SELECT id, sender_id, sender, recipient, text, created_at FROM messages
			WHERE ((sender = $1 AND recipient = $2) OR (sender = $2 AND recipient = $1))`
		args = []any{me, other}
	}

	if !beforeAt.IsZero() {
		n := len(args)
		query += ` AND (created_at, id) < ($` + strconv.Itoa(n+1) + `, $` + strconv.Itoa(n+2) + `)`
		args = append(args, beforeAt, beforeID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	var out []message.Message

	err := observe(r.prom, "messages.list_conversation", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}

		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (message.Message, error) {
			var m message.Message
			err := row.Scan(&m.ID, &m.SenderID, &m.Sender, &m.Recipient, &m.Text, &m.CreatedAt)
			return m, err
		})
		return err
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}
