package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/afterhours/backend/internal/domain/message"
)

type MessagesRepo struct {
	mu    sync.RWMutex
	items []message.Message
}

func NewMessagesRepo() *MessagesRepo {
	return &MessagesRepo{}
}

func (r *MessagesRepo) Create(_ context.Context, m message.Message) (message.Message, error) {
	r.mu.Lock()
	r.items = append(r.items, m)
	r.mu.Unlock()

	return m, nil
}

// ListConversation mirrors the postgres query: newest first, strictly older than the
// (beforeAt, beforeID) cursor when one is given.
func (r *MessagesRepo) ListConversation(_ context.Context, me, other string, beforeAt time.Time, beforeID string, limit int) ([]message.Message, error) {
	r.mu.RLock()
	out := make([]message.Message, 0)
	for _, m := range r.items {
		if !inConversation(m, me, other) {
			continue
		}
		if !beforeAt.IsZero() && !olderThan(m, beforeAt, beforeID) {
			continue
		}
		out = append(out, m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func inConversation(m message.Message, me, other string) bool {
	if other == message.GroupRecipient {
		return m.IsGroup()
	}
	return (m.Sender == me && m.Recipient == other) || (m.Sender == other && m.Recipient == me)
}

func olderThan(m message.Message, at time.Time, id string) bool {
	if m.CreatedAt.Before(at) {
		return true
	}
	return m.CreatedAt.Equal(at) && m.ID < id
}
