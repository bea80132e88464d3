// Package chat relays chat messages to connected websocket clients.
// Delivery is best effort: a client that cannot keep up loses messages.
package chat

import (
	"context"
	"sync"

	"github.com/afterhours/backend/internal/domain/message"
)

const (
	EventJoin    = "join"
	EventLeave   = "leave"
	EventMessage = "message"
)

type Event struct {
	Type     string           `json:"type"`
	Username string           `json:"username,omitempty"`
	Message  *message.Message `json:"message,omitempty"`
}

// Observer receives hub counters. observability.Prom implements it.
type Observer interface {
	ClientJoined()
	ClientLeft()
	Dropped()
}

type Client struct {
	Username string
	ch       chan Event
}

// Events is closed by Hub.Unsubscribe.
func (c *Client) Events() <-chan Event {
	return c.ch
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	obs     Observer
}

func NewHub(obs Observer) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		obs:     obs,
	}
}

// Subscribe registers a listener and announces it to everyone already connected.
func (h *Hub) Subscribe(username string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 32
	}
	c := &Client{Username: username, ch: make(chan Event, buffer)}

	h.Publish(Event{Type: EventJoin, Username: username})

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	if h.obs != nil {
		h.obs.ClientJoined()
	}
	return c
}

func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.ch)
	h.mu.Unlock()

	if h.obs != nil {
		h.obs.ClientLeft()
	}
	h.Publish(Event{Type: EventLeave, Username: c.Username})
}

// Publish fans evt out without blocking. Direct messages reach only the sender and recipient.
func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !addressedTo(evt, c.Username) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
			if h.obs != nil {
				h.obs.Dropped()
			}
		}
	}
}

// Relay lets the hub stand in for a RedisBridge on a single instance.
func (h *Hub) Relay(_ context.Context, evt Event) error {
	h.Publish(evt)
	return nil
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func addressedTo(evt Event, username string) bool {
	if evt.Message == nil || evt.Message.IsGroup() {
		return true
	}
	return evt.Message.Recipient == username || evt.Message.Sender == username
}
