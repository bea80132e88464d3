package chat

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/afterhours/backend/internal/domain/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	joined, left, dropped atomic.Int64
}

func (o *countingObserver) ClientJoined() { o.joined.Add(1) }
func (o *countingObserver) ClientLeft()   { o.left.Add(1) }
func (o *countingObserver) Dropped()      { o.dropped.Add(1) }

func drain(c *Client) []Event {
	var out []Event
	for {
		select {
		case evt, ok := <-c.Events():
			if !ok {
				return out
			}
			out = append(out, evt)
		default:
			return out
		}
	}
}

func groupMessage(from, text string) *message.Message {
	m := message.New("id-"+from, from, message.SendRequest{Text: text}, time.Now())
	return &m
}

func TestHub_JoinIsAnnouncedToExistingClients(t *testing.T) {
	h := NewHub(nil)
	alice := h.Subscribe("alice", 8)
	_ = h.Subscribe("bob", 8)

	evts := drain(alice)
	require.Len(t, evts, 1)
	assert.Equal(t, EventJoin, evts[0].Type)
	assert.Equal(t, "bob", evts[0].Username)
}

func TestHub_GroupMessageReachesEveryone(t *testing.T) {
	h := NewHub(nil)
	alice := h.Subscribe("alice", 8)
	bob := h.Subscribe("bob", 8)
	drain(alice)

	h.Publish(Event{Type: EventMessage, Message: groupMessage("alice", "hi all")})

	for _, c := range []*Client{alice, bob} {
		evts := drain(c)
		require.Len(t, evts, 1, c.Username)
		assert.Equal(t, "hi all", evts[0].Message.Text)
	}
}

func TestHub_DirectMessageOnlyReachesParticipants(t *testing.T) {
	h := NewHub(nil)
	alice := h.Subscribe("alice", 8)
	bob := h.Subscribe("bob", 8)
	carol := h.Subscribe("carol", 8)
	drain(alice)
	drain(bob)

	m := message.New("a", "alice", message.SendRequest{Recipient: "bob", Text: "psst"}, time.Now())
	h.Publish(Event{Type: EventMessage, Message: &m})

	assert.Len(t, drain(alice), 1)
	assert.Len(t, drain(bob), 1)
	assert.Empty(t, drain(carol))
}

func TestHub_FullBufferDropsForThatClientOnly(t *testing.T) {
	obs := &countingObserver{}
	h := NewHub(obs)
	slow := h.Subscribe("slow", 1)
	fast := h.Subscribe("fast", 8)
	drain(slow)

	h.Publish(Event{Type: EventMessage, Message: groupMessage("x", "one")})
	h.Publish(Event{Type: EventMessage, Message: groupMessage("x", "two")})

	assert.Len(t, drain(slow), 1)
	assert.Len(t, drain(fast), 2)
	assert.Equal(t, int64(1), obs.dropped.Load())
}

func TestHub_UnsubscribeClosesChannelAndAnnouncesLeave(t *testing.T) {
	obs := &countingObserver{}
	h := NewHub(obs)
	alice := h.Subscribe("alice", 8)
	bob := h.Subscribe("bob", 8)
	drain(alice)

	h.Unsubscribe(bob)
	h.Unsubscribe(bob)

	_, ok := <-bob.Events()
	assert.False(t, ok)

	evts := drain(alice)
	require.Len(t, evts, 1)
	assert.Equal(t, EventLeave, evts[0].Type)
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, int64(2), obs.joined.Load())
	assert.Equal(t, int64(1), obs.left.Load())
}

func TestRedisBridge_HandleSkipsOwnOrigin(t *testing.T) {
	h := NewHub(nil)
	alice := h.Subscribe("alice", 8)
	b := NewRedisBridge(nil, h, "test", nil)

	own, err := json.Marshal(envelope{Origin: b.origin, Event: Event{Type: EventMessage, Message: groupMessage("x", "echo")}})
	require.NoError(t, err)
	b.handle(own)
	assert.Empty(t, drain(alice))

	other, err := json.Marshal(envelope{Origin: "elsewhere", Event: Event{Type: EventMessage, Message: groupMessage("x", "remote")}})
	require.NoError(t, err)
	b.handle(other)

	evts := drain(alice)
	require.Len(t, evts, 1)
	assert.Equal(t, "remote", evts[0].Message.Text)

	b.handle([]byte("not json"))
	assert.Empty(t, drain(alice))
}
