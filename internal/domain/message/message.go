package message

import (
	"time"

	"github.com/google/uuid"
)

// GroupRecipient addresses every connected listener.
const GroupRecipient = "Group"

type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type SendRequest struct {
	Recipient string `json:"recipient" binding:"omitempty,max=40"`
	Text      string `json:"text" binding:"required,notblank,max=2000"`
}

func New(senderID, sender string, req SendRequest, now time.Time) Message {
	recipient := req.Recipient
	if recipient == "" {
		recipient = GroupRecipient
	}

	return Message{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		Sender:    sender,
		Recipient: recipient,
		Text:      req.Text,
		CreatedAt: now,
	}
}

// IsGroup reports whether m is addressed to the whole room.
func (m Message) IsGroup() bool {
	return m.Recipient == "" || m.Recipient == GroupRecipient
}
