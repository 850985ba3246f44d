// Package event fans chat events out to in-process subscribers and, optionally, to other nodes.
package event

import (
	"encoding/json"
	"time"
)

type Type string

const (
	TypeMessageCreated      Type = "message.created"
	TypeMessageUpdated      Type = "message.updated"
	TypeMessageDeleted      Type = "message.deleted"
	TypeMessageRead         Type = "message.read"
	TypeTyping              Type = "typing"
	TypePresenceUpdated     Type = "presence.updated"
	TypeConversationUpdated Type = "conversation.updated"
	TypeParticipantAdded    Type = "participant.added"
	TypeParticipantRemoved  Type = "participant.removed"
	TypeNotificationCreated Type = "notification.created"
)

// Event is one fan-out unit.
//
// ConversationID scopes room events. UserID is the subject: the reader for
// message.read, the typist, the presence owner, the removed participant or the
// notification target. Recipients, when set, limits delivery to those users.
type Event struct {
	Type           Type            `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Recipients     []string        `json:"recipients,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	At             time.Time       `json:"at"`
}

// New marshals data into an event. A marshal failure yields an event without data.
func New(t Type, conversationID, userID string, data any) Event {
	ev := Event{Type: t, ConversationID: conversationID, UserID: userID, At: time.Now().UTC()}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			ev.Data = raw
		}
	}
	return ev
}

// IsRoomEvent reports whether the event is delivered to sockets joined to its conversation.
func (e Event) IsRoomEvent() bool {
	switch e.Type {
	case TypePresenceUpdated, TypeNotificationCreated:
		return false
	}
	return e.ConversationID != ""
}

type Publisher interface {
	Publish(Event)
}

// Subscriber hands out event streams. An empty key receives every event; otherwise only
// events whose ConversationID equals key.
type Subscriber interface {
	Subscribe(key string, buffer int) (string, <-chan Event, func())
}
