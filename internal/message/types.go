package message

import (
	"context"
	"time"
)

const (
	MaxContentRunes     = 4000
	MaxAttachments      = 10
	MaxAttachmentBytes  = 25 << 20
	DefaultPageLimit    = 30
	MaxPageLimit        = 100
	MaxReplay           = 1000
	notificationPreview = 140
)

// Attachment carries file metadata. Bytes live in external storage under StorageKey.
type Attachment struct {
	ID         string `json:"id"`
	FileName   string `json:"file_name"`
	Mime       string `json:"mime"`
	SizeBytes  int64  `json:"size_bytes"`
	StorageKey string `json:"storage_key"`
	Ordinal    int    `json:"ordinal"`
}

type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// Message is one chat message. Deleted messages keep their envelope but expose no
// content or attachments.
type Message struct {
	ID                string        `json:"id"`
	ConversationID    string        `json:"conversation_id"`
	SenderID          string        `json:"sender_id"`
	SenderDisplayName string        `json:"sender_display_name,omitempty"`
	Content           string        `json:"content"`
	ReplyToID         string        `json:"reply_to_id,omitempty"`
	Deleted           bool          `json:"deleted"`
	EditedAt          *time.Time    `json:"edited_at,omitempty"`
	DeletedAt         *time.Time    `json:"deleted_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	Attachments       []Attachment  `json:"attachments,omitempty"`
	ReadBy            []ReadReceipt `json:"read_by,omitempty"`
}

type AttachmentInput struct {
	FileName   string `json:"file_name" validate:"required,max=255"`
	Mime       string `json:"mime" validate:"required,max=127"`
	SizeBytes  int64  `json:"size_bytes" validate:"gt=0"`
	StorageKey string `json:"storage_key" validate:"required,max=512"`
}

// SendInput is the payload of a new message. ConversationID is taken from the route
// over HTTP and from the frame over the socket.
type SendInput struct {
	ConversationID string            `json:"conversation_id,omitempty"`
	Content        string            `json:"content" validate:"max=16000"`
	ReplyToID      string            `json:"reply_to_id,omitempty" validate:"omitempty,uuid"`
	Attachments    []AttachmentInput `json:"attachments,omitempty" validate:"dive"`
}

type EditRequest struct {
	Content string `json:"content" validate:"max=16000"`
}

type MarkReadRequest struct {
	UpToMessageID string `json:"up_to_message_id" validate:"required,uuid"`
}

type ListMessagesResponse struct {
	Items []Message `json:"items"`
}

// ReadEvent is the payload of message.read.
type ReadEvent struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	UpToMessageID  string    `json:"up_to_message_id"`
	ReadAt         time.Time `json:"read_at"`
	Marked         int64     `json:"marked"`
}

// DeletedEvent is the payload of message.deleted.
type DeletedEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	DeletedBy      string    `json:"deleted_by"`
	Purged         bool      `json:"purged"`
	At             time.Time `json:"at"`
}

// Notifier receives new-message notices for participants who are offline.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, userID, conversationID, messageID, title, preview string) error
}

// Store is what the HTTP handlers and the socket gateway need.
type Store interface {
	Send(ctx context.Context, actorID string, input SendInput) (Message, error)
	Edit(ctx context.Context, actorID, messageID, content string) (Message, error)
	Delete(ctx context.Context, actorID, messageID string) error
	Purge(ctx context.Context, actorID, messageID string) error
	List(ctx context.Context, actorID, conversationID string, before time.Time, limit int) ([]Message, error)
	ListSince(ctx context.Context, actorID, conversationID string, since time.Time, limit int) ([]Message, bool, error)
	MarkRead(ctx context.Context, actorID, conversationID, upToMessageID string) (ReadEvent, error)
	UnreadCount(ctx context.Context, userID, conversationID string) (int64, error)
}
