package notification

import "time"

const (
	KindMessage = "message"
	KindTicket  = "ticket"
	KindRequest = "service_request"

	RefConversation = "conversation"
	RefTicket       = "ticket"
	RefRequest      = "service_request"

	DefaultListLimit = 50
	MaxListLimit     = 200
)

type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	RefType   string     `json:"ref_type,omitempty"`
	RefID     string     `json:"ref_id,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateInput describes a notification for one user.
type CreateInput struct {
	UserID  string
	Kind    string
	Title   string
	Body    string
	RefType string
	RefID   string
}

type ListResponse struct {
	Items  []Notification `json:"items"`
	Unread int64          `json:"unread"`
}

type MarkAllResponse struct {
	Marked int64 `json:"marked"`
}
