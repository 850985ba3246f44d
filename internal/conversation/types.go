package conversation

import "time"

const (
	KindDirect  = "direct"
	KindGroup   = "group"
	KindTicket  = "ticket"
	KindRequest = "request"

	StatusActive   = "active"
	StatusArchived = "archived"
	StatusClosed   = "closed"

	RoleOwner    = "owner"
	RoleMember   = "member"
	RoleObserver = "observer"
)

// Conversation is a chat room, optionally linked to a ticket or a service request.
type Conversation struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	TicketID      string     `json:"ticket_id,omitempty"`
	RequestID     string     `json:"request_id,omitempty"`
	CreatedBy     string     `json:"created_by"`
	ClosedBy      string     `json:"closed_by,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Viewer-specific fields, filled by ListForUser.
	ParticipantRole string     `json:"participant_role,omitempty"`
	LastReadAt      *time.Time `json:"last_read_at,omitempty"`
	UnreadCount     int64      `json:"unread_count"`
}

type Participant struct {
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	Role           string     `json:"role"`
	DisplayName    string     `json:"display_name,omitempty"`
	UserRole       string     `json:"user_role,omitempty"`
	JoinedAt       time.Time  `json:"joined_at"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
}

// Capabilities is what one user may do in one conversation.
type Capabilities struct {
	CanRead         bool   `json:"can_read"`
	CanPost         bool   `json:"can_post"`
	CanUpload       bool   `json:"can_upload"`
	ReadOnly        bool   `json:"read_only"`
	CanClose        bool   `json:"can_close"`
	CanManage       bool   `json:"can_manage"`
	IsParticipant   bool   `json:"is_participant"`
	ParticipantRole string `json:"participant_role,omitempty"`
}

type CreateGroupRequest struct {
	Title          string   `json:"title" validate:"required,max=120"`
	ParticipantIDs []string `json:"participant_ids" validate:"dive,uuid"`
}

type DirectRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type AddParticipantRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role,omitempty" validate:"omitempty,oneof=member observer"`
}

type ListConversationsResponse struct {
	Items []Conversation `json:"items"`
}

type ListParticipantsResponse struct {
	Items []Participant `json:"items"`
}

// ParticipantChange is the payload of participant.added and participant.removed events.
type ParticipantChange struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Role           string `json:"role,omitempty"`
	ActorID        string `json:"actor_id"`
}
