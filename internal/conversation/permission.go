package conversation

import (
	"errors"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
)

var ErrPermissionDenied = errors.New("conversation access denied")

// Link summarises the ticket or request a conversation belongs to.
type Link struct {
	CreatedBy  string
	AssignedTo string
	TeamID     string
	BranchID   string
	// Terminal is set when the ticket is resolved/closed or the request completed/rejected.
	Terminal bool
}

func linked(kind string) bool {
	return kind == KindTicket || kind == KindRequest
}

// Resolve computes the capabilities of user in conv. participantRole is empty when the
// user is not a participant. A result without CanRead comes with ErrPermissionDenied.
func Resolve(user accounts.User, conv Conversation, participantRole string, link Link) (Capabilities, error) {
	if !user.IsActive {
		return Capabilities{}, ErrPermissionDenied
	}
	caps := Capabilities{
		IsParticipant:   participantRole != "",
		ParticipantRole: participantRole,
	}
	branchManager := user.Role == accounts.RoleManager && linked(conv.Kind) &&
		link.BranchID != "" && link.BranchID == user.BranchID
	supervisor := user.IsAdmin() || branchManager

	if !caps.IsParticipant && !supervisor {
		return Capabilities{}, ErrPermissionDenied
	}
	caps.CanRead = true

	caps.ReadOnly = conv.Status != StatusActive || (linked(conv.Kind) && link.Terminal)
	caps.CanPost = caps.IsParticipant && participantRole != RoleObserver && !caps.ReadOnly
	if participantRole == RoleObserver {
		caps.ReadOnly = true
	}
	caps.CanUpload = caps.CanPost && (user.IsStaff() || linked(conv.Kind))

	if user.IsStaff() {
		owner := participantRole == RoleOwner
		assignee := linked(conv.Kind) && link.AssignedTo != "" && link.AssignedTo == user.ID
		caps.CanClose = supervisor || owner || assignee
		caps.CanManage = supervisor || owner || assignee
	}
	return caps, nil
}
