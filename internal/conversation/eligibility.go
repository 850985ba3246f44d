package conversation

import (
	"errors"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
)

var ErrIneligibleParticipant = errors.New("user cannot join this conversation")

// Eligible decides whether target may be added to a conversation of kind by actor.
func Eligible(actor, target accounts.User, kind string, link Link) error {
	if target.ID == "" || !target.IsActive {
		return ErrIneligibleParticipant
	}
	switch kind {
	case KindTicket:
		if target.IsAdmin() || target.ID == link.CreatedBy || (link.AssignedTo != "" && target.ID == link.AssignedTo) {
			return nil
		}
		if target.IsStaff() && link.TeamID != "" && target.TeamID == link.TeamID {
			return nil
		}
		if target.IsStaff() && link.BranchID != "" && target.BranchID == link.BranchID {
			return nil
		}
		return ErrIneligibleParticipant
	case KindRequest:
		if target.IsAdmin() || target.ID == link.CreatedBy || (link.AssignedTo != "" && target.ID == link.AssignedTo) {
			return nil
		}
		if target.IsStaff() && link.BranchID != "" && target.BranchID == link.BranchID {
			return nil
		}
		return ErrIneligibleParticipant
	case KindDirect, KindGroup:
		if !target.IsStaff() {
			return ErrIneligibleParticipant
		}
		if actor.IsAdmin() || target.IsAdmin() {
			return nil
		}
		if actor.BranchID == "" || target.BranchID != actor.BranchID {
			return ErrIneligibleParticipant
		}
		return nil
	}
	return ErrIneligibleParticipant
}
