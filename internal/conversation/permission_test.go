package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
)

func TestResolve(t *testing.T) {
	agent := accounts.User{ID: "agent", Role: accounts.RoleAgent, BranchID: "north", IsActive: true}
	manager := accounts.User{ID: "manager", Role: accounts.RoleManager, BranchID: "north", IsActive: true}
	admin := accounts.User{ID: "admin", Role: accounts.RoleAdmin, IsActive: true}
	customer := accounts.User{ID: "customer", Role: accounts.RoleCustomer, IsActive: true}

	group := Conversation{ID: "c1", Kind: KindGroup, Status: StatusActive}
	ticket := Conversation{ID: "c2", Kind: KindTicket, Status: StatusActive}
	ticketLink := Link{CreatedBy: "customer", AssignedTo: "agent", BranchID: "north"}

	cases := []struct {
		name   string
		user   accounts.User
		conv   Conversation
		role   string
		link   Link
		denied bool
		want   Capabilities
	}{
		{
			name: "group member posts but cannot manage",
			user: agent, conv: group, role: RoleMember,
			want: Capabilities{CanRead: true, CanPost: true, CanUpload: true, IsParticipant: true, ParticipantRole: RoleMember},
		},
		{
			name: "group owner manages",
			user: agent, conv: group, role: RoleOwner,
			want: Capabilities{CanRead: true, CanPost: true, CanUpload: true, CanClose: true, CanManage: true, IsParticipant: true, ParticipantRole: RoleOwner},
		},
		{
			name: "outsider is denied",
			user: agent, conv: group, denied: true,
		},
		{
			name: "admin supervises without posting",
			user: admin, conv: group,
			want: Capabilities{CanRead: true, CanClose: true, CanManage: true},
		},
		{
			name: "observer is read only",
			user: agent, conv: group, role: RoleObserver,
			want: Capabilities{CanRead: true, ReadOnly: true, IsParticipant: true, ParticipantRole: RoleObserver},
		},
		{
			name: "customer uploads in ticket chat",
			user: customer, conv: ticket, role: RoleMember, link: ticketLink,
			want: Capabilities{CanRead: true, CanPost: true, CanUpload: true, IsParticipant: true, ParticipantRole: RoleMember},
		},
		{
			name: "assignee closes ticket chat",
			user: agent, conv: ticket, role: RoleMember, link: ticketLink,
			want: Capabilities{CanRead: true, CanPost: true, CanUpload: true, CanClose: true, CanManage: true, IsParticipant: true, ParticipantRole: RoleMember},
		},
		{
			name: "terminal ticket freezes chat",
			user: customer, conv: ticket, role: RoleMember, link: Link{CreatedBy: "customer", Terminal: true},
			want: Capabilities{CanRead: true, ReadOnly: true, IsParticipant: true, ParticipantRole: RoleMember},
		},
		{
			name: "branch manager supervises branch tickets",
			user: manager, conv: ticket, link: ticketLink,
			want: Capabilities{CanRead: true, CanClose: true, CanManage: true},
		},
		{
			name: "branch manager has no reach into groups",
			user: manager, conv: group, denied: true,
		},
		{
			name: "closed conversation is read only",
			user: agent, conv: Conversation{Kind: KindGroup, Status: StatusClosed}, role: RoleOwner,
			want: Capabilities{CanRead: true, ReadOnly: true, CanClose: true, CanManage: true, IsParticipant: true, ParticipantRole: RoleOwner},
		},
		{
			name: "inactive user is denied",
			user: accounts.User{ID: "x", Role: accounts.RoleAgent}, conv: group, role: RoleOwner, denied: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(tc.user, tc.conv, tc.role, tc.link)
			if tc.denied {
				assert.ErrorIs(t, err, ErrPermissionDenied)
				assert.Equal(t, Capabilities{}, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
