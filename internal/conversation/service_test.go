package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
	"github.com/tellerdesk/tellerdesk/internal/db"
	"github.com/tellerdesk/tellerdesk/internal/db/dbtest"
	"github.com/tellerdesk/tellerdesk/internal/db/sqlc"
	"github.com/tellerdesk/tellerdesk/internal/message/event"
	"github.com/tellerdesk/tellerdesk/internal/requests"
	"github.com/tellerdesk/tellerdesk/internal/tickets"
)

type fixture struct {
	store    *dbtest.Store
	svc      *Service
	events   <-chan event.Event
	north    sqlc.Branch
	cards    sqlc.Team
	customer sqlc.User
	agent    sqlc.User
	peer     sqlc.User
	manager  sqlc.User
	outsider sqlc.User
	admin    sqlc.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := dbtest.New()
	hub := event.NewHub()
	_, events, cancel := hub.Subscribe("", 64)
	t.Cleanup(cancel)

	north := dbtest.SeedBranch(t, store, "North")
	south := dbtest.SeedBranch(t, store, "South")
	cards := dbtest.SeedTeam(t, store, north, "Cards")
	users := accounts.NewService(nil, store)
	svc := NewService(nil, store, users, tickets.NewService(nil, store, users), requests.NewService(nil, store, users), hub)
	svc.SetClock(store.Now)
	return fixture{
		store:    store,
		svc:      svc,
		events:   events,
		north:    north,
		cards:    cards,
		customer: dbtest.SeedUser(t, store, accounts.RoleCustomer, dbtest.InBranch(north)),
		agent:    dbtest.SeedUser(t, store, accounts.RoleAgent, dbtest.InTeam(cards)),
		peer:     dbtest.SeedUser(t, store, accounts.RoleAgent, dbtest.InTeam(cards)),
		manager:  dbtest.SeedUser(t, store, accounts.RoleManager, dbtest.InBranch(north)),
		outsider: dbtest.SeedUser(t, store, accounts.RoleAgent, dbtest.InBranch(south)),
		admin:    dbtest.SeedUser(t, store, accounts.RoleAdmin),
	}
}

func id(u sqlc.User) string { return dbtest.ID(u.ID) }

func mustUUID(t *testing.T, raw string) pgtype.UUID {
	t.Helper()
	out, err := db.ParseUUID(raw)
	require.NoError(t, err)
	return out
}

func drain(events <-chan event.Event) []event.Event {
	var out []event.Event
	for {
		select {
		case ev := <-events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func participantRoles(t *testing.T, f fixture, actor sqlc.User, convID string) map[string]string {
	t.Helper()
	items, err := f.svc.ListParticipants(context.Background(), id(actor), convID)
	require.NoError(t, err)
	out := map[string]string{}
	for _, p := range items {
		out[p.UserID] = p.Role
	}
	return out
}

func TestTicketConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := dbtest.SeedTicket(t, f.store, f.customer, sqlc.CreateTicketParams{
		Subject:    "Card swallowed",
		TeamID:     f.cards.ID,
		AssignedTo: f.agent.ID,
	})
	ticketID := dbtest.ID(ticket.ID)

	conv, err := f.svc.GetOrCreateForTicket(ctx, id(f.customer), ticketID)
	require.NoError(t, err)
	assert.Equal(t, KindTicket, conv.Kind)
	assert.Equal(t, "Ticket: Card swallowed", conv.Title)
	assert.Equal(t, ticketID, conv.TicketID)
	assert.Equal(t, RoleMember, conv.ParticipantRole)
	assert.Equal(t, map[string]string{id(f.customer): RoleMember, id(f.agent): RoleMember}, participantRoles(t, f, f.customer, conv.ID))

	again, err := f.svc.GetOrCreateForTicket(ctx, id(f.agent), ticketID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	drain(f.events)
	joined, err := f.svc.GetOrCreateForTicket(ctx, id(f.peer), ticketID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, joined.ID)
	assert.Equal(t, RoleMember, joined.ParticipantRole, "team member joins on first view")
	evs := drain(f.events)
	require.Len(t, evs, 1)
	assert.Equal(t, event.TypeParticipantAdded, evs[0].Type)
	assert.Equal(t, id(f.peer), evs[0].UserID)

	_, err = f.svc.GetOrCreateForTicket(ctx, id(f.outsider), ticketID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.Get(ctx, id(f.outsider), conv.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	caps, err := f.svc.Capabilities(ctx, id(f.manager), conv.ID)
	require.NoError(t, err)
	assert.True(t, caps.CanRead, "branch manager supervises")
	assert.False(t, caps.CanPost)

	_, err = f.svc.Close(ctx, id(f.customer), conv.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	closed, err := f.svc.Close(ctx, id(f.agent), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	assert.Equal(t, id(f.agent), closed.ClosedBy)
	require.NotNil(t, closed.ClosedAt)

	caps, err = f.svc.Capabilities(ctx, id(f.customer), conv.ID)
	require.NoError(t, err)
	assert.True(t, caps.ReadOnly)
	assert.False(t, caps.CanPost)
}

func TestTicketConversationFrozenWhenResolved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := dbtest.SeedTicket(t, f.store, f.customer, sqlc.CreateTicketParams{TeamID: f.cards.ID})
	conv, err := f.svc.GetOrCreateForTicket(ctx, id(f.customer), dbtest.ID(ticket.ID))
	require.NoError(t, err)

	_, err = f.store.UpdateTicketStatus(ctx, sqlc.UpdateTicketStatusParams{ID: ticket.ID, Status: tickets.StatusResolved})
	require.NoError(t, err)

	caps, err := f.svc.Capabilities(ctx, id(f.customer), conv.ID)
	require.NoError(t, err)
	assert.True(t, caps.ReadOnly)
	assert.False(t, caps.CanUpload)
}

func TestRequestConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := dbtest.SeedRequest(t, f.store, f.customer, sqlc.CreateServiceRequestParams{})

	conv, err := f.svc.GetOrCreateForRequest(ctx, id(f.manager), dbtest.ID(req.ID))
	require.NoError(t, err)
	assert.Equal(t, KindRequest, conv.Kind)
	assert.Equal(t, "Request: card_replacement", conv.Title)
	assert.Equal(t, RoleOwner, conv.ParticipantRole, "staff opener owns the chat")
	assert.Equal(t, map[string]string{id(f.manager): RoleOwner, id(f.customer): RoleMember}, participantRoles(t, f, f.customer, conv.ID))

	_, err = f.svc.GetOrCreateForRequest(ctx, id(f.outsider), dbtest.ID(req.ID))
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDirectConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.GetOrCreateDirect(ctx, id(f.agent), id(f.manager))
	require.NoError(t, err)
	assert.Equal(t, KindDirect, first.Kind)
	second, err := f.svc.GetOrCreateDirect(ctx, id(f.manager), id(f.agent))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "one direct conversation per pair")

	_, err = f.svc.GetOrCreateDirect(ctx, id(f.agent), id(f.agent))
	assert.ErrorIs(t, err, ErrSelfDirect)
	_, err = f.svc.GetOrCreateDirect(ctx, id(f.customer), id(f.agent))
	assert.ErrorIs(t, err, ErrStaffOnly)
	_, err = f.svc.GetOrCreateDirect(ctx, id(f.agent), id(f.outsider))
	assert.ErrorIs(t, err, ErrIneligibleParticipant)
	_, err = f.svc.GetOrCreateDirect(ctx, id(f.outsider), id(f.admin))
	require.NoError(t, err)

	_, err = f.svc.AddParticipant(ctx, id(f.admin), first.ID, id(f.peer), RoleMember)
	assert.ErrorIs(t, err, ErrDirectImmutable)
	assert.ErrorIs(t, f.svc.RemoveParticipant(ctx, id(f.agent), first.ID, id(f.agent)), ErrDirectImmutable)
}

// failingStore fails AddParticipant after the first failAfter successful calls made
// inside a transaction.
type failingStore struct {
	*dbtest.Store
	failAfter int
	calls     int
}

func (f *failingStore) InTx(ctx context.Context, fn func(q sqlc.Querier) error) error {
	return f.Store.InTx(ctx, func(sqlc.Querier) error { return fn(f) })
}

func (f *failingStore) AddParticipant(ctx context.Context, arg sqlc.AddParticipantParams) (sqlc.ConversationParticipant, error) {
	f.calls++
	if f.calls > f.failAfter {
		return sqlc.ConversationParticipant{}, errors.New("connection reset")
	}
	return f.Store.AddParticipant(ctx, arg)
}

func TestCreateRollsBackWhenMemberInsertFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	failing := &failingStore{Store: f.store, failAfter: 1}
	users := accounts.NewService(nil, f.store)
	hub := event.NewHub()
	_, events, cancel := hub.Subscribe("", 16)
	defer cancel()
	svc := NewService(nil, failing, users, tickets.NewService(nil, f.store, users), requests.NewService(nil, f.store, users), hub)

	_, err := svc.CreateGroup(ctx, id(f.manager), CreateGroupRequest{Title: "Ops", ParticipantIDs: []string{id(f.agent)}})
	require.Error(t, err)
	_, err = svc.GetOrCreateDirect(ctx, id(f.agent), id(f.peer))
	require.Error(t, err)
	assert.Empty(t, drain(events))

	for _, u := range []sqlc.User{f.manager, f.agent, f.peer} {
		list, err := f.svc.ListForUser(ctx, id(u))
		require.NoError(t, err)
		assert.Empty(t, list)
	}

	// Nothing half-written blocks a clean retry.
	direct, err := f.svc.GetOrCreateDirect(ctx, id(f.agent), id(f.peer))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{id(f.agent): RoleMember, id(f.peer): RoleMember}, participantRoles(t, f, f.agent, direct.ID))
}

func TestGroupMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateGroup(ctx, id(f.customer), CreateGroupRequest{Title: "x"})
	assert.ErrorIs(t, err, ErrStaffOnly)
	_, err = f.svc.CreateGroup(ctx, id(f.manager), CreateGroupRequest{Title: "   "})
	assert.ErrorIs(t, err, ErrTitleRequired)
	_, err = f.svc.CreateGroup(ctx, id(f.manager), CreateGroupRequest{Title: "Ops", ParticipantIDs: []string{id(f.outsider)}})
	assert.ErrorIs(t, err, ErrIneligibleParticipant)

	group, err := f.svc.CreateGroup(ctx, id(f.manager), CreateGroupRequest{
		Title:          " Ops ",
		ParticipantIDs: []string{id(f.agent), id(f.agent), id(f.manager)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ops", group.Title)
	assert.Equal(t, map[string]string{id(f.manager): RoleOwner, id(f.agent): RoleMember}, participantRoles(t, f, f.agent, group.ID))

	_, err = f.svc.AddParticipant(ctx, id(f.agent), group.ID, id(f.peer), RoleMember)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.AddParticipant(ctx, id(f.manager), group.ID, id(f.customer), RoleMember)
	assert.ErrorIs(t, err, ErrIneligibleParticipant)
	_, err = f.svc.AddParticipant(ctx, id(f.manager), group.ID, id(f.peer), RoleOwner)
	assert.ErrorIs(t, err, ErrInvalidRole)

	drain(f.events)
	p, err := f.svc.AddParticipant(ctx, id(f.manager), group.ID, id(f.peer), RoleObserver)
	require.NoError(t, err)
	assert.Equal(t, RoleObserver, p.Role)
	assert.Equal(t, f.peer.DisplayName, p.DisplayName)
	evs := drain(f.events)
	require.Len(t, evs, 1)
	assert.Equal(t, event.TypeParticipantAdded, evs[0].Type)
	assert.Equal(t, group.ID, evs[0].ConversationID)

	caps, err := f.svc.Capabilities(ctx, id(f.peer), group.ID)
	require.NoError(t, err)
	assert.True(t, caps.ReadOnly)
	assert.False(t, caps.CanPost)

	assert.ErrorIs(t, f.svc.RemoveParticipant(ctx, id(f.agent), group.ID, id(f.peer)), ErrPermissionDenied)
	assert.ErrorIs(t, f.svc.RemoveParticipant(ctx, id(f.admin), group.ID, id(f.manager)), ErrOwnerRemoval)
	require.NoError(t, f.svc.RemoveParticipant(ctx, id(f.peer), group.ID, id(f.peer)), "self leave")
	require.NoError(t, f.svc.RemoveParticipant(ctx, id(f.manager), group.ID, id(f.agent)))
	assert.ErrorIs(t, f.svc.RemoveParticipant(ctx, id(f.manager), group.ID, id(f.agent)), ErrParticipantNotFound)

	evs = drain(f.events)
	require.Len(t, evs, 2)
	assert.Equal(t, event.TypeParticipantRemoved, evs[1].Type)
	assert.Equal(t, id(f.agent), evs[1].UserID)
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	group, err := f.svc.CreateGroup(ctx, id(f.manager), CreateGroupRequest{Title: "Ops", ParticipantIDs: []string{id(f.agent)}})
	require.NoError(t, err)

	_, err = f.svc.Close(ctx, id(f.agent), group.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.Reopen(ctx, id(f.manager), group.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	drain(f.events)
	closed, err := f.svc.Close(ctx, id(f.manager), group.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	evs := drain(f.events)
	require.Len(t, evs, 1)
	assert.Equal(t, event.TypeConversationUpdated, evs[0].Type)

	_, err = f.svc.Close(ctx, id(f.manager), group.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.AddParticipant(ctx, id(f.manager), group.ID, id(f.peer), "")
	assert.ErrorIs(t, err, ErrNotActive)

	archived, err := f.svc.Archive(ctx, id(f.manager), group.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, archived.Status)
	assert.Equal(t, id(f.manager), archived.ClosedBy)

	reopened, err := f.svc.Reopen(ctx, id(f.admin), group.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, reopened.Status)
	assert.Nil(t, reopened.ClosedAt)
}

func TestArchiveIdle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stale, err := f.svc.CreateGroup(ctx, id(f.manager), CreateGroupRequest{Title: "Stale"})
	require.NoError(t, err)
	f.store.Advance(48 * time.Hour)
	fresh, err := f.svc.CreateGroup(ctx, id(f.manager), CreateGroupRequest{Title: "Fresh"})
	require.NoError(t, err)

	n, err := f.svc.ArchiveIdle(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(ctx, id(f.manager), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, got.Status)
	got, err = f.svc.Get(ctx, id(f.manager), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)

	n, err = f.svc.ArchiveIdle(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListForUserCountsUnread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	older, err := f.svc.CreateGroup(ctx, id(f.manager), CreateGroupRequest{Title: "Older", ParticipantIDs: []string{id(f.agent)}})
	require.NoError(t, err)
	newer, err := f.svc.CreateGroup(ctx, id(f.manager), CreateGroupRequest{Title: "Newer", ParticipantIDs: []string{id(f.agent)}})
	require.NoError(t, err)

	_, err = f.store.CreateMessage(ctx, sqlc.CreateMessageParams{ConversationID: mustUUID(t, older.ID), SenderID: f.manager.ID, Content: "hello"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Touch(ctx, older.ID, f.store.Now()))

	items, err := f.svc.ListForUser(ctx, id(f.agent))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, older.ID, items[0].ID, "recent activity first")
	assert.Equal(t, int64(1), items[0].UnreadCount)
	assert.Equal(t, newer.ID, items[1].ID)
	assert.Zero(t, items[1].UnreadCount)
}
