package message

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
	"github.com/tellerdesk/tellerdesk/internal/conversation"
	"github.com/tellerdesk/tellerdesk/internal/db/dbtest"
	"github.com/tellerdesk/tellerdesk/internal/db/sqlc"
	"github.com/tellerdesk/tellerdesk/internal/message/event"
	"github.com/tellerdesk/tellerdesk/internal/notification"
	"github.com/tellerdesk/tellerdesk/internal/presence"
	"github.com/tellerdesk/tellerdesk/internal/requests"
	"github.com/tellerdesk/tellerdesk/internal/tickets"
)

type harness struct {
	store         *dbtest.Store
	hub           *event.Hub
	convs         *conversation.Service
	tracker       *presence.Tracker
	notifications *notification.Service
	svc           *DBService
	north         sqlc.Branch
	manager       string
	agent         string
	peer          string
	outsider      string
	admin         string
	group         conversation.Conversation
}

func newHarness(t *testing.T, opts Options) harness {
	t.Helper()
	ctx := context.Background()
	store := dbtest.New()
	hub := event.NewHub()
	north := dbtest.SeedBranch(t, store, "North")
	south := dbtest.SeedBranch(t, store, "South")

	users := accounts.NewService(nil, store)
	convs := conversation.NewService(nil, store, users, tickets.NewService(nil, store, users), requests.NewService(nil, store, users), hub)
	convs.SetClock(store.Now)
	tracker := presence.NewTracker(nil, store, hub)
	tracker.SetClock(store.Now)
	notifications := notification.NewService(nil, store, hub)
	svc := NewService(nil, store, convs, users, tracker, notifications, hub, opts)
	svc.SetClock(store.Now)

	h := harness{
		store:         store,
		hub:           hub,
		convs:         convs,
		tracker:       tracker,
		notifications: notifications,
		svc:           svc,
		north:         north,
		manager:       dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleManager, dbtest.InBranch(north)).ID),
		agent:         dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleAgent, dbtest.InBranch(north)).ID),
		peer:          dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleAgent, dbtest.InBranch(north)).ID),
		outsider:      dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleAgent, dbtest.InBranch(south)).ID),
		admin:         dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleAdmin).ID),
	}
	group, err := convs.CreateGroup(ctx, h.manager, conversation.CreateGroupRequest{Title: "Ops", ParticipantIDs: []string{h.agent, h.peer}})
	require.NoError(t, err)
	h.group = group
	return h
}

func (h harness) send(t *testing.T, actor, content string) Message {
	t.Helper()
	msg, err := h.svc.Send(context.Background(), actor, SendInput{ConversationID: h.group.ID, Content: content})
	require.NoError(t, err)
	return msg
}

func TestSendAndList(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	_, room, cancel := h.hub.Subscribe(h.group.ID, 8)
	defer cancel()

	first := h.send(t, h.agent, "  hello  ")
	assert.Equal(t, "hello", first.Content)
	assert.Equal(t, h.agent, first.SenderID)
	require.Len(t, first.ReadBy, 1)
	assert.Equal(t, h.agent, first.ReadBy[0].UserID)

	ev := <-room
	assert.Equal(t, event.TypeMessageCreated, ev.Type)
	assert.Equal(t, h.group.ID, ev.ConversationID)

	reply, err := h.svc.Send(ctx, h.manager, SendInput{ConversationID: h.group.ID, Content: "hi", ReplyToID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, first.ID, reply.ReplyToID)

	items, err := h.svc.List(ctx, h.peer, h.group.ID, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].ID, "oldest first")
	assert.Equal(t, reply.ID, items[1].ID)
	assert.NotEmpty(t, items[0].SenderDisplayName)

	conv, err := h.convs.Get(ctx, h.peer, h.group.ID)
	require.NoError(t, err)
	require.NotNil(t, conv.LastMessageAt)
	assert.Equal(t, reply.CreatedAt, *conv.LastMessageAt)

	_, err = h.svc.Send(ctx, h.agent, SendInput{ConversationID: h.group.ID, Content: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = h.svc.Send(ctx, h.agent, SendInput{ConversationID: h.group.ID, Content: strings.Repeat("é", MaxContentRunes+1)})
	assert.ErrorIs(t, err, ErrContentTooLong)
	_, err = h.svc.Send(ctx, h.agent, SendInput{ConversationID: h.group.ID, Content: strings.Repeat("é", MaxContentRunes)})
	require.NoError(t, err)
	_, err = h.svc.Send(ctx, h.outsider, SendInput{ConversationID: h.group.ID, Content: "let me in"})
	assert.ErrorIs(t, err, conversation.ErrPermissionDenied)
	_, err = h.svc.List(ctx, h.outsider, h.group.ID, time.Time{}, 0)
	assert.ErrorIs(t, err, conversation.ErrPermissionDenied)

	other, err := h.convs.CreateGroup(ctx, h.manager, conversation.CreateGroupRequest{Title: "Other", ParticipantIDs: []string{h.agent}})
	require.NoError(t, err)
	elsewhere, err := h.svc.Send(ctx, h.agent, SendInput{ConversationID: other.ID, Content: "elsewhere"})
	require.NoError(t, err)
	_, err = h.svc.Send(ctx, h.agent, SendInput{ConversationID: h.group.ID, Content: "re", ReplyToID: elsewhere.ID})
	assert.ErrorIs(t, err, ErrInvalidReply)
}

func TestAttachments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	file := func(name string, size int64) AttachmentInput {
		return AttachmentInput{FileName: name, Mime: "application/pdf", SizeBytes: size, StorageKey: "uploads/" + name}
	}

	many := make([]AttachmentInput, MaxAttachments+1)
	for i := range many {
		many[i] = file("f.pdf", 10)
	}
	_, err := h.svc.Send(ctx, h.agent, SendInput{ConversationID: h.group.ID, Attachments: many})
	assert.ErrorIs(t, err, ErrTooManyAttachments)
	_, err = h.svc.Send(ctx, h.agent, SendInput{ConversationID: h.group.ID, Attachments: []AttachmentInput{file("big.pdf", MaxAttachmentBytes+1)}})
	assert.ErrorIs(t, err, ErrAttachmentTooLarge)
	_, err = h.svc.Send(ctx, h.agent, SendInput{ConversationID: h.group.ID, Attachments: []AttachmentInput{{FileName: "x"}}})
	assert.ErrorIs(t, err, ErrInvalidAttachment)

	msg, err := h.svc.Send(ctx, h.agent, SendInput{
		ConversationID: h.group.ID,
		Attachments:    []AttachmentInput{file("statement.pdf", MaxAttachmentBytes), file("id.pdf", 2048)},
	})
	require.NoError(t, err, "attachments alone are enough")
	assert.Empty(t, msg.Content)
	require.Len(t, msg.Attachments, 2)

	items, err := h.svc.List(ctx, h.manager, h.group.ID, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Len(t, items[0].Attachments, 2)
	assert.Equal(t, "statement.pdf", items[0].Attachments[0].FileName)
	assert.Equal(t, 1, items[0].Attachments[1].Ordinal)

	_, err = h.svc.Edit(ctx, h.agent, msg.ID, "")
	require.NoError(t, err, "content may be cleared when attachments remain")
}

// attachmentFailStore fails the second attachment insert inside a transaction.
type attachmentFailStore struct {
	*dbtest.Store
	calls int
}

func (f *attachmentFailStore) InTx(ctx context.Context, fn func(q sqlc.Querier) error) error {
	return f.Store.InTx(ctx, func(sqlc.Querier) error { return fn(f) })
}

func (f *attachmentFailStore) CreateMessageAttachment(ctx context.Context, arg sqlc.CreateMessageAttachmentParams) (sqlc.MessageAttachment, error) {
	f.calls++
	if f.calls == 2 {
		return sqlc.MessageAttachment{}, errors.New("disk full")
	}
	return f.Store.CreateMessageAttachment(ctx, arg)
}

func TestSendRollsBackWhenAttachmentFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	_, room, cancel := h.hub.Subscribe(h.group.ID, 8)
	defer cancel()
	failing := &attachmentFailStore{Store: h.store}
	svc := NewService(nil, failing, h.convs, accounts.NewService(nil, h.store), h.tracker, h.notifications, h.hub, Options{})
	svc.SetClock(h.store.Now)

	_, err := svc.Send(ctx, h.agent, SendInput{
		ConversationID: h.group.ID,
		Content:        "see attached",
		Attachments: []AttachmentInput{
			{FileName: "a.pdf", Mime: "application/pdf", SizeBytes: 10, StorageKey: "uploads/a.pdf"},
			{FileName: "b.pdf", Mime: "application/pdf", SizeBytes: 10, StorageKey: "uploads/b.pdf"},
		},
	})
	require.Error(t, err)
	assert.Empty(t, room)

	items, err := h.svc.List(ctx, h.manager, h.group.ID, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
	conv, err := h.convs.Get(ctx, h.manager, h.group.ID)
	require.NoError(t, err)
	assert.Nil(t, conv.LastMessageAt)
}

func TestPaging(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	var sent []Message
	for i := 0; i < 35; i++ {
		sent = append(sent, h.send(t, h.agent, "m"))
	}

	page, err := h.svc.List(ctx, h.manager, h.group.ID, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, page, DefaultPageLimit)
	assert.Equal(t, sent[34].ID, page[len(page)-1].ID)
	assert.Equal(t, sent[5].ID, page[0].ID)

	older, err := h.svc.List(ctx, h.manager, h.group.ID, page[0].CreatedAt, 0)
	require.NoError(t, err)
	require.Len(t, older, 5)
	assert.Equal(t, sent[0].ID, older[0].ID)

	all, err := h.svc.List(ctx, h.manager, h.group.ID, time.Time{}, 5000)
	require.NoError(t, err)
	assert.Len(t, all, 35)
}

func TestListSinceReadsPastOnePage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	var sent []Message
	for i := 0; i < 2*MaxPageLimit+30; i++ {
		sent = append(sent, h.send(t, h.agent, "m"))
	}
	since := sent[9].CreatedAt

	items, more, err := h.svc.ListSince(ctx, h.manager, h.group.ID, since, 0)
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, items, len(sent)-10)
	assert.Equal(t, sent[10].ID, items[0].ID, "strictly after since")
	assert.Equal(t, sent[len(sent)-1].ID, items[len(items)-1].ID)
	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].CreatedAt.Before(items[i-1].CreatedAt), "oldest first")
	}

	capped, more, err := h.svc.ListSince(ctx, h.manager, h.group.ID, since, MaxPageLimit+5)
	require.NoError(t, err)
	assert.True(t, more)
	require.Len(t, capped, MaxPageLimit+5)
	assert.Equal(t, sent[10+MaxPageLimit+4].ID, capped[len(capped)-1].ID)

	exact, more, err := h.svc.ListSince(ctx, h.manager, h.group.ID, since, len(sent)-10)
	require.NoError(t, err)
	assert.False(t, more, "an exactly full replay is not truncated")
	assert.Len(t, exact, len(sent)-10)

	_, _, err = h.svc.ListSince(ctx, h.outsider, h.group.ID, since, 0)
	assert.ErrorIs(t, err, conversation.ErrPermissionDenied)
}

func TestEditRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{EditWindow: 15 * time.Minute})
	_, room, cancel := h.hub.Subscribe(h.group.ID, 8)
	defer cancel()
	msg := h.send(t, h.agent, "typo")
	<-room

	_, err := h.svc.Edit(ctx, h.manager, msg.ID, "hijack")
	assert.ErrorIs(t, err, ErrNotAuthor)
	_, err = h.svc.Edit(ctx, h.agent, msg.ID, "  ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	edited, err := h.svc.Edit(ctx, h.agent, msg.ID, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", edited.Content)
	require.NotNil(t, edited.EditedAt)
	ev := <-room
	assert.Equal(t, event.TypeMessageUpdated, ev.Type)

	h.store.Advance(16 * time.Minute)
	_, err = h.svc.Edit(ctx, h.agent, msg.ID, "too late")
	assert.ErrorIs(t, err, ErrEditWindowClosed)
	_, err = h.svc.Edit(ctx, h.agent, "missing", "x")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestEditWithoutWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	msg := h.send(t, h.agent, "draft")
	h.store.Advance(30 * 24 * time.Hour)
	_, err := h.svc.Edit(ctx, h.agent, msg.ID, "final")
	require.NoError(t, err)
}

func TestDeleteAndPurge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	own := h.send(t, h.agent, "oops")
	theirs := h.send(t, h.peer, "mine")
	_, err := h.svc.Send(ctx, h.agent, SendInput{
		ConversationID: h.group.ID,
		Content:        "with file",
		Attachments:    []AttachmentInput{{FileName: "a.png", Mime: "image/png", SizeBytes: 10, StorageKey: "k"}},
	})
	require.NoError(t, err)

	require.NoError(t, h.svc.Delete(ctx, h.agent, own.ID))
	assert.ErrorIs(t, h.svc.Delete(ctx, h.agent, own.ID), ErrMessageDeleted)
	assert.ErrorIs(t, h.svc.Delete(ctx, h.agent, theirs.ID), conversation.ErrPermissionDenied)
	_, err = h.svc.Edit(ctx, h.agent, own.ID, "again")
	assert.ErrorIs(t, err, ErrMessageDeleted)

	items, err := h.svc.List(ctx, h.peer, h.group.ID, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.True(t, items[0].Deleted)
	assert.Empty(t, items[0].Content)
	assert.NotNil(t, items[0].DeletedAt)
	assert.Len(t, items[2].Attachments, 1)

	require.NoError(t, h.svc.Delete(ctx, h.manager, items[2].ID), "owner moderates")
	items, err = h.svc.List(ctx, h.peer, h.group.ID, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, items[2].Attachments, "deleted messages hide attachments")

	assert.ErrorIs(t, h.svc.Purge(ctx, h.manager, theirs.ID), conversation.ErrPermissionDenied)
	require.NoError(t, h.svc.Purge(ctx, h.admin, theirs.ID))
	assert.ErrorIs(t, h.svc.Purge(ctx, h.admin, theirs.ID), ErrMessageNotFound)
	items, err = h.svc.List(ctx, h.peer, h.group.ID, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestMarkReadAndUnread(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	m1 := h.send(t, h.agent, "one")
	m2 := h.send(t, h.agent, "two")
	h.send(t, h.agent, "three")
	h.send(t, h.manager, "mine")

	n, err := h.svc.UnreadCount(ctx, h.manager, h.group.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, room, cancel := h.hub.Subscribe(h.group.ID, 8)
	defer cancel()
	ev, err := h.svc.MarkRead(ctx, h.manager, h.group.ID, m2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ev.Marked)
	assert.Equal(t, m2.ID, ev.UpToMessageID)
	published := <-room
	assert.Equal(t, event.TypeMessageRead, published.Type)
	assert.Equal(t, h.manager, published.UserID)

	n, err = h.svc.UnreadCount(ctx, h.manager, h.group.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	again, err := h.svc.MarkRead(ctx, h.manager, h.group.ID, m1.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Marked)

	items, err := h.svc.List(ctx, h.peer, h.group.ID, time.Time{}, 0)
	require.NoError(t, err)
	readers := map[string]bool{}
	for _, r := range items[0].ReadBy {
		readers[r.UserID] = true
	}
	assert.True(t, readers[h.agent])
	assert.True(t, readers[h.manager])

	_, err = h.svc.MarkRead(ctx, h.admin, h.group.ID, m1.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)

	other, err := h.convs.CreateGroup(ctx, h.manager, conversation.CreateGroupRequest{Title: "Other"})
	require.NoError(t, err)
	_, err = h.svc.MarkRead(ctx, h.manager, other.ID, m1.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestReadOnlyConversation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	msg := h.send(t, h.agent, "before close")

	observer := dbtest.SeedUser(t, h.store, accounts.RoleAgent, dbtest.InBranch(h.north))
	_, err := h.convs.AddParticipant(ctx, h.manager, h.group.ID, dbtest.ID(observer.ID), conversation.RoleObserver)
	require.NoError(t, err)
	_, err = h.svc.Send(ctx, dbtest.ID(observer.ID), SendInput{ConversationID: h.group.ID, Content: "hi"})
	assert.ErrorIs(t, err, ErrReadOnly)

	_, err = h.convs.Close(ctx, h.manager, h.group.ID)
	require.NoError(t, err)
	_, err = h.svc.Send(ctx, h.agent, SendInput{ConversationID: h.group.ID, Content: "after close"})
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = h.svc.Edit(ctx, h.agent, msg.ID, "edit")
	assert.ErrorIs(t, err, ErrReadOnly)

	items, err := h.svc.List(ctx, h.agent, h.group.ID, time.Time{}, 0)
	require.NoError(t, err, "history stays readable")
	assert.Len(t, items, 1)
}

func TestNotifiesOfflineParticipants(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	_, err := h.tracker.Connect(ctx, h.manager)
	require.NoError(t, err)

	h.send(t, h.agent, "anyone there?")

	offline, err := h.notifications.List(ctx, h.peer, 0)
	require.NoError(t, err)
	require.Len(t, offline, 1)
	assert.Equal(t, notification.KindMessage, offline[0].Kind)
	assert.Equal(t, h.group.ID, offline[0].RefID)
	assert.Equal(t, "Ops", offline[0].Title)
	assert.Contains(t, offline[0].Body, "anyone there?")

	online, err := h.notifications.List(ctx, h.manager, 0)
	require.NoError(t, err)
	assert.Empty(t, online)
	sender, err := h.notifications.List(ctx, h.agent, 0)
	require.NoError(t, err)
	assert.Empty(t, sender)
}
