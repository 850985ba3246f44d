package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
	"github.com/tellerdesk/tellerdesk/internal/auth"
	"github.com/tellerdesk/tellerdesk/internal/conversation"
	"github.com/tellerdesk/tellerdesk/internal/db/dbtest"
	"github.com/tellerdesk/tellerdesk/internal/db/sqlc"
	"github.com/tellerdesk/tellerdesk/internal/healthcheck"
	"github.com/tellerdesk/tellerdesk/internal/message"
	"github.com/tellerdesk/tellerdesk/internal/message/event"
	"github.com/tellerdesk/tellerdesk/internal/notification"
	"github.com/tellerdesk/tellerdesk/internal/presence"
	"github.com/tellerdesk/tellerdesk/internal/requests"
	"github.com/tellerdesk/tellerdesk/internal/server"
	"github.com/tellerdesk/tellerdesk/internal/tickets"
)

const testSecret = "handlers-test-secret"

type api struct {
	t             *testing.T
	store         *dbtest.Store
	users         *accounts.Service
	notifications *notification.Service
	messages      *MessageHandler
	srv           *server.Server
	north         sqlc.Branch
	customer      string
	agent         string
	manager       string
	admin         string
}

type failingChecker struct{}

func (failingChecker) Check(context.Context) healthcheck.CheckResult {
	return healthcheck.CheckResult{ID: "db", Status: healthcheck.StatusError}
}

func newAPI(t *testing.T, checkers ...healthcheck.Checker) *api {
	t.Helper()
	store := dbtest.New()
	hub := event.NewHub()
	north := dbtest.SeedBranch(t, store, "North")
	users := accounts.NewService(nil, store)
	ticketSvc := tickets.NewService(nil, store, users)
	requestSvc := requests.NewService(nil, store, users)
	convs := conversation.NewService(nil, store, users, ticketSvc, requestSvc, hub)
	tracker := presence.NewTracker(nil, store, hub)
	notifications := notification.NewService(nil, store, hub)
	messageSvc := message.NewService(nil, store, convs, users, tracker, notifications, hub, message.Options{})
	messages := NewMessageHandler(nil, messageSvc, convs, hub)

	srv := server.NewServer(nil, "", testSecret,
		NewPingHandler(nil, checkers...),
		NewAuthHandler(nil, users, testSecret, time.Hour),
		NewUsersHandler(nil, users),
		NewTicketsHandler(nil, ticketSvc, convs),
		NewRequestsHandler(nil, requestSvc, convs),
		NewConversationsHandler(nil, convs),
		messages,
		NewPresenceHandler(nil, tracker),
		NewNotificationsHandler(nil, notifications),
	)
	return &api{
		t:             t,
		store:         store,
		users:         users,
		notifications: notifications,
		messages:      messages,
		srv:           srv,
		north:         north,
		customer:      dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleCustomer, dbtest.InBranch(north)).ID),
		agent:         dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleAgent, dbtest.InBranch(north)).ID),
		manager:       dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleManager, dbtest.InBranch(north)).ID),
		admin:         dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleAdmin).ID),
	}
}

func (a *api) token(userID string) string {
	a.t.Helper()
	token, _, err := auth.GenerateToken(userID, "", testSecret, time.Hour)
	require.NoError(a.t, err)
	return token
}

// do sends a request as userID (anonymous when empty) and decodes a JSON reply into out.
func (a *api) do(method, path, userID string, body any, out any) int {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+a.token(userID))
	}
	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestPingAndHealth(t *testing.T) {
	a := newAPI(t)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/ping", "", nil, nil))

	var report healthcheck.Report
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health", "", nil, &report))
	assert.Equal(t, healthcheck.StatusOK, report.Status)

	down := newAPI(t, failingChecker{})
	assert.Equal(t, http.StatusServiceUnavailable, down.do(http.MethodGet, "/health", "", nil, &report))
	assert.Equal(t, http.StatusServiceUnavailable, down.do(http.MethodHead, "/health", "", nil, nil))
}

func TestLoginAndRefresh(t *testing.T) {
	a := newAPI(t)
	created, err := a.users.Create(context.Background(), accounts.CreateUserRequest{
		Email:       "teller@bank.test",
		Password:    "correct horse",
		DisplayName: "Teller",
		Role:        accounts.RoleAgent,
		BranchID:    dbtest.ID(a.north.ID),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "not-an-email", Password: "x"}, nil))
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "teller@bank.test", Password: "wrong"}, nil))

	var tok TokenResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "Teller@Bank.test", Password: "correct horse"}, &tok))
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, created.ID, tok.User.ID)
	claims, err := auth.ParseToken(tok.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.Equal(t, accounts.RoleAgent, claims.Role)

	var refreshed TokenResponse
	assert.Equal(t, http.StatusOK, a.do(http.MethodPost, "/auth/refresh", created.ID, nil, &refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = a.users.SetActive(context.Background(), created.ID, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/auth/refresh", created.ID, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/auth/refresh", "", nil, nil))
}

func TestUsersAndBranches(t *testing.T) {
	a := newAPI(t)

	var me accounts.User
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/users/me", a.agent, nil, &me))
	assert.Equal(t, accounts.RoleAgent, me.Role)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/users", a.customer, nil, nil))
	var list accounts.ListUsersResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/users", a.agent, nil, &list))
	assert.Len(t, list.Items, 4)

	branchReq := accounts.CreateBranchRequest{Code: "s1", Name: "South"}
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/branches", a.manager, branchReq, nil))
	var south accounts.Branch
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/branches", a.admin, branchReq, &south))
	assert.Equal(t, "S1", south.Code)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/branches", a.admin, branchReq, nil))

	northID := dbtest.ID(a.north.ID)
	team := accounts.CreateTeamRequest{Name: "Cards"}
	assert.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/branches/"+northID+"/teams", a.manager, team, nil))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/branches/"+south.ID+"/teams", a.manager, team, nil))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/branches/"+northID+"/teams", a.agent, team, nil))
	var teams accounts.ListTeamsResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/branches/"+northID+"/teams", a.customer, nil, &teams))
	assert.Len(t, teams.Items, 1)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/users", a.admin, accounts.CreateUserRequest{Email: "x@bank.test"}, nil))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/users", a.manager, accounts.CreateUserRequest{}, nil))

	active := false
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPut, "/users/"+a.admin+"/active", a.admin, SetActiveRequest{Active: &active}, nil))
	var updated accounts.User
	require.Equal(t, http.StatusOK, a.do(http.MethodPut, "/users/"+a.agent+"/active", a.admin, SetActiveRequest{Active: &active}, &updated))
	assert.False(t, updated.IsActive)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/users/me", a.agent, nil, nil))
}

func TestTicketConversationFlow(t *testing.T) {
	a := newAPI(t)

	var ticket tickets.Ticket
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/tickets", a.customer, tickets.CreateTicketRequest{Subject: "Card blocked"}, &ticket))
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/tickets", a.customer, tickets.CreateTicketRequest{Subject: "x", Priority: "soon"}, nil))

	var assigned tickets.Ticket
	require.Equal(t, http.StatusOK, a.do(http.MethodPut, "/tickets/"+ticket.ID+"/assignee", a.manager, tickets.AssignRequest{AssigneeID: a.agent}, &assigned))
	assert.Equal(t, a.agent, assigned.AssignedTo)

	var conv conversation.Conversation
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/tickets/"+ticket.ID+"/conversation", a.agent, nil, &conv))
	assert.Equal(t, conversation.KindTicket, conv.Kind)

	var again conversation.Conversation
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/tickets/"+ticket.ID+"/conversation", a.customer, nil, &again))
	assert.Equal(t, conv.ID, again.ID, "one conversation per ticket")

	base := "/conversations/" + conv.ID
	var caps conversation.Capabilities
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, base+"/capabilities", a.customer, nil, &caps))
	assert.True(t, caps.CanPost)
	assert.False(t, caps.CanClose)

	var sent message.Message
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, base+"/messages", a.customer, message.SendInput{Content: "My card was swallowed"}, &sent))
	assert.Equal(t, a.customer, sent.SenderID)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, base+"/messages", a.customer, message.SendInput{Content: "   "}, nil))

	var page message.ListMessagesResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, base+"/messages?limit=10", a.agent, nil, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, base+"/messages?before=yesterday", a.agent, nil, nil))

	var read message.ReadEvent
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, base+"/read", a.agent, message.MarkReadRequest{UpToMessageID: sent.ID}, &read))
	assert.Equal(t, int64(1), read.Marked)

	var edited message.Message
	require.Equal(t, http.StatusOK, a.do(http.MethodPut, base+"/messages/"+sent.ID, a.customer, message.EditRequest{Content: "My card was eaten"}, &edited))
	assert.Equal(t, "My card was eaten", edited.Content)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPut, base+"/messages/"+sent.ID, a.agent, message.EditRequest{Content: "hijack"}, nil))

	var participants conversation.ListParticipantsResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, base+"/participants", a.manager, nil, &participants))
	assert.Len(t, participants.Items, 2)

	var closed conversation.Conversation
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, base+"/close", a.customer, nil, nil))
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, base+"/close", a.agent, nil, &closed))
	assert.Equal(t, conversation.StatusClosed, closed.Status)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, base+"/close", a.agent, nil, nil))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, base+"/messages", a.customer, message.SendInput{Content: "hello?"}, nil))

	assert.Equal(t, http.StatusOK, a.do(http.MethodPost, base+"/reopen", a.manager, nil, nil))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodDelete, base+"/messages/"+sent.ID+"/purge", a.manager, nil, nil))
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, base+"/messages/"+sent.ID+"/purge", a.admin, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, base+"/messages/"+sent.ID, a.customer, nil, nil))

	var listed conversation.ListConversationsResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/conversations", a.customer, nil, &listed))
	assert.Len(t, listed.Items, 1)
}

func TestServiceRequestConversation(t *testing.T) {
	a := newAPI(t)
	var item requests.Request
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/requests", a.customer, requests.CreateRequest{Kind: "card_replacement", Summary: "Card damaged"}, &item))

	var listed requests.ListRequestsResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/requests", a.customer, nil, &listed))
	assert.Len(t, listed.Items, 1)

	var conv conversation.Conversation
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/requests/"+item.ID+"/conversation", a.manager, nil, &conv))
	assert.Equal(t, conversation.KindRequest, conv.Kind)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/requests/00000000-0000-0000-0000-000000000001", a.manager, nil, nil))
}

func TestGroupAndDirectConversations(t *testing.T) {
	a := newAPI(t)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/conversations/group", a.manager, conversation.CreateGroupRequest{}, nil))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/conversations/group", a.customer, conversation.CreateGroupRequest{Title: "Ops"}, nil))

	var group conversation.Conversation
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/conversations/group", a.manager, conversation.CreateGroupRequest{Title: "Ops"}, &group))
	base := "/conversations/" + group.ID
	assert.Equal(t, http.StatusCreated, a.do(http.MethodPost, base+"/participants", a.manager, conversation.AddParticipantRequest{UserID: a.agent}, nil))
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, base+"/participants", a.manager, conversation.AddParticipantRequest{UserID: a.customer}, nil))
	assert.Equal(t, http.StatusConflict, a.do(http.MethodDelete, base+"/participants/"+a.manager, a.manager, nil, nil))
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, base+"/participants/"+a.agent, a.agent, nil, nil))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, base, a.agent, nil, nil))

	var direct conversation.Conversation
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/conversations/direct", a.agent, conversation.DirectRequest{UserID: a.manager}, &direct))
	assert.Equal(t, conversation.KindDirect, direct.Kind)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/conversations/direct", a.agent, conversation.DirectRequest{UserID: a.agent}, nil))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/conversations/00000000-0000-0000-0000-000000000001", a.agent, nil, nil))
}

func TestPresenceEndpoints(t *testing.T) {
	a := newAPI(t)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/presence", a.agent, nil, nil))

	var p presence.Presence
	require.Equal(t, http.StatusOK, a.do(http.MethodPut, "/presence", a.agent, SetPresenceRequest{Status: "busy"}, &p))
	assert.Equal(t, presence.StatusBusy, p.Status)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPut, "/presence", a.agent, SetPresenceRequest{Status: "asleep"}, nil))

	var list ListPresenceResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/presence?ids="+a.agent+","+a.manager+"&ids="+a.agent, a.customer, nil, &list))
	require.Len(t, list.Items, 2)
	assert.Equal(t, presence.StatusBusy, list.Items[0].Status)
	assert.Equal(t, presence.StatusOffline, list.Items[1].Status)
}

func TestNotificationEndpoints(t *testing.T) {
	a := newAPI(t)
	ctx := context.Background()
	first, err := a.notifications.Create(ctx, notification.CreateInput{UserID: a.agent, Kind: "ticket", Title: "Assigned"})
	require.NoError(t, err)
	_, err = a.notifications.Create(ctx, notification.CreateInput{UserID: a.agent, Kind: "ticket", Title: "Escalated"})
	require.NoError(t, err)

	var list notification.ListResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/notifications", a.agent, nil, &list))
	assert.Len(t, list.Items, 2)
	assert.Equal(t, int64(2), list.Unread)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/notifications/"+first.ID+"/read", a.manager, nil, nil))
	assert.Equal(t, http.StatusOK, a.do(http.MethodPost, "/notifications/"+first.ID+"/read", a.agent, nil, nil))

	var marked notification.MarkAllResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/notifications/read-all", a.agent, nil, &marked))
	assert.Equal(t, int64(1), marked.Marked)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/notifications?limit=-1", a.agent, nil, nil))
}

func TestStreamEvents(t *testing.T) {
	a := newAPI(t)
	a.messages.heartbeat = 50 * time.Millisecond
	ts := httptest.NewServer(a.srv)
	t.Cleanup(ts.Close)

	var group conversation.Conversation
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/conversations/group", a.manager, conversation.CreateGroupRequest{Title: "Ops", ParticipantIDs: []string{a.agent}}, &group))
	base := "/conversations/" + group.ID
	var early message.Message
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, base+"/messages", a.manager, message.SendInput{Content: "before stream"}, &early))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	since := early.CreatedAt.Add(-time.Millisecond).Format(time.RFC3339Nano)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+base+"/events?since="+since+"&token="+a.token(a.agent), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))

	lines := bufio.NewScanner(resp.Body)
	next := func() sseEvent {
		t.Helper()
		for lines.Scan() {
			line := lines.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev sseEvent
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
			if ev.Type == "ping" || ev.Type == "ready" {
				continue
			}
			return ev
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return sseEvent{}
	}

	backlog := next()
	assert.Equal(t, string(event.TypeMessageCreated), backlog.Type)
	var replayed message.Message
	require.NoError(t, json.Unmarshal(backlog.Data, &replayed))
	assert.Equal(t, early.ID, replayed.ID)

	var live message.Message
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, base+"/messages", a.manager, message.SendInput{Content: "during stream"}, &live))
	created := next()
	assert.Equal(t, string(event.TypeMessageCreated), created.Type)
	var got message.Message
	require.NoError(t, json.Unmarshal(created.Data, &got))
	assert.Equal(t, live.ID, got.ID)

	require.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, base+"/messages/"+live.ID, a.manager, nil, nil))
	assert.Equal(t, string(event.TypeMessageDeleted), next().Type)
}

func TestStreamEventsDenied(t *testing.T) {
	a := newAPI(t)
	var group conversation.Conversation
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/conversations/group", a.manager, conversation.CreateGroupRequest{Title: "Ops"}, &group))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/conversations/"+group.ID+"/events", a.agent, nil, nil))
}
