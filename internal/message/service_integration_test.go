package message_test

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
	"github.com/tellerdesk/tellerdesk/internal/conversation"
	"github.com/tellerdesk/tellerdesk/internal/db"
	"github.com/tellerdesk/tellerdesk/internal/message"
	"github.com/tellerdesk/tellerdesk/internal/message/event"
	"github.com/tellerdesk/tellerdesk/internal/notification"
	"github.com/tellerdesk/tellerdesk/internal/presence"
	"github.com/tellerdesk/tellerdesk/internal/requests"
	"github.com/tellerdesk/tellerdesk/internal/tickets"
)

// setupIntegration expects TEST_POSTGRES_DSN to point at a migrated database.
func setupIntegration(t *testing.T) (*accounts.Service, *conversation.Service, *message.DBService) {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skip integration test: TEST_POSTGRES_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("skip integration test: cannot connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skip integration test: database ping failed: %v", err)
	}
	t.Cleanup(pool.Close)

	queries := db.NewStore(pool)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hub := event.NewHub()
	users := accounts.NewService(logger, queries)
	convs := conversation.NewService(logger, queries, users, tickets.NewService(logger, queries, users), requests.NewService(logger, queries, users), hub)
	tracker := presence.NewTracker(logger, queries, hub)
	notifications := notification.NewService(logger, queries, hub)
	svc := message.NewService(logger, queries, convs, users, tracker, notifications, hub, message.Options{EditWindow: time.Minute})
	return users, convs, svc
}

func createStaff(ctx context.Context, t *testing.T, users *accounts.Service, branchID, role string) string {
	t.Helper()
	user, err := users.Create(ctx, accounts.CreateUserRequest{
		Email:       "it-" + uuid.NewString()[:8] + "@tellerdesk.test",
		Password:    "integration-pass",
		DisplayName: "Integration " + role,
		Role:        role,
		BranchID:    branchID,
	})
	require.NoError(t, err)
	return user.ID
}

func TestGroupChatAgainstPostgres(t *testing.T) {
	users, convs, svc := setupIntegration(t)
	ctx := context.Background()

	branch, err := users.CreateBranch(ctx, accounts.CreateBranchRequest{
		Code: "IT" + strings.ToUpper(uuid.NewString()[:6]),
		Name: "Integration branch",
	})
	require.NoError(t, err)
	manager := createStaff(ctx, t, users, branch.ID, accounts.RoleManager)
	agent := createStaff(ctx, t, users, branch.ID, accounts.RoleAgent)

	group, err := convs.CreateGroup(ctx, manager, conversation.CreateGroupRequest{
		Title:          "Integration room",
		ParticipantIDs: []string{agent},
	})
	require.NoError(t, err)

	participants, err := convs.ListParticipants(ctx, manager, group.ID)
	require.NoError(t, err)
	roles := map[string]string{}
	for _, p := range participants {
		roles[p.UserID] = p.Role
	}
	assert.Equal(t, map[string]string{manager: conversation.RoleOwner, agent: conversation.RoleMember}, roles)

	first, err := svc.Send(ctx, agent, message.SendInput{ConversationID: group.ID, Content: "hello"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, agent, message.SendInput{ConversationID: group.ID, Content: "follow up", ReplyToID: first.ID})
	require.NoError(t, err)

	n, err := svc.UnreadCount(ctx, manager, group.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	page, err := svc.List(ctx, manager, group.ID, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "hello", page[0].Content)
	assert.Equal(t, first.ID, page[1].ReplyToID)

	ev, err := svc.MarkRead(ctx, manager, group.ID, page[1].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ev.Marked)

	edited, err := svc.Edit(ctx, agent, first.ID, "hello there")
	require.NoError(t, err)
	assert.NotNil(t, edited.EditedAt)

	require.NoError(t, svc.Delete(ctx, agent, first.ID))
	page, err = svc.List(ctx, manager, group.ID, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].Deleted)
	assert.Empty(t, page[0].Content)
}
