package requests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
	"github.com/tellerdesk/tellerdesk/internal/db/dbtest"
	"github.com/tellerdesk/tellerdesk/internal/notification"
)

func TestRequestFlow(t *testing.T) {
	ctx := context.Background()
	store := dbtest.New()
	north := dbtest.SeedBranch(t, store, "North")
	south := dbtest.SeedBranch(t, store, "South")
	customer := dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleCustomer, dbtest.InBranch(north)).ID)
	manager := dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleManager, dbtest.InBranch(north)).ID)
	elsewhere := dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleAgent, dbtest.InBranch(south)).ID)
	svc := NewService(nil, store, accounts.NewService(nil, store))

	req, err := svc.Create(ctx, customer, CreateRequest{Kind: "Card_Replacement", Summary: "Card cracked"})
	require.NoError(t, err)
	assert.Equal(t, "card_replacement", req.Kind)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, dbtest.ID(north.ID), req.BranchID)

	_, err = svc.Get(ctx, elsewhere, req.ID)
	assert.ErrorIs(t, err, ErrRequestForbidden)

	listed, err := svc.ListForUser(ctx, manager)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = svc.Assign(ctx, manager, req.ID, manager)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, customer, req.ID, StatusApproved)
	assert.ErrorIs(t, err, ErrRequestForbidden)

	approved, err := svc.UpdateStatus(ctx, manager, req.ID, StatusApproved)
	require.NoError(t, err)
	assert.False(t, IsTerminal(approved.Status))

	_, err = svc.UpdateStatus(ctx, customer, req.ID, StatusRejected)
	assert.ErrorIs(t, err, ErrRequestForbidden, "only pending requests can be withdrawn")

	done, err := svc.UpdateStatus(ctx, manager, req.ID, StatusCompleted)
	require.NoError(t, err)
	assert.True(t, IsTerminal(done.Status))
}

func TestCustomerRequestHeldToOwnBranch(t *testing.T) {
	ctx := context.Background()
	store := dbtest.New()
	north := dbtest.SeedBranch(t, store, "North")
	south := dbtest.SeedBranch(t, store, "South")
	customer := dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleCustomer, dbtest.InBranch(north)).ID)
	manager := dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleManager, dbtest.InBranch(north)).ID)
	svc := NewService(nil, store, accounts.NewService(nil, store))

	_, err := svc.Create(ctx, customer, CreateRequest{Kind: "limit_change", Summary: "x", BranchID: dbtest.ID(south.ID)})
	assert.ErrorIs(t, err, ErrRequestForbidden)

	req, err := svc.Create(ctx, manager, CreateRequest{Kind: "limit_change", Summary: "x", BranchID: dbtest.ID(south.ID)})
	require.NoError(t, err)
	assert.Equal(t, dbtest.ID(south.ID), req.BranchID)
}

func TestRequestChangesNotify(t *testing.T) {
	ctx := context.Background()
	store := dbtest.New()
	north := dbtest.SeedBranch(t, store, "North")
	customer := dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleCustomer, dbtest.InBranch(north)).ID)
	manager := dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleManager, dbtest.InBranch(north)).ID)
	agent := dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleAgent, dbtest.InBranch(north)).ID)
	notifications := notification.NewService(nil, store, nil)
	svc := NewService(nil, store, accounts.NewService(nil, store))
	svc.SetNotifier(notifications)

	req, err := svc.Create(ctx, customer, CreateRequest{Kind: "limit_change", Summary: "Raise limit"})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, manager, req.ID, agent)
	require.NoError(t, err)
	toAgent, err := notifications.List(ctx, agent, 0)
	require.NoError(t, err)
	require.Len(t, toAgent, 1)
	assert.Equal(t, notification.KindRequest, toAgent[0].Kind)
	assert.Equal(t, req.ID, toAgent[0].RefID)

	_, err = svc.UpdateStatus(ctx, manager, req.ID, StatusApproved)
	require.NoError(t, err)
	toCustomer, err := notifications.List(ctx, customer, 0)
	require.NoError(t, err)
	require.Len(t, toCustomer, 1)
	assert.Equal(t, "Service request approved", toCustomer[0].Title)
	toAgent, err = notifications.List(ctx, agent, 0)
	require.NoError(t, err)
	assert.Len(t, toAgent, 2)
	toManager, err := notifications.List(ctx, manager, 0)
	require.NoError(t, err)
	assert.Empty(t, toManager)
}

func TestCustomerWithdrawsPendingRequest(t *testing.T) {
	ctx := context.Background()
	store := dbtest.New()
	customer := dbtest.ID(dbtest.SeedUser(t, store, accounts.RoleCustomer).ID)
	svc := NewService(nil, store, accounts.NewService(nil, store))

	req, err := svc.Create(ctx, customer, CreateRequest{Kind: "limit_change", Summary: "Raise limit"})
	require.NoError(t, err)
	withdrawn, err := svc.UpdateStatus(ctx, customer, req.ID, StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, withdrawn.Status)

	_, err = svc.Create(ctx, customer, CreateRequest{Kind: " ", Summary: "x"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
