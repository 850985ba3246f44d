package dbtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tellerdesk/tellerdesk/internal/db/sqlc"
)

var seq atomic.Int64

// ID renders a pgtype.UUID the way services expose ids.
func ID(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

func SeedBranch(t testing.TB, s *Store, name string) sqlc.Branch {
	t.Helper()
	b, err := s.CreateBranch(context.Background(), sqlc.CreateBranchParams{
		Code: fmt.Sprintf("B%d", seq.Add(1)),
		Name: name,
	})
	if err != nil {
		t.Fatalf("seed branch: %v", err)
	}
	return b
}

func SeedTeam(t testing.TB, s *Store, branch sqlc.Branch, name string) sqlc.Team {
	t.Helper()
	team, err := s.CreateTeam(context.Background(), sqlc.CreateTeamParams{BranchID: branch.ID, Name: name})
	if err != nil {
		t.Fatalf("seed team: %v", err)
	}
	return team
}

// UserOption adjusts a seeded user row.
type UserOption func(*sqlc.CreateUserParams)

func InBranch(b sqlc.Branch) UserOption {
	return func(p *sqlc.CreateUserParams) { p.BranchID = b.ID }
}

func InTeam(team sqlc.Team) UserOption {
	return func(p *sqlc.CreateUserParams) {
		p.TeamID = team.ID
		p.BranchID = team.BranchID
	}
}

func Inactive() UserOption {
	return func(p *sqlc.CreateUserParams) { p.IsActive = false }
}

// SeedUser inserts an active user with an unusable password hash.
func SeedUser(t testing.TB, s *Store, role string, opts ...UserOption) sqlc.User {
	t.Helper()
	n := seq.Add(1)
	params := sqlc.CreateUserParams{
		Email:        fmt.Sprintf("%s%d@bank.test", role, n),
		PasswordHash: "!",
		DisplayName:  fmt.Sprintf("%s %d", role, n),
		Role:         role,
		IsActive:     true,
	}
	for _, opt := range opts {
		opt(&params)
	}
	u, err := s.CreateUser(context.Background(), params)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedTicket(t testing.TB, s *Store, creator sqlc.User, params sqlc.CreateTicketParams) sqlc.Ticket {
	t.Helper()
	params.CreatedBy = creator.ID
	if params.Subject == "" {
		params.Subject = "Card blocked"
	}
	if params.Priority == "" {
		params.Priority = "normal"
	}
	if params.Status == "" {
		params.Status = "open"
	}
	if !params.BranchID.Valid {
		params.BranchID = creator.BranchID
	}
	ticket, err := s.CreateTicket(context.Background(), params)
	if err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return ticket
}

func SeedRequest(t testing.TB, s *Store, creator sqlc.User, params sqlc.CreateServiceRequestParams) sqlc.ServiceRequest {
	t.Helper()
	params.CreatedBy = creator.ID
	if params.Kind == "" {
		params.Kind = "card_replacement"
	}
	if params.Summary == "" {
		params.Summary = "Replace damaged card"
	}
	if params.Status == "" {
		params.Status = "pending"
	}
	if !params.BranchID.Valid {
		params.BranchID = creator.BranchID
	}
	req, err := s.CreateServiceRequest(context.Background(), params)
	if err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return req
}
