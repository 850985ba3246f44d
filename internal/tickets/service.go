// Package tickets manages support tickets and who may see or change them.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
	"github.com/tellerdesk/tellerdesk/internal/db"
	"github.com/tellerdesk/tellerdesk/internal/db/sqlc"
)

var (
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrTicketForbidden = errors.New("ticket access denied")
	ErrInvalidStatus   = errors.New("invalid ticket status")
	ErrInvalidPriority = errors.New("invalid ticket priority")
	ErrInvalidAssignee = errors.New("assignee must be active staff")
	ErrSubjectRequired = errors.New("subject is required")
	ErrTeamNotFound    = errors.New("team not found")
)

// UserLookup resolves accounts for authorization decisions.
type UserLookup interface {
	Get(ctx context.Context, userID string) (accounts.User, error)
}

// Notifier tells people involved in a ticket that it changed.
type Notifier interface {
	NotifyTicket(ctx context.Context, userID, ticketID, title, body string) error
}

type Service struct {
	queries  sqlc.Querier
	users    UserLookup
	notifier Notifier
	logger   *slog.Logger
}

func NewService(log *slog.Logger, queries sqlc.Querier, users UserLookup) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries: queries,
		users:   users,
		logger:  log.With(slog.String("service", "tickets")),
	}
}

// SetNotifier enables assignment and status notifications.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// notify skips the actor and duplicate or empty recipients. Failures are logged only.
func (s *Service) notify(ctx context.Context, actorID string, t Ticket, title string, userIDs ...string) {
	if s.notifier == nil {
		return
	}
	seen := map[string]struct{}{actorID: {}}
	for _, userID := range userIDs {
		if _, skip := seen[userID]; skip || userID == "" {
			continue
		}
		seen[userID] = struct{}{}
		if err := s.notifier.NotifyTicket(ctx, userID, t.ID, title, t.Subject); err != nil {
			s.logger.Warn("ticket notification failed", slog.String("ticket_id", t.ID), slog.String("user_id", userID), slog.Any("error", err))
		}
	}
}

// CanView applies the visibility rule: creator, assignee, team members, branch staff and admins.
func CanView(user accounts.User, t Ticket) bool {
	if !user.IsActive {
		return false
	}
	if user.IsAdmin() || user.ID == t.CreatedBy || (t.AssignedTo != "" && user.ID == t.AssignedTo) {
		return true
	}
	if !user.IsStaff() {
		return false
	}
	if t.TeamID != "" && user.TeamID == t.TeamID {
		return true
	}
	return t.BranchID != "" && user.BranchID == t.BranchID
}

func (s *Service) actor(ctx context.Context, actorID string) (accounts.User, error) {
	user, err := s.users.Get(ctx, actorID)
	if err != nil {
		return accounts.User{}, err
	}
	if !user.IsActive {
		return accounts.User{}, accounts.ErrUserInactive
	}
	return user, nil
}

// Create opens a ticket. A team pins the branch; customers are held to their own branch.
func (s *Service) Create(ctx context.Context, actorID string, req CreateTicketRequest) (Ticket, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return Ticket{}, err
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return Ticket{}, ErrSubjectRequired
	}
	priority := strings.ToLower(strings.TrimSpace(req.Priority))
	if priority == "" {
		priority = PriorityNormal
	}
	if _, ok := validPriorities[priority]; !ok {
		return Ticket{}, ErrInvalidPriority
	}
	branchID, err := db.ParseOptionalUUID(req.BranchID)
	if err != nil {
		return Ticket{}, err
	}
	if !branchID.Valid {
		branchID, _ = db.ParseOptionalUUID(actor.BranchID)
	}
	teamID, err := db.ParseOptionalUUID(req.TeamID)
	if err != nil {
		return Ticket{}, err
	}
	if teamID.Valid {
		team, err := s.queries.GetTeamByID(ctx, teamID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Ticket{}, ErrTeamNotFound
			}
			return Ticket{}, fmt.Errorf("get team: %w", err)
		}
		branchID = team.BranchID
	}
	// Customers may only file against their own branch, directly or through a team.
	if !actor.IsStaff() && db.UUIDToString(branchID) != actor.BranchID {
		return Ticket{}, ErrTicketForbidden
	}
	creatorID, err := db.ParseUUID(actor.ID)
	if err != nil {
		return Ticket{}, err
	}
	row, err := s.queries.CreateTicket(ctx, sqlc.CreateTicketParams{
		Subject:     subject,
		Description: strings.TrimSpace(req.Description),
		Priority:    priority,
		Status:      StatusOpen,
		CreatedBy:   creatorID,
		TeamID:      teamID,
		BranchID:    branchID,
	})
	if err != nil {
		return Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	ticket := toTicket(row)
	s.logger.Info("ticket created", slog.String("ticket_id", ticket.ID), slog.String("created_by", actor.ID))
	return ticket, nil
}

// Load returns a ticket without any access check.
func (s *Service) Load(ctx context.Context, ticketID string) (Ticket, error) {
	id, err := db.ParseUUID(ticketID)
	if err != nil {
		return Ticket{}, ErrTicketNotFound
	}
	row, err := s.queries.GetTicketByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ticket{}, ErrTicketNotFound
		}
		return Ticket{}, fmt.Errorf("get ticket: %w", err)
	}
	return toTicket(row), nil
}

func (s *Service) Get(ctx context.Context, actorID, ticketID string) (Ticket, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return Ticket{}, err
	}
	ticket, err := s.Load(ctx, ticketID)
	if err != nil {
		return Ticket{}, err
	}
	if !CanView(actor, ticket) {
		return Ticket{}, ErrTicketForbidden
	}
	return ticket, nil
}

func (s *Service) ListForUser(ctx context.Context, actorID string) ([]Ticket, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	userID, err := db.ParseUUID(actor.ID)
	if err != nil {
		return nil, err
	}
	params := sqlc.ListTicketsVisibleToUserParams{
		IncludeAll: actor.IsAdmin(),
		UserID:     userID,
	}
	if actor.IsStaff() {
		params.TeamID, _ = db.ParseOptionalUUID(actor.TeamID)
		params.BranchID, _ = db.ParseOptionalUUID(actor.BranchID)
		params.IncludeBranch = params.BranchID.Valid
	}
	rows, err := s.queries.ListTicketsVisibleToUser(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	items := make([]Ticket, 0, len(rows))
	for _, row := range rows {
		items = append(items, toTicket(row))
	}
	return items, nil
}

// Assign sets or clears the assignee. Only staff who can see the ticket may assign.
func (s *Service) Assign(ctx context.Context, actorID, ticketID, assigneeID string) (Ticket, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return Ticket{}, err
	}
	ticket, err := s.Load(ctx, ticketID)
	if err != nil {
		return Ticket{}, err
	}
	if !actor.IsStaff() || !CanView(actor, ticket) {
		return Ticket{}, ErrTicketForbidden
	}
	var assignee pgtype.UUID
	if strings.TrimSpace(assigneeID) != "" {
		target, err := s.users.Get(ctx, assigneeID)
		if err != nil || !target.IsActive || !target.IsStaff() {
			return Ticket{}, ErrInvalidAssignee
		}
		assignee, _ = db.ParseUUID(target.ID)
	}
	id, _ := db.ParseUUID(ticket.ID)
	row, err := s.queries.AssignTicket(ctx, sqlc.AssignTicketParams{ID: id, AssignedTo: assignee})
	if err != nil {
		return Ticket{}, fmt.Errorf("assign ticket: %w", err)
	}
	s.logger.Info("ticket assigned", slog.String("ticket_id", ticket.ID), slog.String("assignee", db.UUIDToString(assignee)))
	updated := toTicket(row)
	if updated.AssignedTo != ticket.AssignedTo {
		s.notify(ctx, actor.ID, updated, "Ticket assigned to you", updated.AssignedTo)
	}
	return updated, nil
}

// UpdateStatus changes the status. Customers may only close tickets they created.
func (s *Service) UpdateStatus(ctx context.Context, actorID, ticketID, status string) (Ticket, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return Ticket{}, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if _, ok := validStatuses[status]; !ok {
		return Ticket{}, ErrInvalidStatus
	}
	ticket, err := s.Load(ctx, ticketID)
	if err != nil {
		return Ticket{}, err
	}
	if !CanView(actor, ticket) {
		return Ticket{}, ErrTicketForbidden
	}
	if !actor.IsStaff() && (status != StatusClosed || ticket.CreatedBy != actor.ID) {
		return Ticket{}, ErrTicketForbidden
	}
	id, _ := db.ParseUUID(ticket.ID)
	row, err := s.queries.UpdateTicketStatus(ctx, sqlc.UpdateTicketStatusParams{ID: id, Status: status})
	if err != nil {
		return Ticket{}, fmt.Errorf("update ticket status: %w", err)
	}
	s.logger.Info("ticket status changed", slog.String("ticket_id", ticket.ID), slog.String("status", status))
	updated := toTicket(row)
	if updated.Status != ticket.Status {
		s.notify(ctx, actor.ID, updated, "Ticket "+strings.ReplaceAll(updated.Status, "_", " "), updated.CreatedBy, updated.AssignedTo)
	}
	return updated, nil
}

func toTicket(row sqlc.Ticket) Ticket {
	return Ticket{
		ID:          db.UUIDToString(row.ID),
		Subject:     row.Subject,
		Description: row.Description,
		Priority:    row.Priority,
		Status:      row.Status,
		CreatedBy:   db.UUIDToString(row.CreatedBy),
		AssignedTo:  db.UUIDToString(row.AssignedTo),
		TeamID:      db.UUIDToString(row.TeamID),
		BranchID:    db.UUIDToString(row.BranchID),
		CreatedAt:   db.TimeFromPg(row.CreatedAt),
		UpdatedAt:   db.TimeFromPg(row.UpdatedAt),
	}
}
