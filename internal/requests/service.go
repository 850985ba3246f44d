// Package requests manages customer service requests.
package requests

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
	ErrRequestNotFound  = errors.New("service request not found")
	ErrRequestForbidden = errors.New("service request access denied")
	ErrInvalidStatus    = errors.New("invalid service request status")
	ErrInvalidAssignee  = errors.New("assignee must be active staff")
	ErrInvalidRequest   = errors.New("kind and summary are required")
)

type UserLookup interface {
	Get(ctx context.Context, userID string) (accounts.User, error)
}

// Notifier tells people involved in a service request that it changed.
type Notifier interface {
	NotifyRequest(ctx context.Context, userID, requestID, title, body string) error
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
		logger:  log.With(slog.String("service", "requests")),
	}
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) notify(ctx context.Context, actorID string, r Request, title string, userIDs ...string) {
	if s.notifier == nil {
		return
	}
	seen := map[string]struct{}{actorID: {}}
	for _, userID := range userIDs {
		if _, skip := seen[userID]; skip || userID == "" {
			continue
		}
		seen[userID] = struct{}{}
		if err := s.notifier.NotifyRequest(ctx, userID, r.ID, title, r.Summary); err != nil {
			s.logger.Warn("service request notification failed", slog.String("request_id", r.ID), slog.String("user_id", userID), slog.Any("error", err))
		}
	}
}

// CanView: creator, assignee, staff of the request's branch, admins.
func CanView(user accounts.User, r Request) bool {
	if !user.IsActive {
		return false
	}
	if user.IsAdmin() || user.ID == r.CreatedBy || (r.AssignedTo != "" && user.ID == r.AssignedTo) {
		return true
	}
	return user.IsStaff() && r.BranchID != "" && user.BranchID == r.BranchID
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

func (s *Service) Create(ctx context.Context, actorID string, req CreateRequest) (Request, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return Request{}, err
	}
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	summary := strings.TrimSpace(req.Summary)
	if kind == "" || summary == "" {
		return Request{}, ErrInvalidRequest
	}
	branchID, err := db.ParseOptionalUUID(req.BranchID)
	if err != nil {
		return Request{}, err
	}
	if !branchID.Valid {
		branchID, _ = db.ParseOptionalUUID(actor.BranchID)
	}
	if !actor.IsStaff() && db.UUIDToString(branchID) != actor.BranchID {
		return Request{}, ErrRequestForbidden
	}
	creatorID, err := db.ParseUUID(actor.ID)
	if err != nil {
		return Request{}, err
	}
	row, err := s.queries.CreateServiceRequest(ctx, sqlc.CreateServiceRequestParams{
		Kind:      kind,
		Summary:   summary,
		Status:    StatusPending,
		CreatedBy: creatorID,
		BranchID:  branchID,
	})
	if err != nil {
		return Request{}, fmt.Errorf("create service request: %w", err)
	}
	out := toRequest(row)
	s.logger.Info("service request created", slog.String("request_id", out.ID), slog.String("kind", kind))
	return out, nil
}

// Load returns a request without any access check.
func (s *Service) Load(ctx context.Context, requestID string) (Request, error) {
	id, err := db.ParseUUID(requestID)
	if err != nil {
		return Request{}, ErrRequestNotFound
	}
	row, err := s.queries.GetServiceRequestByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, fmt.Errorf("get service request: %w", err)
	}
	return toRequest(row), nil
}

func (s *Service) Get(ctx context.Context, actorID, requestID string) (Request, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return Request{}, err
	}
	out, err := s.Load(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if !CanView(actor, out) {
		return Request{}, ErrRequestForbidden
	}
	return out, nil
}

func (s *Service) ListForUser(ctx context.Context, actorID string) ([]Request, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	userID, err := db.ParseUUID(actor.ID)
	if err != nil {
		return nil, err
	}
	params := sqlc.ListServiceRequestsVisibleToUserParams{
		IncludeAll: actor.IsAdmin(),
		UserID:     userID,
	}
	if actor.IsStaff() {
		params.BranchID, _ = db.ParseOptionalUUID(actor.BranchID)
		params.IncludeBranch = params.BranchID.Valid
	}
	rows, err := s.queries.ListServiceRequestsVisibleToUser(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list service requests: %w", err)
	}
	items := make([]Request, 0, len(rows))
	for _, row := range rows {
		items = append(items, toRequest(row))
	}
	return items, nil
}

func (s *Service) Assign(ctx context.Context, actorID, requestID, assigneeID string) (Request, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return Request{}, err
	}
	current, err := s.Load(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if !actor.IsStaff() || !CanView(actor, current) {
		return Request{}, ErrRequestForbidden
	}
	var assignee pgtype.UUID
	if strings.TrimSpace(assigneeID) != "" {
		target, err := s.users.Get(ctx, assigneeID)
		if err != nil || !target.IsActive || !target.IsStaff() {
			return Request{}, ErrInvalidAssignee
		}
		assignee, _ = db.ParseUUID(target.ID)
	}
	id, _ := db.ParseUUID(current.ID)
	row, err := s.queries.AssignServiceRequest(ctx, sqlc.AssignServiceRequestParams{ID: id, AssignedTo: assignee})
	if err != nil {
		return Request{}, fmt.Errorf("assign service request: %w", err)
	}
	updated := toRequest(row)
	if updated.AssignedTo != current.AssignedTo {
		s.notify(ctx, actor.ID, updated, "Service request assigned to you", updated.AssignedTo)
	}
	return updated, nil
}

// UpdateStatus changes the status. A customer may only withdraw (reject) their own pending request.
func (s *Service) UpdateStatus(ctx context.Context, actorID, requestID, status string) (Request, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return Request{}, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if _, ok := validStatuses[status]; !ok {
		return Request{}, ErrInvalidStatus
	}
	current, err := s.Load(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if !CanView(actor, current) {
		return Request{}, ErrRequestForbidden
	}
	if !actor.IsStaff() {
		if current.CreatedBy != actor.ID || status != StatusRejected || current.Status != StatusPending {
			return Request{}, ErrRequestForbidden
		}
	}
	id, _ := db.ParseUUID(current.ID)
	row, err := s.queries.UpdateServiceRequestStatus(ctx, sqlc.UpdateServiceRequestStatusParams{ID: id, Status: status})
	if err != nil {
		return Request{}, fmt.Errorf("update service request status: %w", err)
	}
	s.logger.Info("service request status changed", slog.String("request_id", current.ID), slog.String("status", status))
	updated := toRequest(row)
	if updated.Status != current.Status {
		s.notify(ctx, actor.ID, updated, "Service request "+updated.Status, updated.CreatedBy, updated.AssignedTo)
	}
	return updated, nil
}

func toRequest(row sqlc.ServiceRequest) Request {
	return Request{
		ID:         db.UUIDToString(row.ID),
		Kind:       row.Kind,
		Summary:    row.Summary,
		Status:     row.Status,
		CreatedBy:  db.UUIDToString(row.CreatedBy),
		AssignedTo: db.UUIDToString(row.AssignedTo),
		BranchID:   db.UUIDToString(row.BranchID),
		CreatedAt:  db.TimeFromPg(row.CreatedAt),
		UpdatedAt:  db.TimeFromPg(row.UpdatedAt),
	}
}
