// Package conversation owns conversation lifecycle, membership and per-user capabilities.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
	"github.com/tellerdesk/tellerdesk/internal/db"
	"github.com/tellerdesk/tellerdesk/internal/db/sqlc"
	"github.com/tellerdesk/tellerdesk/internal/message/event"
	"github.com/tellerdesk/tellerdesk/internal/requests"
	"github.com/tellerdesk/tellerdesk/internal/tickets"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrTitleRequired        = errors.New("title is required")
	ErrStaffOnly            = errors.New("only staff can start this conversation")
	ErrSelfDirect           = errors.New("cannot start a direct conversation with yourself")
	ErrDirectImmutable      = errors.New("direct conversation members cannot change")
	ErrOwnerRemoval         = errors.New("the conversation owner cannot be removed")
	ErrInvalidRole          = errors.New("invalid participant role")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrNotActive            = errors.New("conversation is not active")
)

// UserLookup resolves accounts.
type UserLookup interface {
	Get(ctx context.Context, userID string) (accounts.User, error)
	GetMany(ctx context.Context, userIDs []string) (map[string]accounts.User, error)
}

type TicketLookup interface {
	Load(ctx context.Context, ticketID string) (tickets.Ticket, error)
}

type RequestLookup interface {
	Load(ctx context.Context, requestID string) (requests.Request, error)
}

// Access is the resolved view of one user on one conversation.
type Access struct {
	User         accounts.User
	Conversation Conversation
	Capabilities Capabilities
}

// Accessor is what the message store and the gateway need from this package.
type Accessor interface {
	Access(ctx context.Context, userID, conversationID string) (Access, error)
}

type Service struct {
	queries   db.Store
	users     UserLookup
	tickets   TicketLookup
	requests  RequestLookup
	publisher event.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(log *slog.Logger, queries db.Store, users UserLookup, ticketSvc TicketLookup, requestSvc RequestLookup, publisher event.Publisher) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries:   queries,
		users:     users,
		tickets:   ticketSvc,
		requests:  requestSvc,
		publisher: publisher,
		logger:    log.With(slog.String("service", "conversation")),
		now:       time.Now,
	}
}

// SetClock overrides the time source used for idle archiving.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) activeUser(ctx context.Context, userID string) (accounts.User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return accounts.User{}, err
	}
	if !user.IsActive {
		return accounts.User{}, ErrPermissionDenied
	}
	return user, nil
}

func (s *Service) load(ctx context.Context, conversationID string) (sqlc.Conversation, error) {
	id, err := db.ParseUUID(conversationID)
	if err != nil {
		return sqlc.Conversation{}, ErrConversationNotFound
	}
	row, err := s.queries.GetConversationByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sqlc.Conversation{}, ErrConversationNotFound
		}
		return sqlc.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return row, nil
}

func (s *Service) link(ctx context.Context, conv Conversation) (Link, error) {
	switch {
	case conv.Kind == KindTicket && conv.TicketID != "":
		t, err := s.tickets.Load(ctx, conv.TicketID)
		if err != nil {
			return Link{}, err
		}
		return ticketLink(t), nil
	case conv.Kind == KindRequest && conv.RequestID != "":
		r, err := s.requests.Load(ctx, conv.RequestID)
		if err != nil {
			return Link{}, err
		}
		return requestLink(r), nil
	}
	return Link{}, nil
}

func ticketLink(t tickets.Ticket) Link {
	return Link{
		CreatedBy:  t.CreatedBy,
		AssignedTo: t.AssignedTo,
		TeamID:     t.TeamID,
		BranchID:   t.BranchID,
		Terminal:   tickets.IsTerminal(t.Status),
	}
}

func requestLink(r requests.Request) Link {
	return Link{
		CreatedBy:  r.CreatedBy,
		AssignedTo: r.AssignedTo,
		BranchID:   r.BranchID,
		Terminal:   requests.IsTerminal(r.Status),
	}
}

func (s *Service) participantRole(ctx context.Context, conversationID, userID pgtype.UUID) (string, error) {
	p, err := s.queries.GetParticipant(ctx, sqlc.GetParticipantParams{ConversationID: conversationID, UserID: userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get participant: %w", err)
	}
	return p.Role, nil
}

// Access resolves user, conversation and capabilities in one go. Denied access is
// reported as ErrPermissionDenied, with nothing else returned.
func (s *Service) Access(ctx context.Context, userID, conversationID string) (Access, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return Access{}, ErrPermissionDenied
		}
		return Access{}, err
	}
	row, err := s.load(ctx, conversationID)
	if err != nil {
		return Access{}, err
	}
	conv := toConversation(row)
	uid, _ := db.ParseUUID(user.ID)
	role, err := s.participantRole(ctx, row.ID, uid)
	if err != nil {
		return Access{}, err
	}
	link, err := s.link(ctx, conv)
	if err != nil {
		return Access{}, err
	}
	caps, err := Resolve(user, conv, role, link)
	if err != nil {
		return Access{}, err
	}
	conv.ParticipantRole = role
	return Access{User: user, Conversation: conv, Capabilities: caps}, nil
}

func (s *Service) Capabilities(ctx context.Context, userID, conversationID string) (Capabilities, error) {
	access, err := s.Access(ctx, userID, conversationID)
	if err != nil {
		return Capabilities{}, err
	}
	return access.Capabilities, nil
}

// Get requires read capability.
func (s *Service) Get(ctx context.Context, actorID, conversationID string) (Conversation, error) {
	access, err := s.Access(ctx, actorID, conversationID)
	if err != nil {
		return Conversation{}, err
	}
	return access.Conversation, nil
}

// ListForUser returns the user's conversations, most recent activity first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Conversation, error) {
	id, err := db.ParseUUID(userID)
	if err != nil {
		return nil, ErrPermissionDenied
	}
	rows, err := s.queries.ListConversationsByParticipant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	items := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		conv := toConversation(sqlc.Conversation{
			ID:            row.ID,
			Kind:          row.Kind,
			Title:         row.Title,
			Status:        row.Status,
			TicketID:      row.TicketID,
			RequestID:     row.RequestID,
			DirectKey:     row.DirectKey,
			CreatedBy:     row.CreatedBy,
			ClosedBy:      row.ClosedBy,
			ClosedAt:      row.ClosedAt,
			LastMessageAt: row.LastMessageAt,
			CreatedAt:     row.CreatedAt,
			UpdatedAt:     row.UpdatedAt,
		})
		conv.ParticipantRole = row.ParticipantRole
		conv.LastReadAt = db.TimePtrFromPg(row.LastReadAt)
		conv.UnreadCount = row.UnreadCount
		items = append(items, conv)
	}
	return items, nil
}

// CreateGroup starts a staff-only group owned by the actor.
func (s *Service) CreateGroup(ctx context.Context, actorID string, req CreateGroupRequest) (Conversation, error) {
	actor, err := s.activeUser(ctx, actorID)
	if err != nil {
		return Conversation{}, err
	}
	if !actor.IsStaff() {
		return Conversation{}, ErrStaffOnly
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return Conversation{}, ErrTitleRequired
	}
	members, err := s.eligibleTargets(ctx, actor, KindGroup, Link{}, req.ParticipantIDs)
	if err != nil {
		return Conversation{}, err
	}
	creator, _ := db.ParseUUID(actor.ID)
	row, err := s.createWithMembers(ctx, sqlc.CreateConversationParams{
		Kind:      KindGroup,
		Title:     title,
		CreatedBy: creator,
	}, actor, RoleOwner, members)
	if err != nil {
		return Conversation{}, err
	}
	conv := toConversation(row)
	conv.ParticipantRole = RoleOwner
	s.logger.Info("group created", slog.String("conversation_id", conv.ID), slog.Int("members", len(members)+1))
	return conv, nil
}

func (s *Service) eligibleTargets(ctx context.Context, actor accounts.User, kind string, link Link, ids []string) ([]accounts.User, error) {
	wanted := make([]string, 0, len(ids))
	seen := map[string]struct{}{actor.ID: {}}
	for _, raw := range ids {
		id, err := db.ParseUUID(raw)
		if err != nil {
			return nil, ErrIneligibleParticipant
		}
		key := db.UUIDToString(id)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		wanted = append(wanted, key)
	}
	found, err := s.users.GetMany(ctx, wanted)
	if err != nil {
		return nil, err
	}
	out := make([]accounts.User, 0, len(wanted))
	for _, id := range wanted {
		target, ok := found[id]
		if !ok {
			return nil, ErrIneligibleParticipant
		}
		if err := Eligible(actor, target, kind, link); err != nil {
			return nil, err
		}
		out = append(out, target)
	}
	return out, nil
}

// errCreateConversation marks a failure of the conversation insert itself, so callers can
// tell a lost unique race from a failed participant insert.
type errCreateConversation struct{ err error }

func (e errCreateConversation) Error() string { return "create conversation: " + e.err.Error() }
func (e errCreateConversation) Unwrap() error { return e.err }

// createWithMembers inserts the conversation, the actor with actorRole and the rest as
// members in one transaction. Each non-actor participant is announced after commit.
func (s *Service) createWithMembers(ctx context.Context, params sqlc.CreateConversationParams, actor accounts.User, actorRole string, members []accounts.User) (sqlc.Conversation, error) {
	var row sqlc.Conversation
	err := s.queries.InTx(ctx, func(q sqlc.Querier) error {
		var err error
		row, err = q.CreateConversation(ctx, params)
		if err != nil {
			return errCreateConversation{err}
		}
		actorID, _ := db.ParseUUID(actor.ID)
		if _, err := q.AddParticipant(ctx, sqlc.AddParticipantParams{ConversationID: row.ID, UserID: actorID, Role: actorRole}); err != nil {
			return fmt.Errorf("add participant: %w", err)
		}
		for _, m := range members {
			uid, _ := db.ParseUUID(m.ID)
			if _, err := q.AddParticipant(ctx, sqlc.AddParticipantParams{ConversationID: row.ID, UserID: uid, Role: RoleMember}); err != nil {
				return fmt.Errorf("add participant: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return sqlc.Conversation{}, err
	}
	for _, m := range members {
		s.publishParticipant(event.TypeParticipantAdded, ParticipantChange{
			ConversationID: db.UUIDToString(row.ID),
			UserID:         m.ID,
			Role:           RoleMember,
			ActorID:        actor.ID,
		})
	}
	return row, nil
}

func directKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}

// GetOrCreateDirect returns the single direct conversation between two staff users.
func (s *Service) GetOrCreateDirect(ctx context.Context, actorID, otherUserID string) (Conversation, error) {
	actor, err := s.activeUser(ctx, actorID)
	if err != nil {
		return Conversation{}, err
	}
	if !actor.IsStaff() {
		return Conversation{}, ErrStaffOnly
	}
	other, err := s.users.Get(ctx, otherUserID)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return Conversation{}, ErrIneligibleParticipant
		}
		return Conversation{}, err
	}
	if other.ID == actor.ID {
		return Conversation{}, ErrSelfDirect
	}
	if err := Eligible(actor, other, KindDirect, Link{}); err != nil {
		return Conversation{}, err
	}
	key := db.TextFrom(directKey(actor.ID, other.ID))
	if row, err := s.queries.GetConversationByDirectKey(ctx, key); err == nil {
		return s.Get(ctx, actor.ID, db.UUIDToString(row.ID))
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, fmt.Errorf("get direct conversation: %w", err)
	}

	creator, _ := db.ParseUUID(actor.ID)
	row, err := s.createWithMembers(ctx, sqlc.CreateConversationParams{
		Kind:      KindDirect,
		DirectKey: key,
		CreatedBy: creator,
	}, actor, RoleMember, []accounts.User{other})
	if err != nil {
		var createErr errCreateConversation
		if errors.As(err, &createErr) && db.IsUniqueViolation(err) {
			existing, getErr := s.queries.GetConversationByDirectKey(ctx, key)
			if getErr != nil {
				return Conversation{}, fmt.Errorf("get direct conversation: %w", getErr)
			}
			return s.Get(ctx, actor.ID, db.UUIDToString(existing.ID))
		}
		return Conversation{}, fmt.Errorf("create direct conversation: %w", err)
	}
	conv := toConversation(row)
	conv.ParticipantRole = RoleMember
	return conv, nil
}

// GetOrCreateForTicket returns the ticket's conversation, creating it on first use with the
// actor, the ticket creator and the assignee. A viewer who is not yet a participant joins.
func (s *Service) GetOrCreateForTicket(ctx context.Context, actorID, ticketID string) (Conversation, error) {
	actor, err := s.activeUser(ctx, actorID)
	if err != nil {
		return Conversation{}, err
	}
	ticket, err := s.tickets.Load(ctx, ticketID)
	if err != nil {
		return Conversation{}, err
	}
	if !tickets.CanView(actor, ticket) {
		return Conversation{}, ErrPermissionDenied
	}
	tid, _ := db.ParseUUID(ticket.ID)
	return s.getOrCreateLinked(ctx, actor, KindTicket, "Ticket: "+ticket.Subject, ticketLink(ticket),
		func() (sqlc.Conversation, error) { return s.queries.GetConversationByTicket(ctx, tid) },
		sqlc.CreateConversationParams{Kind: KindTicket, TicketID: tid},
	)
}

func (s *Service) GetOrCreateForRequest(ctx context.Context, actorID, requestID string) (Conversation, error) {
	actor, err := s.activeUser(ctx, actorID)
	if err != nil {
		return Conversation{}, err
	}
	req, err := s.requests.Load(ctx, requestID)
	if err != nil {
		return Conversation{}, err
	}
	if !requests.CanView(actor, req) {
		return Conversation{}, ErrPermissionDenied
	}
	rid, _ := db.ParseUUID(req.ID)
	return s.getOrCreateLinked(ctx, actor, KindRequest, "Request: "+req.Kind, requestLink(req),
		func() (sqlc.Conversation, error) { return s.queries.GetConversationByRequest(ctx, rid) },
		sqlc.CreateConversationParams{Kind: KindRequest, RequestID: rid},
	)
}

func (s *Service) getOrCreateLinked(ctx context.Context, actor accounts.User, kind, title string, link Link, find func() (sqlc.Conversation, error), params sqlc.CreateConversationParams) (Conversation, error) {
	row, err := find()
	switch {
	case err == nil:
		return s.joinExisting(ctx, actor, row, link)
	case !errors.Is(err, pgx.ErrNoRows):
		return Conversation{}, fmt.Errorf("find %s conversation: %w", kind, err)
	}

	initial := []string{link.CreatedBy}
	if link.AssignedTo != "" {
		initial = append(initial, link.AssignedTo)
	}
	members := s.initialMembers(ctx, actor, kind, link, initial)
	actorRole := RoleMember
	if actor.IsStaff() {
		actorRole = RoleOwner
	}
	params.Title = title
	params.CreatedBy, _ = db.ParseUUID(actor.ID)
	row, err = s.createWithMembers(ctx, params, actor, actorRole, members)
	if err != nil {
		var createErr errCreateConversation
		if errors.As(err, &createErr) && db.IsUniqueViolation(err) {
			// Lost the race; the other insert won.
			existing, findErr := find()
			if findErr != nil {
				return Conversation{}, fmt.Errorf("find %s conversation: %w", kind, findErr)
			}
			return s.joinExisting(ctx, actor, existing, link)
		}
		return Conversation{}, fmt.Errorf("create %s conversation: %w", kind, err)
	}
	conv := toConversation(row)
	conv.ParticipantRole = actorRole
	s.logger.Info("linked conversation created", slog.String("conversation_id", conv.ID), slog.String("kind", kind))
	return conv, nil
}

// initialMembers skips ids that are the actor, unknown, or no longer eligible, such as a
// deactivated creator.
func (s *Service) initialMembers(ctx context.Context, actor accounts.User, kind string, link Link, ids []string) []accounts.User {
	var out []accounts.User
	seen := map[string]struct{}{actor.ID: {}}
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		target, err := s.users.Get(ctx, id)
		if err != nil {
			s.logger.Warn("initial participant skipped", slog.String("user_id", id), slog.Any("error", err))
			continue
		}
		if Eligible(actor, target, kind, link) == nil {
			out = append(out, target)
		}
	}
	return out
}

func (s *Service) joinExisting(ctx context.Context, actor accounts.User, row sqlc.Conversation, link Link) (Conversation, error) {
	uid, _ := db.ParseUUID(actor.ID)
	role, err := s.participantRole(ctx, row.ID, uid)
	if err != nil {
		return Conversation{}, err
	}
	if role == "" && row.Status == StatusActive && Eligible(actor, actor, row.Kind, link) == nil {
		if _, err := s.queries.AddParticipant(ctx, sqlc.AddParticipantParams{ConversationID: row.ID, UserID: uid, Role: RoleMember}); err != nil {
			return Conversation{}, fmt.Errorf("add participant: %w", err)
		}
		s.publishParticipant(event.TypeParticipantAdded, ParticipantChange{
			ConversationID: db.UUIDToString(row.ID),
			UserID:         actor.ID,
			Role:           RoleMember,
			ActorID:        actor.ID,
		})
	}
	return s.Get(ctx, actor.ID, db.UUIDToString(row.ID))
}

// ListParticipants requires read capability.
func (s *Service) ListParticipants(ctx context.Context, actorID, conversationID string) ([]Participant, error) {
	access, err := s.Access(ctx, actorID, conversationID)
	if err != nil {
		return nil, err
	}
	id, _ := db.ParseUUID(access.Conversation.ID)
	rows, err := s.queries.ListParticipants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, db.UUIDToString(row.UserID))
	}
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]Participant, 0, len(rows))
	for _, row := range rows {
		p := toParticipant(row)
		if u, ok := users[p.UserID]; ok {
			p.DisplayName = u.DisplayName
			p.UserRole = u.Role
		}
		items = append(items, p)
	}
	return items, nil
}

// ParticipantIDs lists member ids without an access check.
func (s *Service) ParticipantIDs(ctx context.Context, conversationID string) ([]string, error) {
	id, err := db.ParseUUID(conversationID)
	if err != nil {
		return nil, ErrConversationNotFound
	}
	rows, err := s.queries.ListParticipants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, db.UUIDToString(row.UserID))
	}
	return ids, nil
}

// AddParticipant requires manage capability on an active, non-direct conversation.
func (s *Service) AddParticipant(ctx context.Context, actorID, conversationID, userID, role string) (Participant, error) {
	access, err := s.Access(ctx, actorID, conversationID)
	if err != nil {
		return Participant{}, err
	}
	if !access.Capabilities.CanManage {
		return Participant{}, ErrPermissionDenied
	}
	conv := access.Conversation
	if conv.Kind == KindDirect {
		return Participant{}, ErrDirectImmutable
	}
	if conv.Status != StatusActive {
		return Participant{}, ErrNotActive
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = RoleMember
	}
	if role != RoleMember && role != RoleObserver {
		return Participant{}, ErrInvalidRole
	}
	target, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return Participant{}, ErrIneligibleParticipant
		}
		return Participant{}, err
	}
	link, err := s.link(ctx, conv)
	if err != nil {
		return Participant{}, err
	}
	if err := Eligible(access.User, target, conv.Kind, link); err != nil {
		return Participant{}, err
	}
	cid, _ := db.ParseUUID(conv.ID)
	uid, _ := db.ParseUUID(target.ID)
	if existing, err := s.participantRole(ctx, cid, uid); err != nil {
		return Participant{}, err
	} else if existing == RoleOwner {
		return Participant{}, ErrOwnerRemoval
	}
	row, err := s.queries.AddParticipant(ctx, sqlc.AddParticipantParams{ConversationID: cid, UserID: uid, Role: role})
	if err != nil {
		return Participant{}, fmt.Errorf("add participant: %w", err)
	}
	p := toParticipant(row)
	p.DisplayName = target.DisplayName
	p.UserRole = target.Role
	s.publishParticipant(event.TypeParticipantAdded, ParticipantChange{
		ConversationID: conv.ID,
		UserID:         target.ID,
		Role:           role,
		ActorID:        access.User.ID,
	})
	return p, nil
}

// RemoveParticipant lets non-owners leave, and lets managers remove anyone but the owner.
func (s *Service) RemoveParticipant(ctx context.Context, actorID, conversationID, userID string) error {
	access, err := s.Access(ctx, actorID, conversationID)
	if err != nil {
		return err
	}
	conv := access.Conversation
	if conv.Kind == KindDirect {
		return ErrDirectImmutable
	}
	cid, _ := db.ParseUUID(conv.ID)
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return ErrParticipantNotFound
	}
	targetRole, err := s.participantRole(ctx, cid, uid)
	if err != nil {
		return err
	}
	if targetRole == "" {
		return ErrParticipantNotFound
	}
	if targetRole == RoleOwner {
		return ErrOwnerRemoval
	}
	target := db.UUIDToString(uid)
	if target != access.User.ID && !access.Capabilities.CanManage {
		return ErrPermissionDenied
	}
	affected, err := s.queries.RemoveParticipant(ctx, sqlc.RemoveParticipantParams{ConversationID: cid, UserID: uid})
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	if affected == 0 {
		return ErrParticipantNotFound
	}
	s.publishParticipant(event.TypeParticipantRemoved, ParticipantChange{
		ConversationID: conv.ID,
		UserID:         target,
		ActorID:        access.User.ID,
	})
	return nil
}

func (s *Service) Close(ctx context.Context, actorID, conversationID string) (Conversation, error) {
	return s.transition(ctx, actorID, conversationID, StatusClosed, StatusActive)
}

func (s *Service) Archive(ctx context.Context, actorID, conversationID string) (Conversation, error) {
	return s.transition(ctx, actorID, conversationID, StatusArchived, StatusActive, StatusClosed)
}

func (s *Service) Reopen(ctx context.Context, actorID, conversationID string) (Conversation, error) {
	return s.transition(ctx, actorID, conversationID, StatusActive, StatusArchived, StatusClosed)
}

func (s *Service) transition(ctx context.Context, actorID, conversationID, to string, from ...string) (Conversation, error) {
	access, err := s.Access(ctx, actorID, conversationID)
	if err != nil {
		return Conversation{}, err
	}
	if !access.Capabilities.CanClose {
		return Conversation{}, ErrPermissionDenied
	}
	conv := access.Conversation
	allowed := false
	for _, f := range from {
		if conv.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return Conversation{}, ErrInvalidTransition
	}
	cid, _ := db.ParseUUID(conv.ID)
	var closedBy pgtype.UUID
	switch to {
	case StatusClosed:
		closedBy, _ = db.ParseUUID(access.User.ID)
	case StatusArchived:
		closedBy, _ = db.ParseOptionalUUID(conv.ClosedBy)
	}
	row, err := s.queries.UpdateConversationStatus(ctx, sqlc.UpdateConversationStatusParams{
		ID:       cid,
		Status:   to,
		ClosedBy: closedBy,
	})
	if err != nil {
		return Conversation{}, fmt.Errorf("update conversation status: %w", err)
	}
	updated := toConversation(row)
	updated.ParticipantRole = conv.ParticipantRole
	s.publishConversation(updated)
	s.logger.Info("conversation status changed",
		slog.String("conversation_id", updated.ID),
		slog.String("from", conv.Status),
		slog.String("to", to),
		slog.String("actor_id", access.User.ID),
	)
	return updated, nil
}

// ArchiveIdle archives active conversations without activity for idleFor.
func (s *Service) ArchiveIdle(ctx context.Context, idleFor time.Duration) (int, error) {
	if idleFor <= 0 {
		return 0, nil
	}
	rows, err := s.queries.ArchiveIdleConversations(ctx, db.Timestamptz(s.now().Add(-idleFor)))
	if err != nil {
		return 0, fmt.Errorf("archive idle conversations: %w", err)
	}
	for _, row := range rows {
		s.publishConversation(toConversation(row))
	}
	if len(rows) > 0 {
		s.logger.Info("idle conversations archived", slog.Int("count", len(rows)))
	}
	return len(rows), nil
}

// Touch records message activity.
func (s *Service) Touch(ctx context.Context, conversationID string, at time.Time) error {
	id, err := db.ParseUUID(conversationID)
	if err != nil {
		return ErrConversationNotFound
	}
	return s.queries.TouchConversation(ctx, sqlc.TouchConversationParams{ID: id, LastMessageAt: db.Timestamptz(at)})
}

func (s *Service) publishConversation(conv Conversation) {
	if s.publisher == nil {
		return
	}
	conv.ParticipantRole = ""
	s.publisher.Publish(event.New(event.TypeConversationUpdated, conv.ID, "", conv))
}

func (s *Service) publishParticipant(t event.Type, change ParticipantChange) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(event.New(t, change.ConversationID, change.UserID, change))
}

func toConversation(row sqlc.Conversation) Conversation {
	return Conversation{
		ID:            db.UUIDToString(row.ID),
		Kind:          row.Kind,
		Title:         row.Title,
		Status:        row.Status,
		TicketID:      db.UUIDToString(row.TicketID),
		RequestID:     db.UUIDToString(row.RequestID),
		CreatedBy:     db.UUIDToString(row.CreatedBy),
		ClosedBy:      db.UUIDToString(row.ClosedBy),
		ClosedAt:      db.TimePtrFromPg(row.ClosedAt),
		LastMessageAt: db.TimePtrFromPg(row.LastMessageAt),
		CreatedAt:     db.TimeFromPg(row.CreatedAt),
		UpdatedAt:     db.TimeFromPg(row.UpdatedAt),
	}
}

func toParticipant(row sqlc.ConversationParticipant) Participant {
	return Participant{
		ConversationID: db.UUIDToString(row.ConversationID),
		UserID:         db.UUIDToString(row.UserID),
		Role:           row.Role,
		JoinedAt:       db.TimeFromPg(row.JoinedAt),
		LastReadAt:     db.TimePtrFromPg(row.LastReadAt),
	}
}
