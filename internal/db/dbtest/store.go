// Package dbtest provides an in-memory sqlc.Querier for service and handler tests.
package dbtest

import (
	"bytes"
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tellerdesk/tellerdesk/internal/db"
	"github.com/tellerdesk/tellerdesk/internal/db/sqlc"
)

var _ db.Store = (*Store)(nil)

type participantKey struct {
	conversation [16]byte
	user         [16]byte
}

type readKey struct {
	message [16]byte
	user    [16]byte
}

// Store mimics the Postgres schema closely enough for unit tests: NULL handling,
// unique constraints, cascades and ordering follow the SQL in db/queries.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	clock time.Time

	branches      map[[16]byte]sqlc.Branch
	teams         map[[16]byte]sqlc.Team
	users         map[[16]byte]sqlc.User
	tickets       map[[16]byte]sqlc.Ticket
	requests      map[[16]byte]sqlc.ServiceRequest
	conversations map[[16]byte]sqlc.Conversation
	participants  map[participantKey]sqlc.ConversationParticipant
	messages      map[[16]byte]sqlc.Message
	attachments   map[[16]byte]sqlc.MessageAttachment
	reads         map[readKey]sqlc.MessageRead
	presence      map[[16]byte]sqlc.UserPresence
	notifications map[[16]byte]sqlc.Notification
}

func New() *Store {
	return &Store{
		clock:         time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		branches:      map[[16]byte]sqlc.Branch{},
		teams:         map[[16]byte]sqlc.Team{},
		users:         map[[16]byte]sqlc.User{},
		tickets:       map[[16]byte]sqlc.Ticket{},
		requests:      map[[16]byte]sqlc.ServiceRequest{},
		conversations: map[[16]byte]sqlc.Conversation{},
		participants:  map[participantKey]sqlc.ConversationParticipant{},
		messages:      map[[16]byte]sqlc.Message{},
		attachments:   map[[16]byte]sqlc.MessageAttachment{},
		reads:         map[readKey]sqlc.MessageRead{},
		presence:      map[[16]byte]sqlc.UserPresence{},
		notifications: map[[16]byte]sqlc.Notification{},
	}
}

// InTx serialises transactions against each other and restores the state taken at
// begin when fn fails. Writes made outside any transaction are not isolated from it.
func (s *Store) InTx(_ context.Context, fn func(q sqlc.Querier) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	saved := s.snapshot()
	s.mu.Unlock()
	if err := fn(s); err != nil {
		s.mu.Lock()
		s.restore(saved)
		s.mu.Unlock()
		return err
	}
	return nil
}

type state struct {
	branches      map[[16]byte]sqlc.Branch
	teams         map[[16]byte]sqlc.Team
	users         map[[16]byte]sqlc.User
	tickets       map[[16]byte]sqlc.Ticket
	requests      map[[16]byte]sqlc.ServiceRequest
	conversations map[[16]byte]sqlc.Conversation
	participants  map[participantKey]sqlc.ConversationParticipant
	messages      map[[16]byte]sqlc.Message
	attachments   map[[16]byte]sqlc.MessageAttachment
	reads         map[readKey]sqlc.MessageRead
	presence      map[[16]byte]sqlc.UserPresence
	notifications map[[16]byte]sqlc.Notification
}

func (s *Store) snapshot() state {
	return state{
		branches:      maps.Clone(s.branches),
		teams:         maps.Clone(s.teams),
		users:         maps.Clone(s.users),
		tickets:       maps.Clone(s.tickets),
		requests:      maps.Clone(s.requests),
		conversations: maps.Clone(s.conversations),
		participants:  maps.Clone(s.participants),
		messages:      maps.Clone(s.messages),
		attachments:   maps.Clone(s.attachments),
		reads:         maps.Clone(s.reads),
		presence:      maps.Clone(s.presence),
		notifications: maps.Clone(s.notifications),
	}
}

func (s *Store) restore(st state) {
	s.branches = st.branches
	s.teams = st.teams
	s.users = st.users
	s.tickets = st.tickets
	s.requests = st.requests
	s.conversations = st.conversations
	s.participants = st.participants
	s.messages = st.messages
	s.attachments = st.attachments
	s.reads = st.reads
	s.presence = st.presence
	s.notifications = st.notifications
}

// Advance moves the store clock forward. Every write also ticks it by a microsecond
// so rows get strictly increasing timestamps.
func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	s.clock = s.clock.Add(d)
	s.mu.Unlock()
}

// Now returns the store clock.
func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

func (s *Store) tick() pgtype.Timestamptz {
	s.clock = s.clock.Add(time.Microsecond)
	return pgtype.Timestamptz{Time: s.clock, Valid: true}
}

func newID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func containsID(ids []pgtype.UUID, id pgtype.UUID) bool {
	for _, candidate := range ids {
		if candidate.Valid && candidate.Bytes == id.Bytes {
			return true
		}
	}
	return false
}

func sameID(a, b pgtype.UUID) bool {
	return a.Valid && b.Valid && a.Bytes == b.Bytes
}

func activity(c sqlc.Conversation) time.Time {
	if c.LastMessageAt.Valid {
		return c.LastMessageAt.Time
	}
	return c.CreatedAt.Time
}

// Branches and teams.

func (s *Store) CreateBranch(_ context.Context, arg sqlc.CreateBranchParams) (sqlc.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.branches {
		if b.Code == arg.Code {
			return sqlc.Branch{}, uniqueViolation("branches_code_key")
		}
	}
	b := sqlc.Branch{ID: newID(), Code: arg.Code, Name: arg.Name, CreatedAt: s.tick()}
	s.branches[b.ID.Bytes] = b
	return b, nil
}

func (s *Store) CreateTeam(_ context.Context, arg sqlc.CreateTeamParams) (sqlc.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.teams {
		if t.BranchID.Bytes == arg.BranchID.Bytes && t.Name == arg.Name {
			return sqlc.Team{}, uniqueViolation("teams_branch_id_name_key")
		}
	}
	t := sqlc.Team{ID: newID(), BranchID: arg.BranchID, Name: arg.Name, CreatedAt: s.tick()}
	s.teams[t.ID.Bytes] = t
	return t, nil
}

func (s *Store) GetBranchByID(_ context.Context, id pgtype.UUID) (sqlc.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[id.Bytes]
	if !ok {
		return sqlc.Branch{}, pgx.ErrNoRows
	}
	return b, nil
}

func (s *Store) GetTeamByID(_ context.Context, id pgtype.UUID) (sqlc.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id.Bytes]
	if !ok {
		return sqlc.Team{}, pgx.ErrNoRows
	}
	return t, nil
}

func (s *Store) ListBranches(_ context.Context) ([]sqlc.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sqlc.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListTeamsByBranch(_ context.Context, branchID pgtype.UUID) ([]sqlc.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sqlc.Team
	for _, t := range s.teams {
		if sameID(t.BranchID, branchID) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Users.

func (s *Store) CreateUser(_ context.Context, arg sqlc.CreateUserParams) (sqlc.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == arg.Email {
			return sqlc.User{}, uniqueViolation("users_email_key")
		}
	}
	now := s.tick()
	u := sqlc.User{
		ID:           newID(),
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		DisplayName:  arg.DisplayName,
		Role:         arg.Role,
		BranchID:     arg.BranchID,
		TeamID:       arg.TeamID,
		IsActive:     arg.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID.Bytes] = u
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, lower string) (sqlc.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, lower) {
			return u, nil
		}
	}
	return sqlc.User{}, pgx.ErrNoRows
}

func (s *Store) GetUserByID(_ context.Context, id pgtype.UUID) (sqlc.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id.Bytes]
	if !ok {
		return sqlc.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]sqlc.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sqlc.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Time.Before(out[j].CreatedAt.Time) })
	return out, nil
}

func (s *Store) ListUsersByIDs(_ context.Context, ids []pgtype.UUID) ([]sqlc.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sqlc.User
	for _, u := range s.users {
		if containsID(ids, u.ID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) SetUserActive(_ context.Context, arg sqlc.SetUserActiveParams) (sqlc.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[arg.ID.Bytes]
	if !ok {
		return sqlc.User{}, pgx.ErrNoRows
	}
	u.IsActive = arg.IsActive
	u.UpdatedAt = s.tick()
	s.users[u.ID.Bytes] = u
	return u, nil
}

// Tickets.

func (s *Store) CreateTicket(_ context.Context, arg sqlc.CreateTicketParams) (sqlc.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	t := sqlc.Ticket{
		ID:          newID(),
		Subject:     arg.Subject,
		Description: arg.Description,
		Priority:    arg.Priority,
		Status:      arg.Status,
		CreatedBy:   arg.CreatedBy,
		AssignedTo:  arg.AssignedTo,
		TeamID:      arg.TeamID,
		BranchID:    arg.BranchID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tickets[t.ID.Bytes] = t
	return t, nil
}

func (s *Store) GetTicketByID(_ context.Context, id pgtype.UUID) (sqlc.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id.Bytes]
	if !ok {
		return sqlc.Ticket{}, pgx.ErrNoRows
	}
	return t, nil
}

func (s *Store) AssignTicket(_ context.Context, arg sqlc.AssignTicketParams) (sqlc.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[arg.ID.Bytes]
	if !ok {
		return sqlc.Ticket{}, pgx.ErrNoRows
	}
	t.AssignedTo = arg.AssignedTo
	t.UpdatedAt = s.tick()
	s.tickets[t.ID.Bytes] = t
	return t, nil
}

func (s *Store) UpdateTicketStatus(_ context.Context, arg sqlc.UpdateTicketStatusParams) (sqlc.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[arg.ID.Bytes]
	if !ok {
		return sqlc.Ticket{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	t.UpdatedAt = s.tick()
	s.tickets[t.ID.Bytes] = t
	return t, nil
}

func (s *Store) ListTicketsVisibleToUser(_ context.Context, arg sqlc.ListTicketsVisibleToUserParams) ([]sqlc.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sqlc.Ticket
	for _, t := range s.tickets {
		if arg.IncludeAll ||
			sameID(t.CreatedBy, arg.UserID) ||
			sameID(t.AssignedTo, arg.UserID) ||
			sameID(t.TeamID, arg.TeamID) ||
			(arg.IncludeBranch && sameID(t.BranchID, arg.BranchID)) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Time.After(out[j].UpdatedAt.Time) })
	return out, nil
}

// Service requests.

func (s *Store) CreateServiceRequest(_ context.Context, arg sqlc.CreateServiceRequestParams) (sqlc.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	r := sqlc.ServiceRequest{
		ID:         newID(),
		Kind:       arg.Kind,
		Summary:    arg.Summary,
		Status:     arg.Status,
		CreatedBy:  arg.CreatedBy,
		AssignedTo: arg.AssignedTo,
		BranchID:   arg.BranchID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.requests[r.ID.Bytes] = r
	return r, nil
}

func (s *Store) GetServiceRequestByID(_ context.Context, id pgtype.UUID) (sqlc.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id.Bytes]
	if !ok {
		return sqlc.ServiceRequest{}, pgx.ErrNoRows
	}
	return r, nil
}

func (s *Store) AssignServiceRequest(_ context.Context, arg sqlc.AssignServiceRequestParams) (sqlc.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[arg.ID.Bytes]
	if !ok {
		return sqlc.ServiceRequest{}, pgx.ErrNoRows
	}
	r.AssignedTo = arg.AssignedTo
	r.UpdatedAt = s.tick()
	s.requests[r.ID.Bytes] = r
	return r, nil
}

func (s *Store) UpdateServiceRequestStatus(_ context.Context, arg sqlc.UpdateServiceRequestStatusParams) (sqlc.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[arg.ID.Bytes]
	if !ok {
		return sqlc.ServiceRequest{}, pgx.ErrNoRows
	}
	r.Status = arg.Status
	r.UpdatedAt = s.tick()
	s.requests[r.ID.Bytes] = r
	return r, nil
}

func (s *Store) ListServiceRequestsVisibleToUser(_ context.Context, arg sqlc.ListServiceRequestsVisibleToUserParams) ([]sqlc.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sqlc.ServiceRequest
	for _, r := range s.requests {
		if arg.IncludeAll ||
			sameID(r.CreatedBy, arg.UserID) ||
			sameID(r.AssignedTo, arg.UserID) ||
			(arg.IncludeBranch && sameID(r.BranchID, arg.BranchID)) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Time.After(out[j].UpdatedAt.Time) })
	return out, nil
}

// Conversations.

func (s *Store) CreateConversation(_ context.Context, arg sqlc.CreateConversationParams) (sqlc.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if arg.TicketID.Valid && sameID(c.TicketID, arg.TicketID) {
			return sqlc.Conversation{}, uniqueViolation("conversations_ticket_id_key")
		}
		if arg.RequestID.Valid && sameID(c.RequestID, arg.RequestID) {
			return sqlc.Conversation{}, uniqueViolation("conversations_request_id_key")
		}
		if arg.DirectKey.Valid && c.DirectKey.Valid && c.DirectKey.String == arg.DirectKey.String {
			return sqlc.Conversation{}, uniqueViolation("conversations_direct_key_key")
		}
	}
	now := s.tick()
	c := sqlc.Conversation{
		ID:        newID(),
		Kind:      arg.Kind,
		Title:     arg.Title,
		Status:    "active",
		TicketID:  arg.TicketID,
		RequestID: arg.RequestID,
		DirectKey: arg.DirectKey,
		CreatedBy: arg.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[c.ID.Bytes] = c
	return c, nil
}

func (s *Store) findConversation(match func(sqlc.Conversation) bool) (sqlc.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if match(c) {
			return c, nil
		}
	}
	return sqlc.Conversation{}, pgx.ErrNoRows
}

func (s *Store) GetConversationByID(_ context.Context, id pgtype.UUID) (sqlc.Conversation, error) {
	return s.findConversation(func(c sqlc.Conversation) bool { return sameID(c.ID, id) })
}

func (s *Store) GetConversationByTicket(_ context.Context, ticketID pgtype.UUID) (sqlc.Conversation, error) {
	return s.findConversation(func(c sqlc.Conversation) bool { return sameID(c.TicketID, ticketID) })
}

func (s *Store) GetConversationByRequest(_ context.Context, requestID pgtype.UUID) (sqlc.Conversation, error) {
	return s.findConversation(func(c sqlc.Conversation) bool { return sameID(c.RequestID, requestID) })
}

func (s *Store) GetConversationByDirectKey(_ context.Context, directKey pgtype.Text) (sqlc.Conversation, error) {
	return s.findConversation(func(c sqlc.Conversation) bool {
		return directKey.Valid && c.DirectKey.Valid && c.DirectKey.String == directKey.String
	})
}

func (s *Store) UpdateConversationStatus(_ context.Context, arg sqlc.UpdateConversationStatusParams) (sqlc.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[arg.ID.Bytes]
	if !ok {
		return sqlc.Conversation{}, pgx.ErrNoRows
	}
	now := s.tick()
	c.Status = arg.Status
	c.ClosedBy = arg.ClosedBy
	switch arg.Status {
	case "closed":
		c.ClosedAt = now
	case "active":
		c.ClosedAt = pgtype.Timestamptz{}
	}
	c.UpdatedAt = now
	s.conversations[c.ID.Bytes] = c
	return c, nil
}

func (s *Store) TouchConversation(_ context.Context, arg sqlc.TouchConversationParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[arg.ID.Bytes]
	if !ok {
		return nil
	}
	c.LastMessageAt = arg.LastMessageAt
	c.UpdatedAt = s.tick()
	s.conversations[c.ID.Bytes] = c
	return nil
}

func (s *Store) ArchiveIdleConversations(_ context.Context, cutoff pgtype.Timestamptz) ([]sqlc.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sqlc.Conversation
	for id, c := range s.conversations {
		if c.Status != "active" || !activity(c).Before(cutoff.Time) {
			continue
		}
		c.Status = "archived"
		c.UpdatedAt = s.tick()
		s.conversations[id] = c
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) unreadLocked(conversationID, userID pgtype.UUID) int64 {
	var n int64
	for _, m := range s.messages {
		if !sameID(m.ConversationID, conversationID) || sameID(m.SenderID, userID) || m.DeletedAt.Valid {
			continue
		}
		if _, read := s.reads[readKey{m.ID.Bytes, userID.Bytes}]; !read {
			n++
		}
	}
	return n
}

func (s *Store) ListConversationsByParticipant(_ context.Context, userID pgtype.UUID) ([]sqlc.ListConversationsByParticipantRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sqlc.ListConversationsByParticipantRow
	for key, p := range s.participants {
		if key.user != userID.Bytes {
			continue
		}
		c := s.conversations[key.conversation]
		out = append(out, sqlc.ListConversationsByParticipantRow{
			ID:              c.ID,
			Kind:            c.Kind,
			Title:           c.Title,
			Status:          c.Status,
			TicketID:        c.TicketID,
			RequestID:       c.RequestID,
			DirectKey:       c.DirectKey,
			CreatedBy:       c.CreatedBy,
			ClosedBy:        c.ClosedBy,
			ClosedAt:        c.ClosedAt,
			LastMessageAt:   c.LastMessageAt,
			CreatedAt:       c.CreatedAt,
			UpdatedAt:       c.UpdatedAt,
			ParticipantRole: p.Role,
			LastReadAt:      p.LastReadAt,
			UnreadCount:     s.unreadLocked(c.ID, userID),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ai := out[i].CreatedAt.Time
		if out[i].LastMessageAt.Valid {
			ai = out[i].LastMessageAt.Time
		}
		aj := out[j].CreatedAt.Time
		if out[j].LastMessageAt.Valid {
			aj = out[j].LastMessageAt.Time
		}
		return ai.After(aj)
	})
	return out, nil
}

// Participants.

func (s *Store) AddParticipant(_ context.Context, arg sqlc.AddParticipantParams) (sqlc.ConversationParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[arg.ConversationID.Bytes]; !ok {
		return sqlc.ConversationParticipant{}, &pgconn.PgError{Code: "23503"}
	}
	key := participantKey{arg.ConversationID.Bytes, arg.UserID.Bytes}
	p, ok := s.participants[key]
	if !ok {
		p = sqlc.ConversationParticipant{
			ConversationID: arg.ConversationID,
			UserID:         arg.UserID,
			JoinedAt:       s.tick(),
		}
	}
	p.Role = arg.Role
	s.participants[key] = p
	return p, nil
}

func (s *Store) GetParticipant(_ context.Context, arg sqlc.GetParticipantParams) (sqlc.ConversationParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantKey{arg.ConversationID.Bytes, arg.UserID.Bytes}]
	if !ok {
		return sqlc.ConversationParticipant{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *Store) ListParticipants(_ context.Context, conversationID pgtype.UUID) ([]sqlc.ConversationParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sqlc.ConversationParticipant
	for key, p := range s.participants {
		if key.conversation == conversationID.Bytes {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Time.Equal(out[j].JoinedAt.Time) {
			return out[i].JoinedAt.Time.Before(out[j].JoinedAt.Time)
		}
		return bytes.Compare(out[i].UserID.Bytes[:], out[j].UserID.Bytes[:]) < 0
	})
	return out, nil
}

func (s *Store) RemoveParticipant(_ context.Context, arg sqlc.RemoveParticipantParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participantKey{arg.ConversationID.Bytes, arg.UserID.Bytes}
	if _, ok := s.participants[key]; !ok {
		return 0, nil
	}
	delete(s.participants, key)
	return 1, nil
}

func (s *Store) UpdateParticipantLastRead(_ context.Context, arg sqlc.UpdateParticipantLastReadParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participantKey{arg.ConversationID.Bytes, arg.UserID.Bytes}
	p, ok := s.participants[key]
	if !ok {
		return nil
	}
	if !p.LastReadAt.Valid || arg.LastReadAt.Time.After(p.LastReadAt.Time) {
		p.LastReadAt = arg.LastReadAt
	}
	s.participants[key] = p
	return nil
}

func (s *Store) ListCounterpartUserIDs(_ context.Context, userID pgtype.UUID) ([]pgtype.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[[16]byte]struct{}{}
	var out []pgtype.UUID
	for key := range s.participants {
		if key.user != userID.Bytes {
			continue
		}
		for other, p := range s.participants {
			if other.conversation != key.conversation || other.user == userID.Bytes {
				continue
			}
			if _, dup := seen[other.user]; dup {
				continue
			}
			seen[other.user] = struct{}{}
			out = append(out, p.UserID)
		}
	}
	return out, nil
}

// Messages.

func (s *Store) CreateMessage(_ context.Context, arg sqlc.CreateMessageParams) (sqlc.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[arg.ConversationID.Bytes]; !ok {
		return sqlc.Message{}, &pgconn.PgError{Code: "23503"}
	}
	m := sqlc.Message{
		ID:             newID(),
		ConversationID: arg.ConversationID,
		SenderID:       arg.SenderID,
		Content:        arg.Content,
		ReplyToID:      arg.ReplyToID,
		CreatedAt:      s.tick(),
	}
	s.messages[m.ID.Bytes] = m
	return m, nil
}

func (s *Store) GetMessageByID(_ context.Context, id pgtype.UUID) (sqlc.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id.Bytes]
	if !ok {
		return sqlc.Message{}, pgx.ErrNoRows
	}
	return m, nil
}

func (s *Store) listMessages(conversationID pgtype.UUID, before *time.Time, limit int32) []sqlc.Message {
	var out []sqlc.Message
	for _, m := range s.messages {
		if !sameID(m.ConversationID, conversationID) {
			continue
		}
		if before != nil && !m.CreatedAt.Time.Before(*before) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Time.After(out[j].CreatedAt.Time) })
	if limit >= 0 && int(limit) < len(out) {
		out = out[:limit]
	}
	return out
}

func (s *Store) ListMessagesLatest(_ context.Context, arg sqlc.ListMessagesLatestParams) ([]sqlc.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMessages(arg.ConversationID, nil, arg.MaxCount), nil
}

func (s *Store) ListMessagesAfter(_ context.Context, arg sqlc.ListMessagesAfterParams) ([]sqlc.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sqlc.Message
	for _, m := range s.messages {
		if !sameID(m.ConversationID, arg.ConversationID) {
			continue
		}
		at, after := m.CreatedAt.Time, arg.CreatedAt.Time
		if at.After(after) || (at.Equal(after) && arg.ID.Valid && bytes.Compare(m.ID.Bytes[:], arg.ID.Bytes[:]) > 0) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Time.Equal(out[j].CreatedAt.Time) {
			return out[i].CreatedAt.Time.Before(out[j].CreatedAt.Time)
		}
		return bytes.Compare(out[i].ID.Bytes[:], out[j].ID.Bytes[:]) < 0
	})
	if arg.MaxCount >= 0 && int(arg.MaxCount) < len(out) {
		out = out[:arg.MaxCount]
	}
	return out, nil
}

func (s *Store) ListMessagesBefore(_ context.Context, arg sqlc.ListMessagesBeforeParams) ([]sqlc.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := arg.CreatedAt.Time
	return s.listMessages(arg.ConversationID, &before, arg.MaxCount), nil
}

func (s *Store) UpdateMessageContent(_ context.Context, arg sqlc.UpdateMessageContentParams) (sqlc.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[arg.ID.Bytes]
	if !ok || m.DeletedAt.Valid {
		return sqlc.Message{}, pgx.ErrNoRows
	}
	m.Content = arg.Content
	m.EditedAt = s.tick()
	s.messages[m.ID.Bytes] = m
	return m, nil
}

func (s *Store) SoftDeleteMessage(_ context.Context, id pgtype.UUID) (sqlc.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id.Bytes]
	if !ok || m.DeletedAt.Valid {
		return sqlc.Message{}, pgx.ErrNoRows
	}
	m.DeletedAt = s.tick()
	s.messages[m.ID.Bytes] = m
	return m, nil
}

func (s *Store) DeleteMessage(_ context.Context, id pgtype.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id.Bytes]; !ok {
		return 0, nil
	}
	delete(s.messages, id.Bytes)
	for aid, a := range s.attachments {
		if a.MessageID.Bytes == id.Bytes {
			delete(s.attachments, aid)
		}
	}
	for key := range s.reads {
		if key.message == id.Bytes {
			delete(s.reads, key)
		}
	}
	for mid, m := range s.messages {
		if sameID(m.ReplyToID, id) {
			m.ReplyToID = pgtype.UUID{}
			s.messages[mid] = m
		}
	}
	return 1, nil
}

func (s *Store) CountUnreadMessages(_ context.Context, arg sqlc.CountUnreadMessagesParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadLocked(arg.ConversationID, arg.UserID), nil
}

func (s *Store) CreateMessageAttachment(_ context.Context, arg sqlc.CreateMessageAttachmentParams) (sqlc.MessageAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[arg.MessageID.Bytes]; !ok {
		return sqlc.MessageAttachment{}, &pgconn.PgError{Code: "23503"}
	}
	a := sqlc.MessageAttachment{
		ID:         newID(),
		MessageID:  arg.MessageID,
		FileName:   arg.FileName,
		Mime:       arg.Mime,
		SizeBytes:  arg.SizeBytes,
		StorageKey: arg.StorageKey,
		Ordinal:    arg.Ordinal,
		CreatedAt:  s.tick(),
	}
	s.attachments[a.ID.Bytes] = a
	return a, nil
}

func (s *Store) ListMessageAttachmentsBatch(_ context.Context, messageIds []pgtype.UUID) ([]sqlc.MessageAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sqlc.MessageAttachment
	for _, a := range s.attachments {
		if containsID(messageIds, a.MessageID) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MessageID.Bytes != out[j].MessageID.Bytes {
			return uuid.UUID(out[i].MessageID.Bytes).String() < uuid.UUID(out[j].MessageID.Bytes).String()
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	return out, nil
}

func (s *Store) MarkMessagesReadUpTo(_ context.Context, arg sqlc.MarkMessagesReadUpToParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if !sameID(m.ConversationID, arg.ConversationID) || sameID(m.SenderID, arg.UserID) || m.DeletedAt.Valid {
			continue
		}
		if m.CreatedAt.Time.After(arg.UpTo.Time) {
			continue
		}
		key := readKey{m.ID.Bytes, arg.UserID.Bytes}
		if _, ok := s.reads[key]; ok {
			continue
		}
		s.reads[key] = sqlc.MessageRead{MessageID: m.ID, UserID: arg.UserID, ReadAt: s.tick()}
		n++
	}
	return n, nil
}

func (s *Store) UpsertMessageRead(_ context.Context, arg sqlc.UpsertMessageReadParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := readKey{arg.MessageID.Bytes, arg.UserID.Bytes}
	if _, ok := s.reads[key]; !ok {
		s.reads[key] = sqlc.MessageRead{MessageID: arg.MessageID, UserID: arg.UserID, ReadAt: s.tick()}
	}
	return nil
}

func (s *Store) ListMessageReadsBatch(_ context.Context, messageIds []pgtype.UUID) ([]sqlc.MessageRead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sqlc.MessageRead
	for _, r := range s.reads {
		if containsID(messageIds, r.MessageID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReadAt.Time.Before(out[j].ReadAt.Time) })
	return out, nil
}

// Presence.

func (s *Store) UpsertPresence(_ context.Context, arg sqlc.UpsertPresenceParams) (sqlc.UserPresence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := sqlc.UserPresence{UserID: arg.UserID, Status: arg.Status, LastSeenAt: arg.LastSeenAt, UpdatedAt: s.tick()}
	s.presence[arg.UserID.Bytes] = p
	return p, nil
}

func (s *Store) TouchPresence(_ context.Context, arg sqlc.TouchPresenceParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.presence[arg.UserID.Bytes]
	if !ok {
		return nil
	}
	p.LastSeenAt = arg.LastSeenAt
	p.UpdatedAt = s.tick()
	s.presence[arg.UserID.Bytes] = p
	return nil
}

func (s *Store) GetPresenceBatch(_ context.Context, userIds []pgtype.UUID) ([]sqlc.UserPresence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sqlc.UserPresence
	for _, p := range s.presence {
		if containsID(userIds, p.UserID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) MarkStalePresenceOffline(_ context.Context, cutoff pgtype.Timestamptz) ([]sqlc.UserPresence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sqlc.UserPresence
	for id, p := range s.presence {
		if p.Status == "offline" || !p.LastSeenAt.Time.Before(cutoff.Time) {
			continue
		}
		p.Status = "offline"
		p.UpdatedAt = s.tick()
		s.presence[id] = p
		out = append(out, p)
	}
	return out, nil
}

// Notifications.

func (s *Store) CreateNotification(_ context.Context, arg sqlc.CreateNotificationParams) (sqlc.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := sqlc.Notification{
		ID:        newID(),
		UserID:    arg.UserID,
		Kind:      arg.Kind,
		Title:     arg.Title,
		Body:      arg.Body,
		RefType:   arg.RefType,
		RefID:     arg.RefID,
		CreatedAt: s.tick(),
	}
	s.notifications[n.ID.Bytes] = n
	return n, nil
}

func (s *Store) ListNotificationsByUser(_ context.Context, arg sqlc.ListNotificationsByUserParams) ([]sqlc.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sqlc.Notification
	for _, n := range s.notifications {
		if sameID(n.UserID, arg.UserID) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Time.After(out[j].CreatedAt.Time) })
	if int(arg.MaxCount) < len(out) {
		out = out[:arg.MaxCount]
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, arg sqlc.MarkNotificationReadParams) (sqlc.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[arg.ID.Bytes]
	if !ok || !sameID(n.UserID, arg.UserID) {
		return sqlc.Notification{}, pgx.ErrNoRows
	}
	if !n.ReadAt.Valid {
		n.ReadAt = s.tick()
	}
	s.notifications[n.ID.Bytes] = n
	return n, nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID pgtype.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.notifications {
		if sameID(n.UserID, userID) && !n.ReadAt.Valid {
			n.ReadAt = s.tick()
			s.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (s *Store) CountUnreadNotifications(_ context.Context, userID pgtype.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.notifications {
		if sameID(n.UserID, userID) && !n.ReadAt.Valid {
			count++
		}
	}
	return count, nil
}
