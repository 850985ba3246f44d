// Package notification keeps per-user notifications and announces new ones.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tellerdesk/tellerdesk/internal/db"
	"github.com/tellerdesk/tellerdesk/internal/db/sqlc"
	"github.com/tellerdesk/tellerdesk/internal/message/event"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidUser          = errors.New("invalid user id")
	ErrInvalidNotification  = errors.New("notification needs a kind and a title")
)

type Service struct {
	queries   sqlc.Querier
	publisher event.Publisher
	logger    *slog.Logger
}

func NewService(log *slog.Logger, queries sqlc.Querier, publisher event.Publisher) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries:   queries,
		publisher: publisher,
		logger:    log.With(slog.String("service", "notification")),
	}
}

// Create stores a notification and pushes notification.created to the user's sockets.
func (s *Service) Create(ctx context.Context, input CreateInput) (Notification, error) {
	userID, err := db.ParseUUID(input.UserID)
	if err != nil {
		return Notification{}, ErrInvalidUser
	}
	kind := strings.TrimSpace(input.Kind)
	title := strings.TrimSpace(input.Title)
	if kind == "" || title == "" {
		return Notification{}, ErrInvalidNotification
	}
	refID, err := db.ParseOptionalUUID(input.RefID)
	if err != nil {
		return Notification{}, fmt.Errorf("invalid ref id: %w", err)
	}
	refType := db.TextFrom(strings.TrimSpace(input.RefType))
	row, err := s.queries.CreateNotification(ctx, sqlc.CreateNotificationParams{
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Body:    input.Body,
		RefType: refType,
		RefID:   refID,
	})
	if err != nil {
		return Notification{}, fmt.Errorf("create notification: %w", err)
	}
	n := toNotification(row)
	if s.publisher != nil {
		s.publisher.Publish(event.New(event.TypeNotificationCreated, "", n.UserID, n))
	}
	return n, nil
}

// NotifyNewMessage leaves a message notification pointing at the conversation.
func (s *Service) NotifyNewMessage(ctx context.Context, userID, conversationID, messageID, title, preview string) error {
	_, err := s.Create(ctx, CreateInput{
		UserID:  userID,
		Kind:    KindMessage,
		Title:   title,
		Body:    preview,
		RefType: RefConversation,
		RefID:   conversationID,
	})
	if err != nil {
		return err
	}
	s.logger.Debug("message notification created", slog.String("user_id", userID), slog.String("message_id", messageID))
	return nil
}

// NotifyTicket leaves a notification pointing at a ticket.
func (s *Service) NotifyTicket(ctx context.Context, userID, ticketID, title, body string) error {
	_, err := s.Create(ctx, CreateInput{UserID: userID, Kind: KindTicket, Title: title, Body: body, RefType: RefTicket, RefID: ticketID})
	return err
}

// NotifyRequest leaves a notification pointing at a service request.
func (s *Service) NotifyRequest(ctx context.Context, userID, requestID, title, body string) error {
	_, err := s.Create(ctx, CreateInput{UserID: userID, Kind: KindRequest, Title: title, Body: body, RefType: RefRequest, RefID: requestID})
	return err
}

// List returns the newest notifications first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Notification, error) {
	id, err := db.ParseUUID(userID)
	if err != nil {
		return nil, ErrInvalidUser
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	rows, err := s.queries.ListNotificationsByUser(ctx, sqlc.ListNotificationsByUserParams{UserID: id, MaxCount: int32(limit)})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	items := make([]Notification, 0, len(rows))
	for _, row := range rows {
		items = append(items, toNotification(row))
	}
	return items, nil
}

// MarkRead marks one of the user's notifications. Another user's id reads as not found.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) (Notification, error) {
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return Notification{}, ErrInvalidUser
	}
	nid, err := db.ParseUUID(notificationID)
	if err != nil {
		return Notification{}, ErrNotificationNotFound
	}
	row, err := s.queries.MarkNotificationRead(ctx, sqlc.MarkNotificationReadParams{ID: nid, UserID: uid})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, ErrNotificationNotFound
		}
		return Notification{}, fmt.Errorf("mark notification read: %w", err)
	}
	return toNotification(row), nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return 0, ErrInvalidUser
	}
	n, err := s.queries.MarkAllNotificationsRead(ctx, uid)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return 0, ErrInvalidUser
	}
	n, err := s.queries.CountUnreadNotifications(ctx, uid)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func toNotification(row sqlc.Notification) Notification {
	return Notification{
		ID:        db.UUIDToString(row.ID),
		UserID:    db.UUIDToString(row.UserID),
		Kind:      row.Kind,
		Title:     row.Title,
		Body:      row.Body,
		RefType:   db.TextToString(row.RefType),
		RefID:     db.UUIDToString(row.RefID),
		ReadAt:    db.TimePtrFromPg(row.ReadAt),
		CreatedAt: db.TimeFromPg(row.CreatedAt),
	}
}
