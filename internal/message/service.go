// Package message stores chat messages with edits, soft deletes, attachments and read receipts.
package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
	"github.com/tellerdesk/tellerdesk/internal/conversation"
	"github.com/tellerdesk/tellerdesk/internal/db"
	"github.com/tellerdesk/tellerdesk/internal/db/sqlc"
	"github.com/tellerdesk/tellerdesk/internal/message/event"
	"github.com/tellerdesk/tellerdesk/internal/presence"
)

var (
	ErrMessageNotFound    = errors.New("message not found")
	ErrEmptyMessage       = errors.New("message has no content")
	ErrContentTooLong     = errors.New("message content is too long")
	ErrTooManyAttachments = errors.New("too many attachments")
	ErrAttachmentTooLarge = errors.New("attachment is too large")
	ErrInvalidAttachment  = errors.New("invalid attachment")
	ErrInvalidReply       = errors.New("reply target is not in this conversation")
	ErrNotAuthor          = errors.New("only the author can edit a message")
	ErrEditWindowClosed   = errors.New("edit window has passed")
	ErrMessageDeleted     = errors.New("message was deleted")
	ErrReadOnly           = errors.New("conversation is read only")
	ErrNotParticipant     = errors.New("not a participant")
)

type UserLookup interface {
	GetMany(ctx context.Context, userIDs []string) (map[string]accounts.User, error)
}

type PresenceLookup interface {
	GetMany(ctx context.Context, userIDs []string) ([]presence.Presence, error)
}

// Options holds the tunables of the message store.
type Options struct {
	// EditWindow bounds how long after sending a message can be edited. Zero disables the limit.
	EditWindow time.Duration
}

type DBService struct {
	queries   db.Store
	access    conversation.Accessor
	users     UserLookup
	presence  PresenceLookup
	notifier  Notifier
	publisher event.Publisher
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
}

var _ Store = (*DBService)(nil)

// NewService creates a message store. presence and notifier may be nil, in which case
// offline participants are not notified.
func NewService(log *slog.Logger, queries db.Store, access conversation.Accessor, users UserLookup, presenceLookup PresenceLookup, notifier Notifier, publisher event.Publisher, opts Options) *DBService {
	if log == nil {
		log = slog.Default()
	}
	return &DBService{
		queries:   queries,
		access:    access,
		users:     users,
		presence:  presenceLookup,
		notifier:  notifier,
		publisher: publisher,
		logger:    log.With(slog.String("service", "message")),
		opts:      opts,
		now:       time.Now,
	}
}

func (s *DBService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func postDenied(caps conversation.Capabilities) error {
	if caps.IsParticipant && caps.ReadOnly {
		return ErrReadOnly
	}
	return conversation.ErrPermissionDenied
}

func validateContent(raw string, allowEmpty bool) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" && !allowEmpty {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return "", ErrContentTooLong
	}
	return content, nil
}

func validateAttachments(items []AttachmentInput) error {
	if len(items) > MaxAttachments {
		return ErrTooManyAttachments
	}
	for _, a := range items {
		if strings.TrimSpace(a.FileName) == "" || strings.TrimSpace(a.StorageKey) == "" || a.SizeBytes <= 0 {
			return ErrInvalidAttachment
		}
		if a.SizeBytes > MaxAttachmentBytes {
			return ErrAttachmentTooLarge
		}
	}
	return nil
}

func (s *DBService) getMessage(ctx context.Context, messageID string) (sqlc.Message, error) {
	id, err := db.ParseUUID(messageID)
	if err != nil {
		return sqlc.Message{}, ErrMessageNotFound
	}
	row, err := s.queries.GetMessageByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sqlc.Message{}, ErrMessageNotFound
		}
		return sqlc.Message{}, fmt.Errorf("get message: %w", err)
	}
	return row, nil
}

// Send persists a message, marks it read by its sender and fans it out.
func (s *DBService) Send(ctx context.Context, actorID string, input SendInput) (Message, error) {
	access, err := s.access.Access(ctx, actorID, input.ConversationID)
	if err != nil {
		return Message{}, err
	}
	caps := access.Capabilities
	if !caps.CanPost {
		return Message{}, postDenied(caps)
	}
	if len(input.Attachments) > 0 && !caps.CanUpload {
		return Message{}, conversation.ErrPermissionDenied
	}
	if err := validateAttachments(input.Attachments); err != nil {
		return Message{}, err
	}
	content, err := validateContent(input.Content, len(input.Attachments) > 0)
	if err != nil {
		return Message{}, err
	}

	convID, _ := db.ParseUUID(access.Conversation.ID)
	senderID, _ := db.ParseUUID(access.User.ID)
	var replyTo pgtype.UUID
	if strings.TrimSpace(input.ReplyToID) != "" {
		target, err := s.getMessage(ctx, input.ReplyToID)
		if err != nil {
			if errors.Is(err, ErrMessageNotFound) {
				return Message{}, ErrInvalidReply
			}
			return Message{}, err
		}
		if target.ConversationID.Bytes != convID.Bytes || target.DeletedAt.Valid {
			return Message{}, ErrInvalidReply
		}
		replyTo = target.ID
	}

	var msg Message
	err = s.queries.InTx(ctx, func(q sqlc.Querier) error {
		row, err := q.CreateMessage(ctx, sqlc.CreateMessageParams{
			ConversationID: convID,
			SenderID:       senderID,
			Content:        content,
			ReplyToID:      replyTo,
		})
		if err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		msg = toMessage(row)
		msg.SenderDisplayName = access.User.DisplayName
		for i, a := range input.Attachments {
			att, err := q.CreateMessageAttachment(ctx, sqlc.CreateMessageAttachmentParams{
				MessageID:  row.ID,
				FileName:   strings.TrimSpace(a.FileName),
				Mime:       strings.TrimSpace(a.Mime),
				SizeBytes:  a.SizeBytes,
				StorageKey: strings.TrimSpace(a.StorageKey),
				Ordinal:    int32(i),
			})
			if err != nil {
				return fmt.Errorf("create attachment: %w", err)
			}
			msg.Attachments = append(msg.Attachments, toAttachment(att))
		}
		if err := q.TouchConversation(ctx, sqlc.TouchConversationParams{ID: convID, LastMessageAt: row.CreatedAt}); err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		if err := q.UpsertMessageRead(ctx, sqlc.UpsertMessageReadParams{MessageID: row.ID, UserID: senderID}); err != nil {
			return fmt.Errorf("sender receipt: %w", err)
		}
		if err := q.UpdateParticipantLastRead(ctx, sqlc.UpdateParticipantLastReadParams{
			ConversationID: convID,
			UserID:         senderID,
			LastReadAt:     row.CreatedAt,
		}); err != nil {
			return fmt.Errorf("update last read: %w", err)
		}
		return nil
	})
	if err != nil {
		return Message{}, err
	}
	msg.ReadBy = []ReadReceipt{{UserID: access.User.ID, ReadAt: msg.CreatedAt}}

	s.publish(event.TypeMessageCreated, msg.ConversationID, msg.SenderID, msg)
	s.notifyOffline(ctx, access.Conversation, msg)
	return msg, nil
}

// notifyOffline leaves a notification for every other participant whose presence is offline.
func (s *DBService) notifyOffline(ctx context.Context, conv conversation.Conversation, msg Message) {
	if s.notifier == nil || s.presence == nil {
		return
	}
	convID, _ := db.ParseUUID(conv.ID)
	participants, err := s.queries.ListParticipants(ctx, convID)
	if err != nil {
		s.logger.Warn("list participants for notify failed", slog.Any("error", err))
		return
	}
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		if uid := db.UUIDToString(p.UserID); uid != msg.SenderID {
			ids = append(ids, uid)
		}
	}
	if len(ids) == 0 {
		return
	}
	states, err := s.presence.GetMany(ctx, ids)
	if err != nil {
		s.logger.Warn("presence lookup for notify failed", slog.Any("error", err))
		return
	}
	title := conv.Title
	if title == "" {
		title = msg.SenderDisplayName
	}
	preview := previewOf(msg)
	for _, st := range states {
		if st.Status != presence.StatusOffline {
			continue
		}
		if err := s.notifier.NotifyNewMessage(ctx, st.UserID, msg.ConversationID, msg.ID, title, preview); err != nil {
			s.logger.Warn("notify offline participant failed", slog.String("user_id", st.UserID), slog.Any("error", err))
		}
	}
}

func previewOf(msg Message) string {
	text := msg.Content
	if text == "" && len(msg.Attachments) > 0 {
		text = fmt.Sprintf("%d attachment(s)", len(msg.Attachments))
	}
	if utf8.RuneCountInString(text) > notificationPreview {
		text = string([]rune(text)[:notificationPreview]) + "…"
	}
	if msg.SenderDisplayName != "" {
		return msg.SenderDisplayName + ": " + text
	}
	return text
}

// Edit replaces the content of the actor's own message.
func (s *DBService) Edit(ctx context.Context, actorID, messageID, content string) (Message, error) {
	row, err := s.getMessage(ctx, messageID)
	if err != nil {
		return Message{}, err
	}
	access, err := s.access.Access(ctx, actorID, db.UUIDToString(row.ConversationID))
	if err != nil {
		return Message{}, err
	}
	if row.DeletedAt.Valid {
		return Message{}, ErrMessageDeleted
	}
	if db.UUIDToString(row.SenderID) != access.User.ID {
		return Message{}, ErrNotAuthor
	}
	if !access.Capabilities.CanPost {
		return Message{}, postDenied(access.Capabilities)
	}
	if w := s.opts.EditWindow; w > 0 && s.now().Sub(row.CreatedAt.Time) > w {
		return Message{}, ErrEditWindowClosed
	}
	attachments, err := s.queries.ListMessageAttachmentsBatch(ctx, []pgtype.UUID{row.ID})
	if err != nil {
		return Message{}, fmt.Errorf("list attachments: %w", err)
	}
	text, err := validateContent(content, len(attachments) > 0)
	if err != nil {
		return Message{}, err
	}
	updated, err := s.queries.UpdateMessageContent(ctx, sqlc.UpdateMessageContentParams{ID: row.ID, Content: text})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrMessageDeleted
		}
		return Message{}, fmt.Errorf("update message: %w", err)
	}
	msgs := []Message{toMessage(updated)}
	s.enrich(ctx, msgs)
	s.publish(event.TypeMessageUpdated, msgs[0].ConversationID, access.User.ID, msgs[0])
	return msgs[0], nil
}

// Delete soft-deletes a message. Authors delete their own; managers delete any.
func (s *DBService) Delete(ctx context.Context, actorID, messageID string) error {
	row, err := s.getMessage(ctx, messageID)
	if err != nil {
		return err
	}
	access, err := s.access.Access(ctx, actorID, db.UUIDToString(row.ConversationID))
	if err != nil {
		return err
	}
	if row.DeletedAt.Valid {
		return ErrMessageDeleted
	}
	if db.UUIDToString(row.SenderID) != access.User.ID && !access.Capabilities.CanManage {
		return conversation.ErrPermissionDenied
	}
	deleted, err := s.queries.SoftDeleteMessage(ctx, row.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMessageDeleted
		}
		return fmt.Errorf("delete message: %w", err)
	}
	convID := db.UUIDToString(deleted.ConversationID)
	s.publish(event.TypeMessageDeleted, convID, access.User.ID, DeletedEvent{
		ID:             db.UUIDToString(deleted.ID),
		ConversationID: convID,
		DeletedBy:      access.User.ID,
		At:             db.TimeFromPg(deleted.DeletedAt),
	})
	return nil
}

// Purge removes a message with its attachments and receipts. Admins only.
func (s *DBService) Purge(ctx context.Context, actorID, messageID string) error {
	row, err := s.getMessage(ctx, messageID)
	if err != nil {
		return err
	}
	convID := db.UUIDToString(row.ConversationID)
	access, err := s.access.Access(ctx, actorID, convID)
	if err != nil {
		return err
	}
	if !access.User.IsAdmin() {
		return conversation.ErrPermissionDenied
	}
	n, err := s.queries.DeleteMessage(ctx, row.ID)
	if err != nil {
		return fmt.Errorf("purge message: %w", err)
	}
	if n == 0 {
		return ErrMessageNotFound
	}
	s.logger.Info("message purged", slog.String("message_id", messageID), slog.String("actor_id", access.User.ID))
	s.publish(event.TypeMessageDeleted, convID, access.User.ID, DeletedEvent{
		ID:             db.UUIDToString(row.ID),
		ConversationID: convID,
		DeletedBy:      access.User.ID,
		Purged:         true,
		At:             s.now().UTC(),
	})
	return nil
}

// List returns one page ending just before `before` (zero means the latest page),
// oldest first.
func (s *DBService) List(ctx context.Context, actorID, conversationID string, before time.Time, limit int) ([]Message, error) {
	access, err := s.access.Access(ctx, actorID, conversationID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	convID, _ := db.ParseUUID(access.Conversation.ID)
	var rows []sqlc.Message
	if before.IsZero() {
		rows, err = s.queries.ListMessagesLatest(ctx, sqlc.ListMessagesLatestParams{ConversationID: convID, MaxCount: int32(limit)})
	} else {
		rows, err = s.queries.ListMessagesBefore(ctx, sqlc.ListMessagesBeforeParams{
			ConversationID: convID,
			CreatedAt:      db.Timestamptz(before),
			MaxCount:       int32(limit),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	msgs := make([]Message, len(rows))
	for i, row := range rows {
		msgs[len(rows)-1-i] = toMessage(row)
	}
	s.enrich(ctx, msgs)
	return msgs, nil
}

// ListSince returns messages created after since, oldest first. It reads forward in
// pages until limit messages are collected; more reports that the log continues past them.
func (s *DBService) ListSince(ctx context.Context, actorID, conversationID string, since time.Time, limit int) ([]Message, bool, error) {
	access, err := s.access.Access(ctx, actorID, conversationID)
	if err != nil {
		return nil, false, err
	}
	if limit <= 0 || limit > MaxReplay {
		limit = MaxReplay
	}
	convID, _ := db.ParseUUID(access.Conversation.ID)
	cursor := sqlc.ListMessagesAfterParams{ConversationID: convID, CreatedAt: db.Timestamptz(since)}
	var out []Message
	for len(out) < limit {
		// One extra row tells a full final page from the end of the log.
		want := min(limit-len(out), MaxPageLimit)
		cursor.MaxCount = int32(want + 1)
		rows, err := s.queries.ListMessagesAfter(ctx, cursor)
		if err != nil {
			return nil, false, fmt.Errorf("list messages after: %w", err)
		}
		more := len(rows) > want
		if more {
			rows = rows[:want]
		}
		page := make([]Message, len(rows))
		for i, row := range rows {
			page[i] = toMessage(row)
		}
		s.enrich(ctx, page)
		out = append(out, page...)
		if !more {
			return out, false, nil
		}
		last := rows[len(rows)-1]
		cursor.CreatedAt, cursor.ID = last.CreatedAt, last.ID
	}
	return out, true, nil
}

// MarkRead records receipts for every message up to and including upToMessageID.
func (s *DBService) MarkRead(ctx context.Context, actorID, conversationID, upToMessageID string) (ReadEvent, error) {
	access, err := s.access.Access(ctx, actorID, conversationID)
	if err != nil {
		return ReadEvent{}, err
	}
	if !access.Capabilities.IsParticipant {
		return ReadEvent{}, ErrNotParticipant
	}
	target, err := s.getMessage(ctx, upToMessageID)
	if err != nil {
		return ReadEvent{}, err
	}
	convID, _ := db.ParseUUID(access.Conversation.ID)
	if target.ConversationID.Bytes != convID.Bytes {
		return ReadEvent{}, ErrMessageNotFound
	}
	userID, _ := db.ParseUUID(access.User.ID)
	marked, err := s.queries.MarkMessagesReadUpTo(ctx, sqlc.MarkMessagesReadUpToParams{
		UserID:         userID,
		ConversationID: convID,
		UpTo:           target.CreatedAt,
	})
	if err != nil {
		return ReadEvent{}, fmt.Errorf("mark read: %w", err)
	}
	if err := s.queries.UpdateParticipantLastRead(ctx, sqlc.UpdateParticipantLastReadParams{
		ConversationID: convID,
		UserID:         userID,
		LastReadAt:     target.CreatedAt,
	}); err != nil {
		return ReadEvent{}, fmt.Errorf("update last read: %w", err)
	}
	ev := ReadEvent{
		ConversationID: access.Conversation.ID,
		UserID:         access.User.ID,
		UpToMessageID:  db.UUIDToString(target.ID),
		ReadAt:         s.now().UTC(),
		Marked:         marked,
	}
	s.publish(event.TypeMessageRead, ev.ConversationID, ev.UserID, ev)
	return ev, nil
}

func (s *DBService) UnreadCount(ctx context.Context, userID, conversationID string) (int64, error) {
	access, err := s.access.Access(ctx, userID, conversationID)
	if err != nil {
		return 0, err
	}
	if !access.Capabilities.IsParticipant {
		return 0, nil
	}
	convID, _ := db.ParseUUID(access.Conversation.ID)
	uid, _ := db.ParseUUID(access.User.ID)
	n, err := s.queries.CountUnreadMessages(ctx, sqlc.CountUnreadMessagesParams{ConversationID: convID, UserID: uid})
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *DBService) publish(t event.Type, conversationID, userID string, data any) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(event.New(t, conversationID, userID, data))
}

// enrich batch-loads attachments, receipts and sender names. Deleted messages are
// stripped afterwards.
func (s *DBService) enrich(ctx context.Context, msgs []Message) {
	if len(msgs) == 0 {
		return
	}
	ids := make([]pgtype.UUID, 0, len(msgs))
	senders := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if pgID, err := db.ParseUUID(m.ID); err == nil {
			ids = append(ids, pgID)
		}
		senders = append(senders, m.SenderID)
	}

	attachments := map[string][]Attachment{}
	if rows, err := s.queries.ListMessageAttachmentsBatch(ctx, ids); err != nil {
		s.logger.Warn("enrich attachments failed", slog.Any("error", err))
	} else {
		for _, row := range rows {
			key := db.UUIDToString(row.MessageID)
			attachments[key] = append(attachments[key], toAttachment(row))
		}
	}
	reads := map[string][]ReadReceipt{}
	if rows, err := s.queries.ListMessageReadsBatch(ctx, ids); err != nil {
		s.logger.Warn("enrich receipts failed", slog.Any("error", err))
	} else {
		for _, row := range rows {
			key := db.UUIDToString(row.MessageID)
			reads[key] = append(reads[key], ReadReceipt{UserID: db.UUIDToString(row.UserID), ReadAt: db.TimeFromPg(row.ReadAt)})
		}
	}
	var names map[string]accounts.User
	if s.users != nil {
		var err error
		if names, err = s.users.GetMany(ctx, senders); err != nil {
			s.logger.Warn("enrich senders failed", slog.Any("error", err))
		}
	}

	for i := range msgs {
		m := &msgs[i]
		if u, ok := names[m.SenderID]; ok {
			m.SenderDisplayName = u.DisplayName
		}
		m.ReadBy = reads[m.ID]
		if m.Deleted {
			continue
		}
		m.Attachments = attachments[m.ID]
	}
}

func toMessage(row sqlc.Message) Message {
	m := Message{
		ID:             db.UUIDToString(row.ID),
		ConversationID: db.UUIDToString(row.ConversationID),
		SenderID:       db.UUIDToString(row.SenderID),
		Content:        row.Content,
		ReplyToID:      db.UUIDToString(row.ReplyToID),
		EditedAt:       db.TimePtrFromPg(row.EditedAt),
		DeletedAt:      db.TimePtrFromPg(row.DeletedAt),
		CreatedAt:      db.TimeFromPg(row.CreatedAt),
	}
	if row.DeletedAt.Valid {
		m.Deleted = true
		m.Content = ""
	}
	return m
}

func toAttachment(row sqlc.MessageAttachment) Attachment {
	return Attachment{
		ID:         db.UUIDToString(row.ID),
		FileName:   row.FileName,
		Mime:       row.Mime,
		SizeBytes:  row.SizeBytes,
		StorageKey: row.StorageKey,
		Ordinal:    int(row.Ordinal),
	}
}
