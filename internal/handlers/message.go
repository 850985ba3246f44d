package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tellerdesk/tellerdesk/internal/conversation"
	messagepkg "github.com/tellerdesk/tellerdesk/internal/message"
	messageevent "github.com/tellerdesk/tellerdesk/internal/message/event"
)

const (
	sseHeartbeat = 20 * time.Second
	sseBuffer    = 128
)

// MessageHandler serves the conversation message log and its SSE event stream.
type MessageHandler struct {
	messages      messagepkg.Store
	conversations conversation.Accessor
	events        messageevent.Subscriber
	heartbeat     time.Duration
	logger        *slog.Logger
}

func NewMessageHandler(log *slog.Logger, messages messagepkg.Store, conversations conversation.Accessor, events messageevent.Subscriber) *MessageHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MessageHandler{
		messages:      messages,
		conversations: conversations,
		events:        events,
		heartbeat:     sseHeartbeat,
		logger:        log.With(slog.String("handler", "messages")),
	}
}

func (h *MessageHandler) Register(e *echo.Echo) {
	group := e.Group("/conversations/:id")
	group.GET("/messages", h.ListMessages)
	group.POST("/messages", h.SendMessage)
	group.PUT("/messages/:message_id", h.EditMessage)
	group.DELETE("/messages/:message_id", h.DeleteMessage)
	group.DELETE("/messages/:message_id/purge", h.PurgeMessage)
	group.POST("/read", h.MarkRead)
	group.GET("/events", h.StreamEvents)
}

// ListMessages godoc
// @Summary List one page of messages, oldest first
// @Tags messages
// @Param before query string false "RFC3339 timestamp; returns messages created before it"
// @Param limit query int false "Page size (default 30, max 100)"
// @Success 200 {object} message.ListMessagesResponse
// @Failure 403 {object} ErrorResponse
// @Router /conversations/{id}/messages [get]
func (h *MessageHandler) ListMessages(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	convID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	before, _, err := parseTimeParam(c.QueryParam("before"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	limit := 0
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
	}
	items, err := h.messages.List(c.Request().Context(), userID, convID, before, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, messagepkg.ListMessagesResponse{Items: items})
}

func (h *MessageHandler) SendMessage(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	convID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req messagepkg.SendInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	req.ConversationID = convID
	msg, err := h.messages.Send(c.Request().Context(), userID, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) EditMessage(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	messageID, err := pathID(c, "message_id")
	if err != nil {
		return err
	}
	var req messagepkg.EditRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	msg, err := h.messages.Edit(c.Request().Context(), userID, messageID, req.Content)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	messageID, err := pathID(c, "message_id")
	if err != nil {
		return err
	}
	if err := h.messages.Delete(c.Request().Context(), userID, messageID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *MessageHandler) PurgeMessage(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	messageID, err := pathID(c, "message_id")
	if err != nil {
		return err
	}
	if err := h.messages.Purge(c.Request().Context(), userID, messageID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *MessageHandler) MarkRead(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	convID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req messagepkg.MarkReadRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	read, err := h.messages.MarkRead(c.Request().Context(), userID, convID, req.UpToMessageID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, read)
}

type sseEvent struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	At             time.Time       `json:"at"`
}

// StreamEvents is the SSE fallback for clients that cannot hold a socket. With ?since it
// first replays messages created after that instant.
func (h *MessageHandler) StreamEvents(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	convID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	access, err := h.conversations.Access(ctx, userID, convID)
	if err != nil {
		return httpError(err)
	}
	if !access.Capabilities.CanRead {
		return httpError(conversation.ErrPermissionDenied)
	}
	convID = access.Conversation.ID
	if h.events == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "message events not configured")
	}
	since, hasSince, err := parseTimeParam(c.QueryParam("since"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// Subscribe before the backlog read so nothing falls between the two.
	_, stream, cancel := h.events.Subscribe(convID, sseBuffer)
	defer cancel()

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}
	writer := bufio.NewWriter(c.Response().Writer)

	sentMessageIDs := map[string]struct{}{}
	writeCreated := func(msg messagepkg.Message) error {
		if _, exists := sentMessageIDs[msg.ID]; exists {
			return nil
		}
		sentMessageIDs[msg.ID] = struct{}{}
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return writeSSEJSON(writer, flusher, sseEvent{
			Type:           string(messageevent.TypeMessageCreated),
			ConversationID: convID,
			UserID:         msg.SenderID,
			Data:           data,
			At:             msg.CreatedAt,
		})
	}

	if err := writeSSEJSON(writer, flusher, map[string]any{"type": "ready", "capabilities": access.Capabilities}); err != nil {
		return nil
	}
	if hasSince {
		backlog, more, err := h.messages.ListSince(ctx, userID, convID, since, messagepkg.MaxReplay)
		if err != nil {
			h.logger.Warn("load sse backlog failed", slog.String("conversation_id", convID), slog.Any("error", err))
		}
		for _, msg := range backlog {
			if err := writeCreated(msg); err != nil {
				return nil
			}
		}
		if more {
			// The client should page the rest through ListMessages.
			if err := writeSSEJSON(writer, flusher, map[string]any{"type": "backlog_truncated", "replayed": len(backlog)}); err != nil {
				return nil
			}
		}
	}

	heartbeatTicker := time.NewTicker(h.heartbeat)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeatTicker.C:
			if err := writeSSEJSON(writer, flusher, map[string]any{"type": "ping"}); err != nil {
				return nil
			}
		case ev, ok := <-stream:
			if !ok {
				return nil
			}
			if ev.Type == messageevent.TypeTyping && ev.UserID == userID {
				continue
			}
			if ev.Type == messageevent.TypeMessageCreated {
				var msg messagepkg.Message
				if err := json.Unmarshal(ev.Data, &msg); err != nil {
					h.logger.Warn("decode message event failed", slog.Any("error", err))
					continue
				}
				if err := writeCreated(msg); err != nil {
					return nil
				}
				continue
			}
			if err := writeSSEJSON(writer, flusher, sseEvent{
				Type:           string(ev.Type),
				ConversationID: ev.ConversationID,
				UserID:         ev.UserID,
				Data:           ev.Data,
				At:             ev.At,
			}); err != nil {
				return nil
			}
			if ev.Type == messageevent.TypeParticipantRemoved && ev.UserID == userID {
				still, err := h.conversations.Access(ctx, userID, convID)
				if err != nil || !still.Capabilities.CanRead {
					return nil
				}
			}
		}
	}
}

func parseTimeParam(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid timestamp %q: use RFC3339", raw)
	}
	return t.UTC(), true, nil
}

func writeSSEData(writer *bufio.Writer, flusher http.Flusher, payload string) error {
	if _, err := writer.WriteString(fmt.Sprintf("data: %s\n\n", payload)); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeSSEJSON(writer *bufio.Writer, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return writeSSEData(writer, flusher, string(data))
}
