package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tellerdesk/tellerdesk/internal/conversation"
)

type ConversationsHandler struct {
	service *conversation.Service
	logger  *slog.Logger
}

func NewConversationsHandler(log *slog.Logger, service *conversation.Service) *ConversationsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationsHandler{
		service: service,
		logger:  log.With(slog.String("handler", "conversations")),
	}
}

func (h *ConversationsHandler) Register(e *echo.Echo) {
	group := e.Group("/conversations")
	group.GET("", h.List)
	group.POST("/group", h.CreateGroup)
	group.POST("/direct", h.OpenDirect)
	group.GET("/:id", h.Get)
	group.GET("/:id/capabilities", h.Capabilities)
	group.GET("/:id/participants", h.ListParticipants)
	group.POST("/:id/participants", h.AddParticipant)
	group.DELETE("/:id/participants/:user_id", h.RemoveParticipant)
	group.POST("/:id/close", h.transition(h.service.Close))
	group.POST("/:id/archive", h.transition(h.service.Archive))
	group.POST("/:id/reopen", h.transition(h.service.Reopen))
}

// List godoc
// @Summary List the caller's conversations, most recent activity first
// @Tags conversations
// @Success 200 {object} conversation.ListConversationsResponse
// @Router /conversations [get]
func (h *ConversationsHandler) List(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conversation.ListConversationsResponse{Items: items})
}

func (h *ConversationsHandler) CreateGroup(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req conversation.CreateGroupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	conv, err := h.service.CreateGroup(c.Request().Context(), userID, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, conv)
}

func (h *ConversationsHandler) OpenDirect(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req conversation.DirectRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	conv, err := h.service.GetOrCreateDirect(c.Request().Context(), userID, req.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

func (h *ConversationsHandler) Get(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	convID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	conv, err := h.service.Get(c.Request().Context(), userID, convID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

func (h *ConversationsHandler) Capabilities(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	convID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	caps, err := h.service.Capabilities(c.Request().Context(), userID, convID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, caps)
}

func (h *ConversationsHandler) ListParticipants(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	convID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.service.ListParticipants(c.Request().Context(), userID, convID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conversation.ListParticipantsResponse{Items: items})
}

func (h *ConversationsHandler) AddParticipant(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	convID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req conversation.AddParticipantRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	participant, err := h.service.AddParticipant(c.Request().Context(), userID, convID, req.UserID, req.Role)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, participant)
}

// RemoveParticipant also serves self-leave when user_id is the caller.
func (h *ConversationsHandler) RemoveParticipant(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	convID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	targetID, err := pathID(c, "user_id")
	if err != nil {
		return err
	}
	if err := h.service.RemoveParticipant(c.Request().Context(), userID, convID, targetID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type transitionFunc func(ctx context.Context, actorID, conversationID string) (conversation.Conversation, error)

func (h *ConversationsHandler) transition(fn transitionFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireUserID(c)
		if err != nil {
			return err
		}
		convID, err := pathID(c, "id")
		if err != nil {
			return err
		}
		conv, err := fn(c.Request().Context(), userID, convID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, conv)
	}
}
