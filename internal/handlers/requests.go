package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tellerdesk/tellerdesk/internal/conversation"
	"github.com/tellerdesk/tellerdesk/internal/requests"
)

type RequestsHandler struct {
	service       *requests.Service
	conversations *conversation.Service
	logger        *slog.Logger
}

func NewRequestsHandler(log *slog.Logger, service *requests.Service, conversations *conversation.Service) *RequestsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RequestsHandler{
		service:       service,
		conversations: conversations,
		logger:        log.With(slog.String("handler", "requests")),
	}
}

func (h *RequestsHandler) Register(e *echo.Echo) {
	group := e.Group("/requests")
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.PUT("/:id/assignee", h.Assign)
	group.PUT("/:id/status", h.UpdateStatus)
	group.POST("/:id/conversation", h.OpenConversation)
}

func (h *RequestsHandler) Create(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req requests.CreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	item, err := h.service.Create(c.Request().Context(), userID, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *RequestsHandler) List(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, requests.ListRequestsResponse{Items: items})
}

func (h *RequestsHandler) Get(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	requestID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	item, err := h.service.Get(c.Request().Context(), userID, requestID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *RequestsHandler) Assign(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	requestID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req requests.AssignRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	item, err := h.service.Assign(c.Request().Context(), userID, requestID, req.AssigneeID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *RequestsHandler) UpdateStatus(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	requestID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req requests.UpdateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	item, err := h.service.UpdateStatus(c.Request().Context(), userID, requestID, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// OpenConversation returns the request's conversation, creating it on first use.
func (h *RequestsHandler) OpenConversation(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	requestID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	conv, err := h.conversations.GetOrCreateForRequest(c.Request().Context(), userID, requestID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conv)
}
