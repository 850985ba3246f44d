package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tellerdesk/tellerdesk/internal/notification"
)

type NotificationsHandler struct {
	service *notification.Service
	logger  *slog.Logger
}

func NewNotificationsHandler(log *slog.Logger, service *notification.Service) *NotificationsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &NotificationsHandler{service: service, logger: log.With(slog.String("handler", "notifications"))}
}

func (h *NotificationsHandler) Register(e *echo.Echo) {
	group := e.Group("/notifications")
	group.GET("", h.List)
	group.POST("/read-all", h.MarkAllRead)
	group.POST("/:id/read", h.MarkRead)
}

func (h *NotificationsHandler) List(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	limit := 0
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
	}
	ctx := c.Request().Context()
	items, err := h.service.List(ctx, userID, limit)
	if err != nil {
		return httpError(err)
	}
	unread, err := h.service.UnreadCount(ctx, userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, notification.ListResponse{Items: items, Unread: unread})
}

func (h *NotificationsHandler) MarkRead(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	notifID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	item, err := h.service.MarkRead(c.Request().Context(), userID, notifID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *NotificationsHandler) MarkAllRead(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	marked, err := h.service.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, notification.MarkAllResponse{Marked: marked})
}
