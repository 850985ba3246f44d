package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tellerdesk/tellerdesk/internal/presence"
)

const maxPresenceIDs = 200

// PresenceService is the part of the tracker the HTTP API needs.
type PresenceService interface {
	GetMany(ctx context.Context, userIDs []string) ([]presence.Presence, error)
	SetStatus(ctx context.Context, userID, status string) (presence.Presence, error)
}

type PresenceHandler struct {
	service PresenceService
	logger  *slog.Logger
}

type SetPresenceRequest struct {
	Status string `json:"status" validate:"required"`
}

type ListPresenceResponse struct {
	Items []presence.Presence `json:"items"`
}

func NewPresenceHandler(log *slog.Logger, service PresenceService) *PresenceHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PresenceHandler{service: service, logger: log.With(slog.String("handler", "presence"))}
}

func (h *PresenceHandler) Register(e *echo.Echo) {
	e.GET("/presence", h.List)
	e.PUT("/presence", h.Set)
}

// List accepts ids as a comma separated list, repeated parameters, or both.
func (h *PresenceHandler) List(c echo.Context) error {
	if _, err := requireUserID(c); err != nil {
		return err
	}
	var ids []string
	for _, raw := range c.QueryParams()["ids"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "ids is required")
	}
	if len(ids) > maxPresenceIDs {
		return echo.NewHTTPError(http.StatusBadRequest, "too many ids")
	}
	items, err := h.service.GetMany(c.Request().Context(), ids)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ListPresenceResponse{Items: items})
}

func (h *PresenceHandler) Set(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req SetPresenceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := h.service.SetStatus(c.Request().Context(), userID, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}
