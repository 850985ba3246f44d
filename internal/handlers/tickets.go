package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tellerdesk/tellerdesk/internal/conversation"
	"github.com/tellerdesk/tellerdesk/internal/tickets"
)

type TicketsHandler struct {
	service       *tickets.Service
	conversations *conversation.Service
	logger        *slog.Logger
}

func NewTicketsHandler(log *slog.Logger, service *tickets.Service, conversations *conversation.Service) *TicketsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TicketsHandler{
		service:       service,
		conversations: conversations,
		logger:        log.With(slog.String("handler", "tickets")),
	}
}

func (h *TicketsHandler) Register(e *echo.Echo) {
	group := e.Group("/tickets")
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.PUT("/:id/assignee", h.Assign)
	group.PUT("/:id/status", h.UpdateStatus)
	group.POST("/:id/conversation", h.OpenConversation)
}

// Create godoc
// @Summary Open a support ticket
// @Tags tickets
// @Param payload body tickets.CreateTicketRequest true "Ticket"
// @Success 201 {object} tickets.Ticket
// @Failure 400 {object} ErrorResponse
// @Router /tickets [post]
func (h *TicketsHandler) Create(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req tickets.CreateTicketRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Create(c.Request().Context(), userID, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, ticket)
}

func (h *TicketsHandler) List(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tickets.ListTicketsResponse{Items: items})
}

func (h *TicketsHandler) Get(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.Request().Context(), userID, ticketID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ticket)
}

// Assign sets or clears the assignee. An empty assignee_id unassigns.
func (h *TicketsHandler) Assign(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req tickets.AssignRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Assign(c.Request().Context(), userID, ticketID, req.AssigneeID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ticket)
}

func (h *TicketsHandler) UpdateStatus(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req tickets.UpdateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateStatus(c.Request().Context(), userID, ticketID, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ticket)
}

// OpenConversation returns the ticket's conversation, creating it on first use.
func (h *TicketsHandler) OpenConversation(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	conv, err := h.conversations.GetOrCreateForTicket(c.Request().Context(), userID, ticketID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conv)
}
