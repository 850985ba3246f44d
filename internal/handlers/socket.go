package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SocketHandler mounts the socket gateway, which authenticates the upgrade itself.
type SocketHandler struct {
	gateway http.Handler
}

func NewSocketHandler(gateway http.Handler) *SocketHandler {
	return &SocketHandler{gateway: gateway}
}

func (h *SocketHandler) Register(e *echo.Echo) {
	e.GET("/ws", echo.WrapHandler(h.gateway))
}
