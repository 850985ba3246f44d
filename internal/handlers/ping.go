package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tellerdesk/tellerdesk/internal/healthcheck"
)

const healthTimeout = 3 * time.Second

type PingHandler struct {
	logger   *slog.Logger
	checkers []healthcheck.Checker
}

func NewPingHandler(log *slog.Logger, checkers ...healthcheck.Checker) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{logger: log.With(slog.String("handler", "ping")), checkers: checkers}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
}

func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Health runs every dependency probe and answers 503 when one of them fails.
func (h *PingHandler) Health(c echo.Context) error {
	report := healthcheck.Run(c.Request().Context(), healthTimeout, h.checkers...)
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, report)
}

func (h *PingHandler) HealthHead(c echo.Context) error {
	report := healthcheck.Run(c.Request().Context(), healthTimeout, h.checkers...)
	if !report.Healthy() {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusOK)
}
