package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
	"github.com/tellerdesk/tellerdesk/internal/auth"
)

type AuthHandler struct {
	accounts  *accounts.Service
	secret    string
	expiresIn time.Duration
	logger    *slog.Logger
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresAt   time.Time     `json:"expires_at"`
	User        accounts.User `json:"user"`
}

func NewAuthHandler(log *slog.Logger, accountService *accounts.Service, secret string, expiresIn time.Duration) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		accounts:  accountService,
		secret:    secret,
		expiresIn: expiresIn,
		logger:    log.With(slog.String("handler", "auth")),
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/login", h.Login)
	e.POST("/auth/refresh", h.Refresh)
}

// Login godoc
// @Summary Exchange email and password for a bearer token
// @Tags auth
// @Param payload body LoginRequest true "Credentials"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.accounts.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}
	token, expiresAt, err := auth.GenerateToken(user.ID, user.Role, h.secret, h.expiresIn)
	if err != nil {
		return httpError(err)
	}
	h.logger.Info("user logged in", slog.String("user_id", user.ID))
	return c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt, User: user})
}

// Refresh re-issues the caller's token, provided the account is still active.
func (h *AuthHandler) Refresh(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	user, err := h.accounts.Get(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	if !user.IsActive {
		return httpError(accounts.ErrUserInactive)
	}
	token, expiresAt, err := auth.RefreshTokenFromContext(c, h.secret, h.expiresIn)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt, User: user})
}
