package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
)

// UsersHandler serves accounts, branches and teams.
type UsersHandler struct {
	service *accounts.Service
	logger  *slog.Logger
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func NewUsersHandler(log *slog.Logger, service *accounts.Service) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{
		service: service,
		logger:  log.With(slog.String("handler", "users")),
	}
}

func (h *UsersHandler) Register(e *echo.Echo) {
	userGroup := e.Group("/users")
	userGroup.GET("/me", h.GetMe)
	userGroup.GET("", h.ListUsers)
	userGroup.POST("", h.CreateUser)
	userGroup.PUT("/:id/active", h.SetActive)

	branchGroup := e.Group("/branches")
	branchGroup.GET("", h.ListBranches)
	branchGroup.POST("", h.CreateBranch)
	branchGroup.GET("/:id/teams", h.ListTeams)
	branchGroup.POST("/:id/teams", h.CreateTeam)
}

// actor loads the caller and rejects deactivated accounts whose token is still valid.
func (h *UsersHandler) actor(c echo.Context) (accounts.User, error) {
	userID, err := requireUserID(c)
	if err != nil {
		return accounts.User{}, err
	}
	return loadActor(c.Request().Context(), h.service, userID)
}

func loadActor(ctx context.Context, service *accounts.Service, userID string) (accounts.User, error) {
	user, err := service.Get(ctx, userID)
	if err != nil {
		return accounts.User{}, httpError(err)
	}
	if !user.IsActive {
		return accounts.User{}, httpError(accounts.ErrUserInactive)
	}
	return user, nil
}

// GetMe godoc
// @Summary Get current user
// @Tags users
// @Success 200 {object} accounts.User
// @Router /users/me [get]
func (h *UsersHandler) GetMe(c echo.Context) error {
	user, err := h.actor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// ListUsers is the staff directory used to pick participants and assignees.
func (h *UsersHandler) ListUsers(c echo.Context) error {
	user, err := h.actor(c)
	if err != nil {
		return err
	}
	if !user.IsStaff() {
		return httpError(errForbidden)
	}
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, accounts.ListUsersResponse{Items: items})
}

func (h *UsersHandler) CreateUser(c echo.Context) error {
	user, err := h.actor(c)
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return httpError(errForbidden)
	}
	var req accounts.CreateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	created, err := h.service.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *UsersHandler) SetActive(c echo.Context) error {
	user, err := h.actor(c)
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return httpError(errForbidden)
	}
	targetID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req SetActiveRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if targetID == user.ID && !*req.Active {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot deactivate yourself")
	}
	updated, err := h.service.SetActive(c.Request().Context(), targetID, *req.Active)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *UsersHandler) ListBranches(c echo.Context) error {
	if _, err := h.actor(c); err != nil {
		return err
	}
	items, err := h.service.ListBranches(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, accounts.ListBranchesResponse{Items: items})
}

func (h *UsersHandler) CreateBranch(c echo.Context) error {
	user, err := h.actor(c)
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return httpError(errForbidden)
	}
	var req accounts.CreateBranchRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	branch, err := h.service.CreateBranch(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, branch)
}

func (h *UsersHandler) ListTeams(c echo.Context) error {
	if _, err := h.actor(c); err != nil {
		return err
	}
	branchID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.service.ListTeams(c.Request().Context(), branchID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, accounts.ListTeamsResponse{Items: items})
}

// CreateTeam is open to admins and to managers of the branch.
func (h *UsersHandler) CreateTeam(c echo.Context) error {
	user, err := h.actor(c)
	if err != nil {
		return err
	}
	branchID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	branch, err := h.service.GetBranch(c.Request().Context(), branchID)
	if err != nil {
		return httpError(err)
	}
	if !user.IsAdmin() && (user.Role != accounts.RoleManager || user.BranchID != branch.ID) {
		return httpError(errForbidden)
	}
	var req accounts.CreateTeamRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	team, err := h.service.CreateTeam(c.Request().Context(), branch.ID, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, team)
}
