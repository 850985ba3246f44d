// Package accounts manages users, branches and teams.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"github.com/tellerdesk/tellerdesk/internal/config"
	"github.com/tellerdesk/tellerdesk/internal/db"
	"github.com/tellerdesk/tellerdesk/internal/db/sqlc"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrBranchNotFound     = errors.New("branch not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrDuplicateName      = errors.New("name already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user is inactive")
	ErrInvalidRole        = errors.New("invalid role")
	ErrTeamBranchMismatch = errors.New("team does not belong to branch")
)

const minPasswordLen = 8

// Service provides account and organisation management.
type Service struct {
	queries  sqlc.Querier
	logger   *slog.Logger
	hashCost int
}

func NewService(log *slog.Logger, queries sqlc.Querier) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries:  queries,
		logger:   log.With(slog.String("service", "accounts")),
		hashCost: bcrypt.DefaultCost,
	}
}

// Create registers a user. A team without a branch inherits the team's branch.
func (s *Service) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("valid email is required")
	}
	if len(req.Password) < minPasswordLen {
		return User{}, fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if !validRole(role) {
		return User{}, ErrInvalidRole
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	branchID, teamID, err := s.resolveOrg(ctx, req.BranchID, req.TeamID)
	if err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	row, err := s.queries.CreateUser(ctx, sqlc.CreateUserParams{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Role:         role,
		BranchID:     branchID,
		TeamID:       teamID,
		IsActive:     true,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user created", slog.String("user_id", db.UUIDToString(row.ID)), slog.String("role", role))
	return toUser(row), nil
}

func (s *Service) resolveOrg(ctx context.Context, rawBranch, rawTeam string) (pgtype.UUID, pgtype.UUID, error) {
	branchID, err := db.ParseOptionalUUID(rawBranch)
	if err != nil {
		return pgtype.UUID{}, pgtype.UUID{}, err
	}
	teamID, err := db.ParseOptionalUUID(rawTeam)
	if err != nil {
		return pgtype.UUID{}, pgtype.UUID{}, err
	}
	if branchID.Valid {
		if _, err := s.queries.GetBranchByID(ctx, branchID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return pgtype.UUID{}, pgtype.UUID{}, ErrBranchNotFound
			}
			return pgtype.UUID{}, pgtype.UUID{}, err
		}
	}
	if teamID.Valid {
		team, err := s.queries.GetTeamByID(ctx, teamID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return pgtype.UUID{}, pgtype.UUID{}, ErrTeamNotFound
			}
			return pgtype.UUID{}, pgtype.UUID{}, err
		}
		if !branchID.Valid {
			branchID = team.BranchID
		} else if team.BranchID.Bytes != branchID.Bytes {
			return pgtype.UUID{}, pgtype.UUID{}, ErrTeamBranchMismatch
		}
	}
	return branchID, teamID, nil
}

func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	id, err := db.ParseUUID(userID)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	row, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return toUser(row), nil
}

// GetMany returns the users that exist among ids, keyed by id. Unparseable ids are skipped.
func (s *Service) GetMany(ctx context.Context, userIDs []string) (map[string]User, error) {
	out := make(map[string]User, len(userIDs))
	ids := make([]pgtype.UUID, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, raw := range userIDs {
		id, err := db.ParseUUID(raw)
		if err != nil {
			continue
		}
		key := db.UUIDToString(id)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.queries.ListUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list users by ids: %w", err)
	}
	for _, row := range rows {
		u := toUser(row)
		out[u.ID] = u
	}
	return out, nil
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	rows, err := s.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	items := make([]User, 0, len(rows))
	for _, row := range rows {
		items = append(items, toUser(row))
	}
	return items, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords are indistinguishable.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	row, err := s.queries.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !row.IsActive {
		return User{}, ErrUserInactive
	}
	return toUser(row), nil
}

func (s *Service) SetActive(ctx context.Context, userID string, active bool) (User, error) {
	id, err := db.ParseUUID(userID)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	row, err := s.queries.SetUserActive(ctx, sqlc.SetUserActiveParams{ID: id, IsActive: active})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("set user active: %w", err)
	}
	s.logger.Info("user activation changed", slog.String("user_id", userID), slog.Bool("active", active))
	return toUser(row), nil
}

// EnsureAdmin creates the bootstrap admin from config when the email is not yet registered.
// It reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) (User, bool, error) {
	email := normalizeEmail(cfg.Email)
	if email == "" || cfg.Password == "" {
		return User{}, false, fmt.Errorf("admin email and password are required")
	}
	existing, err := s.queries.GetUserByEmail(ctx, email)
	if err == nil {
		return toUser(existing), false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return User{}, false, fmt.Errorf("lookup admin: %w", err)
	}
	user, err := s.Create(ctx, CreateUserRequest{
		Email:       email,
		Password:    cfg.Password,
		DisplayName: cfg.DisplayName,
		Role:        RoleAdmin,
	})
	if err != nil {
		return User{}, false, err
	}
	return user, true, nil
}

func (s *Service) CreateBranch(ctx context.Context, req CreateBranchRequest) (Branch, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return Branch{}, fmt.Errorf("branch code and name are required")
	}
	row, err := s.queries.CreateBranch(ctx, sqlc.CreateBranchParams{Code: code, Name: name})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Branch{}, ErrDuplicateName
		}
		return Branch{}, fmt.Errorf("create branch: %w", err)
	}
	return toBranch(row), nil
}

func (s *Service) GetBranch(ctx context.Context, branchID string) (Branch, error) {
	id, err := db.ParseUUID(branchID)
	if err != nil {
		return Branch{}, ErrBranchNotFound
	}
	row, err := s.queries.GetBranchByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Branch{}, ErrBranchNotFound
		}
		return Branch{}, fmt.Errorf("get branch: %w", err)
	}
	return toBranch(row), nil
}

func (s *Service) ListBranches(ctx context.Context) ([]Branch, error) {
	rows, err := s.queries.ListBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	items := make([]Branch, 0, len(rows))
	for _, row := range rows {
		items = append(items, toBranch(row))
	}
	return items, nil
}

func (s *Service) CreateTeam(ctx context.Context, branchID string, req CreateTeamRequest) (Team, error) {
	branch, err := s.GetBranch(ctx, branchID)
	if err != nil {
		return Team{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Team{}, fmt.Errorf("team name is required")
	}
	bid, _ := db.ParseUUID(branch.ID)
	row, err := s.queries.CreateTeam(ctx, sqlc.CreateTeamParams{BranchID: bid, Name: name})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Team{}, ErrDuplicateName
		}
		return Team{}, fmt.Errorf("create team: %w", err)
	}
	return toTeam(row), nil
}

func (s *Service) ListTeams(ctx context.Context, branchID string) ([]Team, error) {
	branch, err := s.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	bid, _ := db.ParseUUID(branch.ID)
	rows, err := s.queries.ListTeamsByBranch(ctx, bid)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	items := make([]Team, 0, len(rows))
	for _, row := range rows {
		items = append(items, toTeam(row))
	}
	return items, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUser(row sqlc.User) User {
	return User{
		ID:          db.UUIDToString(row.ID),
		Email:       row.Email,
		DisplayName: row.DisplayName,
		Role:        row.Role,
		BranchID:    db.UUIDToString(row.BranchID),
		TeamID:      db.UUIDToString(row.TeamID),
		IsActive:    row.IsActive,
		CreatedAt:   db.TimeFromPg(row.CreatedAt),
		UpdatedAt:   db.TimeFromPg(row.UpdatedAt),
	}
}

func toBranch(row sqlc.Branch) Branch {
	return Branch{
		ID:        db.UUIDToString(row.ID),
		Code:      row.Code,
		Name:      row.Name,
		CreatedAt: db.TimeFromPg(row.CreatedAt),
	}
}

func toTeam(row sqlc.Team) Team {
	return Team{
		ID:        db.UUIDToString(row.ID),
		BranchID:  db.UUIDToString(row.BranchID),
		Name:      row.Name,
		CreatedAt: db.TimeFromPg(row.CreatedAt),
	}
}
