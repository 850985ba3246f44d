package accounts

import "time"

const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleAgent    = "agent"
	RoleCustomer = "customer"
)

// IsStaff reports whether role belongs to bank staff.
func IsStaff(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleAgent:
		return true
	}
	return false
}

func validRole(role string) bool {
	return IsStaff(role) || role == RoleCustomer
}

// User is the public view of an account. The password hash never leaves the package.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	BranchID    string    `json:"branch_id,omitempty"`
	TeamID      string    `json:"team_id,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (u User) IsStaff() bool { return IsStaff(u.Role) }
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type Branch struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Team struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"required,max=120"`
	Role        string `json:"role" validate:"required,oneof=admin manager agent customer"`
	BranchID    string `json:"branch_id,omitempty" validate:"omitempty,uuid"`
	TeamID      string `json:"team_id,omitempty" validate:"omitempty,uuid"`
}

type CreateBranchRequest struct {
	Code string `json:"code" validate:"required,max=32"`
	Name string `json:"name" validate:"required,max=120"`
}

type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

type ListUsersResponse struct {
	Items []User `json:"items"`
}

type ListBranchesResponse struct {
	Items []Branch `json:"items"`
}

type ListTeamsResponse struct {
	Items []Team `json:"items"`
}
