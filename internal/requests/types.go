package requests

import "time"

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCompleted = "completed"
)

var validStatuses = map[string]struct{}{
	StatusPending: {}, StatusApproved: {}, StatusRejected: {}, StatusCompleted: {},
}

// IsTerminal reports whether conversations tied to a request in this status become read-only.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusRejected
}

// Request is a customer service request such as a card replacement or a limit change.
type Request struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Summary    string    `json:"summary"`
	Status     string    `json:"status"`
	CreatedBy  string    `json:"created_by"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	BranchID   string    `json:"branch_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CreateRequest struct {
	Kind     string `json:"kind" validate:"required,max=64"`
	Summary  string `json:"summary" validate:"required,max=2000"`
	BranchID string `json:"branch_id,omitempty" validate:"omitempty,uuid"`
}

type AssignRequest struct {
	AssigneeID string `json:"assignee_id" validate:"omitempty,uuid"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type ListRequestsResponse struct {
	Items []Request `json:"items"`
}
