package tickets

import "time"

const (
	StatusOpen            = "open"
	StatusInProgress      = "in_progress"
	StatusPendingCustomer = "pending_customer"
	StatusResolved        = "resolved"
	StatusClosed          = "closed"

	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var validStatuses = map[string]struct{}{
	StatusOpen: {}, StatusInProgress: {}, StatusPendingCustomer: {}, StatusResolved: {}, StatusClosed: {},
}

var validPriorities = map[string]struct{}{
	PriorityLow: {}, PriorityNormal: {}, PriorityHigh: {}, PriorityUrgent: {},
}

// IsTerminal reports whether conversations tied to a ticket in this status become read-only.
func IsTerminal(status string) bool {
	return status == StatusResolved || status == StatusClosed
}

type Ticket struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"created_by"`
	AssignedTo  string    `json:"assigned_to,omitempty"`
	TeamID      string    `json:"team_id,omitempty"`
	BranchID    string    `json:"branch_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateTicketRequest struct {
	Subject     string `json:"subject" validate:"required,max=200"`
	Description string `json:"description" validate:"max=10000"`
	Priority    string `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
	TeamID      string `json:"team_id,omitempty" validate:"omitempty,uuid"`
	BranchID    string `json:"branch_id,omitempty" validate:"omitempty,uuid"`
}

type AssignRequest struct {
	AssigneeID string `json:"assignee_id" validate:"omitempty,uuid"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type ListTicketsResponse struct {
	Items []Ticket `json:"items"`
}
