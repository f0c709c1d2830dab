// Package web provides HTTP request and response types for the pipeline API.
package web

import (
	"time"

	"github.com/clinicflow/clinicflow/pkg/models"
)

// CreateWorkflowRequest represents the request body for starting a customer
// journey.
type CreateWorkflowRequest struct {
	ClinicID        string         `json:"clinic_id"         validate:"required"`
	CustomerID      string         `json:"customer_id"       validate:"required"`
	CustomerName    string         `json:"customer_name"     validate:"required"`
	CustomerEmail   string         `json:"customer_email"    validate:"omitempty,email"`
	CustomerPhone   string         `json:"customer_phone"`
	AssignedSalesID string         `json:"assigned_sales_id" validate:"required"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// ExecuteTransitionRequest represents the request body for applying an action
// to a workflow. The destination stage is derived from the action, never
// supplied by the caller.
type ExecuteTransitionRequest struct {
	Action     models.ActionType `json:"action"      validate:"required"`
	ActionData map[string]any    `json:"action_data,omitempty"`
	Notes      string            `json:"notes,omitempty"`
}

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	WorkflowID   string              `json:"workflow_id"   validate:"required"`
	AssignedTo   string              `json:"assigned_to"`
	TaskType     models.TaskType     `json:"task_type"     validate:"required"`
	CustomerName string              `json:"customer_name" validate:"required"`
	Priority     models.TaskPriority `json:"priority,omitempty"`
	DueDate      *time.Time          `json:"due_date,omitempty"`
	TaskData     map[string]any      `json:"task_data,omitempty"`
	Notes        string              `json:"notes,omitempty"`
}

// UpdateTaskStatusRequest represents the request body for moving a task along
// the status graph.
type UpdateTaskStatusRequest struct {
	Status models.TaskStatus `json:"status" validate:"required"`
	Notes  string            `json:"notes,omitempty"`
}

// BroadcastEventRequest represents the request body for recording and
// delivering an ad-hoc event.
type BroadcastEventRequest struct {
	EventType   string         `json:"event_type"   validate:"required"`
	TargetUsers []string       `json:"target_users" validate:"required,min=1"`
	Data        map[string]any `json:"data,omitempty"`
}

// DashboardSummary aggregates a clinic's pipeline position for the calling
// staff member.
type DashboardSummary struct {
	ClinicID          string         `json:"clinic_id"`
	TotalWorkflows    int            `json:"total_workflows"`
	ActiveWorkflows   int            `json:"active_workflows"`
	CompletedToday    int            `json:"completed_today"`
	StageDistribution map[string]int `json:"stage_distribution"`
	PendingTasks      int            `json:"pending_tasks"`
	TasksByPriority   map[string]int `json:"tasks_by_priority"`
}
