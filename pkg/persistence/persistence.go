// Package persistence provides the state store abstraction for workflows,
// transition logs, tasks, events, and staff lookups.
package persistence

import (
	"context"

	"github.com/clinicflow/clinicflow/pkg/models"
)

// Persistence is the single shared mutable resource of the orchestration
// core. Implementations must provide conditional (compare-and-swap) updates
// rather than in-process locks, so correctness holds across multiple service
// instances sharing one store.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ActionRepository() ActionRepository
	TaskRepository() TaskRepository
	EventRepository() EventRepository
	StaffRepository() StaffRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters a clinic workflow listing. Results are always
// ordered by UpdatedAt descending.
type ListWorkflowsOptions struct {
	Stage      *models.Stage
	AssignedTo string
}

// WorkflowRepository stores workflow state rows. Only the workflow engine
// writes CurrentStage and Version.
type WorkflowRepository interface {
	// Create persists a new workflow. Returns ErrDuplicateActiveWorkflow when
	// the customer already has an active (non-terminal) workflow.
	Create(ctx context.Context, workflow *models.WorkflowState) error

	// GetByID returns ErrWorkflowNotFound when no row exists.
	GetByID(ctx context.Context, id string) (*models.WorkflowState, error)

	ListByClinic(ctx context.Context, clinicID string, opts ListWorkflowsOptions) ([]*models.WorkflowState, error)

	// UpdateStageCAS moves the workflow to stage and bumps Version, but only
	// if the stored version still equals fromVersion. Returns
	// ErrConcurrentModification when another transition committed first, and
	// the updated row on success.
	UpdateStageCAS(ctx context.Context, id string, fromVersion int64, stage models.Stage) (*models.WorkflowState, error)
}

// ActionRepository stores the append-only transition log.
type ActionRepository interface {
	Append(ctx context.Context, action *models.WorkflowAction) error

	// ListByWorkflow returns actions ordered ascending by CreatedAt, ties
	// broken by insertion sequence.
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowAction, error)
}

// ListTasksOptions filters task queries.
type ListTasksOptions struct {
	Statuses   []models.TaskStatus
	Priorities []models.TaskPriority
	Limit      int
}

// TaskRepository stores task rows. Tasks are owned by the task queue manager
// and reference workflows by id only.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error

	// GetByID returns ErrTaskNotFound when no row exists.
	GetByID(ctx context.Context, id string) (*models.Task, error)

	// UpdateCAS persists the task if the stored version still equals
	// fromVersion, bumping Version. Returns ErrConcurrentModification
	// otherwise; bulk scans treat that as skip-and-continue.
	UpdateCAS(ctx context.Context, task *models.Task, fromVersion int64) error

	// ListByAssignee returns the user's tasks sorted by PriorityScore
	// descending, then DueDate ascending with undated tasks last.
	ListByAssignee(ctx context.Context, userID string, opts ListTasksOptions) ([]*models.Task, error)

	// ListByWorkflow returns a workflow's tasks ordered by CreatedAt
	// ascending, excluding completed and cancelled unless includeCompleted.
	ListByWorkflow(ctx context.Context, workflowID string, includeCompleted bool) ([]*models.Task, error)

	// ListByClinic returns the clinic's tasks in the given statuses, all
	// statuses when none are given.
	ListByClinic(ctx context.Context, clinicID string, statuses []models.TaskStatus) ([]*models.Task, error)

	// ListUnassigned returns the clinic's pending tasks without an assignee.
	ListUnassigned(ctx context.Context, clinicID string) ([]*models.Task, error)

	// CountOpenByAssignee returns pending and in-progress task counts keyed
	// by assignee id for one clinic.
	CountOpenByAssignee(ctx context.Context, clinicID string) (map[string]int, error)
}

// ListEventsOptions filters event history queries.
type ListEventsOptions struct {
	EventTypes []string
	Limit      int
}

// EventRepository stores the append-only event log.
type EventRepository interface {
	Append(ctx context.Context, event *models.Event) error

	// ListByWorkflow returns events ascending by CreatedAt. When Limit is set
	// and more events match, the most recent Limit events are returned, still
	// in ascending order.
	ListByWorkflow(ctx context.Context, workflowID string, opts ListEventsOptions) ([]*models.Event, error)
}

// StaffRepository is the read-only identity surface the core needs from the
// clinic record store.
type StaffRepository interface {
	// GetByID returns ErrStaffNotFound when no row exists.
	GetByID(ctx context.Context, id string) (*models.Staff, error)

	// ListActiveByClinic returns active staff ordered by id, so assignment
	// tie-breaking is deterministic.
	ListActiveByClinic(ctx context.Context, clinicID string) ([]*models.Staff, error)
}
