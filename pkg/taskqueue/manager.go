// Package taskqueue implements the task queue manager: task creation,
// status transitions, queue ordering, rescoring, and auto-assignment.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clinicflow/clinicflow/pkg/broadcast"
	"github.com/clinicflow/clinicflow/pkg/events"
	"github.com/clinicflow/clinicflow/pkg/models"
	"github.com/clinicflow/clinicflow/pkg/persistence"
)

// ErrUnknownTaskType indicates a task type with no registered template.
var ErrUnknownTaskType = errors.New("unknown task type")

// ErrInvalidPriority indicates a priority outside the defined buckets.
var ErrInvalidPriority = errors.New("invalid priority")

// Manager owns task rows. Workflows are referenced by id only; the manager
// never mutates workflow state.
type Manager struct {
	tasks       persistence.TaskRepository
	workflows   persistence.WorkflowRepository
	staff       persistence.StaffRepository
	broadcaster *broadcast.Broadcaster
	logger      *slog.Logger
	now         func() time.Time
}

func NewManager(p persistence.Persistence, broadcaster *broadcast.Broadcaster, logger *slog.Logger) *Manager {
	return &Manager{
		tasks:       p.TaskRepository(),
		workflows:   p.WorkflowRepository(),
		staff:       p.StaffRepository(),
		broadcaster: broadcaster,
		logger:      logger.With("module", "taskqueue"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. For tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now

	return m
}

// CreateTaskRequest carries the inputs of CreateTask. Priority defaults to
// medium when empty.
type CreateTaskRequest struct {
	WorkflowID   string
	AssignedTo   string
	TaskType     models.TaskType
	CustomerName string
	Priority     models.TaskPriority
	DueDate      *time.Time
	TaskData     map[string]any
	Notes        string
}

// CreateTask creates a pending task from the type's template and computes its
// initial priority score.
func (m *Manager) CreateTask(ctx context.Context, req CreateTaskRequest) (*models.Task, error) {
	template, ok := models.TaskTemplates[req.TaskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, req.TaskType)
	}

	workflow, err := m.workflows.GetByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	if !priority.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPriority, priority)
	}

	if req.AssignedTo != "" {
		err = m.validateAssignee(ctx, workflow.ClinicID, req.AssignedTo)
		if err != nil {
			return nil, err
		}
	}

	now := m.now()
	task := &models.Task{
		WorkflowID:        req.WorkflowID,
		ClinicID:          workflow.ClinicID,
		AssignedTo:        req.AssignedTo,
		TaskType:          req.TaskType,
		Title:             template.RenderTitle(req.CustomerName),
		Description:       template.Description,
		CustomerName:      req.CustomerName,
		Priority:          priority,
		Status:            models.TaskStatusPending,
		DueDate:           req.DueDate,
		EstimatedDuration: template.EstimatedDuration,
		TaskData:          req.TaskData,
		Version:           1,
		CreatedAt:         now,
	}

	if req.Notes != "" {
		task.Notes = []models.TaskNote{{Author: req.AssignedTo, Text: req.Notes, CreatedAt: now}}
	}

	task.PriorityScore = priorityScore(task, now)

	err = m.tasks.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if task.AssignedTo != "" {
		m.notifyAssignment(ctx, task)
	}

	return task, nil
}

// UpdateTaskStatus moves a task along the forward-only status graph and
// appends the note, if any, to the task's note history.
func (m *Manager) UpdateTaskStatus(ctx context.Context, taskID string, status models.TaskStatus, performedBy, note string) (*models.Task, error) {
	task, err := m.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(task.Status, status) {
		return nil, persistence.NewTaskError("UpdateTaskStatus", taskID,
			fmt.Errorf("%w: %s -> %s", persistence.ErrInvalidStatusTransition, task.Status, status))
	}

	now := m.now()
	fromVersion := task.Version
	task.Status = status

	if status == models.TaskStatusCompleted {
		task.CompletedAt = &now
		task.CompletedBy = performedBy
	}

	if note != "" {
		task.Notes = append(task.Notes, models.TaskNote{Author: performedBy, Text: note, CreatedAt: now})
	}

	err = m.tasks.UpdateCAS(ctx, task, fromVersion)
	if err != nil {
		return nil, err
	}

	return task, nil
}

// AssignTask assigns a pending or in-progress task to a staff member.
func (m *Manager) AssignTask(ctx context.Context, taskID, assigneeID string) (*models.Task, error) {
	task, err := m.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	err = m.validateAssignee(ctx, task.ClinicID, assigneeID)
	if err != nil {
		return nil, err
	}

	fromVersion := task.Version
	task.AssignedTo = assigneeID

	err = m.tasks.UpdateCAS(ctx, task, fromVersion)
	if err != nil {
		return nil, err
	}

	m.notifyAssignment(ctx, task)

	return task, nil
}

// GetUserTasks returns the user's queue, ordered by priority score then due
// date.
func (m *Manager) GetUserTasks(ctx context.Context, userID string, statuses []models.TaskStatus, priorities []models.TaskPriority, limit int) ([]*models.Task, error) {
	return m.tasks.ListByAssignee(ctx, userID, persistence.ListTasksOptions{
		Statuses:   statuses,
		Priorities: priorities,
		Limit:      limit,
	})
}

// GetWorkflowTasks returns a workflow's tasks, excluding finished ones unless
// includeCompleted.
func (m *Manager) GetWorkflowTasks(ctx context.Context, workflowID string, includeCompleted bool) ([]*models.Task, error) {
	return m.tasks.ListByWorkflow(ctx, workflowID, includeCompleted)
}

func (m *Manager) validateAssignee(ctx context.Context, clinicID, assigneeID string) error {
	member, err := m.staff.GetByID(ctx, assigneeID)
	if err != nil {
		if persistence.IsStaffNotFound(err) {
			return fmt.Errorf("%w: %s", persistence.ErrInvalidAssignee, assigneeID)
		}

		return err
	}

	if !member.Active || member.ClinicID != clinicID {
		return fmt.Errorf("%w: %s", persistence.ErrInvalidAssignee, assigneeID)
	}

	return nil
}

func (m *Manager) notifyAssignment(ctx context.Context, task *models.Task) {
	if m.broadcaster == nil {
		return
	}

	err := m.broadcaster.Broadcast(ctx, &models.Event{
		WorkflowID:  task.WorkflowID,
		EventType:   events.TaskAssigned,
		TargetUsers: []string{task.AssignedTo},
		Data: map[string]any{
			"task_id":   task.ID,
			"task_type": string(task.TaskType),
			"title":     task.Title,
			"priority":  string(task.Priority),
		},
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to broadcast task assignment",
			"task_id", task.ID, "error", err)
	}
}
