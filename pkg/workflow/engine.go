// Package workflow implements the workflow engine: the closed stage graph,
// optimistic-concurrency transitions, the transition log, and the follow-on
// task and notification hooks.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/clinicflow/clinicflow/pkg/broadcast"
	"github.com/clinicflow/clinicflow/pkg/events"
	"github.com/clinicflow/clinicflow/pkg/models"
	"github.com/clinicflow/clinicflow/pkg/persistence"
	"github.com/clinicflow/clinicflow/pkg/taskqueue"
)

// Engine is the only writer of workflow stage and version. Task and event
// side effects run after the stage update commits; the transition log and the
// stage row share the workflow's fate, side effects are at-least-once on top.
type Engine struct {
	workflows   persistence.WorkflowRepository
	actions     persistence.ActionRepository
	staff       persistence.StaffRepository
	tasks       *taskqueue.Manager
	broadcaster *broadcast.Broadcaster
	validator   *validator.Validate
	logger      *slog.Logger
	now         func() time.Time
}

func NewEngine(p persistence.Persistence, tasks *taskqueue.Manager, broadcaster *broadcast.Broadcaster, logger *slog.Logger) *Engine {
	return &Engine{
		workflows:   p.WorkflowRepository(),
		actions:     p.ActionRepository(),
		staff:       p.StaffRepository(),
		tasks:       tasks,
		broadcaster: broadcaster,
		validator:   validator.New(),
		logger:      logger.With("module", "workflow"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateWorkflowRequest carries the inputs of CreateWorkflow.
type CreateWorkflowRequest struct {
	ClinicID        string         `validate:"required"`
	CustomerID      string         `validate:"required"`
	CustomerName    string         `validate:"required"`
	CustomerEmail   string         `validate:"omitempty,email"`
	CustomerPhone   string         `validate:"omitempty"`
	AssignedSalesID string         `validate:"required"`
	Metadata        map[string]any `validate:"-"`
}

// CreateWorkflow starts a customer journey at lead_created, version 0, and
// writes the initial transition-log entry.
func (e *Engine) CreateWorkflow(ctx context.Context, req CreateWorkflowRequest) (*models.WorkflowState, error) {
	err := e.validator.Struct(req)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow request: %w", err)
	}

	err = e.validateStaff(ctx, req.ClinicID, req.AssignedSalesID)
	if err != nil {
		return nil, err
	}

	workflow := &models.WorkflowState{
		ClinicID:        req.ClinicID,
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		CurrentStage:    models.StageLeadCreated,
		AssignedSalesID: req.AssignedSalesID,
		Metadata:        req.Metadata,
		Version:         0,
		CreatedAt:       e.now(),
	}

	err = e.workflows.Create(ctx, workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("CreateWorkflow", workflow.CustomerID, err)
	}

	err = e.actions.Append(ctx, &models.WorkflowAction{
		WorkflowID:  workflow.ID,
		ActionType:  models.ActionWorkflowCreated,
		FromStage:   models.StageLeadCreated,
		ToStage:     models.StageLeadCreated,
		PerformedBy: req.AssignedSalesID,
		CreatedAt:   e.now(),
	})
	if err != nil {
		return nil, persistence.NewWorkflowError("CreateWorkflow", workflow.ID, err)
	}

	e.broadcastTransition(ctx, workflow, models.ActionWorkflowCreated, req.AssignedSalesID, models.StageLeadCreated, nil)

	e.logger.InfoContext(ctx, "Workflow created",
		"workflow_id", workflow.ID,
		"clinic_id", workflow.ClinicID,
		"customer_id", workflow.CustomerID,
	)

	return workflow, nil
}

// TransitionRequest carries the inputs of ExecuteTransition.
type TransitionRequest struct {
	WorkflowID  string
	Action      models.ActionType
	PerformedBy string
	ActionData  map[string]any
	Notes       string
}

// ExecuteTransition applies one action to a workflow. The edge is resolved
// from the action type, never from a caller-supplied destination. The stage
// update is conditional on the version read here; a lost race surfaces as
// ErrConcurrentModification and the caller re-reads and retries.
func (e *Engine) ExecuteTransition(ctx context.Context, req TransitionRequest) (*models.WorkflowState, error) {
	workflow, err := e.workflows.GetByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	fromStage := workflow.CurrentStage

	toStage, err := resolveEdge(fromStage, req.Action)
	if err != nil {
		return nil, persistence.NewWorkflowError("ExecuteTransition", req.WorkflowID, err)
	}

	err = validateActionData(req.Action, req.ActionData)
	if err != nil {
		return nil, persistence.NewWorkflowError("ExecuteTransition", req.WorkflowID, err)
	}

	updated, err := e.workflows.UpdateStageCAS(ctx, req.WorkflowID, workflow.Version, toStage)
	if err != nil {
		return nil, persistence.NewWorkflowError("ExecuteTransition", req.WorkflowID, err)
	}

	err = e.actions.Append(ctx, &models.WorkflowAction{
		WorkflowID:  updated.ID,
		ActionType:  req.Action,
		FromStage:   fromStage,
		ToStage:     toStage,
		PerformedBy: req.PerformedBy,
		ActionData:  req.ActionData,
		Notes:       req.Notes,
		CreatedAt:   e.now(),
	})
	if err != nil {
		return nil, persistence.NewWorkflowError("ExecuteTransition", req.WorkflowID, err)
	}

	e.spawnStageTask(ctx, updated, req.ActionData)
	e.broadcastTransition(ctx, updated, req.Action, req.PerformedBy, fromStage, req.ActionData)

	e.logger.InfoContext(ctx, "Transition executed",
		"workflow_id", updated.ID,
		"action", req.Action,
		"from_stage", fromStage,
		"to_stage", toStage,
		"version", updated.Version,
	)

	return updated, nil
}

// resolveEdge maps an action to its destination stage, enforcing the closed
// edge set. Cancellation is legal from any non-terminal stage.
func resolveEdge(current models.Stage, action models.ActionType) (models.Stage, error) {
	if current.Terminal() {
		return "", fmt.Errorf("%w: stage %s", persistence.ErrWorkflowTerminal, current)
	}

	if action == models.ActionCancelWorkflow {
		return models.StageCancelled, nil
	}

	edge, ok := models.TransitionFor(action)
	if !ok {
		return "", fmt.Errorf("%w: unknown action %s", persistence.ErrInvalidTransition, action)
	}

	if edge.From != current {
		return "", fmt.Errorf("%w: action %s requires stage %s, workflow is at %s",
			persistence.ErrInvalidTransition, action, edge.From, current)
	}

	return edge.To, nil
}

// GetWorkflow returns the current state of a workflow.
func (e *Engine) GetWorkflow(ctx context.Context, id string) (*models.WorkflowState, error) {
	return e.workflows.GetByID(ctx, id)
}

// ListClinicWorkflows lists a clinic's workflows, newest activity first.
func (e *Engine) ListClinicWorkflows(ctx context.Context, clinicID string, stage *models.Stage, assignedTo string) ([]*models.WorkflowState, error) {
	return e.workflows.ListByClinic(ctx, clinicID, persistence.ListWorkflowsOptions{
		Stage:      stage,
		AssignedTo: assignedTo,
	})
}

// GetTransitionLog returns a workflow's transition history in order.
func (e *Engine) GetTransitionLog(ctx context.Context, workflowID string) ([]*models.WorkflowAction, error) {
	_, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return e.actions.ListByWorkflow(ctx, workflowID)
}

func (e *Engine) validateStaff(ctx context.Context, clinicID, staffID string) error {
	member, err := e.staff.GetByID(ctx, staffID)
	if err != nil {
		if persistence.IsStaffNotFound(err) {
			return fmt.Errorf("%w: %s", persistence.ErrInvalidAssignee, staffID)
		}

		return err
	}

	if !member.Active || member.ClinicID != clinicID {
		return fmt.Errorf("%w: %s", persistence.ErrInvalidAssignee, staffID)
	}

	return nil
}

// spawnStageTask creates the destination stage's default follow-on task, if
// it has one. The transition is already durable; a failed spawn is logged and
// left for the jobs runner to compensate via auto-assignment.
func (e *Engine) spawnStageTask(ctx context.Context, workflow *models.WorkflowState, actionData map[string]any) {
	spec, ok := models.StageTasks[workflow.CurrentStage]
	if !ok || e.tasks == nil {
		return
	}

	assignee := workflow.AssignedSalesID
	if spec.AssigneeFromActionData != "" {
		if v, ok := actionData[spec.AssigneeFromActionData].(string); ok && v != "" {
			assignee = v
		}
	}

	var dueDate *time.Time
	if spec.DueIn > 0 {
		due := e.now().Add(spec.DueIn)
		dueDate = &due
	}

	_, err := e.tasks.CreateTask(ctx, taskqueue.CreateTaskRequest{
		WorkflowID:   workflow.ID,
		AssignedTo:   assignee,
		TaskType:     spec.TaskType,
		CustomerName: workflow.CustomerName,
		Priority:     spec.Priority,
		DueDate:      dueDate,
		TaskData:     actionData,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to create follow-on task",
			"workflow_id", workflow.ID,
			"task_type", spec.TaskType,
			"error", err,
		)
	}
}

// broadcastTransition emits workflow_updated plus the action's specific event
// when it has one, targeting the assigned sales staff and the actor.
func (e *Engine) broadcastTransition(ctx context.Context, workflow *models.WorkflowState, action models.ActionType, performedBy string, fromStage models.Stage, actionData map[string]any) {
	if e.broadcaster == nil {
		return
	}

	targets := []string{workflow.AssignedSalesID}
	if performedBy != "" && performedBy != workflow.AssignedSalesID {
		targets = append(targets, performedBy)
	}

	data := map[string]any{
		"action":     string(action),
		"from_stage": string(fromStage),
		"to_stage":   string(workflow.CurrentStage),
	}
	if len(actionData) > 0 {
		data["action_data"] = actionData
	}

	eventTypes := []string{events.WorkflowUpdated}
	if extra := events.ForAction(action); extra != "" {
		eventTypes = append(eventTypes, extra)
	}

	for _, eventType := range eventTypes {
		err := e.broadcaster.Broadcast(ctx, &models.Event{
			WorkflowID:   workflow.ID,
			EventType:    eventType,
			SourceUserID: performedBy,
			TargetUsers:  targets,
			Data:         data,
		})
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to broadcast transition event",
				"workflow_id", workflow.ID,
				"event_type", eventType,
				"error", err,
			)
		}
	}
}
