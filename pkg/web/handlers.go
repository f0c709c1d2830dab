package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/clinicflow/clinicflow/pkg/broadcast"
	"github.com/clinicflow/clinicflow/pkg/models"
	"github.com/clinicflow/clinicflow/pkg/persistence"
	"github.com/clinicflow/clinicflow/pkg/taskqueue"
	"github.com/clinicflow/clinicflow/pkg/workflow"
)

// actorHeader carries the id of the staff member performing the request.
const actorHeader = "X-Actor-ID"

type APIHandlers struct {
	engine      *workflow.Engine
	tasks       *taskqueue.Manager
	broadcaster *broadcast.Broadcaster
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	engine *workflow.Engine,
	tasks *taskqueue.Manager,
	broadcaster *broadcast.Broadcaster,
	persistence persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:      engine,
		tasks:       tasks,
		broadcaster: broadcaster,
		persistence: persistence,
		validator:   validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	repositoryCheck := "ok"

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
		repositoryCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON payload: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	created, err := h.engine.CreateWorkflow(c.Context(), workflow.CreateWorkflowRequest{
		ClinicID:        req.ClinicID,
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		AssignedSalesID: req.AssignedSalesID,
		Metadata:        req.Metadata,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	result, err := h.engine.GetWorkflow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ListWorkflows(c fiber.Ctx) error {
	clinicID := c.Query("clinic_id")
	if clinicID == "" {
		return badRequest(c, "clinic_id query parameter is required")
	}

	var stage *models.Stage

	if stageStr := c.Query("stage"); stageStr != "" {
		s := models.Stage(stageStr)
		if !s.Valid() {
			return badRequest(c, "unknown stage: "+stageStr)
		}

		stage = &s
	}

	result, err := h.engine.ListClinicWorkflows(c.Context(), clinicID, stage, c.Query("assigned_to"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": result,
		"count":     len(result),
	})
}

func (h *APIHandlers) ExecuteTransition(c fiber.Ctx) error {
	id := c.Params("id")

	actor := c.Get(actorHeader)
	if actor == "" {
		return badRequest(c, actorHeader+" header is required")
	}

	var req ExecuteTransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON payload: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	result, err := h.engine.ExecuteTransition(c.Context(), workflow.TransitionRequest{
		WorkflowID:  id,
		Action:      req.Action,
		PerformedBy: actor,
		ActionData:  req.ActionData,
		Notes:       req.Notes,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetTransitionLog(c fiber.Ctx) error {
	id := c.Params("id")

	result, err := h.engine.GetTransitionLog(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_id": id,
		"actions":     result,
	})
}

func (h *APIHandlers) CreateTask(c fiber.Ctx) error {
	var req CreateTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON payload: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	created, err := h.tasks.CreateTask(c.Context(), taskqueue.CreateTaskRequest{
		WorkflowID:   req.WorkflowID,
		AssignedTo:   req.AssignedTo,
		TaskType:     req.TaskType,
		CustomerName: req.CustomerName,
		Priority:     req.Priority,
		DueDate:      req.DueDate,
		TaskData:     req.TaskData,
		Notes:        req.Notes,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateTaskStatus(c fiber.Ctx) error {
	id := c.Params("id")

	actor := c.Get(actorHeader)
	if actor == "" {
		return badRequest(c, actorHeader+" header is required")
	}

	var req UpdateTaskStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON payload: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	result, err := h.tasks.UpdateTaskStatus(c.Context(), id, req.Status, actor, req.Notes)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) AssignTask(c fiber.Ctx) error {
	id := c.Params("id")

	assignee := c.Query("assignee_id")
	if assignee == "" {
		return badRequest(c, "assignee_id query parameter is required")
	}

	result, err := h.tasks.AssignTask(c.Context(), id, assignee)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) MyTasks(c fiber.Ctx) error {
	actor := c.Get(actorHeader)
	if actor == "" {
		return badRequest(c, actorHeader+" header is required")
	}

	var statuses []models.TaskStatus
	for _, s := range splitCSV(c.Query("status")) {
		statuses = append(statuses, models.TaskStatus(s))
	}

	var priorities []models.TaskPriority

	for _, p := range splitCSV(c.Query("priority")) {
		priority := models.TaskPriority(p)
		if !priority.Valid() {
			return badRequest(c, "unknown priority: "+p)
		}

		priorities = append(priorities, priority)
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "invalid limit: "+limitStr)
		}

		limit = parsed
	}

	result, err := h.tasks.GetUserTasks(c.Context(), actor, statuses, priorities, limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"tasks": result,
		"count": len(result),
	})
}

func (h *APIHandlers) WorkflowTasks(c fiber.Ctx) error {
	id := c.Params("id")

	includeCompleted := false

	if includeStr := c.Query("include_completed"); includeStr != "" {
		parsed, err := strconv.ParseBool(includeStr)
		if err != nil {
			return badRequest(c, "invalid include_completed: "+includeStr)
		}

		includeCompleted = parsed
	}

	result, err := h.tasks.GetWorkflowTasks(c.Context(), id, includeCompleted)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_id": id,
		"tasks":       result,
	})
}

func (h *APIHandlers) ReprioritizeTasks(c fiber.Ctx) error {
	clinicID := c.Params("clinicId")

	updated, err := h.tasks.Reprioritize(c.Context(), clinicID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"clinic_id": clinicID,
		"updated":   updated,
	})
}

func (h *APIHandlers) AutoAssignTasks(c fiber.Ctx) error {
	clinicID := c.Params("clinicId")

	assigned, err := h.tasks.AutoAssign(c.Context(), clinicID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"clinic_id": clinicID,
		"assigned":  assigned,
	})
}

func (h *APIHandlers) BroadcastEvent(c fiber.Ctx) error {
	id := c.Params("id")

	var req BroadcastEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON payload: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	// Only known workflows accumulate history.
	if _, err := h.engine.GetWorkflow(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	event := &models.Event{
		WorkflowID:   id,
		EventType:    req.EventType,
		SourceUserID: c.Get(actorHeader),
		TargetUsers:  req.TargetUsers,
		Data:         req.Data,
	}

	if err := h.broadcaster.Broadcast(c.Context(), event); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(event)
}

func (h *APIHandlers) EventHistory(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.engine.GetWorkflow(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "invalid limit: "+limitStr)
		}

		limit = parsed
	}

	result, err := h.broadcaster.History(c.Context(), id, splitCSV(c.Query("event_types")), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_id": id,
		"events":      result,
	})
}

// DashboardSummary aggregates a clinic's workflow distribution and the calling
// staff member's open task load.
func (h *APIHandlers) DashboardSummary(c fiber.Ctx) error {
	clinicID := c.Params("clinicId")

	actor := c.Get(actorHeader)
	if actor == "" {
		return badRequest(c, actorHeader+" header is required")
	}

	workflows, err := h.engine.ListClinicWorkflows(c.Context(), clinicID, nil, "")
	if err != nil {
		return handleServiceError(c, err)
	}

	summary := DashboardSummary{
		ClinicID:          clinicID,
		TotalWorkflows:    len(workflows),
		StageDistribution: make(map[string]int, len(models.Stages)),
		TasksByPriority:   make(map[string]int),
	}

	// Active stages always show up in the distribution, even at zero.
	for _, stage := range models.ActiveStages() {
		summary.StageDistribution[string(stage)] = 0
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)

	for _, wf := range workflows {
		summary.StageDistribution[string(wf.CurrentStage)]++

		if wf.Active() {
			summary.ActiveWorkflows++
		}

		if wf.CurrentStage == models.StageCompleted && !wf.UpdatedAt.Before(midnight) {
			summary.CompletedToday++
		}
	}

	openTasks, err := h.tasks.GetUserTasks(c.Context(), actor,
		[]models.TaskStatus{models.TaskStatusPending, models.TaskStatusInProgress}, nil, 0)
	if err != nil {
		return handleServiceError(c, err)
	}

	summary.PendingTasks = len(openTasks)
	for _, task := range openTasks {
		summary.TasksByPriority[string(task.Priority)]++
	}

	return c.JSON(summary)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}

	return values
}
