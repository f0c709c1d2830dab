package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/clinicflow/clinicflow/pkg/persistence"
	"github.com/clinicflow/clinicflow/pkg/taskqueue"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps the core error taxonomy onto HTTP problems.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	case persistence.IsTaskNotFound(err):
		return notFound(c, "task not found")

	case errors.Is(err, persistence.ErrConcurrentModification):
		return conflict(c, "concurrent_modification",
			"the resource changed underneath this request; re-read and retry")

	case errors.Is(err, persistence.ErrWorkflowTerminal):
		return conflict(c, "invalid_transition", err.Error())

	case errors.Is(err, persistence.ErrInvalidTransition):
		return conflict(c, "invalid_transition", err.Error())

	case errors.Is(err, persistence.ErrInvalidStatusTransition):
		return conflict(c, "invalid_status_transition", err.Error())

	case errors.Is(err, persistence.ErrDuplicateActiveWorkflow):
		return conflict(c, "duplicate_active_workflow", err.Error())

	case errors.Is(err, persistence.ErrInvalidAssignee):
		return badRequest(c, err.Error())

	case errors.Is(err, persistence.ErrInvalidActionData):
		return badRequest(c, err.Error())

	case errors.Is(err, taskqueue.ErrUnknownTaskType):
		return badRequest(c, err.Error())

	case errors.Is(err, taskqueue.ErrInvalidPriority):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
