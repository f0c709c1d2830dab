// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrTaskNotFound indicates a task was not found by the given identifier.
	ErrTaskNotFound = errors.New("task not found")

	// ErrStaffNotFound indicates a staff member was not found by the given identifier.
	ErrStaffNotFound = errors.New("staff not found")

	// ErrDuplicateActiveWorkflow indicates the customer already has an active workflow.
	ErrDuplicateActiveWorkflow = errors.New("customer already has an active workflow")

	// ErrConcurrentModification indicates a conditional update lost the race:
	// the stored version no longer matched the expected one.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrInvalidTransition indicates the requested action has no edge from the
	// workflow's current stage.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrWorkflowTerminal indicates the workflow already reached a terminal stage.
	ErrWorkflowTerminal = errors.New("workflow is terminal")

	// ErrInvalidStatusTransition indicates a task status change that the
	// status graph does not allow.
	ErrInvalidStatusTransition = errors.New("invalid task status transition")

	// ErrInvalidAssignee indicates the assignee does not exist, is inactive,
	// or belongs to another clinic.
	ErrInvalidAssignee = errors.New("invalid assignee")

	// ErrInvalidActionData indicates the action payload failed schema validation.
	ErrInvalidActionData = errors.New("invalid action data")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "ExecuteTransition")
	WorkflowID string // Workflow ID if applicable
	Err        error  // Underlying error
	Message    string // Additional context message
}

func (e *WorkflowError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for workflow %s: %s (%v)", e.Op, e.WorkflowID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// TaskError wraps task-related errors with additional context.
type TaskError struct {
	Op     string // Operation being performed
	TaskID string // Task ID
	Err    error  // Underlying error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s operation failed for task %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

func (e *TaskError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewTaskError creates a new task error with context.
func NewTaskError(op, taskID string, err error) *TaskError {
	return &TaskError{
		Op:     op,
		TaskID: taskID,
		Err:    err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsTaskNotFound checks if an error indicates a task was not found.
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

// IsStaffNotFound checks if an error indicates a staff member was not found.
func IsStaffNotFound(err error) bool {
	return errors.Is(err, ErrStaffNotFound)
}

// IsConcurrentModification checks if an error indicates a lost conditional update.
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsInvalidTransition checks if an error indicates an illegal stage transition.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrWorkflowTerminal)
}
