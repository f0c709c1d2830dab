package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clinicflow/clinicflow/pkg/models"
	"github.com/clinicflow/clinicflow/pkg/persistence"
)

// TaskRepository handles task database operations.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const taskColumns = `
	id
  , workflow_id
  , clinic_id
  , assigned_to
  , task_type
  , title
  , description
  , customer_name
  , priority
  , priority_score
  , status
  , due_date
  , estimated_duration
  , task_data
  , notes
  , completed_at
  , completed_by
  , version
  , created_at
  , updated_at
`

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()

	if task.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate task ID: %w", err)
		}

		task.ID = id.String()
	}

	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	task.UpdatedAt = now

	taskDataJSON, err := json.Marshal(task.TaskData)
	if err != nil {
		return fmt.Errorf("failed to marshal task data: %w", err)
	}

	notesJSON, err := json.Marshal(task.Notes)
	if err != nil {
		return fmt.Errorf("failed to marshal notes: %w", err)
	}

	query := `
		INSERT INTO tasks (id, workflow_id, clinic_id, assigned_to, task_type,
			title, description, customer_name, priority, priority_score, status,
			due_date, estimated_duration, task_data, notes, completed_at,
			completed_by, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err = r.db.ExecContext(ctx, query,
		task.ID,
		task.WorkflowID,
		task.ClinicID,
		task.AssignedTo,
		task.TaskType,
		task.Title,
		task.Description,
		task.CustomerName,
		task.Priority,
		task.PriorityScore,
		task.Status,
		task.DueDate,
		task.EstimatedDuration,
		taskDataJSON,
		notesJSON,
		task.CompletedAt,
		task.CompletedBy,
		task.Version,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task         models.Task
		taskDataJSON []byte
		notesJSON    []byte
	)

	err := row.Scan(
		&task.ID,
		&task.WorkflowID,
		&task.ClinicID,
		&task.AssignedTo,
		&task.TaskType,
		&task.Title,
		&task.Description,
		&task.CustomerName,
		&task.Priority,
		&task.PriorityScore,
		&task.Status,
		&task.DueDate,
		&task.EstimatedDuration,
		&taskDataJSON,
		&notesJSON,
		&task.CompletedAt,
		&task.CompletedBy,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(taskDataJSON) > 0 {
		err = json.Unmarshal(taskDataJSON, &task.TaskData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal task data: %w", err)
		}
	}

	if len(notesJSON) > 0 {
		err = json.Unmarshal(notesJSON, &task.Notes)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal notes: %w", err)
		}
	}

	return &task, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTaskNotFound
		}

		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	return task, nil
}

// UpdateCAS persists the task if the stored version still equals fromVersion.
func (r *TaskRepository) UpdateCAS(ctx context.Context, task *models.Task, fromVersion int64) error {
	task.Version = fromVersion + 1
	task.UpdatedAt = time.Now().UTC()

	taskDataJSON, err := json.Marshal(task.TaskData)
	if err != nil {
		return fmt.Errorf("failed to marshal task data: %w", err)
	}

	notesJSON, err := json.Marshal(task.Notes)
	if err != nil {
		return fmt.Errorf("failed to marshal notes: %w", err)
	}

	query := `
		UPDATE tasks SET
			assigned_to = $1,
			priority = $2,
			priority_score = $3,
			status = $4,
			due_date = $5,
			task_data = $6,
			notes = $7,
			completed_at = $8,
			completed_by = $9,
			version = $10,
			updated_at = $11
		WHERE id = $12 AND version = $13
	`

	result, err := r.db.ExecContext(ctx, query,
		task.AssignedTo,
		task.Priority,
		task.PriorityScore,
		task.Status,
		task.DueDate,
		taskDataJSON,
		notesJSON,
		task.CompletedAt,
		task.CompletedBy,
		task.Version,
		task.UpdatedAt,
		task.ID,
		fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		_, getErr := r.GetByID(ctx, task.ID)
		if getErr != nil {
			return getErr
		}

		return persistence.ErrConcurrentModification
	}

	return nil
}

func (r *TaskRepository) ListByAssignee(ctx context.Context, userID string, opts persistence.ListTasksOptions) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE assigned_to = $1`
	args := []any{userID}

	if len(opts.Statuses) > 0 {
		args = append(args, pq.Array(statusStrings(opts.Statuses)))
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}

	if len(opts.Priorities) > 0 {
		priorities := make([]string, 0, len(opts.Priorities))
		for _, priority := range opts.Priorities {
			priorities = append(priorities, string(priority))
		}

		args = append(args, pq.Array(priorities))
		query += fmt.Sprintf(" AND priority = ANY($%d)", len(args))
	}

	query += " ORDER BY priority_score DESC, due_date ASC NULLS LAST, created_at ASC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.queryTasks(ctx, query, args...)
}

func (r *TaskRepository) ListByWorkflow(ctx context.Context, workflowID string, includeCompleted bool) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE workflow_id = $1`

	if !includeCompleted {
		query += " AND status NOT IN ('completed', 'cancelled')"
	}

	query += " ORDER BY created_at ASC"

	return r.queryTasks(ctx, query, workflowID)
}

func (r *TaskRepository) ListByClinic(ctx context.Context, clinicID string, statuses []models.TaskStatus) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE clinic_id = $1`
	args := []any{clinicID}

	if len(statuses) > 0 {
		args = append(args, pq.Array(statusStrings(statuses)))
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}

	query += " ORDER BY created_at ASC"

	return r.queryTasks(ctx, query, args...)
}

func (r *TaskRepository) ListUnassigned(ctx context.Context, clinicID string) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE clinic_id = $1 AND assigned_to = '' AND status = 'pending'
		ORDER BY created_at ASC`

	return r.queryTasks(ctx, query, clinicID)
}

func (r *TaskRepository) CountOpenByAssignee(ctx context.Context, clinicID string) (map[string]int, error) {
	query := `
		SELECT assigned_to, COUNT(*)
		FROM tasks
		WHERE clinic_id = $1 AND assigned_to <> '' AND status IN ('pending', 'in_progress')
		GROUP BY assigned_to
	`

	rows, err := r.db.QueryContext(ctx, query, clinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to count open tasks: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	counts := make(map[string]int)

	for rows.Next() {
		var (
			assignee string
			count    int
		)

		err = rows.Scan(&assignee, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}

		counts[assignee] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating task counts: %w", err)
	}

	return counts, nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, task)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

func statusStrings(statuses []models.TaskStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}

	return out
}
