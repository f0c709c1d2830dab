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

const uniqueViolation = pq.ErrorCode("23505")

// WorkflowRepository handles workflow state database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.WorkflowState) error {
	now := time.Now().UTC()

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	metadataJSON, err := json.Marshal(workflow.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO workflows (id, clinic_id, customer_id, customer_name,
			customer_email, customer_phone, current_stage, assigned_sales_id,
			metadata, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.ClinicID,
		workflow.CustomerID,
		workflow.CustomerName,
		workflow.CustomerEmail,
		workflow.CustomerPhone,
		workflow.CurrentStage,
		workflow.AssignedSalesID,
		metadataJSON,
		workflow.Version,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.ErrDuplicateActiveWorkflow
		}

		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	return nil
}

const workflowColumns = `
	id
  , clinic_id
  , customer_id
  , customer_name
  , customer_email
  , customer_phone
  , current_stage
  , assigned_sales_id
  , metadata
  , version
  , created_at
  , updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.WorkflowState, error) {
	var (
		workflow     models.WorkflowState
		metadataJSON []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.ClinicID,
		&workflow.CustomerID,
		&workflow.CustomerName,
		&workflow.CustomerEmail,
		&workflow.CustomerPhone,
		&workflow.CurrentStage,
		&workflow.AssignedSalesID,
		&metadataJSON,
		&workflow.Version,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		err = json.Unmarshal(metadataJSON, &workflow.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &workflow, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowState, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) ListByClinic(ctx context.Context, clinicID string, opts persistence.ListWorkflowsOptions) ([]*models.WorkflowState, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE clinic_id = $1`
	args := []any{clinicID}

	if opts.Stage != nil {
		args = append(args, *opts.Stage)
		query += fmt.Sprintf(" AND current_stage = $%d", len(args))
	}

	if opts.AssignedTo != "" {
		args = append(args, opts.AssignedTo)
		query += fmt.Sprintf(" AND assigned_sales_id = $%d", len(args))
	}

	query += " ORDER BY updated_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.WorkflowState, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// UpdateStageCAS moves the workflow to stage only when the stored version
// still matches. The WHERE clause is the compare half of the swap; zero rows
// affected means another writer committed first.
func (r *WorkflowRepository) UpdateStageCAS(ctx context.Context, id string, fromVersion int64, stage models.Stage) (*models.WorkflowState, error) {
	query := `
		UPDATE workflows
		SET current_stage = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
		RETURNING ` + workflowColumns

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, stage, time.Now().UTC(), id, fromVersion))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing row from a lost race.
			_, getErr := r.GetByID(ctx, id)
			if getErr != nil {
				return nil, getErr
			}

			return nil, persistence.ErrConcurrentModification
		}

		return nil, fmt.Errorf("failed to update workflow stage: %w", err)
	}

	return workflow, nil
}

// ActionRepository handles the append-only transition log.
type ActionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ActionRepository) Append(ctx context.Context, action *models.WorkflowAction) error {
	if action.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate action ID: %w", err)
		}

		action.ID = id.String()
	}

	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}

	actionDataJSON, err := json.Marshal(action.ActionData)
	if err != nil {
		return fmt.Errorf("failed to marshal action data: %w", err)
	}

	query := `
		INSERT INTO workflow_actions (id, workflow_id, action_type, from_stage,
			to_stage, performed_by, action_data, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`

	err = r.db.QueryRowContext(ctx, query,
		action.ID,
		action.WorkflowID,
		action.ActionType,
		action.FromStage,
		action.ToStage,
		action.PerformedBy,
		actionDataJSON,
		action.Notes,
		action.CreatedAt,
	).Scan(&action.Seq)
	if err != nil {
		return fmt.Errorf("failed to insert workflow action: %w", err)
	}

	return nil
}

func (r *ActionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowAction, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , action_type
		  , from_stage
		  , to_stage
		  , performed_by
		  , action_data
		  , notes
		  , seq
		  , created_at
		FROM workflow_actions
		WHERE workflow_id = $1
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow actions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	actions := make([]*models.WorkflowAction, 0)

	for rows.Next() {
		var (
			action         models.WorkflowAction
			actionDataJSON []byte
		)

		err = rows.Scan(
			&action.ID,
			&action.WorkflowID,
			&action.ActionType,
			&action.FromStage,
			&action.ToStage,
			&action.PerformedBy,
			&actionDataJSON,
			&action.Notes,
			&action.Seq,
			&action.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow action: %w", err)
		}

		if len(actionDataJSON) > 0 {
			err = json.Unmarshal(actionDataJSON, &action.ActionData)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal action data: %w", err)
			}
		}

		actions = append(actions, &action)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow actions: %w", err)
	}

	return actions, nil
}
