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

// EventRepository handles the append-only event log.
type EventRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *EventRepository) Append(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate event ID: %w", err)
		}

		event.ID = id.String()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	query := `
		INSERT INTO workflow_events (id, workflow_id, event_type,
			source_user_id, target_users, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.WorkflowID,
		event.EventType,
		event.SourceUserID,
		pq.Array(event.TargetUsers),
		dataJSON,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

func (r *EventRepository) ListByWorkflow(ctx context.Context, workflowID string, opts persistence.ListEventsOptions) ([]*models.Event, error) {
	// Fetch the most recent events first so Limit keeps the newest, then
	// reverse into ascending order for the caller.
	query := `
		SELECT
			id
		  , workflow_id
		  , event_type
		  , source_user_id
		  , target_users
		  , data
		  , created_at
		FROM workflow_events
		WHERE workflow_id = $1
	`
	args := []any{workflowID}

	if len(opts.EventTypes) > 0 {
		args = append(args, pq.Array(opts.EventTypes))
		query += fmt.Sprintf(" AND event_type = ANY($%d)", len(args))
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	events := make([]*models.Event, 0)

	for rows.Next() {
		var (
			event    models.Event
			dataJSON []byte
		)

		err = rows.Scan(
			&event.ID,
			&event.WorkflowID,
			&event.EventType,
			&event.SourceUserID,
			pq.Array(&event.TargetUsers),
			&dataJSON,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		if len(dataJSON) > 0 {
			err = json.Unmarshal(dataJSON, &event.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}

		events = append(events, &event)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	return events, nil
}

// StaffRepository serves staff lookups from the staff read model.
type StaffRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *StaffRepository) GetByID(ctx context.Context, id string) (*models.Staff, error) {
	query := `SELECT id, clinic_id, name, role, active FROM staff WHERE id = $1`

	var staff models.Staff

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&staff.ID,
		&staff.ClinicID,
		&staff.Name,
		&staff.Role,
		&staff.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrStaffNotFound
		}

		return nil, fmt.Errorf("failed to scan staff: %w", err)
	}

	return &staff, nil
}

func (r *StaffRepository) ListActiveByClinic(ctx context.Context, clinicID string) ([]*models.Staff, error) {
	query := `
		SELECT id, clinic_id, name, role, active
		FROM staff
		WHERE clinic_id = $1 AND active
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, clinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to query staff: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	staff := make([]*models.Staff, 0)

	for rows.Next() {
		var member models.Staff

		err = rows.Scan(&member.ID, &member.ClinicID, &member.Name, &member.Role, &member.Active)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}

		staff = append(staff, &member)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating staff: %w", err)
	}

	return staff, nil
}
