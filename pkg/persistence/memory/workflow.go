package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/pkg/models"
	"github.com/clinicflow/clinicflow/pkg/persistence"
)

// WorkflowRepository stores workflow state rows in memory.
type WorkflowRepository struct {
	store *store
}

func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.WorkflowState) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.workflows {
		if existing.CustomerID == workflow.CustomerID && existing.ClinicID == workflow.ClinicID && existing.Active() {
			return persistence.ErrDuplicateActiveWorkflow
		}
	}

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

	clone := *workflow
	r.store.workflows[workflow.ID] = &clone

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	workflow, ok := r.store.workflows[id]
	if !ok {
		return nil, persistence.ErrWorkflowNotFound
	}

	clone := *workflow

	return &clone, nil
}

func (r *WorkflowRepository) ListByClinic(ctx context.Context, clinicID string, opts persistence.ListWorkflowsOptions) ([]*models.WorkflowState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	workflows := make([]*models.WorkflowState, 0)

	for _, workflow := range r.store.workflows {
		if workflow.ClinicID != clinicID {
			continue
		}

		if opts.Stage != nil && workflow.CurrentStage != *opts.Stage {
			continue
		}

		if opts.AssignedTo != "" && workflow.AssignedSalesID != opts.AssignedTo {
			continue
		}

		clone := *workflow
		workflows = append(workflows, &clone)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].UpdatedAt.After(workflows[j].UpdatedAt)
	})

	return workflows, nil
}

func (r *WorkflowRepository) UpdateStageCAS(ctx context.Context, id string, fromVersion int64, stage models.Stage) (*models.WorkflowState, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	workflow, ok := r.store.workflows[id]
	if !ok {
		return nil, persistence.ErrWorkflowNotFound
	}

	if workflow.Version != fromVersion {
		return nil, persistence.ErrConcurrentModification
	}

	workflow.CurrentStage = stage
	workflow.Version++
	workflow.UpdatedAt = time.Now().UTC()

	clone := *workflow

	return &clone, nil
}

// ActionRepository stores the append-only transition log in memory.
type ActionRepository struct {
	store *store
}

func (r *ActionRepository) Append(ctx context.Context, action *models.WorkflowAction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

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

	r.store.actionSeq++
	action.Seq = r.store.actionSeq

	clone := *action
	r.store.actions[action.WorkflowID] = append(r.store.actions[action.WorkflowID], &clone)

	return nil
}

func (r *ActionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowAction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	actions := make([]*models.WorkflowAction, 0, len(r.store.actions[workflowID]))

	for _, action := range r.store.actions[workflowID] {
		clone := *action
		actions = append(actions, &clone)
	}

	sort.Slice(actions, func(i, j int) bool {
		if actions[i].CreatedAt.Equal(actions[j].CreatedAt) {
			return actions[i].Seq < actions[j].Seq
		}

		return actions[i].CreatedAt.Before(actions[j].CreatedAt)
	})

	return actions, nil
}
