package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/pkg/models"
	"github.com/clinicflow/clinicflow/pkg/persistence"
)

// EventRepository stores the append-only event log in memory.
type EventRepository struct {
	store *store
}

func (r *EventRepository) Append(ctx context.Context, event *models.Event) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

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

	clone := *event
	clone.TargetUsers = slices.Clone(event.TargetUsers)
	r.store.events[event.WorkflowID] = append(r.store.events[event.WorkflowID], &clone)

	return nil
}

func (r *EventRepository) ListByWorkflow(ctx context.Context, workflowID string, opts persistence.ListEventsOptions) ([]*models.Event, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	events := make([]*models.Event, 0)

	for _, event := range r.store.events[workflowID] {
		if len(opts.EventTypes) > 0 && !slices.Contains(opts.EventTypes, event.EventType) {
			continue
		}

		clone := *event
		clone.TargetUsers = slices.Clone(event.TargetUsers)
		events = append(events, &clone)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})

	// Limit keeps the most recent events, still in ascending order.
	if opts.Limit > 0 && len(events) > opts.Limit {
		events = events[len(events)-opts.Limit:]
	}

	return events, nil
}

// StaffRepository serves staff lookups from the seeded in-memory set.
type StaffRepository struct {
	store *store
}

func (r *StaffRepository) GetByID(ctx context.Context, id string) (*models.Staff, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	staff, ok := r.store.staff[id]
	if !ok {
		return nil, persistence.ErrStaffNotFound
	}

	clone := *staff

	return &clone, nil
}

func (r *StaffRepository) ListActiveByClinic(ctx context.Context, clinicID string) ([]*models.Staff, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	staff := make([]*models.Staff, 0)

	for _, member := range r.store.staff {
		if member.ClinicID != clinicID || !member.Active {
			continue
		}

		clone := *member
		staff = append(staff, &clone)
	}

	sort.Slice(staff, func(i, j int) bool {
		return staff[i].ID < staff[j].ID
	})

	return staff, nil
}
