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

// TaskRepository stores task rows in memory.
type TaskRepository struct {
	store *store
}

func cloneTask(task *models.Task) *models.Task {
	clone := *task
	clone.Notes = slices.Clone(task.Notes)

	return &clone
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

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

	r.store.tasks[task.ID] = cloneTask(task)

	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	task, ok := r.store.tasks[id]
	if !ok {
		return nil, persistence.ErrTaskNotFound
	}

	return cloneTask(task), nil
}

func (r *TaskRepository) UpdateCAS(ctx context.Context, task *models.Task, fromVersion int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.tasks[task.ID]
	if !ok {
		return persistence.ErrTaskNotFound
	}

	if stored.Version != fromVersion {
		return persistence.ErrConcurrentModification
	}

	task.Version = fromVersion + 1
	task.UpdatedAt = time.Now().UTC()

	r.store.tasks[task.ID] = cloneTask(task)

	return nil
}

func (r *TaskRepository) ListByAssignee(ctx context.Context, userID string, opts persistence.ListTasksOptions) ([]*models.Task, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tasks := make([]*models.Task, 0)

	for _, task := range r.store.tasks {
		if task.AssignedTo != userID {
			continue
		}

		if len(opts.Statuses) > 0 && !slices.Contains(opts.Statuses, task.Status) {
			continue
		}

		if len(opts.Priorities) > 0 && !slices.Contains(opts.Priorities, task.Priority) {
			continue
		}

		tasks = append(tasks, cloneTask(task))
	}

	sortByQueueOrder(tasks)

	if opts.Limit > 0 && len(tasks) > opts.Limit {
		tasks = tasks[:opts.Limit]
	}

	return tasks, nil
}

// sortByQueueOrder orders by priority score descending, then due date
// ascending with undated tasks last, then creation time ascending.
func sortByQueueOrder(tasks []*models.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]

		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}

		switch {
		case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate == nil && b.DueDate != nil:
			return false
		}

		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func (r *TaskRepository) ListByWorkflow(ctx context.Context, workflowID string, includeCompleted bool) ([]*models.Task, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tasks := make([]*models.Task, 0)

	for _, task := range r.store.tasks {
		if task.WorkflowID != workflowID {
			continue
		}

		if !includeCompleted && task.Status.Final() {
			continue
		}

		tasks = append(tasks, cloneTask(task))
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}

func (r *TaskRepository) ListByClinic(ctx context.Context, clinicID string, statuses []models.TaskStatus) ([]*models.Task, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tasks := make([]*models.Task, 0)

	for _, task := range r.store.tasks {
		if task.ClinicID != clinicID {
			continue
		}

		if len(statuses) > 0 && !slices.Contains(statuses, task.Status) {
			continue
		}

		tasks = append(tasks, cloneTask(task))
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}

func (r *TaskRepository) ListUnassigned(ctx context.Context, clinicID string) ([]*models.Task, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tasks := make([]*models.Task, 0)

	for _, task := range r.store.tasks {
		if task.ClinicID != clinicID || task.AssignedTo != "" || task.Status != models.TaskStatusPending {
			continue
		}

		tasks = append(tasks, cloneTask(task))
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}

func (r *TaskRepository) CountOpenByAssignee(ctx context.Context, clinicID string) (map[string]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	counts := make(map[string]int)

	for _, task := range r.store.tasks {
		if task.ClinicID != clinicID || task.AssignedTo == "" || !task.Open() {
			continue
		}

		counts[task.AssignedTo]++
	}

	return counts, nil
}
