package taskqueue

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/clinicflow/clinicflow/pkg/models"
	"github.com/clinicflow/clinicflow/pkg/persistence"
)

const (
	maxOverdueBoost = 50.0
	overduePerDay   = 5.0
	maxAgeBoost     = 10.0
	hoursPerDay     = 24
)

// priorityScore derives the queue ranking of a task at the given instant:
// priority weight, plus an overdue boost of 5 per whole day late capped at
// 50, plus an age boost of 1 per whole day since creation capped at 10.
// Deterministic and idempotent for a fixed clock.
func priorityScore(task *models.Task, now time.Time) float64 {
	score := task.Priority.Weight()

	if task.DueDate != nil && now.After(*task.DueDate) {
		daysOverdue := float64(int(now.Sub(*task.DueDate).Hours() / hoursPerDay))
		score += math.Min(maxOverdueBoost, daysOverdue*overduePerDay)
	}

	daysSinceCreated := float64(int(now.Sub(task.CreatedAt).Hours() / hoursPerDay))
	score += math.Min(maxAgeBoost, daysSinceCreated)

	return score
}

// Reprioritize recomputes the priority score of every open task in the
// clinic. Rows modified concurrently mid-scan are skipped. Returns the number
// of tasks whose score changed.
func (m *Manager) Reprioritize(ctx context.Context, clinicID string) (int, error) {
	tasks, err := m.tasks.ListByClinic(ctx, clinicID,
		[]models.TaskStatus{models.TaskStatusPending, models.TaskStatusInProgress})
	if err != nil {
		return 0, fmt.Errorf("failed to list open tasks: %w", err)
	}

	now := m.now()
	updated := 0

	for _, task := range tasks {
		score := priorityScore(task, now)
		if score == task.PriorityScore {
			continue
		}

		fromVersion := task.Version
		task.PriorityScore = score

		err = m.tasks.UpdateCAS(ctx, task, fromVersion)
		if err != nil {
			if persistence.IsConcurrentModification(err) {
				m.logger.WarnContext(ctx, "Skipping concurrently modified task",
					"task_id", task.ID)

				continue
			}

			return updated, err
		}

		updated++
	}

	return updated, nil
}

// AutoAssign assigns every unassigned pending task in the clinic to the
// active staff member with the fewest open tasks. Ties go to the earliest
// staff id, and load counts are updated as the scan proceeds, so the outcome
// is deterministic. Returns the number of tasks assigned.
func (m *Manager) AutoAssign(ctx context.Context, clinicID string) (int, error) {
	staff, err := m.staff.ListActiveByClinic(ctx, clinicID)
	if err != nil {
		return 0, fmt.Errorf("failed to list active staff: %w", err)
	}

	if len(staff) == 0 {
		return 0, nil
	}

	counts, err := m.tasks.CountOpenByAssignee(ctx, clinicID)
	if err != nil {
		return 0, fmt.Errorf("failed to count open tasks: %w", err)
	}

	unassigned, err := m.tasks.ListUnassigned(ctx, clinicID)
	if err != nil {
		return 0, fmt.Errorf("failed to list unassigned tasks: %w", err)
	}

	assigned := 0

	for _, task := range unassigned {
		// Staff are ordered by id, so the first minimum wins ties.
		pick := staff[0]
		for _, member := range staff[1:] {
			if counts[member.ID] < counts[pick.ID] {
				pick = member
			}
		}

		fromVersion := task.Version
		task.AssignedTo = pick.ID

		err = m.tasks.UpdateCAS(ctx, task, fromVersion)
		if err != nil {
			if persistence.IsConcurrentModification(err) {
				m.logger.WarnContext(ctx, "Skipping concurrently modified task",
					"task_id", task.ID)

				continue
			}

			return assigned, err
		}

		counts[pick.ID]++
		assigned++

		m.notifyAssignment(ctx, task)
	}

	return assigned, nil
}
