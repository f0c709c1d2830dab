// Package memory provides an in-memory persistence implementation, used for
// tests and local development.
package memory

import (
	"context"
	"sync"

	"github.com/clinicflow/clinicflow/pkg/models"
	"github.com/clinicflow/clinicflow/pkg/persistence"
)

// store holds all entity maps under one lock so cross-entity checks (such as
// the duplicate-active-workflow guard) are atomic.
type store struct {
	mu        sync.RWMutex
	workflows map[string]*models.WorkflowState
	actions   map[string][]*models.WorkflowAction
	tasks     map[string]*models.Task
	events    map[string][]*models.Event
	staff     map[string]*models.Staff
	actionSeq int64
}

// Persistence implements the persistence.Persistence interface in memory.
type Persistence struct {
	workflowRepo *WorkflowRepository
	actionRepo   *ActionRepository
	taskRepo     *TaskRepository
	eventRepo    *EventRepository
	staffRepo    *StaffRepository
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence() *Persistence {
	s := &store{
		workflows: make(map[string]*models.WorkflowState),
		actions:   make(map[string][]*models.WorkflowAction),
		tasks:     make(map[string]*models.Task),
		events:    make(map[string][]*models.Event),
		staff:     make(map[string]*models.Staff),
	}

	return &Persistence{
		workflowRepo: &WorkflowRepository{store: s},
		actionRepo:   &ActionRepository{store: s},
		taskRepo:     &TaskRepository{store: s},
		eventRepo:    &EventRepository{store: s},
		staffRepo:    &StaffRepository{store: s},
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ActionRepository() persistence.ActionRepository {
	return p.actionRepo
}

func (p *Persistence) TaskRepository() persistence.TaskRepository {
	return p.taskRepo
}

func (p *Persistence) EventRepository() persistence.EventRepository {
	return p.eventRepo
}

func (p *Persistence) StaffRepository() persistence.StaffRepository {
	return p.staffRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// SeedStaff loads staff rows directly, bypassing the read-only repository
// surface. Intended for tests and local development fixtures.
func (p *Persistence) SeedStaff(staff ...*models.Staff) {
	s := p.staffRepo.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, member := range staff {
		clone := *member
		s.staff[member.ID] = &clone
	}
}
