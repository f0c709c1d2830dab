package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/clinicflow/clinicflow/pkg/models"
	"github.com/clinicflow/clinicflow/pkg/persistence"
	"github.com/clinicflow/clinicflow/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"workflow_events", "workflow_actions", "tasks", "staff", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("clinicflow_test"),
			postgres.WithUsername("clinicflow"),
			postgres.WithPassword("clinicflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func seedStaff(ctx context.Context, t *testing.T, databaseURL string, staff ...*models.Staff) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, member := range staff {
		_, err = db.ExecContext(ctx,
			"INSERT INTO staff (id, clinic_id, name, role, active) VALUES ($1, $2, $3, $4, $5)",
			member.ID, member.ClinicID, member.Name, member.Role, member.Active)
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	for _, table := range []string{"workflows", "workflow_actions", "tasks", "workflow_events", "staff"} {
		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table+" table should exist")
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestWorkflowRepository_CreateAndGet(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := &models.WorkflowState{
		ClinicID:        "clinic-1",
		CustomerID:      "customer-1",
		CustomerName:    "Mdm Tan",
		CustomerEmail:   "tan@example.com",
		CurrentStage:    models.StageLeadCreated,
		AssignedSalesID: "sales-1",
		Metadata:        map[string]any{"source": "walk-in"},
		Version:         1,
	}

	err := p.WorkflowRepository().Create(ctx, workflow)
	require.NoError(t, err)
	assert.NotEmpty(t, workflow.ID)
	assert.False(t, workflow.CreatedAt.IsZero())

	retrieved, err := p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.CustomerName, retrieved.CustomerName)
	assert.Equal(t, models.StageLeadCreated, retrieved.CurrentStage)
	assert.Equal(t, int64(1), retrieved.Version)
	assert.Equal(t, "walk-in", retrieved.Metadata["source"])

	_, err = p.WorkflowRepository().GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_DuplicateActive(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	first := &models.WorkflowState{
		ClinicID:     "clinic-1",
		CustomerID:   "customer-1",
		CustomerName: "Mdm Tan",
		CurrentStage: models.StageLeadCreated,
		Version:      1,
	}
	require.NoError(t, p.WorkflowRepository().Create(ctx, first))

	second := &models.WorkflowState{
		ClinicID:     "clinic-1",
		CustomerID:   "customer-1",
		CustomerName: "Mdm Tan",
		CurrentStage: models.StageLeadCreated,
		Version:      1,
	}
	err := p.WorkflowRepository().Create(ctx, second)
	assert.ErrorIs(t, err, persistence.ErrDuplicateActiveWorkflow)

	// A second journey is allowed once the first one ends.
	_, err = p.WorkflowRepository().UpdateStageCAS(ctx, first.ID, 1, models.StageCancelled)
	require.NoError(t, err)

	err = p.WorkflowRepository().Create(ctx, second)
	assert.NoError(t, err)
}

func TestWorkflowRepository_UpdateStageCAS(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := &models.WorkflowState{
		ClinicID:     "clinic-1",
		CustomerID:   "customer-1",
		CustomerName: "Mdm Tan",
		CurrentStage: models.StageLeadCreated,
		Version:      1,
	}
	require.NoError(t, p.WorkflowRepository().Create(ctx, workflow))

	updated, err := p.WorkflowRepository().UpdateStageCAS(ctx, workflow.ID, 1, models.StageScanned)
	require.NoError(t, err)
	assert.Equal(t, models.StageScanned, updated.CurrentStage)
	assert.Equal(t, int64(2), updated.Version)

	// Stale version loses the race.
	_, err = p.WorkflowRepository().UpdateStageCAS(ctx, workflow.ID, 1, models.StageProposalSent)
	assert.ErrorIs(t, err, persistence.ErrConcurrentModification)

	_, err = p.WorkflowRepository().UpdateStageCAS(ctx, uuid.NewString(), 1, models.StageScanned)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestActionRepository_AppendAndList(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := &models.WorkflowState{
		ClinicID:     "clinic-1",
		CustomerID:   "customer-1",
		CustomerName: "Mdm Tan",
		CurrentStage: models.StageLeadCreated,
		Version:      1,
	}
	require.NoError(t, p.WorkflowRepository().Create(ctx, workflow))

	now := time.Now().UTC().Truncate(time.Microsecond)

	for i, actionType := range []models.ActionType{models.ActionWorkflowCreated, models.ActionScanCustomer} {
		action := &models.WorkflowAction{
			WorkflowID:  workflow.ID,
			ActionType:  actionType,
			FromStage:   models.StageLeadCreated,
			ToStage:     models.StageLeadCreated,
			PerformedBy: "sales-1",
			CreatedAt:   now, // same timestamp, seq breaks the tie
			ActionData:  map[string]any{"i": i},
		}
		require.NoError(t, p.ActionRepository().Append(ctx, action))
	}

	actions, err := p.ActionRepository().ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, models.ActionWorkflowCreated, actions[0].ActionType)
	assert.Equal(t, models.ActionScanCustomer, actions[1].ActionType)
	assert.Less(t, actions[0].Seq, actions[1].Seq)
}

func TestTaskRepository_Lifecycle(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := &models.WorkflowState{
		ClinicID:     "clinic-1",
		CustomerID:   "customer-1",
		CustomerName: "Mdm Tan",
		CurrentStage: models.StageLeadCreated,
		Version:      1,
	}
	require.NoError(t, p.WorkflowRepository().Create(ctx, workflow))

	due := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Microsecond)
	task := &models.Task{
		WorkflowID:    workflow.ID,
		ClinicID:      "clinic-1",
		AssignedTo:    "sales-1",
		TaskType:      models.TaskProposalReview,
		Title:         "Review proposal: Mdm Tan",
		Priority:      models.PriorityHigh,
		PriorityScore: 30,
		Status:        models.TaskStatusPending,
		DueDate:       &due,
		Version:       1,
	}
	require.NoError(t, p.TaskRepository().Create(ctx, task))

	retrieved, err := p.TaskRepository().GetByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved.DueDate)
	assert.Equal(t, due.Unix(), retrieved.DueDate.Unix())

	retrieved.Status = models.TaskStatusInProgress
	require.NoError(t, p.TaskRepository().UpdateCAS(ctx, retrieved, 1))

	// Stale update is rejected.
	stale := *retrieved
	err = p.TaskRepository().UpdateCAS(ctx, &stale, 1)
	assert.ErrorIs(t, err, persistence.ErrConcurrentModification)

	counts, err := p.TaskRepository().CountOpenByAssignee(ctx, "clinic-1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts["sales-1"])
}

func TestTaskRepository_ListByAssigneeOrdering(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := &models.WorkflowState{
		ClinicID:     "clinic-1",
		CustomerID:   "customer-1",
		CustomerName: "Mdm Tan",
		CurrentStage: models.StageLeadCreated,
		Version:      1,
	}
	require.NoError(t, p.WorkflowRepository().Create(ctx, workflow))

	soon := time.Now().UTC().Add(time.Hour)
	later := time.Now().UTC().Add(48 * time.Hour)

	for _, task := range []*models.Task{
		{WorkflowID: workflow.ID, ClinicID: "clinic-1", AssignedTo: "sales-1", TaskType: models.TaskFollowUpCall, Title: "low", Priority: models.PriorityLow, PriorityScore: 10, Status: models.TaskStatusPending, Version: 1},
		{WorkflowID: workflow.ID, ClinicID: "clinic-1", AssignedTo: "sales-1", TaskType: models.TaskSendProposal, Title: "high-later", Priority: models.PriorityHigh, PriorityScore: 30, Status: models.TaskStatusPending, DueDate: &later, Version: 1},
		{WorkflowID: workflow.ID, ClinicID: "clinic-1", AssignedTo: "sales-1", TaskType: models.TaskSendProposal, Title: "high-soon", Priority: models.PriorityHigh, PriorityScore: 30, Status: models.TaskStatusPending, DueDate: &soon, Version: 1},
	} {
		require.NoError(t, p.TaskRepository().Create(ctx, task))
	}

	tasks, err := p.TaskRepository().ListByAssignee(ctx, "sales-1", persistence.ListTasksOptions{})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "high-soon", tasks[0].Title)
	assert.Equal(t, "high-later", tasks[1].Title)
	assert.Equal(t, "low", tasks[2].Title)
}

func TestEventRepository_AppendAndList(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflowID := uuid.NewString()
	base := time.Now().UTC().Add(-time.Hour)

	for i := range 5 {
		event := &models.Event{
			WorkflowID:  workflowID,
			EventType:   "workflow_updated",
			TargetUsers: []string{"sales-1", "owner-1"},
			Data:        map[string]any{"n": i},
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, p.EventRepository().Append(ctx, event))
	}

	// Limit keeps the most recent events, returned ascending.
	events, err := p.EventRepository().ListByWorkflow(ctx, workflowID, persistence.ListEventsOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, float64(2), events[0].Data["n"])
	assert.Equal(t, float64(4), events[2].Data["n"])
	assert.Equal(t, []string{"sales-1", "owner-1"}, events[0].TargetUsers)
}

func TestStaffRepository(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	seedStaff(ctx, t, databaseURL,
		&models.Staff{ID: "staff-b", ClinicID: "clinic-1", Name: "B", Role: models.RoleSalesStaff, Active: true},
		&models.Staff{ID: "staff-a", ClinicID: "clinic-1", Name: "A", Role: models.RoleBeautician, Active: true},
		&models.Staff{ID: "staff-c", ClinicID: "clinic-1", Name: "C", Role: models.RoleSalesStaff, Active: false},
	)

	member, err := p.StaffRepository().GetByID(ctx, "staff-a")
	require.NoError(t, err)
	assert.Equal(t, models.RoleBeautician, member.Role)

	_, err = p.StaffRepository().GetByID(ctx, "nobody")
	assert.ErrorIs(t, err, persistence.ErrStaffNotFound)

	active, err := p.StaffRepository().ListActiveByClinic(ctx, "clinic-1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "staff-a", active[0].ID)
	assert.Equal(t, "staff-b", active[1].ID)
}
