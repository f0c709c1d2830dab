package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/clinicflow/pkg/models"
)

func TestStage_Terminal(t *testing.T) {
	t.Parallel()

	for _, stage := range models.Stages {
		terminal := stage == models.StageCompleted || stage == models.StageCancelled
		assert.Equal(t, terminal, stage.Terminal(), "stage %s", stage)
	}
}

func TestActiveStages(t *testing.T) {
	t.Parallel()

	active := models.ActiveStages()
	assert.Len(t, active, len(models.Stages)-2)
	assert.NotContains(t, active, models.StageCompleted)
	assert.NotContains(t, active, models.StageCancelled)
}

func TestStage_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, models.StageLeadCreated.Valid())
	assert.True(t, models.StageCancelled.Valid())
	assert.False(t, models.Stage("limbo").Valid())
}

func TestTransitions_FormLinearPipeline(t *testing.T) {
	t.Parallel()

	// Each edge starts where the previous one ended, lead_created through
	// completed.
	require.NotEmpty(t, models.Transitions)
	assert.Equal(t, models.StageLeadCreated, models.Transitions[0].From)
	assert.Equal(t, models.StageCompleted, models.Transitions[len(models.Transitions)-1].To)

	for i := 1; i < len(models.Transitions); i++ {
		assert.Equal(t, models.Transitions[i-1].To, models.Transitions[i].From)
	}

	seen := make(map[models.ActionType]bool)
	for _, edge := range models.Transitions {
		assert.False(t, seen[edge.Action], "action %s maps to more than one edge", edge.Action)
		seen[edge.Action] = true
	}
}

func TestTransitionFor(t *testing.T) {
	t.Parallel()

	edge, ok := models.TransitionFor(models.ActionConfirmPayment)
	require.True(t, ok)
	assert.Equal(t, models.StageProposalSent, edge.From)
	assert.Equal(t, models.StagePaymentConfirmed, edge.To)

	_, ok = models.TransitionFor(models.ActionCancelWorkflow)
	assert.False(t, ok, "cancellation has no fixed source stage")

	_, ok = models.TransitionFor(models.ActionWorkflowCreated)
	assert.False(t, ok, "the creation log entry is not a graph edge")

	_, ok = models.TransitionFor(models.ActionType("teleport"))
	assert.False(t, ok)
}

func TestTaskStatus_CanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from models.TaskStatus
		to   models.TaskStatus
		want bool
	}{
		{models.TaskStatusPending, models.TaskStatusInProgress, true},
		{models.TaskStatusPending, models.TaskStatusCompleted, true},
		{models.TaskStatusPending, models.TaskStatusCancelled, true},
		{models.TaskStatusInProgress, models.TaskStatusCompleted, true},
		{models.TaskStatusInProgress, models.TaskStatusCancelled, true},
		{models.TaskStatusInProgress, models.TaskStatusPending, false},
		{models.TaskStatusCompleted, models.TaskStatusInProgress, false},
		{models.TaskStatusCompleted, models.TaskStatusCancelled, false},
		{models.TaskStatusCancelled, models.TaskStatusPending, false},
		{models.TaskStatusPending, models.TaskStatusPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, models.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTaskPriority_Weight(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 10.0, models.PriorityLow.Weight())
	assert.Equal(t, 20.0, models.PriorityMedium.Weight())
	assert.Equal(t, 30.0, models.PriorityHigh.Weight())
	assert.Equal(t, 40.0, models.PriorityUrgent.Weight())
	assert.Equal(t, 0.0, models.TaskPriority("whenever").Weight())
}

func TestTaskTemplates_CoverAllTaskTypes(t *testing.T) {
	t.Parallel()

	for taskType, template := range models.TaskTemplates {
		assert.Equal(t, taskType, template.TaskType)
		assert.True(t, template.DefaultPriority.Valid(), "template %s", taskType)
		assert.NotEmpty(t, template.Title, "template %s", taskType)
	}
}

func TestTaskTemplate_RenderTitle(t *testing.T) {
	t.Parallel()

	template := models.TaskTemplates[models.TaskTreatmentSession]
	assert.Equal(t, "Treatment session: Mdm Tan", template.RenderTitle("Mdm Tan"))
}

func TestStageTasks_ReferenceKnownTemplates(t *testing.T) {
	t.Parallel()

	for stage, spec := range models.StageTasks {
		_, ok := models.TaskTemplates[spec.TaskType]
		assert.True(t, ok, "stage %s references unknown template %s", stage, spec.TaskType)
		assert.False(t, stage.Terminal(), "terminal stage %s must not spawn tasks", stage)
	}

	// Scheduling hands the session task to the chosen beautician.
	assert.Equal(t, "beautician_id", models.StageTasks[models.StagePaymentConfirmed].AssigneeFromActionData)
}

func TestWorkflowState_Active(t *testing.T) {
	t.Parallel()

	workflow := &models.WorkflowState{CurrentStage: models.StageInTreatment}
	assert.True(t, workflow.Active())

	workflow.CurrentStage = models.StageCancelled
	assert.False(t, workflow.Active())
}

func TestTask_Open(t *testing.T) {
	t.Parallel()

	task := &models.Task{Status: models.TaskStatusPending}
	assert.True(t, task.Open())

	task.Status = models.TaskStatusInProgress
	assert.True(t, task.Open())

	task.Status = models.TaskStatusCompleted
	assert.False(t, task.Open())
}
