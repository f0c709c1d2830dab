// Package models defines the core domain models for the clinic pipeline
// orchestration engine: workflows, transitions, tasks, events, and staff.
package models

import "time"

// Stage represents the position of a customer journey in the pipeline graph.
type Stage string

const (
	StageLeadCreated        Stage = "lead_created"
	StageScanned            Stage = "scanned"
	StageProposalSent       Stage = "proposal_sent"
	StagePaymentConfirmed   Stage = "payment_confirmed"
	StageTreatmentScheduled Stage = "treatment_scheduled"
	StageInTreatment        Stage = "in_treatment"
	StageTreatmentCompleted Stage = "treatment_completed"
	StageFollowUp           Stage = "follow_up"
	StageCompleted          Stage = "completed"
	StageCancelled          Stage = "cancelled"
)

// Stages lists every defined stage value.
var Stages = []Stage{
	StageLeadCreated,
	StageScanned,
	StageProposalSent,
	StagePaymentConfirmed,
	StageTreatmentScheduled,
	StageInTreatment,
	StageTreatmentCompleted,
	StageFollowUp,
	StageCompleted,
	StageCancelled,
}

// ActiveStages lists the stages a workflow can still transition from.
func ActiveStages() []Stage {
	active := make([]Stage, 0, len(Stages))

	for _, stage := range Stages {
		if !stage.Terminal() {
			active = append(active, stage)
		}
	}

	return active
}

// Terminal reports whether the stage ends a workflow. Terminal workflows are
// retained but never transition again.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageCancelled
}

// Valid reports whether the stage is one of the defined stage values.
func (s Stage) Valid() bool {
	for _, stage := range Stages {
		if s == stage {
			return true
		}
	}

	return false
}

// WorkflowState is one customer's journey instance through the clinic
// pipeline. A customer has at most one active (non-terminal) workflow;
// historical workflows are retained and never deleted.
type WorkflowState struct {
	ID              string         `json:"id"`
	ClinicID        string         `json:"clinic_id"       validate:"required"`
	CustomerID      string         `json:"customer_id"     validate:"required"`
	CustomerName    string         `json:"customer_name"   validate:"required"`
	CustomerEmail   string         `json:"customer_email,omitempty"`
	CustomerPhone   string         `json:"customer_phone,omitempty"`
	CurrentStage    Stage          `json:"current_stage"`
	AssignedSalesID string         `json:"assigned_sales_id"`
	Metadata        map[string]any `json:"metadata,omitempty"`

	// Version increments on every successful transition and guards the
	// compare-and-swap stage update.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the workflow can still transition.
func (w *WorkflowState) Active() bool {
	return !w.CurrentStage.Terminal()
}
