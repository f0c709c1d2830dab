package models

import "time"

// ActionType names a transition in the pipeline. Each action type maps to
// exactly one edge of the stage graph; an action is only legal when the
// workflow sits at the edge's source stage.
type ActionType string

const (
	ActionScanCustomer        ActionType = "scan_customer"
	ActionSendProposal        ActionType = "send_proposal"
	ActionConfirmPayment      ActionType = "confirm_payment"
	ActionScheduleAppointment ActionType = "schedule_appointment"
	ActionStartTreatment      ActionType = "start_treatment"
	ActionCompleteTreatment   ActionType = "complete_treatment"
	ActionSendFollowUp        ActionType = "send_follow_up"
	ActionCloseCase           ActionType = "close_case"

	// ActionCancelWorkflow is legal from any non-terminal stage.
	ActionCancelWorkflow ActionType = "cancel_workflow"

	// ActionWorkflowCreated is the synthetic initial log entry written when a
	// workflow is created; it is not part of the transition graph.
	ActionWorkflowCreated ActionType = "workflow_created"
)

// Transition is one edge of the closed stage graph.
type Transition struct {
	From   Stage
	To     Stage
	Action ActionType
}

// Transitions is the closed edge set of the pipeline. Invalid transitions are
// structurally unrepresentable: resolution goes action -> edge, never via a
// caller-supplied destination stage.
var Transitions = []Transition{
	{From: StageLeadCreated, To: StageScanned, Action: ActionScanCustomer},
	{From: StageScanned, To: StageProposalSent, Action: ActionSendProposal},
	{From: StageProposalSent, To: StagePaymentConfirmed, Action: ActionConfirmPayment},
	{From: StagePaymentConfirmed, To: StageTreatmentScheduled, Action: ActionScheduleAppointment},
	{From: StageTreatmentScheduled, To: StageInTreatment, Action: ActionStartTreatment},
	{From: StageInTreatment, To: StageTreatmentCompleted, Action: ActionCompleteTreatment},
	{From: StageTreatmentCompleted, To: StageFollowUp, Action: ActionSendFollowUp},
	{From: StageFollowUp, To: StageCompleted, Action: ActionCloseCase},
}

// TransitionFor resolves the edge implied by an action type. Cancellation is
// handled separately because its source stage is not fixed.
func TransitionFor(action ActionType) (Transition, bool) {
	for _, t := range Transitions {
		if t.Action == action {
			return t, true
		}
	}

	return Transition{}, false
}

// WorkflowAction is an append-only transition log entry. Immutable once
// written; totally ordered per workflow by CreatedAt with insertion sequence
// breaking ties.
type WorkflowAction struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	ActionType  ActionType     `json:"action_type"`
	FromStage   Stage          `json:"from_stage"`
	ToStage     Stage          `json:"to_stage"`
	PerformedBy string         `json:"performed_by"`
	ActionData  map[string]any `json:"action_data,omitempty"`
	Notes       string         `json:"notes,omitempty"`

	// Seq is the insertion sequence assigned by the store, used only as the
	// CreatedAt tiebreaker.
	Seq int64 `json:"seq"`

	CreatedAt time.Time `json:"created_at"`
}
