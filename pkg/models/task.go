package models

import (
	"strings"
	"time"
)

// TaskType names a unit of staff work, usually spawned by a transition.
type TaskType string

const (
	TaskFollowUpCall        TaskType = "follow_up_call"
	TaskTreatmentSession    TaskType = "treatment_session"
	TaskProposalReview      TaskType = "proposal_review"
	TaskScanCustomer        TaskType = "scan_customer"
	TaskSendProposal        TaskType = "send_proposal"
	TaskPrepareTreatment    TaskType = "prepare_treatment"
	TaskFollowUpUpsell      TaskType = "follow_up_upsell"
	TaskCustomerFollowUp    TaskType = "customer_follow_up"
	TaskPaymentReminder     TaskType = "payment_reminder"
	TaskAppointmentReminder TaskType = "appointment_reminder"
	TaskReviewRequest       TaskType = "review_request"
)

// TaskStatus is the lifecycle state of a task. Transitions are forward-only:
// pending -> in_progress -> completed, with cancelled reachable from any
// non-final status.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Final reports whether a task status admits no further transitions.
func (s TaskStatus) Final() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// CanTransition reports whether the status graph allows from -> to.
func CanTransition(from, to TaskStatus) bool {
	if from.Final() || from == to {
		return false
	}

	switch to {
	case TaskStatusInProgress:
		return from == TaskStatusPending
	case TaskStatusCompleted:
		return from == TaskStatusPending || from == TaskStatusInProgress
	case TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// TaskPriority is the coarse urgency bucket a task starts in. The fine-grained
// queue ordering uses the derived PriorityScore.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Weight is the base contribution of the priority bucket to the score.
func (p TaskPriority) Weight() float64 {
	switch p {
	case PriorityLow:
		return 10
	case PriorityMedium:
		return 20
	case PriorityHigh:
		return 30
	case PriorityUrgent:
		return 40
	default:
		return 0
	}
}

// Valid reports whether the priority is one of the defined values.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// TaskNote is one entry of a task's append-only note history.
type TaskNote struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is a discrete unit of staff work. Tasks are never physically deleted;
// completed and cancelled tasks are retained for audit.
type Task struct {
	ID           string       `json:"id"`
	WorkflowID   string       `json:"workflow_id"   validate:"required"`
	ClinicID     string       `json:"clinic_id"`
	AssignedTo   string       `json:"assigned_to"` // empty until assigned
	TaskType     TaskType     `json:"task_type"     validate:"required"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	CustomerName string       `json:"customer_name"`
	Priority     TaskPriority `json:"priority"`

	// PriorityScore is derived: priority weight + overdue boost + age boost.
	// Recomputed by reprioritization, deterministic and idempotent.
	PriorityScore float64 `json:"priority_score"`

	Status            TaskStatus     `json:"status"`
	DueDate           *time.Time     `json:"due_date,omitempty"`
	EstimatedDuration int            `json:"estimated_duration,omitempty"` // minutes
	TaskData          map[string]any `json:"task_data,omitempty"`
	Notes             []TaskNote     `json:"notes,omitempty"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	CompletedBy       string         `json:"completed_by,omitempty"`

	// Version guards conditional updates; bulk scans skip rows whose version
	// moved underneath them.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open reports whether the task still counts toward a staff member's load.
func (t *Task) Open() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusInProgress
}

// TaskTemplate describes how tasks of a type are created.
type TaskTemplate struct {
	TaskType          TaskType
	Title             string // {customerName} is substituted
	Description       string
	DefaultPriority   TaskPriority
	EstimatedDuration int // minutes
}

// TaskTemplates holds the creation defaults per task type.
var TaskTemplates = map[TaskType]TaskTemplate{
	TaskFollowUpCall: {
		TaskType:          TaskFollowUpCall,
		Title:             "Follow-up call: {customerName}",
		Description:       "Call the customer to check in on their treatment progress",
		DefaultPriority:   PriorityMedium,
		EstimatedDuration: 10,
	},
	TaskTreatmentSession: {
		TaskType:          TaskTreatmentSession,
		Title:             "Treatment session: {customerName}",
		Description:       "Run the scheduled treatment session",
		DefaultPriority:   PriorityHigh,
		EstimatedDuration: 90,
	},
	TaskProposalReview: {
		TaskType:          TaskProposalReview,
		Title:             "Review proposal: {customerName}",
		Description:       "Review the generated treatment proposal before it is sent",
		DefaultPriority:   PriorityHigh,
		EstimatedDuration: 30,
	},
	TaskScanCustomer: {
		TaskType:          TaskScanCustomer,
		Title:             "Skin scan: {customerName}",
		Description:       "Scan the customer's skin and record the analysis",
		DefaultPriority:   PriorityHigh,
		EstimatedDuration: 15,
	},
	TaskSendProposal: {
		TaskType:          TaskSendProposal,
		Title:             "Send proposal: {customerName}",
		Description:       "Prepare and send the treatment proposal from the scan results",
		DefaultPriority:   PriorityHigh,
		EstimatedDuration: 30,
	},
	TaskPrepareTreatment: {
		TaskType:          TaskPrepareTreatment,
		Title:             "Prepare treatment: {customerName}",
		Description:       "Prepare equipment and room for the treatment",
		DefaultPriority:   PriorityMedium,
		EstimatedDuration: 20,
	},
	TaskFollowUpUpsell: {
		TaskType:          TaskFollowUpUpsell,
		Title:             "Upsell follow-up: {customerName}",
		Description:       "Contact the customer after treatment and offer additional services",
		DefaultPriority:   PriorityMedium,
		EstimatedDuration: 10,
	},
	TaskCustomerFollowUp: {
		TaskType:          TaskCustomerFollowUp,
		Title:             "Customer follow-up: {customerName}",
		Description:       "Check satisfaction and treatment results",
		DefaultPriority:   PriorityLow,
		EstimatedDuration: 5,
	},
	TaskPaymentReminder: {
		TaskType:          TaskPaymentReminder,
		Title:             "Payment reminder: {customerName}",
		Description:       "Remind the customer about the outstanding treatment payment",
		DefaultPriority:   PriorityHigh,
		EstimatedDuration: 5,
	},
	TaskAppointmentReminder: {
		TaskType:          TaskAppointmentReminder,
		Title:             "Appointment reminder: {customerName}",
		Description:       "Remind the customer about the upcoming appointment",
		DefaultPriority:   PriorityMedium,
		EstimatedDuration: 3,
	},
	TaskReviewRequest: {
		TaskType:          TaskReviewRequest,
		Title:             "Request review: {customerName}",
		Description:       "Ask the customer to rate and review the service",
		DefaultPriority:   PriorityLow,
		EstimatedDuration: 5,
	},
}

// RenderTitle substitutes the customer name into the template title.
func (t TaskTemplate) RenderTitle(customerName string) string {
	return strings.ReplaceAll(t.Title, "{customerName}", customerName)
}

// StageTaskSpec describes the default follow-on task spawned when a workflow
// reaches a stage.
type StageTaskSpec struct {
	TaskType TaskType
	Priority TaskPriority

	// AssigneeFromActionData names the actionData key holding the assignee id
	// (e.g. the beautician chosen while scheduling). Empty means the
	// workflow's assigned sales staff.
	AssigneeFromActionData string

	// DueIn is the offset from the transition time for the task due date.
	// Zero means no due date.
	DueIn time.Duration
}

// StageTasks maps destination stages to their default follow-on task.
var StageTasks = map[Stage]StageTaskSpec{
	StageScanned: {
		TaskType: TaskProposalReview,
		Priority: PriorityHigh,
		DueIn:    24 * time.Hour,
	},
	StagePaymentConfirmed: {
		TaskType:               TaskTreatmentSession,
		Priority:               PriorityHigh,
		AssigneeFromActionData: "beautician_id",
	},
	StageTreatmentCompleted: {
		TaskType: TaskFollowUpUpsell,
		Priority: PriorityMedium,
		DueIn:    24 * time.Hour,
	},
	StageFollowUp: {
		TaskType: TaskFollowUpCall,
		Priority: PriorityLow,
		DueIn:    7 * 24 * time.Hour,
	},
}
