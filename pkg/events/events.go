// Package events defines the event type vocabulary for pipeline notifications.
package events

import "github.com/clinicflow/clinicflow/pkg/models"

// Topic is the broker topic all pipeline events are delivered on.
const Topic = "clinicflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

// Event types carried in models.Event.EventType. The durable record is the
// source of truth; delivery over a broker or socket is best effort on top.
const (
	CustomerScanned      = "customer_scanned"
	TreatmentCompleted   = "treatment_completed"
	PaymentReceived      = "payment_received"
	AppointmentScheduled = "appointment_scheduled"
	UpsellOpportunity    = "upsell_opportunity"
	TaskAssigned         = "task_assigned"
	WorkflowUpdated      = "workflow_updated"
	WorkflowCancelled    = "workflow_cancelled"
)

// ForAction maps a completed transition to the extra notification it emits,
// beyond the workflow_updated event every transition produces. Empty means no
// extra event.
func ForAction(action models.ActionType) string {
	switch action {
	case models.ActionScanCustomer:
		return CustomerScanned
	case models.ActionConfirmPayment:
		return PaymentReceived
	case models.ActionScheduleAppointment:
		return AppointmentScheduled
	case models.ActionCompleteTreatment:
		return TreatmentCompleted
	case models.ActionSendFollowUp:
		return UpsellOpportunity
	case models.ActionCancelWorkflow:
		return WorkflowCancelled
	default:
		return ""
	}
}
