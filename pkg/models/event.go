package models

import "time"

// Event is a durable notification record. Append-only, ordered per workflow
// by CreatedAt.
type Event struct {
	ID           string         `json:"id"`
	WorkflowID   string         `json:"workflow_id"`
	EventType    string         `json:"event_type"`
	SourceUserID string         `json:"source_user_id"`
	TargetUsers  []string       `json:"target_users"`
	Data         map[string]any `json:"data,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
