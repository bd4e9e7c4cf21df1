package entity

import "time"

// ApprovalHistory is the audit trail of actions taken on a request
type ApprovalHistory struct {
	ID           int64     `json:"id"`
	RequestID    int64     `json:"request_id"`
	ActorID      int64     `json:"actor_id"`
	ActionCode   string    `json:"action_code"`
	FromStatus   string    `json:"from_status"`
	ToStatus     string    `json:"to_status"`
	StepSequence int       `json:"step_sequence"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
