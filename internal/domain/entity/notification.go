package entity

// NotificationInstruction tells the dispatcher who to notify about a request and how
type NotificationInstruction struct {
	Template        string `json:"template"`
	RecipientUserID int64  `json:"recipient_user_id"`
	RequestID       int64  `json:"request_id"`
	Action          string `json:"action,omitempty"`
	Comment         string `json:"comment,omitempty"`
}
