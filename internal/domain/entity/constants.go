package entity

// Status codes used by the engine. Other codes are defined by workflow configuration.
const (
	StatusPending  = "PENDING"
	StatusClosed   = "CLOSED"
	StatusRejected = "REJECTED"
)

// Action codes with built-in meaning
const (
	ActionSubmit          = "SUBMIT"
	ActionApprove         = "APPROVE"
	ActionReject          = "REJECT"
	ActionITProcess       = "IT_PROCESS"
	ActionConfirmComplete = "CONFIRM_COMPLETE"
)

// Notification template kinds handed to the mail collaborator
const (
	TemplateApprovalRequired = "APPROVAL_REQUIRED"
	TemplateStatusChanged    = "STATUS_CHANGED"
	TemplateRequestRejected  = "REQUEST_REJECTED"
	TemplateRequestClosed    = "REQUEST_CLOSED"
)

// IsTerminalStatus reports whether a status code permits no further transitions
func IsTerminalStatus(code string) bool {
	return code == StatusClosed || code == StatusRejected
}
