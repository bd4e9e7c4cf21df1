package entity

import "time"

// Request is an F07 change-request ticket moving through the approval chain.
// Status mirrors the code of CurrentStatusID and is always written with it.
type Request struct {
	ID                  int64     `json:"id"`
	DocumentNo          string    `json:"document_no"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	CategoryID          int64     `json:"category_id"`
	CorrectionTypeID    *int64    `json:"correction_type_id,omitempty"`
	DepartmentID        int64     `json:"department_id"`
	RequesterID         int64     `json:"requester_id"`
	CurrentStatusID     int64     `json:"current_status_id"`
	Status              string    `json:"status"`
	CurrentApprovalStep int       `json:"current_approval_step"`
	ApprovalToken       *string   `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// IsTerminal returns true once the request is CLOSED or REJECTED
func (r *Request) IsTerminal() bool {
	return IsTerminalStatus(r.Status)
}

// SameCorrectionType compares correction types treating nil as its own key
func SameCorrectionType(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// RequestTransition is the write applied by the executor in one statement
type RequestTransition struct {
	RequestID        int64
	ExpectedStatusID int64
	NextStatusID     int64
	NextStatusCode   string
	NextStep         int
	ClearToken       bool
}
