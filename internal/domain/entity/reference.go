package entity

import "time"

// Category classifies a change request and owns its workflow configuration
type Category struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	RequiresFinalClosing bool      `json:"requires_final_closing"`
	CreatedAt            time.Time `json:"created_at"`
}

// CorrectionType is an optional sub-classification of a category with its own workflow
type CorrectionType struct {
	ID         int64  `json:"id"`
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
}

// Status is a named state a request can occupy
type Status struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	DisplayOrder int    `json:"display_order"`
}

// IsTerminal returns true for CLOSED and REJECTED
func (s *Status) IsTerminal() bool {
	return IsTerminalStatus(s.Code)
}

// Role is an approver role. A user holds exactly one.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Action is an operation an actor may perform on a request
type Action struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Department groups requesters and approvers for department scoping
type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is a directory entry used to resolve notification recipients
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	RoleID       int64  `json:"role_id"`
	RoleName     string `json:"role_name"`
	DepartmentID int64  `json:"department_id"`
}
