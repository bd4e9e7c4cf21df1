package entity

// StepPolicy controls how current_approval_step moves after a rule fires
type StepPolicy string

const (
	// StepPolicyAdvance sets the step to StepSequence+1
	StepPolicyAdvance StepPolicy = "ADVANCE"
	// StepPolicyStay keeps the step at StepSequence
	StepPolicyStay StepPolicy = "STAY"
	// StepPolicyReset sets the step back to 1
	StepPolicyReset StepPolicy = "RESET"
)

// IsValid returns true if the policy is known. Empty is treated as ADVANCE.
func (p StepPolicy) IsValid() bool {
	switch p {
	case "", StepPolicyAdvance, StepPolicyStay, StepPolicyReset:
		return true
	default:
		return false
	}
}

// NextStep computes the step that follows a completed stepSequence
func (p StepPolicy) NextStep(stepSequence int) int {
	switch p {
	case StepPolicyStay:
		return stepSequence
	case StepPolicyReset:
		return 1
	default:
		return stepSequence + 1
	}
}

// TransitionRule is one configured (state, action, role) -> state edge.
// A nil CorrectionTypeID is the category's generic workflow.
type TransitionRule struct {
	ID                 int64      `json:"id"`
	CategoryID         int64      `json:"category_id"`
	CorrectionTypeID   *int64     `json:"correction_type_id,omitempty"`
	CurrentStatusID    int64      `json:"current_status_id"`
	ActionID           int64      `json:"action_id"`
	RequiredRoleID     int64      `json:"required_role_id"`
	NextStatusID       int64      `json:"next_status_id"`
	StepSequence       int        `json:"step_sequence"`
	FilterByDepartment bool       `json:"filter_by_department"`
	StepPolicy         StepPolicy `json:"step_policy"`

	// Denormalized by the repository for the engine
	ActionCode       string `json:"action_code"`
	RequiredRoleName string `json:"required_role_name"`
	NextStatusCode   string `json:"next_status_code"`
}

// LegacyStepRule is the pre-migration (category, step) -> approver role mapping
type LegacyStepRule struct {
	ID                 int64  `json:"id"`
	CategoryID         int64  `json:"category_id"`
	StepSequence       int    `json:"step_sequence"`
	ApproverRoleName   string `json:"approver_role_name"`
	FilterByDepartment bool   `json:"filter_by_department"`
}

// SpecialApproverMapping names the single user allowed to act at a category step
type SpecialApproverMapping struct {
	ID           int64 `json:"id"`
	CategoryID   int64 `json:"category_id"`
	StepSequence int   `json:"step_sequence"`
	UserID       int64 `json:"user_id"`
}
