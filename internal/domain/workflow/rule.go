package workflow

import (
	"github.com/garyjia/f07-workflow/internal/domain/entity"
)

// SourceKind identifies which rule table produced a Rule
type SourceKind string

const (
	// SourceTransition is the status-keyed transition table
	SourceTransition SourceKind = "TRANSITION"
	// SourceLegacy is the step-keyed legacy approval-step table
	SourceLegacy SourceKind = "LEGACY"
)

// Rule is the engine's view of one permitted action, whichever table it came from.
// Transition rules are keyed by CurrentStatusID, legacy rules by StepSequence.
type Rule struct {
	Source             SourceKind
	RuleID             int64
	CategoryID         int64
	CorrectionTypeID   *int64
	CurrentStatusID    int64
	StepSequence       int
	ActionCode         string
	RequiredRole       string
	NextStatusID       int64 // zero when only the code is known
	NextStatusCode     string
	NextStep           int
	FilterByDepartment bool
}

// Actor is the authenticated user attempting an action
type Actor struct {
	UserID       int64  `json:"user_id"`
	RoleName     string `json:"role_name"`
	DepartmentID int64  `json:"department_id"`
}

// FromTransition converts a stored transition rule
func FromTransition(t entity.TransitionRule) Rule {
	return Rule{
		Source:             SourceTransition,
		RuleID:             t.ID,
		CategoryID:         t.CategoryID,
		CorrectionTypeID:   t.CorrectionTypeID,
		CurrentStatusID:    t.CurrentStatusID,
		StepSequence:       t.StepSequence,
		ActionCode:         t.ActionCode,
		RequiredRole:       CanonicalRoleName(t.RequiredRoleName),
		NextStatusID:       t.NextStatusID,
		NextStatusCode:     t.NextStatusCode,
		NextStep:           t.StepPolicy.NextStep(t.StepSequence),
		FilterByDepartment: t.FilterByDepartment,
	}
}

// LegacyCodes are the status codes legacy step outcomes map onto
type LegacyCodes struct {
	InProgress string
	Closing    string
}

// LegacyRules expands the legacy steps of a category into the rules available at step.
// Approving the highest step closes the request; approving into the highest step of a
// category that requires final closing moves to the closing status instead of in-progress.
func LegacyRules(category entity.Category, steps []entity.LegacyStepRule, step int, codes LegacyCodes) []Rule {
	maxStep := 0
	var current []entity.LegacyStepRule
	for _, s := range steps {
		if s.CategoryID != category.ID {
			continue
		}
		if s.StepSequence > maxStep {
			maxStep = s.StepSequence
		}
		if s.StepSequence == step {
			current = append(current, s)
		}
	}
	if len(current) == 0 {
		return nil
	}

	approveTo := entity.StatusClosed
	if step < maxStep {
		approveTo = codes.InProgress
		if category.RequiresFinalClosing && step+1 == maxStep && codes.Closing != "" {
			approveTo = codes.Closing
		}
	}

	rules := make([]Rule, 0, len(current)*3)
	for _, s := range current {
		base := Rule{
			Source:             SourceLegacy,
			RuleID:             s.ID,
			CategoryID:         category.ID,
			StepSequence:       s.StepSequence,
			RequiredRole:       CanonicalRoleName(s.ApproverRoleName),
			FilterByDepartment: s.FilterByDepartment,
		}

		approve := base
		approve.ActionCode = entity.ActionApprove
		approve.NextStatusCode = approveTo
		approve.NextStep = step + 1
		rules = append(rules, approve)

		if category.RequiresFinalClosing && step == maxStep {
			confirm := approve
			confirm.ActionCode = entity.ActionConfirmComplete
			rules = append(rules, confirm)
		}

		reject := base
		reject.ActionCode = entity.ActionReject
		reject.NextStatusCode = entity.StatusRejected
		reject.NextStep = step
		rules = append(rules, reject)
	}
	return rules
}

// AppliesTo reports whether the rule is keyed on the request's current state
func (r Rule) AppliesTo(req *entity.Request) bool {
	if r.CategoryID != req.CategoryID {
		return false
	}
	if r.Source == SourceLegacy {
		return r.StepSequence == req.CurrentApprovalStep
	}
	return r.CurrentStatusID == req.CurrentStatusID &&
		entity.SameCorrectionType(r.CorrectionTypeID, req.CorrectionTypeID)
}

// Eligible applies the department and special-approver checks for a role-matched rule.
// specials maps step sequence to the designated user for the request's category.
func Eligible(req *entity.Request, rule Rule, actor Actor, specials map[int]int64) error {
	if rule.FilterByDepartment && actor.DepartmentID != req.DepartmentID {
		return Errorf(KindDepartmentMismatch,
			"department %d cannot act on request of department %d", actor.DepartmentID, req.DepartmentID)
	}
	if userID, ok := specials[rule.StepSequence]; ok && userID != actor.UserID {
		return Errorf(KindNotDesignatedApprover,
			"step %d is reserved for a designated approver", rule.StepSequence)
	}
	return nil
}

// Authorize picks the rule that lets actor perform action on req.
// rules must be the rules applicable to the request's current state.
func Authorize(req *entity.Request, rules []Rule, action string, actor Actor, specials map[int]int64) (Rule, error) {
	if req.IsTerminal() {
		return Rule{}, Errorf(KindRequestClosed, "request %s is %s", req.DocumentNo, req.Status)
	}
	if len(rules) == 0 {
		return Rule{}, Errorf(KindConfigurationGap,
			"no rules configured for status %s in category %d", req.Status, req.CategoryID)
	}

	var lastErr error
	for _, rule := range rules {
		if rule.ActionCode != action || !RoleMatches(actor.RoleName, rule.RequiredRole) {
			continue
		}
		err := Eligible(req, rule, actor, specials)
		if err == nil {
			return rule, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return Rule{}, lastErr
	}
	return Rule{}, Errorf(KindActionNotAllowed,
		"role %s cannot %s request in status %s", actor.RoleName, action, req.Status)
}

// ActionsFor returns the distinct actions actor may take on req, in rule order
func ActionsFor(req *entity.Request, rules []Rule, actor Actor, specials map[int]int64) []string {
	seen := make(map[string]bool)
	var actions []string
	for _, rule := range rules {
		if seen[rule.ActionCode] || !rule.AppliesTo(req) || !RoleMatches(actor.RoleName, rule.RequiredRole) {
			continue
		}
		if Eligible(req, rule, actor, specials) != nil {
			continue
		}
		seen[rule.ActionCode] = true
		actions = append(actions, rule.ActionCode)
	}
	return actions
}
