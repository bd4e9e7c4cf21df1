package service

import (
	"context"

	"github.com/garyjia/f07-workflow/internal/domain/workflow"
)

// ScopeKind is the breadth of requests a user may see in listings
type ScopeKind string

const (
	ScopeAll        ScopeKind = "all"
	ScopeDepartment ScopeKind = "department"
	ScopeOwn        ScopeKind = "own"
)

// Scope restricts dashboard and report listings
type Scope struct {
	Kind         ScopeKind `json:"kind"`
	DepartmentID int64     `json:"department_id,omitempty"`
	UserID       int64     `json:"user_id,omitempty"`
}

// ScopeService projects the department filters of a role's rules into a listing scope
type ScopeService interface {
	ResolveScope(ctx context.Context, actor workflow.Actor) (Scope, error)
}

type scopeServiceImpl struct {
	rules  *RuleSet
	logger Logger
}

// NewScopeService creates a new ScopeService
func NewScopeService(rules *RuleSet, logger Logger) ScopeService {
	return &scopeServiceImpl{rules: rules, logger: logger}
}

// ResolveScope returns all for admins and for roles whose rules never filter by
// department, department when any of the role's rules does, and own otherwise.
func (s *scopeServiceImpl) ResolveScope(ctx context.Context, actor workflow.Actor) (Scope, error) {
	if workflow.RoleMatches(actor.RoleName, workflow.RoleAdmin) {
		return Scope{Kind: ScopeAll}, nil
	}

	rules, err := s.rules.RulesForRole(ctx, actor.RoleName)
	if err != nil {
		s.logger.Error("Failed to resolve scope", "error", err, "role", actor.RoleName)
		return Scope{}, err
	}

	if len(rules) == 0 {
		return Scope{Kind: ScopeOwn, UserID: actor.UserID}, nil
	}
	for _, r := range rules {
		if r.FilterByDepartment {
			return Scope{Kind: ScopeDepartment, DepartmentID: actor.DepartmentID}, nil
		}
	}
	return Scope{Kind: ScopeAll}, nil
}
