package service

import (
	"context"
	"fmt"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/domain/workflow"
)

// transitionSource serves status-keyed rules from the transition table
type transitionSource struct {
	repo port.TransitionRepository
}

// NewTransitionSource creates the RuleSource for the transition table
func NewTransitionSource(repo port.TransitionRepository) port.RuleSource {
	return &transitionSource{repo: repo}
}

func (s *transitionSource) Kind() workflow.SourceKind {
	return workflow.SourceTransition
}

func (s *transitionSource) Covers(ctx context.Context, categoryID int64) (bool, error) {
	return s.repo.HasCategory(ctx, categoryID)
}

func (s *transitionSource) RulesFor(ctx context.Context, req *entity.Request) ([]workflow.Rule, error) {
	stored, err := s.repo.Resolve(ctx, req.CategoryID, req.CorrectionTypeID, req.CurrentStatusID)
	if err != nil {
		return nil, err
	}
	rules := make([]workflow.Rule, 0, len(stored))
	for _, t := range stored {
		rules = append(rules, workflow.FromTransition(*t))
	}
	return rules, nil
}

func (s *transitionSource) RulesForRole(ctx context.Context, roleName string) ([]workflow.Rule, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	var rules []workflow.Rule
	for _, t := range stored {
		if workflow.RoleMatches(roleName, t.RequiredRoleName) {
			rules = append(rules, workflow.FromTransition(*t))
		}
	}
	return rules, nil
}

// legacySource serves step-keyed rules for categories without transition rules
type legacySource struct {
	steps       port.LegacyStepRepository
	transitions port.TransitionRepository
	reference   port.ReferenceRepository
	codes       workflow.LegacyCodes
}

// NewLegacySource creates the RuleSource for the legacy approval-step table
func NewLegacySource(
	steps port.LegacyStepRepository,
	transitions port.TransitionRepository,
	reference port.ReferenceRepository,
	codes workflow.LegacyCodes,
) port.RuleSource {
	return &legacySource{
		steps:       steps,
		transitions: transitions,
		reference:   reference,
		codes:       codes,
	}
}

func (s *legacySource) Kind() workflow.SourceKind {
	return workflow.SourceLegacy
}

// Covers is true only for categories that have no transition rules at all
func (s *legacySource) Covers(ctx context.Context, categoryID int64) (bool, error) {
	migrated, err := s.transitions.HasCategory(ctx, categoryID)
	if err != nil {
		return false, err
	}
	return !migrated, nil
}

func (s *legacySource) RulesFor(ctx context.Context, req *entity.Request) ([]workflow.Rule, error) {
	category, err := s.reference.GetCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, nil
	}
	steps, err := s.steps.ListByCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}
	return workflow.LegacyRules(*category, derefSteps(steps), req.CurrentApprovalStep, s.codes), nil
}

func (s *legacySource) RulesForRole(ctx context.Context, roleName string) ([]workflow.Rule, error) {
	all, err := s.steps.List(ctx)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[int64][]entity.LegacyStepRule)
	var order []int64
	for _, step := range all {
		if _, ok := byCategory[step.CategoryID]; !ok {
			order = append(order, step.CategoryID)
		}
		byCategory[step.CategoryID] = append(byCategory[step.CategoryID], *step)
	}

	var rules []workflow.Rule
	for _, categoryID := range order {
		covered, err := s.Covers(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		if !covered {
			continue
		}
		category, err := s.reference.GetCategory(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		if category == nil {
			continue
		}

		seen := make(map[int]bool)
		for _, step := range byCategory[categoryID] {
			if seen[step.StepSequence] || !workflow.RoleMatches(roleName, step.ApproverRoleName) {
				continue
			}
			seen[step.StepSequence] = true
			for _, rule := range workflow.LegacyRules(*category, byCategory[categoryID], step.StepSequence, s.codes) {
				if workflow.RoleMatches(roleName, rule.RequiredRole) {
					rules = append(rules, rule)
				}
			}
		}
	}
	return rules, nil
}

func derefSteps(steps []*entity.LegacyStepRule) []entity.LegacyStepRule {
	out := make([]entity.LegacyStepRule, 0, len(steps))
	for _, s := range steps {
		out = append(out, *s)
	}
	return out
}

// RuleSet picks the authoritative source per category and serves its rules
type RuleSet struct {
	sources []port.RuleSource
}

// NewRuleSet combines sources in priority order
func NewRuleSet(sources ...port.RuleSource) *RuleSet {
	return &RuleSet{sources: sources}
}

// RulesFor returns the rules for the request's current state from the covering source.
// The returned kind is empty when no source covers the category.
func (rs *RuleSet) RulesFor(ctx context.Context, req *entity.Request) ([]workflow.Rule, workflow.SourceKind, error) {
	for _, src := range rs.sources {
		covered, err := src.Covers(ctx, req.CategoryID)
		if err != nil {
			return nil, "", fmt.Errorf("check %s coverage: %w", src.Kind(), err)
		}
		if !covered {
			continue
		}
		rules, err := src.RulesFor(ctx, req)
		if err != nil {
			return nil, "", fmt.Errorf("load %s rules: %w", src.Kind(), err)
		}
		return rules, src.Kind(), nil
	}
	return nil, "", nil
}

// RulesForRole returns every rule the role may act on across all sources
func (rs *RuleSet) RulesForRole(ctx context.Context, roleName string) ([]workflow.Rule, error) {
	var rules []workflow.Rule
	for _, src := range rs.sources {
		r, err := src.RulesForRole(ctx, roleName)
		if err != nil {
			return nil, fmt.Errorf("load %s rules for role: %w", src.Kind(), err)
		}
		rules = append(rules, r...)
	}
	return rules, nil
}

// TransitionResolver answers which transitions leave a given state
type TransitionResolver interface {
	Resolve(ctx context.Context, categoryID int64, correctionTypeID *int64, statusID int64) ([]*entity.TransitionRule, error)
}

type transitionResolverImpl struct {
	repo   port.TransitionRepository
	logger Logger
}

// NewTransitionResolver creates a new TransitionResolver
func NewTransitionResolver(repo port.TransitionRepository, logger Logger) TransitionResolver {
	return &transitionResolverImpl{repo: repo, logger: logger}
}

// Resolve returns rules for the exact key. An empty result is a dead end, not an error.
func (s *transitionResolverImpl) Resolve(ctx context.Context, categoryID int64, correctionTypeID *int64, statusID int64) ([]*entity.TransitionRule, error) {
	rules, err := s.repo.Resolve(ctx, categoryID, correctionTypeID, statusID)
	if err != nil {
		s.logger.Error("Failed to resolve transitions", "error", err, "category_id", categoryID, "status_id", statusID)
		return nil, err
	}
	if rules == nil {
		rules = []*entity.TransitionRule{}
	}
	return rules, nil
}
