package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/domain/workflow"
)

// PendingTask is a request the user can act on right now
type PendingTask struct {
	Request *entity.Request     `json:"request"`
	Actions []string            `json:"actions"`
	Source  workflow.SourceKind `json:"source"`
}

// PendingService resolves a user's approval queue
type PendingService interface {
	ListPending(ctx context.Context, actor workflow.Actor) ([]*PendingTask, error)
}

type pendingServiceImpl struct {
	rules       *RuleSet
	requestRepo port.RequestRepository
	specialRepo port.SpecialApproverRepository
	metrics     port.MetricsRecorder
	logger      Logger
}

// NewPendingService creates a new PendingService. metrics may be nil.
func NewPendingService(
	rules *RuleSet,
	requestRepo port.RequestRepository,
	specialRepo port.SpecialApproverRepository,
	metrics port.MetricsRecorder,
	logger Logger,
) PendingService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &pendingServiceImpl{
		rules:       rules,
		requestRepo: requestRepo,
		specialRepo: specialRepo,
		metrics:     metrics,
		logger:      logger,
	}
}

// ListPending returns requests the actor may act on, newest first.
// Each request appears once; transition-table matches take precedence over legacy ones.
func (s *pendingServiceImpl) ListPending(ctx context.Context, actor workflow.Actor) ([]*PendingTask, error) {
	if len(workflow.CanonicalRoleNames(actor.RoleName)) == 0 {
		return []*PendingTask{}, nil
	}

	rules, err := s.rules.RulesForRole(ctx, actor.RoleName)
	if err != nil {
		s.logger.Error("Failed to load rules for role", "error", err, "role", actor.RoleName)
		return nil, err
	}

	byCategory := make(map[int64][]workflow.Rule)
	var categoryIDs []int64
	for _, rule := range rules {
		if _, ok := byCategory[rule.CategoryID]; !ok {
			categoryIDs = append(categoryIDs, rule.CategoryID)
		}
		byCategory[rule.CategoryID] = append(byCategory[rule.CategoryID], rule)
	}

	requests, err := s.requestRepo.ListActive(ctx, categoryIDs)
	if err != nil {
		s.logger.Error("Failed to list active requests", "error", err, "role", actor.RoleName)
		return nil, err
	}

	specialsByCategory := make(map[int64]map[int]int64)
	tasks := make([]*PendingTask, 0)
	seen := make(map[int64]bool)

	for _, source := range []workflow.SourceKind{workflow.SourceTransition, workflow.SourceLegacy} {
		for _, req := range requests {
			if seen[req.ID] {
				continue
			}
			candidates := filterSource(byCategory[req.CategoryID], source)
			if len(candidates) == 0 {
				continue
			}

			specials, ok := specialsByCategory[req.CategoryID]
			if !ok {
				specials, err = specialApprovers(ctx, s.specialRepo, req.CategoryID)
				if err != nil {
					return nil, fmt.Errorf("load special approvers: %w", err)
				}
				specialsByCategory[req.CategoryID] = specials
			}

			actions := workflow.ActionsFor(req, candidates, actor, specials)
			if len(actions) == 0 {
				continue
			}
			seen[req.ID] = true
			tasks = append(tasks, &PendingTask{Request: req, Actions: actions, Source: source})
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].Request, tasks[j].Request
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	s.metrics.ObservePending(len(tasks))
	return tasks, nil
}

func filterSource(rules []workflow.Rule, source workflow.SourceKind) []workflow.Rule {
	var out []workflow.Rule
	for _, r := range rules {
		if r.Source == source {
			out = append(out, r)
		}
	}
	return out
}
