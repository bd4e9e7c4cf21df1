package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/domain/workflow"
)

// ActionCommand asks the executor to apply one action to a request
type ActionCommand struct {
	RequestID int64
	Action    string
	Actor     workflow.Actor
	Comment   string
}

// ActionResult is the outcome of a successful action
type ActionResult struct {
	Request       *entity.Request                  `json:"request"`
	FromStatus    string                           `json:"from_status"`
	Status        *entity.Status                   `json:"status"`
	Source        workflow.SourceKind              `json:"source"`
	Notifications []entity.NotificationInstruction `json:"notifications"`
}

// ActionService executes workflow actions against requests
type ActionService interface {
	Execute(ctx context.Context, cmd ActionCommand) (*ActionResult, error)

	// ExecuteByToken resolves the request by approval token, then executes.
	// cmd.RequestID is ignored.
	ExecuteByToken(ctx context.Context, token string, cmd ActionCommand) (*ActionResult, error)
}

type actionServiceImpl struct {
	requestRepo   port.RequestRepository
	historyRepo   port.HistoryRepository
	referenceRepo port.ReferenceRepository
	specialRepo   port.SpecialApproverRepository
	rules         *RuleSet
	notifications NotificationService
	metrics       port.MetricsRecorder
	txManager     port.TransactionManager
	logger        Logger
}

// NewActionService creates a new ActionService. metrics may be nil.
func NewActionService(
	requestRepo port.RequestRepository,
	historyRepo port.HistoryRepository,
	referenceRepo port.ReferenceRepository,
	specialRepo port.SpecialApproverRepository,
	rules *RuleSet,
	notifications NotificationService,
	metrics port.MetricsRecorder,
	txManager port.TransactionManager,
	logger Logger,
) ActionService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &actionServiceImpl{
		requestRepo:   requestRepo,
		historyRepo:   historyRepo,
		referenceRepo: referenceRepo,
		specialRepo:   specialRepo,
		rules:         rules,
		notifications: notifications,
		metrics:       metrics,
		txManager:     txManager,
		logger:        logger,
	}
}

// Execute checks the action against the request's current rules and applies it.
// The read, checks and write run in one transaction; notifications are published after commit.
func (s *actionServiceImpl) Execute(ctx context.Context, cmd ActionCommand) (*ActionResult, error) {
	cmd.Action = strings.ToUpper(strings.TrimSpace(cmd.Action))
	if cmd.RequestID <= 0 || cmd.Action == "" || cmd.Actor.UserID <= 0 {
		err := workflow.Errorf(workflow.KindInvalidInput, "request id, action and actor are required")
		s.metrics.ObserveAction(cmd.Action, outcomeLabel(err))
		return nil, err
	}

	var result *ActionResult
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err := s.requestRepo.GetByID(txCtx, cmd.RequestID)
		if err != nil {
			return fmt.Errorf("get request: %w", err)
		}
		if req == nil {
			return workflow.Errorf(workflow.KindNotFound, "request %d not found", cmd.RequestID)
		}

		result, err = s.apply(txCtx, req, cmd)
		return err
	})

	s.metrics.ObserveAction(cmd.Action, outcomeLabel(err))
	if err != nil {
		if workflow.KindOf(err) != "" {
			s.logger.Info("Action rejected",
				"request_id", cmd.RequestID, "action", cmd.Action,
				"actor_id", cmd.Actor.UserID, "kind", workflow.KindOf(err), "reason", err.Error())
		} else {
			s.logger.Error("Failed to execute action", "error", err, "request_id", cmd.RequestID, "action", cmd.Action)
		}
		return nil, err
	}

	s.logger.Info("Action executed",
		"request_id", result.Request.ID,
		"action", cmd.Action,
		"actor_id", cmd.Actor.UserID,
		"from_status", result.FromStatus,
		"to_status", result.Request.Status,
		"source", result.Source,
	)

	if s.notifications != nil {
		s.notifications.Publish(ctx, result.Request, cmd.Action, result.Notifications)
	}
	return result, nil
}

// ExecuteByToken resolves the request by approval token, then executes
func (s *actionServiceImpl) ExecuteByToken(ctx context.Context, token string, cmd ActionCommand) (*ActionResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, workflow.Errorf(workflow.KindInvalidInput, "approval token is required")
	}

	req, err := s.requestRepo.GetByToken(ctx, token)
	if err != nil {
		s.logger.Error("Failed to resolve approval token", "error", err)
		return nil, fmt.Errorf("get request by token: %w", err)
	}
	if req == nil {
		s.metrics.ObserveAction(strings.ToUpper(cmd.Action), string(workflow.KindNotFound))
		return nil, workflow.Errorf(workflow.KindNotFound, "approval link is no longer valid: the request was already decided or the link is unknown")
	}

	cmd.RequestID = req.ID
	return s.Execute(ctx, cmd)
}

// apply runs the checks and writes for one request inside the caller's transaction
func (s *actionServiceImpl) apply(ctx context.Context, req *entity.Request, cmd ActionCommand) (*ActionResult, error) {
	if req.IsTerminal() {
		return nil, workflow.Errorf(workflow.KindRequestClosed, "request %s is %s", req.DocumentNo, req.Status)
	}

	rules, source, err := s.rules.RulesFor(ctx, req)
	if err != nil {
		return nil, err
	}
	specials, err := specialApprovers(ctx, s.specialRepo, req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("load special approvers: %w", err)
	}

	rule, err := workflow.Authorize(req, rules, cmd.Action, cmd.Actor, specials)
	if err != nil {
		return nil, err
	}

	next, err := s.nextStatus(ctx, rule)
	if err != nil {
		return nil, err
	}

	terminal := next.IsTerminal()
	applied, err := s.requestRepo.ApplyTransition(ctx, entity.RequestTransition{
		RequestID:        req.ID,
		ExpectedStatusID: req.CurrentStatusID,
		NextStatusID:     next.ID,
		NextStatusCode:   next.Code,
		NextStep:         rule.NextStep,
		ClearToken:       terminal,
	})
	if err != nil {
		return nil, fmt.Errorf("apply transition: %w", err)
	}
	if !applied {
		return nil, workflow.Errorf(workflow.KindActionNotAllowed,
			"request %s changed while %s was being applied", req.DocumentNo, cmd.Action)
	}

	history := &entity.ApprovalHistory{
		RequestID:    req.ID,
		ActorID:      cmd.Actor.UserID,
		ActionCode:   cmd.Action,
		FromStatus:   req.Status,
		ToStatus:     next.Code,
		StepSequence: rule.StepSequence,
		Comment:      cmd.Comment,
	}
	if err := s.historyRepo.Create(ctx, history); err != nil {
		return nil, fmt.Errorf("create history: %w", err)
	}

	updated := *req
	updated.CurrentStatusID = next.ID
	updated.Status = next.Code
	updated.CurrentApprovalStep = rule.NextStep
	if terminal {
		updated.ApprovalToken = nil
	}

	var instructions []entity.NotificationInstruction
	if s.notifications != nil {
		instructions, err = s.notifications.Plan(ctx, &updated, cmd.Action, cmd.Comment)
		if err != nil {
			// Planning failures never block the transition
			s.logger.Error("Failed to plan notifications", "error", err, "request_id", req.ID)
			instructions = nil
		}
	}

	return &ActionResult{
		Request:       &updated,
		FromStatus:    req.Status,
		Status:        next,
		Source:        source,
		Notifications: instructions,
	}, nil
}

// nextStatus resolves the target status of a rule, by id when known, else by code
func (s *actionServiceImpl) nextStatus(ctx context.Context, rule workflow.Rule) (*entity.Status, error) {
	var status *entity.Status
	var err error
	if rule.NextStatusID != 0 {
		status, err = s.referenceRepo.GetStatusByID(ctx, rule.NextStatusID)
	} else {
		status, err = s.referenceRepo.GetStatusByCode(ctx, rule.NextStatusCode)
	}
	if err != nil {
		return nil, fmt.Errorf("get next status: %w", err)
	}
	if status == nil {
		return nil, workflow.Errorf(workflow.KindConfigurationGap,
			"status %q targeted by %s rule %d does not exist", rule.NextStatusCode, rule.Source, rule.RuleID)
	}
	return status, nil
}
