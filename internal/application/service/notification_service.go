package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/domain/event"
	"github.com/garyjia/f07-workflow/internal/domain/workflow"
)

// EventDispatcher is the async half of the event dispatcher
type EventDispatcher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}

// NotificationService plans, publishes and delivers request notifications
type NotificationService interface {
	// Plan computes who to notify after req reached its current state through action
	Plan(ctx context.Context, req *entity.Request, action, comment string) ([]entity.NotificationInstruction, error)

	// Publish hands a transition and its instructions to the dispatcher without waiting
	Publish(ctx context.Context, req *entity.Request, action string, instructions []entity.NotificationInstruction)

	// Deliver renders and sends one notification event; used as a dispatcher handler
	Deliver(ctx context.Context, evt *event.Event) error
}

// NotificationConfig holds notification settings
type NotificationConfig struct {
	// ApprovalBaseURL prefixes approval links, e.g. https://f07.example.com
	ApprovalBaseURL string
}

type notificationServiceImpl struct {
	rules      *RuleSet
	users      port.UserRepository
	specials   port.SpecialApproverRepository
	requests   port.RequestRepository
	sender     port.MessageSender
	dispatcher EventDispatcher
	config     NotificationConfig
	logger     Logger
}

// NewNotificationService creates a new NotificationService. sender may be nil,
// in which case Deliver only logs.
func NewNotificationService(
	rules *RuleSet,
	users port.UserRepository,
	specials port.SpecialApproverRepository,
	requests port.RequestRepository,
	sender port.MessageSender,
	dispatcher EventDispatcher,
	config NotificationConfig,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		rules:      rules,
		users:      users,
		specials:   specials,
		requests:   requests,
		sender:     sender,
		dispatcher: dispatcher,
		config:     config,
		logger:     logger,
	}
}

// Plan computes who to notify after req reached its current state through action
func (s *notificationServiceImpl) Plan(ctx context.Context, req *entity.Request, action, comment string) ([]entity.NotificationInstruction, error) {
	var out []entity.NotificationInstruction
	seen := make(map[string]bool)
	add := func(template string, userID int64) {
		key := fmt.Sprintf("%s/%d", template, userID)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, entity.NotificationInstruction{
			Template:        template,
			RecipientUserID: userID,
			RequestID:       req.ID,
			Action:          action,
			Comment:         comment,
		})
	}

	switch req.Status {
	case entity.StatusClosed:
		add(entity.TemplateRequestClosed, req.RequesterID)
		return out, nil
	case entity.StatusRejected:
		add(entity.TemplateRequestRejected, req.RequesterID)
		return out, nil
	}

	if action != entity.ActionSubmit {
		add(entity.TemplateStatusChanged, req.RequesterID)
	}

	rules, _, err := s.rules.RulesFor(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	if len(rules) == 0 {
		s.logger.Info("No approvers configured for request state",
			"request_id", req.ID, "status", req.Status, "step", req.CurrentApprovalStep)
		return out, nil
	}

	specials, err := specialApprovers(ctx, s.specials, req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("load special approvers: %w", err)
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if len(workflow.ActionsFor(req, rules, actorFromUser(u), specials)) > 0 {
			add(entity.TemplateApprovalRequired, u.ID)
		}
	}
	return out, nil
}

// Publish hands a transition and its instructions to the dispatcher without waiting.
// Delivery outlives the caller's context.
func (s *notificationServiceImpl) Publish(ctx context.Context, req *entity.Request, action string, instructions []entity.NotificationInstruction) {
	if s.dispatcher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	correlationID := uuid.NewString()

	eventType := event.TypeRequestTransitioned
	if action == entity.ActionSubmit {
		eventType = event.TypeRequestSubmitted
	}
	s.dispatcher.DispatchAsync(ctx, event.NewEventWithCorrelation(eventType, req.ID, req.DocumentNo, map[string]interface{}{
		event.KeyStatus: req.Status,
		event.KeyAction: action,
		"step":          req.CurrentApprovalStep,
	}, correlationID))

	for _, n := range instructions {
		s.dispatcher.DispatchAsync(ctx, event.NewNotificationEvent(n, req, correlationID))
	}
}

// Deliver renders and sends one notification event
func (s *notificationServiceImpl) Deliver(ctx context.Context, evt *event.Event) error {
	recipientID := evt.GetPayloadInt(event.KeyRecipientUserID)
	template := evt.GetPayloadString(event.KeyTemplate)

	user, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("get recipient: %w", err)
	}
	if user == nil || user.Email == "" {
		s.logger.Info("Skipping notification without recipient address",
			"request_id", evt.RequestID, "recipient_user_id", recipientID, "template", template)
		return nil
	}

	req, err := s.requests.GetByID(ctx, evt.RequestID)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return fmt.Errorf("request %d not found", evt.RequestID)
	}

	data := MessageData{
		RecipientName: user.Name,
		DocumentNo:    req.DocumentNo,
		Title:         req.Title,
		Status:        req.Status,
		Action:        evt.GetPayloadString(event.KeyAction),
		Comment:       evt.GetPayloadString(event.KeyComment),
	}
	if template == entity.TemplateApprovalRequired && req.ApprovalToken != nil && s.config.ApprovalBaseURL != "" {
		data.ApprovalURL = strings.TrimRight(s.config.ApprovalBaseURL, "/") + "/api/approvals/" + *req.ApprovalToken
	}

	subject, body, err := RenderMessage(template, data)
	if err != nil {
		return err
	}

	if s.sender == nil {
		s.logger.Info("Notification rendered, no sender configured",
			"request_id", req.ID, "recipient", user.Email, "subject", subject)
		return nil
	}
	if err := s.sender.SendEmail(ctx, user.Email, subject, body); err != nil {
		s.logger.Error("Failed to send notification", "error", err, "request_id", req.ID, "recipient", user.Email)
		return fmt.Errorf("send notification: %w", err)
	}

	s.logger.Info("Notification sent", "request_id", req.ID, "recipient", user.Email, "template", template)
	return nil
}
