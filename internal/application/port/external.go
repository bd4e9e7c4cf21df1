package port

import (
	"context"

	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/domain/event"
	"github.com/garyjia/f07-workflow/internal/domain/workflow"
)

// RuleSource supplies engine rules from one rule table
type RuleSource interface {
	// Kind identifies the table the rules come from
	Kind() workflow.SourceKind

	// Covers reports whether the source is authoritative for the category
	Covers(ctx context.Context, categoryID int64) (bool, error)

	// RulesFor returns rules keyed on the request's current state
	RulesFor(ctx context.Context, req *entity.Request) ([]workflow.Rule, error)

	// RulesForRole returns every rule the role may act on, in categories the source covers
	RulesForRole(ctx context.Context, roleName string) ([]workflow.Rule, error)
}

// MessageSender delivers a rendered notification to a user
type MessageSender interface {
	SendEmail(ctx context.Context, email, subject, body string) error
}

// EventPublisher forwards domain events to an external bus
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
}

// MetricsRecorder records workflow counters
type MetricsRecorder interface {
	ObserveAction(action, outcome string)
	ObservePending(count int)
}

// RequestExporter renders a request listing into a spreadsheet
type RequestExporter interface {
	Export(ctx context.Context, requests []*entity.Request, statuses map[int64]*entity.Status) ([]byte, error)
}
