package dispatcher

import (
	"context"

	"github.com/garyjia/f07-workflow/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler
type HandlerInfo struct {
	Name      string
	EventType event.Type // empty for handlers that receive every event
	Handler   Handler
}
