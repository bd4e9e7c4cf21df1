package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/f07-workflow/internal/domain/entity"
)

// Payload keys set by NewNotificationEvent
const (
	KeyTemplate        = "template"
	KeyRecipientUserID = "recipient_user_id"
	KeyStatus          = "status"
	KeyAction          = "action"
	KeyComment         = "comment"
)

// Event represents a domain event
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	RequestID     int64                  `json:"request_id"`
	DocumentNo    string                 `json:"document_no"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, requestID int64, documentNo string, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, requestID, documentNo, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, requestID int64, documentNo string, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		RequestID:     requestID,
		DocumentNo:    documentNo,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// NewNotificationEvent wraps one notification instruction for the given request
func NewNotificationEvent(n entity.NotificationInstruction, req *entity.Request, correlationID string) *Event {
	payload := map[string]interface{}{
		KeyTemplate:        n.Template,
		KeyRecipientUserID: n.RecipientUserID,
		KeyStatus:          req.Status,
	}
	if n.Action != "" {
		payload[KeyAction] = n.Action
	}
	if n.Comment != "" {
		payload[KeyComment] = n.Comment
	}
	return NewEventWithCorrelation(TypeNotificationRequested, req.ID, req.DocumentNo, payload, correlationID)
}

// WithPayload returns a new Event with an added payload key-value pair
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	clone := *e
	clone.Payload = newPayload
	return &clone
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
