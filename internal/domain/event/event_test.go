package event

import (
	"testing"
	"time"

	"github.com/garyjia/f07-workflow/internal/domain/entity"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"submitted", TypeRequestSubmitted, true},
		{"transitioned", TypeRequestTransitioned, true},
		{"notification", TypeNotificationRequested, true},
		{"unknown", Type("unknown.type"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(TypeRequestSubmitted, 123, "F07-2026-01-0001", nil)

	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.CorrelationID == "" || event.CorrelationID == event.ID {
		t.Errorf("Event CorrelationID = %q, want a distinct id", event.CorrelationID)
	}
	if event.RequestID != 123 {
		t.Errorf("Event RequestID = %v, want %v", event.RequestID, 123)
	}
	if event.Payload == nil {
		t.Fatal("Event Payload should not be nil")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewNotificationEvent(t *testing.T) {
	req := &entity.Request{ID: 5, DocumentNo: "F07-2026-02-0003", Status: "IN_PROGRESS"}
	n := entity.NotificationInstruction{
		Template:        entity.TemplateApprovalRequired,
		RecipientUserID: 42,
		RequestID:       5,
		Action:          entity.ActionApprove,
	}

	event := NewNotificationEvent(n, req, "corr-1")

	if event.Type != TypeNotificationRequested {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeNotificationRequested)
	}
	if got := event.GetPayloadString(KeyTemplate); got != entity.TemplateApprovalRequired {
		t.Errorf("template = %q", got)
	}
	if got := event.GetPayloadInt(KeyRecipientUserID); got != 42 {
		t.Errorf("recipient = %d, want 42", got)
	}
	if got := event.GetPayloadString(KeyStatus); got != "IN_PROGRESS" {
		t.Errorf("status = %q", got)
	}
	if _, ok := event.Payload[KeyComment]; ok {
		t.Error("empty comment should not be set")
	}
	if event.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %q, want corr-1", event.CorrelationID)
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeRequestTransitioned, 1, "doc", map[string]interface{}{"key1": "value1"})
	modified := original.WithPayload("key2", 7)

	if _, ok := original.Payload["key2"]; ok {
		t.Error("original payload should not be modified")
	}
	if modified.GetPayloadString("key1") != "value1" {
		t.Error("modified event should keep existing keys")
	}
	if modified.GetPayloadInt("key2") != 7 {
		t.Error("modified event should contain new key")
	}
	if modified.ID != original.ID {
		t.Error("ID should be preserved")
	}
}
