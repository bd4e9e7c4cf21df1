package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestSubmitted      Type = "request.submitted"
	TypeRequestTransitioned   Type = "request.transitioned"
	TypeNotificationRequested Type = "notification.requested"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestSubmitted,
		TypeRequestTransitioned,
		TypeNotificationRequested:
		return true
	default:
		return false
	}
}
