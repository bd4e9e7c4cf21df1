package workflow

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable class of a workflow rejection
type Kind string

const (
	KindNotFound              Kind = "NOT_FOUND"
	KindRequestClosed         Kind = "REQUEST_CLOSED"
	KindActionNotAllowed      Kind = "ACTION_NOT_ALLOWED"
	KindDepartmentMismatch    Kind = "DEPARTMENT_MISMATCH"
	KindNotDesignatedApprover Kind = "NOT_DESIGNATED_APPROVER"
	KindConfigurationGap      Kind = "CONFIGURATION_GAP"
	KindInvalidInput          Kind = "INVALID_INPUT"
)

// Error is a definitive "this action is not currently permitted" answer.
// Two errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Kind so callers can compare against the sentinels below
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound              = &Error{Kind: KindNotFound, Message: "request not found"}
	ErrRequestClosed         = &Error{Kind: KindRequestClosed, Message: "request is closed"}
	ErrActionNotAllowed      = &Error{Kind: KindActionNotAllowed, Message: "action not allowed"}
	ErrDepartmentMismatch    = &Error{Kind: KindDepartmentMismatch, Message: "department mismatch"}
	ErrNotDesignatedApprover = &Error{Kind: KindNotDesignatedApprover, Message: "not the designated approver"}
	ErrConfigurationGap      = &Error{Kind: KindConfigurationGap, Message: "workflow configuration gap"}
	ErrInvalidInput          = &Error{Kind: KindInvalidInput, Message: "invalid input"}
)

// Errorf builds an Error of the given kind with a formatted message
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or "" when err is not a workflow error
func KindOf(err error) Kind {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return ""
}

// Definition errors returned by TableBuilder.Build
var (
	// ErrDuplicateRule is returned when two definitions share a rule key
	ErrDuplicateRule = errors.New("duplicate transition rule")

	// ErrTerminalTransition is returned when a definition leaves a terminal status
	ErrTerminalTransition = errors.New("transition out of terminal status")

	// ErrInvalidDefinition is returned for malformed definitions
	ErrInvalidDefinition = errors.New("invalid transition definition")
)
