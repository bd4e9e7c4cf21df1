package port

import (
	"context"
	"errors"

	"github.com/garyjia/f07-workflow/internal/domain/entity"
)

// ReferenceRepository reads and seeds the workflow reference tables
type ReferenceRepository interface {
	GetCategory(ctx context.Context, id int64) (*entity.Category, error)
	ListCategories(ctx context.Context) ([]*entity.Category, error)
	GetCorrectionType(ctx context.Context, id int64) (*entity.CorrectionType, error)
	GetStatusByID(ctx context.Context, id int64) (*entity.Status, error)
	GetStatusByCode(ctx context.Context, code string) (*entity.Status, error)
	ListStatuses(ctx context.Context) ([]*entity.Status, error)

	UpsertStatus(ctx context.Context, status *entity.Status) error
	UpsertRole(ctx context.Context, role *entity.Role) error
	UpsertAction(ctx context.Context, action *entity.Action) error
	UpsertDepartment(ctx context.Context, dept *entity.Department) error
	UpsertCategory(ctx context.Context, category *entity.Category) error
	UpsertCorrectionType(ctx context.Context, ct *entity.CorrectionType) error
}

// TransitionRepository defines persistence operations for TransitionRule
type TransitionRepository interface {
	// Resolve returns rules for the exact (category, correction type, status) key.
	// A nil correction type matches only rules with a NULL correction type.
	Resolve(ctx context.Context, categoryID int64, correctionTypeID *int64, statusID int64) ([]*entity.TransitionRule, error)

	// List returns every rule with codes and role names denormalized
	List(ctx context.Context) ([]*entity.TransitionRule, error)

	// HasCategory reports whether any rule exists for the category
	HasCategory(ctx context.Context, categoryID int64) (bool, error)

	Upsert(ctx context.Context, rule *entity.TransitionRule) error
}

// LegacyStepRepository defines persistence operations for LegacyStepRule
type LegacyStepRepository interface {
	ListByCategory(ctx context.Context, categoryID int64) ([]*entity.LegacyStepRule, error)
	List(ctx context.Context) ([]*entity.LegacyStepRule, error)
	Upsert(ctx context.Context, rule *entity.LegacyStepRule) error
}

// SpecialApproverRepository defines persistence operations for SpecialApproverMapping
type SpecialApproverRepository interface {
	ListByCategory(ctx context.Context, categoryID int64) ([]*entity.SpecialApproverMapping, error)
	Upsert(ctx context.Context, mapping *entity.SpecialApproverMapping) error
}

// RequestFilter narrows request listings. Nil fields are ignored.
type RequestFilter struct {
	DepartmentID *int64
	RequesterID  *int64
	Limit        int
	Offset       int
}

// RequestRepository defines persistence operations for Request
type RequestRepository interface {
	Create(ctx context.Context, req *entity.Request) error

	// GetByID returns nil, nil when the request does not exist
	GetByID(ctx context.Context, id int64) (*entity.Request, error)

	// GetByToken returns nil, nil when no request carries the token
	GetByToken(ctx context.Context, token string) (*entity.Request, error)

	// ApplyTransition writes status id, status code and step in one statement,
	// guarded on ExpectedStatusID. It returns false when the guard did not hold.
	ApplyTransition(ctx context.Context, t entity.RequestTransition) (bool, error)

	// ListActive returns non-terminal requests in the given categories
	ListActive(ctx context.Context, categoryIDs []int64) ([]*entity.Request, error)

	List(ctx context.Context, filter RequestFilter) ([]*entity.Request, error)
}

// HistoryRepository defines persistence operations for ApprovalHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ApprovalHistory) error
	GetByRequestID(ctx context.Context, requestID int64) ([]*entity.ApprovalHistory, error)
}

// DocNumberRepository allocates document sequence numbers
type DocNumberRepository interface {
	// Next atomically increments and returns the sequence for (prefix, year, category)
	Next(ctx context.Context, prefix string, year int, categoryID int64) (int, error)
}

// UserRepository reads users with their role names
type UserRepository interface {
	// GetByID returns nil, nil when the user does not exist
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	Upsert(ctx context.Context, user *entity.User) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ErrStorageBusy reports that the write lock could not be taken before the
// busy timeout ran out. The caller may retry.
var ErrStorageBusy = errors.New("storage is busy")
