package service

import (
	"context"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// outcomeLabel maps a service error to a metrics label
func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	if kind := workflow.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

type noopMetrics struct{}

func (noopMetrics) ObserveAction(string, string) {}
func (noopMetrics) ObservePending(int)           {}

// specialApprovers loads the step -> designated user map for a category
func specialApprovers(ctx context.Context, repo port.SpecialApproverRepository, categoryID int64) (map[int]int64, error) {
	mappings, err := repo.ListByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	specials := make(map[int]int64, len(mappings))
	for _, m := range mappings {
		specials[m.StepSequence] = m.UserID
	}
	return specials, nil
}

// actorFromUser builds the acting identity of a stored user
func actorFromUser(u *entity.User) workflow.Actor {
	return workflow.Actor{UserID: u.ID, RoleName: u.RoleName, DepartmentID: u.DepartmentID}
}
