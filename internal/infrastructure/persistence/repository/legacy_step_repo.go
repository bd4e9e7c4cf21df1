package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/infrastructure/persistence/sqlite"
)

// LegacyStepRepository implements port.LegacyStepRepository
type LegacyStepRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLegacyStepRepository creates a new legacy approval step repository
func NewLegacyStepRepository(db *sql.DB, logger *zap.Logger) port.LegacyStepRepository {
	return &LegacyStepRepository{
		db:     db,
		logger: logger,
	}
}

// ListByCategory returns the steps of one category ordered by step sequence
func (r *LegacyStepRepository) ListByCategory(ctx context.Context, categoryID int64) ([]*entity.LegacyStepRule, error) {
	steps, err := r.query(ctx, `
		SELECT id, category_id, step_sequence, approver_role_name, filter_by_department
		FROM legacy_approval_steps
		WHERE category_id = ?
		ORDER BY step_sequence, id
	`, categoryID)
	if err != nil {
		r.logger.Error("Failed to list legacy steps", zap.Int64("category_id", categoryID), zap.Error(err))
		return nil, fmt.Errorf("failed to list legacy steps: %w", err)
	}
	return steps, nil
}

// List returns every legacy step
func (r *LegacyStepRepository) List(ctx context.Context) ([]*entity.LegacyStepRule, error) {
	steps, err := r.query(ctx, `
		SELECT id, category_id, step_sequence, approver_role_name, filter_by_department
		FROM legacy_approval_steps
		ORDER BY category_id, step_sequence, id
	`)
	if err != nil {
		r.logger.Error("Failed to list legacy steps", zap.Error(err))
		return nil, fmt.Errorf("failed to list legacy steps: %w", err)
	}
	return steps, nil
}

// Upsert inserts a step keyed by (category, step, role)
func (r *LegacyStepRepository) Upsert(ctx context.Context, rule *entity.LegacyStepRule) error {
	query := `
		INSERT INTO legacy_approval_steps (category_id, step_sequence, approver_role_name, filter_by_department)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(category_id, step_sequence, approver_role_name) DO UPDATE SET
			filter_by_department = excluded.filter_by_department
		RETURNING id
	`
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query,
		rule.CategoryID, rule.StepSequence, rule.ApproverRoleName, rule.FilterByDepartment,
	).Scan(&rule.ID)
	if err != nil {
		r.logger.Error("Failed to upsert legacy step", zap.Int64("category_id", rule.CategoryID), zap.Error(err))
		return fmt.Errorf("failed to upsert legacy step: %w", err)
	}
	return nil
}

func (r *LegacyStepRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.LegacyStepRule, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*entity.LegacyStepRule
	for rows.Next() {
		var s entity.LegacyStepRule
		if err := rows.Scan(&s.ID, &s.CategoryID, &s.StepSequence, &s.ApproverRoleName, &s.FilterByDepartment); err != nil {
			return nil, fmt.Errorf("failed to scan legacy step: %w", err)
		}
		steps = append(steps, &s)
	}
	return steps, rows.Err()
}

// Verify interface compliance
var _ port.LegacyStepRepository = (*LegacyStepRepository)(nil)
