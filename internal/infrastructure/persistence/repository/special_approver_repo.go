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

// SpecialApproverRepository implements port.SpecialApproverRepository
type SpecialApproverRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSpecialApproverRepository creates a new special approver repository
func NewSpecialApproverRepository(db *sql.DB, logger *zap.Logger) port.SpecialApproverRepository {
	return &SpecialApproverRepository{
		db:     db,
		logger: logger,
	}
}

// ListByCategory returns the designated approvers of a category
func (r *SpecialApproverRepository) ListByCategory(ctx context.Context, categoryID int64) ([]*entity.SpecialApproverMapping, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, `
		SELECT id, category_id, step_sequence, user_id
		FROM special_approvers
		WHERE category_id = ?
		ORDER BY step_sequence
	`, categoryID)
	if err != nil {
		r.logger.Error("Failed to list special approvers", zap.Int64("category_id", categoryID), zap.Error(err))
		return nil, fmt.Errorf("failed to list special approvers: %w", err)
	}
	defer rows.Close()

	var mappings []*entity.SpecialApproverMapping
	for rows.Next() {
		var m entity.SpecialApproverMapping
		if err := rows.Scan(&m.ID, &m.CategoryID, &m.StepSequence, &m.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan special approver: %w", err)
		}
		mappings = append(mappings, &m)
	}
	return mappings, rows.Err()
}

// Upsert sets the designated approver for (category, step)
func (r *SpecialApproverRepository) Upsert(ctx context.Context, mapping *entity.SpecialApproverMapping) error {
	query := `
		INSERT INTO special_approvers (category_id, step_sequence, user_id) VALUES (?, ?, ?)
		ON CONFLICT(category_id, step_sequence) DO UPDATE SET user_id = excluded.user_id
		RETURNING id
	`
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query,
		mapping.CategoryID, mapping.StepSequence, mapping.UserID,
	).Scan(&mapping.ID)
	if err != nil {
		r.logger.Error("Failed to upsert special approver", zap.Int64("category_id", mapping.CategoryID), zap.Error(err))
		return fmt.Errorf("failed to upsert special approver: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.SpecialApproverRepository = (*SpecialApproverRepository)(nil)
