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

const transitionSelect = `
	SELECT tr.id, tr.category_id, tr.correction_type_id, tr.current_status_id,
		tr.action_id, tr.required_role_id, tr.next_status_id, tr.step_sequence,
		tr.filter_by_department, tr.step_policy,
		a.code, r.name, ns.code
	FROM transition_rules tr
	JOIN actions a ON a.id = tr.action_id
	JOIN roles r ON r.id = tr.required_role_id
	JOIN statuses ns ON ns.id = tr.next_status_id
`

// TransitionRepository implements port.TransitionRepository
type TransitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTransitionRepository creates a new transition rule repository
func NewTransitionRepository(db *sql.DB, logger *zap.Logger) port.TransitionRepository {
	return &TransitionRepository{
		db:     db,
		logger: logger,
	}
}

// Resolve returns the rules for the exact (category, correction type, status) key
func (r *TransitionRepository) Resolve(ctx context.Context, categoryID int64, correctionTypeID *int64, statusID int64) ([]*entity.TransitionRule, error) {
	query := transitionSelect + `
		WHERE tr.category_id = ? AND tr.current_status_id = ? AND tr.correction_type_id IS ?
		ORDER BY tr.id
	`

	rules, err := r.query(ctx, query, categoryID, statusID, nullInt64(correctionTypeID))
	if err != nil {
		r.logger.Error("Failed to resolve transitions",
			zap.Int64("category_id", categoryID),
			zap.Int64("status_id", statusID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to resolve transitions: %w", err)
	}
	return rules, nil
}

// List returns every transition rule
func (r *TransitionRepository) List(ctx context.Context) ([]*entity.TransitionRule, error) {
	rules, err := r.query(ctx, transitionSelect+` ORDER BY tr.category_id, tr.id`)
	if err != nil {
		r.logger.Error("Failed to list transitions", zap.Error(err))
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	return rules, nil
}

// HasCategory reports whether any transition rule exists for the category
func (r *TransitionRepository) HasCategory(ctx context.Context, categoryID int64) (bool, error) {
	var exists bool
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transition_rules WHERE category_id = ?)`, categoryID,
	).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check category rules", zap.Int64("category_id", categoryID), zap.Error(err))
		return false, fmt.Errorf("failed to check category rules: %w", err)
	}
	return exists, nil
}

// Upsert inserts a rule or updates the outcome of the rule with the same key
func (r *TransitionRepository) Upsert(ctx context.Context, rule *entity.TransitionRule) error {
	exec := sqlite.ExecutorFor(ctx, r.db)
	policy := rule.StepPolicy
	if policy == "" {
		policy = entity.StepPolicyAdvance
	}

	var id int64
	err := exec.QueryRowContext(ctx, `
		SELECT id FROM transition_rules
		WHERE category_id = ? AND correction_type_id IS ? AND current_status_id = ?
			AND action_id = ? AND required_role_id = ?
	`, rule.CategoryID, nullInt64(rule.CorrectionTypeID), rule.CurrentStatusID, rule.ActionID, rule.RequiredRoleID).Scan(&id)

	switch {
	case err == sql.ErrNoRows:
		result, err := exec.ExecContext(ctx, `
			INSERT INTO transition_rules (
				category_id, correction_type_id, current_status_id, action_id, required_role_id,
				next_status_id, step_sequence, filter_by_department, step_policy
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rule.CategoryID, nullInt64(rule.CorrectionTypeID), rule.CurrentStatusID, rule.ActionID, rule.RequiredRoleID,
			rule.NextStatusID, rule.StepSequence, rule.FilterByDepartment, string(policy))
		if err != nil {
			r.logger.Error("Failed to insert transition rule", zap.Error(err))
			return fmt.Errorf("failed to insert transition rule: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	case err != nil:
		r.logger.Error("Failed to look up transition rule", zap.Error(err))
		return fmt.Errorf("failed to look up transition rule: %w", err)
	default:
		_, err := exec.ExecContext(ctx, `
			UPDATE transition_rules
			SET next_status_id = ?, step_sequence = ?, filter_by_department = ?, step_policy = ?
			WHERE id = ?
		`, rule.NextStatusID, rule.StepSequence, rule.FilterByDepartment, string(policy), id)
		if err != nil {
			r.logger.Error("Failed to update transition rule", zap.Int64("id", id), zap.Error(err))
			return fmt.Errorf("failed to update transition rule: %w", err)
		}
	}

	rule.ID = id
	rule.StepPolicy = policy
	return nil
}

func (r *TransitionRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.TransitionRule, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*entity.TransitionRule
	for rows.Next() {
		var rule entity.TransitionRule
		var correctionTypeID sql.NullInt64
		var policy string
		err := rows.Scan(
			&rule.ID,
			&rule.CategoryID,
			&correctionTypeID,
			&rule.CurrentStatusID,
			&rule.ActionID,
			&rule.RequiredRoleID,
			&rule.NextStatusID,
			&rule.StepSequence,
			&rule.FilterByDepartment,
			&policy,
			&rule.ActionCode,
			&rule.RequiredRoleName,
			&rule.NextStatusCode,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition rule: %w", err)
		}
		if correctionTypeID.Valid {
			v := correctionTypeID.Int64
			rule.CorrectionTypeID = &v
		}
		rule.StepPolicy = entity.StepPolicy(policy)
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// Verify interface compliance
var _ port.TransitionRepository = (*TransitionRepository)(nil)
