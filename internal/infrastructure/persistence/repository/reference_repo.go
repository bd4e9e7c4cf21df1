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

// ReferenceRepository implements port.ReferenceRepository
type ReferenceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReferenceRepository creates a new reference repository
func NewReferenceRepository(db *sql.DB, logger *zap.Logger) port.ReferenceRepository {
	return &ReferenceRepository{
		db:     db,
		logger: logger,
	}
}

// GetCategory retrieves a category by ID, nil when missing
func (r *ReferenceRepository) GetCategory(ctx context.Context, id int64) (*entity.Category, error) {
	query := `SELECT id, name, requires_final_closing, created_at FROM categories WHERE id = ?`

	var c entity.Category
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.RequiresFinalClosing, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get category", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

// ListCategories returns all categories ordered by ID
func (r *ReferenceRepository) ListCategories(ctx context.Context) ([]*entity.Category, error) {
	query := `SELECT id, name, requires_final_closing, created_at FROM categories ORDER BY id`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list categories", zap.Error(err))
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*entity.Category
	for rows.Next() {
		var c entity.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.RequiresFinalClosing, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

// GetCorrectionType retrieves a correction type by ID, nil when missing
func (r *ReferenceRepository) GetCorrectionType(ctx context.Context, id int64) (*entity.CorrectionType, error) {
	query := `SELECT id, category_id, name FROM correction_types WHERE id = ?`

	var ct entity.CorrectionType
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&ct.ID, &ct.CategoryID, &ct.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get correction type", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get correction type: %w", err)
	}
	return &ct, nil
}

// GetStatusByID retrieves a status by ID, nil when missing
func (r *ReferenceRepository) GetStatusByID(ctx context.Context, id int64) (*entity.Status, error) {
	return r.getStatus(ctx, "id = ?", id)
}

// GetStatusByCode retrieves a status by code, nil when missing
func (r *ReferenceRepository) GetStatusByCode(ctx context.Context, code string) (*entity.Status, error) {
	return r.getStatus(ctx, "code = ?", code)
}

func (r *ReferenceRepository) getStatus(ctx context.Context, where string, arg interface{}) (*entity.Status, error) {
	query := `SELECT id, code, name, color, display_order FROM statuses WHERE ` + where

	var s entity.Status
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(
		&s.ID, &s.Code, &s.Name, &s.Color, &s.DisplayOrder,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get status", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &s, nil
}

// ListStatuses returns all statuses in display order
func (r *ReferenceRepository) ListStatuses(ctx context.Context) ([]*entity.Status, error) {
	query := `SELECT id, code, name, color, display_order FROM statuses ORDER BY display_order, id`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list statuses", zap.Error(err))
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*entity.Status
	for rows.Next() {
		var s entity.Status
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Color, &s.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		statuses = append(statuses, &s)
	}
	return statuses, rows.Err()
}

// UpsertStatus inserts or updates a status keyed by code
func (r *ReferenceRepository) UpsertStatus(ctx context.Context, status *entity.Status) error {
	query := `
		INSERT INTO statuses (code, name, color, display_order) VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name, color = excluded.color, display_order = excluded.display_order
		RETURNING id
	`
	return r.upsert(ctx, "status", &status.ID, query, status.Code, status.Name, status.Color, status.DisplayOrder)
}

// UpsertRole inserts a role keyed by name
func (r *ReferenceRepository) UpsertRole(ctx context.Context, role *entity.Role) error {
	query := `
		INSERT INTO roles (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET name = excluded.name
		RETURNING id
	`
	return r.upsert(ctx, "role", &role.ID, query, role.Name)
}

// UpsertAction inserts or updates an action keyed by code
func (r *ReferenceRepository) UpsertAction(ctx context.Context, action *entity.Action) error {
	query := `
		INSERT INTO actions (code, name) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name
		RETURNING id
	`
	return r.upsert(ctx, "action", &action.ID, query, action.Code, action.Name)
}

// UpsertDepartment inserts a department keyed by name
func (r *ReferenceRepository) UpsertDepartment(ctx context.Context, dept *entity.Department) error {
	query := `
		INSERT INTO departments (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET name = excluded.name
		RETURNING id
	`
	return r.upsert(ctx, "department", &dept.ID, query, dept.Name)
}

// UpsertCategory inserts or updates a category keyed by name
func (r *ReferenceRepository) UpsertCategory(ctx context.Context, category *entity.Category) error {
	query := `
		INSERT INTO categories (name, requires_final_closing) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET requires_final_closing = excluded.requires_final_closing
		RETURNING id
	`
	return r.upsert(ctx, "category", &category.ID, query, category.Name, category.RequiresFinalClosing)
}

// UpsertCorrectionType inserts a correction type keyed by (category, name)
func (r *ReferenceRepository) UpsertCorrectionType(ctx context.Context, ct *entity.CorrectionType) error {
	query := `
		INSERT INTO correction_types (category_id, name) VALUES (?, ?)
		ON CONFLICT(category_id, name) DO UPDATE SET name = excluded.name
		RETURNING id
	`
	return r.upsert(ctx, "correction type", &ct.ID, query, ct.CategoryID, ct.Name)
}

func (r *ReferenceRepository) upsert(ctx context.Context, kind string, id *int64, query string, args ...interface{}) error {
	if err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(id); err != nil {
		r.logger.Error("Failed to upsert "+kind, zap.Any("args", args), zap.Error(err))
		return fmt.Errorf("failed to upsert %s: %w", kind, err)
	}
	return nil
}

// Verify interface compliance
var _ port.ReferenceRepository = (*ReferenceRepository)(nil)
