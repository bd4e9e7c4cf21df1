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

const userSelect = `
	SELECT u.id, u.name, u.email, u.role_id, r.name, u.department_id
	FROM users u
	JOIN roles r ON r.id = u.role_id
`

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a user with its role name
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	var u entity.User
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, userSelect+` WHERE u.id = ?`, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.RoleID, &u.RoleName, &u.DepartmentID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// List returns all users
func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, userSelect+` ORDER BY u.id`)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.RoleID, &u.RoleName, &u.DepartmentID); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// Upsert inserts or updates a user. An explicit ID is kept so gateway ids line up.
func (r *UserRepository) Upsert(ctx context.Context, user *entity.User) error {
	exec := sqlite.ExecutorFor(ctx, r.db)

	var err error
	if user.ID > 0 {
		_, err = exec.ExecContext(ctx, `
			INSERT INTO users (id, name, email, role_id, department_id) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, email = excluded.email,
				role_id = excluded.role_id, department_id = excluded.department_id
		`, user.ID, user.Name, user.Email, user.RoleID, user.DepartmentID)
	} else {
		err = exec.QueryRowContext(ctx, `
			INSERT INTO users (name, email, role_id, department_id) VALUES (?, ?, ?, ?)
			ON CONFLICT(email) DO UPDATE SET
				name = excluded.name, role_id = excluded.role_id, department_id = excluded.department_id
			RETURNING id
		`, user.Name, user.Email, user.RoleID, user.DepartmentID).Scan(&user.ID)
	}
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
