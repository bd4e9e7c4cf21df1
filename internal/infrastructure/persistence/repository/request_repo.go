package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/infrastructure/persistence/sqlite"
)

const requestColumns = `
	id, document_no, title, description, category_id, correction_type_id,
	department_id, requester_id, current_status_id, status, current_approval_step,
	approval_token, created_at, updated_at
`

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new request
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	query := `
		INSERT INTO requests (
			document_no, title, description, category_id, correction_type_id,
			department_id, requester_id, current_status_id, status, current_approval_step,
			approval_token, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		req.DocumentNo,
		req.Title,
		req.Description,
		req.CategoryID,
		nullInt64(req.CorrectionTypeID),
		req.DepartmentID,
		req.RequesterID,
		req.CurrentStatusID,
		req.Status,
		req.CurrentApprovalStep,
		nullString(req.ApprovalToken),
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.String("document_no", req.DocumentNo), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	return nil
}

// GetByID retrieves a request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	row := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// GetByToken retrieves a request by its approval token
func (r *RequestRepository) GetByToken(ctx context.Context, token string) (*entity.Request, error) {
	row := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE approval_token = ?`, token)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request by token", zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// ApplyTransition writes the new status id, status code and step together
func (r *RequestRepository) ApplyTransition(ctx context.Context, t entity.RequestTransition) (bool, error) {
	query := `
		UPDATE requests
		SET current_status_id = ?,
			status = ?,
			current_approval_step = ?,
			approval_token = CASE WHEN ? THEN NULL ELSE approval_token END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND current_status_id = ?
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		t.NextStatusID,
		t.NextStatusCode,
		t.NextStep,
		t.ClearToken,
		t.RequestID,
		t.ExpectedStatusID,
	)
	if err != nil {
		r.logger.Error("Failed to apply transition",
			zap.Int64("request_id", t.RequestID),
			zap.String("next_status", t.NextStatusCode),
			zap.Error(err))
		return false, fmt.Errorf("failed to apply transition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListActive returns non-terminal requests in the given categories
func (r *RequestRepository) ListActive(ctx context.Context, categoryIDs []int64) ([]*entity.Request, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(categoryIDs)), ",")
	args := make([]interface{}, 0, len(categoryIDs)+2)
	for _, id := range categoryIDs {
		args = append(args, id)
	}
	args = append(args, entity.StatusClosed, entity.StatusRejected)

	query := `SELECT ` + requestColumns + ` FROM requests
		WHERE category_id IN (` + placeholders + `) AND status NOT IN (?, ?)
		ORDER BY created_at DESC, id DESC`

	requests, err := r.query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list active requests", zap.Int64s("category_ids", categoryIDs), zap.Error(err))
		return nil, fmt.Errorf("failed to list active requests: %w", err)
	}
	return requests, nil
}

// List returns requests matching filter, newest first
func (r *RequestRepository) List(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	var where []string
	var args []interface{}
	if filter.DepartmentID != nil {
		where = append(where, "department_id = ?")
		args = append(args, *filter.DepartmentID)
	}
	if filter.RequesterID != nil {
		where = append(where, "requester_id = ?")
		args = append(args, *filter.RequesterID)
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	requests, err := r.query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

func (r *RequestRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Request, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*entity.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// nullInt64 maps a nil pointer to SQL NULL
func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*entity.Request, error) {
	var req entity.Request
	var correctionTypeID sql.NullInt64
	var token sql.NullString

	err := row.Scan(
		&req.ID,
		&req.DocumentNo,
		&req.Title,
		&req.Description,
		&req.CategoryID,
		&correctionTypeID,
		&req.DepartmentID,
		&req.RequesterID,
		&req.CurrentStatusID,
		&req.Status,
		&req.CurrentApprovalStep,
		&token,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if correctionTypeID.Valid {
		v := correctionTypeID.Int64
		req.CorrectionTypeID = &v
	}
	if token.Valid {
		v := token.String
		req.ApprovalToken = &v
	}
	return &req, nil
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)
