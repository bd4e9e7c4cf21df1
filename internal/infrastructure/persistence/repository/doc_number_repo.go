package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/infrastructure/persistence/sqlite"
)

// DocNumberRepository implements port.DocNumberRepository
type DocNumberRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocNumberRepository creates a new document sequence repository
func NewDocNumberRepository(db *sql.DB, logger *zap.Logger) port.DocNumberRepository {
	return &DocNumberRepository{
		db:     db,
		logger: logger,
	}
}

// Next increments the sequence for (prefix, year, category) in one statement
func (r *DocNumberRepository) Next(ctx context.Context, prefix string, year int, categoryID int64) (int, error) {
	query := `
		INSERT INTO document_sequences (prefix, year, category_id, last_value) VALUES (?, ?, ?, 1)
		ON CONFLICT(prefix, year, category_id) DO UPDATE SET last_value = last_value + 1
		RETURNING last_value
	`

	var seq int
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, prefix, year, categoryID).Scan(&seq)
	if err != nil {
		r.logger.Error("Failed to allocate document number",
			zap.String("prefix", prefix),
			zap.Int("year", year),
			zap.Int64("category_id", categoryID),
			zap.Error(err))
		return 0, fmt.Errorf("failed to allocate document number: %w", err)
	}
	return seq, nil
}

// Verify interface compliance
var _ port.DocNumberRepository = (*DocNumberRepository)(nil)
