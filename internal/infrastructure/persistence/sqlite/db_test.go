package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/pkg/database"
)

func openDB(t *testing.T, path string, busy time.Duration) *DB {
	t.Helper()
	db, err := database.New(database.Config{Path: path, BusyTimeout: busy}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewDB(db.DB, zap.NewNop())
}

func TestWithTransaction_CommitAndRollback(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "tx.db"), 0)
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `CREATE TABLE notes (body TEXT)`)
	require.NoError(t, err)

	err = db.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NotNil(t, TxFromContext(txCtx))
		_, err := ExecutorFor(txCtx, db.DB).ExecContext(txCtx, `INSERT INTO notes VALUES ('kept')`)
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := ExecutorFor(txCtx, db.DB).ExecContext(txCtx, `INSERT INTO notes VALUES ('dropped')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestWithTransaction_NestedReusesOuter(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "tx.db"), 0)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(outer context.Context) error {
		return db.WithTransaction(outer, func(inner context.Context) error {
			assert.Same(t, TxFromContext(outer), TxFromContext(inner))
			return nil
		})
	})
	require.NoError(t, err)
	assert.Nil(t, TxFromContext(ctx))
}

func TestWithTransaction_BusyWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.db")
	first := openDB(t, path, time.Second)
	second := openDB(t, path, 20*time.Millisecond)
	ctx := context.Background()

	var inner error
	err := first.WithTransaction(ctx, func(context.Context) error {
		inner = second.WithTransaction(ctx, func(context.Context) error { return nil })
		return nil
	})
	require.NoError(t, err)
	require.Error(t, inner)
	assert.ErrorIs(t, inner, port.ErrStorageBusy)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.False(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, IsBusy(errors.New("database is locked")))
	assert.False(t, IsBusy(nil))
}
