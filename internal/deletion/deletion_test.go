package deletion

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowetl/internal/model"
)

func TestMonthBoundsHonorsMonthLength(t *testing.T) {
	start, end := MonthBounds(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), end) // 2024 is a leap year

	start, end = MonthBounds(time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), end)
}

func TestRunDryRunLeavesTableUnchanged(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("WHERE FALSE").WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery("COUNT").WillReturnRows(sqlmock.NewRows([]string{"total", "matching"}).AddRow(int64(1000), int64(100)))

	target := Plan("T", "D", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	result, err := Run(context.Background(), dbExecutor{db}, target, "D", Options{DryRun: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1000, result.RowsBefore)
	assert.Zero(t, result.RowsDeleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunAbortsWhenImpactIsZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("WHERE FALSE").WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery("COUNT").WillReturnRows(sqlmock.NewRows([]string{"total", "matching"}).AddRow(int64(1000), int64(0)))

	target := Plan("T", "D", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	result, err := Run(context.Background(), dbExecutor{db}, target, "D", Options{Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, model.DeletionAborted, result.Phase)
}

func TestRunRequiresConfirmation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("WHERE FALSE").WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery("COUNT").WillReturnRows(sqlmock.NewRows([]string{"total", "matching"}).AddRow(int64(1000), int64(100)))

	target := Plan("T", "D", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err = Run(context.Background(), dbExecutor{db}, target, "D", Options{})
	require.Error(t, err)
}

func TestRunExecutesAndRecordsRecoveryAnchor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	recoveryAt := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("WHERE FALSE").WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery("COUNT").WillReturnRows(sqlmock.NewRows([]string{"total", "matching"}).AddRow(int64(1000), int64(100)))
	mock.ExpectQuery("CURRENT_TIMESTAMP").WillReturnRows(sqlmock.NewRows([]string{"ts"}).AddRow(recoveryAt))
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 100))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM IDENTIFIER").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(900)))

	target := Plan("T", "D", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	result, err := Run(context.Background(), dbExecutor{db}, target, "D", Options{Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, model.DeletionVerified, result.Phase)
	assert.EqualValues(t, 100, result.RowsDeleted)
	assert.EqualValues(t, 900, result.RowsAfter)
	assert.Equal(t, recoveryAt, result.RecoveryTimestamp)
	assert.Equal(t, 10.0, result.DeletionPercent)
	assert.Greater(t, result.ExecutionTime, time.Duration(0))
	require.NoError(t, mock.ExpectationsWereMet())
}

type dbExecutor struct{ db *sql.DB }

func (d dbExecutor) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

func (d dbExecutor) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}
