package duplicate

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

type dbQuerier struct{ db *sql.DB }

func (d dbQuerier) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

func TestCheckClassifiesCriticalSeverity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(500)))

	rows := sqlmock.NewRows([]string{"d", "k", "c"}).
		AddRow("2024-01-01", "A", int64(50)).
		AddRow("2024-01-02", "B", int64(50))
	mock.ExpectQuery("GROUP BY").WillReturnRows(rows)

	report, err := Check(context.Background(), dbQuerier{db}, "T", "", []string{"d", "k"}, time.Time{}, time.Time{}, Thresholds{})
	require.NoError(t, err)
	assert.EqualValues(t, 98, report.DuplicateRows)
	assert.EqualValues(t, 500, report.TotalRows)
	assert.Equal(t, model.SeverityCritical, report.Severity)
	assert.Len(t, report.Groups, 2)
}

func TestCheckRequiresKeyColumns(t *testing.T) {
	_, err := Check(context.Background(), nil, "T", "", nil, time.Time{}, time.Time{}, Thresholds{})
	require.Error(t, err)
}
