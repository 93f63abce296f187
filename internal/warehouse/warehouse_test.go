package warehouse

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Client{db: db}, mock
}

func TestExecRetriesTransientErrorsThenSucceeds(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectExec("UPDATE").WillReturnError(assertErr("connection reset by peer"))
	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := c.Exec(context.Background(), "UPDATE t SET x=1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecDoesNotRetryProgrammingErrors(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectExec("UPDATE").WillReturnError(assertErr("SQL compilation error: invalid identifier"))

	_, err := c.Exec(context.Background(), "UPDATE t SET x=1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildCopyStatementDefaults(t *testing.T) {
	stmt, args := BuildCopyStatement(CopyOptions{
		TargetTable: "PRICES",
		StagePath:   "@~/run1",
		Delimiter:   '\t',
		SkipHeader:  true,
		QuoteChar:   '"',
	})
	assert.Contains(t, stmt, "ON_ERROR = ABORT_STATEMENT")
	assert.Contains(t, stmt, "SKIP_HEADER = 1")
	assert.Contains(t, stmt, "SIZE_LIMIT = 5368709120")
	assert.Equal(t, []any{"PRICES"}, args)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
