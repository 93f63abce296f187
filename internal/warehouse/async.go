package warehouse

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/snowflakedb/gosnowflake"
)

// JobHandle is the opaque server-side query id returned by ExecAsync.
type JobHandle struct {
	QueryID string
}

// JobStatus is the coarse state of an in-flight async job, as observed by
// Poll. It deliberately mirrors the Running/Succeeded/Failed trio named in
// spec.md §4.4; the fuller Submitted/Polling/TimedOut/Cancelled state
// machine lives one layer up in internal/asyncjob.
type JobStatus int

const (
	JobRunning JobStatus = iota
	JobSucceeded
	JobFailed
)

// queryerContext is the subset of database/sql/driver's QueryerContext the
// gosnowflake driver connection implements; reaching for it through
// sql.Conn.Raw is how the driver's own docs recommend recovering a query id
// when going through database/sql instead of its native API.
type queryerContext interface {
	QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error)
}

// ExecAsync submits query without waiting for completion and returns a
// handle the caller polls, using gosnowflake's async execution mode.
func (c *Client) ExecAsync(ctx context.Context, query string) (JobHandle, error) {
	asyncCtx, err := gosnowflake.WithAsyncMode(ctx)
	if err != nil {
		return JobHandle{}, fmt.Errorf("enable async mode: %w", err)
	}

	conn, err := c.db.Conn(asyncCtx)
	if err != nil {
		return JobHandle{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	var queryID string
	err = conn.Raw(func(driverConn any) error {
		qc, ok := driverConn.(queryerContext)
		if !ok {
			return fmt.Errorf("driver connection does not support async query submission")
		}
		rows, err := qc.QueryContext(asyncCtx, query, nil)
		if err != nil {
			return err
		}
		defer rows.Close()
		if sfRows, ok := rows.(gosnowflake.SnowflakeRows); ok {
			queryID = sfRows.GetQueryID()
		}
		return nil
	})
	if err != nil {
		return JobHandle{}, fmt.Errorf("submit async query: %w", err)
	}
	if queryID == "" {
		return JobHandle{}, fmt.Errorf("submit async query: warehouse did not return a query id")
	}
	return JobHandle{QueryID: queryID}, nil
}

// Poll reports the current status of an async job. It uses Snowflake's
// RESULT_SCAN table function against the submitted query id: RESULT_SCAN
// errors with "result is not available" style codes while the statement is
// still running, returns rows once it completed successfully, and surfaces
// the warehouse's own error text when the statement failed server-side.
func (c *Client) Poll(ctx context.Context, handle JobHandle) (JobStatus, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT 1 FROM TABLE(RESULT_SCAN(?)) LIMIT 1`, handle.QueryID)
	if err != nil {
		if isStillRunning(err) {
			return JobRunning, nil
		}
		return JobFailed, fmt.Errorf("warehouse error: %w", err)
	}
	defer rows.Close()
	return JobSucceeded, nil
}

// isStillRunning recognizes the error text Snowflake returns from
// RESULT_SCAN when the underlying statement has not finished yet.
func isStillRunning(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not yet available") || strings.Contains(msg, "result not found") || strings.Contains(msg, "still running")
}

// Cancel issues a server-side abort for an in-flight async job.
func (c *Client) Cancel(ctx context.Context, handle JobHandle) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf("SELECT SYSTEM$CANCEL_QUERY('%s')", handle.QueryID))
	return err
}

// KeepAlive refreshes the session on a sibling connection of the pool so a
// long-running COPY's parent session doesn't idle out.
func (c *Client) KeepAlive(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "SELECT 1")
	return err
}
