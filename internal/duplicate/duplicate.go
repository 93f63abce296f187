// Package duplicate implements the duplicate checker: given a table and a
// key-column list it reports the top duplicate groups and a severity
// classification of how bad the duplication is relative to the table.
package duplicate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"snowetl/internal/model"
)

// Querier is the warehouse operation this component depends on.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Thresholds configures the duplicate-ratio → severity mapping named in
// spec.md §4.10; zero values take the documented defaults.
type Thresholds struct {
	Critical float64
	High     float64
	Medium   float64
}

func (t Thresholds) withDefaults() Thresholds {
	if t.Critical == 0 {
		t.Critical = 0.10
	}
	if t.High == 0 {
		t.High = 0.05
	}
	if t.Medium == 0 {
		t.Medium = 0.01
	}
	return t
}

const maxGroups = 1000

// Check runs the duplicate-group query for table over keyColumns, optionally
// bounded by [start,end] on dateColumn (dateColumn == "" disables the
// predicate), and classifies the result. The total-row count used for the
// duplicate ratio is counted fresh from the table, not supplied by the
// caller, so the severity classification always reflects the table's
// current size.
func Check(ctx context.Context, q Querier, table, dateColumn string, keyColumns []string, start, end time.Time, th Thresholds) (model.DuplicateReport, error) {
	if len(keyColumns) == 0 {
		return model.DuplicateReport{}, fmt.Errorf("duplicate check requires at least one key column")
	}
	th = th.withDefaults()

	totalRows, err := countTotalRows(ctx, q, table, dateColumn, start, end)
	if err != nil {
		return model.DuplicateReport{}, err
	}

	cols := strings.Join(keyColumns, ", ")
	query := fmt.Sprintf(`SELECT %s, COUNT(*) c FROM IDENTIFIER(?) `, cols)
	args := []any{table}
	if dateColumn != "" && !start.IsZero() && !end.IsZero() {
		query += fmt.Sprintf("WHERE %s BETWEEN ? AND ? ", dateColumn)
		args = append(args, start, end)
	}
	query += fmt.Sprintf("GROUP BY %s HAVING COUNT(*) > 1 ORDER BY c DESC LIMIT %d", cols, maxGroups)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return model.DuplicateReport{}, fmt.Errorf("duplicate group query: %w", err)
	}
	defer rows.Close()

	var groups []model.DuplicateGroup
	var duplicateRows int64
	for rows.Next() {
		vals := make([]any, len(keyColumns)+1)
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return model.DuplicateReport{}, fmt.Errorf("scan duplicate group row: %w", err)
		}
		count := vals[len(vals)-1].(int64)
		key := make([]string, len(keyColumns))
		for i := range keyColumns {
			key[i] = fmt.Sprintf("%v", vals[i])
		}
		groups = append(groups, model.DuplicateGroup{Key: key, Count: count})
		duplicateRows += count - 1
	}
	if err := rows.Err(); err != nil {
		return model.DuplicateReport{}, fmt.Errorf("iterate duplicate group rows: %w", err)
	}

	severity := model.SeverityLow
	if totalRows > 0 {
		ratio := float64(duplicateRows) / float64(totalRows)
		switch {
		case ratio > th.Critical:
			severity = model.SeverityCritical
		case ratio > th.High:
			severity = model.SeverityHigh
		case ratio > th.Medium:
			severity = model.SeverityMedium
		}
	}

	return model.DuplicateReport{
		Table:         table,
		TotalRows:     totalRows,
		DuplicateRows: duplicateRows,
		Groups:        groups,
		Severity:      severity,
	}, nil
}

// countTotalRows counts every row table has, bounded by the same optional
// [start,end] predicate on dateColumn the group query uses, so the
// duplicate ratio is computed against the same population it was found in.
func countTotalRows(ctx context.Context, q Querier, table, dateColumn string, start, end time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM IDENTIFIER(?)`
	args := []any{table}
	if dateColumn != "" && !start.IsZero() && !end.IsZero() {
		query += fmt.Sprintf(" WHERE %s BETWEEN ? AND ?", dateColumn)
		args = append(args, start, end)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("count total rows: %w", err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scan total row count: %w", err)
		}
	}
	return n, rows.Err()
}
