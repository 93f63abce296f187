// Package validate implements the post-load validator: one aggregation
// query against the target table, followed by gap/anomaly post-processing
// performed in Go because the warehouse-side stats (mean/stddev/quartiles)
// only tell you about days that have rows, not the ones that are missing
// entirely.
package validate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"snowetl/internal/model"
)

// Querier is the warehouse operation the validator depends on.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const aggregationQuery = `
WITH daily AS (
  SELECT %s AS d, COUNT(*) AS n
  FROM IDENTIFIER(?) WHERE %s BETWEEN ? AND ?
  GROUP BY %s),
stats AS (SELECT AVG(n) m, STDDEV(n) s, MIN(n) lo, MAX(n) hi,
                 PERCENTILE_CONT(0.25) WITHIN GROUP (ORDER BY n) q1,
                 PERCENTILE_CONT(0.50) WITHIN GROUP (ORDER BY n) med,
                 PERCENTILE_CONT(0.75) WITHIN GROUP (ORDER BY n) q3
          FROM daily)
SELECT d, n, m, s, q1, med, q3, lo, hi
FROM daily CROSS JOIN stats ORDER BY d`

type dayRow struct {
	Date   time.Time
	Count  int64
	Mean   float64
	Stdev  float64
	Q1     float64
	Median float64
	Q3     float64
	Min    int64
	Max    int64
}

// Validate runs the aggregation query for table over [start,end] bound by
// dateColumn, then classifies coverage gaps and row-count anomalies.
func Validate(ctx context.Context, q Querier, table, dateColumn string, start, end time.Time) (model.ValidationResult, error) {
	query := fmt.Sprintf(aggregationQuery, dateColumn, dateColumn, dateColumn)
	rows, err := q.Query(ctx, query, table, start, end)
	if err != nil {
		return model.ValidationResult{}, fmt.Errorf("aggregation query: %w", err)
	}
	defer rows.Close()

	var days []dayRow
	var mean, stdev, q1, median, q3 float64
	var lo, hi int64
	for rows.Next() {
		var d dayRow
		if err := rows.Scan(&d.Date, &d.Count, &mean, &stdev, &q1, &median, &q3, &lo, &hi); err != nil {
			return model.ValidationResult{}, fmt.Errorf("scan aggregation row: %w", err)
		}
		d.Mean, d.Stdev, d.Q1, d.Median, d.Q3, d.Min, d.Max = mean, stdev, q1, median, q3, lo, hi
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return model.ValidationResult{}, fmt.Errorf("iterate aggregation rows: %w", err)
	}

	result := classify(table, start, end, days)
	return result, nil
}

// classify is the pure post-processing step: given per-day counts plus the
// distribution stats the warehouse already computed, find missing dates,
// group them into gaps, classify anomalies, and order failure reasons by
// the priority in spec.md §4.9.
func classify(table string, start, end time.Time, days []dayRow) model.ValidationResult {
	present := make(map[string]dayRow, len(days))
	var totalRows int64
	for _, d := range days {
		present[d.Date.Format("2006-01-02")] = d
		totalRows += d.Count
	}

	var missing []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if _, ok := present[d.Format("2006-01-02")]; !ok {
			missing = append(missing, d)
		}
	}
	gaps := groupGaps(missing)

	var mean, stdev, median, q1, q3 float64
	var dayMin, dayMax int64
	if len(days) > 0 {
		mean, stdev = days[0].Mean, days[0].Stdev
		median, q1, q3 = days[0].Median, days[0].Q1, days[0].Q3
		dayMin, dayMax = days[0].Min, days[0].Max
	}
	expectedLow, expectedHigh := expectedRange(mean)

	var anomalies []model.AnomalousDay
	var severelyLow, low, outlier int
	for _, d := range days {
		sev, z := classifyDay(d, mean, stdev)
		if sev == model.DayNormal {
			continue
		}
		anomalies = append(anomalies, model.AnomalousDay{
			Date:         d.Date,
			RowCount:     d.Count,
			ZScore:       z,
			Severity:     sev,
			PercentOfAvg: percentOfAvg(d.Count, mean),
			ExpectedLow:  expectedLow,
			ExpectedHigh: expectedHigh,
		})
		switch sev {
		case model.DaySeverelyLow:
			severelyLow++
		case model.DayLow:
			low++
		case model.DayOutlierLow, model.DayOutlierHigh:
			outlier++
		}
	}
	sort.Slice(anomalies, func(i, j int) bool {
		pi := percentOfAvg(anomalies[i].RowCount, mean)
		pj := percentOfAvg(anomalies[j].RowCount, mean)
		return pi < pj
	})

	var reasons []string
	if len(missing) > 0 {
		reasons = append(reasons, fmt.Sprintf("missing-date-count=%d", len(missing)))
	}
	if len(gaps) > 0 {
		reasons = append(reasons, fmt.Sprintf("gap-count=%d", len(gaps)))
	}
	if severelyLow > 0 {
		reasons = append(reasons, fmt.Sprintf("severely-low-count=%d", severelyLow))
	}
	if low > 0 {
		reasons = append(reasons, fmt.Sprintf("low-count=%d", low))
	}
	if outlier > 0 {
		reasons = append(reasons, fmt.Sprintf("outlier-count=%d", outlier))
	}

	severity := model.SeverityInfo
	switch {
	case severelyLow > 0 || len(gaps) > 0:
		severity = model.SeverityCritical
	case low > 0 || outlier > 0 || len(missing) > 0:
		severity = model.SeverityWarning
	}

	mr := make([]model.MissingDateRange, len(gaps))
	for i, g := range gaps {
		mr[i] = model.MissingDateRange{Start: g[0], End: g[len(g)-1]}
	}

	return model.ValidationResult{
		Table:            table,
		RangeStart:       start,
		RangeEnd:         end,
		RowCount:         totalRows,
		ExpectedRows:     totalRows, // the warehouse aggregation has no independent "expected" source; operators compare against FileAnalysis.RowCount upstream
		MissingDates:     mr,
		MeanRowsPerDay:   mean,
		MedianRowsPerDay: median,
		Q1RowsPerDay:     q1,
		Q3RowsPerDay:     q3,
		StdDevRowsPerDay: stdev,
		MinRowsPerDay:    dayMin,
		MaxRowsPerDay:    dayMax,
		AnomalousDays:    anomalies,
		Severity:         severity,
		Reasons:          reasons,
	}
}

// classifyDay applies the ±10%-of-mean tolerance band and IQR rule from
// spec.md §4.9.
func classifyDay(d dayRow, mean, _ float64) (model.DayAnomalySeverity, float64) {
	n := float64(d.Count)
	if mean == 0 {
		return model.DayNormal, 0
	}
	iqr := d.Q3 - d.Q1
	z := (n - mean) / mean

	switch {
	case n < mean*0.10:
		return model.DaySeverelyLow, z
	case n >= mean*0.90 && n <= mean*1.10:
		return model.DayNormal, z
	case n < d.Q1-1.5*iqr:
		return model.DayOutlierLow, z
	case n < mean*0.50:
		return model.DayLow, z
	case n > mean*1.10 && n > d.Q3+1.5*iqr:
		return model.DayOutlierHigh, z
	default:
		return model.DayNormal, z
	}
}

// percentOfAvg computes count as a percentage of mean at decimal precision,
// rounded to two places, so anomalous-day reports don't carry float noise.
func percentOfAvg(count int64, mean float64) float64 {
	if mean == 0 {
		return 0
	}
	pct := decimal.NewFromInt(count).Div(decimal.NewFromFloat(mean)).Mul(decimal.NewFromInt(100))
	v, _ := pct.Round(2).Float64()
	return v
}

// expectedRange is the ±10%-of-mean tolerance band from spec.md §4.9: counts
// inside it are never flagged regardless of the IQR rule.
func expectedRange(mean float64) (low, high int64) {
	if mean == 0 {
		return 0, 0
	}
	lowD := decimal.NewFromFloat(mean).Mul(decimal.NewFromFloat(0.9))
	highD := decimal.NewFromFloat(mean).Mul(decimal.NewFromFloat(1.1))
	return lowD.Round(0).IntPart(), highD.Round(0).IntPart()
}

// groupGaps folds a sorted list of missing dates into contiguous runs.
func groupGaps(missing []time.Time) [][]time.Time {
	if len(missing) == 0 {
		return nil
	}
	var gaps [][]time.Time
	run := []time.Time{missing[0]}
	for i := 1; i < len(missing); i++ {
		if missing[i].Sub(missing[i-1]) == 24*time.Hour {
			run = append(run, missing[i])
		} else {
			gaps = append(gaps, run)
			run = []time.Time{missing[i]}
		}
	}
	gaps = append(gaps, run)
	return gaps
}
