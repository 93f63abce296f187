package model

import "time"

// Severity classifies how concerning a validation or duplicate-detection
// finding is, used both for log levels and for exit-code selection in the
// CLI.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"

	// The duplicate checker uses a four-level scale instead of the
	// three-level one above, per spec.md §4.10's ratio thresholds.
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// DayAnomalySeverity classifies one day's row count against the mean and
// the IQR, per spec.md §4.9's CASE expression.
type DayAnomalySeverity string

const (
	DaySeverelyLow DayAnomalySeverity = "SEVERELY_LOW"
	DayLow         DayAnomalySeverity = "LOW"
	DayOutlierLow  DayAnomalySeverity = "OUTLIER_LOW"
	DayNormal      DayAnomalySeverity = "NORMAL"
	DayOutlierHigh DayAnomalySeverity = "OUTLIER_HIGH"
)

// MissingDateRange is a contiguous span of calendar dates with zero rows in
// the target table, bounded by DateColumn.
type MissingDateRange struct {
	Start time.Time
	End   time.Time
}

// ValidationResult is what the post-load validator produces for one
// (table, date range) after a load completes.
type ValidationResult struct {
	Table            string
	RangeStart       time.Time
	RangeEnd         time.Time
	RowCount         int64
	ExpectedRows     int64
	MissingDates     []MissingDateRange
	MeanRowsPerDay   float64
	MedianRowsPerDay float64
	Q1RowsPerDay     float64
	Q3RowsPerDay     float64
	StdDevRowsPerDay float64
	MinRowsPerDay    int64
	MaxRowsPerDay    int64
	AnomalousDays    []AnomalousDay
	Severity         Severity
	Reasons          []string
}

// AnomalousDay is a single calendar day whose row count fell outside the
// ±10%-of-mean tolerance band or the IQR rule from spec.md §4.9.
type AnomalousDay struct {
	Date         time.Time
	RowCount     int64
	ZScore       float64
	Severity     DayAnomalySeverity
	PercentOfAvg float64
	ExpectedLow  int64
	ExpectedHigh int64
}

func (v ValidationResult) Passed() bool {
	return v.Severity == SeverityInfo && len(v.MissingDates) == 0
}

// DuplicateGroup is one set of rows in the target table sharing the same
// duplicate-key column values.
type DuplicateGroup struct {
	Key       []string
	Count     int64
	Exemplars [][]string
}

// DuplicateReport is the result of the duplicate checker scanning one table.
type DuplicateReport struct {
	Table         string
	TotalRows     int64
	DuplicateRows int64
	Groups        []DuplicateGroup
	Severity      Severity
}

func (d DuplicateReport) HasDuplicates() bool {
	return d.DuplicateRows > 0
}
