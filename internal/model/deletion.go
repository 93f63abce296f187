package model

import "time"

// DeletionTarget names one (table, month) pair slated for deletion. Month
// bounds are computed with calendar awareness (see internal/deletion) so
// that 30-day assumptions never clip or overrun a month's actual length.
type DeletionTarget struct {
	Table      string
	Month      time.Time
	RangeStart time.Time
	RangeEnd   time.Time
}

// DeletionPhase names a step of the deletion executor's state machine.
type DeletionPhase string

const (
	DeletionPlanned   DeletionPhase = "PLANNED"
	DeletionCounted   DeletionPhase = "COUNTED"
	DeletionConfirmed DeletionPhase = "CONFIRMED"
	DeletionExecuted  DeletionPhase = "EXECUTED"
	DeletionVerified  DeletionPhase = "VERIFIED"
	DeletionAborted   DeletionPhase = "ABORTED"
)

// DeletionResult is the outcome of running a DeletionTarget through the
// deletion executor, whether or not it was actually applied (DryRun).
type DeletionResult struct {
	Target      DeletionTarget
	Phase       DeletionPhase
	RowsBefore  int64
	RowsDeleted int64
	RowsAfter   int64
	// DeletionPercent is RowsDeleted as a percentage of RowsBefore, held at
	// decimal precision since it's reported back to operators deciding
	// whether a deletion looked sane.
	DeletionPercent float64
	// RecoveryTimestamp is the warehouse's CURRENT_TIMESTAMP() captured
	// immediately before the DELETE ran, the Time-Travel anchor an operator
	// needs to UNDROP or query the pre-delete state (spec.md §4.11 step e).
	RecoveryTimestamp time.Time
	ExecutionTime      time.Duration
	DryRun             bool
	Err                error
}

func (r DeletionResult) Applied() bool {
	return r.Phase == DeletionExecuted || r.Phase == DeletionVerified
}
