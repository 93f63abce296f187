// Package pipeline implements the per-file Pipeline Controller: the ordered
// phase state machine from spec.md §4.7 (analyze → QC-gate → compress →
// stage upload → load → post-validate → cleanup). It is the direct
// generalization of the ingestion pipeline's "PreLoadSetup → pipeline
// workers → PostLoadCleanup" shape, with every phase emitting a
// ProgressEvent the way the teacher's workers push results onto a shared
// channel for the aggregator to consume.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"snowetl/internal/analyze"
	"snowetl/internal/asyncjob"
	"snowetl/internal/compress"
	"snowetl/internal/model"
	"snowetl/internal/stage"
	"snowetl/internal/validate"
	"snowetl/internal/warehouse"
)

// Warehouse is the slice of the warehouse façade the controller's load
// phase depends on. Satisfied by *warehouse.Client; kept as an interface,
// the same seam stage.Putter and asyncjob.JobClient use, so a pipeline run
// can be driven end-to-end against a fake in tests without a real
// warehouse connection.
type Warehouse interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	ExecAsync(ctx context.Context, query string) (warehouse.JobHandle, error)
}

// Deps bundles every external dependency the controller needs. Grouping
// them into one struct keeps Run's signature stable as the spec's phase
// list grows.
type Deps struct {
	Warehouse  Warehouse
	Stage      *stage.Manager
	Supervisor *asyncjob.Supervisor
	Emit       func(model.ProgressEvent)
	Tuning     model.Tuning
	SkipQC     bool
	Validate   bool // "--validate-in-snowflake": promote validation failure to load failure
}

// Run drives rf through every phase and returns a terminal LoadResult. It
// never panics on a phase failure — each phase's error is classified and
// attached to the result, and the pipeline stops there.
func Run(ctx context.Context, jobID string, rf model.ResolvedFile, deps Deps) model.LoadResult {
	start := time.Now()
	result := model.LoadResult{JobID: jobID, File: rf, Phase: model.PhasePending}

	emit := deps.Emit
	if emit == nil {
		emit = func(model.ProgressEvent) {}
	}
	emit(model.ProgressEvent{Kind: model.EventAnalyzeStart, JobID: jobID, File: rf.Path, Timestamp: time.Now()})

	result.Phase = model.PhaseAnalyzing
	analysis, err := runAnalyze(rf, deps.SkipQC)
	if err != nil {
		return fail(result, start, model.ErrFileNotFound, err)
	}

	if !deps.SkipQC {
		if reasons := analysis.Anomalies(); len(reasons) > 0 {
			return fail(result, start, model.ErrQualityCheck, fmt.Errorf("quality check failed: %v", reasons))
		}
		if err := checkDateRange(analysis, rf); err != nil {
			return fail(result, start, model.ErrQualityCheck, err)
		}
	}

	result.Phase = model.PhaseCompressing
	compRes, err := runCompress(rf.Path, deps, jobID, emit)
	if err != nil {
		return fail(result, start, model.ErrUnknown, err)
	}
	defer os.Remove(compRes.OutputPath)
	result.BytesCompressed = compRes.BytesOut

	result.Phase = model.PhaseStaging
	stagePath := fmt.Sprintf("%s.gz", baseName(rf.Path))
	uploadResults := deps.Stage.PutAll(ctx, []stage.Upload{{LocalPath: compRes.OutputPath, StagePath: stagePath}})
	if err := uploadResults[0].Err; err != nil {
		return fail(result, start, model.ErrWarehouseConnection, err)
	}
	emit(model.ProgressEvent{Kind: model.EventUploadProgress, JobID: jobID, File: rf.Path, Current: compRes.BytesOut, Total: compRes.BytesOut, Timestamp: time.Now()})

	result.Phase = model.PhaseLoading
	rowsLoaded, err := runLoad(ctx, rf, deps, jobID, stagePath, analysis, emit)
	if err != nil {
		return fail(result, start, model.ErrWarehouseQuery, err)
	}
	result.RowsLoaded = rowsLoaded

	if err := deps.Stage.PurgeOnSuccess(ctx); err != nil {
		// a purge failure is ignored; it never fails the pipeline
	}

	result.Phase = model.PhaseValidating
	vr, err := validate.Validate(ctx, deps.Warehouse, rf.Spec.TableName, rf.Spec.DateColumn, rf.ExpectedRangeStart, rf.ExpectedRangeEnd)
	status := model.PhaseDone
	if err == nil {
		result.Validation = &vr
		if !vr.Passed() && deps.Validate {
			return fail(result, start, model.ErrValidationFailed, fmt.Errorf("validation failed: %v", vr.Reasons))
		}
	}

	result.Phase = status
	result.Duration = time.Since(start)
	emit(model.ProgressEvent{Kind: model.EventLoadDone, JobID: jobID, File: rf.Path, Timestamp: time.Now()})
	return result
}

func runAnalyze(rf model.ResolvedFile, skipQC bool) (model.FileAnalysis, error) {
	opts := analyze.Options{
		Delimiter:   rf.EffectiveDelimiter(),
		HasHeader:   rf.EffectiveHasHeader(),
		DateColumn:  rf.Spec.DateColumn,
		Columns:     rf.Spec.ExpectedColumns,
		KeyColumns:  rf.Spec.DuplicateKeyColumns,
		SkipQC:      skipQC,
		SampleLimit: 5,
	}
	return analyze.Analyze(rf, opts)
}

func runCompress(path string, deps Deps, jobID string, emit func(model.ProgressEvent)) (compress.Result, error) {
	t := deps.Tuning.WithDefaults()
	return compress.Compress(path, compress.Options{
		Level:      t.CompressionLevel,
		ChunkBytes: t.CompressChunkBytes,
		OnProgress: func(cur, total int64) {
			emit(model.ProgressEvent{Kind: model.EventCompressProgress, JobID: jobID, File: path, Current: cur, Total: total, Timestamp: time.Now()})
		},
	})
}

func runLoad(ctx context.Context, rf model.ResolvedFile, deps Deps, jobID, stagePath string, analysis model.FileAnalysis, emit func(model.ProgressEvent)) (int64, error) {
	t := deps.Tuning.WithDefaults()
	opts := warehouse.CopyOptions{
		TargetTable: rf.Spec.TableName,
		StagePath:   deps.Stage.Name() + "/" + stagePath,
		Delimiter:   rf.Spec.DelimiterRune(),
		SkipHeader:  true,
		QuoteChar:   quoteRune(rf.Spec.QuoteChar),
	}
	stmt, args := warehouse.BuildCopyStatement(opts)

	if analysis.File.SizeBytes > t.AsyncThresholdBytes || analysis.RowCount*200 > t.AsyncThresholdBytes {
		handle, err := deps.Warehouse.ExecAsync(ctx, stmt)
		if err != nil {
			return 0, err
		}
		emit(model.ProgressEvent{Kind: model.EventLoadSubmitted, JobID: jobID, File: rf.Path, Timestamp: time.Now()})
		if _, err := deps.Supervisor.Run(ctx, handle); err != nil {
			return 0, err
		}
		return analysis.RowCount, nil
	}

	if _, err := deps.Warehouse.Exec(ctx, stmt, args...); err != nil {
		return 0, err
	}
	return analysis.RowCount, nil
}

// checkDateRange enforces spec.md §4.7 step 2: the file's observed date
// min/max must fall within the pattern's expected date range. An empty
// expected range (zero value) or an analysis with no parsed dates (SkipQC,
// or a file with no date column) is tolerated.
func checkDateRange(analysis model.FileAnalysis, rf model.ResolvedFile) error {
	if rf.ExpectedRangeStart.IsZero() || rf.ExpectedRangeEnd.IsZero() {
		return nil
	}
	if analysis.MinDate.IsZero() && analysis.MaxDate.IsZero() {
		return nil
	}
	if analysis.MinDate.Before(rf.ExpectedRangeStart) || analysis.MaxDate.After(rf.ExpectedRangeEnd) {
		return fmt.Errorf("observed date range [%s, %s] falls outside expected [%s, %s]",
			analysis.MinDate.Format("2006-01-02"), analysis.MaxDate.Format("2006-01-02"),
			rf.ExpectedRangeStart.Format("2006-01-02"), rf.ExpectedRangeEnd.Format("2006-01-02"))
	}
	return nil
}

func fail(result model.LoadResult, start time.Time, kind model.ErrorKind, err error) model.LoadResult {
	result.Phase = model.PhaseFailed
	result.Duration = time.Since(start)
	result.Err = model.NewKindError(kind, err)
	return result
}

func baseName(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	return path[i+1:]
}

func quoteRune(s string) rune {
	if s == "" {
		return 0
	}
	return []rune(s)[0]
}
