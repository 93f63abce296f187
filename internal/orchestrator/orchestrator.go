// Package orchestrator runs N pipeline controllers in parallel bounded by a
// configured worker count, aggregates per-file results, and coordinates
// cancellation. The worker pool is the direct generalization of the
// ingestion pipeline's fixed "copyWorkerCount goroutines consuming a
// channel of files" pattern, widened from "N COPY workers" to "M pipeline
// workers".
package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/multierr"

	"snowetl/internal/model"
)

// RunFunc executes one ResolvedFile's pipeline and returns its terminal
// LoadResult. Passed in by the caller (internal/cli's load command) so this package never
// imports the pipeline package directly, avoiding an import cycle between
// orchestration and per-file execution.
type RunFunc func(ctx context.Context, jobID string, rf model.ResolvedFile) model.LoadResult

// Summary aggregates the outcome of one orchestrator run.
type Summary struct {
	Processed       int
	Failed          int
	Skipped         int
	RowsLoadedTotal int64
	WallTime        time.Duration
	Results         []model.LoadResult
	Err             error
}

// DefaultMaxWorkers picks min(CPU, 8) the way spec.md §4.8 specifies,
// falling back further if available memory looks tight — the same
// resource-awareness the teacher's bulk-load pool sizing aims for, using
// gopsutil instead of a hardcoded constant.
func DefaultMaxWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.Available > 0 {
		// Each in-flight pipeline holds roughly one compression buffer and
		// one warehouse connection; leave headroom rather than starving the
		// host under memory pressure.
		byMemory := int(vm.Available / (512 * 1024 * 1024))
		if byMemory > 0 && byMemory < n {
			n = byMemory
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Run executes run for every file in files with at most maxWorkers in
// flight, FIFO scheduling, and no preemption. Cancelling ctx fans out to
// every in-flight pipeline.
func Run(ctx context.Context, files []model.ResolvedFile, maxWorkers int, run RunFunc, onDone func(model.LoadResult)) Summary {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers()
	}
	start := time.Now()

	sem := make(chan struct{}, maxWorkers)
	results := make([]model.LoadResult, len(files))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var aggErr error

	for i, rf := range files {
		i, rf := i, rf
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			select {
			case <-ctx.Done():
				results[i] = model.LoadResult{File: rf, Phase: model.PhaseFailed, Err: model.NewKindError(model.ErrUserAborted, ctx.Err())}
				return
			default:
			}

			jobID := jobIDFor(i)
			res := run(ctx, jobID, rf)
			results[i] = res
			if res.Err != nil {
				mu.Lock()
				aggErr = multierr.Append(aggErr, res.Err)
				mu.Unlock()
			}
			if onDone != nil {
				onDone(res)
			}
		}()
	}
	wg.Wait()

	summary := Summary{WallTime: time.Since(start), Results: results, Err: aggErr}
	for _, r := range results {
		switch {
		case r.Success():
			summary.Processed++
			summary.RowsLoadedTotal += r.RowsLoaded
		case r.Phase == model.PhaseFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}
	return summary
}

func jobIDFor(i int) string {
	return fmt.Sprintf("job-%d", i)
}
