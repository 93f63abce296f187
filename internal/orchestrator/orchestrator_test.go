package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"snowetl/internal/model"
)

func TestRunAggregatesResultsPerFile(t *testing.T) {
	files := make([]model.ResolvedFile, 5)
	for i := range files {
		files[i] = model.ResolvedFile{Path: "f.tsv"}
	}

	var inFlight, maxInFlight int32
	run := func(ctx context.Context, jobID string, rf model.ResolvedFile) model.LoadResult {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxInFlight)
			if n <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return model.LoadResult{File: rf, Phase: model.PhaseDone, RowsLoaded: 10}
	}

	summary := Run(context.Background(), files, 2, run, nil)
	assert.Len(t, summary.Results, 5)
	assert.Equal(t, 5, summary.Processed)
	assert.EqualValues(t, 50, summary.RowsLoadedTotal)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(2))
}

func TestRunCountsFailures(t *testing.T) {
	files := []model.ResolvedFile{{Path: "a"}, {Path: "b"}}
	run := func(ctx context.Context, jobID string, rf model.ResolvedFile) model.LoadResult {
		if rf.Path == "a" {
			return model.LoadResult{File: rf, Phase: model.PhaseFailed, Err: model.NewKindError(model.ErrQualityCheck, assertErr("bad"))}
		}
		return model.LoadResult{File: rf, Phase: model.PhaseDone}
	}
	summary := Run(context.Background(), files, 2, run, nil)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Processed)
	assert.Error(t, summary.Err)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
