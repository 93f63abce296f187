package asyncjob

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowetl/internal/model"
	"snowetl/internal/warehouse"
)

type fakeClient struct {
	pollResults []warehouse.JobStatus
	pollIdx     int32
	cancelled   int32
	keepAlives  int32
}

func (f *fakeClient) Poll(ctx context.Context, handle warehouse.JobHandle) (warehouse.JobStatus, error) {
	i := atomic.AddInt32(&f.pollIdx, 1) - 1
	if int(i) >= len(f.pollResults) {
		return f.pollResults[len(f.pollResults)-1], nil
	}
	return f.pollResults[i], nil
}

func (f *fakeClient) Cancel(ctx context.Context, handle warehouse.JobHandle) error {
	atomic.AddInt32(&f.cancelled, 1)
	return nil
}

func (f *fakeClient) KeepAlive(ctx context.Context) error {
	atomic.AddInt32(&f.keepAlives, 1)
	return nil
}

func TestSupervisorReachesSucceeded(t *testing.T) {
	fc := &fakeClient{pollResults: []warehouse.JobStatus{warehouse.JobRunning, warehouse.JobRunning, warehouse.JobSucceeded}}
	s := New(fc, model.Tuning{PollInterval: 5 * time.Millisecond, KeepAliveInterval: time.Hour, WallClockCeiling: time.Second})

	state, err := s.Run(context.Background(), warehouse.JobHandle{QueryID: "q1"})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, state)
	assert.Zero(t, atomic.LoadInt32(&fc.cancelled))
}

func TestSupervisorReachesFailed(t *testing.T) {
	fc := &fakeClient{pollResults: []warehouse.JobStatus{warehouse.JobFailed}}
	s := New(fc, model.Tuning{PollInterval: 5 * time.Millisecond, KeepAliveInterval: time.Hour, WallClockCeiling: time.Second})

	state, err := s.Run(context.Background(), warehouse.JobHandle{QueryID: "q1"})
	require.Error(t, err)
	assert.Equal(t, StateFailed, state)
}

func TestSupervisorTimesOutAtCeiling(t *testing.T) {
	fc := &fakeClient{pollResults: []warehouse.JobStatus{warehouse.JobRunning}}
	s := New(fc, model.Tuning{PollInterval: 5 * time.Millisecond, KeepAliveInterval: time.Hour, WallClockCeiling: 20 * time.Millisecond})

	state, err := s.Run(context.Background(), warehouse.JobHandle{QueryID: "q1"})
	require.ErrorIs(t, err, ErrAsyncTimeout)
	assert.Equal(t, StateTimedOut, state)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fc.cancelled))
}

func TestSupervisorHonorsExternalCancellation(t *testing.T) {
	fc := &fakeClient{pollResults: []warehouse.JobStatus{warehouse.JobRunning}}
	s := New(fc, model.Tuning{PollInterval: 5 * time.Millisecond, KeepAliveInterval: time.Hour, WallClockCeiling: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	state, err := s.Run(ctx, warehouse.JobHandle{QueryID: "q1"})
	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, StateCancelled, state)
}
