// Package asyncjob supervises one long-running server-side statement: it
// polls status with a bounded interval, issues keep-alive pings on a
// sibling connection so the session never idles out, enforces a wall-clock
// ceiling, and honors cooperative cancellation. The poll loop and the
// keep-alive loop run as two cooperating goroutines under one
// errgroup.Group, the same shape the ingestion pipeline uses for its
// producer/worker/aggregator trio.
package asyncjob

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"snowetl/internal/model"
	"snowetl/internal/warehouse"
)

// State is one point in the Submitted → Polling → terminal state machine.
// Transitions are monotone: once a Supervisor reaches a terminal state, it
// never leaves it.
type State int

const (
	StateSubmitted State = iota
	StatePolling
	StateSucceeded
	StateFailed
	StateTimedOut
	StateCancelled
)

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut || s == StateCancelled
}

// JobClient is the slice of the warehouse façade the supervisor needs.
// Satisfied by *warehouse.Client; kept as an interface so tests can drive
// the state machine without a real warehouse connection.
type JobClient interface {
	Poll(ctx context.Context, handle warehouse.JobHandle) (warehouse.JobStatus, error)
	Cancel(ctx context.Context, handle warehouse.JobHandle) error
	KeepAlive(ctx context.Context) error
}

// Supervisor drives one JobHandle to a terminal state.
type Supervisor struct {
	client       JobClient
	pollInterval time.Duration
	keepAlive    time.Duration
	ceiling      time.Duration
}

// New builds a Supervisor with tuning knobs; zero values take spec.md §4.5
// defaults (30s poll, 240s keep-alive, 2h ceiling).
func New(client JobClient, tuning model.Tuning) *Supervisor {
	t := tuning.WithDefaults()
	return &Supervisor{client: client, pollInterval: t.PollInterval, keepAlive: t.KeepAliveInterval, ceiling: t.WallClockCeiling}
}

// ErrAsyncTimeout is returned when the wall-clock ceiling is exceeded.
var ErrAsyncTimeout = errors.New("async job exceeded wall-clock ceiling")

// ErrCancelled is returned when the supplied context is cancelled before
// the job reaches a natural terminal state.
var ErrCancelled = errors.New("async job cancelled")

// Run drives handle to completion, returning the terminal State. On
// StateTimedOut or StateCancelled it has already attempted a server-side
// cancel of the handle before returning.
func (s *Supervisor) Run(ctx context.Context, handle warehouse.JobHandle) (State, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.ceiling)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	resultCh := make(chan State, 1)

	g.Go(func() error {
		return s.pollLoop(gctx, handle, resultCh)
	})
	g.Go(func() error {
		return s.keepAliveLoop(gctx)
	})

	var final State
	select {
	case final = <-resultCh:
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			final = StateTimedOut
		} else {
			final = StateCancelled
		}
	}

	cancel()
	_ = g.Wait()

	if final == StateTimedOut || final == StateCancelled {
		cancelCtx, cancelDone := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelDone()
		_ = s.client.Cancel(cancelCtx, handle)
	}

	switch final {
	case StateTimedOut:
		return final, ErrAsyncTimeout
	case StateCancelled:
		return final, ErrCancelled
	case StateFailed:
		return final, errors.New("async job failed")
	default:
		return final, nil
	}
}

func (s *Supervisor) pollLoop(ctx context.Context, handle warehouse.JobHandle, resultCh chan<- State) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		status, err := s.client.Poll(ctx, handle)
		if err != nil {
			select {
			case resultCh <- StateFailed:
			default:
			}
			return err
		}
		switch status {
		case warehouse.JobSucceeded:
			select {
			case resultCh <- StateSucceeded:
			default:
			}
			return nil
		case warehouse.JobFailed:
			select {
			case resultCh <- StateFailed:
			default:
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) keepAliveLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.client.KeepAlive(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}
