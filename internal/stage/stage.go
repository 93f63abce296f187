// Package stage owns the per-run internal stage namespace: creating it,
// uploading compressed artifacts in parallel, and purging it once a COPY
// has succeeded. Parallel upload fan-out uses golang.org/x/sync/errgroup
// with a bounded SetLimit, generalizing the ingestion pipeline's fixed
// goroutine-per-worker loop into the idiomatic errgroup form.
package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"snowetl/internal/model"
)

// Putter is the warehouse operation the Stage Manager drives. Satisfied by
// *warehouse.Client.
type Putter interface {
	CreateStage(ctx context.Context, stageName string) error
	DropStage(ctx context.Context, stageName string) error
	StagePut(ctx context.Context, localPath, stagePath string, parallel int) error
	StageRemove(ctx context.Context, stagePath string) error
}

// Manager owns one run's stage namespace.
type Manager struct {
	client      Putter
	name        string
	createdAt   time.Time
	parallelism int
}

// New creates a namespace of the form "snowetl_run_<prefix>_<uuid4>" and
// ensures the underlying stage exists.
func New(ctx context.Context, client Putter, prefix string, parallelism int) (*Manager, error) {
	if parallelism <= 0 {
		parallelism = model.DefaultStageParallelism
	}
	name := fmt.Sprintf("snowetl_run_%s_%s", prefix, uuid.NewString())
	if err := client.CreateStage(ctx, name); err != nil {
		return nil, fmt.Errorf("create stage %s: %w", name, err)
	}
	return &Manager{client: client, name: name, createdAt: time.Now(), parallelism: parallelism}, nil
}

// Name is the stage's identifier, e.g. "@snowetl_run_prices_<uuid>".
func (m *Manager) Name() string {
	return "@" + m.name
}

// Upload is one artifact destined for the stage.
type Upload struct {
	LocalPath string
	StagePath string
}

// UploadResult pairs an Upload with its outcome.
type UploadResult struct {
	Upload Upload
	Err    error
}

// PutAll uploads every artifact with bounded parallelism, returning once
// every upload has been attempted. It never aborts early on a single
// failure — callers decide what a partial failure means for their plan.
func (m *Manager) PutAll(ctx context.Context, uploads []Upload) []UploadResult {
	results := make([]UploadResult, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)

	for i, u := range uploads {
		i, u := i, u
		g.Go(func() error {
			err := m.client.StagePut(gctx, u.LocalPath, m.Name()+"/"+u.StagePath, m.parallelism)
			results[i] = UploadResult{Upload: u, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// PurgeOnSuccess removes everything under the run's stage after a COPY has
// succeeded. The pipeline ignores a purge failure: it is neither logged nor
// surfaced as a pipeline error.
func (m *Manager) PurgeOnSuccess(ctx context.Context) error {
	return m.client.StageRemove(ctx, m.Name())
}

// Close drops the stage entirely, used at the end of a run regardless of
// whether every file in it succeeded.
func (m *Manager) Close(ctx context.Context) error {
	return m.client.DropStage(ctx, m.name)
}

// StalePrefixes filters namespaces by age, used at start-up to identify
// abandoned stages from prior crashed runs that are candidates for pruning.
func StalePrefixes(names []string, olderThan time.Duration, now time.Time, createdAt map[string]time.Time) []string {
	var stale []string
	for _, n := range names {
		if t, ok := createdAt[n]; ok && now.Sub(t) > olderThan {
			stale = append(stale, n)
		}
	}
	return stale
}
