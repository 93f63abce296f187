// Package appctx defines the application context value threaded explicitly
// through every component: the warehouse pool, the structured logger, the
// progress tracker, and the run's configuration. This deliberately replaces
// the package-level `var conn *Conn` singleton the original ingestion code
// used for its database handle — every caller here receives a *Context
// value instead of reaching for global state.
package appctx

import (
	"context"

	"go.uber.org/zap"

	"snowetl/internal/config"
	"snowetl/internal/model"
	"snowetl/internal/progress"
	"snowetl/internal/warehouse"
)

// Context bundles the shared, run-scoped resources. It is constructed by
// each subcommand's RunE in internal/cli through New and passed by reference
// to everything that needs
// it; nothing in this module stores it in a package-level variable.
type Context struct {
	Config    model.Configuration
	Warehouse *warehouse.Client
	Logger    *zap.Logger
	Tracker   *progress.Tracker
	Cancel    context.CancelFunc
}

// Options configures New.
type Options struct {
	ConfigPath string
	Logger     *zap.Logger
	Tracker    *progress.Tracker
	PoolSize   int
}

// New loads configuration, opens the warehouse pool, and assembles a
// Context. Callers own the returned Context's lifetime and must call
// Close when the run finishes.
func New(ctx context.Context, opts Options) (*Context, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	poolSize := opts.PoolSize
	if poolSize == 0 {
		poolSize = cfg.Tuning.WithDefaults().PoolSize
	}
	client, err := warehouse.Connect(ctx, cfg.Warehouse, poolSize)
	if err != nil {
		return nil, model.NewKindError(model.ErrWarehouseConnection, err)
	}

	return &Context{
		Config:    cfg,
		Warehouse: client,
		Logger:    opts.Logger,
		Tracker:   opts.Tracker,
	}, nil
}

// Close releases the warehouse pool and flushes the logger and tracker.
func (c *Context) Close() error {
	if c.Tracker != nil {
		c.Tracker.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	if c.Warehouse != nil {
		return c.Warehouse.Close()
	}
	return nil
}
