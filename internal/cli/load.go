package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"snowetl/internal/appctx"
	"snowetl/internal/asyncjob"
	"snowetl/internal/config"
	"snowetl/internal/model"
	"snowetl/internal/orchestrator"
	"snowetl/internal/pipeline"
	"snowetl/internal/progress"
	"snowetl/internal/stage"
)

func newLoadCommand() *cobra.Command {
	var (
		month   string
		baseDir string
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Analyze, compress, stage, and load a month's worth of files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, month, baseDir)
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "target month, YYYY-MM (required)")
	cmd.Flags().StringVar(&baseDir, "base-path", "", "directory containing the source files (required)")
	cmd.Flags().BoolVar(&flags.skipQC, "skip-qc", false, "skip pre-load quality checks")
	cmd.Flags().BoolVar(&flags.validate, "validate-in-snowflake", false, "promote post-load validation failures to load failures")
	cmd.MarkFlagRequired("base-path")
	cmd.MarkFlagRequired("month")
	return cmd
}

func runLoad(cmd *cobra.Command, monthStr, baseDir string) error {
	ctx := cmd.Context()
	monthT, err := time.Parse("2006-01", monthStr)
	if err != nil {
		return model.NewKindError(model.ErrConfig, fmt.Errorf("invalid --month %q: %w", monthStr, err))
	}

	tracker := progress.New(trackerMode(), cmd.OutOrStdout())
	app, err := appctx.New(ctx, appctx.Options{ConfigPath: flags.configPath, Logger: appLogger, Tracker: tracker, PoolSize: flags.workers})
	if err != nil {
		tracker.Close()
		return err
	}
	defer app.Close()

	files := config.ResolveFiles(app.Config, baseDir, monthT)

	stageMgr, err := stage.New(ctx, app.Warehouse, monthT.Format("200601"), app.Config.Tuning.WithDefaults().StageParallelism)
	if err != nil {
		return model.NewKindError(model.ErrWarehouseConnection, err)
	}
	defer stageMgr.Close(ctx)

	supervisor := asyncjob.New(app.Warehouse, app.Config.Tuning)

	run := func(ctx context.Context, jobID string, rf model.ResolvedFile) model.LoadResult {
		return pipeline.Run(ctx, jobID, rf, pipeline.Deps{
			Warehouse:  app.Warehouse,
			Stage:      stageMgr,
			Supervisor: supervisor,
			Emit:       tracker.Emit,
			Tuning:     app.Config.Tuning,
			SkipQC:     flags.skipQC,
			Validate:   flags.validate,
		})
	}

	summary := orchestrator.Run(ctx, files, flags.workers, run, nil)
	fmt.Fprintf(cmd.OutOrStdout(), "processed=%d failed=%d skipped=%d rows=%d wall=%s\n",
		summary.Processed, summary.Failed, summary.Skipped, summary.RowsLoadedTotal, summary.WallTime)

	if summary.Failed > 0 {
		return model.NewKindError(model.ErrWarehouseQuery, summary.Err)
	}
	return nil
}
