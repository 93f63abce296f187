package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"snowetl/internal/appctx"
	"snowetl/internal/deletion"
	"snowetl/internal/model"
)

func newDeleteCommand() *cobra.Command {
	var (
		month       string
		table       string
		dateColumn  string
		dryRun      bool
		yes         bool
		previewRows int
	)
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete one calendar month of rows from a table, with impact preview",
		RunE: func(cmd *cobra.Command, args []string) error {
			monthT, err := time.Parse("2006-01", month)
			if err != nil {
				return model.NewKindError(model.ErrConfig, fmt.Errorf("invalid --month %q: %w", month, err))
			}

			ctx := cmd.Context()
			app, err := appctx.New(ctx, appctx.Options{ConfigPath: flags.configPath, Logger: appLogger})
			if err != nil {
				return err
			}
			defer app.Close()

			target := deletion.Plan(table, dateColumn, monthT)
			result, err := deletion.Run(ctx, app.Warehouse, target, dateColumn, deletion.Options{
				DryRun:      dryRun,
				Confirmed:   yes,
				PreviewRows: previewRows,
			})
			if err != nil && !yes && result.Phase == model.DeletionAborted && result.RowsBefore > 0 {
				if !confirmInteractive(cmd, result) {
					return model.NewKindError(model.ErrUserAborted, fmt.Errorf("deletion cancelled"))
				}
				result, err = deletion.Run(ctx, app.Warehouse, target, dateColumn, deletion.Options{
					DryRun: dryRun, Confirmed: true, PreviewRows: previewRows,
				})
			}
			if err != nil {
				return model.NewKindError(model.ErrWarehouseQuery, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "phase=%s before=%d deleted=%d after=%d deleted_pct=%.2f dry_run=%t\n",
				result.Phase, result.RowsBefore, result.RowsDeleted, result.RowsAfter, result.DeletionPercent, result.DryRun)
			if !result.RecoveryTimestamp.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "recovery_timestamp=%s execution_time=%s\n",
					result.RecoveryTimestamp.Format(time.RFC3339), result.ExecutionTime)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "target month, YYYY-MM (required)")
	cmd.Flags().StringVar(&table, "table", "", "target table (required)")
	cmd.Flags().StringVar(&dateColumn, "date-column", "", "column deletion bounds are computed against (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report impact without deleting")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the interactive confirmation prompt")
	cmd.Flags().IntVar(&previewRows, "preview-rows", 10, "number of sample rows fetched before deleting (the rows are not printed)")
	cmd.MarkFlagRequired("month")
	cmd.MarkFlagRequired("table")
	cmd.MarkFlagRequired("date-column")
	return cmd
}

func confirmInteractive(cmd *cobra.Command, result model.DeletionResult) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "about to delete rows from %s (%s); type 'yes' to continue: ",
		result.Target.Table, result.Target.Month.Format("2006-01"))
	reader := bufio.NewReader(cmd.InOrStdin())
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(strings.ToLower(line)) == "yes"
}
