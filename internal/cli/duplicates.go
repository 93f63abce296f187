package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"snowetl/internal/appctx"
	"snowetl/internal/duplicate"
	"snowetl/internal/model"
)

func newDuplicatesCommand() *cobra.Command {
	var (
		table      string
		dateColumn string
		keyColumns string
		dateRange  string
	)
	cmd := &cobra.Command{
		Use:   "check-duplicates",
		Short: "Report duplicate key groups and severity for a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			startT, endT, err := parseDateRange(dateRange)
			if err != nil {
				return model.NewKindError(model.ErrConfig, err)
			}
			keys := strings.Split(keyColumns, ",")
			for i := range keys {
				keys[i] = strings.TrimSpace(keys[i])
			}

			ctx := cmd.Context()
			app, err := appctx.New(ctx, appctx.Options{ConfigPath: flags.configPath, Logger: appLogger})
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := duplicate.Check(ctx, app.Warehouse, table, dateColumn, keys, startT, endT, duplicate.Thresholds{})
			if err != nil {
				return model.NewKindError(model.ErrWarehouseQuery, err)
			}

			if flags.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "table=%s total_rows=%d duplicate_rows=%d severity=%s\n",
					report.Table, report.TotalRows, report.DuplicateRows, report.Severity)
				tw := NewTableWriter(cmd.OutOrStdout())
				tw.SetHeader([]string{"Key", "Count"})
				for _, g := range report.Groups {
					tw.Append([]string{strings.Join(g.Key, "/"), fmt.Sprintf("%d", g.Count)})
				}
				tw.Render()
			}

			if report.Severity == model.SeverityCritical || report.Severity == model.SeverityHigh {
				return model.NewKindError(model.ErrDuplicatesFound, fmt.Errorf("duplicate severity %s", report.Severity))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "target table (required)")
	cmd.Flags().StringVar(&dateColumn, "date-column", "", "optional date column to bound the scan")
	cmd.Flags().StringVar(&keyColumns, "key-columns", "", "comma-separated duplicate-key columns (required)")
	cmd.Flags().StringVar(&dateRange, "date-range", "", "YYYY-MM-DD:YYYY-MM-DD, bounds the scan on --date-column")
	cmd.MarkFlagRequired("table")
	cmd.MarkFlagRequired("key-columns")
	return cmd
}

// parseDateRange parses spec.md §6's "YYYY-MM-DD:YYYY-MM-DD" --date-range
// shape. An empty string disables the predicate (both return values zero).
func parseDateRange(s string) (start, end time.Time, err error) {
	if s == "" {
		return time.Time{}, time.Time{}, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --date-range %q: expected YYYY-MM-DD:YYYY-MM-DD", s)
	}
	start, err = time.Parse("2006-01-02", parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --date-range start %q: %w", parts[0], err)
	}
	end, err = time.Parse("2006-01-02", parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --date-range end %q: %w", parts[1], err)
	}
	return start, end, nil
}
