package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"snowetl/internal/appctx"
	"snowetl/internal/deletion"
	"snowetl/internal/model"
	"snowetl/internal/validate"
)

// newValidateCommand builds "validate": per spec.md §6 it has no required
// flags. With no --table it runs the post-load validator against every
// table named in the configured file specs; --month narrows the range to
// one calendar month (default: the current month); --output redirects the
// report to a file instead of stdout.
func newValidateCommand() *cobra.Command {
	var (
		tableFlag string
		month     string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the post-load validator against one or every configured table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := appctx.New(ctx, appctx.Options{ConfigPath: flags.configPath, Logger: appLogger})
			if err != nil {
				return err
			}
			defer app.Close()

			monthT := time.Now()
			if month != "" {
				monthT, err = time.Parse("2006-01", month)
				if err != nil {
					return model.NewKindError(model.ErrConfig, fmt.Errorf("invalid --month %q: %w", month, err))
				}
			}
			start, end := deletion.MonthBounds(monthT)

			specs := app.Config.Files
			if tableFlag != "" {
				specs = filterSpecsByTable(specs, tableFlag)
				if len(specs) == 0 {
					return model.NewKindError(model.ErrConfig, fmt.Errorf("no configured file spec targets table %q", tableFlag))
				}
			}

			out, closeOut, err := outputWriter(cmd, output)
			if err != nil {
				return model.NewKindError(model.ErrConfig, err)
			}
			defer closeOut()

			var anyInvalid bool
			for _, spec := range specs {
				result, err := validate.Validate(ctx, app.Warehouse, spec.TableName, spec.DateColumn, start, end)
				if err != nil {
					return model.NewKindError(model.ErrWarehouseQuery, err)
				}
				if !result.Passed() {
					anyInvalid = true
				}

				if flags.jsonOutput {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(result); err != nil {
						return err
					}
				} else {
					printValidationTable(out, result)
				}
			}

			if anyInvalid {
				return model.NewKindError(model.ErrValidationFailed, fmt.Errorf("one or more tables failed validation"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tableFlag, "table", "", "limit validation to this table (default: every configured table)")
	cmd.Flags().StringVar(&month, "month", "", "calendar month to validate, YYYY-MM (default: current month)")
	cmd.Flags().StringVar(&output, "output", "", "write the report to this file instead of stdout")
	return cmd
}

// filterSpecsByTable returns the subset of specs whose TableName matches table.
func filterSpecsByTable(specs []model.FileSpec, table string) []model.FileSpec {
	var out []model.FileSpec
	for _, s := range specs {
		if s.TableName == table {
			out = append(out, s)
		}
	}
	return out
}

// outputWriter resolves where a subcommand's report should go: path == ""
// writes to cmd's own stdout, otherwise a new file is created and the
// caller must call the returned close func.
func outputWriter(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, func() {}, err
	}
	return f, func() { f.Close() }, nil
}

func printValidationTable(w io.Writer, r model.ValidationResult) {
	fmt.Fprintf(w, "table=%s rows=%d severity=%s mean=%.2f median=%.2f q1=%.2f q3=%.2f stdev=%.2f min=%d max=%d\n",
		r.Table, r.RowCount, r.Severity, r.MeanRowsPerDay, r.MedianRowsPerDay, r.Q1RowsPerDay, r.Q3RowsPerDay,
		r.StdDevRowsPerDay, r.MinRowsPerDay, r.MaxRowsPerDay)

	tw := NewTableWriter(w)
	tw.SetHeader([]string{"Missing Range Start", "Missing Range End"})
	for _, m := range r.MissingDates {
		tw.Append([]string{m.Start.Format("2006-01-02"), m.End.Format("2006-01-02")})
	}
	tw.Render()

	tw2 := NewTableWriter(w)
	tw2.SetHeader([]string{"Anomalous Day", "Row Count", "Severity", "% of Avg", "Expected Range"})
	for _, a := range r.AnomalousDays {
		tw2.Append([]string{
			a.Date.Format("2006-01-02"),
			fmt.Sprintf("%d", a.RowCount),
			string(a.Severity),
			fmt.Sprintf("%.2f", a.PercentOfAvg),
			fmt.Sprintf("%d-%d", a.ExpectedLow, a.ExpectedHigh),
		})
	}
	tw2.Render()
}
