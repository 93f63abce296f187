package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"snowetl/internal/logging"
	"snowetl/internal/model"
	"snowetl/internal/progress"
)

// globalFlags holds the root command's persistent flags, shared by every
// subcommand, plus the load-only --skip-qc and --validate-in-snowflake flags.
type globalFlags struct {
	configPath string
	logDir     string
	logLevel   string
	workers    int
	quiet      bool
	jsonOutput bool
	skipQC     bool
	validate   bool
}

var flags globalFlags

// appLogger is built once in the root command's PersistentPreRunE and read
// by every subcommand's RunE; it is the one deliberate package-level value
// in this tree; everything else is threaded through appctx.Context.
var appLogger *zap.Logger

// NewRootCommand builds the full command tree: load, delete, validate,
// check-duplicates, report, compare, and the supplemented config
// subcommands.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "snowetl",
		Short:         "Bulk CSV/TSV ingestion engine for the warehouse",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "config.json", "path to the run configuration file")
	root.PersistentFlags().StringVar(&flags.logDir, "log-dir", "logs", "directory for the run log and structured events file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().IntVar(&flags.workers, "workers", 0, "max concurrent pipeline workers (0 = auto)")
	root.PersistentFlags().BoolVar(&flags.quiet, "quiet", false, "suppress the live progress display")
	root.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "emit machine-readable JSON output")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(flags.logDir, 0o755); err != nil {
			return model.NewKindError(model.ErrConfig, err)
		}
		logger, err := logging.New(logging.Options{LogDir: flags.logDir, Level: parseLevel(flags.logLevel), Quiet: flags.quiet})
		if err != nil {
			return model.NewKindError(model.ErrConfig, err)
		}
		appLogger = logger
		return nil
	}

	root.AddCommand(
		newLoadCommand(),
		newDeleteCommand(),
		newValidateCommand(),
		newDuplicatesCommand(),
		newReportCommand(),
		newCompareCommand(),
		newConfigCommand(),
	)
	return root
}

// trackerMode resolves the progress display mode from the global flags.
func trackerMode() progress.Mode {
	switch {
	case flags.quiet:
		return progress.ModeSilent
	case flags.jsonOutput:
		return progress.ModeSilent
	default:
		return progress.ModePlain
	}
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
