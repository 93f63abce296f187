package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"snowetl/internal/config"
	"snowetl/internal/format"
	"snowetl/internal/model"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect or migrate run configuration files"}
	cmd.AddCommand(newConfigMigrateCommand(), newConfigGenerateCommand())
	return cmd
}

func newConfigMigrateCommand() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade a v1 flat-key config file to the current nested shape",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(in)
			if err != nil {
				return model.NewKindError(model.ErrConfig, err)
			}
			var flat map[string]any
			if err := json.Unmarshal(raw, &flat); err != nil {
				return model.NewKindError(model.ErrConfig, fmt.Errorf("parse %s: %w", in, err))
			}

			nested := config.MigrateV1(flat)
			encoded, err := json.MarshalIndent(nested, "", "  ")
			if err != nil {
				return err
			}

			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			}
			return os.WriteFile(out, encoded, 0o644)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "path to the v1 config file (required)")
	cmd.Flags().StringVar(&out, "out", "", "path to write the migrated config (default: stdout)")
	cmd.MarkFlagRequired("in")
	return cmd
}

func newConfigGenerateCommand() *cobra.Command {
	var dir, out string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Scan a directory of sample files and emit a skeleton config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := generateSkeleton(dir)
			if err != nil {
				return model.NewKindError(model.ErrConfig, err)
			}
			encoded, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			}
			return os.WriteFile(out, encoded, 0o644)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory of sample files to scan")
	cmd.Flags().StringVar(&out, "out", "", "path to write the generated config (default: stdout)")
	return cmd
}

// skeletonConfig mirrors model.Configuration's JSON shape but leaves
// warehouse credentials and expected_columns blank/placeholder: this
// command never infers a schema from file content, only its format.
type skeletonConfig struct {
	Warehouse model.WarehouseConfig `json:"warehouse"`
	Files     []skeletonFileSpec    `json:"files"`
}

type skeletonFileSpec struct {
	FilePattern     string   `json:"file_pattern"`
	TableName       string   `json:"table_name"`
	DateColumn      string   `json:"date_column"`
	ExpectedColumns []string `json:"expected_columns"`
	Delimiter       string   `json:"delimiter"`
	FileFormat      string   `json:"file_format"`
}

// generateSkeleton scans dir for distinct filename patterns (by collapsing
// each run of six or more digits/dashes to {month}) and uses the Format
// Detector to fill in delimiter/format, leaving expected_columns as a
// placeholder the operator must fill in by hand.
func generateSkeleton(dir string) (skeletonConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return skeletonConfig{}, err
	}

	seen := map[string]bool{}
	var cfg skeletonConfig
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		pattern := guessPattern(name)
		if seen[pattern] {
			continue
		}
		seen[pattern] = true

		det, err := format.Detect(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		cfg.Files = append(cfg.Files, skeletonFileSpec{
			FilePattern:     pattern,
			TableName:       "TODO",
			DateColumn:      "TODO",
			ExpectedColumns: []string{"TODO"},
			Delimiter:       string(det.Delimiter),
			FileFormat:      string(det.Format),
		})
	}
	return cfg, nil
}

// guessPattern replaces every run of six or more digits and dashes in name
// (such as YYYYMM or YYYY-MM) with the {month} placeholder so recurring
// monthly drops collapse to one FileSpec.
func guessPattern(name string) string {
	var b strings.Builder
	i := 0
	for i < len(name) {
		if j := digitRunLength(name[i:]); j >= 6 {
			b.WriteString("{month}")
			i += j
			continue
		}
		b.WriteByte(name[i])
		i++
	}
	return b.String()
}

func digitRunLength(s string) int {
	n := 0
	for n < len(s) && (s[n] >= '0' && s[n] <= '9' || s[n] == '-') {
		n++
	}
	return n
}
