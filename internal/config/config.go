// Package config loads and validates the run configuration: a JSON file
// plus WAREHOUSE_* environment overrides, via spf13/viper. It also resolves
// {month} and {date_range} placeholders in file patterns, and expands v1
// flat-key config files to the current nested shape for "config migrate".
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"snowetl/internal/format"
	"snowetl/internal/model"
)

// Load reads path as JSON, applies WAREHOUSE_* environment overrides, and
// validates the result.
func Load(path string) (model.Configuration, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("WAREHOUSE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return model.Configuration{}, model.NewKindError(model.ErrConfig, fmt.Errorf("read config: %w", err))
	}

	// Bind each warehouse.* key explicitly so AutomaticEnv picks up
	// WAREHOUSE_ACCOUNT, WAREHOUSE_USER, etc. even when the JSON file
	// doesn't set them (viper only auto-binds keys it has already seen).
	for _, key := range []string{"account", "user", "password", "warehouse", "database", "schema", "role"} {
		_ = v.BindEnv("warehouse."+key, "WAREHOUSE_"+strings.ToUpper(key))
	}

	var cfg model.Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return model.Configuration{}, model.NewKindError(model.ErrConfig, fmt.Errorf("parse config: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return model.Configuration{}, model.NewKindError(model.ErrConfig, err)
	}
	return cfg, nil
}

// ResolvePattern expands {month} and {date_range} in pattern for month,
// returning the concrete filename fragment. {month} → "YYYY-MM";
// {date_range} → "YYYYMMDD-YYYYMMDD" spanning the full calendar month
// containing month (a partial-month request is silently widened to the
// full month, matching the source's documented behavior).
func ResolvePattern(pattern string, month time.Time) string {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	last := first.AddDate(0, 1, 0).Add(-24 * time.Hour)

	out := strings.ReplaceAll(pattern, "{month}", first.Format("2006-01"))
	out = strings.ReplaceAll(out, "{date_range}", fmt.Sprintf("%s-%s", first.Format("20060102"), last.Format("20060102")))
	return out
}

// ResolveFiles expands every FileSpec's pattern against baseDir and month,
// attaches the expected date range the pattern placeholder implies, and
// runs the Format Detector against whatever exists at the resolved path. A
// file that doesn't exist yet at resolve time is still returned (with zero
// detection results); the pipeline controller's analyze phase is what
// reports InputNotFound for it.
func ResolveFiles(cfg model.Configuration, baseDir string, month time.Time) []model.ResolvedFile {
	rangeStart, rangeEnd := monthBounds(month)

	var out []model.ResolvedFile
	for _, fs := range cfg.Files {
		name := ResolvePattern(fs.FilePattern, month)
		path := filepath.Join(baseDir, name)
		rf := model.ResolvedFile{
			Spec:               fs,
			Path:               path,
			ExpectedRangeStart: rangeStart,
			ExpectedRangeEnd:   rangeEnd,
		}

		if info, err := os.Stat(path); err == nil {
			rf.SizeBytes = info.Size()
			rf.ModTime = info.ModTime()
			if det, err := format.Detect(path); err == nil {
				rf.DetectedFormat = det.Format
				rf.DetectedDelimiter = det.Delimiter
				rf.DetectedQuoteChar = det.QuoteChar
				rf.DetectedHasHeader = det.HasHeader
			}
		}

		out = append(out, rf)
	}
	return out
}

// monthBounds returns the inclusive [first, last] calendar day of the month
// containing t, the same arithmetic ResolvePattern uses to expand
// {date_range}.
func monthBounds(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, 0).Add(-24 * time.Hour)
	return first, last
}

// MigrateV1 upgrades a flat v1-shaped config map (warehouse_account,
// warehouse_user, ... at the top level) to the nested shape Load expects.
func MigrateV1(flat map[string]any) map[string]any {
	nested := map[string]any{}
	warehouse := map[string]any{}
	var files []any

	for k, v := range flat {
		switch {
		case strings.HasPrefix(k, "warehouse_"):
			warehouse[strings.TrimPrefix(k, "warehouse_")] = v
		case k == "files":
			files = toSlice(v)
		default:
			nested[k] = v
		}
	}
	nested["warehouse"] = warehouse
	if files != nil {
		nested["files"] = files
	}
	return nested
}

func toSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}
