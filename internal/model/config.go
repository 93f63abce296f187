// Package model holds the data types shared across every component of the
// ingestion engine: configuration, resolved files, analysis results, load
// plans/results, validation results, deletion targets, and progress events.
// Nothing in this package talks to the filesystem or the warehouse; it is
// pure data plus the small invariants spec.md §3 attaches to each type.
package model

import (
	"fmt"
	"time"
)

// WarehouseConfig holds the credentials and target coordinates for the
// warehouse connection. It is immutable once loaded.
type WarehouseConfig struct {
	Account   string `mapstructure:"account"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Warehouse string `mapstructure:"warehouse"`
	Database  string `mapstructure:"database"`
	Schema    string `mapstructure:"schema"`
	Role      string `mapstructure:"role"`
}

func (w WarehouseConfig) Validate() error {
	switch {
	case w.Account == "":
		return fmt.Errorf("warehouse.account is required")
	case w.User == "":
		return fmt.Errorf("warehouse.user is required")
	case w.Warehouse == "":
		return fmt.Errorf("warehouse.warehouse is required")
	case w.Database == "":
		return fmt.Errorf("warehouse.database is required")
	case w.Schema == "":
		return fmt.Errorf("warehouse.schema is required")
	}
	return nil
}

// FileFormat is the delimited-text flavor of a source file.
type FileFormat string

const (
	FormatCSV     FileFormat = "CSV"
	FormatTSV     FileFormat = "TSV"
	FormatUnknown FileFormat = ""
)

// FileSpec describes one class of file this run will look for, validate and
// load. file_pattern may contain the {month} or {date_range} placeholder.
type FileSpec struct {
	FilePattern         string     `mapstructure:"file_pattern"`
	TableName           string     `mapstructure:"table_name"`
	DateColumn          string     `mapstructure:"date_column"`
	ExpectedColumns     []string   `mapstructure:"expected_columns"`
	DuplicateKeyColumns []string   `mapstructure:"duplicate_key_columns"`
	Delimiter           string     `mapstructure:"delimiter"`
	FileFormat          FileFormat `mapstructure:"file_format"`
	QuoteChar           string     `mapstructure:"quote_char"`
}

// DelimiterRune returns the configured delimiter as a rune, defaulting to
// comma or tab based on FileFormat when Delimiter is unset.
func (fs FileSpec) DelimiterRune() rune {
	if fs.Delimiter != "" {
		return []rune(fs.Delimiter)[0]
	}
	if fs.FileFormat == FormatTSV {
		return '\t'
	}
	return ','
}

// Validate enforces the invariants spec.md §3 names for a FileSpec:
// expected columns is non-empty, the date column is among them, and any
// duplicate-key columns are a subset of them.
func (fs FileSpec) Validate() error {
	if len(fs.ExpectedColumns) == 0 {
		return fmt.Errorf("file spec %q: expected_columns must not be empty", fs.FilePattern)
	}
	if fs.TableName == "" {
		return fmt.Errorf("file spec %q: table_name is required", fs.FilePattern)
	}
	if fs.DateColumn == "" {
		return fmt.Errorf("file spec %q: date_column is required", fs.FilePattern)
	}
	colSet := make(map[string]struct{}, len(fs.ExpectedColumns))
	for _, c := range fs.ExpectedColumns {
		colSet[c] = struct{}{}
	}
	if _, ok := colSet[fs.DateColumn]; !ok {
		return fmt.Errorf("file spec %q: date_column %q is not in expected_columns", fs.FilePattern, fs.DateColumn)
	}
	for _, k := range fs.DuplicateKeyColumns {
		if _, ok := colSet[k]; !ok {
			return fmt.Errorf("file spec %q: duplicate_key_column %q is not in expected_columns", fs.FilePattern, k)
		}
	}
	return nil
}

// Tuning holds the operational knobs named throughout spec.md §4; the zero
// value of every field means "use the documented default", so a bare
// Configuration{} with no Tuning block behaves exactly as spec.md describes.
type Tuning struct {
	PoolSize             int           `mapstructure:"pool_size"`
	StageParallelism     int           `mapstructure:"stage_parallelism"`
	AsyncThresholdBytes  int64         `mapstructure:"async_threshold_bytes"`
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	KeepAliveInterval    time.Duration `mapstructure:"keepalive_interval"`
	WallClockCeiling     time.Duration `mapstructure:"wall_clock_ceiling"`
	MaxWorkers           int           `mapstructure:"max_workers"`
	CompressionLevel     int           `mapstructure:"compression_level"`
	CompressChunkBytes   int64         `mapstructure:"compress_chunk_bytes"`
	UploadTimeout        time.Duration `mapstructure:"upload_timeout"`
	DuplicateExemplarCap int           `mapstructure:"duplicate_exemplar_cap"`
}

const (
	DefaultPoolSize             = 5
	DefaultStageParallelism     = 4
	DefaultAsyncThresholdBytes  = 100 * 1024 * 1024
	DefaultPollInterval         = 30 * time.Second
	DefaultKeepAliveInterval    = 240 * time.Second
	DefaultWallClockCeiling     = 2 * time.Hour
	DefaultCompressionLevel     = 1
	DefaultCompressChunkBytes   = 10 * 1024 * 1024
	DefaultUploadTimeout        = 30 * time.Minute
	DefaultDuplicateExemplarCap = 1000
)

// WithDefaults returns a copy of t with every zero-valued field replaced by
// its documented default.
func (t Tuning) WithDefaults() Tuning {
	if t.PoolSize == 0 {
		t.PoolSize = DefaultPoolSize
	}
	if t.StageParallelism == 0 {
		t.StageParallelism = DefaultStageParallelism
	}
	if t.AsyncThresholdBytes == 0 {
		t.AsyncThresholdBytes = DefaultAsyncThresholdBytes
	}
	if t.PollInterval == 0 {
		t.PollInterval = DefaultPollInterval
	}
	if t.KeepAliveInterval == 0 {
		t.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if t.WallClockCeiling == 0 {
		t.WallClockCeiling = DefaultWallClockCeiling
	}
	if t.CompressionLevel == 0 {
		t.CompressionLevel = DefaultCompressionLevel
	}
	if t.CompressChunkBytes == 0 {
		t.CompressChunkBytes = DefaultCompressChunkBytes
	}
	if t.UploadTimeout == 0 {
		t.UploadTimeout = DefaultUploadTimeout
	}
	if t.DuplicateExemplarCap == 0 {
		t.DuplicateExemplarCap = DefaultDuplicateExemplarCap
	}
	// MaxWorkers left at 0 on purpose: the orchestrator sizes it from the
	// host's CPU count at start-up when the config doesn't pin it.
	return t
}

// Configuration is the immutable, validated configuration for one run.
type Configuration struct {
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	Files     []FileSpec      `mapstructure:"files"`
	Tuning    Tuning          `mapstructure:"tuning"`
}

func (c Configuration) Validate() error {
	if err := c.Warehouse.Validate(); err != nil {
		return err
	}
	if len(c.Files) == 0 {
		return fmt.Errorf("configuration must declare at least one file spec")
	}
	for _, fs := range c.Files {
		if err := fs.Validate(); err != nil {
			return err
		}
	}
	return nil
}
