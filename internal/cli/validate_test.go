package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowetl/internal/model"
)

func TestValidateCommandHasNoRequiredFlags(t *testing.T) {
	cmd := newValidateCommand()
	for _, name := range []string{"table", "month", "output"} {
		f := cmd.Flags().Lookup(name)
		require.NotNilf(t, f, "expected --%s flag to exist", name)
		assert.Emptyf(t, f.Annotations[cobra.BashCompOneRequiredFlag], "expected --%s not to be required", name)
	}
	// MarkFlagRequired is never called on validate: Execute() should fail
	// only once it reaches RunE's appctx.New (missing config), never on
	// cobra's own required-flag check.
}

func TestFilterSpecsByTable(t *testing.T) {
	specs := []model.FileSpec{
		{TableName: "PRICES"},
		{TableName: "VOLUMES"},
	}
	got := filterSpecsByTable(specs, "VOLUMES")
	require.Len(t, got, 1)
	assert.Equal(t, "VOLUMES", got[0].TableName)

	assert.Empty(t, filterSpecsByTable(specs, "MISSING"))
}

func TestOutputWriterDefaultsToCommandStdout(t *testing.T) {
	cmd := newValidateCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)

	w, closeFn, err := outputWriter(cmd, "")
	require.NoError(t, err)
	defer closeFn()
	assert.Equal(t, &out, w)
}

func TestOutputWriterCreatesFile(t *testing.T) {
	cmd := newValidateCommand()
	path := filepath.Join(t.TempDir(), "report.txt")

	w, closeFn, err := outputWriter(cmd, path)
	require.NoError(t, err)
	_, werr := w.Write([]byte("hello"))
	require.NoError(t, werr)
	closeFn()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestPrintValidationTableShowsSeverityAndRanges(t *testing.T) {
	var buf bytes.Buffer
	result := model.ValidationResult{
		Table:            "PRICES",
		RowCount:         30012,
		Severity:         model.SeverityCritical,
		MeanRowsPerDay:   968.1,
		MedianRowsPerDay: 1000,
		Q1RowsPerDay:     1000,
		Q3RowsPerDay:     1000,
		StdDevRowsPerDay: 200,
		MinRowsPerDay:    12,
		MaxRowsPerDay:    1000,
		AnomalousDays: []model.AnomalousDay{
			{Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), RowCount: 12, Severity: model.DaySeverelyLow, PercentOfAvg: 1.24, ExpectedLow: 871, ExpectedHigh: 1065},
		},
	}

	printValidationTable(&buf, result)
	out := buf.String()
	assert.Contains(t, out, "severity=CRITICAL")
	assert.Contains(t, out, "SEVERELY_LOW")
	assert.Contains(t, out, "871-1065")
}
