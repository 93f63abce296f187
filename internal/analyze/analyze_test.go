package analyze

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowetl/internal/model"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.tsv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAnalyzeCountsRowsAndDateRange(t *testing.T) {
	content := "date\tticker\tclose\n2024-01-01\tAAA\t1.0\n2024-01-02\tAAA\t1.1\n2024-01-03\tAAA\t1.2\n"
	path := writeTemp(t, content)
	rf := model.ResolvedFile{Path: path}
	opts := Options{
		Delimiter:  '\t',
		HasHeader:  true,
		DateColumn: "date",
		Columns:    []string{"date", "ticker", "close"},
	}
	a, err := Analyze(rf, opts)
	require.NoError(t, err)
	assert.EqualValues(t, 3, a.RowCount)
	assert.Equal(t, 3, a.ColumnCount)
	assert.Equal(t, 3, a.ColumnCountMin)
	assert.Equal(t, 3, a.ColumnCountMax)
	assert.Equal(t, "2024-01-01", a.MinDate.Format("2006-01-02"))
	assert.Equal(t, "2024-01-03", a.MaxDate.Format("2006-01-02"))
}

func TestAnalyzeDetectsColumnCountMismatch(t *testing.T) {
	content := "date\tticker\tclose\n2024-01-01\tAAA\n"
	path := writeTemp(t, content)
	rf := model.ResolvedFile{Path: path, Spec: model.FileSpec{ExpectedColumns: []string{"date", "ticker", "close"}}}
	opts := Options{Delimiter: '\t', HasHeader: true, DateColumn: "date", Columns: []string{"date", "ticker", "close"}}
	a, err := Analyze(rf, opts)
	require.NoError(t, err)
	anomalies := a.Anomalies()
	assert.NotEmpty(t, anomalies)
}

func TestAnalyzeFlagsInconsistentColumnCountAcrossRows(t *testing.T) {
	content := "date\tticker\tclose\n2024-01-01\tAAA\t1.0\n2024-01-02\tAAA\n"
	path := writeTemp(t, content)
	rf := model.ResolvedFile{Path: path, Spec: model.FileSpec{ExpectedColumns: []string{"date", "ticker", "close"}}}
	opts := Options{Delimiter: '\t', HasHeader: true, DateColumn: "date", Columns: []string{"date", "ticker", "close"}}
	a, err := Analyze(rf, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, a.ColumnCountMin)
	assert.Equal(t, 3, a.ColumnCountMax)
	anomalies := a.Anomalies()
	assert.Contains(t, strings.Join(anomalies, ";"), "inconsistent column count")
}

func TestAnalyzeDigestsDuplicateKeys(t *testing.T) {
	content := "date\tk\tv\n2024-01-01\tA\t1\n2024-01-01\tA\t2\n2024-01-01\tB\t3\n"
	path := writeTemp(t, content)
	rf := model.ResolvedFile{Path: path}
	opts := Options{
		Delimiter:  '\t',
		HasHeader:  true,
		DateColumn: "date",
		Columns:    []string{"date", "k", "v"},
		KeyColumns: []string{"date", "k"},
	}
	a, err := Analyze(rf, opts)
	require.NoError(t, err)
	assert.EqualValues(t, 1, a.DuplicateKeys)
	assert.EqualValues(t, 2, a.DistinctKeys)
}

func TestAnalyzeSkipQCOnlyCountsRows(t *testing.T) {
	content := "a\tb\n1\t2\n3\t4\n"
	path := writeTemp(t, content)
	rf := model.ResolvedFile{Path: path}
	opts := Options{Delimiter: '\t', HasHeader: true, SkipQC: true}
	a, err := Analyze(rf, opts)
	require.NoError(t, err)
	assert.EqualValues(t, 2, a.RowCount)
	assert.True(t, a.MinDate.IsZero())
}

func TestAnalyzeMissingFileIsUnreadable(t *testing.T) {
	rf := model.ResolvedFile{Path: filepath.Join(t.TempDir(), "missing.tsv")}
	_, err := Analyze(rf, Options{Delimiter: '\t'})
	require.Error(t, err)
}
