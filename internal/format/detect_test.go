package format

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowetl/internal/model"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDetectByExtensionCSV(t *testing.T) {
	path := writeTemp(t, "prices.csv", "date,ticker,close\n2024-01-01,AAA,1.0\n")
	d, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, model.FormatCSV, d.Format)
	assert.Equal(t, ',', d.Delimiter)
	assert.True(t, d.HasHeader)
	assert.Equal(t, "extension", d.Method)
}

func TestDetectByExtensionTSV(t *testing.T) {
	path := writeTemp(t, "prices.tsv", "1.0\t2.0\t3.0\n4.0\t5.0\t6.0\n")
	d, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, model.FormatTSV, d.Format)
	assert.Equal(t, '\t', d.Delimiter)
	assert.False(t, d.HasHeader)
}

func TestDetectFromContentPipeDelimited(t *testing.T) {
	path := writeTemp(t, "prices.dat", "a|b|c\n1|2|3\n4|5|6\n")
	d, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, rune('|'), d.Delimiter)
	assert.Equal(t, "content_analysis", d.Method)
}

func TestDetectFallsBackOnEmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.dat", "")
	d, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, "fallback", d.Method)
	assert.Equal(t, model.FormatCSV, d.Format)
}

func TestValidateDelimiter(t *testing.T) {
	path := writeTemp(t, "prices.dat", "a,b,c\n1,2,3\n4,5,6\n")
	ok, err := ValidateDelimiter(path, ',')
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ValidateDelimiter(path, ';')
	require.NoError(t, err)
	assert.False(t, ok)
}
