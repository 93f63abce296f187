package compress

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressProducesReadableGzip(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "data.tsv")
	content := strings.Repeat("a\tb\tc\n", 1000)
	require.NoError(t, os.WriteFile(inPath, []byte(content), 0o644))

	var lastCurrent, lastTotal int64
	res, err := Compress(inPath, Options{ChunkBytes: 64, OnProgress: func(cur, total int64) {
		lastCurrent, lastTotal = cur, total
	}})
	require.NoError(t, err)
	assert.Equal(t, inPath+".gz", res.OutputPath)
	assert.EqualValues(t, len(content), res.BytesIn)
	assert.Equal(t, int64(len(content)), lastCurrent)
	assert.Equal(t, int64(len(content)), lastTotal)

	f, err := os.Open(res.OutputPath)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()
	got, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestCompressRemovesPartialOutputOnFailure(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.tsv")
	_, err := Compress(missing, Options{})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
