package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
  "warehouse": {"account": "acct", "user": "u", "password": "p", "warehouse": "wh", "database": "db", "schema": "sch"},
  "files": [
    {"file_pattern": "t_{month}.tsv", "table_name": "T", "date_column": "D", "expected_columns": ["D", "A", "B"]}
  ]
}`

func TestLoadParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "acct", cfg.Warehouse.Account)
	require.Len(t, cfg.Files, 1)
	assert.Equal(t, "T", cfg.Files[0].TableName)
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	t.Setenv("WAREHOUSE_PASSWORD", "from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Warehouse.Password)
}

func TestResolvePatternExpandsMonthAndDateRange(t *testing.T) {
	month := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "t_2024-01.tsv", ResolvePattern("t_{month}.tsv", month))
	assert.Equal(t, "t_20240101-20240131.tsv", ResolvePattern("t_{date_range}.tsv", month))
}

func TestMigrateV1NestsWarehouseKeys(t *testing.T) {
	flat := map[string]any{
		"warehouse_account": "acct",
		"warehouse_user":    "u",
		"files":             []any{map[string]any{"file_pattern": "x"}},
	}
	nested := MigrateV1(flat)
	wh := nested["warehouse"].(map[string]any)
	assert.Equal(t, "acct", wh["account"])
	assert.Equal(t, "u", wh["user"])
	assert.Len(t, nested["files"], 1)
}
