package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuplicatesCommandRequiresTableAndKeyColumns(t *testing.T) {
	cmd := newDuplicatesCommand()
	cmd.SetArgs([]string{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestParseDateRangeEmptyDisablesPredicate(t *testing.T) {
	start, end, err := parseDateRange("")
	require.NoError(t, err)
	assert.True(t, start.IsZero())
	assert.True(t, end.IsZero())
}

func TestParseDateRangeParsesBothEnds(t *testing.T) {
	start, end, err := parseDateRange("2024-01-01:2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), end)
}

func TestParseDateRangeRejectsMalformedInput(t *testing.T) {
	_, _, err := parseDateRange("2024-01-01")
	require.Error(t, err)

	_, _, err = parseDateRange("not-a-date:2024-01-31")
	require.Error(t, err)

	_, _, err = parseDateRange("2024-01-01:not-a-date")
	require.Error(t, err)
}
