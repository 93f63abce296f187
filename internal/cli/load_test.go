package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowetl/internal/model"
)

func TestLoadCommandRequiresBasePathAndMonth(t *testing.T) {
	cmd := newLoadCommand()
	cmd.SetArgs([]string{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestRunLoadRejectsInvalidMonth(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := runLoad(cmd, "not-a-month", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, model.ErrConfig, model.KindOf(err))
}

func TestRunLoadFailsWhenConfigMissing(t *testing.T) {
	prevConfig := flags.configPath
	flags.configPath = filepath.Join(t.TempDir(), "does-not-exist.json")
	defer func() { flags.configPath = prevConfig }()

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := runLoad(cmd, "2024-01", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, model.ErrConfig, model.KindOf(err))
}
